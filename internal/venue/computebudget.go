package venue

import (
	"github.com/gagliardetto/solana-go"
	cb "github.com/gagliardetto/solana-go/programs/compute-budget"
)

// bondingCurveComputeUnitLimit is a conservative estimate for the pump.fun buy/sell
// instruction, used only to translate a lamport priority-fee budget into the
// microLamports-per-compute-unit price the ComputeBudget program expects.
const bondingCurveComputeUnitLimit = 200_000

// priorityFeeInstructions turns a lamport priority-fee budget into the pair of
// ComputeBudget instructions pump.fun sniper bots prepend ahead of the swap itself: a
// unit limit so the price calculation is deterministic, then the unit price derived from
// it. Returns nil when no priority fee was requested.
func priorityFeeInstructions(lamports uint64) []solana.Instruction {
	if lamports == 0 {
		return nil
	}
	microLamportsPerCU := (lamports * 1_000_000) / bondingCurveComputeUnitLimit
	return []solana.Instruction{
		cb.NewSetComputeUnitLimitInstruction(bondingCurveComputeUnitLimit).Build(),
		cb.NewSetComputeUnitPriceInstruction(microLamportsPerCU).Build(),
	}
}
