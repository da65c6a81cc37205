package execution

import (
	"context"
	"strings"

	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"

	"raptor/internal/raptorerr"
	"raptor/internal/venue"
)

// simulate pre-flights unsigned via simulateTransaction (spec.md §4.D step 5). A zero
// sell quote is rejected by the caller before reaching here. A revert whose logs carry
// one of the isHoneypotRevert markers fails closed with HONEYPOT_DETECTED without
// broadcasting; any other revert is SIMULATION_FAILED. Round-trip loss is not measured.
func (e *Engine) simulate(ctx context.Context, tx *solana.Transaction, intent venue.SwapIntent, quote venue.Quote) error {
	raw, err := e.fanout.Call(ctx, func(ctx context.Context, client *rpc.Client) (interface{}, error) {
		return client.SimulateTransactionWithOpts(ctx, tx, &rpc.SimulateTransactionOpts{
			SigVerify:  false,
			Commitment: rpc.CommitmentConfirmed,
		})
	})
	if err != nil {
		return raptorerr.Wrap(raptorerr.CodeSimulationFailed, "simulateTransaction RPC call failed", err)
	}

	result, ok := raw.(*rpc.SimulateTransactionResult)
	if !ok || result == nil {
		return raptorerr.New(raptorerr.CodeSimulationFailed, "simulateTransaction returned an unexpected response")
	}

	if result.Value.Err != nil {
		if isHoneypotRevert(result.Value.Logs) {
			return raptorerr.New(raptorerr.CodeHoneypotDetected, "simulation reverted with honeypot signature")
		}
		return raptorerr.New(raptorerr.CodeSimulationFailed, "simulation reverted")
	}

	return nil
}

// isHoneypotRevert scans simulation logs for the markers spec.md §4.D treats as a
// honeypot (a transfer-fee/freeze hook blocking the counter-swap). Real signatures
// vary by program; this matches the three Token-2022 extension errors known to gate
// sells on scam mints.
func isHoneypotRevert(logs []string) bool {
	markers := []string{"TransferFeeExceedsMaximum", "AccountFrozen", "TransferHookFail"}
	for _, l := range logs {
		for _, m := range markers {
			if strings.Contains(l, m) {
				return true
			}
		}
	}
	return false
}
