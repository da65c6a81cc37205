// Package registry is the Program Registry (spec.md §4.B): a pinned, compile-time map
// from program IDs to instruction discriminators and account orderings. Nothing here is
// fetched at runtime — IDL data changes require a code change and a release, by design.
package registry

import (
	"bytes"
	"fmt"

	"github.com/gagliardetto/solana-go"
)

// Pinned program IDs (spec.md §6).
var (
	PumpFunProgramID  = solana.MustPublicKeyFromBase58("6EF8rrecthR5Dkzon8Nwu78hRvfCKubJ14M5uBEwF6P")
	PumpProProgramID  = solana.MustPublicKeyFromBase58("proVF4pMXVaYqmy4NjniPh4pqKNfMmsihgd4wdkCX3u")
	MeteoraDBCProgramID = solana.MustPublicKeyFromBase58("dbcij3LWUppWqq96dh6gJWwBifmcGfLSB5D4DuSMaqN")
	MetaplexMetadataProgramID = solana.MustPublicKeyFromBase58("metaqbxxUerdq28cj1RbAWkYQm3ybzjb6a8bt518x1s")
)

// InstructionKind names the instructions the registry can identify.
type InstructionKind string

const (
	InstructionPumpCreate      InstructionKind = "pumpfun_create"
	InstructionPumpCreateV2    InstructionKind = "pumpfun_create_v2"
	InstructionPumpProCreate   InstructionKind = "pumppro_create"
	InstructionBondingCurveBuy InstructionKind = "bonding_curve_buy"
	InstructionBondingCurveSell InstructionKind = "bonding_curve_sell"
	InstructionDBCInitializePool InstructionKind = "dbc_initialize_pool"
	InstructionDBCCreatePool   InstructionKind = "dbc_create_pool"
)

// discriminators are the first 8 bytes of instruction data (spec.md §6).
var discriminators = map[InstructionKind][8]byte{
	InstructionPumpCreate:   {24, 30, 200, 40, 5, 28, 7, 119},
	InstructionPumpCreateV2: {214, 144, 76, 236, 95, 139, 49, 180},
	InstructionPumpProCreate: {147, 241, 123, 100, 244, 132, 174, 118},
}

// AccountOrdering names each account slot, in IDL order, for instructions the Venue Router builds.
type AccountOrdering struct {
	Name      string
	Index     int
	Writable  bool
	Signer    bool
}

// pumpCreateAccounts is the pump.fun / pump.pro `create` account ordering: the mint is
// always the first account, a freshly generated keypair signed by the creator
// (spec.md §4.E item 2, §6).
var pumpCreateAccounts = []AccountOrdering{
	{Name: "mint", Index: 0, Writable: true, Signer: true},
	{Name: "mintAuthority", Index: 1},
	{Name: "bondingCurve", Index: 2, Writable: true},
	{Name: "associatedBondingCurve", Index: 3, Writable: true},
	{Name: "global", Index: 4},
	{Name: "mplTokenMetadata", Index: 5},
	{Name: "metadata", Index: 6, Writable: true},
	{Name: "user", Index: 7, Writable: true, Signer: true},
	{Name: "systemProgram", Index: 8},
	{Name: "tokenProgram", Index: 9},
	{Name: "associatedTokenProgram", Index: 10},
	{Name: "rent", Index: 11},
	{Name: "eventAuthority", Index: 12},
	{Name: "program", Index: 13},
}

// bondingCurveSellAccounts is the pump.fun bonding-curve sell ordering (spec.md §6).
var bondingCurveSellAccounts = []AccountOrdering{
	{Name: "global", Index: 0},
	{Name: "feeRecipient", Index: 1, Writable: true},
	{Name: "mint", Index: 2},
	{Name: "bondingCurve", Index: 3, Writable: true},
	{Name: "associatedBondingCurve", Index: 4, Writable: true},
	{Name: "associatedUser", Index: 5, Writable: true},
	{Name: "user", Index: 6, Writable: true, Signer: true},
	{Name: "systemProgram", Index: 7},
	{Name: "associatedTokenProgram", Index: 8},
	{Name: "tokenProgram", Index: 9},
	{Name: "eventAuthority", Index: 10},
	{Name: "program", Index: 11},
}

// IdentifiedInstruction is what IdentifyInstruction returns on a match.
type IdentifiedInstruction struct {
	Kind            InstructionKind
	AccountOrdering []AccountOrdering
}

// IdentifyInstruction maps a program ID + the first 8 bytes of instruction data to a
// named instruction and its account ordering (spec.md §4.B).
func IdentifyInstruction(programID solana.PublicKey, dataFirst8 [8]byte) (IdentifiedInstruction, bool) {
	switch {
	case programID.Equals(PumpFunProgramID):
		for kind, disc := range discriminators {
			if kind == InstructionPumpProCreate {
				continue
			}
			if bytes.Equal(disc[:], dataFirst8[:]) {
				var ordering []AccountOrdering
				switch kind {
				case InstructionBondingCurveSell:
					ordering = bondingCurveSellAccounts
				case InstructionPumpCreate, InstructionPumpCreateV2:
					ordering = pumpCreateAccounts
				}
				return IdentifiedInstruction{Kind: kind, AccountOrdering: ordering}, true
			}
		}
	case programID.Equals(PumpProProgramID):
		if bytes.Equal(discriminators[InstructionPumpProCreate][:], dataFirst8[:]) {
			return IdentifiedInstruction{Kind: InstructionPumpProCreate, AccountOrdering: pumpCreateAccounts}, true
		}
	case programID.Equals(MeteoraDBCProgramID):
		// DBC create detection is log-text based (spec.md §4.E item 3 / scenario 3), not
		// discriminator based, since the pack's IDL coverage for DBC is instruction-log only.
	}
	return IdentifiedInstruction{}, false
}

// MintFromCreateInstruction resolves the newly created mint pubkey from a `create`
// instruction's account list using the pinned ordering (index 0, spec.md §4.E item 2).
func MintFromCreateInstruction(keys []solana.PublicKey, accounts []uint16) (solana.PublicKey, bool) {
	if len(accounts) == 0 {
		return solana.PublicKey{}, false
	}
	idx := accounts[0]
	if int(idx) >= len(keys) {
		return solana.PublicKey{}, false
	}
	return keys[idx], true
}

// BondingCurveSellAccountOrdering exposes the pinned ordering for the Venue Router.
func BondingCurveSellAccountOrdering() []AccountOrdering {
	out := make([]AccountOrdering, len(bondingCurveSellAccounts))
	copy(out, bondingCurveSellAccounts)
	return out
}

// DerivePDA wraps solana-go's deterministic PDA derivation (spec.md §4.B, GLOSSARY PDA).
func DerivePDA(seeds [][]byte, programID solana.PublicKey) (solana.PublicKey, uint8, error) {
	pda, bump, err := solana.FindProgramAddress(seeds, programID)
	if err != nil {
		return solana.PublicKey{}, 0, fmt.Errorf("derive pda: %w", err)
	}
	return pda, bump, nil
}

// IsMeteoraCreateLog reports whether a set of transaction log lines represents a DBC
// pool-creation instruction (spec.md scenario 3): an invoke of the DBC program whose
// logged instruction name is InitializePool or CreatePool, not merely mentioned in passing
// after an unrelated instruction (e.g. a Swap log that happens to reference "CreatePool").
func IsMeteoraCreateLog(logs []string) bool {
	invoked := false
	for _, line := range logs {
		switch {
		case bytes.Contains([]byte(line), []byte("Program "+MeteoraDBCProgramID.String()+" invoke")):
			invoked = true
		case invoked && bytes.Contains([]byte(line), []byte("Instruction: InitializePool")):
			return true
		case invoked && bytes.Contains([]byte(line), []byte("Instruction: CreatePool")):
			return true
		case bytes.Contains([]byte(line), []byte("Instruction: Swap")):
			// A swap instruction resets the "in create instruction" window: a later
			// incidental mention of "CreatePool" in a log string does not count.
			invoked = false
		}
	}
	return false
}
