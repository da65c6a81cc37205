// Package solutil collects small Solana primitive helpers shared by the Venue Router
// and Discovery Sources: pubkey/base58 validation, lamport math, and associated-token-account
// derivation across the legacy SPL Token program and Token-2022 (spec.md §4.C item 1, §8).
package solutil

import (
	"github.com/gagliardetto/solana-go"
	"github.com/mr-tron/base58"
)

// Token2022ProgramID is pinned; solana-go's built-in constants only cover legacy SPL Token.
var Token2022ProgramID = solana.MustPublicKeyFromBase58("TokenzQdBNbLqP5VEhdkAS6EPFLC1PHnBqCXEpPxuEb")

const LamportsPerSOL = 1_000_000_000

// IsValidBase58Mint reports whether s looks like a Solana mint address: 32-44 base58
// characters that decode to a 32-byte pubkey (spec.md §4.E Bags parser step 5).
func IsValidBase58Mint(s string) bool {
	if len(s) < 32 || len(s) > 44 {
		return false
	}
	decoded, err := base58.Decode(s)
	if err != nil {
		return false
	}
	return len(decoded) == 32
}

// FindAssociatedTokenAddress derives the ATA for owner+mint under the given token
// program (legacy SPL or Token-2022) — the seeds are identical, only the middle seed
// (the token program ID) differs between the two (spec.md §8 boundary behavior).
func FindAssociatedTokenAddress(owner, mint, tokenProgramID solana.PublicKey) (solana.PublicKey, uint8, error) {
	return solana.FindProgramAddress(
		[][]byte{
			owner[:],
			tokenProgramID[:],
			mint[:],
		},
		solana.SPLAssociatedTokenAccountProgramID,
	)
}

// LamportsToSOL converts raw lamports to a float SOL amount. Callers performing arithmetic
// on money values should prefer decimal.Decimal; this helper is for display/logging only.
func LamportsToSOL(lamports uint64) float64 {
	return float64(lamports) / float64(LamportsPerSOL)
}

func SOLToLamports(sol float64) uint64 {
	return uint64(sol * float64(LamportsPerSOL))
}
