package venue

import (
	"context"
	"fmt"

	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"

	"raptor/internal/solutil"
)

// DetectTokenProgram reads the mint account's owner to decide whether it belongs to the
// legacy SPL Token program or Token-2022 (spec.md §4.C item 1, §8 boundary behavior). The
// Venue Router must use this rather than assuming legacy SPL, since Token-2022 mints use a
// different ATA derivation seed and a different transfer instruction layout.
func DetectTokenProgram(ctx context.Context, client *rpc.Client, mint solana.PublicKey) (solana.PublicKey, error) {
	info, err := client.GetAccountInfo(ctx, mint)
	if err != nil {
		return solana.PublicKey{}, fmt.Errorf("get mint account info: %w", err)
	}
	if info == nil || info.Value == nil {
		return solana.PublicKey{}, fmt.Errorf("mint account %s not found", mint)
	}

	owner := info.Value.Owner
	switch {
	case owner.Equals(solana.TokenProgramID):
		return solana.TokenProgramID, nil
	case owner.Equals(solutil.Token2022ProgramID):
		return solutil.Token2022ProgramID, nil
	default:
		return solana.PublicKey{}, fmt.Errorf("mint %s owned by unrecognized program %s", mint, owner)
	}
}
