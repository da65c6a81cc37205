package scoring

import (
	"context"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"

	"raptor/internal/models"
	"raptor/internal/rpcfanout"
	"raptor/internal/solutil"
	"raptor/internal/venue"
)

// legacy SPL mint account layout (spec.md §4.E "fixed-layout parse" applies equally
// here): mintAuthorityOption(4) mintAuthority(32) supply(8) decimals(1) isInitialized(1)
// freezeAuthorityOption(4) freezeAuthority(32). Token-2022 mints carry the same prefix
// before their optional TLV extensions, so the same offsets apply.
const (
	mintAuthorityOptionOffset   = 0
	freezeAuthorityOptionOffset = 46
	minMintAccountLen           = 82
)

// OnChainMetadataFetcher is the Scorer's production MetadataFetcher (spec.md §4.F
// input), grounded in the Venue Router's token-program detection
// (internal/venue.DetectTokenProgram) and the Discovery metadata layer's RPC-fanout
// fetch idiom (internal/discovery/metaplex.go). With a zero budget (speed mode) it
// returns only the discovery-time fields (mint, launch source) without any RPC read.
// Otherwise each on-chain read that fails or runs past the mode's budget (spec.md §4.F's
// per-mode timeout table) leaves only its own fields at zero; the fields of reads that
// succeeded are kept, so the result can be partial.
type OnChainMetadataFetcher struct {
	fanout *rpcfanout.Fanout
}

func NewOnChainMetadataFetcher(fanout *rpcfanout.Fanout) *OnChainMetadataFetcher {
	return &OnChainMetadataFetcher{fanout: fanout}
}

func (f *OnChainMetadataFetcher) Fetch(ctx context.Context, candidate *models.LaunchCandidate, budget time.Duration) Input {
	input := Input{Mint: candidate.Mint, LaunchSource: string(candidate.LaunchSource)}
	if budget <= 0 {
		// speed mode: score on discovery-time fields alone, never block on RPC.
		return input
	}

	fetchCtx, cancel := context.WithTimeout(ctx, budget)
	defer cancel()

	mintKey, err := solana.PublicKeyFromBase58(candidate.Mint)
	if err != nil {
		return input
	}

	if tokenProgram, err := f.detectTokenProgram(fetchCtx, mintKey); err == nil {
		input.IsToken2022 = tokenProgram.Equals(solutil.Token2022ProgramID)
	}

	if freeze, mintAuth, ok := f.readMintAuthorities(fetchCtx, mintKey); ok {
		input.FreezeAuthoritySet = freeze
		input.MintAuthoritySet = mintAuth
		input.OwnershipRenounced = !mintAuth
	}

	if holders, top10Pct, ok := f.readDistribution(fetchCtx, mintKey); ok {
		input.HolderCount = holders
		input.Top10PctSupply = top10Pct
	}

	return input
}

func (f *OnChainMetadataFetcher) detectTokenProgram(ctx context.Context, mint solana.PublicKey) (solana.PublicKey, error) {
	return venue.DetectTokenProgram(ctx, f.fanout.RawClient(), mint)
}

func (f *OnChainMetadataFetcher) readMintAuthorities(ctx context.Context, mint solana.PublicKey) (freezeSet, mintSet bool, ok bool) {
	raw, err := f.fanout.Call(ctx, func(ctx context.Context, client *rpc.Client) (interface{}, error) {
		return client.GetAccountInfoWithOpts(ctx, mint, &rpc.GetAccountInfoOpts{
			Encoding:   solana.EncodingBase64,
			Commitment: rpc.CommitmentConfirmed,
		})
	})
	if err != nil {
		return false, false, false
	}
	result, okCast := raw.(*rpc.GetAccountInfoResult)
	if !okCast || result == nil || result.Value == nil {
		return false, false, false
	}

	data := result.Value.Data.GetBinary()
	if len(data) < minMintAccountLen {
		return false, false, false
	}

	mintAuthorityOption := data[mintAuthorityOptionOffset]
	freezeAuthorityOption := data[freezeAuthorityOptionOffset]
	return freezeAuthorityOption != 0, mintAuthorityOption != 0, true
}

func (f *OnChainMetadataFetcher) readDistribution(ctx context.Context, mint solana.PublicKey) (holderCount int, top10Pct float64, ok bool) {
	raw, err := f.fanout.Call(ctx, func(ctx context.Context, client *rpc.Client) (interface{}, error) {
		return client.GetTokenLargestAccounts(ctx, mint, rpc.CommitmentConfirmed)
	})
	if err != nil {
		return 0, 0, false
	}
	result, okCast := raw.(*rpc.GetTokenLargestAccountsResult)
	if !okCast || result == nil {
		return 0, 0, false
	}

	var total, top10 float64
	for i, acc := range result.Value {
		amount := acc.UiAmount
		if amount == nil {
			continue
		}
		total += *amount
		if i < 10 {
			top10 += *amount
		}
	}
	if total == 0 {
		return len(result.Value), 0, true
	}
	return len(result.Value), (top10 / total) * 100, true
}
