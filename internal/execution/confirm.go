package execution

import (
	"context"
	"errors"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"

	"raptor/internal/raptorerr"
)

// fillResult is the balance-delta-derived outcome of a confirmed swap (spec.md §4.D step 8).
type fillResult struct {
	filledTokens  float64
	filledSOL     float64
	pricePerToken float64
}

// confirm polls getTransaction until the signature finalizes or confirmTimeout elapses,
// then derives fill amounts from pre/post balances (spec.md §4.D step 8).
func (e *Engine) confirm(ctx context.Context, sig solana.Signature) (fillResult, error) {
	ctx, cancel := context.WithTimeout(ctx, confirmTimeout)
	defer cancel()

	version := uint8(0)
	for {
		select {
		case <-ctx.Done():
			return fillResult{}, raptorerr.New(raptorerr.CodeConfirmationTimeout, "transaction did not finalize before deadline")
		default:
		}

		raw, err := e.fanout.Call(ctx, func(ctx context.Context, client *rpc.Client) (interface{}, error) {
			return client.GetTransaction(ctx, sig, &rpc.GetTransactionOpts{
				Encoding:                       solana.EncodingBase64,
				Commitment:                     rpc.CommitmentFinalized,
				MaxSupportedTransactionVersion: &version,
			})
		})
		if err != nil {
			if errors.Is(err, rpc.ErrNotFound) {
				time.Sleep(500 * time.Millisecond)
				continue
			}
			return fillResult{}, raptorerr.Wrap(raptorerr.CodeConfirmationTimeout, "getTransaction failed", err)
		}

		result, ok := raw.(*rpc.GetTransactionResult)
		if !ok || result == nil || result.Meta == nil {
			time.Sleep(500 * time.Millisecond)
			continue
		}

		if result.Meta.Err != nil {
			return fillResult{}, raptorerr.New(raptorerr.CodeTransactionReverted, "transaction finalized with an error")
		}

		return deriveFill(result), nil
	}
}

// deriveFill computes the SOL moved by the swap from preBalances/postBalances (account 0
// being the fee payer): a buy's outflow minus the fee, or a sell's inflow, which is
// already net of the fee. Token deltas come from preTokenBalances/postTokenBalances, per
// spec.md §4.D step 8.
func deriveFill(result *rpc.GetTransactionResult) fillResult {
	var solDelta uint64
	if len(result.Meta.PreBalances) > 0 && len(result.Meta.PostBalances) > 0 {
		pre := result.Meta.PreBalances[0]
		post := result.Meta.PostBalances[0]
		switch {
		case pre > post:
			solDelta = pre - post
			if solDelta > result.Meta.Fee {
				solDelta -= result.Meta.Fee
			} else {
				solDelta = 0
			}
		case post > pre:
			solDelta = post - pre
		}
	}

	var tokenDelta float64
	for _, post := range result.Meta.PostTokenBalances {
		if post.UiTokenAmount == nil || post.UiTokenAmount.UiAmount == nil {
			continue
		}
		postAmount := *post.UiTokenAmount.UiAmount
		preAmount := 0.0
		for _, pre := range result.Meta.PreTokenBalances {
			if pre.AccountIndex == post.AccountIndex && pre.UiTokenAmount != nil && pre.UiTokenAmount.UiAmount != nil {
				preAmount = *pre.UiTokenAmount.UiAmount
			}
		}
		if delta := postAmount - preAmount; delta != 0 {
			tokenDelta += delta
		}
	}

	fill := fillResult{
		filledSOL:    float64(solDelta) / 1e9,
		filledTokens: tokenDelta,
	}
	if fill.filledTokens != 0 {
		fill.pricePerToken = fill.filledSOL / absFloat(fill.filledTokens)
	}
	return fill
}

func absFloat(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}
