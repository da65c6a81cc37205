// Package venue is the Venue Router (spec.md §4.C): it picks the correct swap path for a
// mint based on its lifecycle state and never guesses when that state is unknown.
package venue

import (
	"context"

	"github.com/gagliardetto/solana-go"
	"github.com/shopspring/decimal"
)

// SwapIntent is what the execution engine asks a router to fill.
type SwapIntent struct {
	Mint          solana.PublicKey
	Owner         solana.PublicKey
	Side          string // "BUY" or "SELL"
	AmountSOL     decimal.Decimal // BUY: lamports budget expressed in SOL
	AmountTokens  decimal.Decimal // SELL: token amount to dispose of
	SlippageBps   int
	MinSOLOutput  decimal.Decimal // SELL floor, spec.md §4.C min_sol_output 1% rule

	// PriorityFeeLamports is the total lamport budget the resolved strategy/settings
	// priority fee allows for this swap; 0 means no explicit priority fee. Each
	// SwapRouter is responsible for turning this into its venue's own compute-budget
	// mechanism (spec.md §4.C).
	PriorityFeeLamports uint64
}

// Quote is a venue's priced, unsigned estimate of a swap.
type Quote struct {
	Venue          string
	InAmount       decimal.Decimal
	OutAmount      decimal.Decimal
	PricePerToken  decimal.Decimal
	PriceImpactPct decimal.Decimal
}

// UnsignedTx is a built-but-unsigned transaction ready for the signing service.
type UnsignedTx struct {
	Venue       string
	Transaction *solana.Transaction
	Quote       Quote
}

// SwapResult is returned after a venue's transaction has been broadcast and confirmed.
type SwapResult struct {
	Signature     solana.Signature
	FilledAmount  decimal.Decimal
	PricePerToken decimal.Decimal
}

// SwapRouter is implemented once per venue (bonding curve, AMM pool). The execution engine
// never branches on venue internals, only on which SwapRouter Route() returned.
type SwapRouter interface {
	Name() string
	Quote(ctx context.Context, intent SwapIntent) (Quote, error)
	Build(ctx context.Context, intent SwapIntent, quote Quote) (UnsignedTx, error)
}
