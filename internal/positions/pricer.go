// Package positions implements Position Lifecycle pricing (spec.md §4.H): the
// pricing-source-keyed pricer registry and the price-refresh/peak-tracking update that
// both the Trigger Engine sweep and the Graduation Monitor depend on.
package positions

import (
	"context"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/shopspring/decimal"

	"raptor/internal/cache"
	"raptor/internal/models"
	"raptor/internal/venue"
)

// referenceTokenAmount/referenceSOLAmount are the trade sizes pricers sample a venue's
// mid price with: small enough that a bonding curve's constant-product slippage and an
// AMM's price impact are negligible against the reference amount (spec.md §4.H requires
// the refresh to read live reserves, not a stale snapshot).
var (
	referenceTokenAmount = decimal.NewFromInt(1)
	referenceSOLAmount   = decimal.NewFromFloat(0.01)
)

// Pricer prices one mint against its lifecycle-mandated venue. Exactly one
// implementation exists per models.PricingSource so callers never branch on venue
// internals (spec.md §4.H: "given pricing_source, the correct pricer must be callable
// without conditionals elsewhere").
type Pricer interface {
	Price(ctx context.Context, mint string) (decimal.Decimal, error)
}

// BondingCurvePricer samples the live pump.fun curve via the same SwapRouter the
// Execution Engine fills PRE_GRADUATION trades through (spec.md §4.C, §4.H).
type BondingCurvePricer struct {
	router venue.SwapRouter
}

func NewBondingCurvePricer(router venue.SwapRouter) *BondingCurvePricer {
	return &BondingCurvePricer{router: router}
}

func (p *BondingCurvePricer) Price(ctx context.Context, mint string) (decimal.Decimal, error) {
	mintKey, err := solana.PublicKeyFromBase58(mint)
	if err != nil {
		return decimal.Zero, err
	}
	quote, err := p.router.Quote(ctx, venue.SwapIntent{
		Mint:         mintKey,
		Side:         "SELL",
		AmountTokens: referenceTokenAmount,
	})
	if err != nil {
		return decimal.Zero, err
	}
	return quote.PricePerToken, nil
}

// AmmPoolPricer samples the aggregator through the same AmmRouter the Execution Engine
// routes POST_GRADUATION trades through, caching results for ~30s with jitter so a mint
// with many open positions doesn't draw one aggregator request per position per sweep
// (spec.md §4.H "cached ~30s with jitter").
type AmmPoolPricer struct {
	router venue.SwapRouter
	cache  *cache.PriceCache
}

func NewAmmPoolPricer(router venue.SwapRouter, priceCache *cache.PriceCache) *AmmPoolPricer {
	return &AmmPoolPricer{router: router, cache: priceCache}
}

func (p *AmmPoolPricer) Price(ctx context.Context, mint string) (decimal.Decimal, error) {
	if point, ok := p.cache.Get(mint); ok {
		return point.Price, nil
	}
	mintKey, err := solana.PublicKeyFromBase58(mint)
	if err != nil {
		return decimal.Zero, err
	}
	quote, err := p.router.Quote(ctx, venue.SwapIntent{
		Mint:      mintKey,
		Side:      "BUY",
		AmountSOL: referenceSOLAmount,
	})
	if err != nil {
		return decimal.Zero, err
	}
	p.cache.Set(mint, cache.PricePoint{Price: quote.PricePerToken, Source: string(models.PricingAMMPool), CachedAt: time.Now()})
	return quote.PricePerToken, nil
}

// Registry selects the pricer mandated by a position's pricing_source (spec.md §8
// invariant 1): never the caller's choice.
type Registry struct {
	bondingCurve Pricer
	amm          Pricer
}

func NewRegistry(bondingCurve, amm Pricer) *Registry {
	return &Registry{bondingCurve: bondingCurve, amm: amm}
}

func (r *Registry) For(source models.PricingSource) Pricer {
	if source == models.PricingBondingCurve {
		return r.bondingCurve
	}
	return r.amm
}
