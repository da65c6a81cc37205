package positions

import (
	"context"
	"time"

	"raptor/internal/interfaces/repository"
	"raptor/internal/logger"
	"raptor/internal/models"
	"raptor/internal/raptorerr"
)

// RefreshResult is what the Trigger Engine needs after a price refresh to evaluate exit
// conditions without re-deriving any of the arithmetic itself.
type RefreshResult struct {
	CurrentPrice       float64
	PeakPrice          float64
	TrailingActivated  bool
}

// Service owns the price-refresh half of Position Lifecycle (spec.md §4.H): it picks the
// pricer mandated by pricing_source, updates current/peak price monotonically, and
// evaluates whether the trailing-stop activation threshold has been crossed.
type Service struct {
	positions repository.PositionRepository
	pricers   *Registry
	log       *logger.Logger
}

func NewService(positions repository.PositionRepository, pricers *Registry, log *logger.Logger) *Service {
	return &Service{positions: positions, pricers: pricers, log: log}
}

// Refresh fetches the current price via the lifecycle-mandated pricer, persists
// current_price/peak_price/price_updated_at, and reports whether trailing has newly (or
// already) activated (spec.md §4.H, §4.I step 2).
func (s *Service) Refresh(ctx context.Context, p *models.Position) (RefreshResult, error) {
	pricer := s.pricers.For(p.PricingSource)
	price, err := pricer.Price(ctx, p.Mint)
	if err != nil {
		return RefreshResult{}, raptorerr.Wrap(raptorerr.CodeQuoteFailed, "refresh position price", err)
	}

	current, _ := price.Float64()
	peak := p.PeakPrice
	if current > peak {
		peak = current
	}

	now := time.Now()
	if err := s.positions.UpdatePricing(ctx, p.ID, current, peak, now); err != nil {
		return RefreshResult{}, raptorerr.Wrap(raptorerr.CodeDatabaseError, "persist position pricing", err)
	}

	p.CurrentPrice = current
	p.PeakPrice = peak
	p.PriceUpdatedAt = &now

	activated := p.TrailingActivationPct > 0 && current >= p.EntryPrice*(1+p.TrailingActivationPct/100)
	return RefreshResult{CurrentPrice: current, PeakPrice: peak, TrailingActivated: activated}, nil
}
