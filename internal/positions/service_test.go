package positions

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"raptor/internal/logger"
	"raptor/internal/models"
)

type stubPricer struct {
	price decimal.Decimal
	err   error
}

func (p *stubPricer) Price(ctx context.Context, mint string) (decimal.Decimal, error) {
	return p.price, p.err
}

type stubPositions struct {
	lastID        uint
	lastCurrent   float64
	lastPeak      float64
}

func (s *stubPositions) Create(ctx context.Context, p *models.Position, buildNotification func(*models.Position) *models.NotificationOutbox) error {
	return nil
}
func (s *stubPositions) Get(ctx context.Context, id uint) (*models.Position, error) {
	return nil, nil
}
func (s *stubPositions) ListMonitored(ctx context.Context) ([]models.Position, error) {
	return nil, nil
}
func (s *stubPositions) ListPreGraduationMints(ctx context.Context) ([]string, error) {
	return nil, nil
}
func (s *stubPositions) UpdatePricing(ctx context.Context, id uint, currentPrice, peakPrice float64, at time.Time) error {
	s.lastID, s.lastCurrent, s.lastPeak = id, currentPrice, peakPrice
	return nil
}
func (s *stubPositions) CloseFromSell(ctx context.Context, id uint, exec *models.Execution, exitTrigger models.ExitTrigger, notification *models.NotificationOutbox) error {
	return nil
}
func (s *stubPositions) TriggerExitAtomically(ctx context.Context, positionID uint, trigger models.ExitTrigger, price float64) (bool, string, error) {
	return false, "", nil
}
func (s *stubPositions) MarkPositionExecuting(ctx context.Context, positionID uint) error { return nil }
func (s *stubPositions) MarkTriggerCompleted(ctx context.Context, positionID uint, exitExecutionID uint) error {
	return nil
}
func (s *stubPositions) MarkTriggerFailed(ctx context.Context, positionID uint, errMsg string) error {
	return nil
}
func (s *stubPositions) ReArmTrigger(ctx context.Context, positionID uint) error { return nil }
func (s *stubPositions) GraduateAllPositionsForMint(ctx context.Context, mint string) (int, error) {
	return 0, nil
}
func (s *stubPositions) ListExecuting(ctx context.Context, olderThan time.Duration) ([]models.Position, error) {
	return nil, nil
}

func TestRefresh_UpdatesPeakMonotonically(t *testing.T) {
	repo := &stubPositions{}
	registry := NewRegistry(&stubPricer{price: decimal.NewFromFloat(1.5)}, &stubPricer{price: decimal.NewFromFloat(2.0)})
	svc := NewService(repo, registry, logger.NewLogger("test", nil))

	position := &models.Position{ID: 9, Mint: "mintA", PricingSource: models.PricingBondingCurve, EntryPrice: 1.0, PeakPrice: 1.2}

	result, err := svc.Refresh(context.Background(), position)

	require.NoError(t, err)
	assert.Equal(t, 1.5, result.CurrentPrice)
	assert.Equal(t, 1.5, result.PeakPrice, "peak must advance when price rises")
	assert.Equal(t, uint(9), repo.lastID)
}

func TestRefresh_PeakNeverRegresses(t *testing.T) {
	repo := &stubPositions{}
	registry := NewRegistry(&stubPricer{price: decimal.NewFromFloat(0.5)}, nil)
	svc := NewService(repo, registry, logger.NewLogger("test", nil))

	position := &models.Position{ID: 9, Mint: "mintA", PricingSource: models.PricingBondingCurve, EntryPrice: 1.0, PeakPrice: 2.0}

	result, err := svc.Refresh(context.Background(), position)

	require.NoError(t, err)
	assert.Equal(t, 0.5, result.CurrentPrice)
	assert.Equal(t, 2.0, result.PeakPrice, "a price dip must never lower the recorded peak")
}

func TestRefresh_TrailingActivatesOnlyPastThreshold(t *testing.T) {
	repo := &stubPositions{}
	registry := NewRegistry(&stubPricer{price: decimal.NewFromFloat(1.19)}, nil)
	svc := NewService(repo, registry, logger.NewLogger("test", nil))

	position := &models.Position{ID: 1, Mint: "mintA", PricingSource: models.PricingBondingCurve, EntryPrice: 1.0, TrailingActivationPct: 20}

	result, err := svc.Refresh(context.Background(), position)

	require.NoError(t, err)
	assert.False(t, result.TrailingActivated, "1.19x is below the 1.20x activation threshold")
}

func TestRefresh_SelectsPricerByPricingSource(t *testing.T) {
	repo := &stubPositions{}
	registry := NewRegistry(&stubPricer{price: decimal.NewFromFloat(1.0)}, &stubPricer{price: decimal.NewFromFloat(9.0)})
	svc := NewService(repo, registry, logger.NewLogger("test", nil))

	ammPosition := &models.Position{ID: 2, Mint: "mintB", PricingSource: models.PricingAMMPool, EntryPrice: 1.0}
	result, err := svc.Refresh(context.Background(), ammPosition)

	require.NoError(t, err)
	assert.Equal(t, 9.0, result.CurrentPrice, "POST_GRADUATION positions must price via the AMM pricer")
}
