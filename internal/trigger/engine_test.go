package trigger

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"raptor/internal/eventbus"
	"raptor/internal/execution"
	"raptor/internal/interfaces/repository"
	"raptor/internal/logger"
	"raptor/internal/models"
	"raptor/internal/positions"
)

type stubPricer struct{ price decimal.Decimal }

func (p *stubPricer) Price(ctx context.Context, mint string) (decimal.Decimal, error) {
	return p.price, nil
}

type stubPositionsRepo struct {
	monitored      []models.Position
	executing      []models.Position
	triggered      map[uint]models.ExitTrigger
	executingCalls int
	completedCalls int
	failedCalls    int
	failReason     string
}

func newStubPositionsRepo(monitored []models.Position) *stubPositionsRepo {
	return &stubPositionsRepo{monitored: monitored, triggered: map[uint]models.ExitTrigger{}}
}

func (s *stubPositionsRepo) Create(ctx context.Context, p *models.Position, buildNotification func(*models.Position) *models.NotificationOutbox) error {
	return nil
}
func (s *stubPositionsRepo) Get(ctx context.Context, id uint) (*models.Position, error) {
	return nil, nil
}
func (s *stubPositionsRepo) ListMonitored(ctx context.Context) ([]models.Position, error) {
	return s.monitored, nil
}
func (s *stubPositionsRepo) ListPreGraduationMints(ctx context.Context) ([]string, error) {
	return nil, nil
}
func (s *stubPositionsRepo) UpdatePricing(ctx context.Context, id uint, currentPrice, peakPrice float64, at time.Time) error {
	return nil
}
func (s *stubPositionsRepo) CloseFromSell(ctx context.Context, id uint, exec *models.Execution, exitTrigger models.ExitTrigger, notification *models.NotificationOutbox) error {
	return nil
}
func (s *stubPositionsRepo) TriggerExitAtomically(ctx context.Context, positionID uint, trigger models.ExitTrigger, price float64) (bool, string, error) {
	if _, already := s.triggered[positionID]; already {
		return false, "invalid_transition_from_TRIGGERED", nil
	}
	s.triggered[positionID] = trigger
	return true, "", nil
}
func (s *stubPositionsRepo) MarkPositionExecuting(ctx context.Context, positionID uint) error {
	s.executingCalls++
	return nil
}
func (s *stubPositionsRepo) MarkTriggerCompleted(ctx context.Context, positionID uint, exitExecutionID uint) error {
	s.completedCalls++
	return nil
}
func (s *stubPositionsRepo) MarkTriggerFailed(ctx context.Context, positionID uint, errMsg string) error {
	s.failedCalls++
	s.failReason = errMsg
	return nil
}
func (s *stubPositionsRepo) ReArmTrigger(ctx context.Context, positionID uint) error { return nil }
func (s *stubPositionsRepo) GraduateAllPositionsForMint(ctx context.Context, mint string) (int, error) {
	return 0, nil
}
func (s *stubPositionsRepo) ListExecuting(ctx context.Context, olderThan time.Duration) ([]models.Position, error) {
	return s.executing, nil
}

type stubUsers struct{}

func (s *stubUsers) GetUser(ctx context.Context, id uint) (*models.User, error) { return &models.User{}, nil }
func (s *stubUsers) GetActiveWallet(ctx context.Context, userID uint) (*models.Wallet, error) {
	return &models.Wallet{Pubkey: "So11111111111111111111111111111111111111112"}, nil
}
func (s *stubUsers) GetSettings(ctx context.Context, userID uint) (*models.Settings, error) {
	return &models.Settings{}, nil
}
func (s *stubUsers) ListArmedStrategies(ctx context.Context, chain string) ([]models.Strategy, error) {
	return nil, nil
}

type stubDispatcher struct {
	calls int
	err   error
}

func (d *stubDispatcher) ExecuteTrade(ctx context.Context, intent execution.Intent) (execution.Result, error) {
	d.calls++
	if d.err != nil {
		return execution.Result{}, d.err
	}
	return execution.Result{Execution: &models.Execution{ID: 77, Status: models.ExecConfirmed}}, nil
}

type stubOutboxRepo struct {
	enqueued []models.NotificationOutbox
}

func (s *stubOutboxRepo) Enqueue(ctx context.Context, row *models.NotificationOutbox) error {
	s.enqueued = append(s.enqueued, *row)
	return nil
}
func (s *stubOutboxRepo) ClaimNotifications(ctx context.Context, workerID string, limit int, lease time.Duration) ([]models.NotificationOutbox, error) {
	return nil, nil
}
func (s *stubOutboxRepo) MarkDelivered(ctx context.Context, id uint) error { return nil }
func (s *stubOutboxRepo) MarkFailed(ctx context.Context, id uint, errMsg string) error { return nil }

func newTestEngine(repo *stubPositionsRepo, dispatcher Dispatcher, pricer positions.Pricer) *Engine {
	return newTestEngineWithOutbox(repo, dispatcher, pricer, nil)
}

func newTestEngineWithOutbox(repo *stubPositionsRepo, dispatcher Dispatcher, pricer positions.Pricer, outboxRepo *stubOutboxRepo) *Engine {
	pricingSvc := positions.NewService(repo, positions.NewRegistry(pricer, pricer), logger.NewLogger("test", nil))
	bus := eventbus.NewEventBus()
	var outbox repository.OutboxRepository
	if outboxRepo != nil {
		outbox = outboxRepo
	}
	return New(repo, &stubUsers{}, pricingSvc, dispatcher, nil, outbox, bus, logger.NewLogger("test", nil), time.Minute)
}

func TestSweep_SLBelowFloorDispatchesSell(t *testing.T) {
	p := models.Position{ID: 1, Mint: "mintA", PricingSource: models.PricingBondingCurve, EntryPrice: 1.0, SLPrice: 0.9, SizeTokens: 10, OpenedAt: time.Now()}
	repo := newStubPositionsRepo([]models.Position{p})
	dispatcher := &stubDispatcher{}
	engine := newTestEngine(repo, dispatcher, &stubPricer{price: decimal.NewFromFloat(0.8)})

	err := engine.Sweep(context.Background())

	require.NoError(t, err)
	assert.Equal(t, models.ExitSL, repo.triggered[1])
	assert.Equal(t, 1, dispatcher.calls)
	assert.Equal(t, 1, repo.completedCalls)
}

func TestSweep_NoConditionMetDoesNotDispatch(t *testing.T) {
	p := models.Position{ID: 2, Mint: "mintB", PricingSource: models.PricingBondingCurve, EntryPrice: 1.0, SLPrice: 0.5, TPPrice: 5.0, OpenedAt: time.Now()}
	repo := newStubPositionsRepo([]models.Position{p})
	dispatcher := &stubDispatcher{}
	engine := newTestEngine(repo, dispatcher, &stubPricer{price: decimal.NewFromFloat(1.1)})

	err := engine.Sweep(context.Background())

	require.NoError(t, err)
	assert.Equal(t, 0, dispatcher.calls)
	assert.NotContains(t, repo.triggered, uint(2))
}

func TestSweep_MaxHoldFires(t *testing.T) {
	p := models.Position{ID: 3, Mint: "mintC", PricingSource: models.PricingBondingCurve, EntryPrice: 1.0, SLPrice: 0.1, MaxHoldSeconds: 1, OpenedAt: time.Now().Add(-10 * time.Second)}
	repo := newStubPositionsRepo([]models.Position{p})
	dispatcher := &stubDispatcher{}
	engine := newTestEngine(repo, dispatcher, &stubPricer{price: decimal.NewFromFloat(1.0)})

	err := engine.Sweep(context.Background())

	require.NoError(t, err)
	assert.Equal(t, models.ExitMaxHold, repo.triggered[3])
}

func TestSweep_GraduationExitFiresOncePostGraduation(t *testing.T) {
	p := models.Position{ID: 4, Mint: "mintD", PricingSource: models.PricingAMMPool, LifecycleState: models.LifecyclePostGraduation, ExitOnGraduation: true, EntryPrice: 1.0, OpenedAt: time.Now()}
	repo := newStubPositionsRepo([]models.Position{p})
	dispatcher := &stubDispatcher{}
	engine := newTestEngine(repo, dispatcher, &stubPricer{price: decimal.NewFromFloat(1.0)})

	err := engine.Sweep(context.Background())

	require.NoError(t, err)
	assert.Equal(t, models.ExitGraduation, repo.triggered[4])

	require.NoError(t, engine.Sweep(context.Background()))
	assert.Equal(t, 1, dispatcher.calls)
}

func TestSweep_DispatchFailureMarksTriggerFailed(t *testing.T) {
	p := models.Position{ID: 5, Mint: "mintE", PricingSource: models.PricingBondingCurve, EntryPrice: 1.0, SLPrice: 0.9, SizeTokens: 10, OpenedAt: time.Now()}
	repo := newStubPositionsRepo([]models.Position{p})
	dispatcher := &stubDispatcher{err: assertError{}}
	engine := newTestEngine(repo, dispatcher, &stubPricer{price: decimal.NewFromFloat(0.8)})

	err := engine.Sweep(context.Background())

	require.NoError(t, err)
	assert.Equal(t, 1, repo.failedCalls)
	assert.Equal(t, 0, repo.completedCalls)
}

func TestSweep_DispatchFailureEnqueuesTriggerFailedNotification(t *testing.T) {
	p := models.Position{ID: 6, UserID: 42, Mint: "mintF", PricingSource: models.PricingBondingCurve, EntryPrice: 1.0, SLPrice: 0.9, SizeTokens: 10, OpenedAt: time.Now()}
	repo := newStubPositionsRepo([]models.Position{p})
	dispatcher := &stubDispatcher{err: assertError{}}
	outboxRepo := &stubOutboxRepo{}
	engine := newTestEngineWithOutbox(repo, dispatcher, &stubPricer{price: decimal.NewFromFloat(0.8)}, outboxRepo)

	err := engine.Sweep(context.Background())

	require.NoError(t, err)
	require.Len(t, outboxRepo.enqueued, 1)
	assert.Equal(t, "trigger_failed", outboxRepo.enqueued[0].Type)
	assert.Equal(t, uint(42), outboxRepo.enqueued[0].UserID)
}

type assertError struct{}

func (assertError) Error() string { return "broadcast failed" }

func TestReconcile_LogsStuckPositionsAndFailsThem(t *testing.T) {
	repo := newStubPositionsRepo(nil)
	repo.executing = []models.Position{{ID: 7, Mint: "mintG"}}
	engine := newTestEngine(repo, &stubDispatcher{}, &stubPricer{price: decimal.NewFromFloat(1.0)})

	err := engine.Reconcile(context.Background())

	require.NoError(t, err)
	assert.Equal(t, 1, repo.failedCalls)
}
