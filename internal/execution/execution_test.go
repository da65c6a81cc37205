package execution

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"raptor/internal/eventbus"
	"raptor/internal/interfaces/repository"
	"raptor/internal/logger"
	"raptor/internal/models"
)

type stubExecRepo struct {
	stale         []models.Execution
	updates       map[uint]models.ExecutionStatus
	updateFields  map[uint]repository.ExecutionUpdate
	reserveErr    error
	reserveReplay bool
	reservedExec  *models.Execution
}

func (s *stubExecRepo) ReserveTradeBudget(ctx context.Context, intent repository.TradeIntent) (*models.Execution, bool, error) {
	return s.reservedExec, s.reserveReplay, s.reserveErr
}
func (s *stubExecRepo) UpdateStatus(ctx context.Context, id uint, status models.ExecutionStatus, fields repository.ExecutionUpdate) error {
	if s.updates == nil {
		s.updates = map[uint]models.ExecutionStatus{}
		s.updateFields = map[uint]repository.ExecutionUpdate{}
	}
	s.updates[id] = status
	s.updateFields[id] = fields
	return nil
}
func (s *stubExecRepo) GetByIdempotencyKey(ctx context.Context, key string) (*models.Execution, error) {
	return nil, nil
}
func (s *stubExecRepo) ListStale(ctx context.Context, olderThan time.Duration) ([]models.Execution, error) {
	return s.stale, nil
}

type stubBus struct {
	published []string
}

func (b *stubBus) Publish(topic string, data interface{}) error {
	b.published = append(b.published, topic)
	return nil
}
func (b *stubBus) Subscribe(topic string, handler func([]byte)) {}
func (b *stubBus) Close() error                                 { return nil }
func (b *stubBus) GetSubscriberCount(topic string) int           { return 0 }
func (b *stubBus) Health() map[string]interface{}                { return nil }

var _ eventbus.EventBusInterface = (*stubBus)(nil)

func TestSlippageFloor_SlippageDominates(t *testing.T) {
	expected := decimal.NewFromInt(1000)
	// 500 bps (5%) slippage leaves 950, well above the 1% MEV floor of 10.
	got := slippageFloor(expected, 500)
	want := decimal.NewFromInt(950)
	assert.True(t, got.Equal(want), "got %s want %s", got, want)
}

func TestSlippageFloor_MEVFloorDominates(t *testing.T) {
	expected := decimal.NewFromInt(1000)
	// At the max 5000 bps slippage, the raw formula would allow output down to 500, but
	// the 1% MEV floor (10) is lower, so slippage still wins here; use a slippage value
	// that actually drops below the floor to exercise the max().
	got := slippageFloor(expected, 9990)
	floor := decimal.NewFromInt(10) // 1% of 1000
	assert.True(t, got.Equal(floor), "got %s want floor %s", got, floor)
}

func TestValidate_RejectsBadSlippage(t *testing.T) {
	e := &Engine{}
	intent := Intent{
		Mint:           "So11111111111111111111111111111111111111112",
		Amount:         decimal.NewFromInt(1),
		SlippageBps:    1,
		IdempotencyKey: "buy:1:mint",
	}
	err := e.validate(intent)
	require.Error(t, err)
}

func TestValidate_RejectsMissingIdempotencyKey(t *testing.T) {
	e := &Engine{}
	intent := Intent{
		Mint:        "So11111111111111111111111111111111111111112",
		Amount:      decimal.NewFromInt(1),
		SlippageBps: 100,
	}
	err := e.validate(intent)
	require.Error(t, err)
}

func TestValidate_AcceptsWellFormedIntent(t *testing.T) {
	e := &Engine{}
	intent := Intent{
		Mint:           "So11111111111111111111111111111111111111112",
		Amount:         decimal.NewFromInt(1),
		SlippageBps:    100,
		IdempotencyKey: "buy:1:mint",
	}
	require.NoError(t, e.validate(intent))
}

// TestReconcile_MarksStaleExecutionsFailed covers the spec.md §5 startup sweep: rows
// stuck in pending/sent past the confirmation timeout are marked failed and an
// execution_completed event fires for each, so a stuck row never silently blocks forever.
func TestReconcile_MarksStaleExecutionsFailed(t *testing.T) {
	execRepo := &stubExecRepo{
		stale: []models.Execution{
			{ID: 1, UserID: 9, Mint: "Mint1", Side: models.SideBuy, Status: models.ExecPending},
			{ID: 2, UserID: 9, Mint: "Mint2", Side: models.SideSell, Status: models.ExecSent},
		},
	}
	bus := &stubBus{}
	e := New(nil, execRepo, nil, nil, nil, nil, bus, logger.NewLogger("execution-test", nil))

	require.NoError(t, e.Reconcile(context.Background()))

	assert.Equal(t, models.ExecFailed, execRepo.updates[1])
	assert.Equal(t, models.ExecFailed, execRepo.updates[2])
	assert.Len(t, bus.published, 2)
	assert.Equal(t, eventbus.EventTypeExecutionCompleted, bus.published[0])
}
