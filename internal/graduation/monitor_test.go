package graduation

import (
	"context"
	"testing"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"raptor/internal/eventbus"
	"raptor/internal/logger"
	"raptor/internal/models"
)

type stubPositionsRepo struct {
	mints      []string
	graduated  map[string]int
	graduateCalls int
}

func (s *stubPositionsRepo) Create(ctx context.Context, p *models.Position, buildNotification func(*models.Position) *models.NotificationOutbox) error {
	return nil
}
func (s *stubPositionsRepo) Get(ctx context.Context, id uint) (*models.Position, error) {
	return nil, nil
}
func (s *stubPositionsRepo) ListMonitored(ctx context.Context) ([]models.Position, error) {
	return nil, nil
}
func (s *stubPositionsRepo) ListPreGraduationMints(ctx context.Context) ([]string, error) {
	return s.mints, nil
}
func (s *stubPositionsRepo) UpdatePricing(ctx context.Context, id uint, currentPrice, peakPrice float64, at time.Time) error {
	return nil
}
func (s *stubPositionsRepo) CloseFromSell(ctx context.Context, id uint, exec *models.Execution, exitTrigger models.ExitTrigger, notification *models.NotificationOutbox) error {
	return nil
}
func (s *stubPositionsRepo) TriggerExitAtomically(ctx context.Context, positionID uint, trigger models.ExitTrigger, price float64) (bool, string, error) {
	return false, "", nil
}
func (s *stubPositionsRepo) MarkPositionExecuting(ctx context.Context, positionID uint) error { return nil }
func (s *stubPositionsRepo) MarkTriggerCompleted(ctx context.Context, positionID uint, exitExecutionID uint) error {
	return nil
}
func (s *stubPositionsRepo) MarkTriggerFailed(ctx context.Context, positionID uint, errMsg string) error {
	return nil
}
func (s *stubPositionsRepo) ReArmTrigger(ctx context.Context, positionID uint) error { return nil }
func (s *stubPositionsRepo) GraduateAllPositionsForMint(ctx context.Context, mint string) (int, error) {
	s.graduateCalls++
	return s.graduated[mint], nil
}
func (s *stubPositionsRepo) ListExecuting(ctx context.Context, olderThan time.Duration) ([]models.Position, error) {
	return nil, nil
}

type stubCurveChecker struct {
	graduated map[string]bool
}

func (c *stubCurveChecker) IsGraduated(ctx context.Context, mint solana.PublicKey) (bool, error) {
	return c.graduated[mint.String()], nil
}

type recordingBus struct {
	published []string
}

func (b *recordingBus) Publish(topic string, data interface{}) error {
	b.published = append(b.published, topic)
	return nil
}
func (b *recordingBus) Subscribe(topic string, handler func([]byte)) {}
func (b *recordingBus) Close() error                                 { return nil }
func (b *recordingBus) GetSubscriberCount(topic string) int           { return 0 }
func (b *recordingBus) Health() map[string]interface{}                { return nil }

const mintA = "So11111111111111111111111111111111111111112"
const mintB = "11111111111111111111111111111111111111112"

func TestPoll_GraduatesCompletedCurve(t *testing.T) {
	repo := &stubPositionsRepo{mints: []string{mintA}, graduated: map[string]int{mintA: 2}}
	checker := &stubCurveChecker{graduated: map[string]bool{mintA: true}}
	monitor := New(repo, checker, eventbus.NewEventBus(), logger.NewLogger("test", nil))

	err := monitor.Poll(context.Background())

	require.NoError(t, err)
	assert.Equal(t, 1, repo.graduateCalls)
}

func TestPoll_SkipsMintStillOnCurve(t *testing.T) {
	repo := &stubPositionsRepo{mints: []string{mintB}}
	checker := &stubCurveChecker{graduated: map[string]bool{mintB: false}}
	monitor := New(repo, checker, eventbus.NewEventBus(), logger.NewLogger("test", nil))

	err := monitor.Poll(context.Background())

	require.NoError(t, err)
	assert.Equal(t, 0, repo.graduateCalls)
}

func TestPoll_NoPositionsMovedSkipsEventPublish(t *testing.T) {
	repo := &stubPositionsRepo{mints: []string{mintA}, graduated: map[string]int{mintA: 0}}
	checker := &stubCurveChecker{graduated: map[string]bool{mintA: true}}
	bus := &recordingBus{}
	monitor := New(repo, checker, bus, logger.NewLogger("test", nil))

	err := monitor.Poll(context.Background())

	require.NoError(t, err)
	assert.Equal(t, 1, repo.graduateCalls)
	assert.Empty(t, bus.published)
}
