package outbox

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"raptor/internal/logger"
	"raptor/internal/models"
)

type stubOutboxRepo struct {
	claimable  []models.NotificationOutbox
	delivered  []uint
	failed     map[uint]string
	claimCalls int
}

func newStubOutboxRepo(claimable []models.NotificationOutbox) *stubOutboxRepo {
	return &stubOutboxRepo{claimable: claimable, failed: map[uint]string{}}
}

func (s *stubOutboxRepo) Enqueue(ctx context.Context, row *models.NotificationOutbox) error {
	return nil
}
func (s *stubOutboxRepo) ClaimNotifications(ctx context.Context, workerID string, limit int, lease time.Duration) ([]models.NotificationOutbox, error) {
	s.claimCalls++
	claimed := s.claimable
	s.claimable = nil
	return claimed, nil
}
func (s *stubOutboxRepo) MarkDelivered(ctx context.Context, id uint) error {
	s.delivered = append(s.delivered, id)
	return nil
}
func (s *stubOutboxRepo) MarkFailed(ctx context.Context, id uint, errMsg string) error {
	s.failed[id] = errMsg
	return nil
}

type stubSink struct {
	failMint string
}

func (s *stubSink) Deliver(ctx context.Context, userID uint, notifType string, payload models.JSONB) error {
	if mint, _ := payload["mint"].(string); mint == s.failMint {
		return errors.New("telegram send failed")
	}
	return nil
}

func TestRunOnce_DeliversAndMarksClaimedRows(t *testing.T) {
	repo := newStubOutboxRepo([]models.NotificationOutbox{
		{ID: 1, UserID: 5, Type: "position_opened", Payload: models.JSONB{"mint": "mintA"}},
		{ID: 2, UserID: 5, Type: "position_closed", Payload: models.JSONB{"mint": "mintB"}},
	})
	worker := New(repo, &stubSink{}, logger.NewLogger("test", nil), time.Second)

	err := worker.runOnce(context.Background())

	require.NoError(t, err)
	assert.ElementsMatch(t, []uint{1, 2}, repo.delivered)
	assert.Empty(t, repo.failed)
}

func TestRunOnce_DeliveryFailureMarksFailedNotDelivered(t *testing.T) {
	repo := newStubOutboxRepo([]models.NotificationOutbox{
		{ID: 3, UserID: 5, Type: "position_opened", Payload: models.JSONB{"mint": "bad"}},
	})
	worker := New(repo, &stubSink{failMint: "bad"}, logger.NewLogger("test", nil), time.Second)

	err := worker.runOnce(context.Background())

	require.NoError(t, err)
	assert.Empty(t, repo.delivered)
	assert.Contains(t, repo.failed, uint(3))
}

func TestRunOnce_NoClaimedRowsIsNoop(t *testing.T) {
	repo := newStubOutboxRepo(nil)
	worker := New(repo, &stubSink{}, logger.NewLogger("test", nil), time.Second)

	err := worker.runOnce(context.Background())

	require.NoError(t, err)
	assert.Equal(t, 1, repo.claimCalls)
}
