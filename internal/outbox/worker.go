// Package outbox implements the Notification Outbox consumer (spec.md §4.K): a
// lease-based worker loop that claims rows via SKIP LOCKED and delivers them through an
// external sink, with graceful shutdown leaving in-flight leases to expire and be
// re-claimed rather than losing them.
package outbox

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"raptor/internal/interfaces/repository"
	"raptor/internal/logger"
	"raptor/internal/models"
)

// NotificationSink delivers one claimed notification to its user. Grounded in the
// teacher pack's Telegram notification service (yohannesjx-sniperterminal's
// NotificationService.Notify), generalized to any per-user payload type.
type NotificationSink interface {
	Deliver(ctx context.Context, userID uint, notifType string, payload models.JSONB) error
}

// LoggingSink is the fallback sink used when no external transport (Telegram, API) is
// configured: it still drains the lease queue and records delivery attempts in the logs
// rather than leaving rows stuck pending forever.
type LoggingSink struct {
	log *logger.Logger
}

func NewLoggingSink(log *logger.Logger) *LoggingSink {
	return &LoggingSink{log: log}
}

func (s *LoggingSink) Deliver(ctx context.Context, userID uint, notifType string, payload models.JSONB) error {
	s.log.Info("notification delivered via logging fallback sink", "user_id", userID, "type", notifType)
	return nil
}

const (
	defaultLimit = 20
	defaultLease = 30 * time.Second
)

// Worker is one Notification Outbox delivery worker. Multiple Workers across multiple
// instances share the claim queue safely via the store's SKIP LOCKED leasing.
type Worker struct {
	outbox   repository.OutboxRepository
	sink     NotificationSink
	log      *logger.Logger
	id       string
	limit    int
	lease    time.Duration
	interval time.Duration
}

func New(outbox repository.OutboxRepository, sink NotificationSink, log *logger.Logger, interval time.Duration) *Worker {
	if interval <= 0 {
		interval = 2 * time.Second
	}
	return &Worker{
		outbox:   outbox,
		sink:     sink,
		log:      log,
		id:       uuid.NewString(),
		limit:    defaultLimit,
		lease:    defaultLease,
		interval: interval,
	}
}

// Run loops claim-deliver-ack until ctx is canceled (spec.md §4.K step 3: "Workers exit
// cleanly on shutdown signal; in-flight rows expire and are re-claimed"). A row claimed
// right before cancellation is simply left mid-lease; the next worker to poll after the
// lease expires picks it back up.
func (w *Worker) Run(ctx context.Context) {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := w.runOnce(ctx); err != nil {
				w.log.Warn("outbox worker pass failed", "worker_id", w.id, "error", err.Error())
			}
		}
	}
}

func (w *Worker) runOnce(ctx context.Context) error {
	claimed, err := w.outbox.ClaimNotifications(ctx, w.id, w.limit, w.lease)
	if err != nil {
		return fmt.Errorf("claim notifications: %w", err)
	}

	for _, n := range claimed {
		if err := w.sink.Deliver(ctx, n.UserID, n.Type, n.Payload); err != nil {
			if markErr := w.outbox.MarkFailed(ctx, n.ID, err.Error()); markErr != nil {
				w.log.Warn("failed to record outbox delivery failure", "notification_id", n.ID, "error", markErr.Error())
			}
			continue
		}
		if err := w.outbox.MarkDelivered(ctx, n.ID); err != nil {
			w.log.Warn("failed to mark notification delivered", "notification_id", n.ID, "error", err.Error())
		}
	}
	return nil
}
