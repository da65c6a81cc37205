package repositories

import (
	"context"
	"encoding/json"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"gorm.io/gorm"

	"raptor/internal/models"
)

// OutboxRepository is the Notification Outbox's persistence boundary (spec.md §4.K).
// Enqueue goes through the same *gorm.DB as the rest of the store so it can share a
// transaction with the domain write it announces; ClaimNotifications needs
// `FOR UPDATE SKIP LOCKED` semantics gorm's query builder can't express, so it runs
// straight against a pgx pool instead.
type OutboxRepository struct {
	db   *gorm.DB
	pool *pgxpool.Pool
}

func NewOutboxRepository(db *gorm.DB, pool *pgxpool.Pool) *OutboxRepository {
	return &OutboxRepository{db: db, pool: pool}
}

func (r *OutboxRepository) Enqueue(ctx context.Context, row *models.NotificationOutbox) error {
	return r.db.WithContext(ctx).Create(row).Error
}

// ClaimNotifications leases up to limit pending/expired-sending rows to workerID for
// lease, using SKIP LOCKED so concurrent outbox workers never block on each other or
// double-claim the same row (spec.md §4.K).
func (r *OutboxRepository) ClaimNotifications(ctx context.Context, workerID string, limit int, lease time.Duration) ([]models.NotificationOutbox, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	rows, err := tx.Query(ctx, `
		SELECT id, user_id, type, payload, status, attempts, max_attempts,
		       sending_expires_at, worker_id, last_error, created_at, updated_at
		FROM notifications_outbox
		WHERE status = 'pending'
		   OR (status = 'sending' AND sending_expires_at < now())
		ORDER BY created_at ASC
		LIMIT $1
		FOR UPDATE SKIP LOCKED
	`, limit)
	if err != nil {
		return nil, err
	}

	var claimed []models.NotificationOutbox
	var ids []uint
	for rows.Next() {
		var n models.NotificationOutbox
		var payloadBytes []byte
		if err := rows.Scan(&n.ID, &n.UserID, &n.Type, &payloadBytes, &n.Status, &n.Attempts,
			&n.MaxAttempts, &n.SendingExpiresAt, &n.WorkerID, &n.LastError, &n.CreatedAt, &n.UpdatedAt); err != nil {
			rows.Close()
			return nil, err
		}
		if len(payloadBytes) > 0 {
			_ = json.Unmarshal(payloadBytes, &n.Payload)
		}
		claimed = append(claimed, n)
		ids = append(ids, n.ID)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(ids) == 0 {
		return nil, tx.Commit(ctx)
	}

	expires := time.Now().Add(lease)
	_, err = tx.Exec(ctx, `
		UPDATE notifications_outbox
		SET status = 'sending', worker_id = $1, sending_expires_at = $2, attempts = attempts + 1
		WHERE id = ANY($3)
	`, workerID, expires, ids)
	if err != nil {
		return nil, err
	}

	for i := range claimed {
		claimed[i].Status = models.OutboxSending
		claimed[i].WorkerID = workerID
		claimed[i].SendingExpiresAt = &expires
		claimed[i].Attempts++
	}

	return claimed, tx.Commit(ctx)
}

func (r *OutboxRepository) MarkDelivered(ctx context.Context, id uint) error {
	return r.db.WithContext(ctx).Model(&models.NotificationOutbox{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{"status": models.OutboxSent}).Error
}

// MarkFailed records the error and either releases the lease for another attempt or
// marks the row permanently failed once max_attempts is exhausted.
func (r *OutboxRepository) MarkFailed(ctx context.Context, id uint, errMsg string) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var n models.NotificationOutbox
		if err := tx.First(&n, id).Error; err != nil {
			return err
		}

		status := models.OutboxPending
		if n.Attempts >= n.MaxAttempts {
			status = models.OutboxFailed
		}

		return tx.Model(&n).Updates(map[string]interface{}{
			"status":     status,
			"last_error": errMsg,
		}).Error
	})
}
