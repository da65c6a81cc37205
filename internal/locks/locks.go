// Package locks implements the cross-instance re-entrancy guard that execute_trade
// takes before touching a (user, mint) pair (spec.md §4.D step 2, §5 "Trade lock").
// The lock row lives in Postgres rather than in-process so any of several RAPTOR
// instances agree on who currently holds it.
package locks

import (
	"context"
	"fmt"
	"time"

	"gorm.io/gorm"

	"raptor/internal/models"
)

// Repository backs repository.LockRepository against the trade_locks table.
type Repository struct {
	db *gorm.DB
}

func New(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// Acquire takes the lock for lockKey, stealing it from a prior holder only once that
// holder's lease has expired (created_at older than ttl ago). A fresh INSERT and a
// stale-steal both count as acquired; a live lock held by anyone else does not.
func (r *Repository) Acquire(ctx context.Context, lockKey, operation, instanceID string, ttl time.Duration) (bool, error) {
	res := r.db.WithContext(ctx).Exec(`
		INSERT INTO trade_locks (lock_key, operation, instance_id, created_at)
		VALUES (?, ?, ?, now())
		ON CONFLICT (lock_key) DO UPDATE SET
			operation = EXCLUDED.operation,
			instance_id = EXCLUDED.instance_id,
			created_at = EXCLUDED.created_at
		WHERE trade_locks.created_at < now() - ?::interval
	`, lockKey, operation, instanceID, fmt.Sprintf("%d milliseconds", ttl.Milliseconds()))
	if res.Error != nil {
		return false, res.Error
	}
	// With ON CONFLICT DO UPDATE ... WHERE, zero rows affected only happens when the
	// conflicting row exists and its lease is still live — anything else reports 1.
	return res.RowsAffected > 0, nil
}

// Release drops the lock only if instanceID still owns it, so a caller whose lease
// already expired and was stolen can't release someone else's active lock.
func (r *Repository) Release(ctx context.Context, lockKey, instanceID string) error {
	return r.db.WithContext(ctx).
		Where("lock_key = ? AND instance_id = ?", lockKey, instanceID).
		Delete(&models.TradeLock{}).Error
}

// Key builds the canonical (user, mint) lock key used across execute_trade call sites.
func Key(userID uint, mint string) string {
	return fmt.Sprintf("trade:%d:%s", userID, mint)
}
