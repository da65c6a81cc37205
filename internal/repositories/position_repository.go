package repositories

import (
	"context"
	"fmt"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"raptor/internal/models"
	"raptor/internal/raptorerr"
)

// PositionRepository owns the Position lifecycle and trigger state machine persistence
// (spec.md §4.H, §4.I, §4.J).
type PositionRepository struct {
	db *gorm.DB
}

func NewPositionRepository(db *gorm.DB) *PositionRepository {
	return &PositionRepository{db: db}
}

// Create writes the Position row and, once it has an ID, the outbox notification
// buildNotification derives from it — both inside one transaction so a crash between the
// two can never drop the user-facing notification (spec.md §4.D step 10, §4.K).
func (r *PositionRepository) Create(ctx context.Context, p *models.Position, buildNotification func(*models.Position) *models.NotificationOutbox) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(p).Error; err != nil {
			return err
		}
		if buildNotification == nil {
			return nil
		}
		notification := buildNotification(p)
		if notification == nil {
			return nil
		}
		return tx.Create(notification).Error
	})
}

func (r *PositionRepository) Get(ctx context.Context, id uint) (*models.Position, error) {
	var p models.Position
	if err := r.db.WithContext(ctx).First(&p, id).Error; err != nil {
		return nil, err
	}
	return &p, nil
}

func (r *PositionRepository) ListMonitored(ctx context.Context) ([]models.Position, error) {
	var positions []models.Position
	err := r.db.WithContext(ctx).
		Where("lifecycle_state != ? AND trigger_state = ?", models.LifecycleClosed, models.TriggerMonitoring).
		Find(&positions).Error
	return positions, err
}

// ListPreGraduationMints returns the deduplicated mint set the Graduation Monitor polls
// (spec.md §4.J): every distinct mint still carrying at least one PRE_GRADUATION position.
func (r *PositionRepository) ListPreGraduationMints(ctx context.Context) ([]string, error) {
	var mints []string
	err := r.db.WithContext(ctx).Model(&models.Position{}).
		Where("lifecycle_state = ?", models.LifecyclePreGraduation).
		Distinct("mint").
		Pluck("mint", &mints).Error
	return mints, err
}

func (r *PositionRepository) UpdatePricing(ctx context.Context, id uint, currentPrice, peakPrice float64, at time.Time) error {
	return r.db.WithContext(ctx).Model(&models.Position{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"current_price":    currentPrice,
			"peak_price":       peakPrice,
			"price_updated_at": at,
		}).Error
}

// CloseFromSell finalizes a position after its exit Execution confirms: sets exit
// fields, realized PnL, trigger_state=COMPLETED, lifecycle_state=CLOSED, and inserts the
// position_closed outbox notification, all in one transaction so a crash midway can
// neither leave a closed position pointing at an unconfirmed fill nor drop the
// notification (spec.md §4.D step 9-10, §4.K). notification may be nil to skip it.
func (r *PositionRepository) CloseFromSell(ctx context.Context, id uint, exec *models.Execution, exitTrigger models.ExitTrigger, notification *models.NotificationOutbox) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var p models.Position
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).First(&p, id).Error; err != nil {
			return err
		}

		exitPrice := 0.0
		if exec.PricePerToken != nil {
			exitPrice = *exec.PricePerToken
		}
		exitValue := 0.0
		if exec.FilledAmountSOL != nil {
			exitValue = *exec.FilledAmountSOL
		}

		realizedPnL := exitValue - p.EntryCostSOL
		realizedPnLPct := 0.0
		if p.EntryCostSOL != 0 {
			realizedPnLPct = realizedPnL / p.EntryCostSOL * 100
		}

		now := time.Now()
		if err := tx.Model(&p).Updates(map[string]interface{}{
			"lifecycle_state":   models.LifecycleClosed,
			"trigger_state":     models.TriggerCompleted,
			"exit_price":        exitPrice,
			"exit_value_sol":    exitValue,
			"exit_trigger":      exitTrigger,
			"realized_pnl_sol":  realizedPnL,
			"realized_pnl_pct":  realizedPnLPct,
			"exit_execution_id": exec.ID,
			"closed_at":         now,
		}).Error; err != nil {
			return err
		}
		if notification == nil {
			return nil
		}
		return tx.Create(notification).Error
	})
}

// TriggerExitAtomically is the spec.md §4.I step 4 RPC: a single row-locked UPDATE that
// only one concurrent sweeper can win, linearizing MONITORING -> TRIGGERED.
func (r *PositionRepository) TriggerExitAtomically(ctx context.Context, positionID uint, trigger models.ExitTrigger, price float64) (bool, string, error) {
	var triggered bool
	var reason string

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var p models.Position
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).First(&p, positionID).Error; err != nil {
			return err
		}

		if p.LifecycleState == models.LifecycleClosed {
			reason = "position_already_closed"
			return nil
		}
		if !models.ValidTriggerTransition(p.TriggerState, models.TriggerTriggered, false) {
			reason = fmt.Sprintf("invalid_transition_from_%s", p.TriggerState)
			return nil
		}

		res := tx.Model(&p).Updates(map[string]interface{}{
			"trigger_state": models.TriggerTriggered,
			"trigger_price": price,
		})
		if res.Error != nil {
			return res.Error
		}
		triggered = true
		return nil
	})
	if err != nil {
		return false, "", err
	}
	return triggered, reason, nil
}

func (r *PositionRepository) MarkPositionExecuting(ctx context.Context, positionID uint) error {
	return r.transitionTrigger(ctx, positionID, models.TriggerTriggered, models.TriggerExecuting, false, nil)
}

func (r *PositionRepository) MarkTriggerCompleted(ctx context.Context, positionID uint, exitExecutionID uint) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var p models.Position
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).First(&p, positionID).Error; err != nil {
			return err
		}
		if !models.ValidTriggerTransition(p.TriggerState, models.TriggerCompleted, false) {
			return raptorerr.New(raptorerr.CodeTriggerStateMismatch, fmt.Sprintf("cannot complete trigger from %s", p.TriggerState))
		}
		return tx.Model(&p).Updates(map[string]interface{}{
			"trigger_state":     models.TriggerCompleted,
			"exit_execution_id": exitExecutionID,
		}).Error
	})
}

func (r *PositionRepository) MarkTriggerFailed(ctx context.Context, positionID uint, errMsg string) error {
	return r.transitionTrigger(ctx, positionID, models.TriggerExecuting, models.TriggerFailed, false, &errMsg)
}

// ReArmTrigger is the manual/emergency-only FAILED->MONITORING path (spec.md §3).
func (r *PositionRepository) ReArmTrigger(ctx context.Context, positionID uint) error {
	return r.transitionTrigger(ctx, positionID, models.TriggerFailed, models.TriggerMonitoring, true, nil)
}

func (r *PositionRepository) transitionTrigger(ctx context.Context, positionID uint, from, to models.TriggerState, isManualOrEmergency bool, errMsg *string) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var p models.Position
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).First(&p, positionID).Error; err != nil {
			return err
		}
		if p.TriggerState != from || !models.ValidTriggerTransition(p.TriggerState, to, isManualOrEmergency) {
			return raptorerr.New(raptorerr.CodeTriggerStateMismatch, fmt.Sprintf("cannot move trigger from %s to %s", p.TriggerState, to))
		}
		updates := map[string]interface{}{"trigger_state": to}
		if errMsg != nil {
			updates["trigger_error"] = *errMsg
		} else if to == models.TriggerMonitoring {
			updates["trigger_error"] = ""
		}
		return tx.Model(&p).Updates(updates).Error
	})
}

// GraduateAllPositionsForMint is the spec.md §4.J bulk RPC: every still-open position
// on mint flips PRE_GRADUATION -> POST_GRADUATION and its pricing source follows
// (spec.md §8 invariant 1), in one statement so partial graduation can't happen.
func (r *PositionRepository) GraduateAllPositionsForMint(ctx context.Context, mint string) (int, error) {
	res := r.db.WithContext(ctx).Model(&models.Position{}).
		Where("mint = ? AND lifecycle_state = ?", mint, models.LifecyclePreGraduation).
		Updates(map[string]interface{}{
			"lifecycle_state": models.LifecyclePostGraduation,
			"pricing_source":  models.PricingAMMPool,
		})
	if res.Error != nil {
		return 0, res.Error
	}
	return int(res.RowsAffected), nil
}

// ListExecuting returns positions stuck in EXECUTING longer than olderThan, for the
// startup reconciliation sweep (spec.md §5 "crash recovery").
func (r *PositionRepository) ListExecuting(ctx context.Context, olderThan time.Duration) ([]models.Position, error) {
	var positions []models.Position
	err := r.db.WithContext(ctx).
		Where("trigger_state = ? AND updated_at < ?", models.TriggerExecuting, time.Now().Add(-olderThan)).
		Find(&positions).Error
	return positions, err
}
