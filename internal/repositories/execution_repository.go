package repositories

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"raptor/internal/interfaces/repository"
	"raptor/internal/models"
	"raptor/internal/raptorerr"
)

// ExecutionRepository is the Execution Engine's persistence boundary (spec.md §4.D).
type ExecutionRepository struct {
	db *gorm.DB
}

func NewExecutionRepository(db *gorm.DB) *ExecutionRepository {
	return &ExecutionRepository{db: db}
}

// ReserveTradeBudget is the spec.md §4.D step 3 RPC. It checks the budget knobs the
// store holds: kill-switch, max-positions (buys only), and trades-per-hour. Wallet
// balance is not checked, here or by the Execution Engine before this call.
func (r *ExecutionRepository) ReserveTradeBudget(ctx context.Context, intent repository.TradeIntent) (*models.Execution, bool, error) {
	var exec *models.Execution
	var replayed bool

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var existing models.Execution
		err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("idempotency_key = ?", intent.IdempotencyKey).
			First(&existing).Error
		switch {
		case err == nil:
			switch existing.Status {
			case models.ExecPending, models.ExecSent, models.ExecConfirmed:
				exec = &existing
				replayed = true
				return nil
			case models.ExecFailed:
				if !intent.AllowRetry {
					return raptorerr.New(raptorerr.CodeAlreadyExecuted, "execution already failed for this idempotency key")
				}
				if err := tx.Delete(&existing).Error; err != nil {
					return err
				}
			}
		case !errors.Is(err, gorm.ErrRecordNotFound):
			return err
		}

		var settings models.Settings
		err = tx.Where("user_id = ?", intent.UserID).First(&settings).Error
		if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
			return err
		}
		if settings.KillSwitch {
			return raptorerr.New(raptorerr.CodeKillSwitch, "kill switch active for user")
		}

		maxPositions := settings.MaxPositions
		if maxPositions == 0 {
			maxPositions = 5
		}
		var openPositions int64
		err = tx.Model(&models.Position{}).
			Where("user_id = ? AND lifecycle_state != ?", intent.UserID, models.LifecycleClosed).
			Count(&openPositions).Error
		if err != nil {
			return err
		}
		if intent.Side == models.SideBuy && int(openPositions) >= maxPositions {
			return raptorerr.New(raptorerr.CodeMaxPositionsReached, "max open positions reached")
		}

		maxPerHour := settings.MaxTradesPerHour
		if maxPerHour == 0 {
			maxPerHour = 20
		}
		var tradesLastHour int64
		err = tx.Model(&models.Execution{}).
			Where("user_id = ? AND created_at > ?", intent.UserID, time.Now().Add(-time.Hour)).
			Count(&tradesLastHour).Error
		if err != nil {
			return err
		}
		if int(tradesLastHour) >= maxPerHour {
			return raptorerr.New(raptorerr.CodeRateLimit, "trades-per-hour limit reached")
		}

		requested := intent.RequestedAmount
		newExec := &models.Execution{
			IdempotencyKey: intent.IdempotencyKey,
			UserID:         intent.UserID,
			PositionID:     intent.PositionID,
			Mint:           intent.Mint,
			Side:           intent.Side,
			SlippageBps:    intent.SlippageBps,
			Status:         models.ExecPending,
			CreatedAt:      time.Now(),
		}
		if intent.Side == models.SideBuy {
			newExec.RequestedAmountSOL = &requested
		} else {
			newExec.RequestedAmountTokens = &requested
		}

		if err := tx.Create(newExec).Error; err != nil {
			return err
		}
		exec = newExec
		return nil
	})
	if err != nil {
		return nil, false, err
	}
	return exec, replayed, nil
}

func (r *ExecutionRepository) UpdateStatus(ctx context.Context, id uint, status models.ExecutionStatus, fields repository.ExecutionUpdate) error {
	updates := map[string]interface{}{"status": status}

	if fields.FilledTokens != nil {
		updates["filled_tokens"] = *fields.FilledTokens
	}
	if fields.FilledAmountSOL != nil {
		updates["filled_amount_sol"] = *fields.FilledAmountSOL
	}
	if fields.PricePerToken != nil {
		updates["price_per_token"] = *fields.PricePerToken
	}
	if fields.Signature != nil {
		updates["signature"] = *fields.Signature
	}
	if fields.RouterUsed != "" {
		updates["router_used"] = fields.RouterUsed
	}
	if fields.QuoteResponse != "" {
		updates["quote_response"] = models.JSONB{"raw": fields.QuoteResponse}
	}
	if fields.ErrorCode != "" {
		updates["error_code"] = fields.ErrorCode
	}
	if fields.ErrorDetail != "" {
		updates["error_detail"] = fields.ErrorDetail
	}

	switch status {
	case models.ExecSent:
		updates["sent_at"] = time.Now()
	case models.ExecConfirmed, models.ExecFailed:
		updates["confirmed_at"] = time.Now()
	}

	return r.db.WithContext(ctx).Model(&models.Execution{}).Where("id = ?", id).Updates(updates).Error
}

func (r *ExecutionRepository) GetByIdempotencyKey(ctx context.Context, key string) (*models.Execution, error) {
	var exec models.Execution
	if err := r.db.WithContext(ctx).Where("idempotency_key = ?", key).First(&exec).Error; err != nil {
		return nil, err
	}
	return &exec, nil
}

func (r *ExecutionRepository) ListStale(ctx context.Context, olderThan time.Duration) ([]models.Execution, error) {
	var out []models.Execution
	err := r.db.WithContext(ctx).
		Where("status IN ? AND created_at < ?", []models.ExecutionStatus{models.ExecPending, models.ExecSent}, time.Now().Add(-olderThan)).
		Find(&out).Error
	return out, err
}
