package execution

import (
	"context"
	"time"

	"raptor/internal/models"
	"raptor/internal/raptorerr"
)

// persist is spec.md §4.D steps 9-10: open or close the Position row and enqueue the
// matching notification, both derived from the confirmed fill and written in the same
// DB transaction (spec.md §4.K), via the posRepo methods below.
func (e *Engine) persist(ctx context.Context, intent Intent, exec *models.Execution, fill fillResult) error {
	switch intent.Side {
	case models.SideBuy:
		return e.persistBuy(ctx, intent, exec, fill)
	case models.SideSell:
		return e.persistSell(ctx, intent, exec)
	default:
		return raptorerr.New(raptorerr.CodeInvalidInput, "unknown side in persist")
	}
}

func (e *Engine) persistBuy(ctx context.Context, intent Intent, exec *models.Execution, fill fillResult) error {
	now := time.Now()
	tpPrice := fill.pricePerToken * (1 + intent.TPPercent/100)
	slPrice := fill.pricePerToken * (1 - intent.SLPercent/100)

	position := &models.Position{
		UserID:                intent.UserID,
		WalletID:              intent.WalletID,
		Mint:                  intent.Mint,
		LifecycleState:        models.LifecyclePreGraduation,
		PricingSource:         models.PricingBondingCurve,
		EntryPrice:            fill.pricePerToken,
		EntryCostSOL:          fill.filledSOL,
		SizeTokens:            fill.filledTokens,
		CurrentPrice:          fill.pricePerToken,
		PeakPrice:             fill.pricePerToken,
		TPPrice:               tpPrice,
		SLPrice:               slPrice,
		TrailingActivationPct: intent.TrailingActivationPct,
		TrailingDistancePct:   intent.TrailingDistancePct,
		MaxHoldSeconds:        intent.MaxHoldSeconds,
		ExitOnGraduation:      intent.ExitOnGraduation,
		TriggerState:          models.TriggerMonitoring,
		OpenedAt:              now,
		LaunchCandidateID:     intent.LaunchCandidateID,
		EntryExecutionID:      exec.ID,
		BondingCurve:          intent.BondingCurve,
	}

	// buildNotification runs inside the same transaction as the insert above, after
	// gorm has populated p.ID, so the notification's payload can reference it without a
	// second round trip (spec.md §4.D step 10, §4.K).
	buildNotification := func(p *models.Position) *models.NotificationOutbox {
		return &models.NotificationOutbox{
			UserID: intent.UserID,
			Type:   "position_opened",
			Payload: models.JSONB{
				"position_id": p.ID,
				"mint":        p.Mint,
				"entry_price": p.EntryPrice,
			},
			Status: models.OutboxPending,
		}
	}

	if err := e.posRepo.Create(ctx, position, buildNotification); err != nil {
		return raptorerr.Wrap(raptorerr.CodeDatabaseError, "create position from confirmed buy", err)
	}
	return nil
}

func (e *Engine) persistSell(ctx context.Context, intent Intent, exec *models.Execution) error {
	if intent.PositionID == nil {
		return raptorerr.New(raptorerr.CodeInvalidInput, "sell intent missing position_id")
	}

	trigger := intent.ExitTrigger
	if trigger == "" {
		trigger = models.ExitManual
	}

	notification := &models.NotificationOutbox{
		UserID: intent.UserID,
		Type:   "position_closed",
		Payload: models.JSONB{
			"position_id":  *intent.PositionID,
			"mint":         intent.Mint,
			"exit_trigger": string(trigger),
		},
		Status: models.OutboxPending,
	}

	if err := e.posRepo.CloseFromSell(ctx, *intent.PositionID, exec, trigger, notification); err != nil {
		return raptorerr.Wrap(raptorerr.CodeDatabaseError, "close position from confirmed sell", err)
	}
	return nil
}
