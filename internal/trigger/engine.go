// Package trigger implements the Trigger Engine (spec.md §4.I): a periodic sweep over
// monitored positions that evaluates exit conditions in priority order and dispatches
// sells through the atomic trigger state machine.
package trigger

import (
	"context"
	"fmt"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/shopspring/decimal"

	"raptor/internal/eventbus"
	"raptor/internal/execution"
	"raptor/internal/interfaces/repository"
	"raptor/internal/logger"
	"raptor/internal/models"
	"raptor/internal/positions"
	"raptor/internal/raptorerr"
)

// Dispatcher is the Execution Engine boundary the engine hands sell intents to.
type Dispatcher interface {
	ExecuteTrade(ctx context.Context, intent execution.Intent) (execution.Result, error)
}

// EmergencySignal reports whether a position has an outstanding user-initiated emergency
// exit request (spec.md §4.I step 3: "EMERGENCY (user-initiated via external signal):
// always wins"). Backed by the settings-CRUD surface outside this module's scope.
type EmergencySignal interface {
	IsEmergency(ctx context.Context, positionID uint) bool
}

// Engine is the Trigger Engine.
type Engine struct {
	positionsRepo repository.PositionRepository
	users         repository.UserRepository
	pricing       *positions.Service
	dispatcher    Dispatcher
	emergency     EmergencySignal
	outboxRepo    repository.OutboxRepository
	bus           eventbus.EventBusInterface
	log           *logger.Logger

	executionTimeout time.Duration
}

func New(
	positionsRepo repository.PositionRepository,
	users repository.UserRepository,
	pricing *positions.Service,
	dispatcher Dispatcher,
	emergency EmergencySignal,
	outboxRepo repository.OutboxRepository,
	bus eventbus.EventBusInterface,
	log *logger.Logger,
	executionTimeout time.Duration,
) *Engine {
	if executionTimeout <= 0 {
		executionTimeout = 2 * time.Minute
	}
	return &Engine{
		positionsRepo:    positionsRepo,
		users:            users,
		pricing:          pricing,
		dispatcher:       dispatcher,
		emergency:        emergency,
		outboxRepo:       outboxRepo,
		bus:              bus,
		log:              log,
		executionTimeout: executionTimeout,
	}
}

// Sweep runs one full pass of spec.md §4.I steps 1-5 over every monitored position.
func (e *Engine) Sweep(ctx context.Context) error {
	monitored, err := e.positionsRepo.ListMonitored(ctx)
	if err != nil {
		return raptorerr.Wrap(raptorerr.CodeDatabaseError, "list monitored positions", err)
	}

	for i := range monitored {
		p := monitored[i]
		if err := e.evaluateOne(ctx, &p); err != nil {
			e.log.Warn("trigger sweep failed for position", "position_id", p.ID, "error", err.Error())
		}
	}
	return nil
}

func (e *Engine) evaluateOne(ctx context.Context, p *models.Position) error {
	refresh, err := e.pricing.Refresh(ctx, p)
	if err != nil {
		return err
	}

	trigger := e.decideTrigger(ctx, p, refresh)
	if trigger == "" {
		return nil
	}

	triggered, reason, err := e.positionsRepo.TriggerExitAtomically(ctx, p.ID, trigger, refresh.CurrentPrice)
	if err != nil {
		return raptorerr.Wrap(raptorerr.CodeDatabaseError, "trigger_exit_atomically", err)
	}
	if !triggered {
		// Another sweeper already won, or the position moved on; spec.md §4.I step 4
		// treats this as routine, never an error.
		e.log.Debug("trigger exit not won", "position_id", p.ID, "reason", reason)
		return nil
	}

	e.bus.Publish(eventbus.EventTypeTriggerFired, eventbus.NewTriggerFiredEvent(p.ID, string(trigger), refresh.CurrentPrice))

	return e.dispatchExit(ctx, p, trigger)
}

// decideTrigger evaluates exit conditions in spec.md §4.I step 3's fixed priority order.
func (e *Engine) decideTrigger(ctx context.Context, p *models.Position, refresh positions.RefreshResult) models.ExitTrigger {
	if e.emergency != nil && e.emergency.IsEmergency(ctx, p.ID) {
		return models.ExitEmergency
	}
	// GRADUATION fires at most once: the first sweep to observe a POST_GRADUATION
	// position still in MONITORING wins the atomic transition below; every later sweep
	// finds trigger_state already moved on and is a no-op (spec.md §4.I step 3).
	if p.ExitOnGraduation && p.LifecycleState == models.LifecyclePostGraduation {
		return models.ExitGraduation
	}
	if p.SLPrice > 0 && refresh.CurrentPrice <= p.SLPrice {
		return models.ExitSL
	}
	if p.MaxHoldSeconds > 0 && time.Since(p.OpenedAt) >= time.Duration(p.MaxHoldSeconds)*time.Second {
		return models.ExitMaxHold
	}
	if p.TPPrice > 0 && refresh.CurrentPrice >= p.TPPrice {
		return models.ExitTP
	}
	if refresh.TrailingActivated && p.TrailingDistancePct > 0 {
		trailFloor := refresh.PeakPrice * (1 - p.TrailingDistancePct/100)
		if refresh.CurrentPrice <= trailFloor {
			return models.ExitTrail
		}
	}
	return ""
}

// dispatchExit is spec.md §4.I step 5: TRIGGERED -> EXECUTING, dispatch the sell, then
// EXECUTING -> {COMPLETED,FAILED}.
func (e *Engine) dispatchExit(ctx context.Context, p *models.Position, trigger models.ExitTrigger) error {
	if err := e.positionsRepo.MarkPositionExecuting(ctx, p.ID); err != nil {
		return raptorerr.Wrap(raptorerr.CodeTriggerStateMismatch, "mark position executing", err)
	}

	wallet, err := e.users.GetActiveWallet(ctx, p.UserID)
	if err != nil {
		e.failPosition(ctx, p, "wallet lookup failed: "+err.Error())
		return err
	}
	owner, err := solana.PublicKeyFromBase58(wallet.Pubkey)
	if err != nil {
		e.failPosition(ctx, p, "invalid wallet pubkey: "+err.Error())
		return err
	}

	positionID := p.ID
	idempotencyKey := fmt.Sprintf("sell:%d:%s:%d", p.ID, trigger, time.Now().Unix())

	intent := execution.Intent{
		UserID:         p.UserID,
		WalletID:       wallet.ID,
		Owner:          owner,
		Mint:           p.Mint,
		PositionID:     &positionID,
		Side:           models.SideSell,
		Amount:         decimal.NewFromFloat(p.SizeTokens),
		SlippageBps:    500,
		IdempotencyKey: idempotencyKey,
		LifecycleState: p.LifecycleState,
		BondingCurve:   p.BondingCurve,
		ExitTrigger:    trigger,
	}

	result, err := e.dispatcher.ExecuteTrade(ctx, intent)
	if err != nil {
		e.failPosition(ctx, p, err.Error())
		return err
	}

	return e.positionsRepo.MarkTriggerCompleted(ctx, p.ID, result.Execution.ID)
}

// failPosition marks a position's trigger FAILED and tells the user why: a silent
// MONITORING->FAILED transition would strand their position with no visible explanation,
// so this always also queues a trigger_failed outbox notification (spec.md §4.I, §4.K).
func (e *Engine) failPosition(ctx context.Context, p *models.Position, reason string) {
	if err := e.positionsRepo.MarkTriggerFailed(ctx, p.ID, reason); err != nil {
		e.log.Warn("failed to record trigger failure", "position_id", p.ID, "error", err.Error())
	}
	if e.outboxRepo == nil {
		return
	}
	notification := &models.NotificationOutbox{
		UserID: p.UserID,
		Type:   "trigger_failed",
		Payload: models.JSONB{
			"position_id": p.ID,
			"mint":        p.Mint,
			"reason":      reason,
		},
		Status: models.OutboxPending,
	}
	if err := e.outboxRepo.Enqueue(ctx, notification); err != nil {
		e.log.Warn("failed to enqueue trigger_failed notification", "position_id", p.ID, "error", err.Error())
	}
}

// Reconcile is the startup crash-recovery sweep (spec.md §4.I "Crash recovery"): every
// position stuck EXECUTING past executionTimeout is logged and marked FAILED via
// failPosition, which also queues a trigger_failed notification. It does not look at
// the exit Execution's status and never returns a position to MONITORING.
func (e *Engine) Reconcile(ctx context.Context) error {
	stuck, err := e.positionsRepo.ListExecuting(ctx, e.executionTimeout)
	if err != nil {
		return raptorerr.Wrap(raptorerr.CodeDatabaseError, "list executing positions", err)
	}
	for i := range stuck {
		p := &stuck[i]
		e.log.Warn("reconciling stuck executing position", "position_id", p.ID, "mint", p.Mint)
		e.failPosition(ctx, p, "reconciled at startup: execution exceeded timeout")
	}
	return nil
}
