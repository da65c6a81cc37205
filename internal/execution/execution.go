// Package execution implements the Execution Engine (spec.md §4.D): the single
// execute_trade entrypoint that validates, locks, reserves budget, routes, simulates,
// signs, broadcasts, confirms, and persists one BUY or SELL.
package execution

import (
	"context"
	"fmt"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"raptor/internal/eventbus"
	"raptor/internal/interfaces/repository"
	"raptor/internal/locks"
	"raptor/internal/logger"
	"raptor/internal/models"
	"raptor/internal/raptorerr"
	"raptor/internal/rpcfanout"
	"raptor/internal/venue"
)

const (
	lockTTL           = 60 * time.Second
	minSlippageBps    = 10   // 0.1%
	maxSlippageBps    = 5000 // 50%
	mevFloorBps       = 100  // 1% MEV floor for sell min_output (spec.md §4.D)
	broadcastTimeout  = 10 * time.Second
	confirmTimeout    = 30 * time.Second
	honeypotLossRatio = 0.90
)

// Intent mirrors spec.md §4.D's execute_trade input.
type Intent struct {
	UserID          uint
	WalletID        uint
	Owner           solana.PublicKey
	Mint            string
	PositionID      *uint
	Side            models.Side
	Amount          decimal.Decimal
	SlippageBps     int
	PriorityFee     uint64
	IdempotencyKey  string
	SourceTag       string
	AllowRetry      bool
	LifecycleState  models.LifecycleState

	// BUY-only fields the Opportunity Loop supplies from the matched Strategy, needed
	// to open the Position row on confirmation (spec.md §4.D step 9).
	LaunchCandidateID     *uint
	BondingCurve          string
	TPPercent             float64
	SLPercent             float64
	TrailingActivationPct float64
	TrailingDistancePct   float64
	MaxHoldSeconds        int64
	ExitOnGraduation      bool

	// SELL-only: which trigger closed the position, for Position.ExitTrigger.
	ExitTrigger models.ExitTrigger
}

// Result is what execute_trade returns, whether freshly executed or replayed.
type Result struct {
	Execution *models.Execution
	Replayed  bool
}

// Engine is the Execution Engine. Every dependency is constructor-injected (no
// singletons), matching the teacher's composition style.
type Engine struct {
	locks      *locks.Repository
	execRepo   repository.ExecutionRepository
	posRepo    repository.PositionRepository
	fanout     *rpcfanout.Fanout
	router     *venue.Router
	signer     Signer
	bus        eventbus.EventBusInterface
	log        *logger.Logger
	instanceID string
}

func New(
	lockRepo *locks.Repository,
	execRepo repository.ExecutionRepository,
	posRepo repository.PositionRepository,
	fanout *rpcfanout.Fanout,
	router *venue.Router,
	signer Signer,
	bus eventbus.EventBusInterface,
	log *logger.Logger,
) *Engine {
	return &Engine{
		locks:      lockRepo,
		execRepo:   execRepo,
		posRepo:    posRepo,
		fanout:     fanout,
		router:     router,
		signer:     signer,
		bus:        bus,
		log:        log,
		instanceID: uuid.NewString(),
	}
}

// ExecuteTrade runs the full spec.md §4.D algorithm for one trade intent.
func (e *Engine) ExecuteTrade(ctx context.Context, intent Intent) (result Result, err error) {
	if err := e.validate(intent); err != nil {
		return Result{}, err
	}

	lockKey := locks.Key(intent.UserID, intent.Mint)
	acquired, err := e.locks.Acquire(ctx, lockKey, "execute_trade", e.instanceID, lockTTL)
	if err != nil {
		return Result{}, raptorerr.Wrap(raptorerr.CodeDatabaseError, "acquire trade lock", err)
	}
	if !acquired {
		return Result{}, raptorerr.New(raptorerr.CodeConcurrentOperation, "another execution already holds the lock for "+lockKey)
	}
	defer func() {
		if releaseErr := e.locks.Release(context.Background(), lockKey, e.instanceID); releaseErr != nil {
			e.log.Warn("failed to release trade lock", "lock_key", lockKey, "error", releaseErr.Error())
		}
	}()

	amountF, _ := intent.Amount.Float64()
	exec, replayed, err := e.execRepo.ReserveTradeBudget(ctx, repository.TradeIntent{
		UserID:          intent.UserID,
		WalletID:        intent.WalletID,
		Mint:            intent.Mint,
		PositionID:      intent.PositionID,
		Side:            intent.Side,
		RequestedAmount: amountF,
		SlippageBps:     intent.SlippageBps,
		IdempotencyKey:  intent.IdempotencyKey,
		AllowRetry:      intent.AllowRetry,
	})
	if err != nil {
		return Result{}, err
	}
	if replayed {
		e.log.Info("execute_trade idempotent replay", "idempotency_key", intent.IdempotencyKey, "status", exec.Status)
		return Result{Execution: exec, Replayed: true}, nil
	}

	router, err := e.router.Route(intent.LifecycleState)
	if err != nil {
		e.failExecution(ctx, exec, raptorerr.CodeOf(err), err.Error())
		return Result{}, err
	}

	swapIntent := e.buildSwapIntent(intent)
	quote, err := router.Quote(ctx, swapIntent)
	if err != nil {
		code := raptorerr.CodeQuoteFailed
		if raptorerr.CodeOf(err) != "" {
			code = raptorerr.CodeOf(err)
		}
		e.failExecution(ctx, exec, string(code), err.Error())
		return Result{}, raptorerr.Wrap(code, "route quote", err)
	}

	if intent.Side == models.SideSell {
		if quote.OutAmount.IsZero() {
			e.failExecution(ctx, exec, string(raptorerr.CodeHoneypotDetected), "sell quote returned zero output")
			return Result{}, raptorerr.New(raptorerr.CodeHoneypotDetected, "sell quote is zero, suspected honeypot")
		}
		swapIntent.MinSOLOutput = slippageFloor(quote.OutAmount, intent.SlippageBps)
	}

	unsigned, err := router.Build(ctx, swapIntent, quote)
	if err != nil {
		e.failExecution(ctx, exec, string(raptorerr.CodeQuoteFailed), err.Error())
		return Result{}, raptorerr.Wrap(raptorerr.CodeQuoteFailed, "build swap transaction", err)
	}

	if err := e.simulate(ctx, unsigned.Transaction, swapIntent, quote); err != nil {
		e.failExecution(ctx, exec, string(raptorerr.CodeOf(err)), err.Error())
		return Result{}, err
	}

	signed, err := e.signer.Sign(ctx, intent.Owner, unsigned.Transaction)
	if err != nil {
		e.failExecution(ctx, exec, string(raptorerr.CodeSignerError), err.Error())
		return Result{}, err
	}

	broadcast, err := e.fanout.Broadcast(ctx, signed, broadcastTimeout)
	if err != nil {
		e.failExecution(ctx, exec, string(raptorerr.CodeBroadcastFailed), err.Error())
		return Result{}, raptorerr.Wrap(raptorerr.CodeBroadcastFailed, "broadcast transaction", err)
	}

	sig := broadcast.Signature.String()
	_ = e.execRepo.UpdateStatus(ctx, exec.ID, models.ExecSent, repository.ExecutionUpdate{
		Signature:  &sig,
		RouterUsed: unsigned.Venue,
	})
	exec.Status = models.ExecSent
	exec.Signature = &sig

	confirmation, err := e.confirm(ctx, broadcast.Signature)
	if err != nil {
		e.failExecution(ctx, exec, string(raptorerr.CodeConfirmationTimeout), err.Error())
		return Result{}, raptorerr.Wrap(raptorerr.CodeConfirmationTimeout, "confirm transaction", err)
	}

	update := repository.ExecutionUpdate{
		FilledTokens:    &confirmation.filledTokens,
		FilledAmountSOL: &confirmation.filledSOL,
		PricePerToken:   &confirmation.pricePerToken,
		RouterUsed:      unsigned.Venue,
	}
	if err := e.execRepo.UpdateStatus(ctx, exec.ID, models.ExecConfirmed, update); err != nil {
		return Result{}, raptorerr.Wrap(raptorerr.CodeDatabaseError, "persist confirmed execution", err)
	}
	exec.Status = models.ExecConfirmed
	exec.FilledTokens = &confirmation.filledTokens
	exec.FilledAmountSOL = &confirmation.filledSOL
	exec.PricePerToken = &confirmation.pricePerToken

	if err := e.persist(ctx, intent, exec, confirmation); err != nil {
		return Result{}, err
	}

	e.bus.Publish(eventbus.EventTypeExecutionCompleted, eventbus.NewExecutionCompletedEvent(
		exec.ID, exec.UserID, exec.Mint, string(exec.Side), string(exec.Status), sig, confirmation.pricePerToken, "",
	))

	return Result{Execution: exec, Replayed: false}, nil
}

func (e *Engine) validate(intent Intent) error {
	if len(intent.Mint) < 32 || len(intent.Mint) > 44 {
		return raptorerr.New(raptorerr.CodeInvalidInput, "mint address has invalid length")
	}
	if intent.Amount.IsZero() || intent.Amount.IsNegative() {
		return raptorerr.New(raptorerr.CodeInvalidInput, "amount must be positive")
	}
	if intent.SlippageBps < minSlippageBps || intent.SlippageBps > maxSlippageBps {
		return raptorerr.New(raptorerr.CodeInvalidInput, fmt.Sprintf("slippage_bps %d out of bounds [%d,%d]", intent.SlippageBps, minSlippageBps, maxSlippageBps))
	}
	if intent.IdempotencyKey == "" {
		return raptorerr.New(raptorerr.CodeInvalidInput, "idempotency_key is required")
	}
	return nil
}

func (e *Engine) buildSwapIntent(intent Intent) venue.SwapIntent {
	mint := solana.MustPublicKeyFromBase58(intent.Mint)
	si := venue.SwapIntent{
		Mint:                mint,
		Owner:               intent.Owner,
		Side:                string(intent.Side),
		SlippageBps:         intent.SlippageBps,
		PriorityFeeLamports: intent.PriorityFee,
	}
	if intent.Side == models.SideBuy {
		si.AmountSOL = intent.Amount
	} else {
		si.AmountTokens = intent.Amount
	}
	return si
}

// slippageFloor applies spec.md §4.D's sell MEV floor: min_output = max(expected*(1-slip), expected*0.01).
func slippageFloor(expected decimal.Decimal, slippageBps int) decimal.Decimal {
	slipFactor := decimal.NewFromInt(10000 - int64(slippageBps)).Div(decimal.NewFromInt(10000))
	bySlippage := expected.Mul(slipFactor)
	floor := expected.Mul(decimal.NewFromInt(mevFloorBps)).Div(decimal.NewFromInt(10000))
	if bySlippage.GreaterThan(floor) {
		return bySlippage
	}
	return floor
}

// Reconcile is the startup crash-recovery sweep for the Execution Engine half of
// spec.md §5's "any partially written Execution row is left in pending or sent to be
// reconciled by the startup sweep": rows stuck in pending/sent past the confirmation
// timeout are marked failed with CONFIRMATION_TIMEOUT so a stuck row never blocks a
// future retry under a fresh idempotency key.
func (e *Engine) Reconcile(ctx context.Context) error {
	stale, err := e.execRepo.ListStale(ctx, confirmTimeout)
	if err != nil {
		return raptorerr.Wrap(raptorerr.CodeDatabaseError, "list stale executions", err)
	}
	for _, exec := range stale {
		e.log.Warn("reconciling stale execution", "execution_id", exec.ID, "idempotency_key", exec.IdempotencyKey, "status", exec.Status)
		e.failExecution(ctx, &exec, string(raptorerr.CodeConfirmationTimeout), "reconciled at startup: stuck past confirmation timeout")
	}
	return nil
}

func (e *Engine) failExecution(ctx context.Context, exec *models.Execution, code, detail string) {
	_ = e.execRepo.UpdateStatus(ctx, exec.ID, models.ExecFailed, repository.ExecutionUpdate{
		ErrorCode:   code,
		ErrorDetail: detail,
	})
	e.bus.Publish(eventbus.EventTypeExecutionCompleted, eventbus.NewExecutionCompletedEvent(
		exec.ID, exec.UserID, exec.Mint, string(exec.Side), string(models.ExecFailed), "", 0, code,
	))
}
