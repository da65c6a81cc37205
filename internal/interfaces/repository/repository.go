// Package repository declares the store-side contracts every other component depends on
// (spec.md §4.L). Each method name matches a named RPC from the spec exactly; callers never
// see SQL, only these operations and their documented atomicity guarantees.
package repository

import (
	"context"
	"time"

	"raptor/internal/models"
)

// UserRepository is the read path for user/wallet/settings/strategy configuration. The
// core never writes these tables — they are owned by the excluded settings-CRUD surface.
type UserRepository interface {
	GetUser(ctx context.Context, id uint) (*models.User, error)
	GetActiveWallet(ctx context.Context, userID uint) (*models.Wallet, error)
	GetSettings(ctx context.Context, userID uint) (*models.Settings, error)
	ListArmedStrategies(ctx context.Context, chain string) ([]models.Strategy, error)
}

// LaunchCandidateRepository persists discovery output and the opportunity loop's rollup.
type LaunchCandidateRepository interface {
	Upsert(ctx context.Context, candidate *models.LaunchCandidate) (created bool, err error)
	MarkStatus(ctx context.Context, id uint, status models.CandidateStatus, reason string) error
	// ListNew returns candidates still in status=new, for the opportunity drain loop
	// that feeds the Opportunity Loop (spec.md data flow E -> G).
	ListNew(ctx context.Context) ([]models.LaunchCandidate, error)
	// CompleteOpportunityIfTerminal is the spec.md §4.G rollup RPC: marks a candidate
	// accepted/rejected/expired only once every child Execution has reached a terminal status.
	CompleteOpportunityIfTerminal(ctx context.Context, candidateID uint) error
}

// ExecutionRepository is the Execution Engine's persistence boundary (spec.md §4.D).
type ExecutionRepository interface {
	// ReserveTradeBudget is the spec.md §4.D step 3 RPC: atomically checks kill-switch,
	// max-positions, and trades-per-hour (wallet balance is not checked), and inserts a pending Execution row
	// under idempotencyKey. Returns the existing row (replayed=true) when the key is already
	// in use, per the spec's idempotent-replay contract.
	ReserveTradeBudget(ctx context.Context, intent TradeIntent) (exec *models.Execution, replayed bool, err error)
	UpdateStatus(ctx context.Context, id uint, status models.ExecutionStatus, fields ExecutionUpdate) error
	GetByIdempotencyKey(ctx context.Context, key string) (*models.Execution, error)
	// ListStale returns rows stuck in pending/sent older than the given age, for the
	// startup reconciliation sweep (spec.md §5 "any partially written Execution row is
	// left in pending or sent to be reconciled by the startup sweep").
	ListStale(ctx context.Context, olderThan time.Duration) ([]models.Execution, error)
}

// TradeIntent is the input to ReserveTradeBudget, mirroring spec.md §4.D's execute_trade intent.
type TradeIntent struct {
	UserID          uint
	WalletID        uint
	Mint            string
	PositionID      *uint
	Side            models.Side
	RequestedAmount float64
	SlippageBps     int
	IdempotencyKey  string
	AllowRetry      bool
}

// ExecutionUpdate carries the subset of Execution fields a status transition sets.
type ExecutionUpdate struct {
	FilledTokens    *float64
	FilledAmountSOL *float64
	PricePerToken   *float64
	Signature       *string
	RouterUsed      string
	QuoteResponse   string
	ErrorCode       string
	ErrorDetail     string
}

// PositionRepository owns the Position lifecycle and trigger state machine persistence.
type PositionRepository interface {
	// Create persists a freshly opened Position row and, in the same transaction, the
	// outbox notification that announces it (spec.md §4.D step 10, §4.K): buildNotification
	// runs after the insert so it can see the generated ID, and a nil return skips the
	// notification without aborting the position write.
	Create(ctx context.Context, p *models.Position, buildNotification func(*models.Position) *models.NotificationOutbox) error
	Get(ctx context.Context, id uint) (*models.Position, error)
	ListMonitored(ctx context.Context) ([]models.Position, error)
	ListPreGraduationMints(ctx context.Context) ([]string, error)
	UpdatePricing(ctx context.Context, id uint, currentPrice, peakPrice float64, at time.Time) error
	// CloseFromSell finalizes a closed position and its outbox notification in one
	// transaction; notification may be nil to skip it.
	CloseFromSell(ctx context.Context, id uint, exec *models.Execution, exitTrigger models.ExitTrigger, notification *models.NotificationOutbox) error

	// TriggerExitAtomically is the spec.md §4.I step 4 RPC: linearizable MONITORING->TRIGGERED
	// transition. Returns triggered=false with a reason when another sweeper already won.
	TriggerExitAtomically(ctx context.Context, positionID uint, trigger models.ExitTrigger, price float64) (triggered bool, reason string, err error)
	MarkPositionExecuting(ctx context.Context, positionID uint) error
	MarkTriggerCompleted(ctx context.Context, positionID uint, exitExecutionID uint) error
	MarkTriggerFailed(ctx context.Context, positionID uint, errMsg string) error
	// ReArmTrigger is the manual/emergency-only FAILED->MONITORING path (spec.md §3).
	ReArmTrigger(ctx context.Context, positionID uint) error

	// GraduateAllPositionsForMint is the spec.md §4.J bulk RPC.
	GraduateAllPositionsForMint(ctx context.Context, mint string) (moved int, err error)

	// ListExecuting returns positions stuck in EXECUTING, for the startup reconciliation sweep.
	ListExecuting(ctx context.Context, olderThan time.Duration) ([]models.Position, error)
}

// OutboxRepository is the Notification Outbox's persistence boundary (spec.md §4.K).
type OutboxRepository interface {
	Enqueue(ctx context.Context, row *models.NotificationOutbox) error
	ClaimNotifications(ctx context.Context, workerID string, limit int, lease time.Duration) ([]models.NotificationOutbox, error)
	MarkDelivered(ctx context.Context, id uint) error
	MarkFailed(ctx context.Context, id uint, errMsg string) error
}

// LockRepository backs the re-entrancy guard (spec.md §4.D step 2, §5).
type LockRepository interface {
	Acquire(ctx context.Context, lockKey, operation, instanceID string, ttl time.Duration) (acquired bool, err error)
	Release(ctx context.Context, lockKey, instanceID string) error
}
