package models

import "time"

// LifecycleState is the outer position state machine (spec.md §3, §4.H).
type LifecycleState string

const (
	LifecyclePreGraduation  LifecycleState = "PRE_GRADUATION"
	LifecyclePostGraduation LifecycleState = "POST_GRADUATION"
	LifecycleClosed         LifecycleState = "CLOSED"
)

// PricingSource is kept in lockstep with LifecycleState (spec.md §8 invariant 1).
type PricingSource string

const (
	PricingBondingCurve PricingSource = "BONDING_CURVE"
	PricingAMMPool      PricingSource = "AMM_POOL"
)

// ExitTrigger names the reason a position was closed.
type ExitTrigger string

const (
	ExitTP         ExitTrigger = "TP"
	ExitSL         ExitTrigger = "SL"
	ExitTrail      ExitTrigger = "TRAIL"
	ExitMaxHold    ExitTrigger = "MAXHOLD"
	ExitEmergency  ExitTrigger = "EMERGENCY"
	ExitManual     ExitTrigger = "MANUAL"
	ExitGraduation ExitTrigger = "GRADUATION"
)

// TriggerState is the inner exit state machine, transitioned only via the store's atomic RPCs (spec.md §4.I).
type TriggerState string

const (
	TriggerMonitoring TriggerState = "MONITORING"
	TriggerTriggered  TriggerState = "TRIGGERED"
	TriggerExecuting  TriggerState = "EXECUTING"
	TriggerCompleted  TriggerState = "COMPLETED"
	TriggerFailed     TriggerState = "FAILED"
)

type Position struct {
	ID       uint   `gorm:"primaryKey"`
	UserID   uint   `gorm:"index;not null"`
	WalletID uint   `gorm:"index;not null"`
	Mint     string `gorm:"size:64;not null;index"`

	LifecycleState LifecycleState `gorm:"size:20;not null;index"`
	PricingSource  PricingSource  `gorm:"size:20;not null"`

	EntryPrice   float64 `gorm:"type:decimal(36,18);not null"`
	EntryCostSOL float64 `gorm:"column:entry_cost_sol;type:decimal(18,9);not null"`
	SizeTokens   float64 `gorm:"type:decimal(36,9);not null"`

	CurrentPrice  float64 `gorm:"type:decimal(36,18)"`
	PeakPrice     float64 `gorm:"type:decimal(36,18)"`
	PriceUpdatedAt *time.Time

	ExitPrice      *float64     `gorm:"column:exit_price;type:decimal(36,18)"`
	ExitValueSOL   *float64     `gorm:"column:exit_value_sol;type:decimal(18,9)"`
	ExitTrigger    *ExitTrigger `gorm:"column:exit_trigger;size:20"`
	RealizedPnLSOL *float64     `gorm:"column:realized_pnl_sol;type:decimal(18,9)"`
	RealizedPnLPct *float64     `gorm:"column:realized_pnl_pct;type:decimal(9,4)"`

	TPPrice float64 `gorm:"type:decimal(36,18)"`
	SLPrice float64 `gorm:"type:decimal(36,18)"`

	TrailingActivationPct float64
	TrailingDistancePct   float64
	TrailingActivated     bool `gorm:"default:false"`

	// MaxHoldSeconds is copied from the matched Strategy at entry time so the Trigger
	// Engine can evaluate MAXHOLD without a join back to a strategy that may since have
	// changed or been deleted (spec.md §4.I step 3).
	MaxHoldSeconds int64 `gorm:"default:0"`

	// ExitOnGraduation mirrors the matched Strategy's flag (spec.md §4.I step 3
	// "GRADUATION (if strategy opts for graduation-exit): only when transitioning to
	// POST_GRADUATION").
	ExitOnGraduation bool `gorm:"default:false"`

	TriggerState TriggerState `gorm:"size:20;not null;default:'MONITORING';index"`
	TriggerPrice *float64     `gorm:"type:decimal(36,18)"`
	TriggerError string       `gorm:"size:500"`

	OpenedAt time.Time `gorm:"not null"`
	ClosedAt *time.Time

	LaunchCandidateID *uint
	EntryExecutionID  uint
	ExitExecutionID   *uint

	BondingCurve string `gorm:"size:64"`

	CreatedAt time.Time
	UpdatedAt time.Time
}

func (Position) TableName() string { return "positions" }

// ValidLifecycleTransition enforces spec.md §3's transition table.
func ValidLifecycleTransition(from, to LifecycleState) bool {
	switch from {
	case LifecyclePreGraduation:
		return to == LifecyclePostGraduation || to == LifecycleClosed
	case LifecyclePostGraduation:
		return to == LifecycleClosed
	default:
		return false
	}
}

// ValidTriggerTransition enforces spec.md §3's trigger state machine, including the
// manual/emergency-only FAILED -> MONITORING re-arm path.
func ValidTriggerTransition(from, to TriggerState, isManualOrEmergency bool) bool {
	switch from {
	case TriggerMonitoring:
		return to == TriggerTriggered
	case TriggerTriggered:
		return to == TriggerExecuting
	case TriggerExecuting:
		return to == TriggerCompleted || to == TriggerFailed
	case TriggerFailed:
		return to == TriggerMonitoring && isManualOrEmergency
	default:
		return false
	}
}

// PricingSourceFor returns the pricing source mandated for a lifecycle state (invariant 1).
func PricingSourceFor(state LifecycleState) PricingSource {
	if state == LifecyclePreGraduation {
		return PricingBondingCurve
	}
	return PricingAMMPool
}
