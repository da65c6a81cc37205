package models

import "time"

type Side string

const (
	SideBuy  Side = "BUY"
	SideSell Side = "SELL"
)

type ExecutionStatus string

const (
	ExecPending   ExecutionStatus = "pending"
	ExecSent      ExecutionStatus = "sent"
	ExecConfirmed ExecutionStatus = "confirmed"
	ExecFailed    ExecutionStatus = "failed"
)

// Execution is an immutable trade attempt log entry (spec.md §3 Execution).
type Execution struct {
	ID             uint   `gorm:"primaryKey"`
	IdempotencyKey string `gorm:"uniqueIndex;size:200;not null"`
	UserID         uint   `gorm:"index;not null"`
	PositionID     *uint  `gorm:"index"`
	Mint           string `gorm:"size:64;not null;index"`
	Side           Side   `gorm:"size:4;not null"`

	RequestedAmountSOL    *float64 `gorm:"column:requested_amount_sol;type:decimal(18,9)"`
	RequestedAmountTokens *float64 `gorm:"type:decimal(36,9)"`

	FilledAmountSOL *float64 `gorm:"column:filled_amount_sol;type:decimal(18,9)"`
	FilledTokens    *float64 `gorm:"type:decimal(36,9)"`
	PricePerToken   *float64 `gorm:"type:decimal(36,18)"`

	SlippageBps int `gorm:"not null"`

	Signature *string `gorm:"uniqueIndex:idx_execution_signature,where:signature IS NOT NULL;size:128"`

	Status       ExecutionStatus `gorm:"size:10;not null;default:'pending';index"`
	ErrorCode    string          `gorm:"size:50"`
	ErrorDetail  string          `gorm:"size:1000"`
	RouterUsed   string          `gorm:"size:30"`
	QuoteResponse JSONB          `gorm:"type:jsonb"`

	CreatedAt   time.Time `gorm:"index"`
	SentAt      *time.Time
	ConfirmedAt *time.Time
	UpdatedAt   time.Time
}

func (Execution) TableName() string { return "executions" }

func (e *Execution) IsTerminal() bool {
	return e.Status == ExecConfirmed || e.Status == ExecFailed
}
