package models

import "time"

type OutboxStatus string

const (
	OutboxPending OutboxStatus = "pending"
	OutboxSending OutboxStatus = "sending"
	OutboxSent    OutboxStatus = "sent"
	OutboxFailed  OutboxStatus = "failed"
)

// NotificationOutbox rows are written in the same transaction as the domain
// change they announce, then leased out to delivery workers (spec.md §4.K).
type NotificationOutbox struct {
	ID      uint         `gorm:"primaryKey"`
	UserID  uint         `gorm:"index;not null"`
	Type    string       `gorm:"size:50;not null"`
	Payload JSONB        `gorm:"type:jsonb"`
	Status  OutboxStatus `gorm:"size:10;not null;default:'pending';index"`

	Attempts    int `gorm:"default:0"`
	MaxAttempts int `gorm:"default:5"`

	SendingExpiresAt *time.Time `gorm:"index"`
	WorkerID         string     `gorm:"size:64"`
	LastError        string     `gorm:"size:1000"`

	CreatedAt time.Time
	UpdatedAt time.Time
}

func (NotificationOutbox) TableName() string { return "notifications_outbox" }

// TradeLock is the authoritative cross-instance re-entrancy mutex row (spec.md §3 Trade lock).
type TradeLock struct {
	LockKey    string `gorm:"primaryKey;size:150"`
	Operation  string `gorm:"size:50;not null"`
	InstanceID string `gorm:"size:64;not null"`
	CreatedAt  time.Time
}

func (TradeLock) TableName() string { return "trade_locks" }
