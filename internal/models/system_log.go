package models

import "time"

// SystemLog is a centralized log row, mirrored from the structured logger for
// operators who query history from the store instead of log aggregation.
type SystemLog struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	Service   string    `gorm:"size:50;not null;index" json:"service"`
	Level     string    `gorm:"size:10;not null" json:"level"`
	Message   string    `gorm:"type:text;not null" json:"message"`
	EventType string    `gorm:"size:50" json:"event_type,omitempty"`
	EventData string    `gorm:"type:text" json:"event_data,omitempty"`
	CreatedAt time.Time `gorm:"default:CURRENT_TIMESTAMP" json:"created_at"`
}
