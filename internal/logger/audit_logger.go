package logger

import (
	"encoding/json"
	"fmt"
	"log"
	"time"

	"gorm.io/gorm"

	"raptor/internal/eventbus"
	"raptor/internal/models"
)

// AuditLogger subscribes to EventBus and logs all events to database
type AuditLogger struct {
	db       *gorm.DB
	eventBus *eventbus.EventBus
	debug    bool
}

// NewAuditLogger creates a new audit logger
func NewAuditLogger(db *gorm.DB, eb *eventbus.EventBus) *AuditLogger {
	return &AuditLogger{
		db:       db,
		eventBus: eb,
		debug:    true, // Set to false in production
	}
}

// Start subscribes to all event types and begins logging
func (al *AuditLogger) Start() {
	if al.eventBus == nil {
		log.Println("[AUDIT][WARN] EventBus not available, audit logging disabled")
		return
	}

	// Subscribe to domain events (spec.md §4.D/§4.I/§4.J)
	al.eventBus.Subscribe(eventbus.EventTypeExecutionCompleted, al.handleExecutionEvent)
	al.eventBus.Subscribe(eventbus.EventTypeTriggerFired, al.handleTriggerEvent)
	al.eventBus.Subscribe(eventbus.EventTypeGraduation, al.handleGraduationEvent)

	// Mirror every domain event into SystemLog as well.
	for _, topic := range []string{eventbus.EventTypeExecutionCompleted, eventbus.EventTypeTriggerFired, eventbus.EventTypeGraduation} {
		eventType := topic
		al.eventBus.Subscribe(eventType, func(data []byte) {
			_ = al.LogToDB("audit", "INFO", "domain event", eventType, map[string]interface{}{"event": json.RawMessage(data)})
		})
	}

	log.Println("[AUDIT] Audit logger started, subscribed to events")
}

// handleExecutionEvent logs execution outcomes
func (al *AuditLogger) handleExecutionEvent(data []byte) {
	var event eventbus.ExecutionCompletedEvent
	if err := json.Unmarshal(data, &event); err != nil {
		log.Printf("[AUDIT][ERROR] Failed to unmarshal execution event: %v", err)
		return
	}

	log.Printf("[AUDIT][EXECUTION] ID=%d Mint=%s Side=%s Status=%s Signature=%s Price=%.9f ErrorCode=%s",
		event.Data.ExecutionID,
		event.Data.Mint,
		event.Data.Side,
		event.Data.Status,
		event.Data.Signature,
		event.Data.PricePerToken,
		event.Data.ErrorCode,
	)
}

// handleTriggerEvent logs exit-trigger firings
func (al *AuditLogger) handleTriggerEvent(data []byte) {
	var event eventbus.TriggerFiredEvent
	if err := json.Unmarshal(data, &event); err != nil {
		log.Printf("[AUDIT][ERROR] Failed to unmarshal trigger event: %v", err)
		return
	}

	log.Printf("[AUDIT][TRIGGER] Position=%d Trigger=%s Price=%.9f",
		event.Data.PositionID,
		event.Data.Trigger,
		event.Data.Price,
	)
}

// handleGraduationEvent logs graduation transitions
func (al *AuditLogger) handleGraduationEvent(data []byte) {
	var event eventbus.GraduationEvent
	if err := json.Unmarshal(data, &event); err != nil {
		log.Printf("[AUDIT][ERROR] Failed to unmarshal graduation event: %v", err)
		return
	}

	log.Printf("[AUDIT][GRADUATION] Mint=%s PositionsMoved=%d",
		event.Data.Mint,
		event.Data.PositionsMoved,
	)
}

// LogInfo logs informational messages with service context
func (al *AuditLogger) LogInfo(service, message string) {
	log.Printf("[%s][INFO] %s", service, message)
}

// LogError logs errors with service context
func (al *AuditLogger) LogError(service, message string, err error) {
	if err != nil {
		log.Printf("[%s][ERROR] %s: %v", service, message, err)
	} else {
		log.Printf("[%s][ERROR] %s", service, message)
	}
}

// LogWarn logs warnings with service context
func (al *AuditLogger) LogWarn(service, message string) {
	log.Printf("[%s][WARN] %s", service, message)
}

// LogDebug logs debug messages with service context (only in debug mode)
func (al *AuditLogger) LogDebug(service, message string) {
	if al.debug {
		log.Printf("[%s][DEBUG] %s", service, message)
	}
}

// LogToDB logs an entry to the database, reusing models.SystemLog (the same row shape
// logger.Logger writes for DEBUG-suppressed levels).
func (al *AuditLogger) LogToDB(service, level, message, eventType string, eventData map[string]interface{}) error {
	if al.db == nil {
		return fmt.Errorf("database not available")
	}

	eventJSON := ""
	if eventData != nil {
		bytes, _ := json.Marshal(eventData)
		eventJSON = string(bytes)
	}

	logEntry := models.SystemLog{
		Service:   service,
		Level:     level,
		Message:   message,
		EventType: eventType,
		EventData: eventJSON,
		CreatedAt: time.Now(),
	}

	return al.db.Create(&logEntry).Error
}
