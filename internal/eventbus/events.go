package eventbus

import "time"

// ExecutionCompletedEvent is published whenever the execution engine finalizes a trade
// attempt (spec.md §4.D step 9), regardless of outcome.
type ExecutionCompletedEvent struct {
	Type      string    `json:"type"`
	Version   string    `json:"version"`
	Timestamp time.Time `json:"timestamp"`
	Data      struct {
		ExecutionID uint    `json:"execution_id"`
		UserID      uint    `json:"user_id"`
		Mint        string  `json:"mint"`
		Side        string  `json:"side"`
		Status      string  `json:"status"`
		Signature   string  `json:"signature,omitempty"`
		PricePerToken float64 `json:"price_per_token,omitempty"`
		ErrorCode   string  `json:"error_code,omitempty"`
	} `json:"data"`
}

// TriggerFiredEvent is published when the trigger engine atomically wins a transition
// to TRIGGERED (spec.md §4.I step 4); the trigger engine never swallows this.
type TriggerFiredEvent struct {
	Type      string    `json:"type"`
	Version   string    `json:"version"`
	Timestamp time.Time `json:"timestamp"`
	Data      struct {
		PositionID uint    `json:"position_id"`
		Trigger    string  `json:"trigger"`
		Price      float64 `json:"price"`
	} `json:"data"`
}

// GraduationEvent is published when the graduation monitor promotes positions for a mint
// (spec.md §4.J).
type GraduationEvent struct {
	Type      string    `json:"type"`
	Version   string    `json:"version"`
	Timestamp time.Time `json:"timestamp"`
	Data      struct {
		Mint           string `json:"mint"`
		PositionsMoved int    `json:"positions_moved"`
	} `json:"data"`
}

// EventTypes constants
const (
	EventTypeExecutionCompleted = "execution_completed"
	EventTypeTriggerFired       = "trigger_fired"
	EventTypeGraduation         = "graduation"
	EventVersion1               = "v1"
)

func NewExecutionCompletedEvent(executionID, userID uint, mint, side, status, signature string, pricePerToken float64, errorCode string) *ExecutionCompletedEvent {
	event := &ExecutionCompletedEvent{
		Type:      EventTypeExecutionCompleted,
		Version:   EventVersion1,
		Timestamp: time.Now(),
	}
	event.Data.ExecutionID = executionID
	event.Data.UserID = userID
	event.Data.Mint = mint
	event.Data.Side = side
	event.Data.Status = status
	event.Data.Signature = signature
	event.Data.PricePerToken = pricePerToken
	event.Data.ErrorCode = errorCode
	return event
}

func NewTriggerFiredEvent(positionID uint, trigger string, price float64) *TriggerFiredEvent {
	event := &TriggerFiredEvent{
		Type:      EventTypeTriggerFired,
		Version:   EventVersion1,
		Timestamp: time.Now(),
	}
	event.Data.PositionID = positionID
	event.Data.Trigger = trigger
	event.Data.Price = price
	return event
}

func NewGraduationEvent(mint string, positionsMoved int) *GraduationEvent {
	event := &GraduationEvent{
		Type:      EventTypeGraduation,
		Version:   EventVersion1,
		Timestamp: time.Now(),
	}
	event.Data.Mint = mint
	event.Data.PositionsMoved = positionsMoved
	return event
}
