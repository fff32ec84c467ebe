package event

import (
	"time"

	"github.com/google/uuid"
)

// Payload keys shared by producers and subscribers
const (
	KeyActorID         = "actor_id"
	KeyApprovalType    = "approval_type"
	KeyActivatedID     = "activated_approval_id"
	KeyDelegatedTo     = "delegated_to"
	KeyPreviousStatus  = "previous_status"
	KeyCostTableStatus = "cost_table_status"
	KeyReason          = "reason"
	KeyCancelled       = "cancelled"
)

// Event is a fact about a workflow, published after the change is committed
type Event struct {
	ID            string                 `json:"id"`
	Type          Type                   `json:"type"`
	CostTableID   int64                  `json:"cost_table_id"`
	ApprovalID    int64                  `json:"approval_id,omitempty"`
	Payload       map[string]interface{} `json:"payload"`
	Timestamp     time.Time              `json:"timestamp"`
	CorrelationID string                 `json:"correlation_id"`
}

// NewEvent creates an event with a fresh id that starts its own correlation chain
func NewEvent(eventType Type, costTableID, approvalID int64, payload map[string]interface{}) *Event {
	evt := NewEventWithCorrelation(eventType, costTableID, approvalID, payload, "")
	evt.CorrelationID = evt.ID
	return evt
}

// NewEventWithCorrelation creates an event linked to an existing correlation chain
func NewEventWithCorrelation(eventType Type, costTableID, approvalID int64, payload map[string]interface{}, correlationID string) *Event {
	if payload == nil {
		payload = make(map[string]interface{})
	}
	return &Event{
		ID:            uuid.NewString(),
		Type:          eventType,
		CostTableID:   costTableID,
		ApprovalID:    approvalID,
		Payload:       payload,
		Timestamp:     time.Now().UTC(),
		CorrelationID: correlationID,
	}
}

// WithPayload returns a copy of the event with key set
func (e *Event) WithPayload(key string, value interface{}) *Event {
	payload := make(map[string]interface{}, len(e.Payload)+1)
	for k, v := range e.Payload {
		payload[k] = v
	}
	payload[key] = value

	c := *e
	c.Payload = payload
	return &c
}

// GetPayloadString retrieves a string value from the payload
func (e *Event) GetPayloadString(key string) string {
	if s, ok := e.Payload[key].(string); ok {
		return s
	}
	return ""
}

// GetPayloadInt retrieves an integer value from the payload
func (e *Event) GetPayloadInt(key string) int64 {
	switch v := e.Payload[key].(type) {
	case int64:
		return v
	case int:
		return int64(v)
	case float64:
		return int64(v)
	}
	return 0
}
