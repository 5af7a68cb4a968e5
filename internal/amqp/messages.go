package amqp

import (
	"encoding/json"
	"time"
)

// EventType names a change in the ledger.
type EventType string

const (
	ExpenseCreated  EventType = "expense.created"
	ExpenseUpdated  EventType = "expense.updated"
	ExpenseDeleted  EventType = "expense.deleted"
	CategoryCreated EventType = "category.created"
	CategoryDeleted EventType = "category.deleted"
)

// LedgerEvent is a lightweight change notification. It carries ids only;
// consumers read the current state from the API.
type LedgerEvent struct {
	Type      EventType `json:"type"`
	EntityID  string    `json:"entity_id"`
	OwnerID   string    `json:"owner_id,omitempty"`
	ActorID   string    `json:"actor_id"`
	Timestamp time.Time `json:"timestamp"`
}

// NewLedgerEvent creates an event stamped with the current time.
func NewLedgerEvent(t EventType, entityID, ownerID, actorID string) *LedgerEvent {
	return &LedgerEvent{
		Type:      t,
		EntityID:  entityID,
		OwnerID:   ownerID,
		ActorID:   actorID,
		Timestamp: time.Now().UTC(),
	}
}

// ToJSON converts the event to JSON bytes
func (e *LedgerEvent) ToJSON() ([]byte, error) {
	return json.Marshal(e)
}

// LedgerEventFromJSON decodes an event published by PublishEvent.
func LedgerEventFromJSON(data []byte) (*LedgerEvent, error) {
	var evt LedgerEvent
	if err := json.Unmarshal(data, &evt); err != nil {
		return nil, err
	}
	return &evt, nil
}
