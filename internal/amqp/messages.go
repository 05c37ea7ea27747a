package amqp

import (
	"encoding/json"
	"time"

	"fintrack/internal/core"
)

// LedgerEventMessage is the wire form of a core.LedgerEvent. It carries
// identifiers only; consumers load current state from the store.
type LedgerEventMessage struct {
	Type          core.LedgerEventType `json:"type"`
	TransactionID string               `json:"transaction_id"`
	OwnerID       string               `json:"owner_id"`
	AccountIDs    []string             `json:"account_ids"`
	Timestamp     time.Time            `json:"timestamp"`
}

// NewLedgerEventMessage creates a message for event, stamping it now when the
// event has no time of its own.
func NewLedgerEventMessage(event core.LedgerEvent) *LedgerEventMessage {
	ts := event.OccurredAt
	if ts.IsZero() {
		ts = time.Now()
	}
	return &LedgerEventMessage{
		Type:          event.Type,
		TransactionID: event.TransactionID,
		OwnerID:       event.OwnerID,
		AccountIDs:    event.AccountIDs,
		Timestamp:     ts,
	}
}

// ToJSON converts the message to JSON bytes
func (m *LedgerEventMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

// LedgerEventMessageFromJSON creates a message from JSON bytes
func LedgerEventMessageFromJSON(data []byte) (*LedgerEventMessage, error) {
	var msg LedgerEventMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}
