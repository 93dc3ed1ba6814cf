package amqp

import (
	"encoding/json"
	"fmt"
	"time"
)

// Event types published on the ledger exchange.
const (
	EventTransactionCreated = "ledger.transaction.created"
)

// Event sources.
const (
	SourceAPI       = "api"
	SourceRecurring = "recurring"
)

// TransactionEvent announces a ledger write. It carries ids only; consumers read the
// transaction itself from storage so a redelivered event always sees the current row.
type TransactionEvent struct {
	Type          string    `json:"type"`
	TransactionID string    `json:"transaction_id"`
	UserID        string    `json:"user_id"`
	Source        string    `json:"source"`
	Timestamp     time.Time `json:"timestamp"`
}

// NewTransactionCreated builds a created event stamped with the current time.
func NewTransactionCreated(userID, transactionID, source string) *TransactionEvent {
	return &TransactionEvent{
		Type:          EventTransactionCreated,
		TransactionID: transactionID,
		UserID:        userID,
		Source:        source,
		Timestamp:     time.Now().UTC(),
	}
}

// ToJSON converts the message to JSON bytes
func (m *TransactionEvent) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

// TransactionEventFromJSON decodes and sanity-checks an event body.
func TransactionEventFromJSON(data []byte) (*TransactionEvent, error) {
	var msg TransactionEvent
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	if msg.TransactionID == "" || msg.UserID == "" {
		return nil, fmt.Errorf("event %q is missing transaction or user id", msg.Type)
	}
	return &msg, nil
}
