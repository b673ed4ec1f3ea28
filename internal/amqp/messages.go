package amqp

import (
	"encoding/json"
	"time"
)

// LedgerChangedMessage signals that a ledger write happened. Consumers refetch
// from the database, the message carries only what changed.
type LedgerChangedMessage struct {
	Scope     string    `json:"scope"`
	ID        int64     `json:"id"`
	Timestamp time.Time `json:"timestamp"`
}

func NewLedgerChangedMessage(scope string, id int64) *LedgerChangedMessage {
	return &LedgerChangedMessage{
		Scope:     scope,
		ID:        id,
		Timestamp: time.Now(),
	}
}

func (m *LedgerChangedMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

func LedgerChangedMessageFromJSON(data []byte) (*LedgerChangedMessage, error) {
	var msg LedgerChangedMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}
