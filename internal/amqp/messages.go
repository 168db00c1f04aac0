package amqp

import (
	"encoding/json"
	"time"
)

// TransferExecutedMessage announces a persisted automatic-savings transfer.
// It carries only identifiers and the executed amount; consumers fetch the
// full record from the database when they need more.
type TransferExecutedMessage struct {
	ID            string    `json:"id"`
	FromAccountID string    `json:"from_account_id"`
	ToAccountID   string    `json:"to_account_id"`
	Amount        string    `json:"amount"`
	Date          time.Time `json:"date"`
	Timestamp     time.Time `json:"timestamp"`
}

// ToJSON converts the message to JSON bytes
func (m *TransferExecutedMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

// FromJSON creates a message from JSON bytes
func TransferExecutedMessageFromJSON(data []byte) (*TransferExecutedMessage, error) {
	var msg TransferExecutedMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}
