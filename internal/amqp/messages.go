package amqp

import (
	"encoding/json"
	"errors"
	"time"
)

// BatchCreatedMessage announces a stored submission batch. It carries only
// the entry ids; the worker loads the entries from the database.
type BatchCreatedMessage struct {
	IDs       []int64   `json:"ids"`
	Timestamp time.Time `json:"timestamp"`
}

func NewBatchCreatedMessage(ids []int64) *BatchCreatedMessage {
	return &BatchCreatedMessage{
		IDs:       ids,
		Timestamp: time.Now(),
	}
}

// ToJSON converts the message to JSON bytes
func (m *BatchCreatedMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

// BatchCreatedMessageFromJSON decodes a message and rejects empty batches.
func BatchCreatedMessageFromJSON(data []byte) (*BatchCreatedMessage, error) {
	var msg BatchCreatedMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	if len(msg.IDs) == 0 {
		return nil, errors.New("batch message without ids")
	}
	return &msg, nil
}
