package amqp

import (
	"encoding/json"
	"fmt"
	"time"
)

// Op tells the consumer what happened to the transaction.
type Op string

const (
	OpSync   Op = "sync"
	OpDelete Op = "delete"
)

// SyncMessage carries only the transaction id; the worker reads the row
// itself so the message can never be stale.
type SyncMessage struct {
	ID        string    `json:"id"`
	Op        Op        `json:"op"`
	Timestamp time.Time `json:"timestamp"`
}

func NewSyncMessage(id string, op Op) *SyncMessage {
	return &SyncMessage{
		ID:        id,
		Op:        op,
		Timestamp: time.Now().UTC(),
	}
}

// ToJSON converts the message to JSON bytes
func (m *SyncMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

// SyncMessageFromJSON decodes and checks a message body.
func SyncMessageFromJSON(data []byte) (*SyncMessage, error) {
	var msg SyncMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	if msg.ID == "" {
		return nil, fmt.Errorf("sync message without id")
	}
	switch msg.Op {
	case OpSync, OpDelete:
	case "":
		msg.Op = OpSync
	default:
		return nil, fmt.Errorf("unknown sync op %q", msg.Op)
	}
	return &msg, nil
}
