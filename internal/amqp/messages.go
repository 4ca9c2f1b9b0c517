package amqp

import (
	"encoding/json"
	"fmt"
	"time"
)

// Operation names the mutation that changed a ledger partition.
type Operation string

const (
	OpAdd    Operation = "add"
	OpEdit   Operation = "edit"
	OpDelete Operation = "delete"
	OpImport Operation = "import"
)

// LedgerChangedMessage tells consumers that a partition changed. It carries
// no records; consumers read the partition themselves.
type LedgerChangedMessage struct {
	Partition     string    `json:"partition"`
	Identity      string    `json:"identity"`
	Operation     Operation `json:"operation"`
	TransactionID string    `json:"transactionId,omitempty"`
	Timestamp     time.Time `json:"timestamp"`
}

func NewLedgerChangedMessage(partition, identity string, op Operation, txID string) *LedgerChangedMessage {
	return &LedgerChangedMessage{
		Partition:     partition,
		Identity:      identity,
		Operation:     op,
		TransactionID: txID,
		Timestamp:     time.Now().UTC(),
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
	if msg.Partition == "" {
		return nil, fmt.Errorf("ledger change message without partition")
	}
	return &msg, nil
}
