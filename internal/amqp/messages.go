package amqp

import (
	"encoding/json"
	"fmt"
	"time"
)

// EventKind names a ledger mutation.
type EventKind string

const (
	KindTransactionAdded   EventKind = "transaction.added"
	KindTransactionRemoved EventKind = "transaction.removed"
	KindLedgerReplaced     EventKind = "ledger.replaced"
	KindLedgerReset        EventKind = "ledger.reset"
)

func (k EventKind) Valid() bool {
	switch k {
	case KindTransactionAdded, KindTransactionRemoved, KindLedgerReplaced, KindLedgerReset:
		return true
	}
	return false
}

// LedgerEvent announces a committed ledger change. It carries no
// transaction data: consumers read the ledger from its persistence slot.
type LedgerEvent struct {
	Kind      EventKind `json:"kind"`
	ID        int64     `json:"id,omitempty"`
	Revision  uint64    `json:"revision"`
	Count     int       `json:"count"`
	Timestamp time.Time `json:"timestamp"`
}

func NewLedgerEvent(kind EventKind, id int64, revision uint64, count int) LedgerEvent {
	return LedgerEvent{
		Kind:      kind,
		ID:        id,
		Revision:  revision,
		Count:     count,
		Timestamp: time.Now().UTC(),
	}
}

// ToJSON converts the message to JSON bytes
func (e LedgerEvent) ToJSON() ([]byte, error) {
	return json.Marshal(e)
}

// LedgerEventFromJSON decodes and checks an event body.
func LedgerEventFromJSON(data []byte) (LedgerEvent, error) {
	var e LedgerEvent
	if err := json.Unmarshal(data, &e); err != nil {
		return LedgerEvent{}, err
	}
	if !e.Kind.Valid() {
		return LedgerEvent{}, fmt.Errorf("unknown event kind %q", e.Kind)
	}
	return e, nil
}
