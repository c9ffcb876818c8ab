package amqp

import (
	"encoding/json"
	"time"
)

// Event kinds published on ledger mutations.
const (
	EventCreated  = "prestation.created"
	EventInvoiced = "prestation.invoiced"
	EventDeleted  = "prestation.deleted"
)

// Event is a lightweight notification about a ledger change. Consumers fetch
// the full rows from the database; the message carries only ids and the
// invoice reference when one applies.
type Event struct {
	Kind       string    `json:"kind"`
	IDs        []int64   `json:"ids"`
	InvoiceRef string    `json:"invoice_ref,omitempty"`
	Timestamp  time.Time `json:"timestamp"`
}

// NewEvent builds an event stamped with the current time.
func NewEvent(kind string, ids []int64) Event {
	return Event{Kind: kind, IDs: ids, Timestamp: time.Now()}
}

func (e Event) ToJSON() ([]byte, error) {
	return json.Marshal(e)
}

func EventFromJSON(data []byte) (Event, error) {
	var e Event
	err := json.Unmarshal(data, &e)
	return e, err
}
