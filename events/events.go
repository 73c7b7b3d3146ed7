/*
Package events publishes ledger facts to other services.

PURPOSE:
  After a purchase commits, downstream consumers (analytics, fulfilment)
  learn about it through a PurchaseCreated event. Publication is
  best-effort: the ledger is the source of truth, and a lost event never
  undoes or fails a recorded purchase.

ENVELOPE:
  Every event travels in the same Envelope. Payload is the event-specific
  body, versioned by EventVersion. The partition key is the purchase id so
  all events about one purchase stay ordered.

SEE ALSO:
  - events/kafka.go: Kafka-backed Publisher
  - api/handlers.go: publishes after CreatePurchase returns
*/
package events

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/warp/backoffice/generic"
)

const (
	EventPurchaseCreated = "PurchaseCreated"
	TopicPurchaseCreated = "ledger.purchase.created"
)

// ErrPublisherClosed is returned by Publish after Close.
var ErrPublisherClosed = errors.New("publisher closed")

// Envelope wraps every event on the wire.
type Envelope struct {
	EventID       string          `json:"event_id"`
	EventType     string          `json:"event_type"`
	EventVersion  int             `json:"event_version"`
	OccurredAt    time.Time       `json:"occurred_at"`
	Producer      string          `json:"producer"`
	TraceID       string          `json:"trace_id,omitempty"`
	CorrelationID string          `json:"correlation_id,omitempty"` // purchase id
	Payload       json.RawMessage `json:"payload"`
}

// PurchaseCreatedPayload is the body of a PurchaseCreated event.
type PurchaseCreatedPayload struct {
	PurchaseID   string        `json:"purchase_id"`
	CustomerName string        `json:"customer_name"`
	Date         time.Time     `json:"date"`
	Total        generic.Money `json:"total"`
	CreatedBy    string        `json:"created_by"`
	Lines        []LinePayload `json:"lines"`
}

type LinePayload struct {
	ProductID string        `json:"product_id"`
	Quantity  int           `json:"quantity"`
	UnitPrice generic.Money `json:"unit_price"`
}

// NewPurchaseCreated builds the envelope for a committed purchase.
func NewPurchaseCreated(p generic.Purchase, producer, traceID string) (Envelope, error) {
	payload := PurchaseCreatedPayload{
		PurchaseID:   string(p.ID),
		CustomerName: p.CustomerName,
		Date:         p.Date,
		Total:        p.Total,
		CreatedBy:    p.CreatedBy,
		Lines:        make([]LinePayload, len(p.Lines)),
	}
	for i, l := range p.Lines {
		payload.Lines[i] = LinePayload{ProductID: string(l.ProductID), Quantity: l.Quantity, UnitPrice: l.UnitPrice}
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return Envelope{}, err
	}
	return Envelope{
		EventID:       uuid.NewString(),
		EventType:     EventPurchaseCreated,
		EventVersion:  1,
		OccurredAt:    time.Now().UTC(),
		Producer:      producer,
		TraceID:       traceID,
		CorrelationID: string(p.ID),
		Payload:       body,
	}, nil
}

// DecodePayload unwraps an envelope's payload into T.
func DecodePayload[T any](env Envelope) (T, error) {
	var t T
	if err := json.Unmarshal(env.Payload, &t); err != nil {
		return t, err
	}
	return t, nil
}

// Publisher sends envelopes somewhere. Implementations must be safe for
// concurrent use.
type Publisher interface {
	Publish(ctx context.Context, env Envelope) error
	Close() error
}

// Nop drops every event. Used when no broker is configured.
type Nop struct{}

func (Nop) Publish(context.Context, Envelope) error { return nil }
func (Nop) Close() error                            { return nil }
