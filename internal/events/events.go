package events

import (
	"context"
	"time"
)

const (
	SubjectCreditEntryCreated = "catalyser.credits.entry_created"
	SubjectPriceSnapshot      = "catalyser.metal_prices.recorded"
)

// Event is the envelope published for downstream consumers.
type Event struct {
	ID            string    `json:"id"`
	Type          string    `json:"type"`
	OccurredAt    time.Time `json:"occurred_at"`
	CorrelationID string    `json:"correlation_id,omitempty"`
	Data          any       `json:"data"`
}

// Publisher delivers events at most once. Callers treat failures as non-fatal.
type Publisher interface {
	Publish(ctx context.Context, subject string, event Event) error
}

// NoopPublisher drops every event.
type NoopPublisher struct{}

func (NoopPublisher) Publish(context.Context, string, Event) error { return nil }
