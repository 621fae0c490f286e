// Package events publishes domain events after their transaction commits.
package events

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

const (
	InvoiceCreated       = "invoice.created"
	InvoiceStatusChanged = "invoice.status_changed"
	AppointmentCompleted = "appointment.completed"
	StockLow             = "inventory.stock_low"
)

// Envelope wraps every payload on the wire.
type Envelope struct {
	ID         string          `json:"id"`
	Type       string          `json:"type"`
	OccurredAt time.Time       `json:"occurredAt"`
	Data       json.RawMessage `json:"data"`
}

func NewEnvelope(routingKey string, payload any) (Envelope, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return Envelope{}, err
	}
	return Envelope{
		ID:         uuid.NewString(),
		Type:       routingKey,
		OccurredAt: time.Now().UTC(),
		Data:       data,
	}, nil
}

type Publisher interface {
	Publish(ctx context.Context, routingKey string, payload any) error
}

// Nop drops every event. Used when no broker is configured.
type Nop struct{}

func (Nop) Publish(context.Context, string, any) error { return nil }

// BestEffort never fails the caller: errors are logged and counted.
type BestEffort struct {
	next     Publisher
	logger   zerolog.Logger
	onFailed func(routingKey string)
}

func NewBestEffort(next Publisher, logger zerolog.Logger, onFailed func(routingKey string)) *BestEffort {
	if onFailed == nil {
		onFailed = func(string) {}
	}
	return &BestEffort{next: next, logger: logger, onFailed: onFailed}
}

func (b *BestEffort) Publish(ctx context.Context, routingKey string, payload any) error {
	if err := b.next.Publish(ctx, routingKey, payload); err != nil {
		b.logger.Warn().Err(err).Str("routing_key", routingKey).Msg("publish event failed")
		b.onFailed(routingKey)
	}
	return nil
}

// Recorder keeps published events in memory.
type Recorder struct {
	mu     sync.Mutex
	events []Recorded
	Err    error
}

type Recorded struct {
	RoutingKey string
	Payload    any
}

func (r *Recorder) Publish(_ context.Context, routingKey string, payload any) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.Err != nil {
		return r.Err
	}
	r.events = append(r.events, Recorded{RoutingKey: routingKey, Payload: payload})
	return nil
}

func (r *Recorder) Events() []Recorded {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Recorded, len(r.events))
	copy(out, r.events)
	return out
}

// Keys returns the routing keys in publish order.
func (r *Recorder) Keys() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	keys := make([]string, 0, len(r.events))
	for _, e := range r.events {
		keys = append(keys, e.RoutingKey)
	}
	return keys
}
