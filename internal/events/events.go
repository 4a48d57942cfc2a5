// Package events fans out billing state changes to the audit log, the
// dashboard websocket and the message broker once their transaction commits.
package events

import (
	"context"
	"time"

	"backoffice/internal/logger"
)

// Entity types
const (
	EntityService  = "service"
	EntityPrice    = "price"
	EntityContract = "contract"
	EntityInvoice  = "invoice"
	EntityPayment  = "payment"
	EntityReceipt  = "receipt"
)

// SystemActor is recorded for changes made by scheduled jobs.
const SystemActor = "system"

// Event describes one committed state change.
type Event struct {
	Action     string         `json:"action"`
	EntityType string         `json:"entity_type"`
	EntityID   string         `json:"entity_id"`
	EntityName string         `json:"entity_name,omitempty"`
	From       string         `json:"from,omitempty"`
	To         string         `json:"to,omitempty"`
	Actor      string         `json:"actor"`
	OccurredAt time.Time      `json:"occurred_at"`
	Data       map[string]any `json:"data,omitempty"`
}

// Publisher delivers events. Implementations must not block the caller for
// long and never fail it: delivery is fire-and-forget.
type Publisher interface {
	Publish(ctx context.Context, evt Event)
}

// Multi delivers to every publisher in order.
type Multi []Publisher

func (m Multi) Publish(ctx context.Context, evt Event) {
	for _, p := range m {
		p.Publish(ctx, evt)
	}
}

// Nop drops events.
type Nop struct{}

func (Nop) Publish(context.Context, Event) {}

// LogPublisher writes each event as a structured log line.
type LogPublisher struct{}

func (LogPublisher) Publish(_ context.Context, evt Event) {
	log := logger.WithComponent("events")
	log.Info().
		Str("action", evt.Action).
		Str("entity_type", evt.EntityType).
		Str("entity_id", evt.EntityID).
		Str("from", evt.From).
		Str("to", evt.To).
		Str("actor", evt.Actor).
		Msg("billing event")
}

type actorKey struct{}

// WithActor stores the acting user id on ctx.
func WithActor(ctx context.Context, actor string) context.Context {
	return context.WithValue(ctx, actorKey{}, actor)
}

// ActorFrom returns the acting user id, or SystemActor.
func ActorFrom(ctx context.Context) string {
	if a, ok := ctx.Value(actorKey{}).(string); ok && a != "" {
		return a
	}
	return SystemActor
}
