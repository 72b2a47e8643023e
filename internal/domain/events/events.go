// Package events defines the document lifecycle events and the bus contract
// through which document services notify the forecast maintainer.
package events

import (
	"context"
	"time"

	"stockforecast/internal/core/id"
)

// Event is a domain event published after a document mutation.
type Event interface {
	EventID() id.ID
	EventType() string
	OccurredAt() time.Time
	AggregateID() id.ID
	AggregateType() string
}

// Base provides the common Event fields; embed it in concrete events.
type Base struct {
	ID        id.ID     `json:"id"`
	Type      string    `json:"type"`
	Timestamp time.Time `json:"timestamp"`
	AggID     id.ID     `json:"aggregateId"`
	AggType   string    `json:"aggregateType"`
}

func (e *Base) EventID() id.ID        { return e.ID }
func (e *Base) EventType() string     { return e.Type }
func (e *Base) OccurredAt() time.Time { return e.Timestamp }
func (e *Base) AggregateID() id.ID    { return e.AggID }
func (e *Base) AggregateType() string { return e.AggType }

// NewBase stamps a new event header.
func NewBase(eventType, aggregateType string, aggregateID id.ID) Base {
	return Base{
		ID:        id.New(),
		Type:      eventType,
		Timestamp: time.Now().UTC(),
		AggID:     aggregateID,
		AggType:   aggregateType,
	}
}

// Handler consumes events.
type Handler interface {
	// Handle processes one event. A returned error aborts the publishing
	// operation and its transaction.
	Handle(ctx context.Context, event Event) error

	// EventTypes lists the types the handler wants. Empty means all.
	EventTypes() []string
}

// Publisher publishes events.
type Publisher interface {
	Publish(ctx context.Context, events ...Event) error
}

// Bus combines publishing and subscription.
type Bus interface {
	Publisher
	Subscribe(handler Handler, eventTypes ...string)
}

// NopPublisher drops every event.
type NopPublisher struct{}

func (NopPublisher) Publish(context.Context, ...Event) error { return nil }
