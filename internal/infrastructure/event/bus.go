// Package event provides the in-process event bus.
package event

import (
	"context"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"stockforecast/internal/domain/events"
)

// wildcard subscribes a handler to every event type.
const wildcard = "*"

// SyncBus dispatches events to handlers in the publisher's goroutine, so
// handlers see the publisher's context (and its transaction). The first
// handler error stops dispatch and is returned to the publisher.
type SyncBus struct {
	mu       sync.RWMutex
	handlers map[string][]events.Handler
	logger   *zap.Logger
}

// NewSyncBus creates an empty bus.
func NewSyncBus(logger *zap.Logger) *SyncBus {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SyncBus{
		handlers: make(map[string][]events.Handler),
		logger:   logger,
	}
}

// Subscribe registers handler for eventTypes, or for handler.EventTypes()
// when none are given. An empty list subscribes to all events.
func (b *SyncBus) Subscribe(handler events.Handler, eventTypes ...string) {
	if len(eventTypes) == 0 {
		eventTypes = handler.EventTypes()
	}
	if len(eventTypes) == 0 {
		eventTypes = []string{wildcard}
	}

	b.mu.Lock()
	for _, t := range eventTypes {
		b.handlers[t] = append(b.handlers[t], handler)
	}
	b.mu.Unlock()

	b.logger.Debug("handler subscribed", zap.Strings("event_types", eventTypes))
}

// Publish delivers events in order. Type-specific handlers run before
// wildcard handlers, each group in subscription order.
func (b *SyncBus) Publish(ctx context.Context, evts ...events.Event) error {
	for _, evt := range evts {
		for _, h := range b.handlersFor(evt.EventType()) {
			if err := b.dispatch(ctx, h, evt); err != nil {
				b.logger.Error("handler failed to process event",
					zap.String("event_type", evt.EventType()),
					zap.String("event_id", evt.EventID().String()),
					zap.String("aggregate_id", evt.AggregateID().String()),
					zap.Error(err),
				)
				return err
			}
		}
	}
	return nil
}

func (b *SyncBus) handlersFor(eventType string) []events.Handler {
	b.mu.RLock()
	defer b.mu.RUnlock()

	out := make([]events.Handler, 0, len(b.handlers[eventType])+len(b.handlers[wildcard]))
	out = append(out, b.handlers[eventType]...)
	out = append(out, b.handlers[wildcard]...)
	return out
}

// dispatch converts a handler panic into an error so the transaction rolls back.
func (b *SyncBus) dispatch(ctx context.Context, h events.Handler, evt events.Event) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("handler panicked on %s: %v", evt.EventType(), r)
		}
	}()
	return h.Handle(ctx, evt)
}

var _ events.Bus = (*SyncBus)(nil)
