package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"stockforecast/internal/core/id"
	"stockforecast/internal/infrastructure/storage/postgres"
)

// RowsChannel carries report row changes.
const RowsChannel = "forecast.rows"

// Envelope is the Pub/Sub message of one outbox entry.
type Envelope struct {
	ID          id.ID           `json:"id"`
	EventType   string          `json:"eventType"`
	AggregateID id.ID           `json:"aggregateId"`
	OccurredAt  time.Time       `json:"occurredAt"`
	Payload     json.RawMessage `json:"payload"`
}

var _ postgres.OutboxHandler = (*RowPublisher)(nil)

// RowPublisher publishes outbox messages to a Redis channel.
type RowPublisher struct {
	client  redis.Cmdable
	channel string
}

// NewRowPublisher creates a publisher on channel (RowsChannel when empty).
func NewRowPublisher(client redis.Cmdable, channel string) *RowPublisher {
	if channel == "" {
		channel = RowsChannel
	}
	return &RowPublisher{client: client, channel: channel}
}

// Handle publishes msg. Having no subscribers is not an error.
func (p *RowPublisher) Handle(ctx context.Context, msg *postgres.OutboxMessage) error {
	data, err := json.Marshal(Envelope{
		ID:          msg.ID,
		EventType:   msg.EventType,
		AggregateID: msg.AggregateID,
		OccurredAt:  msg.CreatedAt,
		Payload:     json.RawMessage(msg.Payload),
	})
	if err != nil {
		return fmt.Errorf("marshal envelope: %w", err)
	}
	if err := p.client.Publish(ctx, p.channel, data).Err(); err != nil {
		return fmt.Errorf("publish %s: %w", msg.EventType, err)
	}
	return nil
}
