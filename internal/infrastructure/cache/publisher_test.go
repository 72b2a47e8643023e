package cache

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"stockforecast/internal/core/id"
	"stockforecast/internal/infrastructure/storage/postgres"
)

func TestRowPublisher_Handle(t *testing.T) {
	ctx := context.Background()
	_, client := newRedis(t)

	sub := client.Subscribe(ctx, RowsChannel)
	t.Cleanup(func() { _ = sub.Close() })
	_, err := sub.Receive(ctx)
	require.NoError(t, err)

	msg := &postgres.OutboxMessage{
		ID:          id.New(),
		AggregateID: id.New(),
		EventType:   "forecast_row.updated",
		Payload:     []byte(`{"action":"updated"}`),
		CreatedAt:   time.Date(2026, 3, 9, 12, 0, 0, 0, time.UTC),
	}
	require.NoError(t, NewRowPublisher(client, "").Handle(ctx, msg))

	select {
	case got := <-sub.Channel():
		var env Envelope
		require.NoError(t, json.Unmarshal([]byte(got.Payload), &env))
		assert.Equal(t, msg.ID, env.ID)
		assert.Equal(t, "forecast_row.updated", env.EventType)
		assert.JSONEq(t, `{"action":"updated"}`, string(env.Payload))
	case <-time.After(2 * time.Second):
		t.Fatal("no message received")
	}
}
