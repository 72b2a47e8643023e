package cache

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"stockforecast/internal/core/apperror"
)

func newRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return mr, client
}

func TestIdempotencyStore_Lifecycle(t *testing.T) {
	ctx := context.Background()
	_, client := newRedis(t)
	store := NewIdempotencyStore(client, "", time.Hour)

	replay, err := store.AcquireKey(ctx, "k1", "u1", "POST /api/v1/sales", "h1")
	require.NoError(t, err)
	assert.Nil(t, replay)

	_, err = store.AcquireKey(ctx, "k1", "u1", "POST /api/v1/sales", "h1")
	assert.True(t, apperror.HasCode(err, apperror.CodeIdempotency))

	require.NoError(t, store.CompleteKey(ctx, "k1", 201, "application/json", []byte(`{"ok":true}`)))

	replay, err = store.AcquireKey(ctx, "k1", "u1", "POST /api/v1/sales", "h1")
	require.NoError(t, err)
	require.NotNil(t, replay)
	assert.Equal(t, 201, replay.StatusCode)
	assert.Equal(t, "application/json", replay.ContentType)
	assert.JSONEq(t, `{"ok":true}`, string(replay.Body))
}

func TestIdempotencyStore_Mismatch(t *testing.T) {
	ctx := context.Background()
	_, client := newRedis(t)
	store := NewIdempotencyStore(client, "", time.Hour)

	_, err := store.AcquireKey(ctx, "k1", "u1", "POST /a", "h1")
	require.NoError(t, err)

	_, err = store.AcquireKey(ctx, "k1", "u1", "POST /a", "other")
	appErr, ok := apperror.AsAppError(err)
	require.True(t, ok)
	assert.Equal(t, "idempotency key was used for a different request", appErr.Message)
	assert.Equal(t, "POST /a", appErr.Details["storedOperation"])
}

func TestIdempotencyStore_ReclaimsStalePending(t *testing.T) {
	ctx := context.Background()
	mr, client := newRedis(t)
	store := NewIdempotencyStore(client, "idem:", time.Hour)

	_, err := store.AcquireKey(ctx, "k1", "u1", "POST /a", "h1")
	require.NoError(t, err)

	mr.HSet("idem:k1", "updated", "0")

	replay, err := store.AcquireKey(ctx, "k1", "u1", "POST /a", "h1")
	require.NoError(t, err)
	assert.Nil(t, replay)
}

func TestIdempotencyStore_FailedReplay(t *testing.T) {
	ctx := context.Background()
	mr, client := newRedis(t)
	store := NewIdempotencyStore(client, "", time.Hour)

	_, err := store.AcquireKey(ctx, "k2", "u1", "POST /a", "h1")
	require.NoError(t, err)
	require.NoError(t, store.FailKey(ctx, "k2", 422, "", []byte(`{"error":{}}`)))

	replay, err := store.AcquireKey(ctx, "k2", "u1", "POST /a", "h1")
	require.NoError(t, err)
	require.NotNil(t, replay)
	assert.Equal(t, 422, replay.StatusCode)
	assert.Equal(t, "application/json", replay.ContentType)
	assert.True(t, mr.TTL(defaultIdempotencyPrefix+"k2") > 0)
}
