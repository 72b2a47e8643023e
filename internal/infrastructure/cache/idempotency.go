package cache

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"stockforecast/internal/core/apperror"
	"stockforecast/internal/core/idempotency"
)

const defaultIdempotencyPrefix = "idempotency:"

// acquireScript claims a key hash atomically.
//
// KEYS[1] key; ARGV user, operation, hash, now (ms), ttl (ms), stale after (ms).
// Returns {"acquired"}, {"mismatch"}, {"pending"} or {"done", code, type, body}.
var acquireScript = redis.NewScript(`
local k = KEYS[1]
if redis.call('EXISTS', k) == 0 then
  redis.call('HSET', k, 'user', ARGV[1], 'op', ARGV[2], 'hash', ARGV[3], 'status', 'pending', 'updated', ARGV[4])
  redis.call('PEXPIRE', k, ARGV[5])
  return {'acquired'}
end
local v = redis.call('HMGET', k, 'user', 'op', 'hash', 'status', 'updated', 'code', 'ctype', 'body')
if v[1] ~= ARGV[1] or v[2] ~= ARGV[2] or v[3] ~= ARGV[3] then
  return {'mismatch', v[2] or ''}
end
if v[4] ~= 'pending' then
  return {'done', v[6] or '0', v[7] or '', v[8] or ''}
end
if tonumber(v[5]) + tonumber(ARGV[6]) < tonumber(ARGV[4]) then
  redis.call('HSET', k, 'updated', ARGV[4])
  return {'acquired'}
end
return {'pending'}
`)

var _ idempotency.Store = (*IdempotencyStore)(nil)

// IdempotencyStore keeps idempotency keys in Redis hashes so every API
// instance shares them. Keys expire on their own.
type IdempotencyStore struct {
	client    redis.Cmdable
	keyPrefix string
	ttl       time.Duration
}

// NewIdempotencyStore creates a Redis idempotency store.
func NewIdempotencyStore(client redis.Cmdable, keyPrefix string, ttl time.Duration) *IdempotencyStore {
	if keyPrefix == "" {
		keyPrefix = defaultIdempotencyPrefix
	}
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &IdempotencyStore{client: client, keyPrefix: keyPrefix, ttl: ttl}
}

func (s *IdempotencyStore) AcquireKey(ctx context.Context, key, userID, operation, requestHash string) (*idempotency.Replay, error) {
	now := time.Now().UnixMilli()
	res, err := acquireScript.Run(ctx, s.client, []string{s.keyPrefix + key},
		userID, operation, requestHash, now, s.ttl.Milliseconds(), idempotency.StaleAfter.Milliseconds(),
	).StringSlice()
	if err != nil {
		return nil, fmt.Errorf("acquire idempotency key: %w", err)
	}
	if len(res) == 0 {
		return nil, fmt.Errorf("acquire idempotency key: empty script reply")
	}

	switch res[0] {
	case "acquired":
		return nil, nil
	case "mismatch":
		e := apperror.NewIdempotencyMismatch(key).WithDetail("requestOperation", operation)
		if len(res) > 1 {
			e = e.WithDetail("storedOperation", res[1])
		}
		return nil, e
	case "done":
		if len(res) < 4 {
			return nil, fmt.Errorf("acquire idempotency key: short script reply")
		}
		code, _ := strconv.Atoi(res[1])
		return idempotency.NormalizeReplay(&idempotency.Replay{
			StatusCode:  code,
			ContentType: res[2],
			Body:        []byte(res[3]),
		}), nil
	default:
		return nil, apperror.NewIdempotencyConflict(key)
	}
}

func (s *IdempotencyStore) CompleteKey(ctx context.Context, key string, statusCode int, contentType string, body []byte) error {
	return s.finish(ctx, key, idempotency.StatusSuccess, statusCode, contentType, body)
}

func (s *IdempotencyStore) FailKey(ctx context.Context, key string, statusCode int, contentType string, body []byte) error {
	return s.finish(ctx, key, idempotency.StatusFailed, statusCode, contentType, body)
}

func (s *IdempotencyStore) finish(ctx context.Context, key string, status idempotency.Status, statusCode int, contentType string, body []byte) error {
	k := s.keyPrefix + key
	_, err := s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.HSet(ctx, k,
			"status", string(status),
			"code", statusCode,
			"ctype", contentType,
			"body", body,
			"updated", time.Now().UnixMilli(),
		)
		pipe.PExpire(ctx, k, s.ttl)
		return nil
	})
	if err != nil {
		return fmt.Errorf("finish idempotency key: %w", err)
	}
	return nil
}
