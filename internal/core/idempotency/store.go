// Package idempotency defines the contract behind the Idempotency-Key
// protection of mutating HTTP requests. Stores live in the storage and
// cache layers.
package idempotency

import (
	"context"
	"time"
)

// Status is the state of a keyed operation.
type Status string

const (
	StatusPending Status = "pending"
	StatusSuccess Status = "success"
	StatusFailed  Status = "failed"
)

// StaleAfter is how long a pending key may stay unfinished before a
// retry is allowed to reclaim it.
const StaleAfter = time.Minute

// Replay is a cached response served for a repeated key.
type Replay struct {
	StatusCode  int
	ContentType string
	Body        []byte
}

// Store claims and completes idempotency keys.
type Store interface {
	// AcquireKey claims key. It returns (nil, nil) when the caller owns the
	// key, a Replay when the operation already finished, and an
	// IDEMPOTENCY_CONFLICT or IDEMPOTENCY_MISMATCH error otherwise.
	AcquireKey(ctx context.Context, key, userID, operation, requestHash string) (*Replay, error)

	CompleteKey(ctx context.Context, key string, statusCode int, contentType string, body []byte) error
	FailKey(ctx context.Context, key string, statusCode int, contentType string, body []byte) error
}

// NormalizeReplay fills defaults of records saved without a status or type.
func NormalizeReplay(r *Replay) *Replay {
	if r.StatusCode == 0 {
		r.StatusCode = 200
	}
	if r.ContentType == "" {
		r.ContentType = "application/json"
	}
	return r
}
