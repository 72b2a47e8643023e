// Package tx declares the transactional store used by domain services.
// The postgres driver carries a pgx.Tx in the context; the memory driver
// serializes callers and restores a snapshot on error.
package tx

import "context"

// Manager runs fn in a transaction: committed when fn returns nil, rolled
// back otherwise. A transaction already present in ctx is joined, which is
// how bus handlers share the publishing document's transaction.
type Manager interface {
	RunInTransaction(ctx context.Context, fn func(ctx context.Context) error) error
}

// ReadOnlyManager also offers read-only transactions for report reads.
type ReadOnlyManager interface {
	Manager
	ReadOnly(ctx context.Context, fn func(ctx context.Context) error) error
}
