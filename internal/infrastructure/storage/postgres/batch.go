package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
)

// BatchInserter bulk-inserts rows with the COPY protocol.
type BatchInserter struct {
	txm *TxManager
}

// NewBatchInserter creates a batch inserter.
func NewBatchInserter(txm *TxManager) *BatchInserter {
	return &BatchInserter{txm: txm}
}

// CopyFromSlice inserts rows into table. It must run inside a transaction.
func (b *BatchInserter) CopyFromSlice(ctx context.Context, table string, columns []string, rows [][]any) (int64, error) {
	t := b.txm.GetTx(ctx)
	if t == nil {
		return 0, fmt.Errorf("CopyFromSlice requires transaction context")
	}
	if len(rows) == 0 {
		return 0, nil
	}
	return t.CopyFrom(ctx, pgx.Identifier{table}, columns, pgx.CopyFromRows(rows))
}

// BatchQuery is one statement of a batch.
type BatchQuery struct {
	SQL  string
	Args []any
}

// ExecuteBatch sends queries in one round trip on the context transaction,
// or on the pool outside one.
func ExecuteBatch(ctx context.Context, txm *TxManager, queries []BatchQuery) error {
	if len(queries) == 0 {
		return nil
	}

	batch := &pgx.Batch{}
	for _, q := range queries {
		batch.Queue(q.SQL, q.Args...)
	}

	var results pgx.BatchResults
	if t := txm.GetTx(ctx); t != nil {
		results = t.SendBatch(ctx, batch)
	} else {
		results = txm.RawPool().SendBatch(ctx, batch)
	}
	defer results.Close()

	for range queries {
		if _, err := results.Exec(); err != nil {
			return fmt.Errorf("batch query failed: %w", err)
		}
	}
	return nil
}
