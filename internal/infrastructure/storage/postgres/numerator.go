package postgres

import (
	"context"
	"fmt"
	"time"

	"stockforecast/internal/core/numerator"
)

var _ numerator.Generator = (*Numerator)(nil)

// Numerator issues document numbers from sys_sequences. The upsert runs on
// the caller's transaction, so a rolled-back document releases its number.
type Numerator struct {
	txm *TxManager
}

// NewNumerator creates a numerator over txm.
func NewNumerator(txm *TxManager) *Numerator {
	return &Numerator{txm: txm}
}

// GetNextNumber increments the sequence of cfg for period and formats it.
func (n *Numerator) GetNextNumber(ctx context.Context, cfg numerator.Config, period time.Time) (string, error) {
	if period.IsZero() {
		period = time.Now().UTC()
	}
	key := cfg.Key(period)

	var next int64
	err := n.txm.GetQuerier(ctx).QueryRow(ctx, `
		INSERT INTO sys_sequences (key, current_val)
		VALUES ($1, 1)
		ON CONFLICT (key) DO UPDATE SET current_val = sys_sequences.current_val + 1
		RETURNING current_val`, key).Scan(&next)
	if err != nil {
		return "", fmt.Errorf("next sequence value %s: %w", key, err)
	}
	return cfg.Format(period, next), nil
}
