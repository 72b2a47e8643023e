package memory

import (
	"context"
	"time"

	"stockforecast/internal/core/numerator"
)

// Numerator implements numerator.Generator over the store's sequences.
type Numerator struct{ s *Store }

// NewNumerator creates a numerator.
func NewNumerator(s *Store) *Numerator { return &Numerator{s: s} }

func (n *Numerator) GetNextNumber(ctx context.Context, cfg numerator.Config, period time.Time) (string, error) {
	var out string
	err := n.s.do(ctx, func(t *tables) error {
		key := cfg.Key(period)
		t.sequences[key]++
		out = cfg.Format(period, t.sequences[key])
		return nil
	})
	return out, err
}

var _ numerator.Generator = (*Numerator)(nil)
