package memory

import (
	"context"

	"stockforecast/internal/core/id"
	"stockforecast/internal/domain/forecast"
)

// Journal keeps forecast row changes.
type Journal struct{ s *Store }

// NewJournal creates a row change journal.
func NewJournal(s *Store) *Journal { return &Journal{s: s} }

func (j *Journal) RecordChange(ctx context.Context, change forecast.RowChange) error {
	return j.s.do(ctx, func(t *tables) error {
		t.journal = append(t.journal, change)
		return nil
	})
}

func (j *Journal) History(ctx context.Context, rowID id.ID, limit int) ([]forecast.RowChange, error) {
	out := make([]forecast.RowChange, 0)
	err := j.s.do(ctx, func(t *tables) error {
		for i := len(t.journal) - 1; i >= 0; i-- {
			if t.journal[i].RowID != rowID {
				continue
			}
			out = append(out, t.journal[i])
			if limit > 0 && len(out) == limit {
				break
			}
		}
		return nil
	})
	return out, err
}

var (
	_ forecast.ChangeRecorder = (*Journal)(nil)
	_ forecast.HistoryReader  = (*Journal)(nil)
)
