package memory

import (
	"cmp"
	"context"
	"slices"
	"time"

	"stockforecast/internal/core/id"
	"stockforecast/internal/domain/registers/stock"
)

// StockRepo implements stock.Repository.
type StockRepo struct{ s *Store }

// NewStockRepo creates a stock register repository.
func NewStockRepo(s *Store) *StockRepo { return &StockRepo{s: s} }

func (r *StockRepo) CreateMovements(ctx context.Context, movements []stock.Movement) error {
	return r.s.do(ctx, func(t *tables) error {
		now := time.Now().UTC()
		for _, m := range movements {
			t.movements = append(t.movements, m)

			b := t.balances[m.ProductID]
			b.ProductID = m.ProductID
			b.Quantity += m.Signed()
			period := m.Period
			if b.LastMovementAt == nil || period.After(*b.LastMovementAt) {
				b.LastMovementAt = &period
			}
			b.UpdatedAt = now
			t.balances[m.ProductID] = b
		}
		return nil
	})
}

func (r *StockRepo) GetMovementsByRecorder(ctx context.Context, recorderID id.ID) ([]stock.Movement, error) {
	var out []stock.Movement
	err := r.s.do(ctx, func(t *tables) error {
		for _, m := range t.movements {
			if m.RecorderID == recorderID {
				out = append(out, m)
			}
		}
		return nil
	})
	return out, err
}

func (r *StockRepo) GetBalance(ctx context.Context, productID id.ID) (stock.Balance, error) {
	var out stock.Balance
	err := r.s.do(ctx, func(t *tables) error {
		b, ok := t.balances[productID]
		if !ok {
			b = stock.Balance{ProductID: productID}
		}
		out = b
		return nil
	})
	return out, err
}

func (r *StockRepo) GetBalanceForUpdate(ctx context.Context, productID id.ID) (stock.Balance, error) {
	return r.GetBalance(ctx, productID)
}

func (r *StockRepo) ListBalances(ctx context.Context, f stock.BalanceFilter) ([]stock.Balance, error) {
	out := make([]stock.Balance, 0)
	err := r.s.do(ctx, func(t *tables) error {
		for _, b := range t.balances {
			if len(f.ProductIDs) > 0 && !slices.Contains(f.ProductIDs, b.ProductID) {
				continue
			}
			if f.ExcludeZero && b.Quantity.IsZero() {
				continue
			}
			out = append(out, b)
		}
		slices.SortFunc(out, func(a, b stock.Balance) int { return id.Compare(a.ProductID, b.ProductID) })
		return nil
	})
	return out, err
}

func (r *StockRepo) GetMovementHistory(ctx context.Context, f stock.MovementFilter) ([]stock.Movement, error) {
	var out []stock.Movement
	err := r.s.do(ctx, func(t *tables) error {
		items := make([]stock.Movement, 0)
		for _, m := range t.movements {
			if f.ProductID != nil && m.ProductID != *f.ProductID {
				continue
			}
			if f.RecorderID != nil && m.RecorderID != *f.RecorderID {
				continue
			}
			if f.RecordType != nil && m.RecordType != *f.RecordType {
				continue
			}
			if f.FromDate != nil && m.Period.Before(*f.FromDate) {
				continue
			}
			if f.ToDate != nil && m.Period.After(*f.ToDate) {
				continue
			}
			items = append(items, m)
		}
		slices.SortStableFunc(items, func(a, b stock.Movement) int {
			return cmp.Or(b.Period.Compare(a.Period), b.CreatedAt.Compare(a.CreatedAt))
		})
		out = page(items, f.Limit, f.Offset)
		return nil
	})
	return out, err
}

var _ stock.Repository = (*StockRepo)(nil)
