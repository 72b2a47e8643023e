package memory

import (
	"cmp"
	"context"
	"slices"
	"time"

	"stockforecast/internal/core/apperror"
	"stockforecast/internal/core/id"
	"stockforecast/internal/core/types"
	"stockforecast/internal/domain"
	"stockforecast/internal/domain/forecast"
)

// ForecastRepo implements forecast.Repository.
type ForecastRepo struct{ s *Store }

// NewForecastRepo creates a report row repository.
func NewForecastRepo(s *Store) *ForecastRepo { return &ForecastRepo{s: s} }

func rowKey(productID id.ID, day time.Time) string {
	return productID.String() + "/" + types.Day(day).Format(types.DateLayout)
}

func byDateProduct(a, b *forecast.Row) int {
	return cmp.Or(a.Date.Compare(b.Date), id.Compare(a.ProductID, b.ProductID))
}

func (r *ForecastRepo) GetByID(ctx context.Context, rowID id.ID) (*forecast.Row, error) {
	var out *forecast.Row
	err := r.s.do(ctx, func(t *tables) error {
		row, ok := t.rows[rowID]
		if !ok {
			return apperror.NewNotFound("forecast row", rowID.String())
		}
		out = row.Clone()
		return nil
	})
	return out, err
}

func (r *ForecastRepo) GetByIDForUpdate(ctx context.Context, rowID id.ID) (*forecast.Row, error) {
	return r.GetByID(ctx, rowID)
}

func (r *ForecastRepo) GetForUpdate(ctx context.Context, productID id.ID, day time.Time) (*forecast.Row, error) {
	var out *forecast.Row
	err := r.s.do(ctx, func(t *tables) error {
		rowID, ok := t.rowKeys[rowKey(productID, day)]
		if !ok {
			return apperror.NewNotFound("forecast row", rowKey(productID, day))
		}
		out = t.rows[rowID].Clone()
		return nil
	})
	return out, err
}

func (r *ForecastRepo) Insert(ctx context.Context, row *forecast.Row) (bool, error) {
	inserted := false
	err := r.s.do(ctx, func(t *tables) error {
		key := rowKey(row.ProductID, row.Date)
		if _, ok := t.rowKeys[key]; ok {
			return nil
		}
		t.rows[row.ID] = row.Clone()
		t.rowKeys[key] = row.ID
		inserted = true
		return nil
	})
	return inserted, err
}

func (r *ForecastRepo) Update(ctx context.Context, row *forecast.Row) error {
	return r.s.do(ctx, func(t *tables) error {
		current, ok := t.rows[row.ID]
		if !ok {
			return apperror.NewNotFound("forecast row", row.ID.String())
		}
		if current.Version != row.Version {
			return apperror.NewConcurrentModification("forecast row", row.ID.String())
		}
		row.Version++
		t.rows[row.ID] = row.Clone()
		return nil
	})
}

func (r *ForecastRepo) Delete(ctx context.Context, rowID id.ID) error {
	return r.s.do(ctx, func(t *tables) error {
		row, ok := t.rows[rowID]
		if !ok {
			return apperror.NewNotFound("forecast row", rowID.String())
		}
		delete(t.rowKeys, rowKey(row.ProductID, row.Date))
		delete(t.rows, rowID)
		return nil
	})
}

func (r *ForecastRepo) List(ctx context.Context, f forecast.Filter) (domain.ListResult[*forecast.Row], error) {
	var res domain.ListResult[*forecast.Row]
	err := r.s.do(ctx, func(t *tables) error {
		items := make([]*forecast.Row, 0)
		for _, row := range t.rows {
			if len(f.ProductIDs) > 0 && !slices.Contains(f.ProductIDs, row.ProductID) {
				continue
			}
			if !inDays(row.Date, f.DateFrom, f.DateTo) {
				continue
			}
			if f.NonZeroOnly && row.TodayCurrentStock.IsZero() {
				continue
			}
			items = append(items, row.Clone())
		}
		slices.SortFunc(items, byDateProduct)
		if f.OrderBy == "-date" {
			slices.SortStableFunc(items, func(a, b *forecast.Row) int { return b.Date.Compare(a.Date) })
		}
		res = domain.ListResult[*forecast.Row]{
			Items:      page(items, f.Limit, f.Offset),
			TotalCount: int64(len(items)),
			Limit:      f.Limit,
			Offset:     f.Offset,
		}
		return nil
	})
	return res, err
}

func (r *ForecastRepo) ListByProductsFrom(ctx context.Context, productIDs []id.ID, from time.Time) ([]*forecast.Row, error) {
	var out []*forecast.Row
	err := r.s.do(ctx, func(t *tables) error {
		for _, row := range t.rows {
			if slices.Contains(productIDs, row.ProductID) && !row.Date.Before(types.Day(from)) {
				out = append(out, row.Clone())
			}
		}
		slices.SortFunc(out, func(a, b *forecast.Row) int {
			return cmp.Or(id.Compare(a.ProductID, b.ProductID), a.Date.Compare(b.Date))
		})
		return nil
	})
	return out, err
}

func (r *ForecastRepo) ListIDsInRange(ctx context.Context, from, to time.Time) ([]id.ID, error) {
	var out []id.ID
	err := r.s.do(ctx, func(t *tables) error {
		rows := make([]*forecast.Row, 0)
		for _, row := range t.rows {
			if inDays(row.Date, &from, &to) {
				rows = append(rows, row)
			}
		}
		slices.SortFunc(rows, byDateProduct)
		for _, row := range rows {
			out = append(out, row.ID)
		}
		return nil
	})
	return out, err
}

var _ forecast.Repository = (*ForecastRepo)(nil)
