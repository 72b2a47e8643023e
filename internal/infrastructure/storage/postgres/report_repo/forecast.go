// Package report_repo provides the PostgreSQL store of forecast report rows.
package report_repo

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/Masterminds/squirrel"
	"github.com/georgysavva/scany/v2/pgxscan"

	"stockforecast/internal/core/apperror"
	"stockforecast/internal/core/id"
	"stockforecast/internal/core/types"
	"stockforecast/internal/domain"
	"stockforecast/internal/domain/forecast"
	"stockforecast/internal/infrastructure/storage/postgres"
)

const forecastTable = "rpt_forecast_rows"

var (
	rowCols = postgres.ExtractDBColumns[forecast.Row]()

	// rowValueCols are rewritten by Update; identity and bookkeeping are not.
	rowValueCols = []string{
		"sale_order_quantity", "sale_order_refs",
		"purchase_order_quantity", "purchase_order_refs",
		"stock_on_hand", "being_manufactured", "manufacturing_order_refs",
		"reserved_quantity", "bom_quantity", "bom_refs",
		"forecast_quantity", "today_current_stock", "used_in_refs",
		"order_lines",
	}
)

var _ forecast.Repository = (*ForecastRepo)(nil)

// ForecastRepo implements forecast.Repository.
type ForecastRepo struct {
	txm     *postgres.TxManager
	builder squirrel.StatementBuilderType
}

// NewForecastRepo creates a forecast row repository.
func NewForecastRepo(txm *postgres.TxManager) *ForecastRepo {
	return &ForecastRepo{
		txm:     txm,
		builder: squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar),
	}
}

// refs keeps NOT NULL array columns out of NULL.
func refs(s forecast.RefSet) []id.ID {
	if s == nil {
		return []id.ID{}
	}
	return []id.ID(s)
}

func rowValues(row *forecast.Row) (map[string]any, error) {
	m := postgres.StructToMap(row)
	lines := row.OrderLines
	if lines == nil {
		lines = forecast.LineCounts{}
	}
	raw, err := json.Marshal(lines)
	if err != nil {
		return nil, fmt.Errorf("encode order lines: %w", err)
	}
	m["order_lines"] = raw
	for _, c := range []string{"sale_order_refs", "purchase_order_refs", "manufacturing_order_refs", "bom_refs", "used_in_refs"} {
		if s, ok := m[c].(forecast.RefSet); ok {
			m[c] = refs(s)
		}
	}
	for k, v := range m {
		if q, ok := v.(types.Quantity); ok {
			m[k] = q.Int64Scaled()
		}
	}
	return m, nil
}

func (r *ForecastRepo) insertQuery(row *forecast.Row) (squirrel.InsertBuilder, error) {
	values, err := rowValues(row)
	if err != nil {
		return squirrel.InsertBuilder{}, err
	}
	args := make([]any, 0, len(rowCols))
	for _, c := range rowCols {
		args = append(args, values[c])
	}
	return r.builder.Insert(forecastTable).
		Columns(rowCols...).
		Values(args...).
		Suffix("ON CONFLICT (product_id, date) DO NOTHING"), nil
}

// Insert creates the row unless (product, date) exists.
func (r *ForecastRepo) Insert(ctx context.Context, row *forecast.Row) (bool, error) {
	row.Date = types.Day(row.Date)
	now := time.Now().UTC()
	if row.CreatedAt.IsZero() {
		row.CreatedAt = now
	}
	if row.UpdatedAt.IsZero() {
		row.UpdatedAt = now
	}
	if row.Version == 0 {
		row.Version = 1
	}

	q, err := r.insertQuery(row)
	if err != nil {
		return false, err
	}
	sql, args, err := q.ToSql()
	if err != nil {
		return false, fmt.Errorf("build insert: %w", err)
	}

	tag, err := r.txm.GetQuerier(ctx).Exec(ctx, sql, args...)
	if err != nil {
		return false, fmt.Errorf("insert forecast row: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}

func (r *ForecastRepo) updateQuery(row *forecast.Row, now time.Time) (squirrel.UpdateBuilder, error) {
	values, err := rowValues(row)
	if err != nil {
		return squirrel.UpdateBuilder{}, err
	}
	q := r.builder.Update(forecastTable)
	for _, c := range rowValueCols {
		q = q.Set(c, values[c])
	}
	return q.
		Set("version", squirrel.Expr("version + 1")).
		Set("updated_at", now).
		Where(squirrel.Eq{"id": row.ID}).
		Where(squirrel.Eq{"version": row.Version}), nil
}

// Update saves the row with an optimistic version check.
func (r *ForecastRepo) Update(ctx context.Context, row *forecast.Row) error {
	now := time.Now().UTC()
	q, err := r.updateQuery(row, now)
	if err != nil {
		return err
	}
	sql, args, err := q.ToSql()
	if err != nil {
		return fmt.Errorf("build update: %w", err)
	}

	tag, err := r.txm.GetQuerier(ctx).Exec(ctx, sql, args...)
	if err != nil {
		return fmt.Errorf("update forecast row: %w", err)
	}
	if tag.RowsAffected() == 0 {
		exists, err := r.exists(ctx, row.ID)
		if err != nil {
			return err
		}
		if !exists {
			return apperror.NewNotFound("forecast row", row.ID.String())
		}
		return apperror.NewConcurrentModification("forecast row", row.ID.String())
	}

	row.Version++
	row.UpdatedAt = now
	return nil
}

// Delete removes the row permanently.
func (r *ForecastRepo) Delete(ctx context.Context, rowID id.ID) error {
	tag, err := r.txm.GetQuerier(ctx).Exec(ctx, "DELETE FROM "+forecastTable+" WHERE id = $1", rowID)
	if err != nil {
		return fmt.Errorf("delete forecast row: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return apperror.NewNotFound("forecast row", rowID.String())
	}
	return nil
}

func (r *ForecastRepo) exists(ctx context.Context, rowID id.ID) (bool, error) {
	var exists bool
	err := r.txm.GetQuerier(ctx).QueryRow(ctx,
		"SELECT EXISTS(SELECT 1 FROM "+forecastTable+" WHERE id = $1)", rowID).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check exists: %w", err)
	}
	return exists, nil
}

func (r *ForecastRepo) baseSelect() squirrel.SelectBuilder {
	return r.builder.Select(rowCols...).From(forecastTable)
}

func (r *ForecastRepo) getOne(ctx context.Context, q squirrel.SelectBuilder, key string) (*forecast.Row, error) {
	sql, args, err := q.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	var row forecast.Row
	if err := pgxscan.Get(ctx, r.txm.GetQuerier(ctx), &row, sql, args...); err != nil {
		if pgxscan.NotFound(err) {
			return nil, apperror.NewNotFound("forecast row", key)
		}
		return nil, fmt.Errorf("get forecast row: %w", err)
	}
	return &row, nil
}

func (r *ForecastRepo) GetByID(ctx context.Context, rowID id.ID) (*forecast.Row, error) {
	return r.getOne(ctx, r.baseSelect().Where(squirrel.Eq{"id": rowID}), rowID.String())
}

func (r *ForecastRepo) GetByIDForUpdate(ctx context.Context, rowID id.ID) (*forecast.Row, error) {
	return r.getOne(ctx, r.baseSelect().Where(squirrel.Eq{"id": rowID}).Suffix("FOR UPDATE"), rowID.String())
}

func (r *ForecastRepo) GetForUpdate(ctx context.Context, productID id.ID, day time.Time) (*forecast.Row, error) {
	day = types.Day(day)
	q := r.baseSelect().
		Where(squirrel.Eq{"product_id": productID}).
		Where(squirrel.Eq{"date": day}).
		Suffix("FOR UPDATE")
	return r.getOne(ctx, q, productID.String()+"/"+day.Format(types.DateLayout))
}

func (r *ForecastRepo) selectRows(ctx context.Context, q squirrel.SelectBuilder) ([]*forecast.Row, error) {
	sql, args, err := q.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	rows := make([]*forecast.Row, 0)
	if err := pgxscan.Select(ctx, r.txm.GetQuerier(ctx), &rows, sql, args...); err != nil {
		return nil, fmt.Errorf("select forecast rows: %w", err)
	}
	return rows, nil
}

// ListByProductsFrom locks rows of productIDs dated from or later, in
// (product, date) order.
func (r *ForecastRepo) ListByProductsFrom(ctx context.Context, productIDs []id.ID, from time.Time) ([]*forecast.Row, error) {
	if len(productIDs) == 0 {
		return []*forecast.Row{}, nil
	}
	q := r.baseSelect().
		Where(squirrel.Eq{"product_id": productIDs}).
		Where(squirrel.GtOrEq{"date": types.Day(from)}).
		OrderBy("product_id", "date").
		Suffix("FOR UPDATE")
	return r.selectRows(ctx, q)
}

func (r *ForecastRepo) ListIDsInRange(ctx context.Context, from, to time.Time) ([]id.ID, error) {
	sql, args, err := r.builder.Select("id").
		From(forecastTable).
		Where(squirrel.GtOrEq{"date": types.Day(from)}).
		Where(squirrel.LtOrEq{"date": types.Day(to)}).
		OrderBy("date", "product_id").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	ids := make([]id.ID, 0)
	if err := pgxscan.Select(ctx, r.txm.GetQuerier(ctx), &ids, sql, args...); err != nil {
		return nil, fmt.Errorf("select row ids: %w", err)
	}
	return ids, nil
}

func filterQuery(q squirrel.SelectBuilder, f forecast.Filter) squirrel.SelectBuilder {
	if len(f.ProductIDs) > 0 {
		q = q.Where(squirrel.Eq{"product_id": f.ProductIDs})
	}
	if f.DateFrom != nil {
		q = q.Where(squirrel.GtOrEq{"date": types.Day(*f.DateFrom)})
	}
	if f.DateTo != nil {
		q = q.Where(squirrel.LtOrEq{"date": types.Day(*f.DateTo)})
	}
	if f.NonZeroOnly {
		q = q.Where(squirrel.NotEq{"today_current_stock": int64(0)})
	}
	return q
}

func (r *ForecastRepo) List(ctx context.Context, f forecast.Filter) (domain.ListResult[*forecast.Row], error) {
	f.Normalize()
	res := domain.ListResult[*forecast.Row]{Limit: f.Limit, Offset: f.Offset}

	countSQL, countArgs, err := filterQuery(r.builder.Select("COUNT(*)").From(forecastTable), f).ToSql()
	if err != nil {
		return res, fmt.Errorf("build count: %w", err)
	}
	if err := r.txm.GetQuerier(ctx).QueryRow(ctx, countSQL, countArgs...).Scan(&res.TotalCount); err != nil {
		return res, fmt.Errorf("count forecast rows: %w", err)
	}

	order := "date ASC"
	if f.OrderBy == "-date" {
		order = "date DESC"
	}
	q := filterQuery(r.baseSelect(), f).
		OrderBy(order, "product_id ASC").
		Limit(uint64(f.Limit)).
		Offset(uint64(f.Offset))

	items, err := r.selectRows(ctx, q)
	if err != nil {
		return res, err
	}
	res.Items = items
	return res, nil
}
