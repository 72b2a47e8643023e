// Package register_repo provides PostgreSQL implementations for register repositories.
package register_repo

import (
	"context"
	"fmt"
	"slices"
	"time"

	"github.com/Masterminds/squirrel"
	"github.com/georgysavva/scany/v2/pgxscan"

	"stockforecast/internal/core/id"
	"stockforecast/internal/core/types"
	"stockforecast/internal/domain/registers/stock"
	"stockforecast/internal/infrastructure/storage/postgres"
)

const (
	stockMovementsTable = "reg_stock_movements"
	stockBalancesTable  = "reg_stock_balances"
)

var (
	movementCols = []string{
		"line_id", "recorder_id", "recorder_type", "recorder_version",
		"period", "record_type", "product_id", "quantity", "created_at",
	}
	balanceCols = []string{"product_id", "quantity", "last_movement_at", "updated_at"}
)

const upsertBalanceSQL = `
	INSERT INTO ` + stockBalancesTable + ` (product_id, quantity, last_movement_at, updated_at)
	VALUES ($1, $2, $3, $4)
	ON CONFLICT (product_id) DO UPDATE SET
		quantity = ` + stockBalancesTable + `.quantity + EXCLUDED.quantity,
		last_movement_at = GREATEST(` + stockBalancesTable + `.last_movement_at, EXCLUDED.last_movement_at),
		updated_at = EXCLUDED.updated_at`

// StockRepo implements stock.Repository.
type StockRepo struct {
	txm     *postgres.TxManager
	builder squirrel.StatementBuilderType
}

// NewStockRepo creates a new stock register repository.
func NewStockRepo(txm *postgres.TxManager) *StockRepo {
	return &StockRepo{
		txm:     txm,
		builder: squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar),
	}
}

// balanceDelta is the net effect of a movement batch on one product.
type balanceDelta struct {
	productID id.ID
	quantity  types.Quantity
	last      time.Time
}

// netBalances folds movements per product, ordered by product id so
// concurrent writers lock balance rows in the same order.
func netBalances(movements []stock.Movement) []balanceDelta {
	byProduct := make(map[id.ID]*balanceDelta)
	out := make([]*balanceDelta, 0)
	for _, m := range movements {
		d, ok := byProduct[m.ProductID]
		if !ok {
			d = &balanceDelta{productID: m.ProductID, last: m.Period}
			byProduct[m.ProductID] = d
			out = append(out, d)
		}
		d.quantity += m.Signed()
		if m.Period.After(d.last) {
			d.last = m.Period
		}
	}
	slices.SortFunc(out, func(a, b *balanceDelta) int { return id.Compare(a.productID, b.productID) })

	res := make([]balanceDelta, len(out))
	for i, d := range out {
		res[i] = *d
	}
	return res
}

// CreateMovements copies movements and applies them to balances. A
// transaction is required: movements and balances change together.
func (r *StockRepo) CreateMovements(ctx context.Context, movements []stock.Movement) error {
	if len(movements) == 0 {
		return nil
	}

	return r.txm.RunInTransaction(ctx, func(ctx context.Context) error {
		now := time.Now().UTC()
		rows := make([][]any, 0, len(movements))
		for _, m := range movements {
			createdAt := m.CreatedAt
			if createdAt.IsZero() {
				createdAt = now
			}
			rows = append(rows, []any{
				m.LineID, m.RecorderID, m.RecorderType, m.RecorderVersion,
				m.Period, string(m.RecordType), m.ProductID, m.Quantity.Int64Scaled(), createdAt,
			})
		}
		if _, err := postgres.NewBatchInserter(r.txm).CopyFromSlice(ctx, stockMovementsTable, movementCols, rows); err != nil {
			return fmt.Errorf("copy movements: %w", err)
		}

		deltas := netBalances(movements)
		queries := make([]postgres.BatchQuery, 0, len(deltas))
		for _, d := range deltas {
			queries = append(queries, postgres.BatchQuery{
				SQL:  upsertBalanceSQL,
				Args: []any{d.productID, d.quantity.Int64Scaled(), d.last, now},
			})
		}
		if err := postgres.ExecuteBatch(ctx, r.txm, queries); err != nil {
			return fmt.Errorf("apply balances: %w", err)
		}
		return nil
	})
}

// GetMovementsByRecorder retrieves movements for a document.
func (r *StockRepo) GetMovementsByRecorder(ctx context.Context, recorderID id.ID) ([]stock.Movement, error) {
	q := r.builder.Select(movementCols...).
		From(stockMovementsTable).
		Where(squirrel.Eq{"recorder_id": recorderID}).
		OrderBy("created_at", "line_id")

	return r.selectMovements(ctx, q)
}

func (r *StockRepo) getBalance(ctx context.Context, productID id.ID, suffix string) (stock.Balance, error) {
	q := r.builder.Select(balanceCols...).
		From(stockBalancesTable).
		Where(squirrel.Eq{"product_id": productID})
	if suffix != "" {
		q = q.Suffix(suffix)
	}

	sql, args, err := q.ToSql()
	if err != nil {
		return stock.Balance{}, fmt.Errorf("build query: %w", err)
	}

	var balance stock.Balance
	if err := pgxscan.Get(ctx, r.txm.GetQuerier(ctx), &balance, sql, args...); err != nil {
		if pgxscan.NotFound(err) {
			return stock.Balance{ProductID: productID}, nil
		}
		return balance, fmt.Errorf("get balance: %w", err)
	}
	return balance, nil
}

// GetBalance returns the current balance; zero when the product never moved.
func (r *StockRepo) GetBalance(ctx context.Context, productID id.ID) (stock.Balance, error) {
	return r.getBalance(ctx, productID, "")
}

// GetBalanceForUpdate returns the balance with a row lock.
func (r *StockRepo) GetBalanceForUpdate(ctx context.Context, productID id.ID) (stock.Balance, error) {
	return r.getBalance(ctx, productID, "FOR UPDATE")
}

func balancesQuery(b squirrel.StatementBuilderType, f stock.BalanceFilter) squirrel.SelectBuilder {
	q := b.Select(balanceCols...).From(stockBalancesTable)
	if len(f.ProductIDs) > 0 {
		q = q.Where(squirrel.Eq{"product_id": f.ProductIDs})
	}
	if f.ExcludeZero {
		q = q.Where(squirrel.NotEq{"quantity": int64(0)})
	}
	return q.OrderBy("product_id")
}

func (r *StockRepo) ListBalances(ctx context.Context, f stock.BalanceFilter) ([]stock.Balance, error) {
	sql, args, err := balancesQuery(r.builder, f).ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	balances := make([]stock.Balance, 0)
	if err := pgxscan.Select(ctx, r.txm.GetQuerier(ctx), &balances, sql, args...); err != nil {
		return nil, fmt.Errorf("select balances: %w", err)
	}
	return balances, nil
}

func historyQuery(b squirrel.StatementBuilderType, f stock.MovementFilter) squirrel.SelectBuilder {
	q := b.Select(movementCols...).From(stockMovementsTable)

	if f.ProductID != nil {
		q = q.Where(squirrel.Eq{"product_id": *f.ProductID})
	}
	if f.RecorderID != nil {
		q = q.Where(squirrel.Eq{"recorder_id": *f.RecorderID})
	}
	if f.RecordType != nil {
		q = q.Where(squirrel.Eq{"record_type": string(*f.RecordType)})
	}
	if f.FromDate != nil {
		q = q.Where(squirrel.GtOrEq{"period": *f.FromDate})
	}
	if f.ToDate != nil {
		q = q.Where(squirrel.LtOrEq{"period": *f.ToDate})
	}

	q = q.OrderBy("period DESC", "created_at DESC")
	if f.Limit > 0 {
		q = q.Limit(uint64(f.Limit))
	}
	if f.Offset > 0 {
		q = q.Offset(uint64(f.Offset))
	}
	return q
}

// GetMovementHistory returns movements newest first.
func (r *StockRepo) GetMovementHistory(ctx context.Context, f stock.MovementFilter) ([]stock.Movement, error) {
	return r.selectMovements(ctx, historyQuery(r.builder, f))
}

func (r *StockRepo) selectMovements(ctx context.Context, q squirrel.SelectBuilder) ([]stock.Movement, error) {
	sql, args, err := q.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	movements := make([]stock.Movement, 0)
	if err := pgxscan.Select(ctx, r.txm.GetQuerier(ctx), &movements, sql, args...); err != nil {
		return nil, fmt.Errorf("select movements: %w", err)
	}
	return movements, nil
}

var _ stock.Repository = (*StockRepo)(nil)
