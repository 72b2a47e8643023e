// Package document_repo provides PostgreSQL implementations for document repositories.
package document_repo

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/Masterminds/squirrel"
	"github.com/georgysavva/scany/v2/pgxscan"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"stockforecast/internal/core/apperror"
	"stockforecast/internal/core/entity"
	"stockforecast/internal/core/id"
	"stockforecast/internal/core/types"
	"stockforecast/internal/domain"
	"stockforecast/internal/infrastructure/storage/postgres"
)

// documentEntity is a document header: BaseDocument plus db-tagged fields.
type documentEntity interface {
	entity.Entity
	Document() *entity.BaseDocument
}

// BaseDocumentRepo provides common CRUD operations for document headers.
// Line tables are handled by the concrete repositories.
type BaseDocumentRepo[T documentEntity] struct {
	txm        *postgres.TxManager
	tableName  string
	entityName string
	selectCols []string
	newFn      func() T
}

// NewBaseDocumentRepo creates a new base document repository.
func NewBaseDocumentRepo[T documentEntity](
	txm *postgres.TxManager,
	tableName, entityName string,
	newFn func() T,
) *BaseDocumentRepo[T] {
	return &BaseDocumentRepo[T]{
		txm:        txm,
		tableName:  tableName,
		entityName: entityName,
		selectCols: postgres.ExtractDBColumns[T](),
		newFn:      newFn,
	}
}

// Builder returns a new squirrel builder.
func (r *BaseDocumentRepo[T]) Builder() squirrel.StatementBuilderType {
	return squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar)
}

// Querier returns the transaction in ctx or the pool.
func (r *BaseDocumentRepo[T]) Querier(ctx context.Context) postgres.Querier {
	return r.txm.GetQuerier(ctx)
}

func (r *BaseDocumentRepo[T]) columnValues(e T, skip ...string) map[string]any {
	data := postgres.StructToMap(e)
	out := make(map[string]any, len(r.selectCols))
	for _, col := range r.selectCols {
		if slices.Contains(skip, col) {
			continue
		}
		if val, ok := data[col]; ok {
			out[col] = val
		}
	}
	return out
}

// Create inserts a new document header.
func (r *BaseDocumentRepo[T]) Create(ctx context.Context, e T) error {
	sql, args, err := r.Builder().
		Insert(r.tableName).
		SetMap(r.columnValues(e)).
		ToSql()
	if err != nil {
		return fmt.Errorf("build insert: %w", err)
	}

	if _, err := r.Querier(ctx).Exec(ctx, sql, args...); err != nil {
		return r.mapWriteError(err, e.Document().Number)
	}
	return nil
}

// Update saves the header with optimistic locking. On success the entity
// carries the new version and updated_at.
func (r *BaseDocumentRepo[T]) Update(ctx context.Context, e T) error {
	doc := e.Document()
	now := time.Now().UTC()

	sql, args, err := r.Builder().
		Update(r.tableName).
		SetMap(r.columnValues(e, "id", "version", "created_at", "created_by", "updated_at")).
		Set("version", squirrel.Expr("version + 1")).
		Set("updated_at", now).
		Where(squirrel.Eq{"id": doc.ID}).
		Where(squirrel.Eq{"version": doc.Version}).
		ToSql()
	if err != nil {
		return fmt.Errorf("build update: %w", err)
	}

	result, err := r.Querier(ctx).Exec(ctx, sql, args...)
	if err != nil {
		return r.mapWriteError(err, doc.Number)
	}
	if result.RowsAffected() == 0 {
		if ok, _ := r.exists(ctx, doc.ID); !ok {
			return apperror.NewNotFound(r.entityName, doc.ID.String())
		}
		return apperror.NewConcurrentModification(r.entityName, doc.ID.String())
	}

	doc.Version++
	doc.UpdatedAt = now
	return nil
}

// Delete soft-deletes a document.
func (r *BaseDocumentRepo[T]) Delete(ctx context.Context, entityID id.ID) error {
	sql, args, err := r.Builder().
		Update(r.tableName).
		Set("deletion_mark", true).
		Set("updated_at", squirrel.Expr("NOW()")).
		Set("version", squirrel.Expr("version + 1")).
		Where(squirrel.Eq{"id": entityID}).
		ToSql()
	if err != nil {
		return fmt.Errorf("build delete: %w", err)
	}

	result, err := r.Querier(ctx).Exec(ctx, sql, args...)
	if err != nil {
		return fmt.Errorf("delete %s: %w", r.tableName, err)
	}
	if result.RowsAffected() == 0 {
		return apperror.NewNotFound(r.entityName, entityID.String())
	}
	return nil
}

func (r *BaseDocumentRepo[T]) exists(ctx context.Context, entityID id.ID) (bool, error) {
	var one int
	err := r.Querier(ctx).QueryRow(ctx, "SELECT 1 FROM "+r.tableName+" WHERE id = $1", entityID).Scan(&one)
	if errors.Is(err, pgx.ErrNoRows) {
		return false, nil
	}
	return err == nil, err
}

func (r *BaseDocumentRepo[T]) mapWriteError(err error, number string) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case "23505":
			return apperror.NewDuplicate(r.entityName, "number", number).WithCause(err)
		case "23503":
			return apperror.NewValidation("referenced object does not exist").
				WithDetail("constraint", pgErr.ConstraintName).
				WithCause(err)
		}
	}
	return fmt.Errorf("write %s: %w", r.tableName, err)
}

// baseSelect creates a SELECT builder.
func (r *BaseDocumentRepo[T]) baseSelect() squirrel.SelectBuilder {
	return r.Builder().
		Select(r.selectCols...).
		From(r.tableName)
}

// GetByID retrieves a document header by ID. Deletion-marked documents
// are returned.
func (r *BaseDocumentRepo[T]) GetByID(ctx context.Context, entityID id.ID) (T, error) {
	return r.findOne(ctx, r.baseSelect().Where(squirrel.Eq{"id": entityID}), entityID.String())
}

// GetForUpdate retrieves the header with a row lock.
func (r *BaseDocumentRepo[T]) GetForUpdate(ctx context.Context, entityID id.ID) (T, error) {
	return r.findOne(ctx, r.baseSelect().Where(squirrel.Eq{"id": entityID}).Suffix("FOR UPDATE"), entityID.String())
}

// GetByNumber retrieves a document by Number.
func (r *BaseDocumentRepo[T]) GetByNumber(ctx context.Context, number string) (T, error) {
	return r.findOne(ctx, r.baseSelect().Where(squirrel.Eq{"number": number}), number)
}

func (r *BaseDocumentRepo[T]) findOne(ctx context.Context, q squirrel.SelectBuilder, key string) (T, error) {
	e := r.newFn()

	sql, args, err := q.ToSql()
	if err != nil {
		return e, fmt.Errorf("build query: %w", err)
	}

	if err := pgxscan.Get(ctx, r.Querier(ctx), e, sql, args...); err != nil {
		if pgxscan.NotFound(err) {
			return e, apperror.NewNotFound(r.entityName, key)
		}
		return e, fmt.Errorf("get %s: %w", r.tableName, err)
	}
	return e, nil
}

// FindMany executes q and returns all headers.
func (r *BaseDocumentRepo[T]) FindMany(ctx context.Context, q squirrel.SelectBuilder) ([]T, error) {
	sql, args, err := q.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	items := make([]T, 0)
	if err := pgxscan.Select(ctx, r.Querier(ctx), &items, sql, args...); err != nil {
		return nil, fmt.Errorf("select %s: %w", r.tableName, err)
	}
	return items, nil
}

// ListQuery applies the common document filter without pagination.
func (r *BaseDocumentRepo[T]) ListQuery(filter domain.ListFilter) squirrel.SelectBuilder {
	q := r.baseSelect()

	if !filter.IncludeDeleted {
		q = q.Where(squirrel.Eq{"deletion_mark": false})
	}
	if filter.Search != "" {
		q = q.Where(squirrel.ILike{"number": "%" + filter.Search + "%"})
	}
	if len(filter.IDs) > 0 {
		q = q.Where(squirrel.Eq{"id": filter.IDs})
	}
	return q
}

// Page counts q, then orders and paginates it.
func (r *BaseDocumentRepo[T]) Page(ctx context.Context, q squirrel.SelectBuilder, filter domain.ListFilter) (domain.ListResult[T], error) {
	result := domain.ListResult[T]{
		Items:  make([]T, 0),
		Limit:  filter.Limit,
		Offset: filter.Offset,
	}

	countSQL, countArgs, err := r.Builder().Select("COUNT(*)").FromSelect(q, "sub").ToSql()
	if err != nil {
		return result, fmt.Errorf("build count: %w", err)
	}

	querier := r.Querier(ctx)
	if err := querier.QueryRow(ctx, countSQL, countArgs...).Scan(&result.TotalCount); err != nil {
		return result, fmt.Errorf("count: %w", err)
	}

	orderBy, err := r.parseOrderBy(filter.OrderBy)
	if err != nil {
		return result, err
	}
	q = q.OrderBy(orderBy...)

	if filter.Limit > 0 {
		q = q.Limit(uint64(filter.Limit))
	}
	if filter.Offset > 0 {
		q = q.Offset(uint64(filter.Offset))
	}

	sql, args, err := q.ToSql()
	if err != nil {
		return result, fmt.Errorf("build query: %w", err)
	}

	if err := pgxscan.Select(ctx, querier, &result.Items, sql, args...); err != nil {
		return result, fmt.Errorf("list: %w", err)
	}
	return result, nil
}

// parseOrderBy defaults to newest first; id breaks ties.
func (r *BaseDocumentRepo[T]) parseOrderBy(orderBy string) ([]string, error) {
	if strings.TrimSpace(orderBy) == "" {
		return []string{"created_at DESC", "id DESC"}, nil
	}

	direction := "ASC"
	field := orderBy
	if strings.HasPrefix(orderBy, "-") {
		direction = "DESC"
		field = strings.TrimPrefix(orderBy, "-")
	} else if strings.HasPrefix(orderBy, "+") {
		field = strings.TrimPrefix(orderBy, "+")
	}

	field = strings.TrimSpace(field)
	if field == "" || !slices.Contains(r.selectCols, field) {
		return nil, apperror.NewValidation("invalid orderBy").WithDetail("orderBy", orderBy)
	}
	return []string{field + " " + direction, "id " + direction}, nil
}

// dayRange restricts the effective-date expression to inclusive days.
func dayRange(q squirrel.SelectBuilder, expr string, from, to *time.Time) squirrel.SelectBuilder {
	if from != nil {
		q = q.Where(expr+" >= ?", types.Day(*from))
	}
	if to != nil {
		q = q.Where(expr+" < ?", types.Day(*to).AddDate(0, 0, 1))
	}
	return q
}

// replaceLines deletes the lines of docID from table and inserts rows.
func replaceLines(ctx context.Context, q postgres.Querier, table, fk string, docID id.ID, cols []string, rows [][]any) error {
	if _, err := q.Exec(ctx, "DELETE FROM "+table+" WHERE "+fk+" = $1", docID); err != nil {
		return fmt.Errorf("delete existing lines: %w", err)
	}
	if len(rows) == 0 {
		return nil
	}

	ins := squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar).Insert(table).Columns(cols...)
	for _, row := range rows {
		ins = ins.Values(row...)
	}

	sql, args, err := ins.ToSql()
	if err != nil {
		return fmt.Errorf("build insert lines: %w", err)
	}
	if _, err := q.Exec(ctx, sql, args...); err != nil {
		return fmt.Errorf("insert lines into %s: %w", table, err)
	}
	return nil
}

// groupByOrder scans (order_id, quantity) rows.
func groupByOrder(ctx context.Context, q postgres.Querier, b squirrel.SelectBuilder) ([]domain.OrderQuantity, error) {
	sql, args, err := b.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	out := make([]domain.OrderQuantity, 0)
	if err := pgxscan.Select(ctx, q, &out, sql, args...); err != nil {
		return nil, fmt.Errorf("group by order: %w", err)
	}
	return out, nil
}
