package catalog_repo

import (
	"context"
	"fmt"

	"github.com/Masterminds/squirrel"
	"github.com/georgysavva/scany/v2/pgxscan"

	"stockforecast/internal/core/id"
	"stockforecast/internal/domain"
	"stockforecast/internal/domain/catalogs/bom"
	"stockforecast/internal/infrastructure/storage/postgres"
)

const (
	bomTable      = "cat_boms"
	bomLinesTable = "cat_bom_lines"
)

var bomLineCols = []string{"line_id", "bom_id", "line_no", "product_id", "quantity"}

var _ bom.Repository = (*BomRepo)(nil)

// BomRepo implements bom.Repository. Lines are replaced on every save.
type BomRepo struct {
	*BaseCatalogRepo[*bom.BoM]
}

// NewBomRepo creates a BoM repository.
func NewBomRepo(txm *postgres.TxManager) *BomRepo {
	return &BomRepo{
		BaseCatalogRepo: NewBaseCatalogRepo(txm, bomTable, "bom", func() *bom.BoM {
			return &bom.BoM{}
		}),
	}
}

// Create inserts the header and its lines.
func (r *BomRepo) Create(ctx context.Context, b *bom.BoM) error {
	if err := r.BaseCatalogRepo.Create(ctx, b); err != nil {
		return err
	}
	return r.saveLines(ctx, b.ID, b.Lines)
}

// Update saves the header with a version check, then replaces the lines.
func (r *BomRepo) Update(ctx context.Context, b *bom.BoM) error {
	if err := r.BaseCatalogRepo.Update(ctx, b); err != nil {
		return err
	}
	return r.saveLines(ctx, b.ID, b.Lines)
}

func (r *BomRepo) GetByID(ctx context.Context, bomID id.ID) (*bom.BoM, error) {
	b, err := r.BaseCatalogRepo.GetByID(ctx, bomID)
	if err != nil {
		return nil, err
	}
	return b, r.loadLines(ctx, b)
}

func (r *BomRepo) GetByCode(ctx context.Context, code string) (*bom.BoM, error) {
	b, err := r.BaseCatalogRepo.GetByCode(ctx, code)
	if err != nil {
		return nil, err
	}
	return b, r.loadLines(ctx, b)
}

// List searches code.
func (r *BomRepo) List(ctx context.Context, filter domain.ListFilter) (domain.ListResult[*bom.BoM], error) {
	res, err := r.BaseCatalogRepo.List(ctx, filter, "code")
	if err != nil {
		return res, err
	}
	return res, r.loadLines(ctx, res.Items...)
}

// ListByTemplate returns non-deleted BoMs producing templateID.
func (r *BomRepo) ListByTemplate(ctx context.Context, templateID id.ID) ([]*bom.BoM, error) {
	items, err := r.FindMany(ctx, r.baseSelect().
		Where(squirrel.Eq{"product_template_id": templateID}).
		Where(squirrel.Eq{"deletion_mark": false}).
		OrderBy("id"))
	if err != nil {
		return nil, err
	}
	return items, r.loadLines(ctx, items...)
}

// ListByComponent returns non-deleted BoMs having productID as a line.
func (r *BomRepo) ListByComponent(ctx context.Context, productID id.ID) ([]*bom.BoM, error) {
	sub := r.Builder().
		Select("1").
		From(bomLinesTable + " l").
		Where("l.bom_id = " + bomTable + ".id").
		Where(squirrel.Eq{"l.product_id": productID})

	items, err := r.FindMany(ctx, r.baseSelect().
		Where(squirrel.Eq{"deletion_mark": false}).
		Where(existsExpr(sub)).
		OrderBy("id"))
	if err != nil {
		return nil, err
	}
	return items, r.loadLines(ctx, items...)
}

func (r *BomRepo) loadLines(ctx context.Context, boms ...*bom.BoM) error {
	if len(boms) == 0 {
		return nil
	}
	byID := make(map[id.ID]*bom.BoM, len(boms))
	ids := make([]id.ID, 0, len(boms))
	for _, b := range boms {
		b.Lines = make([]bom.Line, 0)
		byID[b.ID] = b
		ids = append(ids, b.ID)
	}

	sql, args, err := r.Builder().
		Select(bomLineCols...).
		From(bomLinesTable).
		Where(squirrel.Eq{"bom_id": ids}).
		OrderBy("bom_id", "line_no").
		ToSql()
	if err != nil {
		return fmt.Errorf("build query: %w", err)
	}

	var lines []bom.Line
	if err := pgxscan.Select(ctx, r.Querier(ctx), &lines, sql, args...); err != nil {
		return fmt.Errorf("get bom lines: %w", err)
	}
	for _, l := range lines {
		if b, ok := byID[l.BomID]; ok {
			b.Lines = append(b.Lines, l)
		}
	}
	return nil
}

func (r *BomRepo) saveLines(ctx context.Context, bomID id.ID, lines []bom.Line) error {
	querier := r.Querier(ctx)

	if _, err := querier.Exec(ctx, "DELETE FROM "+bomLinesTable+" WHERE bom_id = $1", bomID); err != nil {
		return fmt.Errorf("delete existing lines: %w", err)
	}
	if len(lines) == 0 {
		return nil
	}

	q := r.Builder().Insert(bomLinesTable).Columns(bomLineCols...)
	for _, l := range lines {
		q = q.Values(l.LineID, bomID, l.LineNo, l.ProductID, l.Quantity)
	}

	sql, args, err := q.ToSql()
	if err != nil {
		return fmt.Errorf("build insert lines: %w", err)
	}
	if _, err := querier.Exec(ctx, sql, args...); err != nil {
		return r.mapWriteError(err, &bom.BoM{})
	}
	return nil
}

// existsExpr wraps sub in EXISTS (...).
func existsExpr(sub squirrel.SelectBuilder) squirrel.Sqlizer {
	sql, args, err := sub.PlaceholderFormat(squirrel.Question).ToSql()
	if err != nil {
		return squirrel.Expr("FALSE")
	}
	return squirrel.Expr("EXISTS ("+sql+")", args...)
}
