package document_repo

import (
	"context"
	"fmt"
	"time"

	"github.com/Masterminds/squirrel"
	"github.com/georgysavva/scany/v2/pgxscan"

	"stockforecast/internal/core/id"
	"stockforecast/internal/domain"
	"stockforecast/internal/domain/documents/manufacturing"
	"stockforecast/internal/infrastructure/storage/postgres"
)

const (
	manufacturingTable           = "doc_manufacturing_orders"
	manufacturingComponentsTable = "doc_manufacturing_components"

	manufacturingDay = "COALESCE(planned_start, created_at)"
)

var manufacturingComponentCols = []string{"line_id", "order_id", "line_no", "product_id", "quantity"}

var _ manufacturing.Repository = (*ManufacturingRepo)(nil)

// ManufacturingRepo implements manufacturing.Repository.
type ManufacturingRepo struct {
	*BaseDocumentRepo[*manufacturing.Order]
}

// NewManufacturingRepo creates a manufacturing order repository.
func NewManufacturingRepo(txm *postgres.TxManager) *ManufacturingRepo {
	return &ManufacturingRepo{
		BaseDocumentRepo: NewBaseDocumentRepo(txm, manufacturingTable, "manufacturing order", func() *manufacturing.Order {
			return &manufacturing.Order{}
		}),
	}
}

func (r *ManufacturingRepo) Create(ctx context.Context, doc *manufacturing.Order) error {
	if err := r.BaseDocumentRepo.Create(ctx, doc); err != nil {
		return err
	}
	return r.saveComponents(ctx, doc)
}

func (r *ManufacturingRepo) Update(ctx context.Context, doc *manufacturing.Order) error {
	if err := r.BaseDocumentRepo.Update(ctx, doc); err != nil {
		return err
	}
	return r.saveComponents(ctx, doc)
}

func (r *ManufacturingRepo) GetByID(ctx context.Context, docID id.ID) (*manufacturing.Order, error) {
	doc, err := r.BaseDocumentRepo.GetByID(ctx, docID)
	if err != nil {
		return nil, err
	}
	return doc, r.loadComponents(ctx, doc)
}

func (r *ManufacturingRepo) GetForUpdate(ctx context.Context, docID id.ID) (*manufacturing.Order, error) {
	doc, err := r.BaseDocumentRepo.GetForUpdate(ctx, docID)
	if err != nil {
		return nil, err
	}
	return doc, r.loadComponents(ctx, doc)
}

func (r *ManufacturingRepo) listQuery(f manufacturing.ListFilter) squirrel.SelectBuilder {
	q := r.ListQuery(f.ListFilter)
	if f.ProductID != nil {
		q = q.Where(squirrel.Eq{"product_id": *f.ProductID})
	}
	if f.State != nil {
		q = q.Where(squirrel.Eq{"state": *f.State})
	}
	return dayRange(q, manufacturingDay, f.DateFrom, f.DateTo)
}

func (r *ManufacturingRepo) List(ctx context.Context, f manufacturing.ListFilter) (domain.ListResult[*manufacturing.Order], error) {
	res, err := r.Page(ctx, r.listQuery(f), f.ListFilter)
	if err != nil {
		return res, err
	}
	return res, r.loadComponents(ctx, res.Items...)
}

func plannedQuantitiesQuery(productID id.ID, from, to time.Time) squirrel.SelectBuilder {
	return squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar).
		Select("id AS order_id", "SUM(product_qty)::BIGINT AS quantity", "COUNT(*)::INT AS lines").
		From(manufacturingTable).
		Where(squirrel.Eq{"deletion_mark": false}).
		Where(squirrel.NotEq{"state": manufacturing.StateCancelled}).
		Where(squirrel.Eq{"product_id": productID}).
		Where(manufacturingDay+" >= ?", from).
		Where(manufacturingDay+" < ?", to).
		GroupBy("id").
		OrderBy("id")
}

func (r *ManufacturingRepo) PlannedQuantities(ctx context.Context, productID id.ID, from, to time.Time) ([]domain.OrderQuantity, error) {
	return groupByOrder(ctx, r.Querier(ctx), plannedQuantitiesQuery(productID, from, to))
}

func (r *ManufacturingRepo) loadComponents(ctx context.Context, docs ...*manufacturing.Order) error {
	if len(docs) == 0 {
		return nil
	}
	byID := make(map[id.ID]*manufacturing.Order, len(docs))
	ids := make([]id.ID, 0, len(docs))
	for _, d := range docs {
		d.Components = make([]manufacturing.Component, 0)
		byID[d.ID] = d
		ids = append(ids, d.ID)
	}

	sql, args, err := r.Builder().
		Select(manufacturingComponentCols...).
		From(manufacturingComponentsTable).
		Where(squirrel.Eq{"order_id": ids}).
		OrderBy("order_id", "line_no").
		ToSql()
	if err != nil {
		return fmt.Errorf("build query: %w", err)
	}

	var comps []manufacturing.Component
	if err := pgxscan.Select(ctx, r.Querier(ctx), &comps, sql, args...); err != nil {
		return fmt.Errorf("get components: %w", err)
	}
	for _, c := range comps {
		if d, ok := byID[c.OrderID]; ok {
			d.Components = append(d.Components, c)
		}
	}
	return nil
}

func (r *ManufacturingRepo) saveComponents(ctx context.Context, doc *manufacturing.Order) error {
	rows := make([][]any, 0, len(doc.Components))
	for _, c := range doc.Components {
		rows = append(rows, []any{c.LineID, doc.ID, c.LineNo, c.ProductID, c.Quantity})
	}
	return replaceLines(ctx, r.Querier(ctx), manufacturingComponentsTable, "order_id", doc.ID, manufacturingComponentCols, rows)
}
