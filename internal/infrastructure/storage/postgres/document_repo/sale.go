package document_repo

import (
	"context"
	"fmt"

	"github.com/Masterminds/squirrel"
	"github.com/georgysavva/scany/v2/pgxscan"

	"stockforecast/internal/core/id"
	"stockforecast/internal/domain"
	"stockforecast/internal/domain/documents/sale"
	"stockforecast/internal/infrastructure/storage/postgres"
)

const (
	saleTable      = "doc_sale_orders"
	saleLinesTable = "doc_sale_order_lines"
)

var saleLineCols = []string{"line_id", "order_id", "line_no", "product_id", "product_uom_qty"}

var _ sale.Repository = (*SaleRepo)(nil)

// SaleRepo implements sale.Repository.
type SaleRepo struct {
	*BaseDocumentRepo[*sale.Order]
}

// NewSaleRepo creates a sale order repository.
func NewSaleRepo(txm *postgres.TxManager) *SaleRepo {
	return &SaleRepo{
		BaseDocumentRepo: NewBaseDocumentRepo(txm, saleTable, "sale order", func() *sale.Order {
			return &sale.Order{}
		}),
	}
}

func (r *SaleRepo) Create(ctx context.Context, doc *sale.Order) error {
	if err := r.BaseDocumentRepo.Create(ctx, doc); err != nil {
		return err
	}
	return r.saveLines(ctx, doc)
}

func (r *SaleRepo) Update(ctx context.Context, doc *sale.Order) error {
	if err := r.BaseDocumentRepo.Update(ctx, doc); err != nil {
		return err
	}
	return r.saveLines(ctx, doc)
}

func (r *SaleRepo) GetByID(ctx context.Context, docID id.ID) (*sale.Order, error) {
	doc, err := r.BaseDocumentRepo.GetByID(ctx, docID)
	if err != nil {
		return nil, err
	}
	return doc, r.loadLines(ctx, doc)
}

func (r *SaleRepo) GetForUpdate(ctx context.Context, docID id.ID) (*sale.Order, error) {
	doc, err := r.BaseDocumentRepo.GetForUpdate(ctx, docID)
	if err != nil {
		return nil, err
	}
	return doc, r.loadLines(ctx, doc)
}

func (r *SaleRepo) listQuery(f sale.ListFilter) squirrel.SelectBuilder {
	q := r.ListQuery(f.ListFilter)
	if f.State != nil {
		q = q.Where(squirrel.Eq{"state": *f.State})
	}
	if f.ProductID != nil {
		sql, args, _ := squirrel.Eq{"l.product_id": *f.ProductID}.ToSql()
		q = q.Where(squirrel.Expr(
			"EXISTS (SELECT 1 FROM "+saleLinesTable+" l WHERE l.order_id = "+saleTable+".id AND "+sql+")", args...))
	}
	return q
}

func (r *SaleRepo) List(ctx context.Context, f sale.ListFilter) (domain.ListResult[*sale.Order], error) {
	res, err := r.Page(ctx, r.listQuery(f), f.ListFilter)
	if err != nil {
		return res, err
	}
	return res, r.loadLines(ctx, res.Items...)
}

func (r *SaleRepo) loadLines(ctx context.Context, docs ...*sale.Order) error {
	if len(docs) == 0 {
		return nil
	}
	byID := make(map[id.ID]*sale.Order, len(docs))
	ids := make([]id.ID, 0, len(docs))
	for _, d := range docs {
		d.Lines = make([]sale.Line, 0)
		byID[d.ID] = d
		ids = append(ids, d.ID)
	}

	sql, args, err := r.Builder().
		Select(saleLineCols...).
		From(saleLinesTable).
		Where(squirrel.Eq{"order_id": ids}).
		OrderBy("order_id", "line_no").
		ToSql()
	if err != nil {
		return fmt.Errorf("build query: %w", err)
	}

	var lines []sale.Line
	if err := pgxscan.Select(ctx, r.Querier(ctx), &lines, sql, args...); err != nil {
		return fmt.Errorf("get lines: %w", err)
	}
	for _, l := range lines {
		if d, ok := byID[l.OrderID]; ok {
			d.Lines = append(d.Lines, l)
		}
	}
	return nil
}

func (r *SaleRepo) saveLines(ctx context.Context, doc *sale.Order) error {
	rows := make([][]any, 0, len(doc.Lines))
	for _, l := range doc.Lines {
		rows = append(rows, []any{l.LineID, doc.ID, l.LineNo, l.ProductID, l.ProductUomQty})
	}
	return replaceLines(ctx, r.Querier(ctx), saleLinesTable, "order_id", doc.ID, saleLineCols, rows)
}
