package document_repo

import (
	"context"
	"fmt"

	"github.com/Masterminds/squirrel"
	"github.com/georgysavva/scany/v2/pgxscan"

	"stockforecast/internal/core/id"
	"stockforecast/internal/domain"
	"stockforecast/internal/domain/documents/purchase"
	"stockforecast/internal/infrastructure/storage/postgres"
)

const (
	purchaseTable      = "doc_purchase_orders"
	purchaseLinesTable = "doc_purchase_order_lines"
)

var purchaseLineCols = []string{"line_id", "order_id", "line_no", "product_id", "product_qty"}

var _ purchase.Repository = (*PurchaseRepo)(nil)

// PurchaseRepo implements purchase.Repository.
type PurchaseRepo struct {
	*BaseDocumentRepo[*purchase.Order]
}

// NewPurchaseRepo creates a purchase order repository.
func NewPurchaseRepo(txm *postgres.TxManager) *PurchaseRepo {
	return &PurchaseRepo{
		BaseDocumentRepo: NewBaseDocumentRepo(txm, purchaseTable, "purchase order", func() *purchase.Order {
			return &purchase.Order{}
		}),
	}
}

func (r *PurchaseRepo) Create(ctx context.Context, doc *purchase.Order) error {
	if err := r.BaseDocumentRepo.Create(ctx, doc); err != nil {
		return err
	}
	return r.saveLines(ctx, doc)
}

func (r *PurchaseRepo) Update(ctx context.Context, doc *purchase.Order) error {
	if err := r.BaseDocumentRepo.Update(ctx, doc); err != nil {
		return err
	}
	return r.saveLines(ctx, doc)
}

func (r *PurchaseRepo) GetByID(ctx context.Context, docID id.ID) (*purchase.Order, error) {
	doc, err := r.BaseDocumentRepo.GetByID(ctx, docID)
	if err != nil {
		return nil, err
	}
	return doc, r.loadLines(ctx, doc)
}

func (r *PurchaseRepo) GetForUpdate(ctx context.Context, docID id.ID) (*purchase.Order, error) {
	doc, err := r.BaseDocumentRepo.GetForUpdate(ctx, docID)
	if err != nil {
		return nil, err
	}
	return doc, r.loadLines(ctx, doc)
}

func (r *PurchaseRepo) listQuery(f purchase.ListFilter) squirrel.SelectBuilder {
	q := r.ListQuery(f.ListFilter)
	if f.State != nil {
		q = q.Where(squirrel.Eq{"state": *f.State})
	}
	if f.ProductID != nil {
		sql, args, _ := squirrel.Eq{"l.product_id": *f.ProductID}.ToSql()
		q = q.Where(squirrel.Expr(
			"EXISTS (SELECT 1 FROM "+purchaseLinesTable+" l WHERE l.order_id = "+purchaseTable+".id AND "+sql+")", args...))
	}
	return q
}

func (r *PurchaseRepo) List(ctx context.Context, f purchase.ListFilter) (domain.ListResult[*purchase.Order], error) {
	res, err := r.Page(ctx, r.listQuery(f), f.ListFilter)
	if err != nil {
		return res, err
	}
	return res, r.loadLines(ctx, res.Items...)
}

func (r *PurchaseRepo) loadLines(ctx context.Context, docs ...*purchase.Order) error {
	if len(docs) == 0 {
		return nil
	}
	byID := make(map[id.ID]*purchase.Order, len(docs))
	ids := make([]id.ID, 0, len(docs))
	for _, d := range docs {
		d.Lines = make([]purchase.Line, 0)
		byID[d.ID] = d
		ids = append(ids, d.ID)
	}

	sql, args, err := r.Builder().
		Select(purchaseLineCols...).
		From(purchaseLinesTable).
		Where(squirrel.Eq{"order_id": ids}).
		OrderBy("order_id", "line_no").
		ToSql()
	if err != nil {
		return fmt.Errorf("build query: %w", err)
	}

	var lines []purchase.Line
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

func (r *PurchaseRepo) saveLines(ctx context.Context, doc *purchase.Order) error {
	rows := make([][]any, 0, len(doc.Lines))
	for _, l := range doc.Lines {
		rows = append(rows, []any{l.LineID, doc.ID, l.LineNo, l.ProductID, l.ProductQty})
	}
	return replaceLines(ctx, r.Querier(ctx), purchaseLinesTable, "order_id", doc.ID, purchaseLineCols, rows)
}
