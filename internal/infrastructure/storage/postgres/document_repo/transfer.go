package document_repo

import (
	"context"
	"fmt"
	"time"

	"github.com/Masterminds/squirrel"
	"github.com/georgysavva/scany/v2/pgxscan"

	"stockforecast/internal/core/id"
	"stockforecast/internal/core/types"
	"stockforecast/internal/domain"
	"stockforecast/internal/domain/documents/transfer"
	"stockforecast/internal/infrastructure/storage/postgres"
)

const (
	transfersTable     = "doc_transfers"
	transferMovesTable = "doc_transfer_moves"

	// transferDay is the effective date of a transfer.
	transferDay = "COALESCE(t.scheduled_date, t.created_at)"
)

var transferMoveCols = []string{
	"line_id", "document_id", "line_no", "product_id", "quantity", "state", "deadline",
	"sale_order_id", "sale_line_id", "sale_quantity",
	"purchase_order_id", "purchase_line_id", "purchase_quantity",
}

// moveRow is the flat storage form of transfer.Move.
type moveRow struct {
	LineID     id.ID              `db:"line_id"`
	DocumentID id.ID              `db:"document_id"`
	LineNo     int                `db:"line_no"`
	ProductID  id.ID              `db:"product_id"`
	Quantity   types.Quantity     `db:"quantity"`
	State      transfer.MoveState `db:"state"`
	Deadline   *time.Time         `db:"deadline"`

	SaleOrderID      *id.ID         `db:"sale_order_id"`
	SaleLineID       *id.ID         `db:"sale_line_id"`
	SaleQuantity     types.Quantity `db:"sale_quantity"`
	PurchaseOrderID  *id.ID         `db:"purchase_order_id"`
	PurchaseLineID   *id.ID         `db:"purchase_line_id"`
	PurchaseQuantity types.Quantity `db:"purchase_quantity"`
}

func flattenLink(l *transfer.OrderLink) (orderID, lineID *id.ID, qty types.Quantity) {
	if l == nil {
		return nil, nil, 0
	}
	o, ln := l.OrderID, l.LineID
	return &o, &ln, l.Quantity
}

func linkOf(orderID, lineID *id.ID, qty types.Quantity) *transfer.OrderLink {
	if orderID == nil {
		return nil
	}
	l := &transfer.OrderLink{OrderID: *orderID, Quantity: qty}
	if lineID != nil {
		l.LineID = *lineID
	}
	return l
}

func (m moveRow) toMove() transfer.Move {
	return transfer.Move{
		LineID:       m.LineID,
		LineNo:       m.LineNo,
		ProductID:    m.ProductID,
		Quantity:     m.Quantity,
		State:        m.State,
		Deadline:     m.Deadline,
		SaleLine:     linkOf(m.SaleOrderID, m.SaleLineID, m.SaleQuantity),
		PurchaseLine: linkOf(m.PurchaseOrderID, m.PurchaseLineID, m.PurchaseQuantity),
	}
}

func moveValues(docID id.ID, m transfer.Move) []any {
	saleOrder, saleLine, saleQty := flattenLink(m.SaleLine)
	purchaseOrder, purchaseLine, purchaseQty := flattenLink(m.PurchaseLine)
	return []any{
		m.LineID, docID, m.LineNo, m.ProductID, m.Quantity, m.State, m.Deadline,
		saleOrder, saleLine, saleQty,
		purchaseOrder, purchaseLine, purchaseQty,
	}
}

var _ transfer.Repository = (*TransferRepo)(nil)

// TransferRepo implements transfer.Repository.
type TransferRepo struct {
	*BaseDocumentRepo[*transfer.Transfer]
}

// NewTransferRepo creates a transfer repository.
func NewTransferRepo(txm *postgres.TxManager) *TransferRepo {
	return &TransferRepo{
		BaseDocumentRepo: NewBaseDocumentRepo(txm, transfersTable, "transfer", func() *transfer.Transfer {
			return &transfer.Transfer{}
		}),
	}
}

// Create inserts the header and its moves.
func (r *TransferRepo) Create(ctx context.Context, doc *transfer.Transfer) error {
	if err := r.BaseDocumentRepo.Create(ctx, doc); err != nil {
		return err
	}
	return r.saveMoves(ctx, doc)
}

// Update saves the header with a version check, then replaces the moves.
func (r *TransferRepo) Update(ctx context.Context, doc *transfer.Transfer) error {
	if err := r.BaseDocumentRepo.Update(ctx, doc); err != nil {
		return err
	}
	return r.saveMoves(ctx, doc)
}

func (r *TransferRepo) GetByID(ctx context.Context, docID id.ID) (*transfer.Transfer, error) {
	doc, err := r.BaseDocumentRepo.GetByID(ctx, docID)
	if err != nil {
		return nil, err
	}
	return doc, r.loadMoves(ctx, doc)
}

func (r *TransferRepo) GetForUpdate(ctx context.Context, docID id.ID) (*transfer.Transfer, error) {
	doc, err := r.BaseDocumentRepo.GetForUpdate(ctx, docID)
	if err != nil {
		return nil, err
	}
	return doc, r.loadMoves(ctx, doc)
}

// aliased selects headers as t so move predicates can join.
func (r *TransferRepo) aliased(filter domain.ListFilter) squirrel.SelectBuilder {
	return r.ListQuery(filter).From(transfersTable + " t")
}

// movesExist is EXISTS over the moves of t matching pred.
func movesExist(pred squirrel.Sqlizer) squirrel.Sqlizer {
	sql, args, err := pred.ToSql()
	if err != nil {
		return squirrel.Expr("FALSE")
	}
	return squirrel.Expr("EXISTS (SELECT 1 FROM "+transferMovesTable+" m WHERE m.document_id = t.id AND "+sql+")", args...)
}

// listQuery builds the filtered header query of List.
func (r *TransferRepo) listQuery(f transfer.ListFilter) squirrel.SelectBuilder {
	q := r.aliased(f.ListFilter)
	if f.Kind != nil {
		q = q.Where(squirrel.Eq{"t.kind": *f.Kind})
	}
	if f.State != nil {
		q = q.Where(squirrel.Eq{"t.state": *f.State})
	}
	if f.ProductID != nil {
		q = q.Where(movesExist(squirrel.Eq{"m.product_id": *f.ProductID}))
	}
	if f.OrderID != nil {
		q = q.Where(movesExist(squirrel.Or{
			squirrel.Eq{"m.sale_order_id": *f.OrderID},
			squirrel.Eq{"m.purchase_order_id": *f.OrderID},
		}))
	}
	return dayRange(q, transferDay, f.DateFrom, f.DateTo)
}

func (r *TransferRepo) List(ctx context.Context, f transfer.ListFilter) (domain.ListResult[*transfer.Transfer], error) {
	res, err := r.Page(ctx, r.listQuery(f), f.ListFilter)
	if err != nil {
		return res, err
	}
	return res, r.loadMoves(ctx, res.Items...)
}

// ListByOrder returns non-deleted transfers with a move linked to orderID,
// oldest first.
func (r *TransferRepo) ListByOrder(ctx context.Context, orderID id.ID, kind transfer.Kind) ([]*transfer.Transfer, error) {
	q := r.aliased(domain.ListFilter{}).
		Where(squirrel.Eq{"t.kind": kind}).
		Where(movesExist(squirrel.Or{
			squirrel.Eq{"m.sale_order_id": orderID},
			squirrel.Eq{"m.purchase_order_id": orderID},
		})).
		OrderBy("t.created_at", "t.id")

	items, err := r.FindMany(ctx, q)
	if err != nil {
		return nil, err
	}
	return items, r.loadMoves(ctx, items...)
}

// linkedQuantitiesQuery groups linked quantities of kind by order.
func linkedQuantitiesQuery(productID id.ID, kind transfer.Kind, from, to time.Time) squirrel.SelectBuilder {
	orderCol, qtyCol := "m.sale_order_id", "m.sale_quantity"
	if kind == transfer.KindIncoming {
		orderCol, qtyCol = "m.purchase_order_id", "m.purchase_quantity"
	}

	return squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar).
		Select(orderCol+" AS order_id", "SUM("+qtyCol+")::BIGINT AS quantity", "COUNT(*)::INT AS lines").
		From(transferMovesTable + " m").
		Join(transfersTable + " t ON t.id = m.document_id").
		Where(squirrel.Eq{"t.deletion_mark": false}).
		Where(squirrel.Eq{"t.kind": kind}).
		Where(squirrel.NotEq{"t.state": transfer.StateCancelled}).
		Where(transferDay+" >= ?", from).
		Where(transferDay+" < ?", to).
		Where(squirrel.Eq{"m.product_id": productID}).
		Where(squirrel.NotEq{"m.state": transfer.MoveCancelled}).
		Where(orderCol + " IS NOT NULL").
		GroupBy(orderCol).
		OrderBy(orderCol)
}

func (r *TransferRepo) LinkedQuantities(ctx context.Context, productID id.ID, kind transfer.Kind, from, to time.Time) ([]domain.OrderQuantity, error) {
	return groupByOrder(ctx, r.Querier(ctx), linkedQuantitiesQuery(productID, kind, from, to))
}

func (r *TransferRepo) AssignedQuantity(ctx context.Context, productID id.ID, from, to time.Time) (types.Quantity, error) {
	var total types.Quantity
	err := r.Querier(ctx).QueryRow(ctx, `
		SELECT COALESCE(SUM(m.quantity), 0)::BIGINT
		FROM `+transferMovesTable+` m
		JOIN `+transfersTable+` t ON t.id = m.document_id
		WHERE NOT t.deletion_mark
		  AND t.state <> $1
		  AND m.product_id = $2
		  AND m.state = $3
		  AND m.deadline >= $4 AND m.deadline < $5`,
		transfer.StateCancelled, productID, transfer.MoveAssigned, from, to).Scan(&total)
	if err != nil {
		return 0, fmt.Errorf("assigned quantity: %w", err)
	}
	return total, nil
}

func (r *TransferRepo) PendingMoves(ctx context.Context, productID id.ID) (incoming, outgoing types.Quantity, err error) {
	err = r.Querier(ctx).QueryRow(ctx, `
		SELECT COALESCE(SUM(m.quantity) FILTER (WHERE t.kind = $1), 0)::BIGINT,
		       COALESCE(SUM(m.quantity) FILTER (WHERE t.kind = $2), 0)::BIGINT
		FROM `+transferMovesTable+` m
		JOIN `+transfersTable+` t ON t.id = m.document_id
		WHERE NOT t.deletion_mark
		  AND t.state = $3
		  AND m.product_id = $4
		  AND m.state IN ($5, $6)`,
		transfer.KindIncoming, transfer.KindOutgoing, transfer.StateDraft, productID,
		transfer.MoveDraft, transfer.MoveAssigned).Scan(&incoming, &outgoing)
	if err != nil {
		return 0, 0, fmt.Errorf("pending moves: %w", err)
	}
	return incoming, outgoing, nil
}

func (r *TransferRepo) loadMoves(ctx context.Context, docs ...*transfer.Transfer) error {
	if len(docs) == 0 {
		return nil
	}
	byID := make(map[id.ID]*transfer.Transfer, len(docs))
	ids := make([]id.ID, 0, len(docs))
	for _, d := range docs {
		d.Moves = make([]transfer.Move, 0)
		byID[d.ID] = d
		ids = append(ids, d.ID)
	}

	sql, args, err := r.Builder().
		Select(transferMoveCols...).
		From(transferMovesTable).
		Where(squirrel.Eq{"document_id": ids}).
		OrderBy("document_id", "line_no").
		ToSql()
	if err != nil {
		return fmt.Errorf("build query: %w", err)
	}

	var rows []moveRow
	if err := pgxscan.Select(ctx, r.Querier(ctx), &rows, sql, args...); err != nil {
		return fmt.Errorf("get moves: %w", err)
	}
	for _, row := range rows {
		if d, ok := byID[row.DocumentID]; ok {
			d.Moves = append(d.Moves, row.toMove())
		}
	}
	return nil
}

func (r *TransferRepo) saveMoves(ctx context.Context, doc *transfer.Transfer) error {
	rows := make([][]any, 0, len(doc.Moves))
	for _, m := range doc.Moves {
		rows = append(rows, moveValues(doc.ID, m))
	}
	return replaceLines(ctx, r.Querier(ctx), transferMovesTable, "document_id", doc.ID, transferMoveCols, rows)
}
