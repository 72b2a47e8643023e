package document_repo

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"stockforecast/internal/core/id"
	"stockforecast/internal/domain"
	"stockforecast/internal/domain/documents/manufacturing"
	"stockforecast/internal/domain/documents/purchase"
	"stockforecast/internal/domain/documents/transfer"
)

func TestPlannedQuantitiesQuery(t *testing.T) {
	from := time.Date(2026, 3, 9, 0, 0, 0, 0, time.UTC)

	sql, args, err := plannedQuantitiesQuery(id.New(), from, from.AddDate(0, 0, 1)).ToSql()
	require.NoError(t, err)

	assert.Equal(t,
		"SELECT id AS order_id, SUM(product_qty)::BIGINT AS quantity, COUNT(*)::INT AS lines FROM doc_manufacturing_orders "+
			"WHERE deletion_mark = $1 AND state <> $2 AND product_id = $3 "+
			"AND COALESCE(planned_start, created_at) >= $4 AND COALESCE(planned_start, created_at) < $5 "+
			"GROUP BY id ORDER BY id", sql)
	require.Len(t, args, 5)
	assert.Equal(t, false, args[0])
	assert.Equal(t, manufacturing.StateCancelled, args[1])
	assert.Equal(t, from, args[3])
}

func TestLinkedQuantitiesQuery(t *testing.T) {
	from := time.Date(2026, 3, 9, 0, 0, 0, 0, time.UTC)

	sql, args, err := linkedQuantitiesQuery(id.New(), transfer.KindOutgoing, from, from.AddDate(0, 0, 1)).ToSql()
	require.NoError(t, err)
	assert.Contains(t, sql, "SELECT m.sale_order_id AS order_id, SUM(m.sale_quantity)::BIGINT AS quantity, COUNT(*)::INT AS lines")
	assert.Contains(t, sql, "FROM doc_transfer_moves m JOIN doc_transfers t ON t.id = m.document_id")
	assert.Contains(t, sql, "m.sale_order_id IS NOT NULL GROUP BY m.sale_order_id")
	assert.Len(t, args, 7)

	sql, _, err = linkedQuantitiesQuery(id.New(), transfer.KindIncoming, from, from.AddDate(0, 0, 1)).ToSql()
	require.NoError(t, err)
	assert.Contains(t, sql, "SUM(m.purchase_quantity)::BIGINT")
	assert.NotContains(t, sql, "sale_")
}

func TestTransferListQuery(t *testing.T) {
	repo := NewTransferRepo(nil)
	productID, orderID := id.New(), id.New()
	kind := transfer.KindIncoming
	day := time.Date(2026, 3, 9, 15, 0, 0, 0, time.UTC)

	sql, args, err := repo.listQuery(transfer.ListFilter{
		Kind:      &kind,
		ProductID: &productID,
		OrderID:   &orderID,
		DateFrom:  &day,
		DateTo:    &day,
	}).ToSql()
	require.NoError(t, err)

	assert.Contains(t, sql, "FROM doc_transfers t WHERE deletion_mark = $1 AND t.kind = $2")
	assert.Contains(t, sql, "EXISTS (SELECT 1 FROM doc_transfer_moves m WHERE m.document_id = t.id AND m.product_id = $3)")
	assert.Contains(t, sql, "(m.sale_order_id = $4 OR m.purchase_order_id = $5)")
	assert.Contains(t, sql, "COALESCE(t.scheduled_date, t.created_at) >= $6 AND COALESCE(t.scheduled_date, t.created_at) < $7")
	require.Len(t, args, 7)
	assert.Equal(t, time.Date(2026, 3, 9, 0, 0, 0, 0, time.UTC), args[5])
	assert.Equal(t, time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC), args[6])
}

func TestPurchaseListQuery_ProductFilter(t *testing.T) {
	repo := NewPurchaseRepo(nil)
	productID := id.New()
	state := purchase.StateConfirmed

	sql, args, err := repo.listQuery(purchase.ListFilter{
		ListFilter: domain.ListFilter{IncludeDeleted: true},
		State:      &state,
		ProductID:  &productID,
	}).ToSql()
	require.NoError(t, err)

	assert.Contains(t, sql, "WHERE state = $1 AND EXISTS (SELECT 1 FROM doc_purchase_order_lines l "+
		"WHERE l.order_id = doc_purchase_orders.id AND l.product_id = $2)")
	assert.Len(t, args, 2)
}

func TestParseOrderBy(t *testing.T) {
	repo := NewSaleRepo(nil)

	cols, err := repo.parseOrderBy("")
	require.NoError(t, err)
	assert.Equal(t, []string{"created_at DESC", "id DESC"}, cols)

	_, err = repo.parseOrderBy("nope")
	assert.Error(t, err)
}
