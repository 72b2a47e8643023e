package register_repo

import (
	"testing"
	"time"

	"github.com/Masterminds/squirrel"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"stockforecast/internal/core/id"
	"stockforecast/internal/core/types"
	"stockforecast/internal/domain/registers/stock"
)

var builder = squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar)

func TestNetBalances(t *testing.T) {
	a, b := id.New(), id.New()
	if id.Compare(a, b) > 0 {
		a, b = b, a
	}
	day1 := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	day2 := day1.AddDate(0, 0, 1)

	deltas := netBalances([]stock.Movement{
		{ProductID: b, RecordType: stock.RecordTypeReceipt, Quantity: types.NewQuantity(5), Period: day1},
		{ProductID: a, RecordType: stock.RecordTypeExpense, Quantity: types.NewQuantity(2), Period: day2},
		{ProductID: b, RecordType: stock.RecordTypeExpense, Quantity: types.NewQuantity(1), Period: day2},
		{ProductID: a, RecordType: stock.RecordTypeReceipt, Quantity: types.NewQuantity(7), Period: day1},
	})

	require.Len(t, deltas, 2)
	assert.Equal(t, a, deltas[0].productID)
	assert.Equal(t, types.NewQuantity(5), deltas[0].quantity)
	assert.Equal(t, day2, deltas[0].last)
	assert.Equal(t, b, deltas[1].productID)
	assert.Equal(t, types.NewQuantity(4), deltas[1].quantity)
	assert.Equal(t, day2, deltas[1].last)
}

func TestBalancesQuery(t *testing.T) {
	sql, args, err := balancesQuery(builder, stock.BalanceFilter{
		ProductIDs:  []id.ID{id.New(), id.New()},
		ExcludeZero: true,
	}).ToSql()
	require.NoError(t, err)

	assert.Equal(t,
		"SELECT product_id, quantity, last_movement_at, updated_at FROM reg_stock_balances "+
			"WHERE product_id IN ($1,$2) AND quantity <> $3 ORDER BY product_id", sql)
	require.Len(t, args, 3)
	assert.Equal(t, int64(0), args[2])
}

func TestHistoryQuery(t *testing.T) {
	productID := id.New()
	rt := stock.RecordTypeExpense

	sql, args, err := historyQuery(builder, stock.MovementFilter{
		ProductID:  &productID,
		RecordType: &rt,
		Limit:      10,
		Offset:     20,
	}).ToSql()
	require.NoError(t, err)

	assert.Contains(t, sql, "WHERE product_id = $1 AND record_type = $2 ORDER BY period DESC, created_at DESC LIMIT 10 OFFSET 20")
	require.Len(t, args, 2)
	assert.Equal(t, "expense", args[1])
}
