package sale_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"stockforecast/internal/app"
	"stockforecast/internal/core/id"
	"stockforecast/internal/core/types"
	"stockforecast/internal/domain/catalogs/product"
	"stockforecast/internal/domain/documents/sale"
	"stockforecast/internal/domain/documents/transfer"
	"stockforecast/internal/domain/forecast"
	"stockforecast/internal/infrastructure/storage/memory"
)

func TestConfirm_CreatesDelivery(t *testing.T) {
	ctx := context.Background()
	svc := app.NewServices(app.MemoryRepositories(memory.NewStore()), nil)
	p := product.NewProduct("P1", "Product")
	require.NoError(t, svc.Products.Create(ctx, p))

	commitment := types.Today().AddDate(0, 0, 4)
	so := sale.NewOrder(&commitment)
	so.Customer = "ACME"
	so.AddLine(p.ID, types.NewQuantity(3))
	require.NoError(t, svc.Sales.Create(ctx, so))
	assert.Contains(t, so.Number, "SO-")

	_, err := svc.Sales.Confirm(ctx, so.ID)
	require.NoError(t, err)

	deliveries, err := svc.Transfers.ListByOrder(ctx, so.ID, transfer.KindOutgoing)
	require.NoError(t, err)
	require.Len(t, deliveries, 1)
	d := deliveries[0]
	assert.Equal(t, transfer.StateDone, d.State)
	assert.Equal(t, so.Number, d.Origin)
	require.NotNil(t, d.ScheduledDate)
	assert.True(t, d.ScheduledDate.Equal(commitment))
	require.NotNil(t, d.Moves[0].SaleLine)
	assert.Equal(t, so.Lines[0].LineID, d.Moves[0].SaleLine.LineID)

	onHand, err := svc.Stock.OnHand(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, types.NewQuantity(-3), onHand)

	res, err := svc.Forecast.List(ctx, forecast.Filter{ProductIDs: []id.ID{p.ID}})
	require.NoError(t, err)
	require.Len(t, res.Items, 1)
	row := res.Items[0]
	assert.True(t, row.Date.Equal(commitment))
	assert.Equal(t, types.NewQuantity(3), row.SaleOrderQuantity)
	assert.True(t, row.SaleOrderRefs.Contains(so.ID))
	assert.Equal(t, types.NewQuantity(-6), row.TodayCurrentStock)
}
