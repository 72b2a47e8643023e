package purchase_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"stockforecast/internal/app"
	"stockforecast/internal/core/apperror"
	"stockforecast/internal/core/id"
	"stockforecast/internal/core/types"
	"stockforecast/internal/domain/catalogs/product"
	"stockforecast/internal/domain/documents/purchase"
	"stockforecast/internal/domain/documents/transfer"
	"stockforecast/internal/infrastructure/storage/memory"
)

func setup(t *testing.T) (context.Context, *app.Services, *product.Product) {
	t.Helper()
	ctx := context.Background()
	svc := app.NewServices(app.MemoryRepositories(memory.NewStore()), nil)
	p := product.NewProduct("P1", "Product")
	require.NoError(t, svc.Products.Create(ctx, p))
	return ctx, svc, p
}

func TestCreate_Validation(t *testing.T) {
	ctx, svc, _ := setup(t)

	err := svc.Purchases.Create(ctx, purchase.NewOrder(nil))
	assert.True(t, apperror.HasCode(err, apperror.CodeValidation))

	po := purchase.NewOrder(nil)
	po.AddLine(id.New(), types.NewQuantity(1))
	err = svc.Purchases.Create(ctx, po)
	assert.True(t, apperror.HasCode(err, apperror.CodeValidation))
}

func TestConfirm_ReusesExistingReceipt(t *testing.T) {
	ctx, svc, p := setup(t)

	po := purchase.NewOrder(nil)
	line := po.AddLine(p.ID, types.NewQuantity(6))
	require.NoError(t, svc.Purchases.Create(ctx, po))
	assert.Contains(t, po.Number, "PO-")

	receipt := transfer.NewTransfer(transfer.KindIncoming, nil)
	m := receipt.AddMove(p.ID, types.NewQuantity(6))
	m.PurchaseLine = &transfer.OrderLink{OrderID: po.ID, LineID: line.LineID}
	require.NoError(t, svc.Transfers.Create(ctx, receipt))

	confirmed, err := svc.Purchases.Confirm(ctx, po.ID)
	require.NoError(t, err)
	assert.Equal(t, purchase.StateConfirmed, confirmed.State)

	linked, err := svc.Transfers.ListByOrder(ctx, po.ID, transfer.KindIncoming)
	require.NoError(t, err)
	require.Len(t, linked, 1)
	assert.Equal(t, receipt.ID, linked[0].ID)
	assert.Equal(t, transfer.StateDone, linked[0].State)

	_, err = svc.Purchases.Confirm(ctx, po.ID)
	assert.True(t, apperror.HasCode(err, apperror.CodeInvalidState))
}

func TestCancel_CancelsDraftReceipts(t *testing.T) {
	ctx, svc, p := setup(t)

	po := purchase.NewOrder(nil)
	po.AddLine(p.ID, types.NewQuantity(2))
	require.NoError(t, svc.Purchases.Create(ctx, po))

	receipt := transfer.NewTransfer(transfer.KindIncoming, nil)
	m := receipt.AddMove(p.ID, types.NewQuantity(2))
	m.PurchaseLine = &transfer.OrderLink{OrderID: po.ID}
	require.NoError(t, svc.Transfers.Create(ctx, receipt))

	cancelled, err := svc.Purchases.Cancel(ctx, po.ID)
	require.NoError(t, err)
	assert.Equal(t, purchase.StateCancelled, cancelled.State)

	got, err := svc.Transfers.GetByID(ctx, receipt.ID)
	require.NoError(t, err)
	assert.Equal(t, transfer.StateCancelled, got.State)

	onHand, err := svc.Stock.OnHand(ctx, p.ID)
	require.NoError(t, err)
	assert.True(t, onHand.IsZero())
}
