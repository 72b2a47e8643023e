package manufacturing_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"stockforecast/internal/app"
	"stockforecast/internal/core/apperror"
	"stockforecast/internal/core/id"
	"stockforecast/internal/core/types"
	"stockforecast/internal/domain/catalogs/bom"
	"stockforecast/internal/domain/catalogs/product"
	"stockforecast/internal/domain/documents/manufacturing"
	"stockforecast/internal/domain/forecast"
	"stockforecast/internal/infrastructure/storage/memory"
)

func setup(t *testing.T) (context.Context, *app.Services) {
	t.Helper()
	return context.Background(), app.NewServices(app.MemoryRepositories(memory.NewStore()), nil)
}

func newProduct(t *testing.T, ctx context.Context, svc *app.Services, code string) *product.Product {
	t.Helper()
	p := product.NewProduct(code, code)
	require.NoError(t, svc.Products.Create(ctx, p))
	return p
}

func TestCreate_RejectsForeignBoM(t *testing.T) {
	ctx, svc := setup(t)
	finished := newProduct(t, ctx, svc, "F1")
	other := newProduct(t, ctx, svc, "F2")
	component := newProduct(t, ctx, svc, "C1")

	b := bom.NewBoM("BOM-F2", other.TemplateID, types.NewQuantity(1))
	b.AddLine(component.ID, types.NewQuantity(1))
	require.NoError(t, svc.BoMs.Create(ctx, b))

	mo := manufacturing.NewOrder(finished.ID, types.NewQuantity(1), nil)
	mo.BomID = &b.ID
	err := svc.Manufacturing.Create(ctx, mo)

	appErr, ok := apperror.AsAppError(err)
	require.True(t, ok)
	assert.Equal(t, apperror.CodeValidation, appErr.Code)
	assert.Equal(t, "bomId", appErr.Details["field"])
}

func TestCreate_UnknownProduct(t *testing.T) {
	ctx, svc := setup(t)

	err := svc.Manufacturing.Create(ctx, manufacturing.NewOrder(id.New(), types.NewQuantity(1), nil))
	assert.True(t, apperror.HasCode(err, apperror.CodeValidation))
}

func TestCreate_ScalesBoMLines(t *testing.T) {
	ctx, svc := setup(t)
	finished := newProduct(t, ctx, svc, "F1")
	component := newProduct(t, ctx, svc, "C1")

	// 3 components per 2 finished units.
	b := bom.NewBoM("BOM-F1", finished.TemplateID, types.NewQuantity(2))
	b.AddLine(component.ID, types.NewQuantity(3))
	require.NoError(t, svc.BoMs.Create(ctx, b))

	mo := manufacturing.NewOrder(finished.ID, types.NewQuantity(5), nil)
	mo.BomID = &b.ID
	require.NoError(t, svc.Manufacturing.Create(ctx, mo))

	got, err := svc.Manufacturing.GetByID(ctx, mo.ID)
	require.NoError(t, err)
	require.Len(t, got.Components, 1)
	assert.Equal(t, types.MustQuantity("7.5"), got.Components[0].Quantity)
	assert.Contains(t, got.Number, "MO-")
}

func TestDelete_DoneOrder(t *testing.T) {
	ctx, svc := setup(t)
	finished := newProduct(t, ctx, svc, "F1")

	mo := manufacturing.NewOrder(finished.ID, types.NewQuantity(1), nil)
	require.NoError(t, svc.Manufacturing.Create(ctx, mo))
	_, err := svc.Manufacturing.Confirm(ctx, mo.ID)
	require.NoError(t, err)

	err = svc.Manufacturing.Delete(ctx, mo.ID)
	assert.True(t, apperror.HasCode(err, apperror.CodeInvalidState))
}

func TestCancel_WithdrawsProduction(t *testing.T) {
	ctx, svc := setup(t)
	finished := newProduct(t, ctx, svc, "F1")

	start := types.Today().AddDate(0, 0, 2)
	mo := manufacturing.NewOrder(finished.ID, types.NewQuantity(4), &start)
	require.NoError(t, svc.Manufacturing.Create(ctx, mo))

	filter := forecast.Filter{ProductIDs: []id.ID{finished.ID}}
	res, err := svc.Forecast.List(ctx, filter)
	require.NoError(t, err)
	require.Len(t, res.Items, 1)

	cancelled, err := svc.Manufacturing.Cancel(ctx, mo.ID)
	require.NoError(t, err)
	assert.Equal(t, manufacturing.StateCancelled, cancelled.State)

	res, err = svc.Forecast.List(ctx, filter)
	require.NoError(t, err)
	assert.Empty(t, res.Items)

	// Deleting the cancelled order changes nothing.
	require.NoError(t, svc.Manufacturing.Delete(ctx, mo.ID))
	_, err = svc.Manufacturing.Confirm(ctx, mo.ID)
	assert.True(t, apperror.HasCode(err, apperror.CodeInvalidState))
}
