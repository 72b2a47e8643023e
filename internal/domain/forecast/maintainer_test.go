package forecast_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"stockforecast/internal/app"
	"stockforecast/internal/core/apperror"
	"stockforecast/internal/core/id"
	"stockforecast/internal/core/types"
	"stockforecast/internal/domain/catalogs/bom"
	"stockforecast/internal/domain/catalogs/product"
	"stockforecast/internal/domain/documents/manufacturing"
	"stockforecast/internal/domain/documents/purchase"
	"stockforecast/internal/domain/documents/sale"
	"stockforecast/internal/domain/documents/transfer"
	"stockforecast/internal/domain/events"
	"stockforecast/internal/domain/forecast"
	"stockforecast/internal/infrastructure/storage/memory"
)

type fixture struct {
	t     *testing.T
	ctx   context.Context
	repos app.Repositories
	svc   *app.Services
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	repos := app.MemoryRepositories(memory.NewStore())
	return &fixture{t: t, ctx: context.Background(), repos: repos, svc: app.NewServices(repos, nil)}
}

func newFixtureWith(t *testing.T, adjust func(*app.Repositories)) *fixture {
	t.Helper()
	repos := app.MemoryRepositories(memory.NewStore())
	adjust(&repos)
	return &fixture{t: t, ctx: context.Background(), repos: repos, svc: app.NewServices(repos, nil)}
}

func day(offset int) time.Time {
	return types.Today().AddDate(0, 0, offset)
}

func (f *fixture) product(code string) *product.Product {
	f.t.Helper()
	p := product.NewProduct(code, "Product "+code)
	require.NoError(f.t, f.svc.Products.Create(f.ctx, p))
	return p
}

// row returns the row of (productID, d) or nil.
func (f *fixture) row(productID id.ID, d time.Time) *forecast.Row {
	f.t.Helper()
	res, err := f.svc.Forecast.List(f.ctx, forecast.Filter{ProductIDs: []id.ID{productID}, DateFrom: &d, DateTo: &d})
	require.NoError(f.t, err)
	require.LessOrEqual(f.t, len(res.Items), 1)
	if len(res.Items) == 0 {
		return nil
	}
	return res.Items[0]
}

func (f *fixture) delivery(productID, orderID id.ID, qty int64, d time.Time) *transfer.Transfer {
	f.t.Helper()
	doc := transfer.NewTransfer(transfer.KindOutgoing, &d)
	m := doc.AddMove(productID, types.NewQuantity(qty))
	m.SaleLine = &transfer.OrderLink{OrderID: orderID}
	require.NoError(f.t, f.svc.Transfers.Create(f.ctx, doc))
	return doc
}

func assertD1(t *testing.T, row *forecast.Row) {
	t.Helper()
	want := row.StockOnHand + row.PurchaseOrderQuantity - row.SaleOrderQuantity + row.BeingManufactured
	assert.Equal(t, want, row.TodayCurrentStock, "today_current_stock is out of step")
}

func TestTransferCreate_AddsSaleDemand(t *testing.T) {
	f := newFixture(t)
	p := f.product("P1")
	orderID := id.New()

	doc := f.delivery(p.ID, orderID, 5, day(3))
	assert.Equal(t, "OUT-"+doc.CreatedAt.Format("2006")+"-00001", doc.Number)

	row := f.row(p.ID, day(3))
	require.NotNil(t, row)
	assert.Equal(t, types.NewQuantity(5), row.SaleOrderQuantity)
	assert.True(t, row.SaleOrderRefs.Contains(orderID))
	assert.Equal(t, types.NewQuantity(-5), row.TodayCurrentStock)
	assertD1(t, row)

	// A second delivery on the same day accumulates.
	f.delivery(p.ID, id.New(), 2, day(3))
	row = f.row(p.ID, day(3))
	assert.Equal(t, types.NewQuantity(7), row.SaleOrderQuantity)
	assert.Len(t, row.SaleOrderRefs, 2)
	assertD1(t, row)
}

func TestTransferDelete_DrainsRow(t *testing.T) {
	f := newFixture(t)
	p := f.product("P1")

	doc := f.delivery(p.ID, id.New(), 5, day(1))
	row := f.row(p.ID, day(1))
	require.NotNil(t, row)

	require.NoError(t, f.svc.Transfers.Delete(f.ctx, doc.ID))
	assert.Nil(t, f.row(p.ID, day(1)))

	history, err := f.svc.Forecast.History(f.ctx, row.ID, 10)
	require.NoError(t, err)
	require.Len(t, history, 2)
	assert.Equal(t, forecast.ActionDeleted, history[0].Action)
	assert.Equal(t, events.TransferDeleted, history[0].CauseEvent)
	assert.Equal(t, doc.ID, history[0].CauseID)
	assert.Equal(t, forecast.ActionCreated, history[1].Action)
}

func TestTransferDelete_KeepsOtherContributions(t *testing.T) {
	f := newFixture(t)
	p := f.product("P1")

	first := f.delivery(p.ID, id.New(), 5, day(1))
	second := f.delivery(p.ID, id.New(), 3, day(1))

	require.NoError(t, f.svc.Transfers.Delete(f.ctx, first.ID))
	row := f.row(p.ID, day(1))
	require.NotNil(t, row)
	assert.Equal(t, types.NewQuantity(3), row.SaleOrderQuantity)
	assert.True(t, row.SaleOrderRefs.Contains(second.Moves[0].SaleLine.OrderID))
	assert.False(t, row.SaleOrderRefs.Contains(first.Moves[0].SaleLine.OrderID))
	assertD1(t, row)
}

func TestTransferDelete_KeepsOrderRefWhileAnotherDeliveryRemains(t *testing.T) {
	f := newFixture(t)
	p := f.product("P1")
	so := id.New()

	first := f.delivery(p.ID, so, 2, day(1))
	second := f.delivery(p.ID, so, 1, day(1))

	require.NoError(t, f.svc.Transfers.Delete(f.ctx, first.ID))
	row := f.row(p.ID, day(1))
	require.NotNil(t, row)
	assert.Equal(t, types.NewQuantity(1), row.SaleOrderQuantity)
	assert.True(t, row.SaleOrderRefs.Contains(so), "second delivery still references the order")

	// Counts survive a recompute.
	row, err := f.svc.Forecast.Recompute(f.ctx, row.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, row.OrderLines[events.MeasureSale][so])

	third := f.delivery(p.ID, so, 4, day(1))
	require.NoError(t, f.svc.Transfers.Delete(f.ctx, second.ID))
	row = f.row(p.ID, day(1))
	require.NotNil(t, row)
	assert.True(t, row.SaleOrderRefs.Contains(so))

	require.NoError(t, f.svc.Transfers.Delete(f.ctx, third.ID))
	assert.Nil(t, f.row(p.ID, day(1)))
}

func TestTransferUpdate_DateChangeMovesContribution(t *testing.T) {
	f := newFixture(t)
	p := f.product("P1")

	doc := f.delivery(p.ID, id.New(), 5, day(1))

	doc, err := f.svc.Transfers.GetByID(f.ctx, doc.ID)
	require.NoError(t, err)
	moved := day(4)
	doc.ScheduledDate = &moved
	require.NoError(t, f.svc.Transfers.Update(f.ctx, doc))

	assert.Nil(t, f.row(p.ID, day(1)))
	row := f.row(p.ID, day(4))
	require.NotNil(t, row)
	assert.Equal(t, types.NewQuantity(5), row.SaleOrderQuantity)
}

func TestTransferUpdate_LinesChangedSameDay(t *testing.T) {
	f := newFixture(t)
	p := f.product("P1")

	doc := f.delivery(p.ID, id.New(), 5, day(2))
	before := f.row(p.ID, day(2))

	doc, err := f.svc.Transfers.GetByID(f.ctx, doc.ID)
	require.NoError(t, err)
	doc.Moves[0].Quantity = types.NewQuantity(3)
	doc.Moves[0].SaleLine.Quantity = types.NewQuantity(3)
	require.NoError(t, f.svc.Transfers.Update(f.ctx, doc))

	row := f.row(p.ID, day(2))
	require.NotNil(t, row)
	assert.Equal(t, before.ID, row.ID, "same-day edit keeps the row")
	assert.Equal(t, types.NewQuantity(3), row.SaleOrderQuantity)
	assertD1(t, row)
}

func TestTransferCancel_RemovesContribution(t *testing.T) {
	f := newFixture(t)
	p := f.product("P1")

	doc := f.delivery(p.ID, id.New(), 5, day(1))
	_, err := f.svc.Transfers.Cancel(f.ctx, doc.ID)
	require.NoError(t, err)
	assert.Nil(t, f.row(p.ID, day(1)))

	// Deleting a cancelled transfer leaves the report untouched.
	f.delivery(p.ID, id.New(), 2, day(1))
	require.NoError(t, f.svc.Transfers.Delete(f.ctx, doc.ID))
	row := f.row(p.ID, day(1))
	require.NotNil(t, row)
	assert.Equal(t, types.NewQuantity(2), row.SaleOrderQuantity)
}

func TestTransferReserve_RefreshesReserved(t *testing.T) {
	f := newFixture(t)
	p := f.product("P1")

	doc := f.delivery(p.ID, id.New(), 5, day(2))
	_, err := f.svc.Transfers.Reserve(f.ctx, doc.ID)
	require.NoError(t, err)

	row := f.row(p.ID, day(2))
	require.NotNil(t, row)
	assert.Equal(t, types.NewQuantity(5), row.ReservedQuantity)
	assert.Equal(t, types.NewQuantity(5), row.SaleOrderQuantity)
}

func TestTransferUndoReservation_ClearsReserved(t *testing.T) {
	tests := []struct {
		name string
		undo func(f *fixture, doc *transfer.Transfer)
	}{
		{
			name: "cancel",
			undo: func(f *fixture, doc *transfer.Transfer) {
				_, err := f.svc.Transfers.Cancel(f.ctx, doc.ID)
				require.NoError(f.t, err)
			},
		},
		{
			name: "delete",
			undo: func(f *fixture, doc *transfer.Transfer) {
				require.NoError(f.t, f.svc.Transfers.Delete(f.ctx, doc.ID))
			},
		},
		{
			name: "update resets moves to draft",
			undo: func(f *fixture, doc *transfer.Transfer) {
				current, err := f.svc.Transfers.GetByID(f.ctx, doc.ID)
				require.NoError(f.t, err)
				for i := range current.Moves {
					current.Moves[i].State = transfer.MoveDraft
					current.Moves[i].Deadline = nil
				}
				require.NoError(f.t, f.svc.Transfers.Update(f.ctx, current))
			},
		},
		{
			name: "confirm",
			undo: func(f *fixture, doc *transfer.Transfer) {
				_, err := f.svc.Transfers.Confirm(f.ctx, doc.ID)
				require.NoError(f.t, err)
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			p := f.product("P1")

			reserved := f.delivery(p.ID, id.New(), 5, day(2))
			f.delivery(p.ID, id.New(), 3, day(2))
			_, err := f.svc.Transfers.Reserve(f.ctx, reserved.ID)
			require.NoError(t, err)
			require.Equal(t, types.NewQuantity(5), f.row(p.ID, day(2)).ReservedQuantity)

			tt.undo(f, reserved)

			row := f.row(p.ID, day(2))
			require.NotNil(t, row)
			assert.True(t, row.ReservedQuantity.IsZero(), "reserved = %s", row.ReservedQuantity)

			recomputed, err := f.svc.Forecast.Recompute(f.ctx, row.ID)
			require.NoError(t, err)
			assert.Equal(t, row.ReservedQuantity, recomputed.ReservedQuantity)
		})
	}
}

func TestManufacturingDateChange_MovesBeingManufactured(t *testing.T) {
	f := newFixture(t)
	p := f.product("F1")

	start := day(1)
	mo := manufacturing.NewOrder(p.ID, types.NewQuantity(7), &start)
	require.NoError(t, f.svc.Manufacturing.Create(f.ctx, mo))

	row := f.row(p.ID, day(1))
	require.NotNil(t, row)
	assert.Equal(t, types.NewQuantity(7), row.BeingManufactured)
	assert.True(t, row.ManufacturingOrderRefs.Contains(mo.ID))

	mo, err := f.svc.Manufacturing.GetByID(f.ctx, mo.ID)
	require.NoError(t, err)
	later := day(5)
	mo.PlannedStart = &later
	require.NoError(t, f.svc.Manufacturing.Update(f.ctx, mo))

	assert.Nil(t, f.row(p.ID, day(1)), "drained row at the old day is deleted")
	row = f.row(p.ID, day(5))
	require.NotNil(t, row)
	assert.Equal(t, types.NewQuantity(7), row.BeingManufactured)
	assertD1(t, row)
}

func TestBomQuantity_SumsTemplateBoMs(t *testing.T) {
	f := newFixture(t)
	finished := f.product("F1")
	component := f.product("C1")

	for i, qty := range []int64{2, 3} {
		b := bom.NewBoM("BOM-"+string(rune('A'+i)), finished.TemplateID, types.NewQuantity(qty))
		b.AddLine(component.ID, types.NewQuantity(1))
		require.NoError(t, f.svc.BoMs.Create(f.ctx, b))
	}

	start := day(2)
	require.NoError(t, f.svc.Manufacturing.Create(f.ctx, manufacturing.NewOrder(finished.ID, types.NewQuantity(1), &start)))

	row := f.row(finished.ID, day(2))
	require.NotNil(t, row)
	assert.Equal(t, types.NewQuantity(5), row.BomQuantity)
	assert.Len(t, row.BomRefs, 2)

	// Independent of the day.
	other := day(9)
	require.NoError(t, f.svc.Manufacturing.Create(f.ctx, manufacturing.NewOrder(finished.ID, types.NewQuantity(1), &other)))
	assert.Equal(t, types.NewQuantity(5), f.row(finished.ID, day(9)).BomQuantity)

	// The component's row lists the finished product as used-in.
	require.NoError(t, f.svc.Manufacturing.Create(f.ctx, manufacturing.NewOrder(component.ID, types.NewQuantity(4), &start)))
	crow := f.row(component.ID, day(2))
	require.NotNil(t, crow)
	assert.True(t, crow.UsedInRefs.Contains(finished.ID))
	assert.True(t, crow.BomQuantity.IsZero())
}

func TestManufacturingConfirm_ExplodesBoMAndMovesStock(t *testing.T) {
	f := newFixture(t)
	finished := f.product("F1")
	component := f.product("C1")

	b := bom.NewBoM("BOM-F1", finished.TemplateID, types.NewQuantity(1))
	b.AddLine(component.ID, types.NewQuantity(2))
	require.NoError(t, f.svc.BoMs.Create(f.ctx, b))

	start := day(0)
	mo := manufacturing.NewOrder(finished.ID, types.NewQuantity(3), &start)
	mo.BomID = &b.ID
	require.NoError(t, f.svc.Manufacturing.Create(f.ctx, mo))
	require.Len(t, mo.Components, 1)
	assert.Equal(t, types.NewQuantity(6), mo.Components[0].Quantity)

	_, err := f.svc.Manufacturing.Confirm(f.ctx, mo.ID)
	require.NoError(t, err)

	onHand, err := f.svc.Stock.OnHand(f.ctx, finished.ID)
	require.NoError(t, err)
	assert.Equal(t, types.NewQuantity(3), onHand)
	onHand, err = f.svc.Stock.OnHand(f.ctx, component.ID)
	require.NoError(t, err)
	assert.Equal(t, types.NewQuantity(-6), onHand)

	row := f.row(finished.ID, day(0))
	require.NotNil(t, row)
	assert.Equal(t, types.NewQuantity(3), row.BeingManufactured, "confirmation does not re-add production")
	assert.Equal(t, types.NewQuantity(3), row.StockOnHand)
	assertD1(t, row)
}

func TestPurchaseConfirm_IncreasesOnHand(t *testing.T) {
	f := newFixture(t)
	p := f.product("P1")

	expected := day(3)
	po := purchase.NewOrder(&expected)
	po.AddLine(p.ID, types.NewQuantity(10))
	require.NoError(t, f.svc.Purchases.Create(f.ctx, po))
	assert.Nil(t, f.row(p.ID, day(3)), "draft orders do not contribute")

	_, err := f.svc.Purchases.Confirm(f.ctx, po.ID)
	require.NoError(t, err)

	onHand, err := f.svc.Stock.OnHand(f.ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, types.NewQuantity(10), onHand)

	row := f.row(p.ID, day(3))
	require.NotNil(t, row)
	assert.Equal(t, types.NewQuantity(10), row.PurchaseOrderQuantity)
	assert.True(t, row.PurchaseOrderRefs.Contains(po.ID))
	assert.Equal(t, types.NewQuantity(10), row.StockOnHand)
	assertD1(t, row)

	receipts, err := f.svc.Transfers.ListByOrder(f.ctx, po.ID, transfer.KindIncoming)
	require.NoError(t, err)
	require.Len(t, receipts, 1)
	assert.Equal(t, transfer.StateDone, receipts[0].State)
	assert.Equal(t, po.Number, receipts[0].Origin)
}

func TestSaleConfirm_DecreasesOnHandWithoutChangingDemand(t *testing.T) {
	f := newFixture(t)
	p := f.product("P1")

	expected := day(0)
	po := purchase.NewOrder(&expected)
	po.AddLine(p.ID, types.NewQuantity(10))
	require.NoError(t, f.svc.Purchases.Create(f.ctx, po))
	_, err := f.svc.Purchases.Confirm(f.ctx, po.ID)
	require.NoError(t, err)

	commitment := day(2)
	so := sale.NewOrder(&commitment)
	so.AddLine(p.ID, types.NewQuantity(4))
	require.NoError(t, f.svc.Sales.Create(f.ctx, so))

	// The delivery exists before confirmation and already counts as demand.
	delivery := transfer.NewTransfer(transfer.KindOutgoing, &commitment)
	m := delivery.AddMove(p.ID, types.NewQuantity(4))
	m.SaleLine = &transfer.OrderLink{OrderID: so.ID, LineID: so.Lines[0].LineID}
	require.NoError(t, f.svc.Transfers.Create(f.ctx, delivery))
	demand := f.row(p.ID, day(2)).SaleOrderQuantity

	_, err = f.svc.Sales.Confirm(f.ctx, so.ID)
	require.NoError(t, err)

	onHand, err := f.svc.Stock.OnHand(f.ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, types.NewQuantity(6), onHand)

	row := f.row(p.ID, day(2))
	require.NotNil(t, row)
	assert.Equal(t, demand, row.SaleOrderQuantity)
	assert.Equal(t, types.NewQuantity(6), row.StockOnHand)
	assertD1(t, row)

	// The earlier receipt row sees the new balance too.
	assert.Equal(t, types.NewQuantity(6), f.row(p.ID, day(0)).StockOnHand)
}

func TestConfirmTwice_IsInvalidState(t *testing.T) {
	f := newFixture(t)
	p := f.product("P1")

	doc := f.delivery(p.ID, id.New(), 1, day(1))
	_, err := f.svc.Transfers.Confirm(f.ctx, doc.ID)
	require.NoError(t, err)

	_, err = f.svc.Transfers.Confirm(f.ctx, doc.ID)
	assert.True(t, apperror.HasCode(err, apperror.CodeInvalidState))
}

// staleRepo hands out rows with an outdated version when armed.
type staleRepo struct {
	forecast.Repository
	armed bool
}

func (r *staleRepo) GetForUpdate(ctx context.Context, productID id.ID, d time.Time) (*forecast.Row, error) {
	row, err := r.Repository.GetForUpdate(ctx, productID, d)
	if err == nil && r.armed {
		row.Version--
	}
	return row, err
}

func TestVersionMismatch_RollsBackDocument(t *testing.T) {
	stale := &staleRepo{}
	f := newFixtureWith(t, func(r *app.Repositories) {
		stale.Repository = r.Forecast
		r.Forecast = stale
	})
	p := f.product("P1")
	f.delivery(p.ID, id.New(), 5, day(1))

	stale.armed = true
	doc := transfer.NewTransfer(transfer.KindOutgoing, ptr(day(1)))
	m := doc.AddMove(p.ID, types.NewQuantity(2))
	m.SaleLine = &transfer.OrderLink{OrderID: id.New()}
	err := f.svc.Transfers.Create(f.ctx, doc)
	require.Error(t, err)
	assert.True(t, apperror.IsConcurrentModification(err))

	_, err = f.svc.Transfers.GetByID(f.ctx, doc.ID)
	assert.True(t, apperror.IsNotFound(err), "the transfer is rolled back")

	stale.armed = false
	assert.Equal(t, types.NewQuantity(5), f.row(p.ID, day(1)).SaleOrderQuantity)
}

func TestMaintainer_RemoveMissingRowIsNoop(t *testing.T) {
	f := newFixture(t)
	p := f.product("P1")

	err := f.svc.Maintainer.Remove(f.ctx, day(1), []forecast.Contribution{{
		ProductID: p.ID, Measure: events.MeasureSale, Quantity: types.NewQuantity(1), OrderID: id.New(),
	}})
	require.NoError(t, err)
	assert.Nil(t, f.row(p.ID, day(1)))
}

func TestMaintainer_ZeroContributionCreatesNoRow(t *testing.T) {
	f := newFixture(t)
	p := f.product("P1")

	require.NoError(t, f.svc.Maintainer.Update(f.ctx, day(1), []forecast.Contribution{{
		ProductID: p.ID, Measure: events.MeasurePurchase, OrderID: id.New(),
	}}))
	assert.Nil(t, f.row(p.ID, day(1)))
}

func TestRecompute_RepairsDrift(t *testing.T) {
	f := newFixture(t)
	p := f.product("P1")

	doc := f.delivery(p.ID, id.New(), 5, day(1))
	keep := f.delivery(p.ID, id.New(), 2, day(1))
	row := f.row(p.ID, day(1))

	// Bypass the service: the report does not hear about it.
	require.NoError(t, f.repos.Transfers.Delete(f.ctx, doc.ID))
	assert.Equal(t, types.NewQuantity(7), f.row(p.ID, day(1)).SaleOrderQuantity)

	got, err := f.svc.Forecast.Recompute(f.ctx, row.ID)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, types.NewQuantity(2), got.SaleOrderQuantity)
	assert.Equal(t, forecast.NewRefSet(keep.Moves[0].SaleLine.OrderID), got.SaleOrderRefs)
	assertD1(t, got)

	require.NoError(t, f.repos.Transfers.Delete(f.ctx, keep.ID))
	n, err := f.svc.Forecast.RecomputeRange(f.ctx, day(0), day(5))
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.Nil(t, f.row(p.ID, day(1)))
}

func TestCalendar_GroupsByDay(t *testing.T) {
	f := newFixture(t)
	p1 := f.product("P1")
	p2 := f.product("P2")

	f.delivery(p1.ID, id.New(), 1, day(1))
	f.delivery(p2.ID, id.New(), 1, day(1))
	f.delivery(p1.ID, id.New(), 1, day(3))

	days, err := f.svc.Forecast.Calendar(f.ctx, day(0), day(5), nil)
	require.NoError(t, err)
	require.Len(t, days, 2)
	assert.True(t, days[0].Date.Equal(day(1)))
	assert.Len(t, days[0].Rows, 2)
	assert.Len(t, days[1].Rows, 1)

	days, err = f.svc.Forecast.Calendar(f.ctx, day(0), day(5), []id.ID{p2.ID})
	require.NoError(t, err)
	require.Len(t, days, 1)

	_, err = f.svc.Forecast.Calendar(f.ctx, day(5), day(0), nil)
	assert.True(t, apperror.HasCode(err, apperror.CodeValidation))
}

func ptr[T any](v T) *T { return &v }
