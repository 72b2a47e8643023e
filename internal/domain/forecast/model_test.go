package forecast

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"stockforecast/internal/core/id"
	"stockforecast/internal/core/types"
	"stockforecast/internal/domain/events"
)

func TestRefSet_AddRemove(t *testing.T) {
	a, b, c := id.New(), id.New(), id.New()

	s := NewRefSet(c, a, b, a)
	assert.Len(t, s, 3)
	assert.True(t, s.Contains(a))
	assert.True(t, s.Equal(NewRefSet(a, b, c)))

	s2 := s.Remove(b, id.New())
	assert.Len(t, s2, 2)
	assert.False(t, s2.Contains(b))
	assert.True(t, s.Contains(b), "Remove must not modify the receiver")

	assert.Len(t, s2.Add(id.Nil()), 2)
}

func TestRow_AddSubtractRecalculate(t *testing.T) {
	orderID := id.New()
	row := NewRow(id.New(), time.Date(2026, 5, 1, 15, 0, 0, 0, time.UTC))
	row.StockOnHand = types.NewQuantity(10)

	assert.Equal(t, time.Date(2026, 5, 1, 0, 0, 0, 0, time.UTC), row.Date)

	row.Add(Contribution{ProductID: row.ProductID, Measure: events.MeasureSale, Quantity: types.NewQuantity(4), OrderID: orderID})
	row.Add(Contribution{ProductID: row.ProductID, Measure: events.MeasurePurchase, Quantity: types.NewQuantity(2), OrderID: id.New()})
	row.Add(Contribution{ProductID: row.ProductID, Measure: events.MeasureManufacturing, Quantity: types.NewQuantity(3), OrderID: id.New()})
	row.Recalculate()

	// 10 + 2 - 4 + 3
	assert.Equal(t, types.NewQuantity(11), row.TodayCurrentStock)
	assert.True(t, row.SaleOrderRefs.Contains(orderID))
	assert.False(t, row.IsDrained())

	row.Subtract(Contribution{ProductID: row.ProductID, Measure: events.MeasureSale, Quantity: types.NewQuantity(4), OrderID: orderID})
	assert.True(t, row.SaleOrderQuantity.IsZero())
	assert.False(t, row.SaleOrderRefs.Contains(orderID))
}

func TestRow_SubtractKeepsRefUntilLastLine(t *testing.T) {
	orderID := id.New()
	row := NewRow(id.New(), types.Today())
	line := Contribution{ProductID: row.ProductID, Measure: events.MeasurePurchase, Quantity: types.NewQuantity(1), OrderID: orderID}

	row.Add(line)
	row.Add(line)
	clone := row.Clone()

	row.Subtract(line)
	assert.True(t, row.PurchaseOrderRefs.Contains(orderID))
	assert.Equal(t, 1, row.OrderLines[events.MeasurePurchase][orderID])
	assert.Equal(t, 2, clone.OrderLines[events.MeasurePurchase][orderID], "clone is independent")

	row.Subtract(line)
	assert.False(t, row.PurchaseOrderRefs.Contains(orderID))
	assert.Empty(t, row.OrderLines)
	assert.False(t, row.OrderLines.Equal(clone.OrderLines))
	assert.True(t, LineCounts(nil).Equal(LineCounts{}))
}

func TestRow_IsDrained(t *testing.T) {
	row := NewRow(id.New(), types.Today())
	row.StockOnHand = types.NewQuantity(5)
	row.BomQuantity = types.NewQuantity(1)
	assert.True(t, row.IsDrained(), "snapshot fields do not keep a row alive")

	row.BeingManufactured = types.NewQuantity(1)
	assert.False(t, row.IsDrained())
}

func TestDiff(t *testing.T) {
	before := NewRow(id.New(), types.Today())
	after := before.Clone()
	assert.Empty(t, Diff(before, after))

	after.SaleOrderQuantity = types.NewQuantity(2)
	after.SaleOrderRefs = NewRefSet(id.New())
	d := Diff(before, after)
	assert.Len(t, d, 2)
	assert.Equal(t, types.NewQuantity(2), d["saleOrderQuantity"].New)

	created := Diff(nil, after)
	assert.Len(t, created, len(after.Fields()))
	assert.Nil(t, created["stockOnHand"].Old)

	deleted := Diff(after, nil)
	assert.Len(t, deleted, len(after.Fields()))
}

func TestFilter_Normalize(t *testing.T) {
	f := Filter{Limit: 5000, Offset: -1, OrderBy: "bogus"}
	f.Normalize()
	assert.Equal(t, 1000, f.Limit)
	assert.Equal(t, 0, f.Offset)
	assert.Equal(t, "date", f.OrderBy)
}
