// Package forecast maintains the stock calendar: one report row per
// (product, day) aggregating demand, supply, production and stock.
package forecast

import (
	"maps"
	"slices"
	"time"

	"stockforecast/internal/core/id"
	"stockforecast/internal/core/types"
	"stockforecast/internal/domain"
	"stockforecast/internal/domain/events"
)

// Contribution is a document's share of a row aggregate.
type Contribution = events.Contribution

// RefSet is a sorted set of document ids.
type RefSet []id.ID

// NewRefSet builds a set from ids, dropping duplicates.
func NewRefSet(ids ...id.ID) RefSet {
	return RefSet(nil).Add(ids...)
}

// Contains reports whether x is in the set.
func (s RefSet) Contains(x id.ID) bool {
	_, ok := slices.BinarySearchFunc(s, x, id.Compare)
	return ok
}

// Add returns the union of s and ids.
func (s RefSet) Add(ids ...id.ID) RefSet {
	out := slices.Clone(s)
	for _, x := range ids {
		if id.IsNil(x) {
			continue
		}
		i, ok := slices.BinarySearchFunc(out, x, id.Compare)
		if !ok {
			out = slices.Insert(out, i, x)
		}
	}
	return out
}

// Remove returns s without ids.
func (s RefSet) Remove(ids ...id.ID) RefSet {
	out := slices.Clone(s)
	for _, x := range ids {
		if i, ok := slices.BinarySearchFunc(out, x, id.Compare); ok {
			out = slices.Delete(out, i, i+1)
		}
	}
	return out
}

// Equal reports whether both sets hold the same ids.
func (s RefSet) Equal(o RefSet) bool {
	return slices.Equal(s, o)
}

// LineCounts counts, per measure and order, the document lines currently
// feeding a row. An order stays referenced while its count is positive.
type LineCounts map[events.Measure]map[id.ID]int

// Clone returns a deep copy.
func (c LineCounts) Clone() LineCounts {
	if c == nil {
		return nil
	}
	out := make(LineCounts, len(c))
	for m, byOrder := range c {
		out[m] = maps.Clone(byOrder)
	}
	return out
}

// Equal reports whether both hold the same counts. Nil equals empty.
func (c LineCounts) Equal(o LineCounts) bool {
	if len(c) != len(o) {
		return false
	}
	for m, byOrder := range c {
		if !maps.Equal(byOrder, o[m]) {
			return false
		}
	}
	return true
}

// adjust adds delta to the count of (m, orderID) and returns the new count.
// Entries at zero or below are dropped.
func (c *LineCounts) adjust(m events.Measure, orderID id.ID, delta int) int {
	if id.IsNil(orderID) {
		return 0
	}
	n := (*c)[m][orderID] + delta
	if n <= 0 {
		delete((*c)[m], orderID)
		if len((*c)[m]) == 0 {
			delete(*c, m)
		}
		return 0
	}
	if *c == nil {
		*c = make(LineCounts)
	}
	if (*c)[m] == nil {
		(*c)[m] = make(map[id.ID]int)
	}
	(*c)[m][orderID] = n
	return n
}

// Row is the forecast record of one product on one day.
type Row struct {
	ID        id.ID     `db:"id" json:"id"`
	ProductID id.ID     `db:"product_id" json:"productId"`
	Date      time.Time `db:"date" json:"date"`

	SaleOrderQuantity      types.Quantity `db:"sale_order_quantity" json:"saleOrderQuantity"`
	SaleOrderRefs          RefSet         `db:"sale_order_refs" json:"saleOrderRefs"`
	PurchaseOrderQuantity  types.Quantity `db:"purchase_order_quantity" json:"purchaseOrderQuantity"`
	PurchaseOrderRefs      RefSet         `db:"purchase_order_refs" json:"purchaseOrderRefs"`
	StockOnHand            types.Quantity `db:"stock_on_hand" json:"stockOnHand"`
	BeingManufactured      types.Quantity `db:"being_manufactured" json:"beingManufactured"`
	ManufacturingOrderRefs RefSet         `db:"manufacturing_order_refs" json:"manufacturingOrderRefs"`
	ReservedQuantity       types.Quantity `db:"reserved_quantity" json:"reservedQuantity"`
	BomQuantity            types.Quantity `db:"bom_quantity" json:"bomQuantity"`
	BomRefs                RefSet         `db:"bom_refs" json:"bomRefs"`
	ForecastQuantity       types.Quantity `db:"forecast_quantity" json:"forecastQuantity"`
	TodayCurrentStock      types.Quantity `db:"today_current_stock" json:"todayCurrentStock"`
	UsedInRefs             RefSet         `db:"used_in_refs" json:"usedInRefs"`

	// OrderLines backs the sale, purchase and manufacturing refs.
	OrderLines LineCounts `db:"order_lines" json:"-"`

	Version   int       `db:"version" json:"version"`
	CreatedAt time.Time `db:"created_at" json:"createdAt"`
	UpdatedAt time.Time `db:"updated_at" json:"updatedAt"`
}

// NewRow creates an empty row for (productID, day).
func NewRow(productID id.ID, day time.Time) *Row {
	now := time.Now().UTC()
	return &Row{
		ID:        id.New(),
		ProductID: productID,
		Date:      types.Day(day),
		Version:   1,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// Clone returns a deep copy.
func (r *Row) Clone() *Row {
	c := *r
	c.SaleOrderRefs = slices.Clone(r.SaleOrderRefs)
	c.PurchaseOrderRefs = slices.Clone(r.PurchaseOrderRefs)
	c.ManufacturingOrderRefs = slices.Clone(r.ManufacturingOrderRefs)
	c.BomRefs = slices.Clone(r.BomRefs)
	c.UsedInRefs = slices.Clone(r.UsedInRefs)
	c.OrderLines = r.OrderLines.Clone()
	return &c
}

// Add applies a contribution to its measure and references its order.
func (r *Row) Add(c Contribution) {
	r.OrderLines.adjust(c.Measure, c.OrderID, 1)
	switch c.Measure {
	case events.MeasureSale:
		r.SaleOrderQuantity += c.Quantity
		r.SaleOrderRefs = r.SaleOrderRefs.Add(c.OrderID)
	case events.MeasurePurchase:
		r.PurchaseOrderQuantity += c.Quantity
		r.PurchaseOrderRefs = r.PurchaseOrderRefs.Add(c.OrderID)
	case events.MeasureManufacturing:
		r.BeingManufactured += c.Quantity
		r.ManufacturingOrderRefs = r.ManufacturingOrderRefs.Add(c.OrderID)
	}
}

// Subtract reverses a contribution. The order reference is dropped with
// the last line of that order on the row.
func (r *Row) Subtract(c Contribution) {
	drop := r.OrderLines.adjust(c.Measure, c.OrderID, -1) == 0
	switch c.Measure {
	case events.MeasureSale:
		r.SaleOrderQuantity -= c.Quantity
		if drop {
			r.SaleOrderRefs = r.SaleOrderRefs.Remove(c.OrderID)
		}
	case events.MeasurePurchase:
		r.PurchaseOrderQuantity -= c.Quantity
		if drop {
			r.PurchaseOrderRefs = r.PurchaseOrderRefs.Remove(c.OrderID)
		}
	case events.MeasureManufacturing:
		r.BeingManufactured -= c.Quantity
		if drop {
			r.ManufacturingOrderRefs = r.ManufacturingOrderRefs.Remove(c.OrderID)
		}
	}
}

// Recalculate derives TodayCurrentStock. Call before every write.
func (r *Row) Recalculate() {
	r.TodayCurrentStock = r.StockOnHand + r.PurchaseOrderQuantity - r.SaleOrderQuantity + r.BeingManufactured
}

// IsDrained reports whether the sale, purchase and manufacturing
// aggregates are all zero. Drained rows are deleted.
func (r *Row) IsDrained() bool {
	return r.SaleOrderQuantity.IsZero() && r.PurchaseOrderQuantity.IsZero() && r.BeingManufactured.IsZero()
}

// Fields returns the journaled field values keyed by JSON name.
func (r *Row) Fields() map[string]any {
	if r == nil {
		return nil
	}
	return map[string]any{
		"saleOrderQuantity":      r.SaleOrderQuantity,
		"saleOrderRefs":          r.SaleOrderRefs,
		"purchaseOrderQuantity":  r.PurchaseOrderQuantity,
		"purchaseOrderRefs":      r.PurchaseOrderRefs,
		"stockOnHand":            r.StockOnHand,
		"beingManufactured":      r.BeingManufactured,
		"manufacturingOrderRefs": r.ManufacturingOrderRefs,
		"reservedQuantity":       r.ReservedQuantity,
		"bomQuantity":            r.BomQuantity,
		"bomRefs":                r.BomRefs,
		"forecastQuantity":       r.ForecastQuantity,
		"todayCurrentStock":      r.TodayCurrentStock,
		"usedInRefs":             r.UsedInRefs,
	}
}

// FieldChange is the old and new value of one field.
type FieldChange struct {
	Old any `json:"old"`
	New any `json:"new"`
}

// Diff returns the fields that differ between before and after. Either
// side may be nil for a created or deleted row.
func Diff(before, after *Row) map[string]FieldChange {
	bf, af := before.Fields(), after.Fields()
	out := make(map[string]FieldChange)
	for k, nv := range af {
		ov, ok := bf[k]
		if ok && equalField(ov, nv) {
			continue
		}
		out[k] = FieldChange{Old: ov, New: nv}
	}
	for k, ov := range bf {
		if _, ok := af[k]; !ok {
			out[k] = FieldChange{Old: ov}
		}
	}
	return out
}

func equalField(a, b any) bool {
	if as, ok := a.(RefSet); ok {
		bs, _ := b.(RefSet)
		return as.Equal(bs)
	}
	return a == b
}

// Action is what happened to a row.
type Action string

const (
	ActionCreated Action = "created"
	ActionUpdated Action = "updated"
	ActionDeleted Action = "deleted"
)

// RowChange is one journaled mutation of a row.
type RowChange struct {
	RowID      id.ID                  `json:"rowId"`
	ProductID  id.ID                  `json:"productId"`
	Date       time.Time              `json:"date"`
	Action     Action                 `json:"action"`
	Changes    map[string]FieldChange `json:"changes"`
	CauseEvent string                 `json:"causeEvent,omitempty"`
	CauseID    id.ID                  `json:"causeId"`
	ChangedBy  string                 `json:"changedBy,omitempty"`
	ChangedAt  time.Time              `json:"changedAt"`
}

// Filter selects rows for listing. Both date bounds are inclusive days.
type Filter struct {
	ProductIDs  []id.ID
	DateFrom    *time.Time
	DateTo      *time.Time
	NonZeroOnly bool

	// OrderBy is "date" (default) or "-date"; product breaks ties.
	OrderBy string
	Limit   int
	Offset  int
}

// Normalize clamps pagination.
func (f *Filter) Normalize() {
	if f.Limit <= 0 {
		f.Limit = 50
	}
	if f.Limit > domain.MaxListLimit {
		f.Limit = domain.MaxListLimit
	}
	if f.Offset < 0 {
		f.Offset = 0
	}
	if f.OrderBy != "-date" {
		f.OrderBy = "date"
	}
}

// CalendarDay groups the rows of one day.
type CalendarDay struct {
	Date time.Time `json:"date"`
	Rows []*Row    `json:"rows"`
}
