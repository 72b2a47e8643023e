package events

import (
	"cmp"
	"slices"
	"time"

	"stockforecast/internal/core/id"
	"stockforecast/internal/core/types"
)

// Event types published by document services.
const (
	TransferCreated      = "transfer.created"
	TransferDateChanged  = "transfer.date_changed"
	TransferLinesChanged = "transfer.lines_changed"
	TransferDeleted      = "transfer.deleted"
	TransferCancelled    = "transfer.cancelled"
	TransferConfirmed    = "transfer.confirmed"
	TransferReserved     = "transfer.reserved"
	TransferUnreserved   = "transfer.unreserved"

	ManufacturingCreated     = "manufacturing.created"
	ManufacturingDateChanged = "manufacturing.date_changed"
	ManufacturingDeleted     = "manufacturing.deleted"
	ManufacturingCancelled   = "manufacturing.cancelled"
	ManufacturingConfirmed   = "manufacturing.confirmed"

	PurchaseConfirmed = "purchase.confirmed"
	SaleConfirmed     = "sale.confirmed"
)

// Aggregate types.
const (
	AggregateTransfer      = "transfer"
	AggregateManufacturing = "manufacturing_order"
	AggregatePurchase      = "purchase_order"
	AggregateSale          = "sale_order"
)

// Measure names the report aggregate a contribution feeds.
type Measure string

const (
	MeasureSale          Measure = "sale"
	MeasurePurchase      Measure = "purchase"
	MeasureManufacturing Measure = "manufacturing"
)

// Contribution is one document line's share of a report aggregate.
type Contribution struct {
	ProductID id.ID          `json:"productId"`
	Measure   Measure        `json:"measure"`
	Quantity  types.Quantity `json:"quantity"`
	// OrderID is the document referenced from the report row.
	OrderID id.ID `json:"orderId"`
}

// Snapshot is what a document contributed on a given day.
type Snapshot struct {
	Day           time.Time      `json:"day"`
	Contributions []Contribution `json:"contributions"`
}

// Equal reports whether both snapshots fall on the same day with the same
// contributions, ignoring order. Nil equals only nil.
func (s *Snapshot) Equal(o *Snapshot) bool {
	if s == nil || o == nil {
		return s == o
	}
	if !s.Day.Equal(o.Day) || len(s.Contributions) != len(o.Contributions) {
		return false
	}
	a, b := sortedContributions(s.Contributions), sortedContributions(o.Contributions)
	return slices.Equal(a, b)
}

func sortedContributions(in []Contribution) []Contribution {
	out := slices.Clone(in)
	slices.SortFunc(out, func(x, y Contribution) int {
		return cmp.Or(
			id.Compare(x.ProductID, y.ProductID),
			cmp.Compare(x.Measure, y.Measure),
			id.Compare(x.OrderID, y.OrderID),
			cmp.Compare(x.Quantity, y.Quantity),
		)
	})
	return out
}

// ContributionsChanged reports that a document's contributions moved.
//
// created:            Current only
// deleted, cancelled: Previous only
// date/lines changed: both
type ContributionsChanged struct {
	Base
	Previous *Snapshot `json:"previous,omitempty"`
	Current  *Snapshot `json:"current,omitempty"`
}

// NewContributionsChanged builds the event. Nil snapshots mean "none".
func NewContributionsChanged(eventType, aggregateType string, aggregateID id.ID, previous, current *Snapshot) *ContributionsChanged {
	return &ContributionsChanged{
		Base:     NewBase(eventType, aggregateType, aggregateID),
		Previous: previous,
		Current:  current,
	}
}

// StockChanged reports that confirmation moved on-hand quantities.
type StockChanged struct {
	Base
	ProductIDs []id.ID `json:"productIds"`
}

func NewStockChanged(eventType, aggregateType string, aggregateID id.ID, productIDs []id.ID) *StockChanged {
	return &StockChanged{
		Base:       NewBase(eventType, aggregateType, aggregateID),
		ProductIDs: productIDs,
	}
}

// Reservation is a reserved quantity for a product on a deadline day.
type Reservation struct {
	ProductID id.ID     `json:"productId"`
	Day       time.Time `json:"day"`
}

// Reserved reports moves that became assigned, or, as transfer.unreserved,
// assigned moves that were cancelled, deleted or reset to draft.
type Reserved struct {
	Base
	Reservations []Reservation `json:"reservations"`
}

func NewReserved(aggregateID id.ID, reservations []Reservation) *Reserved {
	return &Reserved{
		Base:         NewBase(TransferReserved, AggregateTransfer, aggregateID),
		Reservations: reservations,
	}
}

func NewUnreserved(aggregateID id.ID, reservations []Reservation) *Reserved {
	return &Reserved{
		Base:         NewBase(TransferUnreserved, AggregateTransfer, aggregateID),
		Reservations: reservations,
	}
}
