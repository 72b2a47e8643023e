// Package manufacturing provides the ManufacturingOrder document: a planned
// production run of a product.
package manufacturing

import (
	"context"
	"fmt"
	"time"

	"stockforecast/internal/core/apperror"
	"stockforecast/internal/core/entity"
	"stockforecast/internal/core/id"
	"stockforecast/internal/core/types"
	"stockforecast/internal/domain/events"
	"stockforecast/internal/domain/registers/stock"
)

// State is the order state.
type State string

const (
	StateDraft     State = "draft"
	StateDone      State = "done"
	StateCancelled State = "cancelled"
)

// Component is a raw material consumed by the order.
type Component struct {
	LineID    id.ID          `db:"line_id" json:"lineId"`
	OrderID   id.ID          `db:"order_id" json:"-"`
	LineNo    int            `db:"line_no" json:"lineNo"`
	ProductID id.ID          `db:"product_id" json:"productId"`
	Quantity  types.Quantity `db:"quantity" json:"quantity"`
}

// Order is a manufacturing order.
type Order struct {
	entity.BaseDocument

	ProductID    id.ID          `db:"product_id" json:"productId"`
	ProductQty   types.Quantity `db:"product_qty" json:"productQty"`
	PlannedStart *time.Time     `db:"planned_start" json:"plannedStart,omitempty"`
	State        State          `db:"state" json:"state"`
	BomID        *id.ID         `db:"bom_id" json:"bomId,omitempty"`

	Components []Component `db:"-" json:"components"`
}

// NewOrder creates a draft order.
func NewOrder(productID id.ID, qty types.Quantity, plannedStart *time.Time) *Order {
	return &Order{
		BaseDocument: entity.NewBaseDocument(),
		ProductID:    productID,
		ProductQty:   qty,
		PlannedStart: plannedStart,
		State:        StateDraft,
		Components:   make([]Component, 0),
	}
}

// AddComponent appends a component line.
func (o *Order) AddComponent(productID id.ID, qty types.Quantity) {
	o.Components = append(o.Components, Component{
		LineID:    id.New(),
		OrderID:   o.ID,
		LineNo:    len(o.Components) + 1,
		ProductID: productID,
		Quantity:  qty,
	})
}

// Normalize fills line ids and numbers.
func (o *Order) Normalize() {
	if o.State == "" {
		o.State = StateDraft
	}
	for i := range o.Components {
		if id.IsNil(o.Components[i].LineID) {
			o.Components[i].LineID = id.New()
		}
		o.Components[i].OrderID = o.ID
		o.Components[i].LineNo = i + 1
	}
}

// Validate implements entity.Validatable.
func (o *Order) Validate(_ context.Context) error {
	if id.IsNil(o.ProductID) {
		return apperror.NewValidation("product is required").WithDetail("field", "productId")
	}
	if !o.ProductQty.IsPositive() {
		return apperror.NewValidation("product quantity must be positive").WithDetail("field", "productQty")
	}
	for i, c := range o.Components {
		field := fmt.Sprintf("components[%d]", i)
		if id.IsNil(c.ProductID) {
			return apperror.NewValidation("component product is required").WithDetail("field", field+".productId")
		}
		if c.ProductID == o.ProductID {
			return apperror.NewValidation("order cannot consume its own product").WithDetail("field", field+".productId")
		}
		if !c.Quantity.IsPositive() {
			return apperror.NewValidation("component quantity must be positive").WithDetail("field", field+".quantity")
		}
	}
	return nil
}

// EffectiveDay is the planned start day, or the creation day.
func (o *Order) EffectiveDay() time.Time {
	return types.EffectiveDay(o.PlannedStart, o.CreatedAt)
}

func (o *Order) requireDraft(operation string) error {
	if o.DeletionMark {
		return apperror.NewInvalidState("manufacturing order", "deleted", operation)
	}
	if o.State != StateDraft {
		return apperror.NewInvalidState("manufacturing order", string(o.State), operation)
	}
	return nil
}

// CanModify returns an error unless the order is a draft.
func (o *Order) CanModify() error {
	return o.requireDraft("modify")
}

// Snapshot returns the manufacturing contribution, nil for cancelled or
// deleted orders.
func (o *Order) Snapshot() *events.Snapshot {
	if o.DeletionMark || o.State == StateCancelled || o.ProductQty.IsZero() {
		return nil
	}
	return &events.Snapshot{
		Day: o.EffectiveDay(),
		Contributions: []events.Contribution{{
			ProductID: o.ProductID,
			Measure:   events.MeasureManufacturing,
			Quantity:  o.ProductQty,
			OrderID:   o.ID,
		}},
	}
}

// ProductIDs returns the finished product followed by the components.
func (o *Order) ProductIDs() []id.ID {
	out := make([]id.ID, 0, len(o.Components)+1)
	out = append(out, o.ProductID)
	for _, c := range o.Components {
		out = append(out, c.ProductID)
	}
	return out
}

// Confirm marks the order done.
func (o *Order) Confirm() error {
	if err := o.requireDraft("confirm"); err != nil {
		return err
	}
	o.State = StateDone
	return nil
}

// Cancel cancels a draft order.
func (o *Order) Cancel() error {
	if err := o.requireDraft("cancel"); err != nil {
		return err
	}
	o.State = StateCancelled
	return nil
}

// Movements returns an expense per component and a receipt of the
// finished product.
func (o *Order) Movements(period time.Time) []stock.Movement {
	rec := stock.Recorder{ID: o.ID, Type: events.AggregateManufacturing, Version: o.Version, Period: period}
	out := make([]stock.Movement, 0, len(o.Components)+1)
	for _, c := range o.Components {
		out = append(out, rec.NewMovement(stock.RecordTypeExpense, c.ProductID, c.Quantity))
	}
	out = append(out, rec.NewMovement(stock.RecordTypeReceipt, o.ProductID, o.ProductQty))
	return out
}
