// Package purchase provides the PurchaseOrder document. A confirmed order
// is received through linked incoming transfers.
package purchase

import (
	"context"
	"fmt"
	"time"

	"stockforecast/internal/core/apperror"
	"stockforecast/internal/core/entity"
	"stockforecast/internal/core/id"
	"stockforecast/internal/core/types"
)

// State is the order state.
type State string

const (
	StateDraft     State = "draft"
	StateConfirmed State = "confirmed"
	StateCancelled State = "cancelled"
)

// Line is one ordered product.
type Line struct {
	LineID     id.ID          `db:"line_id" json:"lineId"`
	OrderID    id.ID          `db:"order_id" json:"-"`
	LineNo     int            `db:"line_no" json:"lineNo"`
	ProductID  id.ID          `db:"product_id" json:"productId"`
	ProductQty types.Quantity `db:"product_qty" json:"productQty"`
}

// Order is a purchase order.
type Order struct {
	entity.BaseDocument

	State        State      `db:"state" json:"state"`
	ExpectedDate *time.Time `db:"expected_date" json:"expectedDate,omitempty"`
	Vendor       string     `db:"vendor" json:"vendor,omitempty"`

	Lines []Line `db:"-" json:"lines"`
}

// NewOrder creates a draft purchase order.
func NewOrder(expected *time.Time) *Order {
	return &Order{
		BaseDocument: entity.NewBaseDocument(),
		State:        StateDraft,
		ExpectedDate: expected,
		Lines:        make([]Line, 0),
	}
}

// AddLine appends an order line.
func (o *Order) AddLine(productID id.ID, qty types.Quantity) *Line {
	o.Lines = append(o.Lines, Line{
		LineID:     id.New(),
		OrderID:    o.ID,
		LineNo:     len(o.Lines) + 1,
		ProductID:  productID,
		ProductQty: qty,
	})
	return &o.Lines[len(o.Lines)-1]
}

// Normalize fills line ids and numbers.
func (o *Order) Normalize() {
	if o.State == "" {
		o.State = StateDraft
	}
	for i := range o.Lines {
		if id.IsNil(o.Lines[i].LineID) {
			o.Lines[i].LineID = id.New()
		}
		o.Lines[i].OrderID = o.ID
		o.Lines[i].LineNo = i + 1
	}
}

// Validate implements entity.Validatable.
func (o *Order) Validate(_ context.Context) error {
	if len(o.Lines) == 0 {
		return apperror.NewValidation("at least one line is required").WithDetail("field", "lines")
	}
	for i, l := range o.Lines {
		field := fmt.Sprintf("lines[%d]", i)
		if id.IsNil(l.ProductID) {
			return apperror.NewValidation("product is required").WithDetail("field", field+".productId")
		}
		if !l.ProductQty.IsPositive() {
			return apperror.NewValidation("quantity must be positive").WithDetail("field", field+".productQty")
		}
	}
	return nil
}

// ProductIDs returns the products of all lines.
func (o *Order) ProductIDs() []id.ID {
	out := make([]id.ID, 0, len(o.Lines))
	for _, l := range o.Lines {
		out = append(out, l.ProductID)
	}
	return out
}

func (o *Order) requireDraft(operation string) error {
	if o.DeletionMark {
		return apperror.NewInvalidState("purchase order", "deleted", operation)
	}
	if o.State != StateDraft {
		return apperror.NewInvalidState("purchase order", string(o.State), operation)
	}
	return nil
}

// Confirm marks the order confirmed.
func (o *Order) Confirm() error {
	if err := o.requireDraft("confirm"); err != nil {
		return err
	}
	o.State = StateConfirmed
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
