// Package transfer provides the Transfer document: a scheduled movement of
// goods into or out of stock.
package transfer

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

// Kind is the transfer direction.
type Kind string

const (
	KindIncoming Kind = "incoming"
	KindOutgoing Kind = "outgoing"
)

// State is the document state.
type State string

const (
	StateDraft     State = "draft"
	StateDone      State = "done"
	StateCancelled State = "cancelled"
)

// MoveState is the state of one move.
type MoveState string

const (
	MoveDraft     MoveState = "draft"
	MoveAssigned  MoveState = "assigned"
	MoveDone      MoveState = "done"
	MoveCancelled MoveState = "cancelled"
)

// OrderLink ties a move to a purchase or sale order line.
type OrderLink struct {
	OrderID  id.ID          `json:"orderId"`
	LineID   id.ID          `json:"lineId"`
	Quantity types.Quantity `json:"quantity"`
}

// Move is one product line of a transfer.
type Move struct {
	LineID    id.ID          `json:"lineId"`
	LineNo    int            `json:"lineNo"`
	ProductID id.ID          `json:"productId"`
	Quantity  types.Quantity `json:"quantity"`
	State     MoveState      `json:"state"`
	Deadline  *time.Time     `json:"deadline,omitempty"`

	SaleLine     *OrderLink `json:"saleLine,omitempty"`
	PurchaseLine *OrderLink `json:"purchaseLine,omitempty"`
}

// Transfer is a stock picking document.
type Transfer struct {
	entity.BaseDocument

	Kind          Kind       `db:"kind" json:"kind"`
	ScheduledDate *time.Time `db:"scheduled_date" json:"scheduledDate,omitempty"`
	State         State      `db:"state" json:"state"`

	// Origin is the source document number, e.g. the sale order.
	Origin string `db:"origin" json:"origin,omitempty"`

	Moves []Move `db:"-" json:"moves"`
}

// NewTransfer creates a draft transfer.
func NewTransfer(kind Kind, scheduled *time.Time) *Transfer {
	return &Transfer{
		BaseDocument:  entity.NewBaseDocument(),
		Kind:          kind,
		ScheduledDate: scheduled,
		State:         StateDraft,
		Moves:         make([]Move, 0),
	}
}

// AddMove appends a draft move.
func (t *Transfer) AddMove(productID id.ID, qty types.Quantity) *Move {
	t.Moves = append(t.Moves, Move{
		LineID:    id.New(),
		LineNo:    len(t.Moves) + 1,
		ProductID: productID,
		Quantity:  qty,
		State:     MoveDraft,
	})
	return &t.Moves[len(t.Moves)-1]
}

// Normalize fills line ids, numbers, move states and link quantities.
// Zero dates are cleared so both drivers fall back to the creation day.
func (t *Transfer) Normalize() {
	if t.State == "" {
		t.State = StateDraft
	}
	if t.ScheduledDate != nil && t.ScheduledDate.IsZero() {
		t.ScheduledDate = nil
	}
	for i := range t.Moves {
		m := &t.Moves[i]
		if m.Deadline != nil && m.Deadline.IsZero() {
			m.Deadline = nil
		}
		if id.IsNil(m.LineID) {
			m.LineID = id.New()
		}
		m.LineNo = i + 1
		if m.State == "" {
			m.State = MoveDraft
		}
		if m.SaleLine != nil && m.SaleLine.Quantity.IsZero() {
			m.SaleLine.Quantity = m.Quantity
		}
		if m.PurchaseLine != nil && m.PurchaseLine.Quantity.IsZero() {
			m.PurchaseLine.Quantity = m.Quantity
		}
	}
}

// Validate implements entity.Validatable.
func (t *Transfer) Validate(_ context.Context) error {
	if t.Kind != KindIncoming && t.Kind != KindOutgoing {
		return apperror.NewValidation("invalid transfer kind").
			WithDetail("field", "kind").
			WithDetail("value", string(t.Kind))
	}

	if len(t.Moves) == 0 {
		return apperror.NewValidation("at least one move is required").
			WithDetail("field", "moves")
	}

	for i, m := range t.Moves {
		field := fmt.Sprintf("moves[%d]", i)
		if id.IsNil(m.ProductID) {
			return apperror.NewValidation("product is required").WithDetail("field", field+".productId")
		}
		if !m.Quantity.IsPositive() {
			return apperror.NewValidation("quantity must be positive").WithDetail("field", field+".quantity")
		}
		if m.SaleLine != nil {
			if t.Kind != KindOutgoing {
				return apperror.NewValidation("sale lines are allowed on outgoing transfers only").
					WithDetail("field", field+".saleLine")
			}
			if err := validateLink(m.SaleLine, field+".saleLine"); err != nil {
				return err
			}
		}
		if m.PurchaseLine != nil {
			if t.Kind != KindIncoming {
				return apperror.NewValidation("purchase lines are allowed on incoming transfers only").
					WithDetail("field", field+".purchaseLine")
			}
			if err := validateLink(m.PurchaseLine, field+".purchaseLine"); err != nil {
				return err
			}
		}
	}

	return nil
}

func validateLink(l *OrderLink, field string) error {
	if id.IsNil(l.OrderID) {
		return apperror.NewValidation("order is required").WithDetail("field", field+".orderId")
	}
	if l.Quantity.IsNegative() {
		return apperror.NewValidation("linked quantity cannot be negative").WithDetail("field", field+".quantity")
	}
	return nil
}

// EffectiveDay is the scheduled day, or the creation day when unscheduled.
func (t *Transfer) EffectiveDay() time.Time {
	return types.EffectiveDay(t.ScheduledDate, t.CreatedAt)
}

// requireDraft returns INVALID_STATE unless the transfer is a live draft.
func (t *Transfer) requireDraft(operation string) error {
	if t.DeletionMark {
		return apperror.NewInvalidState("transfer", "deleted", operation)
	}
	if t.State != StateDraft {
		return apperror.NewInvalidState("transfer", string(t.State), operation)
	}
	return nil
}

// CanModify returns an error unless the transfer is a draft.
func (t *Transfer) CanModify() error {
	return t.requireDraft("modify")
}

// Contributes reports whether the transfer counts toward the forecast.
func (t *Transfer) Contributes() bool {
	return !t.DeletionMark && (t.State == StateDraft || t.State == StateDone)
}

// Contributions returns linked order quantities per move: sale links on
// outgoing transfers, purchase links on incoming ones.
func (t *Transfer) Contributions() []events.Contribution {
	if !t.Contributes() {
		return nil
	}
	out := make([]events.Contribution, 0, len(t.Moves))
	for _, m := range t.Moves {
		if m.State == MoveCancelled {
			continue
		}
		switch {
		case t.Kind == KindOutgoing && m.SaleLine != nil:
			out = append(out, events.Contribution{
				ProductID: m.ProductID,
				Measure:   events.MeasureSale,
				Quantity:  m.SaleLine.Quantity,
				OrderID:   m.SaleLine.OrderID,
			})
		case t.Kind == KindIncoming && m.PurchaseLine != nil:
			out = append(out, events.Contribution{
				ProductID: m.ProductID,
				Measure:   events.MeasurePurchase,
				Quantity:  m.PurchaseLine.Quantity,
				OrderID:   m.PurchaseLine.OrderID,
			})
		}
	}
	return out
}

// Snapshot returns the forecast contribution on the effective day, or nil
// when the transfer contributes nothing.
func (t *Transfer) Snapshot() *events.Snapshot {
	c := t.Contributions()
	if len(c) == 0 {
		return nil
	}
	return &events.Snapshot{Day: t.EffectiveDay(), Contributions: c}
}

// ProductIDs returns the distinct products moved.
func (t *Transfer) ProductIDs() []id.ID {
	seen := make(map[id.ID]struct{}, len(t.Moves))
	out := make([]id.ID, 0, len(t.Moves))
	for _, m := range t.Moves {
		if _, ok := seen[m.ProductID]; ok {
			continue
		}
		seen[m.ProductID] = struct{}{}
		out = append(out, m.ProductID)
	}
	return out
}

// Confirm marks the transfer and its live moves done.
func (t *Transfer) Confirm() error {
	if err := t.requireDraft("confirm"); err != nil {
		return err
	}
	t.State = StateDone
	for i := range t.Moves {
		if t.Moves[i].State != MoveCancelled {
			t.Moves[i].State = MoveDone
		}
	}
	return nil
}

// Cancel cancels a draft transfer.
func (t *Transfer) Cancel() error {
	if err := t.requireDraft("cancel"); err != nil {
		return err
	}
	t.State = StateCancelled
	for i := range t.Moves {
		t.Moves[i].State = MoveCancelled
	}
	return nil
}

// Reserve assigns draft moves. A move without deadline gets the transfer's
// effective day. Returns the (product, day) pairs that changed.
func (t *Transfer) Reserve() ([]events.Reservation, error) {
	if err := t.requireDraft("reserve"); err != nil {
		return nil, err
	}
	var out []events.Reservation
	for i := range t.Moves {
		m := &t.Moves[i]
		if m.State != MoveDraft {
			continue
		}
		if m.Deadline == nil {
			day := t.EffectiveDay()
			m.Deadline = &day
		}
		m.State = MoveAssigned
		out = append(out, events.Reservation{ProductID: m.ProductID, Day: types.Day(*m.Deadline)})
	}
	return out, nil
}

// Reservations returns the (product, deadline day) pairs of assigned moves.
func (t *Transfer) Reservations() []events.Reservation {
	var out []events.Reservation
	for _, m := range t.Moves {
		if m.State == MoveAssigned && m.Deadline != nil {
			out = append(out, events.Reservation{ProductID: m.ProductID, Day: types.Day(*m.Deadline)})
		}
	}
	return out
}

// Movements builds the stock movements recorded on confirmation:
// receipts for incoming transfers, expenses for outgoing ones.
func (t *Transfer) Movements(period time.Time) []stock.Movement {
	rec := stock.Recorder{ID: t.ID, Type: events.AggregateTransfer, Version: t.Version, Period: period}
	recordType := stock.RecordTypeExpense
	if t.Kind == KindIncoming {
		recordType = stock.RecordTypeReceipt
	}
	out := make([]stock.Movement, 0, len(t.Moves))
	for _, m := range t.Moves {
		if m.State == MoveCancelled {
			continue
		}
		out = append(out, rec.NewMovement(recordType, m.ProductID, m.Quantity))
	}
	return out
}
