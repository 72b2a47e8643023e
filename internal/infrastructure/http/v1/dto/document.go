package dto

import (
	"time"

	"stockforecast/internal/core/id"
	"stockforecast/internal/core/types"
	"stockforecast/internal/domain/documents/manufacturing"
	"stockforecast/internal/domain/documents/purchase"
	"stockforecast/internal/domain/documents/sale"
	"stockforecast/internal/domain/documents/transfer"
)

// --- Transfers ---

// OrderLinkRequest ties a move to a purchase or sale order line.
// A zero quantity takes the move quantity.
type OrderLinkRequest struct {
	OrderID  string         `json:"orderId" binding:"required"`
	LineID   string         `json:"lineId" binding:"required"`
	Quantity types.Quantity `json:"quantity"`
}

func (r *OrderLinkRequest) toLink(field string) (*transfer.OrderLink, error) {
	if r == nil {
		return nil, nil
	}
	orderID, err := parseID(field+".orderId", r.OrderID)
	if err != nil {
		return nil, err
	}
	lineID, err := parseID(field+".lineId", r.LineID)
	if err != nil {
		return nil, err
	}
	return &transfer.OrderLink{OrderID: orderID, LineID: lineID, Quantity: r.Quantity}, nil
}

// MoveRequest is one transfer line. LineID keeps an existing line on update.
type MoveRequest struct {
	LineID       *string           `json:"lineId"`
	ProductID    string            `json:"productId" binding:"required"`
	Quantity     types.Quantity    `json:"quantity"`
	Deadline     *time.Time        `json:"deadline"`
	SaleLine     *OrderLinkRequest `json:"saleLine"`
	PurchaseLine *OrderLinkRequest `json:"purchaseLine"`
}

// CreateTransferRequest creates a draft transfer.
type CreateTransferRequest struct {
	Kind          transfer.Kind `json:"kind" binding:"required,oneof=incoming outgoing"`
	ScheduledDate *time.Time    `json:"scheduledDate"`
	Origin        string        `json:"origin"`
	Moves         []MoveRequest `json:"moves" binding:"required,min=1,dive"`
}

// ToEntity builds the transfer.
func (r CreateTransferRequest) ToEntity() (*transfer.Transfer, error) {
	doc := transfer.NewTransfer(r.Kind, r.ScheduledDate)
	doc.Origin = r.Origin
	if err := setMoves(doc, r.Moves); err != nil {
		return nil, err
	}
	return doc, nil
}

// UpdateTransferRequest replaces the editable fields of a draft transfer.
type UpdateTransferRequest struct {
	ScheduledDate *time.Time    `json:"scheduledDate"`
	Origin        string        `json:"origin"`
	Moves         []MoveRequest `json:"moves" binding:"required,min=1,dive"`
	Version       int           `json:"version" binding:"required,min=1"`
}

// ApplyTo copies the request onto doc.
func (r UpdateTransferRequest) ApplyTo(doc *transfer.Transfer) (*transfer.Transfer, error) {
	doc.ScheduledDate = r.ScheduledDate
	doc.Origin = r.Origin
	if err := setMoves(doc, r.Moves); err != nil {
		return nil, err
	}
	doc.Version = r.Version
	return doc, nil
}

func setMoves(doc *transfer.Transfer, moves []MoveRequest) error {
	doc.Moves = make([]transfer.Move, 0, len(moves))
	for _, m := range moves {
		productID, err := parseID("moves.productId", m.ProductID)
		if err != nil {
			return err
		}
		lineID, err := parseOptionalID("moves.lineId", m.LineID)
		if err != nil {
			return err
		}
		saleLine, err := m.SaleLine.toLink("moves.saleLine")
		if err != nil {
			return err
		}
		purchaseLine, err := m.PurchaseLine.toLink("moves.purchaseLine")
		if err != nil {
			return err
		}

		move := doc.AddMove(productID, m.Quantity)
		if lineID != nil {
			move.LineID = *lineID
		}
		move.Deadline = m.Deadline
		move.SaleLine = saleLine
		move.PurchaseLine = purchaseLine
	}
	return nil
}

// --- Manufacturing orders ---

// ComponentRequest is one raw material line.
type ComponentRequest struct {
	ProductID string         `json:"productId" binding:"required"`
	Quantity  types.Quantity `json:"quantity"`
}

// ManufacturingRequest creates or edits a manufacturing order. Without
// components they are exploded from the BoM.
type ManufacturingRequest struct {
	ProductID    string             `json:"productId" binding:"required"`
	ProductQty   types.Quantity     `json:"productQty"`
	PlannedStart *time.Time         `json:"plannedStart"`
	BomID        *string            `json:"bomId"`
	Components   []ComponentRequest `json:"components" binding:"dive"`

	// Version is required on update.
	Version int `json:"version"`
}

// ToEntity builds a new order.
func (r ManufacturingRequest) ToEntity() (*manufacturing.Order, error) {
	productID, err := parseID("productId", r.ProductID)
	if err != nil {
		return nil, err
	}
	doc := manufacturing.NewOrder(productID, r.ProductQty, r.PlannedStart)
	if err := r.fill(doc); err != nil {
		return nil, err
	}
	return doc, nil
}

// ApplyTo copies the request onto doc.
func (r ManufacturingRequest) ApplyTo(doc *manufacturing.Order) (*manufacturing.Order, error) {
	productID, err := parseID("productId", r.ProductID)
	if err != nil {
		return nil, err
	}
	doc.ProductID = productID
	doc.ProductQty = r.ProductQty
	doc.PlannedStart = r.PlannedStart
	if err := r.fill(doc); err != nil {
		return nil, err
	}
	doc.Version = r.Version
	return doc, nil
}

func (r ManufacturingRequest) fill(doc *manufacturing.Order) error {
	bomID, err := parseOptionalID("bomId", r.BomID)
	if err != nil {
		return err
	}
	doc.BomID = bomID
	doc.Components = make([]manufacturing.Component, 0, len(r.Components))
	for _, c := range r.Components {
		productID, err := parseID("components.productId", c.ProductID)
		if err != nil {
			return err
		}
		doc.AddComponent(productID, c.Quantity)
	}
	return nil
}

// --- Purchase and sale orders ---

// OrderLineRequest is one ordered product.
type OrderLineRequest struct {
	ProductID string         `json:"productId" binding:"required"`
	Quantity  types.Quantity `json:"quantity"`
}

func parseLines(lines []OrderLineRequest, add func(id.ID, types.Quantity)) error {
	for _, l := range lines {
		productID, err := parseID("lines.productId", l.ProductID)
		if err != nil {
			return err
		}
		add(productID, l.Quantity)
	}
	return nil
}

// CreatePurchaseRequest creates a draft purchase order.
type CreatePurchaseRequest struct {
	ExpectedDate *time.Time         `json:"expectedDate"`
	Vendor       string             `json:"vendor"`
	Lines        []OrderLineRequest `json:"lines" binding:"required,min=1,dive"`
}

// ToEntity builds the purchase order.
func (r CreatePurchaseRequest) ToEntity() (*purchase.Order, error) {
	doc := purchase.NewOrder(r.ExpectedDate)
	doc.Vendor = r.Vendor
	err := parseLines(r.Lines, func(productID id.ID, qty types.Quantity) {
		doc.AddLine(productID, qty)
	})
	if err != nil {
		return nil, err
	}
	return doc, nil
}

// CreateSaleRequest creates a draft sale order.
type CreateSaleRequest struct {
	CommitmentDate *time.Time         `json:"commitmentDate"`
	Customer       string             `json:"customer"`
	Lines          []OrderLineRequest `json:"lines" binding:"required,min=1,dive"`
}

// ToEntity builds the sale order.
func (r CreateSaleRequest) ToEntity() (*sale.Order, error) {
	doc := sale.NewOrder(r.CommitmentDate)
	doc.Customer = r.Customer
	err := parseLines(r.Lines, func(productID id.ID, qty types.Quantity) {
		doc.AddLine(productID, qty)
	})
	if err != nil {
		return nil, err
	}
	return doc, nil
}
