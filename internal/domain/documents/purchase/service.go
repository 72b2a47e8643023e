package purchase

import (
	"context"
	"fmt"
	"time"

	"stockforecast/internal/core/apperror"
	"stockforecast/internal/core/id"
	"stockforecast/internal/core/numerator"
	"stockforecast/internal/core/security"
	"stockforecast/internal/core/tx"
	"stockforecast/internal/domain"
	"stockforecast/internal/domain/documents/transfer"
	"stockforecast/internal/domain/events"
	"stockforecast/pkg/logger"
)

// ProductLookup checks referenced products.
type ProductLookup interface {
	Template(ctx context.Context, productID id.ID) (id.ID, error)
}

// Transfers is the subset of the transfer service used to receive orders.
type Transfers interface {
	ListByOrder(ctx context.Context, orderID id.ID, kind transfer.Kind) ([]*transfer.Transfer, error)
	Create(ctx context.Context, doc *transfer.Transfer) error
	Confirm(ctx context.Context, docID id.ID) (*transfer.Transfer, error)
	Cancel(ctx context.Context, docID id.ID) (*transfer.Transfer, error)
}

// Service provides business operations for purchase orders.
type Service struct {
	repo      Repository
	products  ProductLookup
	transfers Transfers
	numerator numerator.Generator
	txManager tx.Manager
	bus       events.Publisher
}

// NewService creates a new purchase order service.
func NewService(
	repo Repository,
	products ProductLookup,
	transfers Transfers,
	numerator numerator.Generator,
	txManager tx.Manager,
	bus events.Publisher,
) *Service {
	return &Service{
		repo:      repo,
		products:  products,
		transfers: transfers,
		numerator: numerator,
		txManager: txManager,
		bus:       bus,
	}
}

// Create creates a draft order. Drafts do not contribute to the forecast.
func (s *Service) Create(ctx context.Context, doc *Order) error {
	doc.Normalize()
	if err := doc.Validate(ctx); err != nil {
		return err
	}
	if doc.State != StateDraft {
		return apperror.NewInvalidState("purchase order", string(doc.State), "create")
	}

	err := s.txManager.RunInTransaction(ctx, func(ctx context.Context) error {
		for i, l := range doc.Lines {
			if _, err := s.products.Template(ctx, l.ProductID); err != nil {
				if apperror.IsNotFound(err) {
					return apperror.NewValidation("product not found").
						WithDetail("field", fmt.Sprintf("lines[%d].productId", i))
				}
				return err
			}
		}

		if doc.Number == "" {
			number, err := s.numerator.GetNextNumber(ctx, numerator.DefaultConfig("PO"), doc.CreatedAt)
			if err != nil {
				return fmt.Errorf("generate number: %w", err)
			}
			doc.Number = number
		}
		doc.CreatedBy = security.GetUserID(ctx)
		doc.UpdatedBy = doc.CreatedBy

		if err := s.repo.Create(ctx, doc); err != nil {
			return fmt.Errorf("create purchase order: %w", err)
		}
		return nil
	})
	if err != nil {
		return err
	}

	logger.Info(ctx, "purchase order created", "id", doc.ID, "number", doc.Number)
	return nil
}

// GetByID retrieves an order with lines.
func (s *Service) GetByID(ctx context.Context, docID id.ID) (*Order, error) {
	return s.repo.GetByID(ctx, docID)
}

// List retrieves orders with filtering.
func (s *Service) List(ctx context.Context, filter ListFilter) (domain.ListResult[*Order], error) {
	filter.Normalize()
	return s.repo.List(ctx, filter)
}

// receipt builds the incoming transfer for an order without one.
func receipt(doc *Order) *transfer.Transfer {
	t := transfer.NewTransfer(transfer.KindIncoming, doc.ExpectedDate)
	t.Origin = doc.Number
	for _, l := range doc.Lines {
		m := t.AddMove(l.ProductID, l.ProductQty)
		m.PurchaseLine = &transfer.OrderLink{OrderID: doc.ID, LineID: l.LineID, Quantity: l.ProductQty}
	}
	return t
}

// Confirm confirms the order and receives its goods. A receipt transfer is
// created when none is linked yet; every draft receipt is then confirmed.
func (s *Service) Confirm(ctx context.Context, docID id.ID) (*Order, error) {
	var doc *Order
	err := s.txManager.RunInTransaction(ctx, func(ctx context.Context) error {
		var err error
		doc, err = s.repo.GetForUpdate(ctx, docID)
		if err != nil {
			return err
		}
		if err := doc.Confirm(); err != nil {
			return err
		}

		linked, err := s.transfers.ListByOrder(ctx, doc.ID, transfer.KindIncoming)
		if err != nil {
			return fmt.Errorf("list receipts: %w", err)
		}
		if len(linked) == 0 {
			t := receipt(doc)
			if err := s.transfers.Create(ctx, t); err != nil {
				return fmt.Errorf("create receipt: %w", err)
			}
			linked = append(linked, t)
		}
		for _, t := range linked {
			if t.State != transfer.StateDraft {
				continue
			}
			if _, err := s.transfers.Confirm(ctx, t.ID); err != nil {
				return fmt.Errorf("confirm receipt %s: %w", t.Number, err)
			}
		}

		doc.UpdatedBy = security.GetUserID(ctx)
		doc.UpdatedAt = time.Now().UTC()
		if err := s.repo.Update(ctx, doc); err != nil {
			return fmt.Errorf("update purchase order: %w", err)
		}

		evt := events.NewStockChanged(events.PurchaseConfirmed, events.AggregatePurchase, doc.ID, doc.ProductIDs())
		return s.bus.Publish(ctx, evt)
	})
	if err != nil {
		return nil, err
	}

	logger.Info(ctx, "purchase order confirmed", "id", doc.ID, "number", doc.Number)
	return doc, nil
}

// Cancel cancels a draft order together with its draft receipts.
func (s *Service) Cancel(ctx context.Context, docID id.ID) (*Order, error) {
	var doc *Order
	err := s.txManager.RunInTransaction(ctx, func(ctx context.Context) error {
		var err error
		doc, err = s.repo.GetForUpdate(ctx, docID)
		if err != nil {
			return err
		}
		if err := doc.Cancel(); err != nil {
			return err
		}

		linked, err := s.transfers.ListByOrder(ctx, doc.ID, transfer.KindIncoming)
		if err != nil {
			return fmt.Errorf("list receipts: %w", err)
		}
		for _, t := range linked {
			if t.State != transfer.StateDraft {
				continue
			}
			if _, err := s.transfers.Cancel(ctx, t.ID); err != nil {
				return fmt.Errorf("cancel receipt %s: %w", t.Number, err)
			}
		}

		doc.UpdatedBy = security.GetUserID(ctx)
		doc.UpdatedAt = time.Now().UTC()
		return s.repo.Update(ctx, doc)
	})
	if err != nil {
		return nil, err
	}

	logger.Info(ctx, "purchase order cancelled", "id", doc.ID, "number", doc.Number)
	return doc, nil
}
