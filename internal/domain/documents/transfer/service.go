package transfer

import (
	"context"
	"fmt"
	"time"

	"stockforecast/internal/core/apperror"
	"stockforecast/internal/core/id"
	"stockforecast/internal/core/numerator"
	"stockforecast/internal/core/security"
	"stockforecast/internal/core/tx"
	"stockforecast/internal/core/types"
	"stockforecast/internal/domain"
	"stockforecast/internal/domain/events"
	"stockforecast/internal/domain/registers/stock"
	"stockforecast/pkg/logger"
)

// ProductLookup checks referenced products.
type ProductLookup interface {
	Template(ctx context.Context, productID id.ID) (id.ID, error)
}

// StockRecorder records confirmed movements.
type StockRecorder interface {
	RecordMovements(ctx context.Context, movements []stock.Movement) error
}

// Service provides business operations for transfers. Every mutation runs
// in one transaction together with the event handlers it triggers.
type Service struct {
	repo      Repository
	products  ProductLookup
	stock     StockRecorder
	numerator numerator.Generator
	txManager tx.Manager
	bus       events.Publisher
}

// NewService creates a new transfer service.
func NewService(
	repo Repository,
	products ProductLookup,
	stockRecorder StockRecorder,
	numerator numerator.Generator,
	txManager tx.Manager,
	bus events.Publisher,
) *Service {
	return &Service{
		repo:      repo,
		products:  products,
		stock:     stockRecorder,
		numerator: numerator,
		txManager: txManager,
		bus:       bus,
	}
}

func numberPrefix(kind Kind) string {
	if kind == KindIncoming {
		return "IN"
	}
	return "OUT"
}

func (s *Service) checkProducts(ctx context.Context, doc *Transfer) error {
	for i, m := range doc.Moves {
		if _, err := s.products.Template(ctx, m.ProductID); err != nil {
			if apperror.IsNotFound(err) {
				return apperror.NewValidation("product not found").
					WithDetail("field", fmt.Sprintf("moves[%d].productId", i))
			}
			return err
		}
	}
	return nil
}

// Create creates a draft transfer and contributes it to the forecast.
func (s *Service) Create(ctx context.Context, doc *Transfer) error {
	doc.Normalize()

	if err := doc.Validate(ctx); err != nil {
		return err
	}
	if doc.State != StateDraft {
		return apperror.NewInvalidState("transfer", string(doc.State), "create")
	}

	err := s.txManager.RunInTransaction(ctx, func(ctx context.Context) error {
		if err := s.checkProducts(ctx, doc); err != nil {
			return err
		}

		if doc.Number == "" {
			number, err := s.numerator.GetNextNumber(ctx, numerator.DefaultConfig(numberPrefix(doc.Kind)), doc.CreatedAt)
			if err != nil {
				return fmt.Errorf("generate number: %w", err)
			}
			doc.Number = number
		}
		doc.CreatedBy = security.GetUserID(ctx)
		doc.UpdatedBy = doc.CreatedBy

		if err := s.repo.Create(ctx, doc); err != nil {
			return fmt.Errorf("create transfer: %w", err)
		}

		if snap := doc.Snapshot(); snap != nil {
			evt := events.NewContributionsChanged(events.TransferCreated, events.AggregateTransfer, doc.ID, nil, snap)
			return s.bus.Publish(ctx, evt)
		}
		return nil
	})
	if err != nil {
		return err
	}

	logger.Info(ctx, "transfer created",
		"id", doc.ID,
		"number", doc.Number,
		"kind", doc.Kind)

	return nil
}

// GetByID retrieves a transfer with moves.
func (s *Service) GetByID(ctx context.Context, docID id.ID) (*Transfer, error) {
	return s.repo.GetByID(ctx, docID)
}

// List retrieves transfers with filtering.
func (s *Service) List(ctx context.Context, filter ListFilter) (domain.ListResult[*Transfer], error) {
	filter.Normalize()
	return s.repo.List(ctx, filter)
}

// ListByOrder returns transfers linked to an order.
func (s *Service) ListByOrder(ctx context.Context, orderID id.ID, kind Kind) ([]*Transfer, error) {
	return s.repo.ListByOrder(ctx, orderID, kind)
}

// Update replaces the editable fields of a draft transfer. Moving the
// effective day publishes date_changed; changing contributions on the same
// day publishes lines_changed.
func (s *Service) Update(ctx context.Context, doc *Transfer) error {
	doc.Normalize()

	if err := doc.Validate(ctx); err != nil {
		return err
	}

	err := s.txManager.RunInTransaction(ctx, func(ctx context.Context) error {
		current, err := s.repo.GetForUpdate(ctx, doc.ID)
		if err != nil {
			return err
		}
		if err := current.CanModify(); err != nil {
			return err
		}
		if current.Version != doc.Version {
			return apperror.NewConcurrentModification("transfer", doc.ID.String())
		}
		if current.Kind != doc.Kind {
			return apperror.NewValidation("transfer kind cannot change").WithDetail("field", "kind")
		}
		if err := s.checkProducts(ctx, doc); err != nil {
			return err
		}

		// Fields owned by the service.
		doc.Number = current.Number
		doc.State = current.State
		doc.CreatedAt = current.CreatedAt
		doc.CreatedBy = current.CreatedBy
		doc.UpdatedBy = security.GetUserID(ctx)
		doc.UpdatedAt = time.Now().UTC()

		previous := current.Snapshot()
		reserved := append(current.Reservations(), doc.Reservations()...)
		if err := s.repo.Update(ctx, doc); err != nil {
			return fmt.Errorf("update transfer: %w", err)
		}

		if evt := changeEvent(doc.ID, previous, doc.Snapshot()); evt != nil {
			if err := s.bus.Publish(ctx, evt); err != nil {
				return err
			}
		}
		return s.unreserve(ctx, doc.ID, reserved)
	})
	if err != nil {
		return err
	}

	logger.Info(ctx, "transfer updated", "id", doc.ID, "number", doc.Number)
	return nil
}

// changeEvent picks the event type for an edit, or nil when the forecast
// contribution is unchanged.
func changeEvent(docID id.ID, previous, current *events.Snapshot) events.Event {
	if previous.Equal(current) {
		return nil
	}
	eventType := events.TransferLinesChanged
	if previous != nil && current != nil && !previous.Day.Equal(current.Day) {
		eventType = events.TransferDateChanged
	}
	return events.NewContributionsChanged(eventType, events.AggregateTransfer, docID, previous, current)
}

// Delete soft-deletes a draft or cancelled transfer. Deleting a cancelled
// transfer leaves the forecast untouched.
func (s *Service) Delete(ctx context.Context, docID id.ID) error {
	err := s.txManager.RunInTransaction(ctx, func(ctx context.Context) error {
		doc, err := s.repo.GetForUpdate(ctx, docID)
		if err != nil {
			return err
		}
		if doc.State == StateDone {
			return apperror.NewInvalidState("transfer", string(doc.State), "delete")
		}

		previous := doc.Snapshot()
		reserved := doc.Reservations()
		if err := s.repo.Delete(ctx, docID); err != nil {
			return fmt.Errorf("delete transfer: %w", err)
		}

		if previous != nil {
			evt := events.NewContributionsChanged(events.TransferDeleted, events.AggregateTransfer, docID, previous, nil)
			if err := s.bus.Publish(ctx, evt); err != nil {
				return err
			}
		}
		return s.unreserve(ctx, docID, reserved)
	})
	if err != nil {
		return err
	}

	logger.Info(ctx, "transfer deleted", "id", docID)
	return nil
}

// Confirm validates a draft transfer: moves become done and the stock
// register records the receipt or expense.
func (s *Service) Confirm(ctx context.Context, docID id.ID) (*Transfer, error) {
	var doc *Transfer
	err := s.txManager.RunInTransaction(ctx, func(ctx context.Context) error {
		var err error
		doc, err = s.repo.GetForUpdate(ctx, docID)
		if err != nil {
			return err
		}
		reserved := doc.Reservations()
		if err := doc.Confirm(); err != nil {
			return err
		}
		doc.UpdatedBy = security.GetUserID(ctx)
		doc.UpdatedAt = time.Now().UTC()

		if err := s.stock.RecordMovements(ctx, doc.Movements(types.Day(doc.UpdatedAt))); err != nil {
			return fmt.Errorf("record movements: %w", err)
		}
		if err := s.repo.Update(ctx, doc); err != nil {
			return fmt.Errorf("update transfer: %w", err)
		}

		evt := events.NewStockChanged(events.TransferConfirmed, events.AggregateTransfer, doc.ID, doc.ProductIDs())
		if err := s.bus.Publish(ctx, evt); err != nil {
			return err
		}
		return s.unreserve(ctx, doc.ID, reserved)
	})
	if err != nil {
		return nil, err
	}

	logger.Info(ctx, "transfer confirmed", "id", doc.ID, "number", doc.Number)
	return doc, nil
}

// Cancel cancels a draft transfer and withdraws its contribution.
func (s *Service) Cancel(ctx context.Context, docID id.ID) (*Transfer, error) {
	var doc *Transfer
	err := s.txManager.RunInTransaction(ctx, func(ctx context.Context) error {
		var err error
		doc, err = s.repo.GetForUpdate(ctx, docID)
		if err != nil {
			return err
		}

		previous := doc.Snapshot()
		reserved := doc.Reservations()
		if err := doc.Cancel(); err != nil {
			return err
		}
		doc.UpdatedBy = security.GetUserID(ctx)
		doc.UpdatedAt = time.Now().UTC()

		if err := s.repo.Update(ctx, doc); err != nil {
			return fmt.Errorf("update transfer: %w", err)
		}

		if previous != nil {
			evt := events.NewContributionsChanged(events.TransferCancelled, events.AggregateTransfer, doc.ID, previous, nil)
			if err := s.bus.Publish(ctx, evt); err != nil {
				return err
			}
		}
		return s.unreserve(ctx, doc.ID, reserved)
	})
	if err != nil {
		return nil, err
	}

	logger.Info(ctx, "transfer cancelled", "id", doc.ID, "number", doc.Number)
	return doc, nil
}

// unreserve refreshes the reserved quantity on the rows of moves that were
// assigned before a change.
func (s *Service) unreserve(ctx context.Context, docID id.ID, reservations []events.Reservation) error {
	if len(reservations) == 0 {
		return nil
	}
	return s.bus.Publish(ctx, events.NewUnreserved(docID, reservations))
}

// Reserve assigns the draft moves of a transfer.
func (s *Service) Reserve(ctx context.Context, docID id.ID) (*Transfer, error) {
	var doc *Transfer
	err := s.txManager.RunInTransaction(ctx, func(ctx context.Context) error {
		var err error
		doc, err = s.repo.GetForUpdate(ctx, docID)
		if err != nil {
			return err
		}

		reservations, err := doc.Reserve()
		if err != nil {
			return err
		}
		if len(reservations) == 0 {
			return nil
		}
		doc.UpdatedBy = security.GetUserID(ctx)
		doc.UpdatedAt = time.Now().UTC()

		if err := s.repo.Update(ctx, doc); err != nil {
			return fmt.Errorf("update transfer: %w", err)
		}
		return s.bus.Publish(ctx, events.NewReserved(doc.ID, reservations))
	})
	if err != nil {
		return nil, err
	}

	logger.Info(ctx, "transfer reserved", "id", doc.ID, "number", doc.Number)
	return doc, nil
}
