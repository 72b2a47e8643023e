package manufacturing

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
	"stockforecast/internal/domain/catalogs/bom"
	"stockforecast/internal/domain/events"
	"stockforecast/internal/domain/registers/stock"
	"stockforecast/pkg/logger"
)

// ProductLookup resolves product templates.
type ProductLookup interface {
	Template(ctx context.Context, productID id.ID) (id.ID, error)
}

// BomLookup loads BoMs for explosion.
type BomLookup interface {
	GetByID(ctx context.Context, bomID id.ID) (*bom.BoM, error)
}

// StockRecorder records confirmed movements.
type StockRecorder interface {
	RecordMovements(ctx context.Context, movements []stock.Movement) error
}

// Service provides business operations for manufacturing orders.
type Service struct {
	repo      Repository
	products  ProductLookup
	boms      BomLookup
	stock     StockRecorder
	numerator numerator.Generator
	txManager tx.Manager
	bus       events.Publisher
}

// NewService creates a new manufacturing order service.
func NewService(
	repo Repository,
	products ProductLookup,
	boms BomLookup,
	stockRecorder StockRecorder,
	numerator numerator.Generator,
	txManager tx.Manager,
	bus events.Publisher,
) *Service {
	return &Service{
		repo:      repo,
		products:  products,
		boms:      boms,
		stock:     stockRecorder,
		numerator: numerator,
		txManager: txManager,
		bus:       bus,
	}
}

// explode fills components from the order's BoM when none were given.
func (s *Service) explode(ctx context.Context, doc *Order) error {
	template, err := s.products.Template(ctx, doc.ProductID)
	if err != nil {
		if apperror.IsNotFound(err) {
			return apperror.NewValidation("product not found").WithDetail("field", "productId")
		}
		return err
	}

	if doc.BomID == nil {
		return nil
	}

	b, err := s.boms.GetByID(ctx, *doc.BomID)
	if err != nil {
		if apperror.IsNotFound(err) {
			return apperror.NewValidation("bom not found").WithDetail("field", "bomId")
		}
		return err
	}
	if b.ProductTemplateID != template {
		return apperror.NewValidation("bom does not produce this product").WithDetail("field", "bomId")
	}

	if len(doc.Components) > 0 {
		return nil
	}
	for _, l := range b.Lines {
		doc.AddComponent(l.ProductID, l.Quantity.MulRatio(doc.ProductQty, b.ProductQty))
	}
	return nil
}

// Create creates a draft order, exploding its BoM when set.
func (s *Service) Create(ctx context.Context, doc *Order) error {
	doc.Normalize()
	if err := doc.Validate(ctx); err != nil {
		return err
	}
	if doc.State != StateDraft {
		return apperror.NewInvalidState("manufacturing order", string(doc.State), "create")
	}

	err := s.txManager.RunInTransaction(ctx, func(ctx context.Context) error {
		if err := s.explode(ctx, doc); err != nil {
			return err
		}

		if doc.Number == "" {
			number, err := s.numerator.GetNextNumber(ctx, numerator.DefaultConfig("MO"), doc.CreatedAt)
			if err != nil {
				return fmt.Errorf("generate number: %w", err)
			}
			doc.Number = number
		}
		doc.CreatedBy = security.GetUserID(ctx)
		doc.UpdatedBy = doc.CreatedBy

		if err := s.repo.Create(ctx, doc); err != nil {
			return fmt.Errorf("create manufacturing order: %w", err)
		}

		evt := events.NewContributionsChanged(events.ManufacturingCreated, events.AggregateManufacturing, doc.ID, nil, doc.Snapshot())
		return s.bus.Publish(ctx, evt)
	})
	if err != nil {
		return err
	}

	logger.Info(ctx, "manufacturing order created",
		"id", doc.ID,
		"number", doc.Number,
		"product_id", doc.ProductID,
		"components", len(doc.Components))
	return nil
}

// GetByID retrieves an order with components.
func (s *Service) GetByID(ctx context.Context, docID id.ID) (*Order, error) {
	return s.repo.GetByID(ctx, docID)
}

// List retrieves orders with filtering.
func (s *Service) List(ctx context.Context, filter ListFilter) (domain.ListResult[*Order], error) {
	filter.Normalize()
	return s.repo.List(ctx, filter)
}

// Update edits a draft order. A change of planned start or quantity moves
// the contribution.
func (s *Service) Update(ctx context.Context, doc *Order) error {
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
			return apperror.NewConcurrentModification("manufacturing order", doc.ID.String())
		}
		if err := s.explode(ctx, doc); err != nil {
			return err
		}

		doc.Number = current.Number
		doc.State = current.State
		doc.CreatedAt = current.CreatedAt
		doc.CreatedBy = current.CreatedBy
		doc.UpdatedBy = security.GetUserID(ctx)
		doc.UpdatedAt = time.Now().UTC()

		previous := current.Snapshot()
		if err := s.repo.Update(ctx, doc); err != nil {
			return fmt.Errorf("update manufacturing order: %w", err)
		}

		next := doc.Snapshot()
		if previous.Equal(next) {
			return nil
		}
		evt := events.NewContributionsChanged(events.ManufacturingDateChanged, events.AggregateManufacturing, doc.ID, previous, next)
		return s.bus.Publish(ctx, evt)
	})
	if err != nil {
		return err
	}

	logger.Info(ctx, "manufacturing order updated", "id", doc.ID, "number", doc.Number)
	return nil
}

// Delete soft-deletes a draft or cancelled order.
func (s *Service) Delete(ctx context.Context, docID id.ID) error {
	err := s.txManager.RunInTransaction(ctx, func(ctx context.Context) error {
		doc, err := s.repo.GetForUpdate(ctx, docID)
		if err != nil {
			return err
		}
		if doc.State == StateDone {
			return apperror.NewInvalidState("manufacturing order", string(doc.State), "delete")
		}

		previous := doc.Snapshot()
		if err := s.repo.Delete(ctx, docID); err != nil {
			return fmt.Errorf("delete manufacturing order: %w", err)
		}
		if previous == nil {
			return nil
		}
		evt := events.NewContributionsChanged(events.ManufacturingDeleted, events.AggregateManufacturing, docID, previous, nil)
		return s.bus.Publish(ctx, evt)
	})
	if err != nil {
		return err
	}

	logger.Info(ctx, "manufacturing order deleted", "id", docID)
	return nil
}

// Confirm consumes the components and receives the finished product.
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
		doc.UpdatedBy = security.GetUserID(ctx)
		doc.UpdatedAt = time.Now().UTC()

		if err := s.stock.RecordMovements(ctx, doc.Movements(types.Day(doc.UpdatedAt))); err != nil {
			return fmt.Errorf("record movements: %w", err)
		}
		if err := s.repo.Update(ctx, doc); err != nil {
			return fmt.Errorf("update manufacturing order: %w", err)
		}

		evt := events.NewStockChanged(events.ManufacturingConfirmed, events.AggregateManufacturing, doc.ID, doc.ProductIDs())
		return s.bus.Publish(ctx, evt)
	})
	if err != nil {
		return nil, err
	}

	logger.Info(ctx, "manufacturing order confirmed", "id", doc.ID, "number", doc.Number)
	return doc, nil
}

// Cancel cancels a draft order and withdraws its contribution.
func (s *Service) Cancel(ctx context.Context, docID id.ID) (*Order, error) {
	var doc *Order
	err := s.txManager.RunInTransaction(ctx, func(ctx context.Context) error {
		var err error
		doc, err = s.repo.GetForUpdate(ctx, docID)
		if err != nil {
			return err
		}

		previous := doc.Snapshot()
		if err := doc.Cancel(); err != nil {
			return err
		}
		doc.UpdatedBy = security.GetUserID(ctx)
		doc.UpdatedAt = time.Now().UTC()

		if err := s.repo.Update(ctx, doc); err != nil {
			return fmt.Errorf("update manufacturing order: %w", err)
		}

		if previous == nil {
			return nil
		}
		evt := events.NewContributionsChanged(events.ManufacturingCancelled, events.AggregateManufacturing, doc.ID, previous, nil)
		return s.bus.Publish(ctx, evt)
	})
	if err != nil {
		return nil, err
	}

	logger.Info(ctx, "manufacturing order cancelled", "id", doc.ID, "number", doc.Number)
	return doc, nil
}
