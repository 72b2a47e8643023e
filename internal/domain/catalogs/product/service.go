package product

import (
	"context"
	"fmt"

	"stockforecast/internal/core/apperror"
	"stockforecast/internal/core/id"
	"stockforecast/internal/core/tx"
	"stockforecast/internal/domain"
)

// Service provides business logic for the Product catalog.
// Uses composition with domain.CatalogService for common CRUD operations.
type Service struct {
	*domain.CatalogService[*Product]
	repo    Repository
	onHand  OnHandReader
	pending PendingMovesReader
}

// NewService creates a new Product service.
func NewService(repo Repository, txm tx.Manager, onHand OnHandReader, pending PendingMovesReader) *Service {
	base := domain.NewCatalogService(domain.CatalogServiceConfig[*Product]{
		Repo:       repo,
		TxManager:  txm,
		EntityName: "product",
	})

	svc := &Service{
		CatalogService: base,
		repo:           repo,
		onHand:         onHand,
		pending:        pending,
	}

	base.Hooks().OnBeforeCreate(svc.prepareForCreate)
	base.Hooks().OnBeforeUpdate(svc.prepareForUpdate)

	return svc
}

// prepareForCreate defaults the template and enforces unique codes.
func (s *Service) prepareForCreate(ctx context.Context, p *Product) error {
	if id.IsNil(p.TemplateID) {
		p.TemplateID = p.ID
	}
	return s.checkCodeUnique(ctx, p)
}

func (s *Service) prepareForUpdate(ctx context.Context, p *Product) error {
	if id.IsNil(p.TemplateID) {
		p.TemplateID = p.ID
	}
	return s.checkCodeUnique(ctx, p)
}

func (s *Service) checkCodeUnique(ctx context.Context, p *Product) error {
	existing, err := s.repo.GetByCode(ctx, p.Code)
	if err != nil {
		if apperror.IsNotFound(err) {
			return nil
		}
		return fmt.Errorf("check product code: %w", err)
	}
	if existing.ID != p.ID {
		return apperror.NewDuplicate("product", "code", p.Code)
	}
	return nil
}

// Template returns the template ID of a product.
func (s *Service) Template(ctx context.Context, productID id.ID) (id.ID, error) {
	p, err := s.GetByID(ctx, productID)
	if err != nil {
		return id.Nil(), err
	}
	return p.TemplateID, nil
}

// Variants returns the products sharing templateID.
func (s *Service) Variants(ctx context.Context, templateID id.ID) ([]*Product, error) {
	return s.repo.ListByTemplate(ctx, templateID)
}

// Quantities returns on-hand and virtual-available figures for a product.
func (s *Service) Quantities(ctx context.Context, productID id.ID) (Availability, error) {
	if _, err := s.GetByID(ctx, productID); err != nil {
		return Availability{}, err
	}

	onHand, err := s.onHand.OnHand(ctx, productID)
	if err != nil {
		return Availability{}, fmt.Errorf("on hand: %w", err)
	}
	in, out, err := s.pending.PendingMoves(ctx, productID)
	if err != nil {
		return Availability{}, fmt.Errorf("pending moves: %w", err)
	}

	return Availability{
		ProductID:        productID,
		OnHand:           onHand,
		Incoming:         in,
		Outgoing:         out,
		VirtualAvailable: onHand + in - out,
	}, nil
}
