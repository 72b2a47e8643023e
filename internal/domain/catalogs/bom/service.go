package bom

import (
	"context"
	"fmt"

	"stockforecast/internal/core/apperror"
	"stockforecast/internal/core/id"
	"stockforecast/internal/core/tx"
	"stockforecast/internal/domain"
)

// Service provides business logic for BoMs.
type Service struct {
	*domain.CatalogService[*BoM]
	repo     Repository
	products ProductLookup
}

// NewService creates a new BoM service.
func NewService(repo Repository, txm tx.Manager, products ProductLookup) *Service {
	base := domain.NewCatalogService(domain.CatalogServiceConfig[*BoM]{
		Repo:       repo,
		TxManager:  txm,
		EntityName: "bom",
	})

	svc := &Service{CatalogService: base, repo: repo, products: products}

	base.Hooks().OnBeforeCreate(svc.prepare)
	base.Hooks().OnBeforeUpdate(svc.prepare)

	return svc
}

// prepare checks that every component exists. A template id is accepted
// when it is the template of some product.
func (s *Service) prepare(ctx context.Context, b *BoM) error {
	b.Normalize()
	for i, l := range b.Lines {
		if _, err := s.products.Template(ctx, l.ProductID); err != nil {
			if apperror.IsNotFound(err) {
				return apperror.NewValidation("component product not found").
					WithDetail("field", fmt.Sprintf("lines[%d].productId", i))
			}
			return err
		}
	}
	return nil
}

// ForTemplate returns the BoMs producing templateID.
func (s *Service) ForTemplate(ctx context.Context, templateID id.ID) ([]*BoM, error) {
	return s.repo.ListByTemplate(ctx, templateID)
}

// UsedIn returns the BoMs that consume productID.
func (s *Service) UsedIn(ctx context.Context, productID id.ID) ([]*BoM, error) {
	return s.repo.ListByComponent(ctx, productID)
}
