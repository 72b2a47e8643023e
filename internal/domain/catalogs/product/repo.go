package product

import (
	"context"

	"stockforecast/internal/core/id"
	"stockforecast/internal/core/types"
	"stockforecast/internal/domain"
)

// Repository defines the interface for Product persistence.
type Repository interface {
	domain.CatalogRepository[*Product]

	// ListByTemplate returns all non-deleted variants of a template.
	ListByTemplate(ctx context.Context, templateID id.ID) ([]*Product, error)
}

// OnHandReader reads the on-hand quantity of a product.
type OnHandReader interface {
	OnHand(ctx context.Context, productID id.ID) (types.Quantity, error)
}

// PendingMovesReader sums draft transfer moves of a product.
type PendingMovesReader interface {
	PendingMoves(ctx context.Context, productID id.ID) (incoming, outgoing types.Quantity, err error)
}
