package bom

import (
	"context"

	"stockforecast/internal/core/id"
	"stockforecast/internal/domain"
)

// Repository defines the interface for BoM persistence. Lines are loaded
// and saved together with the header.
type Repository interface {
	domain.CatalogRepository[*BoM]

	// ListByTemplate returns non-deleted BoMs producing templateID.
	ListByTemplate(ctx context.Context, templateID id.ID) ([]*BoM, error)

	// ListByComponent returns non-deleted BoMs having productID as a line.
	ListByComponent(ctx context.Context, productID id.ID) ([]*BoM, error)
}

// ProductLookup checks referenced products.
type ProductLookup interface {
	Template(ctx context.Context, productID id.ID) (id.ID, error)
}
