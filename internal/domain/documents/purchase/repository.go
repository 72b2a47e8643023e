package purchase

import (
	"context"

	"stockforecast/internal/core/id"
	"stockforecast/internal/domain"
)

// Repository defines operations for purchase orders.
type Repository interface {
	Create(ctx context.Context, doc *Order) error
	GetByID(ctx context.Context, docID id.ID) (*Order, error)
	GetForUpdate(ctx context.Context, docID id.ID) (*Order, error)

	// Update saves the header and lines with a version check.
	Update(ctx context.Context, doc *Order) error

	List(ctx context.Context, filter ListFilter) (domain.ListResult[*Order], error)
}

// ListFilter for filtering purchase orders.
type ListFilter struct {
	domain.ListFilter

	State     *State
	ProductID *id.ID
}
