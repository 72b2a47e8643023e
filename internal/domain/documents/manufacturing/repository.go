package manufacturing

import (
	"context"
	"time"

	"stockforecast/internal/core/id"
	"stockforecast/internal/domain"
)

// Repository defines operations for manufacturing orders.
type Repository interface {
	Create(ctx context.Context, doc *Order) error
	GetByID(ctx context.Context, docID id.ID) (*Order, error)
	GetForUpdate(ctx context.Context, docID id.ID) (*Order, error)

	// Update saves the order and its components with a version check.
	Update(ctx context.Context, doc *Order) error

	Delete(ctx context.Context, docID id.ID) error
	List(ctx context.Context, filter ListFilter) (domain.ListResult[*Order], error)

	// PlannedQuantities sums ProductQty of non-cancelled orders for product
	// whose effective day falls in [from, to), grouped by order.
	PlannedQuantities(ctx context.Context, productID id.ID, from, to time.Time) ([]domain.OrderQuantity, error)
}

// ListFilter for filtering manufacturing orders.
type ListFilter struct {
	domain.ListFilter

	ProductID *id.ID
	State     *State
	DateFrom  *time.Time
	DateTo    *time.Time
}
