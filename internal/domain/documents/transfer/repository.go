package transfer

import (
	"context"
	"time"

	"stockforecast/internal/core/id"
	"stockforecast/internal/core/types"
	"stockforecast/internal/domain"
)

// Repository defines operations for transfer documents. Moves are loaded
// and saved together with the header.
type Repository interface {
	Create(ctx context.Context, doc *Transfer) error
	GetByID(ctx context.Context, docID id.ID) (*Transfer, error)

	// GetForUpdate retrieves the transfer with a row lock.
	GetForUpdate(ctx context.Context, docID id.ID) (*Transfer, error)

	// Update saves header and moves; fails with CONCURRENT_MODIFICATION
	// when doc.Version is stale. Increments doc.Version on success.
	Update(ctx context.Context, doc *Transfer) error

	// Delete sets the deletion mark.
	Delete(ctx context.Context, docID id.ID) error

	List(ctx context.Context, filter ListFilter) (domain.ListResult[*Transfer], error)

	// ListByOrder returns non-deleted transfers with a move linked to orderID.
	ListByOrder(ctx context.Context, orderID id.ID, kind Kind) ([]*Transfer, error)

	QueryRepository
}

// QueryRepository holds the aggregate queries consumed by the forecast.
// Day windows are half-open [from, to) over the transfer's effective date.
type QueryRepository interface {
	// LinkedQuantities sums linked order quantities of product moves on
	// non-cancelled transfers of kind, grouped by order.
	LinkedQuantities(ctx context.Context, productID id.ID, kind Kind, from, to time.Time) ([]domain.OrderQuantity, error)

	// AssignedQuantity sums assigned move quantities with deadline in window.
	AssignedQuantity(ctx context.Context, productID id.ID, from, to time.Time) (types.Quantity, error)

	// PendingMoves sums draft and assigned move quantities on draft transfers.
	PendingMoves(ctx context.Context, productID id.ID) (incoming, outgoing types.Quantity, err error)
}

// ListFilter for filtering transfers.
type ListFilter struct {
	domain.ListFilter

	Kind      *Kind
	State     *State
	ProductID *id.ID
	OrderID   *id.ID
	DateFrom  *time.Time
	DateTo    *time.Time
}
