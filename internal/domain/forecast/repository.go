package forecast

import (
	"context"
	"time"

	"stockforecast/internal/core/id"
	"stockforecast/internal/domain"
)

// Repository persists report rows. (product_id, date) is unique.
type Repository interface {
	GetByID(ctx context.Context, rowID id.ID) (*Row, error)

	// GetByIDForUpdate retrieves the row with a row lock.
	GetByIDForUpdate(ctx context.Context, rowID id.ID) (*Row, error)

	// GetForUpdate locks the row of (productID, day). NOT_FOUND when absent.
	GetForUpdate(ctx context.Context, productID id.ID, day time.Time) (*Row, error)

	// Insert creates the row unless (product, date) already exists, in which
	// case it returns false and leaves the store untouched.
	Insert(ctx context.Context, row *Row) (bool, error)

	// Update saves the row when row.Version matches the stored one and
	// increments row.Version. A mismatch is CONCURRENT_MODIFICATION.
	Update(ctx context.Context, row *Row) error

	Delete(ctx context.Context, rowID id.ID) error

	List(ctx context.Context, filter Filter) (domain.ListResult[*Row], error)

	// ListByProductsFrom locks the rows of productIDs dated from or later.
	ListByProductsFrom(ctx context.Context, productIDs []id.ID, from time.Time) ([]*Row, error)

	// ListIDsInRange returns ids of rows with from <= date <= to.
	ListIDsInRange(ctx context.Context, from, to time.Time) ([]id.ID, error)
}

// ChangeRecorder journals row mutations.
type ChangeRecorder interface {
	RecordChange(ctx context.Context, change RowChange) error
}

// HistoryReader reads the journal of a row, newest first.
type HistoryReader interface {
	History(ctx context.Context, rowID id.ID, limit int) ([]RowChange, error)
}
