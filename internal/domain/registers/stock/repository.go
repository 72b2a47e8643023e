// Package stock provides the stock accumulation register: movements recorded
// by confirmed documents and one running balance per product.
package stock

import (
	"context"
	"time"

	"stockforecast/internal/core/id"
	"stockforecast/internal/core/types"
)

// RecordType is the movement direction.
type RecordType string

const (
	RecordTypeReceipt RecordType = "receipt"
	RecordTypeExpense RecordType = "expense"
)

// Movement is one register record.
type Movement struct {
	LineID          id.ID          `db:"line_id" json:"lineId"`
	RecorderID      id.ID          `db:"recorder_id" json:"recorderId"`
	RecorderType    string         `db:"recorder_type" json:"recorderType"`
	RecorderVersion int            `db:"recorder_version" json:"recorderVersion"`
	Period          time.Time      `db:"period" json:"period"`
	RecordType      RecordType     `db:"record_type" json:"recordType"`
	ProductID       id.ID          `db:"product_id" json:"productId"`
	Quantity        types.Quantity `db:"quantity" json:"quantity"`
	CreatedAt       time.Time      `db:"created_at" json:"createdAt"`
}

// Signed returns the quantity with expense negated.
func (m Movement) Signed() types.Quantity {
	if m.RecordType == RecordTypeExpense {
		return -m.Quantity
	}
	return m.Quantity
}

// Balance is the on-hand quantity of a product.
type Balance struct {
	ProductID      id.ID          `db:"product_id" json:"productId"`
	Quantity       types.Quantity `db:"quantity" json:"quantity"`
	LastMovementAt *time.Time     `db:"last_movement_at" json:"lastMovementAt,omitempty"`
	UpdatedAt      time.Time      `db:"updated_at" json:"updatedAt"`
}

// Repository defines operations for the stock register.
type Repository interface {
	// CreateMovements inserts movements and applies them to balances.
	CreateMovements(ctx context.Context, movements []Movement) error

	// GetMovementsByRecorder retrieves all movements for a document
	GetMovementsByRecorder(ctx context.Context, recorderID id.ID) ([]Movement, error)

	// GetBalance returns the balance of a product; zero when it never moved.
	GetBalance(ctx context.Context, productID id.ID) (Balance, error)

	// GetBalanceForUpdate returns the balance with a row lock.
	GetBalanceForUpdate(ctx context.Context, productID id.ID) (Balance, error)

	ListBalances(ctx context.Context, filter BalanceFilter) ([]Balance, error)

	// GetMovementHistory returns movements newest first.
	GetMovementHistory(ctx context.Context, filter MovementFilter) ([]Movement, error)
}

// BalanceFilter for filtering balance queries.
type BalanceFilter struct {
	ProductIDs  []id.ID
	ExcludeZero bool
}

// MovementFilter for filtering movement history.
type MovementFilter struct {
	ProductID  *id.ID
	RecorderID *id.ID
	RecordType *RecordType
	FromDate   *time.Time
	ToDate     *time.Time
	Limit      int
	Offset     int
}
