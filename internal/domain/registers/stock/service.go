package stock

import (
	"context"
	"fmt"
	"time"

	"stockforecast/internal/core/apperror"
	"stockforecast/internal/core/id"
	"stockforecast/internal/core/types"
	"stockforecast/pkg/logger"
)

// Service provides business operations for the stock register.
// Transactions are managed by the caller (document confirmation).
type Service struct {
	repo Repository
}

// NewService creates a new stock register service.
func NewService(repo Repository) *Service {
	return &Service{
		repo: repo,
	}
}

// Recorder identifies the document that records movements.
type Recorder struct {
	ID      id.ID
	Type    string
	Version int
	Period  time.Time
}

// NewMovement builds a movement for recorder.
func (r Recorder) NewMovement(recordType RecordType, productID id.ID, qty types.Quantity) Movement {
	return Movement{
		LineID:          id.New(),
		RecorderID:      r.ID,
		RecorderType:    r.Type,
		RecorderVersion: r.Version,
		Period:          r.Period,
		RecordType:      recordType,
		ProductID:       productID,
		Quantity:        qty,
		CreatedAt:       time.Now().UTC(),
	}
}

// RecordMovements records stock movements of a confirmed document.
// Must be called within the document's transaction.
func (s *Service) RecordMovements(ctx context.Context, movements []Movement) error {
	if len(movements) == 0 {
		return nil
	}

	for i, m := range movements {
		if !m.Quantity.IsPositive() {
			return apperror.NewValidation(fmt.Sprintf("movement %d: quantity must be positive", i))
		}
		if id.IsNil(m.RecorderID) {
			return apperror.NewValidation(fmt.Sprintf("movement %d: recorder_id is required", i))
		}
		if m.RecordType != RecordTypeReceipt && m.RecordType != RecordTypeExpense {
			return apperror.NewValidation(fmt.Sprintf("movement %d: invalid record type %q", i, m.RecordType))
		}
	}

	if err := s.repo.CreateMovements(ctx, movements); err != nil {
		return fmt.Errorf("create movements: %w", err)
	}

	logger.Info(ctx, "recorded stock movements",
		"count", len(movements),
		"recorder_id", movements[0].RecorderID,
		"recorder_type", movements[0].RecorderType,
	)

	return nil
}

// OnHand returns the current balance of a product.
func (s *Service) OnHand(ctx context.Context, productID id.ID) (types.Quantity, error) {
	b, err := s.repo.GetBalance(ctx, productID)
	if err != nil {
		return 0, fmt.Errorf("get balance: %w", err)
	}
	return b.Quantity, nil
}

// Balances lists product balances.
func (s *Service) Balances(ctx context.Context, filter BalanceFilter) ([]Balance, error) {
	return s.repo.ListBalances(ctx, filter)
}

// MovementHistory lists movements.
func (s *Service) MovementHistory(ctx context.Context, filter MovementFilter) ([]Movement, error) {
	if filter.Limit <= 0 || filter.Limit > 1000 {
		filter.Limit = 100
	}
	return s.repo.GetMovementHistory(ctx, filter)
}
