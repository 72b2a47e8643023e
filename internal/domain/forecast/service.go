package forecast

import (
	"context"
	"errors"
	"fmt"
	"time"

	"stockforecast/internal/core/apperror"
	"stockforecast/internal/core/id"
	"stockforecast/internal/core/tx"
	"stockforecast/internal/core/types"
	"stockforecast/internal/domain"
	"stockforecast/pkg/logger"
)

// MaxCalendarDays bounds the span of one calendar request.
const MaxCalendarDays = 366

// Service exposes report rows to readers.
type Service struct {
	repo       Repository
	maintainer *Maintainer
	history    HistoryReader
	txManager  tx.Manager
}

// NewService creates the report service.
func NewService(repo Repository, maintainer *Maintainer, history HistoryReader, txManager tx.Manager) *Service {
	return &Service{
		repo:       repo,
		maintainer: maintainer,
		history:    history,
		txManager:  txManager,
	}
}

// Get returns a row by id.
func (s *Service) Get(ctx context.Context, rowID id.ID) (*Row, error) {
	return s.repo.GetByID(ctx, rowID)
}

// List returns rows ordered by date, then product.
func (s *Service) List(ctx context.Context, filter Filter) (domain.ListResult[*Row], error) {
	filter.Normalize()
	return s.repo.List(ctx, filter)
}

// Calendar returns the rows of [from, to] grouped by day. Days without rows
// are omitted.
func (s *Service) Calendar(ctx context.Context, from, to time.Time, productIDs []id.ID) ([]CalendarDay, error) {
	from, to = types.Day(from), types.Day(to)
	if to.Before(from) {
		return nil, apperror.NewValidation("date range is inverted").WithDetail("field", "to")
	}
	if to.Sub(from) > MaxCalendarDays*24*time.Hour {
		return nil, apperror.NewValidation(fmt.Sprintf("date range exceeds %d days", MaxCalendarDays)).
			WithDetail("field", "to")
	}

	filter := Filter{
		ProductIDs: productIDs,
		DateFrom:   &from,
		DateTo:     &to,
		Limit:      domain.MaxListLimit,
	}
	filter.Normalize()

	var days []CalendarDay
	for {
		page, err := s.repo.List(ctx, filter)
		if err != nil {
			return nil, err
		}
		for _, row := range page.Items {
			if n := len(days); n > 0 && days[n-1].Date.Equal(row.Date) {
				days[n-1].Rows = append(days[n-1].Rows, row)
				continue
			}
			days = append(days, CalendarDay{Date: row.Date, Rows: []*Row{row}})
		}
		filter.Offset += len(page.Items)
		if len(page.Items) < filter.Limit || int64(filter.Offset) >= page.TotalCount {
			break
		}
	}
	if days == nil {
		days = []CalendarDay{}
	}
	return days, nil
}

// Recompute re-derives one row from the documents. The returned row is nil
// when it drained and was deleted.
func (s *Service) Recompute(ctx context.Context, rowID id.ID) (*Row, error) {
	var row *Row
	err := s.txManager.RunInTransaction(ctx, func(ctx context.Context) error {
		var err error
		row, err = s.maintainer.Recompute(ctx, rowID)
		return err
	})
	if err != nil {
		return nil, err
	}

	logger.Info(ctx, "forecast row recomputed", "row_id", rowID, "deleted", row == nil)
	return row, nil
}

// RecomputeRange recomputes every row dated within [from, to], one
// transaction per row. It returns the number of rows processed; failures
// are joined and do not stop the others.
func (s *Service) RecomputeRange(ctx context.Context, from, to time.Time) (int, error) {
	ids, err := s.repo.ListIDsInRange(ctx, types.Day(from), types.Day(to))
	if err != nil {
		return 0, fmt.Errorf("list rows: %w", err)
	}

	var errs []error
	done := 0
	for _, rowID := range ids {
		if err := ctx.Err(); err != nil {
			errs = append(errs, err)
			break
		}
		err := s.txManager.RunInTransaction(ctx, func(ctx context.Context) error {
			_, err := s.maintainer.Recompute(ctx, rowID)
			return err
		})
		switch {
		case err == nil:
			done++
		case apperror.IsNotFound(err):
			// Drained by a document operation meanwhile.
		default:
			errs = append(errs, fmt.Errorf("recompute %s: %w", rowID, err))
		}
	}

	logger.Info(ctx, "forecast range recomputed",
		"from", types.Day(from).Format(types.DateLayout),
		"to", types.Day(to).Format(types.DateLayout),
		"rows", done,
		"failed", len(errs))
	return done, errors.Join(errs...)
}

// History returns the change journal of a row, newest first. Rows that
// were deleted keep their history.
func (s *Service) History(ctx context.Context, rowID id.ID, limit int) ([]RowChange, error) {
	if limit <= 0 {
		limit = 50
	}
	if limit > domain.MaxListLimit {
		limit = domain.MaxListLimit
	}
	return s.history.History(ctx, rowID, limit)
}
