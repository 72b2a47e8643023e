package forecast

import (
	"context"
	"fmt"
	"slices"
	"time"

	"stockforecast/internal/core/apperror"
	"stockforecast/internal/core/id"
	"stockforecast/internal/core/security"
	"stockforecast/internal/core/types"
	"stockforecast/internal/domain/events"
	"stockforecast/pkg/logger"
)

// CauseRecompute marks journal entries written by an explicit recompute.
const CauseRecompute = "forecast.recompute"

type causeKey struct{}

type cause struct {
	eventType string
	docID     id.ID
}

func withCause(ctx context.Context, eventType string, docID id.ID) context.Context {
	return context.WithValue(ctx, causeKey{}, cause{eventType: eventType, docID: docID})
}

func causeFrom(ctx context.Context) cause {
	c, _ := ctx.Value(causeKey{}).(cause)
	return c
}

// Maintainer keeps report rows in step with document lifecycle events.
// It runs inside the publisher's transaction; any error rolls the
// document operation back.
type Maintainer struct {
	repo      Repository
	agg       *Aggregator
	recorders []ChangeRecorder
}

// NewMaintainer creates a maintainer. Each recorder receives every row
// change in the same transaction.
func NewMaintainer(repo Repository, agg *Aggregator, recorders ...ChangeRecorder) *Maintainer {
	return &Maintainer{repo: repo, agg: agg, recorders: recorders}
}

// EventTypes implements events.Handler.
func (m *Maintainer) EventTypes() []string {
	return []string{
		events.TransferCreated,
		events.TransferDateChanged,
		events.TransferLinesChanged,
		events.TransferDeleted,
		events.TransferCancelled,
		events.TransferConfirmed,
		events.TransferReserved,
		events.TransferUnreserved,
		events.ManufacturingCreated,
		events.ManufacturingDateChanged,
		events.ManufacturingDeleted,
		events.ManufacturingCancelled,
		events.ManufacturingConfirmed,
		events.PurchaseConfirmed,
		events.SaleConfirmed,
	}
}

// Handle implements events.Handler.
func (m *Maintainer) Handle(ctx context.Context, evt events.Event) error {
	ctx = withCause(ctx, evt.EventType(), evt.AggregateID())

	switch e := evt.(type) {
	case *events.ContributionsChanged:
		return m.onContributionsChanged(ctx, e)
	case *events.StockChanged:
		return m.RefreshStock(ctx, e.ProductIDs)
	case *events.Reserved:
		return m.RefreshReserved(ctx, e.Reservations)
	default:
		return nil
	}
}

func (m *Maintainer) onContributionsChanged(ctx context.Context, e *events.ContributionsChanged) error {
	prev, cur := e.Previous, e.Current

	// Same day: one pass per row, so an edit never drains a row it refills.
	if prev != nil && cur != nil && prev.Day.Equal(cur.Day) {
		return m.apply(ctx, cur.Day, prev.Contributions, cur.Contributions)
	}

	if prev != nil {
		if err := m.RemoveOld(ctx, prev.Day, prev.Contributions); err != nil {
			return err
		}
	}
	if cur != nil {
		return m.Update(ctx, cur.Day, cur.Contributions)
	}
	return nil
}

// Update adds contributions to the rows of day, creating rows as needed.
func (m *Maintainer) Update(ctx context.Context, day time.Time, contributions []Contribution) error {
	return m.apply(ctx, day, nil, contributions)
}

// Remove subtracts contributions from the rows of day. Missing rows are
// skipped; drained rows are deleted.
func (m *Maintainer) Remove(ctx context.Context, day time.Time, contributions []Contribution) error {
	return m.apply(ctx, day, contributions, nil)
}

// RemoveOld subtracts contributions from a previous effective day.
func (m *Maintainer) RemoveOld(ctx context.Context, oldDay time.Time, contributions []Contribution) error {
	return m.Remove(ctx, oldDay, contributions)
}

type productDelta struct {
	removed []Contribution
	added   []Contribution
}

// groupByProduct splits contributions per product. Products come back
// sorted so concurrent transactions lock rows in the same order.
func groupByProduct(removed, added []Contribution) ([]id.ID, map[id.ID]*productDelta) {
	deltas := make(map[id.ID]*productDelta)
	get := func(p id.ID) *productDelta {
		d, ok := deltas[p]
		if !ok {
			d = &productDelta{}
			deltas[p] = d
		}
		return d
	}
	for _, c := range removed {
		d := get(c.ProductID)
		d.removed = append(d.removed, c)
	}
	for _, c := range added {
		d := get(c.ProductID)
		d.added = append(d.added, c)
	}

	products := make([]id.ID, 0, len(deltas))
	for p := range deltas {
		products = append(products, p)
	}
	slices.SortFunc(products, id.Compare)
	return products, deltas
}

func (m *Maintainer) apply(ctx context.Context, day time.Time, removed, added []Contribution) error {
	day = types.Day(day)
	products, deltas := groupByProduct(removed, added)

	for _, productID := range products {
		if err := m.applyProduct(ctx, productID, day, deltas[productID]); err != nil {
			return fmt.Errorf("forecast %s on %s: %w", productID, day.Format(types.DateLayout), err)
		}
	}
	return nil
}

func (m *Maintainer) applyProduct(ctx context.Context, productID id.ID, day time.Time, d *productDelta) error {
	row, err := m.repo.GetForUpdate(ctx, productID, day)
	if err != nil && !apperror.IsNotFound(err) {
		return err
	}

	if row == nil {
		// Nothing to subtract from a missing row.
		if len(d.added) == 0 {
			return nil
		}
		row = NewRow(productID, day)
		if err := m.agg.Snapshot(ctx, row); err != nil {
			return err
		}
		for _, c := range d.added {
			row.Add(c)
		}
		row.Recalculate()
		if row.IsDrained() {
			return nil
		}

		inserted, err := m.repo.Insert(ctx, row)
		if err != nil {
			return err
		}
		if inserted {
			logger.Debug(ctx, "forecast row created", "row_id", row.ID, "product_id", productID, "date", day)
			return m.record(ctx, ActionCreated, nil, row)
		}

		// Another transaction created the row first; apply onto theirs.
		row, err = m.repo.GetForUpdate(ctx, productID, day)
		if err != nil {
			return err
		}
	}

	before := row.Clone()
	for _, c := range d.removed {
		row.Subtract(c)
	}
	for _, c := range d.added {
		row.Add(c)
	}
	row.Recalculate()
	return m.save(ctx, before, row)
}

// save deletes a drained row or writes it back with a version check.
func (m *Maintainer) save(ctx context.Context, before, row *Row) error {
	if row.IsDrained() {
		if err := m.repo.Delete(ctx, row.ID); err != nil {
			return err
		}
		logger.Debug(ctx, "forecast row drained", "row_id", row.ID, "product_id", row.ProductID, "date", row.Date)
		return m.record(ctx, ActionDeleted, before, nil)
	}

	if len(Diff(before, row)) == 0 && before.OrderLines.Equal(row.OrderLines) {
		return nil
	}
	row.UpdatedAt = time.Now().UTC()
	if err := m.repo.Update(ctx, row); err != nil {
		return err
	}
	return m.record(ctx, ActionUpdated, before, row)
}

func (m *Maintainer) record(ctx context.Context, action Action, before, after *Row) error {
	if len(m.recorders) == 0 {
		return nil
	}

	subject := after
	if subject == nil {
		subject = before
	}
	c := causeFrom(ctx)
	change := RowChange{
		RowID:      subject.ID,
		ProductID:  subject.ProductID,
		Date:       subject.Date,
		Action:     action,
		Changes:    Diff(before, after),
		CauseEvent: c.eventType,
		CauseID:    c.docID,
		ChangedBy:  security.GetUserID(ctx),
		ChangedAt:  time.Now().UTC(),
	}
	for _, r := range m.recorders {
		if err := r.RecordChange(ctx, change); err != nil {
			return fmt.Errorf("record row change: %w", err)
		}
	}
	return nil
}

// RefreshStock re-derives the stock snapshots of every row of productIDs
// dated today or later. Document quantities are left alone: they were
// contributed when the document was created.
func (m *Maintainer) RefreshStock(ctx context.Context, productIDs []id.ID) error {
	ids := slices.Clone(productIDs)
	slices.SortFunc(ids, id.Compare)
	ids = slices.Compact(ids)
	if len(ids) == 0 {
		return nil
	}

	rows, err := m.repo.ListByProductsFrom(ctx, ids, types.Today())
	if err != nil {
		return fmt.Errorf("list rows to refresh: %w", err)
	}
	for _, row := range rows {
		before := row.Clone()
		if err := m.agg.RefreshStock(ctx, row); err != nil {
			return err
		}
		if err := m.save(ctx, before, row); err != nil {
			return err
		}
	}
	return nil
}

// RefreshReserved re-derives the reserved quantity of existing rows.
// Reservations never create rows.
func (m *Maintainer) RefreshReserved(ctx context.Context, reservations []events.Reservation) error {
	seen := make(map[events.Reservation]struct{}, len(reservations))
	for _, r := range reservations {
		r.Day = types.Day(r.Day)
		if _, ok := seen[r]; ok {
			continue
		}
		seen[r] = struct{}{}

		row, err := m.repo.GetForUpdate(ctx, r.ProductID, r.Day)
		if err != nil {
			if apperror.IsNotFound(err) {
				continue
			}
			return err
		}

		before := row.Clone()
		if row.ReservedQuantity, err = m.agg.ReservedQuantity(ctx, r.ProductID, r.Day); err != nil {
			return err
		}
		row.Recalculate()
		if err := m.save(ctx, before, row); err != nil {
			return err
		}
	}
	return nil
}

// Recompute re-derives every field of a row from the documents. It returns
// nil when the row drained and was deleted.
func (m *Maintainer) Recompute(ctx context.Context, rowID id.ID) (*Row, error) {
	ctx = withCause(ctx, CauseRecompute, rowID)

	row, err := m.repo.GetByIDForUpdate(ctx, rowID)
	if err != nil {
		return nil, err
	}
	before := row.Clone()
	if err := m.agg.Compute(ctx, row); err != nil {
		return nil, err
	}
	if err := m.save(ctx, before, row); err != nil {
		return nil, err
	}
	if row.IsDrained() {
		return nil, nil
	}
	return row, nil
}

var _ events.Handler = (*Maintainer)(nil)
