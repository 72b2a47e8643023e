package memory

import (
	"cmp"
	"context"
	"slices"
	"strings"
	"time"

	"stockforecast/internal/core/apperror"
	"stockforecast/internal/core/id"
	"stockforecast/internal/core/types"
	"stockforecast/internal/domain"
	"stockforecast/internal/domain/documents/manufacturing"
	"stockforecast/internal/domain/documents/purchase"
	"stockforecast/internal/domain/documents/sale"
	"stockforecast/internal/domain/documents/transfer"
)

// inWindow reports from <= t < to.
func inWindow(t, from, to time.Time) bool {
	return !t.Before(from) && t.Before(to)
}

// inDays reports whether day lies within the optional inclusive bounds.
func inDays(day time.Time, from, to *time.Time) bool {
	if from != nil && day.Before(types.Day(*from)) {
		return false
	}
	if to != nil && day.After(types.Day(*to)) {
		return false
	}
	return true
}

func matchDocument(f domain.ListFilter, docID id.ID, deleted bool, number string) bool {
	if deleted && !f.IncludeDeleted {
		return false
	}
	if len(f.IDs) > 0 && !slices.Contains(f.IDs, docID) {
		return false
	}
	if f.Search != "" && !strings.Contains(strings.ToLower(number), strings.ToLower(f.Search)) {
		return false
	}
	return true
}

// byCreated orders newest first.
func byCreated(aAt, bAt time.Time, aID, bID id.ID) int {
	return cmp.Or(bAt.Compare(aAt), id.Compare(bID, aID))
}

func sumGrouped(totals map[id.ID]types.Quantity, lines map[id.ID]int) []domain.OrderQuantity {
	out := make([]domain.OrderQuantity, 0, len(totals))
	for orderID, q := range totals {
		out = append(out, domain.OrderQuantity{OrderID: orderID, Quantity: q, Lines: lines[orderID]})
	}
	slices.SortFunc(out, func(a, b domain.OrderQuantity) int { return id.Compare(a.OrderID, b.OrderID) })
	return out
}

// TransferRepo implements transfer.Repository.
type TransferRepo struct{ s *Store }

// NewTransferRepo creates a transfer repository.
func NewTransferRepo(s *Store) *TransferRepo { return &TransferRepo{s: s} }

func copyLink(l *transfer.OrderLink) *transfer.OrderLink {
	if l == nil {
		return nil
	}
	c := *l
	return &c
}

func copyTransfer(t *transfer.Transfer) *transfer.Transfer {
	c := *t
	if t.ScheduledDate != nil {
		d := *t.ScheduledDate
		c.ScheduledDate = &d
	}
	c.Moves = make([]transfer.Move, len(t.Moves))
	for i, m := range t.Moves {
		if m.Deadline != nil {
			d := *m.Deadline
			m.Deadline = &d
		}
		m.SaleLine = copyLink(m.SaleLine)
		m.PurchaseLine = copyLink(m.PurchaseLine)
		c.Moves[i] = m
	}
	return &c
}

func (r *TransferRepo) Create(ctx context.Context, doc *transfer.Transfer) error {
	return r.s.do(ctx, func(t *tables) error {
		if _, ok := t.transfers[doc.ID]; ok {
			return apperror.NewConflict("transfer already exists")
		}
		t.transfers[doc.ID] = copyTransfer(doc)
		return nil
	})
}

func (r *TransferRepo) GetByID(ctx context.Context, docID id.ID) (*transfer.Transfer, error) {
	var out *transfer.Transfer
	err := r.s.do(ctx, func(t *tables) error {
		doc, ok := t.transfers[docID]
		if !ok {
			return apperror.NewNotFound("transfer", docID.String())
		}
		out = copyTransfer(doc)
		return nil
	})
	return out, err
}

func (r *TransferRepo) GetForUpdate(ctx context.Context, docID id.ID) (*transfer.Transfer, error) {
	return r.GetByID(ctx, docID)
}

func (r *TransferRepo) Update(ctx context.Context, doc *transfer.Transfer) error {
	return r.s.do(ctx, func(t *tables) error {
		current, ok := t.transfers[doc.ID]
		if !ok {
			return apperror.NewNotFound("transfer", doc.ID.String())
		}
		if current.Version != doc.Version {
			return apperror.NewConcurrentModification("transfer", doc.ID.String())
		}
		doc.Version++
		t.transfers[doc.ID] = copyTransfer(doc)
		return nil
	})
}

func (r *TransferRepo) Delete(ctx context.Context, docID id.ID) error {
	return r.s.do(ctx, func(t *tables) error {
		doc, ok := t.transfers[docID]
		if !ok {
			return apperror.NewNotFound("transfer", docID.String())
		}
		c := copyTransfer(doc)
		c.DeletionMark = true
		c.Version++
		c.UpdatedAt = time.Now().UTC()
		t.transfers[docID] = c
		return nil
	})
}

func linksOrder(m transfer.Move, orderID id.ID) bool {
	return (m.SaleLine != nil && m.SaleLine.OrderID == orderID) ||
		(m.PurchaseLine != nil && m.PurchaseLine.OrderID == orderID)
}

func (r *TransferRepo) List(ctx context.Context, f transfer.ListFilter) (domain.ListResult[*transfer.Transfer], error) {
	var res domain.ListResult[*transfer.Transfer]
	err := r.s.do(ctx, func(t *tables) error {
		items := make([]*transfer.Transfer, 0)
		for _, doc := range t.transfers {
			if !matchDocument(f.ListFilter, doc.ID, doc.DeletionMark, doc.Number) {
				continue
			}
			if f.Kind != nil && doc.Kind != *f.Kind {
				continue
			}
			if f.State != nil && doc.State != *f.State {
				continue
			}
			if f.ProductID != nil && !slices.ContainsFunc(doc.Moves, func(m transfer.Move) bool { return m.ProductID == *f.ProductID }) {
				continue
			}
			if f.OrderID != nil && !slices.ContainsFunc(doc.Moves, func(m transfer.Move) bool { return linksOrder(m, *f.OrderID) }) {
				continue
			}
			if !inDays(doc.EffectiveDay(), f.DateFrom, f.DateTo) {
				continue
			}
			items = append(items, copyTransfer(doc))
		}
		slices.SortFunc(items, func(a, b *transfer.Transfer) int { return byCreated(a.CreatedAt, b.CreatedAt, a.ID, b.ID) })
		res = domain.ListResult[*transfer.Transfer]{
			Items:      page(items, f.Limit, f.Offset),
			TotalCount: int64(len(items)),
			Limit:      f.Limit,
			Offset:     f.Offset,
		}
		return nil
	})
	return res, err
}

func (r *TransferRepo) ListByOrder(ctx context.Context, orderID id.ID, kind transfer.Kind) ([]*transfer.Transfer, error) {
	var out []*transfer.Transfer
	err := r.s.do(ctx, func(t *tables) error {
		for _, doc := range t.transfers {
			if doc.DeletionMark || doc.Kind != kind {
				continue
			}
			if slices.ContainsFunc(doc.Moves, func(m transfer.Move) bool { return linksOrder(m, orderID) }) {
				out = append(out, copyTransfer(doc))
			}
		}
		slices.SortFunc(out, func(a, b *transfer.Transfer) int {
			return cmp.Or(a.CreatedAt.Compare(b.CreatedAt), id.Compare(a.ID, b.ID))
		})
		return nil
	})
	return out, err
}

func (r *TransferRepo) LinkedQuantities(ctx context.Context, productID id.ID, kind transfer.Kind, from, to time.Time) ([]domain.OrderQuantity, error) {
	var out []domain.OrderQuantity
	err := r.s.do(ctx, func(t *tables) error {
		totals := make(map[id.ID]types.Quantity)
		lines := make(map[id.ID]int)
		for _, doc := range t.transfers {
			if doc.DeletionMark || doc.Kind != kind || doc.State == transfer.StateCancelled {
				continue
			}
			if !inWindow(doc.EffectiveDay(), from, to) {
				continue
			}
			for _, m := range doc.Moves {
				if m.ProductID != productID || m.State == transfer.MoveCancelled {
					continue
				}
				link := m.SaleLine
				if kind == transfer.KindIncoming {
					link = m.PurchaseLine
				}
				if link != nil {
					totals[link.OrderID] += link.Quantity
					lines[link.OrderID]++
				}
			}
		}
		out = sumGrouped(totals, lines)
		return nil
	})
	return out, err
}

func (r *TransferRepo) AssignedQuantity(ctx context.Context, productID id.ID, from, to time.Time) (types.Quantity, error) {
	var total types.Quantity
	err := r.s.do(ctx, func(t *tables) error {
		for _, doc := range t.transfers {
			if doc.DeletionMark || doc.State == transfer.StateCancelled {
				continue
			}
			for _, m := range doc.Moves {
				if m.ProductID == productID && m.State == transfer.MoveAssigned &&
					m.Deadline != nil && inWindow(*m.Deadline, from, to) {
					total += m.Quantity
				}
			}
		}
		return nil
	})
	return total, err
}

func (r *TransferRepo) PendingMoves(ctx context.Context, productID id.ID) (incoming, outgoing types.Quantity, err error) {
	err = r.s.do(ctx, func(t *tables) error {
		for _, doc := range t.transfers {
			if doc.DeletionMark || doc.State != transfer.StateDraft {
				continue
			}
			for _, m := range doc.Moves {
				if m.ProductID != productID {
					continue
				}
				if m.State != transfer.MoveDraft && m.State != transfer.MoveAssigned {
					continue
				}
				if doc.Kind == transfer.KindIncoming {
					incoming += m.Quantity
				} else {
					outgoing += m.Quantity
				}
			}
		}
		return nil
	})
	return incoming, outgoing, err
}

// ManufacturingRepo implements manufacturing.Repository.
type ManufacturingRepo struct{ s *Store }

// NewManufacturingRepo creates a manufacturing order repository.
func NewManufacturingRepo(s *Store) *ManufacturingRepo { return &ManufacturingRepo{s: s} }

func copyManufacturing(o *manufacturing.Order) *manufacturing.Order {
	c := *o
	if o.PlannedStart != nil {
		d := *o.PlannedStart
		c.PlannedStart = &d
	}
	if o.BomID != nil {
		b := *o.BomID
		c.BomID = &b
	}
	c.Components = slices.Clone(o.Components)
	return &c
}

func (r *ManufacturingRepo) Create(ctx context.Context, doc *manufacturing.Order) error {
	return r.s.do(ctx, func(t *tables) error {
		if _, ok := t.manufacturing[doc.ID]; ok {
			return apperror.NewConflict("manufacturing order already exists")
		}
		t.manufacturing[doc.ID] = copyManufacturing(doc)
		return nil
	})
}

func (r *ManufacturingRepo) GetByID(ctx context.Context, docID id.ID) (*manufacturing.Order, error) {
	var out *manufacturing.Order
	err := r.s.do(ctx, func(t *tables) error {
		doc, ok := t.manufacturing[docID]
		if !ok {
			return apperror.NewNotFound("manufacturing order", docID.String())
		}
		out = copyManufacturing(doc)
		return nil
	})
	return out, err
}

func (r *ManufacturingRepo) GetForUpdate(ctx context.Context, docID id.ID) (*manufacturing.Order, error) {
	return r.GetByID(ctx, docID)
}

func (r *ManufacturingRepo) Update(ctx context.Context, doc *manufacturing.Order) error {
	return r.s.do(ctx, func(t *tables) error {
		current, ok := t.manufacturing[doc.ID]
		if !ok {
			return apperror.NewNotFound("manufacturing order", doc.ID.String())
		}
		if current.Version != doc.Version {
			return apperror.NewConcurrentModification("manufacturing order", doc.ID.String())
		}
		doc.Version++
		t.manufacturing[doc.ID] = copyManufacturing(doc)
		return nil
	})
}

func (r *ManufacturingRepo) Delete(ctx context.Context, docID id.ID) error {
	return r.s.do(ctx, func(t *tables) error {
		doc, ok := t.manufacturing[docID]
		if !ok {
			return apperror.NewNotFound("manufacturing order", docID.String())
		}
		c := copyManufacturing(doc)
		c.DeletionMark = true
		c.Version++
		c.UpdatedAt = time.Now().UTC()
		t.manufacturing[docID] = c
		return nil
	})
}

func (r *ManufacturingRepo) List(ctx context.Context, f manufacturing.ListFilter) (domain.ListResult[*manufacturing.Order], error) {
	var res domain.ListResult[*manufacturing.Order]
	err := r.s.do(ctx, func(t *tables) error {
		items := make([]*manufacturing.Order, 0)
		for _, doc := range t.manufacturing {
			if !matchDocument(f.ListFilter, doc.ID, doc.DeletionMark, doc.Number) {
				continue
			}
			if f.ProductID != nil && doc.ProductID != *f.ProductID {
				continue
			}
			if f.State != nil && doc.State != *f.State {
				continue
			}
			if !inDays(doc.EffectiveDay(), f.DateFrom, f.DateTo) {
				continue
			}
			items = append(items, copyManufacturing(doc))
		}
		slices.SortFunc(items, func(a, b *manufacturing.Order) int { return byCreated(a.CreatedAt, b.CreatedAt, a.ID, b.ID) })
		res = domain.ListResult[*manufacturing.Order]{
			Items:      page(items, f.Limit, f.Offset),
			TotalCount: int64(len(items)),
			Limit:      f.Limit,
			Offset:     f.Offset,
		}
		return nil
	})
	return res, err
}

func (r *ManufacturingRepo) PlannedQuantities(ctx context.Context, productID id.ID, from, to time.Time) ([]domain.OrderQuantity, error) {
	var out []domain.OrderQuantity
	err := r.s.do(ctx, func(t *tables) error {
		totals := make(map[id.ID]types.Quantity)
		lines := make(map[id.ID]int)
		for _, doc := range t.manufacturing {
			if doc.DeletionMark || doc.State == manufacturing.StateCancelled || doc.ProductID != productID {
				continue
			}
			if inWindow(doc.EffectiveDay(), from, to) {
				totals[doc.ID] += doc.ProductQty
				lines[doc.ID]++
			}
		}
		out = sumGrouped(totals, lines)
		return nil
	})
	return out, err
}

// PurchaseRepo implements purchase.Repository.
type PurchaseRepo struct{ s *Store }

// NewPurchaseRepo creates a purchase order repository.
func NewPurchaseRepo(s *Store) *PurchaseRepo { return &PurchaseRepo{s: s} }

func copyPurchase(o *purchase.Order) *purchase.Order {
	c := *o
	if o.ExpectedDate != nil {
		d := *o.ExpectedDate
		c.ExpectedDate = &d
	}
	c.Lines = slices.Clone(o.Lines)
	return &c
}

func (r *PurchaseRepo) Create(ctx context.Context, doc *purchase.Order) error {
	return r.s.do(ctx, func(t *tables) error {
		if _, ok := t.purchases[doc.ID]; ok {
			return apperror.NewConflict("purchase order already exists")
		}
		t.purchases[doc.ID] = copyPurchase(doc)
		return nil
	})
}

func (r *PurchaseRepo) GetByID(ctx context.Context, docID id.ID) (*purchase.Order, error) {
	var out *purchase.Order
	err := r.s.do(ctx, func(t *tables) error {
		doc, ok := t.purchases[docID]
		if !ok {
			return apperror.NewNotFound("purchase order", docID.String())
		}
		out = copyPurchase(doc)
		return nil
	})
	return out, err
}

func (r *PurchaseRepo) GetForUpdate(ctx context.Context, docID id.ID) (*purchase.Order, error) {
	return r.GetByID(ctx, docID)
}

func (r *PurchaseRepo) Update(ctx context.Context, doc *purchase.Order) error {
	return r.s.do(ctx, func(t *tables) error {
		current, ok := t.purchases[doc.ID]
		if !ok {
			return apperror.NewNotFound("purchase order", doc.ID.String())
		}
		if current.Version != doc.Version {
			return apperror.NewConcurrentModification("purchase order", doc.ID.String())
		}
		doc.Version++
		t.purchases[doc.ID] = copyPurchase(doc)
		return nil
	})
}

func (r *PurchaseRepo) List(ctx context.Context, f purchase.ListFilter) (domain.ListResult[*purchase.Order], error) {
	var res domain.ListResult[*purchase.Order]
	err := r.s.do(ctx, func(t *tables) error {
		items := make([]*purchase.Order, 0)
		for _, doc := range t.purchases {
			if !matchDocument(f.ListFilter, doc.ID, doc.DeletionMark, doc.Number) {
				continue
			}
			if f.State != nil && doc.State != *f.State {
				continue
			}
			if f.ProductID != nil && !slices.ContainsFunc(doc.Lines, func(l purchase.Line) bool { return l.ProductID == *f.ProductID }) {
				continue
			}
			items = append(items, copyPurchase(doc))
		}
		slices.SortFunc(items, func(a, b *purchase.Order) int { return byCreated(a.CreatedAt, b.CreatedAt, a.ID, b.ID) })
		res = domain.ListResult[*purchase.Order]{
			Items:      page(items, f.Limit, f.Offset),
			TotalCount: int64(len(items)),
			Limit:      f.Limit,
			Offset:     f.Offset,
		}
		return nil
	})
	return res, err
}

// SaleRepo implements sale.Repository.
type SaleRepo struct{ s *Store }

// NewSaleRepo creates a sale order repository.
func NewSaleRepo(s *Store) *SaleRepo { return &SaleRepo{s: s} }

func copySale(o *sale.Order) *sale.Order {
	c := *o
	if o.CommitmentDate != nil {
		d := *o.CommitmentDate
		c.CommitmentDate = &d
	}
	c.Lines = slices.Clone(o.Lines)
	return &c
}

func (r *SaleRepo) Create(ctx context.Context, doc *sale.Order) error {
	return r.s.do(ctx, func(t *tables) error {
		if _, ok := t.sales[doc.ID]; ok {
			return apperror.NewConflict("sale order already exists")
		}
		t.sales[doc.ID] = copySale(doc)
		return nil
	})
}

func (r *SaleRepo) GetByID(ctx context.Context, docID id.ID) (*sale.Order, error) {
	var out *sale.Order
	err := r.s.do(ctx, func(t *tables) error {
		doc, ok := t.sales[docID]
		if !ok {
			return apperror.NewNotFound("sale order", docID.String())
		}
		out = copySale(doc)
		return nil
	})
	return out, err
}

func (r *SaleRepo) GetForUpdate(ctx context.Context, docID id.ID) (*sale.Order, error) {
	return r.GetByID(ctx, docID)
}

func (r *SaleRepo) Update(ctx context.Context, doc *sale.Order) error {
	return r.s.do(ctx, func(t *tables) error {
		current, ok := t.sales[doc.ID]
		if !ok {
			return apperror.NewNotFound("sale order", doc.ID.String())
		}
		if current.Version != doc.Version {
			return apperror.NewConcurrentModification("sale order", doc.ID.String())
		}
		doc.Version++
		t.sales[doc.ID] = copySale(doc)
		return nil
	})
}

func (r *SaleRepo) List(ctx context.Context, f sale.ListFilter) (domain.ListResult[*sale.Order], error) {
	var res domain.ListResult[*sale.Order]
	err := r.s.do(ctx, func(t *tables) error {
		items := make([]*sale.Order, 0)
		for _, doc := range t.sales {
			if !matchDocument(f.ListFilter, doc.ID, doc.DeletionMark, doc.Number) {
				continue
			}
			if f.State != nil && doc.State != *f.State {
				continue
			}
			if f.ProductID != nil && !slices.ContainsFunc(doc.Lines, func(l sale.Line) bool { return l.ProductID == *f.ProductID }) {
				continue
			}
			items = append(items, copySale(doc))
		}
		slices.SortFunc(items, func(a, b *sale.Order) int { return byCreated(a.CreatedAt, b.CreatedAt, a.ID, b.ID) })
		res = domain.ListResult[*sale.Order]{
			Items:      page(items, f.Limit, f.Offset),
			TotalCount: int64(len(items)),
			Limit:      f.Limit,
			Offset:     f.Offset,
		}
		return nil
	})
	return res, err
}

var (
	_ transfer.Repository      = (*TransferRepo)(nil)
	_ manufacturing.Repository = (*ManufacturingRepo)(nil)
	_ purchase.Repository      = (*PurchaseRepo)(nil)
	_ sale.Repository          = (*SaleRepo)(nil)
)
