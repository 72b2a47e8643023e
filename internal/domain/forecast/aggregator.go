package forecast

import (
	"context"
	"fmt"
	"time"

	"stockforecast/internal/core/id"
	"stockforecast/internal/core/types"
	"stockforecast/internal/domain"
	"stockforecast/internal/domain/catalogs/bom"
	"stockforecast/internal/domain/catalogs/product"
	"stockforecast/internal/domain/documents/transfer"
	"stockforecast/internal/domain/events"
)

// ManufacturingQueries sums planned production.
type ManufacturingQueries interface {
	PlannedQuantities(ctx context.Context, productID id.ID, from, to time.Time) ([]domain.OrderQuantity, error)
}

// StockReader reads on-hand balances.
type StockReader interface {
	OnHand(ctx context.Context, productID id.ID) (types.Quantity, error)
}

// ProductCatalog resolves templates, variants and availability.
type ProductCatalog interface {
	Template(ctx context.Context, productID id.ID) (id.ID, error)
	Variants(ctx context.Context, templateID id.ID) ([]*product.Product, error)
	Quantities(ctx context.Context, productID id.ID) (product.Availability, error)
}

// BomCatalog finds BoMs by produced template or by component.
type BomCatalog interface {
	ForTemplate(ctx context.Context, templateID id.ID) ([]*bom.BoM, error)
	UsedIn(ctx context.Context, productID id.ID) ([]*bom.BoM, error)
}

// Aggregator re-derives row fields from the documents. Every function runs
// a fresh query; none of them reads the stored row.
type Aggregator struct {
	transfers     transfer.QueryRepository
	manufacturing ManufacturingQueries
	stock         StockReader
	products      ProductCatalog
	boms          BomCatalog
}

// NewAggregator creates an aggregator over the given sources.
func NewAggregator(
	transfers transfer.QueryRepository,
	manufacturing ManufacturingQueries,
	stock StockReader,
	products ProductCatalog,
	boms BomCatalog,
) *Aggregator {
	return &Aggregator{
		transfers:     transfers,
		manufacturing: manufacturing,
		stock:         stock,
		products:      products,
		boms:          boms,
	}
}

// OrderSum is one row measure summed from the documents, with the orders
// it references and the number of lines each order contributes.
type OrderSum struct {
	Quantity types.Quantity
	Refs     RefSet
	Lines    map[id.ID]int
}

func sumOrders(rows []domain.OrderQuantity) OrderSum {
	sum := OrderSum{Refs: RefSet{}, Lines: make(map[id.ID]int, len(rows))}
	for _, r := range rows {
		sum.Quantity += r.Quantity
		sum.Refs = sum.Refs.Add(r.OrderID)
		if !id.IsNil(r.OrderID) {
			sum.Lines[r.OrderID] += max(r.Lines, 1)
		}
	}
	return sum
}

// SaleOrderQuantity sums sale-linked quantities on outgoing transfers of
// the day, with the sale orders as refs.
func (a *Aggregator) SaleOrderQuantity(ctx context.Context, productID id.ID, day time.Time) (OrderSum, error) {
	from, to := types.DayWindow(day)
	rows, err := a.transfers.LinkedQuantities(ctx, productID, transfer.KindOutgoing, from, to)
	if err != nil {
		return OrderSum{}, fmt.Errorf("sale order quantity: %w", err)
	}
	return sumOrders(rows), nil
}

// PurchaseOrderQuantity sums purchase-linked quantities on incoming
// transfers of the day, with the purchase orders as refs.
func (a *Aggregator) PurchaseOrderQuantity(ctx context.Context, productID id.ID, day time.Time) (OrderSum, error) {
	from, to := types.DayWindow(day)
	rows, err := a.transfers.LinkedQuantities(ctx, productID, transfer.KindIncoming, from, to)
	if err != nil {
		return OrderSum{}, fmt.Errorf("purchase order quantity: %w", err)
	}
	return sumOrders(rows), nil
}

// BeingManufactured sums manufacturing orders of the product planned on
// the day, with the orders as refs.
func (a *Aggregator) BeingManufactured(ctx context.Context, productID id.ID, day time.Time) (OrderSum, error) {
	from, to := types.DayWindow(day)
	rows, err := a.manufacturing.PlannedQuantities(ctx, productID, from, to)
	if err != nil {
		return OrderSum{}, fmt.Errorf("being manufactured: %w", err)
	}
	return sumOrders(rows), nil
}

// StockOnHand is the current on-hand balance.
func (a *Aggregator) StockOnHand(ctx context.Context, productID id.ID) (types.Quantity, error) {
	q, err := a.stock.OnHand(ctx, productID)
	if err != nil {
		return 0, fmt.Errorf("stock on hand: %w", err)
	}
	return q, nil
}

// ReservedQuantity sums assigned moves with a deadline on the day.
func (a *Aggregator) ReservedQuantity(ctx context.Context, productID id.ID, day time.Time) (types.Quantity, error) {
	from, to := types.DayWindow(day)
	q, err := a.transfers.AssignedQuantity(ctx, productID, from, to)
	if err != nil {
		return 0, fmt.Errorf("reserved quantity: %w", err)
	}
	return q, nil
}

// BomQuantity sums the produced quantity of all BoMs of the product's
// template. It does not depend on the day.
func (a *Aggregator) BomQuantity(ctx context.Context, productID id.ID) (types.Quantity, RefSet, error) {
	templateID, err := a.products.Template(ctx, productID)
	if err != nil {
		return 0, nil, fmt.Errorf("bom quantity: %w", err)
	}
	boms, err := a.boms.ForTemplate(ctx, templateID)
	if err != nil {
		return 0, nil, fmt.Errorf("bom quantity: %w", err)
	}

	var total types.Quantity
	refs := RefSet{}
	for _, b := range boms {
		total += b.ProductQty
		refs = refs.Add(b.ID)
	}
	return total, refs, nil
}

// ForecastQuantity is the virtual-available quantity: on hand plus draft
// incoming minus draft outgoing. Zero without a product or a day.
func (a *Aggregator) ForecastQuantity(ctx context.Context, productID id.ID, day time.Time) (types.Quantity, error) {
	if id.IsNil(productID) || day.IsZero() {
		return 0, nil
	}
	av, err := a.products.Quantities(ctx, productID)
	if err != nil {
		return 0, fmt.Errorf("forecast quantity: %w", err)
	}
	return av.VirtualAvailable, nil
}

// UsedIn returns the products whose BoMs consume productID.
func (a *Aggregator) UsedIn(ctx context.Context, productID id.ID) (RefSet, error) {
	boms, err := a.boms.UsedIn(ctx, productID)
	if err != nil {
		return nil, fmt.Errorf("used in: %w", err)
	}

	refs := RefSet{}
	seen := make(map[id.ID]struct{}, len(boms))
	for _, b := range boms {
		if _, ok := seen[b.ProductTemplateID]; ok {
			continue
		}
		seen[b.ProductTemplateID] = struct{}{}

		variants, err := a.products.Variants(ctx, b.ProductTemplateID)
		if err != nil {
			return nil, fmt.Errorf("used in: %w", err)
		}
		for _, p := range variants {
			refs = refs.Add(p.ID)
		}
	}
	return refs, nil
}

// RefreshStock re-derives the stock snapshots: on hand, forecast and
// reserved.
func (a *Aggregator) RefreshStock(ctx context.Context, row *Row) error {
	var err error
	if row.StockOnHand, err = a.StockOnHand(ctx, row.ProductID); err != nil {
		return err
	}
	if row.ForecastQuantity, err = a.ForecastQuantity(ctx, row.ProductID, row.Date); err != nil {
		return err
	}
	if row.ReservedQuantity, err = a.ReservedQuantity(ctx, row.ProductID, row.Date); err != nil {
		return err
	}
	row.Recalculate()
	return nil
}

// Snapshot fills the fields that are not maintained incrementally, for a
// row about to be created.
func (a *Aggregator) Snapshot(ctx context.Context, row *Row) error {
	if err := a.RefreshStock(ctx, row); err != nil {
		return err
	}

	var err error
	if row.BomQuantity, row.BomRefs, err = a.BomQuantity(ctx, row.ProductID); err != nil {
		return err
	}
	if row.UsedInRefs, err = a.UsedIn(ctx, row.ProductID); err != nil {
		return err
	}
	row.Recalculate()
	return nil
}

// Compute re-derives every field of the row, including the incremental
// aggregates.
func (a *Aggregator) Compute(ctx context.Context, row *Row) error {
	if err := a.Snapshot(ctx, row); err != nil {
		return err
	}

	sale, err := a.SaleOrderQuantity(ctx, row.ProductID, row.Date)
	if err != nil {
		return err
	}
	purchase, err := a.PurchaseOrderQuantity(ctx, row.ProductID, row.Date)
	if err != nil {
		return err
	}
	produced, err := a.BeingManufactured(ctx, row.ProductID, row.Date)
	if err != nil {
		return err
	}

	row.SaleOrderQuantity, row.SaleOrderRefs = sale.Quantity, sale.Refs
	row.PurchaseOrderQuantity, row.PurchaseOrderRefs = purchase.Quantity, purchase.Refs
	row.BeingManufactured, row.ManufacturingOrderRefs = produced.Quantity, produced.Refs
	row.OrderLines = nil
	for m, sum := range map[events.Measure]OrderSum{
		events.MeasureSale:          sale,
		events.MeasurePurchase:      purchase,
		events.MeasureManufacturing: produced,
	} {
		for orderID, n := range sum.Lines {
			row.OrderLines.adjust(m, orderID, n)
		}
	}
	row.Recalculate()
	return nil
}
