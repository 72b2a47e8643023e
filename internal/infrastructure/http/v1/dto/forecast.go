package dto

import (
	"fmt"
	"time"

	"stockforecast/internal/core/id"
	"stockforecast/internal/core/types"
	"stockforecast/internal/domain/forecast"
)

// ForecastRowResponse is one calendar row. Date is a plain "2006-01-02" day.
type ForecastRowResponse struct {
	ID        string `json:"id"`
	ProductID string `json:"productId"`
	Date      string `json:"date"`

	SaleOrderQuantity      types.Quantity `json:"saleOrderQuantity"`
	SaleOrderRefs          []string       `json:"saleOrderRefs"`
	PurchaseOrderQuantity  types.Quantity `json:"purchaseOrderQuantity"`
	PurchaseOrderRefs      []string       `json:"purchaseOrderRefs"`
	StockOnHand            types.Quantity `json:"stockOnHand"`
	BeingManufactured      types.Quantity `json:"beingManufactured"`
	ManufacturingOrderRefs []string       `json:"manufacturingOrderRefs"`
	ReservedQuantity       types.Quantity `json:"reservedQuantity"`
	BomQuantity            types.Quantity `json:"bomQuantity"`
	BomRefs                []string       `json:"bomRefs"`
	ForecastQuantity       types.Quantity `json:"forecastQuantity"`
	TodayCurrentStock      types.Quantity `json:"todayCurrentStock"`
	UsedInRefs             []string       `json:"usedInRefs"`

	Version   int       `json:"version"`
	UpdatedAt time.Time `json:"updatedAt"`
}

func refStrings(refs forecast.RefSet) []string {
	out := make([]string, len(refs))
	for i, r := range refs {
		out[i] = r.String()
	}
	return out
}

// FromForecastRow converts a row to its response.
func FromForecastRow(r *forecast.Row) ForecastRowResponse {
	return ForecastRowResponse{
		ID:                     r.ID.String(),
		ProductID:              r.ProductID.String(),
		Date:                   r.Date.Format(types.DateLayout),
		SaleOrderQuantity:      r.SaleOrderQuantity,
		SaleOrderRefs:          refStrings(r.SaleOrderRefs),
		PurchaseOrderQuantity:  r.PurchaseOrderQuantity,
		PurchaseOrderRefs:      refStrings(r.PurchaseOrderRefs),
		StockOnHand:            r.StockOnHand,
		BeingManufactured:      r.BeingManufactured,
		ManufacturingOrderRefs: refStrings(r.ManufacturingOrderRefs),
		ReservedQuantity:       r.ReservedQuantity,
		BomQuantity:            r.BomQuantity,
		BomRefs:                refStrings(r.BomRefs),
		ForecastQuantity:       r.ForecastQuantity,
		TodayCurrentStock:      r.TodayCurrentStock,
		UsedInRefs:             refStrings(r.UsedInRefs),
		Version:                r.Version,
		UpdatedAt:              r.UpdatedAt,
	}
}

// CalendarDayResponse groups the rows of one day.
type CalendarDayResponse struct {
	Date string                `json:"date"`
	Rows []ForecastRowResponse `json:"rows"`
}

// FromCalendar converts calendar days to responses.
func FromCalendar(days []forecast.CalendarDay) []CalendarDayResponse {
	out := make([]CalendarDayResponse, len(days))
	for i, d := range days {
		rows := make([]ForecastRowResponse, len(d.Rows))
		for j, r := range d.Rows {
			rows[j] = FromForecastRow(r)
		}
		out[i] = CalendarDayResponse{Date: d.Date.Format(types.DateLayout), Rows: rows}
	}
	return out
}

// ForecastQuery is the query string of row listings and the calendar.
// Days use the "2006-01-02" layout; both bounds are inclusive.
type ForecastQuery struct {
	ProductIDs  []string `form:"productId"`
	DateFrom    string   `form:"dateFrom"`
	DateTo      string   `form:"dateTo"`
	NonZeroOnly bool     `form:"nonZeroOnly"`
	OrderBy     string   `form:"orderBy" binding:"omitempty,oneof=date -date"`
	Limit       int      `form:"limit" binding:"omitempty,min=1,max=1000"`
	Offset      int      `form:"offset" binding:"omitempty,min=0"`
}

// ToFilter parses the query into a row filter.
func (q ForecastQuery) ToFilter() (forecast.Filter, error) {
	f := forecast.Filter{
		NonZeroOnly: q.NonZeroOnly,
		OrderBy:     q.OrderBy,
		Limit:       q.Limit,
		Offset:      q.Offset,
	}

	ids, err := q.productIDs()
	if err != nil {
		return f, err
	}
	f.ProductIDs = ids

	if f.DateFrom, err = parseOptionalDay("dateFrom", q.DateFrom); err != nil {
		return f, err
	}
	if f.DateTo, err = parseOptionalDay("dateTo", q.DateTo); err != nil {
		return f, err
	}
	return f, nil
}

func (q ForecastQuery) productIDs() ([]id.ID, error) {
	ids := make([]id.ID, 0, len(q.ProductIDs))
	for _, raw := range q.ProductIDs {
		parsed, err := parseID("productId", raw)
		if err != nil {
			return nil, err
		}
		ids = append(ids, parsed)
	}
	return ids, nil
}

// CalendarRange resolves the calendar window. It defaults to today plus
// horizonDays.
func (q ForecastQuery) CalendarRange(horizonDays int) (from, to time.Time, productIDs []id.ID, err error) {
	from, to = types.Today(), types.Today().AddDate(0, 0, horizonDays)

	if day, err := parseOptionalDay("dateFrom", q.DateFrom); err != nil {
		return from, to, nil, err
	} else if day != nil {
		from = *day
	}
	if day, err := parseOptionalDay("dateTo", q.DateTo); err != nil {
		return from, to, nil, err
	} else if day != nil {
		to = *day
	}

	productIDs, err = q.productIDs()
	return from, to, productIDs, err
}

func parseOptionalDay(field, raw string) (*time.Time, error) {
	if raw == "" {
		return nil, nil
	}
	day, err := types.ParseDay(raw)
	if err != nil {
		return nil, fmt.Errorf("%s: invalid day %q, expected %s", field, raw, types.DateLayout)
	}
	return &day, nil
}
