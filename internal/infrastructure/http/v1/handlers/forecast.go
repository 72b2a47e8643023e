package handlers

import (
	"github.com/gin-gonic/gin"

	"stockforecast/internal/core/apperror"
	"stockforecast/internal/core/types"
	"stockforecast/internal/domain/forecast"
	"stockforecast/internal/infrastructure/http/v1/dto"
)

// DefaultCalendarDays is the calendar window when no dateTo is given.
const DefaultCalendarDays = 30

// maxCalendarDays bounds one calendar request.
const maxCalendarDays = 366

// ForecastHandler serves the stock forecast report.
type ForecastHandler struct {
	*BaseHandler
	service *forecast.Service
}

// NewForecastHandler creates the forecast handler.
func NewForecastHandler(base *BaseHandler, service *forecast.Service) *ForecastHandler {
	return &ForecastHandler{BaseHandler: base, service: service}
}

// List handles GET /forecast/rows
func (h *ForecastHandler) List(c *gin.Context) {
	var q dto.ForecastQuery
	if !h.BindQuery(c, &q) {
		return
	}
	filter, err := q.ToFilter()
	if err != nil {
		h.Error(c, apperror.NewValidation("invalid query parameters").WithDetail("error", err.Error()))
		return
	}

	result, err := h.service.List(c.Request.Context(), filter)
	if err != nil {
		h.Error(c, err)
		return
	}

	h.OK(c, dto.NewListResponse(result, dto.FromForecastRow))
}

// Get handles GET /forecast/rows/:id
func (h *ForecastHandler) Get(c *gin.Context) {
	rowID, ok := h.ParseID(c, "id")
	if !ok {
		return
	}

	row, err := h.service.Get(c.Request.Context(), rowID)
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, dto.FromForecastRow(row))
}

// Calendar handles GET /forecast/calendar
func (h *ForecastHandler) Calendar(c *gin.Context) {
	var q dto.ForecastQuery
	if !h.BindQuery(c, &q) {
		return
	}
	from, to, productIDs, err := q.CalendarRange(DefaultCalendarDays)
	if err != nil {
		h.Error(c, apperror.NewValidation("invalid query parameters").WithDetail("error", err.Error()))
		return
	}
	if to.Before(from) {
		h.Error(c, apperror.NewValidation("dateTo is before dateFrom"))
		return
	}
	if to.After(from.AddDate(0, 0, maxCalendarDays)) {
		h.Error(c, apperror.NewValidation("calendar range too long").WithDetail("max_days", maxCalendarDays))
		return
	}

	days, err := h.service.Calendar(c.Request.Context(), from, to, productIDs)
	if err != nil {
		h.Error(c, err)
		return
	}

	h.OK(c, gin.H{
		"from": from.Format(types.DateLayout),
		"to":   to.Format(types.DateLayout),
		"days": dto.FromCalendar(days),
	})
}

// History handles GET /forecast/rows/:id/history
func (h *ForecastHandler) History(c *gin.Context) {
	rowID, ok := h.ParseID(c, "id")
	if !ok {
		return
	}

	changes, err := h.service.History(c.Request.Context(), rowID, h.ParseIntQuery(c, "limit", 100))
	if err != nil {
		h.Error(c, err)
		return
	}
	if changes == nil {
		changes = []forecast.RowChange{}
	}
	h.OK(c, gin.H{"items": changes})
}

// Recompute handles POST /forecast/rows/:id/recompute. A drained row is
// deleted and answers 204.
func (h *ForecastHandler) Recompute(c *gin.Context) {
	rowID, ok := h.ParseID(c, "id")
	if !ok {
		return
	}

	row, err := h.service.Recompute(c.Request.Context(), rowID)
	if err != nil {
		h.Error(c, err)
		return
	}
	if row == nil {
		h.NoContent(c)
		return
	}
	h.OK(c, dto.FromForecastRow(row))
}
