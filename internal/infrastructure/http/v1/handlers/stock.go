package handlers

import (
	"github.com/gin-gonic/gin"

	"stockforecast/internal/core/id"
	"stockforecast/internal/domain/registers/stock"
	"stockforecast/internal/infrastructure/http/v1/dto"
)

// StockHandler handles HTTP requests for the stock register.
type StockHandler struct {
	*BaseHandler
	service *stock.Service
}

// NewStockHandler creates a new stock register handler.
func NewStockHandler(base *BaseHandler, service *stock.Service) *StockHandler {
	return &StockHandler{BaseHandler: base, service: service}
}

// GetBalances handles GET /registers/stock/balances
func (h *StockHandler) GetBalances(c *gin.Context) {
	filter := stock.BalanceFilter{
		ExcludeZero: c.Query("excludeZero") != "false",
	}
	for _, raw := range c.QueryArray("productId") {
		productID, err := id.Parse(raw)
		if err != nil {
			h.InvalidRequest(c, err)
			return
		}
		filter.ProductIDs = append(filter.ProductIDs, productID)
	}

	balances, err := h.service.Balances(c.Request.Context(), filter)
	if err != nil {
		h.Error(c, err)
		return
	}

	items := make([]dto.StockBalanceResponse, len(balances))
	for i, b := range balances {
		items[i] = dto.FromStockBalance(b)
	}
	h.OK(c, gin.H{"items": items})
}

// GetMovements handles GET /registers/stock/movements
func (h *StockHandler) GetMovements(c *gin.Context) {
	filter := stock.MovementFilter{
		Limit:  h.ParseIntQuery(c, "limit", 100),
		Offset: h.ParseIntQuery(c, "offset", 0),
	}

	var err error
	if filter.ProductID, err = queryID(c, "productId"); err != nil {
		h.InvalidRequest(c, err)
		return
	}
	if filter.RecorderID, err = queryID(c, "recorderId"); err != nil {
		h.InvalidRequest(c, err)
		return
	}
	filter.RecordType = queryEnum[stock.RecordType](c, "recordType")
	if filter.FromDate, err = queryDay(c, "fromDate"); err != nil {
		h.InvalidRequest(c, err)
		return
	}
	if filter.ToDate, err = queryDay(c, "toDate"); err != nil {
		h.InvalidRequest(c, err)
		return
	}

	movements, err := h.service.MovementHistory(c.Request.Context(), filter)
	if err != nil {
		h.Error(c, err)
		return
	}

	items := make([]dto.StockMovementResponse, len(movements))
	for i, m := range movements {
		items[i] = dto.FromStockMovement(m)
	}
	h.OK(c, gin.H{"items": items})
}
