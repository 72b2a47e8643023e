package handlers

import (
	"fmt"
	"time"

	"github.com/gin-gonic/gin"

	"stockforecast/internal/core/id"
	"stockforecast/internal/core/types"
	"stockforecast/internal/domain"
	"stockforecast/internal/domain/documents/manufacturing"
	"stockforecast/internal/domain/documents/purchase"
	"stockforecast/internal/domain/documents/sale"
	"stockforecast/internal/domain/documents/transfer"
	"stockforecast/internal/infrastructure/http/v1/dto"
)

func queryID(c *gin.Context, key string) (*id.ID, error) {
	raw := c.Query(key)
	if raw == "" {
		return nil, nil
	}
	parsed, err := id.Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("%s: invalid id %q", key, raw)
	}
	return &parsed, nil
}

func queryDay(c *gin.Context, key string) (*time.Time, error) {
	raw := c.Query(key)
	if raw == "" {
		return nil, nil
	}
	day, err := types.ParseDay(raw)
	if err != nil {
		return nil, fmt.Errorf("%s: invalid day %q, expected %s", key, raw, types.DateLayout)
	}
	return &day, nil
}

// queryEnum returns a pointer to the query value typed as E, or nil.
func queryEnum[E ~string](c *gin.Context, key string) *E {
	raw := c.Query(key)
	if raw == "" {
		return nil
	}
	v := E(raw)
	return &v
}

// TransferHandler serves transfers, which can also be reserved.
type TransferHandler struct {
	*EditableDocumentHandler[*transfer.Transfer, transfer.ListFilter, dto.CreateTransferRequest, dto.UpdateTransferRequest]
	service *transfer.Service
}

// NewTransferHandler creates the transfer handler.
func NewTransferHandler(base *BaseHandler, service *transfer.Service) *TransferHandler {
	cfg := DocumentHandlerConfig[*transfer.Transfer, transfer.ListFilter, dto.CreateTransferRequest]{
		ParseFilter:  parseTransferFilter,
		MapCreateDTO: dto.CreateTransferRequest.ToEntity,
	}
	return &TransferHandler{
		EditableDocumentHandler: NewEditableDocumentHandler(base, service, cfg, dto.UpdateTransferRequest.ApplyTo),
		service:                 service,
	}
}

func parseTransferFilter(c *gin.Context, base domain.ListFilter) (transfer.ListFilter, error) {
	f := transfer.ListFilter{
		ListFilter: base,
		Kind:       queryEnum[transfer.Kind](c, "kind"),
		State:      queryEnum[transfer.State](c, "state"),
	}
	var err error
	if f.ProductID, err = queryID(c, "productId"); err != nil {
		return f, err
	}
	if f.OrderID, err = queryID(c, "orderId"); err != nil {
		return f, err
	}
	if f.DateFrom, err = queryDay(c, "dateFrom"); err != nil {
		return f, err
	}
	if f.DateTo, err = queryDay(c, "dateTo"); err != nil {
		return f, err
	}
	return f, nil
}

// Reserve handles POST /document/transfers/:id/reserve
func (h *TransferHandler) Reserve(c *gin.Context) {
	h.transition(c, h.service.Reserve)
}

// ManufacturingHandler serves manufacturing orders.
type ManufacturingHandler = EditableDocumentHandler[*manufacturing.Order, manufacturing.ListFilter, dto.ManufacturingRequest, dto.ManufacturingRequest]

// NewManufacturingHandler creates the manufacturing order handler.
func NewManufacturingHandler(base *BaseHandler, service *manufacturing.Service) *ManufacturingHandler {
	cfg := DocumentHandlerConfig[*manufacturing.Order, manufacturing.ListFilter, dto.ManufacturingRequest]{
		ParseFilter:  parseManufacturingFilter,
		MapCreateDTO: dto.ManufacturingRequest.ToEntity,
	}
	return NewEditableDocumentHandler(base, service, cfg, dto.ManufacturingRequest.ApplyTo)
}

func parseManufacturingFilter(c *gin.Context, base domain.ListFilter) (manufacturing.ListFilter, error) {
	f := manufacturing.ListFilter{
		ListFilter: base,
		State:      queryEnum[manufacturing.State](c, "state"),
	}
	var err error
	if f.ProductID, err = queryID(c, "productId"); err != nil {
		return f, err
	}
	if f.DateFrom, err = queryDay(c, "dateFrom"); err != nil {
		return f, err
	}
	if f.DateTo, err = queryDay(c, "dateTo"); err != nil {
		return f, err
	}
	return f, nil
}

// PurchaseHandler serves purchase orders.
type PurchaseHandler = DocumentHandler[*purchase.Order, purchase.ListFilter, dto.CreatePurchaseRequest]

// NewPurchaseHandler creates the purchase order handler.
func NewPurchaseHandler(base *BaseHandler, service *purchase.Service) *PurchaseHandler {
	return NewDocumentHandler(base, DocumentHandlerConfig[*purchase.Order, purchase.ListFilter, dto.CreatePurchaseRequest]{
		Service: service,
		ParseFilter: func(c *gin.Context, base domain.ListFilter) (purchase.ListFilter, error) {
			productID, err := queryID(c, "productId")
			return purchase.ListFilter{
				ListFilter: base,
				State:      queryEnum[purchase.State](c, "state"),
				ProductID:  productID,
			}, err
		},
		MapCreateDTO: dto.CreatePurchaseRequest.ToEntity,
	})
}

// SaleHandler serves sale orders.
type SaleHandler = DocumentHandler[*sale.Order, sale.ListFilter, dto.CreateSaleRequest]

// NewSaleHandler creates the sale order handler.
func NewSaleHandler(base *BaseHandler, service *sale.Service) *SaleHandler {
	return NewDocumentHandler(base, DocumentHandlerConfig[*sale.Order, sale.ListFilter, dto.CreateSaleRequest]{
		Service: service,
		ParseFilter: func(c *gin.Context, base domain.ListFilter) (sale.ListFilter, error) {
			productID, err := queryID(c, "productId")
			return sale.ListFilter{
				ListFilter: base,
				State:      queryEnum[sale.State](c, "state"),
				ProductID:  productID,
			}, err
		},
		MapCreateDTO: dto.CreateSaleRequest.ToEntity,
	})
}
