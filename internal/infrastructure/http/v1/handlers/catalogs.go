package handlers

import (
	"github.com/gin-gonic/gin"

	"stockforecast/internal/domain/catalogs/bom"
	"stockforecast/internal/domain/catalogs/product"
	"stockforecast/internal/infrastructure/http/v1/dto"
)

// ProductHandler serves the product catalog and its quantity accessors.
type ProductHandler struct {
	*CatalogHandler[*product.Product, dto.CreateProductRequest, dto.UpdateProductRequest]
	service *product.Service
}

// NewProductHandler creates the product handler.
func NewProductHandler(base *BaseHandler, service *product.Service) *ProductHandler {
	return &ProductHandler{
		CatalogHandler: NewCatalogHandler(base, CatalogHandlerConfig[*product.Product, dto.CreateProductRequest, dto.UpdateProductRequest]{
			Service:        service.CatalogService,
			DefaultOrderBy: "code",
			MapCreateDTO:   dto.CreateProductRequest.ToEntity,
			MapUpdateDTO:   dto.UpdateProductRequest.ApplyTo,
			MapToDTO:       func(p *product.Product) any { return dto.FromProduct(p) },
		}),
		service: service,
	}
}

// Availability handles GET /catalog/products/:id/availability
func (h *ProductHandler) Availability(c *gin.Context) {
	productID, ok := h.ParseID(c, "id")
	if !ok {
		return
	}

	qty, err := h.service.Quantities(c.Request.Context(), productID)
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, qty)
}

// Variants handles GET /catalog/products/:id/variants
func (h *ProductHandler) Variants(c *gin.Context) {
	ctx := c.Request.Context()

	productID, ok := h.ParseID(c, "id")
	if !ok {
		return
	}

	templateID, err := h.service.Template(ctx, productID)
	if err != nil {
		h.Error(c, err)
		return
	}
	variants, err := h.service.Variants(ctx, templateID)
	if err != nil {
		h.Error(c, err)
		return
	}

	items := make([]dto.ProductResponse, len(variants))
	for i, p := range variants {
		items[i] = dto.FromProduct(p)
	}
	h.OK(c, gin.H{"templateId": templateID.String(), "items": items})
}

// BoMHandler serves bills of materials.
type BoMHandler struct {
	*CatalogHandler[*bom.BoM, dto.CreateBoMRequest, dto.UpdateBoMRequest]
	service *bom.Service
}

// NewBoMHandler creates the BoM handler.
func NewBoMHandler(base *BaseHandler, service *bom.Service) *BoMHandler {
	return &BoMHandler{
		CatalogHandler: NewCatalogHandler(base, CatalogHandlerConfig[*bom.BoM, dto.CreateBoMRequest, dto.UpdateBoMRequest]{
			Service:        service.CatalogService,
			DefaultOrderBy: "code",
			MapCreateDTO:   dto.CreateBoMRequest.ToEntity,
			MapUpdateDTO:   dto.UpdateBoMRequest.ApplyTo,
			MapToDTO:       func(b *bom.BoM) any { return dto.FromBoM(b) },
		}),
		service: service,
	}
}

// UsedIn handles GET /catalog/products/:id/used-in, the BoMs consuming a product.
func (h *BoMHandler) UsedIn(c *gin.Context) {
	productID, ok := h.ParseID(c, "id")
	if !ok {
		return
	}

	boms, err := h.service.UsedIn(c.Request.Context(), productID)
	if err != nil {
		h.Error(c, err)
		return
	}

	items := make([]dto.BoMResponse, len(boms))
	for i, b := range boms {
		items[i] = dto.FromBoM(b)
	}
	h.OK(c, gin.H{"items": items})
}
