package handlers

import (
	"context"

	"github.com/gin-gonic/gin"

	"stockforecast/internal/core/id"
	"stockforecast/internal/domain"
	"stockforecast/internal/infrastructure/http/v1/dto"
)

// DocumentService is the lifecycle every document type shares.
type DocumentService[T any, F any] interface {
	GetByID(ctx context.Context, id id.ID) (T, error)
	List(ctx context.Context, filter F) (domain.ListResult[T], error)
	Create(ctx context.Context, doc T) error
	Confirm(ctx context.Context, id id.ID) (T, error)
	Cancel(ctx context.Context, id id.ID) (T, error)
}

// EditableDocumentService adds editing of drafts.
type EditableDocumentService[T any, F any] interface {
	DocumentService[T, F]
	Update(ctx context.Context, doc T) error
	Delete(ctx context.Context, id id.ID) error
}

// DocumentHandler provides generic HTTP handlers for documents.
type DocumentHandler[T any, F any, CreateDTO any] struct {
	*BaseHandler
	service DocumentService[T, F]

	parseFilter  func(c *gin.Context, base domain.ListFilter) (F, error)
	mapCreateDTO func(dto CreateDTO) (T, error)
	mapToDTO     func(doc T) any
}

// DocumentHandlerConfig configures the document handler.
type DocumentHandlerConfig[T any, F any, CreateDTO any] struct {
	Service DocumentService[T, F]

	// ParseFilter adds document-specific query parameters to base.
	ParseFilter  func(c *gin.Context, base domain.ListFilter) (F, error)
	MapCreateDTO func(dto CreateDTO) (T, error)

	// MapToDTO defaults to the document itself.
	MapToDTO func(doc T) any
}

// NewDocumentHandler creates a new document handler.
func NewDocumentHandler[T any, F any, CreateDTO any](
	base *BaseHandler,
	cfg DocumentHandlerConfig[T, F, CreateDTO],
) *DocumentHandler[T, F, CreateDTO] {
	mapToDTO := cfg.MapToDTO
	if mapToDTO == nil {
		mapToDTO = func(doc T) any { return doc }
	}
	return &DocumentHandler[T, F, CreateDTO]{
		BaseHandler:  base,
		service:      cfg.Service,
		parseFilter:  cfg.ParseFilter,
		mapCreateDTO: cfg.MapCreateDTO,
		mapToDTO:     mapToDTO,
	}
}

// List handles GET /{document}
func (h *DocumentHandler[T, F, CreateDTO]) List(c *gin.Context) {
	base := domain.ListFilter{
		Search:         c.Query("search"),
		Limit:          h.ParseIntQuery(c, "limit", 50),
		Offset:         h.ParseIntQuery(c, "offset", 0),
		OrderBy:        c.Query("orderBy"),
		IncludeDeleted: c.Query("includeDeleted") == "true",
	}

	filter, err := h.parseFilter(c, base)
	if err != nil {
		h.InvalidRequest(c, err)
		return
	}

	result, err := h.service.List(c.Request.Context(), filter)
	if err != nil {
		h.Error(c, err)
		return
	}

	h.OK(c, dto.NewListResponse(result, h.mapToDTO))
}

// Get handles GET /{document}/:id
func (h *DocumentHandler[T, F, CreateDTO]) Get(c *gin.Context) {
	docID, ok := h.ParseID(c, "id")
	if !ok {
		return
	}

	doc, err := h.service.GetByID(c.Request.Context(), docID)
	if err != nil {
		h.Error(c, err)
		return
	}

	h.OK(c, h.mapToDTO(doc))
}

// Create handles POST /{document}
func (h *DocumentHandler[T, F, CreateDTO]) Create(c *gin.Context) {
	var req CreateDTO
	if !h.BindJSON(c, &req) {
		return
	}

	doc, err := h.mapCreateDTO(req)
	if err != nil {
		h.InvalidRequest(c, err)
		return
	}

	if err := h.service.Create(c.Request.Context(), doc); err != nil {
		h.Error(c, err)
		return
	}

	h.Created(c, h.mapToDTO(doc))
}

// Confirm handles POST /{document}/:id/confirm
func (h *DocumentHandler[T, F, CreateDTO]) Confirm(c *gin.Context) {
	h.transition(c, h.service.Confirm)
}

// Cancel handles POST /{document}/:id/cancel
func (h *DocumentHandler[T, F, CreateDTO]) Cancel(c *gin.Context) {
	h.transition(c, h.service.Cancel)
}

func (h *DocumentHandler[T, F, CreateDTO]) transition(c *gin.Context, fn func(context.Context, id.ID) (T, error)) {
	docID, ok := h.ParseID(c, "id")
	if !ok {
		return
	}

	doc, err := fn(c.Request.Context(), docID)
	if err != nil {
		h.Error(c, err)
		return
	}

	h.OK(c, h.mapToDTO(doc))
}

// EditableDocumentHandler adds PUT and DELETE for documents editable as drafts.
type EditableDocumentHandler[T any, F any, CreateDTO any, UpdateDTO any] struct {
	*DocumentHandler[T, F, CreateDTO]
	editable     EditableDocumentService[T, F]
	mapUpdateDTO func(dto UpdateDTO, existing T) (T, error)
}

// NewEditableDocumentHandler creates a handler for an editable document.
func NewEditableDocumentHandler[T any, F any, CreateDTO any, UpdateDTO any](
	base *BaseHandler,
	service EditableDocumentService[T, F],
	cfg DocumentHandlerConfig[T, F, CreateDTO],
	mapUpdateDTO func(dto UpdateDTO, existing T) (T, error),
) *EditableDocumentHandler[T, F, CreateDTO, UpdateDTO] {
	cfg.Service = service
	return &EditableDocumentHandler[T, F, CreateDTO, UpdateDTO]{
		DocumentHandler: NewDocumentHandler(base, cfg),
		editable:        service,
		mapUpdateDTO:    mapUpdateDTO,
	}
}

// Update handles PUT /{document}/:id
func (h *EditableDocumentHandler[T, F, CreateDTO, UpdateDTO]) Update(c *gin.Context) {
	ctx := c.Request.Context()

	docID, ok := h.ParseID(c, "id")
	if !ok {
		return
	}

	var req UpdateDTO
	if !h.BindJSON(c, &req) {
		return
	}

	existing, err := h.editable.GetByID(ctx, docID)
	if err != nil {
		h.Error(c, err)
		return
	}

	doc, err := h.mapUpdateDTO(req, existing)
	if err != nil {
		h.InvalidRequest(c, err)
		return
	}

	if err := h.editable.Update(ctx, doc); err != nil {
		h.Error(c, err)
		return
	}

	h.OK(c, h.mapToDTO(doc))
}

// Delete handles DELETE /{document}/:id
func (h *EditableDocumentHandler[T, F, CreateDTO, UpdateDTO]) Delete(c *gin.Context) {
	docID, ok := h.ParseID(c, "id")
	if !ok {
		return
	}

	if err := h.editable.Delete(c.Request.Context(), docID); err != nil {
		h.Error(c, err)
		return
	}

	h.NoContent(c)
}
