// Package v1 provides HTTP API version 1.
package v1

import (
	"github.com/gin-gonic/gin"

	"stockforecast/internal/infrastructure/http/v1/middleware"
)

// CatalogRouteHandler defines the read and create routes of a catalog.
type CatalogRouteHandler interface {
	List(c *gin.Context)
	Create(c *gin.Context)
	Get(c *gin.Context)
}

// EditRouteHandler is implemented by handlers that edit and delete.
type EditRouteHandler interface {
	Update(c *gin.Context)
	Delete(c *gin.Context)
}

// DocumentRouteHandler defines the lifecycle routes of a document.
type DocumentRouteHandler interface {
	List(c *gin.Context)
	Create(c *gin.Context)
	Get(c *gin.Context)
	Confirm(c *gin.Context)
	Cancel(c *gin.Context)
}

// ReserveRouteHandler is implemented by documents that reserve stock.
type ReserveRouteHandler interface {
	Reserve(c *gin.Context)
}

// RegisterCatalogRoutes registers the routes of a catalog. Edit routes
// are added only when editable is set.
//
// Usage:
//
//	handler := handlers.NewBoMHandler(base, services.BoMs)
//	RegisterCatalogRoutes(catalogs.Group("/boms"), handler, "bom", true)
func RegisterCatalogRoutes(group *gin.RouterGroup, handler CatalogRouteHandler, permission string, editable bool) {
	group.GET("", middleware.RequirePermission(permission+":read"), handler.List)
	group.POST("", middleware.RequirePermission(permission+":create"), handler.Create)
	group.GET("/:id", middleware.RequirePermission(permission+":read"), handler.Get)

	if edit, ok := handler.(EditRouteHandler); ok && editable {
		group.PUT("/:id", middleware.RequirePermission(permission+":update"), edit.Update)
		group.DELETE("/:id", middleware.RequirePermission(permission+":delete"), edit.Delete)
	}
}

// RegisterDocumentRoutes registers CRUD and lifecycle routes for a document.
// PUT, DELETE and reserve are registered when the handler supports them.
//
// Usage:
//
//	handler := handlers.NewTransferHandler(base, services.Transfers)
//	RegisterDocumentRoutes(documents.Group("/transfers"), handler, "transfer")
func RegisterDocumentRoutes(group *gin.RouterGroup, handler DocumentRouteHandler, permission string) {
	group.GET("", middleware.RequirePermission(permission+":read"), handler.List)
	group.POST("", middleware.RequirePermission(permission+":create"), handler.Create)
	group.GET("/:id", middleware.RequirePermission(permission+":read"), handler.Get)
	group.POST("/:id/confirm", middleware.RequirePermission(permission+":confirm"), handler.Confirm)
	group.POST("/:id/cancel", middleware.RequirePermission(permission+":cancel"), handler.Cancel)

	if edit, ok := handler.(EditRouteHandler); ok {
		group.PUT("/:id", middleware.RequirePermission(permission+":update"), edit.Update)
		group.DELETE("/:id", middleware.RequirePermission(permission+":delete"), edit.Delete)
	}
	if reserve, ok := handler.(ReserveRouteHandler); ok {
		group.POST("/:id/reserve", middleware.RequirePermission(permission+":reserve"), reserve.Reserve)
	}
}
