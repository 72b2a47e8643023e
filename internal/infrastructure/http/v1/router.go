package v1

import (
	"github.com/gin-gonic/gin"

	"stockforecast/internal/app"
	"stockforecast/internal/core/idempotency"
	"stockforecast/internal/core/security"
	"stockforecast/internal/infrastructure/http/v1/handlers"
	"stockforecast/internal/infrastructure/http/v1/middleware"
	"stockforecast/pkg/logger"
)

// PermissionRecompute allows forcing a row re-derivation.
const PermissionRecompute = "forecast:recompute"

// RouterConfig holds router configuration.
type RouterConfig struct {
	Services *app.Services

	// Logger for request logging
	Logger *logger.Logger

	// JWTValidator for token validation
	JWTValidator middleware.JWTValidator

	// ReadPolicy gates read access to the forecast report.
	ReadPolicy *security.AccessPolicy

	// Idempotency stores X-Idempotency-Key results. Nil disables the middleware.
	Idempotency idempotency.Store

	// Health lists the dependencies checked by /health/ready.
	Health map[string]handlers.Pinger

	// Mode is the gin mode; empty keeps the current one.
	Mode string
}

// NewRouter creates and configures the Gin router.
func NewRouter(cfg RouterConfig) *gin.Engine {
	if cfg.Mode != "" {
		gin.SetMode(cfg.Mode)
	}
	if cfg.Logger == nil {
		cfg.Logger = logger.Default()
	}

	router := gin.New()

	// Global middleware (order matters!)
	router.Use(middleware.Recovery())
	router.Use(middleware.Trace())
	router.Use(middleware.Logger(cfg.Logger))
	router.Use(middleware.ErrorHandler())

	healthHandler := handlers.NewHealthHandler(cfg.Health)
	health := router.Group("/health")
	{
		health.GET("/live", healthHandler.Live)
		health.GET("/ready", healthHandler.Ready)
	}

	api := router.Group("/api/v1")
	api.Use(middleware.Auth(cfg.JWTValidator))
	api.Use(middleware.UserContext())
	if cfg.Idempotency != nil {
		api.Use(middleware.Idempotency(cfg.Idempotency))
	}

	base := handlers.NewBaseHandler()
	svc := cfg.Services

	// Forecast report
	forecastHandler := handlers.NewForecastHandler(base, svc.Forecast)
	forecast := api.Group("/forecast")
	{
		read := middleware.RequireAccess(cfg.ReadPolicy)
		forecast.GET("/rows", read, forecastHandler.List)
		forecast.GET("/rows/:id", read, forecastHandler.Get)
		forecast.GET("/rows/:id/history", read, forecastHandler.History)
		forecast.GET("/calendar", read, forecastHandler.Calendar)
		forecast.POST("/rows/:id/recompute", middleware.RequirePermission(PermissionRecompute), forecastHandler.Recompute)
	}

	// Documents
	documents := api.Group("/document")
	{
		RegisterDocumentRoutes(documents.Group("/transfers"), handlers.NewTransferHandler(base, svc.Transfers), "transfer")
		RegisterDocumentRoutes(documents.Group("/manufacturing-orders"), handlers.NewManufacturingHandler(base, svc.Manufacturing), "manufacturing")
		RegisterDocumentRoutes(documents.Group("/purchase-orders"), handlers.NewPurchaseHandler(base, svc.Purchases), "purchase")
		RegisterDocumentRoutes(documents.Group("/sale-orders"), handlers.NewSaleHandler(base, svc.Sales), "sale")
	}

	// Catalogs
	catalogs := api.Group("/catalog")
	{
		bomHandler := handlers.NewBoMHandler(base, svc.BoMs)
		RegisterCatalogRoutes(catalogs.Group("/boms"), bomHandler, "bom", true)

		productHandler := handlers.NewProductHandler(base, svc.Products)
		products := catalogs.Group("/products")
		RegisterCatalogRoutes(products, productHandler, "product", false)
		products.GET("/:id/availability", middleware.RequirePermission("product:read"), productHandler.Availability)
		products.GET("/:id/variants", middleware.RequirePermission("product:read"), productHandler.Variants)
		products.GET("/:id/used-in", middleware.RequirePermission("bom:read"), bomHandler.UsedIn)
	}

	// Registers
	stockHandler := handlers.NewStockHandler(base, svc.Stock)
	registers := api.Group("/registers/stock")
	{
		registers.GET("/balances", middleware.RequirePermission("stock:read"), stockHandler.GetBalances)
		registers.GET("/movements", middleware.RequirePermission("stock:read"), stockHandler.GetMovements)
	}

	return router
}
