package web

import (
	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"wbcatalog/internal/catalog/app/web/handlers"
	"wbcatalog/metrics"
	"wbcatalog/pkg/logger"
	"wbcatalog/pkg/middleware"
)

// NewRouter собирает все маршруты сервиса.
func NewRouter(ingest *handlers.IngestHandler, products *handlers.ProductHandler, health *handlers.HealthHandler, log logger.Logger) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	e.Use(echomw.Recover())
	e.Use(middleware.RequestLogger(log.WithPrefix("[HTTP]")))
	e.Use(middleware.PrometheusMiddleware())

	api := e.Group("/api")
	api.POST("/ingest", ingest.Run)
	api.GET("/ingest/runs", ingest.Runs)
	api.GET("/products", products.List)
	api.GET("/products/stats", products.Stats)
	api.GET("/products/queries", products.Queries)
	api.GET("/products/export", products.Export)
	api.GET("/products/:external_id", products.Get)
	api.POST("/products/:external_id/refresh", products.Refresh)

	e.GET("/healthz", health.Check)
	e.GET("/metrics", echo.WrapHandler(metrics.MetricsHandler()))
	return e
}
