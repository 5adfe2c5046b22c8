package main

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"cdr-enrichment/internal/app"
	"cdr-enrichment/internal/httpapi"
	"cdr-enrichment/internal/ingest"
	"cdr-enrichment/internal/reporting"
	"cdr-enrichment/pkg/logger"
)

// registerRoutes wires HTTP routes to handlers.
// Keep this file free of business logic. Handlers should delegate to internal modules.
func registerRoutes(r *gin.Engine, c *app.Components, batches *ingest.Handler, reg *prometheus.Registry) {
	// public
	r.GET("/healthz", func(gc *gin.Context) {
		gc.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/readyz", func(gc *gin.Context) {
		if err := c.Ready(gc.Request.Context()); err != nil {
			logger.FromGin(gc).Warn("readiness check failed", zap.Error(err))
			gc.AbortWithStatusJSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable"})
			return
		}
		gc.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg})))

	// No auth on /v1: the service sits behind the ingest gateway.
	v1 := r.Group("/v1")
	httpapi.Handlers{
		Ingest:  batches,
		Store:   c.Store,
		Index:   c.Index,
		Reports: reporting.NewService(c.Index),
	}.Register(v1)
}
