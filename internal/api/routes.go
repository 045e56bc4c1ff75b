// Package api serves the query and management HTTP surface of the monitor.
package api

import (
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
)

// NewRouter builds the gin engine with every route registered.
func NewRouter(h *Handlers) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), cors.New(corsConfig()))
	RegisterRoutes(r, h)
	return r
}

// RegisterRoutes registers all monitor routes.
//
//	GET  /health
//	GET  /metrics
//	GET  /api/version
//	GET  /api/status
//	GET  /api/invariants
//	GET  /api/invariants/:id
//	POST /api/invariants/add
//	POST /api/invariants/remove
//	POST /api/monitor
//	GET  /api/snapshot
//	GET  /api/stream
//	POST /api/analyze
//	GET  /api/metadata/:package_id/:module_name
func RegisterRoutes(r gin.IRouter, h *Handlers) {
	r.GET("/health", h.HandleHealth)
	r.GET("/metrics", h.HandleMetrics)

	g := r.Group("/api")
	g.GET("/version", h.HandleVersion)
	g.GET("/status", h.HandleStatus)
	g.GET("/invariants", h.HandleListInvariants)
	g.GET("/invariants/:id", h.HandleGetInvariant)
	g.POST("/invariants/add", h.HandleAddInvariants)
	g.POST("/invariants/remove", h.HandleRemoveInvariant)
	g.POST("/monitor", h.HandleAddMonitoredObject)
	g.GET("/snapshot", h.HandleSnapshot)
	g.GET("/stream", h.HandleStream)
	g.POST("/analyze", h.HandleAnalyze)
	g.GET("/metadata/:package_id/:module_name", h.HandleModuleMetadata)
}

// corsConfig allows any origin so browser dashboards on other hosts can
// read the API.
func corsConfig() cors.Config {
	return cors.Config{
		AllowAllOrigins: true,
		AllowMethods:    []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowHeaders:    []string{"Origin", "Content-Type", "Accept", "Authorization"},
		MaxAge:          12 * time.Hour,
	}
}
