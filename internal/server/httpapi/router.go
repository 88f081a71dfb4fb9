// Package httpapi exposes the crypto boundary and the sync API over HTTP.
package httpapi

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/famkeep/vaultsync/internal/metrics"
)

// Router wires middleware and handlers into a gin engine.
type Router struct {
	engine *gin.Engine
	log    *zap.Logger
	col    *metrics.Collector
	auth   *AuthMiddleware
	crypto *CryptoHandler
	sync   *SyncHandler
}

// NewRouter constructs the HTTP surface.
func NewRouter(log *zap.Logger, col *metrics.Collector, auth *AuthMiddleware, crypto *CryptoHandler, sync *SyncHandler) *Router {
	gin.SetMode(gin.ReleaseMode)
	engine := gin.New()
	engine.Use(Recovery(log))
	engine.Use(RequestLogging(log, col))

	return &Router{
		engine: engine,
		log:    log,
		col:    col,
		auth:   auth,
		crypto: crypto,
		sync:   sync,
	}
}

// SetupRoutes registers all endpoints. Liveness and metrics are open; the
// crypto boundary and sync API require the full boundary authorization.
func (r *Router) SetupRoutes() {
	r.engine.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "up", "name": "vaultsync"})
	})

	r.engine.GET("/metrics", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"counters":  r.col.Counters(),
			"latencies": r.col.Latencies(),
		})
	})

	v1 := r.engine.Group("/v1")
	v1.Use(r.auth.Require())
	{
		v1.POST("/crypto", r.crypto.Handle)

		v1.POST("/sync/portal", r.sync.EnsurePortal)
		v1.DELETE("/sync/portal", r.sync.DeletePortal)
		v1.POST("/sync/contact", r.sync.UpsertContact)
		v1.DELETE("/sync/contact", r.sync.DeleteContact)
		v1.POST("/sync/resync", r.sync.Resync)
	}
}

// Engine returns the underlying gin engine for serving.
func (r *Router) Engine() *gin.Engine {
	return r.engine
}
