// Package handler exposes a repository over HTTP.
package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// Options configures NewRouter.
type Options struct {
	// JWTSecret enables bearer authentication on mutating routes when set.
	JWTSecret []byte
	// Metrics is mounted at /metrics when non-nil.
	Metrics http.Handler
}

// NewRouter wires the node API onto a fresh gin engine.
func NewRouter(h *Handler, opts Options) *gin.Engine {
	r := gin.New()
	r.Use(gin.Logger(), gin.Recovery())

	r.GET("/ping", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"message": "pong", "status": "ok"})
	})
	if opts.Metrics != nil {
		r.GET("/metrics", gin.WrapH(opts.Metrics))
	}

	api := r.Group("/api")
	{
		api.GET("/nodes/search", h.SearchNodes)
		api.GET("/nodes/:id", h.GetNode)

		writes := api.Group("/")
		if len(opts.JWTSecret) > 0 {
			writes.Use(AuthMiddleware(opts.JWTSecret))
		}
		writes.POST("/nodes", h.CreateNode)
		writes.PUT("/nodes/:id", h.PutNode)
		writes.DELETE("/nodes/:id", h.DeleteNode)
	}
	return r
}
