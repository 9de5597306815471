// Package api exposes the harvester over HTTP.
package api

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/use-agent/jobharvest/api/handler"
	"github.com/use-agent/jobharvest/api/middleware"
	"github.com/use-agent/jobharvest/cache"
	"github.com/use-agent/jobharvest/config"
)

// NewRouter creates a configured Gin engine.
//
// Middleware chain:
//
//	Global:  Recovery → Logger
//	API:     Auth (if enabled) → RateLimit
//
// Health stays outside auth so monitoring probes always work.
func NewRouter(h handler.Harvester, cfg *config.Config, cc *cache.Cache, startTime time.Time) *gin.Engine {
	gin.SetMode(cfg.Server.Mode)

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(gin.Logger())

	v1 := r.Group("/api/v1")
	v1.GET("/health", handler.Health(h, startTime))

	protected := v1.Group("")
	if cfg.Auth.Enabled {
		protected.Use(middleware.Auth(cfg.Auth.APIKeys))
	}
	protected.Use(middleware.RateLimit(cfg.RateLimit))

	protected.POST("/harvest", handler.Harvest(h, cfg.Site, cfg.Harvest, cc))

	return r
}
