package api

import (
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"

	"shutter-control-backend/config"
	"shutter-control-backend/internal/mw"
)

// NewRouter creates and configures a new Gin router.
func NewRouter(cfg config.ServerConfig, handler *Handler) *gin.Engine {
	r := gin.Default()
	if cfg.RequestIPHeader != "" {
		r.TrustedPlatform = cfg.RequestIPHeader
	}
	r.Use(cors.Default())

	rateLimiter := mw.RateLimiter(rate.Limit(cfg.RateLimitPerSec), cfg.RateLimitBurst)

	if handler.cache == nil {
		handler.cache = mw.NewResponseCache(time.Duration(cfg.CacheTTLSeconds) * time.Second)
	}
	caching := handler.cache.Middleware()

	// The device polls and reports outside the rate limit.
	device := r.Group("/api")
	{
		device.GET("/status", handler.GetStatus)
		device.POST("/log", handler.PostLog)
		device.POST("/device-status", handler.PostDeviceStatus)
	}

	api := r.Group("/api")
	api.Use(rateLimiter)
	{
		api.POST("/command", handler.PostCommand)
		api.GET("/device-status", handler.GetDeviceStatus)

		api.GET("/schedules", caching, handler.ListSchedules)
		api.POST("/schedules", handler.CreateSchedule)
		api.GET("/schedules/triggers", handler.ListTriggers)
		api.PUT("/schedules/:id", handler.UpdateSchedule)
		api.DELETE("/schedules/:id", handler.DeleteSchedule)

		api.GET("/logs", handler.ListLogs)

		api.GET("/subscriptions", handler.GetSubscription)
		api.PUT("/subscriptions", handler.PutSubscription)
		api.DELETE("/subscriptions", handler.DeleteSubscription)
		api.GET("/vapid_public_key", handler.GetVAPIDPublicKey)
	}

	if cfg.StaticDir != "" {
		serveStatic(r, cfg.StaticDir)
	}

	return r
}

// serveStatic serves the dashboard. Unknown non-API paths fall back to
// index.html.
func serveStatic(r *gin.Engine, dir string) {
	index := filepath.Join(dir, "index.html")
	r.GET("/", func(c *gin.Context) {
		c.File(index)
	})
	r.NoRoute(func(c *gin.Context) {
		path := c.Request.URL.Path
		if strings.HasPrefix(path, "/api/") || c.Request.Method != http.MethodGet {
			c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
			return
		}
		file := filepath.Join(dir, filepath.FromSlash(filepath.Clean("/"+path)))
		if info, err := os.Stat(file); err == nil && !info.IsDir() {
			c.File(file)
			return
		}
		c.File(index)
	})
}
