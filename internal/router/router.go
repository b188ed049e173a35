package router

import (
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spyglass-dev/spyglass/internal/handlers"
	"github.com/spyglass-dev/spyglass/internal/types"
)

func NewRouter(h *handlers.Handlers, gatherer prometheus.Gatherer) *gin.Engine {
	r := gin.Default()

	// Add CORS middleware
	r.Use(cors.New(cors.Config{
		AllowOrigins:     types.AllowedOrigins,
		AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE", "HEAD", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Length", "Content-Type", "Authorization", "Accept", "X-Requested-With"},
		ExposeHeaders:    []string{"Content-Length"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))

	r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})))

	api := r.Group("/api")
	{
		api.GET("/health", h.Health)
		api.GET("/ws", h.WebSocket)

		// Push monitors report in here; the token is the credential.
		api.POST("/push/:token", h.Push)
		api.GET("/push/:token", h.Push)

		monitors := api.Group("/monitors")
		{
			monitors.POST("/:monitor_id/schedule", h.Schedule)
			monitors.DELETE("/:monitor_id/schedule", h.Cancel)
			monitors.POST("/:monitor_id/run", h.RunCheck)
			monitors.PUT("/:monitor_id/incident", h.SetIncidentStatus)
		}
	}

	return r
}
