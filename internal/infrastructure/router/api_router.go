package router

import (
	"net/http"
	"time"

	"flight-alert-service/internal/interface/api"
	"flight-alert-service/pkg/logger"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// NewAPIRouter wires the read API onto a gin engine. A nil gatherer serves
// the default prometheus registry.
func NewAPIRouter(h *api.FlightHandler, gatherer prometheus.Gatherer, log logger.Logger) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), requestLogger(log), allowAllOrigins())

	metricsHandler := promhttp.Handler()
	if gatherer != nil {
		metricsHandler = promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
	}

	r.GET("/", h.Root)
	r.GET("/health", h.Health)
	r.GET("/metrics", gin.WrapH(metricsHandler))

	apiGroup := r.Group("/api")
	{
		apiGroup.GET("/test-db", h.TestDB)
		apiGroup.GET("/departure-cities", h.DepartureCities)
		apiGroup.GET("/flights", h.Flights)
		apiGroup.GET("/deals", h.Deals)
		apiGroup.GET("/history", h.History)
		apiGroup.GET("/alerts", h.Alerts)
	}

	return r
}

func requestLogger(log logger.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		log.Debug("HTTP request",
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"status", c.Writer.Status(),
			"duration", time.Since(start).String())
	}
}

// allowAllOrigins lets the browser dashboard call the API from any host
func allowAllOrigins() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("Access-Control-Allow-Origin", "*")
		c.Header("Access-Control-Allow-Methods", "GET, OPTIONS")
		c.Header("Access-Control-Allow-Headers", "Content-Type")
		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}
		c.Next()
	}
}
