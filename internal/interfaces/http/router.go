// Package http is the REST front end of the pKa service.
package http

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/turtacn/pkasolver/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/pkasolver/internal/interfaces/http/handlers"
	"github.com/turtacn/pkasolver/internal/interfaces/http/middleware"
)

// RouterConfig aggregates the handlers and middleware settings of the route
// tree. Nil handlers leave their routes unmounted.
type RouterConfig struct {
	PKaHandler    *handlers.PKaHandler
	HealthHandler *handlers.HealthHandler

	// MetricsHandler serves the Prometheus scrape endpoint.
	MetricsHandler http.Handler
	MetricsPath    string
	HTTPMetrics    middleware.HTTPMetrics

	Logging     middleware.LoggingConfig
	CORS        *middleware.CORSConfig
	RateLimiter middleware.RateLimiter
	RateLimit   middleware.RateLimitConfig
	MaxBodySize int64

	Logger logging.Logger
}

// NewRouter builds the gin engine. Middleware order: request ID, recovery,
// logging, metrics, CORS, body limit, then rate limiting.
func NewRouter(cfg RouterConfig) *gin.Engine {
	r := gin.New()
	r.HandleMethodNotAllowed = true

	r.Use(middleware.RequestID())
	r.Use(middleware.Recovery(cfg.Logger))
	r.Use(middleware.RequestLogging(cfg.Logger, cfg.Logging))
	r.Use(middleware.Metrics(cfg.HTTPMetrics))
	if cfg.CORS != nil {
		r.Use(middleware.CORS(*cfg.CORS))
	}
	r.Use(middleware.BodyLimit(cfg.MaxBodySize))
	if cfg.RateLimiter != nil {
		r.Use(middleware.RateLimit(cfg.RateLimiter, cfg.RateLimit))
	}

	notFound := func(c *gin.Context) {
		c.JSON(http.StatusNotFound, handlers.ErrorResponse{
			Code:      "COMMON_005",
			Message:   "route not found",
			RequestID: middleware.GetRequestID(c),
		})
	}
	r.NoRoute(notFound)
	r.NoMethod(func(c *gin.Context) {
		c.JSON(http.StatusMethodNotAllowed, handlers.ErrorResponse{
			Code:      "COMMON_002",
			Message:   "method not allowed",
			RequestID: middleware.GetRequestID(c),
		})
	})

	if h := cfg.HealthHandler; h != nil {
		r.GET("/healthz", h.Liveness)
		r.GET("/readyz", h.Readiness)
	}
	if cfg.MetricsHandler != nil {
		path := cfg.MetricsPath
		if path == "" {
			path = "/metrics"
		}
		r.GET(path, gin.WrapH(cfg.MetricsHandler))
	}

	v1 := r.Group("/api/v1")
	if h := cfg.PKaHandler; h != nil {
		pka := v1.Group("/pka")
		pka.POST("/profile", h.Profile)
		pka.POST("/pair", h.Pair)
		pka.GET("/profiles", h.ListProfiles)
		pka.GET("/profiles/:id", h.GetProfile)
		v1.GET("/models", h.Models)
	}

	return r
}

//Personal.AI order the ending
