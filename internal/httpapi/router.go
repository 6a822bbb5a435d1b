package httpapi

import (
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/suPer8Hu/content-pipeline/internal/analytics"
	"github.com/suPer8Hu/content-pipeline/internal/common"
	"github.com/suPer8Hu/content-pipeline/internal/httpapi/handlers"
	"github.com/suPer8Hu/content-pipeline/internal/httpapi/middleware"
	"github.com/suPer8Hu/content-pipeline/internal/jobs"
)

type Options struct {
	Jobs         *jobs.Service
	Ledger       analytics.Ledger
	Logger       zerolog.Logger
	PollInterval time.Duration

	CORSOrigins []string

	// Limiter guards POST /api/generate. Nil or RateLimitPerMin <= 0 disables it.
	Limiter         middleware.Limiter
	RateLimitPerMin int

	// JWTSecret turns on bearer auth for /api when set.
	JWTSecret string
}

func NewRouter(opts Options) *gin.Engine {
	r := gin.New()
	r.HandleMethodNotAllowed = true
	r.Use(middleware.RequestID())
	r.Use(middleware.Logger(opts.Logger))
	r.Use(middleware.Recovery(opts.Logger))
	r.Use(corsMiddleware(opts.CORSOrigins))

	r.NoRoute(func(c *gin.Context) {
		common.Fail(c, http.StatusNotFound, "Not Found")
	})
	r.NoMethod(func(c *gin.Context) {
		common.Fail(c, http.StatusMethodNotAllowed, "Method Not Allowed")
	})

	h := handlers.NewHandler(opts.Jobs, opts.Ledger, opts.PollInterval, opts.Logger)

	r.GET("/", h.Root)
	r.GET("/health", h.Health)

	api := r.Group("/api")
	if opts.JWTSecret != "" {
		api.Use(middleware.AuthRequired(opts.JWTSecret))
	}

	generate := []gin.HandlerFunc{h.Generate}
	if opts.Limiter != nil && opts.RateLimitPerMin > 0 {
		generate = append([]gin.HandlerFunc{middleware.RateLimit(opts.Limiter, opts.RateLimitPerMin, time.Minute, opts.Logger)}, generate...)
	}
	api.POST("/generate", generate...)
	api.GET("/status/:id", h.Status)
	api.GET("/stream/:id", h.Stream)
	api.GET("/plans", h.ListPlans)
	api.DELETE("/plans/:id", h.DeletePlan)
	api.GET("/analytics", h.Analytics)

	return r
}

func corsMiddleware(origins []string) gin.HandlerFunc {
	cfg := cors.Config{
		AllowMethods:  []string{http.MethodGet, http.MethodPost, http.MethodDelete, http.MethodOptions},
		AllowHeaders:  []string{"Origin", "Content-Type", "Authorization", "X-Request-ID"},
		ExposeHeaders: []string{"X-Request-ID"},
		MaxAge:        12 * time.Hour,
	}
	if len(origins) == 0 || (len(origins) == 1 && origins[0] == "*") {
		cfg.AllowAllOrigins = true
	} else {
		cfg.AllowOrigins = origins
		cfg.AllowCredentials = true
	}
	return cors.New(cfg)
}
