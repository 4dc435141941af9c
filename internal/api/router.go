package api

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"querydesk/internal/middleware"
)

// RouterConfig carries the knobs the router needs beyond the handlers.
type RouterConfig struct {
	AllowedOrigins []string
	RateLimitRPS   float64
	RateLimitBurst int
}

// NewRouter wires the middleware stack and all routes. The returned cleanup
// stops the rate limiter's background sweeper.
func NewRouter(h *Handlers, cfg RouterConfig, logger *slog.Logger) (http.Handler, func()) {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RequestLogger(logger))
	r.Use(chimiddleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: cfg.AllowedOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodDelete, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Content-Type", "X-Request-ID"},
		MaxAge:         300,
	}))
	limiter := middleware.NewRateLimiter(middleware.RateLimitConfig{
		RequestsPerSecond: cfg.RateLimitRPS,
		Burst:             cfg.RateLimitBurst,
	})
	r.Use(limiter.Middleware)

	r.Get("/healthz", h.handleHealthz)
	r.Post("/upload", h.handleUpload)
	r.Get("/schema", h.handleSchema)
	r.Post("/query", h.handleQuery)
	r.Post("/insights", h.handleInsights)
	r.Post("/export/table/{tableName}", h.handleExportTable)
	r.Post("/export/results", h.handleExportResults)
	r.Delete("/tables/{tableName}", h.handleDeleteTable)
	r.Get("/history", h.handleHistory)

	return r, limiter.Stop
}
