package server

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/blockchat/blockchat/internal/handler"
	"github.com/blockchat/blockchat/internal/metrics"
	"github.com/blockchat/blockchat/internal/middleware"
)

// Rate limit scopes for the flow endpoints.
const (
	ScopeLogin    = "login"
	ScopeRegister = "register"
)

// RouterConfig holds everything the HTTP router is built from.
type RouterConfig struct {
	Logger  *slog.Logger
	Root    *handler.Handler
	Auth    *handler.AuthHandler
	Health  *handler.HealthHandler
	Metrics metrics.Recorder

	// Events is mounted at /api/events when non-nil.
	Events *handler.EventsHandler

	// MetricsHandler is mounted at /metrics when non-nil.
	MetricsHandler http.Handler

	// Limiter is nil when Redis is not configured.
	Limiter          middleware.RateLimiter
	RateLimitEnabled bool
	RateLimitRPS     int
	RateLimitBurst   int

	CORS          middleware.CORSConfig
	IsDevelopment bool
	MaxBodySize   int64
}

// NewRouter configures the chi router with all routes and middleware.
func NewRouter(cfg RouterConfig) *chi.Mux {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.Root == nil {
		cfg.Root = handler.New()
	}

	r := chi.NewRouter()

	// Global middleware
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.RequestID)
	r.Use(middleware.Logger(cfg.Logger))
	r.Use(middleware.Recoverer(cfg.Logger))
	r.Use(middleware.Security(middleware.SecurityConfig{IsDevelopment: cfg.IsDevelopment}))
	r.Use(middleware.CORS(cfg.CORS))
	if cfg.MaxBodySize > 0 {
		r.Use(middleware.MaxBodySize(cfg.MaxBodySize))
	}

	// Health checks
	r.Get("/api/health", cfg.Health.Health)
	r.Get("/readyz", cfg.Health.Readyz)

	if cfg.Events != nil {
		r.Get("/api/events", cfg.Events.Recent)
	}

	if cfg.MetricsHandler != nil {
		r.Method(http.MethodGet, "/metrics", cfg.MetricsHandler)
	}

	limit := func(scope string) func(http.Handler) http.Handler {
		return middleware.RateLimitIP(middleware.RateLimitConfig{
			Logger:  cfg.Logger,
			Limiter: cfg.Limiter,
			Metrics: cfg.Metrics,
			Enabled: cfg.RateLimitEnabled,
			Scope:   scope,
			RPS:     cfg.RateLimitRPS,
			Burst:   cfg.RateLimitBurst,
		})
	}

	// Flow endpoints, each with its own per-IP bucket
	r.With(limit(ScopeLogin)).Post("/api/login", cfg.Auth.Login)
	r.With(limit(ScopeRegister)).Post("/api/register", cfg.Auth.Register)

	// 404 and 405 handlers
	r.NotFound(cfg.Root.NotFound)
	r.MethodNotAllowed(cfg.Root.MethodNotAllowed)

	return r
}
