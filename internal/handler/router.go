package handler

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/costtrack/costtrack/internal/cache"
	"github.com/costtrack/costtrack/internal/metrics"
	"github.com/costtrack/costtrack/internal/middleware"
)

// RouterConfig carries everything NewRouter mounts.
type RouterConfig struct {
	Logger  *slog.Logger
	Metrics metrics.Recorder
	// MetricsHandler serves GET /metrics when non-nil.
	MetricsHandler http.Handler

	Auth          *AuthHandler
	Costs         *CostHandler
	Health        *HealthHandler
	Authenticator middleware.Authenticator

	// AuthLimiter throttles /signup and /login per client IP. Nil disables it.
	AuthLimiter cache.IPLimiter

	CORSOrigins []string
	GlobalRPS   float64
	GlobalBurst int
	MaxBodySize int64
	HSTS        bool
}

// NewRouter builds the application's HTTP routes and middleware chain.
func NewRouter(cfg RouterConfig) *chi.Mux {
	recorder := cfg.Metrics
	if recorder == nil {
		recorder = metrics.NewNoop()
	}
	h := New()

	corsCfg := middleware.DefaultCORSConfig()
	corsCfg.AllowedOrigins = cfg.CORSOrigins

	r := chi.NewRouter()
	r.NotFound(h.NotFound)
	r.MethodNotAllowed(h.MethodNotAllowed)

	r.Use(chimiddleware.RealIP)
	r.Use(middleware.RequestID)
	r.Use(middleware.Logger(cfg.Logger, recorder))
	r.Use(middleware.Recoverer(cfg.Logger))
	r.Use(middleware.Security(middleware.SecurityConfig{HSTS: cfg.HSTS}))
	r.Use(middleware.CORS(corsCfg))
	r.Use(middleware.Language)
	r.Use(middleware.GlobalRateLimit(cfg.GlobalRPS, cfg.GlobalBurst, recorder))
	if cfg.MaxBodySize > 0 {
		r.Use(middleware.MaxBodySize(cfg.MaxBodySize))
	}
	r.Use(chimiddleware.StripSlashes)

	// Probes and metrics
	r.Get("/healthz", cfg.Health.Healthz)
	r.Get("/readyz", cfg.Health.Readyz)
	if cfg.MetricsHandler != nil {
		r.Method(http.MethodGet, "/metrics", cfg.MetricsHandler)
	}

	r.Get("/", h.Hello)

	// Credential endpoints, throttled per client
	r.Group(func(r chi.Router) {
		r.Use(middleware.RateLimitIP(middleware.IPRateLimitConfig{
			Logger:  cfg.Logger,
			Limiter: cfg.AuthLimiter,
			Metrics: recorder,
			Scope:   "auth",
		}))
		r.Post("/signup", cfg.Auth.Signup)
		r.Post("/login", cfg.Auth.Login)
	})

	// The refresh token is checked by the handler, not the access middleware.
	r.Post("/refresh-tokens", cfg.Auth.Refresh)

	r.Group(func(r chi.Router) {
		r.Use(middleware.Auth(middleware.AuthConfig{
			Logger:        cfg.Logger,
			Authenticator: cfg.Authenticator,
			Metrics:       recorder,
		}))

		r.Post("/logout", cfg.Auth.Logout)
		r.Get("/auth/me", cfg.Auth.Me)
		r.Get("/activity", cfg.Costs.Activity)

		r.Route("/costs", func(r chi.Router) {
			r.Get("/", cfg.Costs.List)
			r.Post("/", cfg.Costs.Create)
			r.Get("/summary", cfg.Costs.Summary)
			r.Get("/{id}", cfg.Costs.Get)
			r.Put("/{id}", cfg.Costs.Update)
			r.Delete("/{id}", cfg.Costs.Delete)
		})
	})

	return r
}
