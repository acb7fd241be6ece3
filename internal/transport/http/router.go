package http

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"signagehub/internal/handler"
	"signagehub/internal/logging"
	"signagehub/internal/metrics"
	signmw "signagehub/internal/transport/http/middleware"
)

// RouterConfig holds the dependencies needed to create routes
type RouterConfig struct {
	RegistrationHandler *handler.RegistrationHandler
	ChallengeHandler    *handler.ChallengeHandler
	DisplayHandler      *handler.DisplayHandler
	AdminHandler        *handler.AdminHandler

	Verifier       signmw.RequestVerifier
	AdminJWTSecret string
	// RateLimiter guards the bootstrap endpoints; nil disables limiting.
	RateLimiter signmw.Limiter

	Metrics *metrics.Collector
	Health  *metrics.HealthChecker
	Logger  logging.Logger
}

// NewRouter creates and configures a new Chi router with all route groups
func NewRouter(cfg RouterConfig) chi.Router {
	r := chi.NewRouter()

	r.Use(middleware.RealIP)
	r.Use(middleware.RequestID)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	if cfg.Metrics != nil {
		r.Use(cfg.Metrics.Middleware)
	}

	if cfg.Health != nil {
		r.Method(http.MethodGet, "/health", cfg.Health.Handler())
	}
	if cfg.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", cfg.Metrics.Handler())
	}

	var onLimited func()
	if cfg.Metrics != nil {
		onLimited = cfg.Metrics.RateLimited
	}
	bootstrapLimit := signmw.RateLimit(cfg.RateLimiter, "bootstrap", onLimited, cfg.Logger)

	// Bootstrap routes - unauthenticated, rate limited per client IP
	r.Group(func(r chi.Router) {
		r.Use(bootstrapLimit)

		r.Post("/registration-sessions", cfg.RegistrationHandler.OpenSession)
		r.Post("/registrations", cfg.RegistrationHandler.Register)
		r.Post("/auth/challenges", cfg.ChallengeHandler.Create)
		r.Post("/auth/challenges/{challengeToken}/verify", cfg.ChallengeHandler.Verify)
	})

	// Display routes - every request individually signed
	r.Route("/displays/{displaySlug}", func(r chi.Router) {
		r.Use(signmw.DisplaySignature(cfg.Verifier, cfg.Logger))

		r.Get("/manifest", cfg.DisplayHandler.Manifest)
		r.Get("/stream", cfg.DisplayHandler.Stream)
		r.Post("/heartbeat", cfg.DisplayHandler.Heartbeat)
	})

	// Staff routes
	r.Route("/admin", func(r chi.Router) {
		r.Use(signmw.StaffAuth(cfg.AdminJWTSecret))

		r.Post("/pairing-codes", cfg.AdminHandler.IssuePairingCode)
		r.Put("/settings/scroll-speed", cfg.AdminHandler.SetScrollSpeed)
		r.Route("/displays/{displayId}", func(r chi.Router) {
			r.Post("/refresh", cfg.AdminHandler.RequestRefresh)
			r.Post("/events", cfg.AdminHandler.PublishEvent)
			r.Post("/keys/{keyId}/revoke", cfg.AdminHandler.RevokeKey)
		})
	})

	return r
}
