package server

import (
	"github.com/go-chi/chi/v5"

	"github.com/gatekit/gatekit/internal/server/handlers"
	servermw "github.com/gatekit/gatekit/internal/server/middleware"
)

// registerRoutes registers all HTTP routes
func (s *Server) registerRoutes(opts Options) {
	health := opts.Health
	if health == nil {
		health = handlers.NewHealthManager(handlers.AppVersion)
	}

	s.router.Get("/health", health.HealthHandler)
	s.router.Get("/health/live", health.LivenessHandler)
	s.router.Get("/health/ready", health.ReadinessHandler)

	s.router.Get("/version", handlers.VersionHandler)

	if opts.Metrics != nil {
		s.router.Method("GET", "/metrics", opts.Metrics.Handler())
	}

	// Only the API surface is rate limited; probes and metrics stay
	// reachable for orchestrators regardless of client behavior.
	if opts.Limiter != nil {
		s.router.Route("/v1", func(r chi.Router) {
			r.Use(servermw.RateLimit(opts.Limiter, s.logger, opts.Metrics))
			r.Get("/rate-limit/{key}", handlers.RateLimitStatusHandler(opts.Limiter, s.logger))
		})
	}
}
