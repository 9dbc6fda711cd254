// Package server wires the HTTP surface: routing, middleware order, and
// lifecycle.
package server

import (
	"context"
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/gatekit/gatekit/internal/config"
	"github.com/gatekit/gatekit/internal/metrics"
	"github.com/gatekit/gatekit/internal/server/handlers"
	servermw "github.com/gatekit/gatekit/internal/server/middleware"
)

// RateLimiter combines the two views of the limiter the server needs: the
// gating middleware and the read-only inspection endpoint.
type RateLimiter interface {
	servermw.Limiter
	handlers.WindowReporter
}

// Options carries everything the server needs. Nil optional fields disable
// the corresponding feature.
type Options struct {
	Config     config.ServerConfig
	Logger     *zap.Logger
	Health     *handlers.HealthManager
	Metrics    *metrics.ServerMetrics
	RequestLog *servermw.RequestLogger
	Limiter    RateLimiter
}

// Server represents the HTTP server
type Server struct {
	router *chi.Mux
	server *http.Server
	logger *zap.Logger
	config config.ServerConfig
}

// New creates a new HTTP server instance
func New(opts Options) *Server {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	r := chi.NewRouter()

	// Middleware order matters: the request ID comes first for correlation,
	// then proxy rewriting so everything downstream sees the real client,
	// then measurement and logging around the actual work.
	r.Use(servermw.RequestID)
	if opts.Config.TrustProxy {
		r.Use(servermw.ProxyHeaders)
	}
	if opts.Metrics != nil {
		r.Use(opts.Metrics.Middleware)
	}
	if opts.RequestLog != nil {
		r.Use(opts.RequestLog.Handler)
	}
	r.Use(chimw.Recoverer)

	r.NotFound(func(w http.ResponseWriter, req *http.Request) {
		handlers.RespondError(w, http.StatusNotFound, "the requested resource was not found")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, req *http.Request) {
		handlers.RespondError(w, http.StatusMethodNotAllowed, "the requested method is not allowed for this resource")
	})

	s := &Server{
		router: r,
		logger: logger,
		config: opts.Config,
	}
	s.registerRoutes(opts)

	return s
}

// Start starts the HTTP server and blocks until it stops.
func (s *Server) Start() error {
	addr := fmt.Sprintf("%s:%d", s.config.Host, s.config.Port)

	s.server = &http.Server{
		Addr:         addr,
		Handler:      s.router,
		ReadTimeout:  s.config.ReadTimeout,
		WriteTimeout: s.config.WriteTimeout,
		IdleTimeout:  s.config.IdleTimeout,
	}

	s.logger.Info("starting HTTP server",
		zap.String("addr", addr),
		zap.Bool("trust_proxy", s.config.TrustProxy))

	return s.server.ListenAndServe()
}

// Shutdown gracefully shuts down the HTTP server
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("shutting down HTTP server")
	if s.server == nil {
		return nil
	}
	return s.server.Shutdown(ctx)
}

// Handler exposes the underlying router for testing and instrumentation
func (s *Server) Handler() http.Handler {
	return s.router
}
