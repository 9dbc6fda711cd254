package cmd

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/gatekit/gatekit/internal/core/store"
	"github.com/gatekit/gatekit/internal/metrics"
	"github.com/gatekit/gatekit/internal/observability"
	"github.com/gatekit/gatekit/internal/server"
	"github.com/gatekit/gatekit/internal/server/handlers"
	servermw "github.com/gatekit/gatekit/internal/server/middleware"
)

var (
	serverPort int
	serverHost string
)

// storeHealthChecker pings the database.
type storeHealthChecker struct {
	db *store.Store
}

func (c storeHealthChecker) CheckHealth(ctx context.Context) error {
	return c.db.Ping(ctx)
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP server",
	Long: `Start the HTTP server with graceful shutdown support.

Ctrl+C (SIGINT) or SIGTERM triggers a graceful shutdown: in-flight
requests finish, the request-log queue drains, and the store closes.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		db, cfg, err := openStore(cmd.Context())
		if err != nil {
			return err
		}
		defer db.Close() // nolint:errcheck // best-effort cleanup

		// Flags beat config file and environment.
		if cmd.Flags().Changed("host") {
			cfg.Server.Host = serverHost
		}
		if cmd.Flags().Changed("port") {
			cfg.Server.Port = serverPort
		}

		logger, err := observability.NewServerLogger(cfg.Logging.Level)
		if err != nil {
			return err
		}
		defer logger.Sync() // nolint:errcheck // stdout sync errors are benign

		logger.Info("initializing server",
			zap.String("version", versionInfo.Version),
			zap.String("host", cfg.Server.Host),
			zap.Int("port", cfg.Server.Port),
			zap.String("store_driver", db.Driver()))

		opts := server.Options{
			Config: cfg.Server,
			Logger: logger,
		}

		health := handlers.NewHealthManager(versionInfo.Version)
		health.RegisterChecker("store", storeHealthChecker{db: db})
		opts.Health = health

		if cfg.Metrics.Enabled {
			opts.Metrics = metrics.New()
		}

		var requestLogger *servermw.RequestLogger
		if cfg.RequestLog.Enabled {
			requestLogger = servermw.NewRequestLogger(db, logger, opts.Metrics, cfg.RequestLog.Buffer)
			opts.RequestLog = requestLogger
		}

		if cfg.RateLimit.Enabled {
			limiter, err := newLimiter(db, cfg)
			if err != nil {
				return err
			}
			opts.Limiter = limiter
			logger.Info("rate limiter enabled",
				zap.String("prefix", cfg.RateLimit.Prefix),
				zap.Ints("window_minutes", cfg.RateLimit.WindowDurations()))
		}

		srv := server.New(opts)

		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		errChan := make(chan error, 1)
		go func() {
			if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				errChan <- err
			}
		}()

		select {
		case err := <-errChan:
			return err
		case <-ctx.Done():
		}

		logger.Info("shutdown signal received")

		shutdownTimeout := cfg.Server.ShutdownTimeout
		if shutdownTimeout == 0 {
			shutdownTimeout = 10 * time.Second
		}
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()

		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Error("server shutdown failed", zap.Error(err))
			return err
		}

		if requestLogger != nil {
			if err := requestLogger.Close(shutdownCtx); err != nil {
				logger.Warn("request log queue did not drain", zap.Error(err))
			}
		}

		logger.Info("HTTP server stopped gracefully")
		return nil
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().StringVar(&serverHost, "host", "localhost", "server host")
	serveCmd.Flags().IntVarP(&serverPort, "port", "p", 8080, "server port")
}
