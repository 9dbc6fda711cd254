package cmd

import (
	"context"

	"go.uber.org/zap"

	"github.com/gatekit/gatekit/internal/config"
	"github.com/gatekit/gatekit/internal/core/engine"
	"github.com/gatekit/gatekit/internal/core/store"
)

// openStore loads config, opens the database, and runs migrations.
func openStore(ctx context.Context) (*store.Store, *config.Config, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, nil, err
	}

	db, err := store.Open(ctx, cfg.Store)
	if err != nil {
		return nil, nil, err
	}

	if err := db.Migrate(ctx); err != nil {
		_ = db.Close()
		return nil, nil, err
	}

	cliLogger().Debug("store ready",
		zap.String("driver", db.Driver()),
		zap.String("path", cfg.Store.Path))

	return db, cfg, nil
}

// limiterStore adapts the concrete store to the engine's transaction
// interface.
type limiterStore struct {
	db *store.Store
}

func (s limiterStore) BeginWindows(ctx context.Context) (engine.WindowTx, error) {
	return s.db.BeginWindows(ctx)
}

// newLimiter builds the rate limiter from config on top of an open store.
func newLimiter(db *store.Store, cfg *config.Config) (*engine.RateLimiter, error) {
	limits, err := cfg.RateLimit.WindowLimits()
	if err != nil {
		return nil, err
	}

	limiter := engine.New(limiterStore{db: db}, cfg.RateLimit.Prefix, limits)
	if cfg.RateLimit.MaxWindows > 0 {
		limiter.MaxWindows = cfg.RateLimit.MaxWindows
	}
	return limiter, nil
}
