// Package store selects and opens the configured outcome store backend.
package store

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/pgoodall/tagtally/internal/config"
	"github.com/pgoodall/tagtally/internal/store/memory"
	"github.com/pgoodall/tagtally/internal/store/postgres"
	"github.com/pgoodall/tagtally/internal/store/sqlite"
	"github.com/pgoodall/tagtally/internal/tally"
)

// Open builds the tally.OutcomeStore named by cfg.Driver. Store
// initialization failures are fatal: without a durable store a run cannot
// be resumable, so callers abort before any dispatch.
func Open(ctx context.Context, cfg config.StoreConfig, logger *zap.Logger) (tally.OutcomeStore, error) {
	switch cfg.Driver {
	case "sqlite":
		logger.Info("opening sqlite outcome store", zap.String("path", cfg.Path))
		s, err := sqlite.Open(cfg.Path)
		if err != nil {
			return nil, fmt.Errorf("open sqlite store: %w", err)
		}
		return s, nil
	case "postgres":
		logger.Info("opening postgres outcome store")
		s, err := postgres.New(ctx, postgres.Config{DSN: cfg.DSN, MaxConns: cfg.MaxConns})
		if err != nil {
			return nil, fmt.Errorf("open postgres store: %w", err)
		}
		return s, nil
	case "memory":
		logger.Warn("using in-memory outcome store; runs will not be resumable")
		return memory.New(), nil
	default:
		return nil, fmt.Errorf("unknown store driver %q", cfg.Driver)
	}
}
