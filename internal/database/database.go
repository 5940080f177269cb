package database

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/gdg-garage/shuttle-planner/internal/config"
	"github.com/gdg-garage/shuttle-planner/internal/models"
	"github.com/gdg-garage/shuttle-planner/internal/store"
	"github.com/gdg-garage/shuttle-planner/internal/store/gormstore"
	"github.com/gdg-garage/shuttle-planner/internal/store/pgstore"
)

const connectAttempts = 5

func Connect(cfg *config.Config) (*gorm.DB, error) {
	db, err := gorm.Open(sqlite.Open(cfg.DatabasePath), &gorm.Config{})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	return db, nil
}

// NewPool retries a few times so the service can start alongside the database.
func NewPool(ctx context.Context, dsn string, logger *slog.Logger) (*pgxpool.Pool, error) {
	poolCfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("parse db config: %w", err)
	}
	poolCfg.MaxConns = 20
	poolCfg.MinConns = 2
	poolCfg.MaxConnLifetime = 30 * time.Minute
	poolCfg.MaxConnIdleTime = 5 * time.Minute

	for attempt := 1; ; attempt++ {
		pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
		if err == nil {
			if err = pool.Ping(ctx); err == nil {
				return pool, nil
			}
			pool.Close()
		}
		if attempt == connectAttempts {
			return nil, fmt.Errorf("connect to postgres: %w", err)
		}
		logger.Warn("db connect attempt failed, retrying", "attempt", attempt, "of", connectAttempts, "error", err)
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(2 * time.Second):
		}
	}
}

// OpenStore connects the configured backend and migrates it. The returned
// func closes the store and its connection.
func OpenStore(ctx context.Context, cfg *config.Config, logger *slog.Logger) (store.Store, func(), error) {
	switch cfg.StoreDriver {
	case config.DriverPostgres:
		dsn, err := cfg.PostgresDSN()
		if err != nil {
			return nil, nil, err
		}
		pool, err := NewPool(ctx, dsn, logger)
		if err != nil {
			return nil, nil, err
		}
		s := pgstore.New(pool, logger)
		if err := s.Migrate(ctx); err != nil {
			pool.Close()
			return nil, nil, fmt.Errorf("failed to migrate: %w", err)
		}
		return s, func() {
			s.Close()
			pool.Close()
		}, nil

	case config.DriverSQLite:
		db, err := Connect(cfg)
		if err != nil {
			return nil, nil, err
		}
		s := gormstore.New(db, logger)
		if err := s.Migrate(); err != nil {
			return nil, nil, fmt.Errorf("failed to auto migrate: %w", err)
		}
		return s, func() {
			s.Close()
			if sqlDB, err := db.DB(); err == nil {
				sqlDB.Close()
			}
		}, nil
	}
	return nil, nil, fmt.Errorf("unknown store driver %q", cfg.StoreDriver)
}

// SeedShuttles adds catalog shuttles that are not in the store yet. Existing
// rows are left alone so edited times survive a reseed.
func SeedShuttles(ctx context.Context, s store.Store, catalog []models.Shuttle) (int, error) {
	existing, err := s.ListShuttles(ctx)
	if err != nil {
		return 0, fmt.Errorf("list shuttles: %w", err)
	}
	have := make(map[string]bool, len(existing))
	for _, sh := range existing {
		have[sh.ID] = true
	}

	added := 0
	for _, sh := range catalog {
		if have[sh.ID] {
			continue
		}
		if err := s.UpsertShuttle(ctx, sh); err != nil {
			return added, fmt.Errorf("seed shuttle %s: %w", sh.ID, err)
		}
		added++
	}
	return added, nil
}
