package db

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/vhenrik/postbox/internal/config"
)

// Store is the engine's single handle on persistent state. It is
// constructed once at process start and passed to every component that
// needs storage; there is no package-level connection.
type Store struct {
	pool *pgxpool.Pool

	maxPageSize          int
	allIncludesSpamTrash bool
	retentionDays        int
}

// NewStore wraps an existing connection pool with the engine's storage
// operations.
func NewStore(pool *pgxpool.Pool, cfg *config.Config) *Store {
	maxPageSize := cfg.MaxPageSize
	if maxPageSize <= 0 {
		maxPageSize = config.DefaultMaxPageSize
	}
	retentionDays := cfg.RetentionDays
	if retentionDays <= 0 {
		retentionDays = config.DefaultRetentionDays
	}
	return &Store{
		pool:                 pool,
		maxPageSize:          maxPageSize,
		allIncludesSpamTrash: cfg.AllIncludesSpamTrash,
		retentionDays:        retentionDays,
	}
}

// Pool exposes the underlying pool for migrations and tests.
func (s *Store) Pool() *pgxpool.Pool {
	return s.pool
}

// MaxPageSize returns the configured page-size ceiling.
func (s *Store) MaxPageSize() int {
	return s.maxPageSize
}

// NewConnection creates a new PostgreSQL connection pool with the given configuration.
func NewConnection(ctx context.Context, cfg *config.Config) (*pgxpool.Pool, error) {
	dbURL := cfg.GetDatabaseURL()

	poolConfig, err := pgxpool.ParseConfig(dbURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse database URL: %w", err)
	}

	poolConfig.MaxConns = 25
	poolConfig.MinConns = 5
	poolConfig.MaxConnLifetime = time.Hour
	poolConfig.MaxConnIdleTime = 30 * time.Minute
	poolConfig.HealthCheckPeriod = 1 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return pool, nil
}

// CloseConnection closes the given database connection pool.
func CloseConnection(pool *pgxpool.Pool) {
	if pool != nil {
		pool.Close()
	}
}
