// Package database owns the Postgres pool, migrations and the per-user
// connection scope that row level security policies read.
package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
	"go.uber.org/zap"

	"github.com/homebrew-hq/homebrew-engine/pkg/retry"
)

// ApplicationName is reported to Postgres in pg_stat_activity.
const ApplicationName = "homebrew-engine"

// DB wraps a pgxpool connection pool.
type DB struct {
	*pgxpool.Pool
}

// Config holds database connection configuration. Zero durations and
// MaxConnections fall back to defaults.
type Config struct {
	URL             string
	MaxConnections  int32
	MaxConnLifetime time.Duration
	MaxConnIdleTime time.Duration
}

func (c *Config) poolConfig() (*pgxpool.Config, error) {
	pc, err := pgxpool.ParseConfig(c.URL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse database URL: %w", err)
	}

	pc.MaxConns = orDefault(c.MaxConnections, 25)
	pc.MaxConnLifetime = orDefault(c.MaxConnLifetime, time.Hour)
	pc.MaxConnIdleTime = orDefault(c.MaxConnIdleTime, 30*time.Minute)
	pc.HealthCheckPeriod = time.Minute
	if _, ok := pc.ConnConfig.RuntimeParams["application_name"]; !ok {
		pc.ConnConfig.RuntimeParams["application_name"] = ApplicationName
	}
	return pc, nil
}

func orDefault[T comparable](v, def T) T {
	var zero T
	if v == zero {
		return def
	}
	return v
}

// NewConnection opens the pool and verifies it with a ping.
func NewConnection(ctx context.Context, cfg *Config) (*DB, error) {
	poolConfig, err := cfg.poolConfig()
	if err != nil {
		return nil, err
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}
	return &DB{Pool: pool}, nil
}

// startupRetry waits roughly half a minute for Postgres to accept connections.
func startupRetry() *retry.Config {
	cfg := retry.DefaultConfig()
	cfg.MaxRetries = 8
	cfg.InitialDelay = 250 * time.Millisecond
	cfg.MaxSameErrorType = 0
	return cfg
}

// ConnectWithRetry calls NewConnection until Postgres accepts connections.
// Permanent failures such as bad credentials are returned immediately.
func ConnectWithRetry(ctx context.Context, cfg *Config, logger *zap.Logger) (*DB, error) {
	var (
		db      *DB
		attempt int
	)
	err := retry.DoIfRetryable(ctx, startupRetry(), func() error {
		attempt++
		var err error
		db, err = NewConnection(ctx, cfg)
		if err != nil {
			logger.Warn("Database connection attempt failed",
				zap.Int("attempt", attempt),
				zap.Bool("retryable", retry.IsRetryable(err)),
				zap.Error(err))
		}
		return err
	})
	if err != nil {
		return nil, err
	}
	return db, nil
}

// SQLDB returns a database/sql handle backed by the pool, for golang-migrate.
// Closing it leaves the pool open.
func (db *DB) SQLDB() *sql.DB {
	return stdlib.OpenDBFromPool(db.Pool)
}

// Close closes the connection pool.
func (db *DB) Close() {
	db.Pool.Close()
}
