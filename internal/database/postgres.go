package database

import (
	"context"
	_ "embed"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

//go:embed schema/postgres.sql
var postgresSchema string

// PoolConfig describes a Postgres connection pool.
type PoolConfig struct {
	DSN      string
	MaxConns int
	// ViaBouncer switches to the simple protocol for transaction-mode
	// PgBouncer, which cannot hold prepared statements.
	ViaBouncer bool
}

// OpenPool connects to Postgres and verifies the connection.
func OpenPool(ctx context.Context, cfg PoolConfig) (*pgxpool.Pool, error) {
	pc, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("database: parse pg dsn: %w", err)
	}
	maxConns := cfg.MaxConns
	if maxConns <= 0 {
		maxConns = 2
	}
	pc.MaxConns = int32(maxConns)
	if cfg.ViaBouncer {
		pc.ConnConfig.DefaultQueryExecMode = pgx.QueryExecModeSimpleProtocol
	}

	pool, err := pgxpool.NewWithConfig(ctx, pc)
	if err != nil {
		return nil, fmt.Errorf("database: pg connect: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("database: pg ping: %w", err)
	}
	return pool, nil
}

// MigratePool applies the embedded Postgres schema. It is idempotent.
func MigratePool(ctx context.Context, pool *pgxpool.Pool) error {
	if _, err := pool.Exec(ctx, postgresSchema); err != nil {
		return fmt.Errorf("database: apply postgres schema: %w", err)
	}
	return nil
}
