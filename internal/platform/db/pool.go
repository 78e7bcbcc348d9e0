package db

import (
	"context"
	"fmt"
	"regexp"

	"github.com/jackc/pgx/v5/pgxpool"
)

// PoolConfig describes the single connection pool backing the record store.
type PoolConfig struct {
	URL      string
	MaxConns int32
	MinConns int32
	// Schema is placed first on every connection's search_path.
	Schema string
}

var schemaPattern = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_]*$`)

// ValidSchema reports whether name is a plain SQL identifier safe to interpolate.
func ValidSchema(name string) bool {
	return schemaPattern.MatchString(name)
}

func NewPool(ctx context.Context, pc PoolConfig) (*pgxpool.Pool, error) {
	cfg, err := pgxpool.ParseConfig(pc.URL)
	if err != nil {
		return nil, fmt.Errorf("parse database url: %w", err)
	}

	if pc.MaxConns > 0 {
		cfg.MaxConns = pc.MaxConns
	}
	if pc.MinConns > 0 {
		cfg.MinConns = pc.MinConns
	}
	if pc.Schema != "" {
		if !ValidSchema(pc.Schema) {
			return nil, fmt.Errorf("invalid schema name %q", pc.Schema)
		}
		cfg.ConnConfig.RuntimeParams["search_path"] = pc.Schema + ", public"
	}
	// Timestamps are stored without zone; pin the session zone so NOW() is UTC.
	cfg.ConnConfig.RuntimeParams["timezone"] = "UTC"

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("create connection pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	return pool, nil
}
