// Package db provides PostgreSQL access for extractor definitions and
// extraction results.
//
// The store expects the following tables. Migrations are managed outside
// this repository.
//
//	CREATE TABLE extractors (
//	    id          UUID PRIMARY KEY DEFAULT gen_random_uuid(),
//	    owner_id    TEXT NOT NULL,
//	    name        VARCHAR(255) NOT NULL,
//	    description VARCHAR(1000) NOT NULL DEFAULT '',
//	    instruction TEXT NOT NULL DEFAULT '',
//	    json_schema JSONB NOT NULL,
//	    examples    JSONB NOT NULL DEFAULT '[]',
//	    created_at  TIMESTAMPTZ NOT NULL DEFAULT NOW(),
//	    updated_at  TIMESTAMPTZ NOT NULL DEFAULT NOW()
//	);
//
//	CREATE TABLE extraction_runs (
//	    id               UUID PRIMARY KEY DEFAULT gen_random_uuid(),
//	    extractor_id     UUID NOT NULL REFERENCES extractors(id) ON DELETE CASCADE,
//	    model_name       TEXT NOT NULL,
//	    mode             TEXT NOT NULL,
//	    source           TEXT NOT NULL DEFAULT '',
//	    records          JSONB NOT NULL,
//	    content_too_long BOOLEAN NOT NULL DEFAULT FALSE,
//	    created_at       TIMESTAMPTZ NOT NULL DEFAULT NOW()
//	);
package db

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ErrNotFound is returned when a requested row does not exist.
var ErrNotFound = errors.New("not found")

// DB wraps a PostgreSQL connection pool
type DB struct {
	pool *pgxpool.Pool
}

// Connect establishes a connection pool to the database
func Connect(ctx context.Context, databaseURL string) (*DB, error) {
	if databaseURL == "" {
		return nil, fmt.Errorf("database URL is required")
	}
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	// Verify connection
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &DB{pool: pool}, nil
}

// Close closes the connection pool
func (db *DB) Close() {
	if db.pool != nil {
		db.pool.Close()
	}
}

// notFound maps pgx.ErrNoRows to ErrNotFound, wrapping other errors with msg.
func notFound(err error, msg string) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return fmt.Errorf("%s: %w", msg, ErrNotFound)
	}
	return fmt.Errorf("%s: %w", msg, err)
}
