// Package postgres provides a Postgres-backed outcome store for shared
// deployments where a single sqlite file is not enough.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/pgoodall/tagtally/internal/tally"
)

// Config controls the Postgres connection pool.
type Config struct {
	DSN             string
	MaxConns        int32
	MaxConnLifetime time.Duration
}

// pgxIface is the slice of pgxpool.Pool the store uses; pgxmock implements
// it for tests.
type pgxIface interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Close()
}

// Store writes outcome rows into Postgres.
type Store struct {
	pool pgxIface
}

const schema = `
CREATE TABLE IF NOT EXISTS outcomes (
	url TEXT PRIMARY KEY,
	script_count INTEGER,
	status TEXT NOT NULL
);
`

// New creates a Postgres-backed Store and ensures the schema exists.
func New(ctx context.Context, cfg Config) (*Store, error) {
	if cfg.DSN == "" {
		return nil, fmt.Errorf("store.dsn is required")
	}
	poolCfg, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("parse postgres dsn: %w", err)
	}
	if cfg.MaxConns > 0 {
		poolCfg.MaxConns = cfg.MaxConns
	}
	if cfg.MaxConnLifetime > 0 {
		poolCfg.MaxConnLifetime = cfg.MaxConnLifetime
	}
	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	s := &Store{pool: pool}
	if _, err := pool.Exec(ctx, schema); err != nil {
		pool.Close()
		return nil, fmt.Errorf("init schema: %w", err)
	}
	return s, nil
}

// NewWithPool constructs a store from an existing pool (primarily for
// testing with pgxmock).
func NewWithPool(pool pgxIface) (*Store, error) {
	if pool == nil {
		return nil, fmt.Errorf("pool is required")
	}
	return &Store{pool: pool}, nil
}

// Exists reports whether a committed record for url is present.
func (s *Store) Exists(ctx context.Context, url string) (bool, error) {
	var one int
	err := s.pool.QueryRow(ctx, `SELECT 1 FROM outcomes WHERE url = $1`, url).Scan(&one)
	switch {
	case errors.Is(err, pgx.ErrNoRows):
		return false, nil
	case err != nil:
		return false, fmt.Errorf("query outcome existence: %w", err)
	default:
		return true, nil
	}
}

// Insert writes the outcome if absent; existing keys are left untouched.
func (s *Store) Insert(ctx context.Context, outcome tally.Outcome) error {
	if err := outcome.Validate(); err != nil {
		return err
	}
	var count *int
	if outcome.ScriptCount != nil {
		c := *outcome.ScriptCount
		count = &c
	}
	_, err := s.pool.Exec(ctx,
		`INSERT INTO outcomes (url, script_count, status) VALUES ($1, $2, $3)
		 ON CONFLICT (url) DO NOTHING`,
		outcome.URL, count, string(outcome.Status),
	)
	if err != nil {
		return fmt.Errorf("insert outcome: %w", err)
	}
	return nil
}

// All enumerates every committed outcome in unspecified order.
func (s *Store) All(ctx context.Context) ([]tally.Outcome, error) {
	rows, err := s.pool.Query(ctx, `SELECT url, script_count, status FROM outcomes`)
	if err != nil {
		return nil, fmt.Errorf("query outcomes: %w", err)
	}
	defer rows.Close()

	var out []tally.Outcome
	for rows.Next() {
		var (
			o     tally.Outcome
			count *int32
		)
		if err := rows.Scan(&o.URL, &count, &o.Status); err != nil {
			return nil, fmt.Errorf("scan outcome: %w", err)
		}
		if count != nil {
			c := int(*count)
			o.ScriptCount = &c
		}
		out = append(out, o)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate outcomes: %w", err)
	}
	return out, nil
}

// Close releases the underlying pool resources.
func (s *Store) Close() error {
	s.pool.Close()
	return nil
}
