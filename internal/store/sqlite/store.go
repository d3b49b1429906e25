// Package sqlite provides the default file-backed outcome store.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	_ "github.com/mattn/go-sqlite3" // sqlite driver

	"github.com/pgoodall/tagtally/internal/tally"
)

const schema = `
CREATE TABLE IF NOT EXISTS outcomes (
	url TEXT PRIMARY KEY,
	script_count INTEGER,
	status TEXT NOT NULL CHECK (status IN ('Success','Failed'))
);
`

// Store persists outcomes in a single sqlite file. A single connection
// serializes all statements, so concurrent Insert calls from the recorder
// can never interleave at the sqlite level.
type Store struct {
	db *sql.DB
}

// Open opens (creating if needed) the sqlite database at path and ensures
// the schema exists.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(`PRAGMA journal_mode=WAL;`); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("enable wal: %w", err)
	}
	if _, err := db.Exec(`PRAGMA busy_timeout=5000;`); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("set busy timeout: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("init schema: %w", err)
	}
	return &Store{db: db}, nil
}

// Exists reports whether a committed record for url is present.
func (s *Store) Exists(ctx context.Context, url string) (bool, error) {
	var one int
	err := s.db.QueryRowContext(ctx, `SELECT 1 FROM outcomes WHERE url = ?`, url).Scan(&one)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		return false, nil
	case err != nil:
		return false, fmt.Errorf("query outcome existence: %w", err)
	default:
		return true, nil
	}
}

// Insert writes the outcome if absent. An existing key is a no-op: the
// store is append-only per URL and a re-run never overwrites history.
func (s *Store) Insert(ctx context.Context, outcome tally.Outcome) error {
	if err := outcome.Validate(); err != nil {
		return err
	}
	var count any
	if outcome.ScriptCount != nil {
		count = *outcome.ScriptCount
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO outcomes (url, script_count, status) VALUES (?, ?, ?)
		 ON CONFLICT(url) DO NOTHING`,
		outcome.URL, count, string(outcome.Status),
	)
	if err != nil {
		return fmt.Errorf("insert outcome: %w", err)
	}
	return nil
}

// All enumerates every committed outcome in unspecified order.
func (s *Store) All(ctx context.Context) ([]tally.Outcome, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT url, script_count, status FROM outcomes`)
	if err != nil {
		return nil, fmt.Errorf("query outcomes: %w", err)
	}
	defer rows.Close()

	var out []tally.Outcome
	for rows.Next() {
		var (
			o     tally.Outcome
			count sql.NullInt64
		)
		if err := rows.Scan(&o.URL, &count, &o.Status); err != nil {
			return nil, fmt.Errorf("scan outcome: %w", err)
		}
		if count.Valid {
			c := int(count.Int64)
			o.ScriptCount = &c
		}
		out = append(out, o)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate outcomes: %w", err)
	}
	return out, nil
}

// Close releases the underlying database handle.
func (s *Store) Close() error {
	if err := s.db.Close(); err != nil {
		return fmt.Errorf("close sqlite: %w", err)
	}
	return nil
}
