// Package memory provides an in-memory outcome store for development and
// testing.
package memory

import (
	"context"
	"sync"

	"github.com/pgoodall/tagtally/internal/tally"
)

// Store keeps outcomes in a map guarded by a RWMutex. Insert-if-absent
// semantics match the durable backends so tests exercise the same contract.
type Store struct {
	mu       sync.RWMutex
	outcomes map[string]tally.Outcome
}

// New constructs an empty Store.
func New() *Store {
	return &Store{outcomes: make(map[string]tally.Outcome)}
}

// Exists reports whether a record for url has been committed.
func (s *Store) Exists(_ context.Context, url string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.outcomes[url]
	return ok, nil
}

// Insert stores the outcome unless its key is already present.
func (s *Store) Insert(_ context.Context, outcome tally.Outcome) error {
	if err := outcome.Validate(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.outcomes[outcome.URL]; ok {
		return nil
	}
	s.outcomes[outcome.URL] = outcome
	return nil
}

// All returns a copy of every committed outcome in unspecified order.
func (s *Store) All(_ context.Context) ([]tally.Outcome, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]tally.Outcome, 0, len(s.outcomes))
	for _, o := range s.outcomes {
		out = append(out, o)
	}
	return out, nil
}

// Close implements tally.OutcomeStore; there is nothing to release.
func (s *Store) Close() error { return nil }
