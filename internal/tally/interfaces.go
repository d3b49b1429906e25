package tally

import (
	"context"
	"time"
)

// OutcomeStore persists per-URL outcomes. Implementations must tolerate
// concurrent Insert calls for distinct keys and treat a duplicate Insert for
// an existing key as a no-op, never as a second row.
type OutcomeStore interface {
	// Exists reports whether a committed record for url is present.
	Exists(ctx context.Context, url string) (bool, error)
	// Insert writes an outcome if its key is absent. Existing keys are left
	// untouched; only storage-layer faults return an error.
	Insert(ctx context.Context, outcome Outcome) error
	// All enumerates every committed outcome. Ordering is unspecified.
	All(ctx context.Context) ([]Outcome, error)
	Close() error
}

// Fetcher performs one bounded-time network request. Per-URL failures are
// reported inside the FetchResult; the error return is reserved for context
// cancellation and infrastructure faults.
type Fetcher interface {
	Fetch(ctx context.Context, url string) (FetchResult, error)
}

// Extractor counts occurrences of the target tag in raw HTML. Malformed
// input yields zero rather than an error.
type Extractor interface {
	Count(body []byte) int
}

// RecordDetail carries per-URL diagnostics that accompany a write but are
// never persisted: the closed failure kind and the observed fetch latency.
type RecordDetail struct {
	Reason        string
	FetchDuration time.Duration
}

// Recorder owns the store write path. Workers hold a Recorder, never the
// store itself.
type Recorder interface {
	Record(ctx context.Context, outcome Outcome, detail RecordDetail) error
}

// Clock returns the current time (useful for testing).
type Clock interface {
	Now() time.Time
}
