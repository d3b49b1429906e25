// Package progress defines the event stream emitted while a batch runs.
package progress

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/pgoodall/tagtally/internal/tally"
)

// Stage denotes the type of milestone represented by an Event.
type Stage string

// Supported progress stages.
const (
	StageRunStart Stage = "RUN_START"
	StageRunDone  Stage = "RUN_DONE"
	StageRunError Stage = "RUN_ERROR"
	StageURLDone  Stage = "URL_DONE"
)

// Event captures a single milestone of batch progress.
type Event struct {
	// RunID identifies the batch run the event belongs to.
	RunID uuid.UUID
	// TS is the UTC timestamp recorded by the emitter.
	TS time.Time
	// Stage denotes which milestone occurred.
	Stage Stage
	// URL is set for URL_DONE events.
	URL string
	// Status carries the recorded outcome status for URL_DONE events.
	Status tally.Status
	// Reason preserves the internal failure kind for failed URLs; it never
	// reaches the store, only logs and metrics.
	Reason string
	// ScriptCount is the counted tag total for successful URLs.
	ScriptCount int
	// Dur captures fetch latency for URL events and wall time for run
	// completion events.
	Dur time.Duration
	// Note lets emitters attach low-volume context (e.g. error text).
	Note string
}

// Validate performs coarse validation on Event payloads.
func (e Event) Validate() error {
	if e.RunID == uuid.Nil {
		return errors.New("run id is required")
	}
	if e.TS.IsZero() {
		return errors.New("timestamp is required")
	}
	switch e.Stage {
	case StageRunStart, StageRunDone, StageRunError:
	case StageURLDone:
		if e.URL == "" {
			return errors.New("url done requires url")
		}
		if e.Status != tally.StatusSuccess && e.Status != tally.StatusFailed {
			return fmt.Errorf("url done has unknown status %q", e.Status)
		}
	default:
		return fmt.Errorf("unknown stage %q", e.Stage)
	}
	if e.Dur < 0 {
		return errors.New("duration must be >= 0")
	}
	return nil
}
