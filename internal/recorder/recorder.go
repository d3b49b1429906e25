// Package recorder owns the outcome write path.
package recorder

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"

	systemclock "github.com/pgoodall/tagtally/internal/clock/system"
	"github.com/pgoodall/tagtally/internal/progress"
	"github.com/pgoodall/tagtally/internal/tally"
)

// Recorder serializes concurrent outcome writes into the store. Workers
// hold a Recorder, never the store itself, so the store's write discipline
// has a single owner.
type Recorder struct {
	store   tally.OutcomeStore
	emitter progress.Emitter
	runID   uuid.UUID
	clock   tally.Clock
	logger  *zap.Logger
}

// New constructs a Recorder bound to one run. A nil clock falls back to
// the system clock.
func New(store tally.OutcomeStore, emitter progress.Emitter, runID uuid.UUID, clock tally.Clock, logger *zap.Logger) *Recorder {
	if clock == nil {
		clock = systemclock.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Recorder{
		store:   store,
		emitter: emitter,
		runID:   runID,
		clock:   clock,
		logger:  logger,
	}
}

// Record commits one outcome. The existence re-check elides writes for URLs
// that completed elsewhere after dispatch; it is best effort only, since
// Insert is itself idempotent. Storage errors are returned untouched: they
// are infrastructure faults that must abort the batch. The detail never
// reaches the store; it feeds the progress stream.
func (r *Recorder) Record(ctx context.Context, outcome tally.Outcome, detail tally.RecordDetail) error {
	if err := outcome.Validate(); err != nil {
		return fmt.Errorf("validate outcome: %w", err)
	}

	exists, err := r.store.Exists(ctx, outcome.URL)
	if err != nil {
		return fmt.Errorf("check outcome existence: %w", err)
	}
	if exists {
		r.logger.Debug("outcome already recorded, skipping write", zap.String("url", outcome.URL))
		return nil
	}

	if err := r.store.Insert(ctx, outcome); err != nil {
		return fmt.Errorf("insert outcome: %w", err)
	}

	if r.emitter != nil {
		count := 0
		if outcome.ScriptCount != nil {
			count = *outcome.ScriptCount
		}
		r.emitter.Emit(progress.Event{
			RunID:       r.runID,
			TS:          r.clock.Now(),
			Stage:       progress.StageURLDone,
			URL:         outcome.URL,
			Status:      outcome.Status,
			ScriptCount: count,
			Reason:      detail.Reason,
			Dur:         detail.FetchDuration,
		})
	}
	return nil
}
