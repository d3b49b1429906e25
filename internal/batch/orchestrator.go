// Package batch owns the end-to-end run lifecycle.
package batch

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/pgoodall/tagtally/internal/loader"
	"github.com/pgoodall/tagtally/internal/progress"
	"github.com/pgoodall/tagtally/internal/tally"
)

// Phase is the lifecycle state of a run.
type Phase string

// Run phases. Aborted is terminal and reachable from any phase on a
// store-layer fault.
const (
	PhaseIdle        Phase = "idle"
	PhaseLoading     Phase = "loading"
	PhaseDiffing     Phase = "diffing"
	PhaseDispatching Phase = "dispatching"
	PhaseDraining    Phase = "draining"
	PhaseExporting   Phase = "exporting"
	PhaseDone        Phase = "done"
	PhaseAborted     Phase = "aborted"
)

// URLSource produces the raw URL list for a run.
type URLSource interface {
	Load() ([]string, error)
}

// Pool runs the worker pool to completion over the pending set.
type Pool interface {
	Run(ctx context.Context, pending []string) error
}

// Exporter writes the final snapshot.
type Exporter interface {
	Write(outcomes []tally.Outcome) error
}

// Orchestrator drives one batch run: load, diff, dispatch, drain, export.
type Orchestrator struct {
	source   URLSource
	store    tally.OutcomeStore
	pool     Pool
	exporter Exporter
	emitter  progress.Emitter
	clock    tally.Clock
	runID    uuid.UUID
	logger   *zap.Logger

	phase atomic.Value
}

// New constructs an Orchestrator for a single run.
func New(
	source URLSource,
	store tally.OutcomeStore,
	pool Pool,
	exporter Exporter,
	emitter progress.Emitter,
	clock tally.Clock,
	runID uuid.UUID,
	logger *zap.Logger,
) *Orchestrator {
	if logger == nil {
		logger = zap.NewNop()
	}
	o := &Orchestrator{
		source:   source,
		store:    store,
		pool:     pool,
		exporter: exporter,
		emitter:  emitter,
		clock:    clock,
		runID:    runID,
		logger:   logger,
	}
	o.phase.Store(PhaseIdle)
	return o
}

// Phase returns the current lifecycle state. Safe for concurrent use; the
// ops endpoint polls it while a run is in flight.
func (o *Orchestrator) Phase() Phase {
	return o.phase.Load().(Phase)
}

func (o *Orchestrator) setPhase(p Phase) {
	o.phase.Store(p)
	o.logger.Info("run phase changed",
		zap.String("run_id", o.runID.String()),
		zap.String("phase", string(p)),
	)
}

// Run executes the batch to completion. Per-URL failures are absorbed by
// the pool; any error that reaches here is a configuration or storage
// fault, which leaves the run Aborted. Outcomes recorded before an abort
// remain committed and resumable.
func (o *Orchestrator) Run(ctx context.Context) error {
	started := o.clock.Now()
	o.emit(progress.Event{RunID: o.runID, TS: started, Stage: progress.StageRunStart})

	o.setPhase(PhaseLoading)
	urls, err := o.source.Load()
	if err != nil {
		return o.abort(fmt.Errorf("load urls: %w", err))
	}
	urls = loader.Dedupe(urls)
	o.logger.Info("url list loaded",
		zap.String("run_id", o.runID.String()),
		zap.Int("unique_urls", len(urls)),
	)

	o.setPhase(PhaseDiffing)
	pending, err := o.pendingSet(ctx, urls)
	if err != nil {
		return o.abort(fmt.Errorf("compute pending set: %w", err))
	}

	if len(pending) == 0 {
		o.logger.Info("all urls already processed", zap.String("run_id", o.runID.String()))
	} else {
		o.logger.Info("dispatching pending urls",
			zap.String("run_id", o.runID.String()),
			zap.Int("pending", len(pending)),
		)
		o.setPhase(PhaseDispatching)
		poolErr := make(chan error, 1)
		go func() {
			poolErr <- o.pool.Run(ctx, pending)
		}()
		// All work is handed off; from here the run just waits for the
		// pool to finish recording.
		o.setPhase(PhaseDraining)
		if err := <-poolErr; err != nil {
			return o.abort(err)
		}
	}

	o.setPhase(PhaseExporting)
	outcomes, err := o.store.All(ctx)
	if err != nil {
		return o.abort(fmt.Errorf("enumerate outcomes: %w", err))
	}
	if err := o.exporter.Write(outcomes); err != nil {
		return o.abort(fmt.Errorf("export snapshot: %w", err))
	}

	o.setPhase(PhaseDone)
	dur := o.clock.Now().Sub(started)
	o.emit(progress.Event{RunID: o.runID, TS: o.clock.Now(), Stage: progress.StageRunDone, Dur: dur})
	o.logSummary(outcomes, dur)
	return nil
}

// pendingSet filters out URLs that already have a committed outcome. The
// set is computed once and stays fixed for the run.
func (o *Orchestrator) pendingSet(ctx context.Context, urls []string) ([]string, error) {
	pending := make([]string, 0, len(urls))
	for _, url := range urls {
		exists, err := o.store.Exists(ctx, url)
		if err != nil {
			return nil, err
		}
		if !exists {
			pending = append(pending, url)
		}
	}
	return pending, nil
}

func (o *Orchestrator) abort(err error) error {
	o.setPhase(PhaseAborted)
	o.emit(progress.Event{
		RunID: o.runID,
		TS:    o.clock.Now(),
		Stage: progress.StageRunError,
		Note:  err.Error(),
	})
	o.logger.Error("run aborted",
		zap.String("run_id", o.runID.String()),
		zap.Error(err),
	)
	return fmt.Errorf("batch run: %w", err)
}

func (o *Orchestrator) emit(evt progress.Event) {
	if o.emitter != nil {
		o.emitter.Emit(evt)
	}
}

func (o *Orchestrator) logSummary(outcomes []tally.Outcome, dur time.Duration) {
	var succeeded, failed int
	for _, out := range outcomes {
		if out.Status == tally.StatusSuccess {
			succeeded++
		} else {
			failed++
		}
	}
	o.logger.Info("run complete",
		zap.String("run_id", o.runID.String()),
		zap.Int("recorded", len(outcomes)),
		zap.Int("succeeded", succeeded),
		zap.Int("failed", failed),
		zap.Duration("dur", dur),
	)
}
