// Package worker implements the per-URL fetch pipeline.
package worker

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/pgoodall/tagtally/internal/metrics"
	"github.com/pgoodall/tagtally/internal/tally"
)

// Worker drains URLs from its feed and executes fetch → extract → record
// for each. A worker processes one URL at a time to completion; once a URL
// is picked up it runs through all three stages before the next is taken.
type Worker struct {
	fetcher   tally.Fetcher
	extractor tally.Extractor
	recorder  tally.Recorder
	logger    *zap.Logger
}

// New constructs a Worker.
func New(fetcher tally.Fetcher, extractor tally.Extractor, recorder tally.Recorder, logger *zap.Logger) *Worker {
	if logger == nil {
		logger = zap.NewNop()
	}
	metrics.Init()
	return &Worker{
		fetcher:   fetcher,
		extractor: extractor,
		recorder:  recorder,
		logger:    logger,
	}
}

// Run consumes the feed until it closes or the context ends. Per-URL
// failures are converted to Failed outcomes and never returned; only
// storage faults (and cancellation) propagate, which aborts the pool.
func (w *Worker) Run(ctx context.Context, feed <-chan string) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case url, ok := <-feed:
			if !ok {
				return nil
			}
			if err := w.process(ctx, url); err != nil {
				return err
			}
		}
	}
}

func (w *Worker) process(ctx context.Context, url string) error {
	metrics.IncActiveWorkers()
	defer metrics.DecActiveWorkers()

	start := time.Now()
	result, err := w.fetcher.Fetch(ctx, url)
	if err != nil {
		return fmt.Errorf("fetch %s: %w", url, err)
	}
	dur := time.Since(start)

	var (
		outcome tally.Outcome
		detail  = tally.RecordDetail{FetchDuration: dur}
	)
	if result.Failure != nil {
		w.logger.Warn("url failed",
			zap.String("url", url),
			zap.String("reason", result.Failure.String()),
		)
		outcome = tally.NewFailed(url)
		detail.Reason = string(result.Failure.Kind)
	} else {
		count := w.extractor.Count(result.Body)
		w.logger.Debug("url processed",
			zap.String("url", url),
			zap.Int("script_count", count),
			zap.Duration("dur", dur),
		)
		outcome = tally.NewSuccess(url, count)
	}

	if err := w.recorder.Record(ctx, outcome, detail); err != nil {
		return fmt.Errorf("record outcome for %s: %w", url, err)
	}
	return nil
}
