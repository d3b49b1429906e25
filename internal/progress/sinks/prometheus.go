package sinks

import (
	"context"

	"github.com/pgoodall/tagtally/internal/metrics"
	"github.com/pgoodall/tagtally/internal/progress"
	"github.com/pgoodall/tagtally/internal/tally"
)

// PrometheusSink feeds URL completion events into the shared Prometheus
// collectors. It is the single place outcome counters are incremented, so
// recorded outcomes and metrics cannot drift apart.
type PrometheusSink struct{}

// NewPrometheusSink initializes the collectors and returns the sink.
func NewPrometheusSink() *PrometheusSink {
	metrics.Init()
	return &PrometheusSink{}
}

// Consume updates the collectors from the batch.
func (s *PrometheusSink) Consume(_ context.Context, batch []progress.Event) error {
	for _, evt := range batch {
		if evt.Stage != progress.StageURLDone {
			continue
		}
		metrics.ObserveOutcome(string(evt.Status), evt.ScriptCount)
		if evt.Status == tally.StatusFailed && evt.Reason != "" {
			metrics.ObserveFetchFailure(evt.Reason)
		}
		if evt.Dur > 0 {
			metrics.ObserveFetchDuration(evt.Dur)
		}
	}
	return nil
}

// Close implements the Sink interface; it performs no action.
func (s *PrometheusSink) Close(context.Context) error {
	return nil
}
