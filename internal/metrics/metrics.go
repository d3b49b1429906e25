// Package metrics exposes Prometheus collectors for batch runs.
package metrics

import (
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	urlsTotal            *prometheus.CounterVec
	fetchFailuresTotal   *prometheus.CounterVec
	fetchDurationSeconds prometheus.Histogram
	activeWorkers        prometheus.Gauge
	scriptTagsObserved   prometheus.Counter

	once sync.Once
)

// Init initializes the Prometheus collectors. It is safe to call multiple
// times.
func Init() {
	once.Do(func() {
		urlsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "tagtally_urls_total",
				Help: "Total URLs processed, labeled by outcome status.",
			},
			[]string{"status"},
		)

		fetchFailuresTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "tagtally_fetch_failures_total",
				Help: "Fetch failures, labeled by failure reason.",
			},
			[]string{"reason"},
		)

		fetchDurationSeconds = promauto.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "tagtally_fetch_duration_seconds",
				Help:    "Histogram of per-URL fetch latencies.",
				Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10, 30},
			},
		)

		activeWorkers = promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "tagtally_active_workers",
				Help: "Number of workers currently processing a URL.",
			},
		)

		scriptTagsObserved = promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "tagtally_script_tags_total",
				Help: "Running total of script tags counted across pages.",
			},
		)
	})
}

// Handler returns an http.Handler exposing the Prometheus metrics.
func Handler() http.Handler {
	return promhttp.Handler()
}

// ObserveOutcome increments the per-status URL counter and, for successes,
// the running tag total.
func ObserveOutcome(status string, scriptCount int) {
	urlsTotal.WithLabelValues(status).Inc()
	if scriptCount > 0 {
		scriptTagsObserved.Add(float64(scriptCount))
	}
}

// ObserveFetchFailure increments the failure counter for the given reason.
func ObserveFetchFailure(reason string) {
	fetchFailuresTotal.WithLabelValues(reason).Inc()
}

// ObserveFetchDuration records how long one fetch took.
func ObserveFetchDuration(d time.Duration) {
	fetchDurationSeconds.Observe(d.Seconds())
}

// IncActiveWorkers increments the active workers gauge.
func IncActiveWorkers() {
	activeWorkers.Inc()
}

// DecActiveWorkers decrements the active workers gauge.
func DecActiveWorkers() {
	activeWorkers.Dec()
}
