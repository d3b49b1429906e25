// Package dispatcher contains tests for worker pool coordination.
package dispatcher

import (
	"context"
	"errors"
	"strconv"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/pgoodall/tagtally/internal/tally"
	"github.com/pgoodall/tagtally/internal/worker"
)

type countingFetcher struct {
	mu    sync.Mutex
	calls map[string]int
	fail  map[string]tally.FailureKind
}

func newCountingFetcher() *countingFetcher {
	return &countingFetcher{calls: make(map[string]int), fail: make(map[string]tally.FailureKind)}
}

func (f *countingFetcher) Fetch(_ context.Context, url string) (tally.FetchResult, error) {
	f.mu.Lock()
	f.calls[url]++
	kind, failed := f.fail[url]
	f.mu.Unlock()
	if failed {
		return tally.FetchResult{URL: url, Failure: &tally.Failure{Kind: kind}}, nil
	}
	return tally.FetchResult{URL: url, StatusCode: 200, Body: []byte("<script></script>")}, nil
}

type oneExtractor struct{}

func (oneExtractor) Count([]byte) int { return 1 }

type memRecorder struct {
	mu       sync.Mutex
	outcomes map[string]tally.Outcome
	err      error
}

func newMemRecorder() *memRecorder {
	return &memRecorder{outcomes: make(map[string]tally.Outcome)}
}

func (r *memRecorder) Record(_ context.Context, o tally.Outcome, _ tally.RecordDetail) error {
	if r.err != nil {
		return r.err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.outcomes[o.URL]; ok {
		return errors.New("duplicate record for " + o.URL)
	}
	r.outcomes[o.URL] = o
	return nil
}

func buildPool(t *testing.T, n int, fetcher tally.Fetcher, rec tally.Recorder) *Dispatcher {
	t.Helper()
	workers := make([]*worker.Worker, 0, n)
	for i := 0; i < n; i++ {
		workers = append(workers, worker.New(fetcher, oneExtractor{}, rec, zap.NewNop()))
	}
	d, err := New(workers, zap.NewNop())
	require.NoError(t, err)
	return d
}

func TestNewRejectsEmptyPool(t *testing.T) {
	t.Parallel()

	_, err := New(nil, zap.NewNop())
	require.Error(t, err)
}

// TestRunHundredURLsTenWorkers checks the pool records exactly one outcome
// per URL with no duplicates and no lost writes.
func TestRunHundredURLsTenWorkers(t *testing.T) {
	t.Parallel()

	urls := make([]string, 100)
	for i := range urls {
		urls[i] = "https://site.test/page/" + strconv.Itoa(i)
	}

	fetcher := newCountingFetcher()
	rec := newMemRecorder()
	d := buildPool(t, 10, fetcher, rec)

	require.NoError(t, d.Run(context.Background(), urls))

	require.Len(t, rec.outcomes, 100)
	for _, url := range urls {
		o, ok := rec.outcomes[url]
		require.True(t, ok, "missing outcome for %s", url)
		assert.Equal(t, tally.StatusSuccess, o.Status)
		assert.Equal(t, 1, fetcher.calls[url], "url %s fetched more than once", url)
	}
}

// TestRunIsolatesFailures injects fetch failures for some URLs and checks
// the rest still complete.
func TestRunIsolatesFailures(t *testing.T) {
	t.Parallel()

	fetcher := newCountingFetcher()
	fetcher.fail["https://bad.test/"] = tally.FailureTimeout

	urls := []string{"https://a.test/", "https://bad.test/", "https://b.test/", "https://c.test/"}
	rec := newMemRecorder()
	d := buildPool(t, 2, fetcher, rec)

	require.NoError(t, d.Run(context.Background(), urls))

	require.Len(t, rec.outcomes, 4)
	assert.Equal(t, tally.StatusFailed, rec.outcomes["https://bad.test/"].Status)
	for _, u := range []string{"https://a.test/", "https://b.test/", "https://c.test/"} {
		assert.Equal(t, tally.StatusSuccess, rec.outcomes[u].Status)
	}
}

func TestRunAbortsOnStorageFault(t *testing.T) {
	t.Parallel()

	rec := newMemRecorder()
	rec.err = errors.New("disk I/O error")
	d := buildPool(t, 4, newCountingFetcher(), rec)

	urls := make([]string, 20)
	for i := range urls {
		urls[i] = "https://site.test/" + strconv.Itoa(i)
	}

	err := d.Run(context.Background(), urls)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "disk I/O error")
}

func TestRunEmptyPendingSet(t *testing.T) {
	t.Parallel()

	d := buildPool(t, 3, newCountingFetcher(), newMemRecorder())
	require.NoError(t, d.Run(context.Background(), nil))
}
