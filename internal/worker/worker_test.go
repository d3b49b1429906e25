package worker

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/pgoodall/tagtally/internal/tally"
)

type stubFetcher struct {
	mu      sync.Mutex
	calls   int
	results map[string]tally.FetchResult
	err     error
}

func (f *stubFetcher) Fetch(_ context.Context, url string) (tally.FetchResult, error) {
	f.mu.Lock()
	f.calls++
	f.mu.Unlock()
	if f.err != nil {
		return tally.FetchResult{}, f.err
	}
	if r, ok := f.results[url]; ok {
		r.URL = url
		return r, nil
	}
	return tally.FetchResult{URL: url, StatusCode: 200, Body: []byte("<html></html>")}, nil
}

type fixedExtractor struct{ n int }

func (e fixedExtractor) Count([]byte) int { return e.n }

type captureRecorder struct {
	mu       sync.Mutex
	outcomes []tally.Outcome
	details  []tally.RecordDetail
	err      error
}

func (r *captureRecorder) Record(_ context.Context, o tally.Outcome, d tally.RecordDetail) error {
	if r.err != nil {
		return r.err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.outcomes = append(r.outcomes, o)
	r.details = append(r.details, d)
	return nil
}

func feedOf(urls ...string) <-chan string {
	ch := make(chan string, len(urls))
	for _, u := range urls {
		ch <- u
	}
	close(ch)
	return ch
}

func TestRunRecordsSuccess(t *testing.T) {
	t.Parallel()

	rec := &captureRecorder{}
	w := New(&stubFetcher{}, fixedExtractor{n: 3}, rec, zap.NewNop())

	require.NoError(t, w.Run(context.Background(), feedOf("https://a.test/")))

	require.Len(t, rec.outcomes, 1)
	o := rec.outcomes[0]
	assert.Equal(t, tally.StatusSuccess, o.Status)
	require.NotNil(t, o.ScriptCount)
	assert.Equal(t, 3, *o.ScriptCount)
}

func TestRunConvertsFetchFailure(t *testing.T) {
	t.Parallel()

	fetcher := &stubFetcher{results: map[string]tally.FetchResult{
		"https://bad.test/": {Failure: &tally.Failure{Kind: tally.FailureTimeout}},
	}}
	rec := &captureRecorder{}
	w := New(fetcher, fixedExtractor{n: 9}, rec, zap.NewNop())

	require.NoError(t, w.Run(context.Background(), feedOf("https://bad.test/")))

	require.Len(t, rec.outcomes, 1)
	assert.Equal(t, tally.StatusFailed, rec.outcomes[0].Status)
	assert.Nil(t, rec.outcomes[0].ScriptCount)
	require.Len(t, rec.details, 1)
	assert.Equal(t, string(tally.FailureTimeout), rec.details[0].Reason)
}

func TestRunFailureDoesNotStopRemainingURLs(t *testing.T) {
	t.Parallel()

	fetcher := &stubFetcher{results: map[string]tally.FetchResult{
		"https://bad.test/": {Failure: &tally.Failure{Kind: tally.FailureConnection}},
	}}
	rec := &captureRecorder{}
	w := New(fetcher, fixedExtractor{n: 1}, rec, zap.NewNop())

	require.NoError(t, w.Run(context.Background(), feedOf(
		"https://ok1.test/", "https://bad.test/", "https://ok2.test/",
	)))

	require.Len(t, rec.outcomes, 3)
	statuses := map[string]tally.Status{}
	for _, o := range rec.outcomes {
		statuses[o.URL] = o.Status
	}
	assert.Equal(t, tally.StatusSuccess, statuses["https://ok1.test/"])
	assert.Equal(t, tally.StatusFailed, statuses["https://bad.test/"])
	assert.Equal(t, tally.StatusSuccess, statuses["https://ok2.test/"])
}

func TestRunPropagatesRecorderError(t *testing.T) {
	t.Parallel()

	boom := errors.New("database is locked")
	w := New(&stubFetcher{}, fixedExtractor{}, &captureRecorder{err: boom}, zap.NewNop())

	err := w.Run(context.Background(), feedOf("https://a.test/"))
	require.ErrorIs(t, err, boom)
}

func TestRunStopsOnContextCancel(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	feed := make(chan string)
	w := New(&stubFetcher{}, fixedExtractor{}, &captureRecorder{}, zap.NewNop())
	err := w.Run(ctx, feed)
	require.ErrorIs(t, err, context.Canceled)
}
