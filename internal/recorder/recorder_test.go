package recorder

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/pgoodall/tagtally/internal/progress"
	"github.com/pgoodall/tagtally/internal/store/memory"
	"github.com/pgoodall/tagtally/internal/tally"
)

type fixedClock struct{ t time.Time }

func (c fixedClock) Now() time.Time { return c.t }

type captureEmitter struct {
	mu     sync.Mutex
	events []progress.Event
}

func (e *captureEmitter) Emit(evt progress.Event) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.events = append(e.events, evt)
}

func (e *captureEmitter) snapshot() []progress.Event {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]progress.Event(nil), e.events...)
}

func TestRecordWritesAndEmits(t *testing.T) {
	t.Parallel()

	store := memory.New()
	emitter := &captureEmitter{}
	clk := fixedClock{t: time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)}
	rec := New(store, emitter, uuid.New(), clk, zap.NewNop())

	err := rec.Record(context.Background(), tally.NewSuccess("https://a.test/", 3), tally.RecordDetail{})
	require.NoError(t, err)

	ok, err := store.Exists(context.Background(), "https://a.test/")
	require.NoError(t, err)
	assert.True(t, ok)

	events := emitter.snapshot()
	require.Len(t, events, 1)
	assert.Equal(t, progress.StageURLDone, events[0].Stage)
	assert.Equal(t, 3, events[0].ScriptCount)
	// Event timestamps come from the injected clock, not the wall clock.
	assert.Equal(t, clk.t, events[0].TS)
}

func TestRecordSkipsExistingKey(t *testing.T) {
	t.Parallel()

	store := memory.New()
	require.NoError(t, store.Insert(context.Background(), tally.NewSuccess("https://a.test/", 1)))

	emitter := &captureEmitter{}
	rec := New(store, emitter, uuid.New(), nil, zap.NewNop())

	err := rec.Record(context.Background(), tally.NewFailed("https://a.test/"), tally.RecordDetail{Reason: "timeout"})
	require.NoError(t, err)

	// The pre-existing outcome survives and no duplicate event fires.
	all, err := store.All(context.Background())
	require.NoError(t, err)
	require.Len(t, all, 1)
	assert.Equal(t, tally.StatusSuccess, all[0].Status)
	assert.Empty(t, emitter.snapshot())
}

func TestRecordRejectsInvalidOutcome(t *testing.T) {
	t.Parallel()

	rec := New(memory.New(), nil, uuid.New(), nil, zap.NewNop())
	err := rec.Record(context.Background(), tally.Outcome{URL: "u", Status: "Partial"}, tally.RecordDetail{})
	require.Error(t, err)
}

type faultyStore struct {
	*memory.Store
	existsErr error
	insertErr error
}

func (s *faultyStore) Exists(ctx context.Context, url string) (bool, error) {
	if s.existsErr != nil {
		return false, s.existsErr
	}
	return s.Store.Exists(ctx, url)
}

func (s *faultyStore) Insert(ctx context.Context, o tally.Outcome) error {
	if s.insertErr != nil {
		return s.insertErr
	}
	return s.Store.Insert(ctx, o)
}

func TestRecordPropagatesStorageFaults(t *testing.T) {
	t.Parallel()

	boom := errors.New("disk full")

	rec := New(&faultyStore{Store: memory.New(), existsErr: boom}, nil, uuid.New(), nil, zap.NewNop())
	err := rec.Record(context.Background(), tally.NewFailed("https://a.test/"), tally.RecordDetail{})
	require.ErrorIs(t, err, boom)

	rec = New(&faultyStore{Store: memory.New(), insertErr: boom}, nil, uuid.New(), nil, zap.NewNop())
	err = rec.Record(context.Background(), tally.NewFailed("https://a.test/"), tally.RecordDetail{})
	require.ErrorIs(t, err, boom)
}
