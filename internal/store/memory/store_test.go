package memory

import (
	"context"
	"strconv"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pgoodall/tagtally/internal/tally"
)

func TestInsertIsFirstWriteWins(t *testing.T) {
	t.Parallel()

	s := New()
	ctx := context.Background()

	require.NoError(t, s.Insert(ctx, tally.NewSuccess("https://a.test/", 2)))
	require.NoError(t, s.Insert(ctx, tally.NewFailed("https://a.test/")))

	all, err := s.All(ctx)
	require.NoError(t, err)
	require.Len(t, all, 1)
	assert.Equal(t, tally.StatusSuccess, all[0].Status)
}

func TestExists(t *testing.T) {
	t.Parallel()

	s := New()
	ctx := context.Background()

	ok, err := s.Exists(ctx, "https://a.test/")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, s.Insert(ctx, tally.NewFailed("https://a.test/")))

	ok, err = s.Exists(ctx, "https://a.test/")
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestConcurrentWriters(t *testing.T) {
	t.Parallel()

	s := New()
	ctx := context.Background()

	const n = 100
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_ = s.Insert(ctx, tally.NewSuccess("https://site.test/"+strconv.Itoa(i), i))
		}(i)
	}
	wg.Wait()

	all, err := s.All(ctx)
	require.NoError(t, err)
	assert.Len(t, all, n)
}
