package metrics

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInitIsIdempotent(t *testing.T) {
	Init()
	Init()

	require.NotNil(t, urlsTotal)
	require.NotNil(t, fetchFailuresTotal)
	require.NotNil(t, activeWorkers)
}

func TestObserversDoNotPanic(t *testing.T) {
	Init()

	ObserveOutcome("Success", 3)
	ObserveOutcome("Failed", 0)
	ObserveFetchFailure("timeout")
	ObserveFetchDuration(150 * time.Millisecond)
	IncActiveWorkers()
	DecActiveWorkers()
}

func TestHandlerServesMetrics(t *testing.T) {
	Init()
	ObserveOutcome("Success", 1)

	rec := httptest.NewRecorder()
	Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, strings.Contains(rec.Body.String(), "tagtally_urls_total"))
}
