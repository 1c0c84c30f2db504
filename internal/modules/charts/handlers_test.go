package charts

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRouter(t *testing.T, fetcher Fetcher) *chi.Mux {
	t.Helper()
	handlers := NewHandlers(newTestService(t, fetcher), zerolog.Nop())

	r := chi.NewRouter()
	r.Get("/api/charts/{symbol}", handlers.HandleGetChart)
	r.Get("/api/charts/{symbol}/stats", handlers.HandleGetStats)
	return r
}

func TestHandleGetChartFallsBackOnFeedFailure(t *testing.T) {
	router := newTestRouter(t, &stubFetcher{err: errors.New("feed down")})

	req := httptest.NewRequest(http.MethodGet, "/api/charts/GOOG?range=1Y", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code, "a dead feed must still produce a chart")

	var data ChartData
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &data))
	assert.Equal(t, "GOOG", data.Symbol)
	assert.True(t, data.Synthetic)
	assert.NotEmpty(t, data.Bars)
	assert.Equal(t, len(data.Bars), len(data.SMALong))
}

func TestHandleGetChartWindowed(t *testing.T) {
	router := newTestRouter(t, &stubFetcher{err: errors.New("feed down")})

	req := httptest.NewRequest(http.MethodGet, "/api/charts/GOOG?start=100&count=50", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)

	var data ChartData
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &data))
	assert.Len(t, data.Bars, 50)
	assert.Len(t, data.SMAShort, 50)
	assert.Len(t, data.SMALong, 50)
	for _, ev := range data.Events {
		assert.GreaterOrEqual(t, ev.Index, 0, "events must be window-relative")
		assert.Less(t, ev.Index, 50)
	}
}

func TestHandleGetChartWindowedDefaultsToTail(t *testing.T) {
	router := newTestRouter(t, &stubFetcher{err: errors.New("feed down")})

	// Without start the window trails the series end.
	req := httptest.NewRequest(http.MethodGet, "/api/charts/GOOG?count=30", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)

	var windowed ChartData
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &windowed))
	require.Len(t, windowed.Bars, 30)

	// Compare against the full series: the tail must match.
	full := httptest.NewRecorder()
	router.ServeHTTP(full, httptest.NewRequest(http.MethodGet, "/api/charts/GOOG", nil))
	var fullData ChartData
	require.NoError(t, json.Unmarshal(full.Body.Bytes(), &fullData))

	assert.Equal(t, fullData.Bars[len(fullData.Bars)-30:], windowed.Bars)
}

func TestHandleGetChartRejectsBadWindow(t *testing.T) {
	router := newTestRouter(t, &stubFetcher{err: errors.New("feed down")})

	for _, query := range []string{"count=0", "count=abc", "start=-1&count=10"} {
		req := httptest.NewRequest(http.MethodGet, "/api/charts/GOOG?"+query, nil)
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusBadRequest, rec.Code, "query %q", query)
	}
}

func TestHandleGetChartRejectsBadPeriod(t *testing.T) {
	router := newTestRouter(t, &stubFetcher{err: errors.New("feed down")})

	req := httptest.NewRequest(http.MethodGet, "/api/charts/GOOG?period=abc", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHandleGetStats(t *testing.T) {
	router := newTestRouter(t, &stubFetcher{err: errors.New("feed down")})

	req := httptest.NewRequest(http.MethodGet, "/api/charts/GOOG/stats", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)

	var stats ChartStats
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &stats))
	assert.Equal(t, "GOOG", stats.Symbol)
	assert.NotNil(t, stats.RSI14)
}
