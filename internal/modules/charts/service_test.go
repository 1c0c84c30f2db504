package charts

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tickertap/tickertap/internal/clients/marketdata"
	"github.com/tickertap/tickertap/internal/config"
	"github.com/tickertap/tickertap/internal/events"
)

type stubFetcher struct {
	bars marketdata.OHLCV
	err  error
}

func (f *stubFetcher) FetchOHLCV(ctx context.Context, symbol, rng string) (*marketdata.OHLCV, error) {
	if f.err != nil {
		return nil, f.err
	}
	return &f.bars, nil
}

func testSettings() config.ChartSettings {
	return config.ChartSettings{
		DefaultRange:   "1Y",
		SMAShort:       20,
		SMALong:        50,
		DefaultTarget:  100.0,
		SyntheticYears: 2,
	}
}

func newTestService(t *testing.T, fetcher Fetcher) *Service {
	t.Helper()
	log := zerolog.Nop()
	cache := NewHistoryCache(t.TempDir(), log)
	gen := NewGenerator(42)
	return NewService(fetcher, cache, gen, events.NewManager(log), testSettings(), log)
}

func TestGetChartFromFeed(t *testing.T) {
	end := time.Date(2026, 8, 28, 0, 0, 0, 0, time.UTC)
	bars := NewGenerator(1).generate(120, 1, end)
	fetcher := &stubFetcher{bars: marketdata.OHLCV{Bars: bars}}

	svc := newTestService(t, fetcher)

	data, err := svc.GetChart(context.Background(), "AAPL", "1Y")
	require.NoError(t, err)

	assert.Equal(t, "AAPL", data.Symbol)
	assert.False(t, data.Synthetic)
	assert.Len(t, data.Bars, len(bars))
	assert.Len(t, data.SMAShort, len(bars))
	assert.Len(t, data.SMALong, len(bars))
}

func TestGetChartFallsBackToCache(t *testing.T) {
	end := time.Date(2026, 8, 28, 0, 0, 0, 0, time.UTC)
	bars := NewGenerator(2).generate(80, 1, end)

	log := zerolog.Nop()
	cache := NewHistoryCache(t.TempDir(), log)
	require.NoError(t, cache.Store("MSFT", bars))

	fetcher := &stubFetcher{err: errors.New("feed down")}
	svc := NewService(fetcher, cache, NewGenerator(42), events.NewManager(log), testSettings(), log)

	data, err := svc.GetChart(context.Background(), "MSFT", "1Y")
	require.NoError(t, err)

	assert.False(t, data.Synthetic, "cached history should win over synthetic")
	assert.Len(t, data.Bars, len(bars))
}

func TestGetChartFallsBackToSynthetic(t *testing.T) {
	fetcher := &stubFetcher{err: errors.New("feed down")}
	svc := newTestService(t, fetcher)

	data, err := svc.GetChart(context.Background(), "GOOG", "1Y")
	require.NoError(t, err, "the fallback ladder must never surface an error")

	assert.True(t, data.Synthetic)
	require.NotEmpty(t, data.Bars)
	// With no live quote seen, the synthetic series ends at the default target.
	assert.InDelta(t, testSettings().DefaultTarget, data.Bars[len(data.Bars)-1].Close, 0.005)
}

func TestGetChartSyntheticUsesLastQuote(t *testing.T) {
	fetcher := &stubFetcher{err: errors.New("feed down")}
	svc := newTestService(t, fetcher)

	svc.SetLastQuote("TSLA", 245.50)

	data, err := svc.GetChart(context.Background(), "TSLA", "1Y")
	require.NoError(t, err)

	require.True(t, data.Synthetic)
	assert.InDelta(t, 245.50, data.Bars[len(data.Bars)-1].Close, 0.005)
}

func TestGetChartCachesDerivedData(t *testing.T) {
	end := time.Date(2026, 8, 28, 0, 0, 0, 0, time.UTC)
	bars := NewGenerator(3).generate(100, 1, end)
	fetcher := &stubFetcher{bars: marketdata.OHLCV{Bars: bars}}

	svc := newTestService(t, fetcher)

	first, err := svc.GetChart(context.Background(), "AAPL", "1Y")
	require.NoError(t, err)
	second, err := svc.GetChart(context.Background(), "AAPL", "1Y")
	require.NoError(t, err)

	assert.Same(t, first, second, "repeat requests should hit the derived cache")

	svc.Invalidate("AAPL")
	third, err := svc.GetChart(context.Background(), "AAPL", "1Y")
	require.NoError(t, err)
	assert.NotSame(t, first, third, "invalidation should force recomputation")
}

func TestGetChartPeriodOverride(t *testing.T) {
	end := time.Date(2026, 8, 28, 0, 0, 0, 0, time.UTC)
	bars := NewGenerator(5).generate(100, 1, end)
	fetcher := &stubFetcher{bars: marketdata.OHLCV{Bars: bars}}

	svc := newTestService(t, fetcher)

	data, err := svc.GetChartWithPeriod(context.Background(), "AAPL", "1Y", 10)
	require.NoError(t, err)

	// With a 10-bar long SMA the overlay establishes at index 9.
	for i := 0; i < 9; i++ {
		assert.Nil(t, data.SMALong[i])
	}
	require.NotNil(t, data.SMALong[9])

	// The override is cached independently of the default period.
	def, err := svc.GetChart(context.Background(), "AAPL", "1Y")
	require.NoError(t, err)
	assert.Nil(t, def.SMALong[9])
	require.NotNil(t, def.SMALong[49])
}

func TestGetStats(t *testing.T) {
	end := time.Date(2026, 8, 28, 0, 0, 0, 0, time.UTC)
	bars := NewGenerator(4).generate(100, 2, end)
	fetcher := &stubFetcher{bars: marketdata.OHLCV{Bars: bars}}

	svc := newTestService(t, fetcher)

	stats, err := svc.GetStats(context.Background(), "AAPL", "1Y")
	require.NoError(t, err)

	assert.Equal(t, "AAPL", stats.Symbol)
	require.NotNil(t, stats.RSI14)
	assert.GreaterOrEqual(t, *stats.RSI14, 0.0)
	assert.LessOrEqual(t, *stats.RSI14, 100.0)
	require.NotNil(t, stats.Volatility)
	assert.Greater(t, *stats.Volatility, 0.0)
	require.NotNil(t, stats.MaxDrawdown)
	assert.GreaterOrEqual(t, *stats.MaxDrawdown, 0.0)
}
