package charts

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tickertap/tickertap/internal/domain"
)

// flatSeries builds n bars with the given close, a tight high/low band and a
// flat volume.
func flatSeries(n int, close float64, volume int64) domain.PriceSeries {
	start := time.Date(2025, 3, 3, 0, 0, 0, 0, time.UTC)
	bars := make(domain.PriceSeries, n)
	for i := range bars {
		bars[i] = domain.Bar{
			Date:   start.AddDate(0, 0, i),
			Open:   close,
			High:   close + 1,
			Low:    close - 1,
			Close:  close,
			Volume: volume,
		}
	}
	return bars
}

// constSMA builds an SMA slice pinned to one value at every index.
func constSMA(n int, v float64) []*float64 {
	sma := make([]*float64, n)
	for i := range sma {
		val := v
		sma[i] = &val
	}
	return sma
}

func TestDetectBreakoutsSMACross(t *testing.T) {
	series := flatSeries(20, 100, 1000)
	// Engineer a bullish cross at index 10: the close moves from below the
	// SMA to above it on a volume spike.
	series[9].Close = 95
	series[10].Close = 105
	series[10].Volume = 10000

	events := DetectBreakouts(series, constSMA(20, 100))

	require.Len(t, events, 1)
	assert.Equal(t, 10, events[0].Index)
	assert.Equal(t, DirectionBullish, events[0].Direction)
	assert.Equal(t, 105.0, events[0].Price)
	assert.Empty(t, events[0].Label)
}

func TestDetectBreakoutsCrossWithoutSurgeIgnored(t *testing.T) {
	series := flatSeries(20, 100, 1000)
	series[9].Close = 95
	series[10].Close = 105
	// Volume stays flat, so the cross is not confirmed.

	events := DetectBreakouts(series, constSMA(20, 100))
	assert.Empty(t, events)
}

func TestDetectBreakoutsBearishCross(t *testing.T) {
	series := flatSeries(20, 100, 1000)
	series[9].Close = 105
	series[10].Close = 95
	series[10].Volume = 10000

	events := DetectBreakouts(series, constSMA(20, 100))

	require.Len(t, events, 1)
	assert.Equal(t, DirectionBearish, events[0].Direction)
}

func TestDetectBreakoutsDedup(t *testing.T) {
	series := flatSeries(30, 100, 1000)
	// Two engineered crosses 5 indices apart; only the first survives the
	// forward dedup sweep.
	series[9].Close = 95
	series[10].Close = 105
	series[10].Volume = 10000
	series[14].Close = 95
	series[15].Close = 105
	series[15].Volume = 50000

	events := DetectBreakouts(series, constSMA(30, 100))

	require.Len(t, events, 1)
	assert.Equal(t, 10, events[0].Index)

	// Any two kept events must be more than dedupSpacing indices apart.
	for i := 1; i < len(events); i++ {
		assert.Greater(t, events[i].Index-events[i-1].Index, dedupSpacing)
	}
}

func TestDetectBreakoutsConsolidationEscape(t *testing.T) {
	series := flatSeries(20, 100, 1000)
	for i := range series {
		series[i].High = 100.5
		series[i].Low = 99.5
	}
	// Escape the 10-bar band upward on volume at index 16.
	series[16].Close = 102
	series[16].High = 102.5
	series[16].Volume = 10000

	events := DetectBreakouts(series, constSMA(20, 100))

	require.Len(t, events, 1)
	assert.Equal(t, 16, events[0].Index)
	assert.Equal(t, DirectionBullish, events[0].Direction)
	assert.Equal(t, LabelConsolUp, events[0].Label)
}

func TestDetectBreakoutsConsolidationEscapeDown(t *testing.T) {
	series := flatSeries(20, 100, 1000)
	for i := range series {
		series[i].High = 100.5
		series[i].Low = 99.5
	}
	series[16].Close = 98
	series[16].Low = 97.5
	series[16].Volume = 10000

	events := DetectBreakouts(series, constSMA(20, 100))

	require.Len(t, events, 1)
	assert.Equal(t, DirectionBearish, events[0].Direction)
	assert.Equal(t, LabelConsolDown, events[0].Label)
}

func TestDetectBreakoutsNoSMANoEvents(t *testing.T) {
	// A window where the SMA never establishes must yield zero events even
	// if volume and range conditions would otherwise fire.
	series := flatSeries(20, 100, 1000)
	for i := range series {
		series[i].High = 100.5
		series[i].Low = 99.5
	}
	series[16].Close = 102
	series[16].Volume = 10000

	events := DetectBreakouts(series, make([]*float64, 20))
	assert.Empty(t, events)
}

func TestDetectBreakoutsSkipsMissingCloses(t *testing.T) {
	series := flatSeries(20, 100, 1000)
	series[9].Close = 95
	series[10].Close = math.NaN()
	series[10].Volume = 10000

	events := DetectBreakouts(series, constSMA(20, 100))
	assert.Empty(t, events)
}

func TestDetectBreakoutsMismatchedInput(t *testing.T) {
	series := flatSeries(20, 100, 1000)

	assert.Nil(t, DetectBreakouts(nil, nil))
	assert.Nil(t, DetectBreakouts(series, make([]*float64, 5)))
}
