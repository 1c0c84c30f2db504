package charts

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerateStructuralInvariants(t *testing.T) {
	gen := NewGenerator(42)
	end := time.Date(2026, 8, 28, 0, 0, 0, 0, time.UTC)
	bars := gen.generate(150.0, 5, end)

	require.NotEmpty(t, bars)

	for i, b := range bars {
		assert.False(t, math.IsNaN(b.Close), "bar %d has NaN close", i)
		assert.Greater(t, b.Close, 0.0, "bar %d close not positive", i)
		assert.GreaterOrEqual(t, b.High, math.Max(b.Open, b.Close), "bar %d high below body", i)
		assert.LessOrEqual(t, b.Low, math.Min(b.Open, b.Close), "bar %d low above body", i)
		assert.Greater(t, b.Volume, int64(0), "bar %d volume not positive", i)

		wd := b.Date.Weekday()
		assert.NotEqual(t, time.Saturday, wd, "bar %d on Saturday", i)
		assert.NotEqual(t, time.Sunday, wd, "bar %d on Sunday", i)

		if i > 0 {
			assert.True(t, b.Date.After(bars[i-1].Date), "bar %d date not increasing", i)
		}
	}
}

func TestGenerateEndsAtTarget(t *testing.T) {
	gen := NewGenerator(7)
	end := time.Date(2026, 8, 28, 0, 0, 0, 0, time.UTC)

	bars := gen.generate(98.76, 2, end)
	require.NotEmpty(t, bars)
	assert.InDelta(t, 98.76, bars[len(bars)-1].Close, 0.005)
}

func TestGenerateDeterministicForSeed(t *testing.T) {
	end := time.Date(2026, 8, 28, 0, 0, 0, 0, time.UTC)

	a := NewGenerator(123).generate(100, 1, end)
	b := NewGenerator(123).generate(100, 1, end)

	require.Equal(t, len(a), len(b))
	for i := range a {
		assert.Equal(t, a[i], b[i], "bar %d differs between runs", i)
	}

	c := NewGenerator(124).generate(100, 1, end)
	assert.NotEqual(t, a, c, "different seeds produced identical series")
}

func TestGenerateEarningsShockSpacing(t *testing.T) {
	gen := NewGenerator(99)
	end := time.Date(2026, 8, 28, 0, 0, 0, 0, time.UTC)
	bars := gen.generate(200, 5, end)

	var lastShock time.Time
	for _, b := range bars {
		if !b.IsEarnings {
			continue
		}
		if !lastShock.IsZero() {
			gap := b.Date.Sub(lastShock)
			assert.Greater(t, gap, time.Duration(earningsShockSpacing)*24*time.Hour,
				"earnings shocks at %s and %s too close", lastShock, b.Date)
		}
		lastShock = b.Date
	}
}

func TestGenerateRejectsBadInput(t *testing.T) {
	gen := NewGenerator(1)
	end := time.Date(2026, 8, 28, 0, 0, 0, 0, time.UTC)

	assert.Nil(t, gen.generate(0, 5, end))
	assert.Nil(t, gen.generate(-10, 5, end))
	assert.Nil(t, gen.generate(100, 0, end))
}
