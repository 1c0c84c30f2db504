package charts

import (
	"math"
	"math/rand"
	"time"

	"github.com/tickertap/tickertap/internal/domain"
)

// Phase types of the synthetic market regime walk
const (
	phaseBull = iota
	phaseBear
	phaseRange
)

// minimum calendar-day gap between simulated earnings shocks
const earningsShockSpacing = 63

// phase is one contiguous market regime inside the generated walk.
type phase struct {
	untilDay int // exclusive calendar-day bound
	kind     int
	strength float64
}

// Generator produces plausible synthetic daily OHLCV series. It is used as
// the fallback dataset when the upstream feed is unavailable, so the chart
// always has something to render. The random source is explicit so tests can
// assert structural invariants deterministically; the exact numeric sequence
// is not a contract.
type Generator struct {
	rng *rand.Rand
}

// NewGenerator creates a generator from an explicit seed.
func NewGenerator(seed int64) *Generator {
	return &Generator{rng: rand.New(rand.NewSource(seed))}
}

// Generate produces a weekday-only daily series spanning roughly the given
// number of years and ending today at exactly targetPrice.
func (g *Generator) Generate(targetPrice float64, years int) domain.PriceSeries {
	return g.generate(targetPrice, years, time.Now())
}

// generate is the testable core with an explicit end date.
func (g *Generator) generate(targetPrice float64, years int, end time.Time) domain.PriceSeries {
	totalDays := years * 365
	if targetPrice <= 0 || totalDays <= 0 {
		return nil
	}

	endDate := time.Date(end.Year(), end.Month(), end.Day(), 0, 0, 0, 0, time.UTC)
	startDate := endDate.AddDate(0, 0, -(totalDays - 1))

	price := targetPrice * (0.30 + g.rng.Float64()*0.15)
	phases := g.buildPhases(totalDays)
	baseVolume := baseVolumeFor(targetPrice)

	bars := make(domain.PriceSeries, 0, totalDays*5/7+2)
	phaseIdx := 0
	lastShockDay := -earningsShockSpacing

	for day := 0; day < totalDays; day++ {
		date := startDate.AddDate(0, 0, day)
		if date.Weekday() == time.Saturday || date.Weekday() == time.Sunday {
			continue
		}

		for phaseIdx < len(phases)-1 && day >= phases[phaseIdx].untilDay {
			phaseIdx++
		}
		ph := phases[phaseIdx]

		drift := 0.0001 // range-bound phases drift up very slightly
		switch ph.kind {
		case phaseBull:
			drift = 0.0010 * ph.strength
		case phaseBear:
			drift = -0.0008 * ph.strength
		}

		vol := 0.012 + g.rng.Float64()*0.010
		if nearYearBoundary(date) {
			vol *= 1.5
		}

		shock := 0.0
		isEarnings := false
		if day-lastShockDay > earningsShockSpacing && g.rng.Float64() < 0.03 {
			shock = 0.03 + g.rng.Float64()*0.06
			if g.rng.Float64() < 0.5 {
				shock = -shock
			}
			isEarnings = true
			lastShockDay = day
		}

		change := drift + vol*(g.rng.Float64()*2-1) + shock
		closePrice := price * (1 + change)
		if closePrice < 0.01 {
			closePrice = 0.01
		}

		spread := vol * 0.6
		openPrice := price * (1 + spread*(g.rng.Float64()-0.5))
		high := math.Max(openPrice, closePrice) * (1 + g.rng.Float64()*spread)
		low := math.Min(openPrice, closePrice) * (1 - g.rng.Float64()*spread)

		surge := 1 + math.Abs(change)*25
		if isEarnings {
			surge *= 2.5 + g.rng.Float64()
		}
		volume := int64(baseVolume * surge * (0.7 + g.rng.Float64()*0.6))

		bars = append(bars, domain.Bar{
			Date:       date,
			Open:       openPrice,
			High:       high,
			Low:        low,
			Close:      closePrice,
			Volume:     volume,
			IsEarnings: isEarnings,
		})

		price = closePrice
	}

	if len(bars) == 0 {
		return bars
	}

	// Rescale so the series ends exactly at the target price.
	scale := targetPrice / bars[len(bars)-1].Close
	for i := range bars {
		bars[i].Open = round2(bars[i].Open * scale)
		bars[i].Close = round2(bars[i].Close * scale)
		bars[i].High = round2(bars[i].High * scale)
		bars[i].Low = round2(bars[i].Low * scale)
		// Rounding must not break the bar shape invariants.
		bars[i].High = math.Max(bars[i].High, math.Max(bars[i].Open, bars[i].Close))
		bars[i].Low = math.Min(bars[i].Low, math.Min(bars[i].Open, bars[i].Close))
	}

	return bars
}

// buildPhases partitions the duration into contiguous market regimes.
func (g *Generator) buildPhases(totalDays int) []phase {
	var phases []phase
	covered := 0
	for covered < totalDays {
		length := 15 + g.rng.Intn(81) // 15-95 days

		kind := phaseRange
		switch p := g.rng.Float64(); {
		case p < 0.50:
			kind = phaseBull
		case p < 0.75:
			kind = phaseBear
		}

		covered += length
		phases = append(phases, phase{
			untilDay: covered,
			kind:     kind,
			strength: 0.5 + g.rng.Float64(),
		})
	}
	return phases
}

// nearYearBoundary reports whether the date falls in the turn-of-year window
// where the generator boosts volatility.
func nearYearBoundary(date time.Time) bool {
	return (date.Month() == time.January && date.Day() <= 10) ||
		(date.Month() == time.December && date.Day() >= 20)
}

// baseVolumeFor scales the volume floor by price magnitude: cheaper symbols
// trade more shares for the same notional turnover.
func baseVolumeFor(targetPrice float64) float64 {
	return 40_000_000 / math.Sqrt(math.Max(targetPrice, 1))
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
