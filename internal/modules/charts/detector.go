package charts

import (
	"math"

	"github.com/tickertap/tickertap/internal/domain"
)

const (
	// trailing bars used for the volume-surge baseline
	detectorLookback = 5
	// current volume must exceed surgeFactor × trailing average volume
	surgeFactor = 1.6
	// bars inspected for a consolidation range
	consolWindow = 10
	// (maxHigh-minLow)/minLow below this counts as a tight range
	consolMaxRatio = 0.04
	// close must escape the consolidation bound by this fraction
	consolEscape = 0.008
	// kept events must be more than this many indices apart
	dedupSpacing = 8
)

// DetectBreakouts scans the full series for SMA50 crosses and consolidation
// escapes confirmed by a volume surge. Indices with missing closes or nil SMA
// values are skipped rather than reported as errors. Events are deduplicated
// in a forward sweep: an event is kept only when it is more than dedupSpacing
// indices past the previously kept event, regardless of direction or label.
func DetectBreakouts(series domain.PriceSeries, sma []*float64) []BreakoutEvent {
	if len(series) == 0 || len(sma) != len(series) {
		return nil
	}

	var raw []BreakoutEvent
	for i := detectorLookback + 1; i < len(series); i++ {
		cur, prev := series[i], series[i-1]
		if math.IsNaN(cur.Close) || math.IsNaN(prev.Close) {
			continue
		}

		// No checks fire without an established SMA at this index.
		if sma[i] == nil {
			continue
		}

		surge := volumeSurge(series, i)

		if sma[i-1] != nil && surge {
			if prev.Close < *sma[i-1] && cur.Close > *sma[i] {
				raw = append(raw, BreakoutEvent{
					Index:     i,
					Direction: DirectionBullish,
					Price:     cur.Close,
				})
			}
			if prev.Close > *sma[i-1] && cur.Close < *sma[i] {
				raw = append(raw, BreakoutEvent{
					Index:     i,
					Direction: DirectionBearish,
					Price:     cur.Close,
				})
			}
		}

		if i >= detectorLookback+consolWindow && surge {
			if ev, ok := consolidationBreakout(series, i); ok {
				raw = append(raw, ev)
			}
		}
	}

	// Forward dedup sweep: first event in each cluster wins.
	var events []BreakoutEvent
	lastKept := -dedupSpacing - 1
	for _, ev := range raw {
		if ev.Index-lastKept > dedupSpacing {
			events = append(events, ev)
			lastKept = ev.Index
		}
	}

	return events
}

// volumeSurge reports whether volume at index i exceeds surgeFactor times the
// average volume of the preceding lookback bars.
func volumeSurge(series domain.PriceSeries, i int) bool {
	if i < detectorLookback {
		return false
	}

	sum := 0.0
	for j := i - detectorLookback; j < i; j++ {
		sum += float64(series[j].Volume)
	}
	avg := sum / float64(detectorLookback)

	return float64(series[i].Volume) > surgeFactor*avg
}

// consolidationBreakout checks whether the close at index i escapes a tight
// trailing range by more than the escape margin.
func consolidationBreakout(series domain.PriceSeries, i int) (BreakoutEvent, bool) {
	maxHigh := math.Inf(-1)
	minLow := math.Inf(1)
	for j := i - consolWindow; j < i; j++ {
		if math.IsNaN(series[j].High) || math.IsNaN(series[j].Low) {
			return BreakoutEvent{}, false
		}
		if series[j].High > maxHigh {
			maxHigh = series[j].High
		}
		if series[j].Low < minLow {
			minLow = series[j].Low
		}
	}

	if minLow <= 0 || (maxHigh-minLow)/minLow >= consolMaxRatio {
		return BreakoutEvent{}, false
	}

	close := series[i].Close
	switch {
	case close > maxHigh*(1+consolEscape):
		return BreakoutEvent{
			Index:     i,
			Direction: DirectionBullish,
			Price:     close,
			Label:     LabelConsolUp,
		}, true
	case close < minLow*(1-consolEscape):
		return BreakoutEvent{
			Index:     i,
			Direction: DirectionBearish,
			Price:     close,
			Label:     LabelConsolDown,
		}, true
	}

	return BreakoutEvent{}, false
}
