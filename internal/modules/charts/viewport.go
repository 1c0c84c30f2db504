package charts

import "math"

// RangePreset is a named trailing window over the price history.
type RangePreset string

const (
	Range1M  RangePreset = "1M"
	Range3M  RangePreset = "3M"
	Range6M  RangePreset = "6M"
	Range1Y  RangePreset = "1Y"
	Range2Y  RangePreset = "2Y"
	Range5Y  RangePreset = "5Y"
	RangeAll RangePreset = "ALL"
)

// presetBars maps each preset to its trailing trading-day count. ALL is
// resolved against the series length.
var presetBars = map[RangePreset]int{
	Range1M: 21,
	Range3M: 63,
	Range6M: 126,
	Range1Y: 252,
	Range2Y: 504,
	Range5Y: 1260,
}

// Wheel zoom factors: wheel-down widens the window, wheel-up narrows it.
const (
	zoomOutFactor  = 1.15
	zoomInFactor   = 0.87
	minVisibleBars = 10
)

// Viewport tracks the visible window of a price series and the manual
// zoom/pan interaction state. It is a plain state machine with pure-ish
// transitions, decoupled from any rendering concern: the two states are
// Preset (a named trailing range) and Zoomed (a manual start/count window).
// All derived overlays are sliced from full-history arrays against the
// current window, never recomputed.
type Viewport struct {
	seriesLen int
	preset    RangePreset
	zoomed    bool
	start     int
	count     int

	dragging     bool
	dragOriginX  float64
	dragOriginAt int
}

// NewViewport creates a viewport over a series, starting at the 1Y preset.
func NewViewport(seriesLen int) *Viewport {
	v := &Viewport{seriesLen: seriesLen, preset: Range1Y}
	v.applyPreset()
	return v
}

// Window returns the visible (start, count) range.
func (v *Viewport) Window() (start, count int) {
	return v.start, v.count
}

// Zoomed reports whether the window was manually adjusted since the last
// preset selection.
func (v *Viewport) Zoomed() bool {
	return v.zoomed
}

// SelectPreset switches to a named trailing range, clearing any manual zoom.
func (v *Viewport) SelectPreset(p RangePreset) {
	if _, ok := presetBars[p]; !ok && p != RangeAll {
		return
	}
	v.preset = p
	v.zoomed = false
	v.applyPreset()
}

// Reset returns to the last selected preset.
func (v *Viewport) Reset() {
	v.zoomed = false
	v.applyPreset()
}

// Wheel applies one zoom tick. deltaY > 0 zooms out (more bars), deltaY < 0
// zooms in. pointerRatio is the pointer's horizontal position within the plot
// area in [0, 1]; the bar under the pointer stays fixed.
func (v *Viewport) Wheel(deltaY, pointerRatio float64) {
	if v.count <= 0 || deltaY == 0 {
		return
	}
	if pointerRatio < 0 {
		pointerRatio = 0
	} else if pointerRatio > 1 {
		pointerRatio = 1
	}

	factor := zoomInFactor
	if deltaY > 0 {
		factor = zoomOutFactor
	}

	newCount := int(math.Round(float64(v.count) * factor))
	newCount = v.clampCount(newCount)

	pivot := float64(v.start) + pointerRatio*float64(v.count)
	newStart := int(math.Round(pivot - pointerRatio*float64(newCount)))

	v.count = newCount
	v.start = v.clampStart(newStart)
	v.zoomed = true
}

// SetWindow restores a manual window, e.g. one a client persisted, clamping
// it to the series. The viewport lands in the zoomed state.
func (v *Viewport) SetWindow(start, count int) {
	v.count = v.clampCount(count)
	v.start = v.clampStart(start)
	v.zoomed = true
}

// DragStart begins a pan gesture at the given pixel X.
func (v *Viewport) DragStart(x float64) {
	v.dragging = true
	v.dragOriginX = x
	v.dragOriginAt = v.start
}

// DragMove pans the window by the horizontal pixel delta since DragStart.
// pxPerBar is the current width of one bar in pixels.
func (v *Viewport) DragMove(x, pxPerBar float64) {
	if !v.dragging || pxPerBar <= 0 {
		return
	}
	deltaBars := int(math.Round((v.dragOriginX - x) / pxPerBar))
	v.start = v.clampStart(v.dragOriginAt + deltaBars)
}

// DragEnd finishes a pan gesture and leaves the viewport in the zoomed state.
func (v *Viewport) DragEnd() {
	if !v.dragging {
		return
	}
	v.dragging = false
	v.zoomed = true
}

// IndexAtX resolves a pixel X within the plot area to the nearest visible
// bar index (absolute, into the full series).
func (v *Viewport) IndexAtX(x, plotWidth float64) int {
	if v.count <= 0 || plotWidth <= 0 {
		return v.start
	}

	pxPerBar := plotWidth / float64(v.count)
	idx := v.start + int(math.Round(x/pxPerBar))

	if idx < v.start {
		idx = v.start
	}
	if idx > v.start+v.count-1 {
		idx = v.start + v.count - 1
	}
	return idx
}

// WindowEvents filters full-history breakout events down to the visible
// window and reindexes them to window-relative coordinates.
func (v *Viewport) WindowEvents(events []BreakoutEvent) []BreakoutEvent {
	var out []BreakoutEvent
	for _, ev := range events {
		if ev.Index >= v.start && ev.Index < v.start+v.count {
			rel := ev
			rel.Index = ev.Index - v.start
			out = append(out, rel)
		}
	}
	return out
}

// applyPreset sets the window to the trailing preset range.
func (v *Viewport) applyPreset() {
	count := v.seriesLen
	if bars, ok := presetBars[v.preset]; ok && bars < count {
		count = bars
	}
	v.count = v.clampCount(count)
	v.start = v.seriesLen - v.count
	if v.start < 0 {
		v.start = 0
	}
}

// clampCount keeps the visible bar count in [minVisibleBars, seriesLen].
func (v *Viewport) clampCount(count int) int {
	if count > v.seriesLen {
		count = v.seriesLen
	}
	if count < minVisibleBars {
		count = minVisibleBars
	}
	if count > v.seriesLen {
		count = v.seriesLen // series shorter than the minimum
	}
	return count
}

// clampStart keeps [start, start+count] inside [0, seriesLen].
func (v *Viewport) clampStart(start int) int {
	if start > v.seriesLen-v.count {
		start = v.seriesLen - v.count
	}
	if start < 0 {
		start = 0
	}
	return start
}

// PriceTicks computes "nice" price-axis tick positions between low and high:
// the step is range/6 rounded up to the nearest power-of-ten multiple, and
// ticks run from the first multiple of that step at or above low.
func PriceTicks(low, high float64) []float64 {
	rng := high - low
	if rng <= 0 || math.IsNaN(rng) || math.IsInf(rng, 0) {
		return nil
	}

	raw := rng / 6
	magnitude := math.Pow(10, math.Floor(math.Log10(raw)))
	step := math.Ceil(raw/magnitude) * magnitude

	var ticks []float64
	for tick := math.Ceil(low/step) * step; tick <= high+step*1e-9; tick += step {
		ticks = append(ticks, tick)
	}
	return ticks
}
