package domain

import (
	"encoding/json"
	"math"
	"time"
)

// Side represents a trade direction
type Side string

const (
	SideBuy  Side = "BUY"
	SideSell Side = "SELL"
)

// Bar represents one trading day of OHLCV data.
// A missing close (bad feed data) is stored as NaN; derived computations
// treat such bars as "insufficient data" rather than failing.
type Bar struct {
	Date       time.Time `json:"date"`
	Open       float64   `json:"open"`
	High       float64   `json:"high"`
	Low        float64   `json:"low"`
	Close      float64   `json:"close"`
	Volume     int64     `json:"volume"`
	IsEarnings bool      `json:"is_earnings"`
}

// Valid reports whether the bar carries usable price data.
func (b Bar) Valid() bool {
	return !math.IsNaN(b.Close) && !math.IsNaN(b.Open) &&
		!math.IsNaN(b.High) && !math.IsNaN(b.Low)
}

// barJSON is the wire shape of a Bar: missing prices travel as null, since
// JSON has no NaN.
type barJSON struct {
	Date       string   `json:"date"`
	Open       *float64 `json:"open"`
	High       *float64 `json:"high"`
	Low        *float64 `json:"low"`
	Close      *float64 `json:"close"`
	Volume     int64    `json:"volume"`
	IsEarnings bool     `json:"is_earnings"`
}

// MarshalJSON implements json.Marshaler.
func (b Bar) MarshalJSON() ([]byte, error) {
	return json.Marshal(barJSON{
		Date:       b.Date.Format("2006-01-02"),
		Open:       nanToNull(b.Open),
		High:       nanToNull(b.High),
		Low:        nanToNull(b.Low),
		Close:      nanToNull(b.Close),
		Volume:     b.Volume,
		IsEarnings: b.IsEarnings,
	})
}

// UnmarshalJSON implements json.Unmarshaler.
func (b *Bar) UnmarshalJSON(data []byte) error {
	var raw barJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	date, err := time.Parse("2006-01-02", raw.Date)
	if err != nil {
		return err
	}

	*b = Bar{
		Date:       date,
		Open:       nullToNaN(raw.Open),
		High:       nullToNaN(raw.High),
		Low:        nullToNaN(raw.Low),
		Close:      nullToNaN(raw.Close),
		Volume:     raw.Volume,
		IsEarnings: raw.IsEarnings,
	}
	return nil
}

func nanToNull(v float64) *float64 {
	if math.IsNaN(v) {
		return nil
	}
	return &v
}

func nullToNaN(v *float64) float64 {
	if v == nil {
		return math.NaN()
	}
	return *v
}

// PriceSeries is an ordered run of daily bars, strictly increasing by date,
// weekdays only. It is replaced wholesale on symbol change, never mutated.
type PriceSeries []Bar

// Closes extracts the close prices (NaN where the bar is invalid).
func (s PriceSeries) Closes() []float64 {
	closes := make([]float64, len(s))
	for i, b := range s {
		closes[i] = b.Close
	}
	return closes
}

// Volumes extracts the traded volumes.
func (s PriceSeries) Volumes() []int64 {
	vols := make([]int64, len(s))
	for i, b := range s {
		vols[i] = b.Volume
	}
	return vols
}

// LastClose returns the most recent valid close, or 0 if none exists.
func (s PriceSeries) LastClose() float64 {
	for i := len(s) - 1; i >= 0; i-- {
		if !math.IsNaN(s[i].Close) {
			return s[i].Close
		}
	}
	return 0
}

// Quote represents a live (delayed) quote snapshot.
type Quote struct {
	Symbol    string    `json:"symbol"`
	Price     float64   `json:"price"`
	Change    float64   `json:"change"`
	ChangePct float64   `json:"change_pct"`
	AsOf      time.Time `json:"as_of"`
}
