package charts

import (
	"math"

	"github.com/tickertap/tickertap/internal/domain"
)

// ComputeSMA computes the simple moving average of closes over a trailing
// window, aligned index-for-index with the series. The first period-1 entries
// are nil (insufficient history), as is any entry whose trailing window
// contains a bar with a missing close. Values are rounded to 2 decimals.
//
// The SMA is computed once over the full history; viewport changes slice this
// result and never trigger recomputation, so slicing can never change values.
func ComputeSMA(series domain.PriceSeries, period int) []*float64 {
	out := make([]*float64, len(series))
	if period <= 0 || len(series) < period {
		return out
	}

	closes := series.Closes()
	for i := period - 1; i < len(closes); i++ {
		sum := 0.0
		valid := true
		for j := i - period + 1; j <= i; j++ {
			if math.IsNaN(closes[j]) {
				valid = false
				break
			}
			sum += closes[j]
		}
		if !valid {
			continue
		}

		v := math.Round(sum/float64(period)*100) / 100
		out[i] = &v
	}

	return out
}
