package charts

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
)

var errInvalidWindow = errors.New("invalid window: count must be positive and start non-negative")

// Handlers contains HTTP handlers for the chart API
type Handlers struct {
	service *Service
	log     zerolog.Logger
}

// NewHandlers creates a new chart handlers instance
func NewHandlers(service *Service, log zerolog.Logger) *Handlers {
	return &Handlers{
		service: service,
		log:     log.With().Str("handler", "charts").Logger(),
	}
}

// HandleGetChart returns the price series and derived overlays for a symbol.
// GET /api/charts/{symbol}?range=1Y
func (h *Handlers) HandleGetChart(w http.ResponseWriter, r *http.Request) {
	symbol := strings.ToUpper(chi.URLParam(r, "symbol"))
	if symbol == "" {
		http.Error(w, "symbol is required", http.StatusBadRequest)
		return
	}

	rng := r.URL.Query().Get("range")

	period := 0
	if raw := r.URL.Query().Get("period"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			http.Error(w, "invalid period", http.StatusBadRequest)
			return
		}
		period = n
	}

	data, err := h.service.GetChartWithPeriod(r.Context(), symbol, rng, period)
	if err != nil {
		h.log.Error().Err(err).Str("symbol", symbol).Msg("Failed to load chart")
		http.Error(w, "Failed to load chart", http.StatusInternalServerError)
		return
	}

	if r.URL.Query().Get("count") != "" {
		windowed, err := windowChart(data, r.URL.Query().Get("start"), r.URL.Query().Get("count"))
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		data = windowed
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(data) // Ignore encode error - already committed response
}

// windowChart slices a full-history chart down to a client-requested window.
// Overlays are sliced from the precomputed arrays and events are reindexed to
// window-relative coordinates; nothing is recomputed.
func windowChart(data *ChartData, startRaw, countRaw string) (*ChartData, error) {
	count, err := strconv.Atoi(countRaw)
	if err != nil || count <= 0 {
		return nil, errInvalidWindow
	}

	start := len(data.Bars) - count
	if startRaw != "" {
		if start, err = strconv.Atoi(startRaw); err != nil || start < 0 {
			return nil, errInvalidWindow
		}
	}

	if len(data.Bars) == 0 {
		return data, nil
	}

	v := NewViewport(len(data.Bars))
	v.SetWindow(start, count)
	s, n := v.Window()

	windowed := *data
	windowed.Bars = data.Bars[s : s+n]
	windowed.SMAShort = data.SMAShort[s : s+n]
	windowed.SMALong = data.SMALong[s : s+n]
	windowed.Events = v.WindowEvents(data.Events)
	return &windowed, nil
}

// HandleGetStats returns summary statistics for a symbol's series.
// GET /api/charts/{symbol}/stats?range=1Y
func (h *Handlers) HandleGetStats(w http.ResponseWriter, r *http.Request) {
	symbol := strings.ToUpper(chi.URLParam(r, "symbol"))
	if symbol == "" {
		http.Error(w, "symbol is required", http.StatusBadRequest)
		return
	}

	stats, err := h.service.GetStats(r.Context(), symbol, r.URL.Query().Get("range"))
	if err != nil {
		h.log.Error().Err(err).Str("symbol", symbol).Msg("Failed to compute stats")
		http.Error(w, "Failed to compute stats", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(stats)
}
