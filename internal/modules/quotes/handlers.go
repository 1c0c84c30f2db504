package quotes

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/rs/zerolog"
)

// Handlers contains HTTP handlers for the quotes API
type Handlers struct {
	poller  *Poller
	fetcher QuoteFetcher
	log     zerolog.Logger
}

// NewHandlers creates a new quotes handlers instance
func NewHandlers(poller *Poller, fetcher QuoteFetcher, log zerolog.Logger) *Handlers {
	return &Handlers{
		poller:  poller,
		fetcher: fetcher,
		log:     log.With().Str("handler", "quotes").Logger(),
	}
}

// HandleGetQuotes returns quotes for the requested symbols, or the poller's
// latest snapshot when none are given.
// GET /api/quotes?symbols=AAPL,MSFT
func (h *Handlers) HandleGetQuotes(w http.ResponseWriter, r *http.Request) {
	raw := r.URL.Query().Get("symbols")
	if raw == "" {
		writeJSON(w, h.poller.Latest())
		return
	}

	symbols := splitSymbols(raw)
	quotes, err := h.fetcher.FetchQuotes(r.Context(), symbols)
	if err != nil {
		h.log.Error().Err(err).Msg("Failed to fetch quotes")
		http.Error(w, "Failed to fetch quotes", http.StatusBadGateway)
		return
	}

	writeJSON(w, quotes)
}

// HandleWatch replaces the polled watch list.
// POST /api/quotes/watch {"symbols": ["AAPL", "MSFT"]}
func (h *Handlers) HandleWatch(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Symbols []string `json:"symbols"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	symbols := make([]string, 0, len(req.Symbols))
	for _, s := range req.Symbols {
		s = strings.ToUpper(strings.TrimSpace(s))
		if s != "" {
			symbols = append(symbols, s)
		}
	}

	h.poller.Watch(symbols)
	writeJSON(w, map[string]interface{}{"watching": symbols})
}

// HandleUnwatch stops the poller.
// DELETE /api/quotes/watch
func (h *Handlers) HandleUnwatch(w http.ResponseWriter, r *http.Request) {
	h.poller.Stop()
	writeJSON(w, map[string]string{"status": "stopped"})
}

func splitSymbols(raw string) []string {
	parts := strings.Split(raw, ",")
	symbols := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.ToUpper(strings.TrimSpace(p))
		if p != "" {
			symbols = append(symbols, p)
		}
	}
	return symbols
}

func writeJSON(w http.ResponseWriter, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(data)
}
