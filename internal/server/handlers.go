package server

import (
	"encoding/json"
	"net/http"
	"time"
)

// HealthResponse represents the health check response
type HealthResponse struct {
	Status    string `json:"status"`
	Timestamp string `json:"timestamp"`
}

// SystemStatusResponse represents the system status response
type SystemStatusResponse struct {
	Status           string `json:"status"`
	Database         string `json:"database"`
	TransactionCount int    `json:"transaction_count"`
	SymbolCount      int    `json:"symbol_count"`
	MarketOpen       bool   `json:"market_open"`
	Timestamp        string `json:"timestamp"`
}

// handleHealth is a lightweight liveness probe.
// GET /health
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, HealthResponse{
		Status:    "ok",
		Timestamp: time.Now().Format(time.RFC3339),
	})
}

// handleSystemStatus reports database reachability and basic counts.
// GET /api/system/status
func (s *Server) handleSystemStatus(w http.ResponseWriter, r *http.Request) {
	resp := SystemStatusResponse{
		Status:     "ok",
		Database:   "ok",
		MarketOpen: s.session.IsOpen(),
		Timestamp:  time.Now().Format(time.RFC3339),
	}

	err := s.db.QueryRow(`SELECT COUNT(*), COUNT(DISTINCT symbol) FROM transactions`).
		Scan(&resp.TransactionCount, &resp.SymbolCount)
	if err != nil {
		s.log.Error().Err(err).Msg("Failed to query transaction counts")
		resp.Status = "degraded"
		resp.Database = "error"
	}

	s.writeJSON(w, resp)
}

// handleMarketStatus reports whether the exchange is in its core session.
// GET /api/market/status
func (s *Server) handleMarketStatus(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, s.session.Status())
}

// writeJSON writes a JSON response
func (s *Server) writeJSON(w http.ResponseWriter, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(data); err != nil {
		s.log.Error().Err(err).Msg("Failed to encode JSON response")
	}
}
