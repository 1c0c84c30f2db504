package transactions

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
)

// Handlers contains HTTP handlers for the transactions API
type Handlers struct {
	service  *Service
	importer *ImportService
	log      zerolog.Logger
}

// NewHandlers creates a new transactions handlers instance
func NewHandlers(service *Service, importer *ImportService, log zerolog.Logger) *Handlers {
	return &Handlers{
		service:  service,
		importer: importer,
		log:      log.With().Str("handler", "transactions").Logger(),
	}
}

// HandleList returns recorded transactions, newest first.
// GET /api/transactions?limit=50
func (h *Handlers) HandleList(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			writeError(w, http.StatusBadRequest, "invalid limit")
			return
		}
		limit = n
	}

	txs, err := h.service.List(limit)
	if err != nil {
		h.log.Error().Err(err).Msg("Failed to list transactions")
		writeError(w, http.StatusInternalServerError, "failed to list transactions")
		return
	}
	if txs == nil {
		txs = []Transaction{}
	}
	writeJSON(w, http.StatusOK, txs)
}

// HandleCreate records a new transaction.
// POST /api/transactions
func (h *Handlers) HandleCreate(w http.ResponseWriter, r *http.Request) {
	var tx Transaction
	if err := json.NewDecoder(r.Body).Decode(&tx); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	created, err := h.service.Create(tx)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	writeJSON(w, http.StatusCreated, created)
}

// HandleGet fetches one transaction.
// GET /api/transactions/{id}
func (h *Handlers) HandleGet(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(w, r)
	if !ok {
		return
	}

	tx, err := h.service.Get(id)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			writeError(w, http.StatusNotFound, "transaction not found")
			return
		}
		h.log.Error().Err(err).Int64("id", id).Msg("Failed to get transaction")
		writeError(w, http.StatusInternalServerError, "failed to get transaction")
		return
	}
	writeJSON(w, http.StatusOK, tx)
}

// HandleUpdate rewrites a transaction.
// PUT /api/transactions/{id}
func (h *Handlers) HandleUpdate(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(w, r)
	if !ok {
		return
	}

	var tx Transaction
	if err := json.NewDecoder(r.Body).Decode(&tx); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	tx.ID = id

	if err := h.service.Update(tx); err != nil {
		if errors.Is(err, ErrNotFound) {
			writeError(w, http.StatusNotFound, "transaction not found")
			return
		}
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, tx)
}

// HandleDelete removes a transaction.
// DELETE /api/transactions/{id}
func (h *Handlers) HandleDelete(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(w, r)
	if !ok {
		return
	}

	if err := h.service.Delete(id); err != nil {
		if errors.Is(err, ErrNotFound) {
			writeError(w, http.StatusNotFound, "transaction not found")
			return
		}
		h.log.Error().Err(err).Int64("id", id).Msg("Failed to delete transaction")
		writeError(w, http.StatusInternalServerError, "failed to delete transaction")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}

// HandleHoldings returns derived positions.
// GET /api/holdings
func (h *Handlers) HandleHoldings(w http.ResponseWriter, r *http.Request) {
	holdings, err := h.service.Holdings()
	if err != nil {
		h.log.Error().Err(err).Msg("Failed to compute holdings")
		writeError(w, http.StatusInternalServerError, "failed to compute holdings")
		return
	}
	if holdings == nil {
		holdings = []Holding{}
	}
	writeJSON(w, http.StatusOK, holdings)
}

// HandleListOrders returns orders, optionally filtered by status.
// GET /api/orders?status=OPEN
func (h *Handlers) HandleListOrders(w http.ResponseWriter, r *http.Request) {
	status := OrderStatus(r.URL.Query().Get("status"))

	orders, err := h.service.ListOrders(status)
	if err != nil {
		h.log.Error().Err(err).Msg("Failed to list orders")
		writeError(w, http.StatusInternalServerError, "failed to list orders")
		return
	}
	if orders == nil {
		orders = []Order{}
	}
	writeJSON(w, http.StatusOK, orders)
}

// HandlePlaceOrder places a simulated order.
// POST /api/orders
func (h *Handlers) HandlePlaceOrder(w http.ResponseWriter, r *http.Request) {
	var order Order
	if err := json.NewDecoder(r.Body).Decode(&order); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	placed, err := h.service.PlaceOrder(order)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	writeJSON(w, http.StatusCreated, placed)
}

// HandleCancelOrder cancels an open order.
// POST /api/orders/{id}/cancel
func (h *Handlers) HandleCancelOrder(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(w, r)
	if !ok {
		return
	}

	if err := h.service.CancelOrder(id); err != nil {
		if errors.Is(err, ErrNotFound) {
			writeError(w, http.StatusNotFound, "order not found")
			return
		}
		writeError(w, http.StatusConflict, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "cancelled"})
}

// HandleImportPreview parses an uploaded CSV and returns the parsed rows plus
// per-row errors, keyed by a session id for the later commit.
// POST /api/import/preview
func (h *Handlers) HandleImportPreview(w http.ResponseWriter, r *http.Request) {
	preview, err := h.importer.Preview(r.Body)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, preview)
}

// HandleImportCommit records the valid rows of a previewed import.
// POST /api/import/commit {"session_id": "..."}
func (h *Handlers) HandleImportCommit(w http.ResponseWriter, r *http.Request) {
	var req struct {
		SessionID string `json:"session_id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	result, err := h.importer.Commit(req.SessionID)
	if err != nil {
		if errors.Is(err, ErrSessionNotFound) {
			writeError(w, http.StatusNotFound, "import session not found")
			return
		}
		h.log.Error().Err(err).Msg("Failed to commit import")
		writeError(w, http.StatusInternalServerError, "failed to commit import")
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func parseID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		writeError(w, http.StatusBadRequest, "invalid id")
		return 0, false
	}
	return id, true
}

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
