package transactions

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/tickertap/tickertap/internal/domain"
	"github.com/tickertap/tickertap/internal/events"
)

// ErrSessionNotFound is returned when an import session id is unknown or has
// already been committed.
var ErrSessionNotFound = errors.New("import session not found")

// Expected CSV columns, in order. A header row matching the first column
// name is skipped.
var importColumns = []string{"date", "symbol", "side", "quantity", "price", "fees", "note"}

// RowError describes why one CSV line was rejected.
type RowError struct {
	Line    int    `json:"line"`
	Message string `json:"message"`
}

// ImportPreview is the parse result returned to the client before commit.
type ImportPreview struct {
	SessionID string        `json:"session_id"`
	Rows      []Transaction `json:"rows"`
	Errors    []RowError    `json:"errors"`
}

// ImportResult reports what a commit recorded.
type ImportResult struct {
	SessionID string `json:"session_id"`
	Imported  int    `json:"imported"`
}

// ImportService parses transaction CSVs in two phases: Preview parses and
// validates without writing anything, Commit records the valid rows of a
// previously previewed session. Sessions live in memory only.
type ImportService struct {
	service *Service
	events  *events.Manager
	log     zerolog.Logger

	mu       sync.Mutex
	sessions map[string][]Transaction
}

// NewImportService creates a CSV import service.
func NewImportService(service *Service, eventManager *events.Manager, log zerolog.Logger) *ImportService {
	return &ImportService{
		service:  service,
		events:   eventManager,
		log:      log.With().Str("service", "import").Logger(),
		sessions: make(map[string][]Transaction),
	}
}

// Preview parses the CSV, validates each row and stashes the valid rows under
// a fresh session id. Rows that fail to parse are reported, not fatal.
func (s *ImportService) Preview(r io.Reader) (*ImportPreview, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	preview := &ImportPreview{
		SessionID: uuid.New().String(),
		Rows:      []Transaction{},
		Errors:    []RowError{},
	}

	line := 0
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		line++
		if err != nil {
			preview.Errors = append(preview.Errors, RowError{Line: line, Message: err.Error()})
			continue
		}
		if line == 1 && isHeaderRow(record) {
			continue
		}

		tx, err := parseImportRow(record)
		if err != nil {
			preview.Errors = append(preview.Errors, RowError{Line: line, Message: err.Error()})
			continue
		}
		preview.Rows = append(preview.Rows, tx)
	}

	if len(preview.Rows) == 0 && len(preview.Errors) == 0 {
		return nil, errors.New("empty file")
	}

	s.mu.Lock()
	s.sessions[preview.SessionID] = preview.Rows
	s.mu.Unlock()

	s.log.Info().
		Str("session_id", preview.SessionID).
		Int("rows", len(preview.Rows)).
		Int("errors", len(preview.Errors)).
		Msg("Import previewed")

	return preview, nil
}

// Commit records the valid rows of a previewed session and discards it.
func (s *ImportService) Commit(sessionID string) (*ImportResult, error) {
	s.mu.Lock()
	rows, ok := s.sessions[sessionID]
	if ok {
		delete(s.sessions, sessionID)
	}
	s.mu.Unlock()

	if !ok {
		return nil, ErrSessionNotFound
	}

	imported := 0
	for _, tx := range rows {
		if _, err := s.service.Create(tx); err != nil {
			return nil, fmt.Errorf("failed to record row for %s: %w", tx.Symbol, err)
		}
		imported++
	}

	s.events.Emit(events.ImportCommitted, "transactions", map[string]interface{}{
		"session_id": sessionID,
		"imported":   imported,
	})

	return &ImportResult{SessionID: sessionID, Imported: imported}, nil
}

func isHeaderRow(record []string) bool {
	return len(record) > 0 && strings.EqualFold(strings.TrimSpace(record[0]), importColumns[0])
}

func parseImportRow(record []string) (Transaction, error) {
	var tx Transaction

	if len(record) < 5 {
		return tx, fmt.Errorf("expected at least 5 columns (%s), got %d",
			strings.Join(importColumns[:5], ","), len(record))
	}

	executedAt, err := parseImportDate(record[0])
	if err != nil {
		return tx, err
	}
	tx.ExecutedAt = executedAt

	tx.Symbol = strings.ToUpper(strings.TrimSpace(record[1]))
	tx.Side = domain.Side(strings.ToUpper(strings.TrimSpace(record[2])))

	if tx.Quantity, err = decimal.NewFromString(strings.TrimSpace(record[3])); err != nil {
		return tx, fmt.Errorf("bad quantity %q", record[3])
	}
	if tx.Price, err = decimal.NewFromString(strings.TrimSpace(record[4])); err != nil {
		return tx, fmt.Errorf("bad price %q", record[4])
	}

	tx.Fees = decimal.Zero
	if len(record) > 5 && strings.TrimSpace(record[5]) != "" {
		if tx.Fees, err = decimal.NewFromString(strings.TrimSpace(record[5])); err != nil {
			return tx, fmt.Errorf("bad fees %q", record[5])
		}
	}
	if len(record) > 6 {
		tx.Note = strings.TrimSpace(record[6])
	}

	if err := validateTransaction(tx); err != nil {
		return tx, err
	}
	return tx, nil
}

func parseImportDate(raw string) (time.Time, error) {
	raw = strings.TrimSpace(raw)
	for _, layout := range []string{"2006-01-02", time.RFC3339, "01/02/2006"} {
		if t, err := time.Parse(layout, raw); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("bad date %q", raw)
}
