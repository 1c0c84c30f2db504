package charts

import (
	"database/sql"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/zerolog"
	_ "modernc.org/sqlite" // Pure Go SQLite driver

	"github.com/tickertap/tickertap/internal/domain"
)

// HistoryCache stores fetched daily price history, one small database file
// per symbol. It is the middle rung of the fallback ladder: remote feed,
// then cache, then synthetic data.
type HistoryCache struct {
	dir string
	log zerolog.Logger
}

// NewHistoryCache creates a cache rooted at dir.
func NewHistoryCache(dir string, log zerolog.Logger) *HistoryCache {
	return &HistoryCache{
		dir: dir,
		log: log.With().Str("component", "history_cache").Logger(),
	}
}

// Store upserts a series into the symbol's cache database. Bars with missing
// prices are stored with NULL columns so they round-trip as NaN.
func (h *HistoryCache) Store(symbol string, bars domain.PriceSeries) error {
	if len(bars) == 0 {
		return nil
	}

	db, err := h.open(symbol, true)
	if err != nil {
		return err
	}
	defer db.Close()

	tx, err := db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin cache transaction: %w", err)
	}

	stmt, err := tx.Prepare(`
		INSERT INTO daily_prices (date, open, high, low, close, volume, is_earnings)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(date) DO UPDATE SET
			open = excluded.open,
			high = excluded.high,
			low = excluded.low,
			close = excluded.close,
			volume = excluded.volume,
			is_earnings = excluded.is_earnings
	`)
	if err != nil {
		tx.Rollback()
		return fmt.Errorf("failed to prepare upsert: %w", err)
	}
	defer stmt.Close()

	for _, b := range bars {
		_, err := stmt.Exec(
			b.Date.Format("2006-01-02"),
			nullableFloat(b.Open),
			nullableFloat(b.High),
			nullableFloat(b.Low),
			nullableFloat(b.Close),
			b.Volume,
			b.IsEarnings,
		)
		if err != nil {
			tx.Rollback()
			return fmt.Errorf("failed to upsert bar: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit cache transaction: %w", err)
	}

	h.log.Debug().Str("symbol", symbol).Int("bars", len(bars)).Msg("History cached")
	return nil
}

// Load reads the cached series for a symbol in ascending date order.
// A missing cache file yields an empty series, not an error.
func (h *HistoryCache) Load(symbol string) (domain.PriceSeries, error) {
	path := h.pathFor(symbol)
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil, nil
	}

	db, err := h.open(symbol, false)
	if err != nil {
		return nil, err
	}
	defer db.Close()

	rows, err := db.Query(`
		SELECT date, open, high, low, close, volume, is_earnings
		FROM daily_prices
		ORDER BY date ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to query cached prices: %w", err)
	}
	defer rows.Close()

	var bars domain.PriceSeries
	for rows.Next() {
		var (
			dateStr    string
			open       sql.NullFloat64
			high       sql.NullFloat64
			low        sql.NullFloat64
			closeP     sql.NullFloat64
			volume     sql.NullInt64
			isEarnings bool
		)
		if err := rows.Scan(&dateStr, &open, &high, &low, &closeP, &volume, &isEarnings); err != nil {
			return nil, fmt.Errorf("failed to scan cached bar: %w", err)
		}

		date, err := time.Parse("2006-01-02", dateStr)
		if err != nil {
			continue
		}

		bars = append(bars, domain.Bar{
			Date:       date,
			Open:       floatFromNull(open),
			High:       floatFromNull(high),
			Low:        floatFromNull(low),
			Close:      floatFromNull(closeP),
			Volume:     volume.Int64,
			IsEarnings: isEarnings,
		})
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating cached prices: %w", err)
	}

	return bars, nil
}

// open opens the per-symbol database, creating directory and schema when
// asked to.
func (h *HistoryCache) open(symbol string, create bool) (*sql.DB, error) {
	if create {
		if err := os.MkdirAll(h.dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create history directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", h.pathFor(symbol))
	if err != nil {
		return nil, fmt.Errorf("failed to open history cache for %s: %w", symbol, err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping history cache for %s: %w", symbol, err)
	}

	if create {
		_, err := db.Exec(`
			CREATE TABLE IF NOT EXISTS daily_prices (
				date TEXT PRIMARY KEY,
				open REAL,
				high REAL,
				low REAL,
				close REAL,
				volume INTEGER NOT NULL DEFAULT 0,
				is_earnings INTEGER NOT NULL DEFAULT 0
			)
		`)
		if err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to create cache schema: %w", err)
		}
	}

	return db, nil
}

// pathFor maps a symbol to its cache file: AAPL.US -> AAPL_US.db
func (h *HistoryCache) pathFor(symbol string) string {
	safe := strings.ReplaceAll(strings.ToUpper(symbol), ".", "_")
	safe = strings.ReplaceAll(safe, "/", "_")
	return filepath.Join(h.dir, safe+".db")
}

func nullableFloat(v float64) interface{} {
	if math.IsNaN(v) {
		return nil
	}
	return v
}

func floatFromNull(v sql.NullFloat64) float64 {
	if !v.Valid {
		return math.NaN()
	}
	return v.Float64
}
