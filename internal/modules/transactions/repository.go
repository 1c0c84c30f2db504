package transactions

import (
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/tickertap/tickertap/internal/domain"
)

// ErrNotFound is returned when a record does not exist
var ErrNotFound = errors.New("not found")

// Repository handles transaction database operations
type Repository struct {
	db  *sql.DB
	log zerolog.Logger
}

// NewRepository creates a new transaction repository
func NewRepository(db *sql.DB, log zerolog.Logger) *Repository {
	return &Repository{
		db:  db,
		log: log.With().Str("repo", "transactions").Logger(),
	}
}

// Create inserts a new transaction and returns it with its assigned id.
func (r *Repository) Create(tx Transaction) (*Transaction, error) {
	now := time.Now()

	result, err := r.db.Exec(`
		INSERT INTO transactions (symbol, side, quantity, price, fees, executed_at, note, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`,
		strings.ToUpper(strings.TrimSpace(tx.Symbol)),
		string(tx.Side),
		tx.Quantity.String(),
		tx.Price.String(),
		tx.Fees.String(),
		tx.ExecutedAt.Format(time.RFC3339),
		nullString(tx.Note),
		now.Format(time.RFC3339),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create transaction: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("failed to read transaction id: %w", err)
	}

	tx.ID = id
	tx.Symbol = strings.ToUpper(strings.TrimSpace(tx.Symbol))
	tx.CreatedAt = now
	return &tx, nil
}

// Update rewrites an existing transaction.
func (r *Repository) Update(tx Transaction) error {
	result, err := r.db.Exec(`
		UPDATE transactions
		SET symbol = ?, side = ?, quantity = ?, price = ?, fees = ?, executed_at = ?, note = ?
		WHERE id = ?
	`,
		strings.ToUpper(strings.TrimSpace(tx.Symbol)),
		string(tx.Side),
		tx.Quantity.String(),
		tx.Price.String(),
		tx.Fees.String(),
		tx.ExecutedAt.Format(time.RFC3339),
		nullString(tx.Note),
		tx.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update transaction: %w", err)
	}

	return requireRowChange(result)
}

// Delete removes a transaction by id.
func (r *Repository) Delete(id int64) error {
	result, err := r.db.Exec(`DELETE FROM transactions WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete transaction: %w", err)
	}
	return requireRowChange(result)
}

// GetByID fetches a single transaction.
func (r *Repository) GetByID(id int64) (*Transaction, error) {
	row := r.db.QueryRow(`
		SELECT id, symbol, side, quantity, price, fees, executed_at, note, created_at
		FROM transactions
		WHERE id = ?
	`, id)

	tx, err := scanTransaction(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return tx, nil
}

// List returns transactions newest-first, up to limit (0 for no limit).
func (r *Repository) List(limit int) ([]Transaction, error) {
	query := `
		SELECT id, symbol, side, quantity, price, fees, executed_at, note, created_at
		FROM transactions
		ORDER BY executed_at DESC, id DESC
	`
	args := []interface{}{}
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := r.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query transactions: %w", err)
	}
	defer rows.Close()

	return collectTransactions(rows)
}

// ListChronological returns all transactions oldest-first, the order the
// holdings aggregation needs.
func (r *Repository) ListChronological() ([]Transaction, error) {
	rows, err := r.db.Query(`
		SELECT id, symbol, side, quantity, price, fees, executed_at, note, created_at
		FROM transactions
		ORDER BY executed_at ASC, id ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to query transactions: %w", err)
	}
	defer rows.Close()

	return collectTransactions(rows)
}

// Symbols returns the distinct symbols present in the transaction log.
func (r *Repository) Symbols() ([]string, error) {
	rows, err := r.db.Query(`SELECT DISTINCT symbol FROM transactions ORDER BY symbol`)
	if err != nil {
		return nil, fmt.Errorf("failed to query symbols: %w", err)
	}
	defer rows.Close()

	var symbols []string
	for rows.Next() {
		var s string
		if err := rows.Scan(&s); err != nil {
			return nil, fmt.Errorf("failed to scan symbol: %w", err)
		}
		symbols = append(symbols, s)
	}
	return symbols, rows.Err()
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanTransaction(row rowScanner) (*Transaction, error) {
	var (
		tx          Transaction
		side        string
		quantity    string
		price       string
		fees        string
		executedStr string
		createdStr  string
		note        sql.NullString
	)

	err := row.Scan(&tx.ID, &tx.Symbol, &side, &quantity, &price, &fees, &executedStr, &note, &createdStr)
	if err != nil {
		return nil, err
	}

	tx.Side = domain.Side(side)
	tx.Note = note.String

	if tx.Quantity, err = decimal.NewFromString(quantity); err != nil {
		return nil, fmt.Errorf("bad quantity %q: %w", quantity, err)
	}
	if tx.Price, err = decimal.NewFromString(price); err != nil {
		return nil, fmt.Errorf("bad price %q: %w", price, err)
	}
	if tx.Fees, err = decimal.NewFromString(fees); err != nil {
		return nil, fmt.Errorf("bad fees %q: %w", fees, err)
	}
	if tx.ExecutedAt, err = time.Parse(time.RFC3339, executedStr); err != nil {
		return nil, fmt.Errorf("bad executed_at %q: %w", executedStr, err)
	}
	if tx.CreatedAt, err = time.Parse(time.RFC3339, createdStr); err != nil {
		return nil, fmt.Errorf("bad created_at %q: %w", createdStr, err)
	}

	return &tx, nil
}

func collectTransactions(rows *sql.Rows) ([]Transaction, error) {
	var txs []Transaction
	for rows.Next() {
		tx, err := scanTransaction(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan transaction: %w", err)
		}
		txs = append(txs, *tx)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating transactions: %w", err)
	}
	return txs, nil
}

func requireRowChange(result sql.Result) error {
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read affected rows: %w", err)
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}

func nullString(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}
