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

// OrderRepository handles order database operations
type OrderRepository struct {
	db  *sql.DB
	log zerolog.Logger
}

// NewOrderRepository creates a new order repository
func NewOrderRepository(db *sql.DB, log zerolog.Logger) *OrderRepository {
	return &OrderRepository{
		db:  db,
		log: log.With().Str("repo", "orders").Logger(),
	}
}

// Create inserts a new order and returns it with its assigned id.
func (r *OrderRepository) Create(order Order) (*Order, error) {
	now := time.Now()

	var limitPrice interface{}
	if order.LimitPrice != nil {
		limitPrice = order.LimitPrice.String()
	}

	result, err := r.db.Exec(`
		INSERT INTO orders (symbol, side, order_type, quantity, limit_price, status, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`,
		strings.ToUpper(strings.TrimSpace(order.Symbol)),
		string(order.Side),
		string(order.Type),
		order.Quantity.String(),
		limitPrice,
		string(order.Status),
		now.Format(time.RFC3339),
		now.Format(time.RFC3339),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create order: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("failed to read order id: %w", err)
	}

	order.ID = id
	order.Symbol = strings.ToUpper(strings.TrimSpace(order.Symbol))
	order.CreatedAt = now
	order.UpdatedAt = now
	return &order, nil
}

// GetByID fetches a single order.
func (r *OrderRepository) GetByID(id int64) (*Order, error) {
	row := r.db.QueryRow(`
		SELECT id, symbol, side, order_type, quantity, limit_price, status, created_at, updated_at
		FROM orders
		WHERE id = ?
	`, id)

	order, err := scanOrder(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return order, nil
}

// List returns orders newest-first, optionally filtered by status.
func (r *OrderRepository) List(status OrderStatus) ([]Order, error) {
	query := `
		SELECT id, symbol, side, order_type, quantity, limit_price, status, created_at, updated_at
		FROM orders
	`
	args := []interface{}{}
	if status != "" {
		query += " WHERE status = ?"
		args = append(args, string(status))
	}
	query += " ORDER BY created_at DESC, id DESC"

	rows, err := r.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query orders: %w", err)
	}
	defer rows.Close()

	var orders []Order
	for rows.Next() {
		order, err := scanOrder(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan order: %w", err)
		}
		orders = append(orders, *order)
	}
	return orders, rows.Err()
}

// UpdateStatus moves an order to a new lifecycle state.
func (r *OrderRepository) UpdateStatus(id int64, status OrderStatus) error {
	result, err := r.db.Exec(`
		UPDATE orders SET status = ?, updated_at = ? WHERE id = ?
	`, string(status), time.Now().Format(time.RFC3339), id)
	if err != nil {
		return fmt.Errorf("failed to update order status: %w", err)
	}
	return requireRowChange(result)
}

func scanOrder(row rowScanner) (*Order, error) {
	var (
		order      Order
		side       string
		orderType  string
		quantity   string
		limitPrice sql.NullString
		status     string
		createdStr string
		updatedStr string
	)

	err := row.Scan(&order.ID, &order.Symbol, &side, &orderType, &quantity, &limitPrice, &status, &createdStr, &updatedStr)
	if err != nil {
		return nil, err
	}

	order.Side = domain.Side(side)
	order.Type = OrderType(orderType)
	order.Status = OrderStatus(status)

	if order.Quantity, err = decimal.NewFromString(quantity); err != nil {
		return nil, fmt.Errorf("bad quantity %q: %w", quantity, err)
	}
	if limitPrice.Valid {
		lp, err := decimal.NewFromString(limitPrice.String)
		if err != nil {
			return nil, fmt.Errorf("bad limit price %q: %w", limitPrice.String, err)
		}
		order.LimitPrice = &lp
	}
	if order.CreatedAt, err = time.Parse(time.RFC3339, createdStr); err != nil {
		return nil, fmt.Errorf("bad created_at %q: %w", createdStr, err)
	}
	if order.UpdatedAt, err = time.Parse(time.RFC3339, updatedStr); err != nil {
		return nil, fmt.Errorf("bad updated_at %q: %w", updatedStr, err)
	}

	return &order, nil
}
