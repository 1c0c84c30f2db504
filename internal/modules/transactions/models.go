package transactions

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/tickertap/tickertap/internal/domain"
)

// Transaction represents one recorded trade.
type Transaction struct {
	ID         int64           `json:"id"`
	Symbol     string          `json:"symbol"`
	Side       domain.Side     `json:"side"`
	Quantity   decimal.Decimal `json:"quantity"`
	Price      decimal.Decimal `json:"price"`
	Fees       decimal.Decimal `json:"fees"`
	ExecutedAt time.Time       `json:"executed_at"`
	Note       string          `json:"note,omitempty"`
	CreatedAt  time.Time       `json:"created_at"`
}

// Holding is the derived position for one symbol. It is always recomputed
// from the transaction log, never stored.
type Holding struct {
	Symbol     string          `json:"symbol"`
	Quantity   decimal.Decimal `json:"quantity"`
	AvgCost    decimal.Decimal `json:"avg_cost"`
	CostBasis  decimal.Decimal `json:"cost_basis"`
	RealizedPL decimal.Decimal `json:"realized_pl"`
}

// OrderType is the execution style of an order
type OrderType string

// OrderStatus is the lifecycle state of an order
type OrderStatus string

const (
	OrderTypeMarket OrderType = "MARKET"
	OrderTypeLimit  OrderType = "LIMIT"

	OrderStatusOpen      OrderStatus = "OPEN"
	OrderStatusFilled    OrderStatus = "FILLED"
	OrderStatusCancelled OrderStatus = "CANCELLED"
)

// Order represents a simulated broker order.
type Order struct {
	ID         int64            `json:"id"`
	Symbol     string           `json:"symbol"`
	Side       domain.Side      `json:"side"`
	Type       OrderType        `json:"type"`
	Quantity   decimal.Decimal  `json:"quantity"`
	LimitPrice *decimal.Decimal `json:"limit_price,omitempty"`
	Status     OrderStatus      `json:"status"`
	CreatedAt  time.Time        `json:"created_at"`
	UpdatedAt  time.Time        `json:"updated_at"`
}
