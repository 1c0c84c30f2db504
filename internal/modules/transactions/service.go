package transactions

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/tickertap/tickertap/internal/domain"
	"github.com/tickertap/tickertap/internal/events"
)

// PriceSource provides the latest known price for a symbol, used to fill
// simulated market orders.
type PriceSource func(symbol string) (float64, bool)

// Service implements transaction, holdings and order operations.
type Service struct {
	repo      *Repository
	orders    *OrderRepository
	events    *events.Manager
	lastPrice PriceSource
	log       zerolog.Logger
}

// NewService creates a transactions service.
func NewService(
	repo *Repository,
	orders *OrderRepository,
	eventManager *events.Manager,
	lastPrice PriceSource,
	log zerolog.Logger,
) *Service {
	return &Service{
		repo:      repo,
		orders:    orders,
		events:    eventManager,
		lastPrice: lastPrice,
		log:       log.With().Str("service", "transactions").Logger(),
	}
}

// Create validates and records a transaction.
func (s *Service) Create(tx Transaction) (*Transaction, error) {
	if err := validateTransaction(tx); err != nil {
		return nil, err
	}

	created, err := s.repo.Create(tx)
	if err != nil {
		return nil, err
	}

	s.events.Emit(events.TransactionCreated, "transactions", map[string]interface{}{
		"id":     created.ID,
		"symbol": created.Symbol,
		"side":   string(created.Side),
	})

	return created, nil
}

// Update validates and rewrites a transaction.
func (s *Service) Update(tx Transaction) error {
	if err := validateTransaction(tx); err != nil {
		return err
	}
	if err := s.repo.Update(tx); err != nil {
		return err
	}

	s.events.Emit(events.TransactionUpdated, "transactions", map[string]interface{}{
		"id": tx.ID,
	})
	return nil
}

// Delete removes a transaction.
func (s *Service) Delete(id int64) error {
	if err := s.repo.Delete(id); err != nil {
		return err
	}
	s.events.Emit(events.TransactionDeleted, "transactions", map[string]interface{}{
		"id": id,
	})
	return nil
}

// Get fetches a transaction by id.
func (s *Service) Get(id int64) (*Transaction, error) {
	return s.repo.GetByID(id)
}

// List returns transactions newest-first.
func (s *Service) List(limit int) ([]Transaction, error) {
	return s.repo.List(limit)
}

// ActiveSymbols lists the symbols held or traded; it also feeds the nightly
// history refresh job.
func (s *Service) ActiveSymbols() ([]string, error) {
	return s.repo.Symbols()
}

// Holdings derives current positions from the full transaction log: net
// quantity, average cost and realized P/L per symbol, oldest trades first.
func (s *Service) Holdings() ([]Holding, error) {
	txs, err := s.repo.ListChronological()
	if err != nil {
		return nil, err
	}

	type position struct {
		quantity  decimal.Decimal
		costBasis decimal.Decimal
		realized  decimal.Decimal
	}
	positions := make(map[string]*position)

	for _, tx := range txs {
		pos, ok := positions[tx.Symbol]
		if !ok {
			pos = &position{}
			positions[tx.Symbol] = pos
		}

		switch tx.Side {
		case domain.SideBuy:
			pos.costBasis = pos.costBasis.Add(tx.Quantity.Mul(tx.Price)).Add(tx.Fees)
			pos.quantity = pos.quantity.Add(tx.Quantity)
		case domain.SideSell:
			if pos.quantity.IsPositive() {
				avgCost := pos.costBasis.Div(pos.quantity)
				sellQty := decimal.Min(tx.Quantity, pos.quantity)
				pos.realized = pos.realized.
					Add(sellQty.Mul(tx.Price.Sub(avgCost))).
					Sub(tx.Fees)
				pos.costBasis = pos.costBasis.Sub(sellQty.Mul(avgCost))
				pos.quantity = pos.quantity.Sub(sellQty)
			}
		}
	}

	holdings := make([]Holding, 0, len(positions))
	for symbol, pos := range positions {
		h := Holding{
			Symbol:     symbol,
			Quantity:   pos.quantity,
			CostBasis:  pos.costBasis,
			RealizedPL: pos.realized,
		}
		if pos.quantity.IsPositive() {
			h.AvgCost = pos.costBasis.Div(pos.quantity).Round(4)
		}
		holdings = append(holdings, h)
	}

	sort.Slice(holdings, func(i, j int) bool {
		return holdings[i].Symbol < holdings[j].Symbol
	})

	return holdings, nil
}

// PlaceOrder records an order. Market orders fill immediately at the latest
// known price (simulated broker) and record a transaction; limit orders stay
// open until cancelled.
func (s *Service) PlaceOrder(order Order) (*Order, error) {
	if err := validateOrder(order); err != nil {
		return nil, err
	}

	order.Status = OrderStatusOpen
	created, err := s.orders.Create(order)
	if err != nil {
		return nil, err
	}

	s.events.Emit(events.OrderPlaced, "transactions", map[string]interface{}{
		"id":     created.ID,
		"symbol": created.Symbol,
		"type":   string(created.Type),
	})

	if created.Type == OrderTypeMarket {
		if filled, err := s.fillOrder(created); err != nil {
			s.log.Warn().Err(err).Int64("order_id", created.ID).Msg("Market order left open")
		} else {
			return filled, nil
		}
	}

	return created, nil
}

// ListOrders returns orders, optionally filtered by status.
func (s *Service) ListOrders(status OrderStatus) ([]Order, error) {
	return s.orders.List(status)
}

// CancelOrder cancels an open order.
func (s *Service) CancelOrder(id int64) error {
	order, err := s.orders.GetByID(id)
	if err != nil {
		return err
	}
	if order.Status != OrderStatusOpen {
		return fmt.Errorf("order %d is %s, only open orders can be cancelled", id, order.Status)
	}

	if err := s.orders.UpdateStatus(id, OrderStatusCancelled); err != nil {
		return err
	}

	s.events.Emit(events.OrderCancelled, "transactions", map[string]interface{}{
		"id": id,
	})
	return nil
}

// fillOrder simulates execution at the latest known price.
func (s *Service) fillOrder(order *Order) (*Order, error) {
	price, ok := s.lastPrice(order.Symbol)
	if !ok || price <= 0 {
		return nil, fmt.Errorf("no price available for %s", order.Symbol)
	}

	_, err := s.repo.Create(Transaction{
		Symbol:     order.Symbol,
		Side:       order.Side,
		Quantity:   order.Quantity,
		Price:      decimal.NewFromFloat(price),
		Fees:       decimal.Zero,
		ExecutedAt: order.CreatedAt,
		Note:       fmt.Sprintf("order #%d fill", order.ID),
	})
	if err != nil {
		return nil, err
	}

	if err := s.orders.UpdateStatus(order.ID, OrderStatusFilled); err != nil {
		return nil, err
	}
	order.Status = OrderStatusFilled

	s.events.Emit(events.OrderFilled, "transactions", map[string]interface{}{
		"id":    order.ID,
		"price": price,
	})

	return order, nil
}

func validateTransaction(tx Transaction) error {
	if strings.TrimSpace(tx.Symbol) == "" {
		return errors.New("symbol is required")
	}
	if tx.Side != domain.SideBuy && tx.Side != domain.SideSell {
		return fmt.Errorf("invalid side %q", tx.Side)
	}
	if !tx.Quantity.IsPositive() {
		return errors.New("quantity must be positive")
	}
	if tx.Price.IsNegative() {
		return errors.New("price must not be negative")
	}
	if tx.Fees.IsNegative() {
		return errors.New("fees must not be negative")
	}
	if tx.ExecutedAt.IsZero() {
		return errors.New("executed_at is required")
	}
	return nil
}

func validateOrder(order Order) error {
	if strings.TrimSpace(order.Symbol) == "" {
		return errors.New("symbol is required")
	}
	if order.Side != domain.SideBuy && order.Side != domain.SideSell {
		return fmt.Errorf("invalid side %q", order.Side)
	}
	if order.Type != OrderTypeMarket && order.Type != OrderTypeLimit {
		return fmt.Errorf("invalid order type %q", order.Type)
	}
	if !order.Quantity.IsPositive() {
		return errors.New("quantity must be positive")
	}
	if order.Type == OrderTypeLimit && (order.LimitPrice == nil || !order.LimitPrice.IsPositive()) {
		return errors.New("limit orders require a positive limit price")
	}
	return nil
}
