package transactions

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tickertap/tickertap/internal/database"
	"github.com/tickertap/tickertap/internal/domain"
	"github.com/tickertap/tickertap/internal/events"
)

func newTestService(t *testing.T, lastPrice PriceSource) *Service {
	t.Helper()

	db, err := database.New(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	require.NoError(t, db.Migrate())

	log := zerolog.Nop()
	if lastPrice == nil {
		lastPrice = func(string) (float64, bool) { return 0, false }
	}

	return NewService(
		NewRepository(db.Conn(), log),
		NewOrderRepository(db.Conn(), log),
		events.NewManager(log),
		lastPrice,
		log,
	)
}

func tx(symbol string, side domain.Side, qty, price, fees string, day int) Transaction {
	return Transaction{
		Symbol:     symbol,
		Side:       side,
		Quantity:   decimal.RequireFromString(qty),
		Price:      decimal.RequireFromString(price),
		Fees:       decimal.RequireFromString(fees),
		ExecutedAt: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC).AddDate(0, 0, day),
	}
}

func TestCreateAndGetTransaction(t *testing.T) {
	svc := newTestService(t, nil)

	created, err := svc.Create(tx("aapl", domain.SideBuy, "10", "187.50", "1.00", 0))
	require.NoError(t, err)
	assert.Equal(t, "AAPL", created.Symbol, "symbols are normalized to upper case")
	assert.NotZero(t, created.ID)

	got, err := svc.Get(created.ID)
	require.NoError(t, err)
	assert.True(t, got.Quantity.Equal(decimal.RequireFromString("10")))
	assert.True(t, got.Price.Equal(decimal.RequireFromString("187.50")))
}

func TestCreateValidation(t *testing.T) {
	svc := newTestService(t, nil)

	tests := []struct {
		name string
		tx   Transaction
	}{
		{"empty symbol", tx("", domain.SideBuy, "10", "100", "0", 0)},
		{"bad side", tx("AAPL", "HOLD", "10", "100", "0", 0)},
		{"zero quantity", tx("AAPL", domain.SideBuy, "0", "100", "0", 0)},
		{"negative quantity", tx("AAPL", domain.SideBuy, "-5", "100", "0", 0)},
		{"negative price", tx("AAPL", domain.SideBuy, "10", "-1", "0", 0)},
		{"negative fees", tx("AAPL", domain.SideBuy, "10", "100", "-1", 0)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.Create(tt.tx)
			assert.Error(t, err)
		})
	}
}

func TestHoldingsAggregation(t *testing.T) {
	svc := newTestService(t, nil)

	for _, transaction := range []Transaction{
		tx("AAPL", domain.SideBuy, "10", "100", "5", 0),
		tx("AAPL", domain.SideBuy, "10", "110", "5", 1),
		tx("AAPL", domain.SideSell, "5", "120", "2", 2),
		tx("MSFT", domain.SideBuy, "3", "400", "0", 1),
	} {
		_, err := svc.Create(transaction)
		require.NoError(t, err)
	}

	holdings, err := svc.Holdings()
	require.NoError(t, err)
	require.Len(t, holdings, 2)

	aapl := holdings[0]
	require.Equal(t, "AAPL", aapl.Symbol)
	// Cost basis after buys: 10*100+5 + 10*110+5 = 2110, avg cost 105.50.
	// Selling 5 at 120 realizes 5*(120-105.50) - 2 = 70.50 and removes
	// 5*105.50 = 527.50 of basis.
	assert.True(t, aapl.Quantity.Equal(decimal.RequireFromString("15")), "quantity %s", aapl.Quantity)
	assert.True(t, aapl.AvgCost.Equal(decimal.RequireFromString("105.5")), "avg cost %s", aapl.AvgCost)
	assert.True(t, aapl.CostBasis.Equal(decimal.RequireFromString("1582.5")), "cost basis %s", aapl.CostBasis)
	assert.True(t, aapl.RealizedPL.Equal(decimal.RequireFromString("70.5")), "realized %s", aapl.RealizedPL)

	msft := holdings[1]
	require.Equal(t, "MSFT", msft.Symbol)
	assert.True(t, msft.Quantity.Equal(decimal.RequireFromString("3")))
	assert.True(t, msft.AvgCost.Equal(decimal.RequireFromString("400")))
	assert.True(t, msft.RealizedPL.IsZero())
}

func TestHoldingsFullExit(t *testing.T) {
	svc := newTestService(t, nil)

	_, err := svc.Create(tx("AAPL", domain.SideBuy, "10", "100", "0", 0))
	require.NoError(t, err)
	_, err = svc.Create(tx("AAPL", domain.SideSell, "10", "130", "0", 1))
	require.NoError(t, err)

	holdings, err := svc.Holdings()
	require.NoError(t, err)
	require.Len(t, holdings, 1)

	assert.True(t, holdings[0].Quantity.IsZero())
	assert.True(t, holdings[0].AvgCost.IsZero(), "closed positions have no average cost")
	assert.True(t, holdings[0].RealizedPL.Equal(decimal.RequireFromString("300")))
}

func TestActiveSymbols(t *testing.T) {
	svc := newTestService(t, nil)

	_, err := svc.Create(tx("MSFT", domain.SideBuy, "1", "400", "0", 0))
	require.NoError(t, err)
	_, err = svc.Create(tx("AAPL", domain.SideBuy, "1", "180", "0", 1))
	require.NoError(t, err)

	symbols, err := svc.ActiveSymbols()
	require.NoError(t, err)
	assert.Equal(t, []string{"AAPL", "MSFT"}, symbols)
}

func TestPlaceMarketOrderFills(t *testing.T) {
	svc := newTestService(t, func(symbol string) (float64, bool) {
		return 187.5, true
	})

	placed, err := svc.PlaceOrder(Order{
		Symbol:   "AAPL",
		Side:     domain.SideBuy,
		Type:     OrderTypeMarket,
		Quantity: decimal.RequireFromString("10"),
	})
	require.NoError(t, err)
	assert.Equal(t, OrderStatusFilled, placed.Status)

	// The fill records a transaction at the quoted price.
	txs, err := svc.List(0)
	require.NoError(t, err)
	require.Len(t, txs, 1)
	assert.Equal(t, "AAPL", txs[0].Symbol)
	assert.True(t, txs[0].Price.Equal(decimal.NewFromFloat(187.5)))
}

func TestPlaceMarketOrderWithoutPriceStaysOpen(t *testing.T) {
	svc := newTestService(t, nil)

	placed, err := svc.PlaceOrder(Order{
		Symbol:   "AAPL",
		Side:     domain.SideBuy,
		Type:     OrderTypeMarket,
		Quantity: decimal.RequireFromString("10"),
	})
	require.NoError(t, err)
	assert.Equal(t, OrderStatusOpen, placed.Status)

	txs, err := svc.List(0)
	require.NoError(t, err)
	assert.Empty(t, txs)
}

func TestLimitOrderLifecycle(t *testing.T) {
	svc := newTestService(t, nil)

	limit := decimal.RequireFromString("150")
	placed, err := svc.PlaceOrder(Order{
		Symbol:     "AAPL",
		Side:       domain.SideBuy,
		Type:       OrderTypeLimit,
		Quantity:   decimal.RequireFromString("5"),
		LimitPrice: &limit,
	})
	require.NoError(t, err)
	assert.Equal(t, OrderStatusOpen, placed.Status)

	require.NoError(t, svc.CancelOrder(placed.ID))

	orders, err := svc.ListOrders(OrderStatusCancelled)
	require.NoError(t, err)
	require.Len(t, orders, 1)
	assert.Equal(t, placed.ID, orders[0].ID)

	// Cancelling twice must fail: only open orders can be cancelled.
	assert.Error(t, svc.CancelOrder(placed.ID))
}

func TestLimitOrderRequiresPrice(t *testing.T) {
	svc := newTestService(t, nil)

	_, err := svc.PlaceOrder(Order{
		Symbol:   "AAPL",
		Side:     domain.SideBuy,
		Type:     OrderTypeLimit,
		Quantity: decimal.RequireFromString("5"),
	})
	assert.Error(t, err)
}

func TestUpdateAndDeleteTransaction(t *testing.T) {
	svc := newTestService(t, nil)

	created, err := svc.Create(tx("AAPL", domain.SideBuy, "10", "100", "0", 0))
	require.NoError(t, err)

	updated := *created
	updated.Quantity = decimal.RequireFromString("12")
	require.NoError(t, svc.Update(updated))

	got, err := svc.Get(created.ID)
	require.NoError(t, err)
	assert.True(t, got.Quantity.Equal(decimal.RequireFromString("12")))

	require.NoError(t, svc.Delete(created.ID))
	_, err = svc.Get(created.ID)
	assert.ErrorIs(t, err, ErrNotFound)

	assert.ErrorIs(t, svc.Delete(created.ID), ErrNotFound)
}
