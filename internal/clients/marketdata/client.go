package marketdata

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/tickertap/tickertap/internal/domain"
)

// OHLCV is the result of a history fetch. VolumeSource, when set, names the
// proxy instrument whose volume was borrowed (UI label only, no behavioral
// effect on calculations).
type OHLCV struct {
	Bars         domain.PriceSeries
	VolumeSource *string
}

// Client talks to the upstream market data service.
type Client struct {
	baseURL string
	client  *http.Client
	log     zerolog.Logger
}

// NewClient creates a new market data client
func NewClient(baseURL string, log zerolog.Logger) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		client: &http.Client{
			Timeout: 30 * time.Second,
		},
		log: log.With().Str("client", "marketdata").Logger(),
	}
}

// FetchOHLCV fetches the daily price history for a symbol over a named range
// ("1Y", "5Y", "all", ...). Bars with missing price fields come back with NaN
// prices rather than an error.
func (c *Client) FetchOHLCV(ctx context.Context, symbol, rng string) (*OHLCV, error) {
	params := url.Values{}
	params.Set("range", rng)

	endpoint := fmt.Sprintf("%s/v1/history/%s?%s", c.baseURL, url.PathEscape(symbol), params.Encode())

	var payload ohlcvPayload
	if err := c.getJSON(ctx, endpoint, &payload); err != nil {
		return nil, fmt.Errorf("failed to fetch history for %s: %w", symbol, err)
	}

	bars := make(domain.PriceSeries, 0, len(payload.Bars))
	for _, raw := range payload.Bars {
		date, err := time.Parse("2006-01-02", raw.Date)
		if err != nil {
			c.log.Warn().Str("symbol", symbol).Str("date", raw.Date).Msg("Skipping bar with unparseable date")
			continue
		}

		bars = append(bars, domain.Bar{
			Date:       date,
			Open:       floatOrNaN(raw.Open),
			High:       floatOrNaN(raw.High),
			Low:        floatOrNaN(raw.Low),
			Close:      floatOrNaN(raw.Close),
			Volume:     int64OrZero(raw.Volume),
			IsEarnings: raw.IsEarnings,
		})
	}

	return &OHLCV{
		Bars:         bars,
		VolumeSource: payload.VolumeSource,
	}, nil
}

// FetchQuotes fetches a batch of live quotes.
func (c *Client) FetchQuotes(ctx context.Context, symbols []string) ([]domain.Quote, error) {
	if len(symbols) == 0 {
		return nil, nil
	}

	params := url.Values{}
	params.Set("symbols", strings.Join(symbols, ","))

	endpoint := fmt.Sprintf("%s/v1/quotes?%s", c.baseURL, params.Encode())

	var payload quotesEnvelope
	if err := c.getJSON(ctx, endpoint, &payload); err != nil {
		return nil, fmt.Errorf("failed to fetch quotes: %w", err)
	}

	now := time.Now()
	quotes := make([]domain.Quote, 0, len(payload.Quotes))
	for _, q := range payload.Quotes {
		quotes = append(quotes, domain.Quote{
			Symbol:    q.Symbol,
			Price:     q.Price,
			Change:    q.Change,
			ChangePct: q.ChangePct,
			AsOf:      now,
		})
	}

	return quotes, nil
}

// getJSON performs a GET request and decodes the JSON response.
func (c *Client) getJSON(ctx context.Context, endpoint string, out interface{}) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unexpected status %d", resp.StatusCode)
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}

func floatOrNaN(v *float64) float64 {
	if v == nil {
		return math.NaN()
	}
	return *v
}

func int64OrZero(v *int64) int64 {
	if v == nil {
		return 0
	}
	return *v
}
