package charts

import (
	"context"
	"fmt"
	"math"
	"sync"

	"github.com/rs/zerolog"

	"github.com/tickertap/tickertap/internal/clients/marketdata"
	"github.com/tickertap/tickertap/internal/config"
	"github.com/tickertap/tickertap/internal/domain"
	"github.com/tickertap/tickertap/internal/events"
	"github.com/tickertap/tickertap/pkg/formulas"
)

// Fetcher fetches remote price history.
type Fetcher interface {
	FetchOHLCV(ctx context.Context, symbol, rng string) (*marketdata.OHLCV, error)
}

// ChartData holds one loaded series and everything derived from it. Derived
// arrays are computed once over the full history; viewport changes only
// slice them.
type ChartData struct {
	Symbol       string             `json:"symbol"`
	Range        string             `json:"range"`
	Bars         domain.PriceSeries `json:"bars"`
	SMAShort     []*float64         `json:"sma_short"`
	SMALong      []*float64         `json:"sma_long"`
	Events       []BreakoutEvent    `json:"events"`
	VolumeSource *string            `json:"volume_source,omitempty"`
	Synthetic    bool               `json:"synthetic"`
}

// Service loads price history and derives chart overlays. The fallback
// ladder is remote feed, then local history cache, then synthetic data: a
// chart must always render something, so no error from this path reaches
// the caller.
type Service struct {
	fetcher  Fetcher
	cache    *HistoryCache
	gen      *Generator
	events   *events.Manager
	settings config.ChartSettings
	log      zerolog.Logger

	mu         sync.Mutex
	generation map[string]uint64
	charts     map[string]*ChartData
	lastQuote  map[string]float64
}

// NewService creates a chart service.
func NewService(
	fetcher Fetcher,
	cache *HistoryCache,
	gen *Generator,
	eventManager *events.Manager,
	settings config.ChartSettings,
	log zerolog.Logger,
) *Service {
	return &Service{
		fetcher:    fetcher,
		cache:      cache,
		gen:        gen,
		events:     eventManager,
		settings:   settings,
		log:        log.With().Str("service", "charts").Logger(),
		generation: make(map[string]uint64),
		charts:     make(map[string]*ChartData),
		lastQuote:  make(map[string]float64),
	}
}

// Settings exposes the chart tuning in effect.
func (s *Service) Settings() config.ChartSettings {
	return s.settings
}

// SetLastQuote records the most recent live price for a symbol, used as the
// synthetic fallback target when no history is available at all.
func (s *Service) SetLastQuote(symbol string, price float64) {
	if price <= 0 {
		return
	}
	s.mu.Lock()
	s.lastQuote[symbol] = price
	s.mu.Unlock()
}

// GetChart loads the series for symbol over the named range and derives SMA
// and breakout overlays. A later call for the same symbol invalidates
// interest in any still-running earlier load: stale results are discarded
// via a per-symbol generation counter.
func (s *Service) GetChart(ctx context.Context, symbol, rng string) (*ChartData, error) {
	return s.GetChartWithPeriod(ctx, symbol, rng, 0)
}

// GetChartWithPeriod is GetChart with the long SMA period overridden.
// smaLong <= 0 keeps the configured default.
func (s *Service) GetChartWithPeriod(ctx context.Context, symbol, rng string, smaLong int) (*ChartData, error) {
	if rng == "" {
		rng = s.settings.DefaultRange
	}
	if smaLong <= 0 {
		smaLong = s.settings.SMALong
	}

	key := fmt.Sprintf("%s|%s|%d", symbol, rng, smaLong)

	s.mu.Lock()
	if data, ok := s.charts[key]; ok {
		s.mu.Unlock()
		return data, nil
	}
	s.generation[symbol]++
	gen := s.generation[symbol]
	s.mu.Unlock()

	bars, volumeSource, synthetic := s.loadSeries(ctx, symbol, rng)

	data := s.derive(symbol, rng, smaLong, bars, volumeSource, synthetic)

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.generation[symbol] != gen {
		// A newer load superseded this one; hand back its result if present.
		if latest, ok := s.charts[key]; ok {
			return latest, nil
		}
		return data, nil
	}
	s.charts[key] = data

	return data, nil
}

// Invalidate drops cached chart data for a symbol (all ranges).
func (s *Service) Invalidate(symbol string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.generation[symbol]++
	for key := range s.charts {
		if len(key) > len(symbol) && key[:len(symbol)+1] == symbol+"|" {
			delete(s.charts, key)
		}
	}
}

// GetStats summarizes the loaded series for the dashboard header.
func (s *Service) GetStats(ctx context.Context, symbol, rng string) (*ChartStats, error) {
	data, err := s.GetChart(ctx, symbol, rng)
	if err != nil {
		return nil, err
	}

	closes := validCloses(data.Bars)

	return &ChartStats{
		Symbol:      symbol,
		RSI14:       formulas.CalculateRSI(closes, 14),
		Volatility:  formulas.VolatilityFromPrices(closes),
		MaxDrawdown: formulas.CalculateMaxDrawdown(closes),
		Sharpe:      formulas.CalculateSharpeFromPrices(closes, 0.02),
	}, nil
}

// RefreshHistory re-fetches and re-caches history for a symbol, dropping
// derived data so the next chart request recomputes it.
func (s *Service) RefreshHistory(ctx context.Context, symbol string) error {
	resp, err := s.fetcher.FetchOHLCV(ctx, symbol, "all")
	if err != nil {
		return err
	}

	if err := s.cache.Store(symbol, resp.Bars); err != nil {
		return err
	}

	s.Invalidate(symbol)
	return nil
}

// loadSeries walks the fallback ladder.
func (s *Service) loadSeries(ctx context.Context, symbol, rng string) (domain.PriceSeries, *string, bool) {
	resp, err := s.fetcher.FetchOHLCV(ctx, symbol, rng)
	if err == nil && len(resp.Bars) > 0 {
		if cacheErr := s.cache.Store(symbol, resp.Bars); cacheErr != nil {
			s.log.Warn().Err(cacheErr).Str("symbol", symbol).Msg("Failed to cache history")
		}
		return resp.Bars, resp.VolumeSource, false
	}

	if err != nil {
		s.log.Warn().Err(err).Str("symbol", symbol).Msg("Remote history fetch failed, trying cache")
	}

	cached, cacheErr := s.cache.Load(symbol)
	if cacheErr != nil {
		s.log.Warn().Err(cacheErr).Str("symbol", symbol).Msg("History cache read failed")
	}
	if len(cached) > 0 {
		return cached, nil, false
	}

	// Last rung: synthesize a plausible series so the chart still renders.
	target := s.fallbackTarget(symbol)
	bars := s.gen.Generate(target, s.settings.SyntheticYears)

	s.events.Emit(events.SyntheticFallback, "charts", map[string]interface{}{
		"symbol": symbol,
		"target": target,
	})

	return bars, nil, true
}

// derive computes the full-history overlays for a series.
func (s *Service) derive(symbol, rng string, smaLongPeriod int, bars domain.PriceSeries, volumeSource *string, synthetic bool) *ChartData {
	smaLong := ComputeSMA(bars, smaLongPeriod)

	data := &ChartData{
		Symbol:       symbol,
		Range:        rng,
		Bars:         bars,
		SMAShort:     ComputeSMA(bars, s.settings.SMAShort),
		SMALong:      smaLong,
		Events:       DetectBreakouts(bars, smaLong),
		VolumeSource: volumeSource,
		Synthetic:    synthetic,
	}

	s.events.Emit(events.SeriesLoaded, "charts", map[string]interface{}{
		"symbol":    symbol,
		"range":     rng,
		"bars":      len(bars),
		"breakouts": len(data.Events),
		"synthetic": synthetic,
	})

	return data
}

// fallbackTarget picks the synthetic target price: the last live quote when
// one was seen, otherwise the configured default.
func (s *Service) fallbackTarget(symbol string) float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	if price, ok := s.lastQuote[symbol]; ok && price > 0 {
		return price
	}
	return s.settings.DefaultTarget
}

func validCloses(bars domain.PriceSeries) []float64 {
	closes := make([]float64, 0, len(bars))
	for _, b := range bars {
		if !math.IsNaN(b.Close) {
			closes = append(closes, b.Close)
		}
	}
	return closes
}
