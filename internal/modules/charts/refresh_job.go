package charts

import (
	"context"
	"time"

	"github.com/rs/zerolog"
)

// SymbolSource lists the symbols whose history should be kept warm.
type SymbolSource interface {
	ActiveSymbols() ([]string, error)
}

// RefreshJob re-fetches history caches for all active symbols. It runs
// nightly after the close via the scheduler.
type RefreshJob struct {
	service *Service
	symbols SymbolSource
	log     zerolog.Logger
}

// NewRefreshJob creates the nightly history refresh job.
func NewRefreshJob(service *Service, symbols SymbolSource, log zerolog.Logger) *RefreshJob {
	return &RefreshJob{
		service: service,
		symbols: symbols,
		log:     log.With().Str("job", "history_refresh").Logger(),
	}
}

// Name implements scheduler.Job
func (j *RefreshJob) Name() string {
	return "history_refresh"
}

// Run implements scheduler.Job
func (j *RefreshJob) Run() error {
	symbols, err := j.symbols.ActiveSymbols()
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	refreshed := 0
	for _, symbol := range symbols {
		if err := j.service.RefreshHistory(ctx, symbol); err != nil {
			j.log.Warn().Err(err).Str("symbol", symbol).Msg("History refresh failed")
			continue
		}
		refreshed++
	}

	j.log.Info().Int("symbols", len(symbols)).Int("refreshed", refreshed).Msg("History refresh completed")
	return nil
}
