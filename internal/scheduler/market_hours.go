package scheduler

import (
	"time"

	"github.com/rs/zerolog"
)

// TradingWindow represents the core trading period within a day
type TradingWindow struct {
	OpenHour    int
	OpenMinute  int
	CloseHour   int
	CloseMinute int
}

// MarketSessionService answers whether the exchange is currently in its core
// trading session. The quote poller uses this to pick its tick cadence.
type MarketSessionService struct {
	timezone *time.Location
	window   TradingWindow
	holidays map[string]bool // keyed by YYYY-MM-DD in exchange time
	log      zerolog.Logger
}

// NewMarketSessionService creates a session service for NYSE core hours.
func NewMarketSessionService(log zerolog.Logger) *MarketSessionService {
	nyLoc, err := time.LoadLocation("America/New_York")
	if err != nil {
		nyLoc = time.UTC
	}

	holidays := map[string]bool{
		"2026-01-01": true, // New Year's Day
		"2026-01-19": true, // MLK Day
		"2026-02-16": true, // Presidents Day
		"2026-04-03": true, // Good Friday
		"2026-05-25": true, // Memorial Day
		"2026-06-19": true, // Juneteenth
		"2026-07-03": true, // Independence Day (observed)
		"2026-09-07": true, // Labor Day
		"2026-11-26": true, // Thanksgiving
		"2026-12-25": true, // Christmas
	}

	return &MarketSessionService{
		timezone: nyLoc,
		window:   TradingWindow{OpenHour: 9, OpenMinute: 30, CloseHour: 16, CloseMinute: 0},
		holidays: holidays,
		log:      log.With().Str("component", "market_session").Logger(),
	}
}

// IsOpen reports whether the market is currently open.
func (s *MarketSessionService) IsOpen() bool {
	return s.IsOpenAt(time.Now())
}

// IsOpenAt reports whether the market is open at the given instant.
func (s *MarketSessionService) IsOpenAt(t time.Time) bool {
	local := t.In(s.timezone)

	if local.Weekday() == time.Saturday || local.Weekday() == time.Sunday {
		return false
	}

	if s.holidays[local.Format("2006-01-02")] {
		return false
	}

	currentMinutes := local.Hour()*60 + local.Minute()
	openMinutes := s.window.OpenHour*60 + s.window.OpenMinute
	closeMinutes := s.window.CloseHour*60 + s.window.CloseMinute

	return currentMinutes >= openMinutes && currentMinutes < closeMinutes
}

// MarketStatus represents the status of the market
type MarketStatus struct {
	Exchange string `json:"exchange"`
	IsOpen   bool   `json:"is_open"`
	Timezone string `json:"timezone"`
}

// Status returns the current market status.
func (s *MarketSessionService) Status() MarketStatus {
	return MarketStatus{
		Exchange: "NYSE",
		IsOpen:   s.IsOpen(),
		Timezone: s.timezone.String(),
	}
}
