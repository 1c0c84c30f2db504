package quotes

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/tickertap/tickertap/internal/domain"
	"github.com/tickertap/tickertap/internal/events"
	"github.com/tickertap/tickertap/internal/scheduler"
)

// QuoteFetcher fetches a batch of live quotes.
type QuoteFetcher interface {
	FetchQuotes(ctx context.Context, symbols []string) ([]domain.Quote, error)
}

// Poller polls live quotes for a watch list on a fixed interval that depends
// on market state: a short tick while the exchange is open, a long one while
// closed. It is an explicit cancellable task: Watch starts a goroutine owned
// by the poller, Stop (or a replacing Watch) tears it down deterministically.
// Each tick issues at most one batched request; responses from a superseded
// watch session are discarded by sequence number, never inspected.
type Poller struct {
	fetcher        QuoteFetcher
	session        *scheduler.MarketSessionService
	events         *events.Manager
	openInterval   time.Duration
	closedInterval time.Duration
	log            zerolog.Logger

	// onQuote, when set, observes every accepted quote (chart fallback feed).
	onQuote func(domain.Quote)

	mu      sync.Mutex
	seq     uint64
	symbols []string
	cancel  context.CancelFunc
	latest  map[string]domain.Quote
}

// NewPoller creates a quote poller.
func NewPoller(
	fetcher QuoteFetcher,
	session *scheduler.MarketSessionService,
	eventManager *events.Manager,
	openInterval, closedInterval time.Duration,
	log zerolog.Logger,
) *Poller {
	return &Poller{
		fetcher:        fetcher,
		session:        session,
		events:         eventManager,
		openInterval:   openInterval,
		closedInterval: closedInterval,
		log:            log.With().Str("component", "quote_poller").Logger(),
		latest:         make(map[string]domain.Quote),
	}
}

// OnQuote registers an observer for accepted quotes.
func (p *Poller) OnQuote(fn func(domain.Quote)) {
	p.mu.Lock()
	p.onQuote = fn
	p.mu.Unlock()
}

// Watch replaces the watch list and (re)starts the polling loop. The
// previous session, if any, is cancelled first.
func (p *Poller) Watch(symbols []string) {
	p.mu.Lock()
	if p.cancel != nil {
		p.cancel()
	}

	p.seq++
	seq := p.seq
	p.symbols = append([]string(nil), symbols...)

	ctx, cancel := context.WithCancel(context.Background())
	p.cancel = cancel
	p.mu.Unlock()

	if len(symbols) == 0 {
		return
	}

	p.events.Emit(events.QuotePollStarted, "quotes", map[string]interface{}{
		"symbols": symbols,
	})

	go p.run(ctx, seq, symbols)
}

// Stop cancels the polling loop.
func (p *Poller) Stop() {
	p.mu.Lock()
	if p.cancel != nil {
		p.cancel()
		p.cancel = nil
		p.seq++
	}
	p.mu.Unlock()

	p.events.Emit(events.QuotePollStopped, "quotes", nil)
}

// Latest returns the most recent accepted quote per watched symbol.
func (p *Poller) Latest() []domain.Quote {
	p.mu.Lock()
	defer p.mu.Unlock()

	quotes := make([]domain.Quote, 0, len(p.latest))
	for _, q := range p.latest {
		quotes = append(quotes, q)
	}
	return quotes
}

// LatestPrice returns the last accepted price for a symbol.
func (p *Poller) LatestPrice(symbol string) (float64, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	q, ok := p.latest[symbol]
	return q.Price, ok
}

// run is the polling loop for one watch session.
func (p *Poller) run(ctx context.Context, seq uint64, symbols []string) {
	p.poll(ctx, seq, symbols)

	timer := time.NewTimer(p.interval())
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-timer.C:
			p.poll(ctx, seq, symbols)
			timer.Reset(p.interval())
		}
	}
}

// poll issues one batched fetch and stores the result unless the session was
// superseded while the request was in flight.
func (p *Poller) poll(ctx context.Context, seq uint64, symbols []string) {
	quotes, err := p.fetcher.FetchQuotes(ctx, symbols)
	if err != nil {
		p.log.Warn().Err(err).Msg("Quote fetch failed")
		return
	}

	p.mu.Lock()
	if p.seq != seq {
		p.mu.Unlock()
		return // stale response from a superseded session
	}
	onQuote := p.onQuote
	for _, q := range quotes {
		p.latest[q.Symbol] = q
	}
	p.mu.Unlock()

	if onQuote != nil {
		for _, q := range quotes {
			onQuote(q)
		}
	}
}

// interval picks the tick cadence from the current market state.
func (p *Poller) interval() time.Duration {
	return intervalFor(p.session.IsOpen(), p.openInterval, p.closedInterval)
}

func intervalFor(marketOpen bool, open, closed time.Duration) time.Duration {
	if marketOpen {
		return open
	}
	return closed
}
