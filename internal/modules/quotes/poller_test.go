package quotes

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tickertap/tickertap/internal/domain"
	"github.com/tickertap/tickertap/internal/events"
	"github.com/tickertap/tickertap/internal/scheduler"
)

type stubQuoteFetcher struct {
	mu     sync.Mutex
	quotes map[string]float64
	calls  int
}

func (f *stubQuoteFetcher) FetchQuotes(ctx context.Context, symbols []string) ([]domain.Quote, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++

	out := make([]domain.Quote, 0, len(symbols))
	for _, s := range symbols {
		if price, ok := f.quotes[s]; ok {
			out = append(out, domain.Quote{Symbol: s, Price: price, AsOf: time.Now()})
		}
	}
	return out, nil
}

func newTestPoller(fetcher QuoteFetcher) *Poller {
	log := zerolog.Nop()
	session := scheduler.NewMarketSessionService(log)
	return NewPoller(fetcher, session, events.NewManager(log), time.Hour, time.Hour, log)
}

func TestIntervalFor(t *testing.T) {
	open := 15 * time.Second
	closed := 2 * time.Minute

	assert.Equal(t, open, intervalFor(true, open, closed))
	assert.Equal(t, closed, intervalFor(false, open, closed))
}

func TestPollerWatchDeliversQuotes(t *testing.T) {
	fetcher := &stubQuoteFetcher{quotes: map[string]float64{"AAPL": 187.5, "MSFT": 410.0}}
	p := newTestPoller(fetcher)
	defer p.Stop()

	p.Watch([]string{"AAPL", "MSFT"})

	require.Eventually(t, func() bool {
		return len(p.Latest()) == 2
	}, 2*time.Second, 10*time.Millisecond)

	price, ok := p.LatestPrice("AAPL")
	require.True(t, ok)
	assert.Equal(t, 187.5, price)
}

func TestPollerOnQuoteObserver(t *testing.T) {
	fetcher := &stubQuoteFetcher{quotes: map[string]float64{"AAPL": 187.5}}
	p := newTestPoller(fetcher)
	defer p.Stop()

	var mu sync.Mutex
	seen := map[string]float64{}
	p.OnQuote(func(q domain.Quote) {
		mu.Lock()
		seen[q.Symbol] = q.Price
		mu.Unlock()
	})

	p.Watch([]string{"AAPL"})

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return seen["AAPL"] == 187.5
	}, 2*time.Second, 10*time.Millisecond)
}

func TestPollerWatchReplacesSession(t *testing.T) {
	fetcher := &stubQuoteFetcher{quotes: map[string]float64{"AAPL": 187.5, "TSLA": 245.0}}
	p := newTestPoller(fetcher)
	defer p.Stop()

	p.Watch([]string{"AAPL"})
	require.Eventually(t, func() bool {
		_, ok := p.LatestPrice("AAPL")
		return ok
	}, 2*time.Second, 10*time.Millisecond)

	p.Watch([]string{"TSLA"})
	require.Eventually(t, func() bool {
		_, ok := p.LatestPrice("TSLA")
		return ok
	}, 2*time.Second, 10*time.Millisecond)
}

func TestPollerStaleResponseDiscarded(t *testing.T) {
	fetcher := &stubQuoteFetcher{quotes: map[string]float64{"AAPL": 187.5}}
	p := newTestPoller(fetcher)

	// A poll carrying a superseded sequence number must not update state.
	p.poll(context.Background(), 999, []string{"AAPL"})

	_, ok := p.LatestPrice("AAPL")
	assert.False(t, ok)
}

func TestPollerStopIsIdempotent(t *testing.T) {
	fetcher := &stubQuoteFetcher{quotes: map[string]float64{}}
	p := newTestPoller(fetcher)

	p.Watch([]string{"AAPL"})
	p.Stop()
	p.Stop()
}

func TestPollerWatchEmptyListDoesNotPoll(t *testing.T) {
	fetcher := &stubQuoteFetcher{quotes: map[string]float64{}}
	p := newTestPoller(fetcher)
	defer p.Stop()

	p.Watch(nil)
	time.Sleep(50 * time.Millisecond)

	fetcher.mu.Lock()
	defer fetcher.mu.Unlock()
	assert.Equal(t, 0, fetcher.calls)
}
