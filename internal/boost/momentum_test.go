package boost

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
)

// stubFeed returns the configured price per symbol.
type stubFeed struct {
	mu     sync.Mutex
	prices map[string]float64
	err    error
	calls  int
}

func (f *stubFeed) SpotPrice(_ context.Context, symbol string) (float64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.err != nil {
		return 0, f.err
	}
	p, ok := f.prices[symbol]
	if !ok {
		return 0, errors.New("unknown symbol")
	}
	return p, nil
}

func (f *stubFeed) set(symbol string, price float64) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.prices[symbol] = price
}

type fakeClock struct {
	t time.Time
}

func (c *fakeClock) now() time.Time          { return c.t }
func (c *fakeClock) advance(d time.Duration) { c.t = c.t.Add(d) }

func newTestCache(feed PriceFeed) (*MomentumCache, *fakeClock) {
	clock := &fakeClock{t: time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)}
	return NewMomentumCache(feed, zerolog.Nop(), WithClock(clock.now)), clock
}

func TestMomentum_ColdThenWarm(t *testing.T) {
	feed := &stubFeed{prices: map[string]float64{"BTC": 100}}
	cache, clock := newTestCache(feed)
	ctx := context.Background()

	// Cold cache seeds the baseline and reports nothing.
	assert.Equal(t, 0.0, cache.Momentum(ctx, "BTC"))

	clock.advance(30 * time.Minute)
	feed.set("BTC", 105)
	assert.InDelta(t, 0.5, cache.Momentum(ctx, "BTC"), 1e-9)

	// Baseline unchanged by a fresh hit.
	price, observedAt, ok := cache.Baseline("BTC")
	assert.True(t, ok)
	assert.Equal(t, 100.0, price)
	assert.Equal(t, time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC), observedAt)
}

func TestMomentum_Clamped(t *testing.T) {
	feed := &stubFeed{prices: map[string]float64{"ETH": 100}}
	cache, clock := newTestCache(feed)
	ctx := context.Background()

	cache.Momentum(ctx, "ETH")
	clock.advance(time.Minute)

	feed.set("ETH", 150)
	assert.Equal(t, 1.0, cache.Momentum(ctx, "ETH"))

	feed.set("ETH", 10)
	assert.Equal(t, -1.0, cache.Momentum(ctx, "ETH"))
}

func TestMomentum_StaleEntryRefreshes(t *testing.T) {
	feed := &stubFeed{prices: map[string]float64{"SOL": 100}}
	cache, clock := newTestCache(feed)
	ctx := context.Background()

	cache.Momentum(ctx, "SOL")

	clock.advance(time.Hour)
	feed.set("SOL", 120)
	assert.Equal(t, 0.0, cache.Momentum(ctx, "SOL"))

	price, observedAt, ok := cache.Baseline("SOL")
	assert.True(t, ok)
	assert.Equal(t, 120.0, price)
	assert.Equal(t, clock.t, observedAt)
}

func TestMomentum_FeedErrorIsZero(t *testing.T) {
	feed := &stubFeed{prices: map[string]float64{}, err: errors.New("down")}
	cache, _ := newTestCache(feed)

	assert.Equal(t, 0.0, cache.Momentum(context.Background(), "BTC"))

	_, _, ok := cache.Baseline("BTC")
	assert.False(t, ok, "feed error must not seed the cache")
}

func TestMomentum_ZeroBaseline(t *testing.T) {
	feed := &stubFeed{prices: map[string]float64{"BTC": 0}}
	cache, clock := newTestCache(feed)
	ctx := context.Background()

	cache.Momentum(ctx, "BTC")
	clock.advance(time.Minute)
	feed.set("BTC", 50)

	assert.Equal(t, 0.0, cache.Momentum(ctx, "BTC"))
}

func TestMomentum_SymbolsIndependent(t *testing.T) {
	feed := &stubFeed{prices: map[string]float64{"BTC": 100, "ETH": 10}}
	cache, clock := newTestCache(feed)
	ctx := context.Background()

	cache.Momentum(ctx, "BTC")
	clock.advance(time.Minute)

	feed.set("BTC", 101)
	assert.Equal(t, 0.0, cache.Momentum(ctx, "ETH"), "first ETH call is cold")
	assert.InDelta(t, 0.1, cache.Momentum(ctx, "BTC"), 1e-9)
}

func TestMomentum_ConcurrentCallers(t *testing.T) {
	feed := &stubFeed{prices: map[string]float64{"BTC": 100, "ETH": 10, "SOL": 1}}
	cache, _ := newTestCache(feed)
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			sym := []string{"BTC", "ETH", "SOL"}[i%3]
			m := cache.Momentum(ctx, sym)
			assert.GreaterOrEqual(t, m, -1.0)
			assert.LessOrEqual(t, m, 1.0)
		}(i)
	}
	wg.Wait()

	for _, sym := range []string{"BTC", "ETH", "SOL"} {
		_, _, ok := cache.Baseline(sym)
		assert.True(t, ok, sym)
	}
}
