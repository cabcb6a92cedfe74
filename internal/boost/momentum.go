package boost

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"edgeai-booster/internal/observability"
)

// DefaultMomentumWindow is how long a baseline price stays valid.
const DefaultMomentumWindow = time.Hour

// momentumScale maps a fractional price change onto [-1, 1]: 10% is full scale.
const momentumScale = 10.0

// PriceFeed returns the current spot price for a symbol.
type PriceFeed interface {
	SpotPrice(ctx context.Context, symbol string) (float64, error)
}

type momentumEntry struct {
	lastPrice  float64
	observedAt time.Time
}

// MomentumCache reports price momentum relative to a per-symbol baseline
// that is refreshed at most once per window.
//
// Entries are immutable values in a sync.Map; concurrent refreshes for the
// same symbol race to equivalent overwrites.
type MomentumCache struct {
	feed    PriceFeed
	window  time.Duration
	now     func() time.Time
	entries sync.Map // symbol -> momentumEntry
	logger  zerolog.Logger
}

// MomentumOption configures MomentumCache.
type MomentumOption func(*MomentumCache)

// WithWindow overrides the baseline window.
func WithWindow(d time.Duration) MomentumOption {
	return func(c *MomentumCache) {
		c.window = d
	}
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) MomentumOption {
	return func(c *MomentumCache) {
		c.now = now
	}
}

// NewMomentumCache creates a cache backed by feed.
func NewMomentumCache(feed PriceFeed, logger zerolog.Logger, opts ...MomentumOption) *MomentumCache {
	c := &MomentumCache{
		feed:   feed,
		window: DefaultMomentumWindow,
		now:    time.Now,
		logger: logger.With().Str("component", "momentum").Logger(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Momentum returns a value in [-1, 1]. Feed failures yield 0.
// A cold or stale entry is replaced with the current price and yields 0;
// a fresh entry is left unchanged.
func (c *MomentumCache) Momentum(ctx context.Context, symbol string) float64 {
	price, err := c.feed.SpotPrice(ctx, symbol)
	if err != nil {
		c.logger.Debug().Err(err).Str("symbol", symbol).Msg("price feed failed, momentum 0")
		observability.RecordMomentumLookup("feed_error")
		return 0
	}

	now := c.now()
	if v, ok := c.entries.Load(symbol); ok {
		entry := v.(momentumEntry)
		if now.Sub(entry.observedAt) < c.window {
			observability.RecordMomentumLookup("hit")
			if entry.lastPrice == 0 {
				return 0
			}
			raw := (price - entry.lastPrice) / entry.lastPrice
			return clamp(raw*momentumScale, -1, 1)
		}
	}

	c.entries.Store(symbol, momentumEntry{lastPrice: price, observedAt: now})
	observability.RecordMomentumLookup("refresh")
	return 0
}

// Baseline returns the cached baseline for symbol, if any.
func (c *MomentumCache) Baseline(symbol string) (price float64, observedAt time.Time, ok bool) {
	v, ok := c.entries.Load(symbol)
	if !ok {
		return 0, time.Time{}, false
	}
	entry := v.(momentumEntry)
	return entry.lastPrice, entry.observedAt, true
}
