// Package pricefeed reads spot prices from the Pyth Hermes HTTP API.
package pricefeed

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"maps"
	"math"
	"net/http"
	"net/url"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"edgeai-booster/internal/domain"
	"edgeai-booster/internal/observability"
	"edgeai-booster/internal/provider"
)

const (
	// DefaultBaseURL is the public Hermes endpoint.
	DefaultBaseURL = "https://hermes.pyth.network"

	defaultExpo  = -8
	providerName = "pyth"
)

// DefaultFeeds maps supported symbols to Pyth price feed ids.
var DefaultFeeds = map[string]string{
	"BTC": "0xe62df6c8b4a85fe1a67db44dc12de5db330f7ac66b72dc658afedf0f4a415b43",
	"ETH": "0xff61491a931112ddf1bd8147cd1b641375f79f5825126d665480874634fd0ace",
	"SOL": "0xef0d8b6fda2ceba41da15d4095d1da392a0d2f8ed0c6c7bc0f4cfac8c280b56d",
}

// Client fetches latest prices for known feeds.
type Client struct {
	baseURL    string
	feeds      map[string]string
	httpClient *http.Client
	breaker    *provider.Breaker
	logger     zerolog.Logger
}

// Option configures a Client.
type Option func(*Client)

// WithBaseURL sets a custom base URL (for testing).
func WithBaseURL(u string) Option {
	return func(c *Client) {
		c.baseURL = strings.TrimRight(u, "/")
	}
}

// WithTimeout sets the HTTP client timeout.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		c.httpClient.Timeout = d
	}
}

// WithFeeds replaces the symbol to feed id mapping.
func WithFeeds(feeds map[string]string) Option {
	return func(c *Client) {
		c.feeds = feeds
	}
}

// NewClient creates a Hermes client.
func NewClient(logger zerolog.Logger, opts ...Option) *Client {
	c := &Client{
		baseURL:    DefaultBaseURL,
		feeds:      DefaultFeeds,
		httpClient: &http.Client{Timeout: 10 * time.Second},
		logger:     logger.With().Str("component", "pricefeed").Logger(),
	}
	for _, opt := range opts {
		opt(c)
	}
	c.breaker = provider.NewBreaker(providerName, provider.BreakerConfig{}, c.logger)
	return c
}

// Symbols returns the supported symbols in sorted order.
func (c *Client) Symbols() []string {
	return slices.Sorted(maps.Keys(c.feeds))
}

// SpotPrice returns the latest price for symbol (case-insensitive).
// Unknown symbols and feeds without a price wrap domain.ErrUnavailable.
func (c *Client) SpotPrice(ctx context.Context, symbol string) (float64, error) {
	symbol = strings.ToUpper(symbol)
	feedID, ok := c.feeds[symbol]
	if !ok {
		return 0, fmt.Errorf("price for %s: %w", symbol, domain.ErrUnavailable)
	}

	start := time.Now()
	v, err := c.breaker.Execute(func() (any, error) {
		return c.fetch(ctx, feedID)
	})
	observability.RecordProviderRequest(providerName, time.Since(start).Seconds(), err)
	if err != nil {
		c.logger.Debug().Err(err).Str("symbol", symbol).Msg("price fetch failed")
		return 0, fmt.Errorf("price for %s: %w", symbol, err)
	}

	price := v.(*float64)
	if price == nil {
		return 0, fmt.Errorf("price for %s: %w", symbol, domain.ErrUnavailable)
	}
	return *price, nil
}

func (c *Client) fetch(ctx context.Context, feedID string) (*float64, error) {
	q := url.Values{}
	q.Add("ids[]", feedID)
	endpoint := c.baseURL + "/v2/updates/price/latest?" + q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, &domain.TransportError{Op: "latest price", Endpoint: c.baseURL, Err: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &domain.TransportError{Op: "latest price", Endpoint: c.baseURL, Err: err}
	}
	if resp.StatusCode != http.StatusOK {
		return nil, &domain.TransportError{
			Op:       "latest price",
			Endpoint: c.baseURL,
			Err:      fmt.Errorf("unexpected status: %d", resp.StatusCode),
		}
	}

	var payload latestResponse
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, &domain.TransportError{Op: "latest price", Endpoint: c.baseURL, Err: err}
	}

	switch {
	case len(payload.Parsed) > 0 && payload.Parsed[0].Price != nil:
		p := payload.Parsed[0].Price.value()
		return &p, nil
	case payload.Price != nil:
		p := payload.Price.value()
		return &p, nil
	}
	return nil, nil
}

type latestResponse struct {
	Parsed []struct {
		ID    string     `json:"id"`
		Price *priceInfo `json:"price"`
	} `json:"parsed"`
	Price *priceInfo `json:"price"`
}

type priceInfo struct {
	Price flexNumber `json:"price"`
	Expo  *int       `json:"expo"`
}

func (p *priceInfo) value() float64 {
	expo := defaultExpo
	if p.Expo != nil {
		expo = *p.Expo
	}
	return float64(p.Price) * math.Pow10(expo)
}

// flexNumber accepts JSON numbers and numeric strings; Hermes sends prices as strings.
type flexNumber float64

func (f *flexNumber) UnmarshalJSON(b []byte) error {
	s := strings.Trim(string(b), `"`)
	if s == "" || s == "null" {
		*f = 0
		return nil
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return fmt.Errorf("parse price %q: %w", s, err)
	}
	*f = flexNumber(v)
	return nil
}
