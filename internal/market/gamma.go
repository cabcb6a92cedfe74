// Package market fetches prediction markets from the Polymarket Gamma API.
package market

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"edgeai-booster/internal/domain"
	"edgeai-booster/internal/observability"
	"edgeai-booster/internal/provider"
)

const (
	// DefaultBaseURL is the public Gamma API.
	DefaultBaseURL = "https://gamma-api.polymarket.com"
	// DefaultCategory is used when callers pass no category.
	DefaultCategory = "crypto"
	// MinVolume filters out thin markets.
	MinVolume = 1000.0

	lookupLimit  = 100
	providerName = "polymarket"
)

// Provider is the market data capability the rest of the system needs.
type Provider interface {
	ListMarkets(ctx context.Context, category string, limit int) ([]domain.MarketQuote, error)
	FindBySlug(ctx context.Context, slug string) (*domain.MarketQuote, error)
}

// Client talks to the Gamma /markets endpoint.
type Client struct {
	baseURL    string
	httpClient *http.Client
	breaker    *provider.Breaker
	logger     zerolog.Logger
}

var _ Provider = (*Client)(nil)

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

// WithBreaker replaces the default circuit breaker.
func WithBreaker(b *provider.Breaker) Option {
	return func(c *Client) {
		c.breaker = b
	}
}

// NewClient creates a Gamma API client.
func NewClient(logger zerolog.Logger, opts ...Option) *Client {
	c := &Client{
		baseURL:    DefaultBaseURL,
		httpClient: &http.Client{Timeout: 10 * time.Second},
		logger:     logger.With().Str("component", "market").Logger(),
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.breaker == nil {
		c.breaker = provider.NewBreaker(providerName, provider.BreakerConfig{}, c.logger)
	}
	return c
}

// ListMarkets returns active markets with volume above MinVolume, sorted by
// volume descending and truncated to limit.
func (c *Client) ListMarkets(ctx context.Context, category string, limit int) ([]domain.MarketQuote, error) {
	start := time.Now()
	v, err := c.breaker.Execute(func() (any, error) {
		return c.fetch(ctx, category, limit)
	})
	observability.RecordProviderRequest(providerName, time.Since(start).Seconds(), err)
	if err != nil {
		c.logger.Warn().Err(err).Str("category", category).Msg("list markets failed")
		if domain.IsTransport(err) {
			return nil, err
		}
		return nil, &domain.TransportError{Op: "list markets", Endpoint: c.baseURL, Err: err}
	}
	return v.([]domain.MarketQuote), nil
}

// FindBySlug looks a market up among the top crypto markets.
// Returns domain.ErrNotFound when no market has the slug.
func (c *Client) FindBySlug(ctx context.Context, slug string) (*domain.MarketQuote, error) {
	markets, err := c.ListMarkets(ctx, DefaultCategory, lookupLimit)
	if err != nil {
		return nil, err
	}
	for i := range markets {
		if markets[i].Slug == slug {
			return &markets[i], nil
		}
	}
	return nil, fmt.Errorf("market %q: %w", slug, domain.ErrNotFound)
}

func (c *Client) fetch(ctx context.Context, category string, limit int) ([]domain.MarketQuote, error) {
	q := url.Values{}
	q.Set("active", "true")
	q.Set("closed", "false")
	q.Set("limit", strconv.Itoa(limit))
	if category != "" {
		q.Set("category", category)
	}
	endpoint := c.baseURL + "/markets?" + q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, &domain.TransportError{Op: "list markets", Endpoint: c.baseURL, Err: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &domain.TransportError{Op: "list markets", Endpoint: c.baseURL, Err: err}
	}
	if resp.StatusCode != http.StatusOK {
		return nil, &domain.TransportError{
			Op:       "list markets",
			Endpoint: c.baseURL,
			Err:      fmt.Errorf("unexpected status: %d", resp.StatusCode),
		}
	}

	raw, err := parseMarketList(body)
	if err != nil {
		return nil, &domain.TransportError{Op: "list markets", Endpoint: c.baseURL, Err: err}
	}

	markets := make([]domain.MarketQuote, 0, len(raw))
	for _, m := range raw {
		q := m.quote()
		if q.Volume > MinVolume {
			markets = append(markets, q)
		}
	}

	sort.SliceStable(markets, func(i, j int) bool {
		return markets[i].Volume > markets[j].Volume
	})
	if limit > 0 && len(markets) > limit {
		markets = markets[:limit]
	}
	return markets, nil
}

// parseMarketList accepts a bare array or a {"data": [...]} envelope.
func parseMarketList(body []byte) ([]gammaMarket, error) {
	trimmed := strings.TrimSpace(string(body))
	if strings.HasPrefix(trimmed, "[") {
		var list []gammaMarket
		if err := json.Unmarshal(body, &list); err != nil {
			return nil, fmt.Errorf("decode markets: %w", err)
		}
		return list, nil
	}

	var envelope struct {
		Data []gammaMarket `json:"data"`
	}
	if err := json.Unmarshal(body, &envelope); err != nil {
		return nil, fmt.Errorf("decode markets: %w", err)
	}
	return envelope.Data, nil
}

type gammaMarket struct {
	Slug          string          `json:"slug"`
	Question      string          `json:"question"`
	Outcomes      json.RawMessage `json:"outcomes"`
	OutcomePrices json.RawMessage `json:"outcomePrices"`
	Volume        flexFloat       `json:"volume"`
	EndDate       *string         `json:"endDate"`
}

type outcome struct {
	Title string
	Price float64
}

func (m gammaMarket) quote() domain.MarketQuote {
	var yes, no float64
	for _, o := range m.outcomes() {
		switch strings.ToLower(o.Title) {
		case "yes", "true":
			yes = o.Price
		case "no", "false":
			no = o.Price
		}
	}

	yesProb, noProb := 0.5, 0.5
	if total := yes + no; total > 0 {
		yesProb = yes / total
		noProb = no / total
	}

	return domain.MarketQuote{
		Slug:           m.Slug,
		Question:       m.Question,
		YesProbability: round4(yesProb),
		NoProbability:  round4(noProb),
		Volume:         float64(m.Volume),
		EndDate:        m.EndDate,
	}
}

// outcomes understands [{"title","price"}] as well as the stringified
// outcomes/outcomePrices pair. Unparseable input yields no outcomes.
func (m gammaMarket) outcomes() []outcome {
	if len(m.Outcomes) == 0 {
		return nil
	}

	var objects []struct {
		Title string    `json:"title"`
		Price flexFloat `json:"price"`
	}
	if err := json.Unmarshal(m.Outcomes, &objects); err == nil {
		out := make([]outcome, 0, len(objects))
		for _, o := range objects {
			out = append(out, outcome{Title: o.Title, Price: float64(o.Price)})
		}
		return out
	}

	titles := stringList(m.Outcomes)
	prices := stringList(m.OutcomePrices)
	out := make([]outcome, 0, len(titles))
	for i, title := range titles {
		var price float64
		if i < len(prices) {
			price, _ = strconv.ParseFloat(prices[i], 64)
		}
		out = append(out, outcome{Title: title, Price: price})
	}
	return out
}

// stringList decodes either ["a","b"] or "[\"a\",\"b\"]".
func stringList(raw json.RawMessage) []string {
	if len(raw) == 0 {
		return nil
	}
	var list []string
	if err := json.Unmarshal(raw, &list); err == nil {
		return list
	}
	var encoded string
	if err := json.Unmarshal(raw, &encoded); err != nil {
		return nil
	}
	if err := json.Unmarshal([]byte(encoded), &list); err != nil {
		return nil
	}
	return list
}

// flexFloat accepts JSON numbers and numeric strings.
type flexFloat float64

func (f *flexFloat) UnmarshalJSON(b []byte) error {
	s := strings.Trim(string(b), `"`)
	if s == "" || s == "null" {
		*f = 0
		return nil
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return fmt.Errorf("parse number %q: %w", s, err)
	}
	*f = flexFloat(v)
	return nil
}

func round4(v float64) float64 {
	return math.Round(v*10000) / 10000
}
