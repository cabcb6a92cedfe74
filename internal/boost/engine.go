package boost

import (
	"context"
	"sort"
	"time"

	"edgeai-booster/internal/domain"
	"edgeai-booster/internal/observability"
)

// Boost weights and thresholds.
const (
	SentimentWeight = 0.15
	MomentumWeight  = 0.10

	// SignalThreshold is the minimum |delta| for a directional signal.
	SignalThreshold = 0.05
)

// Momentum is the momentum source the engine needs.
type Momentum interface {
	Momentum(ctx context.Context, symbol string) float64
}

// Engine combines a market probability with sentiment and momentum.
type Engine struct {
	momentum Momentum
	now      func() time.Time
}

// NewEngine creates a boost engine.
func NewEngine(momentum Momentum) *Engine {
	return &Engine{momentum: momentum, now: time.Now}
}

// Boost computes the boosted probability and signal for one market.
func (e *Engine) Boost(ctx context.Context, slug, question string, marketProb float64) domain.BoostResult {
	text := MarketText(slug, question)
	sentiment := Sentiment(text)
	symbol := SymbolFor(text)
	momentum := e.momentum.Momentum(ctx, symbol)

	boosted := clamp(marketProb+SentimentWeight*sentiment+MomentumWeight*momentum, 0, 1)
	signal := Classify(boosted - marketProb)
	observability.RecordBoost(signal.String())

	return domain.BoostResult{
		MarketSlug:         slug,
		MarketProbability:  marketProb,
		BoostedProbability: boosted,
		Signal:             signal,
		SentimentScore:     sentiment,
		PriceMomentum:      momentum,
		Symbol:             symbol,
		Timestamp:          e.now().UTC(),
	}
}

// Classify maps a boost delta to a signal.
func Classify(delta float64) domain.Signal {
	switch {
	case delta > SignalThreshold:
		return domain.SignalBuyYes
	case delta < -SignalThreshold:
		return domain.SignalSellYes
	default:
		return domain.SignalNeutral
	}
}

// StrongSignals boosts every market and returns the buy_yes results with
// delta above the threshold, sorted by delta descending.
func (e *Engine) StrongSignals(ctx context.Context, markets []domain.MarketQuote) []domain.StrongSignal {
	var out []domain.StrongSignal
	for _, m := range markets {
		if ctx.Err() != nil {
			break
		}
		res := e.Boost(ctx, m.Slug, m.Question, m.YesProbability)
		if res.Signal == domain.SignalBuyYes && res.Delta() > SignalThreshold {
			out = append(out, domain.StrongSignal{Market: m, Result: res})
		}
	}

	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Delta() > out[j].Delta()
	})
	return out
}
