package domain

import "time"

// Signal is the discrete trade recommendation derived from a boost.
type Signal string

const (
	SignalBuyYes  Signal = "buy_yes"
	SignalSellYes Signal = "sell_yes"
	SignalNeutral Signal = "neutral"
)

// String returns the string representation of Signal.
func (s Signal) String() string {
	return string(s)
}

// BoostResult is the output of the boost engine for one market.
// Computed on demand, never persisted.
type BoostResult struct {
	MarketSlug         string
	MarketProbability  float64
	BoostedProbability float64 // [0,1]
	Signal             Signal
	SentimentScore     float64 // [-1,1]
	PriceMomentum      float64 // [-1,1]
	Symbol             string
	Timestamp          time.Time
}

// Delta returns boosted minus market probability.
func (r BoostResult) Delta() float64 {
	return r.BoostedProbability - r.MarketProbability
}

// StrongSignal is a market whose boost qualifies for distribution.
type StrongSignal struct {
	Market MarketQuote
	Result BoostResult
}

// Delta returns the boost delta of the underlying result.
func (s StrongSignal) Delta() float64 {
	return s.Result.Delta()
}
