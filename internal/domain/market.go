package domain

// MarketQuote is a prediction market as returned by the market provider.
// Slug is the only identity; quotes are re-fetched every cycle.
type MarketQuote struct {
	Slug           string
	Question       string
	YesProbability float64 // [0,1]
	NoProbability  float64 // [0,1]
	Volume         float64
	EndDate        *string
}
