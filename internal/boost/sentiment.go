// Package boost computes boosted probabilities and trade signals for
// prediction markets from text sentiment and spot-price momentum.
package boost

import "strings"

var positiveKeywords = []string{
	"pump", "surge", "rally", "bullish", "up", "rise", "gain",
	"breakout", "moon", "soar", "climb", "increase", "growth",
}

var negativeKeywords = []string{
	"dump", "crash", "bearish", "down", "fall", "drop", "decline",
	"plunge", "tank", "sink", "decrease", "loss", "correction",
}

// Sentiment scores text in [-1, 1] by counting which positive and negative
// keywords occur as case-insensitive substrings. Each keyword counts once.
// Returns 0 when nothing matches.
func Sentiment(text string) float64 {
	lower := strings.ToLower(text)

	pos, neg := 0, 0
	for _, kw := range positiveKeywords {
		if strings.Contains(lower, kw) {
			pos++
		}
	}
	for _, kw := range negativeKeywords {
		if strings.Contains(lower, kw) {
			neg++
		}
	}

	total := pos + neg
	if total == 0 {
		return 0
	}
	return clamp(float64(pos-neg)/float64(total), -1, 1)
}

// MarketText is the text sentiment and symbol selection run over.
func MarketText(slug, question string) string {
	return slug + " " + question
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
