package boost

import "strings"

// Supported price symbols.
const (
	SymbolBTC = "BTC"
	SymbolETH = "ETH"
	SymbolSOL = "SOL"
)

// symbolRules are checked in order; the first match wins.
var symbolRules = []struct {
	symbol   string
	keywords []string
}{
	{SymbolBTC, []string{"btc", "bitcoin"}},
	{SymbolETH, []string{"eth", "ethereum"}},
	{SymbolSOL, []string{"sol", "solana"}},
}

// SymbolFor picks the price symbol a market refers to, defaulting to BTC.
func SymbolFor(text string) string {
	lower := strings.ToLower(text)
	for _, rule := range symbolRules {
		for _, kw := range rule.keywords {
			if strings.Contains(lower, kw) {
				return rule.symbol
			}
		}
	}
	return SymbolBTC
}
