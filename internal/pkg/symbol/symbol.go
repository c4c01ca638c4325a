// Package symbol converts instrument names between the internal BASE/QUOTE form
// and venue-specific spellings.
package symbol

import "strings"

type Format string

const (
	FormatInternal Format = "internal"
	FormatBinance  Format = "binance"
	FormatFIX      Format = "fix"
)

type Converter interface {
	ToExchange(internal string) string
	FromExchange(raw string) string
	Format() Format
}

type Symbol struct {
	Base  string
	Quote string
}

func (s Symbol) Valid() bool {
	return s.Base != "" && s.Quote != ""
}

func (s Symbol) Internal() string {
	if !s.Valid() {
		return ""
	}
	return s.Base + "/" + s.Quote
}

var quoteCurrencies = []string{"USDT", "USDC", "FDUSD", "BUSD", "TUSD", "USD", "EUR", "BTC", "ETH", "BNB"}

// Parse accepts BASE/QUOTE, BASE-QUOTE, BASE_QUOTE and concatenated forms with a
// known quote currency. Settlement suffixes after ':' are dropped.
func Parse(s string) Symbol {
	s = strings.ToUpper(strings.TrimSpace(s))
	if s == "" {
		return Symbol{}
	}
	if idx := strings.Index(s, ":"); idx >= 0 {
		s = s[:idx]
	}
	for _, sep := range []string{"/", "-", "_"} {
		if parts := strings.SplitN(s, sep, 2); len(parts) == 2 {
			return Symbol{Base: strings.TrimSpace(parts[0]), Quote: strings.TrimSpace(parts[1])}
		}
	}
	for _, quote := range quoteCurrencies {
		if strings.HasSuffix(s, quote) && len(s) > len(quote) {
			return Symbol{Base: s[:len(s)-len(quote)], Quote: quote}
		}
	}
	return Symbol{}
}

// Normalize returns the internal form, or the trimmed upper-case input when it
// cannot be split.
func Normalize(s string) string {
	if n := Parse(s).Internal(); n != "" {
		return n
	}
	return strings.ToUpper(strings.TrimSpace(s))
}
