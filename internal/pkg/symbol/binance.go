package symbol

import "strings"

// BinanceConverter spells symbols as BASEQUOTE.
type BinanceConverter struct{}

func (BinanceConverter) ToExchange(internal string) string {
	if sym := Parse(internal); sym.Valid() {
		return sym.Base + sym.Quote
	}
	return strings.ToUpper(strings.TrimSpace(internal))
}

func (BinanceConverter) FromExchange(raw string) string {
	return Normalize(raw)
}

func (BinanceConverter) Format() Format {
	return FormatBinance
}

var Binance Converter = BinanceConverter{}
