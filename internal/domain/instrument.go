package domain

// TickerInfo identifies a tradable instrument on one exchange.
type TickerInfo struct {
	Exchange       string
	Name           string // exchange-native symbol, e.g. "BTC-ETH"
	BaseCurrency   string // currency that funds buys
	MarketCurrency string // currency that is bought and sold
}

// String returns "exchange:name".
func (t TickerInfo) String() string {
	return t.Exchange + ":" + t.Name
}
