package bittrex

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/alanyoungcy/tickerbot/internal/domain"
)

// Order directions, types and time-in-force values of the v3 REST API.
const (
	directionBuy  = "BUY"
	directionSell = "SELL"

	orderTypeLimit = "LIMIT"

	tifGoodTilCancelled  = "GOOD_TIL_CANCELLED"
	tifImmediateOrCancel = "IMMEDIATE_OR_CANCEL"
)

// newOrder is the POST /orders body.
type newOrder struct {
	MarketSymbol  string `json:"marketSymbol"`
	Direction     string `json:"direction"`
	Type          string `json:"type"`
	Quantity      string `json:"quantity"`
	Limit         string `json:"limit"`
	TimeInForce   string `json:"timeInForce"`
	ClientOrderID string `json:"clientOrderId,omitempty"`
}

// apiOrder is the order as returned by the API.
type apiOrder struct {
	ID           string          `json:"id"`
	MarketSymbol string          `json:"marketSymbol"`
	Direction    string          `json:"direction"`
	Type         string          `json:"type"`
	Quantity     decimal.Decimal `json:"quantity"`
	Limit        decimal.Decimal `json:"limit"`
	FillQuantity decimal.Decimal `json:"fillQuantity"`
	Commission   decimal.Decimal `json:"commission"`
	Proceeds     decimal.Decimal `json:"proceeds"`
	Status       string          `json:"status"`
	CreatedAt    time.Time       `json:"createdAt"`
}

// apiError is the error body returned on non-2xx responses.
type apiError struct {
	Code   string `json:"code"`
	Detail string `json:"detail"`
}

// toResult converts the API order to a TradingResult. Filled orders report
// the average fill price; unfilled limit orders report the limit and the
// requested quantity.
func (o apiOrder) toResult(side domain.OrderSide) domain.TradingResult {
	price, amount := o.Limit, o.Quantity
	if o.FillQuantity.IsPositive() {
		amount = o.FillQuantity
		if o.Proceeds.IsPositive() {
			price = o.Proceeds.Div(o.FillQuantity)
		}
	}
	total := o.Proceeds
	if !total.IsPositive() {
		total = price.Mul(amount)
	}
	t := o.CreatedAt
	if t.IsZero() {
		t = time.Now().UTC()
	}
	return domain.TradingResult{
		OrderID: o.ID,
		Side:    side,
		Price:   price,
		Amount:  amount,
		Total:   total,
		Time:    t,
	}
}

// MarketSymbol converts a "BASE-MARKET" ticker name ("BTC-ETH") to the v3
// "MARKET-BASE" symbol ("ETH-BTC").
func MarketSymbol(ticker string) string {
	base, quote, ok := strings.Cut(ticker, "-")
	if !ok {
		return ticker
	}
	return quote + "-" + base
}
