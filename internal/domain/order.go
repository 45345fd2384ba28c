package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// DemoOrderID marks a TradingResult synthesized without contacting an exchange.
const DemoOrderID = "-1"

// OrderSide indicates whether this is a buy or sell.
type OrderSide string

const (
	OrderSideBuy  OrderSide = "buy"
	OrderSideSell OrderSide = "sell"
)

// OrderType distinguishes taking liquidity from resting a limit order.
type OrderType string

const (
	OrderTypeMarket OrderType = "market"
	OrderTypeLimit  OrderType = "limit"
)

// OrderRequest is a request to place an order on an exchange.
type OrderRequest struct {
	Exchange string
	Ticker   string
	Side     OrderSide
	Type     OrderType
	Price    decimal.Decimal
	Amount   decimal.Decimal
	Strategy string
	Demo     bool // synthesized locally, never sent to the exchange
}

// Total returns price*amount.
func (r OrderRequest) Total() decimal.Decimal {
	return r.Price.Mul(r.Amount)
}

// TradingResult is the outcome of an accepted order.
type TradingResult struct {
	OrderID string          `json:"order_id"`
	Side    OrderSide       `json:"side"`
	Price   decimal.Decimal `json:"price"`
	Amount  decimal.Decimal `json:"amount"`
	Total   decimal.Decimal `json:"total"`
	Time    time.Time       `json:"time"`
}

// IsDemo reports whether the result was synthesized.
func (r TradingResult) IsDemo() bool {
	return r.OrderID == DemoOrderID
}

// Execution is a persisted TradingResult together with its origin.
type Execution struct {
	ID       string          `json:"id"`
	Strategy string          `json:"strategy"`
	Exchange string          `json:"exchange"`
	Ticker   string          `json:"ticker"`
	OrderID  string          `json:"order_id"`
	Side     OrderSide       `json:"side"`
	Type     OrderType       `json:"type"`
	Price    decimal.Decimal `json:"price"`
	Amount   decimal.Decimal `json:"amount"`
	Total    decimal.Decimal `json:"total"`
	Fee      decimal.Decimal `json:"fee"`
	Demo     bool            `json:"demo"`
	Time     time.Time       `json:"time"`
}
