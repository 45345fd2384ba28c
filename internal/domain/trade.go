package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// TradeSide is the aggressor side of a market trade.
type TradeSide string

const (
	TradeSideBuy  TradeSide = "buy"
	TradeSideSell TradeSide = "sell"
)

// TradeInfo is a single executed market trade as printed by an exchange.
type TradeInfo struct {
	Side   TradeSide       `json:"side"`
	Price  decimal.Decimal `json:"price"`
	Amount decimal.Decimal `json:"amount"`
	Total  decimal.Decimal `json:"total"`
	Time   time.Time       `json:"time"`
}

// NewTradeInfo builds a TradeInfo with Total = price*amount.
func NewTradeInfo(side TradeSide, price, amount decimal.Decimal, ts time.Time) TradeInfo {
	return TradeInfo{
		Side:   side,
		Price:  price,
		Amount: amount,
		Total:  price.Mul(amount),
		Time:   ts,
	}
}
