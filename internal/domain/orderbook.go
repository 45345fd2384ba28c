package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// BookSide selects one ladder of an order book.
type BookSide string

const (
	BookSideBid BookSide = "bid"
	BookSideAsk BookSide = "ask"
)

// Level is a single price+amount entry in an order book.
// An amount of zero never appears in a book; in an update it removes the level.
type Level struct {
	Price  decimal.Decimal `json:"price"`
	Amount decimal.Decimal `json:"amount"`
}

// Total returns price*amount.
func (l Level) Total() decimal.Decimal {
	return l.Price.Mul(l.Amount)
}

// BookSnapshot is a read-only copy of an order book, as mirrored to caches
// and served over the API.
type BookSnapshot struct {
	Exchange  string          `json:"exchange"`
	Ticker    string          `json:"ticker"`
	Bids      []Level         `json:"bids"`
	Asks      []Level         `json:"asks"`
	BestBid   decimal.Decimal `json:"best_bid"`
	BestAsk   decimal.Decimal `json:"best_ask"`
	Seq       int64           `json:"seq"`
	Timestamp time.Time       `json:"timestamp"`
}

// Spread returns BestAsk-BestBid, or zero when either side is empty.
func (s BookSnapshot) Spread() decimal.Decimal {
	if len(s.Bids) == 0 || len(s.Asks) == 0 {
		return decimal.Zero
	}
	return s.BestAsk.Sub(s.BestBid)
}
