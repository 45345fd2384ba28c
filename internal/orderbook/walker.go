package orderbook

import (
	"github.com/shopspring/decimal"

	"github.com/alanyoungcy/tickerbot/internal/domain"
)

// WalkAsks computes how much can be bought with deposit (quote currency)
// by taking asks in ascending order. A non-zero maxPrice stops the walk at
// the first level priced above it. The returned price is the last level
// touched; the amount is zero when nothing is affordable.
func WalkAsks(asks []domain.Level, deposit, maxPrice decimal.Decimal) domain.Level {
	var res domain.Level
	for _, l := range asks {
		if !deposit.IsPositive() {
			break
		}
		if !maxPrice.IsZero() && l.Price.GreaterThan(maxPrice) {
			break
		}
		res.Price = l.Price
		amount := deposit.Div(l.Price)
		if amount.LessThanOrEqual(l.Amount) {
			res.Amount = res.Amount.Add(amount)
			break
		}
		res.Amount = res.Amount.Add(l.Amount)
		deposit = deposit.Sub(l.Total())
	}
	return res
}

// WalkBids computes how much of an amount-denominated deposit can be sold
// into bids taken in descending order. A non-zero minPrice stops the walk
// at the first level priced below it. The amount never exceeds deposit.
func WalkBids(bids []domain.Level, deposit, minPrice decimal.Decimal) domain.Level {
	var res domain.Level
	if !deposit.IsPositive() {
		return res
	}
	left := deposit
	for _, l := range bids {
		if !minPrice.IsZero() && l.Price.LessThan(minPrice) {
			break
		}
		res.Price = l.Price
		res.Amount = res.Amount.Add(l.Amount)
		left = left.Sub(l.Amount)
		if !left.IsPositive() {
			break
		}
	}
	res.Amount = decimal.Min(res.Amount, deposit)
	return res
}
