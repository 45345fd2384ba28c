package strategy

import (
	"context"
	"fmt"

	"github.com/alanyoungcy/tickerbot/internal/domain"
)

// BuyLowSellHigh alternates between buying when the best ask is at or below
// BuyLevel and selling when the best bid is at or above SellLevel.
type BuyLowSellHigh struct {
	*TickerTrader
}

var _ Strategy = (*BuyLowSellHigh)(nil)

// NewBuyLowSellHigh creates the strategy.
func NewBuyLowSellHigh(cfg TickerConfig, deps Deps) *BuyLowSellHigh {
	cfg.Kind = KindBuyLowSellHigh
	return &BuyLowSellHigh{TickerTrader: NewTickerTrader(cfg, deps)}
}

func newBuyLowSellHigh(cfg TickerConfig, deps Deps) (Strategy, error) {
	return NewBuyLowSellHigh(cfg, deps), nil
}

// Validate adds level consistency checks to the shared ones.
func (s *BuyLowSellHigh) Validate() []domain.ValidationError {
	errs := s.TickerTrader.Validate()
	buy, sell := s.BuyLevel(), s.SellLevel()
	if !buy.IsZero() && !sell.IsZero() && !buy.LessThan(sell) {
		errs = append(errs, domain.ValidationError{
			Strategy: s.Name(),
			Field:    "levels",
			Message:  fmt.Sprintf("buy level %s must be below sell level %s", buy, sell),
		})
	}
	return errs
}

// Step trades at most once.
func (s *BuyLowSellHigh) Step(ctx context.Context) error {
	if !s.Running() {
		return nil
	}
	tk := s.Ticker()
	switch s.State() {
	case domain.StateWaitingForBuy:
		ask, ok := tk.Book().BestAsk()
		if !ok || !s.CanBuyMore() {
			return nil
		}
		if level := s.BuyLevel(); !level.IsZero() && ask.Price.GreaterThan(level) {
			return nil
		}
		if s.Buy(ctx) != nil {
			s.SetState(ctx, domain.StateWaitingForSell)
		}
	case domain.StateWaitingForSell:
		bid, ok := tk.Book().BestBid()
		if !ok || !s.CanSellMore() {
			return nil
		}
		if level := s.SellLevel(); !level.IsZero() && bid.Price.LessThan(level) {
			return nil
		}
		if s.Sell(ctx) != nil {
			s.SetState(ctx, domain.StateWaitingForBuy)
		}
	}
	return nil
}
