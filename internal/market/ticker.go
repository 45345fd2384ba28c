// Package market holds the runtime state of tradable instruments.
package market

import (
	"context"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/alanyoungcy/tickerbot/internal/domain"
	"github.com/alanyoungcy/tickerbot/internal/orderbook"
)

// OrderGateway places orders on an exchange.
type OrderGateway interface {
	PlaceOrder(ctx context.Context, req domain.OrderRequest) (*domain.TradingResult, error)
}

// TickerOptions configures a Ticker.
type TickerOptions struct {
	CandlePeriod time.Duration
	CandleLimit  int
	HistoryLimit int
	InvertedAsks bool
}

// Ticker is one instrument on one exchange. It owns the order book, the
// market trade history and the candle series.
type Ticker struct {
	info    domain.TickerInfo
	book    *orderbook.Book
	candles *orderbook.CandleSeries

	mu      sync.RWMutex
	fee     decimal.Decimal
	gateway OrderGateway

	lmu       sync.RWMutex
	listeners []func(*Ticker)
}

// NewTicker creates a ticker with an empty book.
func NewTicker(info domain.TickerInfo, fee decimal.Decimal, opts TickerOptions) *Ticker {
	bookOpts := []orderbook.Option{orderbook.WithHistory(orderbook.NewHistory(opts.HistoryLimit))}
	if opts.InvertedAsks {
		bookOpts = append(bookOpts, orderbook.WithInvertedAsks())
	}
	return &Ticker{
		info:    info,
		book:    orderbook.New(bookOpts...),
		candles: orderbook.NewCandleSeries(opts.CandlePeriod, opts.CandleLimit),
		fee:     fee,
	}
}

// Info returns the instrument identity.
func (t *Ticker) Info() domain.TickerInfo { return t.info }

// Exchange returns the exchange the ticker trades on.
func (t *Ticker) Exchange() string { return t.info.Exchange }

// Name returns the exchange-native symbol.
func (t *Ticker) Name() string { return t.info.Name }

// BaseCurrency returns the currency that funds buys.
func (t *Ticker) BaseCurrency() string { return t.info.BaseCurrency }

// Book returns the order book.
func (t *Ticker) Book() *orderbook.Book { return t.book }

// History returns the market trade history.
func (t *Ticker) History() *orderbook.History { return t.book.History() }

// Candles returns the candle series.
func (t *Ticker) Candles() *orderbook.CandleSeries { return t.candles }

// CandlePeriod returns the candle aggregation period.
func (t *Ticker) CandlePeriod() time.Duration { return t.candles.Period() }

// Fee returns the taker fee in percent.
func (t *Ticker) Fee() decimal.Decimal {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.fee
}

// SetFee refreshes the taker fee.
func (t *Ticker) SetFee(fee decimal.Decimal) {
	t.mu.Lock()
	t.fee = fee
	t.mu.Unlock()
}

// SetGateway binds the order gateway used by Buy and Sell.
func (t *Ticker) SetGateway(g OrderGateway) {
	t.mu.Lock()
	t.gateway = g
	t.mu.Unlock()
}

// OnUpdated registers fn to be called after each applied market data message.
func (t *Ticker) OnUpdated(fn func(*Ticker)) {
	t.lmu.Lock()
	t.listeners = append(t.listeners, fn)
	t.lmu.Unlock()
}

// RaiseUpdated notifies OnUpdated subscribers.
func (t *Ticker) RaiseUpdated() {
	t.lmu.RLock()
	ls := slices.Clone(t.listeners)
	t.lmu.RUnlock()
	for _, fn := range ls {
		fn(t)
	}
}

// Buy places a buy order through the gateway.
func (t *Ticker) Buy(ctx context.Context, typ domain.OrderType, price, amount decimal.Decimal, strategy string) (*domain.TradingResult, error) {
	return t.place(ctx, domain.OrderSideBuy, typ, price, amount, strategy)
}

// Sell places a sell order through the gateway.
func (t *Ticker) Sell(ctx context.Context, typ domain.OrderType, price, amount decimal.Decimal, strategy string) (*domain.TradingResult, error) {
	return t.place(ctx, domain.OrderSideSell, typ, price, amount, strategy)
}

func (t *Ticker) place(ctx context.Context, side domain.OrderSide, typ domain.OrderType, price, amount decimal.Decimal, strategy string) (*domain.TradingResult, error) {
	t.mu.RLock()
	g := t.gateway
	t.mu.RUnlock()
	if g == nil {
		return nil, fmt.Errorf("market: %s: no order gateway: %w", t.info, domain.ErrOrderRejected)
	}
	if !price.IsPositive() || !amount.IsPositive() {
		return nil, fmt.Errorf("market: %s: %s %s@%s: %w", t.info, side, amount, price, domain.ErrInvalidOrder)
	}
	return g.PlaceOrder(ctx, domain.OrderRequest{
		Exchange: t.info.Exchange,
		Ticker:   t.info.Name,
		Side:     side,
		Type:     typ,
		Price:    price,
		Amount:   amount,
		Strategy: strategy,
	})
}

// BookSnapshot copies the book into a domain.BookSnapshot.
func (t *Ticker) BookSnapshot(depth int) domain.BookSnapshot {
	bids, asks, _ := t.book.Snapshot(depth)
	snap := domain.BookSnapshot{
		Exchange:  t.info.Exchange,
		Ticker:    t.info.Name,
		Bids:      bids,
		Asks:      asks,
		Seq:       t.book.Seq(),
		Timestamp: time.Now().UTC(),
	}
	if len(bids) > 0 {
		snap.BestBid = bids[0].Price
	}
	if len(asks) > 0 {
		snap.BestAsk = asks[0].Price
	}
	return snap
}
