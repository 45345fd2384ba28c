package strategy

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/alanyoungcy/tickerbot/internal/account"
	"github.com/alanyoungcy/tickerbot/internal/domain"
	"github.com/alanyoungcy/tickerbot/internal/market"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func d(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func ptr[T any](v T) *T { return &v }

// fakeExecutor synthesizes fills at the requested price, or fails.
type fakeExecutor struct {
	mu   sync.Mutex
	fail bool
	reqs []domain.OrderRequest
}

func (e *fakeExecutor) Execute(_ context.Context, _ *market.Ticker, req domain.OrderRequest) (*domain.TradingResult, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.reqs = append(e.reqs, req)
	if e.fail {
		return nil, errors.New("exchange unavailable")
	}
	id := "live-1"
	if req.Demo {
		id = domain.DemoOrderID
	}
	return &domain.TradingResult{
		OrderID: id,
		Side:    req.Side,
		Price:   req.Price,
		Amount:  req.Amount,
		Total:   req.Price.Mul(req.Amount),
		Time:    time.Now(),
	}, nil
}

func (e *fakeExecutor) requests() []domain.OrderRequest {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]domain.OrderRequest(nil), e.reqs...)
}

type memJournal struct {
	mu   sync.Mutex
	recs []domain.LogRecord
}

func (j *memJournal) Record(_ context.Context, rec domain.LogRecord) {
	j.mu.Lock()
	j.recs = append(j.recs, rec)
	j.mu.Unlock()
}

func (j *memJournal) records() []domain.LogRecord {
	j.mu.Lock()
	defer j.mu.Unlock()
	return append([]domain.LogRecord(nil), j.recs...)
}

type fixture struct {
	markets  *market.Registry
	accounts *account.Book
	ticker   *market.Ticker
	account  *account.Account
	exec     *fakeExecutor
	journal  *memJournal
}

func newFixture(fee string, balance string) *fixture {
	f := &fixture{
		markets:  market.NewRegistry(),
		accounts: account.NewBook(),
		exec:     &fakeExecutor{},
		journal:  &memJournal{},
	}
	f.ticker = market.NewTicker(domain.TickerInfo{
		Exchange:       "bittrex",
		Name:           "BTC-ETH",
		BaseCurrency:   "BTC",
		MarketCurrency: "ETH",
	}, d(fee), market.TickerOptions{})
	_ = f.markets.Add(f.ticker)
	f.account = account.New("main", "bittrex", map[string]decimal.Decimal{"BTC": d(balance)})
	f.accounts.Add(f.account)
	return f
}

func (f *fixture) deps() Deps {
	return Deps{
		Markets:  f.markets,
		Accounts: f.accounts,
		Executor: f.exec,
		Journal:  f.journal,
		Logger:   testLogger(),
	}
}

func (f *fixture) config(name string) TickerConfig {
	return TickerConfig{
		Name:     name,
		Kind:     KindBuyLowSellHigh,
		Enabled:  true,
		Demo:     true,
		Exchange: "bittrex",
		Ticker:   "BTC-ETH",
		Account:  "main",
		Interval: 10 * time.Millisecond,
	}
}

func (f *fixture) setBook(bids, asks []domain.Level) {
	_ = f.ticker.Book().ApplySnapshot(domain.Snapshot{Bids: bids, Asks: asks})
}

func lv(price, amount string) domain.Level {
	return domain.Level{Price: d(price), Amount: d(amount)}
}

func accountOn(name, exchange string) *account.Account {
	return account.New(name, exchange, nil)
}
