package strategy

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alanyoungcy/tickerbot/internal/domain"
)

func TestApplyFee(t *testing.T) {
	f := newFixture("0.25", "0")
	tr := NewTickerTrader(f.config("s"), f.deps())
	assert.True(t, tr.ApplyFee(d("100")).Equal(d("99.75")))
	assert.True(t, tr.CalcFee(d("100")).Equal(d("0.25")))
}

func TestBuyEndToEnd(t *testing.T) {
	f := newFixture("0.2", "0")
	f.setBook(nil, []domain.Level{lv("10", "50")})
	cfg := f.config("s")
	cfg.MaxActualBuyDeposit = ptr(d("100"))
	tr := NewTickerTrader(cfg, f.deps())

	res := tr.Buy(context.Background())
	require.NotNil(t, res)
	assert.Equal(t, domain.DemoOrderID, res.OrderID)
	assert.True(t, res.Price.Equal(d("10")))
	assert.True(t, res.Amount.Equal(d("9.98")), "amount %s", res.Amount)

	assert.True(t, tr.BoughtTotal().Equal(d("99.8")))
	assert.True(t, tr.MaxActualBuyDeposit().Equal(d("0.0004")), "buy deposit %s", tr.MaxActualBuyDeposit())
	assert.True(t, tr.MaxActualSellDeposit().Equal(d("9.98")))
	assert.False(t, tr.CanBuyMore())
	assert.True(t, tr.CanSellMore())
	assert.Len(t, tr.Results(), 1)

	reqs := f.exec.requests()
	require.Len(t, reqs, 1)
	assert.True(t, reqs[0].Demo)
	assert.Equal(t, domain.OrderTypeMarket, reqs[0].Type)

	recs := f.journal.records()
	require.Len(t, recs, 1)
	assert.Equal(t, domain.OperationBuy, recs[0].Operation)
	assert.Equal(t, domain.SeverityInfo, recs[0].Severity)
}

func TestBuyLimitedByLevelAmount(t *testing.T) {
	f := newFixture("0", "0")
	f.setBook(nil, []domain.Level{lv("10", "5")})
	cfg := f.config("s")
	cfg.MaxActualBuyDeposit = ptr(d("100"))
	tr := NewTickerTrader(cfg, f.deps())

	res := tr.Buy(context.Background())
	require.NotNil(t, res)
	assert.True(t, res.Amount.Equal(d("5")))
	assert.True(t, tr.MaxActualBuyDeposit().Equal(d("50")))
}

func TestBuyNothingAvailable(t *testing.T) {
	f := newFixture("0.2", "0")
	f.setBook(nil, []domain.Level{lv("10", "5")})
	cfg := f.config("s")
	cfg.BuyLevel = d("9")
	cfg.MaxActualBuyDeposit = ptr(d("100"))
	tr := NewTickerTrader(cfg, f.deps())

	assert.Nil(t, tr.Buy(context.Background()))
	assert.Empty(t, f.exec.requests())
	assert.Empty(t, f.journal.records())
	assert.True(t, tr.MaxActualBuyDeposit().Equal(d("100")))
}

func TestLiveFailureLeavesAccountingUntouched(t *testing.T) {
	f := newFixture("0.2", "0")
	f.exec.fail = true
	f.setBook(nil, []domain.Level{lv("10", "50")})
	cfg := f.config("s")
	cfg.Demo = false
	cfg.MaxActualBuyDeposit = ptr(d("100"))
	tr := NewTickerTrader(cfg, f.deps())

	assert.Nil(t, tr.Buy(context.Background()))
	assert.True(t, tr.MaxActualBuyDeposit().Equal(d("100")))
	assert.True(t, tr.BoughtTotal().IsZero())
	assert.True(t, tr.MaxActualSellDeposit().IsZero())
	assert.Empty(t, tr.Results())

	recs := f.journal.records()
	require.Len(t, recs, 1)
	assert.Equal(t, domain.SeverityError, recs[0].Severity)
	assert.Equal(t, domain.OperationBuy, recs[0].Operation)
	assert.Len(t, f.exec.requests(), 1, "failed orders are not retried")
}

func TestSellAccounting(t *testing.T) {
	f := newFixture("0.5", "0")
	f.setBook([]domain.Level{lv("20", "1"), lv("19", "10")}, nil)
	tr := NewTickerTrader(f.config("s"), f.deps())
	tr.SetMaxActualBuyDeposit(decimal.Zero)
	tr.SetMaxActualSellDeposit(d("2"))

	res := tr.Sell(context.Background())
	require.NotNil(t, res)
	// fee-adjusted deposit 1.99: 1 at 20, the rest at 19
	assert.True(t, res.Amount.Equal(d("1.99")), "amount %s", res.Amount)
	assert.True(t, res.Price.Equal(d("19")))

	total := d("19").Mul(d("1.99"))
	fee := total.Mul(d("0.5")).Div(d("100"))
	assert.True(t, tr.SoldTotal().Equal(d("1.99")))
	assert.True(t, tr.MaxActualBuyDeposit().Equal(total))
	assert.True(t, tr.MaxActualSellDeposit().Equal(d("2").Sub(d("1.99").Add(fee))))
}

func TestSellRespectsFloor(t *testing.T) {
	f := newFixture("0", "0")
	f.setBook([]domain.Level{lv("20", "1"), lv("19", "10")}, nil)
	cfg := f.config("s")
	cfg.SellLevel = d("19.5")
	tr := NewTickerTrader(cfg, f.deps())
	tr.SetMaxActualSellDeposit(d("5"))

	res := tr.Sell(context.Background())
	require.NotNil(t, res)
	assert.True(t, res.Amount.Equal(d("1")))
	assert.True(t, res.Price.Equal(d("20")))
}

func TestPlaceBidAndAsk(t *testing.T) {
	f := newFixture("0", "0")
	tr := NewTickerTrader(f.config("s"), f.deps())

	require.NotNil(t, tr.PlaceBid(context.Background(), d("9"), d("1")))
	require.NotNil(t, tr.PlaceAsk(context.Background(), d("11"), d("1")))

	reqs := f.exec.requests()
	require.Len(t, reqs, 2)
	assert.Equal(t, domain.OrderTypeLimit, reqs[0].Type)
	assert.Equal(t, domain.OrderSideSell, reqs[1].Side)
	for _, rec := range f.journal.records() {
		assert.Equal(t, domain.SeverityInfo, rec.Severity)
	}
}

func TestSetStateJournalsTransition(t *testing.T) {
	f := newFixture("0", "0")
	tr := NewTickerTrader(f.config("s"), f.deps())
	ctx := context.Background()

	tr.SetState(ctx, domain.StateWaitingForBuy)
	assert.Empty(t, f.journal.records())

	tr.SetState(ctx, domain.StateWaitingForSell)
	recs := f.journal.records()
	require.Len(t, recs, 1)
	assert.Equal(t, domain.OperationStateChange, recs[0].Operation)
	assert.Equal(t, "waiting_for_buy -> waiting_for_sell", recs[0].Message)
	assert.Equal(t, domain.StateWaitingForSell, tr.State())
}

func TestValidate(t *testing.T) {
	f := newFixture("0", "0")
	f.accounts.Add(accountOn("poloniex-acc", "poloniex"))

	tests := []struct {
		name   string
		mutate func(*TickerConfig)
		want   []string
	}{
		{"valid", func(*TickerConfig) {}, nil},
		{"ticker not specified", func(c *TickerConfig) { c.Ticker = "" }, []string{"strategy s: ticker: ticker not specified"}},
		{"ticker not found", func(c *TickerConfig) { c.Ticker = "BTC-XXX" }, []string{"strategy s: ticker: ticker bittrex:BTC-XXX not found"}},
		{"exchange mismatch", func(c *TickerConfig) { c.Account = "poloniex-acc" }, []string{"strategy s: ticker: ticker's exchange bittrex does not match account's poloniex"}},
		{"account not found", func(c *TickerConfig) { c.Account = "nope" }, []string{"strategy s: account: account nope not found"}},
		{"bad state", func(c *TickerConfig) { c.InitialState = "sleeping" }, []string{`strategy s: initial_state: unknown state "sleeping"`}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := f.config("s")
			tt.mutate(&cfg)
			tr := NewTickerTrader(cfg, f.deps())
			before := tr.Status()

			var got []string
			for _, e := range tr.Validate() {
				got = append(got, e.Error())
			}
			assert.Equal(t, tt.want, got)
			assert.Equal(t, before, tr.Status(), "validate must not mutate")
		})
	}
}

func TestStartInitializesBuyDeposit(t *testing.T) {
	f := newFixture("0", "1000")
	m := NewManager(testLogger())
	s := NewBuyLowSellHigh(f.config("s"), f.deps())
	require.NoError(t, m.Add(s))
	tr := s.TickerTrader

	ctx := context.Background()
	require.NoError(t, tr.Init(ctx))
	require.NoError(t, tr.Start(ctx))
	assert.True(t, tr.Running())
	assert.True(t, tr.MaxActualBuyDeposit().Equal(d("1000")))

	// a preset buy budget survives Start
	cfg := f.config("t")
	cfg.MaxActualBuyDeposit = ptr(d("5"))
	tr2 := NewTickerTrader(cfg, f.deps())
	require.NoError(t, tr2.Start(ctx))
	assert.True(t, tr2.MaxActualBuyDeposit().Equal(d("5")))

	require.NoError(t, tr.Stop(ctx))
	assert.False(t, tr.Running())
}

func TestInitFailsForUnknownTicker(t *testing.T) {
	f := newFixture("0", "0")
	cfg := f.config("s")
	cfg.Ticker = "BTC-XXX"
	tr := NewTickerTrader(cfg, f.deps())
	require.ErrorIs(t, tr.Init(context.Background()), domain.ErrNotFound)
	require.Error(t, tr.Start(context.Background()))
}
