package app

import (
	"context"
	"io"
	"log/slog"
	"sort"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alanyoungcy/tickerbot/internal/config"
	"github.com/alanyoungcy/tickerbot/internal/domain"
	"github.com/alanyoungcy/tickerbot/internal/executor"
	"github.com/alanyoungcy/tickerbot/internal/strategy"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testConfig() *config.Config {
	cfg := config.Defaults()
	cfg.Feed.Enabled = false
	cfg.Server.Enabled = false
	cfg.Instruments = []config.InstrumentConfig{
		{Exchange: "bittrex", Name: "BTC-ETH", BaseCurrency: "BTC", MarketCurrency: "ETH", Fee: config.Dec("0.25")},
		{Exchange: "bittrex", Name: "BTC-LTC", BaseCurrency: "BTC", MarketCurrency: "LTC"},
		{Exchange: "kraken", Name: "XBTETH", BaseCurrency: "XBT", MarketCurrency: "ETH"},
	}
	cfg.Accounts = []config.AccountConfig{{
		Name: "main", Exchange: "bittrex",
		Balances: map[string]config.Decimal{"BTC": config.Dec("100")},
	}}
	enabled := false
	cfg.Strategies = []config.StrategyConfig{
		{
			Name: "first", Kind: "buy_low_sell_high", Exchange: "bittrex", Ticker: "BTC-ETH", Account: "main",
			MaxAllowedDeposit: config.Dec("50"), BuyLevel: config.Dec("10"), SellLevel: config.Dec("12"),
		},
		{
			Name: "second", Kind: "BUY_LOW_SELL_HIGH", Exchange: "bittrex", Ticker: "BTC-LTC", Account: "main",
			Enabled: &enabled, Demo: true, InitialState: "waiting_for_sell",
		},
	}
	return &cfg
}

func TestWireWithoutInfrastructure(t *testing.T) {
	cfg := testConfig()
	deps, cleanup, err := Wire(context.Background(), cfg, testLogger())
	require.NoError(t, err)
	defer cleanup()

	assert.Len(t, deps.Markets.All(), 3)
	acc, ok := deps.Accounts.Get("main")
	require.True(t, ok)
	assert.True(t, acc.GetBalance("BTC").Equal(decimal.NewFromInt(100)))

	assert.Nil(t, deps.Postgres)
	assert.Nil(t, deps.Executions)
	assert.Nil(t, deps.Redis)
	assert.Nil(t, deps.Archiver)
	assert.NotNil(t, deps.Journal)
	assert.False(t, deps.Notifier.Enabled())
}

func TestWireRejectsDuplicateInstrument(t *testing.T) {
	cfg := testConfig()
	cfg.Instruments = append(cfg.Instruments, cfg.Instruments[0])
	_, _, err := Wire(context.Background(), cfg, testLogger())
	assert.ErrorIs(t, err, domain.ErrAlreadyExists)
}

func TestTickerConfigs(t *testing.T) {
	cfg := testConfig()
	pre := config.Dec("7")
	cfg.Strategies[0].MaxActualBuyDeposit = &pre

	live := tickerConfigs(cfg.Strategies, false)
	require.Len(t, live, 2)
	assert.Equal(t, "first", live[0].Name)
	assert.False(t, live[0].Demo)
	assert.True(t, live[0].Enabled)
	require.NotNil(t, live[0].MaxActualBuyDeposit)
	assert.True(t, live[0].MaxActualBuyDeposit.Equal(decimal.NewFromInt(7)))
	assert.Equal(t, strategy.KindBuyLowSellHigh, live[1].Kind)
	assert.True(t, live[1].Demo)
	assert.False(t, live[1].Enabled)
	assert.Equal(t, domain.StateWaitingForSell, live[1].InitialState)

	demo := tickerConfigs(cfg.Strategies, true)
	assert.True(t, demo[0].Demo)
}

func TestBuildManagerKeepsPriorityAndRejectsUnknownKind(t *testing.T) {
	cfg := testConfig()
	deps, cleanup, err := Wire(context.Background(), cfg, testLogger())
	require.NoError(t, err)
	defer cleanup()

	a := New(cfg, testLogger())
	sdeps := a.strategyDeps(deps, executor.NewExecutor(testLogger()))

	m, err := buildManager(tickerConfigs(cfg.Strategies, true), sdeps)
	require.NoError(t, err)
	statuses := m.Statuses()
	require.Len(t, statuses, 2)
	assert.Equal(t, "first", statuses[0].Name)
	assert.Equal(t, "second", statuses[1].Name)

	cfg.Strategies[1].Kind = "martingale"
	_, err = buildManager(tickerConfigs(cfg.Strategies, true), sdeps)
	assert.ErrorIs(t, err, domain.ErrUnknownKind)
}

func TestDemoStrategyTradesAgainstBook(t *testing.T) {
	cfg := testConfig()
	deps, cleanup, err := Wire(context.Background(), cfg, testLogger())
	require.NoError(t, err)
	defer cleanup()

	a := New(cfg, testLogger())
	m, err := buildManager(tickerConfigs(cfg.Strategies, true), a.strategyDeps(deps, executor.NewExecutor(testLogger())))
	require.NoError(t, err)

	tk, ok := deps.Markets.Get("bittrex", "BTC-ETH")
	require.True(t, ok)
	require.NoError(t, tk.Book().ApplySnapshot(domain.Snapshot{
		Bids: []domain.Level{{Price: decimal.NewFromInt(9), Amount: decimal.NewFromInt(100)}},
		Asks: []domain.Level{{Price: decimal.NewFromInt(10), Amount: decimal.NewFromInt(100)}},
	}))

	ctx := context.Background()
	s, ok := m.Get("first")
	require.True(t, ok)
	require.Empty(t, s.Validate())
	require.NoError(t, s.Init(ctx))
	require.NoError(t, s.Start(ctx))
	require.NoError(t, s.Step(ctx))

	st := s.Status()
	assert.Equal(t, domain.StateWaitingForSell, st.State)
	assert.True(t, st.Demo)
	assert.True(t, st.BoughtTotal.IsPositive())
	assert.NotEmpty(t, deps.Journal.Recent("first", 10))

	// demo fills leave the account untouched
	acc, _ := deps.Accounts.Get("main")
	assert.True(t, acc.GetBalance("BTC").Equal(decimal.NewFromInt(100)))
}

func TestTickersByExchange(t *testing.T) {
	markets, err := buildMarkets(testConfig().Instruments)
	require.NoError(t, err)

	got := tickersByExchange(markets)
	names := got["bittrex"]
	sort.Strings(names)
	assert.Equal(t, []string{"BTC-ETH", "BTC-LTC"}, names)
	assert.Equal(t, []string{"XBTETH"}, got["kraken"])
}

func TestBuildFeedsSkipsExchangesWithoutCodec(t *testing.T) {
	cfg := testConfig()
	markets, err := buildMarkets(cfg.Instruments)
	require.NoError(t, err)

	a := New(cfg, testLogger())
	assert.Len(t, a.buildFeeds(markets), 1)
}

func TestRunRejectsUnknownMode(t *testing.T) {
	cfg := testConfig()
	cfg.Mode = "paper"
	a := New(cfg, testLogger())
	defer a.Close()

	err := a.Run(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), `unsupported mode "paper"`)
}
