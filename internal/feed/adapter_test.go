package feed

import (
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alanyoungcy/tickerbot/internal/domain"
	"github.com/alanyoungcy/tickerbot/internal/market"
	"github.com/alanyoungcy/tickerbot/internal/orderbook"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func d(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func lv(price, amount string) domain.Level {
	return domain.Level{Price: d(price), Amount: d(amount)}
}

func newTicker() *market.Ticker {
	return market.NewTicker(domain.TickerInfo{
		Exchange:       BittrexExchange,
		Name:           "BTC-ETH",
		BaseCurrency:   "BTC",
		MarketCurrency: "ETH",
	}, d("0.25"), market.TickerOptions{CandlePeriod: time.Minute})
}

func TestAdapterUpdateAppliesInOrderAndNotifiesOnce(t *testing.T) {
	tk := newTicker()
	a := NewAdapter(BittrexCodec{}, testLogger())

	updated := 0
	tk.OnUpdated(func(*market.Ticker) { updated++ })

	now := time.Date(2024, 5, 1, 12, 0, 10, 0, time.UTC)
	t1 := domain.NewTradeInfo(domain.TradeSideBuy, d("10"), d("1"), now)
	t2 := domain.NewTradeInfo(domain.TradeSideSell, d("9"), d("2"), now.Add(time.Second))

	err := a.Update(tk, domain.IncrementalUpdate{
		Bids:   []domain.LevelUpdate{lv("9", "1"), lv("8", "1"), lv("9", "0")},
		Asks:   []domain.LevelUpdate{lv("11", "1"), lv("10.5", "2")},
		Trades: []domain.TradeInfo{t1, t2},
	})
	require.NoError(t, err)

	assert.Equal(t, []domain.Level{lv("8", "1")}, tk.Book().Bids())
	assert.Equal(t, []domain.Level{lv("10.5", "2"), lv("11", "1")}, tk.Book().Asks())
	assert.Equal(t, []domain.TradeInfo{t2, t1}, tk.History().Items())
	assert.Equal(t, 1, updated)

	last, ok := tk.Candles().Last()
	require.True(t, ok)
	assert.True(t, last.Volume.Equal(d("3")))
}

func TestAdapterRejectsMalformedWithoutApplying(t *testing.T) {
	tk := newTicker()
	a := NewAdapter(BittrexCodec{}, testLogger())

	err := a.Update(tk, domain.IncrementalUpdate{
		Bids: []domain.LevelUpdate{lv("9", "1")},
		Asks: []domain.LevelUpdate{lv("11", "-1")},
	})
	require.ErrorIs(t, err, domain.ErrMalformedUpdate)
	assert.True(t, NeedsResync(err))
	assert.Empty(t, tk.Book().Bids())
}

func TestAdapterSequence(t *testing.T) {
	tk := newTicker()
	a := NewAdapter(BittrexCodec{}, testLogger())

	require.NoError(t, a.ApplySnapshotInfo(tk, domain.Snapshot{Seq: 10, Bids: []domain.Level{lv("9", "1")}}))

	err := a.Update(tk, domain.IncrementalUpdate{Seq: 10, Bids: []domain.LevelUpdate{lv("9", "5")}})
	require.ErrorIs(t, err, domain.ErrStaleUpdate)
	assert.False(t, NeedsResync(err))

	require.NoError(t, a.Update(tk, domain.IncrementalUpdate{Seq: 11, Bids: []domain.LevelUpdate{lv("9", "2")}}))
	assert.Equal(t, int64(11), tk.Book().Seq())

	err = a.Update(tk, domain.IncrementalUpdate{Seq: 13, Bids: []domain.LevelUpdate{lv("9", "3")}})
	require.ErrorIs(t, err, domain.ErrSequenceGap)
	assert.True(t, NeedsResync(err))
	assert.Equal(t, []domain.Level{lv("9", "2")}, tk.Book().Bids())

	// unsequenced updates are trusted
	require.NoError(t, a.Update(tk, domain.IncrementalUpdate{Bids: []domain.LevelUpdate{lv("9", "4")}}))
	assert.Equal(t, int64(11), tk.Book().Seq())
}

func TestAdapterApplySnapshot(t *testing.T) {
	tk := newTicker()
	a := NewAdapter(BittrexCodec{}, testLogger())
	require.NoError(t, tk.Book().ApplyIncrementalUpdate(domain.BookSideAsk, d("50"), d("1")))

	historyEvents := 0
	tk.History().OnChange(func(orderbook.HistoryEvent) { historyEvents++ })

	raw := []byte(`{"M":"BTC-ETH","N":5,
		"Z":[{"R":"0.0301","Q":"2"},{"R":"0.0302","Q":"1"}],
		"S":[{"R":"0.0305","Q":"3"}],
		"f":[{"OT":"BUY","P":"0.0303","Q":"0.5","T":1700000001000},{"OT":"SELL","P":"0.0302","Q":"1","T":1700000000000}]}`)
	require.NoError(t, a.ApplySnapshot(raw, tk))

	assert.Equal(t, []domain.Level{lv("0.0302", "1"), lv("0.0301", "2")}, tk.Book().Bids())
	assert.Equal(t, []domain.Level{lv("0.0305", "3")}, tk.Book().Asks())
	assert.False(t, tk.Book().IsDirty())
	assert.Equal(t, int64(5), tk.Book().Seq())

	items := tk.History().Items()
	require.Len(t, items, 2)
	assert.Equal(t, domain.TradeSideBuy, items[0].Side)
	assert.True(t, items[0].Total.Equal(d("0.01515")))
	assert.Equal(t, 1, historyEvents)
}
