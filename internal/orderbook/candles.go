package orderbook

import (
	"slices"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/alanyoungcy/tickerbot/internal/domain"
)

// Candle aggregates the trades of one period.
type Candle struct {
	Start  time.Time       `json:"start"`
	Open   decimal.Decimal `json:"open"`
	High   decimal.Decimal `json:"high"`
	Low    decimal.Decimal `json:"low"`
	Close  decimal.Decimal `json:"close"`
	Volume decimal.Decimal `json:"volume"`
}

// CandleSeries keeps candles ordered by start time.
type CandleSeries struct {
	mu      sync.RWMutex
	period  time.Duration
	limit   int
	candles []Candle
}

// NewCandleSeries creates a series with the given period. At most limit
// candles are retained (unbounded when limit <= 0).
func NewCandleSeries(period time.Duration, limit int) *CandleSeries {
	if period <= 0 {
		period = time.Minute
	}
	return &CandleSeries{period: period, limit: limit}
}

// Period returns the candle period.
func (c *CandleSeries) Period() time.Duration {
	return c.period
}

// AddTrade accumulates the trade into the candle covering its timestamp,
// creating that candle when needed. Trades older than the retained window
// are ignored.
func (c *CandleSeries) AddTrade(t domain.TradeInfo) {
	start := t.Time.UTC().Truncate(c.period)

	c.mu.Lock()
	defer c.mu.Unlock()

	i, found := slices.BinarySearchFunc(c.candles, start, func(cd Candle, s time.Time) int {
		return cd.Start.Compare(s)
	})
	if found {
		cd := &c.candles[i]
		cd.Volume = cd.Volume.Add(t.Amount)
		if t.Price.GreaterThan(cd.High) {
			cd.High = t.Price
		}
		if t.Price.LessThan(cd.Low) {
			cd.Low = t.Price
		}
		cd.Close = t.Price
		return
	}
	if c.limit > 0 && len(c.candles) >= c.limit && i == 0 {
		return
	}
	c.candles = slices.Insert(c.candles, i, Candle{
		Start:  start,
		Open:   t.Price,
		High:   t.Price,
		Low:    t.Price,
		Close:  t.Price,
		Volume: t.Amount,
	})
	if c.limit > 0 && len(c.candles) > c.limit {
		c.candles = slices.Delete(c.candles, 0, len(c.candles)-c.limit)
	}
}

// Candles returns a copy of the series, oldest first.
func (c *CandleSeries) Candles() []Candle {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return slices.Clone(c.candles)
}

// Last returns the most recent candle.
func (c *CandleSeries) Last() (Candle, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if len(c.candles) == 0 {
		return Candle{}, false
	}
	return c.candles[len(c.candles)-1], true
}
