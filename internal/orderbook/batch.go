package orderbook

import (
	"fmt"
	"slices"
	"sync"

	"github.com/shopspring/decimal"

	"github.com/alanyoungcy/tickerbot/internal/domain"
)

// Batch is an open update scope on a Book. It holds the book's write lock
// until End is called.
type Batch struct {
	book     *Book
	once     sync.Once
	changed  bool
	snapshot bool
	seq      int64

	trades        []domain.TradeInfo
	replaceTrades bool
}

// Clear removes every level from both sides.
func (t *Batch) Clear() {
	b := t.book
	if len(b.bids) > 0 || len(b.asks) > 0 {
		t.changed = true
	}
	b.bids = b.bids[:0]
	b.asks = b.asks[:0]
}

// Set applies one level change: insert when absent, replace when present,
// remove when amount is zero. Removing an absent level is a no-op.
func (t *Batch) Set(side domain.BookSide, price, amount decimal.Decimal) error {
	if !price.IsPositive() || amount.IsNegative() {
		return fmt.Errorf("orderbook: set %s %s@%s: %w", side, amount, price, domain.ErrMalformedUpdate)
	}
	b := t.book
	switch side {
	case domain.BookSideBid:
		b.bids, t.changed = setLevel(b.bids, price, amount, descending, t.changed)
	case domain.BookSideAsk:
		b.asks, t.changed = setLevel(b.asks, price, amount, ascending, t.changed)
	default:
		return fmt.Errorf("orderbook: unknown side %q: %w", side, domain.ErrMalformedUpdate)
	}
	return nil
}

// Seq returns the sequence number the book was last updated to.
func (t *Batch) Seq() int64 {
	return t.book.seq
}

// SetSeq records the exchange sequence number of the applied data.
func (t *Batch) SetSeq(seq int64) {
	t.seq = seq
}

// MarkSnapshot flags the batch as a full replacement: the book ends up not
// dirty and the change notification carries Snapshot=true.
func (t *Batch) MarkSnapshot(seq int64) {
	t.snapshot = true
	t.changed = true
	t.seq = seq
}

// ReplaceHistory swaps the book's trade history for trades (most recent
// first) when the batch commits, before the lock is released.
func (t *Batch) ReplaceHistory(trades []domain.TradeInfo) {
	t.trades = trades
	t.replaceTrades = true
}

// End commits the batch, releases the lock and notifies listeners once if
// anything changed. Only the first call has an effect.
func (t *Batch) End() {
	t.once.Do(t.end)
}

func (t *Batch) end() {
	b := t.book
	var c Change
	if t.changed {
		b.version++
		b.dirty = !t.snapshot
		if b.inverted {
			b.asksInverted = reversed(b.asksInverted[:0], b.asks)
		}
		c = Change{Version: b.version, Snapshot: t.snapshot}
	}
	if t.seq != 0 || t.snapshot {
		b.seq = t.seq
	}
	var full []domain.TradeInfo
	if t.replaceTrades {
		full = b.history.swap(t.trades)
	}
	b.mu.Unlock()
	if t.changed {
		b.notify(c)
	}
	if t.replaceTrades {
		b.history.notify(HistoryEvent{Items: full, Replaced: true})
	}
}

func ascending(l domain.Level, price decimal.Decimal) int {
	return l.Price.Cmp(price)
}

func descending(l domain.Level, price decimal.Decimal) int {
	return price.Cmp(l.Price)
}

func setLevel(levels []domain.Level, price, amount decimal.Decimal, cmp func(domain.Level, decimal.Decimal) int, changed bool) ([]domain.Level, bool) {
	i, found := slices.BinarySearchFunc(levels, price, cmp)
	switch {
	case found && amount.IsZero():
		return slices.Delete(levels, i, i+1), true
	case found:
		if levels[i].Amount.Equal(amount) {
			return levels, changed
		}
		levels[i].Amount = amount
		return levels, true
	case amount.IsZero():
		return levels, changed
	default:
		return slices.Insert(levels, i, domain.Level{Price: price, Amount: amount}), true
	}
}

func reversed(dst, src []domain.Level) []domain.Level {
	for i := len(src) - 1; i >= 0; i-- {
		dst = append(dst, src[i])
	}
	return dst
}
