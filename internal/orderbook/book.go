// Package orderbook maintains per-instrument bid/ask ladders, trade history
// and candle volumes behind a single lock per structure.
package orderbook

import (
	"fmt"
	"slices"
	"sync"

	"github.com/shopspring/decimal"

	"github.com/alanyoungcy/tickerbot/internal/domain"
)

// Change describes a committed batch.
type Change struct {
	Version  uint64
	Snapshot bool
}

// Book holds the bid and ask ladders of one instrument. Bids are kept in
// strictly descending price order, asks in strictly ascending order. All
// mutation goes through a Batch, which holds the write lock for its whole
// lifetime.
type Book struct {
	mu           sync.RWMutex
	bids         []domain.Level
	asks         []domain.Level
	asksInverted []domain.Level
	inverted     bool
	dirty        bool
	version      uint64
	seq          int64

	history *History

	lmu       sync.RWMutex
	listeners []func(Change)
}

// Option configures a Book.
type Option func(*Book)

// WithInvertedAsks keeps a descending mirror of the ask ladder.
func WithInvertedAsks() Option {
	return func(b *Book) { b.inverted = true }
}

// WithHistory attaches the trade history replaced by ApplySnapshot.
func WithHistory(h *History) Option {
	return func(b *Book) { b.history = h }
}

// New creates an empty book.
func New(opts ...Option) *Book {
	b := &Book{}
	for _, opt := range opts {
		opt(b)
	}
	if b.history == nil {
		b.history = NewHistory(0)
	}
	return b
}

// History returns the trade history attached to the book.
func (b *Book) History() *History {
	return b.history
}

// OnChange registers fn to be called once per committed batch that changed
// the book. fn runs after the lock is released.
func (b *Book) OnChange(fn func(Change)) {
	b.lmu.Lock()
	b.listeners = append(b.listeners, fn)
	b.lmu.Unlock()
}

// BeginUpdate acquires the book for a batched update. The returned batch
// must be ended exactly once; further End calls are no-ops.
func (b *Book) BeginUpdate() *Batch {
	b.mu.Lock()
	return &Batch{book: b}
}

// Update runs fn inside a batch. The batch is ended on every exit path,
// including a panic in fn.
func (b *Book) Update(fn func(*Batch) error) error {
	batch := b.BeginUpdate()
	defer batch.End()
	return fn(batch)
}

// ApplySnapshot replaces the book and its trade history in one batch. The
// book is left not dirty; book listeners run first, then history
// subscribers get the full set once.
func (b *Book) ApplySnapshot(snap domain.Snapshot) error {
	if err := validateLevels(snap.Bids); err != nil {
		return fmt.Errorf("orderbook: snapshot bids: %w", err)
	}
	if err := validateLevels(snap.Asks); err != nil {
		return fmt.Errorf("orderbook: snapshot asks: %w", err)
	}
	return b.Update(func(batch *Batch) error {
		batch.Clear()
		for _, l := range snap.Bids {
			if err := batch.Set(domain.BookSideBid, l.Price, l.Amount); err != nil {
				return err
			}
		}
		for _, l := range snap.Asks {
			if err := batch.Set(domain.BookSideAsk, l.Price, l.Amount); err != nil {
				return err
			}
		}
		batch.MarkSnapshot(snap.Seq)
		batch.ReplaceHistory(snap.Trades)
		return nil
	})
}

// ApplyIncrementalUpdate applies a single level change as its own batch.
func (b *Book) ApplyIncrementalUpdate(side domain.BookSide, price, amount decimal.Decimal) error {
	return b.Update(func(batch *Batch) error {
		return batch.Set(side, price, amount)
	})
}

// IsDirty reports whether the book changed since the flag was last taken.
func (b *Book) IsDirty() bool {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.dirty
}

// TakeDirty returns the dirty flag and clears it.
func (b *Book) TakeDirty() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	d := b.dirty
	b.dirty = false
	return d
}

// MarkDirty sets the dirty flag again, e.g. after a failed mirror write.
func (b *Book) MarkDirty() {
	b.mu.Lock()
	b.dirty = true
	b.mu.Unlock()
}

// Version increases by one for every committed batch that changed the book.
func (b *Book) Version() uint64 {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.version
}

// Seq returns the last exchange sequence number recorded on the book.
func (b *Book) Seq() int64 {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.seq
}

// Bids returns a copy of the bid ladder, best first.
func (b *Book) Bids() []domain.Level {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return slices.Clone(b.bids)
}

// Asks returns a copy of the ask ladder, best first.
func (b *Book) Asks() []domain.Level {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return slices.Clone(b.asks)
}

// AsksInverted returns a copy of the descending ask mirror, or nil when the
// book was created without WithInvertedAsks.
func (b *Book) AsksInverted() []domain.Level {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if !b.inverted {
		return nil
	}
	return slices.Clone(b.asksInverted)
}

// BestBid returns the highest bid.
func (b *Book) BestBid() (domain.Level, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if len(b.bids) == 0 {
		return domain.Level{}, false
	}
	return b.bids[0], true
}

// BestAsk returns the lowest ask.
func (b *Book) BestAsk() (domain.Level, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if len(b.asks) == 0 {
		return domain.Level{}, false
	}
	return b.asks[0], true
}

// Snapshot copies up to depth levels per side (all when depth <= 0) together
// with the version they were read at.
func (b *Book) Snapshot(depth int) (bids, asks []domain.Level, version uint64) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return clip(b.bids, depth), clip(b.asks, depth), b.version
}

// AvailableToBuy walks the asks under the read lock. See WalkAsks.
func (b *Book) AvailableToBuy(deposit, maxPrice decimal.Decimal) domain.Level {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return WalkAsks(b.asks, deposit, maxPrice)
}

// AvailableToSell walks the bids under the read lock. See WalkBids.
func (b *Book) AvailableToSell(deposit, minPrice decimal.Decimal) domain.Level {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return WalkBids(b.bids, deposit, minPrice)
}

func (b *Book) notify(c Change) {
	b.lmu.RLock()
	ls := slices.Clone(b.listeners)
	b.lmu.RUnlock()
	for _, fn := range ls {
		fn(c)
	}
}

func clip(levels []domain.Level, depth int) []domain.Level {
	if depth > 0 && len(levels) > depth {
		levels = levels[:depth]
	}
	return slices.Clone(levels)
}

func validateLevels(levels []domain.Level) error {
	for _, l := range levels {
		if !l.Price.IsPositive() || l.Amount.IsNegative() {
			return fmt.Errorf("level %s@%s: %w", l.Amount, l.Price, domain.ErrMalformedUpdate)
		}
	}
	return nil
}
