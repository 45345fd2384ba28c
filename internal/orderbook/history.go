package orderbook

import (
	"slices"
	"sync"

	"github.com/alanyoungcy/tickerbot/internal/domain"
)

// HistoryEvent is delivered to history subscribers.
type HistoryEvent struct {
	Items    []domain.TradeInfo // newly added, or the full set when Replaced
	Replaced bool
}

// History is a most-recent-first log of market trades for one instrument.
type History struct {
	mu    sync.RWMutex
	items []domain.TradeInfo
	limit int

	lmu       sync.RWMutex
	listeners []func(HistoryEvent)
}

// NewHistory creates an empty history keeping at most limit trades
// (unbounded when limit <= 0).
func NewHistory(limit int) *History {
	return &History{limit: limit}
}

// OnChange registers a subscriber.
func (h *History) OnChange(fn func(HistoryEvent)) {
	h.lmu.Lock()
	h.listeners = append(h.listeners, fn)
	h.lmu.Unlock()
}

// HasSubscribers reports whether anyone listens for changes.
func (h *History) HasSubscribers() bool {
	h.lmu.RLock()
	defer h.lmu.RUnlock()
	return len(h.listeners) > 0
}

// Prepend inserts each trade at the head in the given order, so the last
// trade given ends up first. Subscribers are notified once.
func (h *History) Prepend(trades ...domain.TradeInfo) {
	if len(trades) == 0 {
		return
	}
	h.mu.Lock()
	head := make([]domain.TradeInfo, 0, len(trades)+len(h.items))
	for i := len(trades) - 1; i >= 0; i-- {
		head = append(head, trades[i])
	}
	h.items = h.trim(append(head, h.items...))
	h.mu.Unlock()
	h.notify(HistoryEvent{Items: slices.Clone(trades)})
}

// Replace swaps the whole history for trades (most recent first) and
// notifies subscribers once with the full set.
func (h *History) Replace(trades []domain.TradeInfo) {
	h.notify(HistoryEvent{Items: h.swap(trades), Replaced: true})
}

// swap replaces the items without notifying and returns a copy of the new
// set.
func (h *History) swap(trades []domain.TradeInfo) []domain.TradeInfo {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.items = h.trim(slices.Clone(trades))
	return slices.Clone(h.items)
}

// Items returns a copy of the history, most recent first.
func (h *History) Items() []domain.TradeInfo {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return slices.Clone(h.items)
}

// Len returns the number of stored trades.
func (h *History) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.items)
}

// Latest returns the most recent trade.
func (h *History) Latest() (domain.TradeInfo, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	if len(h.items) == 0 {
		return domain.TradeInfo{}, false
	}
	return h.items[0], true
}

func (h *History) trim(items []domain.TradeInfo) []domain.TradeInfo {
	if h.limit > 0 && len(items) > h.limit {
		return items[:h.limit]
	}
	return items
}

func (h *History) notify(ev HistoryEvent) {
	h.lmu.RLock()
	ls := slices.Clone(h.listeners)
	h.lmu.RUnlock()
	for _, fn := range ls {
		fn(ev)
	}
}
