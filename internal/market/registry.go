package market

import (
	"fmt"
	"slices"
	"sort"
	"sync"

	"github.com/alanyoungcy/tickerbot/internal/domain"
)

// Registry resolves tickers by exchange and name.
type Registry struct {
	mu      sync.RWMutex
	tickers map[string]*Ticker
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{tickers: make(map[string]*Ticker)}
}

func key(exchange, name string) string {
	return exchange + ":" + name
}

// Add registers a ticker. Registering the same exchange and name twice fails.
func (r *Registry) Add(t *Ticker) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	k := key(t.Exchange(), t.Name())
	if _, ok := r.tickers[k]; ok {
		return fmt.Errorf("market: ticker %s: %w", k, domain.ErrAlreadyExists)
	}
	r.tickers[k] = t
	return nil
}

// Get returns the ticker named name on exchange.
func (r *Registry) Get(exchange, name string) (*Ticker, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	t, ok := r.tickers[key(exchange, name)]
	return t, ok
}

// Lookup resolves info to a ticker.
func (r *Registry) Lookup(info domain.TickerInfo) (*Ticker, error) {
	t, ok := r.Get(info.Exchange, info.Name)
	if !ok {
		return nil, fmt.Errorf("market: ticker %s: %w", info, domain.ErrNotFound)
	}
	return t, nil
}

// All returns every registered ticker ordered by exchange and name.
func (r *Registry) All() []*Ticker {
	r.mu.RLock()
	out := make([]*Ticker, 0, len(r.tickers))
	for _, t := range r.tickers {
		out = append(out, t)
	}
	r.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool {
		return out[i].Info().String() < out[j].Info().String()
	})
	return out
}

// Exchanges returns the distinct exchanges with at least one ticker.
func (r *Registry) Exchanges() []string {
	var out []string
	for _, t := range r.All() {
		if !slices.Contains(out, t.Exchange()) {
			out = append(out, t.Exchange())
		}
	}
	return out
}
