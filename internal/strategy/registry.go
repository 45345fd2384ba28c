package strategy

import (
	"fmt"
	"sort"

	"github.com/alanyoungcy/tickerbot/internal/domain"
)

// Kind tags a strategy implementation in configuration.
type Kind string

// KindBuyLowSellHigh buys under a ceiling and sells over a floor.
const KindBuyLowSellHigh Kind = "buy_low_sell_high"

// Factory builds a strategy of one kind.
type Factory func(cfg TickerConfig, deps Deps) (Strategy, error)

// Descriptor describes a strategy kind.
type Descriptor struct {
	Kind        Kind
	Description string
	New         Factory
}

var kinds = map[Kind]Descriptor{
	KindBuyLowSellHigh: {
		Kind:        KindBuyLowSellHigh,
		Description: "Buys when the best ask falls to the buy level and sells when the best bid reaches the sell level.",
		New:         newBuyLowSellHigh,
	},
}

// Lookup returns the descriptor of kind.
func Lookup(kind Kind) (Descriptor, error) {
	d, ok := kinds[kind]
	if !ok {
		return Descriptor{}, fmt.Errorf("strategy kind %q: %w", kind, domain.ErrUnknownKind)
	}
	return d, nil
}

// Kinds returns every known kind, sorted.
func Kinds() []Descriptor {
	out := make([]Descriptor, 0, len(kinds))
	for _, d := range kinds {
		out = append(out, d)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Kind < out[j].Kind })
	return out
}

// Build constructs the strategy described by cfg.
func Build(cfg TickerConfig, deps Deps) (Strategy, error) {
	d, err := Lookup(cfg.Kind)
	if err != nil {
		return nil, err
	}
	return d.New(cfg, deps)
}
