// Package strategy runs ticker strategies against shared order books and
// accounts under a priority-ordered capital budget.
package strategy

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"github.com/alanyoungcy/tickerbot/internal/domain"
	"github.com/alanyoungcy/tickerbot/internal/market"
)

// Strategy is the capability set every strategy kind implements.
type Strategy interface {
	Name() string
	Kind() Kind
	Enabled() bool
	// Interval is the pause between two Step calls.
	Interval() time.Duration
	// MaxAllowedDeposit is the budget this strategy reserves ahead of every
	// lower-priority strategy sharing its account.
	MaxAllowedDeposit() decimal.Decimal

	// Validate reports configuration problems without mutating anything.
	Validate() []domain.ValidationError
	Init(ctx context.Context) error
	Start(ctx context.Context) error
	Stop(ctx context.Context) error
	// Step evaluates market state once and may trade.
	Step(ctx context.Context) error

	Status() domain.StrategyStatus
}

// OrderExecutor places (or, for demo requests, synthesizes) orders.
// A nil result with a nil error never happens.
type OrderExecutor interface {
	Execute(ctx context.Context, t *market.Ticker, req domain.OrderRequest) (*domain.TradingResult, error)
}

// Journal records strategy log entries.
type Journal interface {
	Record(ctx context.Context, rec domain.LogRecord)
}

// Allocator answers capital-priority questions for a strategy.
type Allocator interface {
	// ReservedBefore returns the sum of MaxAllowedDeposit of every strategy
	// ordered before name, and the generation it was computed at. ok is
	// false when name is not managed.
	ReservedBefore(name string) (reserved decimal.Decimal, gen uint64, ok bool)
	// Generation changes whenever ReservedBefore may return a different
	// value for some strategy.
	Generation() uint64
	// Invalidate forces a new generation.
	Invalidate()
}

// allocated is implemented by strategies that take part in allocation.
type allocated interface {
	SetAllocator(Allocator)
}
