package strategy

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime/debug"
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"

	"github.com/alanyoungcy/tickerbot/internal/domain"
)

// Manager owns the ordered strategy list. Order is priority: a strategy's
// deposit ceiling is reduced by the MaxAllowedDeposit of every strategy
// before it.
type Manager struct {
	mu         sync.RWMutex
	strategies []Strategy // replaced, never mutated in place
	gen        atomic.Uint64

	locks   domain.LockManager
	lockTTL time.Duration
	logger  *slog.Logger

	runMu   sync.Mutex
	cancels map[string]context.CancelFunc
}

var _ Allocator = (*Manager)(nil)

// ManagerOption configures a Manager.
type ManagerOption func(*Manager)

// WithLocks makes every strategy hold a distributed lock named after it
// while running, so two processes never trade the same strategy.
func WithLocks(locks domain.LockManager, ttl time.Duration) ManagerOption {
	return func(m *Manager) {
		m.locks = locks
		m.lockTTL = ttl
	}
}

// NewManager creates an empty manager.
func NewManager(logger *slog.Logger, opts ...ManagerOption) *Manager {
	m := &Manager{
		logger:  logger.With(slog.String("component", "strategy_manager")),
		cancels: make(map[string]context.CancelFunc),
		lockTTL: 24 * time.Hour,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Add appends s at the lowest priority.
func (m *Manager) Add(s Strategy) error {
	m.mu.Lock()
	if slices.ContainsFunc(m.strategies, func(x Strategy) bool { return x.Name() == s.Name() }) {
		m.mu.Unlock()
		return fmt.Errorf("strategy %q: %w", s.Name(), domain.ErrAlreadyExists)
	}
	next := make([]Strategy, len(m.strategies), len(m.strategies)+1)
	copy(next, m.strategies)
	m.strategies = append(next, s)
	m.mu.Unlock()

	if a, ok := s.(allocated); ok {
		a.SetAllocator(m)
	}
	m.Invalidate()
	return nil
}

// Remove drops the named strategy, stopping it first if it runs.
func (m *Manager) Remove(name string) error {
	m.mu.Lock()
	i := m.index(name)
	if i < 0 {
		m.mu.Unlock()
		return fmt.Errorf("strategy %q: %w", name, domain.ErrNotFound)
	}
	m.strategies = slices.Delete(slices.Clone(m.strategies), i, i+1)
	m.mu.Unlock()

	m.StopStrategy(name)
	m.Invalidate()
	return nil
}

// Move places the named strategy at position to (clamped).
func (m *Manager) Move(name string, to int) error {
	m.mu.Lock()
	i := m.index(name)
	if i < 0 {
		m.mu.Unlock()
		return fmt.Errorf("strategy %q: %w", name, domain.ErrNotFound)
	}
	next := slices.Clone(m.strategies)
	s := next[i]
	next = slices.Delete(next, i, i+1)
	to = max(0, min(to, len(next)))
	m.strategies = slices.Insert(next, to, s)
	m.mu.Unlock()

	m.Invalidate()
	return nil
}

// Strategies returns the ordered list.
func (m *Manager) Strategies() []Strategy {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.strategies
}

// Get returns the named strategy.
func (m *Manager) Get(name string) (Strategy, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if i := m.index(name); i >= 0 {
		return m.strategies[i], true
	}
	return nil, false
}

// ReservedBefore implements Allocator over a consistent view of the list.
func (m *Manager) ReservedBefore(name string) (decimal.Decimal, uint64, bool) {
	m.mu.RLock()
	list := m.strategies
	gen := m.gen.Load()
	m.mu.RUnlock()

	reserved := decimal.Zero
	for _, s := range list {
		if s.Name() == name {
			return reserved, gen, true
		}
		reserved = reserved.Add(s.MaxAllowedDeposit())
	}
	return decimal.Zero, gen, false
}

// Generation implements Allocator.
func (m *Manager) Generation() uint64 {
	return m.gen.Load()
}

// Invalidate implements Allocator.
func (m *Manager) Invalidate() {
	m.mu.Lock()
	m.gen.Add(1)
	m.mu.Unlock()
}

// Statuses returns the status of every strategy in priority order.
func (m *Manager) Statuses() []domain.StrategyStatus {
	list := m.Strategies()
	out := make([]domain.StrategyStatus, 0, len(list))
	for _, s := range list {
		out = append(out, s.Status())
	}
	return out
}

// Run starts every enabled strategy and blocks until ctx is cancelled and
// all of them have stopped. A strategy that fails validation or init is
// logged and skipped; it never takes the others down.
func (m *Manager) Run(ctx context.Context) error {
	g, gctx := errgroup.WithContext(ctx)
	for _, s := range m.Strategies() {
		if !s.Enabled() {
			m.logger.Info("strategy disabled", slog.String("strategy", s.Name()))
			continue
		}
		g.Go(func() error {
			m.runOne(gctx, s)
			return nil
		})
	}
	_ = g.Wait()
	return ctx.Err()
}

// StopStrategy stops the named strategy if it is running.
func (m *Manager) StopStrategy(name string) {
	m.runMu.Lock()
	cancel, ok := m.cancels[name]
	m.runMu.Unlock()
	if ok {
		cancel()
	}
}

func (m *Manager) runOne(ctx context.Context, s Strategy) {
	logger := m.logger.With(slog.String("strategy", s.Name()))

	if errs := s.Validate(); len(errs) > 0 {
		for _, e := range errs {
			logger.Error("strategy invalid", slog.String("error", e.Error()))
		}
		return
	}
	if err := s.Init(ctx); err != nil {
		logger.Error("strategy init failed", slog.String("error", err.Error()))
		return
	}

	if m.locks != nil {
		unlock, err := m.locks.Acquire(ctx, "strategy:"+s.Name(), m.lockTTL)
		if err != nil {
			if errors.Is(err, domain.ErrLockHeld) {
				logger.Warn("strategy is running elsewhere, skipping")
			} else {
				logger.Error("strategy lock failed", slog.String("error", err.Error()))
			}
			return
		}
		defer unlock()
	}

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	m.runMu.Lock()
	m.cancels[s.Name()] = cancel
	m.runMu.Unlock()
	defer func() {
		m.runMu.Lock()
		delete(m.cancels, s.Name())
		m.runMu.Unlock()
	}()

	if err := s.Start(runCtx); err != nil {
		logger.Error("strategy start failed", slog.String("error", err.Error()))
		return
	}
	logger.Info("strategy started", slog.Duration("interval", s.Interval()))
	defer func() {
		stopCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := s.Stop(stopCtx); err != nil {
			logger.Error("strategy stop failed", slog.String("error", err.Error()))
		}
		logger.Info("strategy stopped")
	}()

	ticker := time.NewTicker(s.Interval())
	defer ticker.Stop()
	for {
		m.step(runCtx, s, logger)
		select {
		case <-runCtx.Done():
			return
		case <-ticker.C:
		}
	}
}

func (m *Manager) step(ctx context.Context, s Strategy, logger *slog.Logger) {
	defer func() {
		if r := recover(); r != nil {
			logger.Error("strategy step panicked",
				slog.Any("panic", r),
				slog.String("stack", string(debug.Stack())),
			)
		}
	}()
	if ctx.Err() != nil {
		return
	}
	if err := s.Step(ctx); err != nil {
		logger.Warn("strategy step failed", slog.String("error", err.Error()))
	}
}

func (m *Manager) index(name string) int {
	return slices.IndexFunc(m.strategies, func(s Strategy) bool { return s.Name() == name })
}
