package strategy

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alanyoungcy/tickerbot/internal/domain"
)

func addTrader(t *testing.T, m *Manager, f *fixture, name, allowed string) *TickerTrader {
	t.Helper()
	cfg := f.config(name)
	cfg.MaxAllowedDeposit = d(allowed)
	s := NewBuyLowSellHigh(cfg, f.deps())
	require.NoError(t, m.Add(s))
	return s.TickerTrader
}

func TestAllocationByPriority(t *testing.T) {
	f := newFixture("0", "1000")
	m := NewManager(testLogger())
	a := addTrader(t, m, f, "a", "300")
	b := addTrader(t, m, f, "b", "200")
	c := addTrader(t, m, f, "c", "100")

	assert.True(t, a.MaxActualDeposit().Equal(d("1000")))
	assert.True(t, b.MaxActualDeposit().Equal(d("700")))
	assert.True(t, c.MaxActualDeposit().Equal(d("500")))

	// upstream change invalidates downstream caches
	a.SetMaxAllowedDeposit(d("400"))
	assert.True(t, c.MaxActualDeposit().Equal(d("400")))
	assert.True(t, b.MaxActualDeposit().Equal(d("600")))

	// reordering changes priority
	require.NoError(t, m.Move("c", 0))
	assert.True(t, c.MaxActualDeposit().Equal(d("1000")))
	assert.True(t, a.MaxActualDeposit().Equal(d("900")))

	require.NoError(t, m.Remove("c"))
	assert.True(t, a.MaxActualDeposit().Equal(d("1000")))
}

func TestAllocationIsCached(t *testing.T) {
	f := newFixture("0", "1000")
	m := NewManager(testLogger())
	a := addTrader(t, m, f, "a", "300")
	assert.True(t, a.MaxActualDeposit().Equal(d("1000")))

	f.account.SetBalance("BTC", d("10"))
	assert.True(t, a.MaxActualDeposit().Equal(d("1000")), "balance changes do not invalidate")

	a.InvalidateDeposit()
	assert.True(t, a.MaxActualDeposit().Equal(d("10")))
}

func TestAllocationFallsBackWithoutManager(t *testing.T) {
	f := newFixture("0", "1000")
	cfg := f.config("a")
	cfg.MaxAllowedDeposit = d("250")
	tr := NewTickerTrader(cfg, f.deps())
	assert.True(t, tr.MaxActualDeposit().Equal(d("250")))

	cfg.Account = ""
	s := NewBuyLowSellHigh(cfg, f.deps())
	m := NewManager(testLogger())
	require.NoError(t, m.Add(s))
	assert.True(t, s.MaxActualDeposit().Equal(d("250")))
}

func TestManagerRejectsDuplicates(t *testing.T) {
	f := newFixture("0", "0")
	m := NewManager(testLogger())
	addTrader(t, m, f, "a", "0")
	err := m.Add(NewBuyLowSellHigh(f.config("a"), f.deps()))
	require.ErrorIs(t, err, domain.ErrAlreadyExists)
	require.ErrorIs(t, m.Remove("zzz"), domain.ErrNotFound)
	require.ErrorIs(t, m.Move("zzz", 0), domain.ErrNotFound)
}

type countingStrategy struct {
	*TickerTrader
	steps atomic.Int32
	panic bool
}

func (s *countingStrategy) Step(context.Context) error {
	s.steps.Add(1)
	if s.panic {
		panic("boom")
	}
	return nil
}

func TestManagerRunStepsAndStops(t *testing.T) {
	f := newFixture("0", "1000")
	m := NewManager(testLogger())

	good := &countingStrategy{TickerTrader: NewTickerTrader(f.config("good"), f.deps())}
	panicky := &countingStrategy{TickerTrader: NewTickerTrader(f.config("panicky"), f.deps()), panic: true}
	badCfg := f.config("bad")
	badCfg.Ticker = ""
	bad := &countingStrategy{TickerTrader: NewTickerTrader(badCfg, f.deps())}
	offCfg := f.config("off")
	offCfg.Enabled = false
	off := &countingStrategy{TickerTrader: NewTickerTrader(offCfg, f.deps())}

	for _, s := range []Strategy{good, panicky, bad, off} {
		require.NoError(t, m.Add(s))
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- m.Run(ctx) }()

	require.Eventually(t, func() bool {
		return good.steps.Load() >= 3 && panicky.steps.Load() >= 3
	}, 2*time.Second, 5*time.Millisecond)
	assert.True(t, good.Running())
	assert.Zero(t, bad.steps.Load())
	assert.Zero(t, off.steps.Load())

	m.StopStrategy("good")
	require.Eventually(t, func() bool { return !good.Running() }, time.Second, 5*time.Millisecond)
	assert.True(t, panicky.Running())

	cancel()
	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(2 * time.Second):
		t.Fatal("manager did not stop")
	}
	assert.False(t, panicky.Running())

	statuses := m.Statuses()
	require.Len(t, statuses, 4)
	assert.Equal(t, "good", statuses[0].Name)
	assert.True(t, statuses[0].MaxActualDeposit.Equal(decimal.NewFromInt(1000)))
}

type heldLocks struct{}

func (heldLocks) Acquire(context.Context, string, time.Duration) (func(), error) {
	return nil, domain.ErrLockHeld
}

func TestManagerSkipsStrategyLockedElsewhere(t *testing.T) {
	f := newFixture("0", "0")
	m := NewManager(testLogger(), WithLocks(heldLocks{}, time.Minute))
	s := &countingStrategy{TickerTrader: NewTickerTrader(f.config("s"), f.deps())}
	require.NoError(t, m.Add(s))

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()
	_ = m.Run(ctx)
	assert.Zero(t, s.steps.Load())
	assert.False(t, s.Running())
}
