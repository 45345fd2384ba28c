package strategy

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alanyoungcy/tickerbot/internal/domain"
)

func TestBuyLowSellHighCycle(t *testing.T) {
	f := newFixture("0", "100")
	cfg := f.config("blsh")
	cfg.BuyLevel = d("10")
	cfg.SellLevel = d("12")
	s, err := Build(cfg, f.deps())
	require.NoError(t, err)
	m := NewManager(testLogger())
	require.NoError(t, m.Add(s))
	require.Empty(t, s.Validate())

	ctx := context.Background()
	require.NoError(t, s.Init(ctx))
	require.NoError(t, s.Start(ctx))
	blsh := s.(*BuyLowSellHigh)

	// ask above the buy level: nothing happens
	f.setBook([]domain.Level{lv("9", "100")}, []domain.Level{lv("11", "100")})
	require.NoError(t, s.Step(ctx))
	assert.Equal(t, domain.StateWaitingForBuy, blsh.State())
	assert.Empty(t, f.exec.requests())

	// ask at the buy level: buy everything affordable
	f.setBook([]domain.Level{lv("9", "100")}, []domain.Level{lv("10", "100")})
	require.NoError(t, s.Step(ctx))
	assert.Equal(t, domain.StateWaitingForSell, blsh.State())
	assert.True(t, blsh.MaxActualSellDeposit().Equal(d("10")))

	// bid below the sell level: hold
	require.NoError(t, s.Step(ctx))
	assert.Equal(t, domain.StateWaitingForSell, blsh.State())

	// bid at the sell level: sell
	f.setBook([]domain.Level{lv("12", "100")}, []domain.Level{lv("13", "100")})
	require.NoError(t, s.Step(ctx))
	assert.Equal(t, domain.StateWaitingForBuy, blsh.State())
	assert.True(t, blsh.SoldTotal().Equal(d("10")))
	assert.True(t, blsh.MaxActualBuyDeposit().Equal(d("120")))

	reqs := f.exec.requests()
	require.Len(t, reqs, 2)
	assert.Equal(t, domain.OrderSideBuy, reqs[0].Side)
	assert.Equal(t, domain.OrderSideSell, reqs[1].Side)
}

func TestBuyLowSellHighValidateLevels(t *testing.T) {
	f := newFixture("0", "0")
	cfg := f.config("blsh")
	cfg.BuyLevel = d("12")
	cfg.SellLevel = d("10")
	s := NewBuyLowSellHigh(cfg, f.deps())
	errs := s.Validate()
	require.Len(t, errs, 1)
	assert.Equal(t, "levels", errs[0].Field)
}

func TestStepWhenStoppedIsNoop(t *testing.T) {
	f := newFixture("0", "100")
	s := NewBuyLowSellHigh(f.config("blsh"), f.deps())
	f.setBook(nil, []domain.Level{lv("1", "1000")})
	require.NoError(t, s.Step(context.Background()))
	assert.Empty(t, f.exec.requests())
}

func TestRegistryUnknownKind(t *testing.T) {
	_, err := Lookup("martingale")
	require.ErrorIs(t, err, domain.ErrUnknownKind)
	kinds := Kinds()
	require.Len(t, kinds, 1)
	assert.Equal(t, KindBuyLowSellHigh, kinds[0].Kind)
}
