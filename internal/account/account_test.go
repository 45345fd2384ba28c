package account

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAccountBalances(t *testing.T) {
	seed := map[string]decimal.Decimal{"BTC": decimal.NewFromInt(1000)}
	a := New("main", "bittrex", seed)
	seed["BTC"] = decimal.Zero

	assert.True(t, a.GetBalance("BTC").Equal(decimal.NewFromInt(1000)))
	assert.True(t, a.GetBalance("ETH").IsZero())

	a.SetBalance("ETH", decimal.NewFromInt(3))
	assert.Len(t, a.Balances(), 2)

	b := NewBook()
	b.Add(a)
	got, ok := b.Get("main")
	require.True(t, ok)
	assert.Equal(t, "bittrex", got.Exchange())
	_, ok = b.Get("other")
	assert.False(t, ok)
}
