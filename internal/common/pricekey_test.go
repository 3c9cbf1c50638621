package common

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPriceKeyLess_BidsReverseOrder(t *testing.T) {
	high := NewPriceKey(true, 101)
	low := NewPriceKey(true, 100)
	assert.True(t, high.Less(low), "higher bid should be more liquid (less)")
	assert.False(t, low.Less(high))
}

func TestPriceKeyLess_AsksNaturalOrder(t *testing.T) {
	low := NewPriceKey(false, 100)
	high := NewPriceKey(false, 101)
	assert.True(t, low.Less(high), "lower ask should be more liquid (less)")
	assert.False(t, high.Less(low))
}

func TestPriceKeyLess_MarketAlwaysFirst(t *testing.T) {
	market := NewPriceKey(true, MarketOrderPrice)
	limit := NewPriceKey(true, 1_000_000)
	assert.True(t, market.Less(limit))
	assert.False(t, limit.Less(market))
}

func TestPriceKeyMatches_MarketMatchesAnything(t *testing.T) {
	buyMarket := NewPriceKey(true, MarketOrderPrice)
	assert.True(t, buyMarket.Matches(99999))
	assert.True(t, buyMarket.Matches(MarketOrderPrice))

	sellLimit := NewPriceKey(false, 100)
	assert.True(t, sellLimit.Matches(MarketOrderPrice))
}

func TestPriceKeyMatches_CrossPredicate(t *testing.T) {
	buyAt100 := NewPriceKey(true, 100)
	assert.True(t, buyAt100.Matches(100))
	assert.True(t, buyAt100.Matches(99))
	assert.False(t, buyAt100.Matches(101))

	sellAt100 := NewPriceKey(false, 100)
	assert.True(t, sellAt100.Matches(100))
	assert.True(t, sellAt100.Matches(101))
	assert.False(t, sellAt100.Matches(99))
}
