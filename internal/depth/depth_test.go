package depth

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tidemark-systems/matchbook/internal/common"
)

func TestNew_RejectsZeroLevels(t *testing.T) {
	_, err := New(0)
	assert.Error(t, err)
}

func TestAddOrder_AggregatesSamePrice(t *testing.T) {
	tr, err := New(5)
	require.NoError(t, err)

	tr.AddOrder(true, 100, 10)
	tr.AddOrder(true, 100, 5)

	best, ok := tr.BestBidLevel()
	require.True(t, ok)
	assert.Equal(t, common.Quantity(15), best.OpenQty)
	assert.Equal(t, 2, best.OrderCount)
}

func TestAddOrder_OverflowsBeyondWindowIntoExcess(t *testing.T) {
	tr, err := New(2)
	require.NoError(t, err)

	tr.AddOrder(true, 100, 1)
	tr.AddOrder(true, 99, 1)
	tr.AddOrder(true, 98, 1) // beyond the 2-level window

	bids := tr.Bids()
	require.Len(t, bids, 2)
	assert.Equal(t, common.Price(100), bids[0].Price)
	assert.Equal(t, common.Price(99), bids[1].Price)
}

func TestCloseOrder_PromotesFromExcess(t *testing.T) {
	tr, err := New(2)
	require.NoError(t, err)

	tr.AddOrder(true, 100, 1)
	tr.AddOrder(true, 99, 1)
	tr.AddOrder(true, 98, 1)

	erased := tr.CloseOrder(true, 99, 1)
	assert.True(t, erased)

	bids := tr.Bids()
	require.Len(t, bids, 2)
	assert.Equal(t, common.Price(100), bids[0].Price)
	assert.Equal(t, common.Price(98), bids[1].Price)
}

func TestChanged_TracksPublication(t *testing.T) {
	tr, err := New(5)
	require.NoError(t, err)

	assert.False(t, tr.Changed())
	tr.AddOrder(true, 100, 1)
	assert.True(t, tr.Changed())
	tr.Published()
	assert.False(t, tr.Changed())
}

func TestReplaceOrder_MovesQuantityBetweenPrices(t *testing.T) {
	tr, err := New(5)
	require.NoError(t, err)

	tr.AddOrder(false, 100, 10)
	erased := tr.ReplaceOrder(false, 100, 101, 10)
	assert.True(t, erased)

	best, ok := tr.BestAskLevel()
	require.True(t, ok)
	assert.Equal(t, common.Price(101), best.Price)
	assert.Equal(t, common.Quantity(10), best.OpenQty)
}

func TestFillOrder_FullFillClosesLevel(t *testing.T) {
	tr, err := New(5)
	require.NoError(t, err)

	tr.AddOrder(true, 100, 10)
	erased := tr.FillOrder(true, 100, 10, true)
	assert.True(t, erased)
	assert.Empty(t, tr.Bids())
}

func TestFillOrder_PartialFillLeavesOrderCount(t *testing.T) {
	tr, err := New(5)
	require.NoError(t, err)

	tr.AddOrder(true, 100, 10)
	tr.AddOrder(true, 100, 5) // two orders resting at the same level
	erased := tr.FillOrder(true, 100, 10, true)
	assert.False(t, erased)

	best, ok := tr.BestBidLevel()
	require.True(t, ok)
	assert.Equal(t, common.Quantity(5), best.OpenQty)
	assert.Equal(t, 1, best.OrderCount)
}

func TestIgnoreFillQty_AbsorbsFillWithoutTouchingLevel(t *testing.T) {
	tr, err := New(5)
	require.NoError(t, err)

	// An order that fully filled at accept is never added to depth;
	// its Fill event must be absorbed, not applied to some level.
	tr.IgnoreFillQty(true, 10)
	erased := tr.FillOrder(true, 100, 10, true)
	assert.False(t, erased)
	assert.Empty(t, tr.Bids())
}
