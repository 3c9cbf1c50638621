package engine

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tidemark-systems/matchbook/internal/common"
)

func newTestDepthEngine(t *testing.T) *DepthEngine {
	t.Helper()
	d, err := NewDepthEngine(New("TEST"), 5)
	require.NoError(t, err)
	return d
}

func TestDepthEngine_RestingOrderAddsDepth(t *testing.T) {
	d := newTestDepthEngine(t)
	d.Add(sellLimit(101, 10), common.NoConditions)
	d.PerformCallbacks()

	best, ok := d.Depth().BestAskLevel()
	require.True(t, ok)
	assert.Equal(t, common.Quantity(10), best.OpenQty)
	assert.Equal(t, 1, best.OrderCount)
}

func TestDepthEngine_AcceptTimeFullFillNeverAddsDepth(t *testing.T) {
	d := newTestDepthEngine(t)
	d.Add(sellLimit(100, 10), common.NoConditions)
	d.PerformCallbacks()

	// Fully crosses the resting ask the instant it's accepted: it must
	// never show up as bid depth, not even transiently.
	d.Add(buyLimit(100, 10), common.NoConditions)
	d.PerformCallbacks()

	assert.Empty(t, d.Depth().Bids())
	assert.Empty(t, d.Depth().Asks())
}

func TestDepthEngine_FullFillClosesRestingLevel(t *testing.T) {
	d := newTestDepthEngine(t)
	d.Add(sellLimit(100, 10), common.NoConditions)
	d.PerformCallbacks()
	d.Add(buyLimit(100, 10), common.NoConditions)
	d.PerformCallbacks()

	// The resting ask's level must be fully closed (order count back
	// to zero), not just left at zero open quantity.
	assert.Empty(t, d.Depth().Asks())
}

func TestDepthEngine_PartialAcceptFillLeavesResidualDepth(t *testing.T) {
	d := newTestDepthEngine(t)
	d.Add(sellLimit(100, 10), common.NoConditions)
	d.PerformCallbacks()
	d.Add(buyLimit(100, 4), common.NoConditions)
	d.PerformCallbacks()

	best, ok := d.Depth().BestAskLevel()
	require.True(t, ok)
	assert.Equal(t, common.Quantity(6), best.OpenQty)
	assert.Equal(t, 1, best.OrderCount)
}
