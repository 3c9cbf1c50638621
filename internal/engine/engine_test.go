package engine

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tidemark-systems/matchbook/internal/common"
)

type stubOrder struct {
	buy       bool
	price     common.Price
	stop      common.Price
	qty       common.Quantity
	allOrNone bool
	ioc       bool
}

func (o *stubOrder) IsBuy() bool               { return o.buy }
func (o *stubOrder) Price() common.Price       { return o.price }
func (o *stubOrder) StopPrice() common.Price   { return o.stop }
func (o *stubOrder) OrderQty() common.Quantity { return o.qty }
func (o *stubOrder) AllOrNone() bool           { return o.allOrNone }
func (o *stubOrder) ImmediateOrCancel() bool   { return o.ioc }

func buyLimit(price, qty uint64) *stubOrder {
	return &stubOrder{buy: true, price: common.Price(price), qty: common.Quantity(qty)}
}

func sellLimit(price, qty uint64) *stubOrder {
	return &stubOrder{buy: false, price: common.Price(price), qty: common.Quantity(qty)}
}

type recordingListener struct {
	accepted []common.Order
	rejected []common.Order
	filled   []Event
	canceled []common.Order
}

func (l *recordingListener) OnAccept(order common.Order) { l.accepted = append(l.accepted, order) }
func (l *recordingListener) OnReject(order common.Order, reason string) {
	l.rejected = append(l.rejected, order)
}
func (l *recordingListener) OnFill(order, matched common.Order, qty common.Quantity, price common.Price, flags FillFlags) {
	l.filled = append(l.filled, Event{Order: order, Matched: matched, Quantity: qty, Price: price, Flags: flags})
}
func (l *recordingListener) OnCancel(order common.Order, remainingQty common.Quantity) {
	l.canceled = append(l.canceled, order)
}
func (l *recordingListener) OnCancelReject(order common.Order, reason string)  {}
func (l *recordingListener) OnReplace(common.Order, common.Quantity, int64, common.Price) {}
func (l *recordingListener) OnReplaceReject(common.Order, string)              {}

func newTestEngine() (*Engine, *recordingListener) {
	e := New("TEST")
	l := &recordingListener{}
	e.SetOrderListener(l)
	return e, l
}

func TestAdd_RestsWhenNoCross(t *testing.T) {
	e, _ := newTestEngine()
	accepted := e.Add(sellLimit(101, 10), common.NoConditions)
	e.PerformCallbacks()
	require.True(t, accepted)

	asks := e.Asks()
	require.Len(t, asks, 1)
	assert.Equal(t, common.Price(101), asks[0].Price)
	assert.Equal(t, common.Quantity(10), asks[0].OpenQty)
}

func TestAdd_FullyFillsAgainstRestingOrder(t *testing.T) {
	e, l := newTestEngine()
	e.Add(sellLimit(100, 10), common.NoConditions)
	e.Add(buyLimit(100, 10), common.NoConditions)
	e.PerformCallbacks()

	assert.Empty(t, e.Asks())
	assert.Empty(t, e.Bids())
	assert.Len(t, l.filled, 2) // one event per side
}

func TestAdd_PartialFillRestsRemainder(t *testing.T) {
	e, _ := newTestEngine()
	e.Add(sellLimit(100, 10), common.NoConditions)
	e.Add(buyLimit(100, 4), common.NoConditions)
	e.PerformCallbacks()

	asks := e.Asks()
	require.Len(t, asks, 1)
	assert.Equal(t, common.Quantity(6), asks[0].OpenQty)
	assert.Empty(t, e.Bids())
}

func TestAdd_PriceTimePriority(t *testing.T) {
	e, l := newTestEngine()
	first := sellLimit(100, 5)
	second := sellLimit(100, 5)
	e.Add(first, common.NoConditions)
	e.Add(second, common.NoConditions)
	e.Add(buyLimit(100, 5), common.NoConditions)
	e.PerformCallbacks()

	require.NotEmpty(t, l.filled)
	assert.Same(t, first, l.filled[0].Matched)
	asks := e.Asks()
	require.Len(t, asks, 1)
	assert.Equal(t, common.Quantity(5), asks[0].OpenQty)
}

func TestAdd_ImmediateOrCancelCancelsResidual(t *testing.T) {
	e, l := newTestEngine()
	e.Add(sellLimit(100, 3), common.NoConditions)
	ioc := &stubOrder{buy: true, price: 100, qty: 10, ioc: true}
	e.Add(ioc, common.ImmediateOrCancel)
	e.PerformCallbacks()

	assert.Empty(t, e.Bids())
	require.Len(t, l.canceled, 1)
	assert.Same(t, ioc, l.canceled[0])
}

func TestAdd_AllOrNoneRestsUnfilledWhenInsufficientLiquidity(t *testing.T) {
	e, _ := newTestEngine()
	e.Add(sellLimit(100, 3), common.NoConditions)
	aon := &stubOrder{buy: true, price: 100, qty: 10, allOrNone: true}
	e.Add(aon, common.AllOrNone)
	e.PerformCallbacks()

	// Not enough resting quantity to satisfy the AON order: it rests,
	// untouched, and the resting sell is left alone too.
	assert.Len(t, e.Bids(), 1)
	assert.Len(t, e.Asks(), 1)
}

func TestAdd_AllOrNoneFillsOnceAccumulatedAcrossLevelsSatisfies(t *testing.T) {
	e, _ := newTestEngine()
	e.Add(sellLimit(100, 4), common.NoConditions)
	e.Add(sellLimit(101, 6), common.NoConditions)
	aon := &stubOrder{buy: true, price: 101, qty: 10, allOrNone: true}
	e.Add(aon, common.AllOrNone)
	e.PerformCallbacks()

	assert.Empty(t, e.Asks())
	assert.Empty(t, e.Bids())
}

func TestAdd_RestingAllOrNoneIsTradedThroughWhenTooBig(t *testing.T) {
	e, _ := newTestEngine()
	restingAON := &stubOrder{buy: false, price: 100, qty: 10, allOrNone: true}
	e.Add(restingAON, common.AllOrNone)
	e.Add(buyLimit(100, 4), common.NoConditions)
	e.PerformCallbacks()

	asks := e.Asks()
	require.Len(t, asks, 1)
	assert.Equal(t, common.Quantity(10), asks[0].OpenQty) // untouched

	bids := e.Bids()
	require.Len(t, bids, 1)
	assert.Equal(t, common.Quantity(4), bids[0].OpenQty) // couldn't cross, so it rests
}

func TestCancel_RemovesRestingOrder(t *testing.T) {
	e, l := newTestEngine()
	order := sellLimit(100, 10)
	e.Add(order, common.NoConditions)
	e.Cancel(order)
	e.PerformCallbacks()

	assert.Empty(t, e.Asks())
	require.Len(t, l.canceled, 1)
}

func TestCancel_UnknownOrderIsRejected(t *testing.T) {
	e, _ := newTestEngine()
	order := sellLimit(100, 10)
	e.Cancel(order) // never added
	e.PerformCallbacks()
	// No panic, no crash: cancel-reject event fired internally.
}

func TestReplace_SizeReductionWithoutRematch(t *testing.T) {
	e, _ := newTestEngine()
	order := sellLimit(100, 10)
	e.Add(order, common.NoConditions)
	e.Replace(order, -4, common.PriceUnchanged)
	e.PerformCallbacks()

	asks := e.Asks()
	require.Len(t, asks, 1)
	assert.Equal(t, common.Quantity(6), asks[0].OpenQty)
}

func TestReplace_PriceChangeRematchesAgainstNewCross(t *testing.T) {
	e, _ := newTestEngine()
	e.Add(buyLimit(99, 10), common.NoConditions)
	order := sellLimit(100, 10)
	e.Add(order, common.NoConditions)

	e.Replace(order, common.SizeUnchanged, 99)
	e.PerformCallbacks()

	assert.Empty(t, e.Asks())
	assert.Empty(t, e.Bids())
}

func TestAdd_TwoMarketOrdersWithNoEstablishedMarketPriceDoNotCross(t *testing.T) {
	e, l := newTestEngine()
	resting := &stubOrder{buy: false, price: common.MarketOrderPrice, qty: 10}
	e.Add(resting, common.NoConditions)
	inbound := &stubOrder{buy: true, price: common.MarketOrderPrice, qty: 10}
	e.Add(inbound, common.NoConditions)
	e.PerformCallbacks()

	assert.Empty(t, l.filled)
	assert.Equal(t, common.MarketOrderPrice, e.MarketPrice())
	require.Len(t, e.Asks(), 1)
	require.Len(t, e.Bids(), 1)
}

func TestAdd_MarketInboundCrossesRestingLimitWhenRestingMarketCantPrice(t *testing.T) {
	e, l := newTestEngine()
	restingMarket := &stubOrder{buy: false, price: common.MarketOrderPrice, qty: 10}
	e.Add(restingMarket, common.NoConditions)
	e.Add(sellLimit(105, 10), common.NoConditions)
	inbound := &stubOrder{buy: true, price: common.MarketOrderPrice, qty: 10}
	e.Add(inbound, common.NoConditions)
	e.PerformCallbacks()

	// The resting market ask can't price the cross, so the inbound
	// market buy skips it and crosses the resting limit ask instead.
	require.NotEmpty(t, l.filled)
	assert.Equal(t, common.Price(105), e.MarketPrice())
	require.Len(t, e.Asks(), 1)
	assert.Equal(t, common.Price(common.MarketOrderPrice), e.Asks()[0].Price)
}

func TestStopOrder_RestsUntriggered(t *testing.T) {
	e, l := newTestEngine()
	stop := &stubOrder{buy: true, price: 100, stop: 105, qty: 10}
	e.Add(stop, common.NoConditions)
	e.PerformCallbacks()

	assert.Empty(t, e.Bids())
	require.Len(t, l.accepted, 1)
	assert.Len(t, e.StopBids(), 1)
}

func TestStopOrder_TriggersOnMarketPriceCross(t *testing.T) {
	e, _ := newTestEngine()
	stop := &stubOrder{buy: true, price: 100, stop: 105, qty: 10}
	e.Add(stop, common.NoConditions)

	e.Add(sellLimit(106, 10), common.NoConditions)
	e.Add(buyLimit(106, 10), common.NoConditions)
	e.PerformCallbacks()

	assert.Empty(t, e.StopBids())
}
