// Package engine implements a single-symbol limit order book: price-time
// priority matching with all-or-none, immediate-or-cancel and stop
// orders, plus a tagged-event callback buffer for listeners.
//
// Grounded on original_source/src/book/order_book.h, generalized from
// its C++ template-per-order-type design to Go's common.Order
// interface, and on the teacher's own internal/engine/orderbook.go for
// the tidwall/btree book-side idiom.
package engine

import (
	"fmt"
	"io"

	"github.com/rs/zerolog"

	"github.com/tidemark-systems/matchbook/internal/common"
)

// BookLevel is a read-only snapshot of one resting price level, handed
// out by Bids/Asks/StopBids/StopAsks so callers never see the engine's
// internal priceLevel type.
type BookLevel struct {
	Price      common.Price
	OpenQty    common.Quantity
	OrderCount int
}

type pendingSubmission struct {
	order      common.Order
	conditions common.Conditions
}

// Engine is one symbol's order book. It is not safe for concurrent use
// by more than one goroutine at a time; callers that need to run many
// symbols concurrently should give each Engine its own goroutine (see
// internal/exchange).
type Engine struct {
	symbol string
	logger zerolog.Logger

	bids bookSide
	asks bookSide

	// Stop books are always ordered ascending by stop price, regardless
	// of side — checkStopOrders walks them in the direction each side's
	// trigger rule needs (see checkStopOrders).
	stopBids bookSide
	stopAsks bookSide

	marketPrice common.Price
	lastTransID uint64

	pending []pendingSubmission
	events  []Event

	orderListener OrderListener
	tradeListener TradeListener
	bookListener  BookListener
}

// New creates an empty engine for symbol.
func New(symbol string) *Engine {
	return &Engine{
		symbol:   symbol,
		logger:   zerolog.Nop(),
		bids:     newBookSide(),
		asks:     newBookSide(),
		stopBids: newBookSide(),
		stopAsks: newBookSide(),
	}
}

func (e *Engine) Symbol() string { return e.symbol }

func (e *Engine) SetOrderListener(l OrderListener) { e.orderListener = l }
func (e *Engine) SetTradeListener(l TradeListener) { e.tradeListener = l }
func (e *Engine) SetBookListener(l BookListener)   { e.bookListener = l }

// SetLogger wires the engine's diagnostic logging of fatal invariant
// violations (overfill, quantity underflow) into the caller's
// zerolog.Logger. Rejects are reported only as events, not logged. The
// zero value logs nothing.
func (e *Engine) SetLogger(logger zerolog.Logger) { e.logger = logger }

func (e *Engine) MarketPrice() common.Price { return e.marketPrice }

// SetMarketPrice seeds the engine's notion of the last traded price
// without a trade, e.g. to prime stop triggering at startup. It is a
// public entry point in its own right: it runs the same stop-check and
// cascade-drain as Add/Cancel/Replace.
func (e *Engine) SetMarketPrice(price common.Price) {
	transID := e.nextTransID()
	e.marketPrice = price
	e.checkStopOrders(transID)
	e.drainPending(transID)
	e.pushEvent(bookUpdateEvent(transID))
}

func (e *Engine) nextTransID() uint64 {
	e.lastTransID++
	return e.lastTransID
}

func (e *Engine) pushEvent(ev Event) {
	e.events = append(e.events, ev)
}

// PerformCallbacks drains the buffered events in order, firing the
// registered listeners for each, then clears the buffer. Grounded on
// original_source/src/book/order_book.h's perform_callbacks.
func (e *Engine) PerformCallbacks() {
	for _, ev := range e.events {
		e.dispatch(ev)
	}
	e.events = e.events[:0]
}

// MoveCallbacks steals the buffered events into dst without firing
// listeners, for callers that want to handle or publish the events
// themselves (e.g. on another goroutine). The engine's own buffer is
// left empty.
func (e *Engine) MoveCallbacks(dst *[]Event) {
	*dst = append(*dst, e.events...)
	e.events = e.events[:0]
}

// Events exposes the buffered, undrained events for inspection without
// clearing or dispatching them. Used by DepthEngine to apply depth
// mutations before firing listener callbacks.
func (e *Engine) Events() []Event { return e.events }

func (e *Engine) dispatch(ev Event) {
	switch ev.Kind {
	case EventAccept:
		if e.orderListener != nil {
			e.orderListener.OnAccept(ev.Order)
		}
	case EventReject:
		if e.orderListener != nil {
			e.orderListener.OnReject(ev.Order, ev.Reason)
		}
	case EventFill:
		if e.orderListener != nil {
			e.orderListener.OnFill(ev.Order, ev.Matched, ev.Quantity, ev.Price, ev.Flags)
		}
	case EventCancel:
		if e.orderListener != nil {
			e.orderListener.OnCancel(ev.Order, ev.Quantity)
		}
	case EventCancelReject:
		if e.orderListener != nil {
			e.orderListener.OnCancelReject(ev.Order, ev.Reason)
		}
	case EventReplace:
		if e.orderListener != nil {
			e.orderListener.OnReplace(ev.Order, ev.Quantity, ev.Delta, ev.Price)
		}
	case EventReplaceReject:
		if e.orderListener != nil {
			e.orderListener.OnReplaceReject(ev.Order, ev.Reason)
		}
	case EventBookUpdate:
		if e.bookListener != nil {
			e.bookListener.OnBookUpdate(e.symbol)
		}
	}
}

// Add submits a new order. It returns false if the order was rejected
// outright (e.g. zero quantity); a rejection still produces a Reject
// event. Any resulting fills, the triggering of resting stop orders,
// and their own cascaded submissions all share one transaction id and
// end in a single BookUpdate event.
func (e *Engine) Add(order common.Order, conditions common.Conditions) bool {
	transID := e.nextTransID()
	accepted := e.addInternal(order, conditions, transID)
	e.drainPending(transID)
	e.pushEvent(bookUpdateEvent(transID))
	return accepted
}

func (e *Engine) addInternal(order common.Order, conditions common.Conditions, transID uint64) bool {
	if reason, ok := e.isValid(order); !ok {
		e.pushEvent(rejectEvent(transID, order, reason))
		return false
	}

	if order.StopPrice() != common.MarketOrderPrice && !e.stopTriggered(order) {
		e.addStopOrder(order, conditions)
		e.pushEvent(acceptEvent(transID, order, 0))
		return true
	}

	tracker := newOrderTracker(order, conditions)
	acceptIdx := len(e.events)
	e.pushEvent(acceptEvent(transID, order, 0))
	e.matchOrder(tracker, transID)
	// Back-fill the accept callback with how much matched in this same
	// transaction, so a listener (and DepthEngine) can tell an order
	// that never truly entered the book from one that rests.
	e.events[acceptIdx].AcceptedFill = tracker.filledQty()
	if !tracker.filled() {
		if tracker.immediateOrCancel() {
			e.pushEvent(cancelEvent(transID, order, tracker.openQty))
		} else {
			e.restOrder(tracker)
		}
	}
	return true
}

func (e *Engine) isValid(order common.Order) (string, bool) {
	if order.OrderQty() == 0 {
		return "zero quantity", false
	}
	return "", true
}

// stopTriggered reports whether a stop order would fire immediately
// against the current market price, e.g. a buy stop placed at or below
// the current market.
func (e *Engine) stopTriggered(order common.Order) bool {
	if order.IsBuy() {
		return e.marketPrice != common.MarketOrderPrice && e.marketPrice >= order.StopPrice()
	}
	return e.marketPrice != common.MarketOrderPrice && e.marketPrice <= order.StopPrice()
}

func (e *Engine) addStopOrder(order common.Order, conditions common.Conditions) {
	tracker := newOrderTracker(order, conditions)
	key := common.NewPriceKey(false, order.StopPrice())
	if order.IsBuy() {
		e.stopBids.insert(key, tracker)
	} else {
		e.stopAsks.insert(key, tracker)
	}
}

// checkStopOrders moves every stop order whose trigger condition now
// holds into the pending submission queue. Both stop books are kept
// ascending by stop price: buy stops trigger while stopPrice <=
// marketPrice (break on the first that doesn't, since none after it
// will either); sell stops trigger while stopPrice >= marketPrice, a
// condition that once true stays true for the rest of the ascending
// scan.
func (e *Engine) checkStopOrders(transID uint64) {
	_ = transID

	var triggeredBids []*priceLevel
	e.stopBids.ascend(func(lvl *priceLevel) bool {
		if lvl.key.Price > e.marketPrice {
			return false
		}
		triggeredBids = append(triggeredBids, lvl)
		return true
	})
	for _, lvl := range triggeredBids {
		for _, t := range lvl.orders {
			e.pending = append(e.pending, pendingSubmission{order: t.order, conditions: t.conditions})
		}
		e.stopBids.levels.Delete(lvl)
	}

	var triggeredAsks []*priceLevel
	e.stopAsks.ascend(func(lvl *priceLevel) bool {
		if lvl.key.Price < e.marketPrice {
			return true
		}
		triggeredAsks = append(triggeredAsks, lvl)
		return true
	})
	for _, lvl := range triggeredAsks {
		for _, t := range lvl.orders {
			e.pending = append(e.pending, pendingSubmission{order: t.order, conditions: t.conditions})
		}
		e.stopAsks.levels.Delete(lvl)
	}
}

// drainPending resubmits triggered stop orders. Each resubmission can
// itself move the market and trigger further stops, which appends to
// the same queue, so the loop keeps draining until nothing new
// arrives — a naturally bounded cascade since the book only ever holds
// finitely many stop orders to begin with.
func (e *Engine) drainPending(transID uint64) {
	for len(e.pending) > 0 {
		next := e.pending[0]
		e.pending = e.pending[1:]
		e.addInternal(next.order, next.conditions, transID)
	}
}

func (e *Engine) restOrder(tracker *orderTracker) {
	key := common.NewPriceKey(tracker.order.IsBuy(), tracker.effectivePrice())
	e.side(tracker.order.IsBuy()).insert(key, tracker)
}

func (e *Engine) side(buy bool) bookSide {
	if buy {
		return e.bids
	}
	return e.asks
}

func (e *Engine) oppositeSide(buy bool) bookSide {
	if buy {
		return e.asks
	}
	return e.bids
}

// matchOrder crosses tracker against the opposite side of the book.
// All-or-none inbound orders use a deferred-cross scan (matchAllOrNone);
// everything else fills greedily level by level (matchRegular).
func (e *Engine) matchOrder(tracker *orderTracker, transID uint64) {
	inboundKey := common.NewPriceKey(tracker.order.IsBuy(), tracker.effectivePrice())
	opposite := e.oppositeSide(tracker.order.IsBuy())
	if tracker.allOrNone() {
		e.matchAllOrNone(inboundKey, tracker, opposite, transID)
		return
	}
	e.matchRegular(inboundKey, tracker, opposite, transID)
}

func (e *Engine) matchRegular(inboundKey common.PriceKey, inbound *orderTracker, opposite bookSide, transID uint64) {
	var touched []*priceLevel
	opposite.ascend(func(lvl *priceLevel) bool {
		if inbound.filled() {
			return false
		}
		if !inboundKey.Matches(lvl.key.RawPrice()) {
			return false
		}
		for _, resting := range lvl.orders {
			if inbound.filled() {
				break
			}
			if resting.filled() {
				continue
			}
			if resting.allOrNone() && resting.openQty > inbound.openQty {
				continue // can't fully satisfy this resting AON order; trade through it
			}
			price, ok := e.crossPrice(resting.effectivePrice(), inbound.effectivePrice())
			if !ok {
				// Neither side carries a limit and no market price is
				// established yet: this level can't cross. Every order
				// resting here shares the same raw price, so move on
				// to the next level rather than stalling the scan.
				continue
			}
			e.fillBoth(inbound, resting, min(inbound.openQty, resting.openQty), price, transID)
		}
		touched = append(touched, lvl)
		return true
	})
	for _, lvl := range touched {
		opposite.removeFilled(lvl)
	}
}

// crossPrice resolves the price a cross between restingPrice and
// inboundPrice executes at: the resting order's limit takes priority,
// then the inbound order's limit, then the engine's last traded price.
// If none of those is an established (non-market) price, ok is false
// and the caller must not cross at all.
//
// Grounded on original_source/src/book/order_book.h's cross_orders,
// which falls back through exactly this chain before giving up.
func (e *Engine) crossPrice(restingPrice, inboundPrice common.Price) (common.Price, bool) {
	if restingPrice != common.MarketOrderPrice {
		return restingPrice, true
	}
	if inboundPrice != common.MarketOrderPrice {
		return inboundPrice, true
	}
	if e.marketPrice != common.MarketOrderPrice {
		return e.marketPrice, true
	}
	return common.MarketOrderPrice, false
}

// matchAllOrNone implements the deferred-cross algorithm for an
// all-or-none inbound order: first accumulate, without committing any
// fill, enough resting (non-skipped) quantity to fully satisfy the
// inbound order; only if that succeeds does a second pass commit the
// fills in the same order. An inbound AON order that can't be fully
// satisfied rests untouched; a caller that also set ImmediateOrCancel
// (fill-or-kill) cancels it afterward since Add checks tracker.filled().
func (e *Engine) matchAllOrNone(inboundKey common.PriceKey, inbound *orderTracker, opposite bookSide, transID uint64) {
	type candidate struct {
		level   *priceLevel
		tracker *orderTracker
	}
	var candidates []candidate
	accumulated := common.Quantity(0)
	satisfied := false
	opposite.ascend(func(lvl *priceLevel) bool {
		if !inboundKey.Matches(lvl.key.RawPrice()) {
			return false
		}
		for _, resting := range lvl.orders {
			if resting.filled() {
				continue
			}
			if _, ok := e.crossPrice(resting.effectivePrice(), inbound.effectivePrice()); !ok {
				continue // no established price; this level can't actually cross
			}
			remaining := inbound.openQty - accumulated
			if resting.allOrNone() && resting.openQty > remaining {
				continue
			}
			candidates = append(candidates, candidate{lvl, resting})
			accumulated += resting.openQty
			if accumulated >= inbound.openQty {
				satisfied = true
				return false
			}
		}
		return true
	})
	if !satisfied {
		return
	}

	touched := map[*priceLevel]bool{}
	for _, c := range candidates {
		if inbound.filled() {
			break
		}
		price, ok := e.crossPrice(c.tracker.effectivePrice(), inbound.effectivePrice())
		if !ok {
			continue
		}
		qty := min(inbound.openQty, c.tracker.openQty)
		e.fillBoth(inbound, c.tracker, qty, price, transID)
		touched[c.level] = true
	}
	for lvl := range touched {
		opposite.removeFilled(lvl)
	}
}

func (e *Engine) fillBoth(inbound, resting *orderTracker, qty common.Quantity, price common.Price, transID uint64) {
	if err := inbound.fill(qty); err != nil {
		e.logger.Error().Err(err).Msg("inbound overfill")
		return
	}
	if err := resting.fill(qty); err != nil {
		e.logger.Error().Err(err).Msg("resting overfill")
		return
	}

	inboundFlags := NeitherFilled
	restingFlags := NeitherFilled
	if inbound.filled() {
		inboundFlags |= InboundFilled
		restingFlags |= MatchedFilled
	}
	if resting.filled() {
		restingFlags |= InboundFilled
		inboundFlags |= MatchedFilled
	}

	e.pushEvent(fillEvent(transID, inbound.order, resting.order, qty, price, inboundFlags))
	e.pushEvent(fillEvent(transID, resting.order, inbound.order, qty, price, restingFlags))

	if e.tradeListener != nil {
		e.tradeListener.OnTrade(common.Trade{
			Symbol:   e.symbol,
			Party:    inbound.order,
			Counter:  resting.order,
			MatchQty: qty,
			Price:    price,
		})
	}

	e.marketPrice = price
	e.checkStopOrders(transID)
}

// Cancel removes a resting order (in either the regular book or the
// stop book) from the book. If the order can't be found it produces a
// CancelReject event rather than an error.
func (e *Engine) Cancel(order common.Order) {
	transID := e.nextTransID()
	e.cancelInternal(order, transID)
	e.drainPending(transID)
	e.pushEvent(bookUpdateEvent(transID))
}

func (e *Engine) cancelInternal(order common.Order, transID uint64) {
	if order.StopPrice() != common.MarketOrderPrice {
		key := common.NewPriceKey(false, order.StopPrice())
		side := e.stopBids
		if !order.IsBuy() {
			side = e.stopAsks
		}
		if lvl, i := side.find(key, order); lvl != nil {
			tracker := lvl.orders[i]
			side.removeAt(lvl, i)
			e.pushEvent(cancelEvent(transID, order, tracker.openQty))
			return
		}
	}

	key := common.NewPriceKey(order.IsBuy(), order.Price())
	side := e.side(order.IsBuy())
	lvl, i := side.find(key, order)
	if lvl == nil {
		e.pushEvent(cancelRejectEvent(transID, order, "not found"))
		return
	}
	tracker := lvl.orders[i]
	side.removeAt(lvl, i)
	e.pushEvent(cancelEvent(transID, order, tracker.openQty))
}

// Replace changes a resting order's open quantity (by sizeDelta,
// positive or negative) and/or its price (newPrice, or
// common.PriceUnchanged to leave it). A price change, or any size
// change to an all-or-none order, re-enters the order at the back of
// its new price level's time priority and re-attempts a match; a
// size-only change on a non-AON order adjusts the open quantity in
// place, keeping its time priority, with no rematch.
func (e *Engine) Replace(order common.Order, sizeDelta int64, newPrice common.Price) bool {
	transID := e.nextTransID()
	accepted := e.replaceInternal(order, sizeDelta, newPrice, transID)
	e.drainPending(transID)
	e.pushEvent(bookUpdateEvent(transID))
	return accepted
}

func (e *Engine) replaceInternal(order common.Order, sizeDelta int64, newPrice common.Price, transID uint64) bool {
	key := common.NewPriceKey(order.IsBuy(), order.Price())
	side := e.side(order.IsBuy())
	lvl, i := side.find(key, order)
	if lvl == nil {
		e.pushEvent(replaceRejectEvent(transID, order, "not found"))
		return false
	}
	tracker := lvl.orders[i]

	if reason, ok := e.isValidReplace(tracker, sizeDelta); !ok {
		e.pushEvent(replaceRejectEvent(transID, order, reason))
		return false
	}

	priceChanged := newPrice != common.PriceUnchanged && newPrice != tracker.effectivePrice()
	rematch := priceChanged || tracker.allOrNone()

	if rematch {
		side.removeAt(lvl, i)
	}
	if priceChanged {
		tracker.reprice(newPrice)
	}
	if err := tracker.changeQty(sizeDelta); err != nil {
		e.logger.Error().Err(err).Msg("replace quantity underflow")
		e.pushEvent(replaceRejectEvent(transID, order, "quantity underflow"))
		return false
	}

	e.pushEvent(replaceEvent(transID, order, tracker.openQty, sizeDelta, newPrice))

	if tracker.openQty == 0 {
		if !rematch {
			side.removeAt(lvl, i)
		}
		e.pushEvent(cancelEvent(transID, order, 0))
		return true
	}

	if rematch {
		e.matchOrder(tracker, transID)
		if !tracker.filled() {
			e.restOrder(tracker)
		}
	}
	return true
}

func (e *Engine) isValidReplace(tracker *orderTracker, sizeDelta int64) (string, bool) {
	if sizeDelta < 0 && int64(tracker.openQty) < -sizeDelta {
		return "quantity reduction exceeds open quantity", false
	}
	return "", true
}

// Bids returns a read-only, best-first snapshot of the resting buy
// side.
func (e *Engine) Bids() []BookLevel { return snapshot(e.bids) }

// Asks returns a read-only, best-first snapshot of the resting sell
// side.
func (e *Engine) Asks() []BookLevel { return snapshot(e.asks) }

// StopBids returns a read-only snapshot of resting buy stop orders,
// ascending by stop price.
func (e *Engine) StopBids() []BookLevel { return snapshot(e.stopBids) }

// StopAsks returns a read-only snapshot of resting sell stop orders,
// ascending by stop price.
func (e *Engine) StopAsks() []BookLevel { return snapshot(e.stopAsks) }

func snapshot(side bookSide) []BookLevel {
	items := side.items()
	out := make([]BookLevel, 0, len(items))
	for _, lvl := range items {
		var qty common.Quantity
		for _, t := range lvl.orders {
			qty += t.openQty
		}
		out = append(out, BookLevel{Price: lvl.key.RawPrice(), OpenQty: qty, OrderCount: len(lvl.orders)})
	}
	return out
}

// Log writes a human-readable snapshot of the current book to w, one
// price level per line, bids then asks. Intended for REPL DISPLAY and
// debugging, not for the wire protocol.
func (e *Engine) Log(w io.Writer) error {
	if _, err := fmt.Fprintf(w, "=== %s ===\n", e.symbol); err != nil {
		return err
	}
	if _, err := fmt.Fprintln(w, "bids:"); err != nil {
		return err
	}
	for _, lvl := range e.Bids() {
		if _, err := fmt.Fprintf(w, "  %6d @ %d (%d orders)\n", lvl.OpenQty, lvl.Price, lvl.OrderCount); err != nil {
			return err
		}
	}
	if _, err := fmt.Fprintln(w, "asks:"); err != nil {
		return err
	}
	for _, lvl := range e.Asks() {
		if _, err := fmt.Fprintf(w, "  %6d @ %d (%d orders)\n", lvl.OpenQty, lvl.Price, lvl.OrderCount); err != nil {
			return err
		}
	}
	return nil
}

func min(a, b common.Quantity) common.Quantity {
	if a < b {
		return a
	}
	return b
}
