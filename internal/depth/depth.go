// Package depth maintains an aggregated, fixed-width view of a single
// symbol's order book: the best N price levels per side, each carrying
// the total open quantity and order count resting there, plus a
// monotonic change-stamp counter so callers can tell whether anything
// worth republishing has happened since they last looked.
//
// Grounded on original_source/src/book/depth.h and depth_level.h,
// generalized from the original's fixed compile-time template
// parameter (the number of visible levels) to a runtime-configured
// Tracker.
package depth

import (
	"fmt"

	"github.com/tidwall/btree"

	"github.com/tidemark-systems/matchbook/internal/common"
)

// Level is one aggregated price level: the total resting open quantity
// and how many orders contribute to it.
type Level struct {
	Price      common.Price
	OpenQty    common.Quantity
	OrderCount int
	ChangeID   common.ChangeId
}

func (l Level) empty() bool { return l.OrderCount == 0 }

// excessEntry is one level held in an overflow reservoir beyond the
// visible window, keyed by PriceKey so the two reservoirs (bid, ask)
// can each be ordered best-first for their side.
type excessEntry struct {
	key   common.PriceKey
	level Level
}

type excessTree = btree.BTreeG[*excessEntry]

// Tracker is the aggregated depth view for one symbol: N visible levels
// per side, with any levels beyond that held in an overflow reservoir
// so they can be promoted back into view as visible levels empty out.
type Tracker struct {
	n int

	bidLevels []Level
	askLevels []Level

	bidExcess *excessTree
	askExcess *excessTree

	needsBidRestoration bool
	needsAskRestoration bool

	// ignoreBidFillQty/ignoreAskFillQty hold fill quantity to silently
	// absorb rather than apply to a level: set by IgnoreFillQty when an
	// order fills completely before it ever adds any open interest to
	// depth (accept-time fill), so the Fill that follows doesn't try to
	// close a level that was never opened.
	ignoreBidFillQty common.Quantity
	ignoreAskFillQty common.Quantity

	lastChange    common.ChangeId
	lastPublished common.ChangeId
}

// New creates a Tracker that publishes the best n levels per side. n
// must be at least 1.
func New(n int) (*Tracker, error) {
	if n < 1 {
		return nil, fmt.Errorf("depth: level count must be at least 1, got %d", n)
	}
	return &Tracker{
		n: n,
		bidExcess: btree.NewBTreeG(func(a, b *excessEntry) bool {
			return a.key.Less(b.key)
		}),
		askExcess: btree.NewBTreeG(func(a, b *excessEntry) bool {
			return a.key.Less(b.key)
		}),
	}, nil
}

func (t *Tracker) bump() common.ChangeId {
	t.lastChange++
	return t.lastChange
}

// Changed reports whether any level has changed since the last call to
// Published.
func (t *Tracker) Changed() bool { return t.lastChange != t.lastPublished }

// LastChange returns the change stamp of the most recent mutation.
func (t *Tracker) LastChange() common.ChangeId { return t.lastChange }

// LastPublishedChange returns the change stamp as of the last call to
// Published.
func (t *Tracker) LastPublishedChange() common.ChangeId { return t.lastPublished }

// Published marks the current state as published, advancing
// LastPublishedChange to LastChange.
func (t *Tracker) Published() { t.lastPublished = t.lastChange }

// NeedsBidRestoration reports whether the bid side's visible window is
// under-filled relative to its excess reservoir because an erase
// happened somewhere other than the worst visible level, and a
// restoration pass (Restore) is needed to correctly repopulate it.
func (t *Tracker) NeedsBidRestoration() bool { return t.needsBidRestoration }

// NeedsAskRestoration is NeedsBidRestoration's ask-side counterpart.
func (t *Tracker) NeedsAskRestoration() bool { return t.needsAskRestoration }

func levels(buy bool, t *Tracker) *[]Level {
	if buy {
		return &t.bidLevels
	}
	return &t.askLevels
}

func excess(buy bool, t *Tracker) *excessTree {
	if buy {
		return t.bidExcess
	}
	return t.askExcess
}

func (t *Tracker) setRestoration(buy bool, needed bool) {
	if buy {
		t.needsBidRestoration = needed
	} else {
		t.needsAskRestoration = needed
	}
}

// findVisible returns the index of price within the visible window, or
// -1.
func findVisible(ls []Level, price common.Price) int {
	for i := range ls {
		if ls[i].Price == price {
			return i
		}
	}
	return -1
}

// insertionIndex returns where price belongs in ls (sorted best-first
// for the given side).
func insertionIndex(ls []Level, key common.PriceKey) int {
	for i, l := range ls {
		if key.Less(common.NewPriceKey(key.Buy, l.Price)) {
			return i
		}
	}
	return len(ls)
}

// AddOrder adds qty of open interest at price to the given side,
// creating the level if necessary. If the level falls outside the
// visible window it is tracked in the excess reservoir instead.
func (t *Tracker) AddOrder(buy bool, price common.Price, qty common.Quantity) {
	key := common.NewPriceKey(buy, price)
	ls := levels(buy, t)

	if i := findVisible(*ls, price); i >= 0 {
		(*ls)[i].OpenQty += qty
		(*ls)[i].OrderCount++
		(*ls)[i].ChangeID = t.bump()
		return
	}

	ex := excess(buy, t)
	if e, ok := ex.Get(&excessEntry{key: key}); ok {
		e.level.OpenQty += qty
		e.level.OrderCount++
		e.level.ChangeID = t.bump()
		ex.Set(e)
		return
	}

	newLevel := Level{Price: price, OpenQty: qty, OrderCount: 1, ChangeID: t.bump()}
	if len(*ls) < t.n {
		i := insertionIndex(*ls, key)
		*ls = append(*ls, Level{})
		copy((*ls)[i+1:], (*ls)[i:])
		(*ls)[i] = newLevel
		return
	}

	worstKey := common.NewPriceKey(buy, (*ls)[len(*ls)-1].Price)
	if key.Less(worstKey) {
		i := insertionIndex(*ls, key)
		displaced := (*ls)[len(*ls)-1]
		copy((*ls)[i+1:], (*ls)[i:len(*ls)-1])
		(*ls)[i] = newLevel
		ex.Set(&excessEntry{key: common.NewPriceKey(buy, displaced.Price), level: displaced})
		return
	}

	ex.Set(&excessEntry{key: key, level: newLevel})
}

// IgnoreFillQty reserves qty of fill on the given side to be silently
// absorbed by the next FillOrder call(s) rather than applied to any
// level. Used for an order that filled completely at accept time and
// so was never added to depth in the first place (see AddOrder's
// caller in internal/engine): the accept is skipped, but the Fill
// event for the same match still arrives and must not touch a level
// that was never opened.
//
// Grounded on original_source/src/book/depth.h's ignore_fill_qty.
func (t *Tracker) IgnoreFillQty(buy bool, qty common.Quantity) {
	if buy {
		t.ignoreBidFillQty += qty
	} else {
		t.ignoreAskFillQty += qty
	}
}

// FillOrder reduces the open quantity at price by qty, on the side
// already known to hold it. If filled is set, the order is fully done
// and its level's order count is decremented too (erasing the level if
// it's now empty), matching CloseOrder; otherwise only the quantity is
// adjusted. If this side has outstanding ignored fill quantity (see
// IgnoreFillQty), qty is absorbed from that reservation instead of
// touching any level at all. Returns whether a level was erased.
func (t *Tracker) FillOrder(buy bool, price common.Price, qty common.Quantity, filled bool) bool {
	if buy && t.ignoreBidFillQty > 0 {
		t.ignoreBidFillQty -= qty
		return false
	}
	if !buy && t.ignoreAskFillQty > 0 {
		t.ignoreAskFillQty -= qty
		return false
	}
	if filled {
		return t.CloseOrder(buy, price, qty)
	}
	t.changeQty(buy, price, -int64(qty))
	return false
}

// ChangeQtyOrder adjusts the open quantity at price by delta (positive
// or negative), e.g. for a Replace that changes size without changing
// price.
func (t *Tracker) ChangeQtyOrder(buy bool, price common.Price, delta int64) {
	t.changeQty(buy, price, delta)
}

func (t *Tracker) changeQty(buy bool, price common.Price, delta int64) {
	key := common.NewPriceKey(buy, price)
	ls := levels(buy, t)
	if i := findVisible(*ls, price); i >= 0 {
		(*ls)[i].OpenQty = common.Quantity(int64((*ls)[i].OpenQty) + delta)
		(*ls)[i].ChangeID = t.bump()
		return
	}
	ex := excess(buy, t)
	if e, ok := ex.Get(&excessEntry{key: key}); ok {
		e.level.OpenQty = common.Quantity(int64(e.level.OpenQty) + delta)
		e.level.ChangeID = t.bump()
		ex.Set(e)
	}
}

// CloseOrder removes one order's worth of interest (qty) from price,
// decrementing the order count there. Returns true if the level itself
// was erased as a result (its order count dropped to zero), in which
// case the visible window is refilled from the excess reservoir when
// possible.
func (t *Tracker) CloseOrder(buy bool, price common.Price, qty common.Quantity) bool {
	key := common.NewPriceKey(buy, price)
	ls := levels(buy, t)

	if i := findVisible(*ls, price); i >= 0 {
		(*ls)[i].OpenQty = common.Quantity(int64((*ls)[i].OpenQty) - int64(qty))
		(*ls)[i].OrderCount--
		(*ls)[i].ChangeID = t.bump()
		if (*ls)[i].OrderCount > 0 {
			return false
		}
		erasedLast := i == len(*ls)-1
		*ls = append((*ls)[:i], (*ls)[i+1:]...)
		if !erasedLast {
			t.setRestoration(buy, true)
		}
		t.promote(buy)
		return true
	}

	ex := excess(buy, t)
	if e, ok := ex.Get(&excessEntry{key: key}); ok {
		e.level.OpenQty = common.Quantity(int64(e.level.OpenQty) - int64(qty))
		e.level.OrderCount--
		e.level.ChangeID = t.bump()
		if e.level.OrderCount == 0 {
			ex.Delete(e)
			return true
		}
		ex.Set(e)
	}
	return false
}

// promote pulls the best excess level (if any) into the visible window
// on the given side, clearing its restoration flag once the window is
// full again or the reservoir is exhausted.
func (t *Tracker) promote(buy bool) {
	ls := levels(buy, t)
	ex := excess(buy, t)
	for len(*ls) < t.n {
		best, ok := ex.PopMin()
		if !ok {
			t.setRestoration(buy, false)
			return
		}
		*ls = append(*ls, best.level)
	}
	t.setRestoration(buy, false)
}

// Restore forces a resort-and-refill pass on whichever side's
// NeedsXRestoration flag is set, for callers that batch several
// mutations before reconciling the visible window.
func (t *Tracker) Restore() {
	if t.needsBidRestoration {
		t.resort(true)
	}
	if t.needsAskRestoration {
		t.resort(false)
	}
}

func (t *Tracker) resort(buy bool) {
	ls := levels(buy, t)
	ex := excess(buy, t)
	merged := append([]Level(nil), (*ls)...)
	ex.Scan(func(e *excessEntry) bool {
		merged = append(merged, e.level)
		return true
	})
	ex.Clear()

	sortLevels(buy, merged)

	if len(merged) <= t.n {
		*ls = merged
	} else {
		*ls = merged[:t.n]
		for _, lvl := range merged[t.n:] {
			ex.Set(&excessEntry{key: common.NewPriceKey(buy, lvl.Price), level: lvl})
		}
	}
	t.setRestoration(buy, false)
}

func sortLevels(buy bool, ls []Level) {
	for i := 1; i < len(ls); i++ {
		for j := i; j > 0; j-- {
			a := common.NewPriceKey(buy, ls[j].Price)
			b := common.NewPriceKey(buy, ls[j-1].Price)
			if !a.Less(b) {
				break
			}
			ls[j], ls[j-1] = ls[j-1], ls[j]
		}
	}
}

// ReplaceOrder moves qty of open interest from oldPrice to newPrice
// (e.g. a Replace that changed price). Returns true if the level at
// oldPrice was erased as a result.
func (t *Tracker) ReplaceOrder(buy bool, oldPrice, newPrice common.Price, qty common.Quantity) bool {
	erased := t.CloseOrder(buy, oldPrice, qty)
	t.AddOrder(buy, newPrice, qty)
	return erased
}

// Bids returns the currently visible bid levels, best first.
func (t *Tracker) Bids() []Level { return append([]Level(nil), t.bidLevels...) }

// Asks returns the currently visible ask levels, best first.
func (t *Tracker) Asks() []Level { return append([]Level(nil), t.askLevels...) }

// BestBidLevel returns the best bid level, if any.
func (t *Tracker) BestBidLevel() (Level, bool) {
	if len(t.bidLevels) == 0 {
		return Level{}, false
	}
	return t.bidLevels[0], true
}

// BestAskLevel returns the best ask level, if any.
func (t *Tracker) BestAskLevel() (Level, bool) {
	if len(t.askLevels) == 0 {
		return Level{}, false
	}
	return t.askLevels[0], true
}
