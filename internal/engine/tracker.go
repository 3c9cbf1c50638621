package engine

import (
	"fmt"

	"github.com/tidemark-systems/matchbook/internal/common"
)

// orderTracker holds the mutable state the engine keeps for one
// resting order: remaining open quantity, the order's current
// effective price (seeded from the order body but, unlike it, mutable
// by Replace), and the condition flags captured at accept time. The
// engine never re-reads conditions off the order after accept, and
// never re-reads price off it either once price is tracked here —
// matching/resting always key off orderTracker.price so a Replace that
// changes price actually takes effect.
//
// Grounded on original_source/src/book/order_tracker.h.
type orderTracker struct {
	order      common.Order
	orderQty   common.Quantity
	openQty    common.Quantity
	price      common.Price
	conditions common.Conditions
}

func newOrderTracker(order common.Order, conditions common.Conditions) *orderTracker {
	return &orderTracker{
		order:      order,
		orderQty:   order.OrderQty(),
		openQty:    order.OrderQty(),
		price:      order.Price(),
		conditions: conditions,
	}
}

// effectivePrice is the price matching and resting key off: the
// order's original price until a Replace repriced it.
func (t *orderTracker) effectivePrice() common.Price {
	return t.price
}

// reprice updates the tracker's effective price, e.g. when Replace
// supplies a new price. The underlying order body is never mutated.
func (t *orderTracker) reprice(price common.Price) {
	t.price = price
}

// changeQty adjusts openQty by delta (positive or negative). Returns an
// error if delta would drive openQty negative — a fatal invariant
// violation per spec §7.
func (t *orderTracker) changeQty(delta int64) error {
	if delta < 0 && int64(t.openQty) < -delta {
		return fmt.Errorf("%w: open qty %d, delta %d", ErrQuantityUnderflow, t.openQty, delta)
	}
	t.openQty = common.Quantity(int64(t.openQty) + delta)
	return nil
}

// fill decreases openQty by qty. Fatal if qty exceeds openQty.
func (t *orderTracker) fill(qty common.Quantity) error {
	if qty > t.openQty {
		return fmt.Errorf("%w: fill %d exceeds open qty %d", ErrOverfill, qty, t.openQty)
	}
	t.openQty -= qty
	return nil
}

func (t *orderTracker) filled() bool {
	return t.openQty == 0
}

func (t *orderTracker) filledQty() common.Quantity {
	return t.orderQty - t.openQty
}

func (t *orderTracker) allOrNone() bool {
	return t.conditions.AllOrNone()
}

func (t *orderTracker) immediateOrCancel() bool {
	return t.conditions.ImmediateOrCancel()
}
