package engine

import (
	"github.com/tidwall/btree"

	"github.com/tidemark-systems/matchbook/internal/common"
)

// priceLevel groups every tracker resting at one PriceKey, in
// insertion order (time priority). This is the teacher's own
// PriceLevel{priceLevel float64; orders []*Order} pattern from
// internal/engine/orderbook.go, generalized from a bare float64 price
// and single Match() sweep into a common.PriceKey-keyed level that the
// full price-time-priority/AON/IOC/stop algorithm below walks.
type priceLevel struct {
	key    common.PriceKey
	orders []*orderTracker
}

// priceLevels is a side of the book (or a stop book side): an ordered
// map from PriceKey to the level resting there, sorted most-to-least
// liquid by PriceKey.Less.
type priceLevels = btree.BTreeG[*priceLevel]

func newPriceLevels() *priceLevels {
	return btree.NewBTreeG(func(a, b *priceLevel) bool {
		return a.key.Less(b.key)
	})
}

// bookSide wraps a priceLevels tree with the operations the engine
// needs: get-or-create a level, remove a tracker from whatever level
// it rests at, and walk from the best price.
type bookSide struct {
	levels *priceLevels
}

func newBookSide() bookSide {
	return bookSide{levels: newPriceLevels()}
}

// insert appends tracker to the level at key, creating the level if
// necessary, preserving insertion order (time priority) among equal
// keys.
func (s bookSide) insert(key common.PriceKey, tracker *orderTracker) {
	if lvl, ok := s.levels.GetMut(&priceLevel{key: key}); ok {
		lvl.orders = append(lvl.orders, tracker)
		return
	}
	s.levels.Set(&priceLevel{key: key, orders: []*orderTracker{tracker}})
}

// find locates tracker's resting level and position by recomputing its
// sort key — the engine never indexes orders by id, only by reference,
// so this linear scan of the (usually short) level is how cancel and
// replace locate a resting order, matching spec §4.E's "locate it ...
// by linear scan at its sort key".
func (s bookSide) find(key common.PriceKey, order common.Order) (*priceLevel, int) {
	lvl, ok := s.levels.GetMut(&priceLevel{key: key})
	if !ok {
		return nil, -1
	}
	for i, t := range lvl.orders {
		if t.order == order {
			return lvl, i
		}
	}
	return nil, -1
}

// removeAt removes the tracker at index i from lvl, deleting the level
// entirely if it becomes empty.
func (s bookSide) removeAt(lvl *priceLevel, i int) {
	lvl.orders = append(lvl.orders[:i], lvl.orders[i+1:]...)
	if len(lvl.orders) == 0 {
		s.levels.Delete(&priceLevel{key: lvl.key})
	}
}

// removeFilled drops any fully-filled trackers from lvl (in place),
// deleting the level if it becomes empty. Returns whether the level
// was deleted.
func (s bookSide) removeFilled(lvl *priceLevel) bool {
	kept := lvl.orders[:0]
	for _, t := range lvl.orders {
		if !t.filled() {
			kept = append(kept, t)
		}
	}
	lvl.orders = kept
	if len(lvl.orders) == 0 {
		s.levels.Delete(&priceLevel{key: lvl.key})
		return true
	}
	return false
}

// ascend walks levels from the most liquid, stopping when iter returns
// false or the tree is exhausted.
func (s bookSide) ascend(iter func(lvl *priceLevel) bool) {
	s.levels.Scan(iter)
}

// items returns every level, in priority order. Used for read-only
// iteration (Engine.Bids/Asks) and tests.
func (s bookSide) items() []*priceLevel {
	return s.levels.Items()
}

func (s bookSide) len() int {
	return s.levels.Len()
}
