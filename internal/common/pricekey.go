package common

// PriceKey is a side-aware comparable price. Comparing two keys from
// different sides with Less is a logic bug; Less and Matches assume
// the side already encoded in the key (and, for Matches, in the
// counter price passed in).
//
// Ported from the original ComparablePrice/OrderMapKey: a single price
// key type serves both the per-side priority ordering (Less) and the
// cross-side trade predicate (Matches), collapsing what would
// otherwise be two parallel comparison systems into one.
type PriceKey struct {
	Price Price
	Buy   bool
}

// NewPriceKey builds the key an order of the given side and price
// sorts at within its own side's book. A market order (price 0) sorts
// at the side's sentinel so it is always the most liquid entry.
func NewPriceKey(buy bool, price Price) PriceKey {
	if price == MarketOrderPrice {
		if buy {
			price = MarketBidSortPrice
		} else {
			price = MarketAskSortPrice
		}
	}
	return PriceKey{Price: price, Buy: buy}
}

// IsMarket reports whether this key represents a market order's sort
// position.
func (k PriceKey) IsMarket() bool {
	return k.Price == MarketBidSortPrice || k.Price == MarketAskSortPrice
}

// Less orders keys on the same side from most to least liquid: a
// market key is less than any limit key; among limits, bids reverse
// natural price order (higher is more liquid) and asks keep it (lower
// is more liquid).
func (k PriceKey) Less(other PriceKey) bool {
	if k.IsMarket() {
		return !other.IsMarket()
	}
	if other.IsMarket() {
		return false
	}
	if k.Buy {
		return other.Price < k.Price
	}
	return k.Price < other.Price
}

// Equal compares raw prices, ignoring side.
func (k PriceKey) Equal(other PriceKey) bool {
	return k.Price == other.Price
}

// Matches reports whether a trade between this key's side and a resting
// order at counterPrice is legal: market prices on either side always
// match; otherwise a buy matches when counterPrice <= this key's raw
// limit price, a sell when this key's raw limit price <= counterPrice.
//
// counterPrice is the resting order's raw Price (0 meaning market), not
// a sort-adjusted key — this mirrors the original matches() predicate,
// which compares raw prices across sides rather than two PriceKeys.
func (k PriceKey) Matches(counterPrice Price) bool {
	selfPrice := k.RawPrice()
	if k.Buy {
		if counterPrice == MarketOrderPrice {
			return true
		}
		if selfPrice == MarketOrderPrice {
			return true
		}
		return counterPrice <= selfPrice
	}
	if counterPrice == MarketOrderPrice {
		return true
	}
	if selfPrice == MarketOrderPrice {
		return true
	}
	return selfPrice <= counterPrice
}

// RawPrice recovers the limit price (0 for market) from a sort-adjusted
// key.
func (k PriceKey) RawPrice() Price {
	if k.IsMarket() {
		return MarketOrderPrice
	}
	return k.Price
}
