package common

import "fmt"

// Trade is a single cross, reported to callers that want a richer
// record than the engine's own Fill event (e.g. the REPL's blotter).
type Trade struct {
	Symbol   string
	Party    Order
	Counter  Order
	MatchQty Quantity
	Price    Price
}

func (t Trade) String() string {
	return fmt.Sprintf("%s: %d @ %d", t.Symbol, t.MatchQty, t.Price)
}
