package engine

import "github.com/tidemark-systems/matchbook/internal/common"

// EventKind tags the variant carried by an Event. Implemented as a
// tagged enum rather than per-kind dynamic dispatch, per spec §9
// ("Sum-typed events").
type EventKind uint8

const (
	EventAccept EventKind = iota
	EventReject
	EventFill
	EventCancel
	EventCancelReject
	EventReplace
	EventReplaceReject
	EventBookUpdate
)

// FillFlags marks which side(s) of a cross became fully filled.
// Grounded on original_source/src/book/callback.h's Callback::FillFlags.
type FillFlags uint8

const (
	NeitherFilled FillFlags = 0
	InboundFilled FillFlags = 1
	MatchedFilled FillFlags = 2
)

// Event is one entry in the engine's callback buffer. Only the fields
// relevant to Kind are populated; see the *Event constructors below.
type Event struct {
	Kind         EventKind
	TransID      uint64
	Order        common.Order
	Matched      common.Order // fill only
	Quantity     common.Quantity
	Price        common.Price
	Flags        FillFlags // fill only
	Delta        int64     // replace only
	Reason       string    // reject/cancel_reject/replace_reject only
	AcceptedFill common.Quantity // accept only: qty matched in the same transaction
}

func acceptEvent(transID uint64, order common.Order, matchedQty common.Quantity) Event {
	return Event{Kind: EventAccept, TransID: transID, Order: order, AcceptedFill: matchedQty}
}

func rejectEvent(transID uint64, order common.Order, reason string) Event {
	return Event{Kind: EventReject, TransID: transID, Order: order, Reason: reason}
}

func fillEvent(transID uint64, inbound, matched common.Order, qty common.Quantity, price common.Price, flags FillFlags) Event {
	return Event{Kind: EventFill, TransID: transID, Order: inbound, Matched: matched, Quantity: qty, Price: price, Flags: flags}
}

func cancelEvent(transID uint64, order common.Order, remaining common.Quantity) Event {
	return Event{Kind: EventCancel, TransID: transID, Order: order, Quantity: remaining}
}

func cancelRejectEvent(transID uint64, order common.Order, reason string) Event {
	return Event{Kind: EventCancelReject, TransID: transID, Order: order, Reason: reason}
}

func replaceEvent(transID uint64, order common.Order, currentOpenQty common.Quantity, delta int64, newPrice common.Price) Event {
	return Event{Kind: EventReplace, TransID: transID, Order: order, Quantity: currentOpenQty, Delta: delta, Price: newPrice}
}

func replaceRejectEvent(transID uint64, order common.Order, reason string) Event {
	return Event{Kind: EventReplaceReject, TransID: transID, Order: order, Reason: reason}
}

func bookUpdateEvent(transID uint64) Event {
	return Event{Kind: EventBookUpdate, TransID: transID}
}
