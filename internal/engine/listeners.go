package engine

import "github.com/tidemark-systems/matchbook/internal/common"

// OrderListener is notified of every lifecycle event touching a single
// order: accept, reject, fill, cancel, cancel-reject, replace and
// replace-reject. Grounded on original_source/src/book/order_listener.h,
// split out of the teacher's single Engine.listeners field into five
// narrow interfaces rather than one fat callback type, per spec §6.G.
type OrderListener interface {
	OnAccept(order common.Order)
	OnReject(order common.Order, reason string)
	OnFill(order, matched common.Order, qty common.Quantity, price common.Price, flags FillFlags)
	OnCancel(order common.Order, remainingQty common.Quantity)
	OnCancelReject(order common.Order, reason string)
	OnReplace(order common.Order, currentOpenQty common.Quantity, deltaQty int64, newPrice common.Price)
	OnReplaceReject(order common.Order, reason string)
}

// TradeListener is notified once per trade (a coarser view than
// OrderListener.OnFill, which fires once per side). Grounded on
// original_source/src/book/trade_listener.h.
type TradeListener interface {
	OnTrade(trade common.Trade)
}

// BookListener is notified after every public call completes, once the
// full event buffer (including any stop cascade) has drained. Grounded
// on original_source/src/book/order_book_listener.h.
type BookListener interface {
	OnBookUpdate(symbol string)
}

// BboListener is notified when the best bid or ask changes. Grounded on
// original_source/src/book/bbo_listener.h.
type BboListener interface {
	OnBboChange(symbol string, bidPrice common.Price, bidQty common.Quantity, askPrice common.Price, askQty common.Quantity)
}

// DepthListener is notified when the published depth snapshot changes.
// Grounded on original_source/src/book/depth_listener.h.
type DepthListener interface {
	OnDepthChange(symbol string, changeID common.ChangeId)
}
