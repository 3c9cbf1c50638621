package engine

import (
	"github.com/tidemark-systems/matchbook/internal/common"
	"github.com/tidemark-systems/matchbook/internal/depth"
)

// DepthEngine composes an Engine with an aggregated depth.Tracker,
// keeping the two in lockstep: every buffered event is applied to the
// tracker before any listener callback fires for it, so a BboListener
// or DepthListener invoked mid-drain always sees a tracker consistent
// with the order-level event it's reacting to.
//
// Grounded on original_source/src/book/depth_order_book.h, which
// overrides the base order book's callback hooks the same way.
type DepthEngine struct {
	*Engine
	tracker *depth.Tracker

	bboListener   BboListener
	depthListener DepthListener

	bestBid, bestAsk common.Price
}

// NewDepthEngine wraps engine with a depth tracker publishing the best
// levelCount price levels per side.
func NewDepthEngine(engine *Engine, levelCount int) (*DepthEngine, error) {
	tracker, err := depth.New(levelCount)
	if err != nil {
		return nil, err
	}
	return &DepthEngine{Engine: engine, tracker: tracker}, nil
}

func (d *DepthEngine) SetBboListener(l BboListener)     { d.bboListener = l }
func (d *DepthEngine) SetDepthListener(l DepthListener) { d.depthListener = l }

func (d *DepthEngine) Depth() *depth.Tracker { return d.tracker }

// PerformCallbacks applies each buffered event's depth effect before
// dispatching it to the order and book listeners, then — once the whole
// buffer has drained — fires the Bbo and Depth listeners if anything
// changed. The trade listener is not driven from here: the engine calls
// it directly as each cross happens, during the public call itself.
func (d *DepthEngine) PerformCallbacks() {
	events := d.Engine.Events()
	for _, ev := range events {
		d.applyDepth(ev)
	}
	d.Engine.PerformCallbacks()
	d.publishIfChanged()
}

func (d *DepthEngine) applyDepth(ev Event) {
	switch ev.Kind {
	case EventAccept:
		if common.IsLimit(ev.Order) {
			if ev.AcceptedFill == ev.Order.OrderQty() {
				// Filled in full before it ever rested: never add it to
				// depth at all, just tell depth to absorb the Fill
				// event(s) about to follow for this same quantity.
				d.tracker.IgnoreFillQty(ev.Order.IsBuy(), ev.AcceptedFill)
			} else {
				d.tracker.AddOrder(ev.Order.IsBuy(), ev.Order.Price(), ev.Order.OrderQty())
			}
		}
	case EventFill:
		if common.IsLimit(ev.Order) {
			d.tracker.FillOrder(ev.Order.IsBuy(), ev.Order.Price(), ev.Quantity, ev.Flags&InboundFilled != 0)
		}
	case EventCancel:
		if common.IsLimit(ev.Order) && ev.Quantity > 0 {
			d.tracker.CloseOrder(ev.Order.IsBuy(), ev.Order.Price(), ev.Quantity)
		}
	case EventReplace:
		if common.IsLimit(ev.Order) {
			if ev.Price != common.PriceUnchanged && ev.Price != ev.Order.Price() {
				d.tracker.ReplaceOrder(ev.Order.IsBuy(), ev.Order.Price(), ev.Price, ev.Quantity)
			} else if ev.Delta != 0 {
				d.tracker.ChangeQtyOrder(ev.Order.IsBuy(), ev.Order.Price(), ev.Delta)
			}
		}
	}
}

func (d *DepthEngine) publishIfChanged() {
	if !d.tracker.Changed() {
		return
	}
	d.tracker.Restore()

	if d.bboListener != nil {
		bidPx, bidQty := levelOrZero(d.tracker.BestBidLevel())
		askPx, askQty := levelOrZero(d.tracker.BestAskLevel())
		if bidPx != d.bestBid || askPx != d.bestAsk {
			d.bestBid, d.bestAsk = bidPx, askPx
			d.bboListener.OnBboChange(d.Engine.Symbol(), bidPx, bidQty, askPx, askQty)
		}
	}
	if d.depthListener != nil {
		d.depthListener.OnDepthChange(d.Engine.Symbol(), d.tracker.LastChange())
	}
	d.tracker.Published()
}

func levelOrZero(lvl depth.Level, ok bool) (common.Price, common.Quantity) {
	if !ok {
		return common.MarketOrderPrice, 0
	}
	return lvl.Price, lvl.OpenQty
}
