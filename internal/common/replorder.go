package common

import "github.com/google/uuid"

// ReplOrder is the common.Order implementation used by cmd/repl: a
// concrete, mutable order identified by a generated uuid, the shape a
// real caller (a FIX gateway, a REST handler) would hand the engine.
type ReplOrder struct {
	ID        uuid.UUID
	Buy       bool
	LimitPx   Price
	Stop      Price
	Qty       Quantity
	AON       bool
	IOC       bool
}

// NewReplOrder builds a ReplOrder with a freshly generated id.
func NewReplOrder(buy bool, limitPx, stop Price, qty Quantity, aon, ioc bool) *ReplOrder {
	return &ReplOrder{
		ID:      uuid.New(),
		Buy:     buy,
		LimitPx: limitPx,
		Stop:    stop,
		Qty:     qty,
		AON:     aon,
		IOC:     ioc,
	}
}

func (o *ReplOrder) IsBuy() bool               { return o.Buy }
func (o *ReplOrder) Price() Price              { return o.LimitPx }
func (o *ReplOrder) StopPrice() Price          { return o.Stop }
func (o *ReplOrder) OrderQty() Quantity        { return o.Qty }
func (o *ReplOrder) AllOrNone() bool           { return o.AON }
func (o *ReplOrder) ImmediateOrCancel() bool   { return o.IOC }

func (o *ReplOrder) String() string {
	side := "SELL"
	if o.Buy {
		side = "BUY"
	}
	return side + " " + o.ID.String()[:8]
}
