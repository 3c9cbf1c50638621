package exchange

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tidemark-systems/matchbook/internal/common"
)

type testOrder struct {
	buy       bool
	price     common.Price
	qty       common.Quantity
	allOrNone bool
	ioc       bool
}

func (o testOrder) IsBuy() bool               { return o.buy }
func (o testOrder) Price() common.Price       { return o.price }
func (o testOrder) StopPrice() common.Price   { return common.MarketOrderPrice }
func (o testOrder) OrderQty() common.Quantity { return o.qty }
func (o testOrder) AllOrNone() bool           { return o.allOrNone }
func (o testOrder) ImmediateOrCancel() bool   { return o.ioc }

func TestExchange_AddOrderBookAndTrade(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	ex := New(ctx, 5)
	require.NoError(t, ex.AddOrderBook("AAPL", Listeners{}))

	sell := testOrder{buy: false, price: 100, qty: 10}
	require.NoError(t, ex.AddOrder("AAPL", sell, common.NoConditions))

	buy := testOrder{buy: true, price: 100, qty: 10}
	require.NoError(t, ex.AddOrder("AAPL", buy, common.NoConditions))

	book, ok := ex.Book("AAPL")
	require.True(t, ok)
	assert.Empty(t, book.Bids())
	assert.Empty(t, book.Asks())
}

func TestExchange_UnknownSymbolErrors(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	ex := New(ctx, 5)
	order := testOrder{buy: true, price: 100, qty: 1}
	err := ex.AddOrder("MISSING", order, common.NoConditions)
	assert.Error(t, err)
}

func TestExchange_DuplicateSymbolRejected(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	ex := New(ctx, 5)
	require.NoError(t, ex.AddOrderBook("AAPL", Listeners{}))
	assert.Error(t, ex.AddOrderBook("AAPL", Listeners{}))
}
