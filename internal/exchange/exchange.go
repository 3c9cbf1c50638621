// Package exchange multiplexes many symbols, each backed by its own
// engine.DepthEngine, behind one façade. Every symbol's engine is only
// ever touched by the one goroutine this package starts for it — the
// engine package itself does no locking, so that invariant is this
// package's job to uphold.
//
// Grounded on the teacher's internal/net/server.go (a tomb.Tomb-managed
// dispatch loop reading off a channel) and internal/worker.go (the
// WorkerPool pattern, here repurposed to drain each engine's published
// callbacks off its own matching goroutine).
package exchange

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"
	tomb "gopkg.in/tomb.v2"

	"github.com/tidemark-systems/matchbook/internal/common"
	"github.com/tidemark-systems/matchbook/internal/engine"
)

// Listeners bundles every listener a symbol can be registered with, so
// callers configure a book in one call instead of five setter calls
// threaded through the dispatcher.
type Listeners struct {
	Order engine.OrderListener
	Trade engine.TradeListener
	Book  engine.BookListener
	Bbo   engine.BboListener
	Depth engine.DepthListener
}

type command struct {
	run  func(*engine.DepthEngine)
	done chan struct{}
}

type symbolBook struct {
	depthEngine *engine.DepthEngine
	commands    chan command
}

// Exchange is a symbol -> book registry. It is safe to call its methods
// concurrently from many goroutines; each symbol's matching work is
// internally serialized onto that symbol's own goroutine.
type Exchange struct {
	t       *tomb.Tomb
	ctx     context.Context
	logger  zerolog.Logger
	books   map[string]*symbolBook
	levelsN int
}

// New creates an Exchange whose depth trackers each publish the best
// levelCount price levels per side.
func New(ctx context.Context, levelCount int) *Exchange {
	t, ctx := tomb.WithContext(ctx)
	return &Exchange{
		t:       t,
		ctx:     ctx,
		logger:  zerolog.Nop(),
		books:   make(map[string]*symbolBook),
		levelsN: levelCount,
	}
}

func (ex *Exchange) SetLogger(logger zerolog.Logger) { ex.logger = logger }

// Shutdown signals every symbol dispatcher goroutine to stop and waits
// for them to exit.
func (ex *Exchange) Shutdown() error {
	ex.t.Kill(nil)
	return ex.t.Wait()
}

// AddOrderBook registers symbol, starting its dispatcher goroutine. It
// is an error to register the same symbol twice.
func (ex *Exchange) AddOrderBook(symbol string, listeners Listeners) error {
	if _, exists := ex.books[symbol]; exists {
		return fmt.Errorf("exchange: symbol %q already registered", symbol)
	}

	base := engine.New(symbol)
	base.SetOrderListener(listeners.Order)
	base.SetTradeListener(listeners.Trade)
	base.SetBookListener(listeners.Book)

	depthEngine, err := engine.NewDepthEngine(base, ex.levelsN)
	if err != nil {
		return err
	}
	depthEngine.SetBboListener(listeners.Bbo)
	depthEngine.SetDepthListener(listeners.Depth)

	book := &symbolBook{
		depthEngine: depthEngine,
		commands:    make(chan command, 64),
	}
	ex.books[symbol] = book

	ex.t.Go(func() error {
		return ex.dispatch(book)
	})
	return nil
}

// dispatch is the single goroutine that ever touches this symbol's
// DepthEngine: it serializes every command, draining published
// callbacks after each one completes.
func (ex *Exchange) dispatch(book *symbolBook) error {
	for {
		select {
		case <-ex.t.Dying():
			return nil
		case cmd := <-book.commands:
			cmd.run(book.depthEngine)
			book.depthEngine.PerformCallbacks()
			close(cmd.done)
		}
	}
}

func (ex *Exchange) submit(symbol string, run func(*engine.DepthEngine)) error {
	book, ok := ex.books[symbol]
	if !ok {
		return fmt.Errorf("exchange: unknown symbol %q", symbol)
	}
	done := make(chan struct{})
	select {
	case book.commands <- command{run: run, done: done}:
	case <-ex.ctx.Done():
		return ex.ctx.Err()
	}
	select {
	case <-done:
		return nil
	case <-ex.ctx.Done():
		return ex.ctx.Err()
	}
}

// AddOrder submits order to symbol's book, blocking until it has been
// fully processed (including any triggered stop cascade).
func (ex *Exchange) AddOrder(symbol string, order common.Order, conditions common.Conditions) error {
	return ex.submit(symbol, func(e *engine.DepthEngine) {
		e.Add(order, conditions)
	})
}

// CancelOrder submits a cancel request for order to symbol's book.
func (ex *Exchange) CancelOrder(symbol string, order common.Order) error {
	return ex.submit(symbol, func(e *engine.DepthEngine) {
		e.Cancel(order)
	})
}

// ReplaceOrder submits a size/price change for order to symbol's book.
func (ex *Exchange) ReplaceOrder(symbol string, order common.Order, sizeDelta int64, newPrice common.Price) error {
	return ex.submit(symbol, func(e *engine.DepthEngine) {
		e.Replace(order, sizeDelta, newPrice)
	})
}

// Book returns the DepthEngine backing symbol, for read-only queries
// (Bids/Asks/Depth snapshots) from the caller's own goroutine. Callers
// must not call mutating methods on it directly — only AddOrder,
// CancelOrder and ReplaceOrder guarantee single-goroutine access.
func (ex *Exchange) Book(symbol string) (*engine.DepthEngine, bool) {
	book, ok := ex.books[symbol]
	if !ok {
		return nil, false
	}
	return book.depthEngine, true
}
