// Command repl is an interactive single-symbol order book session,
// useful for exercising the matching engine by hand. Commands:
//
//	BUY <label> <qty> [PRICE <p> | MARKET|MKT] [AON] [IOC] [STOP <p>]
//	SELL <label> <qty> [PRICE <p> | MARKET|MKT] [AON] [IOC] [STOP <p>]
//	CANCEL <label>
//	MODIFY <label> [QUANTITY <delta>] [PRICE <p>]
//	DISPLAY
//	HELP
//	QUIT
//	# a comment line is ignored
//
// Grounded on the teacher's cmd/client/client.go (flag-driven order
// construction, google/uuid order identity) reworked from a TCP client
// into a local, in-process session.
package main

import (
	"bufio"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/rs/zerolog"

	"github.com/tidemark-systems/matchbook/internal/common"
	"github.com/tidemark-systems/matchbook/internal/engine"
)

const depthLevels = 10

type session struct {
	depthEngine *engine.DepthEngine
	orders      map[string]*common.ReplOrder
	out         *os.File
	logger      zerolog.Logger
}

func main() {
	logger := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).With().Timestamp().Logger()

	symbol := "SYMBOL"
	if len(os.Args) > 1 {
		symbol = strings.ToUpper(os.Args[1])
	}

	base := engine.New(symbol)
	base.SetLogger(logger)
	base.SetOrderListener(consoleOrderListener{out: os.Stdout})
	base.SetTradeListener(consoleTradeListener{out: os.Stdout})

	depthEngine, err := engine.NewDepthEngine(base, depthLevels)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to start depth engine")
	}
	depthEngine.SetBboListener(consoleBboListener{out: os.Stdout})

	s := &session{
		depthEngine: depthEngine,
		orders:      make(map[string]*common.ReplOrder),
		out:         os.Stdout,
		logger:      logger,
	}

	fmt.Fprintf(s.out, "matchbook repl — symbol %s. HELP for commands.\n", symbol)
	scanner := bufio.NewScanner(os.Stdin)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		if !s.run(line) {
			break
		}
	}
}

func (s *session) run(line string) bool {
	fields := strings.Fields(strings.TrimSuffix(line, ";"))
	if len(fields) == 0 {
		return true
	}
	cmd := strings.ToUpper(fields[0])
	args := fields[1:]

	switch cmd {
	case "QUIT", "EXIT":
		return false
	case "HELP":
		s.help()
	case "DISPLAY":
		if err := s.depthEngine.Log(s.out); err != nil {
			s.logger.Error().Err(err).Msg("display failed")
		}
	case "BUY":
		s.submitNew(true, args)
	case "SELL":
		s.submitNew(false, args)
	case "CANCEL":
		s.cancel(args)
	case "MODIFY":
		s.modify(args)
	default:
		fmt.Fprintf(s.out, "unrecognized command %q — HELP for the list\n", cmd)
	}
	s.depthEngine.PerformCallbacks()
	return true
}

func (s *session) help() {
	fmt.Fprintln(s.out, `commands:
  BUY <label> <qty> [PRICE <p> | MARKET|MKT] [AON] [IOC] [STOP <p>]
  SELL <label> <qty> [PRICE <p> | MARKET|MKT] [AON] [IOC] [STOP <p>]
  CANCEL <label>
  MODIFY <label> [QUANTITY <delta>] [PRICE <p>]
  DISPLAY
  HELP
  QUIT`)
}

func (s *session) submitNew(buy bool, args []string) {
	if len(args) < 2 {
		fmt.Fprintln(s.out, "usage: BUY|SELL <label> <qty> [...]")
		return
	}
	label := args[0]
	qty, err := strconv.ParseUint(args[1], 10, 64)
	if err != nil {
		fmt.Fprintf(s.out, "bad quantity %q: %v\n", args[1], err)
		return
	}

	var price, stop common.Price
	var aon, ioc bool

	rest := args[2:]
	for i := 0; i < len(rest); i++ {
		switch strings.ToUpper(rest[i]) {
		case "PRICE":
			i++
			if i >= len(rest) {
				fmt.Fprintln(s.out, "PRICE requires a value")
				return
			}
			p, err := strconv.ParseUint(rest[i], 10, 64)
			if err != nil {
				fmt.Fprintf(s.out, "bad price %q: %v\n", rest[i], err)
				return
			}
			price = common.Price(p)
		case "MARKET", "MKT":
			price = common.MarketOrderPrice
		case "AON":
			aon = true
		case "IOC":
			ioc = true
		case "STOP":
			i++
			if i >= len(rest) {
				fmt.Fprintln(s.out, "STOP requires a value")
				return
			}
			p, err := strconv.ParseUint(rest[i], 10, 64)
			if err != nil {
				fmt.Fprintf(s.out, "bad stop price %q: %v\n", rest[i], err)
				return
			}
			stop = common.Price(p)
		default:
			fmt.Fprintf(s.out, "unrecognized flag %q\n", rest[i])
			return
		}
	}

	order := common.NewReplOrder(buy, price, stop, common.Quantity(qty), aon, ioc)
	s.orders[label] = order

	conditions := common.NoConditions
	if aon {
		conditions |= common.AllOrNone
	}
	if ioc {
		conditions |= common.ImmediateOrCancel
	}
	if stop != common.MarketOrderPrice {
		conditions |= common.Stop
	}

	s.depthEngine.Add(order, conditions)
}

func (s *session) cancel(args []string) {
	if len(args) != 1 {
		fmt.Fprintln(s.out, "usage: CANCEL <label>")
		return
	}
	order, ok := s.orders[args[0]]
	if !ok {
		fmt.Fprintf(s.out, "no such order %q\n", args[0])
		return
	}
	s.depthEngine.Cancel(order)
}

func (s *session) modify(args []string) {
	if len(args) < 1 {
		fmt.Fprintln(s.out, "usage: MODIFY <label> [QUANTITY <delta>] [PRICE <p>]")
		return
	}
	order, ok := s.orders[args[0]]
	if !ok {
		fmt.Fprintf(s.out, "no such order %q\n", args[0])
		return
	}

	var delta int64
	newPrice := common.PriceUnchanged

	rest := args[1:]
	for i := 0; i < len(rest); i++ {
		switch strings.ToUpper(rest[i]) {
		case "QUANTITY":
			i++
			if i >= len(rest) {
				fmt.Fprintln(s.out, "QUANTITY requires a signed value")
				return
			}
			d, err := strconv.ParseInt(rest[i], 10, 64)
			if err != nil {
				fmt.Fprintf(s.out, "bad quantity delta %q: %v\n", rest[i], err)
				return
			}
			delta = d
		case "PRICE":
			i++
			if i >= len(rest) {
				fmt.Fprintln(s.out, "PRICE requires a value")
				return
			}
			p, err := strconv.ParseUint(rest[i], 10, 64)
			if err != nil {
				fmt.Fprintf(s.out, "bad price %q: %v\n", rest[i], err)
				return
			}
			newPrice = common.Price(p)
		default:
			fmt.Fprintf(s.out, "unrecognized flag %q\n", rest[i])
			return
		}
	}

	s.depthEngine.Replace(order, delta, newPrice)
}

type consoleOrderListener struct{ out *os.File }

func (l consoleOrderListener) OnAccept(order common.Order) {
	fmt.Fprintf(l.out, "accept  %s\n", order)
}

func (l consoleOrderListener) OnReject(order common.Order, reason string) {
	fmt.Fprintf(l.out, "reject  %s: %s\n", order, reason)
}

func (l consoleOrderListener) OnFill(order, matched common.Order, qty common.Quantity, price common.Price, flags engine.FillFlags) {
	fmt.Fprintf(l.out, "fill    %s %d @ %d vs %s\n", order, qty, price, matched)
}

func (l consoleOrderListener) OnCancel(order common.Order, remainingQty common.Quantity) {
	fmt.Fprintf(l.out, "cancel  %s (%d remaining)\n", order, remainingQty)
}

func (l consoleOrderListener) OnCancelReject(order common.Order, reason string) {
	fmt.Fprintf(l.out, "cancel-reject %s: %s\n", order, reason)
}

func (l consoleOrderListener) OnReplace(order common.Order, currentOpenQty common.Quantity, deltaQty int64, newPrice common.Price) {
	fmt.Fprintf(l.out, "replace %s now %d open (delta %d, price %d)\n", order, currentOpenQty, deltaQty, newPrice)
}

func (l consoleOrderListener) OnReplaceReject(order common.Order, reason string) {
	fmt.Fprintf(l.out, "replace-reject %s: %s\n", order, reason)
}

type consoleTradeListener struct{ out *os.File }

func (l consoleTradeListener) OnTrade(trade common.Trade) {
	fmt.Fprintf(l.out, "trade   %s\n", trade)
}

type consoleBboListener struct{ out *os.File }

func (l consoleBboListener) OnBboChange(symbol string, bidPrice common.Price, bidQty common.Quantity, askPrice common.Price, askQty common.Quantity) {
	fmt.Fprintf(l.out, "bbo     %s %d x %d  |  %d x %d\n", symbol, bidQty, bidPrice, askQty, askPrice)
}
