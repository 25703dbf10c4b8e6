// Package coordinator orchestrates a single backtest run: reset, wiring,
// the bar-driven loop, EOD close injection, and result collection.
//
// Grounded on the teacher's engine.Engine — the central orchestrator owning
// references to every subsystem and driving its lifecycle (New → Start →
// Stop) — but reduced from a goroutine-per-market WebSocket-driven engine
// to the single-threaded, bar-driven loop spec §5 requires: there is
// exactly one driver, and it owns the only call to Publish for BAR events.
package coordinator

import (
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/admf/trader/internal/broker"
	"github.com/admf/trader/internal/bus"
	"github.com/admf/trader/internal/data"
	"github.com/admf/trader/internal/metrics"
	"github.com/admf/trader/internal/portfolio"
	"github.com/admf/trader/internal/risk"
	"github.com/admf/trader/internal/strategy"
	"github.com/admf/trader/pkg/types"
)

// Resettable is implemented by every core component with per-run state.
type Resettable interface{ Reset() }

// Coordinator wires and drives one backtest run.
type Coordinator struct {
	bus             *bus.Bus
	dataHandler     *data.Handler
	strategyAdapter *strategy.Adapter
	riskManager     *risk.Manager
	registry        *broker.Registry
	brokerSvc       *broker.Broker
	portfolio       *portfolio.Portfolio
	metrics         *metrics.Registry
	logger          *slog.Logger

	closePositionsEOD bool
	lastDate          map[string]string

	cancelRequested atomic.Bool
}

// New wires a Coordinator from already-constructed components. Wiring
// (subscribing handlers to the bus) happens in each component's own
// constructor; the Coordinator only holds references for reset and for the
// run loop.
func New(
	b *bus.Bus,
	dataHandler *data.Handler,
	strategyAdapter *strategy.Adapter,
	riskManager *risk.Manager,
	registry *broker.Registry,
	brokerSvc *broker.Broker,
	port *portfolio.Portfolio,
	reg *metrics.Registry,
	closePositionsEOD bool,
	logger *slog.Logger,
) *Coordinator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Coordinator{
		bus:               b,
		dataHandler:       dataHandler,
		strategyAdapter:   strategyAdapter,
		riskManager:       riskManager,
		registry:          registry,
		brokerSvc:         brokerSvc,
		portfolio:         port,
		metrics:           reg,
		logger:            logger.With("component", "coordinator"),
		closePositionsEOD: closePositionsEOD,
		lastDate:          make(map[string]string),
	}
}

// Cancel requests a cooperative stop. The current bar's handler chain
// always completes; the run then exits after publishing BACKTEST_END.
func (c *Coordinator) Cancel() {
	c.cancelRequested.Store(true)
}

// Result is everything a finished run surfaces: the Portfolio's view
// (equity curve, final positions, realized P&L), the Registry's full
// order log, and the bus/risk summary counters (spec §7).
type Result struct {
	EquityCurve  []types.EquityPoint
	Positions    map[string]types.Position
	RealizedPnL  decimal.Decimal
	FinalCash    decimal.Decimal
	Orders       []types.Order
	Metrics      metrics.Snapshot
	BarsProcessed int
	Canceled     bool
}

// Run executes the mandatory reset phase, publishes BACKTEST_START, drives
// the Data Handler to exhaustion (injecting EOD closes when configured),
// publishes BACKTEST_END, and returns the aggregated Result. Per spec
// §4.7, reset must run before every invocation of Run, including the
// first — callers never skip it.
func (c *Coordinator) Run() Result {
	c.reset()
	c.cancelRequested.Store(false)

	// Event timestamps are logical (market) time: no bar has been seen yet at
	// BACKTEST_START, so it carries the zero time; BACKTEST_END carries the
	// last processed bar's timestamp.
	c.bus.Publish(&types.Event{ID: uuid.NewString(), Type: types.EventBacktestStart})

	var lastTS time.Time
	barsProcessed := 0
	canceled := false
	for {
		if c.cancelRequested.Load() {
			canceled = true
			break
		}
		bar, ok := c.dataHandler.Advance()
		if !ok {
			break
		}

		if c.closePositionsEOD {
			c.maybeInjectEODClose(bar)
		}
		c.lastDate[bar.Symbol] = dateOf(bar.Timestamp)

		c.dataHandler.Publish(bar)
		lastTS = bar.Timestamp
		barsProcessed++
	}

	c.bus.Publish(&types.Event{ID: uuid.NewString(), Type: types.EventBacktestEnd, Timestamp: lastTS})

	return Result{
		EquityCurve:   c.portfolio.Equity(),
		Positions:     c.portfolio.Positions(),
		RealizedPnL:   c.portfolio.RealizedPnL(),
		FinalCash:     c.portfolio.Cash(),
		Orders:        c.registry.All(),
		Metrics:       c.metrics.Snapshot(),
		BarsProcessed: barsProcessed,
		Canceled:      canceled,
	}
}

// reset runs the mandatory reset phase (spec §4.7 step 1) across every
// stateful component, in an order that doesn't matter functionally (each
// component only clears its own state) but is listed here in the spec's
// own enumeration order for readability.
func (c *Coordinator) reset() {
	c.bus.Reset()
	c.riskManager.Reset()
	c.registry.Reset()
	c.brokerSvc.Reset()
	c.portfolio.Reset()
	c.dataHandler.Reset()
	c.strategyAdapter.Reset()
	c.lastDate = make(map[string]string)
}

// maybeInjectEODClose detects a calendar-date change for bar.Symbol versus
// the last bar seen for that symbol and, if the symbol is currently
// non-flat, synthesizes an immediate CLOSE — filled at the position's last
// mark, not the new day's opening bar — so the position is flat before the
// strategy ever observes the new day's first bar (spec §4.5/§8 scenario 5).
func (c *Coordinator) maybeInjectEODClose(bar types.Bar) {
	prevDate, seen := c.lastDate[bar.Symbol]
	today := dateOf(bar.Timestamp)
	if !seen || prevDate == today {
		return
	}

	pos := c.portfolio.Position(bar.Symbol)
	if pos.IsFlat() {
		return
	}

	price := c.portfolio.MarkPrice(bar.Symbol)
	if price.IsZero() {
		price = pos.CostBasis
	}

	side := types.Sell
	if pos.Quantity.IsNegative() {
		side = types.Buy
	}

	order := types.Order{
		OrderID:    uuid.NewString(),
		Symbol:     bar.Symbol,
		Side:       side,
		Quantity:   pos.Quantity.Abs(),
		OrderType:  types.OrderMarket,
		Status:     types.StatusCreated,
		CreatedTS:  bar.Timestamp,
		RuleID:     "EOD_" + prevDate,
		ActionType: types.ActionClose,
	}

	if err := c.registry.Register(order); err != nil {
		c.logger.Error("EOD close registration failed", "symbol", bar.Symbol, "error", err)
		return
	}

	fill := types.Fill{
		FillID:    uuid.NewString(),
		OrderID:   order.OrderID,
		Symbol:    order.Symbol,
		Side:      order.Side,
		Quantity:  order.Quantity,
		Price:     price,
		Timestamp: bar.Timestamp,
		RuleID:    order.RuleID,
	}
	c.bus.Publish(&types.Event{ID: fill.FillID, Type: types.EventFill, Timestamp: bar.Timestamp, Payload: fill})

	if err := c.registry.Transition(order.OrderID, types.StatusFilled); err != nil {
		c.logger.Error("EOD close fill transition failed", "order_id", order.OrderID, "error", err)
	}
	c.brokerSvc.Forget(order.OrderID)
}

func dateOf(ts time.Time) string {
	return ts.Format("2006-01-02")
}
