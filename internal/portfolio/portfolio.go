// Package portfolio maintains cash, positions, and the equity curve.
//
// Grounded on the teacher's strategy.Inventory — weighted-average cost
// basis, a Snapshot accessor, OnFill-shaped mutation — generalized from a
// single market's fixed YES/NO token pair to an arbitrary map[string]*Position
// keyed by symbol, and from float64 to decimal.Decimal throughout (spec
// money fields are exact, never floating point). The Portfolio is the sole
// owner of Position records (spec §3 ownership rule); it holds no mutex
// because the bus guarantees single-threaded dispatch (spec §5).
package portfolio

import (
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/admf/trader/internal/bus"
	"github.com/admf/trader/pkg/types"
)

// Portfolio subscribes to FILL and BAR, and is the sole owner of position
// and cash state.
type Portfolio struct {
	bus    *bus.Bus
	logger *slog.Logger

	initialCapital decimal.Decimal
	cash           decimal.Decimal
	realizedPnL    decimal.Decimal

	positions map[string]*types.Position
	lastMark  map[string]decimal.Decimal
	equity    []types.EquityPoint
}

// New creates a Portfolio seeded with initialCapital and subscribes it to
// FILL (priority 0) and BAR (priority 10, after the Strategy Adapter's BAR
// handler, so the mark uses the same bar the strategy just reacted to).
func New(initialCapital decimal.Decimal, b *bus.Bus, logger *slog.Logger) *Portfolio {
	if logger == nil {
		logger = slog.Default()
	}
	p := &Portfolio{
		bus:            b,
		logger:         logger.With("component", "portfolio"),
		initialCapital: initialCapital,
		cash:           initialCapital,
		positions:      make(map[string]*types.Position),
		lastMark:       make(map[string]decimal.Decimal),
	}
	b.Subscribe(types.EventFill, p.onFill, 0)
	b.Subscribe(types.EventBar, p.onBar, 10)
	return p
}

// Reset clears positions, cash, equity curve, and realized P&L back to the
// initial state, per spec §4.6.
func (p *Portfolio) Reset() {
	p.cash = p.initialCapital
	p.realizedPnL = decimal.Zero
	p.positions = make(map[string]*types.Position)
	p.lastMark = make(map[string]decimal.Decimal)
	p.equity = nil
}

// Cash returns the current cash balance.
func (p *Portfolio) Cash() decimal.Decimal { return p.cash }

// RealizedPnL returns cumulative realized P&L across all symbols.
func (p *Portfolio) RealizedPnL() decimal.Decimal { return p.realizedPnL }

// CurrentEquity returns cash plus the mark-to-market value of all open
// positions at their last known price — used by the Risk Manager for
// equity-relative sizing and exposure limits.
func (p *Portfolio) CurrentEquity() decimal.Decimal { return p.computeEquity() }

// MarkPrice returns the last price a symbol was marked at, or zero if it
// has never traded or been seen in a bar.
func (p *Portfolio) MarkPrice(symbol string) decimal.Decimal {
	return p.lastMark[symbol]
}

// Equity returns the accumulated equity curve.
func (p *Portfolio) Equity() []types.EquityPoint {
	out := make([]types.EquityPoint, len(p.equity))
	copy(out, p.equity)
	return out
}

// Positions returns a snapshot copy of all positions, keyed by symbol.
func (p *Portfolio) Positions() map[string]types.Position {
	out := make(map[string]types.Position, len(p.positions))
	for sym, pos := range p.positions {
		out[sym] = *pos
	}
	return out
}

// Position returns a snapshot of a single symbol's position, auto-creating
// a flat one if absent — read-only callers never see a nil position.
func (p *Portfolio) Position(symbol string) types.Position {
	return *p.position(symbol)
}

func (p *Portfolio) position(symbol string) *types.Position {
	pos, ok := p.positions[symbol]
	if !ok {
		pos = &types.Position{Symbol: symbol}
		p.positions[symbol] = pos
	}
	return pos
}

// onFill applies spec §4.6 steps 1-6: signed quantity, realized P&L on any
// reduction or flip, weighted-average cost basis update, cash adjustment,
// transaction log append, and PORTFOLIO_UPDATE publication.
func (p *Portfolio) onFill(event *types.Event) error {
	fill, ok := event.Payload.(types.Fill)
	if !ok {
		return nil
	}

	pos := p.position(fill.Symbol)
	q := fill.Quantity
	if fill.Side == types.Sell {
		q = q.Neg()
	}

	priorSign := pos.SignOf()
	newSign := types.Sign(signOfDecimal(q))

	if priorSign != types.DirFlat && newSign != types.DirFlat && priorSign != newSign {
		closedPortion := decimal.Min(pos.Quantity.Abs(), q.Abs())
		realized := closedPortion.Mul(fill.Price.Sub(pos.CostBasis)).Mul(decimal.NewFromInt(int64(priorSign)))
		pos.RealizedPnL = pos.RealizedPnL.Add(realized)
		p.realizedPnL = p.realizedPnL.Add(realized)
	}

	newQ := pos.Quantity.Add(q)
	switch {
	case newQ.IsZero():
		pos.CostBasis = decimal.Zero
	case pos.Quantity.IsZero() || signOfDecimal(pos.Quantity) == signOfDecimal(q):
		oldNotional := pos.CostBasis.Mul(pos.Quantity.Abs())
		addedNotional := fill.Price.Mul(q.Abs())
		pos.CostBasis = oldNotional.Add(addedNotional).Div(newQ.Abs())
	case signOfDecimal(pos.Quantity) == signOfDecimal(newQ):
		// Reduction without a flip: the remaining units keep their cost basis.
	default:
		// Flip: the residual quantity carries a fresh cost basis at the
		// fill price, since the prior exposure has been fully closed.
		pos.CostBasis = fill.Price
	}
	pos.Quantity = newQ

	p.cash = p.cash.Sub(q.Mul(fill.Price)).Sub(fill.Commission)

	pos.Log = append(pos.Log, types.Transaction{
		Timestamp:   fill.Timestamp,
		Side:        fill.Side,
		Quantity:    fill.Quantity,
		Price:       fill.Price,
		Commission:  fill.Commission,
		RealizedPnL: pos.RealizedPnL,
	})

	p.lastMark[fill.Symbol] = fill.Price
	p.publishUpdate(fill.Timestamp)
	return nil
}

// onBar marks the symbol to the bar's close, recomputes equity, and keeps
// one equity-curve sample per bar timestamp (spec §4.6): a bar sharing the
// previous sample's timestamp (another symbol) replaces that sample.
func (p *Portfolio) onBar(event *types.Event) error {
	bar, ok := event.Payload.(types.Bar)
	if !ok {
		return nil
	}
	p.lastMark[bar.Symbol] = bar.Close
	point := types.EquityPoint{Timestamp: bar.Timestamp, Equity: p.computeEquity()}
	if n := len(p.equity); n > 0 && p.equity[n-1].Timestamp.Equal(bar.Timestamp) {
		p.equity[n-1] = point
	} else {
		p.equity = append(p.equity, point)
	}
	p.publishUpdate(bar.Timestamp)
	return nil
}

func (p *Portfolio) computeEquity() decimal.Decimal {
	equity := p.cash
	for sym, pos := range p.positions {
		mark, ok := p.lastMark[sym]
		if !ok {
			continue
		}
		equity = equity.Add(pos.Quantity.Mul(mark))
	}
	return equity
}

// publishUpdate snapshots current state and emits PORTFOLIO_UPDATE.
// PORTFOLIO_UPDATE carries no dedup key (spec §3), so it's never dropped —
// a fresh snapshot on every FILL and every BAR is the point.
func (p *Portfolio) publishUpdate(ts time.Time) {
	p.bus.Publish(&types.Event{
		ID:        uuid.NewString(),
		Type:      types.EventPortfolioUpdate,
		Timestamp: ts,
		Payload: types.PortfolioSnapshot{
			Timestamp:   ts,
			Cash:        p.cash,
			Equity:      p.computeEquity(),
			Positions:   p.Positions(),
			RealizedPnL: p.realizedPnL,
		},
	})
}

func signOfDecimal(d decimal.Decimal) int {
	switch {
	case d.IsPositive():
		return 1
	case d.IsNegative():
		return -1
	default:
		return 0
	}
}
