// Package risk translates SIGNAL events into ORDER events: idempotence,
// direction tracking, position sizing, and limit enforcement.
//
// Grounded on web3guy0-polybot's risk.Manager/risk.Sizer (validate-then-size
// pipeline, equity-relative sizing formulas) and the teacher's risk.Manager
// (per-symbol/global exposure configuration shape), but re-architected from
// a goroutine-and-channel monitor that emits kill signals into a
// synchronous bus subscriber that emits orders directly — this core has no
// live kill-switch concept (see REDESIGN FLAGS); limit breaches suppress
// one order rather than halting the book.
package risk

import (
	"log/slog"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/admf/trader/internal/bus"
	"github.com/admf/trader/internal/metrics"
	"github.com/admf/trader/pkg/types"
)

// PortfolioView is the read-only slice of Portfolio the Risk Manager needs:
// current equity for sizing/exposure, and per-symbol signed position and
// mark price for limit checks. Satisfied by *portfolio.Portfolio.
type PortfolioView interface {
	CurrentEquity() decimal.Decimal
	Position(symbol string) types.Position
	Positions() map[string]types.Position
	MarkPrice(symbol string) decimal.Decimal
}

// Manager is the Risk Manager: SIGNAL in, ORDER out.
type Manager struct {
	bus       *bus.Bus
	portfolio PortfolioView
	sizer     Sizer
	limits    Limits
	metrics   *metrics.Registry
	logger    *slog.Logger

	processedRuleIDs   map[string]bool
	currentDirection   map[string]types.Direction
	openOrdersBySymbol map[string]string
}

// New creates a Risk Manager and subscribes it to SIGNAL at priority 0 and
// to FILL at priority 10 (after the Portfolio has applied the fill).
func New(sizer Sizer, limits Limits, portfolio PortfolioView, b *bus.Bus, reg *metrics.Registry, logger *slog.Logger) *Manager {
	if logger == nil {
		logger = slog.Default()
	}
	m := &Manager{
		bus:                b,
		portfolio:          portfolio,
		sizer:              sizer,
		limits:             limits,
		metrics:            reg,
		logger:             logger.With("component", "risk"),
		processedRuleIDs:   make(map[string]bool),
		currentDirection:   make(map[string]types.Direction),
		openOrdersBySymbol: make(map[string]string),
	}
	b.Subscribe(types.EventSignal, m.onSignal, 0)
	b.Subscribe(types.EventFill, m.onFill, 10)
	return m
}

// onFill recomputes current_direction for the filled symbol from the sign
// of the portfolio's actual resulting position, so partial fills and
// closes not initiated by a signal (EOD) keep it in step with the position.
func (m *Manager) onFill(event *types.Event) error {
	fill, ok := event.Payload.(types.Fill)
	if !ok {
		return nil
	}
	m.currentDirection[fill.Symbol] = m.portfolio.Position(fill.Symbol).SignOf()
	return nil
}

// Reset clears processed_rule_ids, current_direction, and
// open_orders_by_symbol, per spec §4.4.
func (m *Manager) Reset() {
	m.processedRuleIDs = make(map[string]bool)
	m.currentDirection = make(map[string]types.Direction)
	m.openOrdersBySymbol = make(map[string]string)
}

// CurrentDirection returns the Risk Manager's belief about a symbol's net
// direction — exposed for tests.
func (m *Manager) CurrentDirection(symbol string) types.Direction {
	return m.currentDirection[symbol]
}

// onSignal implements spec §4.4's seven-step algorithm.
func (m *Manager) onSignal(event *types.Event) error {
	sig, ok := event.Payload.(types.Signal)
	if !ok {
		return nil
	}

	if m.processedRuleIDs[sig.RuleID] {
		return nil
	}
	m.processedRuleIDs[sig.RuleID] = true

	cur := m.currentDirection[sig.Symbol]
	tgt := types.Sign(int(sig.Direction))

	if tgt == types.DirFlat {
		return nil
	}

	if cur == tgt {
		return nil
	}

	if cur != types.DirFlat && tgt != cur {
		pos := m.portfolio.Position(sig.Symbol)
		m.emitOrder(types.Order{
			OrderID:    uuid.NewString(),
			Symbol:     sig.Symbol,
			Side:       sideFor(cur).Opposite(),
			Quantity:   pos.Quantity.Abs(),
			OrderType:  types.OrderMarket,
			Status:     types.StatusCreated,
			CreatedTS:  sig.Timestamp,
			RuleID:     sig.RuleID + "_CLOSE",
			ActionType: types.ActionClose,
		})
	}

	if tgt != types.DirFlat {
		equity := m.portfolio.CurrentEquity()
		qty := m.sizer.Size(equity, sig.Price)
		if qty.IsPositive() {
			if v := m.checkLimits(sig.Symbol, qty, sig.Price, equity); v != nil {
				m.logger.Info("order suppressed by risk limit",
					"symbol", sig.Symbol, "rule_id", sig.RuleID, "rule", v.Rule, "detail", v.Detail)
				if m.metrics != nil {
					m.metrics.LimitViolations.WithLabelValues(v.Rule).Inc()
					m.metrics.OrdersRejected.Inc()
				}
			} else {
				m.emitOrder(types.Order{
					OrderID:    uuid.NewString(),
					Symbol:     sig.Symbol,
					Side:       sideFor(tgt),
					Quantity:   qty,
					OrderType:  types.OrderMarket,
					Status:     types.StatusCreated,
					CreatedTS:  sig.Timestamp,
					RuleID:     sig.RuleID + "_OPEN",
					ActionType: types.ActionOpen,
				})
			}
		}
	}

	m.currentDirection[sig.Symbol] = tgt
	return nil
}

func (m *Manager) checkLimits(symbol string, qty, price, equity decimal.Decimal) *Violation {
	positions := m.portfolio.Positions()
	signed := make(map[string]decimal.Decimal, len(positions))
	existingExposure := decimal.Zero
	for sym, pos := range positions {
		signed[sym] = pos.Quantity
		if sym != symbol {
			existingExposure = existingExposure.Add(pos.Quantity.Abs().Mul(m.portfolio.MarkPrice(sym)))
		}
	}
	return Check(m.limits, symbol, qty, price, equity, existingExposure, signed)
}

func (m *Manager) emitOrder(order types.Order) {
	m.openOrdersBySymbol[order.Symbol] = order.OrderID
	m.bus.Publish(&types.Event{
		ID:        order.OrderID,
		Type:      types.EventOrder,
		Timestamp: order.CreatedTS,
		Payload:   order,
	})
}

func sideFor(d types.Direction) types.Side {
	if d == types.DirShort {
		return types.Sell
	}
	return types.Buy
}
