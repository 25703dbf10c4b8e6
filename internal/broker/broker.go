package broker

import (
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/admf/trader/internal/bus"
	"github.com/admf/trader/pkg/types"
)

// FillModel selects which bar field a MARKET order fills against.
type FillModel int

const (
	// FillNextOpen fills a MARKET order at the next bar's open — the
	// default, since filling at the same bar's close that produced the
	// signal would be look-ahead bias.
	FillNextOpen FillModel = iota
	// FillCurrentClose fills at the bar that triggered registration's own
	// close, for callers that explicitly want same-bar execution.
	FillCurrentClose
)

// pendingOrder tracks a registered order awaiting its triggering bar.
type pendingOrder struct {
	order      types.Order
	registered bool // true once one bar has been seen since registration
}

// Broker subscribes to ORDER_STATE_CHANGE "→ REGISTERED" and simulates
// execution against the bar stream: MARKET orders fill at the next bar's
// open (or the registering bar's close under FillCurrentClose); LIMIT and
// STOP orders fill when a later bar's range crosses their trigger price,
// and remain PENDING otherwise.
type Broker struct {
	bus       *bus.Bus
	registry  *Registry
	fillModel FillModel
	slippage  SlippageModel
	commission CommissionModel
	logger    *slog.Logger

	pendingBySymbol map[string][]*pendingOrder
}

// New creates a Broker wired to a Registry and bus.
func New(registry *Registry, fillModel FillModel, slippage SlippageModel, commission CommissionModel, b *bus.Bus, logger *slog.Logger) *Broker {
	if logger == nil {
		logger = slog.Default()
	}
	if slippage == nil {
		slippage = NoSlippage{}
	}
	if commission == nil {
		commission = NoCommission{}
	}
	br := &Broker{
		bus:             b,
		registry:        registry,
		fillModel:       fillModel,
		slippage:        slippage,
		commission:      commission,
		logger:          logger.With("component", "broker"),
		pendingBySymbol: make(map[string][]*pendingOrder),
	}
	b.Subscribe(types.EventOrderStateChange, br.onStateChange, 0)
	b.Subscribe(types.EventBar, br.onBar, 5)
	return br
}

// Reset clears all pending orders — a fresh run must not carry over a
// previous run's unfilled LIMIT/STOP orders.
func (b *Broker) Reset() {
	b.pendingBySymbol = make(map[string][]*pendingOrder)
}

// Forget removes an order from the pending book without filling it. The
// coordinator calls this after synthesizing an EOD close fill directly
// (spec §4.5: the coordinator, not the broker, owns EOD detection) so the
// same order isn't filled a second time on the next bar.
func (b *Broker) Forget(orderID string) {
	for symbol, pending := range b.pendingBySymbol {
		kept := pending[:0]
		for _, p := range pending {
			if p.order.OrderID != orderID {
				kept = append(kept, p)
			}
		}
		b.pendingBySymbol[symbol] = kept
	}
}

func (b *Broker) onStateChange(event *types.Event) error {
	change, ok := event.Payload.(StateChange)
	if !ok || change.To != types.StatusPending {
		return nil
	}
	b.pendingBySymbol[change.Order.Symbol] = append(b.pendingBySymbol[change.Order.Symbol], &pendingOrder{order: change.Order})
	return nil
}

// onBar attempts to fill every pending order for the bar's symbol. MARKET
// orders registered on a prior bar fill immediately under FillNextOpen;
// under FillCurrentClose they fill on the very bar that registered them.
// LIMIT/STOP orders fill the first bar whose range crosses their price.
func (b *Broker) onBar(event *types.Event) error {
	bar, ok := event.Payload.(types.Bar)
	if !ok {
		return nil
	}

	remaining := b.pendingBySymbol[bar.Symbol][:0]
	for _, p := range b.pendingBySymbol[bar.Symbol] {
		if b.tryFill(p, bar) {
			continue
		}
		remaining = append(remaining, p)
	}
	b.pendingBySymbol[bar.Symbol] = remaining
	return nil
}

func (b *Broker) tryFill(p *pendingOrder, bar types.Bar) bool {
	switch p.order.OrderType {
	case types.OrderMarket:
		if b.fillModel == FillCurrentClose && !p.registered {
			p.registered = true
			b.fill(p.order, bar.Close, bar.Timestamp)
			return true
		}
		if !p.registered {
			// Next-open model: the bar that registered the order can't
			// fill it yet — mark seen and fill on the following bar.
			p.registered = true
			return false
		}
		b.fill(p.order, bar.Open, bar.Timestamp)
		return true
	case types.OrderLimit, types.OrderStop:
		if crosses(p.order, bar) {
			b.fill(p.order, p.order.LimitPrice, bar.Timestamp)
			return true
		}
		return false
	default:
		return false
	}
}

// crosses reports whether bar's high/low range reaches a LIMIT or STOP
// order's trigger price.
func crosses(order types.Order, bar types.Bar) bool {
	trigger := order.LimitPrice
	switch order.OrderType {
	case types.OrderLimit:
		if order.Side == types.Buy {
			return bar.Low.LessThanOrEqual(trigger)
		}
		return bar.High.GreaterThanOrEqual(trigger)
	case types.OrderStop:
		if order.Side == types.Buy {
			return bar.High.GreaterThanOrEqual(trigger)
		}
		return bar.Low.LessThanOrEqual(trigger)
	default:
		return false
	}
}

func (b *Broker) fill(order types.Order, price decimal.Decimal, ts time.Time) {
	adjusted := b.slippage.Adjust(price, order.Side, order.Quantity)
	commission := b.commission.Compute(order.Quantity, adjusted)

	fillEvent := types.Fill{
		FillID:     uuid.NewString(),
		OrderID:    order.OrderID,
		Symbol:     order.Symbol,
		Side:       order.Side,
		Quantity:   order.Quantity,
		Price:      adjusted,
		Timestamp:  ts,
		Commission: commission,
		RuleID:     order.RuleID,
	}

	b.bus.Publish(&types.Event{
		ID:        fillEvent.FillID,
		Type:      types.EventFill,
		Timestamp: ts,
		Payload:   fillEvent,
	})

	if err := b.registry.Transition(order.OrderID, types.StatusFilled); err != nil {
		b.logger.Error("fill transition failed", "order_id", order.OrderID, "error", err)
	}
}
