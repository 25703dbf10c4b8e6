// Package types defines shared data structures used across all packages.
//
// This is the common vocabulary for the backtest core — events, bars,
// signals, orders, fills, and positions. It has no dependencies on internal
// packages, so it can be imported by any layer without creating cycles.
package types

import (
	"time"

	"github.com/shopspring/decimal"
)

// ————————————————————————————————————————————————————————————————————————
// Event envelope
// ————————————————————————————————————————————————————————————————————————

// EventType is the closed set of event kinds the bus dispatches.
type EventType string

const (
	EventBar              EventType = "BAR"
	EventSignal           EventType = "SIGNAL"
	EventOrder            EventType = "ORDER"
	EventFill             EventType = "FILL"
	EventOrderStateChange EventType = "ORDER_STATE_CHANGE"
	EventPortfolioUpdate  EventType = "PORTFOLIO_UPDATE"
	EventBacktestStart    EventType = "BACKTEST_START"
	EventBacktestEnd      EventType = "BACKTEST_END"
)

// Event is the universal envelope carried by the bus. Timestamp is the
// logical (market) time the event pertains to, never wall-clock time —
// replaying the same bar series must always produce the same timestamps.
// Consumed lets an earlier handler short-circuit later handlers within the
// same dispatch without altering the subscriber list.
type Event struct {
	ID        string
	Type      EventType
	Timestamp time.Time
	Payload   any
	Consumed  bool
}

// DedupKey returns the bus's deduplication key for this event, and whether
// one applies. Only SIGNAL, ORDER, and FILL events are deduplicated.
func (e Event) DedupKey() (string, bool) {
	switch e.Type {
	case EventSignal:
		if s, ok := e.Payload.(Signal); ok {
			return "signal:" + s.RuleID, true
		}
	case EventOrder:
		if o, ok := e.Payload.(Order); ok {
			return "order:" + o.OrderID, true
		}
	case EventFill:
		if f, ok := e.Payload.(Fill); ok {
			return "fill:" + f.FillID, true
		}
	}
	return "", false
}

// ————————————————————————————————————————————————————————————————————————
// Bar
// ————————————————————————————————————————————————————————————————————————

// Bar is a single OHLCV record at one timestamp for one symbol. Series are
// ordered strictly by (Symbol, Timestamp).
type Bar struct {
	Symbol    string
	Timestamp time.Time
	Open      decimal.Decimal
	High      decimal.Decimal
	Low       decimal.Decimal
	Close     decimal.Decimal
	Volume    decimal.Decimal
}

// ————————————————————————————————————————————————————————————————————————
// Signal
// ————————————————————————————————————————————————————————————————————————

// Direction is a strategy's directional opinion.
type Direction int

const (
	DirShort Direction = -1
	DirFlat  Direction = 0
	DirLong  Direction = 1
)

// Sign normalizes an arbitrary int to {-1, 0, 1}.
func Sign(n int) Direction {
	switch {
	case n > 0:
		return DirLong
	case n < 0:
		return DirShort
	default:
		return DirFlat
	}
}

// Label returns "BUY", "SELL", or "FLAT" — used to build rule IDs.
func (d Direction) Label() string {
	switch d {
	case DirLong:
		return "BUY"
	case DirShort:
		return "SELL"
	default:
		return "FLAT"
	}
}

// Signal is a strategy's directional opinion for a symbol at a point in
// time. RuleID is the deterministic dedup key the whole pipeline keys on —
// see internal/strategy for how it's constructed.
type Signal struct {
	Symbol    string
	Direction Direction
	Price     decimal.Decimal
	Timestamp time.Time
	RuleID    string
}

// ————————————————————————————————————————————————————————————————————————
// Order
// ————————————————————————————————————————————————————————————————————————

// Side is the direction of an order. Quantity is always positive;
// direction lives entirely in Side.
type Side string

const (
	Buy  Side = "BUY"
	Sell Side = "SELL"
)

// Opposite returns the other side.
func (s Side) Opposite() Side {
	if s == Buy {
		return Sell
	}
	return Buy
}

// OrderType enumerates the supported order types.
type OrderType string

const (
	OrderMarket OrderType = "MARKET"
	OrderLimit  OrderType = "LIMIT"
	OrderStop   OrderType = "STOP"
)

// ActionType distinguishes orders that open new exposure from orders that
// close existing exposure — the Risk Manager tags every order it emits.
type ActionType string

const (
	ActionOpen  ActionType = "OPEN"
	ActionClose ActionType = "CLOSE"
)

// OrderStatus is the order lifecycle state machine:
//
//	CREATED → PENDING → {PARTIAL → FILLED, FILLED, REJECTED, CANCELED}
//
// FILLED, REJECTED, and CANCELED are terminal. PARTIAL may re-enter itself
// with increasing filled quantity.
type OrderStatus string

const (
	StatusCreated  OrderStatus = "CREATED"
	StatusPending  OrderStatus = "PENDING"
	StatusPartial  OrderStatus = "PARTIAL"
	StatusFilled   OrderStatus = "FILLED"
	StatusRejected OrderStatus = "REJECTED"
	StatusCanceled OrderStatus = "CANCELED"
)

// Terminal reports whether a status has no valid outgoing transitions.
func (s OrderStatus) Terminal() bool {
	switch s {
	case StatusFilled, StatusRejected, StatusCanceled:
		return true
	default:
		return false
	}
}

// validTransitions enumerates the state machine's allowed edges. PARTIAL
// self-loops to model successive partial fills of increasing quantity.
var validTransitions = map[OrderStatus]map[OrderStatus]bool{
	StatusCreated: {StatusPending: true, StatusRejected: true},
	StatusPending: {
		StatusPartial:  true,
		StatusFilled:   true,
		StatusRejected: true,
		StatusCanceled: true,
	},
	StatusPartial: {
		StatusPartial:  true,
		StatusFilled:   true,
		StatusCanceled: true,
	},
}

// CanTransition reports whether `to` is a legal next state from `from`.
func CanTransition(from, to OrderStatus) bool {
	return validTransitions[from][to]
}

// Order is a broker-bound instruction. Quantity is always positive; Side
// carries the direction.
type Order struct {
	OrderID    string
	Symbol     string
	Side       Side
	Quantity   decimal.Decimal
	OrderType  OrderType
	LimitPrice decimal.Decimal // zero value means "not set" for MARKET orders
	Status     OrderStatus
	CreatedTS  time.Time
	RuleID     string
	ActionType ActionType
}

// ————————————————————————————————————————————————————————————————————————
// Fill
// ————————————————————————————————————————————————————————————————————————

// Fill confirms partial or full execution of an order. Multiple fills may
// reference one order_id.
type Fill struct {
	FillID     string
	OrderID    string
	Symbol     string
	Side       Side
	Quantity   decimal.Decimal
	Price      decimal.Decimal
	Timestamp  time.Time
	Commission decimal.Decimal
	RuleID     string
}

// ————————————————————————————————————————————————————————————————————————
// Position / Portfolio
// ————————————————————————————————————————————————————————————————————————

// Transaction is one entry in a position's append-only log.
type Transaction struct {
	Timestamp  time.Time
	Side       Side
	Quantity   decimal.Decimal
	Price      decimal.Decimal
	Commission decimal.Decimal
	RealizedPnL decimal.Decimal
}

// Position is the signed net holding in one symbol. Sign convention:
// positive = long, negative = short, zero = flat. CostBasis is defined only
// while Quantity != 0; a full close resets it to zero.
type Position struct {
	Symbol      string
	Quantity    decimal.Decimal
	CostBasis   decimal.Decimal
	RealizedPnL decimal.Decimal
	Log         []Transaction
}

// IsFlat reports whether the position currently holds no exposure.
func (p Position) IsFlat() bool {
	return p.Quantity.IsZero()
}

// SignOf returns the position's direction: DirLong, DirShort, or DirFlat.
func (p Position) SignOf() Direction {
	switch {
	case p.Quantity.IsPositive():
		return DirLong
	case p.Quantity.IsNegative():
		return DirShort
	default:
		return DirFlat
	}
}

// EquityPoint is one sample of the equity curve.
type EquityPoint struct {
	Timestamp time.Time
	Equity    decimal.Decimal
}

// PortfolioSnapshot is the payload published with PORTFOLIO_UPDATE.
type PortfolioSnapshot struct {
	Timestamp   time.Time
	Cash        decimal.Decimal
	Equity      decimal.Decimal
	Positions   map[string]Position
	RealizedPnL decimal.Decimal
}
