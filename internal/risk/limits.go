package risk

import (
	"github.com/shopspring/decimal"
)

// Limits gates an OPEN order before it's emitted. Violations suppress the
// order (and are logged/counted) but never block the direction-state
// update, per spec §4.4 — the Risk Manager must still track what it
// believes the net position should be, even when it can't act on it, or
// every subsequent bar would re-attempt the same rejected open.
//
// Grounded on the teacher's risk.Manager per-market/global exposure config
// shape (MaxPositionPerMarket/MaxGlobalExposure), generalized from a
// kill-switch trigger to a per-order suppression check (see REDESIGN FLAGS).
type Limits struct {
	MaxPositions          int
	MaxPositionSize       decimal.Decimal // zero means unlimited
	MaxExposure           decimal.Decimal // fraction of equity, zero means unlimited
	EnforceSinglePosition bool
}

// Violation describes why an OPEN order was suppressed.
type Violation struct {
	Rule   string
	Detail string
}

// Check evaluates all configured limits against a proposed open of qty
// units of symbol at price. positions holds signed quantity per symbol
// (for single-position/position-count checks); existingExposureNotional is
// the sum of |qty × mark price| across all symbols other than the one
// being opened, precomputed by the caller from the portfolio's marks.
// Returns the first violation found, or nil if the order may proceed.
func Check(lim Limits, symbol string, qty, price, equity, existingExposureNotional decimal.Decimal, positions map[string]decimal.Decimal) *Violation {
	if lim.EnforceSinglePosition {
		for sym, q := range positions {
			if sym != symbol && !q.IsZero() {
				return &Violation{Rule: "enforce_single_position", Detail: "symbol " + sym + " is non-flat"}
			}
		}
	}

	if lim.MaxPositions > 0 {
		openCount := 0
		for sym, q := range positions {
			if !q.IsZero() && sym != symbol {
				openCount++
			}
		}
		openCount++ // the position being opened now
		if openCount > lim.MaxPositions {
			return &Violation{Rule: "max_positions", Detail: "position count limit reached"}
		}
	}

	if !lim.MaxPositionSize.IsZero() && qty.GreaterThan(lim.MaxPositionSize) {
		return &Violation{Rule: "max_position_size", Detail: "requested quantity exceeds limit"}
	}

	if !lim.MaxExposure.IsZero() && !equity.IsZero() {
		exposure := qty.Mul(price).Abs().Add(existingExposureNotional)
		if exposure.Div(equity).GreaterThan(lim.MaxExposure) {
			return &Violation{Rule: "max_exposure", Detail: "aggregate exposure exceeds limit"}
		}
	}

	return nil
}
