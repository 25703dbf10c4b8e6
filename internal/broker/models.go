package broker

import (
	"github.com/shopspring/decimal"

	"github.com/admf/trader/pkg/types"
)

// SlippageModel adjusts a theoretical fill price for market impact, per
// spec §4.5's enumerated models.
type SlippageModel interface {
	Adjust(price decimal.Decimal, side types.Side, qty decimal.Decimal) decimal.Decimal
}

// NoSlippage applies no adjustment.
type NoSlippage struct{}

func (NoSlippage) Adjust(price decimal.Decimal, _ types.Side, _ decimal.Decimal) decimal.Decimal {
	return price
}

// FixedSlippage moves the price by a constant number of basis points
// against the trader: up for buys, down for sells.
type FixedSlippage struct {
	BasisPoints decimal.Decimal
}

func (s FixedSlippage) Adjust(price decimal.Decimal, side types.Side, _ decimal.Decimal) decimal.Decimal {
	delta := price.Mul(s.BasisPoints).Div(decimal.NewFromInt(10000))
	if side == types.Sell {
		return price.Sub(delta)
	}
	return price.Add(delta)
}

// VariableSlippage scales the basis-point adjustment with order size and a
// volatility estimate, plus a random component supplied by the caller
// (kept deterministic by taking it as an argument rather than sampling
// internally — the core never seeds its own randomness, spec §5).
type VariableSlippage struct {
	BaseBps         decimal.Decimal
	SizeImpactBps   decimal.Decimal // additional bps per unit of qty
	VolatilityBps   decimal.Decimal // additional bps per unit of realized vol
	RealizedVol     decimal.Decimal
	RandomFactorBps decimal.Decimal // pre-sampled jitter, applied as-is
}

func (s VariableSlippage) Adjust(price decimal.Decimal, side types.Side, qty decimal.Decimal) decimal.Decimal {
	bps := s.BaseBps.
		Add(s.SizeImpactBps.Mul(qty)).
		Add(s.VolatilityBps.Mul(s.RealizedVol)).
		Add(s.RandomFactorBps)
	delta := price.Mul(bps).Div(decimal.NewFromInt(10000))
	if side == types.Sell {
		return price.Sub(delta)
	}
	return price.Add(delta)
}

// CommissionModel computes the commission owed on a fill, per spec §4.5's
// enumerated models.
type CommissionModel interface {
	Compute(qty, price decimal.Decimal) decimal.Decimal
}

// NoCommission charges nothing.
type NoCommission struct{}

func (NoCommission) Compute(decimal.Decimal, decimal.Decimal) decimal.Decimal { return decimal.Zero }

// PercentageCommission charges a rate of notional, clamped to [Min, Max]
// (Max of zero means unbounded).
type PercentageCommission struct {
	Rate decimal.Decimal
	Min  decimal.Decimal
	Max  decimal.Decimal
}

func (c PercentageCommission) Compute(qty, price decimal.Decimal) decimal.Decimal {
	fee := qty.Mul(price).Abs().Mul(c.Rate)
	if fee.LessThan(c.Min) {
		fee = c.Min
	}
	if !c.Max.IsZero() && fee.GreaterThan(c.Max) {
		fee = c.Max
	}
	return fee
}

// FixedCommission charges a flat amount per trade regardless of size.
type FixedCommission struct {
	PerTrade decimal.Decimal
}

func (c FixedCommission) Compute(decimal.Decimal, decimal.Decimal) decimal.Decimal {
	return c.PerTrade
}

// PerShareCommission charges a flat amount per unit traded.
type PerShareCommission struct {
	Rate decimal.Decimal
}

func (c PerShareCommission) Compute(qty, _ decimal.Decimal) decimal.Decimal {
	return qty.Abs().Mul(c.Rate)
}

// TierSchedule is one breakpoint of a TieredCommission schedule: orders
// with quantity at or above MinQty use Rate (per-unit).
type TierSchedule struct {
	MinQty decimal.Decimal
	Rate   decimal.Decimal
}

// TieredCommission applies a per-unit rate that decreases (or increases)
// with size, per a caller-supplied schedule sorted ascending by MinQty.
type TieredCommission struct {
	Schedule []TierSchedule
}

func (c TieredCommission) Compute(qty, _ decimal.Decimal) decimal.Decimal {
	if len(c.Schedule) == 0 {
		return decimal.Zero
	}
	rate := c.Schedule[0].Rate
	absQty := qty.Abs()
	for _, tier := range c.Schedule {
		if absQty.GreaterThanOrEqual(tier.MinQty) {
			rate = tier.Rate
		}
	}
	return absQty.Mul(rate)
}
