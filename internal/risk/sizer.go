package risk

import (
	"github.com/shopspring/decimal"
)

// Sizer computes an order quantity for a newly accepted OPEN direction.
// Grounded on web3guy0-polybot's risk.Sizer.Calculate (equity-relative
// sizing formulas), generalized from a single risk-pct/stop-distance shape
// to the four sizing methods spec §4.4 enumerates.
type Sizer interface {
	Size(equity, price decimal.Decimal) decimal.Decimal
}

// FixedSizer always returns the same configured quantity.
type FixedSizer struct {
	Quantity decimal.Decimal
}

func (s FixedSizer) Size(decimal.Decimal, decimal.Decimal) decimal.Decimal {
	return s.Quantity
}

// PercentEquitySizer sizes as a fraction of current equity, converted to
// units at the signal price.
type PercentEquitySizer struct {
	Pct decimal.Decimal
}

func (s PercentEquitySizer) Size(equity, price decimal.Decimal) decimal.Decimal {
	if price.IsZero() {
		return decimal.Zero
	}
	return equity.Mul(s.Pct).Div(price)
}

// PercentRiskSizer sizes so that a move of StopDistance against the
// position risks exactly RiskPct of equity — the same formula as
// web3guy0-polybot's risk.Sizer.Calculate (size = risk_amount / risk_per_unit).
type PercentRiskSizer struct {
	RiskPct      decimal.Decimal
	StopDistance decimal.Decimal
}

func (s PercentRiskSizer) Size(equity, _ decimal.Decimal) decimal.Decimal {
	if s.StopDistance.IsZero() {
		return decimal.Zero
	}
	riskAmount := equity.Mul(s.RiskPct)
	return riskAmount.Div(s.StopDistance)
}

// VolatilityTargetSizer scales quantity inversely with realized volatility
// so that every position targets the same annualized risk contribution.
type VolatilityTargetSizer struct {
	TargetVol   decimal.Decimal
	RealizedVol decimal.Decimal
}

func (s VolatilityTargetSizer) Size(equity, price decimal.Decimal) decimal.Decimal {
	if s.RealizedVol.IsZero() || price.IsZero() {
		return decimal.Zero
	}
	notional := equity.Mul(s.TargetVol).Div(s.RealizedVol)
	return notional.Div(price)
}
