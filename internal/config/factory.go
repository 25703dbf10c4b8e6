package config

import (
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/admf/trader/internal/broker"
	"github.com/admf/trader/internal/risk"
)

// BuildSizer translates risk.sizing_method into the concrete Sizer the
// configured method needs.
func (c *Config) BuildSizer() (risk.Sizer, error) {
	switch c.Risk.SizingMethod {
	case "fixed":
		return risk.FixedSizer{Quantity: decimal.NewFromFloat(c.Risk.Fixed.Quantity)}, nil
	case "percent_equity":
		return risk.PercentEquitySizer{Pct: decimal.NewFromFloat(c.Risk.PercentEquity.Pct)}, nil
	case "percent_risk":
		return risk.PercentRiskSizer{
			RiskPct:      decimal.NewFromFloat(c.Risk.PercentRisk.RiskPct),
			StopDistance: decimal.NewFromFloat(c.Risk.PercentRisk.StopDistance),
		}, nil
	case "volatility_target":
		return risk.VolatilityTargetSizer{
			TargetVol:   decimal.NewFromFloat(c.Risk.VolatilityTarget.TargetVol),
			RealizedVol: decimal.NewFromFloat(c.Risk.VolatilityTarget.RealizedVol),
		}, nil
	default:
		return nil, fmt.Errorf("unknown sizing method %q", c.Risk.SizingMethod)
	}
}

// BuildLimits translates risk.limits.* into a risk.Limits value.
func (c *Config) BuildLimits() risk.Limits {
	l := c.Risk.Limits
	return risk.Limits{
		MaxPositions:          l.MaxPositions,
		MaxPositionSize:       decimal.NewFromFloat(l.MaxPositionSize),
		MaxExposure:           decimal.NewFromFloat(l.MaxExposure),
		EnforceSinglePosition: l.EnforceSinglePosition,
	}
}

// BuildFillModel translates broker.fill_model into a broker.FillModel.
func (c *Config) BuildFillModel() broker.FillModel {
	if c.Broker.FillModel == "current_close" {
		return broker.FillCurrentClose
	}
	return broker.FillNextOpen
}

// BuildSlippage translates broker.slippage.* into a broker.SlippageModel.
func (c *Config) BuildSlippage() (broker.SlippageModel, error) {
	s := c.Broker.Slippage
	switch s.Model {
	case "", "none":
		return broker.NoSlippage{}, nil
	case "fixed":
		return broker.FixedSlippage{BasisPoints: decimal.NewFromFloat(s.BasisPoints)}, nil
	case "variable":
		return broker.VariableSlippage{
			BaseBps:         decimal.NewFromFloat(s.BaseBps),
			SizeImpactBps:   decimal.NewFromFloat(s.SizeImpactBps),
			VolatilityBps:   decimal.NewFromFloat(s.VolatilityBps),
			RandomFactorBps: decimal.NewFromFloat(s.RandomFactorBps),
		}, nil
	default:
		return nil, fmt.Errorf("unknown slippage model %q", s.Model)
	}
}

// BuildCommission translates broker.commission.* into a broker.CommissionModel.
func (c *Config) BuildCommission() (broker.CommissionModel, error) {
	cm := c.Broker.Commission
	switch cm.Model {
	case "", "none":
		return broker.NoCommission{}, nil
	case "percentage":
		return broker.PercentageCommission{
			Rate: decimal.NewFromFloat(cm.Rate),
			Min:  decimal.NewFromFloat(cm.Min),
			Max:  decimal.NewFromFloat(cm.Max),
		}, nil
	case "fixed":
		return broker.FixedCommission{PerTrade: decimal.NewFromFloat(cm.PerTrade)}, nil
	case "per_share":
		return broker.PerShareCommission{Rate: decimal.NewFromFloat(cm.Rate)}, nil
	case "tiered":
		schedule := make([]broker.TierSchedule, len(cm.Tiers))
		for i, t := range cm.Tiers {
			schedule[i] = broker.TierSchedule{MinQty: decimal.NewFromFloat(t.MinQty), Rate: decimal.NewFromFloat(t.Rate)}
		}
		return broker.TieredCommission{Schedule: schedule}, nil
	default:
		return nil, fmt.Errorf("unknown commission model %q", cm.Model)
	}
}
