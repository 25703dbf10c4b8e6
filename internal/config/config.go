// Package config defines all configuration for the backtest core. Config is
// loaded from a YAML file with overridable fields via ADMF_* environment
// variables.
package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/viper"
)

// Config is the top-level configuration. Maps directly to the §6 schema.
type Config struct {
	InitialCapital    float64      `mapstructure:"initial_capital"`
	Symbols           []string     `mapstructure:"symbols"`
	ClosePositionsEOD bool         `mapstructure:"close_positions_eod"`
	Risk              RiskConfig   `mapstructure:"risk"`
	Broker            BrokerConfig `mapstructure:"broker"`
	Logging           LoggingConfig `mapstructure:"logging"`
	Dashboard         DashboardConfig `mapstructure:"dashboard"`
}

// DashboardConfig controls the optional read-only status HTTP surface.
type DashboardConfig struct {
	Enabled bool `mapstructure:"enabled"`
	Port    int  `mapstructure:"port"`
}

// RiskConfig selects the sizing method and its limits.
type RiskConfig struct {
	SizingMethod string      `mapstructure:"sizing_method"` // fixed | percent_equity | percent_risk | volatility_target
	Fixed        FixedSizingConfig `mapstructure:"fixed"`
	PercentEquity PercentEquitySizingConfig `mapstructure:"percent_equity"`
	PercentRisk  PercentRiskSizingConfig `mapstructure:"percent_risk"`
	VolatilityTarget VolatilityTargetSizingConfig `mapstructure:"volatility_target"`
	Limits       LimitsConfig `mapstructure:"limits"`
}

type FixedSizingConfig struct {
	Quantity float64 `mapstructure:"quantity"`
}

type PercentEquitySizingConfig struct {
	Pct float64 `mapstructure:"pct"`
}

type PercentRiskSizingConfig struct {
	RiskPct      float64 `mapstructure:"risk_pct"`
	StopDistance float64 `mapstructure:"stop_distance"`
}

type VolatilityTargetSizingConfig struct {
	TargetVol   float64 `mapstructure:"target_vol"`
	RealizedVol float64 `mapstructure:"realized_vol"`
}

// LimitsConfig maps to risk.limits.* in §6.
type LimitsConfig struct {
	MaxPositions          int     `mapstructure:"max_positions"`
	MaxPositionSize       float64 `mapstructure:"max_position_size"`
	MaxExposure           float64 `mapstructure:"max_exposure"`
	EnforceSinglePosition bool    `mapstructure:"enforce_single_position"`
}

// BrokerConfig maps to broker.* in §6.
type BrokerConfig struct {
	FillModel  string           `mapstructure:"fill_model"` // next_open | current_close
	Slippage   SlippageConfig   `mapstructure:"slippage"`
	Commission CommissionConfig `mapstructure:"commission"`
}

type SlippageConfig struct {
	Model           string  `mapstructure:"model"` // none | fixed | variable
	BasisPoints     float64 `mapstructure:"basis_points"`
	BaseBps         float64 `mapstructure:"base_bps"`
	SizeImpactBps   float64 `mapstructure:"size_impact_bps"`
	VolatilityBps   float64 `mapstructure:"volatility_bps"`
	RandomFactorBps float64 `mapstructure:"random_factor_bps"`
}

type CommissionConfig struct {
	Model    string         `mapstructure:"model"` // none | percentage | fixed | per_share | tiered
	Rate     float64        `mapstructure:"rate"`
	Min      float64        `mapstructure:"min"`
	Max      float64        `mapstructure:"max"`
	PerTrade float64        `mapstructure:"per_trade"`
	Tiers    []TierConfig   `mapstructure:"tiers"`
}

type TierConfig struct {
	MinQty float64 `mapstructure:"min_qty"`
	Rate   float64 `mapstructure:"rate"`
}

type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// Load reads config from a YAML file with ADMF_* env var overrides.
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetEnvPrefix("ADMF")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if capital := os.Getenv("ADMF_INITIAL_CAPITAL"); capital != "" {
		var parsed float64
		if _, err := fmt.Sscanf(capital, "%f", &parsed); err == nil {
			cfg.InitialCapital = parsed
		}
	}
	if os.Getenv("ADMF_CLOSE_POSITIONS_EOD") == "true" || os.Getenv("ADMF_CLOSE_POSITIONS_EOD") == "1" {
		cfg.ClosePositionsEOD = true
	}

	return &cfg, nil
}

// Validate checks all required fields and value ranges, per spec §7's
// "unrecoverable ValidationError of configuration (fatal, before the run
// starts)".
func (c *Config) Validate() error {
	if c.InitialCapital <= 0 {
		return fmt.Errorf("initial_capital must be > 0")
	}
	if len(c.Symbols) == 0 {
		return fmt.Errorf("symbols must list at least one symbol")
	}
	switch c.Risk.SizingMethod {
	case "fixed", "percent_equity", "percent_risk", "volatility_target":
	default:
		return fmt.Errorf("risk.sizing_method must be one of fixed, percent_equity, percent_risk, volatility_target")
	}
	switch c.Broker.FillModel {
	case "", "next_open", "current_close":
	default:
		return fmt.Errorf("broker.fill_model must be one of next_open, current_close")
	}
	switch c.Broker.Slippage.Model {
	case "", "none", "fixed", "variable":
	default:
		return fmt.Errorf("broker.slippage.model must be one of none, fixed, variable")
	}
	switch c.Broker.Commission.Model {
	case "", "none", "percentage", "fixed", "per_share", "tiered":
	default:
		return fmt.Errorf("broker.commission.model must be one of none, percentage, fixed, per_share, tiered")
	}
	return nil
}
