package config

import (
	"os"
	"path/filepath"
	"testing"
)

const sampleYAML = `
initial_capital: 100000
symbols: [MINI]
close_positions_eod: true
risk:
  sizing_method: fixed
  fixed:
    quantity: 10
  limits:
    max_positions: 5
    enforce_single_position: false
broker:
  fill_model: next_open
  slippage:
    model: none
  commission:
    model: none
`

func writeConfig(t *testing.T, contents string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(path, []byte(contents), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoadParsesSchemaFields(t *testing.T) {
	path := writeConfig(t, sampleYAML)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.InitialCapital != 100000 {
		t.Fatalf("expected initial_capital 100000, got %v", cfg.InitialCapital)
	}
	if len(cfg.Symbols) != 1 || cfg.Symbols[0] != "MINI" {
		t.Fatalf("expected symbols [MINI], got %v", cfg.Symbols)
	}
	if !cfg.ClosePositionsEOD {
		t.Fatalf("expected close_positions_eod true")
	}
	if cfg.Risk.SizingMethod != "fixed" || cfg.Risk.Fixed.Quantity != 10 {
		t.Fatalf("expected fixed sizing quantity 10, got %+v", cfg.Risk)
	}
}

func TestLoadAppliesEnvOverrideForInitialCapital(t *testing.T) {
	path := writeConfig(t, sampleYAML)
	t.Setenv("ADMF_INITIAL_CAPITAL", "250000")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.InitialCapital != 250000 {
		t.Fatalf("expected env override to set initial_capital to 250000, got %v", cfg.InitialCapital)
	}
}

func TestValidateRejectsMissingSymbols(t *testing.T) {
	cfg := &Config{InitialCapital: 1000, Risk: RiskConfig{SizingMethod: "fixed"}}
	if err := cfg.Validate(); err == nil {
		t.Fatalf("expected validation error for empty symbols")
	}
}

func TestValidateRejectsUnknownSizingMethod(t *testing.T) {
	cfg := &Config{InitialCapital: 1000, Symbols: []string{"MINI"}, Risk: RiskConfig{SizingMethod: "bogus"}}
	if err := cfg.Validate(); err == nil {
		t.Fatalf("expected validation error for unknown sizing method")
	}
}

func TestValidateAcceptsWellFormedConfig(t *testing.T) {
	cfg := &Config{
		InitialCapital: 1000,
		Symbols:        []string{"MINI"},
		Risk:           RiskConfig{SizingMethod: "percent_equity"},
		Broker:         BrokerConfig{FillModel: "current_close", Slippage: SlippageConfig{Model: "fixed"}, Commission: CommissionConfig{Model: "percentage"}},
	}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("expected valid config to pass, got %v", err)
	}
}
