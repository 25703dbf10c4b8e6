package risk

import (
	"testing"

	"github.com/shopspring/decimal"
)

func TestFixedSizerIgnoresInputs(t *testing.T) {
	s := FixedSizer{Quantity: decimal.NewFromInt(7)}
	got := s.Size(decimal.NewFromInt(99999), decimal.NewFromInt(1))
	if !got.Equal(decimal.NewFromInt(7)) {
		t.Fatalf("expected fixed quantity 7, got %s", got)
	}
}

func TestPercentEquitySizer(t *testing.T) {
	s := PercentEquitySizer{Pct: decimal.NewFromFloat(0.1)}
	got := s.Size(decimal.NewFromInt(10000), decimal.NewFromInt(100))
	want := decimal.NewFromInt(10)
	if !got.Equal(want) {
		t.Fatalf("expected %s, got %s", want, got)
	}
}

func TestPercentRiskSizer(t *testing.T) {
	s := PercentRiskSizer{RiskPct: decimal.NewFromFloat(0.02), StopDistance: decimal.NewFromInt(5)}
	got := s.Size(decimal.NewFromInt(10000), decimal.NewFromInt(100))
	want := decimal.NewFromInt(200).Div(decimal.NewFromInt(5))
	if !got.Equal(want) {
		t.Fatalf("expected %s, got %s", want, got)
	}
}

func TestPercentRiskSizerZeroStopDistanceReturnsZero(t *testing.T) {
	s := PercentRiskSizer{RiskPct: decimal.NewFromFloat(0.02), StopDistance: decimal.Zero}
	got := s.Size(decimal.NewFromInt(10000), decimal.NewFromInt(100))
	if !got.IsZero() {
		t.Fatalf("expected zero quantity when stop distance is zero, got %s", got)
	}
}

func TestVolatilityTargetSizer(t *testing.T) {
	s := VolatilityTargetSizer{TargetVol: decimal.NewFromFloat(0.1), RealizedVol: decimal.NewFromFloat(0.2)}
	got := s.Size(decimal.NewFromInt(10000), decimal.NewFromInt(50))
	want := decimal.NewFromInt(10000).Mul(decimal.NewFromFloat(0.1)).Div(decimal.NewFromFloat(0.2)).Div(decimal.NewFromInt(50))
	if !got.Equal(want) {
		t.Fatalf("expected %s, got %s", want, got)
	}
}
