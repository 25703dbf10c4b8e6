package strategy

import (
	"github.com/shopspring/decimal"

	"github.com/admf/trader/pkg/types"
)

// MACrossover is a simple moving-average crossover reference strategy: long
// when the fast MA is above the slow MA, short when below, flat while
// equal or while either window is still filling. It exists to make spec
// §8's golden-path scenario runnable end-to-end, not as a production
// trading algorithm — real strategies are an external collaborator's
// concern per spec §6/§1.
type MACrossover struct {
	name string
	fast int
	slow int

	closes  []decimal.Decimal
	lastDir types.Direction
}

// NewMACrossover creates a crossover strategy with the given window sizes.
func NewMACrossover(name string, fastWindow, slowWindow int) *MACrossover {
	return &MACrossover{name: name, fast: fastWindow, slow: slowWindow}
}

// Name returns the strategy name used in rule_id construction.
func (m *MACrossover) Name() string { return m.name }

// OnBar appends the bar's close and emits a direction only on the bar where
// the fast/slow relationship actually changes — a steady-state crossing
// doesn't keep re-signaling every bar, since the Risk Manager treats
// "cur == tgt" as a no-op anyway, but re-signaling would burn a fresh
// rule_id (and therefore a fresh dedup slot) every bar for no reason.
func (m *MACrossover) OnBar(bar types.Bar) types.Direction {
	m.closes = append(m.closes, bar.Close)
	if len(m.closes) < m.slow {
		return types.DirFlat
	}

	fastAvg := average(m.closes[len(m.closes)-m.fast:])
	slowAvg := average(m.closes[len(m.closes)-m.slow:])

	var dir types.Direction
	switch {
	case fastAvg.GreaterThan(slowAvg):
		dir = types.DirLong
	case fastAvg.LessThan(slowAvg):
		dir = types.DirShort
	default:
		dir = types.DirFlat
	}

	if dir == m.lastDir {
		return types.DirFlat
	}
	m.lastDir = dir
	return dir
}

// Reset clears all indicator state, including the crossover memory that
// prevents re-signaling — a fresh run must be able to re-detect the very
// first crossover again.
func (m *MACrossover) Reset() {
	m.closes = nil
	m.lastDir = types.DirFlat
}

// GetParameters returns the tunable window sizes.
func (m *MACrossover) GetParameters() map[string]float64 {
	return map[string]float64{"fast": float64(m.fast), "slow": float64(m.slow)}
}

// SetParameters updates the window sizes from an optimizer-supplied map.
func (m *MACrossover) SetParameters(params map[string]float64) {
	if v, ok := params["fast"]; ok {
		m.fast = int(v)
	}
	if v, ok := params["slow"]; ok {
		m.slow = int(v)
	}
}

// GetParameterSpace describes the search space an external optimizer would
// sweep over. The core doesn't implement the search itself (spec §1).
func (m *MACrossover) GetParameterSpace() map[string][]float64 {
	return map[string][]float64{
		"fast": {3, 5, 8, 10},
		"slow": {10, 15, 20, 30},
	}
}

func average(xs []decimal.Decimal) decimal.Decimal {
	sum := decimal.Zero
	for _, x := range xs {
		sum = sum.Add(x)
	}
	return sum.Div(decimal.NewFromInt(int64(len(xs))))
}
