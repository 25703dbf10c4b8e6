// Package strategy bridges an external strategy implementation (a pure
// function of market data to intended direction) to the event bus.
//
// The Adapter subscribes to BAR, invokes the wrapped Strategy's OnBar for
// every bar, and — when the strategy returns a non-zero direction —
// constructs a SIGNAL with a deterministic rule_id. It never tracks
// positions or decides whether a trade is warranted; that's the Risk
// Manager's job (spec §4.3/§4.4).
//
// Grounded on the teacher's strategy.Maker (a bus-facing wrapper around a
// pricing model) and strategy.Inventory's reset-hook convention, but the
// Avellaneda-Stoikov quoting logic itself has no analogue here — this core
// has no live order book to quote against, only bars to react to.
package strategy

import (
	"fmt"

	"github.com/google/uuid"

	"github.com/admf/trader/internal/bus"
	"github.com/admf/trader/pkg/types"
)

// Strategy is the external collaborator's contract (spec §6). Business
// logic for concrete strategies (moving averages, RSI, regime detection) is
// out of scope for the core; MACrossover below is the one reference
// implementation kept in-repo to make the spec's scenarios runnable.
type Strategy interface {
	Name() string
	OnBar(bar types.Bar) types.Direction
	Reset()
	GetParameters() map[string]float64
	SetParameters(params map[string]float64)
	GetParameterSpace() map[string][]float64
}

// Adapter wires a Strategy to the bus: BAR in, SIGNAL out.
type Adapter struct {
	strategy   Strategy
	bus        *bus.Bus
	timeBucket func(bar types.Bar) string
}

// New creates an Adapter for the given strategy. timeBucket discretizes a
// bar's timestamp into the coarse bucket used in rule_id construction; if
// nil, DefaultTimeBucket (YYYYMMDD_HHMM) is used.
func New(s Strategy, b *bus.Bus, timeBucket func(types.Bar) string) *Adapter {
	if timeBucket == nil {
		timeBucket = DefaultTimeBucket
	}
	a := &Adapter{strategy: s, bus: b, timeBucket: timeBucket}
	b.Subscribe(types.EventBar, a.onBar, 0)
	return a
}

// DefaultTimeBucket discretizes a bar's timestamp to minute granularity:
// "YYYYMMDD_HHMM".
func DefaultTimeBucket(bar types.Bar) string {
	return bar.Timestamp.Format("20060102_1504")
}

// RuleID builds the deterministic dedup key: {strategy}_{symbol}_{dir}_group_{bucket}.
func RuleID(strategyName, symbol string, dir types.Direction, bucket string) string {
	return fmt.Sprintf("%s_%s_%s_group_%s", strategyName, symbol, dir.Label(), bucket)
}

func (a *Adapter) onBar(event *types.Event) error {
	bar, ok := event.Payload.(types.Bar)
	if !ok {
		return fmt.Errorf("strategy adapter: unexpected payload type %T", event.Payload)
	}

	dir := a.strategy.OnBar(bar)
	if dir == types.DirFlat {
		return nil
	}

	bucket := a.timeBucket(bar)
	sig := types.Signal{
		Symbol:    bar.Symbol,
		Direction: dir,
		Price:     bar.Close,
		Timestamp: bar.Timestamp,
		RuleID:    RuleID(a.strategy.Name(), bar.Symbol, dir, bucket),
	}

	a.bus.Publish(&types.Event{
		ID:        uuid.NewString(),
		Type:      types.EventSignal,
		Timestamp: bar.Timestamp,
		Payload:   sig,
	})
	return nil
}

// Reset clears the wrapped strategy's own indicator state via its reset
// hook. The Adapter itself holds no per-run state to clear.
func (a *Adapter) Reset() {
	a.strategy.Reset()
}
