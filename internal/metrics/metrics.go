// Package metrics exposes Prometheus counters for the backtest core's
// summary statistics (spec §7): orders_rejected, signals_deduped,
// handler_errors, and friends. A fresh backtest run should register its own
// registry (see NewRegistry) rather than relying on the global default, so
// that parallel backtests (spec §5: "each must have its own independent set
// of core component instances") don't trample each other's counters.
package metrics

import (
	dto "github.com/prometheus/client_model/go"

	"github.com/prometheus/client_golang/prometheus"
)

// Registry bundles the counters one backtest run increments. Counters only
// ever increase and a Registry has no reset: one shared by repeated runs
// (such as repeated Coordinator.Run calls) reports totals across all of them.
type Registry struct {
	reg *prometheus.Registry

	SignalsDeduped         prometheus.Counter
	DuplicateEventsDropped prometheus.Counter
	OrdersRejected         prometheus.Counter
	HandlerErrors          prometheus.Counter
	LimitViolations        *prometheus.CounterVec
}

// NewRegistry builds a fresh, independently-registered metrics bundle.
func NewRegistry() *Registry {
	reg := prometheus.NewRegistry()

	r := &Registry{
		reg: reg,
		SignalsDeduped: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "admf_signals_deduped_total",
			Help: "Signals dropped because their rule_id was already processed this run.",
		}),
		DuplicateEventsDropped: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "admf_duplicate_events_dropped_total",
			Help: "Non-signal events dropped by the bus dedup set (orders, fills).",
		}),
		OrdersRejected: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "admf_orders_rejected_total",
			Help: "Orders rejected by the registry or suppressed by a risk limit.",
		}),
		HandlerErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "admf_handler_errors_total",
			Help: "Subscriber handler panics/errors recovered by the bus.",
		}),
		LimitViolations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "admf_limit_violations_total",
			Help: "Risk limit breaches by limit name.",
		}, []string{"limit"}),
	}

	reg.MustRegister(r.SignalsDeduped, r.DuplicateEventsDropped, r.OrdersRejected,
		r.HandlerErrors, r.LimitViolations)

	return r
}

// Snapshot is a point-in-time read of the counters, suitable for embedding
// in a backtest result object (spec §7: "reported as summary counters").
type Snapshot struct {
	SignalsDeduped         float64
	DuplicateEventsDropped float64
	OrdersRejected         float64
	HandlerErrors          float64
}

// Snapshot reads the current counter values.
func (r *Registry) Snapshot() Snapshot {
	return Snapshot{
		SignalsDeduped:         readCounter(r.SignalsDeduped),
		DuplicateEventsDropped: readCounter(r.DuplicateEventsDropped),
		OrdersRejected:         readCounter(r.OrdersRejected),
		HandlerErrors:          readCounter(r.HandlerErrors),
	}
}

func readCounter(c prometheus.Counter) float64 {
	var m dto.Metric
	if err := c.Write(&m); err != nil {
		return 0
	}
	if m.Counter == nil {
		return 0
	}
	return m.Counter.GetValue()
}
