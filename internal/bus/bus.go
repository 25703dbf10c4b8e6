// Package bus implements the typed publish/subscribe event bus that carries
// every BAR, SIGNAL, ORDER, FILL, ORDER_STATE_CHANGE, and PORTFOLIO_UPDATE
// through the backtest pipeline.
//
// The bus is single-threaded: Publish must only ever be called from the
// coordinator's driver goroutine (spec §5), and the bus holds no locks.
// Subscribe may be called while a dispatch is in flight; it installs a fresh
// subscriber list, so the new handler takes effect on the next event, not
// the current one.
package bus

import (
	"log/slog"

	"github.com/admf/trader/internal/errs"
	"github.com/admf/trader/internal/metrics"
	"github.com/admf/trader/pkg/types"
)

// Handler processes one event. Returning an error does not stop dispatch —
// the bus recovers it as a HandlerException and continues to the next
// subscriber, per spec §4.1 failure policy.
type Handler func(event *types.Event) error

type subscription struct {
	priority int
	seq      int // registration order, for stable sort among equal priorities
	handler  Handler
}

// Bus is a typed pub/sub hub with ordered, single-threaded dispatch,
// per-run deduplication, and a reset that clears run state but never
// subscriptions.
type Bus struct {
	subs    map[types.EventType][]subscription
	nextSeq int

	dedup map[string]bool

	metrics *metrics.Registry
	logger  *slog.Logger
}

// New creates an empty bus. metrics may be nil, in which case drop/error
// counts are simply not recorded.
func New(reg *metrics.Registry, logger *slog.Logger) *Bus {
	if logger == nil {
		logger = slog.Default()
	}
	return &Bus{
		subs:    make(map[types.EventType][]subscription),
		dedup:   make(map[string]bool),
		metrics: reg,
		logger:  logger.With("component", "bus"),
	}
}

// Subscribe registers a handler for an event type. Handlers for the same
// type are dispatched in ascending priority, then registration order.
// Subscribing during a dispatch takes effect starting with the next event,
// never the one currently being dispatched.
func (b *Bus) Subscribe(eventType types.EventType, handler Handler, priority int) {
	sub := subscription{priority: priority, seq: b.nextSeq, handler: handler}
	b.nextSeq++

	// Build a new slice rather than appending in place: a dispatch in flight
	// iterates the old one, and sorting its backing array would change it.
	old := b.subs[eventType]
	list := make([]subscription, len(old), len(old)+1)
	copy(list, old)
	list = append(list, sub)
	sortSubscriptions(list)
	b.subs[eventType] = list
}

// Unsubscribe removes every registered subscription whose handler pointer
// matches. Handler values aren't comparable in general, so the common
// pattern is to keep a reference to the func you subscribed and pass
// exactly that reference back.
func (b *Bus) Unsubscribe(eventType types.EventType, handler Handler) {
	list := b.subs[eventType]
	if len(list) == 0 {
		return
	}
	kept := list[:0]
	target := handlerKey(handler)
	for _, s := range list {
		if handlerKey(s.handler) != target {
			kept = append(kept, s)
		}
	}
	b.subs[eventType] = kept
}

// Publish synchronously invokes every registered handler for event.Type,
// in priority/registration order, and returns how many handlers actually
// ran. If the event carries a dedup key already seen this run, it is
// dropped and zero handlers run.
//
// Publish is not reentrant in the sense of interleaving: if a handler
// itself calls Publish with a new event, that nested publish completes in
// full (depth-first) before control returns to the outer handler list —
// this falls out naturally from Go's call stack, since there is no event
// queue to defer onto.
func (b *Bus) Publish(event *types.Event) int {
	if key, ok := event.DedupKey(); ok {
		if b.dedup[key] {
			b.recordDrop(event.Type)
			return 0
		}
		b.dedup[key] = true
	}

	handlers := b.subs[event.Type]
	invoked := 0
	for _, sub := range handlers {
		if event.Consumed {
			break
		}
		invoked++
		b.invoke(sub.handler, event)
	}
	return invoked
}

// invoke calls a handler, recovering both panics and returned errors so one
// misbehaving subscriber never stops dispatch to the rest (spec §4.1
// failure policy / §7 HandlerException).
func (b *Bus) invoke(h Handler, event *types.Event) {
	defer func() {
		if r := recover(); r != nil {
			b.logHandlerError(event, errs.NewHandlerException(event.ID, asError(r)))
		}
	}()
	if err := h(event); err != nil {
		b.logHandlerError(event, errs.NewHandlerException(event.ID, err))
	}
}

func (b *Bus) logHandlerError(event *types.Event, err error) {
	b.logger.Error("handler error", "event_id", event.ID, "event_type", string(event.Type), "error", err)
	if b.metrics != nil {
		b.metrics.HandlerErrors.Inc()
	}
}

func (b *Bus) recordDrop(t types.EventType) {
	if b.metrics == nil {
		return
	}
	if t == types.EventSignal {
		b.metrics.SignalsDeduped.Inc()
	} else {
		b.metrics.DuplicateEventsDropped.Inc()
	}
}

// Reset clears the deduplication set. Subscriptions are intentionally left
// intact — per spec §4.1, reset must not require re-wiring the pipeline.
func (b *Bus) Reset() {
	b.dedup = make(map[string]bool)
}

func asError(r any) error {
	if err, ok := r.(error); ok {
		return err
	}
	return &panicValue{r}
}

type panicValue struct{ v any }

func (p *panicValue) Error() string {
	return "panic: " + toString(p.v)
}

func toString(v any) string {
	if s, ok := v.(string); ok {
		return s
	}
	if e, ok := v.(error); ok {
		return e.Error()
	}
	return "non-string panic value"
}

func sortSubscriptions(list []subscription) {
	// Insertion sort: subscriber lists are small and this keeps registration
	// order stable among equal priorities without pulling in sort.Slice's
	// indirection for a handful of elements.
	for i := 1; i < len(list); i++ {
		j := i
		for j > 0 && less(list[j], list[j-1]) {
			list[j], list[j-1] = list[j-1], list[j]
			j--
		}
	}
}

func less(a, b subscription) bool {
	if a.priority != b.priority {
		return a.priority < b.priority
	}
	return a.seq < b.seq
}

// handlerKey gives a best-effort comparable identity for a func value via
// its address, since funcs themselves aren't comparable in Go.
func handlerKey(h Handler) uintptr {
	return funcAddr(h)
}
