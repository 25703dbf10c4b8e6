package data

import (
	"github.com/google/uuid"

	"github.com/admf/trader/internal/bus"
	"github.com/admf/trader/pkg/types"
)

// Handler drives a BarSource, publishing one BAR event per bar in order.
// Exhaustion is reported by Next/Advance returning false; the Handler does
// not publish BACKTEST_END itself (the coordinator does). It has no other
// state — reset just rewinds the source.
type Handler struct {
	source BarSource
	bus    *bus.Bus
}

// New creates a Data Handler bound to a source and bus.
func New(source BarSource, b *bus.Bus) *Handler {
	return &Handler{source: source, bus: b}
}

// Reset rewinds to the first bar. Per spec §4.7, the coordinator must call
// this before every run.
func (h *Handler) Reset() {
	h.source.Reset()
}

// Next emits the next bar as a BAR event and returns true, or returns false
// once the source is exhausted.
func (h *Handler) Next() bool {
	bar, ok := h.Advance()
	if !ok {
		return false
	}
	h.Publish(bar)
	return true
}

// Advance pulls the next bar from the source without publishing it. The
// coordinator uses this to inspect a bar (for EOD date-change detection,
// spec §4.5) before deciding what, if anything, to inject ahead of it.
func (h *Handler) Advance() (types.Bar, bool) {
	return h.source.Next()
}

// Publish emits a previously-advanced bar as a BAR event.
func (h *Handler) Publish(bar types.Bar) {
	h.bus.Publish(&types.Event{
		ID:        uuid.NewString(),
		Type:      types.EventBar,
		Timestamp: bar.Timestamp,
		Payload:   bar,
	})
}
