// Package broker implements the Order Registry (the single source of truth
// for order state) and the Broker (the fill simulator subscribed to
// ORDER_STATE_CHANGE "→ REGISTERED").
//
// Registry is grounded on cuemby-warren's WarrenFSM.Apply — a closed-op-set
// switch dispatching validated mutations against a single owned store,
// generalized from Raft log commands over cluster resources to
// types.CanTransition-gated Order mutations over an in-memory map. There is
// no replicated log here; the single-threaded bus already guarantees
// serialized mutation (spec §5), so the mutex the teacher needs for
// concurrent Raft appliers is unnecessary and dropped.
package broker

import (
	"log/slog"

	"github.com/google/uuid"

	"github.com/admf/trader/internal/bus"
	"github.com/admf/trader/internal/errs"
	"github.com/admf/trader/internal/metrics"
	"github.com/admf/trader/pkg/types"
)

// StateChange is the payload of an ORDER_STATE_CHANGE event.
type StateChange struct {
	OrderID string
	From    types.OrderStatus
	To      types.OrderStatus
	Order   types.Order
}

// Registry is the sole owner of Order records.
type Registry struct {
	bus     *bus.Bus
	metrics *metrics.Registry
	logger  *slog.Logger

	orders []types.Order
	byID   map[string]int
}

// NewRegistry creates an empty Order Registry and subscribes it to ORDER at
// priority 0, so every order the Risk Manager emits is registered before
// the Broker (subscribed to the ORDER_STATE_CHANGE this produces) sees it.
func NewRegistry(b *bus.Bus, reg *metrics.Registry, logger *slog.Logger) *Registry {
	if logger == nil {
		logger = slog.Default()
	}
	r := &Registry{
		bus:     b,
		metrics: reg,
		logger:  logger.With("component", "registry"),
		byID:    make(map[string]int),
	}
	b.Subscribe(types.EventOrder, r.onOrder, 0)
	return r
}

// onOrder registers an order emitted onto the bus as an ORDER event. This
// is the only path by which an order enters the state machine outside of
// the coordinator's direct EOD-close registration.
func (r *Registry) onOrder(event *types.Event) error {
	order, ok := event.Payload.(types.Order)
	if !ok {
		return nil
	}
	return r.Register(order)
}

// Reset clears every stored order.
func (r *Registry) Reset() {
	r.orders = nil
	r.byID = make(map[string]int)
}

// Register validates a newly created order and, on success, stores it and
// publishes ORDER_STATE_CHANGE "→ REGISTERED" (CREATED → PENDING in the
// state machine's terms, spec §3). Returns the validation error, if any.
func (r *Registry) Register(order types.Order) error {
	if err := validate(order); err != nil {
		r.logger.Warn("order rejected at registration", "order_id", order.OrderID, "error", err)
		if r.metrics != nil {
			r.metrics.OrdersRejected.Inc()
		}
		return err
	}

	order.Status = types.StatusPending
	r.byID[order.OrderID] = len(r.orders)
	r.orders = append(r.orders, order)

	r.publish(order.OrderID, types.StatusCreated, types.StatusPending, order)
	return nil
}

// Transition validates a status change, updates the stored order in place
// and publishes ORDER_STATE_CHANGE. The registry keeps only each order's
// current status, not a history of its transitions; the published events
// are the only record of them. Returns a StateTransitionError if
// the edge is illegal, or a validation error if the order doesn't exist.
func (r *Registry) Transition(orderID string, to types.OrderStatus) error {
	idx, ok := r.byID[orderID]
	if !ok {
		return errs.NewValidationError("order_id", "no such order: "+orderID)
	}
	order := r.orders[idx]
	from := order.Status

	if !types.CanTransition(from, to) {
		return errs.NewStateTransitionError(orderID, string(from), string(to))
	}

	order.Status = to
	r.orders[idx] = order

	r.publish(orderID, from, to, order)
	return nil
}

// Get looks up an order by ID.
func (r *Registry) Get(orderID string) (types.Order, bool) {
	idx, ok := r.byID[orderID]
	if !ok {
		return types.Order{}, false
	}
	return r.orders[idx], true
}

// All returns a snapshot of every order the registry has ever stored, in
// registration order — used for the coordinator's full order/fill log.
func (r *Registry) All() []types.Order {
	out := make([]types.Order, len(r.orders))
	copy(out, r.orders)
	return out
}

func (r *Registry) publish(orderID string, from, to types.OrderStatus, order types.Order) {
	r.bus.Publish(&types.Event{
		ID:        uuid.NewString(),
		Type:      types.EventOrderStateChange,
		Timestamp: order.CreatedTS,
		Payload:   StateChange{OrderID: orderID, From: from, To: to, Order: order},
	})
}

func validate(order types.Order) error {
	if order.Symbol == "" {
		return errs.NewValidationError("symbol", "must not be empty")
	}
	if !order.Quantity.IsPositive() {
		return errs.NewValidationError("quantity", "must be greater than zero")
	}
	if order.OrderID == "" {
		return errs.NewValidationError("order_id", "must not be empty")
	}
	if (order.OrderType == types.OrderLimit || order.OrderType == types.OrderStop) && !order.LimitPrice.IsPositive() {
		return errs.NewValidationError("limit_price", "required for LIMIT/STOP orders")
	}
	return nil
}
