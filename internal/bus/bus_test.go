package bus

import (
	"errors"
	"testing"
	"time"

	"github.com/admf/trader/internal/metrics"
	"github.com/admf/trader/pkg/types"
)

func newTestBus() *Bus {
	return New(metrics.NewRegistry(), nil)
}

func TestPublishDispatchesInPriorityThenRegistrationOrder(t *testing.T) {
	b := newTestBus()
	var order []string

	b.Subscribe(types.EventBar, func(*types.Event) error {
		order = append(order, "priority5-a")
		return nil
	}, 5)
	b.Subscribe(types.EventBar, func(*types.Event) error {
		order = append(order, "priority1")
		return nil
	}, 1)
	b.Subscribe(types.EventBar, func(*types.Event) error {
		order = append(order, "priority5-b")
		return nil
	}, 5)

	invoked := b.Publish(&types.Event{ID: "1", Type: types.EventBar, Timestamp: time.Now()})

	if invoked != 3 {
		t.Fatalf("expected 3 handlers invoked, got %d", invoked)
	}
	want := []string{"priority1", "priority5-a", "priority5-b"}
	for i, w := range want {
		if order[i] != w {
			t.Fatalf("dispatch order mismatch at %d: got %s want %s", i, order[i], w)
		}
	}
}

func TestPublishReturnsZeroForNoSubscribers(t *testing.T) {
	b := newTestBus()
	invoked := b.Publish(&types.Event{ID: "1", Type: types.EventBar, Timestamp: time.Now()})
	if invoked != 0 {
		t.Fatalf("expected 0, got %d", invoked)
	}
}

func TestDedupDropsSecondSignalWithSameRuleID(t *testing.T) {
	b := newTestBus()
	calls := 0
	b.Subscribe(types.EventSignal, func(*types.Event) error {
		calls++
		return nil
	}, 0)

	sig := types.Signal{Symbol: "MINI", Direction: types.DirLong, RuleID: "strat_MINI_BUY_group_1"}
	e1 := &types.Event{ID: "1", Type: types.EventSignal, Timestamp: time.Now(), Payload: sig}
	e2 := &types.Event{ID: "2", Type: types.EventSignal, Timestamp: time.Now(), Payload: sig}

	first := b.Publish(e1)
	second := b.Publish(e2)

	if first != 1 {
		t.Fatalf("expected first publish to invoke 1 handler, got %d", first)
	}
	if second != 0 {
		t.Fatalf("expected second publish (duplicate) to invoke 0 handlers, got %d", second)
	}
	if calls != 1 {
		t.Fatalf("expected handler called exactly once, got %d", calls)
	}
}

func TestResetClearsDedupButNotSubscriptions(t *testing.T) {
	b := newTestBus()
	calls := 0
	b.Subscribe(types.EventSignal, func(*types.Event) error {
		calls++
		return nil
	}, 0)

	sig := types.Signal{Symbol: "MINI", RuleID: "r1"}
	b.Publish(&types.Event{ID: "1", Type: types.EventSignal, Payload: sig})
	b.Reset()
	b.Publish(&types.Event{ID: "2", Type: types.EventSignal, Payload: sig})

	if calls != 2 {
		t.Fatalf("expected handler to fire again after reset, got %d calls", calls)
	}
}

func TestConsumedFlagShortCircuitsLaterHandlers(t *testing.T) {
	b := newTestBus()
	var order []string

	b.Subscribe(types.EventBar, func(e *types.Event) error {
		order = append(order, "first")
		e.Consumed = true
		return nil
	}, 0)
	b.Subscribe(types.EventBar, func(*types.Event) error {
		order = append(order, "second")
		return nil
	}, 1)

	invoked := b.Publish(&types.Event{ID: "1", Type: types.EventBar})

	if invoked != 1 {
		t.Fatalf("expected 1 handler invoked after consumption, got %d", invoked)
	}
	if len(order) != 1 || order[0] != "first" {
		t.Fatalf("expected only first handler to run, got %v", order)
	}
}

func TestHandlerErrorDoesNotAbortDispatch(t *testing.T) {
	b := newTestBus()
	second := false

	b.Subscribe(types.EventBar, func(*types.Event) error {
		return errors.New("boom")
	}, 0)
	b.Subscribe(types.EventBar, func(*types.Event) error {
		second = true
		return nil
	}, 1)

	invoked := b.Publish(&types.Event{ID: "1", Type: types.EventBar})

	if invoked != 2 {
		t.Fatalf("expected both handlers invoked, got %d", invoked)
	}
	if !second {
		t.Fatal("expected second handler to still run after first errored")
	}
}

func TestHandlerPanicDoesNotAbortDispatch(t *testing.T) {
	b := newTestBus()
	second := false

	b.Subscribe(types.EventBar, func(*types.Event) error {
		panic("kaboom")
	}, 0)
	b.Subscribe(types.EventBar, func(*types.Event) error {
		second = true
		return nil
	}, 1)

	invoked := b.Publish(&types.Event{ID: "1", Type: types.EventBar})

	if invoked != 2 {
		t.Fatalf("expected both handlers invoked, got %d", invoked)
	}
	if !second {
		t.Fatal("expected second handler to still run after first panicked")
	}
}

func TestNestedPublishCompletesDepthFirst(t *testing.T) {
	b := newTestBus()
	var order []string

	b.Subscribe(types.EventFill, func(*types.Event) error {
		order = append(order, "fill-start")
		b.Publish(&types.Event{ID: "nested", Type: types.EventPortfolioUpdate})
		order = append(order, "fill-end")
		return nil
	}, 0)
	b.Subscribe(types.EventPortfolioUpdate, func(*types.Event) error {
		order = append(order, "nested-update")
		return nil
	}, 0)

	b.Publish(&types.Event{ID: "outer", Type: types.EventFill, Payload: types.Fill{FillID: "f1"}})

	want := []string{"fill-start", "nested-update", "fill-end"}
	for i, w := range want {
		if order[i] != w {
			t.Fatalf("nested dispatch order mismatch at %d: got %v want %v", i, order, want)
		}
	}
}

func TestUnsubscribeRemovesNamedHandler(t *testing.T) {
	b := newTestBus()
	calls := 0

	handler := func(*types.Event) error {
		calls++
		return nil
	}

	b.Subscribe(types.EventBar, handler, 0)
	b.Publish(&types.Event{ID: "1", Type: types.EventBar})
	b.Unsubscribe(types.EventBar, handler)
	b.Publish(&types.Event{ID: "2", Type: types.EventBar})

	if calls != 1 {
		t.Fatalf("expected handler called once before unsubscribe, got %d", calls)
	}
}
