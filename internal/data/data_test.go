package data

import (
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/admf/trader/internal/bus"
	"github.com/admf/trader/internal/metrics"
	"github.com/admf/trader/pkg/types"
)

func mustTime(t *testing.T, layout, s string) time.Time {
	t.Helper()
	ts, err := time.Parse(layout, s)
	if err != nil {
		t.Fatalf("parse time: %v", err)
	}
	return ts
}

func TestMergeOrdersByTimestampThenSymbol(t *testing.T) {
	t1 := time.Date(2024, 1, 1, 9, 30, 0, 0, time.UTC)
	t2 := t1.Add(time.Minute)

	bySymbol := map[string][]types.Bar{
		"ZETA": {{Symbol: "ZETA", Timestamp: t1}, {Symbol: "ZETA", Timestamp: t2}},
		"ALFA": {{Symbol: "ALFA", Timestamp: t1}},
	}

	merged := Merge(bySymbol)

	if len(merged) != 3 {
		t.Fatalf("expected 3 bars, got %d", len(merged))
	}
	if merged[0].Symbol != "ALFA" || !merged[0].Timestamp.Equal(t1) {
		t.Fatalf("expected ALFA first at t1, got %+v", merged[0])
	}
	if merged[1].Symbol != "ZETA" || !merged[1].Timestamp.Equal(t1) {
		t.Fatalf("expected ZETA second at t1 (stable symbol order), got %+v", merged[1])
	}
	if !merged[2].Timestamp.Equal(t2) {
		t.Fatalf("expected third bar at t2, got %+v", merged[2])
	}
}

func TestNewFromCSVParsesRowsInTimestampOrder(t *testing.T) {
	csvData := `timestamp,open,high,low,close,volume
2024-01-02,10,11,9,10.5,1000
2024-01-01,9,10,8,9.5,900
`
	bars, err := NewFromCSV(strings.NewReader(csvData), "MINI", "2006-01-02")
	if err != nil {
		t.Fatalf("NewFromCSV: %v", err)
	}
	if len(bars) != 2 {
		t.Fatalf("expected 2 bars, got %d", len(bars))
	}
	if !bars[0].Timestamp.Before(bars[1].Timestamp) {
		t.Fatalf("expected bars sorted ascending by timestamp")
	}
	if !bars[0].Close.Equal(decimal.NewFromFloat(9.5)) {
		t.Fatalf("expected first bar close 9.5, got %s", bars[0].Close)
	}
}

func TestNewFromCSVRejectsMissingColumn(t *testing.T) {
	csvData := "timestamp,open,high,low,close\n2024-01-01,1,2,0.5,1.5\n"
	_, err := NewFromCSV(strings.NewReader(csvData), "MINI", "2006-01-02")
	if err == nil {
		t.Fatal("expected error for missing volume column")
	}
}

func TestHandlerEmitsBarsInOrderThenStops(t *testing.T) {
	t1 := mustTime(t, "2006-01-02", "2024-01-01")
	t2 := mustTime(t, "2006-01-02", "2024-01-02")
	source := NewSliceSource([]types.Bar{
		{Symbol: "MINI", Timestamp: t1},
		{Symbol: "MINI", Timestamp: t2},
	})

	b := bus.New(metrics.NewRegistry(), nil)
	var seen []time.Time
	b.Subscribe(types.EventBar, func(e *types.Event) error {
		bar := e.Payload.(types.Bar)
		seen = append(seen, bar.Timestamp)
		return nil
	}, 0)

	h := New(source, b)

	if !h.Next() {
		t.Fatal("expected first Next() to succeed")
	}
	if !h.Next() {
		t.Fatal("expected second Next() to succeed")
	}
	if h.Next() {
		t.Fatal("expected third Next() to report exhaustion")
	}

	if len(seen) != 2 || !seen[0].Equal(t1) || !seen[1].Equal(t2) {
		t.Fatalf("unexpected bar order: %v", seen)
	}
}

func TestHandlerResetRewinds(t *testing.T) {
	t1 := mustTime(t, "2006-01-02", "2024-01-01")
	source := NewSliceSource([]types.Bar{{Symbol: "MINI", Timestamp: t1}})
	b := bus.New(metrics.NewRegistry(), nil)
	count := 0
	b.Subscribe(types.EventBar, func(*types.Event) error {
		count++
		return nil
	}, 0)

	h := New(source, b)
	h.Next()
	h.Next() // exhausted, no-op

	h.Reset()
	if !h.Next() {
		t.Fatal("expected Next() to succeed after reset")
	}
	if count != 2 {
		t.Fatalf("expected 2 bars emitted across both runs, got %d", count)
	}
}
