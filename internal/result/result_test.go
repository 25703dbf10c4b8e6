package result

import (
	"encoding/csv"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/admf/trader/pkg/types"
)

func TestWriteEquityCurveProducesOneRowPerPoint(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	w, err := Open(dir)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}

	points := []types.EquityPoint{
		{Timestamp: time.Date(2024, 1, 1, 9, 30, 0, 0, time.UTC), Equity: decimal.NewFromInt(100000)},
		{Timestamp: time.Date(2024, 1, 1, 9, 31, 0, 0, time.UTC), Equity: decimal.NewFromInt(100050)},
	}
	if err := w.WriteEquityCurve(points); err != nil {
		t.Fatalf("WriteEquityCurve: %v", err)
	}

	f, err := os.Open(filepath.Join(dir, "equity_curve.csv"))
	if err != nil {
		t.Fatalf("open output: %v", err)
	}
	defer f.Close()
	rows, err := csv.NewReader(f).ReadAll()
	if err != nil {
		t.Fatalf("read csv: %v", err)
	}
	if len(rows) != 3 { // header + 2 points
		t.Fatalf("expected 3 rows (header + 2 points), got %d", len(rows))
	}
	if rows[1][1] != "100000" {
		t.Fatalf("expected first equity value 100000, got %s", rows[1][1])
	}
}

func TestWriteTradeLogIncludesCommissionAndRuleID(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	w, _ := Open(dir)

	fills := []types.Fill{
		{FillID: "f1", OrderID: "o1", Symbol: "MINI", Side: types.Buy, Quantity: decimal.NewFromInt(10),
			Price: decimal.NewFromInt(100), Timestamp: time.Now(), Commission: decimal.NewFromInt(2), RuleID: "r1_OPEN"},
	}
	if err := w.WriteTradeLog(fills); err != nil {
		t.Fatalf("WriteTradeLog: %v", err)
	}

	f, err := os.Open(filepath.Join(dir, "trade_log.csv"))
	if err != nil {
		t.Fatalf("open output: %v", err)
	}
	defer f.Close()
	rows, err := csv.NewReader(f).ReadAll()
	if err != nil {
		t.Fatalf("read csv: %v", err)
	}
	if len(rows) != 2 {
		t.Fatalf("expected header + 1 row, got %d", len(rows))
	}
	if rows[1][0] != "f1" || rows[1][8] != "r1_OPEN" {
		t.Fatalf("unexpected trade log row: %v", rows[1])
	}
}

func TestWriteOrderLogRoundTripsAsJSON(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	w, _ := Open(dir)

	orders := []types.Order{
		{OrderID: "o1", Symbol: "MINI", Side: types.Buy, Quantity: decimal.NewFromInt(10), OrderType: types.OrderMarket, Status: types.StatusFilled},
	}
	if err := w.WriteOrderLog(orders); err != nil {
		t.Fatalf("WriteOrderLog: %v", err)
	}

	data, err := os.ReadFile(filepath.Join(dir, "order_log.json"))
	if err != nil {
		t.Fatalf("read output: %v", err)
	}
	var entries []OrderLogEntry
	if err := json.Unmarshal(data, &entries); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if len(entries) != 1 || entries[0].Order.OrderID != "o1" {
		t.Fatalf("unexpected entries: %+v", entries)
	}
}

func TestWriteSummarySerializesCounters(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	w, _ := Open(dir)

	s := Summary{FinalCash: "100000", RealizedPnL: "1500", BarsProcessed: 100, OrdersRejected: 1}
	if err := w.WriteSummary(s); err != nil {
		t.Fatalf("WriteSummary: %v", err)
	}

	data, err := os.ReadFile(filepath.Join(dir, "summary.json"))
	if err != nil {
		t.Fatalf("read output: %v", err)
	}
	var loaded Summary
	if err := json.Unmarshal(data, &loaded); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if loaded.BarsProcessed != 100 || loaded.OrdersRejected != 1 {
		t.Fatalf("unexpected summary: %+v", loaded)
	}
}

func TestWriteAtomicOverwritesPreviousContent(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	w, _ := Open(dir)

	_ = w.WriteSummary(Summary{BarsProcessed: 1})
	_ = w.WriteSummary(Summary{BarsProcessed: 2})

	data, _ := os.ReadFile(filepath.Join(dir, "summary.json"))
	var loaded Summary
	_ = json.Unmarshal(data, &loaded)
	if loaded.BarsProcessed != 2 {
		t.Fatalf("expected latest write to win, got %d", loaded.BarsProcessed)
	}
	if _, err := os.Stat(filepath.Join(dir, "summary.json.tmp")); !os.IsNotExist(err) {
		t.Fatalf("expected .tmp file to be renamed away, got err=%v", err)
	}
}
