// Package result persists a finished backtest's outputs: the equity curve,
// the trade log, and the order audit log with each order's status (spec §6
// "Persisted outputs"). Writers use atomic file replacement (write to
// .tmp, then rename) so a crash mid-write never leaves a corrupted file.
//
// Grounded on the teacher's store.Store (write-tmp-then-rename position
// persistence), generalized from a single JSON-per-market file to the
// three CSV/JSON artifacts a backtest run produces.
package result

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/admf/trader/pkg/types"
)

// Writer persists backtest outputs to a directory, creating it if absent.
type Writer struct {
	dir string
}

// Open creates a Writer backed by the given directory.
func Open(dir string) (*Writer, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create result dir: %w", err)
	}
	return &Writer{dir: dir}, nil
}

// WriteEquityCurve writes (timestamp, equity) rows to equity_curve.csv.
func (w *Writer) WriteEquityCurve(points []types.EquityPoint) error {
	return w.writeAtomic("equity_curve.csv", func(f *os.File) error {
		cw := csv.NewWriter(f)
		if err := cw.Write([]string{"timestamp", "equity"}); err != nil {
			return err
		}
		for _, p := range points {
			if err := cw.Write([]string{p.Timestamp.Format(timeLayout), p.Equity.String()}); err != nil {
				return err
			}
		}
		cw.Flush()
		return cw.Error()
	})
}

// WriteTradeLog writes one row per fill to trade_log.csv.
func (w *Writer) WriteTradeLog(fills []types.Fill) error {
	return w.writeAtomic("trade_log.csv", func(f *os.File) error {
		cw := csv.NewWriter(f)
		header := []string{"fill_id", "order_id", "symbol", "side", "quantity", "price", "timestamp", "commission", "rule_id"}
		if err := cw.Write(header); err != nil {
			return err
		}
		for _, fl := range fills {
			row := []string{
				fl.FillID, fl.OrderID, fl.Symbol, string(fl.Side),
				fl.Quantity.String(), fl.Price.String(), fl.Timestamp.Format(timeLayout),
				fl.Commission.String(), fl.RuleID,
			}
			if err := cw.Write(row); err != nil {
				return err
			}
		}
		cw.Flush()
		return cw.Error()
	})
}

// OrderLogEntry is one row of the order audit log: an order plus whatever
// status it held at write time (the registry only exposes current state,
// not the full transition history).
type OrderLogEntry struct {
	Order types.Order `json:"order"`
}

// WriteOrderLog writes the full order log as JSON for audit purposes.
func (w *Writer) WriteOrderLog(orders []types.Order) error {
	entries := make([]OrderLogEntry, len(orders))
	for i, o := range orders {
		entries[i] = OrderLogEntry{Order: o}
	}
	return w.writeAtomic("order_log.json", func(f *os.File) error {
		enc := json.NewEncoder(f)
		enc.SetIndent("", "  ")
		return enc.Encode(entries)
	})
}

// Summary is the JSON-serializable tail of a run: final cash, realized
// P&L, and the error-taxonomy counters spec §7 calls "summary counters".
type Summary struct {
	FinalCash       string  `json:"final_cash"`
	RealizedPnL     string  `json:"realized_pnl"`
	BarsProcessed   int     `json:"bars_processed"`
	Canceled        bool    `json:"canceled"`
	OrdersRejected  float64 `json:"orders_rejected"`
	SignalsDeduped  float64 `json:"signals_deduped"`
	HandlerErrors   float64 `json:"handler_errors"`
}

// WriteSummary writes the run summary as JSON.
func (w *Writer) WriteSummary(s Summary) error {
	return w.writeAtomic("summary.json", func(f *os.File) error {
		enc := json.NewEncoder(f)
		enc.SetIndent("", "  ")
		return enc.Encode(s)
	})
}

const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

// writeAtomic writes to name+".tmp" via fn, then renames over name — a
// reader never observes a partially-written file.
func (w *Writer) writeAtomic(name string, fn func(f *os.File) error) error {
	path := filepath.Join(w.dir, name)
	tmp := path + ".tmp"

	f, err := os.OpenFile(tmp, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o600)
	if err != nil {
		return fmt.Errorf("open %s: %w", tmp, err)
	}
	if err := fn(f); err != nil {
		f.Close()
		return fmt.Errorf("write %s: %w", name, err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("close %s: %w", tmp, err)
	}
	return os.Rename(tmp, path)
}
