// Package data implements the Data Handler: it emits ordered BAR events from
// a pre-loaded, symbol-partitioned time series and reports end-of-stream by
// returning false; the coordinator publishes BACKTEST_END after the last bar.
//
// Loading bars from disk (CSV parsing, column mapping, timestamp formats)
// is an external collaborator's job per spec §6 — this package only depends
// on the BarSource interface, with NewFromCSV provided as a convenience
// reader for tests and examples, not as the canonical loader.
package data

import (
	"encoding/csv"
	"fmt"
	"io"
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"github.com/admf/trader/pkg/types"
)

// BarSource supplies bars in ascending (timestamp, symbol) order and
// supports rewinding to the beginning for a fresh run.
type BarSource interface {
	Reset()
	Next() (types.Bar, bool)
}

// SliceSource is the simplest BarSource: an in-memory, pre-sorted slice.
// Merge combines multiple symbols' series by timestamp; SliceSource itself
// only needs to replay one already-merged sequence in order.
type SliceSource struct {
	bars []types.Bar
	pos  int
}

// NewSliceSource builds a source from already-sorted bars. Sorting is the
// caller's responsibility — see Merge for combining multiple per-symbol
// series into one timestamp-ordered stream.
func NewSliceSource(bars []types.Bar) *SliceSource {
	return &SliceSource{bars: bars}
}

// Reset rewinds to the first bar.
func (s *SliceSource) Reset() { s.pos = 0 }

// Next returns the next bar, or (zero, false) when exhausted.
func (s *SliceSource) Next() (types.Bar, bool) {
	if s.pos >= len(s.bars) {
		return types.Bar{}, false
	}
	b := s.bars[s.pos]
	s.pos++
	return b, true
}

// Merge interleaves per-symbol series into one stream ordered by
// (timestamp, symbol) — bars with equal timestamps across symbols emit in
// stable ascending symbol order, per spec §4.2.
func Merge(bySymbol map[string][]types.Bar) []types.Bar {
	total := 0
	for _, series := range bySymbol {
		total += len(series)
	}
	merged := make([]types.Bar, 0, total)
	for _, series := range bySymbol {
		merged = append(merged, series...)
	}
	sort.SliceStable(merged, func(i, j int) bool {
		if !merged[i].Timestamp.Equal(merged[j].Timestamp) {
			return merged[i].Timestamp.Before(merged[j].Timestamp)
		}
		return merged[i].Symbol < merged[j].Symbol
	})
	return merged
}

// NewFromCSV reads one symbol's series from a CSV reader with columns
// {timestamp, open, high, low, close, volume} (column names case
// insensitive; order of columns in the file doesn't matter as long as the
// header names match). layout is a time.Parse layout string for the
// timestamp column.
func NewFromCSV(r io.Reader, symbol, layout string) ([]types.Bar, error) {
	cr := csv.NewReader(r)
	header, err := cr.Read()
	if err != nil {
		return nil, fmt.Errorf("read csv header: %w", err)
	}

	col := make(map[string]int, len(header))
	for i, name := range header {
		col[lower(name)] = i
	}
	required := []string{"timestamp", "open", "high", "low", "close", "volume"}
	for _, name := range required {
		if _, ok := col[name]; !ok {
			return nil, fmt.Errorf("csv missing required column %q", name)
		}
	}

	var bars []types.Bar
	for {
		rec, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read csv row: %w", err)
		}

		ts, err := time.Parse(layout, rec[col["timestamp"]])
		if err != nil {
			return nil, fmt.Errorf("parse timestamp %q: %w", rec[col["timestamp"]], err)
		}
		for _, name := range required[1:] {
			if _, err := decimal.NewFromString(rec[col[name]]); err != nil {
				return nil, fmt.Errorf("parse %s %q: %w", name, rec[col[name]], err)
			}
		}

		bar := types.Bar{
			Symbol:    symbol,
			Timestamp: ts,
			Open:      mustDecimal(rec[col["open"]]),
			High:      mustDecimal(rec[col["high"]]),
			Low:       mustDecimal(rec[col["low"]]),
			Close:     mustDecimal(rec[col["close"]]),
			Volume:    mustDecimal(rec[col["volume"]]),
		}
		bars = append(bars, bar)
	}

	sort.Slice(bars, func(i, j int) bool { return bars[i].Timestamp.Before(bars[j].Timestamp) })
	return bars, nil
}

func mustDecimal(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		// Not reached from NewFromCSV, which rejects a malformed numeric
		// field with an error before converting the row.
		return decimal.Zero
	}
	return d
}

func lower(s string) string {
	b := []byte(s)
	for i, c := range b {
		if c >= 'A' && c <= 'Z' {
			b[i] = c + ('a' - 'A')
		}
	}
	return string(b)
}
