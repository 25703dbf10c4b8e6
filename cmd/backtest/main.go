// ADMF-Trader backtest runner — loads a config and a directory of per-symbol
// CSV bar files, drives one backtest run through the event pipeline, and
// writes the equity curve, the order audit log, and a run summary to disk.
// No per-fill trade log file is written.
//
// Architecture:
//
//	main.go                 — entry point: loads config, wires components, runs, persists results
//	internal/config         — YAML + ADMF_* env config, sizer/model factories
//	internal/bus            — typed pub/sub event bus
//	internal/data           — CSV bar loading and BAR emission
//	internal/strategy       — Strategy Adapter + MACrossover reference strategy
//	internal/risk           — Risk Manager, sizers, limits
//	internal/broker         — Order Registry, Broker, slippage/commission models
//	internal/portfolio      — position/cash/equity accounting
//	internal/coordinator    — reset phase, run loop, EOD injection, result aggregation
//	internal/result         — atomic CSV/JSON result writers
//	internal/api            — optional read-only status HTTP surface
package main

import (
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"sync"
	"syscall"

	"github.com/shopspring/decimal"

	"github.com/admf/trader/internal/api"
	"github.com/admf/trader/internal/broker"
	"github.com/admf/trader/internal/bus"
	"github.com/admf/trader/internal/config"
	"github.com/admf/trader/internal/coordinator"
	"github.com/admf/trader/internal/data"
	"github.com/admf/trader/internal/metrics"
	"github.com/admf/trader/internal/portfolio"
	"github.com/admf/trader/internal/result"
	"github.com/admf/trader/internal/risk"
	"github.com/admf/trader/internal/strategy"
	"github.com/admf/trader/pkg/types"
)

// liveSnapshot is an api.SnapshotProvider backed by whatever value was last
// set: "running" while the coordinator's loop is in flight, then the final
// coordinator.Result once Run returns.
type liveSnapshot struct {
	mu   sync.Mutex
	data any
}

func (s *liveSnapshot) set(v any) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data = v
}

func (s *liveSnapshot) Snapshot() any {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.data
}

const csvTimestampLayout = "2006-01-02T15:04:05"

func main() {
	cfgPath := "configs/config.yaml"
	if p := os.Getenv("ADMF_CONFIG"); p != "" {
		cfgPath = p
	}
	dataDir := "data"
	if d := os.Getenv("ADMF_DATA_DIR"); d != "" {
		dataDir = d
	}
	resultDir := "results"
	if d := os.Getenv("ADMF_RESULT_DIR"); d != "" {
		resultDir = d
	}

	cfg, err := config.Load(cfgPath)
	if err != nil {
		slog.Error("failed to load config", "error", err, "path", cfgPath)
		os.Exit(1)
	}
	if err := cfg.Validate(); err != nil {
		slog.Error("invalid config", "error", err)
		os.Exit(1)
	}

	opts := &slog.HandlerOptions{Level: parseLogLevel(cfg.Logging.Level)}
	var slogHandler slog.Handler
	if cfg.Logging.Format == "json" {
		slogHandler = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		slogHandler = slog.NewTextHandler(os.Stdout, opts)
	}
	logger := slog.New(slogHandler)

	coord, err := wire(*cfg, dataDir, logger)
	if err != nil {
		logger.Error("failed to wire backtest", "error", err)
		os.Exit(1)
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		logger.Info("received shutdown signal, requesting cooperative cancel", "signal", sig.String())
		coord.Cancel()
	}()

	snapshot := &liveSnapshot{}
	snapshot.set(map[string]string{"status": "running"})
	var statusServer *api.Server
	if cfg.Dashboard.Enabled {
		statusServer = api.NewServer(cfg.Dashboard.Port, snapshot, logger)
		go func() {
			if err := statusServer.Start(); err != nil {
				logger.Error("status server failed", "error", err)
			}
		}()
	}

	logger.Info("running backtest", "symbols", cfg.Symbols, "initial_capital", cfg.InitialCapital)
	run := coord.Run()
	snapshot.set(run)

	if statusServer != nil {
		if err := statusServer.Stop(); err != nil {
			logger.Error("failed to stop status server", "error", err)
		}
	}

	writer, err := result.Open(resultDir)
	if err != nil {
		logger.Error("failed to open result writer", "error", err)
		os.Exit(1)
	}
	if err := writer.WriteEquityCurve(run.EquityCurve); err != nil {
		logger.Error("failed to write equity curve", "error", err)
	}
	if err := writer.WriteOrderLog(run.Orders); err != nil {
		logger.Error("failed to write order log", "error", err)
	}
	if err := writer.WriteSummary(result.Summary{
		FinalCash:      run.FinalCash.String(),
		RealizedPnL:    run.RealizedPnL.String(),
		BarsProcessed:  run.BarsProcessed,
		Canceled:       run.Canceled,
		OrdersRejected: run.Metrics.OrdersRejected,
		SignalsDeduped: run.Metrics.SignalsDeduped,
		HandlerErrors:  run.Metrics.HandlerErrors,
	}); err != nil {
		logger.Error("failed to write summary", "error", err)
	}

	logger.Info("backtest complete",
		"bars_processed", run.BarsProcessed,
		"final_cash", run.FinalCash.String(),
		"realized_pnl", run.RealizedPnL.String(),
		"orders_rejected", run.Metrics.OrdersRejected,
		"signals_deduped", run.Metrics.SignalsDeduped,
	)
}

// wire builds every component from cfg and returns a ready-to-run
// Coordinator. Strategy selection is hardcoded to MACrossover here since
// strategy algorithms are an external collaborator's concern (spec §1);
// a real deployment would plug in a strategy chosen by the caller.
func wire(cfg config.Config, dataDir string, logger *slog.Logger) (*coordinator.Coordinator, error) {
	reg := metrics.NewRegistry()
	b := bus.New(reg, logger)

	bars, err := loadAllSymbols(cfg.Symbols, dataDir)
	if err != nil {
		return nil, fmt.Errorf("load bars: %w", err)
	}
	source := data.NewSliceSource(bars)
	dataHandler := data.New(source, b)

	s := strategy.NewMACrossover("ma_crossover", 5, 15)
	adapter := strategy.New(s, b, nil)

	port := portfolio.New(decimal.NewFromFloat(cfg.InitialCapital), b, logger)

	sizer, err := cfg.BuildSizer()
	if err != nil {
		return nil, fmt.Errorf("build sizer: %w", err)
	}
	limits := cfg.BuildLimits()
	riskMgr := risk.New(sizer, limits, port, b, reg, logger)

	registry := broker.NewRegistry(b, reg, logger)

	slippage, err := cfg.BuildSlippage()
	if err != nil {
		return nil, fmt.Errorf("build slippage model: %w", err)
	}
	commission, err := cfg.BuildCommission()
	if err != nil {
		return nil, fmt.Errorf("build commission model: %w", err)
	}
	brk := broker.New(registry, cfg.BuildFillModel(), slippage, commission, b, logger)

	return coordinator.New(b, dataHandler, adapter, riskMgr, registry, brk, port, reg, cfg.ClosePositionsEOD, logger), nil
}

// loadAllSymbols reads "<dataDir>/<symbol>.csv" for every configured symbol
// and merges the resulting per-symbol series into one timestamp-ordered
// stream, per spec §4.2. CSV parsing itself is internal/data.NewFromCSV —
// an external-collaborator concern per spec §6, kept in-repo only as a
// convenience reader.
func loadAllSymbols(symbols []string, dataDir string) ([]types.Bar, error) {
	bySymbol := make(map[string][]types.Bar, len(symbols))
	for _, symbol := range symbols {
		path := filepath.Join(dataDir, symbol+".csv")
		f, err := os.Open(path)
		if err != nil {
			return nil, fmt.Errorf("open %s: %w", path, err)
		}
		series, err := data.NewFromCSV(f, symbol, csvTimestampLayout)
		f.Close()
		if err != nil {
			return nil, fmt.Errorf("parse %s: %w", path, err)
		}
		bySymbol[symbol] = series
	}
	return data.Merge(bySymbol), nil
}

func parseLogLevel(level string) slog.Level {
	switch level {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
