package main

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/shopspring/decimal"

	"papertrade/internal/config"
	"papertrade/internal/engine"
	"papertrade/internal/logx"
	"papertrade/internal/md"
	"papertrade/internal/state"
	"papertrade/internal/trace"
	"papertrade/internal/trade"
)

func main() {
	cfg, err := config.Load(os.Args[1:])
	if errors.Is(err, flag.ErrHelp) {
		return
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "config error: %v\n", err)
		os.Exit(2)
	}
	logx.Setup(cfg.LogLevel, cfg.LogFormat)

	if err := run(cfg); err != nil {
		slog.Error("bot stopped", "error", err)
		os.Exit(1)
	}
	slog.Info("bot shutdown complete")
}

func run(cfg config.Config) error {
	if err := trace.Init(cfg.TracingEnabled, "papertrade"); err != nil {
		slog.Warn("tracing disabled", "error", err)
	}
	defer func() {
		if err := trace.Shutdown(context.Background()); err != nil {
			slog.Warn("failed to flush traces", "error", err)
		}
	}()

	runID := generateRunID()
	decisions, err := engine.NewDecisionLogger(cfg.DecisionsPath, runID)
	if err != nil {
		return fmt.Errorf("decision logger: %w", err)
	}
	defer func() {
		if err := decisions.Close(); err != nil {
			slog.Warn("failed to close decision logger", "error", err)
		}
	}()

	store := state.NewStore()
	switch err := store.Load(cfg.CheckpointPath); {
	case err == nil:
		slog.Info("loaded checkpoint", "path", cfg.CheckpointPath)
	case errors.Is(err, os.ErrNotExist):
	default:
		return fmt.Errorf("load checkpoint: %w", err)
	}
	if cfg.ResetAccount {
		store.Reset(cfg.AccountID, cfg.StartingCash)
		slog.Info("account reset", "account", cfg.AccountID, "cash", cfg.StartingCash.String())
	} else if store.OpenAccount(cfg.AccountID, cfg.StartingCash) {
		slog.Info("account opened", "account", cfg.AccountID, "cash", cfg.StartingCash.String())
	}
	defer func() {
		if err := store.Save(cfg.CheckpointPath); err != nil {
			slog.Error("failed to save checkpoint", "error", err)
		}
	}()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	prices, err := priceSource(ctx, cfg)
	if err != nil {
		return err
	}

	exec := trade.NewExecutor(store)
	eng, err := engine.New(engineConfig(cfg), prices, store, exec, engine.WithRecorder(decisions))
	if err != nil {
		return err
	}

	slog.Info("starting bot", "run_id", runID, "mode", cfg.RunMode, "symbol", cfg.Symbol, "feed", cfg.Feed, "account", cfg.AccountID)
	switch cfg.RunMode {
	case config.ModeTraining:
		trades, err := eng.RunTraining(ctx, cfg.AccountID, cfg.Symbol, cfg.TrainingLimit, cfg.TrainingOffset)
		if err != nil {
			return fmt.Errorf("training: %w", err)
		}
		logSummary(ctx, store, cfg, trades)
		return nil
	default:
		return tradeLoop(ctx, eng, store, cfg)
	}
}

func tradeLoop(ctx context.Context, eng *engine.Engine, store *state.Store, cfg config.Config) error {
	ticker := time.NewTicker(cfg.TickInterval)
	defer ticker.Stop()

	for {
		sig, err := eng.RunTradingStep(ctx, cfg.AccountID, cfg.Symbol)
		if err != nil && !errors.Is(err, context.Canceled) {
			slog.Error("trading step failed", "symbol", cfg.Symbol, "error", err)
		} else {
			slog.Debug("trading step", "symbol", cfg.Symbol, "signal", sig)
		}
		if err := store.Save(cfg.CheckpointPath); err != nil {
			slog.Warn("failed to save checkpoint", "error", err)
		}

		select {
		case <-ctx.Done():
			slog.Info("shutdown signal received")
			return nil
		case <-ticker.C:
		}
	}
}

// priceSource picks the candle source for cfg.Feed. The test feed replays a
// synthetic series and, in trading mode, appends one candle per tick.
func priceSource(ctx context.Context, cfg config.Config) (engine.PriceSource, error) {
	_, step, err := md.ParseInterval(cfg.Interval)
	if err != nil {
		return nil, err
	}

	if cfg.Feed == "test" {
		history := cfg.CandleLimit
		if cfg.RunMode == config.ModeTraining {
			history = cfg.TrainingLimit + cfg.TrainingOffset
		}
		now := time.Now().UTC().Truncate(step)
		series := md.Synthetic(history+10_000, now.Add(-time.Duration(history)*step), step, decimal.NewFromInt(100))
		source := md.NewStatic(cfg.Symbol, series[:history])
		if cfg.RunMode == config.ModeTrading {
			go simulate(ctx, source, series[history:], cfg.TickInterval)
		}
		return source, nil
	}

	client := md.NewClient(md.RESTConfig{
		APIKey:    cfg.APIKey,
		APISecret: cfg.APISecret,
		BaseURL:   cfg.DataBaseURL,
	})
	rest := md.NewRESTSource(client, cfg.Feed)
	if cfg.RunMode == config.ModeTraining {
		return rest, nil
	}

	feed := md.NewFeed(cfg.Symbol, cfg.CandleLimit)
	go func() {
		err := md.StartStream(ctx, md.StreamConfig{
			APIKey:    cfg.APIKey,
			APISecret: cfg.APISecret,
			Feed:      cfg.Feed,
			Symbol:    cfg.Symbol,
		}, feed.Handler())
		if err != nil && !errors.Is(err, context.Canceled) {
			slog.Warn("market data stream stopped, using REST prices", "error", err)
		}
	}()
	return md.Blend{History: rest, Live: feed}, nil
}

// simulate appends the next synthetic close, stamped with the wall clock, on
// every tick so the live cooldown sees realistic trade times.
func simulate(ctx context.Context, source *md.Static, next []md.Candle, tick time.Duration) {
	ticker := time.NewTicker(tick)
	defer ticker.Stop()
	for _, c := range next {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			c.Timestamp = now.UTC().UnixMilli()
			source.Append(c)
		}
	}
}

func engineConfig(cfg config.Config) engine.Config {
	ec := engine.DefaultConfig()
	ec.TradingShort = cfg.TradingShort
	ec.TradingLong = cfg.TradingLong
	ec.TrainingShort = cfg.TrainingShort
	ec.TrainingLong = cfg.TrainingLong
	ec.Interval = cfg.Interval
	ec.CandleLimit = cfg.CandleLimit
	ec.MinCandles = cfg.MinCandles
	ec.DeadZone = cfg.DeadZone
	ec.Cooldown = cfg.Cooldown
	return ec
}

func logSummary(ctx context.Context, store *state.Store, cfg config.Config, trades int) {
	cash, err := store.CashBalance(ctx, cfg.AccountID)
	if err != nil {
		slog.Warn("cash lookup failed", "error", err)
	}
	attrs := []any{"account", cfg.AccountID, "symbol", cfg.Symbol, "trades", trades, "cash", cash.String()}
	for _, pos := range store.Positions(cfg.AccountID) {
		if pos.Symbol == cfg.Symbol {
			attrs = append(attrs, "mode", pos.Mode, "qty", pos.Quantity.String(), "avg_entry", pos.AvgEntryPrice.String())
		}
	}
	slog.Info("training summary", attrs...)
}

func generateRunID() string {
	timestamp := time.Now().UTC().Format("20060102T150405")
	randomBytes := make([]byte, 4)
	if _, err := rand.Read(randomBytes); err != nil {
		return timestamp
	}
	return timestamp + "-" + hex.EncodeToString(randomBytes)
}
