package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel/attribute"

	"papertrade/internal/ledger"
	"papertrade/internal/md"
	"papertrade/internal/risk"
	"papertrade/internal/strategy"
	"papertrade/internal/trace"
	"papertrade/internal/trade"
)

// PriceSource supplies candles oldest first. offset skips the newest candles.
type PriceSource interface {
	Candles(ctx context.Context, symbol, interval string, limit, offset int) ([]md.Candle, error)
	LatestPrice(ctx context.Context, symbol string) (decimal.Decimal, bool, error)
	HistoricalCloses(ctx context.Context, symbol, interval string, limit, offset int) ([]decimal.Decimal, error)
}

type Config struct {
	TradingShort   int
	TradingLong    int
	TrainingShort  int
	TrainingLong   int
	Interval       string
	CandleLimit    int
	MinCandles     int
	DeadZone       decimal.Decimal
	Cooldown       time.Duration
	TrainingWarmup int
}

func DefaultConfig() Config {
	return Config{
		TradingShort:   3,
		TradingLong:    8,
		TrainingShort:  5,
		TrainingLong:   20,
		Interval:       "1m",
		CandleLimit:    120,
		MinCandles:     30,
		DeadZone:       decimal.RequireFromString("0.0002"),
		Cooldown:       10 * time.Second,
		TrainingWarmup: 21,
	}
}

// StepResult describes one training step. NextIndex is the index to pass to
// the following step.
type StepResult struct {
	Done           bool            `json:"done"`
	NextIndex      int             `json:"next_index"`
	TradesExecuted int             `json:"trades_executed"`
	Signal         strategy.Signal `json:"signal"`
}

type Engine struct {
	cfg      Config
	prices   PriceSource
	store    ledger.Store
	exec     *trade.Executor
	trading  strategy.MACrossover
	training strategy.MACrossover
	gate     risk.Gate
	recorder Recorder
	clock    func() time.Time
	logger   *slog.Logger
}

type Option func(*Engine)

func WithRecorder(recorder Recorder) Option {
	return func(e *Engine) {
		e.recorder = recorder
	}
}

func WithClock(clock func() time.Time) Option {
	return func(e *Engine) {
		e.clock = clock
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(e *Engine) {
		e.logger = logger
	}
}

func New(cfg Config, prices PriceSource, store ledger.Store, exec *trade.Executor, opts ...Option) (*Engine, error) {
	trading, err := strategy.New(cfg.TradingShort, cfg.TradingLong)
	if err != nil {
		return nil, fmt.Errorf("trading model: %w", err)
	}
	training, err := strategy.New(cfg.TrainingShort, cfg.TrainingLong)
	if err != nil {
		return nil, fmt.Errorf("training model: %w", err)
	}
	if cfg.Cooldown < 0 {
		return nil, errors.New("cooldown must be >= 0")
	}
	if cfg.DeadZone.IsNegative() {
		return nil, errors.New("dead zone must be >= 0")
	}

	e := &Engine{
		cfg:      cfg,
		prices:   prices,
		store:    store,
		exec:     exec,
		trading:  trading,
		training: training,
		recorder: nopRecorder{},
		clock:    time.Now,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e, nil
}

// RunTradingStep evaluates the live model once and acts on it. The returned
// signal is the model output even when a gate suppressed the trade, except
// during cooldown, which reports HOLD.
func (e *Engine) RunTradingStep(ctx context.Context, accountID int64, symbol string) (signal strategy.Signal, err error) {
	ctx, span := trace.StartSpan(ctx, "engine.RunTradingStep",
		attribute.Int64("account_id", accountID),
		attribute.String("symbol", symbol),
	)
	defer func() {
		span.SetAttributes(attribute.String("signal", string(signal)))
		trace.End(span, err)
	}()

	decision := Decision{Mode: ledger.ModeTrading, AccountID: accountID, Symbol: symbol, Signal: strategy.Hold}

	candles, err := e.prices.Candles(ctx, symbol, e.cfg.Interval, e.cfg.CandleLimit, 0)
	if err != nil {
		return strategy.Hold, fmt.Errorf("fetch candles %s: %w", symbol, err)
	}
	if len(candles) < e.cfg.MinCandles {
		decision.Result = ResultInsufficientData
		e.record(decision)
		e.logger.Debug("insufficient candles", "symbol", symbol, "have", len(candles), "need", e.cfg.MinCandles)
		return strategy.Hold, nil
	}

	closes := md.Closes(candles)
	last := candles[len(candles)-1]
	price := last.Close
	live, ok, err := e.prices.LatestPrice(ctx, symbol)
	switch {
	case err != nil:
		e.logger.Warn("live price unavailable, using candle close", "symbol", symbol, "error", err)
	case ok && live.IsPositive():
		price = live
		closes[len(closes)-1] = live
	}
	decision.BarTime = ledger.FromExternal(last.Timestamp)
	decision.Close = price

	signal = e.trading.TrendSignal(closes, e.cfg.DeadZone)
	decision.Signal = signal
	if signal == strategy.Hold {
		decision.Result = ResultHold
		e.record(decision)
		return signal, nil
	}

	key := ledger.PositionKey{AccountID: accountID, Symbol: symbol, Mode: ledger.ModeTrading}
	lastTrade, traded, err := e.store.LastTradeTimestamp(ctx, accountID, ledger.ModeTrading, symbol)
	if err != nil {
		return strategy.Hold, fmt.Errorf("last trade lookup: %w", err)
	}
	if !traded {
		lastTrade = time.Time{}
	}
	hasPosition, err := e.store.HasPosition(ctx, key)
	if err != nil {
		return strategy.Hold, fmt.Errorf("position lookup: %w", err)
	}

	rctx := risk.RiskContext{
		Now:           e.clock().UTC(),
		LastTradeTime: lastTrade,
		Cooldown:      e.cfg.Cooldown,
		HasPosition:   hasPosition,
	}
	if !e.gate.CooldownOver(rctx) {
		decision.Result = ResultRejected
		decision.RejectReason = risk.ReasonCooldown
		e.record(decision)
		e.logger.Info("signal suppressed", "symbol", symbol, "signal", signal, "reason", risk.ReasonCooldown)
		return strategy.Hold, nil
	}
	if _, err := e.gate.Evaluate(signal, rctx); err != nil {
		decision.Result = ResultRejected
		decision.RejectReason = err.Error()
		e.record(decision)
		return signal, nil
	}

	ts := last.Timestamp
	fill, err := e.execute(ctx, ledger.ModeTrading, accountID, symbol, signal, price, &ts)
	e.recordFill(decision, fill, err)
	return signal, err
}

// RunTraining replays the historical closes from the warmup index and returns
// the number of executed trades.
func (e *Engine) RunTraining(ctx context.Context, accountID int64, symbol string, limit, offset int) (trades int, err error) {
	ctx, span := trace.StartSpan(ctx, "engine.RunTraining",
		attribute.Int64("account_id", accountID),
		attribute.String("symbol", symbol),
		attribute.Int("limit", limit),
		attribute.Int("offset", offset),
	)
	defer func() {
		span.SetAttributes(attribute.Int("trades", trades))
		trace.End(span, err)
	}()

	closes, err := e.prices.HistoricalCloses(ctx, symbol, e.cfg.Interval, limit, offset)
	if err != nil {
		return 0, fmt.Errorf("fetch closes %s: %w", symbol, err)
	}

	index := 0
	for {
		if err := ctx.Err(); err != nil {
			return trades, err
		}
		res, err := e.RunTrainingStepWithCloses(ctx, accountID, symbol, closes, nil, index)
		trades += res.TradesExecuted
		if err != nil {
			return trades, err
		}
		if res.Done {
			break
		}
		index = res.NextIndex
	}
	e.logger.Info("training finished", "account", accountID, "symbol", symbol, "closes", len(closes), "trades", trades)
	return trades, nil
}

func (e *Engine) RunTrainingStep(ctx context.Context, accountID int64, symbol string, limit, index, offset int) (StepResult, error) {
	closes, err := e.prices.HistoricalCloses(ctx, symbol, e.cfg.Interval, limit, offset)
	if err != nil {
		return StepResult{Signal: strategy.Hold}, fmt.Errorf("fetch closes %s: %w", symbol, err)
	}
	return e.RunTrainingStepWithCloses(ctx, accountID, symbol, closes, nil, index)
}

func (e *Engine) RunTrainingStepWithCandles(ctx context.Context, accountID int64, symbol string, candles []md.Candle, index int) (StepResult, error) {
	timestamps := make([]int64, len(candles))
	for i, c := range candles {
		timestamps[i] = c.Timestamp
	}
	return e.RunTrainingStepWithCloses(ctx, accountID, symbol, md.Closes(candles), timestamps, index)
}

// RunTrainingStepWithCloses evaluates the crossover over closes[:index+1] and
// trades at closes[index]. timestamps, when long enough, dates the trade.
func (e *Engine) RunTrainingStepWithCloses(ctx context.Context, accountID int64, symbol string, closes []decimal.Decimal, timestamps []int64, index int) (res StepResult, err error) {
	if index < e.cfg.TrainingWarmup {
		index = e.cfg.TrainingWarmup
	}
	if len(closes) == 0 || index >= len(closes) {
		return StepResult{Done: true, NextIndex: len(closes), Signal: strategy.Hold}, nil
	}

	ctx, span := trace.StartSpan(ctx, "engine.RunTrainingStep",
		attribute.Int64("account_id", accountID),
		attribute.String("symbol", symbol),
		attribute.Int("index", index),
	)
	defer func() {
		span.SetAttributes(attribute.String("signal", string(res.Signal)))
		trace.End(span, err)
	}()

	signal := e.training.Decide(closes[:index+1])
	price := closes[index]
	decision := Decision{
		Mode:      ledger.ModeTraining,
		AccountID: accountID,
		Symbol:    symbol,
		Index:     index,
		Close:     price,
		Signal:    signal,
	}

	var ts *int64
	if len(timestamps) > index {
		ts = &timestamps[index]
		decision.BarTime = ledger.FromExternal(*ts)
	}

	res = StepResult{
		Done:      index+1 >= len(closes),
		NextIndex: index + 1,
		Signal:    signal,
	}
	if signal == strategy.Hold {
		decision.Result = ResultHold
		e.record(decision)
		return res, nil
	}

	fill, err := e.execute(ctx, ledger.ModeTraining, accountID, symbol, signal, price, ts)
	e.recordFill(decision, fill, err)
	if err != nil {
		return StepResult{NextIndex: index, Signal: signal}, err
	}
	if fill.Executed {
		res.TradesExecuted = 1
	}
	return res, nil
}

func (e *Engine) LastTradeSide(ctx context.Context, accountID int64, symbol string, mode ledger.Mode) (ledger.Side, bool, error) {
	return e.store.LastTradeSide(ctx, accountID, mode, symbol)
}

func (e *Engine) execute(ctx context.Context, mode ledger.Mode, accountID int64, symbol string, signal strategy.Signal, price decimal.Decimal, ts *int64) (trade.Fill, error) {
	switch signal {
	case strategy.Buy:
		if ts != nil {
			return e.exec.BuyAt(ctx, accountID, symbol, price, mode, *ts)
		}
		return e.exec.Buy(ctx, accountID, symbol, price, mode)
	case strategy.Sell:
		if ts != nil {
			return e.exec.SellAt(ctx, accountID, symbol, price, mode, *ts)
		}
		return e.exec.Sell(ctx, accountID, symbol, price, mode)
	default:
		return trade.Fill{}, nil
	}
}

func (e *Engine) recordFill(decision Decision, fill trade.Fill, err error) {
	switch {
	case err != nil:
		decision.Result = ResultFailed
		decision.Error = err.Error()
	case fill.Executed:
		decision.Result = ResultExecuted
		decision.TradeID = fill.Trade.ID
	default:
		decision.Result = ResultNoop
	}
	e.record(decision)
}

func (e *Engine) record(decision Decision) {
	decision.Timestamp = e.clock().UTC()
	e.recorder.Append(decision)
}
