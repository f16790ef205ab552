package trade

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/shopspring/decimal"

	"papertrade/internal/ledger"
)

// Fill is the outcome of Buy or Sell. Executed is false for a no-op.
type Fill struct {
	Executed bool
	Trade    ledger.TradeRecord
}

type Executor struct {
	store  ledger.Store
	sizing Sizing
	logger *slog.Logger
}

type Option func(*Executor)

func WithSizing(sizing Sizing) Option {
	return func(e *Executor) {
		e.sizing = sizing
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(e *Executor) {
		e.logger = logger
	}
}

func NewExecutor(store ledger.Store, opts ...Option) *Executor {
	e := &Executor{
		store:  store,
		sizing: DefaultSizing(),
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// errNoop aborts a unit without surfacing an error to the caller.
type errNoop struct{ reason string }

func (e errNoop) Error() string { return "noop: " + e.reason }

func noop(reason string) error { return errNoop{reason: reason} }

func (e *Executor) Buy(ctx context.Context, accountID int64, symbol string, price decimal.Decimal, mode ledger.Mode) (Fill, error) {
	return e.buy(ctx, accountID, symbol, price, mode, nil)
}

// BuyAt records the trade at ts (epoch seconds or milliseconds).
func (e *Executor) BuyAt(ctx context.Context, accountID int64, symbol string, price decimal.Decimal, mode ledger.Mode, ts int64) (Fill, error) {
	return e.buy(ctx, accountID, symbol, price, mode, &ts)
}

func (e *Executor) Sell(ctx context.Context, accountID int64, symbol string, price decimal.Decimal, mode ledger.Mode) (Fill, error) {
	return e.sell(ctx, accountID, symbol, price, mode, nil)
}

// SellAt records the trade at ts (epoch seconds or milliseconds).
func (e *Executor) SellAt(ctx context.Context, accountID int64, symbol string, price decimal.Decimal, mode ledger.Mode, ts int64) (Fill, error) {
	return e.sell(ctx, accountID, symbol, price, mode, &ts)
}

func (e *Executor) buy(ctx context.Context, accountID int64, symbol string, price decimal.Decimal, mode ledger.Mode, ts *int64) (Fill, error) {
	key := ledger.PositionKey{AccountID: accountID, Symbol: symbol, Mode: mode}
	var fill Fill

	err := e.store.Atomically(ctx, accountID, func(tx ledger.Tx) error {
		cash, err := tx.CashBalanceExclusive(accountID)
		if err != nil {
			return fmt.Errorf("read cash: %w", err)
		}
		if !cash.IsPositive() {
			return noop("no_cash")
		}
		if !price.IsPositive() {
			return noop("invalid_price")
		}

		spend, ok := e.sizing.Spend(cash)
		if !ok {
			return noop("insufficient_cash")
		}
		qty, ok := e.sizing.Quantity(spend, price)
		if !ok {
			return noop("dust_quantity")
		}

		rec, err := e.insert(tx, ledger.TradeRecord{
			AccountID: accountID,
			Mode:      mode,
			Symbol:    symbol,
			Side:      ledger.SideBuy,
			Quantity:  qty,
			Price:     price,
		}, ts)
		if err != nil {
			return fmt.Errorf("insert trade: %w", err)
		}
		if err := tx.UpdateCashBalance(accountID, cash.Sub(spend)); err != nil {
			return fmt.Errorf("debit cash: %w", err)
		}
		if err := tx.UpsertBuyPosition(key, qty, price); err != nil {
			return fmt.Errorf("upsert position: %w", err)
		}

		fill = Fill{Executed: true, Trade: rec}
		return nil
	})
	return e.finish(ctx, key, fill, err)
}

func (e *Executor) sell(ctx context.Context, accountID int64, symbol string, price decimal.Decimal, mode ledger.Mode, ts *int64) (Fill, error) {
	key := ledger.PositionKey{AccountID: accountID, Symbol: symbol, Mode: mode}
	if !price.IsPositive() {
		return e.finish(ctx, key, Fill{}, noop("invalid_price"))
	}

	var fill Fill
	err := e.store.Atomically(ctx, accountID, func(tx ledger.Tx) error {
		positionQty, err := tx.PositionQtyExclusive(key)
		if err != nil {
			e.logger.Warn("sell lookup failed", "account", accountID, "symbol", symbol, "mode", mode, "error", err)
			return noop("position_lookup_failed")
		}
		avgEntry, err := tx.AvgEntryPriceExclusive(key)
		if err != nil {
			e.logger.Warn("sell lookup failed", "account", accountID, "symbol", symbol, "mode", mode, "error", err)
			return noop("position_lookup_failed")
		}
		if !positionQty.IsPositive() {
			return noop("no_position")
		}

		sellQty := positionQty.Truncate(e.sizing.Scale)
		if !sellQty.IsPositive() {
			return noop("dust_position")
		}

		updated, err := tx.ReducePosition(key, sellQty)
		if err != nil {
			return fmt.Errorf("reduce position: %w", err)
		}
		if updated == 0 {
			return noop("position_changed")
		}

		cash, err := tx.CashBalanceExclusive(accountID)
		if err != nil {
			return fmt.Errorf("read cash: %w", err)
		}
		proceeds := sellQty.Mul(price).Round(e.sizing.Scale)
		if err := tx.UpdateCashBalance(accountID, cash.Add(proceeds)); err != nil {
			return fmt.Errorf("credit cash: %w", err)
		}

		pnl := price.Sub(avgEntry).Mul(sellQty).Round(e.sizing.Scale)
		rec, err := e.insert(tx, ledger.TradeRecord{
			AccountID: accountID,
			Mode:      mode,
			Symbol:    symbol,
			Side:      ledger.SideSell,
			Quantity:  sellQty,
			Price:     price,
			PnL:       &pnl,
		}, ts)
		if err != nil {
			return fmt.Errorf("insert trade: %w", err)
		}
		if err := tx.DeletePositionIfZero(key); err != nil {
			return fmt.Errorf("delete position: %w", err)
		}

		fill = Fill{Executed: true, Trade: rec}
		return nil
	})
	return e.finish(ctx, key, fill, err)
}

// insert stamps rec with ts when given, otherwise the store stamps it with the
// execution time.
func (e *Executor) insert(tx ledger.Tx, rec ledger.TradeRecord, ts *int64) (ledger.TradeRecord, error) {
	if ts == nil {
		return tx.InsertTrade(rec)
	}
	return tx.InsertTradeWithTimestamp(rec, *ts)
}

func (e *Executor) finish(ctx context.Context, key ledger.PositionKey, fill Fill, err error) (Fill, error) {
	var skipped errNoop
	if errors.As(err, &skipped) {
		e.logger.Debug("trade skipped", "account", key.AccountID, "symbol", key.Symbol, "mode", key.Mode, "reason", skipped.reason)
		return Fill{}, nil
	}
	if err != nil {
		e.logger.Error("trade failed", "account", key.AccountID, "symbol", key.Symbol, "mode", key.Mode, "error", err)
		return Fill{}, err
	}

	rec := fill.Trade
	attrs := []any{
		"account", rec.AccountID,
		"symbol", rec.Symbol,
		"mode", rec.Mode,
		"side", rec.Side,
		"qty", rec.Quantity.String(),
		"price", rec.Price.String(),
		"trade_id", rec.ID,
	}
	if rec.PnL != nil {
		attrs = append(attrs, "pnl", rec.PnL.String())
	}
	e.logger.InfoContext(ctx, "trade executed", attrs...)
	return fill, nil
}
