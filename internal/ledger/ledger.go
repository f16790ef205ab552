package ledger

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
)

type Mode string

const (
	ModeTrading  Mode = "TRADING"
	ModeTraining Mode = "TRAINING"
)

type Side string

const (
	SideBuy  Side = "BUY"
	SideSell Side = "SELL"
)

// PositionKey addresses one position row. Modes never share a row.
type PositionKey struct {
	AccountID int64
	Symbol    string
	Mode      Mode
}

type Position struct {
	Symbol        string          `json:"symbol"`
	Mode          Mode            `json:"mode"`
	Quantity      decimal.Decimal `json:"quantity"`
	AvgEntryPrice decimal.Decimal `json:"avg_entry_price"`
}

type TradeRecord struct {
	ID        string           `json:"id"`
	AccountID int64            `json:"account_id"`
	Mode      Mode             `json:"mode"`
	Symbol    string           `json:"symbol"`
	Side      Side             `json:"side"`
	Quantity  decimal.Decimal  `json:"quantity"`
	Price     decimal.Decimal  `json:"price"`
	Fee       *decimal.Decimal `json:"fee,omitempty"`
	PnL       *decimal.Decimal `json:"pnl,omitempty"`
	Timestamp time.Time        `json:"timestamp"`
}

// Tx is the exclusive view of one account handed out by Store.Atomically.
// Nothing written through it is visible to others until the unit commits.
type Tx interface {
	CashBalanceExclusive(accountID int64) (decimal.Decimal, error)
	UpdateCashBalance(accountID int64, newValue decimal.Decimal) error
	PositionQtyExclusive(key PositionKey) (decimal.Decimal, error)
	AvgEntryPriceExclusive(key PositionKey) (decimal.Decimal, error)
	UpsertBuyPosition(key PositionKey, qty, price decimal.Decimal) error
	// ReducePosition returns the number of rows changed; zero means the
	// position no longer holds qty.
	ReducePosition(key PositionKey, qty decimal.Decimal) (int64, error)
	DeletePositionIfZero(key PositionKey) error
	InsertTrade(rec TradeRecord) (TradeRecord, error)
	InsertTradeWithTimestamp(rec TradeRecord, ts int64) (TradeRecord, error)
}

type Store interface {
	// Atomically runs fn with exclusive access to accountID. Writes commit
	// only when fn returns nil.
	Atomically(ctx context.Context, accountID int64, fn func(Tx) error) error
	CashBalance(ctx context.Context, accountID int64) (decimal.Decimal, error)
	HasPosition(ctx context.Context, key PositionKey) (bool, error)
	LastTradeTimestamp(ctx context.Context, accountID int64, mode Mode, symbol string) (time.Time, bool, error)
	LastTradeSide(ctx context.Context, accountID int64, mode Mode, symbol string) (Side, bool, error)
}
