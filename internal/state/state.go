package state

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"papertrade/internal/ledger"
)

var ErrAccountNotFound = errors.New("account not found")

// DefaultCash is the balance an account is reset to.
var DefaultCash = decimal.RequireFromString("10000.00000000")

type positionKey struct {
	Symbol string
	Mode   ledger.Mode
}

type account struct {
	cash      decimal.Decimal
	positions map[positionKey]ledger.Position
	trades    []ledger.TradeRecord
}

func (a *account) clonePositions() map[positionKey]ledger.Position {
	out := make(map[positionKey]ledger.Position, len(a.positions))
	for k, v := range a.positions {
		out[k] = v
	}
	return out
}

// Store is an in-process ledger. Each account has its own lock that is held
// for the whole of an Atomically unit; readers see committed state only.
type Store struct {
	mu       sync.RWMutex
	accounts map[int64]*account
	locks    map[int64]*sync.Mutex
	clock    func() time.Time
}

type Option func(*Store)

func WithClock(clock func() time.Time) Option {
	return func(s *Store) {
		s.clock = clock
	}
}

func NewStore(opts ...Option) *Store {
	s := &Store{
		accounts: map[int64]*account{},
		locks:    map[int64]*sync.Mutex{},
		clock:    time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

var _ ledger.Store = (*Store)(nil)

// OpenAccount creates accountID with cash if it does not exist yet. It reports
// whether the account was created.
func (s *Store) OpenAccount(accountID int64, cash decimal.Decimal) bool {
	lock := s.accountLock(accountID)
	lock.Lock()
	defer lock.Unlock()

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.accounts[accountID]; ok {
		return false
	}
	s.accounts[accountID] = &account{cash: cash, positions: map[positionKey]ledger.Position{}}
	return true
}

// Reset drops every trade and position of accountID and restores its cash.
func (s *Store) Reset(accountID int64, cash decimal.Decimal) {
	lock := s.accountLock(accountID)
	lock.Lock()
	defer lock.Unlock()

	s.mu.Lock()
	defer s.mu.Unlock()
	s.accounts[accountID] = &account{cash: cash, positions: map[positionKey]ledger.Position{}}
}

func (s *Store) Atomically(ctx context.Context, accountID int64, fn func(ledger.Tx) error) error {
	lock := s.accountLock(accountID)
	lock.Lock()
	defer lock.Unlock()

	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.RLock()
	acct, ok := s.accounts[accountID]
	var staged *tx
	if ok {
		staged = &tx{
			accountID: accountID,
			cash:      acct.cash,
			positions: acct.clonePositions(),
			clock:     s.clock,
		}
	}
	s.mu.RUnlock()
	if !ok {
		return fmt.Errorf("%w: %d", ErrAccountNotFound, accountID)
	}

	if err := fn(staged); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	acct.cash = staged.cash
	acct.positions = staged.positions
	acct.trades = append(acct.trades, staged.pending...)
	return nil
}

func (s *Store) CashBalance(ctx context.Context, accountID int64) (decimal.Decimal, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	acct, ok := s.accounts[accountID]
	if !ok {
		return decimal.Zero, fmt.Errorf("%w: %d", ErrAccountNotFound, accountID)
	}
	return acct.cash, nil
}

func (s *Store) HasPosition(ctx context.Context, key ledger.PositionKey) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	acct, ok := s.accounts[key.AccountID]
	if !ok {
		return false, fmt.Errorf("%w: %d", ErrAccountNotFound, key.AccountID)
	}
	pos, ok := acct.positions[positionKey{Symbol: key.Symbol, Mode: key.Mode}]
	return ok && pos.Quantity.IsPositive(), nil
}

func (s *Store) LastTradeTimestamp(ctx context.Context, accountID int64, mode ledger.Mode, symbol string) (time.Time, bool, error) {
	rec, ok, err := s.lastTrade(accountID, mode, symbol)
	if err != nil || !ok {
		return time.Time{}, false, err
	}
	return rec.Timestamp, true, nil
}

func (s *Store) LastTradeSide(ctx context.Context, accountID int64, mode ledger.Mode, symbol string) (ledger.Side, bool, error) {
	rec, ok, err := s.lastTrade(accountID, mode, symbol)
	if err != nil || !ok {
		return "", false, err
	}
	return rec.Side, true, nil
}

func (s *Store) lastTrade(accountID int64, mode ledger.Mode, symbol string) (ledger.TradeRecord, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	acct, ok := s.accounts[accountID]
	if !ok {
		return ledger.TradeRecord{}, false, fmt.Errorf("%w: %d", ErrAccountNotFound, accountID)
	}
	var last ledger.TradeRecord
	found := false
	for _, rec := range acct.trades {
		if rec.Mode != mode || rec.Symbol != symbol {
			continue
		}
		// Ties go to the later insert.
		if !found || !rec.Timestamp.Before(last.Timestamp) {
			last = rec
			found = true
		}
	}
	return last, found, nil
}

// Trades returns the trades of accountID, newest first.
func (s *Store) Trades(accountID int64) []ledger.TradeRecord {
	s.mu.RLock()
	defer s.mu.RUnlock()
	acct, ok := s.accounts[accountID]
	if !ok {
		return nil
	}
	out := make([]ledger.TradeRecord, len(acct.trades))
	copy(out, acct.trades)
	for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
		out[i], out[j] = out[j], out[i]
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Timestamp.After(out[j].Timestamp)
	})
	return out
}

// Positions returns the open positions of accountID ordered by symbol and mode.
func (s *Store) Positions(accountID int64) []ledger.Position {
	s.mu.RLock()
	defer s.mu.RUnlock()
	acct, ok := s.accounts[accountID]
	if !ok {
		return nil
	}
	out := make([]ledger.Position, 0, len(acct.positions))
	for _, pos := range acct.positions {
		out = append(out, pos)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Symbol != out[j].Symbol {
			return out[i].Symbol < out[j].Symbol
		}
		return out[i].Mode < out[j].Mode
	})
	return out
}

func (s *Store) accountLock(accountID int64) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()
	lock, ok := s.locks[accountID]
	if !ok {
		lock = &sync.Mutex{}
		s.locks[accountID] = lock
	}
	return lock
}

type tx struct {
	accountID int64
	cash      decimal.Decimal
	positions map[positionKey]ledger.Position
	pending   []ledger.TradeRecord
	clock     func() time.Time
}

func (t *tx) check(accountID int64) error {
	if accountID != t.accountID {
		return fmt.Errorf("account %d is not held by this unit (holding %d)", accountID, t.accountID)
	}
	return nil
}

func (t *tx) CashBalanceExclusive(accountID int64) (decimal.Decimal, error) {
	if err := t.check(accountID); err != nil {
		return decimal.Zero, err
	}
	return t.cash, nil
}

func (t *tx) UpdateCashBalance(accountID int64, newValue decimal.Decimal) error {
	if err := t.check(accountID); err != nil {
		return err
	}
	if newValue.IsNegative() {
		return fmt.Errorf("cash balance of account %d would become negative: %s", accountID, newValue)
	}
	t.cash = newValue
	return nil
}

func (t *tx) PositionQtyExclusive(key ledger.PositionKey) (decimal.Decimal, error) {
	if err := t.check(key.AccountID); err != nil {
		return decimal.Zero, err
	}
	return t.positions[positionKey{Symbol: key.Symbol, Mode: key.Mode}].Quantity, nil
}

func (t *tx) AvgEntryPriceExclusive(key ledger.PositionKey) (decimal.Decimal, error) {
	if err := t.check(key.AccountID); err != nil {
		return decimal.Zero, err
	}
	return t.positions[positionKey{Symbol: key.Symbol, Mode: key.Mode}].AvgEntryPrice, nil
}

func (t *tx) UpsertBuyPosition(key ledger.PositionKey, qty, price decimal.Decimal) error {
	if err := t.check(key.AccountID); err != nil {
		return err
	}
	if !qty.IsPositive() {
		return fmt.Errorf("buy quantity must be > 0, got %s", qty)
	}
	k := positionKey{Symbol: key.Symbol, Mode: key.Mode}
	pos, ok := t.positions[k]
	if !ok {
		t.positions[k] = ledger.Position{Symbol: key.Symbol, Mode: key.Mode, Quantity: qty, AvgEntryPrice: price}
		return nil
	}
	pos.AvgEntryPrice = ledger.WeightedAverage(pos.Quantity, pos.AvgEntryPrice, qty, price)
	pos.Quantity = pos.Quantity.Add(qty)
	t.positions[k] = pos
	return nil
}

func (t *tx) ReducePosition(key ledger.PositionKey, qty decimal.Decimal) (int64, error) {
	if err := t.check(key.AccountID); err != nil {
		return 0, err
	}
	k := positionKey{Symbol: key.Symbol, Mode: key.Mode}
	pos, ok := t.positions[k]
	if !ok || !qty.IsPositive() || pos.Quantity.LessThan(qty) {
		return 0, nil
	}
	pos.Quantity = pos.Quantity.Sub(qty)
	t.positions[k] = pos
	return 1, nil
}

func (t *tx) DeletePositionIfZero(key ledger.PositionKey) error {
	if err := t.check(key.AccountID); err != nil {
		return err
	}
	k := positionKey{Symbol: key.Symbol, Mode: key.Mode}
	if pos, ok := t.positions[k]; ok && !pos.Quantity.IsPositive() {
		delete(t.positions, k)
	}
	return nil
}

func (t *tx) InsertTrade(rec ledger.TradeRecord) (ledger.TradeRecord, error) {
	return t.insert(rec, t.clock().UTC())
}

func (t *tx) InsertTradeWithTimestamp(rec ledger.TradeRecord, ts int64) (ledger.TradeRecord, error) {
	return t.insert(rec, ledger.FromExternal(ts))
}

func (t *tx) insert(rec ledger.TradeRecord, at time.Time) (ledger.TradeRecord, error) {
	if err := t.check(rec.AccountID); err != nil {
		return ledger.TradeRecord{}, err
	}
	if rec.Side != ledger.SideBuy && rec.Side != ledger.SideSell {
		return ledger.TradeRecord{}, fmt.Errorf("invalid trade side: %q", rec.Side)
	}
	rec.ID = uuid.NewString()
	rec.Timestamp = at
	t.pending = append(t.pending, rec)
	return rec, nil
}

type checkpoint struct {
	Accounts []accountCheckpoint `json:"accounts"`
}

type accountCheckpoint struct {
	ID        int64                `json:"id"`
	Cash      decimal.Decimal      `json:"cash_balance"`
	Positions []ledger.Position    `json:"positions"`
	Trades    []ledger.TradeRecord `json:"trades"`
}

func (s *Store) Save(path string) error {
	s.mu.RLock()
	cp := checkpoint{Accounts: make([]accountCheckpoint, 0, len(s.accounts))}
	for id, acct := range s.accounts {
		positions := make([]ledger.Position, 0, len(acct.positions))
		for _, pos := range acct.positions {
			positions = append(positions, pos)
		}
		cp.Accounts = append(cp.Accounts, accountCheckpoint{
			ID:        id,
			Cash:      acct.cash,
			Positions: positions,
			Trades:    append([]ledger.TradeRecord(nil), acct.trades...),
		})
	}
	s.mu.RUnlock()

	sort.Slice(cp.Accounts, func(i, j int) bool { return cp.Accounts[i].ID < cp.Accounts[j].ID })
	data, err := json.MarshalIndent(cp, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

func (s *Store) Load(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	var cp checkpoint
	if err := json.Unmarshal(data, &cp); err != nil {
		return fmt.Errorf("decode checkpoint %s: %w", path, err)
	}

	accounts := make(map[int64]*account, len(cp.Accounts))
	for _, a := range cp.Accounts {
		acct := &account{
			cash:      a.Cash,
			positions: make(map[positionKey]ledger.Position, len(a.Positions)),
			trades:    a.Trades,
		}
		for _, pos := range a.Positions {
			if pos.Quantity.IsPositive() {
				acct.positions[positionKey{Symbol: pos.Symbol, Mode: pos.Mode}] = pos
			}
		}
		accounts[a.ID] = acct
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.accounts = accounts
	return nil
}
