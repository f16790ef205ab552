package md

import (
	"context"
	"sync"

	"github.com/shopspring/decimal"
)

// Static serves a fixed candle history for one symbol. Interval is ignored.
type Static struct {
	mu      sync.RWMutex
	symbol  string
	candles []Candle
}

func NewStatic(symbol string, candles []Candle) *Static {
	return &Static{symbol: symbol, candles: append([]Candle(nil), candles...)}
}

// Append adds a newer candle, as a live source would.
func (s *Static) Append(c Candle) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.candles = append(s.candles, c)
}

func (s *Static) Candles(ctx context.Context, symbol, interval string, limit, offset int) ([]Candle, error) {
	if symbol != s.symbol {
		return nil, ErrUnknownSymbol
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return window(s.candles, limit, offset), nil
}

func (s *Static) HistoricalCloses(ctx context.Context, symbol, interval string, limit, offset int) ([]decimal.Decimal, error) {
	candles, err := s.Candles(ctx, symbol, interval, limit, offset)
	if err != nil {
		return nil, err
	}
	return Closes(candles), nil
}

// LatestPrice is the close of the newest candle.
func (s *Static) LatestPrice(ctx context.Context, symbol string) (decimal.Decimal, bool, error) {
	if symbol != s.symbol {
		return decimal.Zero, false, ErrUnknownSymbol
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	if len(s.candles) == 0 {
		return decimal.Zero, false, nil
	}
	return s.candles[len(s.candles)-1].Close, true, nil
}
