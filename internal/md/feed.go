package md

import (
	"context"
	"sync"

	"github.com/shopspring/decimal"
)

// Feed keeps the most recent streamed candles of one symbol.
type Feed struct {
	mu     sync.RWMutex
	symbol string
	buffer *RingBuffer
}

func NewFeed(symbol string, size int) *Feed {
	return &Feed{symbol: symbol, buffer: NewRingBuffer(size)}
}

// OnBar records c. A bar with the same open time as the newest candle replaces
// it; an older bar is dropped.
func (f *Feed) OnBar(c Candle) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if last, ok := f.buffer.Last(); ok {
		if c.Timestamp < last.Timestamp {
			return
		}
		if c.Timestamp == last.Timestamp {
			f.replaceLast(c)
			return
		}
	}
	f.buffer.Add(c)
}

func (f *Feed) replaceLast(c Candle) {
	b := f.buffer
	b.values[(b.index-1+b.size)%b.size] = c
}

func (f *Feed) Handler() BarHandler {
	return func(symbol string, c Candle) {
		if symbol == f.symbol {
			f.OnBar(c)
		}
	}
}

func (f *Feed) Candles(ctx context.Context, symbol, interval string, limit, offset int) ([]Candle, error) {
	if symbol != f.symbol {
		return nil, ErrUnknownSymbol
	}
	f.mu.RLock()
	defer f.mu.RUnlock()
	return window(f.buffer.Values(), limit, offset), nil
}

func (f *Feed) HistoricalCloses(ctx context.Context, symbol, interval string, limit, offset int) ([]decimal.Decimal, error) {
	candles, err := f.Candles(ctx, symbol, interval, limit, offset)
	if err != nil {
		return nil, err
	}
	return Closes(candles), nil
}

func (f *Feed) LatestPrice(ctx context.Context, symbol string) (decimal.Decimal, bool, error) {
	if symbol != f.symbol {
		return decimal.Zero, false, ErrUnknownSymbol
	}
	f.mu.RLock()
	defer f.mu.RUnlock()
	last, ok := f.buffer.Last()
	if !ok {
		return decimal.Zero, false, nil
	}
	return last.Close, true, nil
}
