package md

import (
	"context"

	"github.com/shopspring/decimal"
)

type HistorySource interface {
	Candles(ctx context.Context, symbol, interval string, limit, offset int) ([]Candle, error)
	HistoricalCloses(ctx context.Context, symbol, interval string, limit, offset int) ([]decimal.Decimal, error)
	LatestPrice(ctx context.Context, symbol string) (decimal.Decimal, bool, error)
}

// Blend serves history from History and prefers the streamed close in Live for
// the latest price, falling back to History until the stream delivers a bar.
type Blend struct {
	History HistorySource
	Live    *Feed
}

func (b Blend) Candles(ctx context.Context, symbol, interval string, limit, offset int) ([]Candle, error) {
	return b.History.Candles(ctx, symbol, interval, limit, offset)
}

func (b Blend) HistoricalCloses(ctx context.Context, symbol, interval string, limit, offset int) ([]decimal.Decimal, error) {
	return b.History.HistoricalCloses(ctx, symbol, interval, limit, offset)
}

func (b Blend) LatestPrice(ctx context.Context, symbol string) (decimal.Decimal, bool, error) {
	if b.Live != nil {
		if price, ok, err := b.Live.LatestPrice(ctx, symbol); err == nil && ok {
			return price, true, nil
		}
	}
	return b.History.LatestPrice(ctx, symbol)
}
