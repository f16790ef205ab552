package md

import (
	"errors"

	"github.com/shopspring/decimal"
)

var ErrUnknownSymbol = errors.New("unknown symbol")

// Candle is one OHLCV bar. Timestamp is epoch milliseconds of the bar open.
type Candle struct {
	Timestamp int64           `json:"t"`
	Open      decimal.Decimal `json:"o"`
	High      decimal.Decimal `json:"h"`
	Low       decimal.Decimal `json:"l"`
	Close     decimal.Decimal `json:"c"`
	Volume    decimal.Decimal `json:"v"`
}

func Closes(candles []Candle) []decimal.Decimal {
	out := make([]decimal.Decimal, len(candles))
	for i, c := range candles {
		out[i] = c.Close
	}
	return out
}

// window returns at most limit candles ending offset candles before the newest.
// A non-positive limit means no bound.
func window(candles []Candle, limit, offset int) []Candle {
	if offset < 0 {
		offset = 0
	}
	end := len(candles) - offset
	if end <= 0 {
		return []Candle{}
	}
	start := 0
	if limit > 0 && end-limit > 0 {
		start = end - limit
	}
	out := make([]Candle, end-start)
	copy(out, candles[start:end])
	return out
}
