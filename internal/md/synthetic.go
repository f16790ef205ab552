package md

import (
	"math"
	"time"

	"github.com/shopspring/decimal"
)

// Synthetic returns n deterministic candles oscillating around base, one per
// step starting at start. It backs the "test" feed.
func Synthetic(n int, start time.Time, step time.Duration, base decimal.Decimal) []Candle {
	out := make([]Candle, 0, n)
	amplitude := base.Mul(decimal.RequireFromString("0.02"))
	for i := 0; i < n; i++ {
		wave := math.Sin(float64(i)/6) + 0.5*math.Sin(float64(i)/17)
		c := base.Add(amplitude.Mul(decimal.NewFromFloat(wave))).Round(2)
		out = append(out, Candle{
			Timestamp: start.Add(time.Duration(i) * step).UnixMilli(),
			Open:      c,
			High:      c,
			Low:       c,
			Close:     c,
			Volume:    decimal.NewFromInt(1),
		})
	}
	return out
}
