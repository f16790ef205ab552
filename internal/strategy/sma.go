package strategy

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// MACrossover is a dual simple-moving-average model. The zero value is not
// usable; build one with New.
type MACrossover struct {
	shortWindow int
	longWindow  int
}

func New(shortWindow, longWindow int) (MACrossover, error) {
	if shortWindow <= 0 {
		return MACrossover{}, fmt.Errorf("%w: short window must be > 0, got %d", ErrInvalidConfig, shortWindow)
	}
	if longWindow <= 0 {
		return MACrossover{}, fmt.Errorf("%w: long window must be > 0, got %d", ErrInvalidConfig, longWindow)
	}
	if shortWindow >= longWindow {
		return MACrossover{}, fmt.Errorf("%w: short window %d must be < long window %d", ErrInvalidConfig, shortWindow, longWindow)
	}
	return MACrossover{shortWindow: shortWindow, longWindow: longWindow}, nil
}

func (m MACrossover) ShortWindow() int { return m.shortWindow }

func (m MACrossover) LongWindow() int { return m.longWindow }

// Decide reports a strict crossover between the last two closes.
func (m MACrossover) Decide(closes []decimal.Decimal) Signal {
	if len(closes) < m.longWindow+1 {
		return Hold
	}

	last := len(closes) - 1
	shortNow := SMA(closes, last, m.shortWindow)
	longNow := SMA(closes, last, m.longWindow)
	shortPrev := SMA(closes, last-1, m.shortWindow)
	longPrev := SMA(closes, last-1, m.longWindow)

	crossUp := shortPrev.LessThanOrEqual(longPrev) && shortNow.GreaterThan(longNow)
	crossDown := shortPrev.GreaterThanOrEqual(longPrev) && shortNow.LessThan(longNow)

	switch {
	case crossUp:
		return Buy
	case crossDown:
		return Sell
	default:
		return Hold
	}
}

// TrendSignal compares the two averages at the last close only. A positive
// epsilonPct suppresses signals while the averages are within
// |long|*epsilonPct of each other.
func (m MACrossover) TrendSignal(closes []decimal.Decimal, epsilonPct decimal.Decimal) Signal {
	if len(closes) < m.longWindow {
		return Hold
	}

	last := len(closes) - 1
	shortNow := SMA(closes, last, m.shortWindow)
	longNow := SMA(closes, last, m.longWindow)

	if epsilonPct.IsPositive() {
		diff := shortNow.Sub(longNow).Abs()
		threshold := longNow.Abs().Mul(epsilonPct)
		if diff.LessThanOrEqual(threshold) {
			return Hold
		}
	}

	switch shortNow.Cmp(longNow) {
	case 1:
		return Buy
	case -1:
		return Sell
	default:
		return Hold
	}
}

// SMA returns the mean of the window closes ending at endIndex, rounded half-up
// to Scale digits. Windows that would start before index 0 yield zero instead
// of a partial average. Zero-valued closes are summed as zero.
func SMA(closes []decimal.Decimal, endIndex, window int) decimal.Decimal {
	if window <= 0 || endIndex < 0 || endIndex >= len(closes) {
		return decimal.Zero
	}
	start := endIndex - window + 1
	if start < 0 {
		return decimal.Zero
	}

	sum := decimal.Zero
	for _, v := range closes[start : endIndex+1] {
		sum = sum.Add(v)
	}
	return sum.DivRound(decimal.NewFromInt(int64(window)), Scale)
}
