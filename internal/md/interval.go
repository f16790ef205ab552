package md

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/alpacahq/alpaca-trade-api-go/v3/marketdata"
)

// ParseInterval maps "1m", "5m", "15m", "1h", "4h", "1d" style bar intervals to
// an alpaca timeframe and its duration.
func ParseInterval(interval string) (marketdata.TimeFrame, time.Duration, error) {
	s := strings.TrimSpace(strings.ToLower(interval))
	if len(s) < 2 {
		return marketdata.TimeFrame{}, 0, fmt.Errorf("invalid interval %q", interval)
	}
	n, err := strconv.Atoi(s[:len(s)-1])
	if err != nil || n <= 0 {
		return marketdata.TimeFrame{}, 0, fmt.Errorf("invalid interval %q", interval)
	}

	switch s[len(s)-1] {
	case 'm':
		if n > 59 {
			return marketdata.TimeFrame{}, 0, fmt.Errorf("invalid interval %q: minutes must be < 60", interval)
		}
		return marketdata.NewTimeFrame(n, marketdata.Min), time.Duration(n) * time.Minute, nil
	case 'h':
		if n > 23 {
			return marketdata.TimeFrame{}, 0, fmt.Errorf("invalid interval %q: hours must be < 24", interval)
		}
		return marketdata.NewTimeFrame(n, marketdata.Hour), time.Duration(n) * time.Hour, nil
	case 'd':
		if n != 1 {
			return marketdata.TimeFrame{}, 0, fmt.Errorf("invalid interval %q: only 1d is supported", interval)
		}
		return marketdata.NewTimeFrame(1, marketdata.Day), 24 * time.Hour, nil
	default:
		return marketdata.TimeFrame{}, 0, fmt.Errorf("invalid interval %q", interval)
	}
}
