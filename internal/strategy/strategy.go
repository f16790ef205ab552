package strategy

import "errors"

type Signal string

const (
	Hold Signal = "HOLD"
	Buy  Signal = "BUY"
	Sell Signal = "SELL"
)

// Scale is the number of fractional digits every moving average is rounded to.
const Scale int32 = 8

var ErrInvalidConfig = errors.New("invalid strategy configuration")
