package ledger

import "time"

// millisThreshold separates epoch milliseconds from epoch seconds. It is a
// heuristic: a seconds value only crosses it after the year 33658, and a
// milliseconds value before 2001-09-09 falls below it.
const millisThreshold int64 = 1_000_000_000_000

// NormalizeEpochSeconds converts an external timestamp that may be in seconds
// or milliseconds to seconds.
func NormalizeEpochSeconds(ts int64) int64 {
	if ts >= millisThreshold {
		return ts / 1000
	}
	return ts
}

func FromExternal(ts int64) time.Time {
	return time.Unix(NormalizeEpochSeconds(ts), 0).UTC()
}
