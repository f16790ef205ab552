package md

import (
	"testing"
	"time"

	"github.com/alpacahq/alpaca-trade-api-go/v3/marketdata"
)

func TestParseInterval(t *testing.T) {
	cases := []struct {
		in   string
		n    int
		unit marketdata.TimeFrameUnit
		d    time.Duration
	}{
		{"1m", 1, marketdata.Min, time.Minute},
		{"15m", 15, marketdata.Min, 15 * time.Minute},
		{"1H", 1, marketdata.Hour, time.Hour},
		{"4h", 4, marketdata.Hour, 4 * time.Hour},
		{"1d", 1, marketdata.Day, 24 * time.Hour},
	}
	for _, c := range cases {
		tf, d, err := ParseInterval(c.in)
		if err != nil {
			t.Fatalf("%s: unexpected error: %v", c.in, err)
		}
		if tf.N != c.n || tf.Unit != c.unit || d != c.d {
			t.Fatalf("%s: got %+v %s", c.in, tf, d)
		}
	}
}

func TestParseIntervalRejectsGarbage(t *testing.T) {
	for _, in := range []string{"", "m", "0m", "-1m", "60m", "2d", "1w", "abc"} {
		if _, _, err := ParseInterval(in); err == nil {
			t.Fatalf("expected error for %q", in)
		}
	}
}
