package strategy

import (
	"errors"
	"testing"

	"github.com/shopspring/decimal"
)

func closes(values ...string) []decimal.Decimal {
	out := make([]decimal.Decimal, 0, len(values))
	for _, v := range values {
		out = append(out, decimal.RequireFromString(v))
	}
	return out
}

func mustModel(t *testing.T, short, long int) MACrossover {
	t.Helper()
	m, err := New(short, long)
	if err != nil {
		t.Fatalf("new model: %v", err)
	}
	return m
}

func TestNewRejectsInvalidWindows(t *testing.T) {
	cases := [][2]int{{0, 5}, {3, 0}, {-1, 5}, {5, 5}, {20, 5}}
	for _, c := range cases {
		if _, err := New(c[0], c[1]); !errors.Is(err, ErrInvalidConfig) {
			t.Fatalf("expected ErrInvalidConfig for %d/%d, got %v", c[0], c[1], err)
		}
	}
}

func TestSMAMeanOfWindow(t *testing.T) {
	got := SMA(closes("1", "2", "3", "4", "5"), 4, 3)
	if got.StringFixed(8) != "4.00000000" {
		t.Fatalf("expected 4.00000000, got %s", got.StringFixed(8))
	}
}

func TestSMARoundsHalfUp(t *testing.T) {
	got := SMA(closes("0.000000015", "0"), 1, 2)
	if !got.Equal(decimal.RequireFromString("0.00000001")) {
		t.Fatalf("expected 0.00000001, got %s", got)
	}
	got = SMA(closes("1", "1", "2"), 2, 3)
	if got.String() != "1.33333333" {
		t.Fatalf("expected 1.33333333, got %s", got)
	}
}

func TestSMAGuardsPartialWindow(t *testing.T) {
	values := closes("1", "2", "3")
	if got := SMA(values, 1, 3); !got.IsZero() {
		t.Fatalf("expected zero for partial window, got %s", got)
	}
	if got := SMA(values, 5, 2); !got.IsZero() {
		t.Fatalf("expected zero for out of range index, got %s", got)
	}
	if got := SMA(values, 2, 0); !got.IsZero() {
		t.Fatalf("expected zero for empty window, got %s", got)
	}
}

func TestSMATreatsMissingCloseAsZero(t *testing.T) {
	values := []decimal.Decimal{{}, decimal.NewFromInt(3), decimal.NewFromInt(6)}
	if got := SMA(values, 2, 3); !got.Equal(decimal.NewFromInt(3)) {
		t.Fatalf("expected 3, got %s", got)
	}
}

func TestDecideHoldsOnShortHistory(t *testing.T) {
	m := mustModel(t, 2, 3)
	for n := 0; n <= 3; n++ {
		values := closes("5", "4", "3", "2")[:n]
		if got := m.Decide(values); got != Hold {
			t.Fatalf("expected HOLD for %d closes, got %s", n, got)
		}
	}
	if got := m.Decide(nil); got != Hold {
		t.Fatalf("expected HOLD for nil closes, got %s", got)
	}
}

func TestDecideCrossUp(t *testing.T) {
	m := mustModel(t, 2, 3)
	if got := m.Decide(closes("5", "4", "3", "2", "6")); got != Buy {
		t.Fatalf("expected BUY, got %s", got)
	}
}

func TestDecideCrossDown(t *testing.T) {
	m := mustModel(t, 2, 3)
	if got := m.Decide(closes("1", "2", "3", "4", "0")); got != Sell {
		t.Fatalf("expected SELL, got %s", got)
	}
}

func TestDecideHoldsWithoutCross(t *testing.T) {
	m := mustModel(t, 2, 3)
	if got := m.Decide(closes("1", "2", "3", "4", "5")); got != Hold {
		t.Fatalf("expected HOLD, got %s", got)
	}
}

func TestDecideReversalProducesSell(t *testing.T) {
	m := mustModel(t, 2, 3)
	values := closes("5", "4", "3", "2", "6", "0", "0")

	want := []Signal{Buy, Hold, Sell}
	for i, w := range want {
		if got := m.Decide(values[:5+i]); got != w {
			t.Fatalf("index %d: expected %s, got %s", 4+i, w, got)
		}
	}
}

func TestDecideIsDeterministic(t *testing.T) {
	m := mustModel(t, 2, 3)
	values := closes("5", "4", "3", "2", "6")
	first := m.Decide(values)
	for i := 0; i < 10; i++ {
		if got := m.Decide(values); got != first {
			t.Fatalf("expected %s on every call, got %s", first, got)
		}
	}
}

func TestTrendSignalHoldsOnShortHistory(t *testing.T) {
	m := mustModel(t, 2, 3)
	if got := m.TrendSignal(closes("1", "2"), decimal.Zero); got != Hold {
		t.Fatalf("expected HOLD, got %s", got)
	}
}

func TestTrendSignalDirection(t *testing.T) {
	m := mustModel(t, 2, 3)
	if got := m.TrendSignal(closes("1", "2", "3"), decimal.Zero); got != Buy {
		t.Fatalf("expected BUY, got %s", got)
	}
	if got := m.TrendSignal(closes("3", "2", "1"), decimal.Zero); got != Sell {
		t.Fatalf("expected SELL, got %s", got)
	}
	if got := m.TrendSignal(closes("5", "5", "5"), decimal.Zero); got != Hold {
		t.Fatalf("expected HOLD at parity, got %s", got)
	}
}

func TestTrendSignalDeadZone(t *testing.T) {
	m := mustModel(t, 2, 3)
	values := closes("100", "100", "100.01")

	if got := m.TrendSignal(values, decimal.RequireFromString("0.0002")); got != Hold {
		t.Fatalf("expected HOLD inside dead zone, got %s", got)
	}
	if got := m.TrendSignal(values, decimal.Zero); got != Buy {
		t.Fatalf("expected BUY without dead zone, got %s", got)
	}
}
