package md

import (
	"testing"

	"github.com/shopspring/decimal"
)

func candleAt(ts int64, close int64) Candle {
	return Candle{Timestamp: ts, Close: decimal.NewFromInt(close)}
}

func TestRingBufferKeepsNewest(t *testing.T) {
	buffer := NewRingBuffer(3)
	for i := int64(1); i <= 5; i++ {
		buffer.Add(candleAt(i*60_000, i))
	}

	if buffer.Len() != 3 {
		t.Fatalf("expected len 3, got %d", buffer.Len())
	}
	closes := Closes(buffer.Values())
	for i, want := range []int64{3, 4, 5} {
		if !closes[i].Equal(decimal.NewFromInt(want)) {
			t.Fatalf("index %d: expected %d, got %s", i, want, closes[i])
		}
	}
	last, ok := buffer.Last()
	if !ok || last.Timestamp != 300_000 {
		t.Fatalf("expected last candle at 300000, got %+v ok=%v", last, ok)
	}
}

func TestRingBufferPartial(t *testing.T) {
	buffer := NewRingBuffer(5)
	if _, ok := buffer.Last(); ok {
		t.Fatalf("expected empty buffer to have no last candle")
	}
	buffer.Add(candleAt(1, 1))
	buffer.Add(candleAt(2, 2))

	values := buffer.Values()
	if len(values) != 2 || values[0].Timestamp != 1 || values[1].Timestamp != 2 {
		t.Fatalf("unexpected values: %+v", values)
	}
}

func TestWindowAppliesLimitAndOffset(t *testing.T) {
	var candles []Candle
	for i := int64(0); i < 10; i++ {
		candles = append(candles, candleAt(i, i))
	}

	got := window(candles, 3, 2)
	if len(got) != 3 || got[0].Timestamp != 5 || got[2].Timestamp != 7 {
		t.Fatalf("unexpected window: %+v", got)
	}
	if got := window(candles, 0, 0); len(got) != 10 {
		t.Fatalf("expected unbounded window, got %d", len(got))
	}
	if got := window(candles, 5, 20); len(got) != 0 {
		t.Fatalf("expected empty window past history, got %d", len(got))
	}
}
