package engine

import (
	"bufio"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/shopspring/decimal"

	"papertrade/internal/ledger"
	"papertrade/internal/strategy"
)

func TestDecisionLoggerWritesNDJSON(t *testing.T) {
	path := filepath.Join(t.TempDir(), "decisions.ndjson")
	logger, err := NewDecisionLogger(path, "run-1")
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	logger.Append(Decision{Mode: ledger.ModeTrading, Symbol: "AAPL", Signal: strategy.Buy, Result: ResultExecuted, TradeID: "t-1", Close: decimal.RequireFromString("101.5")})
	logger.Append(Decision{RunID: "other", Mode: ledger.ModeTraining, Symbol: "AAPL", Signal: strategy.Hold, Result: ResultHold})
	if err := logger.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	file, err := os.Open(path)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer file.Close()

	var lines []Decision
	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		var d Decision
		if err := json.Unmarshal(scanner.Bytes(), &d); err != nil {
			t.Fatalf("decode %q: %v", scanner.Text(), err)
		}
		lines = append(lines, d)
	}
	if len(lines) != 2 {
		t.Fatalf("expected 2 lines, got %d", len(lines))
	}
	if lines[0].RunID != "run-1" || lines[0].TradeID != "t-1" || !lines[0].Close.Equal(decimal.RequireFromString("101.5")) {
		t.Fatalf("unexpected first decision: %+v", lines[0])
	}
	if lines[1].RunID != "other" || lines[1].Result != ResultHold {
		t.Fatalf("unexpected second decision: %+v", lines[1])
	}
}

func TestDecisionLoggerAppendsAcrossRuns(t *testing.T) {
	path := filepath.Join(t.TempDir(), "decisions.ndjson")
	for _, run := range []string{"a", "b"} {
		logger, err := NewDecisionLogger(path, run)
		if err != nil {
			t.Fatalf("open: %v", err)
		}
		logger.Append(Decision{Result: ResultNoop})
		if err := logger.Close(); err != nil {
			t.Fatalf("close: %v", err)
		}
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	count := 0
	for _, b := range data {
		if b == '\n' {
			count++
		}
	}
	if count != 2 {
		t.Fatalf("expected 2 lines, got %d", count)
	}
}
