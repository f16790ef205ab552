package engine

import (
	"bufio"
	"encoding/json"
	"log/slog"
	"os"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"papertrade/internal/ledger"
	"papertrade/internal/strategy"
)

const (
	ResultHold             = "hold"
	ResultInsufficientData = "insufficient_data"
	ResultRejected         = "rejected"
	ResultExecuted         = "executed"
	ResultNoop             = "noop"
	ResultFailed           = "failed"
)

type Decision struct {
	RunID        string          `json:"run_id"`
	Timestamp    time.Time       `json:"timestamp"`
	BarTime      time.Time       `json:"bar_time"`
	Mode         ledger.Mode     `json:"mode"`
	AccountID    int64           `json:"account_id"`
	Symbol       string          `json:"symbol"`
	Index        int             `json:"index,omitempty"`
	Close        decimal.Decimal `json:"close"`
	Signal       strategy.Signal `json:"signal"`
	Result       string          `json:"result"`
	RejectReason string          `json:"reject_reason,omitempty"`
	TradeID      string          `json:"trade_id,omitempty"`
	Error        string          `json:"error,omitempty"`
}

type Recorder interface {
	Append(decision Decision)
}

type nopRecorder struct{}

func (nopRecorder) Append(Decision) {}

// DecisionLogger appends decisions to an NDJSON file, one flushed line each.
type DecisionLogger struct {
	runID  string
	file   *os.File
	writer *bufio.Writer
	mu     sync.Mutex
}

func NewDecisionLogger(path string, runID string) (*DecisionLogger, error) {
	file, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, err
	}
	return &DecisionLogger{
		runID:  runID,
		file:   file,
		writer: bufio.NewWriter(file),
	}, nil
}

func (d *DecisionLogger) RunID() string {
	return d.runID
}

func (d *DecisionLogger) Append(decision Decision) {
	if decision.RunID == "" {
		decision.RunID = d.runID
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	payload, err := json.Marshal(decision)
	if err != nil {
		slog.Error("failed to marshal decision", "error", err)
		return
	}
	if _, err := d.writer.Write(append(payload, '\n')); err != nil {
		slog.Error("failed to write decision", "error", err)
		return
	}
	if err := d.writer.Flush(); err != nil {
		slog.Error("failed to flush decision log", "error", err)
	}
}

func (d *DecisionLogger) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.writer.Flush(); err != nil {
		_ = d.file.Close()
		return err
	}
	return d.file.Close()
}
