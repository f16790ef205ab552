package trace

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"

	"go.opentelemetry.io/otel/attribute"
)

func TestDisabledSpansAreNoop(t *testing.T) {
	if err := Init(false, "test"); err != nil {
		t.Fatalf("init: %v", err)
	}
	ctx, span := StartSpan(context.Background(), "noop")
	End(span, errors.New("ignored"))
	if _, ok := TraceID(ctx); ok {
		t.Fatalf("expected no trace id when disabled")
	}
	if Enabled() {
		t.Fatalf("expected tracing disabled")
	}
}

func TestEnabledSpansAreExported(t *testing.T) {
	var buf bytes.Buffer
	if err := InitWithWriter(true, "papertrade-test", &buf); err != nil {
		t.Fatalf("init: %v", err)
	}
	defer Shutdown(context.Background())

	ctx, span := StartSpan(context.Background(), "engine.RunTradingStep", attribute.String("symbol", "AAPL"))
	if _, ok := TraceID(ctx); !ok {
		t.Fatalf("expected a valid trace id")
	}
	End(span, nil)

	if !strings.Contains(buf.String(), "engine.RunTradingStep") {
		t.Fatalf("expected span in exporter output, got %q", buf.String())
	}
}
