package log

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"testing"

	"fintrack/internal/core"

	"github.com/shopspring/decimal"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in   string
		want slog.Level
	}{
		{"debug", slog.LevelDebug},
		{" INFO ", slog.LevelInfo},
		{"warn", slog.LevelWarn},
		{"warning", slog.LevelWarn},
		{"error", slog.LevelError},
		{"verbose", slog.LevelInfo},
		{"", slog.LevelInfo},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			if got := ParseLevel(tt.in); got != tt.want {
				t.Errorf("ParseLevel(%q) = %v, want %v", tt.in, got, tt.want)
			}
		})
	}
}

func TestLoggerStampsComponent(t *testing.T) {
	var buf bytes.Buffer
	logger := New(Config{Level: slog.LevelDebug, Component: ComponentLedger, Output: &buf})

	logger.With(FieldRequestID, "req_1").WithComponent(ComponentHTTP).InfoContext(context.Background(), "hello")

	out := buf.String()
	if !strings.Contains(out, "component=http") || !strings.Contains(out, "request_id=req_1") {
		t.Fatalf("unexpected log line: %s", out)
	}
}

func TestLogLedgerErrorLevels(t *testing.T) {
	tests := []struct {
		name      string
		err       error
		wantLevel string
		wantKind  string
	}{
		{"domain rejection", core.ErrInvalidAmount, "level=WARN", "error_kind=invalid_amount"},
		{"persistence failure", fmt.Errorf("%w: insert: %w", core.ErrPersistenceFailure, errors.New("disk full")), "level=ERROR", "error_kind=persistence_failure"},
		{"unclassified", errors.New("boom"), "level=ERROR", "error_kind=internal"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			ctx := WithLogger(context.Background(), New(Config{Output: &buf}))

			fields := NewFields().WithDelta("acc-1", decimal.RequireFromString("-50"))
			LogLedgerError(ctx, "Ledger operation failed", tt.err, OpCreate, fields)

			out := buf.String()
			for _, want := range []string{tt.wantLevel, tt.wantKind, "component=ledger", "delta=-50.00", "operation=create"} {
				if !strings.Contains(out, want) {
					t.Errorf("log line %q missing %q", out, want)
				}
			}
		})
	}
}

func TestFromContextDefault(t *testing.T) {
	if l := FromContext(context.Background()); l == nil || l.Component() != "unknown" {
		t.Fatalf("expected default logger, got %+v", l)
	}
}
