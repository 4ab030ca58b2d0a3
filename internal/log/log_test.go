package log

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestNewAddsComponent(t *testing.T) {
	var buf bytes.Buffer
	logger := New(Config{Level: slog.LevelDebug, Component: ComponentRecurring, Output: &buf})
	logger.Info("materialized", FieldCount, 3)

	out := buf.String()
	if !strings.Contains(out, "component=recurring") || !strings.Contains(out, "count=3") {
		t.Fatalf("unexpected output %q", out)
	}
	child := logger.WithComponent(ComponentSheets)
	buf.Reset()
	child.Info("appended")
	if !strings.Contains(buf.String(), "component=sheets") {
		t.Fatalf("child output %q", buf.String())
	}
}

func TestJSONOutput(t *testing.T) {
	var buf bytes.Buffer
	New(Config{JSON: true, Output: &buf}).Warn("hello")
	if !strings.HasPrefix(buf.String(), "{") || !strings.Contains(buf.String(), `"component":"app"`) {
		t.Fatalf("unexpected output %q", buf.String())
	}
}

func TestLogErrorUsesContextLogger(t *testing.T) {
	var buf bytes.Buffer
	logger := New(Config{Output: &buf, Component: ComponentHTTP}).With(FieldRequestID, "req-42")
	ctx := NewContext(context.Background(), logger)

	LogError(ctx, "boom", errors.New("kaput"), OperationFor(http.MethodPost), nil)

	out := buf.String()
	for _, want := range []string{"request_id=req-42", "error=kaput", "operation=create", "component=http"} {
		if !strings.Contains(out, want) {
			t.Fatalf("missing %q in %q", want, out)
		}
	}
}

func TestLogHTTPEndLevels(t *testing.T) {
	tests := []struct {
		status int
		level  string
	}{
		{200, "level=INFO"},
		{404, "level=WARN"},
		{502, "level=ERROR"},
	}
	for _, tt := range tests {
		var buf bytes.Buffer
		ctx := NewContext(context.Background(), New(Config{Output: &buf}))
		LogHTTPEnd(ctx, httptest.NewRequest(http.MethodGet, "/api/sync?x=1", nil), tt.status, 3, "198.51.100.7")
		out := buf.String()
		if !strings.Contains(out, tt.level) || !strings.Contains(out, "client_ip=198.51.100.7") || !strings.Contains(out, "path=/api/sync") {
			t.Errorf("status %d: %q", tt.status, out)
		}
	}
}

func TestDiscard(t *testing.T) {
	Discard().Error("dropped")
}

func TestFromContextFallsBack(t *testing.T) {
	if FromContext(context.Background()).Logger == nil {
		t.Fatal("expected default logger")
	}
}

func TestLogFields(t *testing.T) {
	f := NewFields().WithTransaction("t1", "2025-01-01", "Food", 1234).WithError(nil)
	if _, ok := f[FieldError]; ok {
		t.Fatal("nil error should not be recorded")
	}
	if len(f.ToSlice()) != 8 {
		t.Fatalf("unexpected slice %v", f.ToSlice())
	}
	if kv := f.ToSlice(); kv[0] != FieldAmountCents || kv[6] != FieldTxID || kv[7] != "t1" {
		t.Fatalf("keys not sorted: %v", kv)
	}
}
