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

func newBufferLogger(buf *bytes.Buffer, component string) *Logger {
	return New(Config{Level: slog.LevelDebug, Component: component, Output: buf})
}

func TestLoggerTagsComponent(t *testing.T) {
	var buf bytes.Buffer
	l := newBufferLogger(&buf, ComponentForm)

	l.Info("row added", FieldRowRef, "01J")
	out := buf.String()
	if !strings.Contains(out, "component=form") || !strings.Contains(out, "row_ref=01J") {
		t.Fatalf("unexpected output: %s", out)
	}

	buf.Reset()
	l.WithComponent(ComponentRPC).Warn("slow")
	out = buf.String()
	if strings.Count(out, "component=") != 1 || !strings.Contains(out, "component=rpc") {
		t.Fatalf("expected exactly one rpc component attribute: %s", out)
	}
}

func TestLogFields(t *testing.T) {
	f := NewFields().
		WithOperation(OpSubmit).
		WithBatch(3, 1250).
		WithError(errors.New("boom")).
		WithError(nil)

	if f[FieldOperation] != OpSubmit || f[FieldEntryCount] != 3 || f[FieldAmountCents] != int64(1250) {
		t.Fatalf("unexpected fields: %v", f)
	}
	if f[FieldError] != "boom" {
		t.Fatalf("nil error should not overwrite: %v", f[FieldError])
	}
	if got := len(f.ToSlice()); got != 2*len(f) {
		t.Fatalf("ToSlice length = %d, want %d", got, 2*len(f))
	}
}

func TestMiddlewareChain(t *testing.T) {
	var buf bytes.Buffer
	base := newBufferLogger(&buf, ComponentApp)

	handler := Middleware(base.WithComponent(ComponentHTTP))(
		RequestIDMiddleware(func(*http.Request) string { return "req_42" })(
			http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				FromContext(r.Context()).InfoContext(r.Context(), "handled")
			})))

	handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))

	out := buf.String()
	if !strings.Contains(out, "request_id=req_42") || !strings.Contains(out, "component=http") {
		t.Fatalf("unexpected output: %s", out)
	}
}

func TestFromContextDefault(t *testing.T) {
	if l := FromContext(context.Background()); l == nil || l.Component() != ComponentApp {
		t.Fatalf("unexpected default logger: %+v", l)
	}
}

func TestStructuredLogger(t *testing.T) {
	var buf bytes.Buffer
	sl := NewStructuredLogger(newBufferLogger(&buf, ComponentApp))

	sl.LogBatchSubmitted(context.Background(), 2, 900, "succeeded")
	sl.LogError(context.Background(), "submit failed", errors.New("down"), ComponentRPC, OpSubmit, NewFields())

	out := buf.String()
	for _, want := range []string{"entry_count=2", "outcome=succeeded", "error=down", "level=ERROR"} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q: %s", want, out)
		}
	}
}

func TestStatusLevel(t *testing.T) {
	cases := map[int]slog.Level{200: slog.LevelInfo, 304: slog.LevelInfo, 404: slog.LevelWarn, 429: slog.LevelWarn, 503: slog.LevelError}
	for code, want := range cases {
		if got := statusLevel(code); got != want {
			t.Errorf("statusLevel(%d) = %v, want %v", code, got, want)
		}
	}
}
