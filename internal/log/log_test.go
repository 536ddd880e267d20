package log

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func jsonLogger(buf *bytes.Buffer) *Logger {
	return New(Config{
		Component: ComponentApp,
		Handler:   slog.NewJSONHandler(buf, &slog.HandlerOptions{Level: slog.LevelDebug}),
	})
}

func lastRecord(t *testing.T, buf *bytes.Buffer) map[string]any {
	t.Helper()
	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	var rec map[string]any
	if err := json.Unmarshal([]byte(lines[len(lines)-1]), &rec); err != nil {
		t.Fatalf("decode %q: %v", lines[len(lines)-1], err)
	}
	return rec
}

func TestParseLevel(t *testing.T) {
	tests := map[string]slog.Level{
		"debug": slog.LevelDebug, " WARN ": slog.LevelWarn, "warning": slog.LevelWarn,
		"error": slog.LevelError, "info": slog.LevelInfo, "verbose": slog.LevelInfo, "": slog.LevelInfo,
	}
	for in, want := range tests {
		if got := ParseLevel(in); got != want {
			t.Errorf("ParseLevel(%q) = %v, want %v", in, got, want)
		}
	}
}

func TestLoggerComponent(t *testing.T) {
	var buf bytes.Buffer
	jsonLogger(&buf).WithComponent(ComponentLedger).Info("loaded", FieldCount, 3)

	rec := lastRecord(t, &buf)
	if rec[FieldComponent] != ComponentLedger || rec[FieldCount] != float64(3) {
		t.Fatalf("unexpected record %v", rec)
	}
}

func TestRequestIDMiddleware(t *testing.T) {
	var buf bytes.Buffer
	handler := Middleware(jsonLogger(&buf))(RequestIDMiddleware(func(r *http.Request) string {
		return r.Header.Get("X-Request-ID")
	})(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		FromContext(r.Context()).InfoContext(r.Context(), "handled")
	})))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("X-Request-ID", "abc")
	handler.ServeHTTP(httptest.NewRecorder(), req)
	if rec := lastRecord(t, &buf); rec[FieldRequestID] != "abc" {
		t.Fatalf("request id missing: %v", rec)
	}

	handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))
	if rec := lastRecord(t, &buf); rec[FieldRequestID] != nil {
		t.Fatalf("unexpected request id: %v", rec)
	}
}

func TestFromContextDefault(t *testing.T) {
	if FromContext(context.Background()) == nil {
		t.Fatal("nil logger")
	}
}

func TestStructuredLogger(t *testing.T) {
	var buf bytes.Buffer
	sl := NewStructuredLogger(jsonLogger(&buf))
	ctx := context.Background()
	req := httptest.NewRequest(http.MethodPost, "/api/transactions?x=1", nil)

	sl.LogHTTPEnd(ctx, req, http.StatusUnprocessableEntity, 12, "10.0.0.1")
	rec := lastRecord(t, &buf)
	if rec["level"] != "WARN" || rec[FieldStatusCode] != float64(422) || rec[FieldSuccess] != false {
		t.Fatalf("unexpected end record %v", rec)
	}

	sl.LogTransactionCreated(ctx, 42, "Coffee", 450, "expense", "Food", 7)
	rec = lastRecord(t, &buf)
	if rec[FieldTransactionID] != float64(42) || rec[FieldRevision] != float64(7) || rec[FieldOperation] != OpCreate {
		t.Fatalf("unexpected create record %v", rec)
	}

	sl.LogError(ctx, "failed", errors.New("disk full"), ComponentStorage, OpPersist, nil)
	rec = lastRecord(t, &buf)
	if rec["level"] != "ERROR" || rec[FieldError] != "disk full" || rec[FieldOperation] != OpPersist {
		t.Fatalf("unexpected error record %v", rec)
	}
}
