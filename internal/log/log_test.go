package log

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
)

func decode(t *testing.T, buf *bytes.Buffer) map[string]any {
	t.Helper()
	var m map[string]any
	if err := json.Unmarshal(buf.Bytes(), &m); err != nil {
		t.Fatalf("decode %q: %v", buf.String(), err)
	}
	return m
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in   string
		want slog.Level
	}{
		{"debug", slog.LevelDebug},
		{"WARN", slog.LevelWarn},
		{"warning", slog.LevelWarn},
		{"error", slog.LevelError},
		{"", slog.LevelInfo},
		{"bogus", slog.LevelInfo},
	}
	for _, tt := range tests {
		if got := ParseLevel(tt.in); got != tt.want {
			t.Errorf("ParseLevel(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestComponentIsAttachedOnce(t *testing.T) {
	var buf bytes.Buffer
	logger := New(Config{Format: "json", Output: &buf, Component: ComponentBudget})

	logger.WithComponent(ComponentWorker).Info("swept", FieldUserID, "u1")

	m := decode(t, &buf)
	if m[FieldComponent] != ComponentWorker {
		t.Errorf("component = %v, want %v", m[FieldComponent], ComponentWorker)
	}
	if m[FieldUserID] != "u1" {
		t.Errorf("user_id = %v, want u1", m[FieldUserID])
	}
}

func TestLogError(t *testing.T) {
	var buf bytes.Buffer
	sl := NewStructuredLogger(New(Config{Format: "json", Output: &buf}))

	sl.LogError(context.Background(), "Failed to save expense", errors.New("disk full"),
		ComponentExpense, OpCreate, ErrorTypeDatabase, NewFields().WithUser("u1", "ann"))

	m := decode(t, &buf)
	if m[FieldError] != "disk full" {
		t.Errorf("error = %v", m[FieldError])
	}
	if m[FieldErrorType] != ErrorTypeDatabase {
		t.Errorf("error_type = %v", m[FieldErrorType])
	}
	if m["level"] != "ERROR" {
		t.Errorf("level = %v", m["level"])
	}
}

func TestLogHTTPEndLevels(t *testing.T) {
	tests := []struct {
		status int
		level  string
	}{
		{200, "INFO"},
		{404, "WARN"},
		{500, "ERROR"},
	}
	for _, tt := range tests {
		var buf bytes.Buffer
		sl := NewStructuredLogger(New(Config{Format: "json", Output: &buf}))
		r := httptest.NewRequest(http.MethodGet, "/api/me", nil)
		sl.LogHTTPEnd(context.Background(), r, tt.status, 3, "127.0.0.1")

		m := decode(t, &buf)
		if m["level"] != tt.level {
			t.Errorf("status %d: level = %v, want %v", tt.status, m["level"], tt.level)
		}
	}
}

func TestFromContextFallsBack(t *testing.T) {
	if FromContext(context.Background()) == nil {
		t.Fatal("FromContext returned nil")
	}
	logger := Discard()
	ctx := NewContext(context.Background(), logger)
	if FromContext(ctx) != logger {
		t.Error("FromContext did not return the stored logger")
	}
}
