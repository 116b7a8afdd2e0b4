package ratelimit

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"tipid/internal/log"
)

func newTestLimiter(t *testing.T, perMinute int) (*Limiter, *time.Time) {
	t.Helper()
	rl := NewLimiter(Config{RequestsPerMinute: perMinute, CleanupInterval: time.Hour}, log.Discard())
	t.Cleanup(rl.Stop)
	now := time.Date(2025, 3, 12, 15, 0, 0, 0, time.UTC)
	rl.SetClock(func() time.Time { return now })
	return rl, &now
}

func TestAllowWindow(t *testing.T) {
	rl, now := newTestLimiter(t, 2)

	for i, want := range []bool{true, true, false, false} {
		if got := rl.Allow("1.2.3.4"); got != want {
			t.Errorf("Allow() call %d = %v, want %v", i+1, got, want)
		}
	}
	if !rl.Allow("5.6.7.8") {
		t.Error("Allow() for a second client = false, want true")
	}

	*now = now.Add(time.Minute)
	if !rl.Allow("1.2.3.4") {
		t.Error("Allow() after the window = false, want true")
	}

	if got := rl.GetMetrics(); got.TotalHits != 2 || got.ClientCount != 2 {
		t.Errorf("GetMetrics() = %+v, want 2 hits and 2 clients", got)
	}
}

func TestCleanupStaleEntries(t *testing.T) {
	rl, now := newTestLimiter(t, 10)
	rl.Allow("old")
	*now = now.Add(5 * time.Minute)
	rl.Allow("recent")
	*now = now.Add(6 * time.Minute)

	if got := rl.cleanupStaleEntries(); got != 1 {
		t.Errorf("cleanupStaleEntries() = %d, want 1", got)
	}
	if got := rl.ActiveClients(); got != 1 {
		t.Errorf("ActiveClients() = %d, want 1", got)
	}
}

func TestMiddleware(t *testing.T) {
	rl, _ := newTestLimiter(t, 1)
	ip := func(*http.Request) string { return "9.9.9.9" }

	custom := func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		w.Write([]byte(`{"success":false}`))
	}
	h := rl.Middleware(ip, custom)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/login", nil))
	if rec.Code != http.StatusNoContent {
		t.Fatalf("first request status = %d, want %d", rec.Code, http.StatusNoContent)
	}

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/login", nil))
	if rec.Code != http.StatusTooManyRequests {
		t.Errorf("second request status = %d, want %d", rec.Code, http.StatusTooManyRequests)
	}
	if got := rec.Header().Get("Retry-After"); got != "60" {
		t.Errorf("Retry-After = %q, want 60", got)
	}
	if got := rec.Body.String(); got != `{"success":false}` {
		t.Errorf("body = %q, want the onLimit body", got)
	}
}

func TestStopIdempotent(t *testing.T) {
	rl := NewLimiter(Config{}, nil)
	rl.Stop()
	rl.Stop()
}
