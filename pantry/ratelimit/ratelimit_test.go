package ratelimit

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestLimiter_RefillsOverTime(t *testing.T) {
	now := time.Now()
	l := newLimiter(1, 2, func() time.Time { return now })

	if !l.Allow() || !l.Allow() {
		t.Fatal("burst not honored")
	}
	if l.Allow() {
		t.Fatal("allowed past burst")
	}
	now = now.Add(1500 * time.Millisecond)
	if !l.Allow() {
		t.Fatal("no refill after 1.5s")
	}
	if l.Allow() {
		t.Fatal("refilled more than elapsed time allows")
	}
}

func TestKeyLimiter_SeparateKeysAndIdleSweep(t *testing.T) {
	kl := NewKeyLimiter(0.001, 1, time.Minute)
	defer kl.Close()
	now := time.Now()
	kl.now = func() time.Time { return now }

	if !kl.Allow("a") || kl.Allow("a") {
		t.Fatal("key a: want one allowed then blocked")
	}
	if !kl.Allow("b") {
		t.Fatal("key b blocked by key a")
	}
	now = now.Add(2 * time.Minute)
	kl.removeIdle()
	if kl.Size() != 0 {
		t.Errorf("Size = %d after sweep", kl.Size())
	}
}

func TestMiddleware(t *testing.T) {
	mw, kl := Middleware(Config{Rate: 0.5, Burst: 1}, nil)
	defer kl.Close()
	h := mw(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))

	do := func(addr string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodPost, "/login/email", nil)
		req.RemoteAddr = addr
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		return rec
	}

	if rec := do("10.0.0.1:5000"); rec.Code != http.StatusNoContent {
		t.Fatalf("first = %d", rec.Code)
	}
	rec := do("10.0.0.1:5001")
	if rec.Code != http.StatusTooManyRequests {
		t.Fatalf("second = %d, want 429 (port must not matter)", rec.Code)
	}
	if got := rec.Header().Get("Retry-After"); got != "2" {
		t.Errorf("Retry-After = %q", got)
	}
	if rec := do("10.0.0.2:5000"); rec.Code != http.StatusNoContent {
		t.Errorf("other client = %d", rec.Code)
	}
}
