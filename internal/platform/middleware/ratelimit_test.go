package middleware

import (
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
)

func sendFrom(t *testing.T, handler echo.HandlerFunc, ip string) (*httptest.ResponseRecorder, error) {
	t.Helper()
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	if ip != "" {
		req.Header.Set(echo.HeaderXRealIP, ip)
	}
	rec := httptest.NewRecorder()
	return rec, handler(e.NewContext(req, rec))
}

func TestRateLimit_WithinBurst(t *testing.T) {
	handler := RateLimit(RateLimitConfig{RequestsPerSecond: 10, BurstSize: 5})(
		func(c echo.Context) error { return c.String(http.StatusOK, "ok") })

	for i := 0; i < 5; i++ {
		rec, err := sendFrom(t, handler, "")
		if err != nil {
			t.Fatalf("request %d: expected no error, got %v", i+1, err)
		}
		if rec.Code != http.StatusOK {
			t.Fatalf("request %d: expected 200, got %d", i+1, rec.Code)
		}
	}
}

func TestRateLimit_ExhaustedBucketRejects(t *testing.T) {
	handler := RateLimit(RateLimitConfig{RequestsPerSecond: 1, BurstSize: 2})(
		func(c echo.Context) error { return c.String(http.StatusOK, "ok") })

	for i := 0; i < 2; i++ {
		if _, err := sendFrom(t, handler, ""); err != nil {
			t.Fatalf("request %d: expected no error, got %v", i+1, err)
		}
	}

	rec, err := sendFrom(t, handler, "")
	if err == nil {
		t.Fatal("expected error once the bucket is empty")
	}
	httpErr, ok := err.(*echo.HTTPError)
	if !ok {
		t.Fatalf("expected echo.HTTPError, got %T", err)
	}
	if httpErr.Code != http.StatusTooManyRequests {
		t.Errorf("expected 429, got %d", httpErr.Code)
	}

	retryAfter := rec.Header().Get("Retry-After")
	if retryAfter == "" {
		t.Fatal("expected Retry-After header")
	}
	if n, err := strconv.Atoi(retryAfter); err != nil || n < 1 {
		t.Errorf("expected Retry-After >= 1 seconds, got %q", retryAfter)
	}
}

func TestRateLimit_PerClientIsolation(t *testing.T) {
	handler := RateLimit(RateLimitConfig{RequestsPerSecond: 1, BurstSize: 1})(
		func(c echo.Context) error { return c.String(http.StatusOK, "ok") })

	if _, err := sendFrom(t, handler, "10.0.0.1"); err != nil {
		t.Fatalf("client a first request: %v", err)
	}
	if _, err := sendFrom(t, handler, "10.0.0.1"); err == nil {
		t.Fatal("client a second request: expected rate limit error")
	}
	// A different address draws from its own bucket.
	if _, err := sendFrom(t, handler, "10.0.0.2"); err != nil {
		t.Fatalf("client b first request: %v", err)
	}
}

func TestLimiter_RefillAndSweep(t *testing.T) {
	l := newLimiter(RateLimitConfig{RequestsPerSecond: 2, BurstSize: 1})
	now := time.Now()

	if ok, _ := l.take("a", now); !ok {
		t.Fatal("fresh bucket must allow")
	}
	if ok, wait := l.take("a", now); ok {
		t.Fatal("empty bucket must reject")
	} else if wait <= 0 {
		t.Errorf("expected positive wait, got %v", wait)
	}
	// Half a second at 2 rps refills the single token.
	if ok, _ := l.take("a", now.Add(500*time.Millisecond)); !ok {
		t.Error("expected bucket to refill after 500ms")
	}

	// An idle client is swept once the ttl and the sweep interval pass.
	if _, tracked := l.clients["a"]; !tracked {
		t.Fatal("expected client to be tracked")
	}
	l.take("b", now.Add(clientIdleTTL+2*time.Minute))
	if _, tracked := l.clients["a"]; tracked {
		t.Error("expected idle client to be swept")
	}
}

func TestLimiter_ZeroRateNeverRefills(t *testing.T) {
	l := newLimiter(RateLimitConfig{RequestsPerSecond: 0, BurstSize: 1})
	now := time.Now()
	l.take("a", now)
	ok, wait := l.take("a", now.Add(time.Hour))
	if ok {
		t.Fatal("zero rate must never refill")
	}
	if wait <= 0 {
		t.Errorf("expected positive wait, got %v", wait)
	}
}
