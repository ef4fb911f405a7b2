package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClientIPGeneric_DirectRemote(t *testing.T) {
	req := httptest.NewRequest("GET", "http://example.local/", nil)
	req.RemoteAddr = "203.0.113.5:54321"
	assert.Equal(t, "203.0.113.5", clientIPGeneric(req, nil))
}

func TestClientIPGeneric_TrustedProxyXFF(t *testing.T) {
	req := httptest.NewRequest("GET", "http://example.local/", nil)
	req.RemoteAddr = "198.51.100.10:443"
	req.Header.Set("X-Forwarded-For", "203.0.113.7, 198.51.100.10")
	// trustedCIDR contains the remote IP
	assert.Equal(t, "203.0.113.7", clientIPGeneric(req, []string{"198.51.100.10"}))
	assert.Equal(t, "203.0.113.7", clientIPGeneric(req, []string{"198.51.100.0/24"}))
}

func TestClientIPGeneric_UntrustedProxyIgnoresXFF(t *testing.T) {
	req := httptest.NewRequest("GET", "http://example.local/", nil)
	req.RemoteAddr = "198.51.100.11:443"
	req.Header.Set("X-Forwarded-For", "203.0.113.8, 198.51.100.11")
	assert.Equal(t, "198.51.100.11", clientIPGeneric(req, []string{"198.51.100.10"}))
}

func TestIPRateLimiter(t *testing.T) {
	limiter := NewIPRateLimiter(10, nil) // burst of 1
	h := limiter.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))

	call := func(remote string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodGet, "/task", nil)
		req.RemoteAddr = remote
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		return rec
	}

	assert.Equal(t, http.StatusNoContent, call("203.0.113.1:1000").Code)
	rec := call("203.0.113.1:1001")
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.NotEmpty(t, rec.Header().Get("Retry-After"))
	assert.JSONEq(t, `{"error":"Too many requests. Please slow down."}`, rec.Body.String())

	// other clients have their own budget
	assert.Equal(t, http.StatusNoContent, call("203.0.113.2:1000").Code)
}

func TestIPRateLimiterDisabled(t *testing.T) {
	var limiter *IPRateLimiter = NewIPRateLimiter(0, nil)
	require.Nil(t, limiter)
	h := limiter.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))
	for i := 0; i < 5; i++ {
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
		assert.Equal(t, http.StatusNoContent, rec.Code)
	}
}

func TestLoginGuardLockout(t *testing.T) {
	g := NewLoginGuard(nil)
	now := time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)
	g.now = func() time.Time { return now }
	ctx := context.Background()

	for i := 0; i < 4; i++ {
		g.RecordFailure(ctx, "a@example.com")
	}
	locked, _ := g.Locked(ctx, "a@example.com")
	assert.False(t, locked)

	g.RecordFailure(ctx, "a@example.com")
	locked, left := g.Locked(ctx, "a@example.com")
	assert.True(t, locked)
	assert.Equal(t, time.Minute, left)

	g.RecordFailure(ctx, "a@example.com")
	_, left = g.Locked(ctx, "a@example.com")
	assert.Equal(t, 5*time.Minute, left)

	now = now.Add(6 * time.Minute)
	locked, _ = g.Locked(ctx, "a@example.com")
	assert.False(t, locked)

	locked, _ = g.Locked(ctx, "b@example.com")
	assert.False(t, locked)

	g.RecordFailure(ctx, "a@example.com")
	locked, _ = g.Locked(ctx, "a@example.com")
	assert.True(t, locked)
	g.Reset(ctx, "a@example.com")
	locked, _ = g.Locked(ctx, "a@example.com")
	assert.False(t, locked)
}

func TestLockoutSchedule(t *testing.T) {
	g := NewLoginGuard(nil)
	assert.Zero(t, g.lockoutFor(4))
	assert.Equal(t, time.Minute, g.lockoutFor(5))
	assert.Equal(t, 5*time.Minute, g.lockoutFor(6))
	assert.Equal(t, 15*time.Minute, g.lockoutFor(7))
	assert.Equal(t, 30*time.Minute, g.lockoutFor(12))
}
