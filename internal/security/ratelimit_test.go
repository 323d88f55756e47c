package security

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestRateLimiterWindow(t *testing.T) {
	t.Parallel()

	current := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	rl := NewRateLimiter(3, time.Minute)
	rl.now = func() time.Time { return current }

	for i := 0; i < 3; i++ {
		assert.True(t, rl.Allow("10.0.0.1:1234"), "hit %d within limit", i+1)
	}
	assert.False(t, rl.Allow("10.0.0.1:1234"), "fourth hit in the window is rejected")

	// Other clients have their own counters.
	assert.True(t, rl.Allow("10.0.0.2:1234"))

	// Window expiry resets the counter.
	current = current.Add(time.Minute)
	assert.True(t, rl.Allow("10.0.0.1:1234"))
}

func TestRateLimiterDisabled(t *testing.T) {
	t.Parallel()

	rl := NewRateLimiter(0, time.Minute)
	for i := 0; i < 100; i++ {
		assert.True(t, rl.Allow("anyone"))
	}
}

func TestRateLimiterMiddlewareCountsWritesOnly(t *testing.T) {
	t.Parallel()

	rl := NewRateLimiter(1, time.Minute)
	h := rl.Middleware(okHandler())

	post := func() int {
		req := httptest.NewRequest(http.MethodPost, "/v1/candidates/c1/assessment", nil)
		req.RemoteAddr = "10.0.0.1:5555"
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		return rec.Code
	}

	assert.Equal(t, http.StatusOK, post())
	assert.Equal(t, http.StatusTooManyRequests, post())

	// Reads pass through uncounted even when writes are exhausted.
	req := httptest.NewRequest(http.MethodGet, "/v1/candidates/c1/progress", nil)
	req.RemoteAddr = "10.0.0.1:5555"
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
}
