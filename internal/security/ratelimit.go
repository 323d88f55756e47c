package security

import (
	"net/http"
	"sync"
	"time"
)

// RateLimiter is a time-windowed counter keyed by client identifier, injected
// into the middleware chain rather than living as process-global state so a
// distributed store can replace it under horizontal scaling.
type RateLimiter struct {
	limit  int
	window time.Duration
	now    func() time.Time

	mu       sync.Mutex
	counters map[string]*windowCounter
}

type windowCounter struct {
	start time.Time
	count int
}

func NewRateLimiter(limit int, window time.Duration) *RateLimiter {
	return &RateLimiter{
		limit:    limit,
		window:   window,
		now:      time.Now,
		counters: make(map[string]*windowCounter),
	}
}

// Allow records one hit for key and reports whether it stays within the
// window's limit. A limiter with limit <= 0 is disabled and always allows.
func (rl *RateLimiter) Allow(key string) bool {
	if rl.limit <= 0 {
		return true
	}

	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := rl.now()
	c, ok := rl.counters[key]
	if !ok || now.Sub(c.start) >= rl.window {
		rl.counters[key] = &windowCounter{start: now, count: 1}
		rl.pruneLocked(now)
		return true
	}
	c.count++
	return c.count <= rl.limit
}

// pruneLocked drops expired windows so the map does not grow with one entry
// per client forever.
func (rl *RateLimiter) pruneLocked(now time.Time) {
	if len(rl.counters) < 1024 {
		return
	}
	for key, c := range rl.counters {
		if now.Sub(c.start) >= rl.window {
			delete(rl.counters, key)
		}
	}
}

// Middleware rejects state-changing requests over the limit with 429. Reads
// pass through uncounted.
func (rl *RateLimiter) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if stateChanging(r.Method) && !rl.Allow(clientKey(r)) {
			writeJSONError(w, http.StatusTooManyRequests, "too many requests")
			return
		}
		next.ServeHTTP(w, r)
	})
}

// clientKey assumes chi's RealIP middleware already rewrote RemoteAddr.
func clientKey(r *http.Request) string {
	return r.RemoteAddr
}
