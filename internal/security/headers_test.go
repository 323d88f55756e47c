package security

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHeadersAppliedToEveryResponse(t *testing.T) {
	t.Parallel()

	h := Headers(false)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{}`))
	}))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	res := rec.Result()
	assert.Equal(t, "nosniff", res.Header.Get("X-Content-Type-Options"))
	assert.Equal(t, "DENY", res.Header.Get("X-Frame-Options"))
	assert.Equal(t, "default-src 'self'; frame-ancestors 'none'", res.Header.Get("Content-Security-Policy"))
	assert.Equal(t, "max-age=63072000; includeSubDomains", res.Header.Get("Strict-Transport-Security"))
	assert.Equal(t, "strict-origin-when-cross-origin", res.Header.Get("Referrer-Policy"))
	assert.Equal(t, "camera=(), microphone=(), geolocation=()", res.Header.Get("Permissions-Policy"))
	assert.Equal(t, "1; mode=block", res.Header.Get("X-XSS-Protection"))
}

func TestHeadersAppliedOnExplicitStatus(t *testing.T) {
	t.Parallel()

	h := Headers(false)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/missing", nil))

	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "nosniff", rec.Header().Get("X-Content-Type-Options"))
}

func TestSetCookieHardening(t *testing.T) {
	t.Parallel()

	h := Headers(true)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Add("Set-Cookie", "plain=1; Path=/")
		w.Header().Add("Set-Cookie", "already=1; Path=/; SameSite=Lax; Secure")
		w.WriteHeader(http.StatusOK)
	}))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	cookies := rec.Header().Values("Set-Cookie")
	require.Len(t, cookies, 2)
	assert.Equal(t, "plain=1; Path=/; SameSite=Strict; Secure", cookies[0])
	assert.Equal(t, "already=1; Path=/; SameSite=Lax; Secure", cookies[1], "existing attributes are not duplicated")
}

func TestSetCookieHardeningWithoutTLS(t *testing.T) {
	t.Parallel()

	h := Headers(false)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Add("Set-Cookie", "plain=1; Path=/")
		w.WriteHeader(http.StatusOK)
	}))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	cookies := rec.Header().Values("Set-Cookie")
	require.Len(t, cookies, 1)
	assert.Equal(t, "plain=1; Path=/; SameSite=Strict", cookies[0], "Secure only added when TLS terminates in front")
}
