package security

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"strings"
	"time"
)

// Double-submit cookie pair. The cookie is deliberately readable by script so
// the client can mirror it into the request header; both names are fixed and
// must stay paired end-to-end.
const (
	CSRFCookieName = "fairchance_csrf"
	CSRFHeaderName = "X-CSRF-Token"

	csrfTokenBytes = 32
	csrfCookieAge  = 24 * time.Hour
)

// CSRF validates the double-submit token pair on every state-changing request
// and mints the cookie for clients that lack one.
type CSRF struct {
	secureCookies  bool
	exemptPrefixes []string
}

func NewCSRF(secureCookies bool, exemptPrefixes []string) *CSRF {
	return &CSRF{secureCookies: secureCookies, exemptPrefixes: exemptPrefixes}
}

func (c *CSRF) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		cookie, err := r.Cookie(CSRFCookieName)
		cookieToken := ""
		if err == nil {
			cookieToken = cookie.Value
		}

		if cookieToken == "" {
			token, mintErr := mintToken()
			if mintErr != nil {
				writeJSONError(w, http.StatusInternalServerError, "failed to issue csrf token")
				return
			}
			http.SetCookie(w, &http.Cookie{
				Name:     CSRFCookieName,
				Value:    token,
				Path:     "/",
				MaxAge:   int(csrfCookieAge.Seconds()),
				Secure:   c.secureCookies,
				SameSite: http.SameSiteStrictMode,
				HttpOnly: false,
			})
		}

		if stateChanging(r.Method) && !c.exempt(r.URL.Path) {
			headerToken := r.Header.Get(CSRFHeaderName)
			if cookieToken == "" || headerToken == "" ||
				subtle.ConstantTimeCompare([]byte(cookieToken), []byte(headerToken)) != 1 {
				writeJSONError(w, http.StatusForbidden, "csrf token missing or invalid")
				return
			}
		}

		next.ServeHTTP(w, r)
	})
}

func (c *CSRF) exempt(path string) bool {
	for _, prefix := range c.exemptPrefixes {
		if strings.HasPrefix(path, prefix) {
			return true
		}
	}
	return false
}

func stateChanging(method string) bool {
	switch method {
	case http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete:
		return true
	}
	return false
}

func mintToken() (string, error) {
	buf := make([]byte, csrfTokenBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}

func writeJSONError(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]any{"error": msg})
}
