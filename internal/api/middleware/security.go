package middleware

import (
	"fmt"
	"net/http"
)

// SecurityHeaders sets browser hardening headers on every response. The
// content security policy allows connections to the identity provider at
// identityURL in addition to the serving origin.
func SecurityHeaders(identityURL string) func(http.Handler) http.Handler {
	csp := fmt.Sprintf("default-src 'self'; "+
		"style-src 'self' 'unsafe-inline'; "+
		"script-src 'self' 'unsafe-inline'; "+
		"img-src 'self' data: https:; "+
		"connect-src 'self' %s; "+
		"frame-ancestors 'self'; "+
		"object-src 'none'; "+
		"base-uri 'self'", identityURL)

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			h := w.Header()
			h.Set("Content-Security-Policy", csp)
			h.Set("X-Content-Type-Options", "nosniff")
			h.Set("X-Frame-Options", "SAMEORIGIN")
			h.Set("Referrer-Policy", "no-referrer")
			h.Set("Strict-Transport-Security", "max-age=15552000; includeSubDomains")
			h.Set("Cross-Origin-Opener-Policy", "same-origin")
			next.ServeHTTP(w, r)
		})
	}
}
