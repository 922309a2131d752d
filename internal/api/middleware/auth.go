// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package middleware

import (
	"crypto/subtle"
	"net/http"
	"strings"

	"github.com/ManuGH/spotbridge/internal/log"
)

// ExtractBearer retrieves the API token from the Authorization header. The
// app shell is the only intended caller, so header auth is the sole scheme.
func ExtractBearer(r *http.Request) string {
	auth := r.Header.Get("Authorization")
	if strings.HasPrefix(auth, "Bearer ") {
		return strings.TrimSpace(auth[7:])
	}
	return ""
}

// AuthorizeToken returns true if got matches expected using constant-time
// comparison. Empty tokens are always treated as unauthorized.
func AuthorizeToken(got, expected string) bool {
	if strings.TrimSpace(expected) == "" || got == "" {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(got), []byte(expected)) == 1
}

// BearerAuth guards a route group with a static API token. An empty
// expected token disables the guard; the control API binds loopback by
// default and works without one.
func BearerAuth(expected string) func(http.Handler) http.Handler {
	enabled := strings.TrimSpace(expected) != ""

	return func(next http.Handler) http.Handler {
		if !enabled {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !AuthorizeToken(ExtractBearer(r), expected) {
				logger := log.WithComponentFromContext(r.Context(), "http")
				logger.Warn().
					Str(log.FieldEvent, "auth.denied").
					Str(log.FieldPath, r.URL.Path).
					Str("remote_addr", r.RemoteAddr).
					Msg("request rejected: missing or invalid API token")

				w.Header().Set("WWW-Authenticate", "Bearer")
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusUnauthorized)
				_, _ = w.Write([]byte(`{"error":"unauthorized","detail":"missing or invalid API token"}`))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
