// SPDX-License-Identifier: MIT

package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExtractBearer(t *testing.T) {
	tests := []struct {
		name   string
		header string
		want   string
	}{
		{name: "bearer token", header: "Bearer tok-123", want: "tok-123"},
		{name: "bearer with padding", header: "Bearer  tok-123 ", want: "tok-123"},
		{name: "no header", header: "", want: ""},
		{name: "basic auth ignored", header: "Basic dXNlcjpwYXNz", want: ""},
		{name: "bare token ignored", header: "tok-123", want: ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := httptest.NewRequest(http.MethodGet, "/api/v1/status", nil)
			if tt.header != "" {
				r.Header.Set("Authorization", tt.header)
			}
			assert.Equal(t, tt.want, ExtractBearer(r))
		})
	}
}

func TestAuthorizeToken(t *testing.T) {
	assert.True(t, AuthorizeToken("secret", "secret"))
	assert.False(t, AuthorizeToken("wrong", "secret"))
	assert.False(t, AuthorizeToken("", "secret"))
	assert.False(t, AuthorizeToken("secret", ""))
	assert.False(t, AuthorizeToken("", ""))
}

func TestBearerAuthDisabledPassesThrough(t *testing.T) {
	h := BearerAuth("")(okHandler())

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/status", nil))

	require.Equal(t, http.StatusOK, rec.Code)
}

func TestBearerAuthAcceptsValidToken(t *testing.T) {
	h := BearerAuth("secret")(okHandler())

	r := httptest.NewRequest(http.MethodPost, "/api/v1/playback/pause", nil)
	r.Header.Set("Authorization", "Bearer secret")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, r)

	require.Equal(t, http.StatusOK, rec.Code)
}

func TestBearerAuthRejectsBadToken(t *testing.T) {
	h := BearerAuth("secret")(okHandler())

	for _, header := range []string{"", "Bearer wrong", "Bearer "} {
		r := httptest.NewRequest(http.MethodGet, "/api/v1/status", nil)
		if header != "" {
			r.Header.Set("Authorization", header)
		}
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, r)

		require.Equal(t, http.StatusUnauthorized, rec.Code)
		assert.Equal(t, "Bearer", rec.Header().Get("WWW-Authenticate"))
		assert.Contains(t, rec.Body.String(), "unauthorized")
	}
}
