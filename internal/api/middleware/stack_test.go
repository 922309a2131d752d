// SPDX-License-Identifier: MIT

package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ManuGH/spotbridge/internal/log"
)

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})
}

func TestRequestIDGeneratesWhenMissing(t *testing.T) {
	var seen string
	h := RequestID(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = log.RequestIDFromContext(r.Context())
		w.WriteHeader(http.StatusOK)
	}))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/status", nil))

	require.NotEmpty(t, seen)
	assert.Equal(t, seen, rec.Header().Get(HeaderRequestID))
	_, err := uuid.Parse(seen)
	assert.NoError(t, err, "generated request IDs should be UUIDs")
}

func TestRequestIDKeepsCallerID(t *testing.T) {
	var seen string
	h := RequestID(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = log.RequestIDFromContext(r.Context())
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(http.MethodGet, "/api/v1/status", nil)
	req.Header.Set(HeaderRequestID, "shell-42")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	assert.Equal(t, "shell-42", seen)
	assert.Equal(t, "shell-42", rec.Header().Get(HeaderRequestID))
}

func TestRecovererConvertsPanicTo500(t *testing.T) {
	h := Recoverer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		panic("handler exploded")
	}))

	rec := httptest.NewRecorder()
	require.NotPanics(t, func() {
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/status", nil))
	})

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
	assert.Contains(t, rec.Body.String(), "internal_error")
}

func TestRateLimitReturns429WithRetryAfter(t *testing.T) {
	h := RateLimit(RateLimitConfig{
		RequestLimit: 2,
		WindowSize:   time.Minute,
	})(okHandler())

	for i := 0; i < 2; i++ {
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/status", nil))
		require.Equal(t, http.StatusOK, rec.Code, "request %d should pass", i+1)
	}

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/status", nil))

	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, "60", rec.Header().Get("Retry-After"))
	assert.Contains(t, rec.Body.String(), "rate_limit_exceeded")
}

func TestCORS(t *testing.T) {
	tests := []struct {
		name       string
		origins    []string
		origin     string
		wantOrigin string
	}{
		{
			name:       "allowed origin echoed",
			origins:    []string{"http://shell.local"},
			origin:     "http://shell.local",
			wantOrigin: "http://shell.local",
		},
		{
			name:       "unknown origin blocked",
			origins:    []string{"http://shell.local"},
			origin:     "http://evil.example",
			wantOrigin: "",
		},
		{
			name:       "wildcard allows all",
			origins:    []string{"*"},
			origin:     "http://anything.example",
			wantOrigin: "http://anything.example",
		},
		{
			name:       "no origin header allows non-browser clients",
			origins:    []string{"http://shell.local"},
			origin:     "",
			wantOrigin: "*",
		},
		{
			name:       "empty config keeps dev defaults",
			origins:    nil,
			origin:     "http://localhost:5173",
			wantOrigin: "http://localhost:5173",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := CORS(tt.origins)(okHandler())
			req := httptest.NewRequest(http.MethodGet, "/api/v1/status", nil)
			if tt.origin != "" {
				req.Header.Set("Origin", tt.origin)
			}
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, req)

			assert.Equal(t, tt.wantOrigin, rec.Header().Get("Access-Control-Allow-Origin"))
		})
	}
}

func TestCORSPreflight(t *testing.T) {
	h := CORS([]string{"http://shell.local"})(okHandler())
	req := httptest.NewRequest(http.MethodOptions, "/api/v1/playback/play", nil)
	req.Header.Set("Origin", "http://shell.local")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, "GET, POST, OPTIONS", rec.Header().Get("Allow"))
	assert.Equal(t, "http://shell.local", rec.Header().Get("Access-Control-Allow-Origin"))
}

func TestApplyStackWiresRequestID(t *testing.T) {
	r := NewRouter(StackConfig{
		EnableLogging:     true,
		RateLimitRequests: 100,
		RateLimitWindow:   time.Minute,
	})
	r.Get("/ping", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/ping", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.NotEmpty(t, rec.Header().Get(HeaderRequestID))
}

func TestMetricsWriterCapturesImplicitStatus(t *testing.T) {
	rec := httptest.NewRecorder()
	mw := &metricsWriter{ResponseWriter: rec, statusCode: http.StatusOK}

	_, err := mw.Write([]byte("body"))
	require.NoError(t, err)

	assert.Equal(t, http.StatusOK, mw.statusCode)
	assert.Equal(t, 4, mw.bytesWritten)

	// A later WriteHeader must not overwrite the recorded status.
	mw.WriteHeader(http.StatusTeapot)
	assert.Equal(t, http.StatusOK, mw.statusCode)
}
