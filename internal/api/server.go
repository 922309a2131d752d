// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package api implements the daemon's local HTTP control surface. The app
// shell drives playback exclusively through these endpoints; nothing here is
// meant to be reachable beyond the loopback interface.
package api

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/ManuGH/spotbridge/internal/api/middleware"
	"github.com/ManuGH/spotbridge/internal/backend"
	"github.com/ManuGH/spotbridge/internal/diag"
	"github.com/ManuGH/spotbridge/internal/health"
	"github.com/ManuGH/spotbridge/internal/spotify"
)

// APIVersion is reported on every versioned response.
const APIVersion = "v1"

const maxBodyBytes = 64 << 10

// BackendSource resolves playback backends by mode. *backend.Factory
// implements it; tests substitute fakes.
type BackendSource interface {
	Backend(mode backend.Mode) backend.PlaybackBackend
	Prewarm(ctx context.Context, mode backend.Mode) error
}

// Config carries the server wiring the daemon resolves at startup.
type Config struct {
	Version string
	Mode    backend.Mode

	// APIToken guards the /api/v1 group when set. Probes and /version
	// stay open so the shell can detect the daemon before it has a token.
	APIToken string

	// Rate limiting; RPS <= 0 disables the limiter.
	RateRPS   float64
	RateBurst int

	// CORS origins for the app shell's webview. Empty keeps the
	// development defaults.
	AllowedOrigins []string

	EnableMetrics  bool
	TracingService string
}

// Server exposes the daemon's control surface over HTTP.
type Server struct {
	cfg     Config
	source  BackendSource
	spotify spotify.API
	health  *health.Manager
	ring    *diag.Ring
}

// NewServer wires the control surface. spotifyAPI may be nil when no
// credentials resolved at startup; the affected endpoints answer 503.
func NewServer(cfg Config, source BackendSource, spotifyAPI spotify.API, healthMgr *health.Manager, ring *diag.Ring) *Server {
	return &Server{
		cfg:     cfg,
		source:  source,
		spotify: spotifyAPI,
		health:  healthMgr,
		ring:    ring,
	}
}

// Router builds the chi router with the canonical middleware stack and all
// routes mounted.
func (s *Server) Router() http.Handler {
	stack := middleware.StackConfig{
		EnableCORS:     true,
		AllowedOrigins: s.cfg.AllowedOrigins,
		EnableMetrics:  s.cfg.EnableMetrics,
		TracingService: s.cfg.TracingService,
		EnableLogging:  true,
	}
	if s.cfg.RateRPS > 0 {
		// httprate counts per window; a minute window with burst headroom
		// approximates the configured steady-state rate.
		stack.RateLimitRequests = int(s.cfg.RateRPS*60) + s.cfg.RateBurst
		stack.RateLimitWindow = time.Minute
	}
	r := middleware.NewRouter(stack)

	r.Get("/healthz", s.health.ServeHealth)
	r.Get("/readyz", s.health.ServeReady)
	r.Get("/version", s.handleVersion)

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(middleware.BearerAuth(s.cfg.APIToken))

		r.Get("/status", s.handleStatus)
		r.Get("/devices", s.handleDevices)
		r.Get("/diagnostics", s.handleDiagnostics)

		r.Post("/backend/prewarm", s.handlePrewarm)
		r.Post("/backend/stop", s.handleStop)

		r.Route("/playback", func(r chi.Router) {
			r.Post("/play", s.handlePlay)
			r.Post("/pause", s.handlePause)
			r.Post("/resume", s.handleResume)
			r.Post("/next", s.handleNext)
			r.Post("/previous", s.handlePrevious)
			r.Post("/seek", s.handleSeek)
			r.Post("/volume", s.handleVolume)
			r.Post("/shuffle", s.handleShuffle)
			r.Post("/repeat", s.handleRepeat)
		})
	})

	return r
}

// currentBackend resolves the configured backend. It is nil when no
// credentials were available at startup.
func (s *Server) currentBackend() backend.PlaybackBackend {
	if s.source == nil {
		return nil
	}
	return s.source.Backend(s.cfg.Mode)
}
