// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package api

import (
	"net/http"
	"strconv"

	"github.com/ManuGH/spotbridge/internal/backend"
	"github.com/ManuGH/spotbridge/internal/diag"
	"github.com/ManuGH/spotbridge/internal/log"
)

// StatusResponse is the stable contract of GET /api/v1/status. Fields are
// append-only; the app shell polls this endpoint to render playback state.
type StatusResponse struct {
	Status    string                `json:"status"`
	Version   string                `json:"version"`
	Mode      string                `json:"mode"`
	Readiness string                `json:"readiness"`
	Device    *DeviceInfo           `json:"device,omitempty"`
	Playback  backend.PlaybackState `json:"playback"`
}

// DeviceInfo identifies the Connect device the backend controls.
type DeviceInfo struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

func statusLabel(r backend.Readiness) string {
	switch r {
	case backend.ReadinessReady:
		return "ok"
	case backend.ReadinessDegraded:
		return "degraded"
	case backend.ReadinessUninitialized:
		return "idle"
	default:
		return "starting"
	}
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("X-API-Version", APIVersion)

	resp := StatusResponse{
		Status:    "no_credentials",
		Version:   s.cfg.Version,
		Mode:      string(s.cfg.Mode),
		Readiness: string(backend.ReadinessUninitialized),
	}
	if b := s.currentBackend(); b != nil {
		readiness := b.Readiness()
		resp.Status = statusLabel(readiness)
		resp.Readiness = string(readiness)
		resp.Playback = b.State()
		if rep, ok := b.(backend.DeviceReporter); ok && rep.DeviceID() != "" {
			resp.Device = &DeviceInfo{ID: rep.DeviceID(), Name: rep.DeviceName()}
		}
	}

	logger := log.WithComponentFromContext(r.Context(), "api")
	logger.Debug().
		Str(log.FieldEvent, "status.served").
		Str("readiness", resp.Readiness).
		Msg("status requested")

	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleDevices(w http.ResponseWriter, r *http.Request) {
	if s.spotify == nil {
		writeJSON(w, http.StatusServiceUnavailable, errorBody{
			Error:  "no_credentials",
			Detail: "Spotify Web API client not configured",
		})
		return
	}
	devices, err := s.spotify.Devices(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"devices": devices})
}

func (s *Server) handleDiagnostics(w http.ResponseWriter, r *http.Request) {
	n := diag.DefaultCapacity
	if raw := r.URL.Query().Get("n"); raw != "" {
		v, err := strconv.Atoi(raw)
		if err != nil || v <= 0 {
			writeBadRequest(w, "n must be a positive integer")
			return
		}
		n = v
	}

	var lines []string
	if s.ring != nil {
		lines = s.ring.LastN(n)
	}
	if lines == nil {
		lines = []string{}
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"lines": lines,
		"count": len(lines),
	})
}

func (s *Server) handlePrewarm(w http.ResponseWriter, r *http.Request) {
	if s.source == nil {
		writeJSON(w, http.StatusServiceUnavailable, errorBody{
			Error:  "no_credentials",
			Detail: "no playback backend available; configure an access credential",
		})
		return
	}
	if err := s.source.Prewarm(r.Context(), s.cfg.Mode); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, commandResponse{Status: "ok"})
}

// handleStop tears the backend down. Stopping an absent backend succeeds so
// the shell can call it unconditionally on its own shutdown path.
func (s *Server) handleStop(w http.ResponseWriter, r *http.Request) {
	b := s.currentBackend()
	if b == nil {
		writeJSON(w, http.StatusOK, commandResponse{Status: "ok"})
		return
	}
	if err := b.Shutdown(r.Context()); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, commandResponse{Status: "ok"})
}

func (s *Server) handleVersion(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"service": "spotbridge",
		"version": s.cfg.Version,
	})
}
