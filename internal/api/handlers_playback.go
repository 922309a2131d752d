// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package api

import (
	"encoding/json"
	"net/http"

	"github.com/ManuGH/spotbridge/internal/backend"
)

type commandResponse struct {
	Status string `json:"status"`
}

// runCommand resolves the backend and executes one playback command against
// it. Every failure goes through the shared error mapping so the shell sees
// stable codes.
func (s *Server) runCommand(w http.ResponseWriter, fn func(b backend.PlaybackBackend) error) {
	b := s.currentBackend()
	if b == nil {
		writeJSON(w, http.StatusServiceUnavailable, errorBody{
			Error:  "no_credentials",
			Detail: "no playback backend available; configure an access credential",
		})
		return
	}
	if err := fn(b); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, commandResponse{Status: "ok"})
}

func decodeBody(w http.ResponseWriter, r *http.Request, v any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	return json.NewDecoder(r.Body).Decode(v)
}

func (s *Server) handlePlay(w http.ResponseWriter, r *http.Request) {
	var req struct {
		TrackURI   string `json:"track_uri"`
		PositionMs int    `json:"position_ms"`
	}
	if err := decodeBody(w, r, &req); err != nil {
		writeBadRequest(w, "invalid JSON body: "+err.Error())
		return
	}
	if req.TrackURI == "" {
		writeBadRequest(w, "track_uri is required")
		return
	}
	if req.PositionMs < 0 {
		writeBadRequest(w, "position_ms must be >= 0")
		return
	}
	s.runCommand(w, func(b backend.PlaybackBackend) error {
		return b.Play(r.Context(), req.TrackURI, req.PositionMs)
	})
}

func (s *Server) handlePause(w http.ResponseWriter, r *http.Request) {
	s.runCommand(w, func(b backend.PlaybackBackend) error {
		return b.Pause(r.Context())
	})
}

func (s *Server) handleResume(w http.ResponseWriter, r *http.Request) {
	s.runCommand(w, func(b backend.PlaybackBackend) error {
		return b.Resume(r.Context())
	})
}

func (s *Server) handleNext(w http.ResponseWriter, r *http.Request) {
	s.runCommand(w, func(b backend.PlaybackBackend) error {
		return b.Next(r.Context())
	})
}

func (s *Server) handlePrevious(w http.ResponseWriter, r *http.Request) {
	s.runCommand(w, func(b backend.PlaybackBackend) error {
		return b.Previous(r.Context())
	})
}

func (s *Server) handleSeek(w http.ResponseWriter, r *http.Request) {
	var req struct {
		PositionMs *int `json:"position_ms"`
	}
	if err := decodeBody(w, r, &req); err != nil {
		writeBadRequest(w, "invalid JSON body: "+err.Error())
		return
	}
	if req.PositionMs == nil {
		writeBadRequest(w, "position_ms is required")
		return
	}
	if *req.PositionMs < 0 {
		writeBadRequest(w, "position_ms must be >= 0")
		return
	}
	s.runCommand(w, func(b backend.PlaybackBackend) error {
		return b.Seek(r.Context(), *req.PositionMs)
	})
}

func (s *Server) handleVolume(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Level *float64 `json:"level"`
	}
	if err := decodeBody(w, r, &req); err != nil {
		writeBadRequest(w, "invalid JSON body: "+err.Error())
		return
	}
	if req.Level == nil {
		writeBadRequest(w, "level is required")
		return
	}
	// Out-of-range levels are clamped by the backend, not rejected.
	s.runCommand(w, func(b backend.PlaybackBackend) error {
		return b.SetVolume(r.Context(), *req.Level)
	})
}

func (s *Server) handleShuffle(w http.ResponseWriter, r *http.Request) {
	var req struct {
		On *bool `json:"on"`
	}
	if err := decodeBody(w, r, &req); err != nil {
		writeBadRequest(w, "invalid JSON body: "+err.Error())
		return
	}
	if req.On == nil {
		writeBadRequest(w, "on is required")
		return
	}
	s.runCommand(w, func(b backend.PlaybackBackend) error {
		return b.SetShuffle(r.Context(), *req.On)
	})
}

func (s *Server) handleRepeat(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Mode string `json:"mode"`
	}
	if err := decodeBody(w, r, &req); err != nil {
		writeBadRequest(w, "invalid JSON body: "+err.Error())
		return
	}
	switch req.Mode {
	case "off", "track", "context":
	default:
		writeBadRequest(w, "mode must be one of: off, track, context")
		return
	}
	s.runCommand(w, func(b backend.PlaybackBackend) error {
		return b.SetRepeat(r.Context(), req.Mode)
	})
}
