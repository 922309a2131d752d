// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package backend exposes playback capability to the rest of the daemon.
// It hides the helper process, control channel and device discovery behind
// one interface with two real implementations: Internal supervises a local
// helper registered as a Connect device, Remote drives a device that is
// already active elsewhere. The rest of the application never talks to the
// supervisor or the channel directly.
package backend

import (
	"context"
	"errors"
)

// Readiness is the externally visible startup state of a backend.
type Readiness string

const (
	ReadinessUninitialized     Readiness = "uninitialized"
	ReadinessProcessStarting   Readiness = "process_starting"
	ReadinessContentLoading    Readiness = "content_loading"
	ReadinessCredentialPending Readiness = "credential_pending"
	ReadinessConnectingDevice  Readiness = "connecting_device"
	ReadinessDiscoveringDevice Readiness = "discovering_device"
	ReadinessReady             Readiness = "ready"
	ReadinessDegraded          Readiness = "degraded"
)

// readinessStates enumerates every state for the readiness gauge.
func readinessStates() []string {
	return []string{
		string(ReadinessUninitialized),
		string(ReadinessProcessStarting),
		string(ReadinessContentLoading),
		string(ReadinessCredentialPending),
		string(ReadinessConnectingDevice),
		string(ReadinessDiscoveringDevice),
		string(ReadinessReady),
		string(ReadinessDegraded),
	}
}

// PlaybackState is the normalized snapshot every backend reports. The zero
// value means idle: nothing loaded, nothing playing.
type PlaybackState struct {
	TrackURI    string `json:"track_uri,omitempty"`
	TrackName   string `json:"track_name,omitempty"`
	ArtistName  string `json:"artist_name,omitempty"`
	PositionMs  int    `json:"position_ms"`
	DurationMs  int    `json:"duration_ms"`
	IsPlaying   bool   `json:"is_playing"`
	IsBuffering bool   `json:"is_buffering"`
}

var (
	// ErrNotReady rejects playback commands while the backend has not
	// confirmed a device. Commands are never queued; only the credential
	// send inside the control channel buffers.
	ErrNotReady = errors.New("backend: playback backend not ready")
	// ErrDeviceNotFound means discovery exhausted its attempts without a
	// device matching the configured display name.
	ErrDeviceNotFound = errors.New("backend: no matching playback device found")
	// ErrNoTokenProvider means backend construction was requested without
	// any credential source.
	ErrNoTokenProvider = errors.New("backend: no token provider configured")
)

// PlaybackBackend is the capability surface used by the HTTP API and any
// other orchestration layer.
type PlaybackBackend interface {
	// Initialize starts the backend's path toward Ready. It returns once
	// the outcome of the launch stage is known, not once the backend is
	// ready; readiness progresses asynchronously afterwards. Calling it
	// while the backend is ready or already progressing is a no-op.
	Initialize(ctx context.Context) error
	Ready() bool
	Readiness() Readiness
	State() PlaybackState
	OnStateChange(fn func(PlaybackState))
	OnError(fn func(error))

	Play(ctx context.Context, trackURI string, positionMs int) error
	Pause(ctx context.Context) error
	Resume(ctx context.Context) error
	Next(ctx context.Context) error
	Previous(ctx context.Context) error
	Seek(ctx context.Context, positionMs int) error
	SetVolume(ctx context.Context, level float64) error
	SetShuffle(ctx context.Context, on bool) error
	SetRepeat(ctx context.Context, mode string) error

	// Shutdown stops polls and any owned process and resets the backend to
	// Uninitialized. A later Initialize starts over.
	Shutdown(ctx context.Context) error
}

// DeviceReporter is implemented by backends that know which Connect device
// they control. The status endpoint surfaces it when available.
type DeviceReporter interface {
	DeviceID() string
	DeviceName() string
}
