// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package backend

import (
	"context"
	"errors"
	"fmt"
	"math"
	"slices"
	"strings"
	"sync"

	"github.com/rs/zerolog"

	"github.com/ManuGH/spotbridge/internal/log"
	"github.com/ManuGH/spotbridge/internal/metrics"
	"github.com/ManuGH/spotbridge/internal/spotify"
)

// Remote drives a Connect device that is already active somewhere else,
// purely through the Web API. No process, no channel; readiness means a
// usable device is cached. When no device is active but one is visible and
// unrestricted, playback is transferred to it.
type Remote struct {
	api    spotify.API
	logger zerolog.Logger

	mu          sync.Mutex
	initialized bool
	ready       bool
	deviceID    string
	deviceName  string
	playback    PlaybackState
	stateFns    []func(PlaybackState)
	errorFns    []func(error)
}

func NewRemote(api spotify.API) *Remote {
	return &Remote{
		api:    api,
		logger: log.WithComponent("backend.remote"),
	}
}

var (
	_ PlaybackBackend = (*Remote)(nil)
	_ DeviceReporter  = (*Remote)(nil)
)

func (r *Remote) Initialize(ctx context.Context) error {
	r.mu.Lock()
	r.initialized = true
	r.mu.Unlock()

	if err := r.refreshDevice(ctx); err != nil {
		return err
	}
	r.syncState(ctx)
	return nil
}

// refreshDevice re-reads the device list and caches a usable device: the
// active one when present, otherwise the first unrestricted device after
// transferring playback to it.
func (r *Remote) refreshDevice(ctx context.Context) error {
	devices, err := r.api.Devices(ctx)
	if err != nil {
		r.setReady(false, "", "")
		return fmt.Errorf("list devices: %w", err)
	}

	for _, d := range devices {
		if d.Active && !d.Restricted {
			r.setReady(true, d.ID, d.Name)
			return nil
		}
	}
	for _, d := range devices {
		if d.Restricted {
			continue
		}
		if err := r.api.Transfer(ctx, d.ID, false); err != nil {
			r.logger.Debug().
				Err(err).
				Str(log.FieldDeviceID, d.ID).
				Msg("transfer to idle device failed")
			continue
		}
		r.logger.Info().
			Str(log.FieldEvent, "backend.transferred").
			Str(log.FieldDeviceID, d.ID).
			Str(log.FieldDeviceName, d.Name).
			Msg("playback transferred to idle device")
		r.setReady(true, d.ID, d.Name)
		return nil
	}

	r.setReady(false, "", "")
	return ErrDeviceNotFound
}

func (r *Remote) setReady(ready bool, id, name string) {
	r.mu.Lock()
	r.ready = ready
	r.deviceID = id
	r.deviceName = name
	r.mu.Unlock()
}

func (r *Remote) Ready() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.ready
}

func (r *Remote) Readiness() Readiness {
	r.mu.Lock()
	defer r.mu.Unlock()
	switch {
	case !r.initialized:
		return ReadinessUninitialized
	case r.ready:
		return ReadinessReady
	default:
		return ReadinessDegraded
	}
}

func (r *Remote) State() PlaybackState {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.playback
}

func (r *Remote) DeviceID() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.deviceID
}

func (r *Remote) DeviceName() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.deviceName
}

func (r *Remote) OnStateChange(fn func(PlaybackState)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.stateFns = append(r.stateFns, fn)
}

func (r *Remote) OnError(fn func(error)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.errorFns = append(r.errorFns, fn)
}

func (r *Remote) Play(ctx context.Context, trackURI string, positionMs int) error {
	return r.withDevice(ctx, "play", func(dev string) error {
		return r.api.Play(ctx, spotify.PlayRequest{DeviceID: dev, URIs: []string{trackURI}, PositionMs: positionMs})
	})
}

func (r *Remote) Resume(ctx context.Context) error {
	return r.withDevice(ctx, "resume", func(dev string) error {
		return r.api.Play(ctx, spotify.PlayRequest{DeviceID: dev})
	})
}

func (r *Remote) Pause(ctx context.Context) error {
	return r.withDevice(ctx, "pause", func(dev string) error {
		return r.api.Pause(ctx, dev)
	})
}

func (r *Remote) Next(ctx context.Context) error {
	return r.withDevice(ctx, "next", func(dev string) error {
		return r.api.Next(ctx, dev)
	})
}

func (r *Remote) Previous(ctx context.Context) error {
	return r.withDevice(ctx, "previous", func(dev string) error {
		return r.api.Previous(ctx, dev)
	})
}

func (r *Remote) Seek(ctx context.Context, positionMs int) error {
	return r.withDevice(ctx, "seek", func(dev string) error {
		return r.api.Seek(ctx, dev, positionMs)
	})
}

func (r *Remote) SetVolume(ctx context.Context, level float64) error {
	percent := volumePercent(level)
	return r.withDevice(ctx, "volume", func(dev string) error {
		return r.api.SetVolume(ctx, dev, percent)
	})
}

func (r *Remote) SetShuffle(ctx context.Context, on bool) error {
	return r.withDevice(ctx, "shuffle", func(dev string) error {
		return r.api.SetShuffle(ctx, dev, on)
	})
}

func (r *Remote) SetRepeat(ctx context.Context, mode string) error {
	return r.withDevice(ctx, "repeat", func(dev string) error {
		return r.api.SetRepeat(ctx, dev, mode)
	})
}

func (r *Remote) Shutdown(ctx context.Context) error {
	r.mu.Lock()
	ready := r.ready
	dev := r.deviceID
	r.initialized = false
	r.ready = false
	r.deviceID = ""
	r.deviceName = ""
	r.playback = PlaybackState{}
	r.mu.Unlock()

	if ready {
		// Best effort; the device survives us either way.
		if err := r.api.Pause(ctx, dev); err != nil {
			r.logger.Debug().Err(err).Msg("pause on shutdown failed")
		}
	}
	return nil
}

// withDevice runs one device-targeted call, refreshing the cached device
// once when it turns out to be stale.
func (r *Remote) withDevice(ctx context.Context, name string, call func(deviceID string) error) error {
	r.mu.Lock()
	ready, dev := r.ready, r.deviceID
	r.mu.Unlock()
	if !ready {
		metrics.RecordCommandFailure(name, "not_ready")
		return ErrNotReady
	}

	err := call(dev)
	if errors.Is(err, spotify.ErrNoActiveDevice) {
		if refreshErr := r.refreshDevice(ctx); refreshErr != nil {
			metrics.RecordCommandFailure(name, "device_not_found")
			r.fireError(refreshErr)
			return refreshErr
		}
		r.mu.Lock()
		dev = r.deviceID
		r.mu.Unlock()
		err = call(dev)
	}
	if err != nil {
		metrics.RecordCommandFailure(name, "api_error")
		r.fireError(err)
		return err
	}

	r.syncState(ctx)
	return nil
}

// syncState refreshes the cached snapshot after a successful command.
// Failures are logged, never surfaced; the command itself succeeded.
func (r *Remote) syncState(ctx context.Context) {
	st, err := r.api.State(ctx)
	if err != nil || st == nil {
		r.logger.Debug().Err(err).Msg("state refresh failed")
		return
	}

	snapshot := PlaybackState{
		TrackURI:   st.TrackURI,
		TrackName:  st.TrackName,
		ArtistName: strings.Join(st.Artists, ", "),
		PositionMs: st.ProgressMs,
		DurationMs: st.DurationMs,
		IsPlaying:  st.Playing,
	}

	r.mu.Lock()
	r.playback = snapshot
	fns := slices.Clone(r.stateFns)
	r.mu.Unlock()
	for _, fn := range fns {
		fn(snapshot)
	}
}

func (r *Remote) fireError(err error) {
	r.mu.Lock()
	fns := slices.Clone(r.errorFns)
	r.mu.Unlock()
	for _, fn := range fns {
		fn(err)
	}
}

// volumePercent maps the unit-interval level onto the 0..100 scale the Web
// API expects, clamping out-of-range input.
func volumePercent(level float64) int {
	if math.IsNaN(level) || level < 0 {
		return 0
	}
	if level > 1 {
		return 100
	}
	return int(math.Round(level * 100))
}
