// SPDX-License-Identifier: MIT

package api

import (
	"context"
	"fmt"
	"sync"

	"github.com/ManuGH/spotbridge/internal/backend"
	"github.com/ManuGH/spotbridge/internal/spotify"
)

// fakeBackend scripts one playback backend for handler tests. Commands are
// recorded with their arguments; errs returns a scripted failure per command.
type fakeBackend struct {
	mu         sync.Mutex
	readiness  backend.Readiness
	state      backend.PlaybackState
	deviceID   string
	deviceName string
	errs       map[string]error
	calls      []string

	shutdownCalls int
}

func newFakeBackend(readiness backend.Readiness) *fakeBackend {
	return &fakeBackend{
		readiness: readiness,
		errs:      map[string]error{},
	}
}

// record appends "op detail" to the call log and returns the error scripted
// for op, if any.
func (f *fakeBackend) record(op, detail string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	call := op
	if detail != "" {
		call += " " + detail
	}
	f.calls = append(f.calls, call)
	return f.errs[op]
}

func (f *fakeBackend) Calls() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.calls...)
}

func (f *fakeBackend) Initialize(context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.errs["initialize"]
}

func (f *fakeBackend) Ready() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.readiness == backend.ReadinessReady
}

func (f *fakeBackend) Readiness() backend.Readiness {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.readiness
}

func (f *fakeBackend) State() backend.PlaybackState {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.state
}

func (f *fakeBackend) OnStateChange(func(backend.PlaybackState)) {}
func (f *fakeBackend) OnError(func(error))                       {}

func (f *fakeBackend) Play(_ context.Context, trackURI string, positionMs int) error {
	return f.record("play", fmt.Sprintf("%s@%d", trackURI, positionMs))
}

func (f *fakeBackend) Pause(context.Context) error    { return f.record("pause", "") }
func (f *fakeBackend) Resume(context.Context) error   { return f.record("resume", "") }
func (f *fakeBackend) Next(context.Context) error     { return f.record("next", "") }
func (f *fakeBackend) Previous(context.Context) error { return f.record("previous", "") }

func (f *fakeBackend) Seek(_ context.Context, positionMs int) error {
	return f.record("seek", fmt.Sprintf("%d", positionMs))
}

func (f *fakeBackend) SetVolume(_ context.Context, level float64) error {
	return f.record("volume", fmt.Sprintf("%.2f", level))
}

func (f *fakeBackend) SetShuffle(_ context.Context, on bool) error {
	return f.record("shuffle", fmt.Sprintf("%t", on))
}

func (f *fakeBackend) SetRepeat(_ context.Context, mode string) error {
	return f.record("repeat", mode)
}

func (f *fakeBackend) Shutdown(context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.shutdownCalls++
	return f.errs["shutdown"]
}

func (f *fakeBackend) ShutdownCalls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.shutdownCalls
}

func (f *fakeBackend) DeviceID() string   { return f.deviceID }
func (f *fakeBackend) DeviceName() string { return f.deviceName }

// fakeSource resolves a single backend regardless of mode.
type fakeSource struct {
	mu           sync.Mutex
	backend      backend.PlaybackBackend
	prewarmErr   error
	prewarmCalls []backend.Mode
}

func (f *fakeSource) Backend(backend.Mode) backend.PlaybackBackend {
	return f.backend
}

func (f *fakeSource) Prewarm(_ context.Context, mode backend.Mode) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.prewarmCalls = append(f.prewarmCalls, mode)
	return f.prewarmErr
}

func (f *fakeSource) PrewarmCalls() []backend.Mode {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]backend.Mode(nil), f.prewarmCalls...)
}

// fakeSpotify serves the devices endpoint.
type fakeSpotify struct {
	devices    []spotify.Device
	devicesErr error
}

func (f *fakeSpotify) Devices(context.Context) ([]spotify.Device, error) {
	return f.devices, f.devicesErr
}

func (f *fakeSpotify) State(context.Context) (*spotify.PlayerState, error) { return nil, nil }
func (f *fakeSpotify) Play(context.Context, spotify.PlayRequest) error     { return nil }
func (f *fakeSpotify) Pause(context.Context, string) error                 { return nil }
func (f *fakeSpotify) Next(context.Context, string) error                  { return nil }
func (f *fakeSpotify) Previous(context.Context, string) error              { return nil }
func (f *fakeSpotify) Seek(context.Context, string, int) error             { return nil }
func (f *fakeSpotify) SetVolume(context.Context, string, int) error        { return nil }
func (f *fakeSpotify) SetShuffle(context.Context, string, bool) error      { return nil }
func (f *fakeSpotify) SetRepeat(context.Context, string, string) error     { return nil }
func (f *fakeSpotify) Transfer(context.Context, string, bool) error        { return nil }
