// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package backend

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/ManuGH/spotbridge/internal/player"
	"github.com/ManuGH/spotbridge/internal/spotify"
	"github.com/ManuGH/spotbridge/internal/token"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

// helperChatty reports content and device readiness on its own, like a
// helper whose local signaling works.
const helperChatty = `#!/bin/sh
echo '{"event":"content_loaded"}'
echo '{"event":"ready","device_id":"dev-123"}'
while read line; do :; done
`

// helperQuiet loads content when asked but never reports ready; only
// discovery can confirm readiness.
const helperQuiet = `#!/bin/sh
while read line; do
  case "$line" in
    *load*) echo '{"event":"content_loaded"}' ;;
  esac
done
`

// helperFlaky degrades on pause and recovers on its own shortly after.
const helperFlaky = `#!/bin/sh
echo '{"event":"content_loaded"}'
echo '{"event":"ready","device_id":"dev-123"}'
while read line; do
  case "$line" in
    *pause*)
      echo '{"event":"not_ready","device_id":"dev-123"}'
      sleep 0.2
      echo '{"event":"ready","device_id":"dev-123"}'
      ;;
  esac
done
`

// helperForeignNotReady reports a different device as gone.
const helperForeignNotReady = `#!/bin/sh
echo '{"event":"content_loaded"}'
echo '{"event":"ready","device_id":"dev-123"}'
while read line; do
  case "$line" in
    *pause*) echo '{"event":"not_ready","device_id":"dev-999"}' ;;
  esac
done
`

// helperErrOnSeek reports a playback error when seeked.
const helperErrOnSeek = `#!/bin/sh
echo '{"event":"content_loaded"}'
echo '{"event":"ready","device_id":"dev-123"}'
while read line; do
  case "$line" in
    *seek*) echo '{"event":"error","code":"playback_failed","message":"stream stalled"}' ;;
  esac
done
`

// helperDiesOnVolume simulates a helper crash triggered by a command.
const helperDiesOnVolume = `#!/bin/sh
echo '{"event":"content_loaded"}'
echo '{"event":"ready","device_id":"dev-123"}'
while read line; do
  case "$line" in
    *volume*) exit 0 ;;
  esac
done
`

// helperStateOnSeek answers seeks with a playback snapshot.
const helperStateOnSeek = `#!/bin/sh
echo '{"event":"content_loaded"}'
echo '{"event":"ready","device_id":"dev-123"}'
while read line; do
  case "$line" in
    *seek*) echo '{"event":"state_changed","is_playing":true,"position_ms":4500,"duration_ms":200000,"track_uri":"spotify:track:xyz","track_name":"Song","artist_name":"Band"}' ;;
  esac
done
`

func writeHelperScript(t *testing.T, script string) string {
	t.Helper()
	dir := t.TempDir()
	const name = "spotbridge-helper"
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(script), 0o755))
	t.Setenv("PATH", dir+string(os.PathListSeparator)+os.Getenv("PATH"))
	return name
}

func newInternalBackend(t *testing.T, script string, api *fakeAPI, provider token.Provider) (*Internal, *player.Supervisor) {
	t.Helper()
	name := writeHelperScript(t, script)
	sup := player.NewSupervisor(player.Config{
		Mode:       player.LaunchModePackaged,
		HelperName: name,
		StopGrace:  300 * time.Millisecond,
	}, nil)
	if provider == nil {
		provider = token.NewStatic("tok-backend-0001")
	}
	b := NewInternal(InternalConfig{
		DeviceName:   "Slideshow Player",
		PollAttempts: 6,
		PollInterval: 10 * time.Millisecond,
	}, sup, api, provider)

	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		require.NoError(t, b.Shutdown(ctx))
		require.Eventually(t, func() bool { return !sup.Running() }, 5*time.Second, 20*time.Millisecond)
	})
	return b, sup
}

func waitReadiness(t *testing.T, b *Internal, want Readiness) {
	t.Helper()
	require.Eventually(t, func() bool { return b.Readiness() == want },
		5*time.Second, 10*time.Millisecond, "readiness never became %s (now %s)", want, b.Readiness())
}

func collectErrors(b *Internal) <-chan error {
	errs := make(chan error, 8)
	b.OnError(func(err error) {
		select {
		case errs <- err:
		default:
		}
	})
	return errs
}

func TestInitializeReadyViaLocalEvent(t *testing.T) {
	b, sup := newInternalBackend(t, helperChatty, &fakeAPI{}, nil)

	require.NoError(t, b.Initialize(context.Background()))
	waitReadiness(t, b, ReadinessReady)
	require.True(t, b.Ready())
	require.Equal(t, "dev-123", b.DeviceID())

	// Initialize while ready is a no-op: same process, same state.
	pid := sup.PID()
	require.NoError(t, b.Initialize(context.Background()))
	require.Equal(t, pid, sup.PID())
	require.Equal(t, ReadinessReady, b.Readiness())
}

func TestLocalReadyWinsOverDiscovery(t *testing.T) {
	// Discovery is slowed down and would resolve a different id; the
	// helper's own ready event must win the race.
	api := &fakeAPI{deviceDelay: 50 * time.Millisecond}
	api.SetDeviceQueue([]spotify.Device{slideshowDevice("dev-poll-9")})
	b, _ := newInternalBackend(t, helperChatty, api, nil)

	require.NoError(t, b.Initialize(context.Background()))
	waitReadiness(t, b, ReadinessReady)
	require.Equal(t, "dev-123", b.DeviceID())

	// Even after the poll had time to answer, the id is unchanged.
	time.Sleep(150 * time.Millisecond)
	require.Equal(t, "dev-123", b.DeviceID())
	require.Equal(t, ReadinessReady, b.Readiness())
}

func TestReadyViaDiscoveryThirdAttempt(t *testing.T) {
	api := &fakeAPI{}
	api.SetDeviceQueue(
		nil,
		nil,
		[]spotify.Device{slideshowDevice("dev-poll-9")},
	)
	b, _ := newInternalBackend(t, helperQuiet, api, nil)

	require.NoError(t, b.Initialize(context.Background()))
	waitReadiness(t, b, ReadinessReady)
	require.Equal(t, "dev-poll-9", b.DeviceID())
	require.Equal(t, 3, api.DeviceCalls())
}

func TestCommandsFailFastBeforeReady(t *testing.T) {
	api := &fakeAPI{}
	b, _ := newInternalBackend(t, helperQuiet, api, nil)

	require.NoError(t, b.Initialize(context.Background()))

	require.ErrorIs(t, b.Play(context.Background(), "spotify:track:abc", 0), ErrNotReady)
	require.ErrorIs(t, b.Pause(context.Background()), ErrNotReady)
	require.ErrorIs(t, b.SetVolume(context.Background(), 0.5), ErrNotReady)
	require.Empty(t, api.PlayCalls(), "no command may reach the API before ready")

	// The poll budget runs out without a match; the state stays
	// unresolved rather than degrading.
	require.Never(t, func() bool {
		st := b.Readiness()
		return st == ReadinessReady || st == ReadinessDegraded
	}, 400*time.Millisecond, 20*time.Millisecond)
	require.Equal(t, ReadinessDiscoveringDevice, b.Readiness())

	// A retried initialize re-runs the sequence; this time a device shows.
	api.SetDeviceQueue([]spotify.Device{slideshowDevice("dev-late-1")})
	require.NoError(t, b.Initialize(context.Background()))
	waitReadiness(t, b, ReadinessReady)
	require.Equal(t, "dev-late-1", b.DeviceID())
}

func TestNotReadyMatchingDeviceDegradesAndRecovers(t *testing.T) {
	b, _ := newInternalBackend(t, helperFlaky, &fakeAPI{}, nil)
	errs := collectErrors(b)

	require.NoError(t, b.Initialize(context.Background()))
	waitReadiness(t, b, ReadinessReady)

	require.NoError(t, b.Pause(context.Background()))

	select {
	case err := <-errs:
		require.ErrorContains(t, err, "reported not ready")
	case <-time.After(5 * time.Second):
		t.Fatal("degradation was never reported")
	}

	// The helper recovers on its own; no restart, same device.
	waitReadiness(t, b, ReadinessReady)
	require.Equal(t, "dev-123", b.DeviceID())
}

func TestNotReadyForOtherDeviceIgnored(t *testing.T) {
	b, _ := newInternalBackend(t, helperForeignNotReady, &fakeAPI{}, nil)
	errs := collectErrors(b)

	require.NoError(t, b.Initialize(context.Background()))
	waitReadiness(t, b, ReadinessReady)

	require.NoError(t, b.Pause(context.Background()))

	require.Never(t, func() bool { return b.Readiness() != ReadinessReady },
		300*time.Millisecond, 20*time.Millisecond)
	require.Empty(t, errs)
}

func TestErrorEventDegradesWhenReady(t *testing.T) {
	b, _ := newInternalBackend(t, helperErrOnSeek, &fakeAPI{}, nil)
	errs := collectErrors(b)

	require.NoError(t, b.Initialize(context.Background()))
	waitReadiness(t, b, ReadinessReady)

	require.NoError(t, b.Seek(context.Background(), 1000))
	waitReadiness(t, b, ReadinessDegraded)

	select {
	case err := <-errs:
		require.ErrorContains(t, err, "playback_failed")
	case <-time.After(5 * time.Second):
		t.Fatal("helper error was never surfaced")
	}
}

func TestHelperExitDegradesAndReinitializeRecovers(t *testing.T) {
	b, sup := newInternalBackend(t, helperDiesOnVolume, &fakeAPI{}, nil)
	errs := collectErrors(b)

	require.NoError(t, b.Initialize(context.Background()))
	waitReadiness(t, b, ReadinessReady)
	pid := sup.PID()

	require.NoError(t, b.SetVolume(context.Background(), 0.5))
	waitReadiness(t, b, ReadinessDegraded)

	select {
	case err := <-errs:
		require.ErrorContains(t, err, "helper process gone")
	case <-time.After(5 * time.Second):
		t.Fatal("process exit was never surfaced")
	}
	require.Eventually(t, func() bool { return !sup.Running() }, 5*time.Second, 20*time.Millisecond)

	// Re-initialize spawns a fresh helper and reaches ready again.
	require.NoError(t, b.Initialize(context.Background()))
	waitReadiness(t, b, ReadinessReady)
	require.NotEqual(t, pid, sup.PID())
}

func TestStateChangedAndBufferingFlow(t *testing.T) {
	b, _ := newInternalBackend(t, helperStateOnSeek, &fakeAPI{}, nil)

	updates := make(chan PlaybackState, 8)
	b.OnStateChange(func(st PlaybackState) {
		select {
		case updates <- st:
		default:
		}
	})

	require.NoError(t, b.Initialize(context.Background()))
	waitReadiness(t, b, ReadinessReady)

	// An accepted track start marks the state as buffering until the
	// next snapshot from the helper.
	require.NoError(t, b.Play(context.Background(), "spotify:track:xyz", 0))
	require.True(t, b.State().IsBuffering)

	require.NoError(t, b.Seek(context.Background(), 4500))
	require.Eventually(t, func() bool {
		return b.State().TrackURI == "spotify:track:xyz" && !b.State().IsBuffering
	}, 5*time.Second, 10*time.Millisecond)

	st := b.State()
	require.True(t, st.IsPlaying)
	require.Equal(t, 4500, st.PositionMs)
	require.Equal(t, 200000, st.DurationMs)
	require.Equal(t, "Song", st.TrackName)
	require.Equal(t, "Band", st.ArtistName)

	require.Eventually(t, func() bool { return len(updates) >= 2 }, 5*time.Second, 10*time.Millisecond)
	first := <-updates
	require.True(t, first.IsBuffering, "first observed update is the buffering mark")
}

func TestPlayRepollsStaleDevice(t *testing.T) {
	api := &fakeAPI{playErrs: []error{errNoActiveDevice("play")}}
	api.SetDeviceQueue(nil) // initial poll finds nothing until ready via local event
	b, _ := newInternalBackend(t, helperChatty, api, nil)

	require.NoError(t, b.Initialize(context.Background()))
	waitReadiness(t, b, ReadinessReady)
	require.Eventually(t, func() bool { return !b.disc.Running() },
		time.Second, 5*time.Millisecond, "startup poll must settle before the re-poll")

	api.SetDeviceQueue([]spotify.Device{slideshowDevice("dev-fresh")})
	require.NoError(t, b.Play(context.Background(), "spotify:track:abc", 1500))

	calls := api.PlayCalls()
	require.Len(t, calls, 2)
	require.Equal(t, "dev-123", calls[0].DeviceID)
	require.Equal(t, "dev-fresh", calls[1].DeviceID)
	require.Eventually(t, func() bool { return b.DeviceID() == "dev-fresh" },
		2*time.Second, 10*time.Millisecond)
}

func TestPlayFailsWhenRediscoveryExhausted(t *testing.T) {
	api := &fakeAPI{playErrs: []error{errNoActiveDevice("play")}}
	b, _ := newInternalBackend(t, helperChatty, api, nil)

	require.NoError(t, b.Initialize(context.Background()))
	waitReadiness(t, b, ReadinessReady)

	err := b.Play(context.Background(), "spotify:track:abc", 0)
	require.ErrorIs(t, err, ErrDeviceNotFound)
	require.Len(t, api.PlayCalls(), 1)
}

func TestInitializeInvalidDevPath(t *testing.T) {
	sup := player.NewSupervisor(player.Config{
		Mode:        player.LaunchModeDev,
		DevRepoPath: filepath.Join(t.TempDir(), "missing"),
	}, nil)
	b := NewInternal(InternalConfig{DeviceName: "Slideshow Player"}, sup, &fakeAPI{}, token.NewStatic("tok"))
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		require.NoError(t, b.Shutdown(ctx))
	})

	err := b.Initialize(context.Background())
	require.ErrorIs(t, err, player.ErrInvalidPath)
	require.Equal(t, ReadinessDegraded, b.Readiness())
	require.False(t, sup.Running())
}

func TestInitializeWithoutCredentialDegrades(t *testing.T) {
	b, sup := newInternalBackend(t, helperChatty, &fakeAPI{}, token.NewStatic(""))

	err := b.Initialize(context.Background())
	require.ErrorIs(t, err, token.ErrNoToken)
	require.Equal(t, ReadinessDegraded, b.Readiness())
	require.False(t, sup.Running())
}

func TestShutdownResetsAndRestarts(t *testing.T) {
	b, sup := newInternalBackend(t, helperChatty, &fakeAPI{}, nil)

	require.NoError(t, b.Initialize(context.Background()))
	waitReadiness(t, b, ReadinessReady)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, b.Shutdown(ctx))
	require.Equal(t, ReadinessUninitialized, b.Readiness())
	require.Equal(t, PlaybackState{}, b.State())
	require.Eventually(t, func() bool { return !sup.Running() }, 5*time.Second, 20*time.Millisecond)

	// The backend is reusable after an explicit reset.
	require.NoError(t, b.Initialize(context.Background()))
	waitReadiness(t, b, ReadinessReady)
}
