// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package player

import (
	"context"
	"errors"
	"os"
	"os/exec"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

// helperBlocking stays alive until its stdin closes, like the real helper.
const helperBlocking = `#!/bin/sh
while read line; do :; done
`

// helperChatty announces readiness over stdout, then behaves like
// helperBlocking.
const helperChatty = `#!/bin/sh
echo '{"event":"content_loaded"}'
echo '{"event":"ready","device_id":"dev-1"}'
while read line; do :; done
`

// helperStubborn ignores SIGTERM so Stop has to escalate.
const helperStubborn = `#!/bin/sh
trap '' TERM
while :; do sleep 0.1; done
`

const helperExit7 = `#!/bin/sh
exit 7
`

const helperEnvDump = `#!/bin/sh
env > "$ENVDUMP"
`

const helperStderr = `#!/bin/sh
echo 'warn: playback crashed' 1>&2
exit 3
`

// writeHelper installs a stub helper script on PATH and returns its name.
func writeHelper(t *testing.T, script string) string {
	t.Helper()
	dir := t.TempDir()
	name := "spotbridge-helper"
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(script), 0o755))
	t.Setenv("PATH", dir+string(os.PathListSeparator)+os.Getenv("PATH"))
	return name
}

func newTestSupervisor(t *testing.T, script string) (*Supervisor, chan error) {
	t.Helper()
	name := writeHelper(t, script)
	sup := NewSupervisor(Config{
		Mode:       LaunchModePackaged,
		HelperName: name,
		StopGrace:  300 * time.Millisecond,
	}, nil)
	exits := make(chan error, 4)
	sup.OnExit(func(err error) { exits <- err })
	return sup, exits
}

func waitExit(t *testing.T, exits chan error) error {
	t.Helper()
	select {
	case err := <-exits:
		return err
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for helper exit")
		return nil
	}
}

func stopAndDrain(t *testing.T, sup *Supervisor, exits chan error) {
	t.Helper()
	require.NoError(t, sup.Stop(context.Background()))
	waitExit(t, exits)
	require.False(t, sup.Running())
}

func TestEnsureRunningIdempotent(t *testing.T) {
	sup, exits := newTestSupervisor(t, helperBlocking)

	attached := make(chan *Channel, 2)
	sup.OnAttach(func(ch *Channel) { attached <- ch })

	ctx := context.Background()
	require.NoError(t, sup.EnsureRunning(ctx, "tok-aaaa-bbbb", ""))
	require.True(t, sup.Running())

	pid := sup.PID()
	require.NotZero(t, pid)
	require.NotNil(t, sup.Channel())
	require.Same(t, sup.Channel(), <-attached)

	// A second call while the helper lives must not spawn again.
	require.NoError(t, sup.EnsureRunning(ctx, "tok-aaaa-bbbb", ""))
	require.Equal(t, pid, sup.PID())
	require.Empty(t, attached)

	stopAndDrain(t, sup, exits)
	require.Nil(t, sup.Channel())
	require.Zero(t, sup.PID())
}

func TestExitClearsStateAndAllowsRespawn(t *testing.T) {
	sup, exits := newTestSupervisor(t, helperExit7)

	ctx := context.Background()
	require.NoError(t, sup.EnsureRunning(ctx, "tok-aaaa-bbbb", ""))

	err := waitExit(t, exits)
	require.Error(t, err)
	var exitErr *exec.ExitError
	require.ErrorAs(t, err, &exitErr)
	require.Equal(t, 7, exitErr.ExitCode())
	require.False(t, sup.Running())

	// The cleared handle lets the next EnsureRunning spawn a fresh process.
	require.NoError(t, sup.EnsureRunning(ctx, "tok-aaaa-bbbb", ""))
	err = waitExit(t, exits)
	require.ErrorAs(t, err, &exitErr)
	require.Equal(t, 7, exitErr.ExitCode())
}

func TestEnsureRunningRequiresCredential(t *testing.T) {
	sup, _ := newTestSupervisor(t, helperBlocking)

	err := sup.EnsureRunning(context.Background(), "", "")
	require.ErrorIs(t, err, ErrNoAccessCredential)
	require.False(t, sup.Running())
}

func TestDevModeRejectsInvalidRepoPath(t *testing.T) {
	missing := filepath.Join(t.TempDir(), "nope")

	file := filepath.Join(t.TempDir(), "not-a-dir")
	require.NoError(t, os.WriteFile(file, []byte("x"), 0o644))

	tests := []struct {
		name string
		path string
	}{
		{"empty", ""},
		{"missing", missing},
		{"regular file", file},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sup := NewSupervisor(Config{Mode: LaunchModeDev, DevRepoPath: tt.path}, nil)
			err := sup.EnsureRunning(context.Background(), "tok-aaaa-bbbb", "")
			require.ErrorIs(t, err, ErrInvalidPath)
			require.False(t, sup.Running())
			require.Zero(t, sup.PID())
		})
	}
}

func TestPackagedHelperMissing(t *testing.T) {
	sup := NewSupervisor(Config{
		Mode:       LaunchModePackaged,
		HelperName: "spotbridge-helper-definitely-absent",
	}, nil)

	err := sup.EnsureRunning(context.Background(), "tok-aaaa-bbbb", "")
	require.ErrorIs(t, err, ErrHelperNotFound)
	require.False(t, sup.Running())
}

func TestUnknownLaunchMode(t *testing.T) {
	sup := NewSupervisor(Config{Mode: LaunchMode("container")}, nil)

	err := sup.EnsureRunning(context.Background(), "tok-aaaa-bbbb", "")
	require.Error(t, err)
	require.Contains(t, err.Error(), "unknown launch mode")
}

func TestEnvInjection(t *testing.T) {
	dump := filepath.Join(t.TempDir(), "env.txt")
	t.Setenv("ENVDUMP", dump)

	sup, exits := newTestSupervisor(t, helperEnvDump)

	require.NoError(t, sup.EnsureRunning(context.Background(), "sekret-token-123", "http://127.0.0.1:9777"))
	require.NoError(t, waitExit(t, exits))

	data, err := os.ReadFile(dump)
	require.NoError(t, err)
	env := string(data)
	require.Contains(t, env, "SPOTBRIDGE_ACCESS_TOKEN=sekret-token-123")
	require.Contains(t, env, "SPOTBRIDGE_HEADLESS=1")
	require.Contains(t, env, "SPOTBRIDGE_BACKEND_URL=http://127.0.0.1:9777")
}

func TestStopTerminatesGracefully(t *testing.T) {
	sup, exits := newTestSupervisor(t, helperBlocking)

	require.NoError(t, sup.EnsureRunning(context.Background(), "tok-aaaa-bbbb", ""))
	stopAndDrain(t, sup, exits)
}

func TestStopEscalatesToKill(t *testing.T) {
	sup, exits := newTestSupervisor(t, helperStubborn)

	require.NoError(t, sup.EnsureRunning(context.Background(), "tok-aaaa-bbbb", ""))
	require.NoError(t, sup.Stop(context.Background()))

	err := waitExit(t, exits)
	require.Error(t, err)
	var exitErr *exec.ExitError
	require.True(t, errors.As(err, &exitErr))
	require.False(t, sup.Running())
}

func TestStopIdempotent(t *testing.T) {
	sup, exits := newTestSupervisor(t, helperBlocking)

	require.NoError(t, sup.Stop(context.Background()))

	require.NoError(t, sup.EnsureRunning(context.Background(), "tok-aaaa-bbbb", ""))
	require.NoError(t, sup.Stop(context.Background()))
	require.NoError(t, sup.Stop(context.Background()))

	waitExit(t, exits)
	require.False(t, sup.Running())
	require.Empty(t, exits, "exit callback fired more than once")
}

func TestStderrCapturedInRing(t *testing.T) {
	sup, exits := newTestSupervisor(t, helperStderr)

	require.NoError(t, sup.EnsureRunning(context.Background(), "tok-aaaa-bbbb", ""))

	err := waitExit(t, exits)
	var exitErr *exec.ExitError
	require.ErrorAs(t, err, &exitErr)
	require.Equal(t, 3, exitErr.ExitCode())

	require.Contains(t, sup.Ring().LastN(10), "warn: playback crashed")
}

func TestChattyHelperEventsFlow(t *testing.T) {
	sup, exits := newTestSupervisor(t, helperChatty)

	attached := make(chan *Channel, 1)
	sup.OnAttach(func(ch *Channel) { attached <- ch })

	require.NoError(t, sup.EnsureRunning(context.Background(), "tok-aaaa-bbbb", ""))
	ch := <-attached

	select {
	case ev := <-ch.Events():
		require.Equal(t, ContentLoaded{}, ev)
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for content_loaded")
	}
	select {
	case ev := <-ch.Events():
		require.Equal(t, Ready{DeviceID: "dev-1"}, ev)
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for ready")
	}

	stopAndDrain(t, sup, exits)
}
