// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

//go:build linux

package procgroup

import (
	"os"
	"os/exec"
	"syscall"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestKillGroupReapsTree(t *testing.T) {
	cmd := exec.Command("sh", "-c", "sleep 100 & sleep 100")
	Set(cmd)
	require.NoError(t, cmd.Start())

	pid := cmd.Process.Pid
	pgid, err := syscall.Getpgid(pid)
	require.NoError(t, err)
	require.Equal(t, pid, pgid, "PID should be PGID leader")

	require.NoError(t, KillGroup(pid, 100*time.Millisecond, 500*time.Millisecond))

	process, _ := os.FindProcess(pid)
	// On Unix FindProcess always succeeds; Signal(0) reveals liveness.
	err = process.Signal(syscall.Signal(0))
	require.Error(t, err, "parent process should be dead")

	err = syscall.Kill(-pgid, syscall.Signal(0))
	require.Equal(t, syscall.ESRCH, err, "process group should be dead")
}

func TestKillGroupAlreadyGone(t *testing.T) {
	err := KillGroup(99999, 10*time.Millisecond, 10*time.Millisecond)
	require.NoError(t, err, "should not fail if process is already gone")
}

func TestKillGroupIgnoresNonPositivePID(t *testing.T) {
	require.NoError(t, KillGroup(0, time.Millisecond, time.Millisecond))
	require.NoError(t, KillGroup(-1, time.Millisecond, time.Millisecond))
}
