// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package player

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strconv"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/ManuGH/spotbridge/internal/config"
	"github.com/ManuGH/spotbridge/internal/diag"
	"github.com/ManuGH/spotbridge/internal/log"
	"github.com/ManuGH/spotbridge/internal/metrics"
	"github.com/ManuGH/spotbridge/internal/procgroup"
)

// LaunchMode selects how the playback helper process is started.
type LaunchMode string

const (
	// LaunchModeDev runs the helper from a source checkout via npm.
	LaunchModeDev LaunchMode = "dev"
	// LaunchModePackaged runs a bundled helper executable.
	LaunchModePackaged LaunchMode = "packaged"
)

const defaultStopGrace = 3 * time.Second

// Config carries the launch parameters for the helper process.
type Config struct {
	Mode        LaunchMode
	DevRepoPath string
	HelperName  string
	StopGrace   time.Duration
}

// Supervisor owns the lifecycle of exactly one helper process at a time:
// spawn, environment injection, control channel attachment, exit
// bookkeeping and termination. All lifecycle transitions are serialized
// through its mutex so EnsureRunning is idempotent under concurrency.
type Supervisor struct {
	cfg    Config
	logger zerolog.Logger
	ring   *diag.Ring

	onExit   func(error)
	onAttach func(*Channel)

	mu       sync.Mutex
	cmd      *exec.Cmd
	waitCh   chan error
	channel  *Channel
	running  bool
	stopping bool
}

// NewSupervisor builds a supervisor for the given launch configuration.
// A nil ring gets a private buffer so stderr capture always works.
func NewSupervisor(cfg Config, ring *diag.Ring) *Supervisor {
	if cfg.StopGrace <= 0 {
		cfg.StopGrace = defaultStopGrace
	}
	if ring == nil {
		ring = diag.NewRing(diag.DefaultCapacity)
	}
	return &Supervisor{
		cfg:    cfg,
		logger: log.WithComponent("supervisor"),
		ring:   ring,
	}
}

// OnExit registers a callback invoked after the helper process exits and
// the supervisor has cleared its handle. Set it before the first
// EnsureRunning. The callback runs outside the supervisor lock but must
// not block for long; hand off to a channel instead.
func (s *Supervisor) OnExit(fn func(error)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onExit = fn
}

// OnAttach registers a callback invoked with the control channel of every
// freshly spawned helper, before any event can arrive. It runs under the
// supervisor lock and must not call back into the supervisor.
func (s *Supervisor) OnAttach(fn func(*Channel)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onAttach = fn
}

// Running reports whether a helper process is currently alive.
func (s *Supervisor) Running() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

// PID returns the helper process id, or 0 when nothing is running.
func (s *Supervisor) PID() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cmd != nil && s.cmd.Process != nil {
		return s.cmd.Process.Pid
	}
	return 0
}

// Channel returns the control channel of the running helper, or nil.
func (s *Supervisor) Channel() *Channel {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.channel
}

// Ring exposes the stderr capture buffer for diagnostics endpoints.
func (s *Supervisor) Ring() *diag.Ring {
	return s.ring
}

type launchSpec struct {
	bin  string
	args []string
	dir  string
}

func (s *Supervisor) launchSpec() (launchSpec, error) {
	switch s.cfg.Mode {
	case LaunchModeDev:
		if err := checkDevRepo(s.cfg.DevRepoPath); err != nil {
			return launchSpec{}, err
		}
		return launchSpec{bin: "npm", args: []string{"run", "dev"}, dir: s.cfg.DevRepoPath}, nil
	case LaunchModePackaged:
		bin, err := resolveHelper(s.cfg.HelperName)
		if err != nil {
			return launchSpec{}, err
		}
		return launchSpec{bin: bin}, nil
	default:
		return launchSpec{}, fmt.Errorf("player: unknown launch mode %q", s.cfg.Mode)
	}
}

// EnsureRunning spawns the helper process if none is alive. Calls while a
// helper is running return nil without side effects. The credential is
// injected into the child environment, never written to disk or argv.
// backendBaseURL is optional and points the helper at a proxy endpoint.
func (s *Supervisor) EnsureRunning(ctx context.Context, credential, backendBaseURL string) error {
	logger := log.WithComponentFromContext(ctx, "supervisor")

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running {
		logger.Debug().
			Str(log.FieldEvent, "supervisor.already_running").
			Int(log.FieldPID, s.cmd.Process.Pid).
			Msg("helper already running")
		return nil
	}
	if credential == "" {
		return ErrNoAccessCredential
	}

	spec, err := s.launchSpec()
	if err != nil {
		metrics.RecordProcessSpawn(string(s.cfg.Mode), "failed")
		return err
	}

	cmd := exec.Command(spec.bin, spec.args...)
	cmd.Dir = spec.dir
	env := append(os.Environ(),
		config.EnvAccessToken+"="+credential,
		config.EnvHeadless+"=1",
	)
	if backendBaseURL != "" {
		env = append(env, config.EnvBackendURL+"="+backendBaseURL)
	}
	cmd.Env = env
	procgroup.Set(cmd)

	stdin, err := cmd.StdinPipe()
	if err != nil {
		metrics.RecordProcessSpawn(string(s.cfg.Mode), "failed")
		return &LaunchError{Mode: string(s.cfg.Mode), Path: spec.bin, Err: err}
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		metrics.RecordProcessSpawn(string(s.cfg.Mode), "failed")
		return &LaunchError{Mode: string(s.cfg.Mode), Path: spec.bin, Err: err}
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		metrics.RecordProcessSpawn(string(s.cfg.Mode), "failed")
		return &LaunchError{Mode: string(s.cfg.Mode), Path: spec.bin, Err: err}
	}

	if err := cmd.Start(); err != nil {
		metrics.RecordProcessSpawn(string(s.cfg.Mode), "failed")
		return &LaunchError{Mode: string(s.cfg.Mode), Path: spec.bin, Err: err}
	}

	ch := NewChannel(stdin, stdout)
	waitCh := make(chan error, 1)
	stderrDone := make(chan struct{})

	s.cmd = cmd
	s.channel = ch
	s.waitCh = waitCh
	s.running = true
	s.stopping = false
	metrics.RecordProcessSpawn(string(s.cfg.Mode), "started")

	go func() {
		s.drainStderr(stderr)
		close(stderrDone)
	}()
	go s.wait(cmd, ch, waitCh, stderrDone)

	logger.Info().
		Str(log.FieldEvent, "supervisor.spawned").
		Str(log.FieldMode, string(s.cfg.Mode)).
		Str(log.FieldPath, spec.bin).
		Int(log.FieldPID, cmd.Process.Pid).
		Msg("helper process started")

	if s.onAttach != nil {
		s.onAttach(ch)
	}
	return nil
}

// wait is the single owner of cmd.Wait for one spawn. It forwards the
// wait result to waitCh for Stop escalation, clears the supervisor
// handle and notifies the exit callback.
func (s *Supervisor) wait(cmd *exec.Cmd, ch *Channel, waitCh chan error, stderrDone <-chan struct{}) {
	// Stderr hits EOF once the process is gone; draining it first keeps
	// Wait from closing the pipe under the scanner.
	<-stderrDone
	err := cmd.Wait()
	waitCh <- err

	code := "0"
	if err != nil {
		code = "error"
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			code = strconv.Itoa(exitErr.ExitCode())
		}
	}
	metrics.RecordProcessExit(code)

	ch.Close()

	s.mu.Lock()
	stale := s.cmd != cmd
	if !stale {
		s.cmd = nil
		s.channel = nil
		s.waitCh = nil
		s.running = false
		s.stopping = false
	}
	cb := s.onExit
	s.mu.Unlock()

	evt := s.logger.Info()
	if err != nil {
		evt = s.logger.Warn().Err(err)
	}
	evt.Str(log.FieldEvent, "supervisor.exited").
		Str("exit_code", code).
		Msg("helper process exited")

	if !stale && cb != nil {
		cb(err)
	}
}

func (s *Supervisor) drainStderr(stderr io.Reader) {
	scanner := bufio.NewScanner(stderr)
	scanner.Buffer(make([]byte, 0, 64*1024), maxEventLineBytes)
	for scanner.Scan() {
		_, _ = s.ring.Write(scanner.Bytes())
		_, _ = s.ring.Write([]byte("\n"))
	}
}

// Stop requests termination of the running helper: SIGTERM to the process
// group, SIGKILL after the grace period. It returns immediately; the exit
// path in wait performs the bookkeeping and fires OnExit. Stopping an
// idle supervisor is a no-op.
func (s *Supervisor) Stop(ctx context.Context) error {
	logger := log.WithComponentFromContext(ctx, "supervisor")

	s.mu.Lock()
	cmd := s.cmd
	waitCh := s.waitCh
	ch := s.channel
	alreadyStopping := s.stopping
	if cmd != nil {
		s.stopping = true
	}
	s.mu.Unlock()

	if cmd == nil || alreadyStopping {
		return nil
	}

	if ch != nil {
		ch.Close()
	}

	logger.Info().
		Str(log.FieldEvent, "supervisor.stopping").
		Int(log.FieldPID, cmd.Process.Pid).
		Dur("grace", s.cfg.StopGrace).
		Msg("terminating helper process")

	go func() {
		_ = procgroup.Terminate(cmd, waitCh, s.cfg.StopGrace)
	}()
	return nil
}
