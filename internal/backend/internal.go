// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package backend

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/ManuGH/spotbridge/internal/log"
	"github.com/ManuGH/spotbridge/internal/metrics"
	"github.com/ManuGH/spotbridge/internal/player"
	"github.com/ManuGH/spotbridge/internal/spotify"
	"github.com/ManuGH/spotbridge/internal/token"
)

// InternalConfig parameterizes the helper-backed backend.
type InternalConfig struct {
	// DeviceName is the well-known display name the helper registers
	// under; discovery matches against it.
	DeviceName     string
	BackendBaseURL string
	PollAttempts   int
	PollInterval   time.Duration
}

// Internal is the helper-backed playback backend. Every readiness
// transition runs on one loop goroutine; helper events, process exits,
// poll outcomes and control requests all funnel into that loop, so no two
// signals can interleave destructively. Long work (token fetch, process
// launch, device polling) happens in goroutines that post results back.
//
// Once ready, track starts go through the Web API targeted at the
// discovered device, while latency-sensitive controls (pause, skip, seek,
// volume) take the local channel to the helper.
type Internal struct {
	cfg    InternalConfig
	sup    *player.Supervisor
	api    spotify.API
	tokens token.Provider
	disc   *discoverer
	logger zerolog.Logger

	mu         sync.Mutex
	state      Readiness
	deviceID   string
	deviceName string
	playback   PlaybackState
	ch         *player.Channel
	stateFns   []func(PlaybackState)
	errorFns   []func(error)

	started  bool
	loopCtx  context.Context
	loopStop context.CancelFunc
	loopDone chan struct{}
	actions  chan func()
	exits    chan error
	pollCh   chan pollResult

	// loop-owned
	pollCancel context.CancelFunc
}

// NewInternal wires the backend from its collaborators. The loop starts
// lazily on the first Initialize.
func NewInternal(cfg InternalConfig, sup *player.Supervisor, api spotify.API, tokens token.Provider) *Internal {
	metrics.SetReadinessState(string(ReadinessUninitialized), readinessStates())
	return &Internal{
		cfg:    cfg,
		sup:    sup,
		api:    api,
		tokens: tokens,
		disc:   newDiscoverer(api, cfg.DeviceName, cfg.PollAttempts, cfg.PollInterval),
		logger: log.WithComponent("backend"),
		state:  ReadinessUninitialized,
	}
}

var (
	_ PlaybackBackend = (*Internal)(nil)
	_ DeviceReporter  = (*Internal)(nil)
)

func (i *Internal) Ready() bool {
	i.mu.Lock()
	defer i.mu.Unlock()
	return i.state == ReadinessReady
}

func (i *Internal) Readiness() Readiness {
	i.mu.Lock()
	defer i.mu.Unlock()
	return i.state
}

func (i *Internal) State() PlaybackState {
	i.mu.Lock()
	defer i.mu.Unlock()
	return i.playback
}

func (i *Internal) DeviceID() string {
	i.mu.Lock()
	defer i.mu.Unlock()
	return i.deviceID
}

func (i *Internal) DeviceName() string {
	i.mu.Lock()
	defer i.mu.Unlock()
	if i.deviceName != "" {
		return i.deviceName
	}
	return i.cfg.DeviceName
}

func (i *Internal) OnStateChange(fn func(PlaybackState)) {
	i.mu.Lock()
	defer i.mu.Unlock()
	i.stateFns = append(i.stateFns, fn)
}

func (i *Internal) OnError(fn func(error)) {
	i.mu.Lock()
	defer i.mu.Unlock()
	i.errorFns = append(i.errorFns, fn)
}

// Initialize starts (or restarts after degradation) the readiness
// sequence. It returns when the launch stage has an outcome: nil once the
// helper is running and content loading has begun, the launch error
// otherwise. Progress toward Ready continues asynchronously.
func (i *Internal) Initialize(ctx context.Context) error {
	i.ensureLoop()

	i.mu.Lock()
	loopDone := i.loopDone
	i.mu.Unlock()

	reply := make(chan error, 1)
	if !i.post(func() { i.handleInitialize(ctx, reply) }) {
		return errors.New("backend: shut down")
	}

	select {
	case err := <-reply:
		return err
	case <-loopDone:
		return errors.New("backend: shut down")
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Shutdown cancels discovery, asks the helper to pause best-effort,
// fires process termination without waiting for it, resets the state to
// Uninitialized and stops the loop.
func (i *Internal) Shutdown(ctx context.Context) error {
	i.mu.Lock()
	if !i.started {
		i.mu.Unlock()
		return nil
	}
	i.mu.Unlock()

	done := make(chan struct{})
	if i.post(func() {
		i.handleShutdown()
		close(done)
	}) {
		select {
		case <-done:
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	i.mu.Lock()
	stop, loopDone := i.loopStop, i.loopDone
	i.started = false
	i.mu.Unlock()

	stop()
	select {
	case <-loopDone:
	case <-ctx.Done():
		return ctx.Err()
	}
	return nil
}

// ensureLoop starts the serialized run loop and registers this session's
// exit listener. Channels are created fresh per session so a stale exit
// from a previous session cannot leak into a new one.
func (i *Internal) ensureLoop() {
	i.mu.Lock()
	defer i.mu.Unlock()
	if i.started {
		return
	}

	lctx, cancel := context.WithCancel(context.Background())
	i.loopCtx = lctx
	i.loopStop = cancel
	i.loopDone = make(chan struct{})
	i.actions = make(chan func(), 16)
	i.exits = make(chan error, 4)
	i.pollCh = make(chan pollResult, 1)
	i.started = true

	exits := i.exits
	i.sup.OnExit(func(err error) {
		select {
		case exits <- err:
		default:
		}
	})

	go i.run(lctx)
}

// post hands fn to the loop and reports whether it was accepted. A false
// return means no loop is running anymore.
func (i *Internal) post(fn func()) bool {
	i.mu.Lock()
	if !i.started {
		i.mu.Unlock()
		return false
	}
	actions, done := i.actions, i.loopDone
	i.mu.Unlock()

	select {
	case actions <- fn:
		return true
	case <-done:
		return false
	}
}

func (i *Internal) run(ctx context.Context) {
	defer close(i.loopDone)

	for {
		i.mu.Lock()
		ch := i.ch
		i.mu.Unlock()

		var events <-chan player.Event
		if ch != nil {
			events = ch.Events()
		}

		select {
		case <-ctx.Done():
			return
		case fn := <-i.actions:
			fn()
		case err := <-i.exits:
			i.handleProcessExit(err)
		case res := <-i.pollCh:
			i.handlePollResult(res)
		case ev, ok := <-events:
			if !ok {
				i.setChannel(nil)
				continue
			}
			i.handleEvent(ev)
		}
	}
}

func (i *Internal) handleInitialize(ctx context.Context, reply chan<- error) {
	switch i.Readiness() {
	case ReadinessUninitialized, ReadinessDegraded:
	case ReadinessDiscoveringDevice:
		if i.disc.Running() {
			// Still progressing; no-op.
			reply <- nil
			return
		}
		// The poll budget ran out without a resolution. A retried
		// initialize re-runs the sequence from the top.
	default:
		// Already progressing or ready.
		reply <- nil
		return
	}

	i.transition(ReadinessProcessStarting)

	go func() {
		tok, err := i.tokens.Token(ctx)
		if err != nil {
			err = fmt.Errorf("fetch access credential: %w", err)
			i.post(func() { i.failLaunch(reply, err) })
			return
		}
		launchErr := i.sup.EnsureRunning(ctx, tok, i.cfg.BackendBaseURL)
		i.post(func() { i.finishLaunch(reply, tok, launchErr) })
	}()
}

func (i *Internal) failLaunch(reply chan<- error, err error) {
	i.transition(ReadinessDegraded)
	i.fireError(err)
	reply <- err
}

func (i *Internal) finishLaunch(reply chan<- error, tok string, launchErr error) {
	if launchErr != nil {
		i.failLaunch(reply, launchErr)
		return
	}

	ch := i.sup.Channel()
	if ch == nil {
		i.failLaunch(reply, errors.New("backend: helper exited during launch"))
		return
	}
	i.setChannel(ch)

	i.transition(ReadinessContentLoading)
	ch.LoadContent()
	// Sent now so the channel buffers it and flushes the moment the
	// content load completes.
	ch.SendCredential(tok)

	reply <- nil
}

func (i *Internal) handleEvent(ev player.Event) {
	switch e := ev.(type) {
	case player.ContentLoaded:
		i.handleContentLoaded()
	case player.CredentialAck:
		i.logger.Debug().Str(log.FieldEvent, "backend.credential_ack").Msg("helper accepted credential")
	case player.ConnectResult:
		if e.OK {
			if i.Readiness() != ReadinessReady {
				i.becomeReady("connect_result")
			}
		} else {
			// Discovery stays on as the safety net.
			i.logger.Warn().Str(log.FieldEvent, "backend.connect_rejected").Msg("helper connect attempt failed")
		}
	case player.Ready:
		if e.DeviceID != "" {
			i.setDevice(e.DeviceID, "")
		}
		if i.Readiness() != ReadinessReady {
			i.becomeReady("local_event")
		}
	case player.NotReady:
		i.handleNotReady(e)
	case player.StateChanged:
		i.setPlayback(PlaybackState{
			TrackURI:   e.TrackURI,
			TrackName:  e.TrackName,
			ArtistName: e.ArtistName,
			PositionMs: e.PositionMs,
			DurationMs: e.DurationMs,
			IsPlaying:  e.IsPlaying,
		})
	case player.ErrorEvent:
		err := fmt.Errorf("backend: helper error %s: %s", e.Code, e.Message)
		i.fireError(err)
		if i.Readiness() == ReadinessReady {
			i.transition(ReadinessDegraded)
		}
	case player.Unknown:
		// Counted and logged by the channel already.
	}
}

func (i *Internal) handleContentLoaded() {
	if i.Readiness() != ReadinessContentLoading {
		i.logger.Debug().Str(log.FieldEvent, "backend.content_reloaded").Msg("content loaded outside startup")
		return
	}
	i.transition(ReadinessCredentialPending)

	ch := i.channel()
	if ch == nil {
		return
	}
	if ch.CredentialDelivered() {
		i.advanceToConnect()
		return
	}

	// Nothing was buffered; fetch a fresh credential concurrently.
	lctx := i.loopCtx
	go func() {
		tok, err := i.tokens.Token(lctx)
		i.post(func() { i.handleFreshCredential(tok, err) })
	}()
}

func (i *Internal) handleFreshCredential(tok string, err error) {
	if i.Readiness() != ReadinessCredentialPending {
		return
	}
	if err != nil {
		i.transition(ReadinessDegraded)
		i.fireError(fmt.Errorf("fetch access credential: %w", err))
		return
	}
	if ch := i.channel(); ch != nil {
		ch.SendCredential(tok)
	}
	i.advanceToConnect()
}

// advanceToConnect issues the connect command and starts the bounded
// discovery poll racing it. First confirmation wins; the transition to
// Ready is idempotent.
func (i *Internal) advanceToConnect() {
	i.transition(ReadinessConnectingDevice)
	if ch := i.channel(); ch != nil {
		ch.Connect()
	}

	pollCtx, cancel := context.WithCancel(i.loopCtx)
	if i.pollCancel != nil {
		i.pollCancel()
	}
	i.pollCancel = cancel
	if i.disc.Start(pollCtx, i.pollCh) {
		i.transition(ReadinessDiscoveringDevice)
	}
}

func (i *Internal) handlePollResult(res pollResult) {
	if !res.found {
		if i.Readiness() == ReadinessDiscoveringDevice {
			// Exhaustion leaves the state unresolved rather than degraded;
			// a local ready event or a retried initialize can still land.
			i.logger.Warn().
				Str(log.FieldEvent, "backend.discovery_unresolved").
				Str(log.FieldDeviceName, i.cfg.DeviceName).
				Msg("discovery exhausted, waiting on helper events")
		}
		return
	}

	if i.Readiness() == ReadinessReady {
		// A connect_result confirmed readiness without an identifier;
		// adopt the id the poll found.
		if i.DeviceID() == "" {
			i.setDevice(res.deviceID, res.deviceName)
		}
		return
	}

	i.setDevice(res.deviceID, res.deviceName)
	i.becomeReady("discovery")
}

func (i *Internal) becomeReady(source string) {
	i.transition(ReadinessReady)
	i.logger.Info().
		Str(log.FieldEvent, "backend.ready").
		Str("source", source).
		Str(log.FieldDeviceID, i.DeviceID()).
		Msg("playback backend ready")

	if i.DeviceID() != "" && i.pollCancel != nil {
		i.pollCancel()
		i.pollCancel = nil
	}
}

func (i *Internal) handleNotReady(e player.NotReady) {
	i.mu.Lock()
	match := i.state == ReadinessReady && e.DeviceID == i.deviceID
	i.mu.Unlock()

	if !match {
		i.logger.Debug().
			Str(log.FieldEvent, "backend.not_ready_ignored").
			Str(log.FieldDeviceID, e.DeviceID).
			Msg("not_ready for unknown device")
		return
	}

	// Keep the device id and the process; a later ready event or poll
	// success recovers without a restart.
	i.transition(ReadinessDegraded)
	i.fireError(fmt.Errorf("backend: device %s reported not ready", e.DeviceID))
}

func (i *Internal) handleProcessExit(exitErr error) {
	i.setChannel(nil)
	if i.pollCancel != nil {
		i.pollCancel()
		i.pollCancel = nil
	}

	if i.Readiness() == ReadinessUninitialized {
		return
	}

	i.transition(ReadinessDegraded)
	if exitErr == nil {
		exitErr = errors.New("helper process exited")
	}
	i.fireError(fmt.Errorf("backend: helper process gone: %w", exitErr))
}

func (i *Internal) handleShutdown() {
	if i.pollCancel != nil {
		i.pollCancel()
		i.pollCancel = nil
	}
	if ch := i.channel(); ch != nil {
		// Best effort; process teardown wins over command completion.
		ch.Pause()
	}
	i.setChannel(nil)
	// Stop is non-blocking; escalation runs detached in the supervisor.
	_ = i.sup.Stop(context.Background())

	i.transition(ReadinessUninitialized)
	i.setPlayback(PlaybackState{})
}

// Play starts a track on the discovered device through the Web API. A
// stale or missing device triggers one synchronous re-discovery before
// the command fails.
func (i *Internal) Play(ctx context.Context, trackURI string, positionMs int) error {
	return i.devicePlay(ctx, "play", spotify.PlayRequest{URIs: []string{trackURI}, PositionMs: positionMs})
}

// Resume continues playback on the device; an empty request body resumes
// the current context.
func (i *Internal) Resume(ctx context.Context) error {
	return i.devicePlay(ctx, "resume", spotify.PlayRequest{})
}

func (i *Internal) devicePlay(ctx context.Context, name string, req spotify.PlayRequest) error {
	i.mu.Lock()
	st, dev := i.state, i.deviceID
	i.mu.Unlock()
	if st != ReadinessReady {
		metrics.RecordCommandFailure(name, "not_ready")
		return ErrNotReady
	}

	req.DeviceID = dev
	err := i.api.Play(ctx, req)
	if err != nil && errors.Is(err, spotify.ErrNoActiveDevice) {
		res := i.disc.Resolve(ctx)
		if !res.found {
			metrics.RecordCommandFailure(name, "device_not_found")
			return fmt.Errorf("%w: %s", ErrDeviceNotFound, i.cfg.DeviceName)
		}
		i.post(func() { i.setDevice(res.deviceID, res.deviceName) })
		req.DeviceID = res.deviceID
		err = i.api.Play(ctx, req)
	}
	if err != nil {
		metrics.RecordCommandFailure(name, "api_error")
		return err
	}

	i.markBuffering()
	return nil
}

func (i *Internal) Pause(ctx context.Context) error {
	return i.localCommand("pause", func(ch *player.Channel) { ch.Pause() })
}

func (i *Internal) Next(ctx context.Context) error {
	return i.localCommand("next", func(ch *player.Channel) { ch.Next() })
}

func (i *Internal) Previous(ctx context.Context) error {
	return i.localCommand("previous", func(ch *player.Channel) { ch.Previous() })
}

func (i *Internal) Seek(ctx context.Context, positionMs int) error {
	return i.localCommand("seek", func(ch *player.Channel) { ch.Seek(positionMs) })
}

func (i *Internal) SetVolume(ctx context.Context, level float64) error {
	return i.localCommand("volume", func(ch *player.Channel) { ch.SetVolume(level) })
}

func (i *Internal) SetShuffle(ctx context.Context, on bool) error {
	i.mu.Lock()
	st, dev := i.state, i.deviceID
	i.mu.Unlock()
	if st != ReadinessReady {
		metrics.RecordCommandFailure("shuffle", "not_ready")
		return ErrNotReady
	}
	return i.api.SetShuffle(ctx, dev, on)
}

func (i *Internal) SetRepeat(ctx context.Context, mode string) error {
	i.mu.Lock()
	st, dev := i.state, i.deviceID
	i.mu.Unlock()
	if st != ReadinessReady {
		metrics.RecordCommandFailure("repeat", "not_ready")
		return ErrNotReady
	}
	return i.api.SetRepeat(ctx, dev, mode)
}

// localCommand routes latency-sensitive controls through the helper
// channel. Commands never queue behind readiness; callers get ErrNotReady
// and nothing goes out.
func (i *Internal) localCommand(name string, send func(*player.Channel)) error {
	i.mu.Lock()
	st, ch := i.state, i.ch
	i.mu.Unlock()
	if st != ReadinessReady || ch == nil {
		metrics.RecordCommandFailure(name, "not_ready")
		return ErrNotReady
	}
	send(ch)
	return nil
}

func (i *Internal) transition(to Readiness) {
	i.mu.Lock()
	from := i.state
	if from == to {
		i.mu.Unlock()
		return
	}
	i.state = to
	i.mu.Unlock()

	metrics.RecordReadinessTransition(string(from), string(to))
	metrics.SetReadinessState(string(to), readinessStates())
	i.logger.Info().
		Str(log.FieldEvent, "backend.transition").
		Str(log.FieldOldState, string(from)).
		Str(log.FieldNewState, string(to)).
		Msg("readiness changed")
}

func (i *Internal) channel() *player.Channel {
	i.mu.Lock()
	defer i.mu.Unlock()
	return i.ch
}

func (i *Internal) setChannel(ch *player.Channel) {
	i.mu.Lock()
	i.ch = ch
	i.mu.Unlock()
}

func (i *Internal) setDevice(id, name string) {
	i.mu.Lock()
	i.deviceID = id
	if name != "" {
		i.deviceName = name
	}
	i.mu.Unlock()
}

func (i *Internal) setPlayback(st PlaybackState) {
	i.mu.Lock()
	i.playback = st
	fns := slices.Clone(i.stateFns)
	i.mu.Unlock()
	for _, fn := range fns {
		fn(st)
	}
}

func (i *Internal) markBuffering() {
	i.mu.Lock()
	i.playback.IsBuffering = true
	st := i.playback
	fns := slices.Clone(i.stateFns)
	i.mu.Unlock()
	for _, fn := range fns {
		fn(st)
	}
}

func (i *Internal) fireError(err error) {
	i.mu.Lock()
	fns := slices.Clone(i.errorFns)
	i.mu.Unlock()

	i.logger.Warn().Err(err).Str(log.FieldEvent, "backend.error").Msg("backend error")
	for _, fn := range fns {
		fn(err)
	}
}
