// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package backend

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/rs/zerolog"

	"github.com/ManuGH/spotbridge/internal/log"
	"github.com/ManuGH/spotbridge/internal/player"
	"github.com/ManuGH/spotbridge/internal/spotify"
	"github.com/ManuGH/spotbridge/internal/token"
)

// Mode selects which backend implementation the factory hands out.
type Mode string

const (
	ModeInternal Mode = "internal"
	ModeRemote   Mode = "remote"
	ModeNoop     Mode = "noop"
)

// ParseMode validates a configured mode string.
func ParseMode(s string) (Mode, error) {
	switch Mode(s) {
	case ModeInternal, ModeRemote, ModeNoop:
		return Mode(s), nil
	default:
		return "", fmt.Errorf("backend: unknown mode %q", s)
	}
}

// Factory owns the one shared backend instance per mode for the whole
// process. It is injected where playback is orchestrated instead of living
// as package-global state, and it guarantees that constructing the
// internal backend twice can never mean two helper processes.
type Factory struct {
	internalCfg InternalConfig
	sup         *player.Supervisor
	api         spotify.API
	tokens      token.Provider
	logger      zerolog.Logger

	mu       sync.Mutex
	internal *Internal
	remote   *Remote
	noop     Noop
}

func NewFactory(cfg InternalConfig, sup *player.Supervisor, api spotify.API, tokens token.Provider) *Factory {
	return &Factory{
		internalCfg: cfg,
		sup:         sup,
		api:         api,
		tokens:      tokens,
		logger:      log.WithComponent("backend.factory"),
	}
}

// Backend returns the cached shared instance for the mode, constructing it
// on first use. Without a token provider there is nothing any backend
// could authenticate with, so the result is nil.
func (f *Factory) Backend(mode Mode) PlaybackBackend {
	if f.tokens == nil {
		return nil
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	switch mode {
	case ModeInternal:
		if f.internal == nil {
			f.internal = NewInternal(f.internalCfg, f.sup, f.api, f.tokens)
		}
		return f.internal
	case ModeRemote:
		if f.remote == nil {
			f.remote = NewRemote(f.api)
		}
		return f.remote
	default:
		return f.noop
	}
}

// Prewarm constructs the mode's backend and starts its initialization so
// readiness can progress before the first playback request. Calling it
// again while that backend is already cached is a no-op.
func (f *Factory) Prewarm(ctx context.Context, mode Mode) error {
	if f.tokens == nil {
		return ErrNoTokenProvider
	}

	f.mu.Lock()
	cached := (mode == ModeInternal && f.internal != nil) || (mode == ModeRemote && f.remote != nil)
	f.mu.Unlock()
	if cached {
		return nil
	}

	b := f.Backend(mode)
	if b == nil {
		return ErrNoTokenProvider
	}

	f.logger.Info().
		Str(log.FieldEvent, "factory.prewarm").
		Str(log.FieldMode, string(mode)).
		Msg("prewarming playback backend")
	return b.Initialize(ctx)
}

// Shutdown tears down every backend the factory handed out.
func (f *Factory) Shutdown(ctx context.Context) error {
	f.mu.Lock()
	backends := make([]PlaybackBackend, 0, 2)
	if f.internal != nil {
		backends = append(backends, f.internal)
	}
	if f.remote != nil {
		backends = append(backends, f.remote)
	}
	f.mu.Unlock()

	var errs []error
	for _, b := range backends {
		if err := b.Shutdown(ctx); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
