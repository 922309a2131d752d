package backend

import "context"

// Noop is the placeholder backend used before a real one is selected. It
// is never ready and rejects every command.
type Noop struct{}

var _ PlaybackBackend = Noop{}

func (Noop) Initialize(context.Context) error        { return nil }
func (Noop) Ready() bool                             { return false }
func (Noop) Readiness() Readiness                    { return ReadinessUninitialized }
func (Noop) State() PlaybackState                    { return PlaybackState{} }
func (Noop) OnStateChange(func(PlaybackState))       {}
func (Noop) OnError(func(error))                     {}
func (Noop) Play(context.Context, string, int) error  { return ErrNotReady }
func (Noop) Pause(context.Context) error              { return ErrNotReady }
func (Noop) Resume(context.Context) error             { return ErrNotReady }
func (Noop) Next(context.Context) error               { return ErrNotReady }
func (Noop) Previous(context.Context) error           { return ErrNotReady }
func (Noop) Seek(context.Context, int) error          { return ErrNotReady }
func (Noop) SetVolume(context.Context, float64) error { return ErrNotReady }
func (Noop) SetShuffle(context.Context, bool) error   { return ErrNotReady }
func (Noop) SetRepeat(context.Context, string) error  { return ErrNotReady }
func (Noop) Shutdown(context.Context) error           { return nil }
