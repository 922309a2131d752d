// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package player

import (
	"bufio"
	"bytes"
	"encoding/json"
	"io"
	"math"
	"sync"

	"github.com/rs/zerolog"

	"github.com/ManuGH/spotbridge/internal/log"
	"github.com/ManuGH/spotbridge/internal/metrics"
	"github.com/ManuGH/spotbridge/internal/token"
)

const (
	sendQueueSize  = 32
	eventQueueSize = 64

	maxEventLineBytes = 256 << 10
)

// wireCommand is the outbound newline-delimited JSON frame. Pointer fields
// distinguish "not part of this command" from a legitimate zero.
type wireCommand struct {
	Cmd        string   `json:"cmd"`
	Token      string   `json:"token,omitempty"`
	URI        string   `json:"uri,omitempty"`
	PositionMs *int     `json:"position_ms,omitempty"`
	Level      *float64 `json:"level,omitempty"`
}

// Channel speaks newline-delimited JSON with the helper over its stdio
// pipes. Sends are best-effort and never block the caller; inbound lines
// are decoded into Events and delivered on a single consumer channel.
//
// The one stateful wrinkle lives here: a credential sent before the helper
// reported content_loaded is buffered (latest wins, capacity one) and
// flushed exactly once when the load completes.
type Channel struct {
	logger zerolog.Logger

	sendQ  chan wireCommand
	events chan Event

	mu            sync.Mutex
	closed        bool
	contentLoaded bool
	pending       *string
	delivered     bool
}

// NewChannel wires a channel over the helper's pipes and starts its reader
// and writer loops. Both loops end when the pipes do.
func NewChannel(stdin io.Writer, stdout io.Reader) *Channel {
	c := &Channel{
		logger: log.WithComponent("channel"),
		sendQ:  make(chan wireCommand, sendQueueSize),
		events: make(chan Event, eventQueueSize),
	}
	go c.writeLoop(stdin)
	go c.readLoop(stdout)
	return c
}

// Events returns the inbound event stream. The channel is closed when the
// helper's stdout closes, which is the reliable end-of-process signal.
func (c *Channel) Events() <-chan Event {
	return c.events
}

// Close stops the writer loop. Queued commands are still flushed; inbound
// events keep flowing until the helper side closes.
func (c *Channel) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	c.closed = true
	close(c.sendQ)
}

// CredentialDelivered reports whether a credential reached the send queue,
// either directly or via the buffered flush.
func (c *Channel) CredentialDelivered() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.delivered
}

// LoadContent instructs the helper to load its playback surface.
func (c *Channel) LoadContent() {
	c.enqueue(wireCommand{Cmd: "load"})
}

// SendCredential delivers the access token, buffering it until the helper
// has loaded its content. At most one credential is buffered; the latest
// call wins.
func (c *Channel) SendCredential(tok string) {
	c.mu.Lock()
	if !c.contentLoaded {
		c.pending = &tok
		c.mu.Unlock()
		c.logger.Debug().
			Str(log.FieldEvent, "channel.credential_buffered").
			Str("token", token.Redact(tok)).
			Msg("content not loaded yet, credential buffered")
		return
	}
	c.delivered = true
	c.mu.Unlock()

	c.enqueue(wireCommand{Cmd: "credential", Token: tok})
	metrics.RecordCredentialDelivery("direct")
}

// Connect asks the helper to register itself as a Connect device.
func (c *Channel) Connect() {
	c.enqueue(wireCommand{Cmd: "connect"})
}

func (c *Channel) Play(uri string, positionMs int) {
	pos := positionMs
	c.enqueue(wireCommand{Cmd: "play", URI: uri, PositionMs: &pos})
}

func (c *Channel) Pause() {
	c.enqueue(wireCommand{Cmd: "pause"})
}

func (c *Channel) Resume() {
	c.enqueue(wireCommand{Cmd: "resume"})
}

func (c *Channel) Next() {
	c.enqueue(wireCommand{Cmd: "next"})
}

func (c *Channel) Previous() {
	c.enqueue(wireCommand{Cmd: "previous"})
}

func (c *Channel) Seek(positionMs int) {
	pos := positionMs
	c.enqueue(wireCommand{Cmd: "seek", PositionMs: &pos})
}

// SetVolume transmits a volume level clamped into [0, 1].
func (c *Channel) SetVolume(level float64) {
	lvl := clampUnit(level)
	c.enqueue(wireCommand{Cmd: "volume", Level: &lvl})
}

func clampUnit(v float64) float64 {
	if math.IsNaN(v) || v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

func (c *Channel) enqueue(cmd wireCommand) {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		metrics.RecordCommandFailure(cmd.Cmd, "channel_closed")
		return
	}

	select {
	case c.sendQ <- cmd:
		c.mu.Unlock()
	default:
		c.mu.Unlock()
		metrics.RecordCommandFailure(cmd.Cmd, "queue_full")
		c.logger.Warn().
			Str(log.FieldEvent, "channel.command_dropped").
			Str(log.FieldCommand, cmd.Cmd).
			Msg("send queue full, command dropped")
		return
	}

	metrics.IncControlCommand(cmd.Cmd)
	logEvent := c.logger.Debug().
		Str(log.FieldEvent, "channel.command").
		Str(log.FieldCommand, cmd.Cmd)
	if cmd.Cmd == "credential" {
		logEvent = logEvent.Str("token", token.Redact(cmd.Token))
	}
	logEvent.Msg("command queued")
}

func (c *Channel) writeLoop(stdin io.Writer) {
	enc := json.NewEncoder(stdin)
	for cmd := range c.sendQ {
		if err := enc.Encode(cmd); err != nil {
			metrics.RecordCommandFailure(cmd.Cmd, "write_failed")
			c.logger.Warn().
				Err(err).
				Str(log.FieldCommand, cmd.Cmd).
				Msg("command write failed")
		}
	}
	if closer, ok := stdin.(io.Closer); ok {
		_ = closer.Close()
	}
}

func (c *Channel) readLoop(stdout io.Reader) {
	defer close(c.events)

	scanner := bufio.NewScanner(stdout)
	scanner.Buffer(make([]byte, 0, 64<<10), maxEventLineBytes)

	for scanner.Scan() {
		line := scanner.Bytes()
		if len(bytes.TrimSpace(line)) == 0 {
			continue
		}

		ev := decodeEvent(line)
		if unknown, ok := ev.(Unknown); ok {
			metrics.IncControlDecodeFailure()
			c.logger.Warn().
				Str(log.FieldEvent, "channel.decode_failed").
				Str("raw", truncate(unknown.Raw, 256)).
				Msg("unparseable helper event")
		} else {
			c.logger.Debug().
				Str(log.FieldEvent, "channel.event").
				Str("type", ev.eventName()).
				Msg("helper event received")
		}
		metrics.IncControlEvent(ev.eventName())

		if _, ok := ev.(ContentLoaded); ok {
			c.flushCredential()
		}

		select {
		case c.events <- ev:
		default:
			// The state machine drains promptly; a full queue means the
			// consumer is gone, and blocking here would pin the reader.
			c.logger.Warn().
				Str(log.FieldEvent, "channel.event_dropped").
				Str("type", ev.eventName()).
				Msg("event queue full, event dropped")
		}
	}

	if err := scanner.Err(); err != nil {
		c.logger.Debug().Err(err).Msg("helper stdout closed")
	}
}

// flushCredential marks the content loaded and delivers the buffered
// credential, if any. Clearing the buffer before the send makes a repeated
// content_loaded a no-op rather than a duplicate delivery.
func (c *Channel) flushCredential() {
	c.mu.Lock()
	c.contentLoaded = true
	buffered := c.pending
	c.pending = nil
	if buffered != nil {
		c.delivered = true
	}
	c.mu.Unlock()

	if buffered == nil {
		return
	}

	c.enqueue(wireCommand{Cmd: "credential", Token: *buffered})
	metrics.RecordCredentialDelivery("flushed")
	c.logger.Info().
		Str(log.FieldEvent, "channel.credential_flushed").
		Str("token", token.Redact(*buffered)).
		Msg("buffered credential delivered after content load")
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
