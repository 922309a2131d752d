// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package spotify wraps the Spotify Web API behind the small API port the
// daemon needs for device discovery and remote playback control.
package spotify

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/samber/lo"
	zmb3 "github.com/zmb3/spotify/v2"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"golang.org/x/oauth2"
	"golang.org/x/time/rate"

	"github.com/ManuGH/spotbridge/internal/log"
	"github.com/ManuGH/spotbridge/internal/metrics"
)

// Config tunes the client. Zero values fall back to the public API URL and
// a conservative request budget.
type Config struct {
	// BaseURL overrides the Web API endpoint, mainly for tests and proxies.
	BaseURL string
	// RateRPS caps outgoing requests per second before Spotify gets a
	// chance to answer 429.
	RateRPS   int
	RateBurst int
}

const (
	defaultRateRPS   = 10
	defaultRateBurst = 5
)

// Client talks to the Spotify Web API. It is safe for concurrent use.
type Client struct {
	api     *zmb3.Client
	limiter *rate.Limiter
	log     zerolog.Logger
}

// New builds a Client on top of an authenticated HTTP client, typically the
// result of NewHTTPClient.
func New(httpClient *http.Client, cfg Config) *Client {
	rps := cfg.RateRPS
	if rps <= 0 {
		rps = defaultRateRPS
	}
	burst := cfg.RateBurst
	if burst < 1 {
		burst = defaultRateBurst
	}

	var opts []zmb3.ClientOption
	if cfg.BaseURL != "" {
		base := cfg.BaseURL
		if !strings.HasSuffix(base, "/") {
			base += "/"
		}
		opts = append(opts, zmb3.WithBaseURL(base))
	}

	return &Client{
		api:     zmb3.New(httpClient, opts...),
		limiter: rate.NewLimiter(rate.Limit(rps), burst),
		log:     log.WithComponent("spotify"),
	}
}

// NewHTTPClient composes the bearer-token and tracing transports the Web
// API client rides on. The token source is consulted on every request so
// rotated tokens take effect without a restart.
func NewHTTPClient(src oauth2.TokenSource, timeout time.Duration) *http.Client {
	return &http.Client{
		Transport: &oauth2.Transport{
			Source: src,
			Base:   otelhttp.NewTransport(http.DefaultTransport),
		},
		Timeout: timeout,
	}
}

func (c *Client) do(ctx context.Context, op string, call func() error) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return &APIError{Sentinel: ErrUnavailable, Operation: op, Err: err}
	}

	start := time.Now()
	err := classify(op, call())
	metrics.RecordWebAPIRequest(op, outcomeFor(err), time.Since(start).Seconds())

	if err != nil {
		var ae *APIError
		status := 0
		if errors.As(err, &ae) {
			status = ae.Status
		}
		c.log.Debug().
			Str(log.FieldEvent, "spotify.request_failed").
			Str(log.FieldCommand, op).
			Int("status", status).
			Err(err).
			Msg("web api request failed")
	}
	return err
}

func outcomeFor(err error) string {
	switch {
	case err == nil:
		return "success"
	case errors.Is(err, ErrUnauthorized):
		return "unauthorized"
	case errors.Is(err, ErrRestricted):
		return "restricted"
	case errors.Is(err, ErrNoActiveDevice):
		return "no_active_device"
	case errors.Is(err, ErrRateLimited):
		return "rate_limited"
	case errors.Is(err, ErrServerError):
		return "server_error"
	case errors.Is(err, ErrUnavailable):
		return "unavailable"
	default:
		return "bad_response"
	}
}

// Devices lists the Connect endpoints currently visible to the account.
func (c *Client) Devices(ctx context.Context) ([]Device, error) {
	var raw []zmb3.PlayerDevice
	err := c.do(ctx, "devices", func() error {
		var callErr error
		raw, callErr = c.api.PlayerDevices(ctx)
		return callErr
	})
	if err != nil {
		return nil, err
	}

	return lo.Map(raw, func(d zmb3.PlayerDevice, _ int) Device {
		return Device{
			ID:            string(d.ID),
			Name:          d.Name,
			Type:          d.Type,
			Active:        d.Active,
			Restricted:    d.Restricted,
			VolumePercent: int(d.Volume),
		}
	}), nil
}

// State returns the current playback snapshot. When the account has no
// active playback at all, Spotify answers 204 and State reports that as
// ErrNoActiveDevice so callers can fall back to the device list.
func (c *Client) State(ctx context.Context) (*PlayerState, error) {
	var raw *zmb3.PlayerState
	err := c.do(ctx, "state", func() error {
		var callErr error
		raw, callErr = c.api.PlayerState(ctx)
		return callErr
	})
	if err != nil {
		return nil, err
	}
	if raw == nil || raw.Device.ID == "" {
		return nil, &APIError{
			Sentinel:  ErrNoActiveDevice,
			Operation: "state",
			Status:    http.StatusNoContent,
			Message:   "no playback session",
		}
	}

	st := &PlayerState{
		DeviceID:      string(raw.Device.ID),
		DeviceName:    raw.Device.Name,
		Playing:       raw.Playing,
		ProgressMs:    int(raw.Progress),
		ShuffleState:  raw.ShuffleState,
		RepeatState:   raw.RepeatState,
		VolumePercent: int(raw.Device.Volume),
	}
	if raw.Item != nil {
		st.TrackURI = string(raw.Item.URI)
		st.TrackName = raw.Item.Name
		st.DurationMs = int(raw.Item.Duration)
		st.Artists = lo.Map(raw.Item.Artists, func(a zmb3.SimpleArtist, _ int) string {
			return a.Name
		})
	}
	return st, nil
}

// Play starts or resumes playback. An empty request resumes whatever the
// active device was doing.
func (c *Client) Play(ctx context.Context, req PlayRequest) error {
	opt := &zmb3.PlayOptions{}
	if req.DeviceID != "" {
		id := zmb3.ID(req.DeviceID)
		opt.DeviceID = &id
	}
	for _, u := range req.URIs {
		opt.URIs = append(opt.URIs, zmb3.URI(u))
	}
	if req.ContextURI != "" {
		u := zmb3.URI(req.ContextURI)
		opt.PlaybackContext = &u
	}
	if req.PositionMs > 0 {
		opt.PositionMs = zmb3.Numeric(req.PositionMs)
	}
	return c.do(ctx, "play", func() error {
		return c.api.PlayOpt(ctx, opt)
	})
}

func (c *Client) Pause(ctx context.Context, deviceID string) error {
	return c.do(ctx, "pause", func() error {
		return c.api.PauseOpt(ctx, deviceOpt(deviceID))
	})
}

func (c *Client) Next(ctx context.Context, deviceID string) error {
	return c.do(ctx, "next", func() error {
		return c.api.NextOpt(ctx, deviceOpt(deviceID))
	})
}

func (c *Client) Previous(ctx context.Context, deviceID string) error {
	return c.do(ctx, "previous", func() error {
		return c.api.PreviousOpt(ctx, deviceOpt(deviceID))
	})
}

func (c *Client) Seek(ctx context.Context, deviceID string, positionMs int) error {
	return c.do(ctx, "seek", func() error {
		return c.api.SeekOpt(ctx, positionMs, deviceOpt(deviceID))
	})
}

func (c *Client) SetVolume(ctx context.Context, deviceID string, percent int) error {
	return c.do(ctx, "volume", func() error {
		return c.api.VolumeOpt(ctx, percent, deviceOpt(deviceID))
	})
}

func (c *Client) SetShuffle(ctx context.Context, deviceID string, on bool) error {
	return c.do(ctx, "shuffle", func() error {
		return c.api.ShuffleOpt(ctx, on, deviceOpt(deviceID))
	})
}

func (c *Client) SetRepeat(ctx context.Context, deviceID string, mode string) error {
	return c.do(ctx, "repeat", func() error {
		return c.api.RepeatOpt(ctx, mode, deviceOpt(deviceID))
	})
}

// Transfer moves the playback session to another device, optionally
// starting playback there immediately.
func (c *Client) Transfer(ctx context.Context, deviceID string, play bool) error {
	return c.do(ctx, "transfer", func() error {
		return c.api.TransferPlayback(ctx, zmb3.ID(deviceID), play)
	})
}

func deviceOpt(deviceID string) *zmb3.PlayOptions {
	if deviceID == "" {
		return nil
	}
	id := zmb3.ID(deviceID)
	return &zmb3.PlayOptions{DeviceID: &id}
}

var _ API = (*Client)(nil)
