// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package backend

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/text/unicode/norm"

	"github.com/ManuGH/spotbridge/internal/log"
	"github.com/ManuGH/spotbridge/internal/metrics"
	"github.com/ManuGH/spotbridge/internal/spotify"
)

const (
	// The device registers within moments of the connect command or not at
	// all, so the schedule is short and fixed rather than backed off.
	defaultPollAttempts = 6
	defaultPollInterval = 500 * time.Millisecond
)

type pollResult struct {
	deviceID   string
	deviceName string
	found      bool
}

// discoverer corroborates readiness against the remote device list. The
// helper's own ready event can be lost or delayed; the device list is the
// ground truth when local signaling fails. At most one poll runs at a time.
type discoverer struct {
	api      spotify.API
	target   string
	attempts int
	interval time.Duration
	logger   zerolog.Logger

	mu      sync.Mutex
	running bool
}

func newDiscoverer(api spotify.API, deviceName string, attempts int, interval time.Duration) *discoverer {
	if attempts <= 0 {
		attempts = defaultPollAttempts
	}
	if interval <= 0 {
		interval = defaultPollInterval
	}
	return &discoverer{
		api:      api,
		target:   norm.NFC.String(deviceName),
		attempts: attempts,
		interval: interval,
		logger:   log.WithComponent("discovery"),
	}
}

// Running reports whether a poll is currently in flight.
func (d *discoverer) Running() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.running
}

// Start launches one poll in the background and posts its outcome to out.
// It reports false without side effects when a poll is already in flight.
func (d *discoverer) Start(ctx context.Context, out chan<- pollResult) bool {
	d.mu.Lock()
	if d.running {
		d.mu.Unlock()
		return false
	}
	d.running = true
	d.mu.Unlock()

	go func() {
		res := d.run(ctx)
		d.mu.Lock()
		d.running = false
		d.mu.Unlock()
		select {
		case out <- res:
		case <-ctx.Done():
		}
	}()
	return true
}

// Resolve runs one poll synchronously, for commands that found their cached
// device stale. A poll already in flight is not duplicated; the caller gets
// a not-found result and can surface the failure.
func (d *discoverer) Resolve(ctx context.Context) pollResult {
	d.mu.Lock()
	if d.running {
		d.mu.Unlock()
		return pollResult{}
	}
	d.running = true
	d.mu.Unlock()

	res := d.run(ctx)

	d.mu.Lock()
	d.running = false
	d.mu.Unlock()
	return res
}

func (d *discoverer) run(ctx context.Context) pollResult {
	for attempt := 1; attempt <= d.attempts; attempt++ {
		if ctx.Err() != nil {
			metrics.RecordDiscoveryPoll("canceled")
			return pollResult{}
		}

		devices, err := d.api.Devices(ctx)
		if err != nil {
			// Per-attempt failures are retried inside the budget, not
			// surfaced; only exhaustion is.
			metrics.RecordDiscoveryAttempt("error")
			d.logger.Debug().
				Err(err).
				Int(log.FieldAttempt, attempt).
				Msg("device list fetch failed")
		} else {
			for _, dev := range devices {
				if norm.NFC.String(dev.Name) == d.target {
					metrics.RecordDiscoveryAttempt("match")
					metrics.RecordDiscoveryPoll("found")
					d.logger.Info().
						Str(log.FieldEvent, "discovery.matched").
						Str(log.FieldDeviceID, dev.ID).
						Str(log.FieldDeviceName, dev.Name).
						Int(log.FieldAttempt, attempt).
						Msg("playback device discovered")
					return pollResult{deviceID: dev.ID, deviceName: dev.Name, found: true}
				}
			}
			metrics.RecordDiscoveryAttempt("no_match")
		}

		if attempt < d.attempts {
			select {
			case <-ctx.Done():
				metrics.RecordDiscoveryPoll("canceled")
				return pollResult{}
			case <-time.After(d.interval):
			}
		}
	}

	metrics.RecordDiscoveryPoll("exhausted")
	d.logger.Warn().
		Str(log.FieldEvent, "discovery.exhausted").
		Str(log.FieldDeviceName, d.target).
		Int(log.FieldAttempt, d.attempts).
		Msg("no matching device after full poll budget")
	return pollResult{}
}
