// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package health

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ManuGH/spotbridge/internal/backend"
	"github.com/ManuGH/spotbridge/internal/token"
)

// BackendChecker reports the playback backend's readiness. A backend
// still working toward ready is degraded, not unhealthy: the API serves
// status and prewarm regardless.
type BackendChecker struct {
	name    string
	backend backend.PlaybackBackend
}

func NewBackendChecker(b backend.PlaybackBackend) *BackendChecker {
	return &BackendChecker{name: "playback_backend", backend: b}
}

func (c *BackendChecker) Name() string { return c.name }

func (c *BackendChecker) Check(_ context.Context) CheckResult {
	if c.backend == nil {
		return CheckResult{Status: StatusDegraded, Message: "no backend configured"}
	}

	readiness := c.backend.Readiness()
	switch readiness {
	case backend.ReadinessReady:
		msg := "ready"
		if rep, ok := c.backend.(backend.DeviceReporter); ok && rep.DeviceName() != "" {
			msg = fmt.Sprintf("ready on %s", rep.DeviceName())
		}
		return CheckResult{Status: StatusHealthy, Message: msg}
	case backend.ReadinessDegraded:
		return CheckResult{Status: StatusUnhealthy, Error: "playback backend degraded"}
	default:
		return CheckResult{Status: StatusDegraded, Message: string(readiness)}
	}
}

// CredentialChecker verifies an access credential can still be produced.
// Provider failures other than a missing token are transient by
// assumption and reported degraded.
type CredentialChecker struct {
	name     string
	provider token.Provider
	timeout  time.Duration
}

func NewCredentialChecker(p token.Provider) *CredentialChecker {
	return &CredentialChecker{name: "credentials", provider: p, timeout: 2 * time.Second}
}

func (c *CredentialChecker) Name() string { return c.name }

func (c *CredentialChecker) Check(ctx context.Context) CheckResult {
	if c.provider == nil {
		return CheckResult{Status: StatusUnhealthy, Error: "no credential source configured"}
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	_, err := c.provider.Token(ctx)
	switch {
	case err == nil:
		return CheckResult{Status: StatusHealthy, Message: "credential available"}
	case errors.Is(err, token.ErrNoToken):
		return CheckResult{Status: StatusUnhealthy, Error: "no access credential available"}
	default:
		return CheckResult{Status: StatusDegraded, Error: err.Error()}
	}
}
