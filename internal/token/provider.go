// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package token resolves and serves the Spotify access token the player
// helper and the Web API client authenticate with. Tokens reach the daemon
// from the outside (environment, keyring, cache file, or a refresh grant);
// no interactive authorization happens here.
package token

import (
	"context"
	"errors"
)

// ErrNoToken indicates that the configured source has no token to offer.
var ErrNoToken = errors.New("token: no access token available")

// Provider hands out the current access token. Implementations are safe
// for concurrent use; the returned token may change between calls when
// the underlying source rotates.
type Provider interface {
	Token(ctx context.Context) (string, error)
}

// Redact shortens a token for log output. Only a short prefix survives,
// enough to correlate rotations without leaking the credential.
func Redact(tok string) string {
	if len(tok) < 12 {
		return "***"
	}
	return tok[:4] + "..."
}
