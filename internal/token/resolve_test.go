// SPDX-License-Identifier: MIT

package token

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zalando/go-keyring"
)

func writeTokenFile(t *testing.T, tok string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "token.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"access_token": "`+tok+`"}`), 0o600))
	return path
}

func TestResolveExplicitSources(t *testing.T) {
	keyring.MockInit()
	ctx := context.Background()

	t.Run("env", func(t *testing.T) {
		p, err := Resolve(ctx, Options{Source: "env", AccessToken: "env-held-token"})
		require.NoError(t, err)
		tok, err := p.Token(ctx)
		require.NoError(t, err)
		assert.Equal(t, "env-held-token", tok)
	})

	t.Run("env without token", func(t *testing.T) {
		_, err := Resolve(ctx, Options{Source: "env"})
		require.ErrorIs(t, err, ErrNoToken)
	})

	t.Run("file", func(t *testing.T) {
		path := writeTokenFile(t, "file-held-token")
		p, err := Resolve(ctx, Options{Source: "file", FilePath: path})
		require.NoError(t, err)
		tok, err := p.Token(ctx)
		require.NoError(t, err)
		assert.Equal(t, "file-held-token", tok)
	})

	t.Run("file without path", func(t *testing.T) {
		_, err := Resolve(ctx, Options{Source: "file"})
		require.ErrorIs(t, err, ErrNoToken)
	})

	t.Run("keyring", func(t *testing.T) {
		require.NoError(t, NewKeyring("spotbridge", "").Store("keyring-held-token"))
		p, err := Resolve(ctx, Options{Source: "keyring", KeyringService: "spotbridge"})
		require.NoError(t, err)
		tok, err := p.Token(ctx)
		require.NoError(t, err)
		assert.Equal(t, "keyring-held-token", tok)
	})

	t.Run("oauth without credentials", func(t *testing.T) {
		_, err := Resolve(ctx, Options{Source: "oauth", ClientID: "id-only"})
		require.ErrorIs(t, err, ErrNoToken)
	})

	t.Run("unknown source", func(t *testing.T) {
		_, err := Resolve(ctx, Options{Source: "vault"})
		require.Error(t, err)
		require.NotErrorIs(t, err, ErrNoToken)
	})
}

func TestResolveAutoOrder(t *testing.T) {
	ctx := context.Background()

	t.Run("env wins over file", func(t *testing.T) {
		keyring.MockInit()
		path := writeTokenFile(t, "file-held-token")
		p, err := Resolve(ctx, Options{Source: "auto", AccessToken: "env-held-token", FilePath: path})
		require.NoError(t, err)
		tok, err := p.Token(ctx)
		require.NoError(t, err)
		assert.Equal(t, "env-held-token", tok)
	})

	t.Run("keyring wins over file", func(t *testing.T) {
		keyring.MockInit()
		require.NoError(t, NewKeyring("spotbridge", "").Store("keyring-held-token"))
		path := writeTokenFile(t, "file-held-token")
		p, err := Resolve(ctx, Options{Source: "auto", KeyringService: "spotbridge", FilePath: path})
		require.NoError(t, err)
		tok, err := p.Token(ctx)
		require.NoError(t, err)
		assert.Equal(t, "keyring-held-token", tok)
	})

	t.Run("file as fallback", func(t *testing.T) {
		keyring.MockInit()
		path := writeTokenFile(t, "file-held-token")
		p, err := Resolve(ctx, Options{Source: "auto", KeyringService: "spotbridge-empty", FilePath: path})
		require.NoError(t, err)
		tok, err := p.Token(ctx)
		require.NoError(t, err)
		assert.Equal(t, "file-held-token", tok)
	})

	t.Run("nothing available", func(t *testing.T) {
		keyring.MockInit()
		_, err := Resolve(ctx, Options{Source: "auto", KeyringService: "spotbridge-empty"})
		require.ErrorIs(t, err, ErrNoToken)
	})
}
