// SPDX-License-Identifier: MIT

package health

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/ManuGH/spotbridge/internal/config"
)

// stubNpm puts a fake npm binary on PATH so dev-repo checks do not
// depend on the build host.
func stubNpm(t *testing.T) {
	t.Helper()
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "npm"), []byte("#!/bin/sh\nexit 0\n"), 0o755))
	t.Setenv("PATH", dir+string(os.PathListSeparator)+os.Getenv("PATH"))
}

func devRepo(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "package.json"), []byte(`{"name":"player"}`), 0o644))
	return dir
}

func baseConfig(t *testing.T) config.AppConfig {
	t.Helper()
	return config.AppConfig{
		ListenAddr:  "127.0.0.1:9430",
		MetricsAddr: "127.0.0.1:9431",
		LaunchMode:  "packaged",
		HelperName:  "spotbridge-helper",
		DataDir:     t.TempDir(),
	}
}

func TestPerformStartupChecks_Valid(t *testing.T) {
	require.NoError(t, PerformStartupChecks(baseConfig(t)))
}

func TestPerformStartupChecks_BadListenAddr(t *testing.T) {
	cfg := baseConfig(t)
	cfg.ListenAddr = "no-port-here"
	err := PerformStartupChecks(cfg)
	require.ErrorContains(t, err, "invalid listen address")

	cfg = baseConfig(t)
	cfg.MetricsAddr = "127.0.0.1:notaport"
	err = PerformStartupChecks(cfg)
	require.ErrorContains(t, err, "metrics listen port")
}

func TestPerformStartupChecks_DevRepo(t *testing.T) {
	stubNpm(t)

	cfg := baseConfig(t)
	cfg.LaunchMode = "dev"
	cfg.DevRepoPath = devRepo(t)
	require.NoError(t, PerformStartupChecks(cfg))

	cfg.DevRepoPath = filepath.Join(t.TempDir(), "missing")
	err := PerformStartupChecks(cfg)
	require.ErrorContains(t, err, "does not exist")

	// A directory without package.json is not a player repository.
	cfg.DevRepoPath = t.TempDir()
	err = PerformStartupChecks(cfg)
	require.ErrorContains(t, err, "package.json")
}

func TestPerformStartupChecks_DataDirMissing(t *testing.T) {
	cfg := baseConfig(t)
	cfg.DataDir = filepath.Join(t.TempDir(), "missing")
	err := PerformStartupChecks(cfg)
	require.ErrorContains(t, err, "data directory check failed")
}

func TestPerformStartupChecks_TokenFile(t *testing.T) {
	cfg := baseConfig(t)
	cfg.TokenSource = "file"
	cfg.TokenFile = filepath.Join(t.TempDir(), "tokens.json")
	err := PerformStartupChecks(cfg)
	require.ErrorContains(t, err, "token cache file not readable")

	require.NoError(t, os.WriteFile(cfg.TokenFile, []byte(`{}`), 0o600))
	require.NoError(t, PerformStartupChecks(cfg))
}
