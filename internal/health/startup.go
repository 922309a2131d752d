// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package health

import (
	"fmt"
	"net"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"

	"github.com/rs/zerolog"

	"github.com/ManuGH/spotbridge/internal/config"
	"github.com/ManuGH/spotbridge/internal/log"
)

// PerformStartupChecks validates the environment before the daemon starts
// serving. Config shape is already validated by the config package; this
// covers what only the runtime can answer.
func PerformStartupChecks(cfg config.AppConfig) error {
	logger := log.WithComponent("startup-check")
	logger.Info().Msg("Running pre-flight startup checks...")

	if err := checkListenAddr(logger, "listen", cfg.ListenAddr); err != nil {
		return err
	}
	if cfg.MetricsAddr != "" {
		if err := checkListenAddr(logger, "metrics listen", cfg.MetricsAddr); err != nil {
			return err
		}
	}

	if cfg.LaunchMode == "dev" {
		if err := checkDevRepo(logger, cfg.DevRepoPath); err != nil {
			return fmt.Errorf("dev repository check failed: %w", err)
		}
	}

	if cfg.DataDir != "" {
		if err := checkDataDir(logger, cfg.DataDir); err != nil {
			return fmt.Errorf("data directory check failed: %w", err)
		}
	}

	if cfg.TokenSource == "file" && cfg.TokenFile != "" {
		if err := checkFileReadable(cfg.TokenFile); err != nil {
			return fmt.Errorf("token cache file not readable: %w", err)
		}
		logger.Info().Str(log.FieldPath, cfg.TokenFile).Msg("✓ Token cache file is readable")
	}

	logger.Info().Msg("✅ All startup checks passed")
	return nil
}

func checkListenAddr(logger zerolog.Logger, label, addr string) error {
	_, port, err := net.SplitHostPort(addr)
	if err != nil {
		return fmt.Errorf("invalid %s address %q: %w", label, addr, err)
	}
	portNum, err := strconv.Atoi(port)
	if err != nil || portNum < 0 || portNum > 65535 {
		return fmt.Errorf("invalid %s port %q in %q", label, port, addr)
	}
	logger.Info().Str("addr", addr).Msgf("✓ %s address is valid", label)
	return nil
}

// checkDevRepo verifies the dev launch can actually work: the repository
// exists, looks like a node project, and npm is resolvable.
func checkDevRepo(logger zerolog.Logger, path string) error {
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return fmt.Errorf("directory does not exist: %s", path)
		}
		return err
	}
	if !info.IsDir() {
		return fmt.Errorf("path is not a directory: %s", path)
	}

	if _, err := os.Stat(filepath.Join(path, "package.json")); err != nil {
		return fmt.Errorf("no package.json in %s; not a player repository", path)
	}

	if _, err := exec.LookPath("npm"); err != nil {
		return fmt.Errorf("npm binary not found: %w", err)
	}

	logger.Info().Str(log.FieldPath, path).Msg("✓ Dev repository is launchable")
	return nil
}

func checkDataDir(logger zerolog.Logger, path string) error {
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return fmt.Errorf("directory does not exist: %s", path)
		}
		return err
	}
	if !info.IsDir() {
		return fmt.Errorf("path is not a directory: %s", path)
	}

	// Check write permissions by creating a temp file
	testFile := filepath.Join(path, ".write_test")
	if err := os.WriteFile(testFile, []byte("ok"), 0600); err != nil {
		return fmt.Errorf("directory is not writable: %s (error: %v)", path, err)
	}
	_ = os.Remove(testFile)

	logger.Info().Str(log.FieldPath, path).Msg("✓ Data directory is writable")
	return nil
}

func checkFileReadable(path string) error {
	f, err := os.Open(path) // #nosec G304 -- path comes from operator config; verifying readability is expected
	if err != nil {
		return err
	}
	return f.Close()
}
