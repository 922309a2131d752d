// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package config

import (
	"strings"

	"github.com/ManuGH/spotbridge/internal/validate"
)

// Validate validates an AppConfig using the centralized validation package.
func Validate(cfg AppConfig) error {
	v := validate.New()

	v.NotEmpty("ListenAddr", cfg.ListenAddr)
	v.Directory("DataDir", cfg.DataDir, false)

	v.OneOf("LaunchMode", cfg.LaunchMode, []string{"dev", "packaged"})
	switch cfg.LaunchMode {
	case "dev":
		// Presence only. Whether the path actually exists is checked at
		// launch time so the daemon can still start and report it cleanly.
		v.NotEmpty("DevRepoPath", cfg.DevRepoPath)
	case "packaged":
		v.NotEmpty("HelperName", cfg.HelperName)
	}

	if strings.TrimSpace(cfg.BackendBaseURL) != "" {
		v.URL("BackendBaseURL", cfg.BackendBaseURL, []string{"http", "https"})
	}

	v.OneOf("BackendMode", cfg.BackendMode, []string{"internal", "remote", "noop"})
	if cfg.BackendMode == "internal" {
		v.NotEmpty("DeviceName", cfg.DeviceName)
	}

	if strings.TrimSpace(cfg.SpotifyAPIURL) != "" {
		v.URL("SpotifyAPIURL", cfg.SpotifyAPIURL, []string{"http", "https"})
	}

	v.OneOf("TokenSource", cfg.TokenSource, []string{"auto", "keyring", "file", "env", "oauth"})
	if cfg.TokenSource == "oauth" {
		v.NotEmpty("ClientID", cfg.ClientID)
		v.NotEmpty("RefreshToken", cfg.RefreshToken)
	}

	if cfg.APIRateRPS < 0 {
		v.AddError("APIRateRPS", "must be >= 0", cfg.APIRateRPS)
	}
	v.NonNegative("APIRateBurst", cfg.APIRateBurst)
	if cfg.WebAPIRateRPS < 0 {
		v.AddError("WebAPIRateRPS", "must be >= 0", cfg.WebAPIRateRPS)
	}
	v.NonNegative("WebAPIRateBurst", cfg.WebAPIRateBurst)

	if cfg.OTELEnabled {
		v.OneOf("OTELProtocol", cfg.OTELProtocol, []string{"http", "grpc"})
		v.NotEmpty("OTELEndpoint", cfg.OTELEndpoint)
	}
	v.UnitInterval("OTELSampleRatio", cfg.OTELSampleRatio)

	if cfg.HelperStopGrace < 0 {
		v.AddError("HelperStopGrace", "must be >= 0", cfg.HelperStopGrace)
	}
	if cfg.ShutdownGrace < 0 {
		v.AddError("ShutdownGrace", "must be >= 0", cfg.ShutdownGrace)
	}

	if !v.IsValid() {
		return v.Err()
	}

	return nil
}
