// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package config

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Env var names consumed by the loader. The supervisor reuses EnvAccessToken
// and EnvBackendURL when it injects the helper environment.
const (
	EnvAccessToken = "SPOTBRIDGE_ACCESS_TOKEN"
	EnvBackendURL  = "SPOTBRIDGE_BACKEND_URL"
	EnvHeadless    = "SPOTBRIDGE_HEADLESS"
)

// Loader handles configuration loading with precedence
type Loader struct {
	configPath string
	version    string
}

// NewLoader creates a new configuration loader
func NewLoader(configPath, version string) *Loader {
	return &Loader{
		configPath: configPath,
		version:    version,
	}
}

// Load loads configuration with precedence: ENV > File > Defaults.
// Order is parse file (strict), apply env, then validate.
func (l *Loader) Load() (AppConfig, error) {
	cfg := defaults()

	// 1. Merge file config (if provided)
	if l.configPath != "" {
		fileCfg, err := l.loadFile(l.configPath)
		if err != nil {
			return cfg, fmt.Errorf("load config file: %w", err)
		}
		mergeFileConfig(&cfg, fileCfg)
	}

	// 2. Override with environment variables (highest priority)
	mergeEnvConfig(&cfg)

	// 3. Version from binary
	cfg.Version = l.version

	// SAFETY: Ensure DataDir is absolute to prevent path traversal/platform errors
	if abs, err := filepath.Abs(cfg.DataDir); err == nil {
		cfg.DataDir = abs
	}

	// The token cache defaults into the data dir once that is final.
	if cfg.TokenFile == "" {
		cfg.TokenFile = filepath.Join(cfg.DataDir, "token.json")
	}

	// 4. Validate final configuration
	if err := Validate(cfg); err != nil {
		return cfg, fmt.Errorf("config validation failed: %w", err)
	}

	return cfg, nil
}

func defaults() AppConfig {
	return AppConfig{
		LogLevel:   "info",
		LogService: "spotbridge",

		// The control API is a local surface for the app shell; bind loopback
		// unless the operator opts out.
		ListenAddr:   "127.0.0.1:9430",
		MetricsAddr:  "",
		APIRateRPS:   10,
		APIRateBurst: 20,

		DataDir: filepath.Join(os.TempDir(), "spotbridge"),

		LaunchMode:      "packaged",
		HelperName:      "spotbridge-helper",
		HelperStopGrace: 3 * time.Second,

		BackendMode: "internal",
		DeviceName:  "Slideshow Player",

		WebAPIRateRPS:   10,
		WebAPIRateBurst: 5,

		TokenSource:    "auto",
		KeyringService: "spotbridge",

		OTELEndpoint:    "localhost:4318",
		OTELProtocol:    "http",
		OTELSampleRatio: 0.1,

		ShutdownGrace: 5 * time.Second,
	}
}

func mergeFileConfig(cfg *AppConfig, file *FileConfig) {
	if file == nil {
		return
	}
	setString(&cfg.LogLevel, file.LogLevel)
	setString(&cfg.ListenAddr, file.Listen)
	setString(&cfg.MetricsAddr, file.MetricsListen)
	setString(&cfg.DataDir, file.DataDir)
	setFloat(&cfg.APIRateRPS, file.APIRateRPS)
	setInt(&cfg.APIRateBurst, file.APIRateBurst)
	if file.Origins != nil {
		cfg.AllowedOrigins = file.Origins
	}
	setDuration(&cfg.ShutdownGrace, file.ShutdownGrace)

	if p := file.Player; p != nil {
		setString(&cfg.LaunchMode, p.LaunchMode)
		setString(&cfg.DevRepoPath, p.DevRepo)
		setString(&cfg.HelperName, p.HelperName)
		setString(&cfg.BackendBaseURL, p.BackendURL)
		setDuration(&cfg.HelperStopGrace, p.StopGrace)
		setString(&cfg.DeviceName, p.DeviceName)
		setString(&cfg.BackendMode, p.Mode)
		setBool(&cfg.Prewarm, p.Prewarm)
	}

	if s := file.Spotify; s != nil {
		setString(&cfg.SpotifyAPIURL, s.APIURL)
		setFloat(&cfg.WebAPIRateRPS, s.RateRPS)
		setInt(&cfg.WebAPIRateBurst, s.RateBurst)
		setString(&cfg.TokenSource, s.TokenSource)
		setString(&cfg.TokenFile, s.TokenFile)
		setString(&cfg.KeyringService, s.KeyringService)
		setString(&cfg.ClientID, s.ClientID)
	}

	if t := file.Telemetry; t != nil {
		setBool(&cfg.OTELEnabled, t.Enabled)
		setString(&cfg.OTELEndpoint, t.Endpoint)
		setString(&cfg.OTELProtocol, t.Protocol)
		setFloat(&cfg.OTELSampleRatio, t.SampleRatio)
	}
}

func mergeEnvConfig(cfg *AppConfig) {
	cfg.LogLevel = ParseString("SPOTBRIDGE_LOG_LEVEL", cfg.LogLevel)
	cfg.LogService = ParseString("SPOTBRIDGE_LOG_SERVICE", cfg.LogService)
	cfg.ListenAddr = ParseString("SPOTBRIDGE_LISTEN", cfg.ListenAddr)
	cfg.MetricsAddr = ParseString("SPOTBRIDGE_METRICS_LISTEN", cfg.MetricsAddr)
	cfg.APIToken = ParseString("SPOTBRIDGE_API_TOKEN", cfg.APIToken)
	cfg.APIRateRPS = ParseFloat("SPOTBRIDGE_API_RATE_LIMIT", cfg.APIRateRPS)
	cfg.APIRateBurst = ParseInt("SPOTBRIDGE_API_RATE_BURST", cfg.APIRateBurst)
	if raw := ParseString("SPOTBRIDGE_ALLOWED_ORIGINS", ""); raw != "" {
		var origins []string
		for _, o := range strings.Split(raw, ",") {
			if o = strings.TrimSpace(o); o != "" {
				origins = append(origins, o)
			}
		}
		cfg.AllowedOrigins = origins
	}
	cfg.DataDir = ParseString("SPOTBRIDGE_DATA", cfg.DataDir)

	cfg.LaunchMode = ParseString("SPOTBRIDGE_LAUNCH_MODE", cfg.LaunchMode)
	cfg.DevRepoPath = ParseString("SPOTBRIDGE_DEV_REPO", cfg.DevRepoPath)
	cfg.HelperName = ParseString("SPOTBRIDGE_HELPER_NAME", cfg.HelperName)
	cfg.BackendBaseURL = ParseString(EnvBackendURL, cfg.BackendBaseURL)
	cfg.HelperStopGrace = ParseDuration("SPOTBRIDGE_HELPER_STOP_GRACE", cfg.HelperStopGrace)

	cfg.BackendMode = ParseString("SPOTBRIDGE_BACKEND_MODE", cfg.BackendMode)
	cfg.DeviceName = ParseString("SPOTBRIDGE_DEVICE_NAME", cfg.DeviceName)
	cfg.Prewarm = ParseBool("SPOTBRIDGE_PREWARM", cfg.Prewarm)

	cfg.SpotifyAPIURL = ParseString("SPOTBRIDGE_SPOTIFY_API_URL", cfg.SpotifyAPIURL)
	cfg.WebAPIRateRPS = ParseFloat("SPOTBRIDGE_WEBAPI_RATE_LIMIT", cfg.WebAPIRateRPS)
	cfg.WebAPIRateBurst = ParseInt("SPOTBRIDGE_WEBAPI_RATE_BURST", cfg.WebAPIRateBurst)

	cfg.TokenSource = ParseString("SPOTBRIDGE_TOKEN_SOURCE", cfg.TokenSource)
	cfg.TokenFile = ParseString("SPOTBRIDGE_TOKEN_FILE", cfg.TokenFile)
	cfg.KeyringService = ParseString("SPOTBRIDGE_KEYRING_SERVICE", cfg.KeyringService)
	cfg.AccessToken = ParseString(EnvAccessToken, cfg.AccessToken)
	cfg.ClientID = ParseString("SPOTBRIDGE_CLIENT_ID", cfg.ClientID)
	cfg.RefreshToken = ParseString("SPOTBRIDGE_REFRESH_TOKEN", cfg.RefreshToken)

	cfg.OTELEnabled = ParseBool("SPOTBRIDGE_OTEL_ENABLED", cfg.OTELEnabled)
	cfg.OTELEndpoint = ParseString("SPOTBRIDGE_OTEL_ENDPOINT", cfg.OTELEndpoint)
	cfg.OTELProtocol = ParseString("SPOTBRIDGE_OTEL_PROTOCOL", cfg.OTELProtocol)
	cfg.OTELSampleRatio = ParseFloat("SPOTBRIDGE_OTEL_SAMPLE_RATIO", cfg.OTELSampleRatio)

	cfg.ShutdownGrace = ParseDuration("SPOTBRIDGE_SHUTDOWN_GRACE", cfg.ShutdownGrace)
}

// loadFile loads configuration from a YAML file with STRICT parsing.
// Unknown fields will cause a fatal error to prevent misconfiguration.
func (l *Loader) loadFile(path string) (*FileConfig, error) {
	path = filepath.Clean(path)

	ext := strings.ToLower(filepath.Ext(path))
	if ext != ".yaml" && ext != ".yml" {
		return nil, fmt.Errorf("unsupported config format: %s (only YAML supported)", ext)
	}

	// #nosec G304 -- configuration file paths are provided by the operator via CLI/ENV
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read file: %w", err)
	}

	var fileCfg FileConfig
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true) // Reject unknown fields

	if err := dec.Decode(&fileCfg); err != nil {
		if err == io.EOF {
			return &FileConfig{}, nil
		}
		return nil, fmt.Errorf("strict config parse error: %w", err)
	}

	// Strict: no multiple documents or trailing content.
	if err := dec.Decode(&struct{}{}); err != io.EOF {
		return nil, fmt.Errorf("config file contains multiple documents or trailing content")
	}

	return &fileCfg, nil
}

func setString(dst *string, src *string) {
	if src != nil {
		*dst = *src
	}
}

func setBool(dst *bool, src *bool) {
	if src != nil {
		*dst = *src
	}
}

func setInt(dst *int, src *int) {
	if src != nil {
		*dst = *src
	}
}

func setFloat(dst *float64, src *float64) {
	if src != nil {
		*dst = *src
	}
}

func setDuration(dst *time.Duration, src *string) {
	if src == nil {
		return
	}
	if d, err := time.ParseDuration(*src); err == nil {
		*dst = d
	}
}
