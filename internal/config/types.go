// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package config

import "time"

// AppConfig is the fully resolved daemon configuration.
type AppConfig struct {
	// Logging
	LogLevel   string
	LogService string
	Version    string

	// HTTP surface. APIToken guards /api/v1 when set; like all secrets it
	// comes from ENV only.
	ListenAddr     string
	MetricsAddr    string
	APIToken       string
	APIRateRPS     float64
	APIRateBurst   int
	AllowedOrigins []string

	// Data directory for the token cache and other local state
	DataDir string

	// Player helper process
	LaunchMode      string // "dev" or "packaged"
	DevRepoPath     string
	HelperName      string
	BackendBaseURL  string
	HelperStopGrace time.Duration

	// Playback backend
	BackendMode string // "internal", "remote" or "noop"
	DeviceName  string
	Prewarm     bool

	// Spotify Web API
	SpotifyAPIURL   string
	WebAPIRateRPS   float64
	WebAPIRateBurst int

	// Credentials. Secrets come from ENV or the keyring, never from the
	// config file.
	TokenSource    string // "auto", "keyring", "file", "env" or "oauth"
	TokenFile      string
	KeyringService string
	AccessToken    string
	ClientID       string
	RefreshToken   string

	// Telemetry
	OTELEnabled     bool
	OTELEndpoint    string
	OTELProtocol    string // "http" or "grpc"
	OTELSampleRatio float64

	// Shutdown
	ShutdownGrace time.Duration
}

// ServerConfig bounds the HTTP listeners. Derived from AppConfig rather than
// configured field by field; the timeouts are fixed because the control API
// only ever serves the local app shell.
type ServerConfig struct {
	ListenAddr      string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	IdleTimeout     time.Duration
	MaxHeaderBytes  int
	ShutdownTimeout time.Duration
}

// ServerConfigFrom derives the listener bounds from the resolved app config.
func ServerConfigFrom(cfg AppConfig) ServerConfig {
	return ServerConfig{
		ListenAddr:      cfg.ListenAddr,
		ReadTimeout:     10 * time.Second,
		WriteTimeout:    30 * time.Second,
		IdleTimeout:     120 * time.Second,
		MaxHeaderBytes:  1 << 20,
		ShutdownTimeout: cfg.ShutdownGrace,
	}
}

// FileConfig is the YAML file schema. Pointer fields distinguish "absent"
// from zero values so the file only overrides what it actually sets.
type FileConfig struct {
	LogLevel      *string              `yaml:"log_level"`
	Listen        *string              `yaml:"listen"`
	MetricsListen *string              `yaml:"metrics_listen"`
	DataDir       *string              `yaml:"data_dir"`
	APIRateRPS    *float64             `yaml:"api_rate_rps"`
	APIRateBurst  *int                 `yaml:"api_rate_burst"`
	Origins       []string             `yaml:"allowed_origins"`
	Player        *PlayerFileConfig    `yaml:"player"`
	Spotify       *SpotifyFileConfig   `yaml:"spotify"`
	Telemetry     *TelemetryFileConfig `yaml:"telemetry"`
	ShutdownGrace *string              `yaml:"shutdown_grace"`
}

// PlayerFileConfig covers the helper process and backend selection.
type PlayerFileConfig struct {
	LaunchMode *string `yaml:"launch_mode"`
	DevRepo    *string `yaml:"dev_repo"`
	HelperName *string `yaml:"helper_name"`
	BackendURL *string `yaml:"backend_url"`
	StopGrace  *string `yaml:"stop_grace"`
	DeviceName *string `yaml:"device_name"`
	Mode       *string `yaml:"mode"`
	Prewarm    *bool   `yaml:"prewarm"`
}

// SpotifyFileConfig covers the Web API client and credential sources.
type SpotifyFileConfig struct {
	APIURL         *string  `yaml:"api_url"`
	RateRPS        *float64 `yaml:"rate_rps"`
	RateBurst      *int     `yaml:"rate_burst"`
	TokenSource    *string  `yaml:"token_source"`
	TokenFile      *string  `yaml:"token_file"`
	KeyringService *string  `yaml:"keyring_service"`
	ClientID       *string  `yaml:"client_id"`
}

// TelemetryFileConfig covers OTLP trace export.
type TelemetryFileConfig struct {
	Enabled     *bool    `yaml:"enabled"`
	Endpoint    *string  `yaml:"endpoint"`
	Protocol    *string  `yaml:"protocol"`
	SampleRatio *float64 `yaml:"sample_ratio"`
}
