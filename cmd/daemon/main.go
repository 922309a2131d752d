// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net"
	"net/url"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/ManuGH/spotbridge/internal/api"
	"github.com/ManuGH/spotbridge/internal/backend"
	"github.com/ManuGH/spotbridge/internal/config"
	"github.com/ManuGH/spotbridge/internal/daemon"
	"github.com/ManuGH/spotbridge/internal/diag"
	"github.com/ManuGH/spotbridge/internal/health"
	"github.com/ManuGH/spotbridge/internal/log"
	"github.com/ManuGH/spotbridge/internal/player"
	"github.com/ManuGH/spotbridge/internal/spotify"
	"github.com/ManuGH/spotbridge/internal/telemetry"
	"github.com/ManuGH/spotbridge/internal/token"
)

var (
	version   = "v1.0.0"
	commit    = "none"
	buildDate = "unknown"
)

const webAPITimeout = 10 * time.Second

// maskURL removes user info from a URL string for safe logging.
func maskURL(rawURL string) string {
	parsedURL, err := url.Parse(rawURL)
	if err != nil {
		return "invalid-url-redacted"
	}
	parsedURL.User = nil
	return parsedURL.String()
}

func isLoopbackListen(addr string) bool {
	host, _, err := net.SplitHostPort(addr)
	if err != nil {
		return false
	}
	if host == "localhost" {
		return true
	}
	ip := net.ParseIP(host)
	return ip != nil && ip.IsLoopback()
}

func main() {
	showVersion := flag.Bool("version", false, "print version and exit")
	configPath := flag.String("config", "", "path to config file (YAML)")
	prewarmFlag := flag.Bool("prewarm", false, "initialise the playback backend at startup instead of on first use")
	flag.Parse()

	if *showVersion {
		fmt.Printf("%s (commit: %s, built: %s)\n", version, commit, buildDate)
		os.Exit(0)
	}

	// The diagnostics ring captures every log line from here on so the
	// /diagnostics endpoint can serve recent output without log files.
	ring := diag.NewRing(diag.DefaultCapacity)

	// Configure logger with safe defaults until config is loaded
	log.Configure(log.Config{
		Level:   "info",
		Output:  zerolog.MultiLevelWriter(os.Stdout, ring),
		Service: "spotbridge",
		Version: version,
	})

	logger := log.WithComponent("daemon")

	// Create a context that listens for the interrupt signal from the OS
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Determine config path:
	// - Explicit via --config
	// - Otherwise auto-load ${SPOTBRIDGE_DATA}/config.yaml if it exists (so
	//   config saved by the app shell persists across restarts)
	explicitConfigPath := strings.TrimSpace(*configPath)
	effectiveConfigPath := explicitConfigPath
	if effectiveConfigPath == "" {
		dataDir := strings.TrimSpace(config.ParseString("SPOTBRIDGE_DATA", ""))
		if dataDir == "" {
			dataDir = filepath.Join(os.TempDir(), "spotbridge")
		}
		autoPath := filepath.Join(dataDir, "config.yaml")
		if _, err := os.Stat(autoPath); err == nil {
			effectiveConfigPath = autoPath
		}
	}

	// Load configuration with precedence: ENV > File > Defaults
	loader := config.NewLoader(effectiveConfigPath, version)
	cfg, err := loader.Load()
	if err != nil {
		logger.Fatal().
			Err(err).
			Str(log.FieldEvent, "config.load_failed").
			Str("config_path", effectiveConfigPath).
			Msg("failed to load configuration")
	}

	// Re-configure logger with loaded configuration, keeping the ring attached
	log.Configure(log.Config{
		Level:   cfg.LogLevel,
		Output:  zerolog.MultiLevelWriter(os.Stdout, ring),
		Service: cfg.LogService,
		Version: cfg.Version,
	})

	// Log config source
	if explicitConfigPath != "" {
		logger.Info().
			Str(log.FieldEvent, "config.loaded").
			Str("source", "file").
			Str("path", explicitConfigPath).
			Msg("loaded configuration from file")
	} else if effectiveConfigPath != "" {
		logger.Info().
			Str(log.FieldEvent, "config.loaded").
			Str("source", "file(auto)").
			Str("path", effectiveConfigPath).
			Msg("loaded configuration from file")
	} else {
		logger.Info().
			Str(log.FieldEvent, "config.loaded").
			Str("source", "env+defaults").
			Msg("loaded configuration from environment and defaults")
	}

	logger.Debug().
		Interface("config", config.MaskSecrets(cfg)).
		Msg("resolved configuration")

	if err := health.PerformStartupChecks(cfg); err != nil {
		logger.Fatal().
			Err(err).
			Str(log.FieldEvent, "startup.check_failed").
			Msg("startup checks failed, verify configuration and permissions")
	}

	mode, err := backend.ParseMode(cfg.BackendMode)
	if err != nil {
		logger.Fatal().
			Err(err).
			Str(log.FieldEvent, "config.invalid_mode").
			Msg("invalid backend mode")
	}

	logger.Info().
		Str(log.FieldEvent, "startup").
		Str("version", version).
		Str("commit", commit).
		Str("build_date", buildDate).
		Str("addr", cfg.ListenAddr).
		Msg("starting spotbridge")

	// Log key configuration
	logger.Info().Msgf("→ Backend: %s (device: %q)", cfg.BackendMode, cfg.DeviceName)
	logger.Info().Msgf("→ Helper: %s (%s mode)", cfg.HelperName, cfg.LaunchMode)
	if cfg.SpotifyAPIURL != "" {
		logger.Info().Msgf("→ Web API: %s (%.0f rps)", maskURL(cfg.SpotifyAPIURL), cfg.WebAPIRateRPS)
	}
	logger.Info().Msgf("→ Token source: %s", cfg.TokenSource)
	logger.Info().Msgf("→ Data dir: %s", cfg.DataDir)
	if cfg.APIToken != "" {
		logger.Info().Msg("→ API token: configured")
	} else if !isLoopbackListen(cfg.ListenAddr) {
		logger.Warn().
			Str("security", "weak").
			Msg("→ API token: NOT configured on a non-loopback listen address. Set SPOTBRIDGE_API_TOKEN.")
	}
	if cfg.MetricsAddr != "" {
		logger.Info().Msgf("→ Metrics: %s", cfg.MetricsAddr)
	}

	tel, err := telemetry.NewProvider(ctx, telemetry.Config{
		Enabled:        cfg.OTELEnabled,
		ServiceName:    cfg.LogService,
		ServiceVersion: cfg.Version,
		ExporterType:   cfg.OTELProtocol,
		Endpoint:       cfg.OTELEndpoint,
		SamplingRate:   cfg.OTELSampleRatio,
	})
	if err != nil {
		logger.Fatal().
			Err(err).
			Str(log.FieldEvent, "telemetry.init_failed").
			Msg("failed to initialise telemetry")
	}

	// A missing credential is a normal startup state: the daemon comes up,
	// serves status and waits. Anything else from the resolver is a
	// misconfigured source and fails fast.
	tokens, err := token.Resolve(ctx, token.Options{
		Source:         cfg.TokenSource,
		AccessToken:    cfg.AccessToken,
		FilePath:       cfg.TokenFile,
		KeyringService: cfg.KeyringService,
		ClientID:       cfg.ClientID,
		RefreshToken:   cfg.RefreshToken,
	})
	if err != nil {
		if !errors.Is(err, token.ErrNoToken) {
			logger.Fatal().
				Err(err).
				Str(log.FieldEvent, "token.resolve_failed").
				Msg("credential source misconfigured")
		}
		logger.Warn().
			Str(log.FieldEvent, "token.missing").
			Msg("no access credential found; playback stays unavailable until one arrives")
		tokens = nil
	}

	var webAPI spotify.API
	if tokens != nil {
		httpClient := spotify.NewHTTPClient(token.Source(ctx, tokens), webAPITimeout)
		webAPI = spotify.New(httpClient, spotify.Config{
			BaseURL:   cfg.SpotifyAPIURL,
			RateRPS:   int(cfg.WebAPIRateRPS),
			RateBurst: cfg.WebAPIRateBurst,
		})
	}

	sup := player.NewSupervisor(player.Config{
		Mode:        player.LaunchMode(cfg.LaunchMode),
		DevRepoPath: cfg.DevRepoPath,
		HelperName:  cfg.HelperName,
		StopGrace:   cfg.HelperStopGrace,
	}, ring)

	factory := backend.NewFactory(backend.InternalConfig{
		DeviceName:     cfg.DeviceName,
		BackendBaseURL: cfg.BackendBaseURL,
	}, sup, webAPI, tokens)

	if cfg.Prewarm || *prewarmFlag {
		if err := factory.Prewarm(ctx, mode); err != nil {
			logger.Warn().
				Err(err).
				Str(log.FieldEvent, "backend.prewarm_failed").
				Msg("prewarm failed; backend will initialise on first use")
		} else {
			logger.Info().
				Str(log.FieldEvent, "backend.prewarmed").
				Str("mode", string(mode)).
				Msg("playback backend initialising ahead of first use")
		}
	}

	healthMgr := health.NewManager(cfg.Version)
	healthMgr.RegisterChecker(health.NewBackendChecker(factory.Backend(mode)))
	if tokens != nil {
		healthMgr.RegisterChecker(health.NewCredentialChecker(tokens))
	}

	tracingService := ""
	if cfg.OTELEnabled {
		tracingService = cfg.LogService
	}

	srv := api.NewServer(api.Config{
		Version:        cfg.Version,
		Mode:           mode,
		APIToken:       cfg.APIToken,
		RateRPS:        cfg.APIRateRPS,
		RateBurst:      cfg.APIRateBurst,
		AllowedOrigins: cfg.AllowedOrigins,
		EnableMetrics:  true,
		TracingService: tracingService,
	}, factory, webAPI, healthMgr, ring)

	mgr, err := daemon.NewManager(config.ServerConfigFrom(cfg), daemon.Deps{
		Logger:         logger,
		APIHandler:     srv.Router(),
		MetricsHandler: promhttp.Handler(),
		MetricsAddr:    strings.TrimSpace(cfg.MetricsAddr),
	})
	if err != nil {
		logger.Fatal().
			Err(err).
			Str(log.FieldEvent, "manager.creation.failed").
			Msg("failed to create daemon manager")
	}

	// Hooks run LIFO: the backend (and with it the helper process) stops
	// first, telemetry flushes last so shutdown spans still get exported.
	mgr.RegisterShutdownHook("telemetry", tel.Shutdown)
	mgr.RegisterShutdownHook("backend", factory.Shutdown)

	if err := mgr.Start(ctx); err != nil {
		logger.Fatal().
			Err(err).
			Str(log.FieldEvent, "manager.failed").
			Msg("daemon failed")
	}

	logger.Info().Msg("server exiting")
}
