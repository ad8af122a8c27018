// Copyright (c) 2025 Jeremy Hahn
// Copyright (c) 2025 Automate The Things, LLC
//
// This file is part of go-passkey.
//
// go-passkey is dual-licensed:
//
// 1. GNU Affero General Public License v3.0 (AGPL-3.0)
//    See LICENSE file or visit https://www.gnu.org/licenses/agpl-3.0.html
//
// 2. Commercial License
//    Contact licensing@automatethethings.com for commercial licensing options.

// passkeyd is the reference relying-party backend: it serves the ceremony
// endpoints, the user record endpoint, and the realtime change stream.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jeremyhahn/go-passkey/internal/config"
	"github.com/jeremyhahn/go-passkey/pkg/logging"
	"github.com/jeremyhahn/go-passkey/pkg/metrics"
	"github.com/jeremyhahn/go-passkey/pkg/ratelimit"
	"github.com/jeremyhahn/go-passkey/pkg/server"
)

var (
	// Version information (set during build)
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	configPath := flag.String("config", "", "Path to configuration file")
	showVersion := flag.Bool("version", false, "Show version information")
	flag.Parse()

	if *showVersion {
		fmt.Printf("passkeyd\n")
		fmt.Printf("  Version:    %s\n", version)
		fmt.Printf("  Git Commit: %s\n", commit)
		fmt.Printf("  Built:      %s\n", date)
		os.Exit(0)
	}

	if envConfig := os.Getenv("PASSKEY_CONFIG"); envConfig != "" && *configPath == "" {
		*configPath = envConfig
	}

	var cfg *config.Config
	var err error
	if *configPath != "" {
		cfg, err = config.Load(*configPath)
		if err != nil {
			slog.Error("Failed to load configuration", slog.Any("error", err))
			os.Exit(1)
		}
	} else {
		cfg = config.Default()
	}

	logger := logging.NewLogger(cfg.Logging.Debug)
	metrics.SetEnabled(cfg.Metrics.Enabled)

	srv, err := buildServer(cfg, logger)
	if err != nil {
		slog.Error("Failed to create server", slog.Any("error", err))
		os.Exit(1)
	}

	logger.Info("starting passkeyd",
		"version", version,
		"addr", cfg.ListenAddr(),
		"rp_id", cfg.RelyingParty.ID)

	// Graceful shutdown on SIGINT/SIGTERM.
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() { errCh <- srv.Start() }()

	select {
	case err := <-errCh:
		if err != nil {
			slog.Error("Server failed", slog.Any("error", err))
			os.Exit(1)
		}
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			slog.Error("Error during shutdown", slog.Any("error", err))
			os.Exit(1)
		}
	}

	logger.Info("server stopped")
}

// buildServer wires the backend from configuration.
func buildServer(cfg *config.Config, logger *logging.Logger) (*server.Server, error) {
	tokens, err := server.NewTokenIssuer(&server.TokenIssuerConfig{})
	if err != nil {
		return nil, err
	}

	hub := server.NewHub()
	svc, err := server.NewService(server.ServiceParams{
		Config: &server.Config{
			RPID:          cfg.RelyingParty.ID,
			RPDisplayName: cfg.RelyingParty.DisplayName,
			RPOrigins:     cfg.RelyingParty.Origins,
		},
		Users:  server.NewUserStore(),
		Tokens: tokens,
		Hub:    hub,
		Logger: logger,
	})
	if err != nil {
		return nil, err
	}

	limiter := ratelimit.New(&ratelimit.Config{
		Enabled:           cfg.RateLimit.Enabled,
		RequestsPerMinute: cfg.RateLimit.RequestsPerMin,
	})

	router, err := server.NewRouter(&server.HandlerParams{
		Service: svc,
		Tokens:  tokens,
		Hub:     hub,
		Limiter: limiter,
		Logger:  logger,
	})
	if err != nil {
		return nil, err
	}

	return server.NewServer(&server.ServerParams{
		Addr:   cfg.ListenAddr(),
		Router: router,
		Logger: logger,
	})
}
