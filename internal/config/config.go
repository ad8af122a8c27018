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

// Package config loads the YAML configuration shared by the passkey CLI and
// the reference backend daemon.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"gopkg.in/yaml.v3"
)

// Config represents the complete configuration.
type Config struct {
	Server       ServerConfig       `yaml:"server"`
	RelyingParty RelyingPartyConfig `yaml:"relying_party"`
	Session      SessionConfig      `yaml:"session"`
	RateLimit    RateLimitConfig    `yaml:"ratelimit"`
	Logging      LoggingConfig      `yaml:"logging"`
	Metrics      MetricsConfig      `yaml:"metrics"`
}

// ServerConfig contains the backend address settings. URL is what the CLI
// connects to; Host and Port are what the daemon listens on.
type ServerConfig struct {
	URL  string `yaml:"url"`
	Host string `yaml:"host"`
	Port int    `yaml:"port"`

	TLS TLSConfig `yaml:"tls"`
}

// TLSConfig controls client-side TLS settings.
type TLSConfig struct {
	Enabled            bool   `yaml:"enabled"`
	CAFile             string `yaml:"ca_file"`
	CertFile           string `yaml:"cert_file"`
	KeyFile            string `yaml:"key_file"`
	InsecureSkipVerify bool   `yaml:"insecure_skip_verify"`
}

// RelyingPartyConfig identifies the relying party ceremonies are bound to.
type RelyingPartyConfig struct {
	ID          string   `yaml:"id"`
	DisplayName string   `yaml:"display_name"`
	Origins     []string `yaml:"origins"`
}

// SessionConfig controls where the session token is persisted.
type SessionConfig struct {
	TokenFile string `yaml:"token_file"`
}

// RateLimitConfig controls the daemon's per-client rate limiting.
type RateLimitConfig struct {
	Enabled        bool `yaml:"enabled"`
	RequestsPerMin int  `yaml:"requests_per_min"`
}

// LoggingConfig controls logging behavior.
type LoggingConfig struct {
	Debug bool `yaml:"debug"`
}

// MetricsConfig controls metric recording.
type MetricsConfig struct {
	Enabled bool `yaml:"enabled"`
}

// Load reads configuration from a YAML file and applies environment
// variable overrides.
func Load(path string) (*Config, error) {
	// #nosec G304 - Config file path is provided by admin/user
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	applyEnvOverrides(&cfg)
	cfg.SetDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}

// Default returns the configuration used when no config file is given.
func Default() *Config {
	cfg := &Config{}
	applyEnvOverrides(cfg)
	cfg.SetDefaults()
	return cfg
}

// applyEnvOverrides applies environment variable overrides to the configuration.
func applyEnvOverrides(cfg *Config) {
	if url := os.Getenv("PASSKEY_SERVER_URL"); url != "" {
		cfg.Server.URL = url
	}
	if host := os.Getenv("PASSKEY_HOST"); host != "" {
		cfg.Server.Host = host
	}
	if portStr := os.Getenv("PASSKEY_PORT"); portStr != "" {
		if port, err := strconv.Atoi(portStr); err == nil && port >= 1 && port <= 65535 {
			cfg.Server.Port = port
		}
	}
	if rpID := os.Getenv("PASSKEY_RP_ID"); rpID != "" {
		cfg.RelyingParty.ID = rpID
	}
	if tokenFile := os.Getenv("PASSKEY_TOKEN_FILE"); tokenFile != "" {
		cfg.Session.TokenFile = tokenFile
	}
	if debug := os.Getenv("PASSKEY_DEBUG"); debug == "true" || debug == "1" {
		cfg.Logging.Debug = true
	}
}

// SetDefaults fills in defaults for unset fields.
func (c *Config) SetDefaults() {
	if c.Server.Host == "" {
		c.Server.Host = "localhost"
	}
	if c.Server.Port == 0 {
		c.Server.Port = 8090
	}
	if c.Server.URL == "" {
		c.Server.URL = fmt.Sprintf("http://%s:%d", c.Server.Host, c.Server.Port)
	}
	if c.RelyingParty.ID == "" {
		c.RelyingParty.ID = "localhost"
	}
	if c.RelyingParty.DisplayName == "" {
		c.RelyingParty.DisplayName = "go-passkey"
	}
	if len(c.RelyingParty.Origins) == 0 {
		c.RelyingParty.Origins = []string{"http://" + c.RelyingParty.ID}
	}
	if c.Session.TokenFile == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			home = "."
		}
		c.Session.TokenFile = filepath.Join(home, ".passkey", "token")
	}
	if c.RateLimit.Enabled && c.RateLimit.RequestsPerMin == 0 {
		c.RateLimit.RequestsPerMin = 60
	}
}

// Validate checks the configuration for inconsistencies.
func (c *Config) Validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("server port %d out of range", c.Server.Port)
	}
	if c.RelyingParty.ID == "" {
		return fmt.Errorf("relying party ID is required")
	}
	if len(c.RelyingParty.Origins) == 0 {
		return fmt.Errorf("at least one relying party origin is required")
	}
	if c.RateLimit.Enabled && c.RateLimit.RequestsPerMin < 1 {
		return fmt.Errorf("ratelimit requests_per_min must be positive")
	}
	return nil
}

// ListenAddr returns the daemon listen address.
func (c *Config) ListenAddr() string {
	return fmt.Sprintf("%s:%d", c.Server.Host, c.Server.Port)
}
