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

// Package cli implements the passkey command-line client.
package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/jeremyhahn/go-passkey/internal/config"
	"github.com/jeremyhahn/go-passkey/pkg/logging"
	"github.com/jeremyhahn/go-passkey/pkg/metrics"
)

var (
	// Global flags
	flagConfigFile string
	flagServerURL  string
	flagTokenFile  string
	flagDebug      bool
)

// rootCmd represents the base command
var rootCmd = &cobra.Command{
	Use:   "passkey",
	Short: "passkey CLI - WebAuthn ceremony client",
	Long: `passkey provides a command-line client for passkey registration and
login against a relying-party backend. Ceremonies are completed with a
software authenticator; sessions persist across invocations via a token
file and are refreshed from the backend's realtime change stream.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute runs the root command
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVar(&flagConfigFile, "config", "",
		"config file (default is built-in defaults plus PASSKEY_* env)")
	rootCmd.PersistentFlags().StringVar(&flagServerURL, "server", "",
		"backend server URL (overrides config)")
	rootCmd.PersistentFlags().StringVar(&flagTokenFile, "token-file", "",
		"session token file (overrides config)")
	rootCmd.PersistentFlags().BoolVarP(&flagDebug, "debug", "d", false,
		"enable debug logging")

	rootCmd.AddCommand(registerCmd)
	rootCmd.AddCommand(loginCmd)
	rootCmd.AddCommand(whoamiCmd)
	rootCmd.AddCommand(logoutCmd)
	rootCmd.AddCommand(watchCmd)
	rootCmd.AddCommand(versionCmd)
}

// loadConfig resolves the effective configuration from file, environment,
// and flags, in increasing precedence.
func loadConfig() (*config.Config, error) {
	var cfg *config.Config
	var err error

	if flagConfigFile != "" {
		cfg, err = config.Load(flagConfigFile)
		if err != nil {
			return nil, err
		}
	} else {
		cfg = config.Default()
	}

	if flagServerURL != "" {
		cfg.Server.URL = flagServerURL
	}
	if flagTokenFile != "" {
		cfg.Session.TokenFile = flagTokenFile
	}
	if flagDebug {
		cfg.Logging.Debug = true
	}

	metrics.SetEnabled(cfg.Metrics.Enabled)
	return cfg, nil
}

// newLogger creates the CLI logger from the effective configuration.
func newLogger(cfg *config.Config) *logging.Logger {
	return logging.NewLogger(cfg.Logging.Debug)
}

// handleError prints a user-facing error and exits with code 1
func handleError(err error) {
	fmt.Fprintln(os.Stderr, "Error:", userMessage(err))
	os.Exit(1)
}
