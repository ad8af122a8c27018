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

package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0600))
	return path
}

func TestLoad(t *testing.T) {
	path := writeConfig(t, `
server:
  url: https://passkey.example.com
  host: 0.0.0.0
  port: 9443
  tls:
    enabled: true
    ca_file: /etc/passkey/ca.pem
relying_party:
  id: passkey.example.com
  display_name: Example
  origins:
    - https://passkey.example.com
session:
  token_file: /var/lib/passkey/token
ratelimit:
  enabled: true
  requests_per_min: 120
logging:
  debug: true
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "https://passkey.example.com", cfg.Server.URL)
	assert.Equal(t, "0.0.0.0:9443", cfg.ListenAddr())
	assert.True(t, cfg.Server.TLS.Enabled)
	assert.Equal(t, "passkey.example.com", cfg.RelyingParty.ID)
	assert.Equal(t, []string{"https://passkey.example.com"}, cfg.RelyingParty.Origins)
	assert.Equal(t, "/var/lib/passkey/token", cfg.Session.TokenFile)
	assert.Equal(t, 120, cfg.RateLimit.RequestsPerMin)
	assert.True(t, cfg.Logging.Debug)
}

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load(writeConfig(t, "{}"))
	require.NoError(t, err)

	assert.Equal(t, "http://localhost:8090", cfg.Server.URL)
	assert.Equal(t, "localhost", cfg.RelyingParty.ID)
	assert.Equal(t, []string{"http://localhost"}, cfg.RelyingParty.Origins)
	assert.NotEmpty(t, cfg.Session.TokenFile)
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}

func TestLoad_InvalidYAML(t *testing.T) {
	_, err := Load(writeConfig(t, "server: [not a mapping"))
	assert.Error(t, err)
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("PASSKEY_SERVER_URL", "http://override:9000")
	t.Setenv("PASSKEY_RP_ID", "override.example.com")
	t.Setenv("PASSKEY_PORT", "9001")
	t.Setenv("PASSKEY_DEBUG", "true")

	cfg, err := Load(writeConfig(t, "{}"))
	require.NoError(t, err)

	assert.Equal(t, "http://override:9000", cfg.Server.URL)
	assert.Equal(t, "override.example.com", cfg.RelyingParty.ID)
	assert.Equal(t, 9001, cfg.Server.Port)
	assert.True(t, cfg.Logging.Debug)
}

func TestValidate(t *testing.T) {
	cfg := Default()
	assert.NoError(t, cfg.Validate())

	cfg.Server.Port = 70000
	assert.Error(t, cfg.Validate())

	cfg = Default()
	cfg.RelyingParty.ID = ""
	assert.Error(t, cfg.Validate())

	cfg = Default()
	cfg.RateLimit.Enabled = true
	cfg.RateLimit.RequestsPerMin = 0
	assert.Error(t, cfg.Validate())
}
