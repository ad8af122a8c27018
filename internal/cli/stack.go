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

package cli

import (
	"github.com/jeremyhahn/go-passkey/internal/config"
	"github.com/jeremyhahn/go-passkey/pkg/authenticator"
	"github.com/jeremyhahn/go-passkey/pkg/ceremony"
	"github.com/jeremyhahn/go-passkey/pkg/client"
	"github.com/jeremyhahn/go-passkey/pkg/logging"
	"github.com/jeremyhahn/go-passkey/pkg/realtime"
	"github.com/jeremyhahn/go-passkey/pkg/session"
)

// stack is the wired client-side dependency graph the commands run against.
type stack struct {
	cfg      *config.Config
	logger   *logging.Logger
	client   *client.Client
	provider *authenticator.Software
	sessions *session.Manager
	orch     *ceremony.Orchestrator
}

// buildStack wires the transport, authenticator, session manager, and
// ceremony orchestrator from the effective configuration.
func buildStack() (*stack, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}
	logger := newLogger(cfg)

	c, err := client.New(&client.Config{
		Address:               cfg.Server.URL,
		TLSEnabled:            cfg.Server.TLS.Enabled,
		TLSCAFile:             cfg.Server.TLS.CAFile,
		TLSCertFile:           cfg.Server.TLS.CertFile,
		TLSKeyFile:            cfg.Server.TLS.KeyFile,
		TLSInsecureSkipVerify: cfg.Server.TLS.InsecureSkipVerify,
	})
	if err != nil {
		return nil, err
	}

	origin := cfg.RelyingParty.Origins[0]
	provider := authenticator.NewSoftware(authenticator.RelyingParty{
		ID:     cfg.RelyingParty.ID,
		Name:   cfg.RelyingParty.DisplayName,
		Origin: origin,
	})

	sessions, err := session.NewManager(&session.ManagerParams{
		Store:   session.NewFileTokenStore(cfg.Session.TokenFile),
		Fetcher: c,
		Tokens:  c,
		Logger:  logger,
	})
	if err != nil {
		return nil, err
	}

	orch, err := ceremony.NewOrchestrator(&ceremony.OrchestratorParams{
		Transport: c,
		Provider:  provider,
		Sessions:  sessions,
		Logger:    logger,
	})
	if err != nil {
		return nil, err
	}

	return &stack{
		cfg:      cfg,
		logger:   logger,
		client:   c,
		provider: provider,
		sessions: sessions,
		orch:     orch,
	}, nil
}

// realtimeChannel creates the SSE channel for the session manager.
func (s *stack) realtimeChannel() (*realtime.Client, error) {
	rt, err := realtime.NewClient(&realtime.ClientParams{
		BaseURL: s.client.BaseURL(),
		Logger:  s.logger,
	})
	if err != nil {
		return nil, err
	}
	rt.SetToken(s.sessions.Token())
	if user, ok := s.sessions.CurrentUser(); ok {
		rt.SetTopic(user.Username)
	}
	return rt, nil
}
