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

package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/jeremyhahn/go-passkey/pkg/logging"
)

// Server wraps the HTTP server lifecycle around the backend router.
type Server struct {
	httpServer *http.Server
	logger     *logging.Logger
}

// ServerParams contains dependencies for creating a server.
type ServerParams struct {
	// Addr is the listen address, e.g. ":8090" (required).
	Addr string

	// Router is the backend router from NewRouter (required).
	Router http.Handler

	// Logger receives lifecycle logs. Optional.
	Logger *logging.Logger
}

// NewServer creates a backend server.
func NewServer(params *ServerParams) (*Server, error) {
	if params == nil || params.Addr == "" {
		return nil, errors.New("listen address is required")
	}
	if params.Router == nil {
		return nil, errors.New("router is required")
	}

	logger := params.Logger
	if logger == nil {
		logger = logging.DefaultLogger()
	}

	return &Server{
		httpServer: &http.Server{
			Addr:    params.Addr,
			Handler: params.Router,
			// No WriteTimeout: the realtime stream holds connections open.
			ReadHeaderTimeout: 10 * time.Second,
		},
		logger: logger,
	}, nil
}

// Start begins serving and blocks until the server is shut down.
func (s *Server) Start() error {
	s.logger.Info("server listening", "addr", s.httpServer.Addr)
	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown gracefully stops the server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("server shutting down")
	return s.httpServer.Shutdown(ctx)
}
