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

// Package server implements the reference relying-party backend: the
// identifier-addressed ceremony endpoints, the user record endpoint, and
// the realtime change stream that the client packages consume.
package server

import (
	"context"
	"fmt"
	"io"
	"sync"

	"github.com/go-webauthn/webauthn/protocol"
	"github.com/go-webauthn/webauthn/webauthn"

	"github.com/jeremyhahn/go-passkey/pkg/logging"
	"github.com/jeremyhahn/go-passkey/pkg/types"
)

// Hub event actions published on user record mutations.
const (
	actionCreate = "create"
	actionUpdate = "update"
)

// Config holds the relying party identity.
type Config struct {
	// RPID is the relying party identifier, usually the backend's domain.
	RPID string

	// RPDisplayName is the human-readable relying party name.
	RPDisplayName string

	// RPOrigins are the origins ceremonies are bound to.
	RPOrigins []string
}

// Service implements the two-phase ceremony protocol over go-webauthn.
// Ceremony state minted by begin is held in memory keyed by the user's
// WebAuthn handle, matching the one-pending-ceremony-per-user model.
type Service struct {
	webauthn *webauthn.WebAuthn
	users    *UserStore
	tokens   *TokenIssuer
	hub      *Hub
	logger   *logging.Logger

	// mu guards the pending ceremony state and every read and write of a
	// user record's credential list.
	mu      sync.Mutex
	pending map[string]*webauthn.SessionData
}

// ServiceParams contains dependencies for creating a ceremony service.
type ServiceParams struct {
	// Config is the relying party identity (required).
	Config *Config

	// Users is the user repository (required).
	Users *UserStore

	// Tokens issues post-login tokens (required).
	Tokens *TokenIssuer

	// Hub receives change events on user record mutations. Optional.
	Hub *Hub

	// Logger receives service logs. Optional.
	Logger *logging.Logger
}

// NewService creates a ceremony service with the provided dependencies.
func NewService(params ServiceParams) (*Service, error) {
	if params.Config == nil {
		return nil, fmt.Errorf("config is required")
	}
	if params.Users == nil {
		return nil, fmt.Errorf("user store is required")
	}
	if params.Tokens == nil {
		return nil, fmt.Errorf("token issuer is required")
	}

	wa, err := webauthn.New(&webauthn.Config{
		RPID:          params.Config.RPID,
		RPDisplayName: params.Config.RPDisplayName,
		RPOrigins:     params.Config.RPOrigins,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create webauthn instance: %w", err)
	}

	logger := params.Logger
	if logger == nil {
		logger = logging.DefaultLogger()
	}

	return &Service{
		webauthn: wa,
		users:    params.Users,
		tokens:   params.Tokens,
		hub:      params.Hub,
		logger:   logger,
		pending:  make(map[string]*webauthn.SessionData),
	}, nil
}

// BeginRegistration starts a registration ceremony for the identifier,
// creating the user record when it does not exist.
func (s *Service) BeginRegistration(ctx context.Context, identifier string) (*protocol.CredentialCreation, error) {
	user, created, err := s.users.FindOrCreate(identifier)
	if err != nil {
		return nil, WrapError("find or create user", err)
	}
	if created {
		s.publish(identifier, actionCreate)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	excludeList := make([]protocol.CredentialDescriptor, 0, len(user.credentials))
	for _, cred := range user.credentials {
		excludeList = append(excludeList, protocol.CredentialDescriptor{
			Type:         protocol.PublicKeyCredentialType,
			CredentialID: cred.ID,
			Transport:    cred.Transport,
		})
	}

	options, session, err := s.webauthn.BeginRegistration(user,
		webauthn.WithExclusions(excludeList),
	)
	if err != nil {
		return nil, WrapError("begin registration", err)
	}

	s.pending[string(user.handle)] = session
	return options, nil
}

// FinishRegistration verifies the attestation and stores the new credential.
func (s *Service) FinishRegistration(ctx context.Context, identifier string, body io.Reader) error {
	user, err := s.users.Get(identifier)
	if err != nil {
		return err
	}

	session, err := s.takePending(user)
	if err != nil {
		return err
	}

	response, err := protocol.ParseCredentialCreationResponseBody(body)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidResponse, err)
	}

	s.mu.Lock()
	credential, err := s.webauthn.CreateCredential(user, *session, response)
	if err != nil {
		s.mu.Unlock()
		return fmt.Errorf("%w: %v", ErrVerificationFailed, err)
	}
	user.addCredential(credential)
	s.mu.Unlock()

	s.publish(identifier, actionUpdate)
	s.logger.Info("credential registered", "username", identifier)
	return nil
}

// BeginLogin starts a login ceremony for the identifier.
func (s *Service) BeginLogin(ctx context.Context, identifier string) (*protocol.CredentialAssertion, error) {
	user, err := s.users.Get(identifier)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if len(user.credentials) == 0 {
		return nil, ErrNoCredentials
	}

	options, session, err := s.webauthn.BeginLogin(user)
	if err != nil {
		return nil, WrapError("begin login", err)
	}

	s.pending[string(user.handle)] = session
	return options, nil
}

// FinishLogin verifies the assertion and returns the session outcome:
// a signed token plus the user's profile.
func (s *Service) FinishLogin(ctx context.Context, identifier string, body io.Reader) (*types.SessionOutcome, error) {
	user, err := s.users.Get(identifier)
	if err != nil {
		return nil, err
	}

	session, err := s.takePending(user)
	if err != nil {
		return nil, err
	}

	response, err := protocol.ParseCredentialRequestResponseBody(body)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidResponse, err)
	}

	s.mu.Lock()
	credential, err := s.webauthn.ValidateLogin(user, *session, response)
	if err != nil {
		s.mu.Unlock()
		return nil, fmt.Errorf("%w: %v", ErrVerificationFailed, err)
	}
	// Carry the advanced sign counter forward.
	user.updateCredential(credential)
	profile := user.profile()
	s.mu.Unlock()

	token, err := s.tokens.Issue(user.username)
	if err != nil {
		return nil, WrapError("issue token", err)
	}

	s.logger.Info("login verified", "username", identifier)
	return &types.SessionOutcome{
		Token: token,
		User:  *profile,
	}, nil
}

// Profile returns the user record in its wire form.
func (s *Service) Profile(ctx context.Context, identifier string) (*types.UserProfile, error) {
	user, err := s.users.Get(identifier)
	if err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return user.profile(), nil
}

// takePending consumes the pending ceremony state for a user. Ceremony
// state is single-use; a second finish for the same begin fails. A new
// begin for the same user replaces any previous pending ceremony.
func (s *Service) takePending(user *User) (*webauthn.SessionData, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	session, ok := s.pending[string(user.handle)]
	if !ok {
		return nil, ErrNoPendingCeremony
	}
	delete(s.pending, string(user.handle))
	return session, nil
}

// publish sends a change event for one record topic when a hub is configured.
func (s *Service) publish(topic, action string) {
	if s.hub != nil {
		s.hub.Publish(topic, action)
	}
}
