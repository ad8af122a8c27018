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

// Package session owns the client-side session state: the authentication
// token, a cached copy of the backend user record, and change notification.
// The backend record is authoritative; the cached profile is refreshed from
// realtime change events and never mutated locally.
package session

import (
	"context"
	"sync"

	"github.com/golang-jwt/jwt/v5"

	"github.com/jeremyhahn/go-passkey/pkg/logging"
	"github.com/jeremyhahn/go-passkey/pkg/metrics"
	"github.com/jeremyhahn/go-passkey/pkg/types"
)

// Session operation names used in errors and metrics.
const (
	OpCommit    = "commit"
	OpClear     = "clear"
	OpRestore   = "restore"
	OpRefresh   = "refresh"
	OpSubscribe = "subscribe"
)

// ProfileFetcher reads the authoritative user record from the backend.
// *client.Client satisfies this interface.
type ProfileFetcher interface {
	FetchProfile(ctx context.Context, identifier string) (*types.UserProfile, error)
}

// TokenSetter propagates the session token to the backend transport so that
// authenticated requests carry it. *client.Client satisfies this interface.
type TokenSetter interface {
	SetToken(token string)
}

// Event is a realtime change notification about the session user's record.
type Event struct {
	// Action is the mutation kind the backend reported (create, update, delete).
	Action string `json:"action"`
}

// Channel delivers realtime change events. *realtime.Client satisfies this
// interface. The returned channel is closed when the subscription ends.
type Channel interface {
	Subscribe(ctx context.Context) (<-chan Event, error)
}

// ManagerParams holds the dependencies for a session manager.
type ManagerParams struct {
	// Store persists the session token. Required.
	Store TokenStore

	// Fetcher refreshes the cached user profile from the backend.
	// Optional; without it, restore and refresh keep the cached profile.
	Fetcher ProfileFetcher

	// Tokens receives the session token on commit, restore, and clear.
	// Optional.
	Tokens TokenSetter

	// Logger receives session lifecycle logs. Tokens are never logged. Optional.
	Logger *logging.Logger
}

// Manager is the session state manager. All methods are safe for concurrent use.
type Manager struct {
	store   TokenStore
	fetcher ProfileFetcher
	tokens  TokenSetter
	logger  *logging.Logger

	mu        sync.RWMutex
	token     string
	user      *types.UserProfile
	observers map[uint64]func(*types.UserProfile)
	nextObs   uint64
	subCancel context.CancelFunc
}

// NewManager creates a session manager from its dependencies.
func NewManager(params *ManagerParams) (*Manager, error) {
	if params == nil || params.Store == nil {
		return nil, ErrNilStore
	}
	logger := params.Logger
	if logger == nil {
		logger = logging.DefaultLogger()
	}
	return &Manager{
		store:     params.Store,
		fetcher:   params.Fetcher,
		tokens:    params.Tokens,
		logger:    logger,
		observers: make(map[uint64]func(*types.UserProfile)),
	}, nil
}

// Commit establishes the session from a login outcome. The in-memory state
// is always committed; a persistence failure is returned so callers can warn
// that the session will not survive a restart.
func (m *Manager) Commit(ctx context.Context, outcome *types.SessionOutcome) error {
	if outcome == nil || outcome.Token == "" {
		metrics.RecordSessionOperation(OpCommit, metrics.StatusError)
		return newSessionError(OpCommit, ErrInvalidToken)
	}

	user := outcome.User
	m.mu.Lock()
	m.token = outcome.Token
	m.user = &user
	m.mu.Unlock()

	if m.tokens != nil {
		m.tokens.SetToken(outcome.Token)
	}
	m.notify(&user)

	if err := m.store.Save(outcome.Token); err != nil {
		metrics.RecordSessionOperation(OpCommit, metrics.StatusError)
		return newSessionError(OpCommit, err)
	}

	metrics.RecordSessionOperation(OpCommit, metrics.StatusSuccess)
	m.logger.Info("session committed", "username", user.Username)
	return nil
}

// Clear ends the session: memory state, transport token, and persisted token
// are all removed. Clearing an absent session is a no-op.
func (m *Manager) Clear(ctx context.Context) error {
	m.mu.Lock()
	hadSession := m.token != ""
	m.token = ""
	m.user = nil
	m.mu.Unlock()

	if m.tokens != nil {
		m.tokens.SetToken("")
	}
	if hadSession {
		m.notify(nil)
	}

	if err := m.store.Clear(); err != nil {
		metrics.RecordSessionOperation(OpClear, metrics.StatusError)
		return newSessionError(OpClear, err)
	}

	metrics.RecordSessionOperation(OpClear, metrics.StatusSuccess)
	return nil
}

// CurrentUser returns a copy of the cached user profile, or false when no
// session is established.
func (m *Manager) CurrentUser() (types.UserProfile, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.user == nil {
		return types.UserProfile{}, false
	}
	return *m.user, true
}

// Token returns the session token, or "" when no session is established.
func (m *Manager) Token() string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.token
}

// Authenticated reports whether a session is established.
func (m *Manager) Authenticated() bool {
	return m.Token() != ""
}

// Restore re-establishes the session from the persisted token at startup.
// The token's subject claim identifies the user; the profile is re-fetched
// from the backend. A fetch failure keeps a minimal profile so the session
// remains usable offline. Returns ErrNoSession when no token is persisted.
func (m *Manager) Restore(ctx context.Context) error {
	token, err := m.store.Load()
	if err != nil {
		metrics.RecordSessionOperation(OpRestore, metrics.StatusError)
		return newSessionError(OpRestore, err)
	}
	if token == "" {
		return newSessionError(OpRestore, ErrNoSession)
	}

	identifier, err := tokenSubject(token)
	if err != nil {
		metrics.RecordSessionOperation(OpRestore, metrics.StatusError)
		return newSessionError(OpRestore, err)
	}

	m.mu.Lock()
	m.token = token
	m.user = &types.UserProfile{Username: identifier}
	m.mu.Unlock()

	if m.tokens != nil {
		m.tokens.SetToken(token)
	}

	if m.fetcher != nil {
		if profile, err := m.fetcher.FetchProfile(ctx, identifier); err != nil {
			m.logger.Warn("session restored without profile refresh",
				"username", identifier,
				"error", err.Error())
		} else {
			m.setUser(profile)
		}
	}

	metrics.RecordSessionOperation(OpRestore, metrics.StatusSuccess)
	m.logger.Info("session restored", "username", identifier)
	return nil
}

// SubscribeToChanges starts refreshing the cached profile from realtime
// change events. Subscribing while already subscribed is a no-op. The
// subscription ends when ctx is canceled or Unsubscribe is called.
func (m *Manager) SubscribeToChanges(ctx context.Context, channel Channel) error {
	m.mu.Lock()
	if m.subCancel != nil {
		m.mu.Unlock()
		return nil
	}
	subCtx, cancel := context.WithCancel(ctx)
	m.subCancel = cancel
	m.mu.Unlock()

	events, err := channel.Subscribe(subCtx)
	if err != nil {
		m.dropSubscription()
		metrics.RecordSessionOperation(OpSubscribe, metrics.StatusError)
		return newSessionError(OpSubscribe, err)
	}

	go func() {
		defer m.dropSubscription()
		for event := range events {
			m.handleEvent(subCtx, event)
		}
	}()

	metrics.RecordSessionOperation(OpSubscribe, metrics.StatusSuccess)
	return nil
}

// Unsubscribe stops the realtime subscription. Safe to call when not subscribed.
func (m *Manager) Unsubscribe() {
	m.dropSubscription()
}

// OnChange registers an observer invoked with the new profile on every
// session change (nil when the session is cleared). The returned function
// removes the observer.
func (m *Manager) OnChange(fn func(*types.UserProfile)) func() {
	m.mu.Lock()
	id := m.nextObs
	m.nextObs++
	m.observers[id] = fn
	m.mu.Unlock()

	return func() {
		m.mu.Lock()
		delete(m.observers, id)
		m.mu.Unlock()
	}
}

// handleEvent refreshes the cached profile in response to a change event.
// Events arriving with no established session are ignored.
func (m *Manager) handleEvent(ctx context.Context, event Event) {
	m.mu.RLock()
	user := m.user
	m.mu.RUnlock()
	if user == nil {
		return
	}

	m.logger.Debug("session change event", "action", event.Action)
	m.refresh(ctx, user.Username)
}

// refresh re-fetches the user record. A fetch failure keeps the stale
// cached profile; the next event retries.
func (m *Manager) refresh(ctx context.Context, identifier string) {
	if m.fetcher == nil {
		return
	}
	profile, err := m.fetcher.FetchProfile(ctx, identifier)
	if err != nil {
		metrics.RecordSessionOperation(OpRefresh, metrics.StatusError)
		m.logger.Warn("profile refresh failed, keeping cached profile",
			"username", identifier,
			"error", err.Error())
		return
	}
	m.setUser(profile)
	metrics.RecordSessionOperation(OpRefresh, metrics.StatusSuccess)
}

// setUser replaces the cached profile and notifies observers.
func (m *Manager) setUser(profile *types.UserProfile) {
	m.mu.Lock()
	m.user = profile
	m.mu.Unlock()
	m.notify(profile)
}

// notify invokes observers outside the state lock.
func (m *Manager) notify(profile *types.UserProfile) {
	m.mu.RLock()
	fns := make([]func(*types.UserProfile), 0, len(m.observers))
	for _, fn := range m.observers {
		fns = append(fns, fn)
	}
	m.mu.RUnlock()

	for _, fn := range fns {
		fn(profile)
	}
}

// dropSubscription cancels and forgets the active subscription, if any.
func (m *Manager) dropSubscription() {
	m.mu.Lock()
	cancel := m.subCancel
	m.subCancel = nil
	m.mu.Unlock()
	if cancel != nil {
		cancel()
	}
}

// tokenSubject extracts the subject claim from the session token without
// verifying the signature. Verification is the backend's job; the client
// only needs the identifier to re-fetch the profile.
func tokenSubject(token string) (string, error) {
	parsed, _, err := jwt.NewParser().ParseUnverified(token, jwt.MapClaims{})
	if err != nil {
		return "", err
	}
	subject, err := parsed.Claims.GetSubject()
	if err != nil || subject == "" {
		return "", ErrInvalidToken
	}
	return subject, nil
}
