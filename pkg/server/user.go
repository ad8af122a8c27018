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
	"crypto/rand"
	"encoding/base64"
	"sync"
	"time"

	"github.com/go-webauthn/webauthn/webauthn"
	"github.com/google/uuid"

	"github.com/jeremyhahn/go-passkey/pkg/types"
)

// handleSize is the length of the opaque WebAuthn user handle in bytes.
// The handle is random and carries no identity; the username never appears
// in authenticator data.
const handleSize = 64

// User is a backend user record with its registered credentials.
// It implements webauthn.User.
type User struct {
	recordID    string
	username    string
	displayName string
	handle      []byte
	createdAt   time.Time
	credentials []webauthn.Credential
	credTimes   map[string]time.Time
}

// newUser creates a user record with a fresh random WebAuthn handle.
func newUser(username string) (*User, error) {
	handle := make([]byte, handleSize)
	if _, err := rand.Read(handle); err != nil {
		return nil, err
	}
	return &User{
		recordID:    uuid.New().String(),
		username:    username,
		displayName: username,
		handle:      handle,
		createdAt:   time.Now().UTC(),
		credTimes:   make(map[string]time.Time),
	}, nil
}

// WebAuthnID returns the opaque user handle.
func (u *User) WebAuthnID() []byte { return u.handle }

// WebAuthnName returns the username.
func (u *User) WebAuthnName() string { return u.username }

// WebAuthnDisplayName returns the display name.
func (u *User) WebAuthnDisplayName() string { return u.displayName }

// WebAuthnIcon returns the user icon URL. Unused.
func (u *User) WebAuthnIcon() string { return "" }

// WebAuthnCredentials returns the user's registered credentials.
func (u *User) WebAuthnCredentials() []webauthn.Credential { return u.credentials }

// addCredential appends a verified credential to the record.
func (u *User) addCredential(cred *webauthn.Credential) {
	u.credentials = append(u.credentials, *cred)
	u.credTimes[string(cred.ID)] = time.Now().UTC()
}

// updateCredential replaces the stored copy of a credential after login,
// carrying the new sign counter forward.
func (u *User) updateCredential(cred *webauthn.Credential) {
	for i := range u.credentials {
		if string(u.credentials[i].ID) == string(cred.ID) {
			u.credentials[i] = *cred
			return
		}
	}
}

// profile renders the record in its wire form.
func (u *User) profile() *types.UserProfile {
	descriptors := make([]types.CredentialDescriptor, 0, len(u.credentials))
	for _, cred := range u.credentials {
		transports := make([]string, 0, len(cred.Transport))
		for _, transport := range cred.Transport {
			transports = append(transports, string(transport))
		}
		descriptors = append(descriptors, types.CredentialDescriptor{
			ID:         base64.RawURLEncoding.EncodeToString(cred.ID),
			Transports: transports,
			CreatedAt:  u.credTimes[string(cred.ID)],
		})
	}
	return &types.UserProfile{
		ID:          u.recordID,
		Username:    u.username,
		Name:        u.displayName,
		WebAuthnID:  base64.RawURLEncoding.EncodeToString(u.handle),
		Credentials: descriptors,
	}
}

// UserStore is an in-memory user repository keyed by username.
type UserStore struct {
	mu    sync.RWMutex
	users map[string]*User
}

// NewUserStore creates an empty user store.
func NewUserStore() *UserStore {
	return &UserStore{users: make(map[string]*User)}
}

// Get returns the user record for a username.
func (s *UserStore) Get(username string) (*User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	user, ok := s.users[username]
	if !ok {
		return nil, ErrUserNotFound
	}
	return user, nil
}

// FindOrCreate returns the user record for a username, creating one when it
// does not exist. Registration auto-provisions the record; there is no
// separate signup step.
func (s *UserStore) FindOrCreate(username string) (*User, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if user, ok := s.users[username]; ok {
		return user, false, nil
	}

	user, err := newUser(username)
	if err != nil {
		return nil, false, err
	}
	s.users[username] = user
	return user, true, nil
}

// Len returns the number of user records.
func (s *UserStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.users)
}
