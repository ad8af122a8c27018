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

// Package types defines the shared vocabulary used by the ceremony client,
// the session manager, and the reference relying-party backend.
package types

import "time"

// CeremonyKind selects which begin/finish endpoint pair and which
// authenticator operation (create vs. get) a ceremony uses.
type CeremonyKind string

const (
	// CeremonyRegistration enrolls a new public-key credential.
	CeremonyRegistration CeremonyKind = "registration"

	// CeremonyLogin authenticates with an existing credential.
	CeremonyLogin CeremonyKind = "login"
)

// String returns the kind as a string.
func (k CeremonyKind) String() string {
	return string(k)
}

// Valid reports whether the kind is one of the defined ceremony kinds.
func (k CeremonyKind) Valid() bool {
	return k == CeremonyRegistration || k == CeremonyLogin
}

// CredentialDescriptor describes a registered credential as the backend
// reports it. The client never inspects the credential itself.
type CredentialDescriptor struct {
	// ID is the base64url-encoded credential ID.
	ID string `json:"id"`

	// Transports lists the transports the authenticator reported.
	Transports []string `json:"transports,omitempty"`

	// CreatedAt is when the credential was registered.
	CreatedAt time.Time `json:"created_at,omitempty"`
}

// UserProfile is the backend's user record. The backend owns it; the client
// holds a read-only cached copy inside the session state.
type UserProfile struct {
	// ID is the backend's record identifier.
	ID string `json:"id"`

	// Username is the identifier the user enrolled with.
	Username string `json:"username"`

	// Name is the human-readable display name.
	Name string `json:"name,omitempty"`

	// WebAuthnID is the base64url-encoded opaque WebAuthn user handle.
	WebAuthnID string `json:"webauthn_id"`

	// Credentials are the descriptors of the user's registered credentials.
	Credentials []CredentialDescriptor `json:"credentials,omitempty"`
}

// SessionOutcome is the backend's finish-login response: an opaque access
// token plus the authenticated user's profile.
type SessionOutcome struct {
	// Token is the opaque authentication token (a JWT in the reference
	// backend, but the client treats it as an opaque string).
	Token string `json:"token"`

	// User is the authenticated user's profile.
	User UserProfile `json:"user"`
}

// RegistrationAck is the backend's finish-registration response.
// Registration never establishes a session.
type RegistrationAck struct {
	Status string `json:"status"`
}
