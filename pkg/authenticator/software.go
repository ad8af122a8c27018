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

// Package authenticator adapts backend-issued ceremony options to a ceremony
// provider and translates the provider's signed result into the canonical
// transport form. The software provider wraps a virtual authenticator so
// headless clients and tests can complete ceremonies without platform
// hardware; a browser-backed provider satisfies the same contract.
package authenticator

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/descope/virtualwebauthn"

	"github.com/jeremyhahn/go-passkey/pkg/types"
)

// RelyingParty identifies the relying party the provider signs for.
type RelyingParty struct {
	// ID is the relying party identifier (usually the backend's domain).
	ID string

	// Name is the relying party display name.
	Name string

	// Origin is the origin ceremonies are bound to.
	Origin string
}

// Software is a ceremony provider backed by an in-process virtual
// authenticator. It holds the credentials it creates and signs assertions
// with them on login ceremonies.
type Software struct {
	mu    sync.Mutex
	rp    virtualwebauthn.RelyingParty
	auth  virtualwebauthn.Authenticator
	creds []virtualwebauthn.Credential
}

// NewSoftware creates a software ceremony provider for the given relying party.
func NewSoftware(rp RelyingParty) *Software {
	return &Software{
		rp: virtualwebauthn.RelyingParty{
			ID:     rp.ID,
			Name:   rp.Name,
			Origin: rp.Origin,
		},
		auth: virtualwebauthn.NewAuthenticator(),
	}
}

// Invoke runs the provider operation for the ceremony kind: credential
// creation for registration, assertion generation for login. The options are
// passed through canonicalization only; the provider never mutates them.
func (s *Software) Invoke(ctx context.Context, kind types.CeremonyKind, options json.RawMessage) (json.RawMessage, error) {
	if err := ctxAbort(ctx, kind); err != nil {
		return nil, err
	}

	switch kind {
	case types.CeremonyRegistration:
		return s.create(options)
	case types.CeremonyLogin:
		return s.get(options)
	default:
		return nil, newProviderError(kind, ReasonUnsupported, fmt.Errorf("unknown ceremony kind %q", kind))
	}
}

// CredentialCount returns the number of credentials the provider holds.
func (s *Software) CredentialCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.creds)
}

// create canonicalizes creation options and produces an attestation.
func (s *Software) create(options json.RawMessage) (json.RawMessage, error) {
	parsed, err := virtualwebauthn.ParseAttestationOptions(string(unwrapPublicKey(options)))
	if err != nil {
		return nil, newProviderError(types.CeremonyRegistration, ReasonUnsupported, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	credential := virtualwebauthn.NewCredential(virtualwebauthn.KeyTypeEC2)
	attestation := virtualwebauthn.CreateAttestationResponse(s.rp, s.auth, credential, *parsed)

	s.auth.AddCredential(credential)
	s.creds = append(s.creds, credential)

	return json.RawMessage(attestation), nil
}

// get canonicalizes request options and produces a signed assertion.
func (s *Software) get(options json.RawMessage) (json.RawMessage, error) {
	parsed, err := virtualwebauthn.ParseAssertionOptions(string(unwrapPublicKey(options)))
	if err != nil {
		return nil, newProviderError(types.CeremonyLogin, ReasonUnsupported, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	cred := s.matchCredential(*parsed)
	if cred == nil {
		return nil, newProviderError(types.CeremonyLogin, ReasonNoCredential, nil)
	}

	// Real authenticators increment the signature counter on every assertion.
	cred.Counter++

	assertion := virtualwebauthn.CreateAssertionResponse(s.rp, s.auth, *cred, *parsed)
	return json.RawMessage(assertion), nil
}

// matchCredential selects the credential named by the options' allow list.
// A discoverable-credential request carries no allow list; the most recently
// created credential answers it. Callers hold s.mu.
func (s *Software) matchCredential(options virtualwebauthn.AssertionOptions) *virtualwebauthn.Credential {
	if len(options.AllowCredentials) == 0 {
		if len(s.creds) == 0 {
			return nil
		}
		return &s.creds[len(s.creds)-1]
	}
	for i := range s.creds {
		if s.creds[i].IsAllowedForAssertion(options) {
			return &s.creds[i]
		}
	}
	return nil
}

// unwrapPublicKey canonicalizes ceremony options: backends wrap the
// WebAuthn options in a {"publicKey": ...} envelope, while the virtual
// authenticator consumes the inner object directly.
func unwrapPublicKey(options json.RawMessage) json.RawMessage {
	var envelope struct {
		PublicKey json.RawMessage `json:"publicKey"`
	}
	if err := json.Unmarshal(options, &envelope); err == nil && len(envelope.PublicKey) > 0 {
		return envelope.PublicKey
	}
	return options
}

// ctxAbort maps context termination onto the provider abort taxonomy.
// A pending gesture canceled by the user arrives here as context
// cancellation; an expired ceremony deadline arrives as a deadline error.
func ctxAbort(ctx context.Context, kind types.CeremonyKind) error {
	switch ctx.Err() {
	case nil:
		return nil
	case context.DeadlineExceeded:
		return newProviderError(kind, ReasonTimeout, ctx.Err())
	default:
		return newProviderError(kind, ReasonCanceled, ctx.Err())
	}
}
