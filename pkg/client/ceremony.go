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

package client

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/jeremyhahn/go-passkey/pkg/encoding"
	"github.com/jeremyhahn/go-passkey/pkg/types"
)

// Backend ceremony endpoint prefixes. The encoded identifier is appended as
// the final path segment so ceremony endpoints stay identifier-addressable
// without query parameters.
const (
	beginRegistrationPath  = "/webauthn-begin-registration/"
	finishRegistrationPath = "/webauthn-finish-registration/"
	beginLoginPath         = "/webauthn-begin-login/"
	finishLoginPath        = "/webauthn-finish-login/"
	usersPath              = "/users/"
)

// BeginCeremony performs the begin exchange for the given ceremony kind and
// returns the backend-issued ceremony options, raw and unmodified.
func (c *Client) BeginCeremony(ctx context.Context, kind types.CeremonyKind, identifier string) (json.RawMessage, error) {
	path, err := c.ceremonyPath(PhaseBegin, kind, identifier)
	if err != nil {
		return nil, newTransportError(PhaseBegin, kind, err)
	}

	body, err := c.postJSON(ctx, path, nil)
	if err != nil {
		return nil, newTransportError(PhaseBegin, kind, err)
	}
	if !json.Valid(body) {
		return nil, newTransportError(PhaseBegin, kind, ErrMalformedResponse)
	}
	return json.RawMessage(body), nil
}

// FinishCeremony performs the finish exchange for the given ceremony kind,
// posting the provider-produced result, and returns the raw backend response.
func (c *Client) FinishCeremony(ctx context.Context, kind types.CeremonyKind, identifier string, result json.RawMessage) (json.RawMessage, error) {
	path, err := c.ceremonyPath(PhaseFinish, kind, identifier)
	if err != nil {
		return nil, newTransportError(PhaseFinish, kind, err)
	}

	body, err := c.postJSON(ctx, path, result)
	if err != nil {
		return nil, newTransportError(PhaseFinish, kind, err)
	}
	if !json.Valid(body) {
		return nil, newTransportError(PhaseFinish, kind, ErrMalformedResponse)
	}
	return json.RawMessage(body), nil
}

// FetchProfile reads the backend user record for the given identifier.
func (c *Client) FetchProfile(ctx context.Context, identifier string) (*types.UserProfile, error) {
	encoded, err := encoding.EncodeIdentifier(identifier)
	if err != nil {
		return nil, err
	}

	body, err := c.doRequest(ctx, http.MethodGet, usersPath+encoded, nil)
	if err != nil {
		return nil, fmt.Errorf("fetch profile: %w", err)
	}

	var profile types.UserProfile
	if err := json.Unmarshal(body, &profile); err != nil {
		return nil, fmt.Errorf("fetch profile: %w: %v", ErrMalformedResponse, err)
	}
	return &profile, nil
}

// ceremonyPath builds the identifier-addressed endpoint path for a phase/kind pair.
func (c *Client) ceremonyPath(phase string, kind types.CeremonyKind, identifier string) (string, error) {
	encoded, err := encoding.EncodeIdentifier(identifier)
	if err != nil {
		return "", err
	}

	switch {
	case phase == PhaseBegin && kind == types.CeremonyRegistration:
		return beginRegistrationPath + encoded, nil
	case phase == PhaseFinish && kind == types.CeremonyRegistration:
		return finishRegistrationPath + encoded, nil
	case phase == PhaseBegin && kind == types.CeremonyLogin:
		return beginLoginPath + encoded, nil
	case phase == PhaseFinish && kind == types.CeremonyLogin:
		return finishLoginPath + encoded, nil
	default:
		return "", fmt.Errorf("unknown ceremony kind: %q", kind)
	}
}
