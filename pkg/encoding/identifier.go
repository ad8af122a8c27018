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

// Package encoding provides the reversible, URL-safe identifier encoding used
// to address ceremony endpoints by user identifier in the request path.
package encoding

import (
	"encoding/base64"
	"errors"
)

// ErrEmptyIdentifier is returned when an identifier is empty.
var ErrEmptyIdentifier = errors.New("identifier must not be empty")

// EncodeIdentifier encodes a user identifier for inclusion in a request path.
// The encoding is injective and reversible via DecodeIdentifier.
func EncodeIdentifier(identifier string) (string, error) {
	if identifier == "" {
		return "", ErrEmptyIdentifier
	}
	return base64.RawURLEncoding.EncodeToString([]byte(identifier)), nil
}

// DecodeIdentifier reverses EncodeIdentifier.
func DecodeIdentifier(encoded string) (string, error) {
	if encoded == "" {
		return "", ErrEmptyIdentifier
	}
	raw, err := base64.RawURLEncoding.DecodeString(encoded)
	if err != nil {
		return "", err
	}
	if len(raw) == 0 {
		return "", ErrEmptyIdentifier
	}
	return string(raw), nil
}
