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
	"errors"
	"fmt"
)

var (
	// ErrUserNotFound is returned when no user record exists for an identifier.
	ErrUserNotFound = errors.New("user not found")

	// ErrNoPendingCeremony is returned when a finish request arrives without
	// a matching begin.
	ErrNoPendingCeremony = errors.New("no pending ceremony")

	// ErrNoCredentials is returned when a login ceremony is begun for a user
	// with no registered credentials.
	ErrNoCredentials = errors.New("user has no registered credentials")

	// ErrVerificationFailed is returned when an attestation or assertion
	// fails cryptographic verification.
	ErrVerificationFailed = errors.New("verification failed")

	// ErrInvalidResponse is returned when the authenticator response cannot
	// be parsed.
	ErrInvalidResponse = errors.New("invalid authenticator response")
)

// WrapError adds operation context to an error.
func WrapError(op string, err error) error {
	return fmt.Errorf("%s: %w", op, err)
}
