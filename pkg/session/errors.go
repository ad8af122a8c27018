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

package session

import (
	"errors"
	"fmt"
)

var (
	// ErrNoSession is returned when an operation requires an established
	// session and none exists.
	ErrNoSession = errors.New("session: no active session")

	// ErrInvalidToken is returned when a persisted token cannot be decoded.
	ErrInvalidToken = errors.New("session: invalid token")

	// ErrNilStore is returned when a manager is constructed without a
	// token store.
	ErrNilStore = errors.New("session: token store is required")
)

// SessionError wraps a failed session state operation with the operation
// name so callers can report which mutation failed.
type SessionError struct {
	// Op is the operation that failed: commit, clear, restore, or refresh.
	Op string

	// Err is the underlying error.
	Err error
}

// Error returns the error message.
func (e *SessionError) Error() string {
	return fmt.Sprintf("session %s failed: %v", e.Op, e.Err)
}

// Unwrap returns the underlying error.
func (e *SessionError) Unwrap() error {
	return e.Err
}

// newSessionError creates a SessionError for the given operation.
func newSessionError(op string, err error) error {
	return &SessionError{Op: op, Err: err}
}

// IsSessionError reports whether err originated in the session manager.
func IsSessionError(err error) bool {
	var se *SessionError
	return errors.As(err, &se)
}
