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
	"errors"
	"fmt"

	"github.com/jeremyhahn/go-passkey/pkg/types"
)

// Ceremony phases a transport exchange can fail in.
const (
	PhaseBegin  = "begin"
	PhaseFinish = "finish"
)

var (
	// ErrConnectionFailed is returned when the backend cannot be reached.
	ErrConnectionFailed = errors.New("connection failed")

	// ErrMalformedResponse is returned when the backend response body
	// cannot be interpreted.
	ErrMalformedResponse = errors.New("malformed backend response")
)

// TransportError is the single failure condition surfaced by the ceremony
// transport: network failure, non-success backend status, or a malformed
// response body, with the phase and ceremony kind attached.
type TransportError struct {
	// Phase is the ceremony phase that failed (begin or finish).
	Phase string

	// Kind is the ceremony kind the exchange belonged to.
	Kind types.CeremonyKind

	// Cause is the underlying error.
	Cause error
}

// Error returns the error message.
func (e *TransportError) Error() string {
	return fmt.Sprintf("ceremony transport failed: %s %s: %v", e.Kind, e.Phase, e.Cause)
}

// Unwrap returns the underlying error.
func (e *TransportError) Unwrap() error {
	return e.Cause
}

// newTransportError wraps err with phase and kind context.
func newTransportError(phase string, kind types.CeremonyKind, err error) error {
	return &TransportError{Phase: phase, Kind: kind, Cause: err}
}

// IsTransportError reports whether err originated in the ceremony transport.
func IsTransportError(err error) bool {
	var te *TransportError
	return errors.As(err, &te)
}
