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

package authenticator

import (
	"errors"
	"fmt"

	"github.com/jeremyhahn/go-passkey/pkg/types"
)

// Reason classifies why a ceremony was aborted on the provider side.
// Each reason maps to a distinct user-facing message, so the presentation
// layer never has to show a generic failure.
type Reason string

const (
	// ReasonCanceled means the user (or caller) canceled the pending gesture.
	ReasonCanceled Reason = "canceled"

	// ReasonTimeout means the provider gave up waiting for the user.
	ReasonTimeout Reason = "timeout"

	// ReasonNoCredential means no eligible credential or authenticator exists.
	ReasonNoCredential Reason = "no eligible credential"

	// ReasonUnsupported means the platform capability is absent or the
	// ceremony options could not be canonicalized.
	ReasonUnsupported Reason = "unsupported"
)

// ProviderError is the "ceremony aborted" condition surfaced by a ceremony
// provider, carrying the ceremony kind and a distinct abort reason.
type ProviderError struct {
	// Kind is the ceremony kind that was aborted.
	Kind types.CeremonyKind

	// Reason classifies the abort.
	Reason Reason

	// Err is the underlying error, if any.
	Err error
}

// Error returns the error message.
func (e *ProviderError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("ceremony aborted: %s: %s: %v", e.Kind, e.Reason, e.Err)
	}
	return fmt.Sprintf("ceremony aborted: %s: %s", e.Kind, e.Reason)
}

// Unwrap returns the underlying error.
func (e *ProviderError) Unwrap() error {
	return e.Err
}

// newProviderError creates a ProviderError for the given kind and reason.
func newProviderError(kind types.CeremonyKind, reason Reason, err error) error {
	return &ProviderError{Kind: kind, Reason: reason, Err: err}
}

// ReasonOf extracts the abort reason from err, or "" when err did not
// originate in a ceremony provider.
func ReasonOf(err error) Reason {
	var pe *ProviderError
	if errors.As(err, &pe) {
		return pe.Reason
	}
	return ""
}

// IsCanceled reports whether err is a user cancellation.
func IsCanceled(err error) bool {
	return ReasonOf(err) == ReasonCanceled
}

// IsTimeout reports whether err is a provider timeout.
func IsTimeout(err error) bool {
	return ReasonOf(err) == ReasonTimeout
}

// IsUnsupported reports whether err indicates a missing platform capability.
func IsUnsupported(err error) bool {
	return ReasonOf(err) == ReasonUnsupported
}
