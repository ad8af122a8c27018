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

package ceremony

import "errors"

var (
	// ErrInvalidKind is returned when a ceremony is run with a kind that is
	// neither registration nor login.
	ErrInvalidKind = errors.New("ceremony: invalid ceremony kind")

	// ErrNilTransport is returned when the orchestrator is constructed
	// without a backend transport.
	ErrNilTransport = errors.New("ceremony: transport is required")

	// ErrNilProvider is returned when the orchestrator is constructed
	// without a ceremony provider.
	ErrNilProvider = errors.New("ceremony: provider is required")

	// ErrMalformedOutcome is returned when the finish-login response cannot
	// be decoded into a session outcome.
	ErrMalformedOutcome = errors.New("ceremony: malformed session outcome")
)
