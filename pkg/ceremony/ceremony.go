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

// Package ceremony orchestrates two-phase WebAuthn ceremonies: begin against
// the backend, invoke the ceremony provider, finish against the backend. The
// orchestrator owns the attempt lifecycle and sequencing; the transport,
// provider, and session manager are injected.
package ceremony

import (
	"context"
	"encoding/json"
	"time"

	"github.com/jeremyhahn/go-passkey/pkg/types"
)

// State is the lifecycle state of a single ceremony attempt. An attempt only
// ever moves forward: Idle, Begun, Invoked, then Finished or Failed.
type State int

const (
	// StateIdle means the attempt has not contacted the backend yet.
	StateIdle State = iota

	// StateBegun means the backend issued ceremony options.
	StateBegun

	// StateInvoked means the provider produced a signed result.
	StateInvoked

	// StateFinished means the backend accepted the result.
	StateFinished

	// StateFailed means the attempt stopped at some phase with an error.
	StateFailed
)

// String returns the state name.
func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateBegun:
		return "begun"
	case StateInvoked:
		return "invoked"
	case StateFinished:
		return "finished"
	case StateFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Attempt records the outcome of one ceremony run. It is returned for both
// successful and failed runs so callers can inspect where a failure occurred.
type Attempt struct {
	// Kind is the ceremony kind that was attempted.
	Kind types.CeremonyKind

	// Identifier is the user identifier the ceremony was run for.
	Identifier string

	// State is the terminal state the attempt reached.
	State State

	// Started is when the attempt began.
	Started time.Time

	// Elapsed is the wall-clock duration of the attempt.
	Elapsed time.Duration

	// Outcome holds the session outcome for a finished login attempt.
	// It is nil for registration attempts and for failed attempts.
	Outcome *types.SessionOutcome

	// Err is the error that terminated a failed attempt.
	Err error

	// CommitErr is set when a login finished but its outcome could not be
	// persisted. The attempt still counts as finished; the session simply
	// will not survive a restart.
	CommitErr error
}

// Succeeded reports whether the attempt reached StateFinished.
func (a *Attempt) Succeeded() bool {
	return a.State == StateFinished
}

// Transport performs the begin and finish exchanges against the backend.
// *client.Client satisfies this interface.
type Transport interface {
	BeginCeremony(ctx context.Context, kind types.CeremonyKind, identifier string) (json.RawMessage, error)
	FinishCeremony(ctx context.Context, kind types.CeremonyKind, identifier string, result json.RawMessage) (json.RawMessage, error)
}

// Provider turns backend-issued ceremony options into a signed result.
// *authenticator.Software satisfies this interface.
type Provider interface {
	Invoke(ctx context.Context, kind types.CeremonyKind, options json.RawMessage) (json.RawMessage, error)
}

// SessionCommitter persists the outcome of a successful login ceremony.
// *session.Manager satisfies this interface.
type SessionCommitter interface {
	Commit(ctx context.Context, outcome *types.SessionOutcome) error
}
