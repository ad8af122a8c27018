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

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/jeremyhahn/go-passkey/pkg/logging"
	"github.com/jeremyhahn/go-passkey/pkg/metrics"
	"github.com/jeremyhahn/go-passkey/pkg/types"
)

// Phase names used for failure metrics and logs.
const (
	phaseBegin  = "begin"
	phaseInvoke = "invoke"
	phaseFinish = "finish"
)

// OrchestratorParams holds the dependencies for a ceremony orchestrator.
type OrchestratorParams struct {
	// Transport performs the backend exchanges. Required.
	Transport Transport

	// Provider produces signed ceremony results. Required.
	Provider Provider

	// Sessions receives the outcome of successful logins. Optional; when
	// nil, login outcomes are returned to the caller but not persisted.
	Sessions SessionCommitter

	// Logger receives attempt lifecycle logs. Ceremony payloads are never
	// logged, only their sizes. Optional.
	Logger *logging.Logger
}

// Orchestrator sequences ceremony attempts. Attempts are serialized: a
// ceremony provider can only service one pending user gesture at a time.
type Orchestrator struct {
	transport Transport
	provider  Provider
	sessions  SessionCommitter
	logger    *logging.Logger
	mu        sync.Mutex
}

// NewOrchestrator creates a ceremony orchestrator from its dependencies.
func NewOrchestrator(params *OrchestratorParams) (*Orchestrator, error) {
	if params == nil || params.Transport == nil {
		return nil, ErrNilTransport
	}
	if params.Provider == nil {
		return nil, ErrNilProvider
	}
	logger := params.Logger
	if logger == nil {
		logger = logging.DefaultLogger()
	}
	return &Orchestrator{
		transport: params.Transport,
		provider:  params.Provider,
		sessions:  params.Sessions,
		logger:    logger,
	}, nil
}

// Register runs a registration ceremony for the identifier. A successful
// registration never establishes a session; the user logs in afterwards.
func (o *Orchestrator) Register(ctx context.Context, identifier string) (*Attempt, error) {
	return o.run(ctx, types.CeremonyRegistration, identifier)
}

// Login runs a login ceremony for the identifier. On success the session
// outcome is committed to the session manager (when one is configured) and
// returned in the attempt.
func (o *Orchestrator) Login(ctx context.Context, identifier string) (*Attempt, error) {
	return o.run(ctx, types.CeremonyLogin, identifier)
}

// run executes the begin, invoke, finish sequence for one attempt. Each
// phase must complete before the next starts; a failure at any phase
// terminates the attempt without touching later phases.
func (o *Orchestrator) run(ctx context.Context, kind types.CeremonyKind, identifier string) (*Attempt, error) {
	o.mu.Lock()
	defer o.mu.Unlock()

	attempt := &Attempt{
		Kind:       kind,
		Identifier: identifier,
		State:      StateIdle,
		Started:    time.Now(),
	}

	if !kind.Valid() {
		return o.fail(attempt, phaseBegin, fmt.Errorf("%w: %q", ErrInvalidKind, kind))
	}

	options, err := o.transport.BeginCeremony(ctx, kind, identifier)
	if err != nil {
		return o.fail(attempt, phaseBegin, err)
	}
	attempt.State = StateBegun
	o.logger.Debug("ceremony begun",
		"kind", kind.String(),
		"options_bytes", len(options))

	result, err := o.provider.Invoke(ctx, kind, options)
	if err != nil {
		return o.fail(attempt, phaseInvoke, err)
	}
	attempt.State = StateInvoked
	o.logger.Debug("ceremony provider completed",
		"kind", kind.String(),
		"result_bytes", len(result))

	response, err := o.transport.FinishCeremony(ctx, kind, identifier, result)
	if err != nil {
		return o.fail(attempt, phaseFinish, err)
	}

	if kind == types.CeremonyLogin {
		if err := o.commitOutcome(ctx, attempt, response); err != nil {
			return o.fail(attempt, phaseFinish, err)
		}
	}

	attempt.State = StateFinished
	attempt.Elapsed = time.Since(attempt.Started)
	metrics.RecordCeremony(kind.String(), metrics.StatusSuccess, attempt.Elapsed)
	o.logger.Info("ceremony finished",
		"kind", kind.String(),
		"state", attempt.State.String(),
		"elapsed", attempt.Elapsed.String())
	return attempt, nil
}

// commitOutcome decodes the finish-login response and hands it to the
// session manager. A persistence failure does not fail the login; the
// backend already accepted the assertion and the outcome is still returned.
func (o *Orchestrator) commitOutcome(ctx context.Context, attempt *Attempt, response json.RawMessage) error {
	var outcome types.SessionOutcome
	if err := json.Unmarshal(response, &outcome); err != nil {
		return fmt.Errorf("%w: %v", ErrMalformedOutcome, err)
	}
	if outcome.Token == "" {
		return fmt.Errorf("%w: response carries no token", ErrMalformedOutcome)
	}
	attempt.Outcome = &outcome

	if o.sessions != nil {
		if err := o.sessions.Commit(ctx, &outcome); err != nil {
			attempt.CommitErr = err
			o.logger.Warn("session commit failed; login succeeded but will not survive restart",
				"error", err.Error())
		}
	}
	return nil
}

// fail marks the attempt failed at the given phase and records it.
func (o *Orchestrator) fail(attempt *Attempt, phase string, err error) (*Attempt, error) {
	attempt.State = StateFailed
	attempt.Err = err
	attempt.Elapsed = time.Since(attempt.Started)
	metrics.RecordCeremony(attempt.Kind.String(), metrics.StatusError, attempt.Elapsed)
	metrics.RecordCeremonyFailure(attempt.Kind.String(), phase)
	o.logger.Warn("ceremony failed",
		"kind", attempt.Kind.String(),
		"phase", phase,
		"error", err.Error())
	return attempt, err
}
