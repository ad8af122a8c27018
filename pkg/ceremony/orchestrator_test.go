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
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jeremyhahn/go-passkey/pkg/types"
)

// fakeTransport scripts the begin/finish exchanges and records calls.
type fakeTransport struct {
	beginCalls  int
	finishCalls int

	beginResponse  json.RawMessage
	beginErr       error
	finishResponse json.RawMessage
	finishErr      error

	lastFinishResult json.RawMessage
}

func (f *fakeTransport) BeginCeremony(ctx context.Context, kind types.CeremonyKind, identifier string) (json.RawMessage, error) {
	f.beginCalls++
	return f.beginResponse, f.beginErr
}

func (f *fakeTransport) FinishCeremony(ctx context.Context, kind types.CeremonyKind, identifier string, result json.RawMessage) (json.RawMessage, error) {
	f.finishCalls++
	f.lastFinishResult = result
	return f.finishResponse, f.finishErr
}

// fakeProvider echoes a scripted result and records the options it was given.
type fakeProvider struct {
	calls       int
	lastOptions json.RawMessage
	result      json.RawMessage
	err         error
}

func (f *fakeProvider) Invoke(ctx context.Context, kind types.CeremonyKind, options json.RawMessage) (json.RawMessage, error) {
	f.calls++
	f.lastOptions = options
	return f.result, f.err
}

// fakeSessions records committed outcomes.
type fakeSessions struct {
	commits   []*types.SessionOutcome
	commitErr error
}

func (f *fakeSessions) Commit(ctx context.Context, outcome *types.SessionOutcome) error {
	f.commits = append(f.commits, outcome)
	return f.commitErr
}

func newOrchestrator(t *testing.T, transport Transport, provider Provider, sessions SessionCommitter) *Orchestrator {
	t.Helper()
	o, err := NewOrchestrator(&OrchestratorParams{
		Transport: transport,
		Provider:  provider,
		Sessions:  sessions,
	})
	require.NoError(t, err)
	return o
}

func TestLogin_CommitsExactlyOnce(t *testing.T) {
	transport := &fakeTransport{
		beginResponse:  json.RawMessage(`{"publicKey":{"challenge":"c1"}}`),
		finishResponse: json.RawMessage(`{"token":"t1","user":{"id":"rec1","username":"alice","webauthn_id":"aGFuZGxl"}}`),
	}
	provider := &fakeProvider{result: json.RawMessage(`{"id":"cred1"}`)}
	sessions := &fakeSessions{}

	o := newOrchestrator(t, transport, provider, sessions)

	attempt, err := o.Login(context.Background(), "alice")
	require.NoError(t, err)

	assert.Equal(t, StateFinished, attempt.State)
	assert.True(t, attempt.Succeeded())
	require.NotNil(t, attempt.Outcome)
	assert.Equal(t, "t1", attempt.Outcome.Token)
	assert.Equal(t, "alice", attempt.Outcome.User.Username)

	// The provider received the options verbatim and the backend received
	// the provider's result verbatim.
	assert.JSONEq(t, string(transport.beginResponse), string(provider.lastOptions))
	assert.JSONEq(t, string(provider.result), string(transport.lastFinishResult))

	require.Len(t, sessions.commits, 1)
	assert.Equal(t, "t1", sessions.commits[0].Token)
}

func TestRegister_NeverCommits(t *testing.T) {
	transport := &fakeTransport{
		beginResponse:  json.RawMessage(`{"publicKey":{"challenge":"c2"}}`),
		finishResponse: json.RawMessage(`{"status":"ok"}`),
	}
	provider := &fakeProvider{result: json.RawMessage(`{"id":"cred1"}`)}
	sessions := &fakeSessions{}

	o := newOrchestrator(t, transport, provider, sessions)

	attempt, err := o.Register(context.Background(), "alice")
	require.NoError(t, err)

	assert.Equal(t, StateFinished, attempt.State)
	assert.Nil(t, attempt.Outcome)
	assert.Empty(t, sessions.commits)
}

func TestBeginFailure_SkipsProviderAndFinish(t *testing.T) {
	beginErr := errors.New("backend unreachable")
	transport := &fakeTransport{beginErr: beginErr}
	provider := &fakeProvider{}
	sessions := &fakeSessions{}

	o := newOrchestrator(t, transport, provider, sessions)

	attempt, err := o.Login(context.Background(), "alice")
	require.ErrorIs(t, err, beginErr)

	assert.Equal(t, StateFailed, attempt.State)
	assert.Equal(t, 0, provider.calls)
	assert.Equal(t, 0, transport.finishCalls)
	assert.Empty(t, sessions.commits)
}

func TestProviderAbort_SkipsFinish(t *testing.T) {
	abortErr := errors.New("user canceled")
	transport := &fakeTransport{
		beginResponse: json.RawMessage(`{"publicKey":{"challenge":"c3"}}`),
	}
	provider := &fakeProvider{err: abortErr}
	sessions := &fakeSessions{}

	o := newOrchestrator(t, transport, provider, sessions)

	attempt, err := o.Login(context.Background(), "alice")
	require.ErrorIs(t, err, abortErr)

	assert.Equal(t, StateFailed, attempt.State)
	assert.Equal(t, 1, transport.beginCalls)
	assert.Equal(t, 0, transport.finishCalls)
	assert.Empty(t, sessions.commits)
}

func TestFinishFailure_NoCommit(t *testing.T) {
	finishErr := errors.New("assertion rejected")
	transport := &fakeTransport{
		beginResponse: json.RawMessage(`{"publicKey":{"challenge":"c4"}}`),
		finishErr:     finishErr,
	}
	provider := &fakeProvider{result: json.RawMessage(`{"id":"cred1"}`)}
	sessions := &fakeSessions{}

	o := newOrchestrator(t, transport, provider, sessions)

	attempt, err := o.Login(context.Background(), "alice")
	require.ErrorIs(t, err, finishErr)

	assert.Equal(t, StateFailed, attempt.State)
	assert.Empty(t, sessions.commits)
}

func TestLogin_MalformedOutcome(t *testing.T) {
	transport := &fakeTransport{
		beginResponse:  json.RawMessage(`{"publicKey":{"challenge":"c5"}}`),
		finishResponse: json.RawMessage(`{"unexpected":true}`),
	}
	provider := &fakeProvider{result: json.RawMessage(`{"id":"cred1"}`)}

	o := newOrchestrator(t, transport, provider, &fakeSessions{})

	attempt, err := o.Login(context.Background(), "alice")
	require.ErrorIs(t, err, ErrMalformedOutcome)
	assert.Equal(t, StateFailed, attempt.State)
}

func TestLogin_OutcomeWithoutToken(t *testing.T) {
	// The response decodes but carries no token; the error must name the
	// problem instead of formatting a nil decode error.
	transport := &fakeTransport{
		beginResponse:  json.RawMessage(`{"publicKey":{"challenge":"c8"}}`),
		finishResponse: json.RawMessage(`{"user":{"id":"rec1","username":"alice"}}`),
	}
	provider := &fakeProvider{result: json.RawMessage(`{"id":"cred1"}`)}

	o := newOrchestrator(t, transport, provider, &fakeSessions{})

	_, err := o.Login(context.Background(), "alice")
	require.ErrorIs(t, err, ErrMalformedOutcome)
	assert.NotContains(t, err.Error(), "<nil>")
	assert.Contains(t, err.Error(), "no token")
}

func TestLogin_CommitFailureStillSucceeds(t *testing.T) {
	transport := &fakeTransport{
		beginResponse:  json.RawMessage(`{"publicKey":{"challenge":"c6"}}`),
		finishResponse: json.RawMessage(`{"token":"t1","user":{"id":"rec1","username":"alice","webauthn_id":"aGFuZGxl"}}`),
	}
	provider := &fakeProvider{result: json.RawMessage(`{"id":"cred1"}`)}
	sessions := &fakeSessions{commitErr: errors.New("disk full")}

	o := newOrchestrator(t, transport, provider, sessions)

	attempt, err := o.Login(context.Background(), "alice")
	require.NoError(t, err)

	assert.True(t, attempt.Succeeded())
	require.NotNil(t, attempt.Outcome)
	assert.Error(t, attempt.CommitErr)
}

func TestLogin_NoSessionManager(t *testing.T) {
	transport := &fakeTransport{
		beginResponse:  json.RawMessage(`{"publicKey":{"challenge":"c7"}}`),
		finishResponse: json.RawMessage(`{"token":"t1","user":{"id":"rec1","username":"alice","webauthn_id":"aGFuZGxl"}}`),
	}
	provider := &fakeProvider{result: json.RawMessage(`{"id":"cred1"}`)}

	o := newOrchestrator(t, transport, provider, nil)

	attempt, err := o.Login(context.Background(), "alice")
	require.NoError(t, err)
	assert.Equal(t, "t1", attempt.Outcome.Token)
}

func TestNewOrchestrator_Validation(t *testing.T) {
	_, err := NewOrchestrator(nil)
	assert.ErrorIs(t, err, ErrNilTransport)

	_, err = NewOrchestrator(&OrchestratorParams{Provider: &fakeProvider{}})
	assert.ErrorIs(t, err, ErrNilTransport)

	_, err = NewOrchestrator(&OrchestratorParams{Transport: &fakeTransport{}})
	assert.ErrorIs(t, err, ErrNilProvider)
}

func TestStateString(t *testing.T) {
	assert.Equal(t, "idle", StateIdle.String())
	assert.Equal(t, "begun", StateBegun.String())
	assert.Equal(t, "invoked", StateInvoked.String())
	assert.Equal(t, "finished", StateFinished.String())
	assert.Equal(t, "failed", StateFailed.String())
	assert.Equal(t, "unknown", State(42).String())
}
