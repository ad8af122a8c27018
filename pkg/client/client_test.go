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
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jeremyhahn/go-passkey/pkg/encoding"
	"github.com/jeremyhahn/go-passkey/pkg/types"
)

func newTestClient(t *testing.T, handler http.Handler) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	c, err := New(&Config{Address: srv.URL})
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Close() })
	return c
}

func TestBeginCeremony_PathAndResponse(t *testing.T) {
	encoded, err := encoding.EncodeIdentifier("alice")
	require.NoError(t, err)

	var gotPath, gotMethod string
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotMethod = r.Method
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"publicKey":{"challenge":"c1"}}`))
	}))

	options, err := c.BeginCeremony(context.Background(), types.CeremonyRegistration, "alice")
	require.NoError(t, err)

	assert.Equal(t, http.MethodPost, gotMethod)
	assert.Equal(t, "/webauthn-begin-registration/"+encoded, gotPath)
	assert.JSONEq(t, `{"publicKey":{"challenge":"c1"}}`, string(options))
}

func TestFinishCeremony_PostsResult(t *testing.T) {
	encoded, err := encoding.EncodeIdentifier("alice")
	require.NoError(t, err)

	var gotPath, gotBody, gotContentType string
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotContentType = r.Header.Get("Content-Type")
		body, _ := io.ReadAll(r.Body)
		gotBody = string(body)
		_, _ = w.Write([]byte(`{"token":"t1","user":{"identifier":"alice"}}`))
	}))

	result := json.RawMessage(`{"id":"cred1","sig":"s"}`)
	resp, err := c.FinishCeremony(context.Background(), types.CeremonyLogin, "alice", result)
	require.NoError(t, err)

	assert.Equal(t, "/webauthn-finish-login/"+encoded, gotPath)
	assert.Equal(t, "application/json", gotContentType)
	assert.JSONEq(t, string(result), gotBody)
	assert.Contains(t, string(resp), `"token":"t1"`)
}

func TestBeginCeremony_EmptyIdentifier(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("no request expected for an empty identifier")
	}))

	_, err := c.BeginCeremony(context.Background(), types.CeremonyLogin, "")
	require.Error(t, err)

	var te *TransportError
	require.True(t, errors.As(err, &te))
	assert.Equal(t, PhaseBegin, te.Phase)
	assert.Equal(t, types.CeremonyLogin, te.Kind)
	assert.ErrorIs(t, err, encoding.ErrEmptyIdentifier)
}

func TestBeginCeremony_BackendError(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte(`{"error":"user_not_found","message":"user not found"}`))
	}))

	_, err := c.BeginCeremony(context.Background(), types.CeremonyLogin, "ghost")
	require.Error(t, err)

	var te *TransportError
	require.True(t, errors.As(err, &te))
	assert.Equal(t, PhaseBegin, te.Phase)
	assert.Equal(t, types.CeremonyLogin, te.Kind)
	assert.Contains(t, err.Error(), "user not found")
}

func TestFinishCeremony_MalformedResponse(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("not json at all"))
	}))

	_, err := c.FinishCeremony(context.Background(), types.CeremonyRegistration, "alice", json.RawMessage(`{}`))
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrMalformedResponse)

	var te *TransportError
	require.True(t, errors.As(err, &te))
	assert.Equal(t, PhaseFinish, te.Phase)
}

func TestBeginCeremony_NetworkFailure(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	addr := srv.URL
	srv.Close() // nothing listening anymore

	c, err := New(&Config{Address: addr})
	require.NoError(t, err)

	_, err = c.BeginCeremony(context.Background(), types.CeremonyRegistration, "alice")
	require.Error(t, err)
	assert.True(t, IsTransportError(err))
	assert.ErrorIs(t, err, ErrConnectionFailed)
}

func TestFetchProfile(t *testing.T) {
	encoded, err := encoding.EncodeIdentifier("alice")
	require.NoError(t, err)

	var gotPath, gotAuth string
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotAuth = r.Header.Get("Authorization")
		_, _ = w.Write([]byte(`{"id":"rec1","username":"alice","name":"Alice","webauthn_id":"d2lk"}`))
	}))

	c.SetToken("tok-123")

	profile, err := c.FetchProfile(context.Background(), "alice")
	require.NoError(t, err)

	assert.Equal(t, "/users/"+encoded, gotPath)
	assert.Equal(t, "Bearer tok-123", gotAuth)
	assert.Equal(t, "alice", profile.Username)
	assert.Equal(t, "Alice", profile.Name)
}

func TestHealth(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/health" {
			_, _ = w.Write([]byte(`{"status":"ok"}`))
			return
		}
		w.WriteHeader(http.StatusNotFound)
	}))

	assert.NoError(t, c.Health(context.Background()))
}

func TestNew_Validation(t *testing.T) {
	_, err := New(nil)
	assert.Error(t, err)

	_, err = New(&Config{})
	assert.Error(t, err)
}

func TestNew_SchemeNormalization(t *testing.T) {
	c, err := New(&Config{Address: "localhost:8090"})
	require.NoError(t, err)
	assert.Equal(t, "http://localhost:8090", c.BaseURL())

	c, err = New(&Config{Address: "localhost:8090", TLSEnabled: true})
	require.NoError(t, err)
	assert.Equal(t, "https://localhost:8090", c.BaseURL())

	c, err = New(&Config{Address: "http://localhost:8090/"})
	require.NoError(t, err)
	assert.Equal(t, "http://localhost:8090", c.BaseURL())
}
