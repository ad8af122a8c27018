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
	"bytes"
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/go-webauthn/webauthn/protocol"
	"github.com/go-webauthn/webauthn/webauthn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jeremyhahn/go-passkey/pkg/types"
)

const (
	testRPID     = "example.com"
	testRPName   = "Example Corp"
	testRPOrigin = "https://example.com"
)

// testUser is a minimal webauthn.User for driving real ceremonies in tests.
type testUser struct {
	id    []byte
	name  string
	creds []webauthn.Credential
}

func (u *testUser) WebAuthnID() []byte                         { return u.id }
func (u *testUser) WebAuthnName() string                       { return u.name }
func (u *testUser) WebAuthnDisplayName() string                { return u.name }
func (u *testUser) WebAuthnIcon() string                       { return "" }
func (u *testUser) WebAuthnCredentials() []webauthn.Credential { return u.creds }

func newTestRP(t *testing.T) *webauthn.WebAuthn {
	t.Helper()
	wa, err := webauthn.New(&webauthn.Config{
		RPID:          testRPID,
		RPDisplayName: testRPName,
		RPOrigins:     []string{testRPOrigin},
	})
	require.NoError(t, err)
	return wa
}

func newTestProvider() *Software {
	return NewSoftware(RelyingParty{ID: testRPID, Name: testRPName, Origin: testRPOrigin})
}

// register drives a full registration ceremony against a real go-webauthn
// relying party and returns the validated credential.
func register(t *testing.T, wa *webauthn.WebAuthn, user *testUser, provider *Software, envelope bool) *webauthn.Credential {
	t.Helper()

	creation, session, err := wa.BeginRegistration(user)
	require.NoError(t, err)

	var options []byte
	if envelope {
		options, err = json.Marshal(creation)
	} else {
		options, err = json.Marshal(creation.Response)
	}
	require.NoError(t, err)

	result, err := provider.Invoke(context.Background(), types.CeremonyRegistration, options)
	require.NoError(t, err)

	parsed, err := protocol.ParseCredentialCreationResponseBody(bytes.NewReader(result))
	require.NoError(t, err)

	credential, err := wa.CreateCredential(user, *session, parsed)
	require.NoError(t, err)
	return credential
}

func TestSoftware_Registration(t *testing.T) {
	wa := newTestRP(t)
	provider := newTestProvider()
	user := &testUser{id: []byte("user-handle-1"), name: "alice"}

	credential := register(t, wa, user, provider, false)

	assert.NotEmpty(t, credential.ID)
	assert.NotEmpty(t, credential.PublicKey)
	assert.Equal(t, 1, provider.CredentialCount())
}

func TestSoftware_Registration_EnvelopedOptions(t *testing.T) {
	// Backends send the full {"publicKey": ...} envelope; the provider
	// canonicalizes it before invoking the authenticator.
	wa := newTestRP(t)
	provider := newTestProvider()
	user := &testUser{id: []byte("user-handle-2"), name: "bob"}

	credential := register(t, wa, user, provider, true)
	assert.NotEmpty(t, credential.ID)
}

func TestSoftware_Login(t *testing.T) {
	wa := newTestRP(t)
	provider := newTestProvider()
	user := &testUser{id: []byte("user-handle-3"), name: "carol"}

	credential := register(t, wa, user, provider, true)
	user.creds = append(user.creds, *credential)

	assertion, session, err := wa.BeginLogin(user)
	require.NoError(t, err)

	options, err := json.Marshal(assertion)
	require.NoError(t, err)

	result, err := provider.Invoke(context.Background(), types.CeremonyLogin, options)
	require.NoError(t, err)

	parsed, err := protocol.ParseCredentialRequestResponseBody(bytes.NewReader(result))
	require.NoError(t, err)

	validated, err := wa.ValidateLogin(user, *session, parsed)
	require.NoError(t, err)
	assert.Equal(t, credential.ID, validated.ID)
}

func TestSoftware_Login_SelectsAllowedCredential(t *testing.T) {
	// One provider holding credentials for two users must answer an
	// assertion request with the credential the allow list names, not
	// simply the newest one.
	wa := newTestRP(t)
	provider := newTestProvider()

	first := &testUser{id: []byte("user-handle-first"), name: "erin"}
	firstCred := register(t, wa, first, provider, true)
	first.creds = append(first.creds, *firstCred)

	second := &testUser{id: []byte("user-handle-second"), name: "frank"}
	secondCred := register(t, wa, second, provider, true)
	second.creds = append(second.creds, *secondCred)
	require.Equal(t, 2, provider.CredentialCount())

	assertion, session, err := wa.BeginLogin(first)
	require.NoError(t, err)
	options, err := json.Marshal(assertion)
	require.NoError(t, err)

	result, err := provider.Invoke(context.Background(), types.CeremonyLogin, options)
	require.NoError(t, err)

	parsed, err := protocol.ParseCredentialRequestResponseBody(bytes.NewReader(result))
	require.NoError(t, err)

	validated, err := wa.ValidateLogin(first, *session, parsed)
	require.NoError(t, err)
	assert.Equal(t, firstCred.ID, validated.ID)
}

func TestSoftware_Login_NoCredential(t *testing.T) {
	wa := newTestRP(t)
	provider := newTestProvider()

	// Options from a user that registered elsewhere; this provider holds
	// no credentials at all.
	other := &testUser{id: []byte("user-handle-4"), name: "dave"}
	otherProvider := newTestProvider()
	credential := register(t, wa, other, otherProvider, true)
	other.creds = append(other.creds, *credential)

	assertion, _, err := wa.BeginLogin(other)
	require.NoError(t, err)
	options, err := json.Marshal(assertion)
	require.NoError(t, err)

	_, err = provider.Invoke(context.Background(), types.CeremonyLogin, options)
	require.Error(t, err)
	assert.Equal(t, ReasonNoCredential, ReasonOf(err))
}

func TestSoftware_MalformedOptions(t *testing.T) {
	provider := newTestProvider()

	_, err := provider.Invoke(context.Background(), types.CeremonyRegistration, json.RawMessage(`{"nope":1}`))
	require.Error(t, err)
	assert.True(t, IsUnsupported(err))

	var pe *ProviderError
	require.ErrorAs(t, err, &pe)
	assert.Equal(t, types.CeremonyRegistration, pe.Kind)
}

func TestSoftware_ContextCanceled(t *testing.T) {
	provider := newTestProvider()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := provider.Invoke(ctx, types.CeremonyLogin, json.RawMessage(`{}`))
	require.Error(t, err)
	assert.True(t, IsCanceled(err))
}

func TestSoftware_ContextDeadline(t *testing.T) {
	provider := newTestProvider()

	ctx, cancel := context.WithTimeout(context.Background(), time.Nanosecond)
	defer cancel()
	<-ctx.Done()

	_, err := provider.Invoke(ctx, types.CeremonyRegistration, json.RawMessage(`{}`))
	require.Error(t, err)
	assert.True(t, IsTimeout(err))
}

func TestSoftware_UnknownKind(t *testing.T) {
	provider := newTestProvider()

	_, err := provider.Invoke(context.Background(), types.CeremonyKind("attest"), json.RawMessage(`{}`))
	require.Error(t, err)
	assert.True(t, IsUnsupported(err))
}
