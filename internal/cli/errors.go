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

package cli

import (
	"errors"
	"fmt"

	"github.com/jeremyhahn/go-passkey/pkg/authenticator"
	"github.com/jeremyhahn/go-passkey/pkg/client"
	"github.com/jeremyhahn/go-passkey/pkg/session"
)

// userMessage maps the error taxonomy onto the three user-facing failure
// classes: backend unreachable or rejecting, ceremony aborted, and session
// persistence failure. Anything else is reported as-is.
func userMessage(err error) string {
	var te *client.TransportError
	if errors.As(err, &te) {
		if errors.Is(err, client.ErrConnectionFailed) {
			return fmt.Sprintf("could not reach the server (%s %s): %v", te.Phase, te.Kind, te.Cause)
		}
		return fmt.Sprintf("the server rejected the %s %s request: %v", te.Kind, te.Phase, te.Cause)
	}

	var pe *authenticator.ProviderError
	if errors.As(err, &pe) {
		switch pe.Reason {
		case authenticator.ReasonCanceled:
			return fmt.Sprintf("the %s ceremony was canceled", pe.Kind)
		case authenticator.ReasonTimeout:
			return fmt.Sprintf("the %s ceremony timed out waiting for the authenticator", pe.Kind)
		case authenticator.ReasonNoCredential:
			return "no eligible credential is available on this machine; register first"
		default:
			return fmt.Sprintf("the authenticator could not complete the %s ceremony: %v", pe.Kind, pe.Err)
		}
	}

	var se *session.SessionError
	if errors.As(err, &se) {
		if errors.Is(err, session.ErrNoSession) {
			return "not logged in"
		}
		return fmt.Sprintf("session %s failed: %v", se.Op, se.Err)
	}

	return err.Error()
}
