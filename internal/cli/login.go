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
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"
)

// loginCmd runs a login ceremony and commits the session.
var loginCmd = &cobra.Command{
	Use:   "login <identifier>",
	Short: "Log in with a registered passkey",
	Long: `Login runs a login ceremony for the given identifier and, on
success, persists the session token so later invocations stay logged in.
The software authenticator holds credentials in process memory, so login
requires a credential registered in the same invocation (see
"register --login").`,
	Args: cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		identifier := args[0]

		s, err := buildStack()
		if err != nil {
			handleError(err)
		}
		defer func() { _ = s.client.Close() }()

		ctx, cancel := context.WithTimeout(cmd.Context(), 2*time.Minute)
		defer cancel()

		attempt, err := s.orch.Login(ctx, identifier)
		if err != nil {
			handleError(err)
		}
		if attempt.CommitErr != nil {
			fmt.Printf("Logged in as %s, but the session could not be saved: %v\n",
				attempt.Outcome.User.Username, attempt.CommitErr)
			return
		}
		fmt.Printf("Logged in as %s\n", attempt.Outcome.User.Username)
	},
}
