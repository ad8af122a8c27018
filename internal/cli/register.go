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

var registerLogin bool

// registerCmd enrolls a new credential for an identifier.
var registerCmd = &cobra.Command{
	Use:   "register <identifier>",
	Short: "Register a new passkey credential",
	Long: `Register runs a registration ceremony for the given identifier,
creating the backend user record if it does not exist. Registration never
establishes a session; pass --login to log in immediately afterwards with
the freshly created credential.`,
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

		attempt, err := s.orch.Register(ctx, identifier)
		if err != nil {
			handleError(err)
		}
		fmt.Printf("Registered credential for %s (%s)\n", identifier, attempt.Elapsed.Round(time.Millisecond))

		if !registerLogin {
			return
		}

		attempt, err = s.orch.Login(ctx, identifier)
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

func init() {
	registerCmd.Flags().BoolVar(&registerLogin, "login", false,
		"log in immediately after registering")
}
