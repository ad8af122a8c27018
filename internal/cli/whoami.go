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
	"fmt"

	"github.com/spf13/cobra"
)

// whoamiCmd prints the current session's user record.
var whoamiCmd = &cobra.Command{
	Use:   "whoami",
	Short: "Show the current session user",
	Run: func(cmd *cobra.Command, args []string) {
		s, err := buildStack()
		if err != nil {
			handleError(err)
		}
		defer func() { _ = s.client.Close() }()

		if err := s.sessions.Restore(cmd.Context()); err != nil {
			handleError(err)
		}

		user, ok := s.sessions.CurrentUser()
		if !ok {
			fmt.Println("not logged in")
			return
		}

		fmt.Printf("Username:    %s\n", user.Username)
		if user.Name != "" && user.Name != user.Username {
			fmt.Printf("Name:        %s\n", user.Name)
		}
		if user.ID != "" {
			fmt.Printf("Record ID:   %s\n", user.ID)
		}
		fmt.Printf("Credentials: %d\n", len(user.Credentials))
		for _, cred := range user.Credentials {
			fmt.Printf("  - %s (registered %s)\n", cred.ID, cred.CreatedAt.Format("2006-01-02 15:04:05"))
		}
	},
}
