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

// logoutCmd clears the persisted session.
var logoutCmd = &cobra.Command{
	Use:   "logout",
	Short: "Clear the current session",
	Run: func(cmd *cobra.Command, args []string) {
		s, err := buildStack()
		if err != nil {
			handleError(err)
		}
		defer func() { _ = s.client.Close() }()

		if err := s.sessions.Clear(cmd.Context()); err != nil {
			handleError(err)
		}
		fmt.Println("logged out")
	},
}
