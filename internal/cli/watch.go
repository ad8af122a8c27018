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
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/jeremyhahn/go-passkey/pkg/types"
)

// watchCmd follows the session user's record via the realtime stream.
var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Watch the session user record for changes",
	Long: `Watch restores the session, subscribes to the backend's realtime
change stream, and prints the refreshed user record whenever it changes.
Interrupt with Ctrl-C.`,
	Run: func(cmd *cobra.Command, args []string) {
		s, err := buildStack()
		if err != nil {
			handleError(err)
		}
		defer func() { _ = s.client.Close() }()

		if err := s.sessions.Restore(cmd.Context()); err != nil {
			handleError(err)
		}

		ctx, cancel := context.WithCancel(cmd.Context())
		defer cancel()

		channel, err := s.realtimeChannel()
		if err != nil {
			handleError(err)
		}

		unsubscribe := s.sessions.OnChange(func(user *types.UserProfile) {
			if user == nil {
				fmt.Printf("[%s] session cleared\n", time.Now().Format(time.TimeOnly))
				return
			}
			fmt.Printf("[%s] %s: %d credential(s)\n",
				time.Now().Format(time.TimeOnly), user.Username, len(user.Credentials))
		})
		defer unsubscribe()

		if err := s.sessions.SubscribeToChanges(ctx, channel); err != nil {
			handleError(err)
		}
		defer s.sessions.Unsubscribe()

		user, _ := s.sessions.CurrentUser()
		fmt.Printf("watching %s (Ctrl-C to stop)\n", user.Username)

		sig := make(chan os.Signal, 1)
		signal.Notify(sig, os.Interrupt, syscall.SIGTERM)
		<-sig
	},
}
