// File: cmd/sessions.go
package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/xkilldash9x/cartographer-cli/internal/observability"
	"github.com/xkilldash9x/cartographer-cli/internal/session"
)

// newSessionsCmd creates the `sessions` command group for managing persisted
// exploration sessions.
func newSessionsCmd() *cobra.Command {
	sessionsCmd := &cobra.Command{
		Use:   "sessions",
		Short: "Manages persisted exploration sessions",
	}

	listCmd := &cobra.Command{
		Use:   "list",
		Short: "Lists persisted session ids",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := session.NewFileStore(cfg.Session.Dir, observability.GetLogger())
			if err != nil {
				return err
			}
			ids, err := store.List(cmd.Context())
			if err != nil {
				return err
			}
			if len(ids) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "no persisted sessions")
				return nil
			}
			for _, id := range ids {
				fmt.Fprintln(cmd.OutOrStdout(), id)
			}
			return nil
		},
	}

	clearCmd := &cobra.Command{
		Use:   "clear <session-id>",
		Short: "Deletes a persisted session",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := session.NewFileStore(cfg.Session.Dir, observability.GetLogger())
			if err != nil {
				return err
			}
			if err := store.Clear(cmd.Context(), args[0]); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "cleared session %s\n", args[0])
			return nil
		},
	}

	sessionsCmd.AddCommand(listCmd, clearCmd)
	return sessionsCmd
}
