// File: cmd/explore.go
package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/xkilldash9x/cartographer-cli/internal/browserdriver"
	"github.com/xkilldash9x/cartographer-cli/internal/explorer"
	"github.com/xkilldash9x/cartographer-cli/internal/frontier"
	"github.com/xkilldash9x/cartographer-cli/internal/graph"
	"github.com/xkilldash9x/cartographer-cli/internal/modelclient"
	"github.com/xkilldash9x/cartographer-cli/internal/observability"
	"github.com/xkilldash9x/cartographer-cli/internal/session"
)

// newExploreCmd creates the `explore` command: start a new exploration session
// or resume a persisted one.
func newExploreCmd() *cobra.Command {
	var (
		seedURL  string
		resumeID string
	)

	exploreCmd := &cobra.Command{
		Use:   "explore",
		Short: "Starts or resumes an exploration session",
		Args:  cobra.NoArgs,
		PreRunE: func(cmd *cobra.Command, args []string) error {
			return viper.BindPFlags(cmd.Flags())
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			if seedURL == "" && resumeID == "" {
				return errors.New("either --url or --resume is required")
			}

			ctx, cancel := context.WithCancel(cmd.Context())
			defer cancel()
			logger := observability.GetLogger()

			model, err := modelclient.New(cfg.Model, logger)
			if err != nil {
				return err
			}
			driver, err := browserdriver.New(cfg.Browser, logger)
			if err != nil {
				return err
			}
			snapshots, err := session.NewFileStore(cfg.Session.Dir, logger)
			if err != nil {
				return err
			}

			graphStore := graph.NewStore(logger, graph.DefaultNormalizer)
			frontierMgr := frontier.NewManager(logger)
			exp := explorer.New(cfg.Explorer, logger, model, driver, graphStore, frontierMgr, snapshots, seedURL)

			if resumeID != "" {
				snap, err := snapshots.Load(ctx, resumeID)
				if err != nil {
					return fmt.Errorf("failed to load session %q: %w", resumeID, err)
				}
				if err := exp.Restore(ctx, snap); err != nil {
					return err
				}
			}

			// First SIGINT stops gracefully; a second aborts the session.
			sigCh := make(chan os.Signal, 1)
			signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
			defer signal.Stop(sigCh)
			go func() {
				select {
				case <-sigCh:
					fmt.Fprintln(cmd.ErrOrStderr(), "\nstopping session, press Ctrl-C again to abort")
					exp.Stop()
					select {
					case <-sigCh:
						cancel()
					case <-ctx.Done():
					}
				case <-ctx.Done():
				}
			}()

			rendered := make(chan struct{})
			go func() {
				defer close(rendered)
				renderEvents(cmd, exp.Events())
			}()

			runErr := exp.Run(ctx)
			<-rendered

			printSummary(cmd.Context(), cmd, graphStore, exp.SessionID())
			if runErr != nil {
				logger.Error("Exploration session failed", zap.Error(runErr))
			}
			return runErr
		},
	}

	exploreCmd.Flags().StringVar(&seedURL, "url", "", "seed URL to start exploring from")
	exploreCmd.Flags().StringVar(&resumeID, "resume", "", "session id to resume")
	return exploreCmd
}

// renderEvents writes the session's progress stream to the terminal. Chunks are
// printed as they arrive; a retry discards the current turn's partial output.
func renderEvents(cmd *cobra.Command, events <-chan explorer.Event) {
	out := cmd.OutOrStdout()
	for ev := range events {
		switch ev.Type {
		case explorer.EventChunk:
			fmt.Fprint(out, ev.Delta)
		case explorer.EventRetry:
			fmt.Fprint(out, "\n[turn failed, retrying]\n")
		case explorer.EventTurnFinal:
			fmt.Fprintln(out)
		case explorer.EventPageDiscovered:
			fmt.Fprintf(out, "+ page %s\n", ev.URL)
		case explorer.EventEdgeDiscovered:
			fmt.Fprintf(out, "+ edge %q -> %s\n", ev.Label, ev.URL)
		case explorer.EventWarning:
			fmt.Fprintf(out, "! %s\n", ev.Message)
		case explorer.EventCompleted:
			fmt.Fprintf(out, "%s\n", ev.Message)
		case explorer.EventFailed:
			fmt.Fprintf(out, "session failed: %v\n", ev.Err)
		}
	}
}

func printSummary(ctx context.Context, cmd *cobra.Command, graphStore *graph.Store, sessionID string) {
	snap := graphStore.Snapshot(ctx)
	fmt.Fprintf(cmd.OutOrStdout(), "discovered %d page(s) and %d navigation(s); resume with --resume %s\n",
		len(snap.Nodes), len(snap.Edges), sessionID)
}
