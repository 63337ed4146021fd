package cli

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/wstail/wstail/internal/history"
	sqlitestore "github.com/wstail/wstail/internal/history/sqlite"
)

// HistoryOptions holds options for the history command.
type HistoryOptions struct {
	Limit int
	Prune time.Duration
}

// NewHistoryCommand creates the history command listing recorded sessions.
func NewHistoryCommand(root *RootOptions) *cobra.Command {
	opts := &HistoryOptions{}

	cmd := &cobra.Command{
		Use:   "history",
		Short: "List recorded stream sessions",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := root.loadConfig()
			if err != nil {
				return err
			}
			if cfg.HistoryPath == "" {
				return fmt.Errorf("no history database configured")
			}

			store, err := sqlitestore.New(cfg.HistoryPath)
			if err != nil {
				return fmt.Errorf("failed to open history: %w", err)
			}
			defer store.Close()

			return runHistory(cmd, store, opts)
		},
	}

	cmd.Flags().IntVarP(&opts.Limit, "limit", "n", 20, "Maximum number of sessions to show")
	cmd.Flags().DurationVar(&opts.Prune, "prune", 0, "Delete sessions older than this before listing")

	return cmd
}

func runHistory(cmd *cobra.Command, store history.Store, opts *HistoryOptions) error {
	ctx := context.Background()
	out := cmd.OutOrStdout()

	if opts.Prune > 0 {
		n, err := store.Prune(ctx, time.Now().Add(-opts.Prune))
		if err != nil {
			return fmt.Errorf("failed to prune sessions: %w", err)
		}
		fmt.Fprintf(out, "Pruned %d session(s)\n", n)
	}

	sessions, err := store.List(ctx, opts.Limit)
	if err != nil {
		return fmt.Errorf("failed to list sessions: %w", err)
	}

	if len(sessions) == 0 {
		fmt.Fprintln(out, "No sessions recorded.")
		return nil
	}

	fmt.Fprintf(out, "%-19s  %-10s  %9s  %9s  %s\n", "STARTED", "LOG", "DURATION", "FRAGMENTS", "RESULT")
	for _, s := range sessions {
		fmt.Fprintf(out, "%-19s  %-10s  %9s  %9d  %s\n",
			s.StartedAt.Local().Format("2006-01-02 15:04:05"),
			s.LogID,
			s.Duration().Round(time.Millisecond),
			s.Fragments,
			sessionResult(s),
		)
	}
	return nil
}

func sessionResult(s history.Session) string {
	if s.Error != "" {
		return "error: " + s.Error
	}
	if s.CloseCode != 0 {
		if s.CloseReason != "" {
			return fmt.Sprintf("closed %d (%s)", s.CloseCode, s.CloseReason)
		}
		return fmt.Sprintf("closed %d", s.CloseCode)
	}
	return "done"
}
