package cli

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/wstail/wstail/internal/config"
	"github.com/wstail/wstail/internal/controller"
	"github.com/wstail/wstail/internal/history"
	"github.com/wstail/wstail/internal/interfaces"
)

// TailOptions holds options for the tail command.
type TailOptions struct {
	Timeout time.Duration
}

// NewTailCommand creates the headless tail command: connect, print the
// stream to stdout, exit when the stream ends.
func NewTailCommand(root *RootOptions) *cobra.Command {
	opts := &TailOptions{}

	cmd := &cobra.Command{
		Use:   "tail [LOG_ID]",
		Short: "Tail a stream to stdout without the TUI",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := root.loadConfig()
			if err != nil {
				return err
			}
			if len(args) == 1 {
				cfg.LogID = args[0]
			}
			return runTail(cmd, cfg, opts)
		},
	}

	cmd.Flags().DurationVar(&opts.Timeout, "timeout", 0, "Give up after this long (0 waits forever)")

	return cmd
}

func runTail(cmd *cobra.Command, cfg config.Config, opts *TailOptions) error {
	ctrl, err := newController(cfg)
	if err != nil {
		return err
	}

	if !ctrl.ConnectEnabled() {
		return fmt.Errorf("nothing to tail: set a server URL and log id")
	}

	updates := make(chan struct{}, 1)
	ctrl.OnChange(func() {
		select {
		case updates <- struct{}{}:
		default:
		}
	})

	ctx := context.Background()
	var cancel context.CancelFunc
	if opts.Timeout > 0 {
		ctx, cancel = context.WithTimeout(ctx, opts.Timeout)
		defer cancel()
	}

	startedAt := time.Now()
	endpoint := ctrl.ResolvedURL()
	ctrl.Connect(ctx)

	out := cmd.OutOrStdout()
	printed := 0
	flush := func() {
		output := ctrl.Output()
		if len(output) > printed {
			fmt.Fprint(out, output[printed:])
			printed = len(output)
		}
	}

	for ctrl.State() != interfaces.ConnStateClosed {
		select {
		case <-updates:
			flush()
		case <-ctx.Done():
			ctrl.Disconnect()
			flush()
			return ctx.Err()
		}
	}
	flush()

	stats := ctrl.Stats()
	if store := openHistory(cfg); store != nil {
		recordTailSession(store, cfg.LogID, endpoint, startedAt, stats)
		store.Close()
	}

	if stats.Err != nil {
		return fmt.Errorf("stream failed: %w", stats.Err)
	}
	return nil
}

func recordTailSession(store history.Store, logID, endpoint string, startedAt time.Time, stats controller.Stats) {
	entry := history.Session{
		Endpoint:    endpoint,
		LogID:       logID,
		StartedAt:   startedAt,
		EndedAt:     time.Now(),
		Fragments:   stats.Fragments,
		Bytes:       stats.Bytes,
		CloseCode:   stats.CloseCode,
		CloseReason: stats.CloseReason,
	}
	if stats.Err != nil {
		entry.Error = stats.Err.Error()
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	store.Add(ctx, entry)
}
