// Package cli defines the wstail command line interface.
package cli

import (
	"fmt"
	"os"
	"path/filepath"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"github.com/wstail/wstail/internal/config"
	"github.com/wstail/wstail/internal/controller"
	"github.com/wstail/wstail/internal/history"
	sqlitestore "github.com/wstail/wstail/internal/history/sqlite"
	"github.com/wstail/wstail/internal/protocol/websocket"
	"github.com/wstail/wstail/internal/script"
	"github.com/wstail/wstail/internal/tui/views"
)

// RootOptions holds the flags shared by all commands.
type RootOptions struct {
	ConfigPath      string
	Server          string
	LogID           string
	Token           string
	NoHeaders       bool
	LoopbackRewrite string
	Insecure        bool
	Filter          string
	HistoryPath     string
}

// NewRootCommand creates the root command.
func NewRootCommand(version string) *cobra.Command {
	opts := &RootOptions{}

	cmd := &cobra.Command{
		Use:     "wstail",
		Short:   "wstail - tail generation streams over WebSocket",
		Long:    "wstail attaches to a log/generation stream over WebSocket and shows the output as it arrives.",
		Version: version,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := opts.loadConfig()
			if err != nil {
				return err
			}
			return runTUI(cfg)
		},
	}

	pf := cmd.PersistentFlags()
	pf.StringVar(&opts.ConfigPath, "config", "", "Config file (default: "+config.DefaultPath()+")")
	pf.StringVarP(&opts.Server, "server", "s", "", "Base WebSocket URL (ws:// or wss://)")
	pf.StringVarP(&opts.LogID, "log", "l", "", "Log identifier to attach to")
	pf.StringVarP(&opts.Token, "token", "t", "", "Authorization token")
	pf.BoolVar(&opts.NoHeaders, "no-headers", false, "Send the token as query parameters instead of a handshake header")
	pf.StringVar(&opts.LoopbackRewrite, "loopback-rewrite", "", "Rewrite localhost hosts to this address")
	pf.BoolVarP(&opts.Insecure, "insecure", "k", false, "Allow insecure TLS connections")
	pf.StringVar(&opts.Filter, "filter", "", "JavaScript predicate over incoming fragments")
	pf.StringVar(&opts.HistoryPath, "history", "", "Session history database path")

	cmd.AddCommand(NewTailCommand(opts))
	cmd.AddCommand(NewHistoryCommand(opts))

	return cmd
}

// loadConfig reads the config file and applies flag overrides on top.
func (o *RootOptions) loadConfig() (config.Config, error) {
	path := o.ConfigPath
	if path == "" {
		path = config.DefaultPath()
	}

	cfg, err := config.Load(path)
	if err != nil {
		return config.Config{}, err
	}

	if o.Server != "" {
		cfg.Server = o.Server
	}
	if o.LogID != "" {
		cfg.LogID = o.LogID
	}
	if o.Token != "" {
		cfg.Token = o.Token
	}
	if o.NoHeaders {
		cfg.HeadersSupported = false
	}
	if o.LoopbackRewrite != "" {
		cfg.LoopbackRewrite = o.LoopbackRewrite
	}
	if o.Insecure {
		cfg.Insecure = true
	}
	if o.Filter != "" {
		cfg.Filter = o.Filter
	}
	if o.HistoryPath != "" {
		cfg.HistoryPath = o.HistoryPath
	}

	return cfg, nil
}

// newController builds a controller from the configuration, including the
// optional fragment filter.
func newController(cfg config.Config) (*controller.Controller, error) {
	ctrl := controller.New(websocket.NewDialer(), cfg.Capabilities())
	ctrl.SetTarget(cfg.Target())

	if cfg.Filter != "" {
		filter, err := script.NewFilter(cfg.Filter)
		if err != nil {
			return nil, fmt.Errorf("invalid filter: %w", err)
		}
		ctrl.SetFilter(filter)
	}

	return ctrl, nil
}

// openHistory opens the session store, creating parent directories. A
// failure is reported but never fatal; the nil store disables recording.
func openHistory(cfg config.Config) history.Store {
	if cfg.HistoryPath == "" {
		return nil
	}
	if err := os.MkdirAll(filepath.Dir(cfg.HistoryPath), 0755); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: history disabled: %v\n", err)
		return nil
	}
	store, err := sqlitestore.New(cfg.HistoryPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Warning: history disabled: %v\n", err)
		return nil
	}
	return store
}

// tuiModel wraps the MainView for bubbletea
type tuiModel struct {
	view *views.MainView
}

func (m tuiModel) Init() tea.Cmd {
	return m.view.Init()
}

func (m tuiModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	updated, cmd := m.view.Update(msg)
	m.view = updated.(*views.MainView)
	return m, cmd
}

func (m tuiModel) View() string {
	return m.view.View()
}

// runTUI starts the TUI application
func runTUI(cfg config.Config) error {
	ctrl, err := newController(cfg)
	if err != nil {
		return err
	}

	view := views.NewMainView(ctrl)
	if store := openHistory(cfg); store != nil {
		defer store.Close()
		view.SetHistoryStore(store)
	}

	p := tea.NewProgram(tuiModel{view: view}, tea.WithAltScreen())
	if _, err := p.Run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error running TUI: %v\n", err)
		return err
	}
	return nil
}
