package views

import (
	"context"
	"fmt"
	"time"

	"github.com/atotto/clipboard"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/wstail/wstail/internal/controller"
	"github.com/wstail/wstail/internal/history"
	"github.com/wstail/wstail/internal/interfaces"
	"github.com/wstail/wstail/internal/tui"
	"github.com/wstail/wstail/internal/tui/components"
)

// Pane represents which pane is focused.
type Pane int

const (
	PaneConfig Pane = iota
	PaneStream
)

// StreamRefreshMsg signals that the controller state changed.
type StreamRefreshMsg struct{}

// clearNotificationMsg clears the transient notification.
type clearNotificationMsg struct{}

const configPanelHeight = 7

// MainView is the two-pane view: connection form on top, stream below.
type MainView struct {
	width       int
	height      int
	focusedPane Pane

	config *components.ConfigPanel
	stream *components.StreamPanel

	ctrl    *controller.Controller
	updates chan struct{}

	historyStore history.Store
	prevState    interfaces.ConnState
	startedAt    time.Time
	sessionURL   string

	notification string
	notifyUntil  time.Time
}

// NewMainView creates the main view around a controller. The view
// registers itself as the controller's change observer.
func NewMainView(ctrl *controller.Controller) *MainView {
	v := &MainView{
		ctrl:        ctrl,
		config:      components.NewConfigPanel(),
		stream:      components.NewStreamPanel(),
		focusedPane: PaneConfig,
		updates:     make(chan struct{}, 1),
		prevState:   ctrl.State(),
	}
	ctrl.OnChange(func() {
		select {
		case v.updates <- struct{}{}:
		default:
		}
	})
	v.config.SetTarget(ctrl.Target())
	v.config.Focus()
	v.syncFromController()
	return v
}

// SetHistoryStore enables session recording.
func (v *MainView) SetHistoryStore(store history.Store) {
	v.historyStore = store
}

// Init initializes the view.
func (v *MainView) Init() tea.Cmd {
	return v.waitForUpdate()
}

// waitForUpdate returns a command that blocks until the controller
// announces a change.
func (v *MainView) waitForUpdate() tea.Cmd {
	return func() tea.Msg {
		<-v.updates
		return StreamRefreshMsg{}
	}
}

// Update handles messages.
func (v *MainView) Update(msg tea.Msg) (tui.Component, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		v.width = msg.Width
		v.height = msg.Height
		v.updatePaneSizes()
		return v, nil

	case tea.KeyMsg:
		return v.handleKeyMsg(msg)

	case StreamRefreshMsg:
		v.syncFromController()
		return v, v.waitForUpdate()

	case components.TargetChangedMsg:
		v.ctrl.SetTarget(msg.Target)
		return v, nil

	case components.ConnectRequestMsg:
		v.ctrl.Connect(context.Background())
		return v, nil

	case components.DisconnectRequestMsg:
		v.ctrl.Disconnect()
		return v, nil

	case components.ClearRequestMsg:
		v.ctrl.Clear()
		return v, nil

	case components.CopyMsg:
		return v.handleCopy(msg.Content)

	case clearNotificationMsg:
		v.notification = ""
		return v, nil
	}

	return v.forwardToFocusedPane(msg)
}

// syncFromController pulls a fresh snapshot into the panels and records
// a finished session when the connection transitions to Closed.
func (v *MainView) syncFromController() {
	snap := v.ctrl.Snapshot()
	v.stream.SetSnapshot(snap)

	switch {
	case snap.State == interfaces.ConnStateConnecting && v.prevState != interfaces.ConnStateConnecting:
		v.startedAt = time.Now()
		v.sessionURL = snap.ResolvedURL
	case snap.State == interfaces.ConnStateClosed && v.prevState != interfaces.ConnStateClosed:
		if v.historyStore != nil && !v.startedAt.IsZero() {
			v.recordSession(snap)
		}
	}
	v.prevState = snap.State
}

func (v *MainView) recordSession(snap controller.Snapshot) {
	stats := v.ctrl.Stats()
	entry := history.Session{
		Endpoint:    v.sessionURL,
		LogID:       snap.Target.LogID,
		StartedAt:   v.startedAt,
		EndedAt:     time.Now(),
		Fragments:   stats.Fragments,
		Bytes:       stats.Bytes,
		CloseCode:   stats.CloseCode,
		CloseReason: stats.CloseReason,
	}
	if stats.Err != nil {
		entry.Error = stats.Err.Error()
	}
	store := v.historyStore
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		store.Add(ctx, entry)
	}()
}

func (v *MainView) handleCopy(content string) (tui.Component, tea.Cmd) {
	err := clipboard.WriteAll(content)
	if err != nil {
		v.notification = "✗ Copy failed"
	} else {
		size := len(content)
		if size > 1024 {
			v.notification = fmt.Sprintf("✓ Copied %.1fKB", float64(size)/1024)
		} else {
			v.notification = fmt.Sprintf("✓ Copied %dB", size)
		}
	}
	v.notifyUntil = time.Now().Add(2 * time.Second)

	return v, tea.Tick(2*time.Second, func(t time.Time) tea.Msg {
		return clearNotificationMsg{}
	})
}

func (v *MainView) handleKeyMsg(msg tea.KeyMsg) (tui.Component, tea.Cmd) {
	if msg.Type == tea.KeyCtrlC {
		return v, tea.Quit
	}

	if v.config.IsEditing() && v.focusedPane == PaneConfig {
		if msg.Type == tea.KeyTab {
			v.cycleFocus()
			return v, nil
		}
		return v.forwardToFocusedPane(msg)
	}

	switch msg.Type {
	case tea.KeyTab, tea.KeyShiftTab:
		v.cycleFocus()
		return v, nil

	case tea.KeyRunes:
		switch string(msg.Runes) {
		case "q":
			return v, tea.Quit
		case "1":
			v.focusPane(PaneConfig)
			return v, nil
		case "2":
			v.focusPane(PaneStream)
			return v, nil
		}
	}

	return v.forwardToFocusedPane(msg)
}

func (v *MainView) forwardToFocusedPane(msg tea.Msg) (tui.Component, tea.Cmd) {
	var cmd tea.Cmd

	switch v.focusedPane {
	case PaneConfig:
		updated, c := v.config.Update(msg)
		v.config = updated.(*components.ConfigPanel)
		cmd = c
	case PaneStream:
		updated, c := v.stream.Update(msg)
		v.stream = updated.(*components.StreamPanel)
		cmd = c
	}

	return v, cmd
}

func (v *MainView) cycleFocus() {
	if v.focusedPane == PaneConfig {
		v.focusPane(PaneStream)
	} else {
		v.focusPane(PaneConfig)
	}
}

func (v *MainView) focusPane(pane Pane) {
	v.focusedPane = pane
	if pane == PaneConfig {
		v.config.Focus()
		v.stream.Blur()
	} else {
		v.stream.Focus()
		v.config.Blur()
	}
}

func (v *MainView) updatePaneSizes() {
	v.config.SetSize(v.width, configPanelHeight)

	streamHeight := v.height - configPanelHeight - 1
	if streamHeight < 3 {
		streamHeight = 3
	}
	v.stream.SetSize(v.width, streamHeight)
}

// View renders the view.
func (v *MainView) View() string {
	if v.width == 0 || v.height == 0 {
		return ""
	}

	return v.config.View() + "\n" + v.stream.View() + "\n" + v.renderStatusBar()
}

func (v *MainView) renderStatusBar() string {
	barStyle := lipgloss.NewStyle().
		Foreground(lipgloss.Color("250")).
		Background(lipgloss.Color("236")).
		Width(v.width)

	if v.notification != "" && time.Now().Before(v.notifyUntil) {
		return barStyle.Render(" " + v.notification)
	}

	return barStyle.Render(" Tab: switch pane | q: quit")
}

// Title returns the view title.
func (v *MainView) Title() string {
	return "wstail"
}

// Focused returns true; the main view is always focused.
func (v *MainView) Focused() bool {
	return true
}

// Focus is a no-op for the main view.
func (v *MainView) Focus() {}

// Blur is a no-op for the main view.
func (v *MainView) Blur() {}

// SetSize sets dimensions.
func (v *MainView) SetSize(width, height int) {
	v.width = width
	v.height = height
	v.updatePaneSizes()
}

// Width returns the width.
func (v *MainView) Width() int {
	return v.width
}

// Height returns the height.
func (v *MainView) Height() int {
	return v.height
}

// FocusedPane returns which pane has focus.
func (v *MainView) FocusedPane() Pane {
	return v.focusedPane
}

// ConfigPanel returns the connection form.
func (v *MainView) ConfigPanel() *components.ConfigPanel {
	return v.config
}

// StreamPanel returns the output panel.
func (v *MainView) StreamPanel() *components.StreamPanel {
	return v.stream
}

// Notification returns the transient status message.
func (v *MainView) Notification() string {
	return v.notification
}
