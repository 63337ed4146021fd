package components

import (
	"fmt"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/wstail/wstail/internal/controller"
	"github.com/wstail/wstail/internal/interfaces"
	"github.com/wstail/wstail/internal/tui"
)

type (
	// ConnectRequestMsg asks the view to start a connection.
	ConnectRequestMsg struct{}

	// DisconnectRequestMsg asks the view to drop the connection.
	DisconnectRequestMsg struct{}

	// ClearRequestMsg asks the view to clear the output.
	ClearRequestMsg struct{}

	// CopyMsg asks the view to copy content to the clipboard.
	CopyMsg struct {
		Content string
	}
)

// StreamPanel displays the connection status and the streamed output.
type StreamPanel struct {
	title   string
	focused bool
	width   int
	height  int

	state       interfaces.ConnState
	resolvedURL string
	output      string

	scrollOffset int
	autoScroll   bool
	gPressed     bool
}

// NewStreamPanel creates the output panel.
func NewStreamPanel() *StreamPanel {
	return &StreamPanel{
		title:      "Stream",
		state:      interfaces.ConnStateIdle,
		autoScroll: true,
	}
}

// SetSnapshot updates the panel from a controller snapshot.
func (p *StreamPanel) SetSnapshot(snap controller.Snapshot) {
	p.state = snap.State
	p.resolvedURL = snap.ResolvedURL
	p.output = snap.Output
	if p.autoScroll {
		p.scrollToBottom()
	}
}

// Init initializes the component.
func (p *StreamPanel) Init() tea.Cmd {
	return nil
}

// Update handles messages.
func (p *StreamPanel) Update(msg tea.Msg) (tui.Component, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		p.width = msg.Width
		p.height = msg.Height

	case tui.FocusMsg:
		p.focused = true

	case tui.BlurMsg:
		p.focused = false

	case tea.KeyMsg:
		if p.focused {
			return p.handleKeyMsg(msg)
		}
	}

	return p, nil
}

func (p *StreamPanel) handleKeyMsg(msg tea.KeyMsg) (tui.Component, tea.Cmd) {
	pageSize := p.height - 6
	if pageSize < 1 {
		pageSize = 5
	}

	switch msg.Type {
	case tea.KeyPgUp, tea.KeyCtrlU:
		p.scrollOffset -= pageSize
		if p.scrollOffset < 0 {
			p.scrollOffset = 0
		}
		p.autoScroll = false
		p.gPressed = false
		return p, nil

	case tea.KeyPgDown, tea.KeyCtrlD:
		p.scrollOffset += pageSize
		maxOffset := p.maxScrollOffset()
		if p.scrollOffset >= maxOffset {
			p.scrollOffset = maxOffset
			p.autoScroll = true
		}
		p.gPressed = false
		return p, nil

	case tea.KeyRunes:
		switch string(msg.Runes) {
		case "j":
			p.scrollOffset++
			if p.scrollOffset >= p.maxScrollOffset() {
				p.scrollOffset = p.maxScrollOffset()
				p.autoScroll = true
			} else {
				p.autoScroll = false
			}
		case "k":
			if p.scrollOffset > 0 {
				p.scrollOffset--
				p.autoScroll = false
			}
		case "G":
			p.scrollToBottom()
			p.autoScroll = true
			p.gPressed = false
		case "g":
			if p.gPressed {
				p.scrollOffset = 0
				p.autoScroll = false
				p.gPressed = false
			} else {
				p.gPressed = true
			}
			return p, nil
		case "c":
			if p.state == interfaces.ConnStateIdle || p.state == interfaces.ConnStateClosed {
				return p, func() tea.Msg {
					return ConnectRequestMsg{}
				}
			}
		case "d":
			if p.state == interfaces.ConnStateConnecting || p.state == interfaces.ConnStateOpen {
				return p, func() tea.Msg {
					return DisconnectRequestMsg{}
				}
			}
		case "x":
			return p, func() tea.Msg {
				return ClearRequestMsg{}
			}
		case "y":
			if p.output != "" {
				content := p.output
				return p, func() tea.Msg {
					return CopyMsg{Content: content}
				}
			}
		default:
			p.gPressed = false
		}
	}

	return p, nil
}

func (p *StreamPanel) scrollToBottom() {
	p.scrollOffset = p.maxScrollOffset()
}

func (p *StreamPanel) maxScrollOffset() int {
	lines := p.outputLines()
	visible := p.contentHeight()
	if len(lines) > visible {
		return len(lines) - visible
	}
	return 0
}

func (p *StreamPanel) contentHeight() int {
	// Border, title, status and hint lines surround the content.
	h := p.height - 6
	if h < 1 {
		h = 1
	}
	return h
}

func (p *StreamPanel) outputLines() []string {
	if p.output == "" {
		return nil
	}
	return strings.Split(strings.TrimSuffix(p.output, "\n"), "\n")
}

// View renders the component.
func (p *StreamPanel) View() string {
	if p.width == 0 || p.height == 0 {
		return ""
	}

	innerWidth := p.width - 2
	if innerWidth < 1 {
		innerWidth = 1
	}

	title := tui.RenderTitle(p.title, innerWidth, p.focused)
	status := p.renderStatusLine(innerWidth)
	content := p.renderOutput(innerWidth, p.contentHeight())
	hint := p.renderHintLine()

	return tui.RenderBorder(title+"\n"+status+"\n"+content+"\n"+hint, p.focused)
}

func (p *StreamPanel) renderStatusLine(width int) string {
	var statusStyle lipgloss.Style
	var statusText string

	switch p.state {
	case interfaces.ConnStateOpen:
		statusStyle = lipgloss.NewStyle().
			Background(lipgloss.Color("34")).
			Foreground(lipgloss.Color("255")).
			Bold(true).
			Padding(0, 1)
		statusText = "Open"
	case interfaces.ConnStateConnecting:
		statusStyle = lipgloss.NewStyle().
			Background(lipgloss.Color("214")).
			Foreground(lipgloss.Color("0")).
			Bold(true).
			Padding(0, 1)
		statusText = "Connecting..."
	case interfaces.ConnStateClosed:
		statusStyle = lipgloss.NewStyle().
			Background(lipgloss.Color("240")).
			Foreground(lipgloss.Color("255")).
			Padding(0, 1)
		statusText = "Closed"
	default:
		statusStyle = lipgloss.NewStyle().
			Background(lipgloss.Color("238")).
			Foreground(lipgloss.Color("250")).
			Padding(0, 1)
		statusText = "Idle"
	}

	status := statusStyle.Render(statusText)

	endpoint := p.resolvedURL
	if endpoint == "" {
		endpoint = "(set a log id to resolve the URL)"
	}
	maxLen := width - lipgloss.Width(status) - 3
	endpointStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("245"))
	return fmt.Sprintf("%s  %s", status, endpointStyle.Render(tui.Truncate(endpoint, maxLen)))
}

func (p *StreamPanel) renderOutput(width, height int) string {
	lines := p.outputLines()

	if len(lines) == 0 {
		hintStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("243")).Italic(true)
		empty := []string{"", hintStyle.Render("No output yet. Press 'c' to connect.")}
		lines = empty
	}

	if p.scrollOffset > 0 && p.scrollOffset < len(lines) {
		lines = lines[p.scrollOffset:]
	}

	for i, line := range lines {
		lines[i] = tui.Truncate(line, width)
	}
	for len(lines) < height {
		lines = append(lines, "")
	}
	if len(lines) > height {
		lines = lines[:height]
	}

	return strings.Join(lines, "\n")
}

func (p *StreamPanel) renderHintLine() string {
	hintStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("243"))

	switch p.state {
	case interfaces.ConnStateConnecting, interfaces.ConnStateOpen:
		return hintStyle.Render("[d: disconnect, x: clear, y: copy, j/k: scroll]")
	default:
		return hintStyle.Render("[c: connect, x: clear, y: copy, j/k: scroll]")
	}
}

// Title returns the component title.
func (p *StreamPanel) Title() string {
	return p.title
}

// Focused returns true if focused.
func (p *StreamPanel) Focused() bool {
	return p.focused
}

// Focus sets the component as focused.
func (p *StreamPanel) Focus() {
	p.focused = true
}

// Blur removes focus.
func (p *StreamPanel) Blur() {
	p.focused = false
}

// SetSize sets dimensions.
func (p *StreamPanel) SetSize(width, height int) {
	p.width = width
	p.height = height
}

// Width returns the width.
func (p *StreamPanel) Width() int {
	return p.width
}

// Height returns the height.
func (p *StreamPanel) Height() int {
	return p.height
}

// State returns the displayed connection state.
func (p *StreamPanel) State() interfaces.ConnState {
	return p.state
}

// Output returns the displayed output.
func (p *StreamPanel) Output() string {
	return p.output
}

// AutoScroll returns true when the panel follows new output.
func (p *StreamPanel) AutoScroll() bool {
	return p.autoScroll
}
