package components

import (
	"fmt"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/wstail/wstail/internal/core"
	"github.com/wstail/wstail/internal/tui"
)

// ConfigField identifies one of the editable fields.
type ConfigField int

const (
	FieldServer ConfigField = iota
	FieldLogID
	FieldToken
)

var fieldLabels = []string{"Server URL", "Log ID", "Token"}

// TargetChangedMsg is emitted whenever an editable field changes.
type TargetChangedMsg struct {
	Target core.StreamTarget
}

// ConfigPanel is the form with the three connection fields.
type ConfigPanel struct {
	title   string
	focused bool
	width   int
	height  int

	values   [3]string
	active   ConfigField
	cursor   int
	editMode bool
}

// NewConfigPanel creates the connection form.
func NewConfigPanel() *ConfigPanel {
	return &ConfigPanel{title: "Connection"}
}

// SetTarget fills the fields from a stream target.
func (p *ConfigPanel) SetTarget(t core.StreamTarget) {
	p.values[FieldServer] = t.Server
	p.values[FieldLogID] = t.LogID
	p.values[FieldToken] = t.Token
}

// Target returns the stream target described by the current field values.
func (p *ConfigPanel) Target() core.StreamTarget {
	return core.StreamTarget{
		Server: p.values[FieldServer],
		LogID:  p.values[FieldLogID],
		Token:  p.values[FieldToken],
	}
}

// Init initializes the component.
func (p *ConfigPanel) Init() tea.Cmd {
	return nil
}

// Update handles messages.
func (p *ConfigPanel) Update(msg tea.Msg) (tui.Component, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		p.width = msg.Width
		p.height = msg.Height

	case tui.FocusMsg:
		p.focused = true

	case tui.BlurMsg:
		p.focused = false
		p.editMode = false

	case tea.KeyMsg:
		if p.focused {
			return p.handleKeyMsg(msg)
		}
	}

	return p, nil
}

func (p *ConfigPanel) handleKeyMsg(msg tea.KeyMsg) (tui.Component, tea.Cmd) {
	if p.editMode {
		return p.handleEditKey(msg)
	}

	switch msg.Type {
	case tea.KeyEnter:
		p.startEdit()
		return p, nil

	case tea.KeyUp:
		p.prevField()
		return p, nil

	case tea.KeyDown:
		p.nextField()
		return p, nil

	case tea.KeyRunes:
		switch string(msg.Runes) {
		case "j":
			p.nextField()
		case "k":
			p.prevField()
		case "i":
			p.startEdit()
		}
	}

	return p, nil
}

func (p *ConfigPanel) handleEditKey(msg tea.KeyMsg) (tui.Component, tea.Cmd) {
	value := p.values[p.active]

	switch msg.Type {
	case tea.KeyEsc:
		p.editMode = false
		return p, nil

	case tea.KeyEnter:
		p.editMode = false
		p.nextField()
		return p, nil

	case tea.KeyBackspace:
		if p.cursor > 0 && len(value) > 0 {
			p.values[p.active] = value[:p.cursor-1] + value[p.cursor:]
			p.cursor--
			return p, p.changed()
		}
		return p, nil

	case tea.KeyDelete:
		if p.cursor < len(value) {
			p.values[p.active] = value[:p.cursor] + value[p.cursor+1:]
			return p, p.changed()
		}
		return p, nil

	case tea.KeyLeft:
		if p.cursor > 0 {
			p.cursor--
		}
		return p, nil

	case tea.KeyRight:
		if p.cursor < len(value) {
			p.cursor++
		}
		return p, nil

	case tea.KeyHome, tea.KeyCtrlA:
		p.cursor = 0
		return p, nil

	case tea.KeyEnd, tea.KeyCtrlE:
		p.cursor = len(value)
		return p, nil

	case tea.KeyCtrlU:
		p.values[p.active] = ""
		p.cursor = 0
		return p, p.changed()

	case tea.KeyRunes:
		runes := string(msg.Runes)
		p.values[p.active] = value[:p.cursor] + runes + value[p.cursor:]
		p.cursor += len(runes)
		return p, p.changed()
	}

	return p, nil
}

func (p *ConfigPanel) changed() tea.Cmd {
	target := p.Target()
	return func() tea.Msg {
		return TargetChangedMsg{Target: target}
	}
}

func (p *ConfigPanel) startEdit() {
	p.editMode = true
	p.cursor = len(p.values[p.active])
}

func (p *ConfigPanel) nextField() {
	p.active = ConfigField((int(p.active) + 1) % len(fieldLabels))
	p.cursor = len(p.values[p.active])
}

func (p *ConfigPanel) prevField() {
	p.active = ConfigField((int(p.active) - 1 + len(fieldLabels)) % len(fieldLabels))
	p.cursor = len(p.values[p.active])
}

// View renders the component.
func (p *ConfigPanel) View() string {
	if p.width == 0 || p.height == 0 {
		return ""
	}

	innerWidth := p.width - 2
	if innerWidth < 1 {
		innerWidth = 1
	}

	title := tui.RenderTitle(p.title, innerWidth, p.focused)

	labelStyle := lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("252"))
	activeLabelStyle := lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("214"))
	valueStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("245"))
	editStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("252"))
	hintStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("243"))

	var lines []string
	for i, label := range fieldLabels {
		field := ConfigField(i)
		marker := "  "
		style := labelStyle
		if p.focused && field == p.active {
			marker = "> "
			style = activeLabelStyle
		}

		display := p.values[i]
		if field == FieldToken && !p.editMode && display != "" {
			display = strings.Repeat("*", len(display))
		}
		vStyle := valueStyle
		if p.editMode && field == p.active {
			vStyle = editStyle
			if p.cursor >= len(display) {
				display += "█"
			} else {
				display = display[:p.cursor] + "█" + display[p.cursor:]
			}
		}

		line := fmt.Sprintf("%s%s %s", marker, style.Render(tui.PadRight(label+":", 12)), vStyle.Render(tui.Truncate(display, innerWidth-16)))
		lines = append(lines, line)
	}

	hint := hintStyle.Render("  [j/k: field, i/Enter: edit]")
	if p.editMode {
		hint = hintStyle.Render("  [Esc: done, Enter: next field]")
	}

	content := title + "\n" + strings.Join(lines, "\n") + "\n" + hint
	return tui.RenderBorder(content, p.focused)
}

// Title returns the component title.
func (p *ConfigPanel) Title() string {
	return p.title
}

// Focused returns true if focused.
func (p *ConfigPanel) Focused() bool {
	return p.focused
}

// Focus sets the component as focused.
func (p *ConfigPanel) Focus() {
	p.focused = true
}

// Blur removes focus.
func (p *ConfigPanel) Blur() {
	p.focused = false
	p.editMode = false
}

// SetSize sets dimensions.
func (p *ConfigPanel) SetSize(width, height int) {
	p.width = width
	p.height = height
}

// Width returns the width.
func (p *ConfigPanel) Width() int {
	return p.width
}

// Height returns the height.
func (p *ConfigPanel) Height() int {
	return p.height
}

// ActiveField returns the currently selected field.
func (p *ConfigPanel) ActiveField() ConfigField {
	return p.active
}

// IsEditing returns true when a field is being edited.
func (p *ConfigPanel) IsEditing() bool {
	return p.editMode
}
