package help

import (
	"strings"

	"github.com/charmbracelet/bubbles/help"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/nhle/kanban/internal/keys"
	"github.com/nhle/kanban/internal/model"
	"github.com/nhle/kanban/internal/theme"
)

const dragHint = "Grab a card with space, carry it with h/l and j/k, drop it with space. esc puts it back."

const sortHint = "Cards are sorted by priority, then by creation time. A trailing … marks a move that is still being saved."

// Model is the keyboard reference shown over the board.
type Model struct {
	keys   *keys.KeyMap
	help   help.Model
	width  int
	height int
}

// New creates a help view for keys.
func New(keys *keys.KeyMap, width, height int) Model {
	h := help.New()
	h.Width = width
	h.ShowAll = true
	return Model{
		keys:   keys,
		help:   h,
		width:  width,
		height: height,
	}
}

// Update is a no-op; the parent decides when the help closes.
func (m Model) Update(msg tea.Msg) (Model, tea.Cmd) {
	return m, nil
}

// ShortView renders the one-line key hints used in the status bar.
func (m Model) ShortView() string {
	h := m.help
	h.ShowAll = false
	return h.View(m.keys)
}

// View renders the key reference followed by the column and priority legend.
func (m Model) View() string {
	heading := lipgloss.NewStyle().Bold(true).Foreground(theme.ColorWhite)

	content := lipgloss.JoinVertical(lipgloss.Left,
		heading.MarginBottom(1).Render("Keyboard Shortcuts"),
		m.help.View(m.keys),
		"",
		theme.HelpStyle.Render(dragHint),
		"",
		heading.Render("Columns"),
		columnLegend(),
		"",
		heading.Render("Priorities"),
		priorityLegend(),
		theme.HelpStyle.Render(sortHint),
	)

	return theme.DetailPanelStyle.
		Width(max(m.width-4, 0)).
		Height(max(m.height-4, 0)).
		Render(content)
}

// SetSize updates the help view dimensions.
func (m *Model) SetSize(width, height int) {
	m.width = width
	m.height = height
	m.help.Width = width - 4
}

func columnLegend() string {
	parts := make([]string, len(model.Columns))
	for i, s := range model.Columns {
		parts[i] = lipgloss.NewStyle().Foreground(theme.ColumnColor(s)).Render("■ " + s.Label())
	}
	return strings.Join(parts, "   ")
}

func priorityLegend() string {
	parts := make([]string, len(model.Priorities))
	for i, p := range model.Priorities {
		parts[i] = theme.PriorityStyle(p).Render(p.Label())
	}
	return strings.Join(parts, " > ")
}
