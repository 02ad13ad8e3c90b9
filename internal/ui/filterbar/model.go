package filterbar

import (
	"strings"

	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/nhle/kanban/internal/keys"
	"github.com/nhle/kanban/internal/model"
	"github.com/nhle/kanban/internal/theme"
)

// Option is one selectable value of a filter dimension.
type Option struct {
	Value string
	Label string
}

// Model is the one-line filter bar. Each dimension cycles through "all" and
// then its options.
type Model struct {
	keys       *keys.KeyMap
	filters    model.FilterSet
	users      []model.User
	categories []string
	width      int
}

// New creates a filter bar with no active filters.
func New(keys *keys.KeyMap) Model {
	return Model{keys: keys}
}

// Filters returns the current selection.
func (m Model) Filters() model.FilterSet {
	return m.filters
}

// SetUsers sets the assignee options.
func (m *Model) SetUsers(users []model.User) {
	m.users = users
}

// SetCategories sets the category options. A selected category that no longer
// exists stays selected.
func (m *Model) SetCategories(categories []string) {
	m.categories = categories
}

// SetWidth updates the bar width.
func (m *Model) SetWidth(w int) {
	m.width = w
}

// Options returns the values d can cycle through, excluding "all".
func (m Model) Options(d model.FilterDimension) []Option {
	var opts []Option
	switch d {
	case model.FilterPriority:
		for _, p := range model.Priorities {
			opts = append(opts, Option{Value: string(p), Label: p.Label()})
		}
	case model.FilterType:
		for _, t := range model.Types {
			opts = append(opts, Option{Value: string(t), Label: t.Label()})
		}
	case model.FilterAssignee:
		for _, u := range m.users {
			opts = append(opts, Option{Value: u.ID, Label: u.Name})
		}
	case model.FilterCategory:
		for _, c := range m.categories {
			opts = append(opts, Option{Value: c, Label: c})
		}
	}
	return opts
}

// Cycle advances d to its next option, wrapping back to "all".
func (m *Model) Cycle(d model.FilterDimension) {
	opts := m.Options(d)
	current := m.filters.Get(d)
	next := ""
	if current == "" {
		if len(opts) > 0 {
			next = opts[0].Value
		}
	} else {
		for i, o := range opts {
			if o.Value == current && i+1 < len(opts) {
				next = opts[i+1].Value
				break
			}
		}
	}
	m.filters = m.filters.With(d, next)
}

// Clear resets every dimension.
func (m *Model) Clear() {
	m.filters = model.FilterSet{}
}

// Update handles the filter keys. It reports whether the selection changed
// through the second return value.
func (m Model) Update(msg tea.Msg) (Model, bool) {
	keyMsg, ok := msg.(tea.KeyMsg)
	if !ok {
		return m, false
	}
	before := m.filters
	switch {
	case key.Matches(keyMsg, m.keys.FilterPriority):
		m.Cycle(model.FilterPriority)
	case key.Matches(keyMsg, m.keys.FilterType):
		m.Cycle(model.FilterType)
	case key.Matches(keyMsg, m.keys.FilterAssignee):
		m.Cycle(model.FilterAssignee)
	case key.Matches(keyMsg, m.keys.FilterCategory):
		m.Cycle(model.FilterCategory)
	case key.Matches(keyMsg, m.keys.ClearFilters):
		m.Clear()
	}
	return m, m.filters != before
}

// View renders the bar.
func (m Model) View() string {
	names := map[model.FilterDimension]string{
		model.FilterPriority: "priority",
		model.FilterType:     "type",
		model.FilterAssignee: "assignee",
		model.FilterCategory: "category",
	}
	parts := make([]string, 0, len(model.FilterDimensions)+1)
	for i, d := range model.FilterDimensions {
		label := "all"
		active := false
		if v := m.filters.Get(d); v != "" {
			label = m.label(d, v)
			active = true
		}
		style := theme.HelpStyle
		if active {
			style = lipgloss.NewStyle().Bold(true).Foreground(theme.ColorBlue)
		}
		parts = append(parts, style.Render(keyHint(i+1)+" "+names[d]+": "+label))
	}
	if m.filters.Active() {
		parts = append(parts, theme.HelpStyle.Render("0 clear all"))
	}
	return lipgloss.NewStyle().
		Width(m.width).
		Padding(0, 1).
		Render(strings.Join(parts, "  "))
}

func (m Model) label(d model.FilterDimension, value string) string {
	for _, o := range m.Options(d) {
		if o.Value == value {
			return o.Label
		}
	}
	return value
}

func keyHint(n int) string {
	return "[" + string(rune('0'+n)) + "]"
}
