package boardview

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/nhle/kanban/internal/board"
	"github.com/nhle/kanban/internal/keys"
	"github.com/nhle/kanban/internal/model"
	"github.com/nhle/kanban/internal/theme"
)

// cardHeight is the number of lines a card takes, including its spacer.
const cardHeight = 3

// OpenTaskMsg is dispatched when the user opens the card under the cursor.
type OpenTaskMsg struct {
	Task model.Task
}

// DropMsg is dispatched when a carried card is released. A cancelled grab is
// reported with a nil destination.
type DropMsg struct {
	Result board.DragResult
}

// NewTaskMsg is dispatched when the user asks for the create form.
type NewTaskMsg struct{}

type grab struct {
	taskID string
	source board.Position
	col    int
	index  int
}

// Model renders the four columns and owns the keyboard cursor and the
// grab-and-drop gesture.
type Model struct {
	keys    *keys.KeyMap
	store   *board.Store
	filters model.FilterSet
	users   []model.User

	col  int
	rows [4]int
	grab *grab

	width  int
	height int
}

// New creates a board view reading from store.
func New(keys *keys.KeyMap, store *board.Store, width, height int) Model {
	return Model{
		keys:   keys,
		store:  store,
		width:  width,
		height: height,
	}
}

// SetFilters changes the active filters and keeps the cursor in range.
func (m *Model) SetFilters(f model.FilterSet) {
	m.filters = f
	m.clamp()
}

// SetUsers sets the users shown as card avatars.
func (m *Model) SetUsers(users []model.User) {
	m.users = users
}

// SetSize updates the view dimensions.
func (m *Model) SetSize(width, height int) {
	m.width = width
	m.height = height
}

// Grabbing reports whether a card is being carried.
func (m Model) Grabbing() bool {
	return m.grab != nil
}

// Cursor returns the focused column and row.
func (m Model) Cursor() (model.Status, int) {
	return model.Columns[m.col], m.rows[m.col]
}

// Refresh keeps the cursor in range after the store changed. A carried card
// that disappeared from the store is dropped without a destination.
func (m *Model) Refresh() tea.Cmd {
	var cmd tea.Cmd
	if m.grab != nil {
		if _, ok := m.store.Get(m.grab.taskID); !ok {
			cmd = m.release(nil)
		}
	}
	m.clamp()
	return cmd
}

// Column returns the visible tasks of column i.
func (m Model) Column(i int) []model.Task {
	return board.ColumnTasks(m.store.Tasks(), m.filters, model.Columns[i])
}

// Selected returns the task under the cursor.
func (m Model) Selected() (model.Task, bool) {
	tasks := m.Column(m.col)
	row := m.rows[m.col]
	if row < 0 || row >= len(tasks) {
		return model.Task{}, false
	}
	return tasks[row], true
}

// Update handles navigation and the grab gesture.
func (m Model) Update(msg tea.Msg) (Model, tea.Cmd) {
	keyMsg, ok := msg.(tea.KeyMsg)
	if !ok {
		return m, nil
	}
	if m.grab != nil {
		return m.updateGrab(keyMsg)
	}

	switch {
	case key.Matches(keyMsg, m.keys.Left):
		if m.col > 0 {
			m.col--
		}
		m.clamp()
	case key.Matches(keyMsg, m.keys.Right):
		if m.col < len(model.Columns)-1 {
			m.col++
		}
		m.clamp()
	case key.Matches(keyMsg, m.keys.Up):
		if m.rows[m.col] > 0 {
			m.rows[m.col]--
		}
	case key.Matches(keyMsg, m.keys.Down):
		if m.rows[m.col] < len(m.Column(m.col))-1 {
			m.rows[m.col]++
		}
	case key.Matches(keyMsg, m.keys.Grab):
		if t, ok := m.Selected(); ok {
			src := board.Position{Column: model.Columns[m.col], Index: m.rows[m.col]}
			m.grab = &grab{taskID: t.ID, source: src, col: m.col, index: src.Index}
		}
	case key.Matches(keyMsg, m.keys.Open):
		if t, ok := m.Selected(); ok {
			return m, func() tea.Msg { return OpenTaskMsg{Task: t} }
		}
	case key.Matches(keyMsg, m.keys.New):
		return m, func() tea.Msg { return NewTaskMsg{} }
	}
	return m, nil
}

func (m Model) updateGrab(msg tea.KeyMsg) (Model, tea.Cmd) {
	g := m.grab
	switch {
	case key.Matches(msg, m.keys.Left):
		if g.col > 0 {
			g.col--
			g.index = min(g.index, m.maxIndex(g.col))
		}
	case key.Matches(msg, m.keys.Right):
		if g.col < len(model.Columns)-1 {
			g.col++
			g.index = min(g.index, m.maxIndex(g.col))
		}
	case key.Matches(msg, m.keys.Up):
		if g.index > 0 {
			g.index--
		}
	case key.Matches(msg, m.keys.Down):
		if g.index < m.maxIndex(g.col) {
			g.index++
		}
	case key.Matches(msg, m.keys.Grab):
		dest := board.Position{Column: model.Columns[g.col], Index: g.index}
		m.col = g.col
		return m, m.release(&dest)
	case key.Matches(msg, m.keys.Cancel):
		return m, m.release(nil)
	}
	return m, nil
}

// release ends the gesture and reports it.
func (m *Model) release(dest *board.Position) tea.Cmd {
	g := m.grab
	m.grab = nil
	res := board.DragResult{TaskID: g.taskID, Source: g.source, Destination: dest}
	return func() tea.Msg { return DropMsg{Result: res} }
}

// Follow moves the cursor onto the task with id, if it is visible.
func (m *Model) Follow(id string) {
	for c := range model.Columns {
		for r, t := range m.Column(c) {
			if t.ID == id {
				m.col = c
				m.rows[c] = r
				return
			}
		}
	}
	m.clamp()
}

// maxIndex is the last slot the carried card may take in column c.
func (m Model) maxIndex(c int) int {
	n := len(m.Column(c))
	if model.Columns[c] == m.grab.source.Column {
		return max(n-1, 0)
	}
	return n
}

func (m *Model) clamp() {
	for c := range model.Columns {
		n := len(m.Column(c))
		if m.rows[c] >= n {
			m.rows[c] = max(n-1, 0)
		}
	}
}

// View renders the board.
func (m Model) View() string {
	if !m.store.Loaded() {
		return lipgloss.NewStyle().
			Width(m.width).
			Height(m.height).
			Padding(1, 2).
			Render(theme.HelpStyle.Render("Loading board..."))
	}

	colWidth := m.width / len(model.Columns)
	cols := make([]string, len(model.Columns))
	for i := range model.Columns {
		cols[i] = m.renderColumn(i, colWidth)
	}
	return lipgloss.JoinHorizontal(lipgloss.Top, cols...)
}

func (m Model) renderColumn(i, width int) string {
	status := model.Columns[i]
	tasks := m.Column(i)

	header := theme.ColumnHeaderStyle.
		Foreground(theme.ColumnColor(status)).
		Render(fmt.Sprintf("%s (%d)", status.Label(), len(tasks)))

	inner := max(width-4, 10)
	// Borders and header take three lines.
	visible := max((m.height-3)/cardHeight, 1)

	type slot struct {
		task    model.Task
		carried bool
	}
	var slots []slot
	for _, t := range tasks {
		if m.grab != nil && t.ID == m.grab.taskID {
			continue
		}
		slots = append(slots, slot{task: t})
	}
	if m.grab != nil && m.grab.col == i {
		if t, ok := m.store.Get(m.grab.taskID); ok {
			at := min(m.grab.index, len(slots))
			slots = append(slots[:at], append([]slot{{task: t, carried: true}}, slots[at:]...)...)
		}
	}

	cursor := -1
	switch {
	case m.grab != nil && m.grab.col == i:
		cursor = min(m.grab.index, len(slots)-1)
	case m.grab == nil && m.col == i:
		cursor = m.rows[i]
	}
	offset := 0
	if cursor >= visible {
		offset = cursor - visible + 1
	}

	lines := []string{header}
	for r := offset; r < len(slots) && r < offset+visible; r++ {
		s := slots[r]
		style := theme.CardStyle
		switch {
		case s.carried:
			style = theme.GrabbedCardStyle
		case r == cursor:
			style = theme.SelectedCardStyle
		}
		lines = append(lines, style.Width(inner).Render(m.renderCard(s.task, inner-2)))
	}
	if len(slots) == 0 {
		lines = append(lines, theme.HelpStyle.Render("No tasks"))
	}

	frame := theme.ColumnStyle
	if (m.grab == nil && m.col == i) || (m.grab != nil && m.grab.col == i) {
		frame = theme.FocusedColumnStyle
	}
	return frame.
		Width(max(width-2, 0)).
		Height(max(m.height-2, 0)).
		Render(strings.Join(lines, "\n"))
}

func (m Model) renderCard(t model.Task, width int) string {
	title := t.Title
	if m.store.Pending(t.ID) {
		title += " …"
	}
	title = truncate(title, width)

	badges := []string{
		theme.PriorityStyle(t.Priority).Render(t.Priority.Label()),
		theme.TypeBadgeStyle(t.Type).Render(t.Type.Label()),
	}
	if id := t.Assignee(); id != "" {
		u, ok := model.UserByID(m.users, id)
		badges = append(badges, theme.Avatar(u, ok))
	}
	meta := lipgloss.JoinHorizontal(lipgloss.Top, badges...)
	return title + "\n" + meta + "\n"
}

func truncate(s string, width int) string {
	if width <= 1 || lipgloss.Width(s) <= width {
		return s
	}
	r := []rune(s)
	for len(r) > 0 && lipgloss.Width(string(r))+1 > width {
		r = r[:len(r)-1]
	}
	return string(r) + "…"
}
