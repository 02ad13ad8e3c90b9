package detail

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/huh"
	"github.com/charmbracelet/lipgloss"

	"github.com/nhle/kanban/internal/board"
	"github.com/nhle/kanban/internal/keys"
	"github.com/nhle/kanban/internal/model"
	"github.com/nhle/kanban/internal/theme"
	"github.com/nhle/kanban/internal/ui/createform"
)

// BackMsg signals the parent to close the detail view.
type BackMsg struct{}

// SaveRequestMsg asks the parent to write the draft.
type SaveRequestMsg struct {
	ID    string
	Patch model.TaskPatch
}

// DeleteRequestMsg asks the parent to delete the task.
type DeleteRequestMsg struct {
	ID string
}

type state int

const (
	stateEditing state = iota
	stateConfirmDelete
	stateSaving
	stateDeleting
)

// Model is the task detail view. The fields it edits live in the
// selection's draft, which sits on the heap so huh's Value() pointers stay
// valid across model copies.
type Model struct {
	sel    *board.Selection
	form   *huh.Form
	keys   *keys.KeyMap
	users  []model.User
	state  state
	width  int
	height int
}

// New creates a detail view editing sel.
func New(sel *board.Selection, keys *keys.KeyMap, width, height int) Model {
	return Model{
		sel:    sel,
		keys:   keys,
		width:  width,
		height: height,
	}
}

// SetUsers sets the assignee options.
func (m *Model) SetUsers(users []model.User) {
	m.users = users
}

// Start builds the form for the current selection.
func (m *Model) Start() tea.Cmd {
	m.state = stateEditing
	m.form = m.buildForm()
	return m.form.Init()
}

// Busy reports whether a save or delete is in flight.
func (m Model) Busy() bool {
	return m.state == stateSaving || m.state == stateDeleting
}

// Done is called with the outcome of a save or delete. Only failures reach
// it; on success the parent closes the view. The draft is kept so the user
// can try again.
func (m *Model) Done(err error) tea.Cmd {
	if err == nil {
		return nil
	}
	return m.Start()
}

// Update handles messages for the detail view.
func (m Model) Update(msg tea.Msg) (Model, tea.Cmd) {
	if !m.sel.Active() {
		return m, nil
	}
	if keyMsg, ok := msg.(tea.KeyMsg); ok {
		switch m.state {
		case stateSaving, stateDeleting:
			return m, nil
		case stateConfirmDelete:
			return m.updateConfirm(keyMsg)
		}

		switch {
		case key.Matches(keyMsg, m.keys.Cancel):
			return m, func() tea.Msg { return BackMsg{} }
		case key.Matches(keyMsg, m.keys.Delete):
			m.state = stateConfirmDelete
			return m, nil
		case key.Matches(keyMsg, m.keys.Save):
			return m, m.save()
		}
	}

	if m.form == nil || m.state != stateEditing {
		return m, nil
	}
	mdl, cmd := m.form.Update(msg)
	if f, ok := mdl.(*huh.Form); ok {
		m.form = f
	}
	switch m.form.State {
	case huh.StateCompleted:
		return m, m.save()
	case huh.StateAborted:
		return m, func() tea.Msg { return BackMsg{} }
	}
	return m, cmd
}

func (m Model) updateConfirm(msg tea.KeyMsg) (Model, tea.Cmd) {
	switch msg.String() {
	case "y", "enter":
		m.state = stateDeleting
		id := m.sel.ID()
		return m, func() tea.Msg { return DeleteRequestMsg{ID: id} }
	case "n", "esc":
		m.state = stateEditing
	}
	return m, nil
}

// save emits the save request unless the task is gone or the title is blank.
func (m *Model) save() tea.Cmd {
	if m.sel.Removed() {
		if m.form != nil && m.form.State != huh.StateNormal {
			return m.Start()
		}
		return nil
	}
	if strings.TrimSpace(m.sel.Draft.Title) == "" {
		return m.Start()
	}
	m.state = stateSaving
	req := SaveRequestMsg{ID: m.sel.ID(), Patch: m.sel.Draft.Patch()}
	return func() tea.Msg { return req }
}

// View renders the detail panel.
func (m Model) View() string {
	if !m.sel.Active() {
		return ""
	}
	t := m.sel.Task()

	var sections []string
	titleStyle := lipgloss.NewStyle().Bold(true).Foreground(theme.ColorWhite)
	sections = append(sections, titleStyle.Render("Task Details"))

	if m.sel.Removed() {
		sections = append(sections, theme.BannerStyle.Render(
			"This task was deleted by someone else. Changes can no longer be saved."))
	}

	metaStyle := lipgloss.NewStyle().Foreground(theme.ColorGray)
	badges := lipgloss.JoinHorizontal(lipgloss.Top,
		metaStyle.Render(t.Category),
		"  ",
		theme.TypeBadgeStyle(t.Type).Render(t.Type.Label()),
		"  ",
		lipgloss.NewStyle().Foreground(theme.ColumnColor(t.Status)).Render(t.Status.Label()),
		"  ",
		m.assigneeBadge(t),
	)
	sections = append(sections, badges, "")

	switch m.state {
	case stateSaving:
		sections = append(sections, theme.HelpStyle.Render("Saving..."))
	case stateDeleting:
		sections = append(sections, theme.HelpStyle.Render("Deleting..."))
	default:
		if m.form != nil {
			sections = append(sections, m.form.View())
		}
	}

	if m.state == stateConfirmDelete {
		sections = append(sections, "",
			theme.ErrorStyle.Render("Delete this task? This cannot be undone."),
			theme.HelpStyle.Render("y confirm • n cancel"))
	} else if m.state == stateEditing {
		hints := "ctrl+s save • ctrl+d delete • esc close"
		if m.sel.Removed() {
			hints = "esc close"
		}
		sections = append(sections, "", theme.HelpStyle.Render(hints))
	}

	return theme.DetailPanelStyle.
		Width(max(m.width-4, 0)).
		Render(lipgloss.JoinVertical(lipgloss.Left, sections...))
}

func (m Model) assigneeBadge(t model.Task) string {
	id := t.Assignee()
	if id == "" {
		return lipgloss.NewStyle().Foreground(theme.ColorGray).Render("Unassigned")
	}
	u, ok := model.UserByID(m.users, id)
	name := id
	if ok {
		name = u.Name
	}
	return fmt.Sprintf("%s %s", theme.Avatar(u, ok), name)
}

// SetSize updates the detail view dimensions.
func (m *Model) SetSize(width, height int) {
	m.width = width
	m.height = height
	if m.form != nil {
		m.form = m.form.WithWidth(m.formWidth())
	}
}

func (m *Model) buildForm() *huh.Form {
	d := &m.sel.Draft
	return huh.NewForm(
		huh.NewGroup(
			huh.NewInput().
				Title("Title").
				Value(&d.Title).
				Validate(func(s string) error {
					if strings.TrimSpace(s) == "" {
						return model.ErrEmptyTitle
					}
					return nil
				}),
			huh.NewText().
				Title("Description").
				Placeholder("Add instructions, notes or context...").
				Value(&d.Description),
			huh.NewSelect[model.Priority]().
				Title("Priority").
				Options(priorityOptions(d.Priority)...).
				Value(&d.Priority),
			huh.NewSelect[string]().
				Title("Assignee").
				Options(m.assigneeOptions(d.AssigneeID)...).
				Value(&d.AssigneeID),
		),
	).WithWidth(m.formWidth()).WithShowHelp(false)
}

// assigneeOptions keeps an assignee that is missing from the user list
// selectable so opening the form does not silently unassign it.
func (m Model) assigneeOptions(current string) []huh.Option[string] {
	opts := createform.AssigneeOptions(m.users)
	if current == "" {
		return opts
	}
	if _, ok := model.UserByID(m.users, current); !ok {
		opts = append(opts, huh.NewOption(current, current))
	}
	return opts
}

func (m Model) formWidth() int {
	w := m.width - 8
	if w < 40 {
		w = 40
	}
	if w > 100 {
		w = 100
	}
	return w
}

// priorityOptions lists the known priorities, plus current when a task
// carries one the board does not know.
func priorityOptions(current model.Priority) []huh.Option[model.Priority] {
	opts := make([]huh.Option[model.Priority], 0, len(model.Priorities)+1)
	known := false
	for _, p := range model.Priorities {
		opts = append(opts, huh.NewOption(p.Label(), p))
		if p == current {
			known = true
		}
	}
	if !known && current != "" {
		opts = append(opts, huh.NewOption(string(current), current))
	}
	return opts
}
