package createform

import (
	"fmt"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/huh"
	"github.com/charmbracelet/lipgloss"

	"github.com/nhle/kanban/internal/model"
	"github.com/nhle/kanban/internal/theme"
)

// CreateRequestMsg is dispatched when the form is submitted.
type CreateRequestMsg struct {
	Title       string
	Description string
	Type        model.TaskType
	Priority    model.Priority
	Category    string
	AssigneeID  string
}

// CancelMsg is dispatched when the user abandons the form.
type CancelMsg struct{}

// formBindings holds form field values on the heap so that huh's Value()
// pointers remain valid across Bubble Tea model copies.
type formBindings struct {
	title       string
	description string
	typ         model.TaskType
	priority    model.Priority
	category    string
	assigneeID  string
}

// Model is the Bubble Tea model for the new-task form.
type Model struct {
	form       *huh.Form
	fb         *formBindings
	users      []model.User
	categories []string
	saving     bool
	width      int
	height     int
}

// New creates a new create form model.
func New(width, height int) Model {
	return Model{
		fb:     &formBindings{},
		width:  width,
		height: height,
	}
}

// SetOptions sets the users offered as assignees and the known categories
// shown as suggestions.
func (m *Model) SetOptions(users []model.User, categories []string) {
	m.users = users
	m.categories = categories
}

// Start resets the form to its defaults.
func (m *Model) Start() tea.Cmd {
	*m.fb = formBindings{
		typ:      model.TypeFE,
		priority: model.PriorityLow,
		category: model.DefaultCategory,
	}
	m.saving = false
	m.form = m.buildForm()
	return m.form.Init()
}

// Saving reports whether a submitted task is still being written.
func (m Model) Saving() bool {
	return m.saving
}

// Done is called with the outcome of the create call. On failure the form
// comes back with the values that were entered.
func (m *Model) Done(err error) tea.Cmd {
	m.saving = false
	if err == nil {
		m.form = nil
		return nil
	}
	m.form = m.buildForm()
	return m.form.Init()
}

// Update handles messages for the create form.
func (m Model) Update(msg tea.Msg) (Model, tea.Cmd) {
	if m.form == nil || m.saving {
		return m, nil
	}

	mdl, cmd := m.form.Update(msg)
	if f, ok := mdl.(*huh.Form); ok {
		m.form = f
	}

	if m.form.State == huh.StateCompleted {
		return m, m.handleSubmit()
	}
	if m.form.State == huh.StateAborted {
		m.form = nil
		return m, func() tea.Msg { return CancelMsg{} }
	}

	return m, cmd
}

// View renders the create form.
func (m Model) View() string {
	titleStyle := lipgloss.NewStyle().
		Bold(true).
		Foreground(theme.ColorWhite).
		MarginBottom(1)

	content := titleStyle.Render("New Task") + "\n"
	switch {
	case m.saving:
		content += theme.HelpStyle.Render("Creating task...")
	case m.form != nil:
		content += m.form.View()
	}

	return theme.DetailPanelStyle.
		Width(max(m.width-4, 0)).
		Render(content)
}

// SetSize updates the form dimensions.
func (m *Model) SetSize(width, height int) {
	m.width = width
	m.height = height
	if m.form != nil {
		m.form = m.form.WithWidth(m.formWidth()).WithHeight(m.formHeight())
	}
}

func (m *Model) buildForm() *huh.Form {
	return huh.NewForm(
		huh.NewGroup(
			huh.NewInput().
				Title("Title").
				Placeholder("What needs to be done?").
				Value(&m.fb.title).
				Validate(validateRequired("Title")),
			huh.NewText().
				Title("Description").
				Placeholder("Optional details...").
				Value(&m.fb.description),
			huh.NewSelect[model.TaskType]().
				Title("Type").
				Options(typeOptions()...).
				Value(&m.fb.typ),
			huh.NewSelect[model.Priority]().
				Title("Priority").
				Options(priorityOptions()...).
				Value(&m.fb.priority),
			huh.NewInput().
				Title("Category").
				Suggestions(m.categories).
				Value(&m.fb.category),
			huh.NewSelect[string]().
				Title("Assignee").
				Options(AssigneeOptions(m.users)...).
				Value(&m.fb.assigneeID),
		),
	).WithWidth(m.formWidth()).WithHeight(m.formHeight())
}

func (m *Model) handleSubmit() tea.Cmd {
	if strings.TrimSpace(m.fb.title) == "" {
		m.form = m.buildForm()
		return m.form.Init()
	}
	m.saving = true
	req := CreateRequestMsg{
		Title:       m.fb.title,
		Description: m.fb.description,
		Type:        m.fb.typ,
		Priority:    m.fb.priority,
		Category:    m.fb.category,
		AssigneeID:  m.fb.assigneeID,
	}
	return func() tea.Msg { return req }
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

func (m Model) formHeight() int {
	h := m.height - 6
	if h < 10 {
		h = 10
	}
	return h
}

// AssigneeOptions lists the users with an explicit "Unassigned" first.
func AssigneeOptions(users []model.User) []huh.Option[string] {
	opts := []huh.Option[string]{huh.NewOption("Unassigned", "")}
	for _, u := range users {
		opts = append(opts, huh.NewOption(u.Name, u.ID))
	}
	return opts
}

func priorityOptions() []huh.Option[model.Priority] {
	opts := make([]huh.Option[model.Priority], len(model.Priorities))
	for i, p := range model.Priorities {
		opts[i] = huh.NewOption(p.Label(), p)
	}
	return opts
}

func typeOptions() []huh.Option[model.TaskType] {
	opts := make([]huh.Option[model.TaskType], len(model.Types))
	for i, t := range model.Types {
		opts[i] = huh.NewOption(t.Label(), t)
	}
	return opts
}

func validateRequired(fieldName string) func(string) error {
	return func(s string) error {
		if strings.TrimSpace(s) == "" {
			return fmt.Errorf("%s is required", fieldName)
		}
		return nil
	}
}
