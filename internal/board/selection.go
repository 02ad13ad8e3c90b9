package board

import (
	"strings"

	"github.com/nhle/kanban/internal/model"
)

// Draft is the uncommitted edit state of an open detail view.
type Draft struct {
	Title       string
	Description string
	Priority    model.Priority
	AssigneeID  string
}

// DraftFrom seeds a draft with the task's current values.
func DraftFrom(t model.Task) Draft {
	return Draft{
		Title:       t.Title,
		Description: t.Description,
		Priority:    t.Priority,
		AssigneeID:  t.Assignee(),
	}
}

// Patch returns the save payload. It always carries all four editable
// fields; an empty assignee unassigns.
func (d Draft) Patch() model.TaskPatch {
	title := strings.TrimSpace(d.Title)
	desc := d.Description
	prio := d.Priority
	p := model.TaskPatch{
		Title:       &title,
		Description: &desc,
		Priority:    &prio,
		SetAssignee: true,
	}
	if d.AssigneeID != "" {
		a := d.AssigneeID
		p.AssigneeID = &a
	}
	return p
}

// Selection pins an open detail view to one task id and keeps its displayed
// fields current as snapshots arrive.
type Selection struct {
	id      string
	task    model.Task
	open    bool
	removed bool

	// Draft belongs to the view. Sync never touches it.
	Draft Draft
}

// Open starts showing t and seeds the draft from it.
func (s *Selection) Open(t model.Task) {
	s.id = t.ID
	s.task = t
	s.open = true
	s.removed = false
	s.Draft = DraftFrom(t)
}

// Sync refreshes the displayed fields from store. When the task is gone the
// last known values stay and Removed starts reporting true; the selection is
// not closed. It reports whether anything visible changed.
func (s *Selection) Sync(store *Store) bool {
	if !s.open {
		return false
	}
	t, ok := store.Get(s.id)
	if !ok {
		changed := !s.removed
		s.removed = true
		return changed
	}
	changed := s.removed || !sameTask(s.task, t)
	s.task = t
	s.removed = false
	return changed
}

// Close ends the selection and discards the draft.
func (s *Selection) Close() {
	*s = Selection{}
}

// Active reports whether a task is selected.
func (s *Selection) Active() bool { return s.open }

// ID returns the selected task id.
func (s *Selection) ID() string { return s.id }

// Task returns the latest known values of the selected task.
func (s *Selection) Task() model.Task { return s.task }

// Removed reports whether the selected task has disappeared from the store.
func (s *Selection) Removed() bool { return s.removed }

func sameTask(a, b model.Task) bool {
	return a.Title == b.Title && a.Description == b.Description &&
		a.Type == b.Type && a.Priority == b.Priority &&
		a.Category == b.Category && a.Assignee() == b.Assignee() &&
		a.Status == b.Status && a.Order == b.Order
}
