package boardview

import (
	"strings"
	"testing"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/nhle/kanban/internal/board"
	"github.com/nhle/kanban/internal/keys"
	"github.com/nhle/kanban/internal/model"
	"github.com/nhle/kanban/internal/testutil"
)

func runes(s string) tea.KeyMsg {
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
}

var space = tea.KeyMsg{Type: tea.KeySpace, Runes: []rune{' '}}

func newTestView(t *testing.T) Model {
	t.Helper()
	s := board.NewStore()
	s.Replace(testutil.SampleTasks())
	return New(keys.DefaultKeyMap(), s, 120, 30)
}

func press(t *testing.T, m Model, msgs ...tea.KeyMsg) (Model, tea.Msg) {
	t.Helper()
	var cmd tea.Cmd
	for _, k := range msgs {
		m, cmd = m.Update(k)
	}
	if cmd == nil {
		return m, nil
	}
	return m, cmd()
}

func TestCursorStartsOnHighestPriority(t *testing.T) {
	m := newTestView(t)
	got, ok := m.Selected()
	if !ok || got.ID != "t2" {
		t.Fatalf("Selected = %+v, %v; want t2", got, ok)
	}
}

func TestGrabMoveDrop(t *testing.T) {
	m := newTestView(t)
	m, msg := press(t, m, space, runes("l"), space)

	drop, ok := msg.(DropMsg)
	if !ok {
		t.Fatalf("got %T, want DropMsg", msg)
	}
	r := drop.Result
	if r.TaskID != "t2" {
		t.Errorf("TaskID = %q", r.TaskID)
	}
	if r.Source != (board.Position{Column: model.StatusBacklog, Index: 0}) {
		t.Errorf("Source = %+v", r.Source)
	}
	if r.Destination == nil || r.Destination.Column != model.StatusTodo {
		t.Fatalf("Destination = %+v", r.Destination)
	}
	if m.Grabbing() {
		t.Error("still grabbing after drop")
	}
	if col, _ := m.Cursor(); col != model.StatusTodo {
		t.Errorf("cursor column = %s, want todo", col)
	}
}

func TestDropOnStartingSlot(t *testing.T) {
	m := newTestView(t)
	_, msg := press(t, m, space, space)

	r := msg.(DropMsg).Result
	if r.Destination == nil || *r.Destination != r.Source {
		t.Fatalf("Destination = %+v, want %+v", r.Destination, r.Source)
	}
}

func TestCancelGrabHasNoDestination(t *testing.T) {
	m := newTestView(t)
	m, msg := press(t, m, space, runes("l"), tea.KeyMsg{Type: tea.KeyEsc})

	if r := msg.(DropMsg).Result; r.Destination != nil {
		t.Fatalf("Destination = %+v, want nil", r.Destination)
	}
	if m.Grabbing() {
		t.Error("still grabbing after cancel")
	}
}

func TestGrabIndexIsClampedPerColumn(t *testing.T) {
	m := newTestView(t)
	// Carry t2 past the end of the todo column, which holds one card.
	_, msg := press(t, m, space, runes("l"), runes("j"), runes("j"), runes("j"), space)

	r := msg.(DropMsg).Result
	if r.Destination.Index != 1 {
		t.Fatalf("Destination.Index = %d, want 1", r.Destination.Index)
	}
}

func TestOpenSelected(t *testing.T) {
	m := newTestView(t)
	_, msg := press(t, m, runes("j"), tea.KeyMsg{Type: tea.KeyEnter})

	open, ok := msg.(OpenTaskMsg)
	if !ok || open.Task.ID != "t1" {
		t.Fatalf("got %#v, want OpenTaskMsg for t1", msg)
	}
}

func TestNewTaskKey(t *testing.T) {
	m := newTestView(t)
	if _, msg := press(t, m, runes("n")); msg != (NewTaskMsg{}) {
		t.Fatalf("got %#v", msg)
	}
}

func TestHeadersCountVisibleTasks(t *testing.T) {
	m := newTestView(t)
	m.SetFilters(model.FilterSet{Category: "auth"})

	view := m.View()
	for _, want := range []string{"Backlog (2)", "To Do (0)", "Done (0)"} {
		if !strings.Contains(view, want) {
			t.Errorf("view missing %q", want)
		}
	}
}

func TestRefreshCancelsGrabOfRemovedTask(t *testing.T) {
	m := newTestView(t)
	m, _ = press(t, m, space)

	m.store.Replace(testutil.SampleTasks()[2:])
	cmd := m.Refresh()
	if cmd == nil {
		t.Fatal("expected a release command")
	}
	if r := cmd().(DropMsg).Result; r.TaskID != "t2" || r.Destination != nil {
		t.Fatalf("Result = %+v", r)
	}
	if m.Grabbing() {
		t.Error("still grabbing")
	}
}

func TestLoadingBeforeFirstSnapshot(t *testing.T) {
	m := New(keys.DefaultKeyMap(), board.NewStore(), 80, 20)
	if !strings.Contains(m.View(), "Loading") {
		t.Fatal("expected loading placeholder")
	}
}
