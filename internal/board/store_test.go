package board

import (
	"errors"
	"testing"

	"github.com/nhle/kanban/internal/model"
)

func task(id string, status model.Status) model.Task {
	return model.Task{ID: id, Title: id, Status: status, Priority: model.PriorityMedium}
}

func mustGet(t *testing.T, s *Store, id string) model.Task {
	t.Helper()
	got, ok := s.Get(id)
	if !ok {
		t.Fatalf("task %s not in store", id)
	}
	return got
}

func TestReplaceIsFullReplace(t *testing.T) {
	s := NewStore()
	s.Replace([]model.Task{task("a", model.StatusTodo), task("b", model.StatusTodo)})
	s.Replace([]model.Task{task("b", model.StatusDone), task("c", model.StatusBacklog)})

	if s.Len() != 2 {
		t.Fatalf("expected 2 tasks, got %d", s.Len())
	}
	if _, ok := s.Get("a"); ok {
		t.Fatal("task a from the first snapshot must be gone")
	}
	if got := mustGet(t, s, "b").Status; got != model.StatusDone {
		t.Fatalf("b status = %q", got)
	}
	ids := []string{s.Tasks()[0].ID, s.Tasks()[1].ID}
	if ids[0] != "b" || ids[1] != "c" {
		t.Fatalf("snapshot order not kept: %v", ids)
	}
}

func TestReplaceBumpsVersion(t *testing.T) {
	s := NewStore()
	v0 := s.Version()
	s.Replace(nil)
	if s.Version() <= v0 {
		t.Fatal("Replace must bump the version")
	}
	if !s.Loaded() {
		t.Fatal("store should be loaded after the first snapshot")
	}
}

func TestApplyLocalIsVisibleImmediately(t *testing.T) {
	s := NewStore()
	s.Replace([]model.Task{task("a", model.StatusTodo)})

	seq, ok := s.ApplyLocal("a", model.StatusDone)
	if !ok || seq == 0 {
		t.Fatalf("ApplyLocal: seq=%d ok=%v", seq, ok)
	}
	if got := mustGet(t, s, "a").Status; got != model.StatusDone {
		t.Fatalf("status = %q, want done", got)
	}
	if !s.Pending("a") {
		t.Fatal("task should be pending")
	}
}

func TestApplyLocalUnknownTask(t *testing.T) {
	s := NewStore()
	s.Replace([]model.Task{task("a", model.StatusTodo)})
	v := s.Version()

	if _, ok := s.ApplyLocal("ghost", model.StatusDone); ok {
		t.Fatal("ApplyLocal on an absent task must report false")
	}
	if s.Version() != v || s.Pending("ghost") {
		t.Fatal("ApplyLocal on an absent task must not change the store")
	}
}

func TestInFlightOverlaySurvivesStaleSnapshot(t *testing.T) {
	s := NewStore()
	s.Replace([]model.Task{task("a", model.StatusTodo), task("b", model.StatusTodo)})
	s.ApplyLocal("a", model.StatusDone)

	// Another client edits b before our write lands.
	s.Replace([]model.Task{task("a", model.StatusTodo), task("b", model.StatusBacklog)})

	if got := mustGet(t, s, "a").Status; got != model.StatusDone {
		t.Fatalf("pending status overwritten by stale snapshot: %q", got)
	}
	if got := mustGet(t, s, "b").Status; got != model.StatusBacklog {
		t.Fatalf("remote change to b lost: %q", got)
	}
}

func TestConfirmingSnapshotClearsOverlay(t *testing.T) {
	s := NewStore()
	s.Replace([]model.Task{task("a", model.StatusTodo)})
	s.ApplyLocal("a", model.StatusDone)

	s.Replace([]model.Task{task("a", model.StatusDone)})
	if s.Pending("a") {
		t.Fatal("confirmed overlay should be dropped")
	}

	// A later remote move wins normally.
	s.Replace([]model.Task{task("a", model.StatusBacklog)})
	if got := mustGet(t, s, "a").Status; got != model.StatusBacklog {
		t.Fatalf("status = %q", got)
	}
}

func TestSettledWriteMakesSnapshotAuthoritative(t *testing.T) {
	s := NewStore()
	s.Replace([]model.Task{task("a", model.StatusTodo)})
	seq, _ := s.ApplyLocal("a", model.StatusDone)

	s.Settle("a", seq, nil)
	if got := mustGet(t, s, "a").Status; got != model.StatusDone {
		t.Fatalf("successful settle must keep the local status until a snapshot, got %q", got)
	}

	// Someone else moved it after our write.
	s.Replace([]model.Task{task("a", model.StatusInProgress)})
	if got := mustGet(t, s, "a").Status; got != model.StatusInProgress {
		t.Fatalf("status = %q, want in-progress", got)
	}
	if s.Pending("a") {
		t.Fatal("overlay should be gone")
	}
}

func TestFailedWriteReverts(t *testing.T) {
	s := NewStore()
	s.Replace([]model.Task{task("a", model.StatusTodo)})
	seq, _ := s.ApplyLocal("a", model.StatusDone)

	s.Settle("a", seq, errors.New("permission denied"))

	if got := mustGet(t, s, "a").Status; got != model.StatusTodo {
		t.Fatalf("status = %q, want the persisted todo", got)
	}
	if s.Pending("a") {
		t.Fatal("failed overlay should be dropped")
	}
}

func TestSettleIgnoresSupersededWrite(t *testing.T) {
	s := NewStore()
	s.Replace([]model.Task{task("a", model.StatusTodo)})
	first, _ := s.ApplyLocal("a", model.StatusInProgress)
	s.ApplyLocal("a", model.StatusDone)

	s.Settle("a", first, errors.New("timeout"))

	if got := mustGet(t, s, "a").Status; got != model.StatusDone {
		t.Fatalf("older failure must not undo the newer move, got %q", got)
	}
	if !s.Pending("a") {
		t.Fatal("newer overlay should still be pending")
	}
}

func TestDeletedTaskDropsOverlay(t *testing.T) {
	s := NewStore()
	s.Replace([]model.Task{task("a", model.StatusTodo)})
	s.ApplyLocal("a", model.StatusDone)

	s.Replace(nil)
	if s.Pending("a") || s.Len() != 0 {
		t.Fatal("deleted task must leave no overlay behind")
	}
}

func TestReplaceCopiesSnapshot(t *testing.T) {
	s := NewStore()
	snap := []model.Task{task("a", model.StatusTodo)}
	s.Replace(snap)
	snap[0].Status = model.StatusDone

	if got := mustGet(t, s, "a").Status; got != model.StatusTodo {
		t.Fatal("store must not alias the caller's slice")
	}
}
