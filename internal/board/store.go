// Package board holds the client-side state of a live kanban board: the
// reconciled task mirror, optimistic column moves, the per-column projection
// and the open-detail selection.
//
// Nothing here is safe for concurrent use. Every mutation happens on the
// bubbletea Update goroutine.
package board

import (
	"github.com/nhle/kanban/internal/model"
)

// overlay is a local status that has not yet been confirmed by a snapshot.
type overlay struct {
	status  model.Status
	seq     uint64
	settled bool
}

// Store mirrors the remote task collection. Each snapshot replaces the
// contents wholesale; only pending status overlays survive a replace.
type Store struct {
	base     []model.Task
	tasks    []model.Task
	index    map[string]int
	overlays map[string]overlay
	seq      uint64
	version  uint64
	loaded   bool
}

// NewStore returns an empty store.
func NewStore() *Store {
	return &Store{
		index:    make(map[string]int),
		overlays: make(map[string]overlay),
	}
}

// Replace installs a new snapshot.
//
// An overlay is kept only while its write is still in flight and the
// snapshot disagrees with it. It is dropped when the snapshot shows the
// local status (confirmed), when its write has settled (the snapshot is
// authoritative), or when the task is gone.
func (s *Store) Replace(snapshot []model.Task) {
	base := make([]model.Task, len(snapshot))
	copy(base, snapshot)
	s.base = base
	s.loaded = true

	present := make(map[string]model.Status, len(base))
	for _, t := range base {
		present[t.ID] = t.Status
	}
	for id, ov := range s.overlays {
		status, ok := present[id]
		if !ok || status == ov.status || ov.settled {
			delete(s.overlays, id)
		}
	}

	s.rebuild()
}

// ApplyLocal sets a task's status immediately and records it as pending.
// It returns the write sequence to pass to Settle, or ok == false when the
// task is not in the store.
func (s *Store) ApplyLocal(id string, status model.Status) (seq uint64, ok bool) {
	i, ok := s.index[id]
	if !ok {
		return 0, false
	}
	s.seq++
	s.overlays[id] = overlay{status: status, seq: s.seq}
	s.tasks[i].Status = status
	s.version++
	return s.seq, true
}

// Settle records the outcome of the write started by ApplyLocal. A failed
// write drops the overlay at once so the task shows its last persisted
// status again. Outcomes for a superseded sequence are ignored.
func (s *Store) Settle(id string, seq uint64, err error) {
	ov, ok := s.overlays[id]
	if !ok || ov.seq != seq {
		return
	}
	if err != nil {
		delete(s.overlays, id)
		s.rebuild()
		return
	}
	ov.settled = true
	s.overlays[id] = ov
}

// Pending reports whether id carries an unconfirmed local status.
func (s *Store) Pending(id string) bool {
	_, ok := s.overlays[id]
	return ok
}

// Tasks returns the current tasks in snapshot order. The slice is shared;
// callers must not modify it.
func (s *Store) Tasks() []model.Task {
	return s.tasks
}

// Get returns the task with the given id.
func (s *Store) Get(id string) (model.Task, bool) {
	i, ok := s.index[id]
	if !ok {
		return model.Task{}, false
	}
	return s.tasks[i], true
}

// Len returns the number of tasks in the store.
func (s *Store) Len() int {
	return len(s.tasks)
}

// Loaded reports whether at least one snapshot has arrived.
func (s *Store) Loaded() bool {
	return s.loaded
}

// Version increases on every change to the visible contents.
func (s *Store) Version() uint64 {
	return s.version
}

func (s *Store) rebuild() {
	tasks := make([]model.Task, len(s.base))
	copy(tasks, s.base)
	index := make(map[string]int, len(tasks))
	for i := range tasks {
		if ov, ok := s.overlays[tasks[i].ID]; ok {
			tasks[i].Status = ov.status
		}
		index[tasks[i].ID] = i
	}
	s.tasks = tasks
	s.index = index
	s.version++
}
