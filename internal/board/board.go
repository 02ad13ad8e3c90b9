package board

import (
	"context"
	"fmt"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	log "github.com/sirupsen/logrus"

	"github.com/nhle/kanban/internal/gateway"
	"github.com/nhle/kanban/internal/model"
)

// DefaultWriteTimeout bounds a single gateway write.
const DefaultWriteTimeout = 10 * time.Second

// Position is a slot in a column's visible list.
type Position struct {
	Column model.Status
	Index  int
}

// DragResult describes a finished grab-and-drop. Destination is nil when the
// task was released outside any column.
type DragResult struct {
	TaskID      string
	Source      Position
	Destination *Position
}

// WriteSettledMsg is sent when a status write started by Move completes.
type WriteSettledMsg struct {
	TaskID string
	Status model.Status
	Seq    uint64
	Err    error
}

// TaskCreatedMsg is sent when a create call completes.
type TaskCreatedMsg struct {
	ID  string
	Err error
}

// TaskUpdatedMsg is sent when a detail save completes.
type TaskUpdatedMsg struct {
	ID  string
	Err error
}

// TaskDeletedMsg is sent when a delete call completes.
type TaskDeletedMsg struct {
	ID  string
	Err error
}

// UsersLoadedMsg carries the one-time user list.
type UsersLoadedMsg struct {
	Users []model.User
	Err   error
}

// Config holds what a Board needs besides its gateway.
type Config struct {
	TasksCollection string
	UsersCollection string
	WriteTimeout    time.Duration
	Logger          log.FieldLogger

	// Now stamps the order of new tasks. Defaults to time.Now.
	Now func() time.Time
}

// Board ties the local store to a gateway. Writes run as tea.Cmds so the
// Update loop never waits on the network.
type Board struct {
	store   *Store
	gw      gateway.Gateway
	tasks   string
	users   string
	timeout time.Duration
	now     func() time.Time
	logger  log.FieldLogger
}

// New creates a Board writing through gw.
func New(gw gateway.Gateway, cfg Config) *Board {
	if cfg.TasksCollection == "" {
		cfg.TasksCollection = "tasks"
	}
	if cfg.UsersCollection == "" {
		cfg.UsersCollection = "users"
	}
	if cfg.WriteTimeout <= 0 {
		cfg.WriteTimeout = DefaultWriteTimeout
	}
	if cfg.Logger == nil {
		cfg.Logger = log.StandardLogger()
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &Board{
		store:   NewStore(),
		gw:      gw,
		tasks:   cfg.TasksCollection,
		users:   cfg.UsersCollection,
		timeout: cfg.WriteTimeout,
		now:     cfg.Now,
		logger:  cfg.Logger.WithField("component", "board"),
	}
}

// Store returns the reconciled task mirror.
func (b *Board) Store() *Store {
	return b.store
}

// Move applies a drop. The status changes locally before this returns; the
// returned command performs the write. Drops outside a column and drops back
// onto the starting slot return nil and write nothing.
func (b *Board) Move(r DragResult) tea.Cmd {
	if r.Destination == nil {
		return nil
	}
	dest := *r.Destination
	if dest.Column == r.Source.Column && dest.Index == r.Source.Index {
		return nil
	}
	seq, ok := b.store.ApplyLocal(r.TaskID, dest.Column)
	if !ok {
		b.logger.WithField("task", r.TaskID).Warn("drop for unknown task ignored")
		return nil
	}
	b.logger.WithFields(log.Fields{
		"task": r.TaskID,
		"from": r.Source.Column,
		"to":   dest.Column,
		"seq":  seq,
	}).Debug("optimistic move")
	return b.Commit(r.TaskID, dest.Column, seq)
}

// Commit writes a status change and reports the outcome as a WriteSettledMsg.
func (b *Board) Commit(id string, status model.Status, seq uint64) tea.Cmd {
	gw, coll, timeout := b.gw, b.tasks, b.timeout
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()

		err := gw.Update(ctx, coll, id, model.StatusPatch(status).Fields())
		if err != nil {
			err = fmt.Errorf("moving task %s to %s: %w", id, status, err)
		}
		return WriteSettledMsg{TaskID: id, Status: status, Seq: seq, Err: err}
	}
}

// HandleSettled feeds a write outcome back into the store.
func (b *Board) HandleSettled(msg WriteSettledMsg) {
	if msg.Err != nil {
		b.logger.WithError(msg.Err).WithField("task", msg.TaskID).Warn("status write failed, reverting")
	}
	b.store.Settle(msg.TaskID, msg.Seq, msg.Err)
}

// NewTask fills in the defaults for a task created from the form. The order
// is the current time in unix milliseconds.
func (b *Board) NewTask(title, description string, typ model.TaskType, priority model.Priority, category string, assigneeID string) model.Task {
	t := model.Task{
		Title:       strings.TrimSpace(title),
		Description: description,
		Type:        typ,
		Priority:    priority,
		Category:    strings.TrimSpace(category),
		Status:      model.StatusBacklog,
		Order:       float64(b.now().UnixMilli()),
	}
	if t.Type == "" {
		t.Type = model.TypeFE
	}
	if t.Priority == "" {
		t.Priority = model.PriorityLow
	}
	if t.Category == "" {
		t.Category = model.DefaultCategory
	}
	if assigneeID != "" {
		t.AssigneeID = &assigneeID
	}
	return t
}

// Create writes a new task. The task appears on the board with the next
// snapshot, not before.
func (b *Board) Create(t model.Task) tea.Cmd {
	if err := t.Validate(); err != nil {
		return func() tea.Msg { return TaskCreatedMsg{Err: err} }
	}
	gw, coll, timeout, logger := b.gw, b.tasks, b.timeout, b.logger
	fields := t.Fields()
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()

		id, err := gw.Create(ctx, coll, fields)
		if err != nil {
			return TaskCreatedMsg{Err: fmt.Errorf("creating task: %w", err)}
		}
		logger.WithField("task", id).Info("task created")
		return TaskCreatedMsg{ID: id}
	}
}

// Update writes a partial update from the detail view.
func (b *Board) Update(id string, patch model.TaskPatch) tea.Cmd {
	if err := patch.Validate(); err != nil {
		return func() tea.Msg { return TaskUpdatedMsg{ID: id, Err: err} }
	}
	if patch.Empty() {
		return func() tea.Msg { return TaskUpdatedMsg{ID: id} }
	}
	gw, coll, timeout := b.gw, b.tasks, b.timeout
	fields := patch.Fields()
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()

		if err := gw.Update(ctx, coll, id, fields); err != nil {
			return TaskUpdatedMsg{ID: id, Err: fmt.Errorf("updating task %s: %w", id, err)}
		}
		return TaskUpdatedMsg{ID: id}
	}
}

// Delete removes a task for every client.
func (b *Board) Delete(id string) tea.Cmd {
	gw, coll, timeout, logger := b.gw, b.tasks, b.timeout, b.logger
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()

		if err := gw.Delete(ctx, coll, id); err != nil {
			return TaskDeletedMsg{ID: id, Err: fmt.Errorf("deleting task %s: %w", id, err)}
		}
		logger.WithField("task", id).Info("task deleted")
		return TaskDeletedMsg{ID: id}
	}
}

// LoadUsers reads the user collection once.
func (b *Board) LoadUsers() tea.Cmd {
	gw, coll, timeout := b.gw, b.users, b.timeout
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()

		docs, err := gw.GetAll(ctx, coll)
		if err != nil {
			return UsersLoadedMsg{Err: fmt.Errorf("loading users: %w", err)}
		}
		users := make([]model.User, 0, len(docs))
		for _, d := range docs {
			users = append(users, model.UserFromDocument(d.ID, d.Data))
		}
		return UsersLoadedMsg{Users: users}
	}
}

// TasksFromDocuments decodes a snapshot in its original order.
func TasksFromDocuments(docs []gateway.Document) []model.Task {
	tasks := make([]model.Task, 0, len(docs))
	for _, d := range docs {
		tasks = append(tasks, model.TaskFromDocument(d.ID, d.Data))
	}
	return tasks
}
