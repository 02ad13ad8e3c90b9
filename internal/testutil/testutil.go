package testutil

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/nhle/kanban/internal/gateway"
	"github.com/nhle/kanban/internal/gateway/memory"
	"github.com/nhle/kanban/internal/model"
	"github.com/nhle/kanban/internal/store"
)

// NewTestStore creates a SQLiteStore in a temporary directory with all
// migrations applied. It closes the store when the test completes.
func NewTestStore(t *testing.T) *store.SQLiteStore {
	t.Helper()

	s, err := store.NewSQLiteStore(
		filepath.Join(t.TempDir(), "board.db"),
		store.WithPollInterval(20*time.Millisecond),
		store.WithLogger(QuietLogger()),
	)
	if err != nil {
		t.Fatalf("creating test store: %v", err)
	}

	t.Cleanup(func() {
		if err := s.Close(); err != nil {
			t.Errorf("closing test store: %v", err)
		}
	})

	return s
}

// QuietLogger returns a logger that discards everything below panic level.
func QuietLogger() log.FieldLogger {
	l := log.New()
	l.SetLevel(log.PanicLevel)
	return l
}

// SampleUsers is the user list the board fixtures assign tasks to.
func SampleUsers() []model.User {
	return []model.User{
		{ID: "u1", Name: "Dana Levi", AvatarColor: "#4C6EF5"},
		{ID: "u2", Name: "Omer Katz", AvatarColor: "#12B886"},
	}
}

// SampleTasks returns one task per column plus a second backlog task.
func SampleTasks() []model.Task {
	u1 := "u1"
	return []model.Task{
		{ID: "t1", Title: "Login page", Type: model.TypeFE, Priority: model.PriorityHigh, Category: "auth", Status: model.StatusBacklog, Order: 1},
		{ID: "t2", Title: "Token refresh", Type: model.TypeBE, Priority: model.PriorityCritical, Category: "auth", Status: model.StatusBacklog, Order: 2, AssigneeID: &u1},
		{ID: "t3", Title: "Board layout", Type: model.TypeBoth, Priority: model.PriorityMedium, Category: "general", Status: model.StatusTodo, Order: 3},
		{ID: "t4", Title: "Drag styles", Type: model.TypeFE, Priority: model.PriorityLow, Category: "general", Status: model.StatusInProgress, Order: 4},
		{ID: "t5", Title: "CI pipeline", Type: model.TypeBE, Priority: model.PriorityLow, Category: "infra", Status: model.StatusDone, Order: 5},
	}
}

// NewSeededGateway returns a memory gateway holding the sample tasks and users.
func NewSeededGateway(t *testing.T) *memory.Gateway {
	t.Helper()
	gw := memory.New(QuietLogger())
	for _, task := range SampleTasks() {
		gw.Seed("tasks", task.ID, task.Fields())
	}
	for _, u := range SampleUsers() {
		fields := map[string]any{model.FieldName: u.Name, model.FieldAvatarColor: u.AvatarColor}
		gw.Seed("users", u.ID, fields)
	}
	return gw
}

// Snapshot reads the current task collection in order.
func Snapshot(t *testing.T, gw gateway.Gateway) []model.Task {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	ch := make(chan []gateway.Document, 1)
	sub, err := gw.Subscribe(ctx, "tasks", model.FieldOrder,
		func(docs []gateway.Document) {
			select {
			case ch <- docs:
			default:
			}
		},
		func(error) {},
	)
	if err != nil {
		t.Fatalf("subscribing: %v", err)
	}
	defer sub.Unsubscribe()

	select {
	case docs := <-ch:
		tasks := make([]model.Task, 0, len(docs))
		for _, d := range docs {
			tasks = append(tasks, model.TaskFromDocument(d.ID, d.Data))
		}
		return tasks
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for snapshot")
		return nil
	}
}
