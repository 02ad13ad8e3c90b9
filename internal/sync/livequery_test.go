package sync

import (
	"context"
	"errors"
	"fmt"
	gosync "sync"
	"testing"

	"github.com/nhle/kanban/internal/gateway/memory"
	"github.com/nhle/kanban/internal/model"
)

func TestLiveQueryDeliversSnapshots(t *testing.T) {
	gw := memory.New(nil)
	gw.Seed("tasks", "b", map[string]any{"title": "B", "status": "todo", "order": 2.0})
	gw.Seed("tasks", "a", map[string]any{"title": "A", "status": "todo", "order": 1.0})

	q := NewLiveQuery(gw, "tasks", "order", nil)
	t.Cleanup(q.Stop)

	cmd := q.Start()
	if cmd == nil {
		t.Fatal("Start should return a wait command")
	}
	snap, ok := cmd().(SnapshotMsg)
	if !ok {
		t.Fatal("expected SnapshotMsg")
	}
	if len(snap.Tasks) != 2 || snap.Tasks[0].ID != "a" {
		t.Fatalf("unexpected snapshot %+v", snap.Tasks)
	}

	if err := gw.Update(context.Background(), "tasks", "a", map[string]any{"status": "done"}); err != nil {
		t.Fatalf("Update: %v", err)
	}
	snap = q.WaitForNextSnapshot()().(SnapshotMsg)
	if snap.Tasks[0].Status != model.StatusDone {
		t.Fatalf("status = %q", snap.Tasks[0].Status)
	}
}

func TestLiveQueryStartTwice(t *testing.T) {
	q := NewLiveQuery(memory.New(nil), "tasks", "order", nil)
	t.Cleanup(q.Stop)

	if q.Start() == nil {
		t.Fatal("first Start should return a command")
	}
	if q.Start() != nil {
		t.Fatal("second Start should be a no-op")
	}
	if !q.Running() {
		t.Fatal("query should be running")
	}
}

func TestLiveQueryStopIsIdempotentAndReleases(t *testing.T) {
	gw := memory.New(nil)
	q := NewLiveQuery(gw, "tasks", "order", nil)
	q.Start()()

	q.Stop()
	q.Stop()
	if q.Running() {
		t.Fatal("stopped query reports running")
	}

	if _, err := gw.Create(context.Background(), "tasks", map[string]any{"title": "late"}); err != nil {
		t.Fatalf("Create: %v", err)
	}
	select {
	case msg := <-q.resultCh:
		t.Fatalf("no result expected after Stop, got %T", msg)
	default:
	}
	if q.Start() != nil {
		t.Fatal("a stopped query cannot restart")
	}
}

func TestLiveQueryForwardsErrors(t *testing.T) {
	gw := memory.New(nil)
	q := NewLiveQuery(gw, "tasks", "order", nil)
	t.Cleanup(q.Stop)
	q.Start()()

	boom := errors.New("permission denied")
	gw.BreakFeeds(boom)

	msg, ok := q.WaitForNextSnapshot()().(SubscriptionErrorMsg)
	if !ok || !errors.Is(msg.Err, boom) {
		t.Fatalf("expected SubscriptionErrorMsg wrapping boom, got %+v", msg)
	}
}

func TestSendDropsOldestWhenFull(t *testing.T) {
	q := NewLiveQuery(memory.New(nil), "tasks", "order", nil)
	for i := 0; i < resultBuffer+3; i++ {
		q.send(SnapshotMsg{Tasks: make([]model.Task, i)})
	}
	if len(q.resultCh) != resultBuffer {
		t.Fatalf("buffer len = %d", len(q.resultCh))
	}
	var last SnapshotMsg
	for len(q.resultCh) > 0 {
		last = (<-q.resultCh).(SnapshotMsg)
	}
	if len(last.Tasks) != resultBuffer+2 {
		t.Fatalf("newest snapshot lost, last had %d tasks", len(last.Tasks))
	}
}

func TestLiveQueryLastSnapshotFollowsConcurrentWrites(t *testing.T) {
	for round := range 100 {
		gw := memory.New(nil)
		for i := range 4 {
			gw.Seed("tasks", fmt.Sprintf("t%d", i), map[string]any{"title": "T", "status": "backlog", "order": float64(i)})
		}
		q := NewLiveQuery(gw, "tasks", "order", nil)
		q.Start()()

		var wg gosync.WaitGroup
		for i := range 4 {
			wg.Add(1)
			go func() {
				defer wg.Done()
				if err := gw.Update(context.Background(), "tasks", fmt.Sprintf("t%d", i), map[string]any{"status": "done"}); err != nil {
					t.Errorf("Update: %v", err)
				}
			}()
		}
		wg.Wait()

		var last SnapshotMsg
	drain:
		for {
			select {
			case msg := <-q.resultCh:
				if snap, ok := msg.(SnapshotMsg); ok {
					last = snap
				}
			default:
				break drain
			}
		}
		q.Stop()

		for _, task := range last.Tasks {
			if task.Status != model.StatusDone {
				t.Fatalf("round %d: %s still %q in the last snapshot", round, task.ID, task.Status)
			}
		}
	}
}
