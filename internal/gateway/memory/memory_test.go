package memory

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"sync"
	"testing"
	"time"

	"github.com/nhle/kanban/internal/gateway"
)

func TestSubscribeDeliversInitialAndOrderedSnapshots(t *testing.T) {
	g := New(nil)
	g.Seed("tasks", "b", map[string]any{"title": "B", "order": 2.0})
	g.Seed("tasks", "a", map[string]any{"title": "A", "order": 1.0})

	var snaps [][]gateway.Document
	sub, err := g.Subscribe(context.Background(), "tasks", "order",
		func(docs []gateway.Document) { snaps = append(snaps, docs) },
		func(error) {})
	if err != nil {
		t.Fatalf("Subscribe: %v", err)
	}
	t.Cleanup(sub.Unsubscribe)

	if len(snaps) != 1 || len(snaps[0]) != 2 || snaps[0][0].ID != "a" {
		t.Fatalf("unexpected initial snapshot: %v", snaps)
	}

	if err := g.Update(context.Background(), "tasks", "a", map[string]any{"order": 3.0}); err != nil {
		t.Fatalf("Update: %v", err)
	}
	if len(snaps) != 2 || snaps[1][0].ID != "b" {
		t.Fatalf("expected reordered snapshot, got %v", snaps)
	}
	if snaps[1][1].Data["title"] != "A" {
		t.Fatal("update must merge, not replace")
	}
}

func TestUnsubscribeStopsDelivery(t *testing.T) {
	g := New(nil)
	count := 0
	sub, err := g.Subscribe(context.Background(), "tasks", "order",
		func([]gateway.Document) { count++ }, func(error) {})
	if err != nil {
		t.Fatalf("Subscribe: %v", err)
	}
	sub.Unsubscribe()
	sub.Unsubscribe()

	if _, err := g.Create(context.Background(), "tasks", map[string]any{"title": "x"}); err != nil {
		t.Fatalf("Create: %v", err)
	}
	if count != 1 {
		t.Fatalf("expected only the initial snapshot, got %d", count)
	}
}

func TestWritesToMissingDocument(t *testing.T) {
	g := New(nil)
	ctx := context.Background()

	if err := g.Update(ctx, "tasks", "ghost", map[string]any{"status": "done"}); !gateway.IsNotFound(err) {
		t.Fatalf("Update: expected not found, got %v", err)
	}
	if err := g.Delete(ctx, "tasks", "ghost"); !gateway.IsNotFound(err) {
		t.Fatalf("Delete: expected not found, got %v", err)
	}
}

func TestFailWrites(t *testing.T) {
	g := New(nil)
	boom := errors.New("offline")
	g.FailWrites(boom)

	_, err := g.Create(context.Background(), "tasks", map[string]any{})
	if !errors.Is(err, boom) || !gateway.IsWriteError(err) {
		t.Fatalf("expected wrapped write error, got %v", err)
	}

	g.FailWrites(nil)
	id, err := g.Create(context.Background(), "tasks", map[string]any{"title": "ok"})
	if err != nil || id == "" {
		t.Fatalf("Create after recovery: id=%q err=%v", id, err)
	}
	docs, err := g.GetAll(context.Background(), "tasks")
	if err != nil || len(docs) != 1 {
		t.Fatalf("GetAll: %v %v", docs, err)
	}
}

func TestConcurrentWritersFinalSnapshotIsCurrent(t *testing.T) {
	const docs = 4
	for round := range 200 {
		g := New(nil)
		for i := range docs {
			g.Seed("tasks", fmt.Sprintf("t%d", i), map[string]any{"status": "backlog", "order": float64(i)})
		}

		var mu sync.Mutex
		var last []gateway.Document
		sub, err := g.Subscribe(context.Background(), "tasks", "order",
			func(d []gateway.Document) {
				mu.Lock()
				last = d
				mu.Unlock()
			}, func(error) {})
		if err != nil {
			t.Fatalf("Subscribe: %v", err)
		}

		var wg sync.WaitGroup
		for i := range docs {
			wg.Add(1)
			go func() {
				defer wg.Done()
				id := fmt.Sprintf("t%d", i)
				if err := g.Update(context.Background(), "tasks", id, map[string]any{"status": "done"}); err != nil {
					t.Errorf("Update %s: %v", id, err)
				}
			}()
		}
		wg.Wait()
		sub.Unsubscribe()

		mu.Lock()
		for _, d := range last {
			if d.Data["status"] != "done" {
				t.Fatalf("round %d: final snapshot is stale, %s has status %v", round, d.ID, d.Data["status"])
			}
		}
		mu.Unlock()
	}
}

func TestUnsubscribeReleasesWatcher(t *testing.T) {
	g := New(nil)
	before := runtime.NumGoroutine()

	subs := make([]gateway.Subscription, 50)
	for i := range subs {
		sub, err := g.Subscribe(context.Background(), "tasks", "order",
			func([]gateway.Document) {}, func(error) {})
		if err != nil {
			t.Fatalf("Subscribe: %v", err)
		}
		subs[i] = sub
	}
	for _, sub := range subs {
		sub.Unsubscribe()
	}

	deadline := time.Now().Add(2 * time.Second)
	for runtime.NumGoroutine() > before+5 {
		if time.Now().After(deadline) {
			t.Fatalf("goroutines: before=%d now=%d", before, runtime.NumGoroutine())
		}
		time.Sleep(10 * time.Millisecond)
	}
}
