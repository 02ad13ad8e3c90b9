package redisgw

import (
	"context"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"github.com/nhle/kanban/internal/gateway"
)

func newTestGateway(t *testing.T) (*Gateway, *miniredis.Miniredis) {
	t.Helper()
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("start miniredis: %v", err)
	}
	t.Cleanup(mr.Close)

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return New(client, "test", nil), mr
}

func waitSnapshot(t *testing.T, ch <-chan []gateway.Document) []gateway.Document {
	t.Helper()
	select {
	case docs := <-ch:
		return docs
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for snapshot")
		return nil
	}
}

func TestCreateUpdateDelete(t *testing.T) {
	g, mr := newTestGateway(t)
	ctx := context.Background()

	id, err := g.Create(ctx, "tasks", map[string]any{"title": "A", "status": "todo"})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if !mr.Exists("test:tasks:docs") {
		t.Fatal("expected the collection hash to exist")
	}

	if err := g.Update(ctx, "tasks", id, map[string]any{"status": "done"}); err != nil {
		t.Fatalf("update: %v", err)
	}
	docs, err := g.GetAll(ctx, "tasks")
	if err != nil {
		t.Fatalf("get all: %v", err)
	}
	if len(docs) != 1 || docs[0].Data["title"] != "A" || docs[0].Data["status"] != "done" {
		t.Fatalf("unexpected docs: %#v", docs)
	}

	if err := g.Delete(ctx, "tasks", id); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if err := g.Delete(ctx, "tasks", id); !gateway.IsNotFound(err) {
		t.Fatalf("expected not found on second delete, got %v", err)
	}
	if err := g.Update(ctx, "tasks", id, map[string]any{"status": "todo"}); !gateway.IsNotFound(err) {
		t.Fatalf("expected not found on update, got %v", err)
	}
}

func TestSubscribeSnapshots(t *testing.T) {
	g, _ := newTestGateway(t)
	ctx := context.Background()

	if err := g.Put(ctx, "tasks", "late", map[string]any{"title": "Late", "order": 20}); err != nil {
		t.Fatalf("put: %v", err)
	}
	if err := g.Put(ctx, "tasks", "early", map[string]any{"title": "Early", "order": 10}); err != nil {
		t.Fatalf("put: %v", err)
	}

	ch := make(chan []gateway.Document, 8)
	sub, err := g.Subscribe(ctx, "tasks", "order",
		func(docs []gateway.Document) { ch <- docs },
		func(error) {})
	if err != nil {
		t.Fatalf("subscribe: %v", err)
	}
	t.Cleanup(sub.Unsubscribe)

	docs := waitSnapshot(t, ch)
	if len(docs) != 2 || docs[0].ID != "early" {
		t.Fatalf("unexpected initial snapshot: %#v", docs)
	}

	if err := g.Update(ctx, "tasks", "early", map[string]any{"order": 30}); err != nil {
		t.Fatalf("update: %v", err)
	}
	docs = waitSnapshot(t, ch)
	if docs[0].ID != "late" {
		t.Fatalf("snapshot not reordered: %#v", docs)
	}
}

func TestSubscriptionsSeeOtherClients(t *testing.T) {
	g, mr := newTestGateway(t)
	other := New(redis.NewClient(&redis.Options{Addr: mr.Addr()}), "test", nil)
	t.Cleanup(func() { _ = other.Close() })

	ch := make(chan []gateway.Document, 8)
	sub, err := g.Subscribe(context.Background(), "tasks", "order",
		func(docs []gateway.Document) { ch <- docs }, func(error) {})
	if err != nil {
		t.Fatalf("subscribe: %v", err)
	}
	t.Cleanup(sub.Unsubscribe)
	waitSnapshot(t, ch)

	if _, err := other.Create(context.Background(), "tasks", map[string]any{"title": "From elsewhere"}); err != nil {
		t.Fatalf("create: %v", err)
	}
	docs := waitSnapshot(t, ch)
	if len(docs) != 1 || docs[0].Data["title"] != "From elsewhere" {
		t.Fatalf("unexpected snapshot: %#v", docs)
	}
}

func TestUnsubscribeStopsListener(t *testing.T) {
	g, _ := newTestGateway(t)
	ch := make(chan []gateway.Document, 8)
	sub, err := g.Subscribe(context.Background(), "tasks", "order",
		func(docs []gateway.Document) { ch <- docs }, func(error) {})
	if err != nil {
		t.Fatalf("subscribe: %v", err)
	}
	waitSnapshot(t, ch)

	done := make(chan struct{})
	go func() {
		sub.Unsubscribe()
		sub.Unsubscribe()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Unsubscribe did not return")
	}

	if _, err := g.Create(context.Background(), "tasks", map[string]any{"title": "x"}); err != nil {
		t.Fatalf("create: %v", err)
	}
	select {
	case docs := <-ch:
		t.Fatalf("snapshot after unsubscribe: %#v", docs)
	case <-time.After(100 * time.Millisecond):
	}
}
