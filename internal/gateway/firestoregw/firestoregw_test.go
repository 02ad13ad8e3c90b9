package firestoregw

import (
	"context"
	"errors"
	"os"
	"testing"
	"time"

	"google.golang.org/api/iterator"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/nhle/kanban/internal/gateway"
)

func TestMapErrorNotFound(t *testing.T) {
	err := mapError(status.Error(codes.NotFound, "no document to update"))
	if !gateway.IsNotFound(err) {
		t.Fatalf("expected not found, got %v", err)
	}

	other := status.Error(codes.PermissionDenied, "denied")
	if got := mapError(other); gateway.IsNotFound(got) || got != other {
		t.Fatalf("other codes must pass through, got %v", got)
	}
}

func TestStopped(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	if stopped(ctx, errors.New("boom")) {
		t.Fatal("plain error on a live context is not a stop")
	}
	if !stopped(ctx, iterator.Done) {
		t.Fatal("iterator.Done is a stop")
	}
	if !stopped(ctx, status.Error(codes.Canceled, "cancelled")) {
		t.Fatal("Canceled is a stop")
	}
	cancel()
	if !stopped(ctx, errors.New("boom")) {
		t.Fatal("any error after cancel is a stop")
	}
}

// TestEmulatorRoundTrip runs against the Firestore emulator when
// FIRESTORE_EMULATOR_HOST is set.
func TestEmulatorRoundTrip(t *testing.T) {
	if os.Getenv("FIRESTORE_EMULATOR_HOST") == "" {
		t.Skip("FIRESTORE_EMULATOR_HOST not set")
	}
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	g, err := Open(ctx, Options{ProjectID: "kanban-test"}, nil)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { _ = g.Close() })

	coll := "tasks-" + time.Now().Format("150405.000000")
	ch := make(chan []gateway.Document, 8)
	sub, err := g.Subscribe(ctx, coll, "order",
		func(docs []gateway.Document) { ch <- docs }, func(error) {})
	if err != nil {
		t.Fatalf("Subscribe: %v", err)
	}
	t.Cleanup(sub.Unsubscribe)

	id, err := g.Create(ctx, coll, map[string]any{"title": "A", "status": "todo", "order": 1})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if err := g.Update(ctx, coll, id, map[string]any{"status": "done"}); err != nil {
		t.Fatalf("Update: %v", err)
	}

	deadline := time.After(10 * time.Second)
	for {
		select {
		case docs := <-ch:
			if len(docs) == 1 && docs[0].Data["status"] == "done" {
				if err := g.Delete(ctx, coll, id); err != nil {
					t.Fatalf("Delete: %v", err)
				}
				if err := g.Delete(ctx, coll, id); !gateway.IsNotFound(err) {
					t.Fatalf("second Delete: expected not found, got %v", err)
				}
				return
			}
		case <-deadline:
			t.Fatal("timed out waiting for the updated snapshot")
		}
	}
}
