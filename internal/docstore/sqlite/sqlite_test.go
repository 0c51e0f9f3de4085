package sqlite

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"bilancio/internal/docstore"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := New(filepath.Join(t.TempDir(), "test.db"), nil)
	if err != nil {
		t.Fatalf("new store: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return store
}

func TestCreateAndGetOnce(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	id, err := store.Create(ctx, "houses", map[string]any{"name": "Our Home", "members": []string{"u1"}})
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	doc, err := store.GetOnce(ctx, "houses", id)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if doc.Fields["name"] != "Our Home" {
		t.Errorf("name = %v", doc.Fields["name"])
	}
	if doc.CreatedAt.IsZero() {
		t.Error("created_at must be server-assigned")
	}
}

func TestUpdateMergesFields(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	id, _ := store.Create(ctx, "houses/h1/budgets", map[string]any{
		"name":         "Groceries",
		"plannedCents": int64(30000),
	})

	if err := store.Update(ctx, "houses/h1/budgets", id, map[string]any{
		"plannedCents": int64(35000),
	}); err != nil {
		t.Fatalf("update: %v", err)
	}

	doc, _ := store.GetOnce(ctx, "houses/h1/budgets", id)
	if doc.Fields["name"] != "Groceries" {
		t.Errorf("untouched field lost: %v", doc.Fields)
	}
	// Numbers come back as float64 after the JSON round trip.
	if got, _ := doc.Fields["plannedCents"].(float64); got != 35000 {
		t.Errorf("plannedCents = %v", doc.Fields["plannedCents"])
	}
}

func TestUpdateMissingDocument(t *testing.T) {
	store := newTestStore(t)
	err := store.Update(context.Background(), "houses", "nope", map[string]any{"name": "x"})
	if !errors.Is(err, docstore.ErrNotFound) {
		t.Fatalf("got %v, want ErrNotFound", err)
	}
}

func TestDeleteIsUnconditional(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	id, _ := store.Create(ctx, "houses", map[string]any{"name": "x"})
	if err := store.Delete(ctx, "houses", id); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if err := store.Delete(ctx, "houses", id); err != nil {
		t.Fatalf("repeat delete must not error: %v", err)
	}
	if _, err := store.GetOnce(ctx, "houses", id); !errors.Is(err, docstore.ErrNotFound) {
		t.Fatalf("got %v, want ErrNotFound", err)
	}
}

func TestSubscribeDeliversOrderedSnapshots(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	store.Create(ctx, "houses/h1/budgets", map[string]any{"name": "Rent"})
	store.Create(ctx, "houses/h1/budgets", map[string]any{"name": "Groceries"})

	snapshots := make(chan []docstore.Doc, 8)
	sub, err := store.Subscribe("houses/h1/budgets",
		docstore.OrderSpec{Field: "name"},
		func(docs []docstore.Doc) { snapshots <- docs })
	if err != nil {
		t.Fatalf("subscribe: %v", err)
	}
	defer sub.Unsubscribe()

	docs := waitSnapshot(t, snapshots, func(docs []docstore.Doc) bool { return len(docs) == 2 })
	if docs[0].Fields["name"] != "Groceries" || docs[1].Fields["name"] != "Rent" {
		t.Errorf("order = %v, %v", docs[0].Fields["name"], docs[1].Fields["name"])
	}

	store.Create(ctx, "houses/h1/budgets", map[string]any{"name": "Car"})
	docs = waitSnapshot(t, snapshots, func(docs []docstore.Doc) bool { return len(docs) == 3 })
	if docs[0].Fields["name"] != "Car" {
		t.Errorf("new snapshot order = %v", docs[0].Fields["name"])
	}
}

func TestInvalidateRedelivers(t *testing.T) {
	store := newTestStore(t)

	snapshots := make(chan []docstore.Doc, 8)
	sub, _ := store.Subscribe("houses",
		docstore.OrderSpec{Field: docstore.CreatedAtField},
		func(docs []docstore.Doc) { snapshots <- docs })
	defer sub.Unsubscribe()

	waitSnapshot(t, snapshots, func([]docstore.Doc) bool { return true })

	store.Invalidate("houses")
	waitSnapshot(t, snapshots, func([]docstore.Doc) bool { return true })
}

func waitSnapshot(t *testing.T, ch <-chan []docstore.Doc, ok func([]docstore.Doc) bool) []docstore.Doc {
	t.Helper()
	deadline := time.After(2 * time.Second)
	for {
		select {
		case docs := <-ch:
			if ok(docs) {
				return docs
			}
		case <-deadline:
			t.Fatal("timed out waiting for snapshot")
		}
	}
}
