package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	"bilancio/internal/docstore"
)

func waitSnapshot(t *testing.T, ch <-chan []docstore.Doc) []docstore.Doc {
	t.Helper()
	select {
	case docs := <-ch:
		return docs
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for snapshot")
		return nil
	}
}

func TestCreateAssignsIDAndTimestamp(t *testing.T) {
	s := New()
	defer s.Close()

	id, err := s.Create(context.Background(), "houses", map[string]any{"name": "Our Home"})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if id == "" {
		t.Fatal("expected a generated ID")
	}

	doc, err := s.GetOnce(context.Background(), "houses", id)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if doc.CreatedAt.IsZero() {
		t.Error("createdAt must be server-assigned")
	}
	if doc.Fields["name"] != "Our Home" {
		t.Errorf("name = %v", doc.Fields["name"])
	}
}

func TestUpdateMergesFields(t *testing.T) {
	s := New()
	defer s.Close()
	ctx := context.Background()

	id, _ := s.Create(ctx, "c", map[string]any{"name": "Groceries", "planned": int64(30000)})
	if err := s.Update(ctx, "c", id, map[string]any{"planned": int64(40000)}); err != nil {
		t.Fatalf("update: %v", err)
	}

	doc, _ := s.GetOnce(ctx, "c", id)
	if doc.Fields["planned"] != int64(40000) {
		t.Errorf("planned = %v, want 40000", doc.Fields["planned"])
	}
	if doc.Fields["name"] != "Groceries" {
		t.Errorf("untouched field lost: name = %v", doc.Fields["name"])
	}
}

func TestUpdateMissingDocument(t *testing.T) {
	s := New()
	defer s.Close()

	err := s.Update(context.Background(), "c", "nope", map[string]any{"x": 1})
	if !errors.Is(err, docstore.ErrNotFound) {
		t.Fatalf("got %v, want ErrNotFound", err)
	}
}

func TestDeleteIsUnconditional(t *testing.T) {
	s := New()
	defer s.Close()
	ctx := context.Background()

	id, _ := s.Create(ctx, "c", map[string]any{})
	if err := s.Delete(ctx, "c", id); err != nil {
		t.Fatalf("delete: %v", err)
	}
	// Deleting again (or a document that never existed) is not an error.
	if err := s.Delete(ctx, "c", id); err != nil {
		t.Fatalf("repeat delete: %v", err)
	}
	if _, err := s.GetOnce(ctx, "c", id); !errors.Is(err, docstore.ErrNotFound) {
		t.Fatalf("got %v, want ErrNotFound", err)
	}
}

func TestSubscribeDeliversInitialAndUpdatedSnapshots(t *testing.T) {
	s := New()
	defer s.Close()
	ctx := context.Background()

	s.Create(ctx, "c", map[string]any{"name": "Rent"})

	snaps := make(chan []docstore.Doc, 8)
	sub, err := s.Subscribe("c", docstore.OrderSpec{Field: "name"}, func(docs []docstore.Doc) {
		snaps <- docs
	})
	if err != nil {
		t.Fatalf("subscribe: %v", err)
	}
	defer sub.Unsubscribe()

	first := waitSnapshot(t, snaps)
	if len(first) != 1 || first[0].Fields["name"] != "Rent" {
		t.Fatalf("initial snapshot = %v", first)
	}

	s.Create(ctx, "c", map[string]any{"name": "Groceries"})

	// Snapshots fully replace; eventually one arrives with both docs ordered
	// by name.
	deadline := time.After(2 * time.Second)
	for {
		select {
		case docs := <-snaps:
			if len(docs) == 2 {
				if docs[0].Fields["name"] != "Groceries" || docs[1].Fields["name"] != "Rent" {
					t.Fatalf("snapshot not ordered by name: %v, %v",
						docs[0].Fields["name"], docs[1].Fields["name"])
				}
				return
			}
		case <-deadline:
			t.Fatal("never received the two-document snapshot")
		}
	}
}

func TestUnsubscribeStopsDelivery(t *testing.T) {
	s := New()
	defer s.Close()
	ctx := context.Background()

	snaps := make(chan []docstore.Doc, 8)
	sub, _ := s.Subscribe("c", docstore.OrderSpec{}, func(docs []docstore.Doc) {
		snaps <- docs
	})
	waitSnapshot(t, snaps)

	sub.Unsubscribe()
	sub.Unsubscribe() // idempotent

	s.Create(ctx, "c", map[string]any{"name": "after"})

	select {
	case docs := <-snaps:
		if len(docs) > 0 {
			t.Fatalf("received snapshot after unsubscribe: %v", docs)
		}
	case <-time.After(200 * time.Millisecond):
	}
}

func TestSubscriptionsAreScopedToCollection(t *testing.T) {
	s := New()
	defer s.Close()
	ctx := context.Background()

	snaps := make(chan []docstore.Doc, 8)
	sub, _ := s.Subscribe("houses/h1/budgets", docstore.OrderSpec{Field: "name"}, func(docs []docstore.Doc) {
		snaps <- docs
	})
	defer sub.Unsubscribe()
	waitSnapshot(t, snaps)

	s.Create(ctx, "houses/h2/budgets", map[string]any{"name": "other house"})

	select {
	case docs := <-snaps:
		if len(docs) != 0 {
			t.Fatalf("leaked snapshot from another collection: %v", docs)
		}
	case <-time.After(200 * time.Millisecond):
	}
}
