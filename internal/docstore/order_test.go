package docstore

import (
	"testing"
	"time"
)

func TestSortDocsByField(t *testing.T) {
	docs := []Doc{
		{ID: "1", Fields: map[string]any{"name": "Transport"}},
		{ID: "2", Fields: map[string]any{"name": "Groceries"}},
		{ID: "3", Fields: map[string]any{"name": "Rent"}},
	}
	SortDocs(docs, OrderSpec{Field: "name"})

	want := []string{"Groceries", "Rent", "Transport"}
	for i, w := range want {
		if docs[i].Fields["name"] != w {
			t.Fatalf("pos %d: got %v, want %s", i, docs[i].Fields["name"], w)
		}
	}
}

func TestSortDocsByCreatedAtDesc(t *testing.T) {
	base := time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC)
	docs := []Doc{
		{ID: "old", CreatedAt: base},
		{ID: "new", CreatedAt: base.Add(2 * time.Hour)},
		{ID: "mid", CreatedAt: base.Add(time.Hour)},
	}
	SortDocs(docs, OrderSpec{Field: CreatedAtField, Desc: true})

	want := []string{"new", "mid", "old"}
	for i, w := range want {
		if docs[i].ID != w {
			t.Fatalf("pos %d: got %s, want %s", i, docs[i].ID, w)
		}
	}
}

func TestSortDocsMissingFieldSortsFirst(t *testing.T) {
	docs := []Doc{
		{ID: "b", Fields: map[string]any{"name": "Bills"}},
		{ID: "a", Fields: map[string]any{}},
	}
	SortDocs(docs, OrderSpec{Field: "name"})
	if docs[0].ID != "a" {
		t.Fatalf("doc without order field should sort first, got %s", docs[0].ID)
	}
}

func TestSortDocsTieBreaksOnID(t *testing.T) {
	docs := []Doc{
		{ID: "z", Fields: map[string]any{"name": "Same"}},
		{ID: "a", Fields: map[string]any{"name": "Same"}},
	}
	SortDocs(docs, OrderSpec{Field: "name"})
	if docs[0].ID != "a" || docs[1].ID != "z" {
		t.Fatalf("ties must break on ID: got %s, %s", docs[0].ID, docs[1].ID)
	}
}

func TestCompareValuesNumbers(t *testing.T) {
	if compareValues(float64(2), float64(10)) >= 0 {
		t.Error("2 should sort before 10")
	}
	if compareValues(int64(5), float64(5)) != 0 {
		t.Error("mixed numeric kinds with equal values should compare equal")
	}
}
