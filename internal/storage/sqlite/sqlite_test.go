package sqlite

import (
	"context"
	"testing"
	"time"

	"github.com/FranksOps/paaplan/internal/storage"
	"github.com/FranksOps/paaplan/internal/storage/storagetest"
)

func TestSQLiteBackend(t *testing.T) {
	// Use an in-memory database for testing
	b, err := New("file:conformance?mode=memory&cache=shared")
	if err != nil {
		t.Fatalf("Failed to create SQLite backend: %v", err)
	}
	defer b.Close()

	storagetest.Exercise(t, b)
}

func TestSQLiteBackend_OffsetWithoutLimit(t *testing.T) {
	b, err := New("file:offset?mode=memory&cache=shared")
	if err != nil {
		t.Fatalf("Failed to create SQLite backend: %v", err)
	}
	defer b.Close()

	ctx := context.Background()
	base := time.Now().UTC()
	for i, id := range []string{"a", "b", "c"} {
		at := base.Add(time.Duration(i) * time.Minute)
		if err := b.Save(ctx, &storage.Run{ID: id, Site: "nj", CreatedAt: at, Result: storagetest.SampleResult(at)}); err != nil {
			t.Fatalf("Failed to save run: %v", err)
		}
	}

	runs, err := b.Query(ctx, storage.Filter{Offset: 1})
	if err != nil {
		t.Fatalf("Failed to query: %v", err)
	}
	if len(runs) != 2 || runs[0].ID != "b" || runs[1].ID != "a" {
		t.Errorf("Unexpected runs for offset-only query: %d", len(runs))
	}
}

func TestSQLiteBackend_DuplicateID(t *testing.T) {
	b, err := New("file:dup?mode=memory&cache=shared")
	if err != nil {
		t.Fatalf("Failed to create SQLite backend: %v", err)
	}
	defer b.Close()

	ctx := context.Background()
	now := time.Now().UTC()
	run := &storage.Run{ID: "same", Site: "nj", CreatedAt: now, Result: storagetest.SampleResult(now)}
	if err := b.Save(ctx, run); err != nil {
		t.Fatalf("Failed to save run: %v", err)
	}
	if err := b.Save(ctx, run); err == nil {
		t.Error("Expected error saving duplicate run ID")
	}

	got, err := b.Get(ctx, "same")
	if err != nil {
		t.Fatalf("Failed to get run: %v", err)
	}
	if got.Result.TotalKeywords != 3 {
		t.Errorf("Failed save should not leave extra pages, got %d", got.Result.TotalKeywords)
	}
}
