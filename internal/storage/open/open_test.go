package open

import (
	"context"
	"path/filepath"
	"testing"
)

func TestOpen(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()

	for _, tt := range []struct {
		driver, dsn string
	}{
		{"json", filepath.Join(dir, "runs.jsonl")},
		{"csv", filepath.Join(dir, "runs.csv")},
		{"SQLite", "file:open?mode=memory&cache=shared"},
	} {
		b, err := Open(ctx, tt.driver, tt.dsn)
		if err != nil {
			t.Errorf("Open(%q) failed: %v", tt.driver, err)
			continue
		}
		b.Close()
	}
}

func TestOpen_Errors(t *testing.T) {
	ctx := context.Background()
	if _, err := Open(ctx, "mongo", "x"); err == nil {
		t.Error("Expected error for unknown driver")
	}
	if _, err := Open(ctx, "json", ""); err == nil {
		t.Error("Expected error for empty dsn")
	}
}
