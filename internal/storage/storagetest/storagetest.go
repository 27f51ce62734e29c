// Package storagetest holds the behaviour every storage.Backend must share.
package storagetest

import (
	"context"
	"errors"
	"reflect"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/FranksOps/paaplan/internal/plan"
	"github.com/FranksOps/paaplan/internal/storage"
)

// SampleResult builds a small plan spanning three tiers, one degraded page
// and one page with empty signal lists.
func SampleResult(at time.Time) *plan.Result {
	pages := []plan.Page{
		plan.NewPage(plan.Pair{Keyword: "drug rehab", Location: "Newark, NJ"},
			plan.Signals{Questions: []string{"How long is rehab?", "Is rehab free?"}, Related: []string{"rehab nj"}}, 82),
		plan.NewPage(plan.Pair{Keyword: "sober living", Location: "Topeka, KS"},
			plan.Signals{}, 50),
		plan.NewPage(plan.Pair{Keyword: "detox", Location: "Newark, NJ"},
			plan.Signals{Error: "serpapi: unexpected status 500"}, 70),
	}
	return plan.NewResult(pages, at)
}

// Exercise runs the shared conformance checks against a fresh backend.
func Exercise(t *testing.T, b storage.Backend) {
	t.Helper()
	ctx := context.Background()
	base := time.Now().UTC().Truncate(time.Millisecond)
	site := "site-" + uuid.NewString()[:8]

	older := &storage.Run{ID: uuid.NewString(), Site: site, CreatedAt: base.Add(-2 * time.Hour), Result: SampleResult(base.Add(-2 * time.Hour))}
	newer := &storage.Run{ID: uuid.NewString(), Site: site, CreatedAt: base, Result: SampleResult(base)}
	empty := &storage.Run{ID: uuid.NewString(), Site: site + "-other", CreatedAt: base.Add(-time.Hour), Result: plan.NewResult(nil, base)}

	for _, r := range []*storage.Run{older, newer, empty} {
		if err := b.Save(ctx, r); err != nil {
			t.Fatalf("Failed to save run %s: %v", r.ID, err)
		}
	}

	got, err := b.Get(ctx, newer.ID)
	if err != nil {
		t.Fatalf("Failed to get run: %v", err)
	}
	assertRun(t, got, newer)

	got, err = b.Get(ctx, empty.ID)
	if err != nil {
		t.Fatalf("Failed to get empty run: %v", err)
	}
	assertRun(t, got, empty)

	if _, err := b.Get(ctx, "does-not-exist"); !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("Expected ErrNotFound, got %v", err)
	}

	runs, err := b.Query(ctx, storage.Filter{Site: site})
	if err != nil {
		t.Fatalf("Failed to query runs: %v", err)
	}
	if len(runs) != 2 {
		t.Fatalf("Expected 2 runs for site, got %d", len(runs))
	}
	if runs[0].ID != newer.ID || runs[1].ID != older.ID {
		t.Errorf("Expected newest first, got %s then %s", runs[0].ID, runs[1].ID)
	}

	since := base.Add(-90 * time.Minute)
	runs, err = b.Query(ctx, storage.Filter{Site: site, Since: &since})
	if err != nil {
		t.Fatalf("Failed to query with Since: %v", err)
	}
	if len(runs) != 1 || runs[0].ID != newer.ID {
		t.Errorf("Since filter returned %d runs", len(runs))
	}

	runs, err = b.Query(ctx, storage.Filter{Site: site, Limit: 1, Offset: 1})
	if err != nil {
		t.Fatalf("Failed to query with paging: %v", err)
	}
	if len(runs) != 1 || runs[0].ID != older.ID {
		t.Errorf("Paging returned unexpected runs")
	}
}

func assertRun(t *testing.T, got, want *storage.Run) {
	t.Helper()
	if got.ID != want.ID || got.Site != want.Site {
		t.Errorf("Expected run %s/%s, got %s/%s", want.ID, want.Site, got.ID, got.Site)
	}
	if !got.CreatedAt.Equal(want.CreatedAt) {
		t.Errorf("Expected CreatedAt %v, got %v", want.CreatedAt, got.CreatedAt)
	}
	if got.Result == nil {
		t.Fatalf("Run %s has no result", got.ID)
	}
	if !got.Result.ExtractionDate.Equal(want.Result.ExtractionDate) {
		t.Errorf("Expected extraction date %v, got %v", want.Result.ExtractionDate, got.Result.ExtractionDate)
	}
	if got.Result.TotalKeywords != want.Result.TotalKeywords {
		t.Errorf("Expected %d pages, got %d", want.Result.TotalKeywords, got.Result.TotalKeywords)
	}
	if !reflect.DeepEqual(got.Result.Pages, want.Result.Pages) {
		t.Errorf("Pages differ:\n got %+v\nwant %+v", got.Result.Pages, want.Result.Pages)
	}
	if got.Result.Counts() != want.Result.Counts() {
		t.Errorf("Expected tier counts %v, got %v", want.Result.Counts(), got.Result.Counts())
	}
}
