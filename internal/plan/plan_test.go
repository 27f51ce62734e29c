package plan

import (
	"bytes"
	"encoding/json"
	"path/filepath"
	"reflect"
	"strings"
	"testing"
	"time"
)

func page(kw string, priority int) Page {
	return NewPage(Pair{Keyword: kw, Location: "Newark, NJ"}, Signals{}, priority)
}

func TestPair_FullKeyword(t *testing.T) {
	tests := []struct {
		pair Pair
		want string
	}{
		{Pair{"drug rehab", "Newark, NJ"}, "drug rehab Newark"},
		{Pair{"detox", "Jersey City, NJ"}, "detox Jersey City"},
		{Pair{"detox", "Topeka"}, "detox Topeka"},
		{Pair{"detox", " Los Angeles , CA"}, "detox Los Angeles"},
	}
	for _, tt := range tests {
		if got := tt.pair.FullKeyword(); got != tt.want {
			t.Errorf("FullKeyword(%+v) = %q, want %q", tt.pair, got, tt.want)
		}
	}
}

func TestNewResult_StableSortAndTiers(t *testing.T) {
	pages := []Page{
		page("a", 60), page("b", 96), page("c", 60), page("d", 70),
		page("e", 80), page("f", 45), page("g", 96), page("h", 65),
	}
	r := NewResult(pages, time.Now())

	var order []string
	for _, p := range r.Pages {
		order = append(order, p.Keyword)
	}
	want := []string{"b", "g", "e", "d", "h", "a", "c", "f"}
	if !reflect.DeepEqual(order, want) {
		t.Fatalf("order = %v, want %v", order, want)
	}

	for i := 1; i < len(r.Pages); i++ {
		if r.Pages[i-1].Priority < r.Pages[i].Priority {
			t.Fatalf("pages not sorted descending at %d", i)
		}
	}

	if r.TotalKeywords != len(pages) {
		t.Errorf("TotalKeywords = %d, want %d", r.TotalKeywords, len(pages))
	}

	counts := r.Counts()
	if counts != [4]int{3, 2, 2, 1} {
		t.Errorf("tier counts = %v", counts)
	}
	if counts[0]+counts[1]+counts[2]+counts[3] != r.TotalKeywords {
		t.Errorf("tiers do not cover all pages")
	}

	seen := map[string]int{}
	for _, band := range [][]Page{r.Tier1, r.Tier2, r.Tier3, r.Tier4} {
		for _, p := range band {
			seen[p.Keyword]++
		}
	}
	for kw, n := range seen {
		if n != 1 {
			t.Errorf("page %s appears in %d tiers", kw, n)
		}
	}

	if pages[0].Keyword != "a" {
		t.Errorf("NewResult modified its input")
	}
}

func TestTierOf_Boundaries(t *testing.T) {
	tests := map[int]int{100: 1, 80: 1, 79: 2, 65: 2, 64: 3, 50: 3, 49: 4, 0: 4}
	for priority, want := range tests {
		if got := TierOf(priority); got != want {
			t.Errorf("TierOf(%d) = %d, want %d", priority, got, want)
		}
	}
}

func TestTierPages(t *testing.T) {
	r := NewResult([]Page{page("a", 90), page("b", 55)}, time.Now())

	got, err := r.TierPages(3)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(got) != 1 || got[0].Keyword != "b" {
		t.Errorf("TierPages(3) = %+v", got)
	}

	if _, err := r.TierPages(5); err == nil {
		t.Errorf("expected error for tier 5")
	}
}

func TestResult_EmptyMarshalsArrays(t *testing.T) {
	r := NewResult(nil, time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC))

	data, err := json.Marshal(r)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	s := string(data)
	for _, field := range []string{`"pages_to_build":[]`, `"tier_1":[]`, `"tier_4":[]`, `"total_keywords":0`} {
		if !strings.Contains(s, field) {
			t.Errorf("expected %s in %s", field, s)
		}
	}
	if strings.Contains(s, "null") {
		t.Errorf("empty plan should not contain null: %s", s)
	}
}

func TestResult_RoundTrip(t *testing.T) {
	date := time.Date(2026, 10, 16, 9, 30, 0, 123456789, time.UTC)
	pages := []Page{
		NewPage(Pair{"drug rehab", "Newark, NJ"}, Signals{
			Questions: []string{"How long is rehab?", "Does insurance cover rehab?"},
			Related:   []string{"rehab near me"},
		}, 82),
		NewPage(Pair{"inpatient detox", "Topeka, KS"}, Signals{Error: "request failed: timeout"}, 60),
		NewPage(Pair{"alcohol rehab", "Brick, NJ"}, Signals{}, 50),
	}
	orig := NewResult(pages, date)

	var buf bytes.Buffer
	if err := Save(&buf, orig); err != nil {
		t.Fatalf("save: %v", err)
	}
	loaded, err := Load(&buf)
	if err != nil {
		t.Fatalf("load: %v", err)
	}

	if !loaded.ExtractionDate.Equal(orig.ExtractionDate) {
		t.Errorf("date = %v, want %v", loaded.ExtractionDate, orig.ExtractionDate)
	}
	if !reflect.DeepEqual(loaded.Pages, orig.Pages) {
		t.Errorf("pages differ:\n got %+v\nwant %+v", loaded.Pages, orig.Pages)
	}
	if !reflect.DeepEqual(loaded.Tiers, orig.Tiers) {
		t.Errorf("tiers differ")
	}
	if loaded.TotalKeywords != orig.TotalKeywords {
		t.Errorf("total = %d, want %d", loaded.TotalKeywords, orig.TotalKeywords)
	}
}

func TestLoad_RecomputesTiers(t *testing.T) {
	// tier_1 claims a page that pages_to_build scores at 55
	input := `{
		"pages_to_build": [{"full_keyword": "rehab Brick", "keyword": "rehab", "location": "Brick, NJ", "paa_questions": null, "related_searches": [], "priority": 55}],
		"total_keywords": 7,
		"extraction_date": "2026-01-01T00:00:00Z",
		"tier_1": [{"keyword": "bogus", "priority": 99}]
	}`
	r, err := Load(strings.NewReader(input))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(r.Tier1) != 0 || len(r.Tier3) != 1 {
		t.Errorf("tiers not recomputed: %v", r.Counts())
	}
	if r.TotalKeywords != 1 {
		t.Errorf("TotalKeywords = %d, want 1", r.TotalKeywords)
	}
	if r.Pages[0].PAAQuestions == nil {
		t.Errorf("null question list should load as empty")
	}
}

func TestSaveFile_LoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "plan.json")
	orig := NewResult([]Page{page("a", 70)}, time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC))

	if err := SaveFile(path, orig); err != nil {
		t.Fatalf("save file: %v", err)
	}
	loaded, err := LoadFile(path)
	if err != nil {
		t.Fatalf("load file: %v", err)
	}
	if !reflect.DeepEqual(loaded.Pages, orig.Pages) {
		t.Errorf("pages differ after file round trip")
	}

	if _, err := LoadFile(filepath.Join(t.TempDir(), "missing.json")); err == nil {
		t.Errorf("expected error for missing file")
	}
}

func TestDegraded(t *testing.T) {
	r := NewResult([]Page{
		page("a", 70),
		NewPage(Pair{"b", "Brick, NJ"}, Signals{Error: "boom"}, 50),
	}, time.Now())
	d := r.Degraded()
	if len(d) != 1 || d[0].Keyword != "b" {
		t.Errorf("Degraded() = %+v", d)
	}
}
