package report

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/FranksOps/paaplan/internal/plan"
)

func sampleResult() *plan.Result {
	mk := func(kw, loc string, paa int, prio int, errText string) plan.Page {
		q := make([]string, paa)
		for i := range q {
			q[i] = "q"
		}
		return plan.NewPage(plan.Pair{Keyword: kw, Location: loc}, plan.Signals{Questions: q, Error: errText}, prio)
	}
	return plan.NewResult([]plan.Page{
		mk("drug rehab", "Newark, NJ", 4, 86, ""),
		mk("rehab cost", "Topeka, KS", 0, 60, ""),
		mk("<script>detox</script>", "Brick, NJ", 0, 60, "serpapi: unexpected status 500"),
		mk("sober living", "Topeka, KS", 1, 55, ""),
	}, time.Date(2026, 3, 1, 9, 30, 0, 0, time.UTC))
}

func TestGenerateSummary(t *testing.T) {
	s := GenerateSummary(sampleResult(), 2)

	if s.TotalKeywords != 4 {
		t.Errorf("expected 4 pages, got %d", s.TotalKeywords)
	}
	if s.Tiers[0].Count != 1 || s.Tiers[1].Count != 0 || s.Tiers[2].Count != 3 || s.Tiers[3].Count != 0 {
		t.Errorf("unexpected tier stats: %+v", s.Tiers)
	}
	if s.MeanPriority != 65.25 {
		t.Errorf("expected mean 65.25, got %v", s.MeanPriority)
	}
	if s.WithQuestions != 2 {
		t.Errorf("expected 2 pages with questions, got %d", s.WithQuestions)
	}
	if s.CityBonus != 1 {
		t.Errorf("expected 1 city bonus (Newark), got %d", s.CityBonus)
	}
	if s.IntentBonus != 2 {
		t.Errorf("expected 2 intent bonuses (cost, detox), got %d", s.IntentBonus)
	}
	if len(s.Degraded) != 1 || s.Degraded[0].Error != "serpapi: unexpected status 500" {
		t.Errorf("unexpected degraded list: %+v", s.Degraded)
	}
	if len(s.Top) != 2 || s.Top[0].Priority != 86 {
		t.Errorf("unexpected top pages: %+v", s.Top)
	}
}

func TestGenerateSummary_Empty(t *testing.T) {
	s := GenerateSummary(plan.NewResult(nil, time.Now()), 0)
	if s.TotalKeywords != 0 || s.MeanPriority != 0 || len(s.Top) != 0 {
		t.Errorf("unexpected empty summary: %+v", s)
	}
	if len(s.Tiers) != 4 {
		t.Errorf("expected 4 tier rows, got %d", len(s.Tiers))
	}

	var buf bytes.Buffer
	if err := WriteJSON(&buf, s); err != nil {
		t.Fatalf("WriteJSON failed: %v", err)
	}
	if strings.Contains(buf.String(), "null") {
		t.Errorf("empty summary should not contain null: %s", buf.String())
	}
}

func TestWriteJSON(t *testing.T) {
	var buf bytes.Buffer
	if err := WriteJSON(&buf, GenerateSummary(sampleResult(), 0)); err != nil {
		t.Fatalf("WriteJSON failed: %v", err)
	}

	var out map[string]any
	if err := json.Unmarshal(buf.Bytes(), &out); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}
	if out["total_keywords"].(float64) != 4 {
		t.Errorf("unexpected total_keywords: %v", out["total_keywords"])
	}
}

func TestWriteText(t *testing.T) {
	var buf bytes.Buffer
	if err := WriteText(&buf, GenerateSummary(sampleResult(), 0)); err != nil {
		t.Fatalf("WriteText failed: %v", err)
	}

	out := buf.String()
	for _, want := range []string{
		"Total Pages:   4",
		"Tier 1 (80+)",
		"[86] drug rehab Newark (4 PAA, 0 related)",
		"Degraded: 1",
		"2026-03-01 09:30:00",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("text report missing %q:\n%s", want, out)
		}
	}
}

func TestWriteHTML(t *testing.T) {
	var buf bytes.Buffer
	if err := WriteHTML(&buf, GenerateSummary(sampleResult(), 0)); err != nil {
		t.Fatalf("WriteHTML failed: %v", err)
	}

	out := buf.String()
	if !strings.Contains(out, "<h1>Keyword Plan Report</h1>") {
		t.Errorf("html report missing heading")
	}
	if strings.Contains(out, "<script>detox") {
		t.Errorf("keyword was not escaped")
	}
	if !strings.Contains(out, "&lt;script&gt;detox") {
		t.Errorf("escaped keyword missing")
	}
}

func TestWrite_UnknownFormat(t *testing.T) {
	if err := Write(&bytes.Buffer{}, "pdf", Summary{}); err == nil {
		t.Error("expected error for unknown format")
	}
}
