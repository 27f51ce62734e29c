// Package plan holds the build plan produced by an extraction run: the
// scored keyword/location pages, their priority tiers, and the JSON form
// handed to content generation.
package plan

import (
	"encoding/json"
	"sort"
	"strings"
	"time"
)

// Pair identifies one keyword targeted at one location.
type Pair struct {
	Keyword  string
	Location string
}

// FullKeyword is the keyword followed by the city portion of the location
// (everything before the first comma).
func (p Pair) FullKeyword() string {
	city, _, _ := strings.Cut(p.Location, ",")
	return p.Keyword + " " + strings.TrimSpace(city)
}

// Signals are the search-engine signals collected for a single pair.
// Error is set when the structured source failed and the lists are empty
// as a result.
type Signals struct {
	Questions []string `json:"paa_questions"`
	Related   []string `json:"related_searches"`
	Error     string   `json:"error,omitempty"`
}

// Page is a scored pair, one candidate page to build.
type Page struct {
	FullKeyword     string   `json:"full_keyword"`
	Keyword         string   `json:"keyword"`
	Location        string   `json:"location"`
	PAAQuestions    []string `json:"paa_questions"`
	RelatedSearches []string `json:"related_searches"`
	Priority        int      `json:"priority"`
	Error           string   `json:"error,omitempty"`
}

// NewPage builds a Page from a pair, its signals and its score.
func NewPage(p Pair, s Signals, priority int) Page {
	return Page{
		FullKeyword:     p.FullKeyword(),
		Keyword:         p.Keyword,
		Location:        p.Location,
		PAAQuestions:    nonNil(s.Questions),
		RelatedSearches: nonNil(s.Related),
		Priority:        priority,
		Error:           s.Error,
	}
}

// Pair returns the keyword/location identity of the page.
func (p Page) Pair() Pair {
	return Pair{Keyword: p.Keyword, Location: p.Location}
}

// Result is the outcome of one extraction run. Construct it with NewResult;
// the tier fields are views derived from Pages.
type Result struct {
	Pages          []Page
	TotalKeywords  int
	ExtractionDate time.Time
	Tiers
}

// NewResult sorts pages by descending priority, keeping enumeration order
// between equal priorities, and derives the tier views. The input slice is
// not modified.
func NewResult(pages []Page, extractedAt time.Time) *Result {
	sorted := make([]Page, len(pages))
	copy(sorted, pages)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Priority > sorted[j].Priority
	})

	return &Result{
		Pages:          sorted,
		TotalKeywords:  len(sorted),
		ExtractionDate: extractedAt,
		Tiers:          Tier(sorted),
	}
}

// Degraded returns the pages whose signal fetch failed.
func (r *Result) Degraded() []Page {
	var out []Page
	for _, p := range r.Pages {
		if p.Error != "" {
			out = append(out, p)
		}
	}
	return out
}

type resultJSON struct {
	Pages          []Page    `json:"pages_to_build"`
	TotalKeywords  int       `json:"total_keywords"`
	ExtractionDate time.Time `json:"extraction_date"`
	Tier1          []Page    `json:"tier_1"`
	Tier2          []Page    `json:"tier_2"`
	Tier3          []Page    `json:"tier_3"`
	Tier4          []Page    `json:"tier_4"`
}

// MarshalJSON writes the plan using the field names downstream tools expect.
func (r Result) MarshalJSON() ([]byte, error) {
	return json.Marshal(resultJSON{
		Pages:          nonNilPages(r.Pages),
		TotalKeywords:  r.TotalKeywords,
		ExtractionDate: r.ExtractionDate,
		Tier1:          nonNilPages(r.Tier1),
		Tier2:          nonNilPages(r.Tier2),
		Tier3:          nonNilPages(r.Tier3),
		Tier4:          nonNilPages(r.Tier4),
	})
}

// UnmarshalJSON loads a plan. Tier lists in the input are ignored and
// recomputed from pages_to_build so they can never disagree with it.
func (r *Result) UnmarshalJSON(data []byte) error {
	var raw resultJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	pages := make([]Page, len(raw.Pages))
	for i, p := range raw.Pages {
		p.PAAQuestions = nonNil(p.PAAQuestions)
		p.RelatedSearches = nonNil(p.RelatedSearches)
		pages[i] = p
	}
	*r = *NewResult(pages, raw.ExtractionDate)
	return nil
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}

func nonNilPages(p []Page) []Page {
	if p == nil {
		return []Page{}
	}
	return p
}
