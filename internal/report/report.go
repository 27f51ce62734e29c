package report

import (
	"encoding/json"
	"fmt"
	htmltemplate "html/template"
	"io"
	"text/template"
	"time"

	"github.com/FranksOps/paaplan/internal/plan"
	"github.com/FranksOps/paaplan/internal/priority"
)

// DefaultTop is how many pages a summary lists when no limit is given.
const DefaultTop = 10

// TierStat is the page count of one tier.
type TierStat struct {
	Tier  int    `json:"tier"`
	Label string `json:"label"`
	Count int    `json:"count"`
}

// Gap is a pair whose signals could not be fetched.
type Gap struct {
	FullKeyword string `json:"full_keyword"`
	Error       string `json:"error"`
}

// Summary condenses an extraction plan for review before generation.
type Summary struct {
	ExtractionDate time.Time   `json:"extraction_date"`
	TotalKeywords  int         `json:"total_keywords"`
	Tiers          []TierStat  `json:"tiers"`
	MeanPriority   float64     `json:"mean_priority"`
	WithQuestions  int         `json:"with_questions"`
	CityBonus      int         `json:"city_bonus"`
	IntentBonus    int         `json:"intent_bonus"`
	Degraded       []Gap       `json:"degraded"`
	Top            []plan.Page `json:"top"`
}

var tierLabels = [4]string{
	"Tier 1 (80+)",
	"Tier 2 (65-79)",
	"Tier 3 (50-64)",
	"Tier 4 (<50)",
}

// GenerateSummary builds a Summary listing at most top pages. top <= 0
// means DefaultTop.
func GenerateSummary(res *plan.Result, top int) Summary {
	if top <= 0 {
		top = DefaultTop
	}

	s := Summary{
		ExtractionDate: res.ExtractionDate,
		TotalKeywords:  res.TotalKeywords,
		Degraded:       []Gap{},
		Top:            []plan.Page{},
	}

	counts := res.Counts()
	for i, c := range counts {
		s.Tiers = append(s.Tiers, TierStat{Tier: i + 1, Label: tierLabels[i], Count: c})
	}

	total := 0
	for _, p := range res.Pages {
		total += p.Priority
		if len(p.PAAQuestions) > 0 {
			s.WithQuestions++
		}
		city, intent := priority.Bonuses(p.Keyword, p.Location)
		if city {
			s.CityBonus++
		}
		if intent {
			s.IntentBonus++
		}
		if p.Error != "" {
			s.Degraded = append(s.Degraded, Gap{FullKeyword: p.FullKeyword, Error: p.Error})
		}
	}
	if len(res.Pages) > 0 {
		s.MeanPriority = float64(total) / float64(len(res.Pages))
	}

	s.Top = append(s.Top, res.Pages[:min(top, len(res.Pages))]...)
	return s
}

// WriteJSON writes the summary to the provided writer in JSON format.
func WriteJSON(w io.Writer, summary Summary) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(summary); err != nil {
		return fmt.Errorf("encode summary: %w", err)
	}
	return nil
}

const textTmpl = `Keyword Plan Summary
--------------------
Extracted:     {{.ExtractionDate.Format "2006-01-02 15:04:05"}}
Total Pages:   {{.TotalKeywords}}
Mean Priority: {{printf "%.1f" .MeanPriority}}
With PAA:      {{.WithQuestions}}
City Bonus:    {{.CityBonus}}
Intent Bonus:  {{.IntentBonus}}

Tiers:
{{- range .Tiers}}
  {{printf "%-15s" .Label}} {{.Count}}
{{- end}}

Top Pages:
{{- range .Top}}
  [{{.Priority}}] {{.FullKeyword}} ({{len .PAAQuestions}} PAA, {{len .RelatedSearches}} related)
{{- else}}
  None
{{- end}}

Degraded: {{len .Degraded}}
{{- range .Degraded}}
  {{.FullKeyword}}: {{.Error}}
{{- end}}
`

var textReport = template.Must(template.New("textReport").Parse(textTmpl))

// WriteText writes a human-readable text summary to the provided writer.
func WriteText(w io.Writer, summary Summary) error {
	if err := textReport.Execute(w, summary); err != nil {
		return fmt.Errorf("render text report: %w", err)
	}
	return nil
}

const htmlTmpl = `<!DOCTYPE html>
<html>
<head>
<title>Keyword Plan Report</title>
<style>
  body { font-family: sans-serif; margin: 40px; color: #333; }
  h1 { border-bottom: 2px solid #ccc; padding-bottom: 10px; }
  .stat-card { display: inline-block; padding: 20px; margin: 10px 10px 10px 0; background: #f4f4f4; border-radius: 5px; min-width: 150px; }
  .stat-val { font-size: 24px; font-weight: bold; }
  table { border-collapse: collapse; margin-top: 10px; }
  th, td { padding: 8px 12px; border: 1px solid #ccc; text-align: left; }
  th { background: #eaeaea; }
</style>
</head>
<body>
  <h1>Keyword Plan Report</h1>
  <p><strong>Extracted:</strong> {{.ExtractionDate.Format "2006-01-02 15:04:05"}}</p>

  <div class="stat-card">
    <div>Total Pages</div>
    <div class="stat-val">{{.TotalKeywords}}</div>
  </div>
  <div class="stat-card">
    <div>Mean Priority</div>
    <div class="stat-val">{{printf "%.1f" .MeanPriority}}</div>
  </div>
  <div class="stat-card">
    <div>Degraded</div>
    <div class="stat-val" style="color: {{if .Degraded}}red{{else}}green{{end}};">{{len .Degraded}}</div>
  </div>

  <h3>Tiers</h3>
  <table>
    <tr><th>Tier</th><th>Pages</th></tr>
    {{- range .Tiers}}
    <tr><td>{{.Label}}</td><td>{{.Count}}</td></tr>
    {{- end}}
  </table>

  <h3>Top Pages</h3>
  <table>
    <tr><th>Priority</th><th>Keyword</th><th>PAA</th><th>Related</th></tr>
    {{- range .Top}}
    <tr><td>{{.Priority}}</td><td>{{.FullKeyword}}</td><td>{{len .PAAQuestions}}</td><td>{{len .RelatedSearches}}</td></tr>
    {{- else}}
    <tr><td colspan="4">None</td></tr>
    {{- end}}
  </table>
  {{- if .Degraded}}

  <h3>Degraded Pairs</h3>
  <table>
    <tr><th>Keyword</th><th>Error</th></tr>
    {{- range .Degraded}}
    <tr><td>{{.FullKeyword}}</td><td>{{.Error}}</td></tr>
    {{- end}}
  </table>
  {{- end}}
</body>
</html>
`

var htmlReport = htmltemplate.Must(htmltemplate.New("htmlReport").Parse(htmlTmpl))

// WriteHTML writes an HTML report to the provided writer. Keywords and
// error text are escaped.
func WriteHTML(w io.Writer, summary Summary) error {
	if err := htmlReport.Execute(w, summary); err != nil {
		return fmt.Errorf("render html report: %w", err)
	}
	return nil
}

// Write renders summary in the named format: text, json or html.
func Write(w io.Writer, format string, summary Summary) error {
	switch format {
	case "", "text":
		return WriteText(w, summary)
	case "json":
		return WriteJSON(w, summary)
	case "html":
		return WriteHTML(w, summary)
	default:
		return fmt.Errorf("unknown report format %q", format)
	}
}
