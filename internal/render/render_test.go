package render

import (
	"strings"
	"testing"

	"github.com/FranksOps/paaplan/internal/generate"
	"github.com/FranksOps/paaplan/internal/site"
)

func sample() (site.Profile, generate.Content) {
	p, _ := site.Default().Get("trupathnj")
	c := generate.Content{
		H1:       "Drug Rehab",
		Subtitle: "Expert Guidance for Newark, NJ Area Residents",
		Sections: []generate.Section{
			{Heading: "Understanding Drug Rehab", Content: "Overview <b>bold</b>."},
			{Heading: "Cost and Insurance", Content: "PPO plans."},
		},
		FAQs: []generate.FAQ{{Q: "How long is rehab?", A: "30 to 90 days."}},
	}
	return p, c
}

func TestHTML(t *testing.T) {
	p, c := sample()
	out, err := HTML(p, c)
	if err != nil {
		t.Fatalf("HTML failed: %v", err)
	}

	for _, want := range []string{
		`<a href="tel:7322816005" class="btn-green">`,
		"Call: (732) 281-6005",
		"<p><strong>How long is rehab?</strong></p>",
		`<div id="form" class="tp-form">`,
	} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
	if strings.Contains(out, "<b>bold</b>") {
		t.Errorf("model text should be escaped")
	}
}

func TestHTML_NoFAQs(t *testing.T) {
	p, c := sample()
	c.FAQs = nil
	out, err := HTML(p, c)
	if err != nil {
		t.Fatalf("HTML failed: %v", err)
	}
	if strings.Contains(out, "Frequently Asked Questions") {
		t.Errorf("FAQ heading should be omitted without FAQs")
	}
}

func TestHeadings(t *testing.T) {
	p, c := sample()
	out, _ := HTML(p, c)

	hs, err := Headings(out)
	if err != nil {
		t.Fatalf("Headings failed: %v", err)
	}

	want := []Heading{
		{1, "Drug Rehab"},
		{2, "Understanding Drug Rehab"},
		{2, "Cost and Insurance"},
		{2, "Frequently Asked Questions"},
		{2, "Get Free Information"},
		{2, "Ready to Take the Next Step?"},
	}
	if len(hs) != len(want) {
		t.Fatalf("got %d headings, want %d: %+v", len(hs), len(want), hs)
	}
	for i := range want {
		if hs[i] != want[i] {
			t.Errorf("heading %d = %+v, want %+v", i, hs[i], want[i])
		}
	}

	outline := Outline(hs)
	if !strings.HasPrefix(outline, "Drug Rehab\n  Understanding Drug Rehab\n") {
		t.Errorf("unexpected outline:\n%s", outline)
	}
}
