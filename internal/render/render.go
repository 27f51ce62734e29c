// Package render turns generated content into the HTML body posted to
// WordPress.
package render

import (
	"fmt"
	"html/template"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/FranksOps/paaplan/internal/generate"
	"github.com/FranksOps/paaplan/internal/site"
)

const pageTmpl = `<div class="tp-hero">
  <h1>{{.Content.H1}}</h1>
  <p>{{.Content.Subtitle}}</p>
  <a href="tel:{{.Tel}}" class="btn-green">Call Now</a>
  <a href="#form" class="btn-white">Get Free Info</a>
</div>

<div class="tp-content">
{{- range .Content.Sections}}
<h2>{{.Heading}}</h2>
<p>{{.Content}}</p>
{{end}}
{{- with .Content.FAQs}}
<h2>Frequently Asked Questions</h2>
{{- range .}}
<p><strong>{{.Q}}</strong></p>
<p>{{.A}}</p>
{{- end}}
{{- end}}

<div id="form" class="tp-form">
  <h2>Get Free Information</h2>
  <form action="{{.FormAction}}" method="POST">
    <input type="hidden" name="site" value="{{.Site.Key}}">
    <input type="text" name="name" placeholder="Name" required>
    <input type="tel" name="phone" placeholder="Phone" required>
    <button type="submit">Request Callback</button>
  </form>
</div>
</div>

<div class="tp-cta">
  <h2>Ready to Take the Next Step?</h2>
  <p>Free, confidential guidance 24/7</p>
  <a href="tel:{{.Tel}}">Call: {{.Site.Phone}}</a>
</div>
`

var page = template.Must(template.New("page").Parse(pageTmpl))

type pageData struct {
	Site       site.Profile
	Content    generate.Content
	Tel        string
	FormAction string
}

// HTML renders the page body for c on site p. Model text is escaped.
func HTML(p site.Profile, c generate.Content) (string, error) {
	data := pageData{
		Site:       p,
		Content:    c,
		Tel:        p.PhoneDigits(),
		FormAction: "/wp-admin/admin-post.php",
	}

	var b strings.Builder
	if err := page.Execute(&b, data); err != nil {
		return "", fmt.Errorf("render page: %w", err)
	}
	return b.String(), nil
}

// Heading is one h1 or h2 of a rendered page.
type Heading struct {
	Level int
	Text  string
}

// Headings lists the h1 and h2 elements of body in document order.
func Headings(body string) ([]Heading, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("parse html: %w", err)
	}

	var out []Heading
	doc.Find("h1, h2").Each(func(_ int, s *goquery.Selection) {
		level := 2
		if goquery.NodeName(s) == "h1" {
			level = 1
		}
		out = append(out, Heading{Level: level, Text: strings.TrimSpace(s.Text())})
	})
	return out, nil
}

// Outline formats headings as an indented table of contents.
func Outline(hs []Heading) string {
	var b strings.Builder
	for _, h := range hs {
		b.WriteString(strings.Repeat("  ", h.Level-1))
		b.WriteString(h.Text)
		b.WriteByte('\n')
	}
	return b.String()
}
