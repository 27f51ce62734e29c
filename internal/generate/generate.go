// Package generate drafts page content for a scored keyword with the
// Anthropic Messages API.
package generate

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/FranksOps/paaplan/internal/plan"
	"github.com/FranksOps/paaplan/internal/site"
	"github.com/FranksOps/paaplan/pkg/httpclient"
)

const (
	DefaultBaseURL   = "https://api.anthropic.com/v1/messages"
	DefaultModel     = "claude-sonnet-4-20250514"
	DefaultMaxTokens = 4000
	apiVersion       = "2023-06-01"

	// maxQuestions caps how many PAA questions go into one prompt.
	maxQuestions = 5
)

// ErrNoCredential is returned by New when no API key is configured.
var ErrNoCredential = errors.New("generate: no anthropic api key configured")

// Section is one titled block of body copy.
type Section struct {
	Heading string `json:"heading"`
	Content string `json:"content"`
}

// FAQ is a question with its answer.
type FAQ struct {
	Q string `json:"q"`
	A string `json:"a"`
}

// Content is the structured page copy returned by the model.
type Content struct {
	Title           string    `json:"title"`
	MetaDescription string    `json:"meta_description"`
	Slug            string    `json:"slug"`
	H1              string    `json:"h1"`
	Subtitle        string    `json:"subtitle"`
	Sections        []Section `json:"sections"`
	FAQs            []FAQ     `json:"faqs"`
}

// Config configures a Generator.
type Config struct {
	APIKey    string
	Model     string
	BaseURL   string
	MaxTokens int
	Timeout   time.Duration
	Client    *httpclient.Client
}

// Generator writes page content for one site.
type Generator struct {
	cfg     Config
	profile site.Profile
	client  *httpclient.Client
	logger  *slog.Logger
}

// New creates a Generator for profile.
func New(cfg Config, profile site.Profile, logger *slog.Logger) (*Generator, error) {
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, ErrNoCredential
	}
	if cfg.Model == "" {
		cfg.Model = DefaultModel
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.MaxTokens <= 0 {
		cfg.MaxTokens = DefaultMaxTokens
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 2 * time.Minute
	}
	if cfg.Client == nil {
		cfg.Client = httpclient.New(httpclient.Config{Timeout: cfg.Timeout})
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Generator{cfg: cfg, profile: profile, client: cfg.Client, logger: logger}, nil
}

type message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type messagesRequest struct {
	Model     string    `json:"model"`
	MaxTokens int       `json:"max_tokens"`
	Messages  []message `json:"messages"`
}

type messagesResponse struct {
	Content []struct {
		Type string `json:"type"`
		Text string `json:"text"`
	} `json:"content"`
	StopReason string `json:"stop_reason"`
}

// Generate drafts content for page. Pages without PAA questions fall back
// to the niche's question templates.
func (g *Generator) Generate(ctx context.Context, page plan.Page) (*Content, error) {
	prompt := Prompt(g.profile, page.Keyword, page.Location, page.PAAQuestions)

	body, err := json.Marshal(messagesRequest{
		Model:     g.cfg.Model,
		MaxTokens: g.cfg.MaxTokens,
		Messages:  []message{{Role: "user", Content: prompt}},
	})
	if err != nil {
		return nil, fmt.Errorf("generate: encode request: %w", err)
	}

	req, err := http.NewRequest(http.MethodPost, g.cfg.BaseURL, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("generate: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-api-key", g.cfg.APIKey)
	req.Header.Set("anthropic-version", apiVersion)

	start := time.Now()
	var resp messagesResponse
	if err := g.client.DoJSON(ctx, req, &resp); err != nil {
		return nil, fmt.Errorf("generate %q: %w", page.FullKeyword, err)
	}

	var text strings.Builder
	for _, c := range resp.Content {
		if c.Type == "text" {
			text.WriteString(c.Text)
		}
	}
	if resp.StopReason == "max_tokens" {
		g.logger.Warn("model output truncated", "keyword", page.FullKeyword)
	}

	content, err := ParseContent(text.String())
	if err != nil {
		return nil, fmt.Errorf("generate %q: %w", page.FullKeyword, err)
	}
	if content.Slug == "" {
		content.Slug = Slug(page.Keyword, page.Location)
	}

	g.logger.Debug("content generated", "keyword", page.FullKeyword, "sections", len(content.Sections), "duration", time.Since(start))
	return content, nil
}

// ParseContent decodes model output, tolerating a surrounding ``` fence.
func ParseContent(text string) (*Content, error) {
	text = strings.TrimSpace(text)
	if strings.HasPrefix(text, "```") {
		parts := strings.SplitN(text, "```", 3)
		text = strings.TrimPrefix(parts[1], "json")
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, errors.New("empty model output")
	}

	var c Content
	if err := json.Unmarshal([]byte(text), &c); err != nil {
		return nil, fmt.Errorf("decode content: %w", err)
	}
	return &c, nil
}

// Title upper-cases the first letter of each word of keyword.
func Title(keyword string) string {
	// A Caser holds state, so each call gets its own.
	return cases.Title(language.English).String(keyword)
}

// Slug builds the default URL slug: keyword and city, lower-cased and
// hyphenated.
func Slug(keyword, location string) string {
	city, _, _ := strings.Cut(location, ",")
	s := strings.ToLower(keyword) + " " + strings.ToLower(strings.TrimSpace(city))
	return strings.Join(strings.Fields(s), "-")
}

// Prompt builds the generation prompt for one page.
func Prompt(p site.Profile, keyword, location string, questions []string) string {
	if len(questions) == 0 {
		questions = site.FallbackQuestions(p.Niche, keyword)
	}
	if len(questions) == 0 {
		questions = []string{"How much does treatment cost?", "Does insurance cover this?"}
	}
	questions = questions[:min(len(questions), maxQuestions)]

	insurance := p.InsuranceFocus
	if insurance == "" {
		insurance = "Accept most insurance"
	}
	title := Title(keyword)

	var b strings.Builder
	fmt.Fprintf(&b, "Generate a resource page. Output ONLY valid JSON.\n\n")
	fmt.Fprintf(&b, "SITE: %s (%s)\n", p.Name, p.Domain)
	fmt.Fprintf(&b, "PARENT ORG: %s\n", p.ParentOrg)
	fmt.Fprintf(&b, "PHONE: %s\n", p.Phone)
	fmt.Fprintf(&b, "ADDRESS: %s\n\n", p.Address)
	fmt.Fprintf(&b, "KEYWORD: %s\nLOCATION: %s\n\n", keyword, location)
	b.WriteString("PAA QUESTIONS:\n")
	for _, q := range questions {
		fmt.Fprintf(&b, "- %s\n", q)
	}
	b.WriteString("\nREQUIREMENTS:\n")
	fmt.Fprintf(&b, "- %s\n", insurance)
	if n, ok := site.Niches[p.Niche]; ok {
		for _, k := range []string{"insurance", "compliance", "tone", "cta"} {
			if v, ok := n.Requirements[k]; ok {
				fmt.Fprintf(&b, "- %s: %s\n", k, v)
			}
		}
	}
	if p.ParentOrg != "" {
		fmt.Fprintf(&b, "- Mention %s naturally as serving the area\n", p.ParentOrg)
	}

	fmt.Fprintf(&b, `
Generate this JSON:

{
  "title": "%[1]s | %[2]s",
  "meta_description": "Find %[3]s options in %[4]s. Free guidance on costs, insurance, and programs. Call 24/7.",
  "slug": "%[5]s",
  "h1": "%[1]s",
  "subtitle": "Expert Guidance for %[4]s Area Residents",
  "sections": [
    {"heading": "Understanding %[1]s", "content": "[150-200 words educational overview]"},
    {"heading": "Options Near %[4]s", "content": "[150-200 words on the local landscape]"},
    {"heading": "Cost and Insurance", "content": "[150-200 words on costs and coverage]"},
    {"heading": "What to Expect", "content": "[150-200 words on the process]"}
  ],
  "faqs": [
    {"q": "[PAA question 1]", "a": "[50-75 word answer]"},
    {"q": "[PAA question 2]", "a": "[50-75 word answer]"},
    {"q": "[PAA question 3]", "a": "[50-75 word answer]"}
  ]
}

Output ONLY valid JSON.`, title, p.Name, keyword, location, Slug(keyword, location))

	return b.String()
}
