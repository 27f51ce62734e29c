//go:build integration

package test

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"log/slog"

	"github.com/FranksOps/paaplan/internal/extract"
	"github.com/FranksOps/paaplan/internal/generate"
	"github.com/FranksOps/paaplan/internal/plan"
	"github.com/FranksOps/paaplan/internal/publish"
	"github.com/FranksOps/paaplan/internal/render"
	"github.com/FranksOps/paaplan/internal/report"
	"github.com/FranksOps/paaplan/internal/serp"
	"github.com/FranksOps/paaplan/internal/site"
	"github.com/FranksOps/paaplan/internal/storage"
	"github.com/FranksOps/paaplan/internal/storage/sqlite"
)

// fakeSerpAPI answers detox queries with signals and fails sober living
// queries with a server error.
func fakeSerpAPI(t *testing.T) *httptest.Server {
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query().Get("q")
		switch {
		case strings.Contains(q, "sober living"):
			w.WriteHeader(http.StatusInternalServerError)
			fmt.Fprint(w, `{"error":"internal"}`)
		case strings.Contains(q, "detox"):
			fmt.Fprint(w, `{
				"related_questions": [{"question":"How long is detox?"},{"question":"Is detox covered?"},{"question":"What is inpatient detox?"}],
				"related_searches": [{"query":"detox near me"},{"query":"medical detox"}]
			}`)
		default:
			fmt.Fprint(w, `{}`)
		}
	}))
}

func fakeAnthropic(t *testing.T) *httptest.Server {
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Messages []struct {
				Content string `json:"content"`
			} `json:"messages"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil || len(req.Messages) == 0 {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		slug := "inpatient-detox-newark"
		if strings.Contains(req.Messages[0].Content, "KEYWORD: drug rehab") {
			slug = "drug-rehab-newark"
		}
		content := fmt.Sprintf(`{"title":"T","meta_description":"M","slug":%q,"h1":"H","subtitle":"S",`+
			`"sections":[{"heading":"Section","content":"Body"}],"faqs":[{"q":"Q?","a":"A."}]}`, slug)
		text, _ := json.Marshal(content)
		fmt.Fprintf(w, `{"content":[{"type":"text","text":%s}],"stop_reason":"end_turn"}`, text)
	}))
}

// fakeWordPress serves a sitemap listing drug-rehab-newark and accepts
// page posts.
type fakeWordPress struct {
	*httptest.Server
	mu    sync.Mutex
	posts []string
}

func newFakeWordPress(t *testing.T) *fakeWordPress {
	wp := &fakeWordPress{}
	mux := http.NewServeMux()
	mux.HandleFunc("/wp-sitemap.xml", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprintf(w, `<?xml version="1.0" encoding="UTF-8"?>
<urlset xmlns="http://www.sitemaps.org/schemas/sitemap/0.9"><url><loc>%s/drug-rehab-newark/</loc></url></urlset>`, wp.URL)
	})
	mux.HandleFunc("/wp-json/wp/v2/pages", func(w http.ResponseWriter, r *http.Request) {
		var body struct {
			Slug string `json:"slug"`
		}
		json.NewDecoder(r.Body).Decode(&body)
		wp.mu.Lock()
		wp.posts = append(wp.posts, body.Slug)
		id := len(wp.posts)
		wp.mu.Unlock()
		w.WriteHeader(http.StatusCreated)
		fmt.Fprintf(w, `{"id":%d,"link":"%s/%s/"}`, id, wp.URL, body.Slug)
	})
	wp.Server = httptest.NewServer(mux)
	return wp
}

func TestIntegration_Pipeline(t *testing.T) {
	ctx := context.Background()
	logger := slog.Default()

	serpSrv := fakeSerpAPI(t)
	defer serpSrv.Close()
	llmSrv := fakeAnthropic(t)
	defer llmSrv.Close()
	wpSrv := newFakeWordPress(t)
	defer wpSrv.Close()

	// 1. Extract through SerpAPI.
	structured, err := serp.NewSerpAPI(serp.SerpAPIConfig{APIKey: "test-key", BaseURL: serpSrv.URL})
	if err != nil {
		t.Fatal(err)
	}
	fetcher := serp.NewFetcher(structured, nil, logger)
	ex := extract.New(extract.Config{Delay: time.Millisecond}, fetcher, logger)

	keywords := []string{"drug rehab", "inpatient detox", "sober living"}
	res := ex.ExtractAll(ctx, keywords, []string{"Newark, NJ"}, nil)

	if res.TotalKeywords != 3 {
		t.Fatalf("expected 3 pages, got %d", res.TotalKeywords)
	}
	top := res.Pages[0]
	if top.FullKeyword != "inpatient detox Newark" || top.Priority != 89 || len(top.PAAQuestions) != 3 {
		t.Fatalf("unexpected top page: %+v", top)
	}
	if len(res.Tier1) != 1 || len(res.Tier3) != 2 {
		t.Errorf("unexpected tiers: %v", res.Counts())
	}
	degraded := res.Degraded()
	if len(degraded) != 1 || degraded[0].Keyword != "sober living" || degraded[0].Priority != 60 {
		t.Errorf("expected sober living to be degraded at 60, got %+v", degraded)
	}

	// 2. Store and reload the run.
	store, err := sqlite.New("file:integration?mode=memory&cache=shared")
	if err != nil {
		t.Fatal(err)
	}
	defer store.Close()

	run := storage.NewRun("trupathnj", res)
	if err := store.Save(ctx, run); err != nil {
		t.Fatalf("Save failed: %v", err)
	}
	got, err := store.Get(ctx, run.ID)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}

	summary := report.GenerateSummary(got.Result, report.DefaultTop)
	if summary.TotalKeywords != 3 || len(summary.Degraded) != 1 || summary.Tiers[0].Count != 1 {
		t.Errorf("unexpected summary from stored run: %+v", summary)
	}

	// 3. Generate the two best pages.
	profile, err := site.Default().Get("trupathnj")
	if err != nil {
		t.Fatal(err)
	}
	gen, err := generate.New(generate.Config{APIKey: "sk-test", BaseURL: llmSrv.URL}, profile, logger)
	if err != nil {
		t.Fatal(err)
	}
	sched := publish.NewScheduler(7, nil)

	var drafts []generate.Draft
	for _, page := range got.Result.Pages[:2] {
		content, err := gen.Generate(ctx, page)
		if err != nil {
			t.Fatalf("Generate %s: %v", page.FullKeyword, err)
		}
		html, err := render.HTML(profile, *content)
		if err != nil {
			t.Fatal(err)
		}
		drafts = append(drafts, generate.Draft{
			Site:        profile.Key,
			FullKeyword: page.FullKeyword,
			Content:     *content,
			HTML:        html,
			PublishDate: sched.Next(),
		})
	}

	// 4. Publish, skipping what the site already has.
	inv, err := publish.NewDiscoverer(nil, "", logger).Discover(ctx, wpSrv.URL)
	if err != nil {
		t.Fatalf("Discover failed: %v", err)
	}
	wp, err := publish.NewWordPress(publish.WordPressConfig{URL: wpSrv.URL, User: "editor", Password: "pw"}, logger)
	if err != nil {
		t.Fatal(err)
	}
	batch := &publish.Batch{Poster: wp, Inventory: inv, Spacing: time.Millisecond, Logger: logger}
	outcomes := batch.Run(ctx, drafts)

	published, skipped, failed := publish.Tally(outcomes)
	if published != 1 || skipped != 1 || failed != 0 {
		t.Fatalf("expected 1 published, 1 skipped, got %d/%d/%d: %+v", published, skipped, failed, outcomes)
	}
	if len(wpSrv.posts) != 1 || wpSrv.posts[0] != "inpatient-detox-newark" {
		t.Errorf("unexpected posts: %v", wpSrv.posts)
	}
}

func TestIntegration_PlanFileRoundTrip(t *testing.T) {
	fetcher := serp.NewFetcher(nil, nil, nil)
	res := extract.New(extract.Config{}, fetcher, nil).ExtractAll(context.Background(),
		[]string{"drug rehab", "detox cost"}, []string{"Brooklyn, NY", "Topeka, KS"}, nil)

	path := t.TempDir() + "/plan.json"
	if err := plan.SaveFile(path, res); err != nil {
		t.Fatal(err)
	}
	loaded, err := plan.LoadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if loaded.Counts() != res.Counts() || loaded.TotalKeywords != 4 {
		t.Errorf("tiers changed across save/load: %v vs %v", loaded.Counts(), res.Counts())
	}
	if loaded.Pages[0].FullKeyword != "detox cost Brooklyn" || loaded.Pages[0].Priority != 70 {
		t.Errorf("unexpected top page after reload: %+v", loaded.Pages[0])
	}
}
