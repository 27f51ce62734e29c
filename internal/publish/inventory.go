package publish

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"path"
	"sort"
	"strings"

	"github.com/PuerkitoBio/goquery"
	sitemap "github.com/oxffaa/gopher-parse-sitemap"
	"github.com/temoto/robotstxt"

	"github.com/FranksOps/paaplan/pkg/httpclient"
)

const (
	maxDocument = 16 << 20
	// maxSitemapDepth bounds nested sitemap indexes.
	maxSitemapDepth = 3
)

// Inventory is the set of page slugs a site already serves.
type Inventory struct {
	slugs map[string]string // slug -> URL
}

// NewInventory builds an inventory from page URLs.
func NewInventory(urls []string) *Inventory {
	inv := &Inventory{slugs: make(map[string]string, len(urls))}
	for _, u := range urls {
		if s := SlugOf(u); s != "" {
			inv.slugs[s] = u
		}
	}
	return inv
}

// Has reports whether slug is already published. A nil Inventory has
// nothing.
func (inv *Inventory) Has(slug string) bool {
	if inv == nil {
		return false
	}
	_, ok := inv.slugs[strings.ToLower(slug)]
	return ok
}

// Len returns the number of known slugs.
func (inv *Inventory) Len() int {
	if inv == nil {
		return 0
	}
	return len(inv.slugs)
}

// Slugs lists the known slugs in sorted order.
func (inv *Inventory) Slugs() []string {
	out := make([]string, 0, inv.Len())
	if inv != nil {
		for s := range inv.slugs {
			out = append(out, s)
		}
	}
	sort.Strings(out)
	return out
}

// SlugOf returns the last path segment of a page URL, lower-cased.
func SlugOf(raw string) string {
	u, err := url.Parse(raw)
	if err != nil {
		return ""
	}
	p := strings.Trim(u.Path, "/")
	if p == "" {
		return ""
	}
	return strings.ToLower(path.Base(p))
}

// Discoverer finds the pages a site already has.
type Discoverer struct {
	client    *httpclient.Client
	logger    *slog.Logger
	userAgent string
}

// NewDiscoverer creates a Discoverer. userAgent selects the robots.txt
// group whose sitemaps are honoured.
func NewDiscoverer(client *httpclient.Client, userAgent string, logger *slog.Logger) *Discoverer {
	if client == nil {
		client = httpclient.New(httpclient.Config{})
	}
	if logger == nil {
		logger = slog.Default()
	}
	if userAgent == "" {
		userAgent = "paaplan"
	}
	return &Discoverer{client: client, logger: logger, userAgent: userAgent}
}

// Discover collects page URLs from the sitemaps listed in robots.txt,
// falling back to the WordPress core sitemap and then to the links on the
// homepage.
func (d *Discoverer) Discover(ctx context.Context, siteURL string) (*Inventory, error) {
	base, err := url.Parse(strings.TrimRight(siteURL, "/"))
	if err != nil || base.Scheme == "" || base.Host == "" {
		return nil, fmt.Errorf("inventory: invalid site url %q", siteURL)
	}

	sitemaps := d.robotsSitemaps(ctx, base)
	if len(sitemaps) == 0 {
		sitemaps = []string{base.String() + "/wp-sitemap.xml"}
	}

	var urls []string
	for _, sm := range sitemaps {
		found, err := d.sitemapURLs(ctx, sm, 0)
		if err != nil {
			d.logger.Debug("sitemap unavailable", "url", sm, "err", err)
			continue
		}
		urls = append(urls, found...)
	}

	if len(urls) == 0 {
		d.logger.Debug("no sitemap entries, reading homepage links", "site", base.String())
		urls, err = d.homepageLinks(ctx, base)
		if err != nil {
			return nil, fmt.Errorf("inventory: %w", err)
		}
	}

	inv := NewInventory(urls)
	d.logger.Info("site inventory loaded", "site", base.Host, "pages", inv.Len())
	return inv, nil
}

func (d *Discoverer) get(ctx context.Context, target string) ([]byte, int, error) {
	req, err := http.NewRequest(http.MethodGet, target, nil)
	if err != nil {
		return nil, 0, err
	}
	resp, err := d.client.Do(ctx, req)
	if err != nil {
		return nil, 0, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxDocument))
	if err != nil {
		return nil, resp.StatusCode, fmt.Errorf("read %s: %w", target, err)
	}
	return body, resp.StatusCode, nil
}

// robotsSitemaps returns the Sitemap lines of robots.txt. A missing or
// unreadable robots.txt yields none.
func (d *Discoverer) robotsSitemaps(ctx context.Context, base *url.URL) []string {
	body, status, err := d.get(ctx, base.String()+"/robots.txt")
	if err != nil {
		d.logger.Debug("robots.txt fetch failed", "site", base.Host, "err", err)
		return nil
	}
	data, err := robotstxt.FromStatusAndBytes(status, body)
	if err != nil {
		d.logger.Debug("robots.txt parse failed", "site", base.Host, "err", err)
		return nil
	}
	if !data.TestAgent("/wp-json/wp/v2/pages", d.userAgent) {
		d.logger.Warn("robots.txt disallows the REST API path", "site", base.Host, "agent", d.userAgent)
	}
	return data.Sitemaps
}

// sitemapURLs reads a sitemap or sitemap index and returns page URLs.
func (d *Discoverer) sitemapURLs(ctx context.Context, sitemapURL string, depth int) ([]string, error) {
	body, status, err := d.get(ctx, sitemapURL)
	if err != nil {
		return nil, err
	}
	if status >= 400 {
		return nil, fmt.Errorf("bad status code: %d", status)
	}

	var urls []string
	err = sitemap.Parse(bytes.NewReader(body), func(e sitemap.Entry) error {
		urls = append(urls, e.GetLocation())
		return nil
	})
	if err == nil && len(urls) > 0 {
		return urls, nil
	}

	var nested []string
	indexErr := sitemap.ParseIndex(bytes.NewReader(body), func(e sitemap.IndexEntry) error {
		nested = append(nested, e.GetLocation())
		return nil
	})
	if indexErr != nil || len(nested) == 0 {
		return nil, fmt.Errorf("not a sitemap or sitemap index: %s", sitemapURL)
	}
	if depth >= maxSitemapDepth {
		return nil, fmt.Errorf("sitemap index nested too deep: %s", sitemapURL)
	}

	for _, n := range nested {
		found, err := d.sitemapURLs(ctx, n, depth+1)
		if err != nil {
			d.logger.Warn("failed to fetch nested sitemap", "url", n, "err", err)
			continue
		}
		urls = append(urls, found...)
	}
	return urls, nil
}

// homepageLinks returns same-host links found on the homepage.
func (d *Discoverer) homepageLinks(ctx context.Context, base *url.URL) ([]string, error) {
	body, status, err := d.get(ctx, base.String()+"/")
	if err != nil {
		return nil, err
	}
	if status >= 400 {
		return nil, fmt.Errorf("homepage status %d", status)
	}

	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("parse homepage: %w", err)
	}

	var urls []string
	doc.Find("a[href]").Each(func(_ int, s *goquery.Selection) {
		href, _ := s.Attr("href")
		u, err := base.Parse(href)
		if err != nil || u.Host != base.Host {
			return
		}
		urls = append(urls, u.String())
	})
	return urls, nil
}
