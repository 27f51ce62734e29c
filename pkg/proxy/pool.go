// Package proxy rotates outbound requests through a list of upstream
// proxies and benches the ones that keep getting blocked.
package proxy

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strings"
	"sync"
	"time"
)

// ErrExhausted is returned by the rotating transport when every proxy is
// cooling down.
var ErrExhausted = errors.New("proxy: no healthy proxy available")

type entry struct {
	url       *url.URL
	strikes   int
	benchedAt time.Time
}

// Config tunes a Pool. Zero values pick defaults.
type Config struct {
	// Strikes is how many consecutive blocks bench a proxy. Default 3.
	Strikes  int
	// Cooldown is how long a benched proxy sits out. Default 5m.
	Cooldown time.Duration
	// Now is the clock; nil means time.Now.
	Now      func() time.Time
}

// Pool is a round-robin set of proxies. It is safe for concurrent use.
type Pool struct {
	mu      sync.Mutex
	entries []*entry
	next    int
	cfg     Config
}

// NewPool returns an empty pool.
func NewPool(cfg Config) *Pool {
	if cfg.Strikes <= 0 {
		cfg.Strikes = 3
	}
	if cfg.Cooldown <= 0 {
		cfg.Cooldown = 5 * time.Minute
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &Pool{cfg: cfg}
}

// Load adds one proxy per line from r. Blank lines and # comments are
// skipped. A line without a scheme is taken as http.
func (p *Pool) Load(r io.Reader) error {
	sc := bufio.NewScanner(r)
	var raw []string
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		raw = append(raw, line)
	}
	if err := sc.Err(); err != nil {
		return fmt.Errorf("proxy: read list: %w", err)
	}
	return p.Add(raw...)
}

// LoadFile is Load on the named file.
func (p *Pool) LoadFile(path string) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("proxy: %w", err)
	}
	defer f.Close()
	return p.Load(f)
}

// Add appends proxies. The pool is unchanged if any URL is invalid.
func (p *Pool) Add(raw ...string) error {
	parsed := make([]*entry, 0, len(raw))
	for _, s := range raw {
		if !strings.Contains(s, "://") {
			s = "http://" + s
		}
		u, err := url.Parse(s)
		if err != nil || u.Host == "" {
			return fmt.Errorf("proxy: invalid url %q", s)
		}
		parsed = append(parsed, &entry{url: u})
	}

	p.mu.Lock()
	p.entries = append(p.entries, parsed...)
	p.mu.Unlock()
	return nil
}

// Len reports how many proxies the pool holds, benched or not.
func (p *Pool) Len() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.entries)
}

// Next returns the next proxy that is not benched, or nil when none is.
func (p *Pool) Next() *url.URL {
	p.mu.Lock()
	defer p.mu.Unlock()

	now := p.cfg.Now()
	for range p.entries {
		e := p.entries[p.next]
		p.next = (p.next + 1) % len(p.entries)

		if !e.benchedAt.IsZero() {
			if now.Sub(e.benchedAt) < p.cfg.Cooldown {
				continue
			}
			e.benchedAt = time.Time{}
			e.strikes = 0
		}
		return e.url
	}
	return nil
}

// Report records the outcome of a request made through u. A block adds a
// strike; a success clears them.
func (p *Pool) Report(u *url.URL, blocked bool) {
	if u == nil {
		return
	}
	p.mu.Lock()
	defer p.mu.Unlock()

	target := u.String()
	for _, e := range p.entries {
		if e.url.String() != target {
			continue
		}
		if !blocked {
			e.strikes = 0
			return
		}
		e.strikes++
		if e.strikes >= p.cfg.Strikes {
			e.benchedAt = p.cfg.Now()
		}
		return
	}
}

type proxyKey struct{}

// ProxyFunc is an http.Transport.Proxy that uses the proxy chosen by the
// rotating transport for this request. Requests not routed through Wrap go
// direct.
func ProxyFunc(req *http.Request) (*url.URL, error) {
	u, _ := req.Context().Value(proxyKey{}).(*url.URL)
	return u, nil
}

// Wrap returns a RoundTripper that picks a proxy for each request and
// reports 403/429 answers and transport errors back to the pool. base must
// use ProxyFunc as its Proxy. An empty pool passes requests through.
func (p *Pool) Wrap(base http.RoundTripper) http.RoundTripper {
	return &rotating{pool: p, base: base}
}

type rotating struct {
	pool *Pool
	base http.RoundTripper
}

func (rt *rotating) RoundTrip(req *http.Request) (*http.Response, error) {
	if rt.pool.Len() == 0 {
		return rt.base.RoundTrip(req)
	}
	u := rt.pool.Next()
	if u == nil {
		return nil, ErrExhausted
	}

	req = req.WithContext(context.WithValue(req.Context(), proxyKey{}, u))
	resp, err := rt.base.RoundTrip(req)
	if err != nil {
		rt.pool.Report(u, true)
		return nil, err
	}
	rt.pool.Report(u, resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode == http.StatusForbidden)
	return resp, nil
}
