// Package extract runs the keyword × location extraction: it fetches
// signals for every pair, scores them and assembles the tiered plan.
package extract

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"golang.org/x/sync/errgroup"

	"github.com/FranksOps/paaplan/internal/metrics"
	"github.com/FranksOps/paaplan/internal/plan"
	"github.com/FranksOps/paaplan/internal/priority"
	"github.com/FranksOps/paaplan/pkg/ratelimit"
)

const (
	// DefaultDelay separates consecutive calls to a credentialed source.
	DefaultDelay = 2 * time.Second
	// DefaultRetryWait is the first backoff between retries of a failed pair.
	DefaultRetryWait = time.Second
	maxRetryWait     = 30 * time.Second
)

var tracer = otel.Tracer("github.com/FranksOps/paaplan/internal/extract")

// SignalFetcher collects the signals for one pair. Implementations never
// fail: problems are reported through Signals.Error.
type SignalFetcher interface {
	Fetch(ctx context.Context, keyword, location string) plan.Signals
	// Credentialed reports whether calls must be paced.
	Credentialed() bool
}

// ProgressFunc receives the completed fraction and a label after each pair.
type ProgressFunc func(fraction float64, label string)

// Config controls pacing and parallelism.
type Config struct {
	// Delay between consecutive fetches when the fetcher is credentialed.
	// Zero means DefaultDelay.
	Delay time.Duration
	// Workers > 1 fetches pairs concurrently through the same pacing gate.
	Workers int
	// Retries re-fetches a pair whose signals carry an error.
	Retries   int
	RetryWait time.Duration
	// Now stamps the extraction date. Defaults to time.Now.
	Now func() time.Time
}

// Extractor runs extraction over a SignalFetcher.
type Extractor struct {
	cfg     Config
	fetcher SignalFetcher
	logger  *slog.Logger
}

// New creates an Extractor.
func New(cfg Config, fetcher SignalFetcher, logger *slog.Logger) *Extractor {
	if cfg.Delay <= 0 {
		cfg.Delay = DefaultDelay
	}
	if cfg.Workers < 1 {
		cfg.Workers = 1
	}
	if cfg.Retries < 0 {
		cfg.Retries = 0
	}
	if cfg.RetryWait <= 0 {
		cfg.RetryWait = DefaultRetryWait
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Extractor{cfg: cfg, fetcher: fetcher, logger: logger}
}

// Pairs enumerates keywords against locations, location-major.
func Pairs(keywords, locations []string) []plan.Pair {
	pairs := make([]plan.Pair, 0, len(keywords)*len(locations))
	for _, loc := range locations {
		for _, kw := range keywords {
			pairs = append(pairs, plan.Pair{Keyword: kw, Location: loc})
		}
	}
	return pairs
}

// ExtractAll fetches and scores every keyword/location pair and returns the
// sorted, tiered plan. It has no failure path: a cancelled ctx stops the run
// between pairs and the plan covers the pairs finished so far.
func (e *Extractor) ExtractAll(ctx context.Context, keywords, locations []string, progress ProgressFunc) *plan.Result {
	pairs := Pairs(keywords, locations)

	ctx, span := tracer.Start(ctx, "extract.run")
	defer span.End()
	span.SetAttributes(
		attribute.Int("pairs", len(pairs)),
		attribute.Bool("credentialed", e.fetcher.Credentialed()),
	)

	var gate *ratelimit.Limiter
	if e.fetcher.Credentialed() {
		gate = ratelimit.NewLimiter(e.cfg.Delay, 0)
	}

	e.logger.Info("extraction started",
		"pairs", len(pairs),
		"credentialed", e.fetcher.Credentialed(),
		"workers", e.cfg.Workers,
	)

	var pages []plan.Page
	if e.cfg.Workers > 1 {
		pages = e.parallel(ctx, pairs, gate, progress)
	} else {
		pages = e.sequential(ctx, pairs, gate, progress)
	}

	if len(pages) < len(pairs) {
		e.logger.Warn("extraction cancelled", "completed", len(pages), "pairs", len(pairs), "err", ctx.Err())
		span.SetStatus(codes.Error, "cancelled")
	}

	res := plan.NewResult(pages, e.cfg.Now())
	counts := res.Counts()
	e.logger.Info("extraction finished",
		"pages", res.TotalKeywords,
		"degraded", len(res.Degraded()),
		"tier_1", counts[0], "tier_2", counts[1], "tier_3", counts[2], "tier_4", counts[3],
	)
	return res
}

func (e *Extractor) sequential(ctx context.Context, pairs []plan.Pair, gate *ratelimit.Limiter, progress ProgressFunc) []plan.Page {
	pages := make([]plan.Page, 0, len(pairs))
	for _, p := range pairs {
		if ctx.Err() != nil {
			break
		}
		page, ok := e.process(ctx, p, gate)
		if !ok {
			break
		}
		pages = append(pages, page)
		report(progress, len(pages), len(pairs), p)
	}
	return pages
}

// parallel buffers pages by enumeration index so the output matches the
// sequential order before sorting.
func (e *Extractor) parallel(ctx context.Context, pairs []plan.Pair, gate *ratelimit.Limiter, progress ProgressFunc) []plan.Page {
	slots := make([]*plan.Page, len(pairs))

	var (
		mu   sync.Mutex
		done int
	)

	g := new(errgroup.Group)
	g.SetLimit(e.cfg.Workers)
	for i, p := range pairs {
		if ctx.Err() != nil {
			break
		}
		g.Go(func() error {
			if ctx.Err() != nil {
				return nil
			}
			page, ok := e.process(ctx, p, gate)
			if !ok {
				return nil
			}
			slots[i] = &page

			mu.Lock()
			done++
			report(progress, done, len(pairs), p)
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()

	pages := make([]plan.Page, 0, len(pairs))
	for _, p := range slots {
		if p != nil {
			pages = append(pages, *p)
		}
	}
	return pages
}

// process fetches and scores one pair. It reports false when ctx ended
// before the pair could be fetched.
func (e *Extractor) process(ctx context.Context, p plan.Pair, gate *ratelimit.Limiter) (plan.Page, bool) {
	ctx, span := tracer.Start(ctx, "extract.pair")
	defer span.End()
	span.SetAttributes(
		attribute.String("keyword", p.Keyword),
		attribute.String("location", p.Location),
	)

	if err := gate.Wait(ctx); err != nil {
		return plan.Page{}, false
	}
	sig := e.fetcher.Fetch(ctx, p.Keyword, p.Location)

	wait := e.cfg.RetryWait
	for attempt := 1; attempt <= e.cfg.Retries && sig.Error != ""; attempt++ {
		e.logger.Debug("retrying pair", "keyword", p.Keyword, "location", p.Location, "attempt", attempt, "err", sig.Error)
		if !sleep(ctx, wait) || gate.Wait(ctx) != nil {
			break
		}
		sig = e.fetcher.Fetch(ctx, p.Keyword, p.Location)
		wait = min(wait*2, maxRetryWait)
	}

	score := priority.Score(p.Keyword, p.Location, len(sig.Questions), len(sig.Related))
	metrics.RecordScored(plan.TierOf(score))

	span.SetAttributes(attribute.Int("priority", score))
	if sig.Error != "" {
		span.SetStatus(codes.Error, sig.Error)
	}
	return plan.NewPage(p, sig, score), true
}

func report(progress ProgressFunc, done, total int, p plan.Pair) {
	if progress == nil {
		return
	}
	progress(float64(done)/float64(total), "Processing: "+p.FullKeyword())
}

func sleep(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return true
	case <-ctx.Done():
		return false
	}
}
