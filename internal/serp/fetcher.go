package serp

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/FranksOps/paaplan/internal/metrics"
	"github.com/FranksOps/paaplan/internal/plan"
)

// Fetcher normalizes the configured providers into plan.Signals. It never
// returns an error: a failed structured search yields empty signals with
// Error set, and a failed suggestion lookup yields empty signals.
type Fetcher struct {
	structured Provider
	suggest    Provider
	logger     *slog.Logger
}

// NewFetcher creates a Fetcher. A nil structured provider means no
// credential is configured; suggest may also be nil.
func NewFetcher(structured, suggest Provider, logger *slog.Logger) *Fetcher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Fetcher{structured: structured, suggest: suggest, logger: logger}
}

// Credentialed reports whether a paid structured source is in use, which
// callers must pace to respect its rate limit.
func (f *Fetcher) Credentialed() bool {
	return f.structured != nil
}

// Fetch collects signals for one pair. When a structured provider is
// configured it is authoritative and suggestions are not consulted.
func (f *Fetcher) Fetch(ctx context.Context, keyword, location string) plan.Signals {
	if f.structured != nil {
		res, err := f.call(ctx, f.structured, keyword, location)
		if err != nil {
			f.logger.Warn("structured search failed", "keyword", keyword, "location", location, "err", err)
			return plan.Signals{Questions: []string{}, Related: []string{}, Error: err.Error()}
		}
		return signals(res)
	}

	if f.suggest != nil {
		res, err := f.call(ctx, f.suggest, keyword, location)
		if err != nil {
			f.logger.Debug("suggestions unavailable", "keyword", keyword, "location", location, "err", err)
			return plan.Signals{Questions: []string{}, Related: []string{}}
		}
		return signals(res)
	}

	return plan.Signals{Questions: []string{}, Related: []string{}}
}

func (f *Fetcher) call(ctx context.Context, p Provider, keyword, location string) (*Response, error) {
	start := time.Now()
	res, err := p.Search(ctx, keyword, location)
	if err == nil && res == nil {
		err = errors.New(p.Name() + ": empty response")
	}

	status := metrics.StatusOK
	switch {
	case errors.Is(err, ErrBlocked):
		status = metrics.StatusBlocked
	case err != nil:
		status = metrics.StatusError
	}
	metrics.RecordSignal(p.Name(), status, time.Since(start))

	return res, err
}

func signals(res *Response) plan.Signals {
	s := plan.Signals{Questions: res.Questions, Related: res.Related}
	if s.Questions == nil {
		s.Questions = []string{}
	}
	if s.Related == nil {
		s.Related = []string{}
	}
	return s
}
