package publish

import (
	"context"
	"log/slog"
	"time"

	"github.com/FranksOps/paaplan/internal/generate"
	"github.com/FranksOps/paaplan/pkg/ratelimit"
)

// DefaultSpacing separates consecutive page posts.
const DefaultSpacing = 500 * time.Millisecond

// Outcome records what happened to one draft.
type Outcome struct {
	Slug    string
	Result  *Result
	Skipped bool
	Err     error
}

// Batch publishes drafts one after another.
type Batch struct {
	Poster    Poster
	Inventory *Inventory
	// Spacing between posts; zero means DefaultSpacing.
	Spacing time.Duration
	Logger  *slog.Logger
}

// Run posts each draft whose slug the inventory does not already hold.
// Failures are recorded per draft; a cancelled ctx stops the batch and the
// remaining drafts are left out of the outcomes.
func (b *Batch) Run(ctx context.Context, drafts []generate.Draft) []Outcome {
	logger := b.Logger
	if logger == nil {
		logger = slog.Default()
	}
	spacing := b.Spacing
	if spacing <= 0 {
		spacing = DefaultSpacing
	}
	gate := ratelimit.NewLimiter(spacing, 0)

	outcomes := make([]Outcome, 0, len(drafts))
	for _, d := range drafts {
		slug := d.Content.Slug
		if b.Inventory.Has(slug) {
			logger.Info("page already published, skipping", "slug", slug)
			outcomes = append(outcomes, Outcome{Slug: slug, Skipped: true})
			continue
		}

		if err := gate.Wait(ctx); err != nil {
			logger.Warn("publishing cancelled", "published", len(outcomes), "remaining", len(drafts)-len(outcomes))
			break
		}

		title := d.Content.Title
		if title == "" {
			title = d.FullKeyword
		}
		res, err := b.Poster.Publish(ctx, Page{
			Title:           title,
			HTML:            d.HTML,
			Slug:            slug,
			MetaDescription: d.Content.MetaDescription,
			Date:            d.PublishDate,
		})
		if err != nil {
			logger.Error("publish failed", "slug", slug, "err", err)
		}
		outcomes = append(outcomes, Outcome{Slug: slug, Result: res, Err: err})
	}
	return outcomes
}

// Tally counts published, skipped and failed outcomes.
func Tally(outcomes []Outcome) (published, skipped, failed int) {
	for _, o := range outcomes {
		switch {
		case o.Skipped:
			skipped++
		case o.Err != nil:
			failed++
		default:
			published++
		}
	}
	return published, skipped, failed
}
