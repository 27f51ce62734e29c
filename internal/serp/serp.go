// Package serp fetches search-engine signals for keyword/location pairs:
// People Also Ask questions and related searches.
package serp

import (
	"context"
	"errors"
)

// ErrBlocked is wrapped by providers when the upstream served a rate-limit
// or captcha page instead of results.
var ErrBlocked = errors.New("blocked by upstream")

// Response holds the signals one provider returned for a query.
type Response struct {
	Questions []string
	Related   []string
}

// Provider abstracts a search signal source. Implementations may use
// official APIs or public suggestion endpoints.
type Provider interface {
	// Name identifies the source in logs and metrics.
	Name() string
	Search(ctx context.Context, keyword, location string) (*Response, error)
}
