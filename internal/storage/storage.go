// Package storage persists extraction runs so plans can be listed,
// reported on and fed to content generation later.
package storage

import (
	"context"
	"errors"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/FranksOps/paaplan/internal/plan"
)

// ErrNotFound is returned by Backend.Get for an unknown run ID.
var ErrNotFound = errors.New("storage: run not found")

// Run is one stored extraction: the plan plus the site it was built for.
type Run struct {
	ID        string       `json:"id"`
	Site      string       `json:"site"`
	CreatedAt time.Time    `json:"created_at"`
	Result    *plan.Result `json:"result"`
}

// NewRun wraps a plan in a Run with a fresh ID.
func NewRun(site string, res *plan.Result) *Run {
	return &Run{
		ID:        uuid.NewString(),
		Site:      site,
		CreatedAt: time.Now().UTC(),
		Result:    res,
	}
}

// Filter narrows a Query.
type Filter struct {
	Site   string
	Since  *time.Time
	Limit  int
	Offset int
}

// Match reports whether r passes the Site and Since conditions of f.
func (f Filter) Match(r *Run) bool {
	if f.Site != "" && r.Site != f.Site {
		return false
	}
	if f.Since != nil && r.CreatedAt.Before(*f.Since) {
		return false
	}
	return true
}

// Window orders runs newest first and applies Offset and Limit. Backends
// that filter in memory use it so they page the same way the SQL ones do.
func (f Filter) Window(runs []*Run) []*Run {
	sort.SliceStable(runs, func(i, j int) bool {
		return runs[i].CreatedAt.After(runs[j].CreatedAt)
	})
	if f.Offset > 0 {
		if f.Offset >= len(runs) {
			return []*Run{}
		}
		runs = runs[f.Offset:]
	}
	if f.Limit > 0 && f.Limit < len(runs) {
		runs = runs[:f.Limit]
	}
	return runs
}

// Backend defines the interface for storing and querying runs.
type Backend interface {
	Save(ctx context.Context, run *Run) error
	Get(ctx context.Context, id string) (*Run, error)
	Query(ctx context.Context, filter Filter) ([]*Run, error)
	Close() error
}
