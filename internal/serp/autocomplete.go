package serp

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/FranksOps/paaplan/internal/bypass"
	"github.com/FranksOps/paaplan/internal/plan"
	"github.com/FranksOps/paaplan/pkg/httpclient"
)

const (
	DefaultSuggestURL = "http://suggestqueries.google.com/complete/search"
	// AutocompleteTimeout bounds one suggestion call.
	AutocompleteTimeout = 5 * time.Second

	maxSuggestBody = 64 << 10
)

// AutocompleteConfig configures the suggestion source.
type AutocompleteConfig struct {
	BaseURL string
	Timeout time.Duration
	Client  *httpclient.Client
}

// Autocomplete reads Google search suggestions. It needs no credential.
type Autocomplete struct {
	baseURL string
	timeout time.Duration
	client  *httpclient.Client
}

var _ Provider = (*Autocomplete)(nil)

// NewAutocomplete creates a suggestion source.
func NewAutocomplete(cfg AutocompleteConfig) *Autocomplete {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultSuggestURL
	}
	if cfg.Timeout <= 0 || cfg.Timeout > AutocompleteTimeout {
		cfg.Timeout = AutocompleteTimeout
	}
	if cfg.Client == nil {
		cfg.Client = httpclient.New(httpclient.Config{Timeout: cfg.Timeout})
	}
	return &Autocomplete{baseURL: cfg.BaseURL, timeout: cfg.Timeout, client: cfg.Client}
}

func (a *Autocomplete) Name() string { return "autocomplete" }

// Search returns suggestions for the pair's full keyword as related searches.
func (a *Autocomplete) Search(ctx context.Context, keyword, location string) (*Response, error) {
	pair := plan.Pair{Keyword: keyword, Location: location}
	suggestions, err := a.Suggest(ctx, pair.FullKeyword())
	if err != nil {
		return nil, err
	}
	return &Response{Questions: []string{}, Related: suggestions}, nil
}

// Suggest returns the autocomplete suggestions for query.
func (a *Autocomplete) Suggest(ctx context.Context, query string) ([]string, error) {
	ctx, cancel := context.WithTimeout(ctx, a.timeout)
	defer cancel()

	q := url.Values{}
	q.Set("client", "firefox")
	q.Set("q", query)

	req, err := http.NewRequest(http.MethodGet, a.baseURL+"?"+q.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("autocomplete: build request: %w", err)
	}

	resp, err := a.client.Do(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("autocomplete: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxSuggestBody))
	if err != nil {
		return nil, fmt.Errorf("autocomplete: read body: %w", err)
	}

	if blocked, src := bypass.Analyze(bypass.Response{
		StatusCode: resp.StatusCode,
		Header:     resp.Header,
		Body:       body,
	}, bypass.DefaultDetectors()); blocked {
		return nil, fmt.Errorf("autocomplete: %w (%s)", ErrBlocked, src)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("autocomplete: unexpected status %d", resp.StatusCode)
	}

	// Payload shape: ["query", ["suggestion", ...], ...]
	var parts []json.RawMessage
	if err := json.Unmarshal(body, &parts); err != nil {
		return nil, fmt.Errorf("autocomplete: decode: %w", err)
	}
	suggestions := []string{}
	if len(parts) > 1 {
		if err := json.Unmarshal(parts[1], &suggestions); err != nil {
			return nil, fmt.Errorf("autocomplete: decode suggestions: %w", err)
		}
	}
	return suggestions, nil
}
