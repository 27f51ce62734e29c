package serp

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/FranksOps/paaplan/pkg/httpclient"
)

const (
	DefaultSerpAPIURL = "https://serpapi.com/search"
	// SerpAPITimeout bounds one structured search call.
	SerpAPITimeout = 30 * time.Second
)

// ErrNoCredential is returned by NewSerpAPI when no API key is configured.
var ErrNoCredential = errors.New("serpapi: no api key configured")

// SerpAPIConfig configures the structured search source.
type SerpAPIConfig struct {
	APIKey  string
	BaseURL string
	Timeout time.Duration
	Client  *httpclient.Client
}

// SerpAPI reads PAA questions and related searches from SerpAPI's Google
// engine.
type SerpAPI struct {
	key     string
	baseURL string
	timeout time.Duration
	client  *httpclient.Client
}

var _ Provider = (*SerpAPI)(nil)

type serpAPIResponse struct {
	Error            string `json:"error"`
	RelatedQuestions []struct {
		Question string `json:"question"`
	} `json:"related_questions"`
	RelatedSearches []struct {
		Query string `json:"query"`
	} `json:"related_searches"`
}

// NewSerpAPI returns a SerpAPI provider, or ErrNoCredential when the key is
// empty.
func NewSerpAPI(cfg SerpAPIConfig) (*SerpAPI, error) {
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, ErrNoCredential
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultSerpAPIURL
	}
	if cfg.Timeout <= 0 || cfg.Timeout > SerpAPITimeout {
		cfg.Timeout = SerpAPITimeout
	}
	if cfg.Client == nil {
		cfg.Client = httpclient.New(httpclient.Config{Timeout: cfg.Timeout})
	}
	return &SerpAPI{
		key:     cfg.APIKey,
		baseURL: cfg.BaseURL,
		timeout: cfg.Timeout,
		client:  cfg.Client,
	}, nil
}

func (s *SerpAPI) Name() string { return "serpapi" }

// Search queries "<keyword> <location>" geo-targeted to the location's city.
// An upstream "no results" message is an empty response, not an error.
func (s *SerpAPI) Search(ctx context.Context, keyword, location string) (*Response, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	city, _, _ := strings.Cut(location, ",")
	q := url.Values{}
	q.Set("q", keyword+" "+location)
	q.Set("location", strings.TrimSpace(city)+", United States")
	q.Set("engine", "google")
	q.Set("api_key", s.key)

	req, err := http.NewRequest(http.MethodGet, s.baseURL+"?"+q.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("serpapi: build request: %w", err)
	}

	var body serpAPIResponse
	if err := s.client.DoJSON(ctx, req, &body); err != nil {
		var se *httpclient.StatusError
		if errors.As(err, &se) && se.Code == http.StatusTooManyRequests {
			return nil, fmt.Errorf("serpapi: %w: %v", ErrBlocked, err)
		}
		return nil, fmt.Errorf("serpapi: %s", redact(err.Error(), s.key))
	}

	// Entries without text are kept so counts match what the engine showed.
	res := &Response{
		Questions: make([]string, 0, len(body.RelatedQuestions)),
		Related:   make([]string, 0, len(body.RelatedSearches)),
	}
	for _, rq := range body.RelatedQuestions {
		res.Questions = append(res.Questions, rq.Question)
	}
	for _, rs := range body.RelatedSearches {
		res.Related = append(res.Related, rs.Query)
	}
	return res, nil
}

// redact strips the API key from error text, which can echo the request URL.
func redact(msg, key string) string {
	if key == "" {
		return msg
	}
	return strings.ReplaceAll(msg, key, "REDACTED")
}
