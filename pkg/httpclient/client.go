package httpclient

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/FranksOps/paaplan/pkg/useragent"
)

// maxErrorBody bounds how much of a failed response is kept in a StatusError.
const maxErrorBody = 512

// Config defines the setup for the HTTP Client.
type Config struct {
	Timeout      time.Duration
	// MaxRedirects caps redirect hops; 0 means 10, negative disables following.
	MaxRedirects int
	// Provide a custom Transport, e.g. for uTLS fingerprinting
	Transport    http.RoundTripper
	// UserAgents, when set, supplies a User-Agent for requests that lack one.
	UserAgents   *useragent.Pool
}

// Client wraps a standard http.Client with a per-client timeout, redirect
// policy and User-Agent rotation. Requests are traced with OpenTelemetry.
type Client struct {
	*http.Client
	uas *useragent.Pool
}

// StatusError is returned by DoJSON when the upstream answers with a
// non-2xx status.
type StatusError struct {
	Code int
	Body string
}

func (e *StatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("unexpected status %d", e.Code)
	}
	return fmt.Sprintf("unexpected status %d: %s", e.Code, e.Body)
}

// New creates a new HTTP client based on the provided configuration.
func New(cfg Config) *Client {
	if cfg.Timeout == 0 {
		cfg.Timeout = 30 * time.Second
	}

	base := cfg.Transport
	if base == nil {
		base = http.DefaultTransport
	}
	c := &http.Client{
		Timeout:   cfg.Timeout,
		Transport: otelhttp.NewTransport(base),
	}

	if cfg.MaxRedirects >= 0 {
		limit := cfg.MaxRedirects
		if limit == 0 {
			limit = 10
		}
		c.CheckRedirect = func(req *http.Request, via []*http.Request) error {
			if len(via) >= limit {
				return fmt.Errorf("stopped after %d redirects", limit)
			}
			return nil
		}
	} else {
		c.CheckRedirect = func(req *http.Request, via []*http.Request) error {
			return http.ErrUseLastResponse
		}
	}

	return &Client{Client: c, uas: cfg.UserAgents}
}

// Do executes an HTTP request under ctx. The client timeout still applies.
func (c *Client) Do(ctx context.Context, req *http.Request) (*http.Response, error) {
	if ctx == nil {
		return nil, errors.New("httpclient: context cannot be nil")
	}

	req = req.Clone(ctx)
	if c.uas != nil && req.Header.Get("User-Agent") == "" {
		req.Header.Set("User-Agent", c.uas.Next())
	}

	resp, err := c.Client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	return resp, nil
}

// DoJSON executes req and decodes a 2xx JSON body into out. Other statuses
// yield a *StatusError carrying the start of the body.
func (c *Client) DoJSON(ctx context.Context, req *http.Request, out any) error {
	if req.Header.Get("Accept") == "" {
		req.Header.Set("Accept", "application/json")
	}

	resp, err := c.Do(ctx, req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return &StatusError{Code: resp.StatusCode, Body: string(body)}
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
