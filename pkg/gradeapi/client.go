// Package gradeapi provides a client for the grade prediction service's
// history and model-info endpoints.
package gradeapi

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"golang.org/x/time/rate"

	"github.com/sells-group/gradelens/internal/model"
	"github.com/sells-group/gradelens/internal/resilience"
)

// Client reads prediction history and model metadata.
type Client interface {
	// Predictions returns the most recent predictions, newest first.
	Predictions(ctx context.Context) ([]model.PredictionRecord, error)
	// ModelInfo returns the trained model's metrics.
	ModelInfo(ctx context.Context) (*model.ModelInfo, error)
}

// Option configures the client.
type Option func(*httpClient)

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *httpClient) {
		c.http = hc
	}
}

// WithTimeout sets the per-request timeout. It applies to a copy of the
// HTTP client, so a client passed to WithHTTPClient is never modified.
func WithTimeout(d time.Duration) Option {
	return func(c *httpClient) {
		c.timeout = d
	}
}

// WithToken sends a bearer token on every request.
func WithToken(token string) Option {
	return func(c *httpClient) {
		c.token = token
	}
}

// WithRateLimit caps outbound requests per second. Zero or less disables
// the limiter.
func WithRateLimit(perSec float64, burst int) Option {
	return func(c *httpClient) {
		if perSec <= 0 {
			c.limiter = nil
			return
		}
		c.limiter = rate.NewLimiter(rate.Limit(perSec), max(burst, 1))
	}
}

// WithRetryPolicy overrides the retry policy for transient failures.
func WithRetryPolicy(p resilience.Policy) Option {
	return func(c *httpClient) {
		c.retry = p
	}
}

type httpClient struct {
	baseURL string
	token   string
	http    *http.Client
	timeout time.Duration
	limiter *rate.Limiter
	retry   resilience.Policy
}

// NewClient creates a client for the service rooted at baseURL,
// e.g. "http://localhost:8000/api".
func NewClient(baseURL string, opts ...Option) Client {
	c := &httpClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		http: &http.Client{
			Timeout: 15 * time.Second,
		},
		limiter: rate.NewLimiter(rate.Limit(5), 5),
		retry:   resilience.DefaultPolicy(),
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.timeout > 0 {
		hc := *c.http
		hc.Timeout = c.timeout
		c.http = &hc
	}
	return c
}

func (c *httpClient) Predictions(ctx context.Context) ([]model.PredictionRecord, error) {
	var out []model.PredictionRecord
	if err := c.getJSON(ctx, "/predictions/", &out); err != nil {
		return nil, eris.Wrap(err, "gradeapi: predictions")
	}
	if out == nil {
		out = []model.PredictionRecord{}
	}
	return out, nil
}

func (c *httpClient) ModelInfo(ctx context.Context) (*model.ModelInfo, error) {
	var out model.ModelInfo
	if err := c.getJSON(ctx, "/model-info/", &out); err != nil {
		return nil, eris.Wrap(err, "gradeapi: model info")
	}
	return &out, nil
}

func (c *httpClient) getJSON(ctx context.Context, path string, dst any) error {
	body, err := resilience.Call(ctx, c.retry, "gradeapi GET "+path, func(ctx context.Context) ([]byte, error) {
		return c.get(ctx, path)
	})
	if err != nil {
		return err
	}
	if err := json.Unmarshal(body, dst); err != nil {
		return eris.Wrap(err, "unmarshal response")
	}
	return nil
}

func (c *httpClient) get(ctx context.Context, path string) ([]byte, error) {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, eris.Wrap(err, "rate limiter")
		}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return nil, eris.Wrap(err, "create request")
	}
	req.Header.Set("Accept", "application/json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, eris.Wrap(err, "request failed")
	}
	defer resp.Body.Close() //nolint:errcheck

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, eris.Wrap(err, "read response body")
	}

	if resp.StatusCode != http.StatusOK {
		statusErr := eris.Errorf("unexpected status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
		if resilience.IsTransientHTTPStatus(resp.StatusCode) {
			return nil, resilience.NewTransientError(statusErr, resp.StatusCode)
		}
		return nil, statusErr
	}
	return body, nil
}
