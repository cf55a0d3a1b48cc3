// Package tribeapi provides a client for the tribe simulation backend's
// REST API.
package tribeapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"golang.org/x/time/rate"

	"github.com/genericsim/tribectl/internal/model"
	"github.com/genericsim/tribectl/internal/resilience"
)

const serviceName = "tribeapi"

// Client defines the tribe backend operations.
type Client interface {
	// ListTribes returns every tribe known to the backend.
	ListTribes(ctx context.Context) ([]model.Tribe, error)
	// GetTribeState returns the full state of a tribe, including its policy.
	GetTribeState(ctx context.Context, id int64) (*model.TribeState, error)
	// UpdatePolicy applies a partial policy update and returns the new state.
	UpdatePolicy(ctx context.Context, id int64, update model.PolicyUpdate) (*model.TribeState, error)
	// GetStatistics returns aggregated statistics for a tribe.
	GetStatistics(ctx context.Context, id int64) (*model.TribeStatistics, error)
	// AdvanceTick advances the tribe's simulation by one day.
	AdvanceTick(ctx context.Context, id int64) (*model.TribeState, error)
	// Health reports backend health.
	Health(ctx context.Context) (*HealthStatus, error)
}

// HealthStatus is the backend health response.
type HealthStatus struct {
	Status string `json:"status"`
}

// Option configures the client.
type Option func(*httpClient)

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *httpClient) {
		c.http = hc
	}
}

// WithTimeout sets the per-request timeout of the default HTTP client.
func WithTimeout(d time.Duration) Option {
	return func(c *httpClient) {
		c.http.Timeout = d
	}
}

// WithRetry overrides the retry policy for idempotent requests.
func WithRetry(cfg resilience.RetryConfig) Option {
	return func(c *httpClient) {
		c.retry = cfg
	}
}

// WithCircuitBreaker guards every request with cb.
func WithCircuitBreaker(cb *resilience.CircuitBreaker) Option {
	return func(c *httpClient) {
		c.breaker = cb
	}
}

// WithRateLimit caps outbound requests per second. Zero disables limiting.
func WithRateLimit(perSecond float64, burst int) Option {
	return func(c *httpClient) {
		if perSecond <= 0 {
			c.limiter = nil
			return
		}
		c.limiter = rate.NewLimiter(rate.Limit(perSecond), max(burst, 1))
	}
}

type httpClient struct {
	baseURL string
	http    *http.Client
	retry   resilience.RetryConfig
	breaker *resilience.CircuitBreaker
	limiter *rate.Limiter
}

// NewClient creates a client for the backend rooted at baseURL, e.g.
// "http://localhost:8080/api".
func NewClient(baseURL string, opts ...Option) Client {
	retry := resilience.DefaultRetryConfig()
	retry.OnRetry = resilience.RetryLogger(serviceName, "request")

	c := &httpClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		http: &http.Client{
			Timeout: 15 * time.Second,
			Transport: &http.Transport{
				MaxIdleConnsPerHost: 4,
				IdleConnTimeout:     90 * time.Second,
			},
		},
		retry: retry,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// IsNotFound reports whether err is a 404 from the backend.
func IsNotFound(err error) bool {
	var se *resilience.StatusError
	return errors.As(err, &se) && se.StatusCode == http.StatusNotFound
}

func (c *httpClient) ListTribes(ctx context.Context) ([]model.Tribe, error) {
	var tribes []model.Tribe
	if err := c.do(ctx, http.MethodGet, "/tribes", nil, &tribes, true); err != nil {
		return nil, eris.Wrap(err, "tribeapi: list tribes")
	}
	return tribes, nil
}

func (c *httpClient) GetTribeState(ctx context.Context, id int64) (*model.TribeState, error) {
	var state model.TribeState
	if err := c.do(ctx, http.MethodGet, fmt.Sprintf("/tribes/%d", id), nil, &state, true); err != nil {
		return nil, eris.Wrapf(err, "tribeapi: get tribe %d", id)
	}
	return &state, nil
}

// UpdatePolicy is retried: the backend merge is idempotent for a given payload.
func (c *httpClient) UpdatePolicy(ctx context.Context, id int64, update model.PolicyUpdate) (*model.TribeState, error) {
	var state model.TribeState
	if err := c.do(ctx, http.MethodPut, fmt.Sprintf("/tribes/%d/policy", id), update, &state, true); err != nil {
		return nil, eris.Wrapf(err, "tribeapi: update policy for tribe %d", id)
	}
	return &state, nil
}

func (c *httpClient) GetStatistics(ctx context.Context, id int64) (*model.TribeStatistics, error) {
	var stats model.TribeStatistics
	if err := c.do(ctx, http.MethodGet, fmt.Sprintf("/tribes/%d/statistics", id), nil, &stats, true); err != nil {
		return nil, eris.Wrapf(err, "tribeapi: get statistics for tribe %d", id)
	}
	return &stats, nil
}

// AdvanceTick is never retried; a duplicate POST would advance two days.
func (c *httpClient) AdvanceTick(ctx context.Context, id int64) (*model.TribeState, error) {
	var state model.TribeState
	if err := c.do(ctx, http.MethodPost, fmt.Sprintf("/tribes/%d/tick", id), nil, &state, false); err != nil {
		return nil, eris.Wrapf(err, "tribeapi: advance tick for tribe %d", id)
	}
	return &state, nil
}

func (c *httpClient) Health(ctx context.Context) (*HealthStatus, error) {
	var h HealthStatus
	if err := c.do(ctx, http.MethodGet, "/health", nil, &h, true); err != nil {
		return nil, eris.Wrap(err, "tribeapi: health")
	}
	return &h, nil
}

// do sends one logical request through the rate limiter, circuit breaker and
// retry policy, and decodes a JSON response into out.
func (c *httpClient) do(ctx context.Context, method, path string, in, out any, retryable bool) error {
	var payload []byte
	if in != nil {
		var err error
		payload, err = json.Marshal(in)
		if err != nil {
			return eris.Wrap(err, "marshal request")
		}
	}

	retry := c.retry
	if !retryable {
		retry.MaxAttempts = 1
	}

	attempt := func(ctx context.Context) ([]byte, error) {
		if c.limiter != nil {
			if err := c.limiter.Wait(ctx); err != nil {
				return nil, eris.Wrap(err, "rate limit wait")
			}
		}
		return c.send(ctx, method, path, payload)
	}

	body, err := resilience.DoVal(ctx, retry, func(ctx context.Context) ([]byte, error) {
		if c.breaker == nil {
			return attempt(ctx)
		}
		return resilience.ExecuteVal(ctx, c.breaker, attempt)
	})
	if err != nil {
		return err
	}

	if out == nil {
		return nil
	}
	if err := json.Unmarshal(body, out); err != nil {
		return eris.Wrap(err, "unmarshal response")
	}
	return nil
}

func (c *httpClient) send(ctx context.Context, method, path string, payload []byte) ([]byte, error) {
	var reqBody io.Reader
	if payload != nil {
		reqBody = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reqBody)
	if err != nil {
		return nil, eris.Wrap(err, "create request")
	}
	req.Header.Set("Accept", "application/json")
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close() //nolint:errcheck

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, resilience.NewTransientError(eris.Wrap(err, "read response body"))
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &resilience.StatusError{
			Service:    serviceName,
			StatusCode: resp.StatusCode,
			Body:       strings.TrimSpace(string(body)),
		}
	}
	return body, nil
}
