package tmdb

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"metasync/internal/conditional"
	"metasync/internal/scheduler"
	"metasync/internal/services"
)

// QuotaHeader carries the number of requests left in the current window.
const QuotaHeader = "X-RateLimit-Remaining"

const maxPayloadBytes = 16 << 20

// StatusError reports an unexpected HTTP status.
type StatusError struct {
	Operation string
	Code      int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("tmdb %s returned %d", e.Operation, e.Code)
}

// Client provides access to the TMDB API.
type Client struct {
	apiKey     string
	baseURL    string
	language   string
	httpClient *http.Client
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient overrides the default HTTP client.
func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) {
		if client != nil {
			c.httpClient = client
		}
	}
}

// WithTimeout sets the timeout of the default HTTP client.
func WithTimeout(timeout time.Duration) Option {
	return func(c *Client) {
		if timeout > 0 {
			c.httpClient = &http.Client{Timeout: timeout}
		}
	}
}

// New creates a TMDB client.
func New(apiKey, baseURL, language string, opts ...Option) (*Client, error) {
	apiKey = strings.TrimSpace(apiKey)
	if apiKey == "" {
		return nil, errors.New("tmdb api key required")
	}
	baseURL = strings.TrimSpace(baseURL)
	if baseURL == "" {
		return nil, errors.New("tmdb base url required")
	}
	client := &Client{
		apiKey:     apiKey,
		baseURL:    strings.TrimRight(baseURL, "/"),
		language:   strings.TrimSpace(language),
		httpClient: &http.Client{Timeout: 30 * time.Second},
	}
	for _, opt := range opts {
		opt(client)
	}
	return client, nil
}

// Language returns the metadata locale sent with every localized request.
func (c *Client) Language() string {
	return c.language
}

func (c *Client) endpoint(path string, params url.Values, localized bool) string {
	if params == nil {
		params = url.Values{}
	}
	params.Set("api_key", c.apiKey)
	if localized && c.language != "" {
		params.Set("language", c.language)
	}
	return c.baseURL + path + "?" + params.Encode()
}

// get performs one GET. A 304 yields NotModified with no body; any other
// non-200 status is an error carrying the observed quota.
func (c *Client) get(ctx context.Context, operation, endpoint string, pre conditional.Preconditions) (conditional.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return conditional.Response{}, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if pre.IfNoneMatch != "" {
		req.Header.Set("If-None-Match", pre.IfNoneMatch)
	}
	if !pre.IfModifiedSince.IsZero() {
		req.Header.Set("If-Modified-Since", pre.IfModifiedSince.UTC().Format(http.TimeFormat))
	}

	requestStart := time.Now()
	resp, err := c.httpClient.Do(req)
	latency := time.Since(requestStart)
	if err != nil {
		return conditional.Response{}, services.Wrap(services.ErrTransient, "tmdb", operation,
			fmt.Sprintf("execute request (latency=%v)", latency), err)
	}
	defer resp.Body.Close()

	out := conditional.Response{
		Validator: resp.Header.Get("ETag"),
		Quota:     ParseQuota(resp.Header),
	}
	switch resp.StatusCode {
	case http.StatusOK:
	case http.StatusNotModified:
		out.NotModified = true
		return out, nil
	default:
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		return out, services.Wrap(services.ErrTransient, "tmdb", operation,
			fmt.Sprintf("latency=%v", latency), &StatusError{Operation: operation, Code: resp.StatusCode})
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxPayloadBytes))
	if err != nil {
		return out, services.Wrap(services.ErrTransient, "tmdb", operation, "read response body", err)
	}
	out.Body = body
	return out, nil
}

// ParseQuota reads the remaining-requests header.
func ParseQuota(h http.Header) scheduler.Observation {
	raw := strings.TrimSpace(h.Get(QuotaHeader))
	if raw == "" {
		return scheduler.Observation{}
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return scheduler.Observation{}
	}
	return scheduler.Quota(n)
}
