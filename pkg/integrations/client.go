package integrations

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/matzehuels/diagramir/pkg/httputil"
	"github.com/matzehuels/diagramir/pkg/observability"
)

// Client provides shared HTTP functionality for remote taxonomy sources.
// It handles default headers, status mapping and retries of transient
// failures. A Client is safe for concurrent use.
type Client struct {
	http     *http.Client
	headers  map[string]string
	attempts int
	delay    time.Duration
}

// NewClient creates a Client with the given default headers.
// Headers are applied to all requests made through this client.
// Pass nil for headers if no default headers are needed.
func NewClient(headers map[string]string) *Client {
	return &Client{
		http:     NewHTTPClient(),
		headers:  headers,
		attempts: 1,
	}
}

// WithHTTPClient replaces the underlying HTTP client and returns c.
func (c *Client) WithHTTPClient(h *http.Client) *Client {
	if h != nil {
		c.http = h
	}
	return c
}

// WithRetry makes every request retry transient failures. attempts below
// one means a single try.
func (c *Client) WithRetry(attempts int, delay time.Duration) *Client {
	c.attempts, c.delay = max(attempts, 1), delay
	return c
}

// Get performs an HTTP GET request and JSON-decodes the response into v.
func (c *Client) Get(ctx context.Context, url string, v any) error {
	return c.GetWithHeaders(ctx, url, nil, v)
}

// GetWithHeaders performs an HTTP GET with additional headers merged with defaults.
// Request-specific headers override client defaults for the same key.
func (c *Client) GetWithHeaders(ctx context.Context, url string, headers map[string]string, v any) error {
	return c.Do(ctx, http.MethodGet, url, headers, nil, v)
}

// Post JSON-encodes body, POSTs it and decodes the response into v.
func (c *Client) Post(ctx context.Context, url string, headers map[string]string, body, v any) error {
	return c.Do(ctx, http.MethodPost, url, headers, body, v)
}

// Do sends a request with an optional JSON body and decodes a JSON response
// into v. A nil v discards the body.
func (c *Client) Do(ctx context.Context, method, rawURL string, headers map[string]string, body, v any) error {
	var payload []byte
	if body != nil {
		var err error
		if payload, err = json.Marshal(body); err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
	}
	return httputil.Retry(ctx, c.attempts, c.delay, func() error {
		resp, err := c.doRequest(ctx, method, rawURL, headers, payload)
		if err != nil {
			return err
		}
		defer resp.Close()
		if v == nil {
			_, err = io.Copy(io.Discard, resp)
			return err
		}
		if err := json.NewDecoder(resp).Decode(v); err != nil {
			return fmt.Errorf("decode %s: %w", rawURL, err)
		}
		return nil
	})
}

// GetText performs an HTTP GET request and returns the response body as a string.
func (c *Client) GetText(ctx context.Context, url string) (string, error) {
	var text string
	err := httputil.Retry(ctx, c.attempts, c.delay, func() error {
		body, err := c.doRequest(ctx, http.MethodGet, url, nil, nil)
		if err != nil {
			return err
		}
		defer body.Close()
		data, err := io.ReadAll(body)
		text = string(data)
		return err
	})
	return text, err
}

func (c *Client) doRequest(ctx context.Context, method, rawURL string, headers map[string]string, payload []byte) (io.ReadCloser, error) {
	var body io.Reader
	if payload != nil {
		body = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, method, rawURL, body)
	if err != nil {
		return nil, err
	}
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")
	for k, v := range c.headers {
		req.Header.Set(k, v)
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	host, path := hostPath(rawURL)
	hooks := observability.HTTP()
	hooks.OnRequest(ctx, method, host, path)
	start := time.Now()

	resp, err := c.http.Do(req)
	if err != nil {
		hooks.OnError(ctx, method, host, path, err)
		return nil, &httputil.RetryableError{Err: fmt.Errorf("%w: %v", ErrNetwork, err)}
	}
	hooks.OnResponse(ctx, method, host, path, resp.StatusCode, time.Since(start))

	if err := checkStatus(resp); err != nil {
		resp.Body.Close()
		return nil, err
	}
	return resp.Body, nil
}

func checkStatus(resp *http.Response) error {
	code := resp.StatusCode
	switch {
	case code >= 200 && code < 300:
		return nil
	case code == http.StatusNotFound:
		return ErrNotFound
	case code == http.StatusTooManyRequests || code >= 500:
		return &httputil.RetryableError{
			Err:   fmt.Errorf("%w: status %d", ErrNetwork, code),
			After: httputil.RetryAfter(resp.Header),
		}
	default:
		return fmt.Errorf("%w: status %d", ErrNetwork, code)
	}
}

func hostPath(rawURL string) (string, string) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", rawURL
	}
	return u.Host, u.Path
}
