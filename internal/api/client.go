// Package api is the REST client of the remote expense service.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"expensetracker/internal/log"
	"expensetracker/internal/metrics"
)

const maxResponseBytes = 4 << 20

// APIError is a non-2xx answer from the service.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("api error %d: %s", e.StatusCode, e.Message)
}

// StatusCode returns the HTTP status carried by err, or 0.
func StatusCode(err error) int {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.StatusCode
	}
	return 0
}

// IsUnauthorized reports a 401 answer, i.e. a rejected or expired token.
func IsUnauthorized(err error) bool {
	return StatusCode(err) == http.StatusUnauthorized
}

func IsNotFound(err error) bool {
	return StatusCode(err) == http.StatusNotFound
}

// newAPIError extracts the message from {"message": ...} or {"error": ...}
// bodies, falling back to the raw text or the status text.
func newAPIError(status int, body []byte) *APIError {
	var payload struct {
		Message string `json:"message"`
		Error   string `json:"error"`
	}
	msg := ""
	if err := json.Unmarshal(body, &payload); err == nil {
		msg = payload.Message
		if msg == "" {
			msg = payload.Error
		}
	} else if text := strings.TrimSpace(string(body)); text != "" && len(text) < 200 {
		msg = text
	}
	if msg == "" {
		msg = http.StatusText(status)
	}
	return &APIError{StatusCode: status, Message: msg}
}

// TokenSource returns the bearer token to attach, or "" for none.
type TokenSource func() string

// Client talks JSON to the expense service.
type Client struct {
	baseURL    *url.URL
	httpClient *http.Client
	timeout    time.Duration
	token      TokenSource
	logger     *log.Logger
}

type Option func(*Client)

// WithHTTPClient replaces the default client, whose transport logs requests.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// WithTimeout bounds every request. Zero means no timeout.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) { c.timeout = d }
}

func WithTokenSource(ts TokenSource) Option {
	return func(c *Client) { c.token = ts }
}

func WithLogger(l *log.Logger) Option {
	return func(c *Client) { c.logger = l }
}

// New creates a client rooted at baseURL, e.g. "https://host/api".
func New(baseURL string, opts ...Option) (*Client, error) {
	u, err := url.Parse(strings.TrimRight(baseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("parse base URL: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("unsupported base URL scheme %q", u.Scheme)
	}

	c := &Client{baseURL: u, logger: log.Discard()}
	for _, opt := range opts {
		opt(c)
	}
	c.logger = c.logger.WithComponent(log.ComponentAPI)
	if c.httpClient == nil {
		c.httpClient = &http.Client{Transport: log.NewTransport(nil, c.logger)}
	}
	if c.timeout > 0 {
		hc := *c.httpClient
		hc.Timeout = c.timeout
		c.httpClient = &hc
	}
	return c, nil
}

// Do sends body as JSON and decodes a successful response into out. Non-2xx
// answers come back as *APIError.
func (c *Client) Do(ctx context.Context, method, path string, query url.Values, body, out any) error {
	u := *c.baseURL
	u.Path = c.baseURL.Path + "/" + strings.TrimLeft(path, "/")
	if len(query) > 0 {
		u.RawQuery = query.Encode()
	}

	var rdr io.Reader
	if body != nil {
		buf, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode %s %s request: %w", method, path, err)
		}
		rdr = bytes.NewReader(buf)
	}

	req, err := http.NewRequestWithContext(ctx, method, u.String(), rdr)
	if err != nil {
		return fmt.Errorf("build %s %s request: %w", method, path, err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set(log.HeaderRequestID, uuid.NewString())
	if c.token != nil {
		if tok := c.token(); tok != "" {
			req.Header.Set("Authorization", "Bearer "+tok)
		}
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		metrics.APIRequestDuration.WithLabelValues(method, "error").Observe(time.Since(start).Seconds())
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()
	metrics.APIRequestDuration.WithLabelValues(method, strconv.Itoa(resp.StatusCode)).Observe(time.Since(start).Seconds())

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return fmt.Errorf("read %s %s response: %w", method, path, err)
	}
	if resp.StatusCode >= 400 {
		return newAPIError(resp.StatusCode, data)
	}
	if out == nil || len(bytes.TrimSpace(data)) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("decode %s %s response: %w", method, path, err)
	}
	return nil
}
