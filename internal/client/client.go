package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

// APIKeyHeader carries the credential on every request.
const APIKeyHeader = "X-API-Key"

// CredentialStore supplies the API key. Get reports false when no key is
// stored.
type CredentialStore interface {
	Get() (string, bool)
	Set(credential string) error
	Clear() error
}

// Config configures a Client.
type Config struct {
	// BaseURL is the API root, e.g. https://feed.example.com.
	BaseURL string

	// Credentials provides the API key for each request.
	Credentials CredentialStore

	// HTTPClient defaults to a client with a 30 second timeout.
	HTTPClient *http.Client

	// Logger defaults to slog.Default().
	Logger *slog.Logger
}

// Client is a minimal client for the snippet feed API. Each call is a single
// attempt; retry policy belongs to the caller.
type Client struct {
	baseURL    string
	creds      CredentialStore
	httpClient *http.Client
	logger     *slog.Logger
}

// New creates a Client from cfg.
func New(cfg Config) (*Client, error) {
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("base URL is required")
	}
	if _, err := url.Parse(cfg.BaseURL); err != nil {
		return nil, fmt.Errorf("parse base URL: %w", err)
	}
	if cfg.Credentials == nil {
		return nil, fmt.Errorf("credential store is required")
	}
	if cfg.HTTPClient == nil {
		cfg.HTTPClient = &http.Client{Timeout: 30 * time.Second}
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}

	return &Client{
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		creds:      cfg.Credentials,
		httpClient: cfg.HTTPClient,
		logger:     cfg.Logger,
	}, nil
}

// Feed fetches one page of the mobile feed.
func (c *Client) Feed(ctx context.Context, limit, offset int) (*FeedPage, error) {
	q := url.Values{}
	q.Set("limit", strconv.Itoa(limit))
	q.Set("offset", strconv.Itoa(offset))

	raw, err := c.Request(ctx, http.MethodGet, "/api/v1/mobile/feed?"+q.Encode(), nil)
	if err != nil {
		return nil, err
	}
	if len(bytes.TrimSpace(raw)) == 0 {
		return nil, ErrEmptyResponse
	}

	var page FeedPage
	if err := json.Unmarshal(raw, &page); err != nil {
		return nil, fmt.Errorf("unmarshal feed: %w", err)
	}
	if page.Posts == nil {
		return nil, ErrEmptyResponse
	}
	return &page, nil
}

// UpdateFeedback sends a feedback mutation for a post. The response body is
// not interpreted beyond success or failure.
func (c *Client) UpdateFeedback(ctx context.Context, postID int64, update FeedbackUpdate) error {
	_, err := c.Request(ctx, http.MethodPut, fmt.Sprintf("/api/v1/mobile/posts/%d/feedback", postID), update)
	return err
}

// Stats fetches the aggregate counters.
func (c *Client) Stats(ctx context.Context) (*Stats, error) {
	raw, err := c.Request(ctx, http.MethodGet, "/api/v1/mobile/stats", nil)
	if err != nil {
		return nil, err
	}

	var stats Stats
	if err := json.Unmarshal(raw, &stats); err != nil {
		return nil, fmt.Errorf("unmarshal stats: %w", err)
	}
	return &stats, nil
}

// AuthHeader returns the headers carrying the credential, for callers that
// open their own connections.
func (c *Client) AuthHeader() (http.Header, error) {
	key, ok := c.creds.Get()
	if !ok || key == "" {
		return nil, ErrMissingCredential
	}
	h := http.Header{}
	h.Set(APIKeyHeader, key)
	return h, nil
}

// URL resolves an endpoint path against the base URL.
func (c *Client) URL(endpoint string) string {
	return c.baseURL + endpoint
}

// Request issues a single authenticated call and returns the raw response
// body. Failures are classified as ErrMissingCredential,
// ErrInvalidCredential, *HTTPError, or *NetworkError.
func (c *Client) Request(ctx context.Context, method, endpoint string, body any) (json.RawMessage, error) {
	header, err := c.AuthHeader()
	if err != nil {
		return nil, err
	}

	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("marshal request: %w", err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.URL(endpoint), reader)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header = header
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.Debug("request failed", "method", method, "endpoint", endpoint, "error", err)
		return nil, &NetworkError{Cause: err}
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &NetworkError{Cause: fmt.Errorf("read response: %w", err)}
	}

	c.logger.Debug("request completed",
		"method", method,
		"endpoint", endpoint,
		"status", resp.StatusCode,
		"duration", time.Since(start),
	)

	switch {
	case resp.StatusCode == http.StatusUnauthorized:
		return nil, ErrInvalidCredential
	case resp.StatusCode < 200 || resp.StatusCode >= 300:
		return nil, &HTTPError{Status: resp.StatusCode, Body: strings.TrimSpace(string(respBody))}
	}

	return respBody, nil
}
