package googlebooks

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	apperrors "github.com/lepinkainen/buyback/internal/errors"
	"github.com/lepinkainen/buyback/internal/ratelimit"
)

// DefaultBaseURL is the public Google Books API root
const DefaultBaseURL = "https://www.googleapis.com/books/v1"

// Client queries the Google Books volumes API
type Client struct {
	httpClient *http.Client
	baseURL    string
	apiKey     string
	limiter    *ratelimit.Limiter
}

// Option configures a Client
type Option func(*Client)

// WithHTTPClient replaces the HTTP client
func WithHTTPClient(c *http.Client) Option {
	return func(client *Client) {
		client.httpClient = c
	}
}

// WithBaseURL points the client at a different API root; empty keeps the default
func WithBaseURL(baseURL string) Option {
	return func(client *Client) {
		if baseURL != "" {
			client.baseURL = strings.TrimRight(baseURL, "/")
		}
	}
}

// WithTimeout sets the per-request timeout; non-positive values keep the default
func WithTimeout(timeout time.Duration) Option {
	return func(client *Client) {
		if timeout > 0 {
			client.httpClient.Timeout = timeout
		}
	}
}

// WithAPIKey sets the API key appended to each request
func WithAPIKey(key string) Option {
	return func(client *Client) {
		client.apiKey = key
	}
}

// WithRateLimit caps outgoing requests per second
func WithRateLimit(requestsPerSecond int) Option {
	return func(client *Client) {
		client.limiter = ratelimit.New("googlebooks", requestsPerSecond)
	}
}

// NewClient creates a Google Books client
func NewClient(opts ...Option) *Client {
	c := &Client{
		httpClient: &http.Client{Timeout: 10 * time.Second},
		baseURL:    DefaultBaseURL,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// SearchByTitle returns the first volume whose title matches the query.
// A search without results returns a BookNotFoundError.
func (c *Client) SearchByTitle(ctx context.Context, title string) (*Volume, error) {
	if title == "" {
		return nil, fmt.Errorf("title is required")
	}

	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, err
		}
	}

	params := url.Values{}
	params.Set("q", "intitle:"+title)
	if c.apiKey != "" {
		params.Set("key", c.apiKey)
	}
	reqURL := fmt.Sprintf("%s/volumes?%s", c.baseURL, params.Encode())

	slog.Debug("Searching Google Books", "title", title)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create Google Books request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("google Books API request failed for title %q: %w", title, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode == http.StatusTooManyRequests {
		retryAfter, _ := strconv.Atoi(resp.Header.Get("Retry-After"))
		return nil, apperrors.NewRateLimitErrorWithRetry("google Books API rate limit exceeded", time.Duration(retryAfter)*time.Second)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("google Books API returned non-200 status code: %d for title: %s", resp.StatusCode, title)
	}

	var result SearchResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("failed to decode Google Books response for title %q: %w", title, err)
	}

	if len(result.Items) == 0 {
		return nil, apperrors.NewBookNotFoundError(title)
	}

	slog.Debug("Google Books search matched",
		"title", title,
		"match", result.Items[0].VolumeInfo.Title,
		"total", result.TotalItems,
	)

	return &result.Items[0], nil
}
