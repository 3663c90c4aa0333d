// Package collab is the REST client for the gateway's aggregate-stats and
// network-catalog endpoints.
package collab

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"rpctail/internal/models"
)

// Endpoint paths relative to the base URL.
const (
	StatsPath    = "/api/stats"
	NetworksPath = "/api/networks"
)

// DefaultBaseURL is used when no base URL is configured.
const DefaultBaseURL = "http://localhost:8080"

// ErrUnexpectedStatus matches every APIError via errors.Is.
var ErrUnexpectedStatus = errors.New("unexpected status")

// Client provides typed access to the collaborator endpoints.
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
}

// Option customises client instantiation.
type Option func(*Client)

// WithHTTPClient overrides the default HTTP client.
func WithHTTPClient(h *http.Client) Option {
	return func(c *Client) {
		if h != nil {
			c.httpClient = h
		}
	}
}

// WithTimeout sets the per-request timeout of the default HTTP client.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.httpClient = &http.Client{Timeout: d}
		}
	}
}

// WithAPIKey sends the key as a bearer token.
func WithAPIKey(key string) Option {
	return func(c *Client) {
		c.apiKey = strings.TrimSpace(key)
	}
}

// New constructs a Client pointing at the provided base URL.
func New(base string, opts ...Option) (*Client, error) {
	trimmed := strings.TrimSpace(base)
	if trimmed == "" {
		trimmed = DefaultBaseURL
	}
	if !strings.HasPrefix(trimmed, "http://") && !strings.HasPrefix(trimmed, "https://") {
		trimmed = "http://" + trimmed
	}
	if _, err := url.Parse(trimmed); err != nil {
		return nil, fmt.Errorf("invalid api base url: %w", err)
	}
	cli := &Client{
		baseURL:    strings.TrimRight(trimmed, "/"),
		httpClient: &http.Client{Timeout: 10 * time.Second},
	}
	for _, opt := range opts {
		opt(cli)
	}
	return cli, nil
}

// BaseURL returns the normalised base URL.
func (c *Client) BaseURL() string { return c.baseURL }

// APIError represents a non-2xx response.
type APIError struct {
	Status  int
	Message string
}

func (e APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("api request failed with status %d", e.Status)
	}
	return fmt.Sprintf("api request failed (%d): %s", e.Status, e.Message)
}

func (e APIError) Unwrap() error { return ErrUnexpectedStatus }

// Stats fetches the aggregate stats.
func (c *Client) Stats(ctx context.Context) (models.AggregateStats, error) {
	var out models.AggregateStats
	if err := c.get(ctx, StatsPath, &out); err != nil {
		return models.AggregateStats{}, fmt.Errorf("fetch stats: %w", err)
	}
	return out, nil
}

// Networks fetches the network catalog in server order. Both a bare array
// and an object with a "networks" field are accepted.
func (c *Client) Networks(ctx context.Context) ([]models.Network, error) {
	var raw json.RawMessage
	if err := c.get(ctx, NetworksPath, &raw); err != nil {
		return nil, fmt.Errorf("fetch networks: %w", err)
	}
	raw = bytes.TrimSpace(raw)

	var out []models.Network
	if len(raw) > 0 && raw[0] == '{' {
		var wrapped struct {
			Networks []models.Network `json:"networks"`
		}
		if err := json.Unmarshal(raw, &wrapped); err != nil {
			return nil, fmt.Errorf("fetch networks: decode response: %w", err)
		}
		out = wrapped.Networks
	} else if err := json.Unmarshal(raw, &out); err != nil {
		return nil, fmt.Errorf("fetch networks: decode response: %w", err)
	}
	if out == nil {
		out = []models.Network{}
	}
	return out, nil
}

func (c *Client) get(ctx context.Context, path string, v any) error {
	if c == nil {
		return fmt.Errorf("client is nil")
	}
	if ctx == nil {
		ctx = context.Background()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("perform request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return APIError{Status: resp.StatusCode, Message: extractError(resp.Body)}
	}
	if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

func extractError(body io.Reader) string {
	var payload struct {
		Error string `json:"error"`
	}
	data, err := io.ReadAll(io.LimitReader(body, 4<<10))
	if err != nil || len(data) == 0 {
		return ""
	}
	if err := json.Unmarshal(data, &payload); err != nil {
		return strings.TrimSpace(string(data))
	}
	return strings.TrimSpace(payload.Error)
}
