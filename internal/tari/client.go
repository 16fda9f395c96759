// Package tari provides the upstream scoring API client and response
// normalization.
//
// The API authenticates with a per-user bearer token and has shipped
// multiple incompatible response shapes over time; all of them are folded
// into one canonical Record.
package tari

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"golang.org/x/time/rate"
)

const clientTimeout = 15 * time.Second

// Client is the HTTP client for the upstream scoring API. A token bucket
// limiter caps the request rate across all users.
type Client struct {
	httpClient *http.Client
	limiter    *rate.Limiter
	logger     *slog.Logger
}

// NewClient creates a rate-limited upstream client.
func NewClient(requestsPerMinute int, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.Default()
	}
	rps := float64(requestsPerMinute) / 60.0
	return &Client{
		httpClient: &http.Client{Timeout: clientTimeout},
		limiter:    rate.NewLimiter(rate.Limit(rps), 1),
		logger:     logger,
	}
}

// FetchDetails retrieves and normalizes the current score record for the
// user identified by token. A non-2xx response is a hard failure.
func (c *Client) FetchDetails(ctx context.Context, apiURL, token string) (Record, error) {
	if token == "" {
		return Record{}, fmt.Errorf("token is empty")
	}

	if err := c.limiter.Wait(ctx); err != nil {
		return Record{}, fmt.Errorf("rate limit wait: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, apiURL, nil)
	if err != nil {
		return Record{}, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return Record{}, fmt.Errorf("http request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return Record{}, fmt.Errorf("read response body: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return Record{}, fmt.Errorf("tari API returned %d: %s", resp.StatusCode, truncate(body, 200))
	}

	var payload map[string]any
	if err := json.Unmarshal(body, &payload); err != nil {
		return Record{}, fmt.Errorf("decode response: %w", err)
	}

	return Normalize(payload), nil
}

// truncate returns a truncated string representation for error messages.
func truncate(b []byte, maxLen int) string {
	if len(b) <= maxLen {
		return string(b)
	}
	return string(b[:maxLen]) + "..."
}
