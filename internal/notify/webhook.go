package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

const (
	webhookTimeout = 15 * time.Second

	colorGreen = 0x00ff00
	colorRed   = 0xff0000
)

// discordWebhookPath is the expected substring of a Discord webhook URL.
// Validation is a UX nicety, not a security boundary.
const discordWebhookPath = "discord.com/api/webhooks"

// Payload is the Discord webhook request body.
type Payload struct {
	Embeds []Embed `json:"embeds"`
}

// Embed is a single Discord embed.
type Embed struct {
	Title     string     `json:"title"`
	Color     int        `json:"color"`
	Thumbnail *Thumbnail `json:"thumbnail,omitempty"`
	Fields    []Field    `json:"fields"`
	Timestamp string     `json:"timestamp"`
}

// Thumbnail references an image shown beside the embed.
type Thumbnail struct {
	URL string `json:"url"`
}

// Field is a name/value pair inside an embed.
type Field struct {
	Name   string `json:"name"`
	Value  string `json:"value"`
	Inline bool   `json:"inline"`
}

// WebhookSender posts embed payloads to Discord webhook URLs.
type WebhookSender struct {
	httpClient *http.Client
}

// NewWebhookSender creates a sender with a bounded request timeout.
func NewWebhookSender() *WebhookSender {
	return &WebhookSender{
		httpClient: &http.Client{Timeout: webhookTimeout},
	}
}

// LooksLikeWebhookURL reports whether the URL resembles a Discord webhook.
func LooksLikeWebhookURL(url string) bool {
	return strings.Contains(url, discordWebhookPath)
}

// Send delivers the payload. A non-2xx response is a delivery failure.
func (s *WebhookSender) Send(ctx context.Context, webhookURL string, p Payload) error {
	body, err := json.Marshal(p)
	if err != nil {
		return fmt.Errorf("marshal payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, webhookURL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("post webhook: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 200))
		return fmt.Errorf("discord returned %d: %s", resp.StatusCode, string(respBody))
	}
	return nil
}
