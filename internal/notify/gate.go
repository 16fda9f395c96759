package notify

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/tariwatch/tariwatch/internal/store"
)

// Sender delivers an embed payload to a webhook URL.
type Sender interface {
	Send(ctx context.Context, webhookURL string, p Payload) error
}

// LastNotifiedStore persists the last successful delivery time per user.
type LastNotifiedStore interface {
	SetLastNotified(ctx context.Context, userID int64, t time.Time) error
}

// Gate applies the notification preconditions and delivers on success.
type Gate struct {
	store  LastNotifiedStore
	sender Sender
	clock  clockwork.Clock
	logger *slog.Logger
}

// NewGate creates a gate. A nil clock defaults to the real clock.
func NewGate(s LastNotifiedStore, sender Sender, clock clockwork.Clock, logger *slog.Logger) *Gate {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Gate{store: s, sender: sender, clock: clock, logger: logger}
}

// Notify evaluates the gate for a user given their two most recent snapshots
// (current strictly newer than previous) and the current settings. A forced
// trigger bypasses the interval throttle but not the enabled/webhook check.
// Never returns an error: all outcomes are structured Results.
func (g *Gate) Notify(ctx context.Context, user store.User, current, previous store.Snapshot, settings store.Settings, forced bool) Result {
	// 1. Toggle and webhook target. No network call when either is missing.
	if !user.DiscordEnabled || user.DiscordWebhookURL == nil || *user.DiscordWebhookURL == "" {
		return Result{Status: StatusDisabled, Message: "Discord notifications disabled or webhook URL is not set"}
	}
	webhookURL := *user.DiscordWebhookURL
	if !LooksLikeWebhookURL(webhookURL) {
		g.logger.Warn("webhook URL does not look like a Discord webhook", "user", user.Name)
	}

	// 2. Interval throttle, unless force-triggered.
	if !forced {
		var last time.Time
		if user.LastDiscordNotification != nil {
			last = *user.LastDiscordNotification
		}
		interval := time.Duration(settings.DiscordNotificationInterval) * time.Second
		elapsed := g.clock.Now().Sub(last)
		if elapsed < interval {
			wait := interval - elapsed
			r := Result{Status: StatusThrottled, Wait: wait}
			r.Message = fmt.Sprintf("Notification interval not reached. Next notification possible in ~%d minutes", r.WaitMinutes())
			return r
		}
	}

	// 3. Deliver.
	payload := buildPayload(user, current, previous, g.clock.Now())
	if err := g.sender.Send(ctx, webhookURL, payload); err != nil {
		g.logger.Warn("Discord delivery failed", "user", user.Name, "error", err)
		return Result{Status: StatusDeliveryFailed, Message: fmt.Sprintf("delivery failed: %v", err)}
	}

	// Advance last-notified only after confirmed delivery.
	if err := g.store.SetLastNotified(ctx, user.ID, g.clock.Now()); err != nil {
		g.logger.Warn("failed to persist last-notified time", "user", user.Name, "error", err)
	}
	return Result{Status: StatusSent, Message: "Discord notification sent successfully"}
}

// buildPayload constructs the score-update embed: current score, previous
// score, delta-signed color, and current rank (or "Unknown").
func buildPayload(user store.User, current, previous store.Snapshot, now time.Time) Payload {
	color := colorRed
	if current.TotalScore-previous.TotalScore > 0 {
		color = colorGreen
	}

	rankValue := "Unknown"
	if current.Rank != nil && *current.Rank != "" {
		rankValue = "#" + *current.Rank
	}

	embed := Embed{
		Title: fmt.Sprintf("%s's Tari Score Update", user.Name),
		Color: color,
		Fields: []Field{
			{Name: "Current Score", Value: groupDigits(current.TotalScore), Inline: true},
			{Name: "Previous Score", Value: groupDigits(previous.TotalScore), Inline: true},
			{Name: "Current Rank", Value: rankValue, Inline: true},
		},
		Timestamp: now.UTC().Format(time.RFC3339),
	}
	if user.Photo != nil && *user.Photo != "" {
		embed.Thumbnail = &Thumbnail{URL: *user.Photo}
	}

	return Payload{Embeds: []Embed{embed}}
}

// groupDigits formats n with thousands separators, e.g. 1234567 → "1,234,567".
func groupDigits(n int64) string {
	s := strconv.FormatInt(n, 10)
	neg := false
	if len(s) > 0 && s[0] == '-' {
		neg = true
		s = s[1:]
	}
	for i := len(s) - 3; i > 0; i -= 3 {
		s = s[:i] + "," + s[i:]
	}
	if neg {
		return "-" + s
	}
	return s
}
