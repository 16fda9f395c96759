package notify

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tariwatch/tariwatch/internal/store"
)

type fakeSender struct {
	err   error
	calls []Payload
	urls  []string
}

func (f *fakeSender) Send(_ context.Context, url string, p Payload) error {
	f.urls = append(f.urls, url)
	f.calls = append(f.calls, p)
	return f.err
}

type fakeLastNotified struct {
	times map[int64]time.Time
	err   error
}

func (f *fakeLastNotified) SetLastNotified(_ context.Context, userID int64, t time.Time) error {
	if f.times == nil {
		f.times = make(map[int64]time.Time)
	}
	f.times[userID] = t
	return f.err
}

func strPtr(s string) *string { return &s }

func timePtr(t time.Time) *time.Time { return &t }

func testUser() store.User {
	return store.User{
		ID:                1,
		Name:              "Bob",
		DiscordEnabled:    true,
		DiscordWebhookURL: strPtr("https://discord.com/api/webhooks/1/abc"),
	}
}

func snapshots(current, previous int64) (store.Snapshot, store.Snapshot) {
	return store.Snapshot{UserID: 1, TotalScore: current, Rank: strPtr("3")},
		store.Snapshot{UserID: 1, TotalScore: previous}
}

func testSettings(interval int) store.Settings {
	return store.Settings{DiscordNotificationInterval: interval}
}

func TestGate_DisabledToggleNeverSends(t *testing.T) {
	user := testUser()
	user.DiscordEnabled = false

	sender := &fakeSender{}
	gate := NewGate(&fakeLastNotified{}, sender, clockwork.NewFakeClock(), nil)

	cur, prev := snapshots(150, 100)
	res := gate.Notify(context.Background(), user, cur, prev, testSettings(0), false)

	assert.Equal(t, StatusDisabled, res.Status)
	assert.True(t, res.SkippedByPolicy())
	assert.Empty(t, sender.calls, "no network call when disabled")
}

func TestGate_MissingWebhookNeverSends(t *testing.T) {
	user := testUser()
	user.DiscordWebhookURL = nil

	sender := &fakeSender{}
	gate := NewGate(&fakeLastNotified{}, sender, clockwork.NewFakeClock(), nil)

	cur, prev := snapshots(150, 100)
	res := gate.Notify(context.Background(), user, cur, prev, testSettings(0), true)

	assert.Equal(t, StatusDisabled, res.Status)
	assert.Empty(t, sender.calls)
}

func TestGate_ThrottledWithPositiveWaitEstimate(t *testing.T) {
	clock := clockwork.NewFakeClock()
	user := testUser()
	user.LastDiscordNotification = timePtr(clock.Now().Add(-100 * time.Second))

	sender := &fakeSender{}
	gate := NewGate(&fakeLastNotified{}, sender, clock, nil)

	cur, prev := snapshots(150, 100)
	res := gate.Notify(context.Background(), user, cur, prev, testSettings(300), false)

	assert.Equal(t, StatusThrottled, res.Status)
	assert.True(t, res.SkippedByPolicy())
	assert.Equal(t, 200*time.Second, res.Wait)
	assert.Positive(t, res.WaitMinutes())
	assert.Empty(t, sender.calls)
}

func TestGate_NeverNotifiedSendsImmediately(t *testing.T) {
	clock := clockwork.NewFakeClock()
	sender := &fakeSender{}
	st := &fakeLastNotified{}
	gate := NewGate(st, sender, clock, nil)

	cur, prev := snapshots(150, 100)
	res := gate.Notify(context.Background(), testUser(), cur, prev, testSettings(300), false)

	assert.Equal(t, StatusSent, res.Status)
	require.Len(t, sender.calls, 1)
	assert.Equal(t, clock.Now(), st.times[1])
}

func TestGate_ForcedBypassesThrottle(t *testing.T) {
	clock := clockwork.NewFakeClock()
	user := testUser()
	user.LastDiscordNotification = timePtr(clock.Now().Add(-1 * time.Second))

	sender := &fakeSender{}
	gate := NewGate(&fakeLastNotified{}, sender, clock, nil)

	cur, prev := snapshots(150, 100)
	res := gate.Notify(context.Background(), user, cur, prev, testSettings(99999), true)

	assert.Equal(t, StatusSent, res.Status)
	require.Len(t, sender.calls, 1)
}

func TestGate_DeliveryFailureDoesNotAdvanceTimestamp(t *testing.T) {
	sender := &fakeSender{err: errors.New("discord returned 500")}
	st := &fakeLastNotified{}
	gate := NewGate(st, sender, clockwork.NewFakeClock(), nil)

	cur, prev := snapshots(150, 100)
	res := gate.Notify(context.Background(), testUser(), cur, prev, testSettings(0), false)

	assert.Equal(t, StatusDeliveryFailed, res.Status)
	assert.False(t, res.SkippedByPolicy())
	assert.Empty(t, st.times, "last-notified must only advance on confirmed delivery")
}

func TestGate_EmbedContents(t *testing.T) {
	user := testUser()
	user.Photo = strPtr("https://cdn.example/bob.png")

	sender := &fakeSender{}
	gate := NewGate(&fakeLastNotified{}, sender, clockwork.NewFakeClock(), nil)

	cur, prev := snapshots(1500000, 100)
	res := gate.Notify(context.Background(), user, cur, prev, testSettings(0), false)
	require.Equal(t, StatusSent, res.Status)

	require.Len(t, sender.calls, 1)
	require.Len(t, sender.calls[0].Embeds, 1)
	embed := sender.calls[0].Embeds[0]

	assert.Equal(t, "Bob's Tari Score Update", embed.Title)
	assert.Equal(t, colorGreen, embed.Color, "positive delta is green")
	require.NotNil(t, embed.Thumbnail)
	assert.Equal(t, "https://cdn.example/bob.png", embed.Thumbnail.URL)

	require.Len(t, embed.Fields, 3)
	assert.Equal(t, "1,500,000", embed.Fields[0].Value)
	assert.Equal(t, "100", embed.Fields[1].Value)
	assert.Equal(t, "#3", embed.Fields[2].Value)
}

func TestGate_NegativeDeltaIsRedAndUnknownRank(t *testing.T) {
	sender := &fakeSender{}
	gate := NewGate(&fakeLastNotified{}, sender, clockwork.NewFakeClock(), nil)

	cur := store.Snapshot{UserID: 1, TotalScore: 50}
	prev := store.Snapshot{UserID: 1, TotalScore: 100}
	res := gate.Notify(context.Background(), testUser(), cur, prev, testSettings(0), false)
	require.Equal(t, StatusSent, res.Status)

	embed := sender.calls[0].Embeds[0]
	assert.Equal(t, colorRed, embed.Color)
	assert.Equal(t, "Unknown", embed.Fields[2].Value)
	assert.Nil(t, embed.Thumbnail)
}

func TestGroupDigits(t *testing.T) {
	cases := map[int64]string{
		0:        "0",
		999:      "999",
		1000:     "1,000",
		1234567:  "1,234,567",
		-1234567: "-1,234,567",
	}
	for n, want := range cases {
		assert.Equal(t, want, groupDigits(n))
	}
}
