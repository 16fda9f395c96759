package notify

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWebhookSender_Send(t *testing.T) {
	var got Payload
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	sender := NewWebhookSender()
	payload := Payload{Embeds: []Embed{{Title: "test", Color: colorGreen}}}

	require.NoError(t, sender.Send(context.Background(), srv.URL, payload))
	require.Len(t, got.Embeds, 1)
	assert.Equal(t, "test", got.Embeds[0].Title)
}

func TestWebhookSender_Non2xxIsDeliveryFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "rate limited", http.StatusTooManyRequests)
	}))
	defer srv.Close()

	sender := NewWebhookSender()
	err := sender.Send(context.Background(), srv.URL, Payload{})

	require.Error(t, err)
	assert.Contains(t, err.Error(), "429")
}

func TestLooksLikeWebhookURL(t *testing.T) {
	assert.True(t, LooksLikeWebhookURL("https://discord.com/api/webhooks/1/abc"))
	assert.False(t, LooksLikeWebhookURL("https://example.com/hook"))
}
