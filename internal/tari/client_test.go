package tari

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClient_FetchDetails(t *testing.T) {
	var gotAuth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"username":"Bob","total_score":100,"rank":"5"}`))
	}))
	defer srv.Close()

	client := NewClient(600, nil)
	rec, err := client.FetchDetails(context.Background(), srv.URL, "secret-token")

	require.NoError(t, err)
	assert.Equal(t, "Bearer secret-token", gotAuth)
	assert.Equal(t, "Bob", rec.Username)
	assert.Equal(t, int64(100), rec.TotalScore)
	require.NotNil(t, rec.Rank)
	assert.Equal(t, "5", *rec.Rank)
}

func TestClient_FetchDetailsNon2xxIsHardFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "nope", http.StatusUnauthorized)
	}))
	defer srv.Close()

	client := NewClient(600, nil)
	_, err := client.FetchDetails(context.Background(), srv.URL, "bad-token")

	require.Error(t, err)
	assert.Contains(t, err.Error(), "401")
}

func TestClient_FetchDetailsEmptyToken(t *testing.T) {
	client := NewClient(600, nil)
	_, err := client.FetchDetails(context.Background(), "http://unused.example", "")
	require.Error(t, err)
}
