// Package handler provides HTTP handlers for all API endpoints. Handlers
// are a thin layer over the core polling/notification logic and the store.
package handler

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/tariwatch/tariwatch/internal/api/respond"
	"github.com/tariwatch/tariwatch/internal/notify"
	"github.com/tariwatch/tariwatch/internal/store"
	"github.com/tariwatch/tariwatch/internal/tari"
)

// Store is the persistence surface handlers consume.
type Store interface {
	ListUsers(ctx context.Context) ([]store.UserSummary, error)
	GetUser(ctx context.Context, id int64) (*store.User, error)
	GetUserByToken(ctx context.Context, token string) (*store.User, error)
	CreateUser(ctx context.Context, name, token string, photo *string) (int64, error)
	UpdateDiscordSettings(ctx context.Context, id int64, enabled *bool, webhookURL *string) error
	ClearToken(ctx context.Context, id int64) error
	DeleteUser(ctx context.Context, id int64) error
	InsertSnapshot(ctx context.Context, userID int64, rec tari.Record) (*store.Snapshot, error)
	RecentSnapshots(ctx context.Context, userID int64, limit int) ([]store.Snapshot, error)
	SnapshotsSince(ctx context.Context, userID int64, since time.Time) ([]store.Snapshot, error)
	FirstSnapshot(ctx context.Context, userID int64) (*store.Snapshot, error)
	Stats(ctx context.Context, userID int64) (*store.UserStats, error)
	GetSettings(ctx context.Context) (*store.Settings, error)
	SaveSettings(ctx context.Context, st store.Settings) error
}

// Fetcher validates tokens and retrieves score records from the upstream API.
type Fetcher interface {
	FetchDetails(ctx context.Context, apiURL, token string) (tari.Record, error)
}

// ForceFetcher triggers an immediate fetch+store for one user.
type ForceFetcher interface {
	ForceFetch(ctx context.Context, userID int64) (*store.Snapshot, error)
}

// Gate evaluates and delivers Discord notifications.
type Gate interface {
	Notify(ctx context.Context, user store.User, current, previous store.Snapshot, settings store.Settings, forced bool) notify.Result
}

// Health verifies database connectivity.
type Health interface {
	HealthCheck(ctx context.Context) error
}

// Handler holds shared dependencies for all endpoint handlers.
type Handler struct {
	store     Store
	fetcher   Fetcher
	scheduler ForceFetcher
	gate      Gate
	settings  store.SettingsLoader
	health    Health
	logger    *slog.Logger
}

// New creates a Handler with shared dependencies.
func New(s Store, fetcher Fetcher, scheduler ForceFetcher, gate Gate, settings store.SettingsLoader, health Health, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{
		store:     s,
		fetcher:   fetcher,
		scheduler: scheduler,
		gate:      gate,
		settings:  settings,
		health:    health,
		logger:    logger,
	}
}

// Root serves API info at /.
func (h *Handler) Root(w http.ResponseWriter, r *http.Request) {
	respond.WriteJSON(w, http.StatusOK, map[string]any{
		"name":    "Tari Score Monitor",
		"version": "1.0.0",
		"status":  "running",
	})
}

// HealthCheck returns basic health status.
func (h *Handler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	respond.WriteJSON(w, http.StatusOK, map[string]any{
		"status":    "healthy",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}

// HealthCheckDB verifies database connectivity.
func (h *Handler) HealthCheckDB(w http.ResponseWriter, r *http.Request) {
	if err := h.health.HealthCheck(r.Context()); err != nil {
		respond.WriteJSON(w, http.StatusServiceUnavailable, map[string]any{
			"status":   "unhealthy",
			"database": "disconnected",
		})
		return
	}
	respond.WriteJSON(w, http.StatusOK, map[string]any{
		"status":   "healthy",
		"database": "connected",
	})
}

// userID extracts and parses the {userID} route parameter.
func userID(r *http.Request) (int64, error) {
	return strconv.ParseInt(chi.URLParam(r, "userID"), 10, 64)
}
