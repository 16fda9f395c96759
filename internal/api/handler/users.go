package handler

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/tariwatch/tariwatch/internal/api/respond"
	"github.com/tariwatch/tariwatch/internal/store"
)

// InitUser registers a new user from an upstream access token. The token is
// validated by fetching the user's details; on success the user and their
// first snapshot are created. Re-registering an existing token is idempotent.
func (h *Handler) InitUser(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Token string `json:"token"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Token == "" {
		respond.WriteError(w, http.StatusBadRequest, "Token is required")
		return
	}

	ctx := r.Context()

	if existing, err := h.store.GetUserByToken(ctx, req.Token); err == nil {
		respond.WriteJSON(w, http.StatusOK, map[string]any{
			"success": true,
			"message": "User with this token already exists",
			"user":    map[string]any{"id": existing.ID, "name": existing.Name},
		})
		return
	} else if !errors.Is(err, store.ErrNotFound) {
		respond.WriteError(w, http.StatusInternalServerError, err.Error())
		return
	}

	settings := h.settings.Load(ctx)
	rec, err := h.fetcher.FetchDetails(ctx, settings.TariAPIURL, req.Token)
	if err != nil {
		h.logger.Error("Error adding user", "error", err)
		respond.WriteError(w, http.StatusInternalServerError, "Error adding user: "+err.Error())
		return
	}

	id, err := h.store.CreateUser(ctx, rec.Username, req.Token, rec.Avatar)
	if err != nil {
		respond.WriteError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if _, err := h.store.InsertSnapshot(ctx, id, rec); err != nil {
		respond.WriteError(w, http.StatusInternalServerError, err.Error())
		return
	}

	respond.WriteJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"user":    map[string]any{"id": id, "name": rec.Username},
	})
}

// ListUsers returns all registered users.
func (h *Handler) ListUsers(w http.ResponseWriter, r *http.Request) {
	users, err := h.store.ListUsers(r.Context())
	if err != nil {
		respond.WriteError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if users == nil {
		users = []store.UserSummary{}
	}
	respond.WriteJSON(w, http.StatusOK, users)
}

// GetUserDetail returns the sanitized user, their latest snapshot, and
// aggregate stats including lifetime change since the first snapshot.
func (h *Handler) GetUserDetail(w http.ResponseWriter, r *http.Request) {
	id, err := userID(r)
	if err != nil {
		respond.WriteError(w, http.StatusBadRequest, "Invalid user id")
		return
	}
	ctx := r.Context()

	user, err := h.store.GetUser(ctx, id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			respond.WriteError(w, http.StatusNotFound, "User not found")
			return
		}
		respond.WriteError(w, http.StatusInternalServerError, err.Error())
		return
	}

	stats, err := h.store.Stats(ctx, id)
	if err != nil {
		respond.WriteError(w, http.StatusInternalServerError, err.Error())
		return
	}

	var latest *store.Snapshot
	if recent, err := h.store.RecentSnapshots(ctx, id, 1); err == nil && len(recent) > 0 {
		latest = &recent[0]
	}

	// Lifetime change compares the latest snapshot against the very first.
	statsBody := userStatsResponse{UserStats: *stats}
	if latest != nil {
		if first, err := h.store.FirstSnapshot(ctx, id); err == nil {
			change := &lifetimeChange{
				TotalScore: latest.TotalScore - first.TotalScore,
				Gems:       latest.Gems - first.Gems,
			}
			// Rank improves downward, so the delta is first minus latest.
			if firstRank, latestRank := parseRank(first.Rank), parseRank(latest.Rank); firstRank != nil && latestRank != nil {
				delta := *firstRank - *latestRank
				change.Rank = &delta
			}
			statsBody.LifetimeChange = change
		}
	}

	body := map[string]any{
		"user": map[string]any{
			"id":                        user.ID,
			"name":                      user.Name,
			"photo":                     user.Photo,
			"discord_enabled":           user.DiscordEnabled,
			"discord_webhook_url":       user.DiscordWebhookURL,
			"last_discord_notification": user.LastDiscordNotification,
		},
		"latestScore": latest,
		"stats":       statsBody,
	}
	respond.WriteJSON(w, http.StatusOK, body)
}

type lifetimeChange struct {
	TotalScore int64  `json:"totalScore"`
	Gems       int64  `json:"gems"`
	Rank       *int64 `json:"rank"`
}

type userStatsResponse struct {
	store.UserStats
	LifetimeChange *lifetimeChange `json:"lifetimeChange,omitempty"`
}

// UpdateUserSettings updates a user's Discord toggle and/or webhook URL.
func (h *Handler) UpdateUserSettings(w http.ResponseWriter, r *http.Request) {
	id, err := userID(r)
	if err != nil {
		respond.WriteError(w, http.StatusBadRequest, "Invalid user id")
		return
	}

	var req struct {
		DiscordEnabled    *bool   `json:"discord_enabled"`
		DiscordWebhookURL *string `json:"discord_webhook_url"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respond.WriteError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if req.DiscordEnabled == nil && req.DiscordWebhookURL == nil {
		respond.WriteError(w, http.StatusBadRequest, "No valid settings provided")
		return
	}

	if err := h.store.UpdateDiscordSettings(r.Context(), id, req.DiscordEnabled, req.DiscordWebhookURL); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			respond.WriteError(w, http.StatusNotFound, "User not found")
			return
		}
		respond.WriteError(w, http.StatusInternalServerError, err.Error())
		return
	}
	respond.WriteSuccess(w, "")
}

// ClearToken soft-deletes a user: the token is removed so polling skips
// them, while score history stays readable.
func (h *Handler) ClearToken(w http.ResponseWriter, r *http.Request) {
	id, err := userID(r)
	if err != nil {
		respond.WriteError(w, http.StatusBadRequest, "Invalid user id")
		return
	}
	if err := h.store.ClearToken(r.Context(), id); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			respond.WriteError(w, http.StatusNotFound, "User not found")
			return
		}
		respond.WriteError(w, http.StatusInternalServerError, err.Error())
		return
	}
	respond.WriteSuccess(w, "Token cleared; score history retained")
}

// DeleteUser removes a user and all associated snapshots.
func (h *Handler) DeleteUser(w http.ResponseWriter, r *http.Request) {
	id, err := userID(r)
	if err != nil {
		respond.WriteError(w, http.StatusBadRequest, "Invalid user id")
		return
	}
	if err := h.store.DeleteUser(r.Context(), id); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			respond.WriteError(w, http.StatusNotFound, "User not found")
			return
		}
		respond.WriteError(w, http.StatusInternalServerError, err.Error())
		return
	}
	respond.WriteSuccess(w, "User deleted successfully")
}

func parseRank(rank *string) *int64 {
	if rank == nil {
		return nil
	}
	n, err := strconv.ParseInt(*rank, 10, 64)
	if err != nil {
		return nil
	}
	return &n
}
