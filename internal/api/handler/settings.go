package handler

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/tariwatch/tariwatch/internal/api/respond"
	"github.com/tariwatch/tariwatch/internal/store"
)

// GetSettings returns the effective singleton settings. The resolver falls
// back to configured defaults when the row is missing.
func (h *Handler) GetSettings(w http.ResponseWriter, r *http.Request) {
	respond.WriteJSON(w, http.StatusOK, h.settings.Load(r.Context()))
}

// UpdateSettings overwrites the singleton settings. Interval bounds are
// validated so the scheduler never sees min > max.
func (h *Handler) UpdateSettings(w http.ResponseWriter, r *http.Request) {
	var req store.Settings
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respond.WriteError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if req.TariAPIURL == "" {
		respond.WriteError(w, http.StatusBadRequest, "tari_api_url is required")
		return
	}
	if req.FetchIntervalMin <= 0 || req.FetchIntervalMax < req.FetchIntervalMin {
		respond.WriteError(w, http.StatusBadRequest, "fetch interval bounds must satisfy 0 < min <= max")
		return
	}
	if req.DiscordNotificationInterval < 0 {
		respond.WriteError(w, http.StatusBadRequest, "discord_notification_interval must be >= 0")
		return
	}

	if err := h.store.SaveSettings(r.Context(), req); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			respond.WriteError(w, http.StatusNotFound, "Settings row missing")
			return
		}
		respond.WriteError(w, http.StatusInternalServerError, err.Error())
		return
	}
	respond.WriteSuccess(w, "Settings updated")
}
