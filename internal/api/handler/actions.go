package handler

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/tariwatch/tariwatch/internal/api/respond"
	"github.com/tariwatch/tariwatch/internal/store"
)

// ForceFetch triggers an immediate fetch+store for one user, outside the
// background cycle.
func (h *Handler) ForceFetch(w http.ResponseWriter, r *http.Request) {
	id, err := userID(r)
	if err != nil {
		respond.WriteError(w, http.StatusBadRequest, "Invalid user id")
		return
	}

	user, err := h.store.GetUser(r.Context(), id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			respond.WriteError(w, http.StatusNotFound, "User not found")
			return
		}
		respond.WriteError(w, http.StatusInternalServerError, err.Error())
		return
	}

	h.logger.Info("Force fetching data", "user", user.Name)
	if _, err := h.scheduler.ForceFetch(r.Context(), id); err != nil {
		h.logger.Error("Error during force fetch", "user", user.Name, "error", err)
		respond.WriteError(w, http.StatusInternalServerError, err.Error())
		return
	}
	respond.WriteSuccess(w, fmt.Sprintf("Successfully fetched and updated data for %s", user.Name))
}

// SendNotification attempts a forced Discord notification: the interval
// throttle is bypassed, but the enabled/webhook preconditions and the
// two-snapshot minimum still apply.
func (h *Handler) SendNotification(w http.ResponseWriter, r *http.Request) {
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

	if !user.DiscordEnabled || user.DiscordWebhookURL == nil || *user.DiscordWebhookURL == "" {
		respond.WriteError(w, http.StatusBadRequest, "Discord notifications are disabled or webhook URL is not set")
		return
	}

	recent, err := h.store.RecentSnapshots(ctx, id, 2)
	if err != nil {
		respond.WriteError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if len(recent) < 2 {
		respond.WriteError(w, http.StatusBadRequest, "Not enough score data to send a notification (minimum 2 records needed)")
		return
	}

	settings := h.settings.Load(ctx)
	result := h.gate.Notify(ctx, *user, recent[0], recent[1], settings, true)
	if !result.Sent() {
		respond.WriteError(w, http.StatusBadRequest, result.Message)
		return
	}
	respond.WriteSuccess(w, result.Message)
}
