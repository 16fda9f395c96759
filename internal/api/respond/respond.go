// Package respond provides shared JSON response utilities for API handlers.
package respond

import (
	"encoding/json"
	"net/http"
)

// WriteJSON marshals a Go value to JSON and writes it with the given status.
func WriteJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// WriteSuccess sends {"success": true} with an optional message.
func WriteSuccess(w http.ResponseWriter, message string) {
	body := map[string]any{"success": true}
	if message != "" {
		body["message"] = message
	}
	WriteJSON(w, http.StatusOK, body)
}

// WriteError sends the standard {"success": false, "error": ...} shape.
func WriteError(w http.ResponseWriter, status int, message string) {
	WriteJSON(w, status, map[string]any{
		"success": false,
		"error":   message,
	})
}
