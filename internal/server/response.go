package server

import (
	"encoding/json"
	"log/slog"
	"net/http"
)

// writeJSON always answers 200; failures are reported inside the body.
func writeJSON(w http.ResponseWriter, body any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(http.StatusOK)

	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(body); err != nil {
		slog.Error("Failed to write response", "error", err)
	}
}
