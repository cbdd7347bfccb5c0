package handlers

import (
	"encoding/json"
	"net/http"
)

// envelope is the uniform response body: {ok: bool, ...}. HTTP status carries
// the outcome class; the body carries the detail.
type envelope map[string]any

func writeJSON(w http.ResponseWriter, status int, body envelope) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(body)
}
