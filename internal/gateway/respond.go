// ABOUTME: JSON response helpers shared by the gateway HTTP handlers.
// ABOUTME: Every response body is a JSON object with an "ok" field.

package gateway

import (
	"encoding/json"
	"net/http"
)

// writeJSON writes v as the JSON response body with the given status.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
