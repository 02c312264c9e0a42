// ABOUTME: Liveness and readiness endpoints for the gateway.
// ABOUTME: Ready means the web channel accepts deliveries and the agent loop runs.

package gateway

import "net/http"

type healthResponse struct {
	OK      bool   `json:"ok"`
	Pending *int   `json:"pending,omitempty"`
	Error   string `json:"error,omitempty"`
}

// handleHealth returns 200 OK if the server is alive.
func (g *Gateway) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, healthResponse{OK: true})
}

// handleReady returns 200 OK once requests can be answered.
func (g *Gateway) handleReady(w http.ResponseWriter, r *http.Request) {
	if !g.webChannel.Running() || !g.agentLoop.Running() {
		writeJSON(w, http.StatusServiceUnavailable, healthResponse{OK: false, Error: "not ready"})
		return
	}
	pending := g.table.Len()
	writeJSON(w, http.StatusOK, healthResponse{OK: true, Pending: &pending})
}
