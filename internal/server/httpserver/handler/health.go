package handler

import (
	"net/http"
	"time"
)

// handleHealth handles GET /health: liveness only, no dependencies.
func (h *Handler) handleHealth(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, r, http.StatusOK, map[string]any{
		"status": "healthy",
		"time":   time.Now().UTC().Format(time.RFC3339),
	})
}

// handleReady handles GET /ready: probes the store through the authority
// repository, and reports whether a CA has been established.
func (h *Handler) handleReady(w http.ResponseWriter, r *http.Request) {
	info, err := h.authority.Info(r.Context())
	if err != nil {
		h.writeJSON(w, r, http.StatusServiceUnavailable, map[string]any{
			"status": "unavailable",
			"time":   time.Now().UTC().Format(time.RFC3339),
		})
		return
	}

	h.writeJSON(w, r, http.StatusOK, map[string]any{
		"status":   "ready",
		"ca_ready": info.Exists,
		"time":     time.Now().UTC().Format(time.RFC3339),
	})
}
