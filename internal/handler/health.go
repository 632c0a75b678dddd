package handler

import (
	"net/http"

	"github.com/savak1990/my-dogs/internal/api"
)

// Health handles GET /health. It answers 503 when any dependency is
// unhealthy.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	report := h.Checks.Check(r.Context())
	status := http.StatusOK
	if !report.Healthy() {
		status = http.StatusServiceUnavailable
	}
	api.WriteJSON(w, status, report)
}
