package handler

import (
	"net/http"

	"github.com/estimate-app/backend/internal/service"
)

// ShareHandler serves the read-only client view behind a share link.
type ShareHandler struct {
	svc service.EstimateService
}

func NewShareHandler(svc service.EstimateService) *ShareHandler {
	return &ShareHandler{svc: svc}
}

// Get handles GET /api/share/{token} (anonymous).
func (h *ShareHandler) Get(w http.ResponseWriter, r *http.Request) {
	view, err := h.svc.GetShared(r.Context(), r.PathValue("token"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}
