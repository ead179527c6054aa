package handler

import (
	"net/http"

	"github.com/estimate-app/backend/internal/apperr"
	"github.com/estimate-app/backend/internal/model"
	"github.com/estimate-app/backend/internal/service"
)

// TemplateHandler はテンプレートの HTTP ハンドラ
type TemplateHandler struct {
	svc service.TemplateService
}

// NewTemplateHandler は TemplateHandler を生成する
func NewTemplateHandler(svc service.TemplateService) *TemplateHandler {
	return &TemplateHandler{svc: svc}
}

// List handles GET /api/templates (auth required).
func (h *TemplateHandler) List(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUserID(w, r)
	if !ok {
		return
	}
	list, err := h.svc.List(r.Context(), userID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, list)
}

// Draft handles GET /api/templates/{kind}/{id}/draft (auth required).
func (h *TemplateHandler) Draft(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUserID(w, r)
	if !ok {
		return
	}
	kind, ok := model.ParseTemplateKind(r.PathValue("kind"))
	if !ok {
		writeError(w, r, apperr.NotFound("template.draft"))
		return
	}
	d, err := h.svc.Draft(r.Context(), userID, kind, r.PathValue("id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, d)
}

// Create handles POST /api/me/templates (auth required).
func (h *TemplateHandler) Create(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUserID(w, r)
	if !ok {
		return
	}
	var in model.TemplateInput
	if !decodeJSON(w, r, &in) {
		return
	}
	t, err := h.svc.Create(r.Context(), userID, in)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, t)
}

// Update handles PUT /api/me/templates/{id} (auth required).
func (h *TemplateHandler) Update(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUserID(w, r)
	if !ok {
		return
	}
	var in model.TemplateInput
	if !decodeJSON(w, r, &in) {
		return
	}
	t, err := h.svc.Update(r.Context(), userID, r.PathValue("id"), in)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, t)
}

// Delete handles DELETE /api/me/templates/{id} (auth required).
func (h *TemplateHandler) Delete(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUserID(w, r)
	if !ok {
		return
	}
	if err := h.svc.Delete(r.Context(), userID, r.PathValue("id")); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
