package handler

import (
	"net/http"

	"github.com/estimate-app/backend/internal/apperr"
	"github.com/estimate-app/backend/internal/model"
	"github.com/estimate-app/backend/internal/service"
	"github.com/estimate-app/backend/pkg/auth"
)

// EstimateHandler は見積もりの HTTP ハンドラ
type EstimateHandler struct {
	svc service.EstimateService
}

// NewEstimateHandler は EstimateHandler を生成する
func NewEstimateHandler(svc service.EstimateService) *EstimateHandler {
	return &EstimateHandler{svc: svc}
}

// estimateResponse adds the derived ledger figures to the stored estimate.
type estimateResponse struct {
	*model.Estimate
	RevisionsRemaining int               `json:"revisions_remaining"`
	RevisionState      model.LedgerState `json:"revision_state"`
	Overage            model.Overage     `json:"overage"`
}

func newEstimateResponse(e *model.Estimate) estimateResponse {
	l := e.Ledger()
	return estimateResponse{
		Estimate:           e,
		RevisionsRemaining: l.Remaining(),
		RevisionState:      l.State(),
		Overage:            l.Overage(),
	}
}

// requireUserID writes 401 and returns false when the request carries no
// caller identity.
func requireUserID(w http.ResponseWriter, r *http.Request) (string, bool) {
	userID, ok := auth.UserIDFromContext(r.Context())
	if !ok {
		writeJSON(w, http.StatusUnauthorized, errorResponse{Error: "unauthorized"})
		return "", false
	}
	return userID, true
}

// ListMine handles GET /api/me/estimates (auth required).
func (h *EstimateHandler) ListMine(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUserID(w, r)
	if !ok {
		return
	}
	list, err := h.svc.ListMine(r.Context(), userID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	out := make([]estimateResponse, 0, len(list))
	for _, e := range list {
		out = append(out, newEstimateResponse(e))
	}
	writeJSON(w, http.StatusOK, map[string]any{"estimates": out})
}

// Create handles POST /api/estimates (auth required).
func (h *EstimateHandler) Create(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUserID(w, r)
	if !ok {
		return
	}
	var in model.EstimateInput
	if !decodeJSON(w, r, &in) {
		return
	}
	e, err := h.svc.Create(r.Context(), userID, in)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, newEstimateResponse(e))
}

// Get handles GET /api/estimates/{id} (auth required).
func (h *EstimateHandler) Get(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUserID(w, r)
	if !ok {
		return
	}
	e, err := h.svc.Get(r.Context(), userID, r.PathValue("id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, newEstimateResponse(e))
}

// UpdateDetails handles PATCH /api/estimates/{id} (auth required).
func (h *EstimateHandler) UpdateDetails(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUserID(w, r)
	if !ok {
		return
	}
	var patch model.DetailsPatch
	if !decodeJSON(w, r, &patch) {
		return
	}
	e, err := h.svc.UpdateDetails(r.Context(), userID, r.PathValue("id"), patch)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, newEstimateResponse(e))
}

// ReplaceLineItems handles PUT /api/estimates/{id}/line-items (auth required).
// The body is the complete new collection in display order.
func (h *EstimateHandler) ReplaceLineItems(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUserID(w, r)
	if !ok {
		return
	}
	var req struct {
		LineItems []model.LineItemInput `json:"line_items"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}
	e, err := h.svc.ReplaceLineItems(r.Context(), userID, r.PathValue("id"), req.LineItems)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, newEstimateResponse(e))
}

// UpdatePolicy handles PATCH /api/estimates/{id}/policy (auth required).
func (h *EstimateHandler) UpdatePolicy(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUserID(w, r)
	if !ok {
		return
	}
	var req struct {
		RevisionLimit     *int   `json:"revision_limit"`
		ExtraRevisionRate *int64 `json:"extra_revision_rate"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}
	var missing []string
	if req.RevisionLimit == nil {
		missing = append(missing, "revision_limit: required")
	}
	if req.ExtraRevisionRate == nil {
		missing = append(missing, "extra_revision_rate: required")
	}
	if len(missing) > 0 {
		writeError(w, r, apperr.Validation("estimate.update_policy", missing...))
		return
	}
	e, err := h.svc.UpdatePolicy(r.Context(), userID, r.PathValue("id"), *req.RevisionLimit, *req.ExtraRevisionRate)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, newEstimateResponse(e))
}

// ConsumeRevision handles POST /api/estimates/{id}/revisions (auth required).
// The body {"memo": "..."} is optional.
func (h *EstimateHandler) ConsumeRevision(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUserID(w, r)
	if !ok {
		return
	}
	var req struct {
		Memo string `json:"memo"`
	}
	if !decodeOptionalJSON(w, r, &req) {
		return
	}
	e, err := h.svc.ConsumeRevision(r.Context(), userID, r.PathValue("id"), req.Memo)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, newEstimateResponse(e))
}
