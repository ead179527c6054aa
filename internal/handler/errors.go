package handler

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/estimate-app/backend/internal/apperr"
)

// retryAfterStorage is sent with every 503 so clients back off before retrying.
const retryAfterStorage = "1"

// maxBodyBytes caps request bodies.
const maxBodyBytes = 1 << 20

type errorResponse struct {
	Error      string   `json:"error"`
	Violations []string `json:"violations,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("failed to write response", "error", err)
	}
}

// writeError maps an error kind to its HTTP status. Internal details are
// logged, never returned.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	switch apperr.KindOf(err) {
	case apperr.KindValidation:
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "validation_failed", Violations: apperr.ViolationsOf(err)})
	case apperr.KindForbidden:
		writeJSON(w, http.StatusForbidden, errorResponse{Error: "forbidden"})
	case apperr.KindNotFound:
		writeJSON(w, http.StatusNotFound, errorResponse{Error: "not_found"})
	case apperr.KindLimitReached:
		writeJSON(w, http.StatusConflict, errorResponse{Error: "revision_limit_reached"})
	case apperr.KindStorageUnavailable:
		slog.Warn("storage unavailable", "method", r.Method, "path", r.URL.Path, "error", err)
		w.Header().Set("Retry-After", retryAfterStorage)
		writeJSON(w, http.StatusServiceUnavailable, errorResponse{Error: "storage_unavailable"})
	case apperr.KindCorruption:
		slog.Error("stored data is inconsistent", "method", r.Method, "path", r.URL.Path, "error", err)
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "data_inconsistent"})
	default:
		slog.Error("request failed", "method", r.Method, "path", r.URL.Path, "error", err)
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "internal_error"})
	}
}

// decodeJSON reads one JSON object from the body into dst and writes the 4xx
// itself on failure. Unknown fields are rejected.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) bool {
	return decodeBody(w, r, dst, false)
}

// decodeOptionalJSON is decodeJSON for endpoints whose body may be omitted.
// An empty body leaves dst untouched whether or not Content-Length was sent.
func decodeOptionalJSON(w http.ResponseWriter, r *http.Request, dst any) bool {
	return decodeBody(w, r, dst, true)
}

func decodeBody(w http.ResponseWriter, r *http.Request, dst any, allowEmpty bool) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	err := dec.Decode(dst)
	if err == nil || (allowEmpty && err == io.EOF) {
		return true
	}
	var maxErr *http.MaxBytesError
	switch {
	case errors.As(err, &maxErr):
		writeJSON(w, http.StatusRequestEntityTooLarge, errorResponse{Error: "body_too_large"})
	case errors.Is(err, io.EOF):
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "empty_body"})
	default:
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid_json"})
	}
	return false
}
