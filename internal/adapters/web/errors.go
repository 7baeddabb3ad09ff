package web

import (
	"encoding/json"
	"errors"
	"net/http"

	"invoice-audit/internal/app"
	"invoice-audit/internal/core"
	"invoice-audit/internal/ingest"
	"invoice-audit/internal/render"

	"go.uber.org/zap"
)

type errorResponse struct {
	Error     string `json:"error"`
	Code      string `json:"code"`
	RequestID string `json:"request_id,omitempty"`
}

// writeError writes a structured JSON error response.
func writeError(w http.ResponseWriter, r *http.Request, message, code string, status int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	resp := errorResponse{
		Error:     message,
		Code:      code,
		RequestID: requestIDFromContext(r.Context()),
	}
	_ = json.NewEncoder(w).Encode(resp)
}

// writeJSON writes a JSON response with status 200.
func writeJSON(w http.ResponseWriter, v any) {
	writeJSONStatus(w, http.StatusOK, v)
}

func writeJSONStatus(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeServiceError maps service errors to HTTP responses. Unexpected errors are logged
// and reported as 500 without their text.
func (h *Handler) writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	var batchErr *core.BatchError
	var maxBytesErr *http.MaxBytesError
	switch {
	case errors.As(err, &batchErr):
		writeError(w, r, err.Error(), "INVALID_BATCH", http.StatusUnprocessableEntity)
	case errors.As(err, &maxBytesErr):
		writeError(w, r, "request body too large", "REQUEST_TOO_LARGE", http.StatusRequestEntityTooLarge)
	case errors.Is(err, core.ErrAuditRunNotFound):
		writeError(w, r, err.Error(), "NOT_FOUND", http.StatusNotFound)
	case errors.Is(err, app.ErrPersistenceDisabled):
		writeError(w, r, err.Error(), "PERSISTENCE_DISABLED", http.StatusServiceUnavailable)
	case errors.Is(err, render.ErrUnknownFormat), errors.Is(err, ingest.ErrUnsupportedFormat):
		writeError(w, r, err.Error(), "BAD_REQUEST", http.StatusBadRequest)
	default:
		h.logger.Error("request failed",
			zap.String("request_id", requestIDFromContext(r.Context())),
			zap.String("path", r.URL.Path),
			zap.Error(err))
		writeError(w, r, "internal server error", "INTERNAL_ERROR", http.StatusInternalServerError)
	}
}
