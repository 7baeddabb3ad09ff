package web

import (
	"encoding/json"
	"errors"
	"net/http"

	"invoice-audit/internal/app"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

const defaultMaxBodyBytes = 10 << 20

// Handler holds the ApplicationService and the chi router.
type Handler struct {
	svc          app.ApplicationService
	logger       *zap.Logger
	maxBodyBytes int64
}

// NewHandler creates and wires the chi router with all routes.
func NewHandler(svc app.ApplicationService, logger *zap.Logger, allowedOrigins string, maxBodyBytes int64) http.Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	if maxBodyBytes <= 0 {
		maxBodyBytes = defaultMaxBodyBytes
	}
	h := &Handler{svc: svc, logger: logger, maxBodyBytes: maxBodyBytes}

	r := chi.NewRouter()
	r.Use(RequestID)
	r.Use(Logger(logger))
	r.Use(Recoverer(logger))
	r.Use(CORS(allowedOrigins))

	r.Get("/api/health", h.health)

	r.Route("/api/audits", func(r chi.Router) {
		// Uploads may be multipart CSV or JSON files; everything else is read-only.
		r.With(RequestBodyLimit(maxBodyBytes)).Post("/", h.createAudit)
		r.Get("/", h.listAudits)
		r.Get("/{id}", h.getAudit)
		r.Get("/{id}/report.{format}", h.auditReport)
	})

	return r
}

// health returns service status and which optional backends are wired.
func (h *Handler) health(w http.ResponseWriter, r *http.Request) {
	type response struct {
		Status string `json:"status"`
		app.ServiceStatus
	}
	writeJSON(w, response{Status: "ok", ServiceStatus: h.svc.Status()})
}

// decodeJSON decodes the request body into v and returns false + writes an appropriate
// error response on failure. Returns HTTP 413 when the body exceeds the size limit set
// by RequestBodyLimit middleware; HTTP 400 for all other decode errors.
func decodeJSON(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		var maxBytesErr *http.MaxBytesError
		if errors.As(err, &maxBytesErr) {
			writeError(w, r, "request body too large", "REQUEST_TOO_LARGE", http.StatusRequestEntityTooLarge)
			return false
		}
		writeError(w, r, "invalid JSON body: "+err.Error(), "BAD_REQUEST", http.StatusBadRequest)
		return false
	}
	return true
}
