package web

import (
	"bytes"
	"errors"
	"fmt"
	"mime"
	"net/http"
	"strconv"
	"strings"

	"invoice-audit/internal/app"
	"invoice-audit/internal/core"
	"invoice-audit/internal/ingest"
	"invoice-audit/internal/render"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
)

const multipartMemory = 8 << 20

// auditRequest is the JSON body of POST /api/audits.
type auditRequest struct {
	Source   string          `json:"source"`
	Insights bool            `json:"insights"`
	Invoices *[]core.Invoice `json:"invoices"`
}

// createAudit accepts a JSON body or a multipart upload with a csv_file or json_file part.
func (h *Handler) createAudit(w http.ResponseWriter, r *http.Request) {
	var req app.AuditRequest
	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))

	if mediaType == "multipart/form-data" {
		var ok bool
		if req, ok = h.readUpload(w, r); !ok {
			return
		}
	} else {
		var body auditRequest
		if !decodeJSON(w, r, &body) {
			return
		}
		if body.Invoices == nil {
			writeError(w, r, "invoices is required", "BAD_REQUEST", http.StatusBadRequest)
			return
		}
		req = app.AuditRequest{Source: body.Source, Invoices: *body.Invoices, WithInsights: body.Insights}
	}

	res, err := h.svc.RunAudit(r.Context(), req)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	status := http.StatusOK
	if res.Persisted {
		status = http.StatusCreated
		w.Header().Set("Location", "/api/audits/"+res.Run.ID.String())
	}
	writeJSONStatus(w, status, res)
}

func (h *Handler) readUpload(w http.ResponseWriter, r *http.Request) (app.AuditRequest, bool) {
	var req app.AuditRequest
	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		var maxBytesErr *http.MaxBytesError
		if errors.As(err, &maxBytesErr) {
			writeError(w, r, "request body too large", "REQUEST_TOO_LARGE", http.StatusRequestEntityTooLarge)
		} else {
			writeError(w, r, "invalid multipart body: "+err.Error(), "BAD_REQUEST", http.StatusBadRequest)
		}
		return req, false
	}

	parts := []struct {
		field  string
		format ingest.Format
	}{
		{"csv_file", ingest.FormatCSV},
		{"json_file", ingest.FormatJSON},
	}
	for _, p := range parts {
		file, header, err := r.FormFile(p.field)
		if errors.Is(err, http.ErrMissingFile) {
			continue
		}
		if err != nil {
			writeError(w, r, "invalid upload: "+err.Error(), "BAD_REQUEST", http.StatusBadRequest)
			return req, false
		}
		defer file.Close()

		invoices, err := ingest.Read(file, p.format)
		if err != nil {
			writeError(w, r, err.Error(), "INVALID_UPLOAD", http.StatusBadRequest)
			return req, false
		}
		req.Invoices = invoices
		req.Source = header.Filename
		if v := r.FormValue("insights"); v != "" {
			if req.WithInsights, err = strconv.ParseBool(v); err != nil {
				writeError(w, r, "insights must be a boolean", "BAD_REQUEST", http.StatusBadRequest)
				return req, false
			}
		}
		return req, true
	}

	writeError(w, r, "upload must contain a csv_file or json_file part", "BAD_REQUEST", http.StatusBadRequest)
	return req, false
}

// listAudits returns recent runs; ?limit= caps the count.
func (h *Handler) listAudits(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			writeError(w, r, "limit must be a positive integer", "BAD_REQUEST", http.StatusBadRequest)
			return
		}
		limit = n
	}
	res, err := h.svc.ListAuditRuns(r.Context(), limit)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, res)
}

func (h *Handler) getAudit(w http.ResponseWriter, r *http.Request) {
	id, ok := runID(w, r)
	if !ok {
		return
	}
	run, err := h.svc.GetAuditRun(r.Context(), id)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, run)
}

// auditReport renders a stored run as md, html or pdf.
func (h *Handler) auditReport(w http.ResponseWriter, r *http.Request) {
	id, ok := runID(w, r)
	if !ok {
		return
	}
	format, err := render.ParseFormat(chi.URLParam(r, "format"))
	if err != nil || format == render.FormatJSON {
		writeError(w, r, "report format must be md, html or pdf", "BAD_REQUEST", http.StatusBadRequest)
		return
	}

	// Render into memory so a failure can still produce a JSON error.
	var buf bytes.Buffer
	if err := h.svc.RenderAuditRun(r.Context(), id, format, &buf); err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	w.Header().Set("Content-Type", format.ContentType())
	w.Header().Set("Content-Disposition", fmt.Sprintf(`inline; filename="audit-%s.%s"`, id, format))
	_, _ = buf.WriteTo(w)
}

func runID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	raw := strings.TrimSpace(chi.URLParam(r, "id"))
	id, err := uuid.Parse(raw)
	if err != nil {
		writeError(w, r, "invalid audit run id: "+raw, "BAD_REQUEST", http.StatusBadRequest)
		return uuid.Nil, false
	}
	return id, true
}
