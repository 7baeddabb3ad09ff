package web_test

import (
	"bytes"
	"context"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	webAdapter "invoice-audit/internal/adapters/web"
	"invoice-audit/internal/app"
	"invoice-audit/internal/core"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

type memoryRuns struct {
	mu   sync.Mutex
	runs []core.AuditRun
}

func (m *memoryRuns) SaveRun(_ context.Context, run core.AuditRun) (*core.AuditRun, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.runs = append(m.runs, run)
	return &run, nil
}

func (m *memoryRuns) GetRun(_ context.Context, id uuid.UUID) (*core.AuditRun, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, r := range m.runs {
		if r.ID == id {
			return &r, nil
		}
	}
	return nil, core.ErrAuditRunNotFound
}

func (m *memoryRuns) ListRuns(_ context.Context, limit int) ([]core.AuditRunSummary, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []core.AuditRunSummary{}
	for i := len(m.runs) - 1; i >= 0 && (limit <= 0 || len(out) < limit); i-- {
		r := m.runs[i]
		out = append(out, core.AuditRunSummary{ID: r.ID, Source: r.Source, InvoiceCount: r.InvoiceCount, IssueCount: len(r.Report.Issues)})
	}
	return out, nil
}

func newServer(t *testing.T, withStore bool) (http.Handler, *observer.ObservedLogs) {
	t.Helper()
	opts := core.DefaultRuleOptions()
	opts.Now = func() time.Time { return time.Date(2025, 7, 1, 12, 0, 0, 0, time.UTC) }
	engine := core.NewRuleEngine(opts, nil)

	var runs core.AuditRunService
	if withStore {
		runs = &memoryRuns{}
	}
	obsCore, logs := observer.New(zapcore.InfoLevel)
	logger := zap.New(obsCore)
	svc := app.NewAppService(engine, runs, nil, logger)
	return webAdapter.NewHandler(svc, logger, "https://audit.example.com", 1<<20), logs
}

const batchJSON = `[
  {"invoice_id":"INV-1001","vendor":"ABC Traders","date":"2025-06-01",
   "line_items":[{"name":"Widget","quantity":10,"unit_price":"Rs. 20.00","total":"Rs. 180.00"}]},
  {"invoice_id":"INV-1002","vendor":"XYZ Supplies","date":"2025-08-12",
   "line_items":[{"name":"Widget","quantity":1,"unit_price":5,"total":5}]}
]`

func do(t *testing.T, h http.Handler, req *http.Request) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestHealth(t *testing.T) {
	h, _ := newServer(t, true)
	rec := do(t, h, httptest.NewRequest(http.MethodGet, "/api/health", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok","persistence":true,"insights":false}`, rec.Body.String())
	assert.NotEmpty(t, rec.Header().Get("X-Request-ID"))
}

func TestCreateAudit_JSON(t *testing.T) {
	h, logs := newServer(t, true)
	body := `{"source":"api","invoices":` + batchJSON + `}`
	req := httptest.NewRequest(http.MethodPost, "/api/audits", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := do(t, h, req)

	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var res app.AuditResult
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &res))
	assert.True(t, res.Persisted)
	assert.Equal(t, "/api/audits/"+res.Run.ID.String(), rec.Header().Get("Location"))
	require.Len(t, res.Run.Report.Issues, 1)
	assert.Equal(t, "Total mismatch for item Widget: expected 200.00, got 180.00", res.Run.Report.Issues[0].Description)
	require.Len(t, res.Run.Report.ComplianceFlags.FutureDates, 1)
	assert.Equal(t, "INV-1002", res.Run.Report.ComplianceFlags.FutureDates[0].InvoiceID)
	assert.Equal(t, []core.RepeatedItem{{Item: "Widget", Occurrences: 2}}, res.Run.Report.InvoicePatterns.RepeatedItems)

	assert.Equal(t, 1, logs.FilterMessage("http request").FilterField(zap.Int("status", http.StatusCreated)).Len())

	// The stored run is served back, as JSON and rendered.
	rec = do(t, h, httptest.NewRequest(http.MethodGet, "/api/audits/"+res.Run.ID.String(), nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"source":"api"`)

	rec = do(t, h, httptest.NewRequest(http.MethodGet, "/api/audits/"+res.Run.ID.String()+"/report.md", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "text/markdown; charset=utf-8", rec.Header().Get("Content-Type"))
	assert.Contains(t, rec.Body.String(), "## Issues (1)")

	rec = do(t, h, httptest.NewRequest(http.MethodGet, "/api/audits/"+res.Run.ID.String()+"/report.pdf", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, bytes.HasPrefix(rec.Body.Bytes(), []byte("%PDF-")))

	rec = do(t, h, httptest.NewRequest(http.MethodGet, "/api/audits/"+res.Run.ID.String()+"/report.docx", nil))
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = do(t, h, httptest.NewRequest(http.MethodGet, "/api/audits?limit=5", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	var list app.AuditRunListResult
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &list))
	require.Len(t, list.Runs, 1)
	assert.Equal(t, 1, list.Runs[0].IssueCount)
}

func TestCreateAudit_Multipart(t *testing.T) {
	h, _ := newServer(t, false)

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	part, err := mw.CreateFormFile("csv_file", "june.csv")
	require.NoError(t, err)
	_, err = part.Write([]byte("invoice_id,vendor,date,product,quantity,unit_price,total\n" +
		"INV-1,ABC Traders,2025-06-01,Cement,10,Rs. 500.00,Rs. 5000.00\n" +
		"INV-1,ABC Traders,2025-06-01,Steel,2,Rs. 100.00,\n"))
	require.NoError(t, err)
	require.NoError(t, mw.WriteField("insights", "false"))
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/audits", &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	rec := do(t, h, req)

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var res app.AuditResult
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &res))
	assert.False(t, res.Persisted)
	assert.Equal(t, "june.csv", res.Run.Source)
	assert.Equal(t, 1, res.Run.InvoiceCount)
	assert.Equal(t, []core.MissingField{{InvoiceID: "INV-1", Field: "total"}}, res.Run.Report.ComplianceFlags.MissingFields)
}

func TestCreateAudit_Rejections(t *testing.T) {
	h, _ := newServer(t, false)
	post := func(contentType, body string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodPost, "/api/audits", strings.NewReader(body))
		req.Header.Set("Content-Type", contentType)
		return do(t, h, req)
	}

	rec := post("application/json", `{"source":"x"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = post("application/json", `not json`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = post("application/json", `{"invoices":[{"invoice_id":"INV-9","vendor":"A","date":"2025-01-01"}]}`)
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	assert.Contains(t, rec.Body.String(), "INVALID_BATCH")

	rec = post("application/json", `{"invoices":[{"invoice_id":"`+strings.Repeat("x", 2<<20)+`"}]}`)
	assert.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)

	rec = post("multipart/form-data; boundary=xyz", "--xyz\r\nContent-Disposition: form-data; name=\"note\"\r\n\r\nhi\r\n--xyz--\r\n")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "csv_file")
}

func TestRunsWithoutPersistence(t *testing.T) {
	h, _ := newServer(t, false)

	rec := do(t, h, httptest.NewRequest(http.MethodGet, "/api/audits", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)

	rec = do(t, h, httptest.NewRequest(http.MethodGet, "/api/audits/"+uuid.NewString(), nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestRunLookupErrors(t *testing.T) {
	h, _ := newServer(t, true)

	rec := do(t, h, httptest.NewRequest(http.MethodGet, "/api/audits/not-a-uuid", nil))
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = do(t, h, httptest.NewRequest(http.MethodGet, "/api/audits/"+uuid.NewString(), nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = do(t, h, httptest.NewRequest(http.MethodGet, "/api/audits?limit=zero", nil))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestCORS(t *testing.T) {
	h, _ := newServer(t, false)

	req := httptest.NewRequest(http.MethodOptions, "/api/audits", nil)
	req.Header.Set("Origin", "https://audit.example.com")
	rec := do(t, h, req)
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, "https://audit.example.com", rec.Header().Get("Access-Control-Allow-Origin"))

	req = httptest.NewRequest(http.MethodGet, "/api/health", nil)
	req.Header.Set("Origin", "https://evil.example.com")
	rec = do(t, h, req)
	assert.Empty(t, rec.Header().Get("Access-Control-Allow-Origin"))
}

func TestRequestIDPassthrough(t *testing.T) {
	h, _ := newServer(t, false)

	req := httptest.NewRequest(http.MethodGet, "/api/health", nil)
	req.Header.Set("X-Request-ID", "abc-123")
	assert.Equal(t, "abc-123", do(t, h, req).Header().Get("X-Request-ID"))

	req = httptest.NewRequest(http.MethodGet, "/api/health", nil)
	req.Header.Set("X-Request-ID", "bad id with spaces")
	assert.NotEqual(t, "bad id with spaces", do(t, h, req).Header().Get("X-Request-ID"))
}
