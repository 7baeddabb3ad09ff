package core

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ErrAuditRunNotFound is returned when no stored run has the requested id.
var ErrAuditRunNotFound = errors.New("audit run not found")

// Insight is one heuristic observation produced by the insight agent.
type Insight struct {
	Type        string `json:"type" jsonschema_description:"Short snake_case category, e.g. suspicious_quantity, single_invoice_vendor, zero_value_item, unusual_item_mix, repeated_pattern"`
	Description string `json:"description" jsonschema_description:"One sentence naming the invoice ids, vendors or items involved"`
}

// AuditRun is a stored audit: the deterministic report plus optional insights.
type AuditRun struct {
	ID            uuid.UUID    `json:"id"`
	Source        string       `json:"source"`
	InvoiceCount  int          `json:"invoice_count"`
	Report        *AuditReport `json:"report"`
	Insights      []Insight    `json:"insights,omitempty"`
	InsightsError string       `json:"insights_error,omitempty"`
	CreatedAt     time.Time    `json:"created_at"`
}

// AuditRunSummary is the list view of a stored run.
type AuditRunSummary struct {
	ID           uuid.UUID `json:"id"`
	Source       string    `json:"source"`
	InvoiceCount int       `json:"invoice_count"`
	IssueCount   int       `json:"issue_count"`
	CreatedAt    time.Time `json:"created_at"`
}

// AuditRunService persists audit runs in the audit_runs table.
type AuditRunService interface {
	// SaveRun inserts run. A zero ID is replaced with a fresh UUID and CreatedAt is
	// set by the database. The stored run is returned.
	SaveRun(ctx context.Context, run AuditRun) (*AuditRun, error)

	// GetRun returns a run by id, or ErrAuditRunNotFound.
	GetRun(ctx context.Context, id uuid.UUID) (*AuditRun, error)

	// ListRuns returns the most recent runs, newest first.
	ListRuns(ctx context.Context, limit int) ([]AuditRunSummary, error)
}

type auditRunService struct {
	pool *pgxpool.Pool
}

// NewAuditRunService constructs an AuditRunService backed by the given pool.
func NewAuditRunService(pool *pgxpool.Pool) AuditRunService {
	return &auditRunService{pool: pool}
}

func (s *auditRunService) SaveRun(ctx context.Context, run AuditRun) (*AuditRun, error) {
	if run.Report == nil {
		return nil, errors.New("audit run has no report")
	}
	if run.ID == uuid.Nil {
		run.ID = uuid.New()
	}

	reportJSON, err := json.Marshal(run.Report)
	if err != nil {
		return nil, fmt.Errorf("failed to encode audit report: %w", err)
	}
	var insightsJSON []byte
	if run.Insights != nil {
		if insightsJSON, err = json.Marshal(run.Insights); err != nil {
			return nil, fmt.Errorf("failed to encode insights: %w", err)
		}
	}

	err = s.pool.QueryRow(ctx, `
		INSERT INTO audit_runs (id, source, invoice_count, issue_count, report, insights, insights_error)
		VALUES ($1, $2, $3, $4, $5, $6, NULLIF($7, ''))
		RETURNING created_at
	`, run.ID, run.Source, run.InvoiceCount, len(run.Report.Issues), reportJSON, insightsJSON, run.InsightsError,
	).Scan(&run.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to insert audit run: %w", err)
	}
	return &run, nil
}

func (s *auditRunService) GetRun(ctx context.Context, id uuid.UUID) (*AuditRun, error) {
	run := AuditRun{ID: id}
	var reportJSON, insightsJSON []byte
	var insightsErr *string
	err := s.pool.QueryRow(ctx, `
		SELECT source, invoice_count, report, insights, insights_error, created_at
		FROM audit_runs
		WHERE id = $1
	`, id).Scan(&run.Source, &run.InvoiceCount, &reportJSON, &insightsJSON, &insightsErr, &run.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrAuditRunNotFound
		}
		return nil, fmt.Errorf("failed to read audit run %s: %w", id, err)
	}

	run.Report = &AuditReport{}
	if err := json.Unmarshal(reportJSON, run.Report); err != nil {
		return nil, fmt.Errorf("failed to decode stored report %s: %w", id, err)
	}
	if len(insightsJSON) > 0 {
		if err := json.Unmarshal(insightsJSON, &run.Insights); err != nil {
			return nil, fmt.Errorf("failed to decode stored insights %s: %w", id, err)
		}
	}
	if insightsErr != nil {
		run.InsightsError = *insightsErr
	}
	return &run, nil
}

func (s *auditRunService) ListRuns(ctx context.Context, limit int) ([]AuditRunSummary, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.pool.Query(ctx, `
		SELECT id, source, invoice_count, issue_count, created_at
		FROM audit_runs
		ORDER BY created_at DESC, id
		LIMIT $1
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list audit runs: %w", err)
	}
	defer rows.Close()

	var runs []AuditRunSummary
	for rows.Next() {
		var r AuditRunSummary
		if err := rows.Scan(&r.ID, &r.Source, &r.InvoiceCount, &r.IssueCount, &r.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan audit run: %w", err)
		}
		runs = append(runs, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate audit runs: %w", err)
	}
	return runs, nil
}
