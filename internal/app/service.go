package app

import (
	"context"
	"errors"
	"io"

	"invoice-audit/internal/core"
	"invoice-audit/internal/render"

	"github.com/google/uuid"
)

var (
	// ErrPersistenceDisabled is returned by run lookups when no database is configured.
	ErrPersistenceDisabled = errors.New("audit run storage is disabled: DATABASE_URL not set")

	// ErrInsightsDisabled is recorded on a run when insights were requested without an OpenAI key.
	ErrInsightsDisabled = errors.New("insights are disabled: OPENAI_API_KEY not set")
)

// ApplicationService is the single interface the CLI and web adapters call.
// Implementations contain no presentation logic beyond delegating to internal/render.
type ApplicationService interface {
	// RunAudit audits a batch, optionally asks the insight agent for heuristic findings and
	// stores the run when persistence is configured. It fails only for a malformed batch
	// (*core.BatchError) or a storage failure; insight failures are recorded on the run.
	RunAudit(ctx context.Context, req AuditRequest) (*AuditResult, error)

	// GetAuditRun returns a stored run or core.ErrAuditRunNotFound.
	GetAuditRun(ctx context.Context, id uuid.UUID) (*core.AuditRun, error)

	// ListAuditRuns returns the most recent stored runs, newest first.
	ListAuditRuns(ctx context.Context, limit int) (*AuditRunListResult, error)

	// RenderAuditRun writes a stored run to w in the requested format.
	RenderAuditRun(ctx context.Context, id uuid.UUID, format render.Format, w io.Writer) error

	// Status reports which optional backends are wired.
	Status() ServiceStatus
}
