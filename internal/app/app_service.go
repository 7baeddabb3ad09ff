package app

import (
	"context"
	"fmt"
	"io"
	"time"

	"invoice-audit/internal/ai"
	"invoice-audit/internal/core"
	"invoice-audit/internal/render"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

const defaultInsightTimeout = 60 * time.Second

type appService struct {
	engine   core.RuleEngine
	runs     core.AuditRunService // nil when persistence is disabled
	insights ai.InsightGenerator  // nil when no OpenAI key is configured
	logger   *zap.Logger
	now      func() time.Time
}

// NewAppService constructs an appService that satisfies ApplicationService.
// runs and insights may be nil; the related features then degrade as documented on
// ApplicationService.
func NewAppService(
	engine core.RuleEngine,
	runs core.AuditRunService,
	insights ai.InsightGenerator,
	logger *zap.Logger,
) ApplicationService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &appService{
		engine:   engine,
		runs:     runs,
		insights: insights,
		logger:   logger,
		now:      time.Now,
	}
}

// RunAudit audits req.Invoices and stores the result when persistence is enabled.
func (s *appService) RunAudit(ctx context.Context, req AuditRequest) (*AuditResult, error) {
	report, err := s.engine.Audit(req.Invoices)
	if err != nil {
		return nil, err
	}

	run := &core.AuditRun{
		ID:           uuid.New(),
		Source:       req.Source,
		InvoiceCount: len(req.Invoices),
		Report:       report,
		CreatedAt:    s.now().UTC(),
	}
	if req.WithInsights {
		s.attachInsights(ctx, run)
	}

	log := s.logger.With(zap.String("run_id", run.ID.String()), zap.String("source", run.Source))
	if s.runs == nil {
		log.Info("audit completed",
			zap.Int("invoices", run.InvoiceCount), zap.Int("issues", len(report.Issues)))
		return &AuditResult{Run: run}, nil
	}

	saved, err := s.runs.SaveRun(ctx, *run)
	if err != nil {
		return nil, fmt.Errorf("failed to store audit run: %w", err)
	}
	log.Info("audit completed and stored",
		zap.Int("invoices", saved.InvoiceCount), zap.Int("issues", len(report.Issues)))
	return &AuditResult{Run: saved, Persisted: true}, nil
}

// attachInsights never fails the audit: errors end up in run.InsightsError.
func (s *appService) attachInsights(ctx context.Context, run *core.AuditRun) {
	if s.insights == nil {
		run.InsightsError = ErrInsightsDisabled.Error()
		return
	}

	ctx, cancel := context.WithTimeout(ctx, defaultInsightTimeout)
	defer cancel()

	insights, err := s.insights.GenerateInsights(ctx, run.Report)
	if err != nil {
		s.logger.Warn("insight generation failed", zap.String("run_id", run.ID.String()), zap.Error(err))
		run.InsightsError = err.Error()
		return
	}
	if insights == nil {
		insights = []core.Insight{}
	}
	run.Insights = insights
}

// GetAuditRun returns a stored run by id.
func (s *appService) GetAuditRun(ctx context.Context, id uuid.UUID) (*core.AuditRun, error) {
	if s.runs == nil {
		return nil, ErrPersistenceDisabled
	}
	return s.runs.GetRun(ctx, id)
}

// ListAuditRuns returns recent runs, newest first.
func (s *appService) ListAuditRuns(ctx context.Context, limit int) (*AuditRunListResult, error) {
	if s.runs == nil {
		return nil, ErrPersistenceDisabled
	}
	runs, err := s.runs.ListRuns(ctx, limit)
	if err != nil {
		return nil, err
	}
	if runs == nil {
		runs = []core.AuditRunSummary{}
	}
	return &AuditRunListResult{Runs: runs}, nil
}

// RenderAuditRun writes a stored run in the requested format.
func (s *appService) RenderAuditRun(ctx context.Context, id uuid.UUID, format render.Format, w io.Writer) error {
	run, err := s.GetAuditRun(ctx, id)
	if err != nil {
		return err
	}
	return render.Write(w, run, format)
}

// Status reports which optional backends are wired.
func (s *appService) Status() ServiceStatus {
	return ServiceStatus{Persistence: s.runs != nil, Insights: s.insights != nil}
}
