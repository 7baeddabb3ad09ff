package core

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// ErrMissingLineItems is returned when an invoice arrives without a line_items container.
var ErrMissingLineItems = errors.New("invoice has no line_items container")

// BatchError reports a batch that violates the expected input shape.
// It is a contract violation by the producer of the batch, not a data-quality finding.
type BatchError struct {
	Index     int
	InvoiceID string
	Err       error
}

func (e *BatchError) Error() string {
	return fmt.Sprintf("invalid batch: invoice %d (%q): %v", e.Index, e.InvoiceID, e.Err)
}

func (e *BatchError) Unwrap() error { return e.Err }

// RuleOptions tunes the audit rules.
type RuleOptions struct {
	// TreatZeroAsMissing makes a numeric zero quantity, unit price or total count as missing.
	TreatZeroAsMissing bool
	// CheckGSTIN enables the GSTIN format check.
	CheckGSTIN bool
	// Concurrent runs the detectors in parallel goroutines.
	Concurrent bool
	// Now returns the processing time used by the future date check. Defaults to time.Now.
	Now func() time.Time
}

// DefaultRuleOptions keeps the zero-as-missing behaviour of the upstream audit rules.
func DefaultRuleOptions() RuleOptions {
	return RuleOptions{TreatZeroAsMissing: true, CheckGSTIN: true}
}

// RuleEngine runs every audit rule over a batch of invoices.
type RuleEngine interface {
	// Audit returns the report for invoices. It fails only when the batch itself is
	// malformed; bad values inside invoices are reported, never returned as errors.
	Audit(invoices []Invoice) (*AuditReport, error)
}

type ruleEngine struct {
	opts   RuleOptions
	logger *zap.Logger
}

// NewRuleEngine constructs a RuleEngine. A nil logger discards log output.
func NewRuleEngine(opts RuleOptions, logger *zap.Logger) RuleEngine {
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &ruleEngine{opts: opts, logger: orNop(logger)}
}

func (e *ruleEngine) Audit(invoices []Invoice) (*AuditReport, error) {
	if err := validateBatch(invoices); err != nil {
		return nil, err
	}

	report := &AuditReport{
		Summary: SummarizeBatch(invoices),
		ComplianceFlags: ComplianceFlags{
			InvalidGSTIN: make([]InvalidGSTIN, 0),
		},
	}
	now := e.opts.Now()

	detectors := []func(){
		func() { report.Issues = DetectTotalMismatches(invoices, e.logger) },
		func() {
			report.ComplianceFlags.MissingFields = DetectMissingFields(invoices, e.opts.TreatZeroAsMissing)
		},
		func() { report.ComplianceFlags.FutureDates = DetectFutureDates(invoices, now) },
		func() { report.VendorSummary = SummarizeVendors(invoices, e.logger) },
		func() { report.InvoicePatterns = DetectPatterns(invoices, e.logger) },
	}
	if e.opts.CheckGSTIN {
		detectors = append(detectors, func() {
			report.ComplianceFlags.InvalidGSTIN = DetectInvalidGSTINs(invoices)
		})
	}

	if e.opts.Concurrent {
		// Each detector writes a distinct report field.
		var g errgroup.Group
		for _, detect := range detectors {
			detect := detect
			g.Go(func() error {
				detect()
				return nil
			})
		}
		_ = g.Wait()
	} else {
		for _, detect := range detectors {
			detect()
		}
	}

	e.logger.Debug("audit completed",
		zap.Int("invoices", len(invoices)),
		zap.Int("issues", len(report.Issues)),
		zap.Int("missing_fields", len(report.ComplianceFlags.MissingFields)),
		zap.Int("future_dates", len(report.ComplianceFlags.FutureDates)))
	return report, nil
}

func validateBatch(invoices []Invoice) error {
	for i, inv := range invoices {
		if inv.LineItems == nil {
			return &BatchError{Index: i, InvoiceID: inv.InvoiceID, Err: ErrMissingLineItems}
		}
	}
	return nil
}

// SummarizeBatch counts invoices and distinct vendors and finds the date range.
// The range only considers dates that parse as YYYY-MM-DD and reports them as given.
func SummarizeBatch(invoices []Invoice) BatchSummary {
	summary := BatchSummary{TotalInvoices: len(invoices)}

	vendors := make(map[string]struct{})
	var start, end time.Time
	var startRaw, endRaw string
	found := false
	for _, inv := range invoices {
		if strings.TrimSpace(inv.Vendor) != "" {
			vendors[inv.Vendor] = struct{}{}
		}
		d, err := time.Parse(dateLayout, inv.Date)
		if err != nil {
			continue
		}
		if !found || d.Before(start) {
			start, startRaw = d, inv.Date
		}
		if !found || d.After(end) {
			end, endRaw = d, inv.Date
		}
		found = true
	}
	summary.Vendors = len(vendors)
	if found {
		summary.DateRange = DateRange{Start: &startRaw, End: &endRaw}
	}
	return summary
}
