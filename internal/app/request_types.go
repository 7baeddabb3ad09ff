package app

import "invoice-audit/internal/core"

// AuditRequest is the input for RunAudit.
type AuditRequest struct {
	Source       string // file name or caller label; stored with the run
	Invoices     []core.Invoice
	WithInsights bool
}
