package app

import "invoice-audit/internal/core"

// AuditResult is returned by RunAudit.
type AuditResult struct {
	Run       *core.AuditRun `json:"run"`
	Persisted bool           `json:"persisted"`
}

// AuditRunListResult is returned by ListAuditRuns.
type AuditRunListResult struct {
	Runs []core.AuditRunSummary `json:"runs"`
}

// ServiceStatus is returned by Status.
type ServiceStatus struct {
	Persistence bool `json:"persistence"`
	Insights    bool `json:"insights"`
}
