package core

import (
	"encoding/json"

	"github.com/shopspring/decimal"
)

// LineItem is one billed product or service on an invoice.
type LineItem struct {
	Name      string `json:"name"`
	Quantity  Amount `json:"quantity"`
	UnitPrice Amount `json:"unit_price"`
	Total     Amount `json:"total"`
}

// Invoice is one billing document as handed over by the document parsers.
// LineItems is nil when the container itself was absent from the input.
type Invoice struct {
	InvoiceID string     `json:"invoice_id"`
	Vendor    string     `json:"vendor"`
	Date      string     `json:"date"`
	GSTIN     string     `json:"gstin,omitempty"`
	LineItems []LineItem `json:"line_items"`
}

// UnmarshalJSON also accepts the parser aliases "id" and "products".
func (inv *Invoice) UnmarshalJSON(data []byte) error {
	var raw struct {
		InvoiceID *string    `json:"invoice_id"`
		ID        *string    `json:"id"`
		Vendor    string     `json:"vendor"`
		Date      string     `json:"date"`
		GSTIN     string     `json:"gstin"`
		LineItems []LineItem `json:"line_items"`
		Products  []LineItem `json:"products"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	*inv = Invoice{
		Vendor:    raw.Vendor,
		Date:      raw.Date,
		GSTIN:     raw.GSTIN,
		LineItems: raw.LineItems,
	}
	switch {
	case raw.InvoiceID != nil:
		inv.InvoiceID = *raw.InvoiceID
	case raw.ID != nil:
		inv.InvoiceID = *raw.ID
	}
	if inv.LineItems == nil {
		inv.LineItems = raw.Products
	}
	return nil
}

type IssueType string

const (
	IssueTotalMismatch IssueType = "total_mismatch"
)

type Severity string

const (
	SeverityLow    Severity = "low"
	SeverityMedium Severity = "medium"
	SeverityHigh   Severity = "high"
)

// Issue is an arithmetic problem found on an invoice.
type Issue struct {
	InvoiceID   string    `json:"invoice_id"`
	Vendor      string    `json:"vendor"`
	IssueType   IssueType `json:"issue_type"`
	Description string    `json:"description"`
	Severity    Severity  `json:"severity"`
}

// MissingField flags an empty required field on an invoice or one of its line items.
type MissingField struct {
	InvoiceID string `json:"invoice_id"`
	Field     string `json:"field"`
}

// FutureDate flags an invoice dated after the processing date.
type FutureDate struct {
	InvoiceID string `json:"invoice_id"`
	Date      string `json:"date"`
}

// InvalidGSTIN flags a GST identification number that does not match the GSTIN format.
type InvalidGSTIN struct {
	InvoiceID string `json:"invoice_id"`
	GSTIN     string `json:"gstin"`
}

type ComplianceFlags struct {
	MissingFields []MissingField `json:"missing_fields"`
	FutureDates   []FutureDate   `json:"future_dates"`
	InvalidGSTIN  []InvalidGSTIN `json:"invalid_gstin"`
}

// Money is a report amount. It is written to JSON as a bare number and read
// back from either a number or a quoted string.
type Money struct {
	decimal.Decimal
}

func (m Money) MarshalJSON() ([]byte, error) {
	return []byte(m.Decimal.String()), nil
}

// VendorSummary is the per-vendor rollup of a batch.
type VendorSummary struct {
	Vendor       string `json:"vendor"`
	InvoiceCount int    `json:"invoice_count"`
	TotalBilled  Money  `json:"total_billed"`
}

// DuplicateAmount lists every invoice occurrence of a line total seen more than once.
type DuplicateAmount struct {
	Amount     Money    `json:"amount"`
	InvoiceIDs []string `json:"invoice_ids"`
}

// RepeatedItem counts line items sharing the same name.
type RepeatedItem struct {
	Item        string `json:"item"`
	Occurrences int    `json:"occurrences"`
}

type InvoicePatterns struct {
	DuplicateAmounts []DuplicateAmount `json:"duplicate_amounts"`
	RepeatedItems    []RepeatedItem    `json:"repeated_items"`
}

// DateRange holds the earliest and latest invoice dates of a batch.
// Both ends are nil when no invoice carries a parseable date.
type DateRange struct {
	Start *string `json:"start"`
	End   *string `json:"end"`
}

type BatchSummary struct {
	TotalInvoices int       `json:"total_invoices"`
	Vendors       int       `json:"vendors"`
	DateRange     DateRange `json:"date_range"`
}

// AuditReport is the complete result of one audit run over a batch.
type AuditReport struct {
	Summary         BatchSummary    `json:"summary"`
	Issues          []Issue         `json:"issues"`
	ComplianceFlags ComplianceFlags `json:"compliance_flags"`
	VendorSummary   []VendorSummary `json:"vendor_summary"`
	InvoicePatterns InvoicePatterns `json:"invoice_patterns"`
}
