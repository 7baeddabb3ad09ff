package core_test

import (
	"encoding/json"
	"errors"
	"testing"
	"time"

	"invoice-audit/internal/core"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

var processingDate = time.Date(2025, time.July, 1, 15, 0, 0, 0, time.UTC)

func item(name, qty, unitPrice, total string) core.LineItem {
	return core.LineItem{
		Name:      name,
		Quantity:  core.TextAmount(qty),
		UnitPrice: core.TextAmount(unitPrice),
		Total:     core.TextAmount(total),
	}
}

// sampleBatch is a small construction-supplies batch with one vendorless invoice.
func sampleBatch() []core.Invoice {
	return []core.Invoice{
		{
			InvoiceID: "INV-1001", Vendor: "ABC Traders", Date: "2025-06-01",
			LineItems: []core.LineItem{
				item("Cement Bags", "10", "Rs. 500.00", "Rs. 5000.00"),
				item("Steel Rods", "5", "Rs. 1200.00", "Rs. 6000.00"),
			},
		},
		{
			InvoiceID: "INV-1002", Vendor: "XYZ Construction Supplies", Date: "2025-08-12",
			LineItems: []core.LineItem{
				item("Bricks", "1000", "Rs. 10.00", "Rs. 10000.00"),
				item("Sand Bags", "50", "Rs. 80.00", "Rs. 4000.00"),
			},
		},
		{
			InvoiceID: "INV-1003", Vendor: "", Date: "2025-06-20",
			LineItems: []core.LineItem{
				item("Pipes (PVC)", "20", "Rs. 300.00", "Rs. 6000.00"),
				item("Valves", "0", "Rs. 150.00", "Rs. 0.00"),
			},
		},
		{
			InvoiceID: "INV-1004", Vendor: "Building Solutions Inc.", Date: "2025-07-05",
			LineItems: []core.LineItem{
				item("Paint (White)", "5", "Rs. 800.00", "Rs. 4000.00"),
				item("Brushes", "20", "Rs. 50.00", "Rs. 1000.00"),
				item("Rollers", "10", "Rs. 75.00", "Rs. 750.00"),
			},
		},
	}
}

func newEngine(opts core.RuleOptions) core.RuleEngine {
	opts.Now = func() time.Time { return processingDate }
	return core.NewRuleEngine(opts, nil)
}

func TestRuleEngine_SampleBatch(t *testing.T) {
	report, err := newEngine(core.DefaultRuleOptions()).Audit(sampleBatch())
	require.NoError(t, err)

	assert.Equal(t, 4, report.Summary.TotalInvoices)
	assert.Equal(t, 3, report.Summary.Vendors)
	require.NotNil(t, report.Summary.DateRange.Start)
	require.NotNil(t, report.Summary.DateRange.End)
	assert.Equal(t, "2025-06-01", *report.Summary.DateRange.Start)
	assert.Equal(t, "2025-08-12", *report.Summary.DateRange.End)

	assert.Empty(t, report.Issues)
	assert.Equal(t, []core.MissingField{{InvoiceID: "INV-1003", Field: "vendor"}}, report.ComplianceFlags.MissingFields)
	assert.Equal(t, []core.FutureDate{
		{InvoiceID: "INV-1002", Date: "2025-08-12"},
		{InvoiceID: "INV-1004", Date: "2025-07-05"},
	}, report.ComplianceFlags.FutureDates)
	assert.Empty(t, report.ComplianceFlags.InvalidGSTIN)

	require.Len(t, report.VendorSummary, 3)
	assert.Equal(t, "ABC Traders", report.VendorSummary[0].Vendor)
	assertDecimal(t, "11000", report.VendorSummary[0].TotalBilled.Decimal)
	assert.Equal(t, "XYZ Construction Supplies", report.VendorSummary[1].Vendor)
	assertDecimal(t, "14000", report.VendorSummary[1].TotalBilled.Decimal)
	assert.Equal(t, "Building Solutions Inc.", report.VendorSummary[2].Vendor)
	assertDecimal(t, "5750", report.VendorSummary[2].TotalBilled.Decimal)

	require.Len(t, report.InvoicePatterns.DuplicateAmounts, 2)
	assertDecimal(t, "6000", report.InvoicePatterns.DuplicateAmounts[0].Amount.Decimal)
	assert.Equal(t, []string{"INV-1001", "INV-1003"}, report.InvoicePatterns.DuplicateAmounts[0].InvoiceIDs)
	assertDecimal(t, "4000", report.InvoicePatterns.DuplicateAmounts[1].Amount.Decimal)
	assert.Equal(t, []string{"INV-1002", "INV-1004"}, report.InvoicePatterns.DuplicateAmounts[1].InvoiceIDs)
	assert.Empty(t, report.InvoicePatterns.RepeatedItems)
}

func TestRuleEngine_EmptyBatch(t *testing.T) {
	for name, batch := range map[string][]core.Invoice{"nil": nil, "empty": {}} {
		t.Run(name, func(t *testing.T) {
			report, err := newEngine(core.DefaultRuleOptions()).Audit(batch)
			require.NoError(t, err)

			assert.Zero(t, report.Summary.TotalInvoices)
			assert.Zero(t, report.Summary.Vendors)
			assert.Nil(t, report.Summary.DateRange.Start)
			assert.Nil(t, report.Summary.DateRange.End)

			out, err := json.Marshal(report)
			require.NoError(t, err)
			assert.JSONEq(t, `{
				"summary": {"total_invoices": 0, "vendors": 0, "date_range": {"start": null, "end": null}},
				"issues": [],
				"compliance_flags": {"missing_fields": [], "future_dates": [], "invalid_gstin": []},
				"vendor_summary": [],
				"invoice_patterns": {"duplicate_amounts": [], "repeated_items": []}
			}`, string(out))
		})
	}
}

func TestRuleEngine_Idempotent(t *testing.T) {
	engine := newEngine(core.DefaultRuleOptions())
	batch := sampleBatch()
	batch[0].LineItems[0].Total = core.TextAmount("Rs. 4000.00")

	first, err := engine.Audit(batch)
	require.NoError(t, err)
	second, err := engine.Audit(batch)
	require.NoError(t, err)

	a, _ := json.Marshal(first)
	b, _ := json.Marshal(second)
	assert.JSONEq(t, string(a), string(b))
}

func TestRuleEngine_ConcurrentMatchesSequential(t *testing.T) {
	batch := sampleBatch()
	batch[1].GSTIN = "not-a-gstin"
	batch[2].LineItems[1].Total = core.TextAmount("n/a")

	seqOpts := core.DefaultRuleOptions()
	conOpts := core.DefaultRuleOptions()
	conOpts.Concurrent = true

	seq, err := newEngine(seqOpts).Audit(batch)
	require.NoError(t, err)
	con, err := newEngine(conOpts).Audit(batch)
	require.NoError(t, err)

	a, _ := json.Marshal(seq)
	b, _ := json.Marshal(con)
	assert.JSONEq(t, string(a), string(b))
}

func TestRuleEngine_MissingLineItemsContainer(t *testing.T) {
	batch := sampleBatch()
	batch[2].LineItems = nil

	report, err := newEngine(core.DefaultRuleOptions()).Audit(batch)
	require.Error(t, err)
	assert.Nil(t, report)
	assert.ErrorIs(t, err, core.ErrMissingLineItems)

	var berr *core.BatchError
	require.True(t, errors.As(err, &berr))
	assert.Equal(t, 2, berr.Index)
	assert.Equal(t, "INV-1003", berr.InvoiceID)
}

func TestRuleEngine_OutOfRangeTotalIsSkipped(t *testing.T) {
	var batch []core.Invoice
	err := json.Unmarshal([]byte(`[{"invoice_id":"A","vendor":"Acme","date":"2025-06-01",
		"line_items":[{"name":"Widget","quantity":1,"unit_price":1,"total":1e50000000},
		{"name":"Gadget","quantity":2,"unit_price":3,"total":6}]}]`), &batch)
	require.NoError(t, err)

	obs, logs := observer.New(zapcore.WarnLevel)
	opts := core.DefaultRuleOptions()
	opts.Now = func() time.Time { return processingDate }

	report, err := core.NewRuleEngine(opts, zap.New(obs)).Audit(batch)
	require.NoError(t, err)

	assert.Empty(t, report.Issues)
	assert.Empty(t, report.ComplianceFlags.MissingFields)
	require.Len(t, report.VendorSummary, 1)
	assertDecimal(t, "6", report.VendorSummary[0].TotalBilled.Decimal)

	skipped := logs.FilterMessage("skipping line item in arithmetic check").All()
	require.Len(t, skipped, 1)
	assert.Equal(t, "total", skipped[0].ContextMap()["field"])
	assert.Equal(t, "Widget", skipped[0].ContextMap()["item"])
}

func TestRuleEngine_GSTINToggle(t *testing.T) {
	batch := sampleBatch()
	batch[0].GSTIN = "27AAPFU0939F1Z"

	report, err := newEngine(core.DefaultRuleOptions()).Audit(batch)
	require.NoError(t, err)
	assert.Equal(t, []core.InvalidGSTIN{{InvoiceID: "INV-1001", GSTIN: "27AAPFU0939F1Z"}}, report.ComplianceFlags.InvalidGSTIN)

	opts := core.DefaultRuleOptions()
	opts.CheckGSTIN = false
	report, err = newEngine(opts).Audit(batch)
	require.NoError(t, err)
	assert.NotNil(t, report.ComplianceFlags.InvalidGSTIN)
	assert.Empty(t, report.ComplianceFlags.InvalidGSTIN)
}

func TestRuleEngine_FlagsReferenceBatchInvoices(t *testing.T) {
	batch := sampleBatch()
	batch[0].LineItems[1].Total = core.TextAmount("Rs. 6500.00")
	batch[3].LineItems[2].Quantity = core.Amount{}

	report, err := newEngine(core.DefaultRuleOptions()).Audit(batch)
	require.NoError(t, err)

	ids := map[string]bool{}
	for _, inv := range batch {
		ids[inv.InvoiceID] = true
	}
	for _, is := range report.Issues {
		assert.True(t, ids[is.InvoiceID], is.InvoiceID)
	}
	for _, mf := range report.ComplianceFlags.MissingFields {
		assert.True(t, ids[mf.InvoiceID], mf.InvoiceID)
	}
	for _, fd := range report.ComplianceFlags.FutureDates {
		assert.True(t, ids[fd.InvoiceID], fd.InvoiceID)
	}
	for _, d := range report.InvoicePatterns.DuplicateAmounts {
		for _, id := range d.InvoiceIDs {
			assert.True(t, ids[id], id)
		}
	}
}

func TestSummarizeBatch_DateRange(t *testing.T) {
	batch := []core.Invoice{
		{InvoiceID: "A", Date: "2025-13-01"},
		{InvoiceID: "B", Date: "2025-03-09"},
		{InvoiceID: "C", Date: ""},
		{InvoiceID: "D", Date: "2024-12-31"},
		{InvoiceID: "E", Date: "2025-3-10"},
	}
	summary := core.SummarizeBatch(batch)
	assert.Equal(t, 5, summary.TotalInvoices)
	assert.Zero(t, summary.Vendors)
	require.NotNil(t, summary.DateRange.Start)
	assert.Equal(t, "2024-12-31", *summary.DateRange.Start)
	assert.Equal(t, "2025-03-09", *summary.DateRange.End)

	summary = core.SummarizeBatch([]core.Invoice{{InvoiceID: "X", Date: "yesterday"}})
	assert.Nil(t, summary.DateRange.Start)
	assert.Nil(t, summary.DateRange.End)
}
