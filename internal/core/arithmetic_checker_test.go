package core_test

import (
	"testing"

	"invoice-audit/internal/core"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func singleItem(li core.LineItem) []core.Invoice {
	return []core.Invoice{{InvoiceID: "INV-1", Vendor: "Acme", Date: "2025-06-01", LineItems: []core.LineItem{li}}}
}

func TestDetectTotalMismatches_Widget(t *testing.T) {
	issues := core.DetectTotalMismatches(singleItem(item("Widget", "10", "Rs. 500.00", "Rs. 5000.00")), nil)
	assert.Empty(t, issues)

	issues = core.DetectTotalMismatches(singleItem(item("Widget", "10", "Rs. 500.00", "Rs. 4000.00")), nil)
	require.Len(t, issues, 1)
	assert.Equal(t, core.Issue{
		InvoiceID:   "INV-1",
		Vendor:      "Acme",
		IssueType:   core.IssueTotalMismatch,
		Description: "Total mismatch for item Widget: expected 5000.00, got 4000.00",
		Severity:    core.SeverityHigh,
	}, issues[0])
}

func numericPrice(qty string, unitPrice float64, total string) core.LineItem {
	return core.LineItem{
		Name:      "a",
		Quantity:  core.TextAmount(qty),
		UnitPrice: core.FloatAmount(unitPrice),
		Total:     core.TextAmount(total),
	}
}

func TestDetectTotalMismatches_Rounding(t *testing.T) {
	tests := []struct {
		name     string
		li       core.LineItem
		mismatch bool
	}{
		{name: "half rounds away from zero", li: numericPrice("3", 3.335, "10.01")},
		{name: "half does not round to even", li: numericPrice("3", 3.335, "10.00"), mismatch: true},
		{name: "sub cent noise is ignored", li: numericPrice("3", 0.3333, "1.00")},
		{name: "text price keeps two fractional digits", li: item("a", "3", "0.3333", "0.99")},
		{name: "numeric inputs", li: core.LineItem{Name: "a", Quantity: core.FloatAmount(2), UnitPrice: core.FloatAmount(19.99), Total: core.FloatAmount(39.98)}},
		{name: "fractional quantity", li: item("a", "2.5", "USD 4.00", "10")},
		{name: "off by a cent", li: item("a", "1", "9.99", "10.00"), mismatch: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			issues := core.DetectTotalMismatches(singleItem(tt.li), nil)
			if tt.mismatch {
				assert.Len(t, issues, 1)
			} else {
				assert.Empty(t, issues)
			}
		})
	}
}

func TestDetectTotalMismatches_UnparseableValuesAreSkipped(t *testing.T) {
	obs, logs := observer.New(zapcore.WarnLevel)
	logger := zap.New(obs)

	invoices := []core.Invoice{{InvoiceID: "INV-1", Vendor: "Acme", LineItems: []core.LineItem{
		item("bad qty", "ten", "Rs. 5.00", "Rs. 50.00"),
		item("bad price", "10", "N/A", "Rs. 50.00"),
		{Name: "no total", Quantity: core.TextAmount("10"), UnitPrice: core.TextAmount("5")},
		item("wrong", "2", "5", "11"),
	}}}

	issues := core.DetectTotalMismatches(invoices, logger)
	require.Len(t, issues, 1)
	assert.Contains(t, issues[0].Description, "item wrong")

	assert.Equal(t, 3, logs.Len())
	fields := logs.All()[0].ContextMap()
	assert.Equal(t, "INV-1", fields["invoice_id"])
	assert.Equal(t, "quantity", fields["field"])
}

func TestDetectTotalMismatches_OnePerOffendingLine(t *testing.T) {
	invoices := []core.Invoice{
		{InvoiceID: "A", LineItems: []core.LineItem{item("x", "1", "1", "2"), item("y", "1", "1", "1"), item("z", "2", "2", "5")}},
		{InvoiceID: "B", LineItems: []core.LineItem{item("x", "1", "1", "3")}},
	}
	issues := core.DetectTotalMismatches(invoices, nil)
	require.Len(t, issues, 3)
	assert.Equal(t, "A", issues[0].InvoiceID)
	assert.Equal(t, "A", issues[1].InvoiceID)
	assert.Equal(t, "B", issues[2].InvoiceID)
}
