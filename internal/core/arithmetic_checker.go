package core

import (
	"fmt"

	"go.uber.org/zap"
)

// DetectTotalMismatches recomputes quantity × unit price for every line item and
// reports a high severity total_mismatch when it differs from the recorded total
// at two decimal places. Values that cannot be parsed are logged and the line is
// skipped; they are reported by the field validator, not here.
func DetectTotalMismatches(invoices []Invoice, logger *zap.Logger) []Issue {
	logger = orNop(logger)
	issues := make([]Issue, 0)
	for _, inv := range invoices {
		for _, item := range inv.LineItems {
			qty, err := ParseQuantity(item.Quantity)
			if err != nil {
				logSkippedItem(logger, inv, item, "quantity", err)
				continue
			}
			unitPrice, err := NormalizeAmount(item.UnitPrice)
			if err != nil {
				logSkippedItem(logger, inv, item, "unit_price", err)
				continue
			}
			total, err := NormalizeAmount(item.Total)
			if err != nil {
				logSkippedItem(logger, inv, item, "total", err)
				continue
			}

			expected := qty.Mul(unitPrice)
			if expected.Round(2).Equal(total.Round(2)) {
				continue
			}
			issues = append(issues, Issue{
				InvoiceID: inv.InvoiceID,
				Vendor:    inv.Vendor,
				IssueType: IssueTotalMismatch,
				Description: fmt.Sprintf("Total mismatch for item %s: expected %s, got %s",
					item.Name, expected.StringFixed(2), total.StringFixed(2)),
				Severity: SeverityHigh,
			})
		}
	}
	return issues
}

func logSkippedItem(logger *zap.Logger, inv Invoice, item LineItem, field string, err error) {
	logger.Warn("skipping line item in arithmetic check",
		zap.String("invoice_id", inv.InvoiceID),
		zap.String("item", item.Name),
		zap.String("field", field),
		zap.Error(err))
}

func orNop(logger *zap.Logger) *zap.Logger {
	if logger == nil {
		return zap.NewNop()
	}
	return logger
}
