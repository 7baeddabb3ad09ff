package core

import "strings"

// DetectMissingFields flags a blank vendor on each invoice and, for every line item,
// a missing quantity, unit_price or total, in that order.
// When treatZeroAsMissing is set a numeric zero counts as missing.
// A vendor or text amount holding only whitespace counts as missing.
func DetectMissingFields(invoices []Invoice, treatZeroAsMissing bool) []MissingField {
	missing := make([]MissingField, 0)
	for _, inv := range invoices {
		if strings.TrimSpace(inv.Vendor) == "" {
			missing = append(missing, MissingField{InvoiceID: inv.InvoiceID, Field: "vendor"})
		}
		for _, item := range inv.LineItems {
			fields := []struct {
				name  string
				value Amount
			}{
				{"quantity", item.Quantity},
				{"unit_price", item.UnitPrice},
				{"total", item.Total},
			}
			for _, f := range fields {
				if f.value.isBlank(treatZeroAsMissing) {
					missing = append(missing, MissingField{InvoiceID: inv.InvoiceID, Field: f.name})
				}
			}
		}
	}
	return missing
}
