package core

import (
	"strings"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// SummarizeVendors rolls invoices up per vendor name in first-seen order.
// Invoices without a vendor are left out. Line totals that fail to normalize
// contribute zero to total_billed.
func SummarizeVendors(invoices []Invoice, logger *zap.Logger) []VendorSummary {
	logger = orNop(logger)
	index := make(map[string]int)
	summaries := make([]VendorSummary, 0)
	for _, inv := range invoices {
		if strings.TrimSpace(inv.Vendor) == "" {
			continue
		}
		billed := decimal.Zero
		for _, item := range inv.LineItems {
			amt, err := NormalizeAmount(item.Total)
			if err != nil {
				logger.Warn("line total counted as zero in vendor summary",
					zap.String("invoice_id", inv.InvoiceID),
					zap.String("vendor", inv.Vendor),
					zap.String("item", item.Name),
					zap.Error(err))
				continue
			}
			billed = billed.Add(amt)
		}

		i, ok := index[inv.Vendor]
		if !ok {
			i = len(summaries)
			index[inv.Vendor] = i
			summaries = append(summaries, VendorSummary{Vendor: inv.Vendor})
		}
		summaries[i].InvoiceCount++
		summaries[i].TotalBilled = Money{summaries[i].TotalBilled.Add(billed)}
	}
	return summaries
}
