package core

import (
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// DetectPatterns scans every line item of the batch, in invoice then line order, for
// line totals that occur more than once and item names that occur more than once.
func DetectPatterns(invoices []Invoice, logger *zap.Logger) InvoicePatterns {
	logger = orNop(logger)

	type amountGroup struct {
		amount decimal.Decimal
		ids    []string
	}
	var amounts []*amountGroup
	byAmount := make(map[string]*amountGroup)

	var itemOrder []string
	itemCounts := make(map[string]int)

	for _, inv := range invoices {
		for _, item := range inv.LineItems {
			if amt, err := NormalizeAmount(item.Total); err != nil {
				logger.Warn("line total left out of duplicate amount scan",
					zap.String("invoice_id", inv.InvoiceID),
					zap.String("item", item.Name),
					zap.Error(err))
			} else {
				// String() drops trailing zeros, so 5000 and 5000.00 share a key.
				key := amt.String()
				g, ok := byAmount[key]
				if !ok {
					g = &amountGroup{amount: amt}
					byAmount[key] = g
					amounts = append(amounts, g)
				}
				g.ids = append(g.ids, inv.InvoiceID)
			}

			if item.Name == "" {
				continue
			}
			if itemCounts[item.Name] == 0 {
				itemOrder = append(itemOrder, item.Name)
			}
			itemCounts[item.Name]++
		}
	}

	patterns := InvoicePatterns{
		DuplicateAmounts: make([]DuplicateAmount, 0),
		RepeatedItems:    make([]RepeatedItem, 0),
	}
	for _, g := range amounts {
		if len(g.ids) > 1 {
			patterns.DuplicateAmounts = append(patterns.DuplicateAmounts, DuplicateAmount{
				Amount:     Money{g.amount},
				InvoiceIDs: g.ids,
			})
		}
	}
	for _, name := range itemOrder {
		if n := itemCounts[name]; n > 1 {
			patterns.RepeatedItems = append(patterns.RepeatedItems, RepeatedItem{Item: name, Occurrences: n})
		}
	}
	return patterns
}
