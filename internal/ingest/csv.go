package ingest

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"

	"invoice-audit/internal/core"
)

var requiredColumns = []string{"invoice_id", "vendor", "date", "product", "quantity", "unit_price", "total"}

// ReadCSV groups one-row-per-line-item CSV data into invoices.
// Rows sharing (invoice_id, vendor, date) form one invoice; invoices keep the order
// in which their first row appears. An optional gstin column is carried over.
// Empty quantity, unit_price or total cells become absent amounts.
func ReadCSV(r io.Reader) ([]core.Invoice, error) {
	reader := csv.NewReader(r)
	reader.TrimLeadingSpace = true
	reader.FieldsPerRecord = -1

	header, err := reader.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, errors.New("empty CSV batch")
		}
		return nil, fmt.Errorf("failed to read CSV header: %w", err)
	}

	col := make(map[string]int, len(header))
	for i, h := range header {
		col[strings.ToLower(strings.TrimSpace(strings.TrimPrefix(h, "\ufeff")))] = i
	}
	var missing []string
	for _, name := range requiredColumns {
		if _, ok := col[name]; !ok {
			missing = append(missing, name)
		}
	}
	if len(missing) > 0 {
		return nil, fmt.Errorf("CSV batch is missing columns: %s", strings.Join(missing, ", "))
	}
	gstinCol, hasGSTIN := col["gstin"]

	type groupKey struct{ id, vendor, date string }
	index := make(map[groupKey]int)
	invoices := make([]core.Invoice, 0)

	for line := 2; ; line++ {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read CSV line %d: %w", line, err)
		}
		field := func(name string) string {
			i := col[name]
			if i >= len(record) {
				return ""
			}
			return strings.TrimSpace(record[i])
		}
		if isBlankRecord(record) {
			continue
		}

		key := groupKey{field("invoice_id"), field("vendor"), field("date")}
		i, ok := index[key]
		if !ok {
			i = len(invoices)
			index[key] = i
			inv := core.Invoice{InvoiceID: key.id, Vendor: key.vendor, Date: key.date, LineItems: []core.LineItem{}}
			if hasGSTIN && gstinCol < len(record) {
				inv.GSTIN = strings.TrimSpace(record[gstinCol])
			}
			invoices = append(invoices, inv)
		}
		invoices[i].LineItems = append(invoices[i].LineItems, core.LineItem{
			Name:      field("product"),
			Quantity:  cellAmount(field("quantity")),
			UnitPrice: cellAmount(field("unit_price")),
			Total:     cellAmount(field("total")),
		})
	}
	return invoices, nil
}

func cellAmount(s string) core.Amount {
	if s == "" {
		return core.Amount{}
	}
	return core.TextAmount(s)
}

func isBlankRecord(record []string) bool {
	for _, v := range record {
		if strings.TrimSpace(v) != "" {
			return false
		}
	}
	return true
}
