package render

import (
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"strings"

	"invoice-audit/internal/core"
)

const timeLayout = "2006-01-02 15:04 MST"

// Markdown renders run as a GitHub-flavoured Markdown document.
func Markdown(run *core.AuditRun) string {
	r := run.Report
	var b strings.Builder

	b.WriteString("# Invoice Audit Report\n\n")
	if run.Source != "" {
		fmt.Fprintf(&b, "- Source: %s\n", escape(run.Source))
	}
	if !run.CreatedAt.IsZero() {
		fmt.Fprintf(&b, "- Run: %s (%s)\n", run.ID, run.CreatedAt.UTC().Format(timeLayout))
	}
	b.WriteString("\n## Summary\n\n")
	table(&b, []string{"Invoices", "Vendors", "Date range"}, [][]string{{
		strconv.Itoa(r.Summary.TotalInvoices),
		strconv.Itoa(r.Summary.Vendors),
		dateRange(r.Summary.DateRange),
	}})

	fmt.Fprintf(&b, "## Issues (%d)\n\n", len(r.Issues))
	rows := make([][]string, 0, len(r.Issues))
	for _, is := range r.Issues {
		rows = append(rows, []string{is.InvoiceID, is.Vendor, string(is.IssueType), string(is.Severity), is.Description})
	}
	table(&b, []string{"Invoice", "Vendor", "Type", "Severity", "Description"}, rows)

	b.WriteString("## Compliance flags\n\n")
	b.WriteString("### Missing fields\n\n")
	rows = rows[:0]
	for _, m := range r.ComplianceFlags.MissingFields {
		rows = append(rows, []string{m.InvoiceID, m.Field})
	}
	table(&b, []string{"Invoice", "Field"}, rows)

	b.WriteString("### Future dates\n\n")
	rows = rows[:0]
	for _, f := range r.ComplianceFlags.FutureDates {
		rows = append(rows, []string{f.InvoiceID, f.Date})
	}
	table(&b, []string{"Invoice", "Date"}, rows)

	b.WriteString("### Invalid GSTIN\n\n")
	rows = rows[:0]
	for _, g := range r.ComplianceFlags.InvalidGSTIN {
		rows = append(rows, []string{g.InvoiceID, g.GSTIN})
	}
	table(&b, []string{"Invoice", "GSTIN"}, rows)

	b.WriteString("## Vendor summary\n\n")
	rows = rows[:0]
	for _, v := range r.VendorSummary {
		rows = append(rows, []string{v.Vendor, strconv.Itoa(v.InvoiceCount), v.TotalBilled.StringFixed(2)})
	}
	table(&b, []string{"Vendor", "Invoices", "Total billed"}, rows)

	b.WriteString("## Invoice patterns\n\n")
	b.WriteString("### Duplicate amounts\n\n")
	rows = rows[:0]
	for _, d := range r.InvoicePatterns.DuplicateAmounts {
		rows = append(rows, []string{d.Amount.StringFixed(2), strings.Join(d.InvoiceIDs, ", ")})
	}
	table(&b, []string{"Amount", "Invoices"}, rows)

	b.WriteString("### Repeated items\n\n")
	rows = rows[:0]
	for _, it := range r.InvoicePatterns.RepeatedItems {
		rows = append(rows, []string{it.Item, strconv.Itoa(it.Occurrences)})
	}
	table(&b, []string{"Item", "Occurrences"}, rows)

	if run.Insights != nil || run.InsightsError != "" {
		b.WriteString("## Insights\n\n")
		switch {
		case run.InsightsError != "":
			fmt.Fprintf(&b, "_Insights unavailable: %s_\n\n", escape(run.InsightsError))
		case len(run.Insights) == 0:
			b.WriteString("_Nothing unusual._\n\n")
		default:
			for _, in := range run.Insights {
				fmt.Fprintf(&b, "- **%s**: %s\n", escape(in.Type), escape(in.Description))
			}
			b.WriteString("\n")
		}
	}
	return b.String()
}

func table(b *strings.Builder, header []string, rows [][]string) {
	if len(rows) == 0 {
		b.WriteString("_None._\n\n")
		return
	}
	b.WriteString("| " + strings.Join(header, " | ") + " |\n")
	b.WriteString("|" + strings.Repeat(" --- |", len(header)) + "\n")
	for _, row := range rows {
		cells := make([]string, len(row))
		for i, c := range row {
			cells[i] = escape(c)
		}
		b.WriteString("| " + strings.Join(cells, " | ") + " |\n")
	}
	b.WriteString("\n")
}

func dateRange(dr core.DateRange) string {
	if dr.Start == nil || dr.End == nil {
		return "n/a"
	}
	if *dr.Start == *dr.End {
		return *dr.Start
	}
	return *dr.Start + " to " + *dr.End
}

var mdEscaper = strings.NewReplacer(
	`\`, `\\`, "|", `\|`, "*", `\*`, "_", `\_`, "`", "\\`",
	"<", `\<`, "[", `\[`, "]", `\]`, "#", `\#`, "\n", " ", "\r", "",
)

// escape makes free text (vendor names, item names, model output) inert inside Markdown.
func escape(s string) string {
	return mdEscaper.Replace(s)
}

func writeJSON(w io.Writer, run *core.AuditRun) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(run)
}
