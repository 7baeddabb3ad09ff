package render

import (
	"fmt"
	"io"
	"strconv"
	"strings"

	"invoice-audit/internal/core"

	"github.com/jung-kurt/gofpdf"
)

const (
	pageWidth = 190.0 // A4 minus default margins, in mm
	rowHeight = 6.0
)

type pdfWriter struct {
	pdf *gofpdf.Fpdf
	tr  func(string) string
}

// PDF renders run as an A4 PDF document.
func PDF(w io.Writer, run *core.AuditRun) error {
	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.SetTitle("Invoice Audit Report", true)
	pdf.SetCreator("invoice-audit", true)
	pdf.AddPage()
	p := &pdfWriter{pdf: pdf, tr: pdf.UnicodeTranslatorFromDescriptor("")}
	r := run.Report

	pdf.SetFont("Arial", "B", 16)
	pdf.CellFormat(pageWidth, 10, "Invoice Audit Report", "", 1, "L", false, 0, "")
	pdf.SetFont("Arial", "", 9)
	if run.Source != "" {
		p.line("Source: " + run.Source)
	}
	if !run.CreatedAt.IsZero() {
		p.line(fmt.Sprintf("Run: %s (%s)", run.ID, run.CreatedAt.UTC().Format(timeLayout)))
	}

	p.heading("Summary")
	p.table([]string{"Invoices", "Vendors", "Date range"}, []float64{40, 40, 110}, [][]string{{
		strconv.Itoa(r.Summary.TotalInvoices), strconv.Itoa(r.Summary.Vendors), dateRange(r.Summary.DateRange),
	}})

	p.heading(fmt.Sprintf("Issues (%d)", len(r.Issues)))
	var rows [][]string
	for _, is := range r.Issues {
		rows = append(rows, []string{is.InvoiceID, is.Vendor, string(is.Severity), is.Description})
	}
	p.table([]string{"Invoice", "Vendor", "Severity", "Description"}, []float64{25, 40, 20, 105}, rows)

	p.heading("Missing fields")
	rows = nil
	for _, m := range r.ComplianceFlags.MissingFields {
		rows = append(rows, []string{m.InvoiceID, m.Field})
	}
	p.table([]string{"Invoice", "Field"}, []float64{60, 130}, rows)

	p.heading("Future dates")
	rows = nil
	for _, f := range r.ComplianceFlags.FutureDates {
		rows = append(rows, []string{f.InvoiceID, f.Date})
	}
	p.table([]string{"Invoice", "Date"}, []float64{60, 130}, rows)

	if len(r.ComplianceFlags.InvalidGSTIN) > 0 {
		p.heading("Invalid GSTIN")
		rows = nil
		for _, g := range r.ComplianceFlags.InvalidGSTIN {
			rows = append(rows, []string{g.InvoiceID, g.GSTIN})
		}
		p.table([]string{"Invoice", "GSTIN"}, []float64{60, 130}, rows)
	}

	p.heading("Vendor summary")
	rows = nil
	for _, v := range r.VendorSummary {
		rows = append(rows, []string{v.Vendor, strconv.Itoa(v.InvoiceCount), v.TotalBilled.StringFixed(2)})
	}
	p.table([]string{"Vendor", "Invoices", "Total billed"}, []float64{100, 30, 60}, rows)

	p.heading("Duplicate amounts")
	rows = nil
	for _, d := range r.InvoicePatterns.DuplicateAmounts {
		rows = append(rows, []string{d.Amount.StringFixed(2), strings.Join(d.InvoiceIDs, ", ")})
	}
	p.table([]string{"Amount", "Invoices"}, []float64{40, 150}, rows)

	p.heading("Repeated items")
	rows = nil
	for _, it := range r.InvoicePatterns.RepeatedItems {
		rows = append(rows, []string{it.Item, strconv.Itoa(it.Occurrences)})
	}
	p.table([]string{"Item", "Occurrences"}, []float64{150, 40}, rows)

	if run.Insights != nil || run.InsightsError != "" {
		p.heading("Insights")
		switch {
		case run.InsightsError != "":
			p.line("Insights unavailable: " + run.InsightsError)
		case len(run.Insights) == 0:
			p.line("Nothing unusual.")
		default:
			for _, in := range run.Insights {
				pdf.MultiCell(pageWidth, rowHeight-1, p.tr(in.Type+": "+in.Description), "", "L", false)
			}
		}
	}

	if err := pdf.Output(w); err != nil {
		return fmt.Errorf("failed to render PDF report: %w", err)
	}
	return nil
}

func (p *pdfWriter) heading(s string) {
	p.pdf.Ln(3)
	p.pdf.SetFont("Arial", "B", 12)
	p.pdf.CellFormat(pageWidth, 8, p.tr(s), "", 1, "L", false, 0, "")
	p.pdf.SetFont("Arial", "", 9)
}

func (p *pdfWriter) line(s string) {
	p.pdf.CellFormat(pageWidth, rowHeight-1, p.tr(s), "", 1, "L", false, 0, "")
}

func (p *pdfWriter) table(header []string, widths []float64, rows [][]string) {
	if len(rows) == 0 {
		p.line("None.")
		return
	}
	p.pdf.SetFont("Arial", "B", 9)
	p.pdf.SetFillColor(241, 245, 249)
	for i, h := range header {
		p.pdf.CellFormat(widths[i], rowHeight, h, "1", 0, "L", true, 0, "")
	}
	p.pdf.Ln(-1)
	p.pdf.SetFont("Arial", "", 9)
	for _, row := range rows {
		for i, c := range row {
			p.pdf.CellFormat(widths[i], rowHeight, p.fit(c, widths[i]), "1", 0, "L", false, 0, "")
		}
		p.pdf.Ln(-1)
	}
}

// fit truncates s so it stays inside a cell of width w.
func (p *pdfWriter) fit(s string, w float64) string {
	s = p.tr(s)
	if p.pdf.GetStringWidth(s) <= w-2 {
		return s
	}
	for len(s) > 0 && p.pdf.GetStringWidth(s+"...") > w-2 {
		s = s[:len(s)-1]
	}
	return s + "..."
}
