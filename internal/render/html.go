package render

import (
	"bytes"
	"fmt"
	"io"

	"invoice-audit/internal/core"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
)

var md = goldmark.New(goldmark.WithExtensions(extension.GFM))

const htmlHead = `<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="utf-8">
<title>Invoice Audit Report</title>
<style>
body { font-family: system-ui, sans-serif; max-width: 60rem; margin: 2rem auto; color: #1e293b; }
table { border-collapse: collapse; margin-bottom: 1rem; }
th, td { border: 1px solid #cbd5e1; padding: .3rem .6rem; text-align: left; }
th { background: #f1f5f9; }
</style>
</head>
<body>
`

// HTML renders the Markdown report through goldmark into a standalone page.
func HTML(w io.Writer, run *core.AuditRun) error {
	var body bytes.Buffer
	if err := md.Convert([]byte(Markdown(run)), &body); err != nil {
		return fmt.Errorf("failed to render HTML report: %w", err)
	}
	if _, err := io.WriteString(w, htmlHead); err != nil {
		return err
	}
	if _, err := body.WriteTo(w); err != nil {
		return err
	}
	_, err := io.WriteString(w, "</body>\n</html>\n")
	return err
}
