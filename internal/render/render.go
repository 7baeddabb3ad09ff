// Package render turns stored audit runs into Markdown, HTML and PDF documents.
package render

import (
	"errors"
	"fmt"
	"io"
	"strings"

	"invoice-audit/internal/core"
)

// ErrUnknownFormat is returned for report formats other than json, md, html and pdf.
var ErrUnknownFormat = errors.New("unknown report format")

type Format string

const (
	FormatJSON     Format = "json"
	FormatMarkdown Format = "md"
	FormatHTML     Format = "html"
	FormatPDF      Format = "pdf"
)

// ParseFormat accepts the format names used by the CLI flags and report URLs.
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "json", "":
		return FormatJSON, nil
	case "md", "markdown":
		return FormatMarkdown, nil
	case "html":
		return FormatHTML, nil
	case "pdf":
		return FormatPDF, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownFormat, s)
	}
}

// ContentType is the HTTP media type of a rendered document.
func (f Format) ContentType() string {
	switch f {
	case FormatMarkdown:
		return "text/markdown; charset=utf-8"
	case FormatHTML:
		return "text/html; charset=utf-8"
	case FormatPDF:
		return "application/pdf"
	default:
		return "application/json"
	}
}

// Write renders run in format f to w.
func Write(w io.Writer, run *core.AuditRun, f Format) error {
	if run == nil || run.Report == nil {
		return errors.New("render: audit run has no report")
	}
	switch f {
	case FormatJSON:
		return writeJSON(w, run)
	case FormatMarkdown:
		_, err := io.WriteString(w, Markdown(run))
		return err
	case FormatHTML:
		return HTML(w, run)
	case FormatPDF:
		return PDF(w, run)
	default:
		return fmt.Errorf("%w: %q", ErrUnknownFormat, f)
	}
}
