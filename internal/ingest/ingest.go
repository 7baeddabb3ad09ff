// Package ingest decodes invoice batches produced by the upstream document parsers.
package ingest

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"invoice-audit/internal/core"
)

// ErrUnsupportedFormat is returned for file types other than JSON and CSV.
var ErrUnsupportedFormat = errors.New("unsupported batch format")

// Format identifies the encoding of a batch.
type Format string

const (
	FormatJSON Format = "json"
	FormatCSV  Format = "csv"
)

// FormatFromFilename picks the batch format from a file extension.
func FormatFromFilename(name string) (Format, error) {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".json":
		return FormatJSON, nil
	case ".csv":
		return FormatCSV, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnsupportedFormat, name)
	}
}

// Read decodes a batch in the given format.
func Read(r io.Reader, format Format) ([]core.Invoice, error) {
	switch format {
	case FormatJSON:
		return ReadJSON(r)
	case FormatCSV:
		return ReadCSV(r)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedFormat, format)
	}
}

// ReadJSON accepts either a bare array of invoices or an object with an "invoices" array.
func ReadJSON(r io.Reader) ([]core.Invoice, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("failed to read JSON batch: %w", err)
	}
	data = bytes.TrimSpace(data)
	if len(data) == 0 {
		return nil, errors.New("empty JSON batch")
	}

	if data[0] == '[' {
		var invoices []core.Invoice
		if err := json.Unmarshal(data, &invoices); err != nil {
			return nil, fmt.Errorf("invalid JSON batch: %w", err)
		}
		return invoices, nil
	}

	var wrapped struct {
		Invoices *[]core.Invoice `json:"invoices"`
	}
	if err := json.Unmarshal(data, &wrapped); err != nil {
		return nil, fmt.Errorf("invalid JSON batch: %w", err)
	}
	if wrapped.Invoices == nil {
		return nil, errors.New(`invalid JSON batch: expected an array or an object with "invoices"`)
	}
	return *wrapped.Invoices, nil
}
