package core

import (
	"regexp"
	"strings"
)

// gstinPattern is the 15 character Indian GST identification number:
// state code, PAN, entity number, the literal Z, and a check character.
var gstinPattern = regexp.MustCompile(`^\d{2}[A-Z]{5}\d{4}[A-Z][1-9A-Z]Z[0-9A-Z]$`)

// ValidGSTIN reports whether s is a well-formed GSTIN, ignoring case and surrounding space.
func ValidGSTIN(s string) bool {
	return gstinPattern.MatchString(strings.ToUpper(strings.TrimSpace(s)))
}

// DetectInvalidGSTINs flags invoices carrying a GSTIN that is present but malformed.
// Invoices without a GSTIN are not flagged.
func DetectInvalidGSTINs(invoices []Invoice) []InvalidGSTIN {
	flags := make([]InvalidGSTIN, 0)
	for _, inv := range invoices {
		if strings.TrimSpace(inv.GSTIN) == "" || ValidGSTIN(inv.GSTIN) {
			continue
		}
		flags = append(flags, InvalidGSTIN{InvoiceID: inv.InvoiceID, GSTIN: inv.GSTIN})
	}
	return flags
}
