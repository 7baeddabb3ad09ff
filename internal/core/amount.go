package core

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/shopspring/decimal"
)

// AmountKind tags which variant an Amount holds.
type AmountKind int

const (
	AmountAbsent AmountKind = iota
	AmountNumeric
	AmountText
)

func (k AmountKind) String() string {
	switch k {
	case AmountNumeric:
		return "numeric"
	case AmountText:
		return "text"
	default:
		return "absent"
	}
}

// Amount is a monetary or quantity value exactly as the upstream parser produced it:
// either a number, free text such as "Rs. 5,000.00", or nothing at all.
// Downstream code converts it only through NormalizeAmount or ParseQuantity.
type Amount struct {
	kind   AmountKind
	number decimal.Decimal
	text   string
	// outOfRange marks a numeric value beyond the supported magnitude; text then
	// holds the raw JSON literal, if any, and number is unused.
	outOfRange bool
}

const (
	maxAmountExponent = 30
	maxAmountDigits   = 40
	// maxAmountLiteral bounds the text handed to decimal.NewFromString.
	maxAmountLiteral = 64
)

// NumericAmount wraps an already numeric value.
func NumericAmount(d decimal.Decimal) Amount {
	if checkRange(d) != nil {
		return Amount{kind: AmountNumeric, outOfRange: true}
	}
	return Amount{kind: AmountNumeric, number: d}
}

// FloatAmount wraps a float64 value.
func FloatAmount(f float64) Amount {
	return NumericAmount(decimal.NewFromFloat(f))
}

// TextAmount wraps a textual value.
func TextAmount(s string) Amount {
	return Amount{kind: AmountText, text: s}
}

func (a Amount) Kind() AmountKind { return a.kind }

func (a Amount) IsAbsent() bool { return a.kind == AmountAbsent }

// String renders the raw value for logs and error messages.
func (a Amount) String() string {
	switch {
	case a.kind == AmountNumeric && a.outOfRange:
		if a.text != "" {
			return a.text
		}
		return "<out of range>"
	case a.kind == AmountNumeric:
		return a.number.String()
	case a.kind == AmountText:
		return a.text
	default:
		return "<absent>"
	}
}

// UnmarshalJSON accepts a JSON number, a JSON string, or null.
func (a *Amount) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		*a = Amount{}
		return nil
	}
	if data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*a = TextAmount(s)
		return nil
	}
	if data[0] != '-' && (data[0] < '0' || data[0] > '9') {
		return fmt.Errorf("amount must be a number or a string, got %s", data)
	}
	// Huge or tiny numbers are kept so the line is reported, not the whole batch rejected.
	if len(data) > maxAmountLiteral {
		*a = Amount{kind: AmountNumeric, outOfRange: true}
		return nil
	}
	d, err := decimal.NewFromString(string(data))
	if err != nil {
		return fmt.Errorf("amount must be a number or a string, got %s", data)
	}
	if checkRange(d) != nil {
		*a = Amount{kind: AmountNumeric, text: string(data), outOfRange: true}
		return nil
	}
	*a = NumericAmount(d)
	return nil
}

// MarshalJSON writes the value back in the variant it was received in.
func (a Amount) MarshalJSON() ([]byte, error) {
	switch a.kind {
	case AmountNumeric:
		if a.outOfRange {
			if a.text != "" {
				return []byte(a.text), nil
			}
			return []byte("null"), nil
		}
		return []byte(a.number.String()), nil
	case AmountText:
		return json.Marshal(a.text)
	default:
		return []byte("null"), nil
	}
}

var (
	// ErrNoAmount is returned when a value carries no recognisable number.
	ErrNoAmount = errors.New("no valid amount found")

	// ErrAmountOutOfRange is returned for values whose magnitude or precision is
	// far beyond any invoice amount.
	ErrAmountOutOfRange = errors.New("amount out of supported range")
)

// checkRange bounds the exponent and digit count so rounding and formatting stay cheap.
func checkRange(d decimal.Decimal) error {
	if e := d.Exponent(); e > maxAmountExponent || e < -maxAmountExponent {
		return ErrAmountOutOfRange
	}
	if d.NumDigits() > maxAmountDigits {
		return ErrAmountOutOfRange
	}
	return nil
}

// NormalizationError reports a value that could not be turned into a number.
type NormalizationError struct {
	Value Amount
	Err   error
}

func (e *NormalizationError) Error() string {
	return fmt.Sprintf("failed to normalize amount %q: %v", e.Value.String(), e.Err)
}

func (e *NormalizationError) Unwrap() error { return e.Err }

// amountPattern matches digit groups with optional thousands separators and an
// optional one or two digit fractional part, e.g. "5,000.00" in "Rs. 5,000.00".
var amountPattern = regexp.MustCompile(`\d[\d,]*(?:\.\d{1,2})?`)

// NormalizeAmount converts a currency-aware Amount into a decimal.
// Numeric values pass through unchanged; text values yield their first numeric run.
func NormalizeAmount(a Amount) (decimal.Decimal, error) {
	switch a.kind {
	case AmountNumeric:
		if a.outOfRange {
			return decimal.Zero, &NormalizationError{Value: a, Err: ErrAmountOutOfRange}
		}
		return a.number, nil
	case AmountText:
		match := amountPattern.FindString(a.text)
		if match == "" {
			return decimal.Zero, &NormalizationError{Value: a, Err: ErrNoAmount}
		}
		digits := strings.ReplaceAll(match, ",", "")
		if len(digits) > maxAmountLiteral {
			return decimal.Zero, &NormalizationError{Value: a, Err: ErrAmountOutOfRange}
		}
		d, err := decimal.NewFromString(digits)
		if err != nil {
			return decimal.Zero, &NormalizationError{Value: a, Err: err}
		}
		if err := checkRange(d); err != nil {
			return decimal.Zero, &NormalizationError{Value: a, Err: err}
		}
		return d, nil
	default:
		return decimal.Zero, &NormalizationError{Value: a, Err: ErrNoAmount}
	}
}

// ParseQuantity is the plain numeric parse used for quantities: no currency
// symbols or thousands separators are tolerated.
func ParseQuantity(a Amount) (decimal.Decimal, error) {
	switch a.kind {
	case AmountNumeric:
		if a.outOfRange {
			return decimal.Zero, &NormalizationError{Value: a, Err: ErrAmountOutOfRange}
		}
		return a.number, nil
	case AmountText:
		text := strings.TrimSpace(a.text)
		if len(text) > maxAmountLiteral {
			return decimal.Zero, &NormalizationError{Value: a, Err: ErrAmountOutOfRange}
		}
		d, err := decimal.NewFromString(text)
		if err != nil {
			return decimal.Zero, &NormalizationError{Value: a, Err: err}
		}
		if err := checkRange(d); err != nil {
			return decimal.Zero, &NormalizationError{Value: a, Err: err}
		}
		return d, nil
	default:
		return decimal.Zero, &NormalizationError{Value: a, Err: ErrNoAmount}
	}
}

// isBlank reports whether the value counts as missing for field validation.
// A numeric zero is blank only when zeroIsMissing is set.
func (a Amount) isBlank(zeroIsMissing bool) bool {
	switch a.kind {
	case AmountText:
		return strings.TrimSpace(a.text) == ""
	case AmountNumeric:
		return zeroIsMissing && !a.outOfRange && a.number.IsZero()
	default:
		return true
	}
}
