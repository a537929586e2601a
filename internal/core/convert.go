package core

// convert.go coerces raw field values from import files into claim types.
//
// Input comes from spreadsheets and exports as often as from programs, so
// amounts may carry currency symbols, thousands separators or accounting
// parentheses, and dates may use regional layouts.

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// numericRegex validates that a string is a plain number after cleanup.
var numericRegex = regexp.MustCompile(`^[+-]?(\d+(\.\d*)?|\.\d+)([eE][+-]?\d+)?$`)

// maxExponent bounds the exponent of scientific notation. Rescaling a
// decimal costs time proportional to the exponent.
const maxExponent = 20

// maxAmount is the first value that no longer fits decimal(12,2).
var maxAmount = decimal.New(1, 10)

// TwoDigitYearPivot defines how 2-digit years are interpreted.
// Years that would land more than this many years in the future are moved
// back a century.
var TwoDigitYearPivot = 20

var (
	twoDigitYearLayouts = []string{
		"1/2/06", "01/02/06", "1-2-06", "1.2.06", "01.02.06",
	}
	fourDigitYearLayouts = []string{
		"2006-01-02",
		"1/2/2006", "01/02/2006", "1-2-2006", "01-02-2006", "1.2.2006", "01.02.2006",
		"2006/01/02", "2006.01.02",
		"Jan 2, 2006", "2 Jan 2006",
		"20060102",
	}
)

var errEmptyValue = errors.New("value is empty")

// ParseAmount parses a monetary amount and rounds it to cents, half away
// from zero. Amounts needing more than 10 integer digits are rejected.
func ParseAmount(s string) (decimal.Decimal, error) {
	raw := s
	s = strings.TrimSpace(s)
	if s == "" {
		return decimal.Zero, errEmptyValue
	}

	negative := false
	if strings.HasPrefix(s, "(") && strings.HasSuffix(s, ")") {
		negative = true
		s = strings.TrimSpace(s[1 : len(s)-1])
	}

	s = strings.ReplaceAll(s, "$", "")
	s = strings.ReplaceAll(s, "€", "") // Euro
	s = strings.ReplaceAll(s, "£", "") // Pound
	s = strings.ReplaceAll(s, ",", "")
	s = strings.TrimSpace(s)

	if negative {
		s = "-" + s
	}

	if !numericRegex.MatchString(s) {
		return decimal.Zero, fmt.Errorf("invalid amount %q", raw)
	}
	if err := checkExponent(s); err != nil {
		return decimal.Zero, fmt.Errorf("invalid amount %q: %w", raw, err)
	}

	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, fmt.Errorf("invalid amount %q: %w", raw, err)
	}
	d = d.Round(2)
	if d.Abs().GreaterThanOrEqual(maxAmount) {
		return decimal.Zero, fmt.Errorf("amount %s exceeds 10 integer digits", d.StringFixed(2))
	}
	return d, nil
}

// ParseDate parses a calendar date. ISO 8601 is tried first, then common
// regional layouts. The result is midnight UTC.
func ParseDate(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, errEmptyValue
	}

	for _, layout := range fourDigitYearLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}

	pivotYear := time.Now().Year() + TwoDigitYearPivot
	for _, layout := range twoDigitYearLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			if t.Year() > pivotYear {
				t = t.AddDate(-100, 0, 0)
			}
			return t, nil
		}
	}

	return time.Time{}, fmt.Errorf("invalid date %q (use YYYY-MM-DD)", s)
}

// ParseID parses an integer identifier. Integral decimals such as "7.0"
// are accepted; fractions are not.
func ParseID(s string) (int64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, errEmptyValue
	}
	if !numericRegex.MatchString(s) {
		return 0, fmt.Errorf("invalid integer %q", s)
	}
	if err := checkExponent(s); err != nil {
		return 0, fmt.Errorf("invalid integer %q: %w", s, err)
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return 0, fmt.Errorf("invalid integer %q: %w", s, err)
	}
	if !d.IsInteger() {
		return 0, fmt.Errorf("invalid integer %q: has a fractional part", s)
	}
	id := d.IntPart()
	if !decimal.NewFromInt(id).Equal(d) {
		return 0, fmt.Errorf("invalid integer %q: out of range", s)
	}
	return id, nil
}

// checkExponent rejects a number already matched by numericRegex whose
// exponent lies outside ±maxExponent.
func checkExponent(s string) error {
	i := strings.IndexAny(s, "eE")
	if i < 0 {
		return nil
	}
	exp, err := strconv.Atoi(s[i+1:])
	if err != nil || exp > maxExponent || exp < -maxExponent {
		return fmt.Errorf("exponent out of range (limit ±%d)", maxExponent)
	}
	return nil
}

// NormalizeCPTCodes trims each comma-separated code and drops empty ones.
func NormalizeCPTCodes(s string) string {
	return strings.Join(ClaimDetail{CPTCodes: s}.CPTCodeList(), ",")
}

// CleanCell removes common spreadsheet artifacts from a CSV header name:
// surrounding whitespace, an Excel formula prefix (="...") and surrounding
// quotes. Data cells go through TrimCell instead.
func CleanCell(s string) string {
	s = strings.TrimSpace(s)

	if strings.HasPrefix(s, "=\"") && strings.HasSuffix(s, "\"") {
		s = s[2 : len(s)-1]
	} else if strings.HasPrefix(s, "=") {
		s = s[1:]
	}

	return strings.TrimSpace(strings.Trim(s, `"'`))
}

// TrimCell trims a CSV data cell and unwraps the ="..." form spreadsheets
// use to keep leading zeros. Quotes and a bare = are data and are kept.
func TrimCell(s string) string {
	s = strings.TrimSpace(s)
	if len(s) >= 3 && strings.HasPrefix(s, "=\"") && strings.HasSuffix(s, "\"") {
		return strings.TrimSpace(s[2 : len(s)-1])
	}
	return s
}

// normalizeKey is the canonical form of a field name.
func normalizeKey(s string) string {
	return strings.ToLower(strings.TrimSpace(strings.TrimPrefix(s, "\ufeff")))
}
