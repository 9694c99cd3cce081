package parsers

import (
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode"

	"github.com/shopspring/decimal"
)

// DateOrder selects how a slashed date like 03/04/2024 is read
type DateOrder string

const (
	DateOrderDMY DateOrder = "DMY"
	DateOrderMDY DateOrder = "MDY"
)

// IsValid checks if the date order is known
func (o DateOrder) IsValid() bool {
	return o == DateOrderDMY || o == DateOrderMDY
}

// ParseDateOrder parses a configured date order, defaulting to DMY
func ParseDateOrder(s string) (DateOrder, error) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "", "DMY":
		return DateOrderDMY, nil
	case "MDY":
		return DateOrderMDY, nil
	default:
		return "", fmt.Errorf("invalid date order '%s': must be DMY or MDY", s)
	}
}

// ErrInvalidDate is returned when no supported layout matches
var ErrInvalidDate = errors.New("invalid date")

// ErrInvalidAmount is returned by ParseAmountStrict for malformed amounts
var ErrInvalidAmount = errors.New("invalid amount")

// DateResult is a parsed calendar date and the layout that matched
type DateResult struct {
	Date   time.Time
	Layout string

	// Ambiguous is set when the day and month could be swapped and still
	// give a different valid date.
	Ambiguous bool
}

var (
	dayFirstLayouts   = []string{"2/1/2006", "2-1-2006", "2.1.2006"}
	monthFirstLayouts = []string{"1/2/2006", "1-2-2006", "1.2.2006"}
	isoLayouts        = []string{"2006-01-02", "2006/01/02", "2006-01-02T15:04:05", "2006-01-02 15:04:05"}
)

// dateLayouts returns the candidate layouts in the order they are tried
func dateLayouts(order DateOrder) []string {
	first, second := dayFirstLayouts, monthFirstLayouts
	if order == DateOrderMDY {
		first, second = monthFirstLayouts, dayFirstLayouts
	}

	layouts := make([]string, 0, len(first)+len(second)+len(isoLayouts))
	layouts = append(layouts, first...)
	layouts = append(layouts, second...)
	layouts = append(layouts, isoLayouts...)
	return layouts
}

// swapped maps each day/month layout to its counterpart
var swapped = map[string]string{
	"2/1/2006": "1/2/2006",
	"1/2/2006": "2/1/2006",
	"2-1-2006": "1-2-2006",
	"1-2-2006": "2-1-2006",
	"2.1.2006": "1.2.2006",
	"1.2.2006": "2.1.2006",
}

// ParseDate parses a date written in any of the supported layouts. The
// result is truncated to midnight UTC.
func ParseDate(text string, order DateOrder) (DateResult, error) {
	s := strings.TrimSpace(text)
	if s == "" {
		return DateResult{}, ErrInvalidDate
	}
	if !order.IsValid() {
		order = DateOrderDMY
	}

	for _, layout := range dateLayouts(order) {
		t, err := time.Parse(layout, s)
		if err != nil {
			continue
		}

		result := DateResult{Date: truncateDay(t), Layout: layout}
		if other, ok := swapped[layout]; ok {
			if alt, err := time.Parse(other, s); err == nil && !truncateDay(alt).Equal(result.Date) {
				result.Ambiguous = true
			}
		}
		return result, nil
	}

	return DateResult{}, fmt.Errorf("%w: '%s'", ErrInvalidDate, s)
}

func truncateDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

var currencyTokens = []string{"R$", "US$", "BRL", "USD", "EUR", "GBP", "$", "€", "£"}

// ParseAmount parses a monetary amount, returning zero for malformed input
func ParseAmount(text string) decimal.Decimal {
	d, err := ParseAmountStrict(text)
	if err != nil {
		return decimal.Zero
	}
	return d
}

// ParseAmountStrict parses a monetary amount written with either decimal
// comma or decimal point. Empty input is zero.
func ParseAmountStrict(text string) (decimal.Decimal, error) {
	s := strings.TrimSpace(text)
	if s == "" {
		return decimal.Zero, nil
	}

	upper := strings.ToUpper(s)
	for _, token := range currencyTokens {
		upper = strings.ReplaceAll(upper, token, "")
	}
	s = strings.Map(func(r rune) rune {
		if unicode.IsSpace(r) {
			return -1
		}
		return r
	}, upper)

	negative := false
	if strings.HasPrefix(s, "(") && strings.HasSuffix(s, ")") {
		negative = true
		s = s[1 : len(s)-1]
	}
	if strings.HasPrefix(s, "-") {
		negative = !negative
		s = s[1:]
	}
	if s == "" {
		return decimal.Zero, fmt.Errorf("%w: '%s'", ErrInvalidAmount, text)
	}

	normalized, ok := normalizeSeparators(s)
	if !ok {
		return decimal.Zero, fmt.Errorf("%w: '%s'", ErrInvalidAmount, text)
	}

	d, err := decimal.NewFromString(normalized)
	if err != nil {
		return decimal.Zero, fmt.Errorf("%w: '%s': %v", ErrInvalidAmount, text, err)
	}
	if negative {
		d = d.Neg()
	}
	return d, nil
}

// normalizeSeparators rewrites s to use '.' as the only decimal separator
// and no thousands separators. It reports false for anything that is not
// digits and separators.
func normalizeSeparators(s string) (string, bool) {
	for _, r := range s {
		if !(r >= '0' && r <= '9') && r != '.' && r != ',' {
			return "", false
		}
	}

	dots := strings.Count(s, ".")
	commas := strings.Count(s, ",")

	switch {
	case dots > 0 && commas > 0:
		lastDot := strings.LastIndex(s, ".")
		lastComma := strings.LastIndex(s, ",")
		decimalSep, thousandsSep := ".", ","
		if lastComma > lastDot {
			decimalSep, thousandsSep = ",", "."
		}
		if strings.Count(s, decimalSep) != 1 {
			return "", false
		}
		s = strings.ReplaceAll(s, thousandsSep, "")
		s = strings.Replace(s, decimalSep, ".", 1)
	case commas == 1:
		s = strings.Replace(s, ",", ".", 1)
	case commas > 1:
		s = strings.ReplaceAll(s, ",", "")
	case dots > 1:
		s = strings.ReplaceAll(s, ".", "")
	}

	if s == "" || s == "." {
		return "", false
	}
	return s, true
}

// NormalizePhone keeps digits and a single leading '+'
func NormalizePhone(text string) string {
	s := strings.TrimSpace(text)
	var b strings.Builder
	if strings.HasPrefix(s, "+") {
		b.WriteByte('+')
	}
	for _, r := range s {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	if b.Len() == 1 && strings.HasPrefix(b.String(), "+") {
		return ""
	}
	return b.String()
}

// WithCountryCode returns the phone as +<digits>, prefixing the country code
// unless the number already carries it or was written with a leading '+'.
func WithCountryCode(phone, countryCode string) string {
	normalized := NormalizePhone(phone)
	international := strings.HasPrefix(normalized, "+")

	digits := strings.TrimLeft(strings.TrimPrefix(normalized, "+"), "0")
	if digits == "" {
		return ""
	}

	countryCode = strings.TrimLeft(strings.TrimSpace(countryCode), "+")
	if !international && countryCode != "" && !strings.HasPrefix(digits, countryCode) {
		digits = countryCode + digits
	}
	return "+" + digits
}
