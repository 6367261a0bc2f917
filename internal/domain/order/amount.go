package order

import (
	"strconv"

	"github.com/shopspring/decimal"
	"golang.org/x/text/encoding/charmap"
)

// Limits on monetary amounts accepted in an order. Amounts beyond them would
// make decimal arithmetic allocate proportionally to the exponent.
const (
	MaxAmountScale  = 8
	MaxAmountDigits = 15
)

// CheckAmount reports why d cannot be used as a price, or "" if it can. Only
// the exponent and coefficient length are inspected, so it is cheap for any
// input that decimal can parse.
func CheckAmount(d decimal.Decimal) string {
	exp := int(d.Exponent())
	if exp < -MaxAmountScale {
		return "must have at most " + strconv.Itoa(MaxAmountScale) + " decimal places"
	}
	if exp+d.NumDigits() > MaxAmountDigits {
		return "must have at most " + strconv.Itoa(MaxAmountDigits) + " integer digits"
	}
	return ""
}

// IsPrintable reports whether every rune of s has a glyph in the Windows-1252
// encoding used by the document fonts. Control characters are rejected.
func IsPrintable(s string) bool {
	for _, r := range s {
		if r < 0x20 || r == 0x7f {
			return false
		}
		if r < 0x80 {
			continue
		}
		if _, ok := charmap.Windows1252.EncodeRune(r); !ok {
			return false
		}
	}
	return true
}
