// Package currency renders minor-unit amounts for display. Pure, no state.
package currency

import "github.com/shopspring/decimal"

// minorDigits maps ISO codes to their minor-unit exponent. Codes not listed
// use two digits.
var minorDigits = map[string]int32{
	"IDR": 0,
	"JPY": 0,
	"KRW": 0,
	"VND": 0,
	"BHD": 3,
	"KWD": 3,
}

// Format renders an integer minor-unit amount as "<CODE> <major>", e.g.
// Format(123450, "USD") == "USD 1234.50". Display-time conversion only; the
// ledger itself never leaves integer minor units.
func Format(amountMinor int64, code string) string {
	digits, ok := minorDigits[code]
	if !ok {
		digits = 2
	}
	d := decimal.New(amountMinor, -digits)
	return code + " " + d.StringFixed(digits)
}
