package models

import "github.com/shopspring/decimal"

// Money columns are numeric(12,2): ten integer digits and two decimals.
const moneyIntegerDigits = 10

// MaxMoney is the largest amount a money column can hold.
var MaxMoney = decimal.New(999999999999, -2)

// RoundMoney rounds d to cents and reports whether the result fits a money
// column. The magnitude is judged from the coefficient and exponent before
// rounding, so inputs like 1e20000000 are rejected without being expanded.
func RoundMoney(d decimal.Decimal) (decimal.Decimal, bool) {
	if d.IsZero() {
		return decimal.Zero, true
	}
	integerDigits := d.NumDigits() + int(d.Exponent())
	if integerDigits > moneyIntegerDigits {
		return decimal.Zero, false
	}
	// Below a tenth of a cent; rounds to zero.
	if integerDigits < -2 {
		return decimal.Zero, true
	}
	rounded := d.Round(2)
	if rounded.Abs().GreaterThan(MaxMoney) {
		return decimal.Zero, false
	}
	return rounded, true
}
