package utils

import "github.com/shopspring/decimal"

// MoneyPlaces is the number of decimal places amounts are stored with
const MoneyPlaces = 2

var hundred = decimal.NewFromInt(100)

// RoundMoney rounds half away from zero to MoneyPlaces
func RoundMoney(d decimal.Decimal) decimal.Decimal {
	return d.Round(MoneyPlaces)
}

// Percent returns amount × rate/100 rounded to MoneyPlaces
func Percent(amount, rate decimal.Decimal) decimal.Decimal {
	return RoundMoney(amount.Mul(rate).Div(hundred))
}

// IsPositive reports whether d > 0
func IsPositive(d decimal.Decimal) bool {
	return d.Sign() > 0
}

// FormatMoney renders an amount with exactly MoneyPlaces decimals
func FormatMoney(d decimal.Decimal) string {
	return d.StringFixed(MoneyPlaces)
}
