package valueobject

import (
	"github.com/shopspring/decimal"
)

// CurrencyEpsilon is the smallest monetary remainder that still counts as owed.
// Anything strictly below one cent is rounding noise.
var CurrencyEpsilon = decimal.New(1, -2)

// MoneyPlaces is the number of decimal places amounts are reported with
const MoneyPlaces int32 = 2

// PercentPlaces is the number of decimal places percentages are reported with
const PercentPlaces int32 = 2

var hundred = decimal.NewFromInt(100)

// Hundred returns the decimal constant 100
func Hundred() decimal.Decimal {
	return hundred
}

// NonNegative floors negative amounts at zero
func NonNegative(d decimal.Decimal) decimal.Decimal {
	if d.IsNegative() {
		return decimal.Zero
	}
	return d
}

// IsNegligible returns true if the absolute amount is below one cent
func IsNegligible(d decimal.Decimal) bool {
	return d.Abs().LessThan(CurrencyEpsilon)
}

// Clamp limits d to the closed interval [lo, hi]
func Clamp(d, lo, hi decimal.Decimal) decimal.Decimal {
	if d.LessThan(lo) {
		return lo
	}
	if d.GreaterThan(hi) {
		return hi
	}
	return d
}

// ClampPercent limits d to [0, 100]
func ClampPercent(d decimal.Decimal) decimal.Decimal {
	return Clamp(d, decimal.Zero, hundred)
}

// Percent returns part/whole*100 rounded to PercentPlaces, or zero when whole is not positive
func Percent(part, whole decimal.Decimal) decimal.Decimal {
	if !whole.IsPositive() {
		return decimal.Zero
	}
	return part.Div(whole).Mul(hundred).Round(PercentPlaces)
}

// Ratio returns part/whole, or zero when whole is not positive
func Ratio(part, whole decimal.Decimal) decimal.Decimal {
	if !whole.IsPositive() {
		return decimal.Zero
	}
	return part.Div(whole)
}

// RoundMoney rounds an amount to MoneyPlaces
func RoundMoney(d decimal.Decimal) decimal.Decimal {
	return d.Round(MoneyPlaces)
}

// Sum adds up a list of amounts
func Sum(values ...decimal.Decimal) decimal.Decimal {
	total := decimal.Zero
	for _, v := range values {
		total = total.Add(v)
	}
	return total
}
