package ledger

import (
	"github.com/shopspring/decimal"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

var (
	hundred    = decimal.NewFromInt(100)
	moneyPrint = message.NewPrinter(language.Turkish)
)

// Round2 rounds a monetary amount to two decimal places, half away from zero.
func Round2(v decimal.Decimal) decimal.Decimal {
	return v.Round(2)
}

// Percent returns v × rate / 100 without rounding.
func Percent(v, rate decimal.Decimal) decimal.Decimal {
	return v.Mul(rate).Div(hundred)
}

// Sum adds the supplied amounts.
func Sum(values ...decimal.Decimal) decimal.Decimal {
	total := decimal.Zero
	for _, v := range values {
		total = total.Add(v)
	}
	return total
}

// FormatMoney renders an amount for user-facing messages, e.g. "1.234,50 ₺".
func FormatMoney(v decimal.Decimal) string {
	return moneyPrint.Sprintf("%.2f ₺", v.Round(2).InexactFloat64())
}
