package money

import (
	"github.com/shopspring/decimal"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
	"golang.org/x/text/number"
)

var printer = message.NewPrinter(language.English)

// Format renders an amount with digit grouping and two decimals for display.
func Format(x decimal.Decimal) string {
	f, _ := Round2(x).Float64()
	return printer.Sprint(number.Decimal(f, number.Scale(Scale)))
}
