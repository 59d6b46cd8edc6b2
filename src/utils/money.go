package utils

import (
	"fmt"

	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

var moneyPrinter = message.NewPrinter(language.English)

// FormatMoney renders a dollar amount with thousands separators, e.g.
// 50000.0 -> "$50,000.00".
func FormatMoney(amount float64) string {
	return fmt.Sprintf("$%s", moneyPrinter.Sprintf("%.2f", amount))
}

// FormatPercent renders a fraction as a percentage, e.g. 0.1234 -> "12.34%".
func FormatPercent(fraction float64) string {
	return fmt.Sprintf("%.2f%%", fraction*100)
}
