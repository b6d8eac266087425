package invoice

import (
	"strings"

	"github.com/shopspring/decimal"
)

// wordsLimit is one crore. Amounts at or above it are not spelled out.
var wordsLimit = decimal.NewFromInt(10_000_000)

var ones = [...]string{
	"", "One", "Two", "Three", "Four", "Five", "Six", "Seven", "Eight", "Nine",
	"Ten", "Eleven", "Twelve", "Thirteen", "Fourteen", "Fifteen", "Sixteen",
	"Seventeen", "Eighteen", "Nineteen",
}

var tens = [...]string{
	"", "", "Twenty", "Thirty", "Forty", "Fifty", "Sixty", "Seventy", "Eighty", "Ninety",
}

// AmountInWords spells a rupee amount using the Indian numbering system,
// e.g. 112550.50 → "One Lakh Twelve Thousand Five Hundred Fifty Rupees and
// Fifty Paise Only". It returns "" for negative amounts and for amounts of
// one crore or more.
func AmountInWords(amount decimal.Decimal) string {
	if amount.IsNegative() {
		return ""
	}
	amount = amount.Round(2)
	if amount.GreaterThanOrEqual(wordsLimit) {
		return ""
	}

	rupees := amount.IntPart()
	paise := amount.Sub(decimal.NewFromInt(rupees)).Shift(2).IntPart()

	var b strings.Builder
	if rupees == 0 {
		b.WriteString("Zero")
	} else {
		b.WriteString(integerWords(rupees))
	}
	if rupees == 1 {
		b.WriteString(" Rupee")
	} else {
		b.WriteString(" Rupees")
	}
	if paise > 0 {
		b.WriteString(" and ")
		b.WriteString(integerWords(paise))
		b.WriteString(" Paise")
	}
	b.WriteString(" Only")
	return b.String()
}

// integerWords spells 1 ≤ n < 10,000,000.
func integerWords(n int64) string {
	var parts []string
	if lakhs := n / 100_000; lakhs > 0 {
		parts = append(parts, belowHundred(lakhs), "Lakh")
		n %= 100_000
	}
	if thousands := n / 1000; thousands > 0 {
		parts = append(parts, belowHundred(thousands), "Thousand")
		n %= 1000
	}
	if hundreds := n / 100; hundreds > 0 {
		parts = append(parts, ones[hundreds], "Hundred")
		n %= 100
	}
	if n > 0 {
		parts = append(parts, belowHundred(n))
	}
	return strings.Join(parts, " ")
}

func belowHundred(n int64) string {
	if n < 20 {
		return ones[n]
	}
	if n%10 == 0 {
		return tens[n/10]
	}
	return tens[n/10] + " " + ones[n%10]
}
