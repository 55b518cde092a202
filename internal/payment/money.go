package payment

import (
	"fmt"
	"strings"

	"golang.org/x/text/currency"
)

// NormalizeCurrency upper-cases code and checks it against ISO 4217.
func NormalizeCurrency(code string) (string, error) {
	code = strings.ToUpper(strings.TrimSpace(code))
	unit, err := currency.ParseISO(code)
	if err != nil {
		return "", fmt.Errorf("%w: %q", ErrInvalidCurrency, code)
	}
	return unit.String(), nil
}

// CurrencyScale returns the number of minor-unit digits for code (2 for USD,
// 0 for JPY).
func CurrencyScale(code string) (int, error) {
	unit, err := currency.ParseISO(code)
	if err != nil {
		return 0, fmt.Errorf("%w: %q", ErrInvalidCurrency, code)
	}
	scale, _ := currency.Standard.Rounding(unit)
	return scale, nil
}

// FormatMinor renders an amount in minor units as a plain decimal string in
// the currency's scale: FormatMinor(120, "USD") == "1.20".
func FormatMinor(amount int64, code string) (string, error) {
	scale, err := CurrencyScale(code)
	if err != nil {
		return "", err
	}
	sign := ""
	if amount < 0 {
		sign = "-"
		amount = -amount
	}
	if scale == 0 {
		return fmt.Sprintf("%s%d", sign, amount), nil
	}
	div := int64(1)
	for i := 0; i < scale; i++ {
		div *= 10
	}
	return fmt.Sprintf("%s%d.%0*d", sign, amount/div, scale, amount%div), nil
}
