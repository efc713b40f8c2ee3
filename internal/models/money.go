package models

import (
	"strings"

	"github.com/shopspring/decimal"
)

const DefaultCurrency = "eur"

// FormatAmount переводит сумму в минимальных единицах в строку вида "49.00 EUR"
func FormatAmount(minor int64, currency string) string {
	if currency == "" {
		currency = DefaultCurrency
	}
	return decimal.New(minor, -2).StringFixed(2) + " " + strings.ToUpper(currency)
}

// ParseAmount converts a major-unit string such as "49.9" into minor units
func ParseAmount(major string) (int64, error) {
	d, err := decimal.NewFromString(strings.TrimSpace(major))
	if err != nil {
		return 0, err
	}
	return d.Shift(2).Round(0).IntPart(), nil
}

// Percent возвращает долю part от total в процентах, не больше 100
func Percent(part, total int64) int {
	if total <= 0 {
		return 0
	}
	p := decimal.NewFromInt(part).Div(decimal.NewFromInt(total)).Shift(2).Floor().IntPart()
	if p > 100 {
		return 100
	}
	return int(p)
}
