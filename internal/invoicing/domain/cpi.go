package domain

import "github.com/shopspring/decimal"

// ApplyCPI compounds the configured CPI percentage for each financial year
// onto a base amount. Years without a configured percentage leave the
// amount unchanged. The result is rounded to cents.
func ApplyCPI(base decimal.Decimal, percentages map[string]float64, years []string) decimal.Decimal {
	amount := base
	for _, year := range years {
		pct, ok := percentages[year]
		if !ok || pct == 0 {
			continue
		}
		factor := decimal.NewFromFloat(1 + pct/100)
		amount = amount.Mul(factor)
	}
	return amount.Round(2)
}
