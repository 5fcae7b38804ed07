// Package analytics turns closed trades and optional intrabar history into
// performance statistics: calendar and cohort buckets, profit and expectancy
// metrics, the equity curve with drawdown and run-up, excursion based
// efficiency, and automated objective tags.
//
// All money and ratio arithmetic uses decimal.Decimal. Ratios are rounded
// half-up (away from zero) at the scale documented on each field; every
// division has a defined fallback for a zero divisor, so none of the exported
// functions return errors. Functions keep no state between calls and are safe
// for concurrent use.
package analytics

import (
	"github.com/shopspring/decimal"
)

// Decimal places used across the package.
const (
	MoneyScale = 2 // currency amounts and financial ratios
	RatioScale = 4 // win rates and efficiency statistics
)

var (
	// ProfitFactorSentinel is reported when there is gross profit but no gross loss.
	ProfitFactorSentinel = decimal.New(99900, -2)

	hundred = decimal.NewFromInt(100)
	one     = decimal.NewFromInt(1)
)

// Round2 rounds half-up to two decimal places.
func Round2(d decimal.Decimal) decimal.Decimal {
	return d.Round(MoneyScale)
}

// Round4 rounds half-up to four decimal places.
func Round4(d decimal.Decimal) decimal.Decimal {
	return d.Round(RatioScale)
}

// divRound divides a by b rounding half-up to places; a zero divisor yields zero.
func divRound(a, b decimal.Decimal, places int32) decimal.Decimal {
	if b.IsZero() {
		return decimal.Zero
	}
	return a.DivRound(b, places)
}

// ratio returns n/d as a decimal rounded to places; d == 0 yields zero.
func ratio(n, d int, places int32) decimal.Decimal {
	if d == 0 {
		return decimal.Zero
	}
	return decimal.NewFromInt(int64(n)).DivRound(decimal.NewFromInt(int64(d)), places)
}
