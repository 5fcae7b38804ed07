package analytics

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"

	"trade-analytics/internal/models"
)

var t0 = time.Date(2024, 3, 4, 10, 0, 0, 0, time.UTC) // Monday

func d(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

// assertDec compares decimals by value so 999 and 999.00 are equal.
func assertDec(t *testing.T, want string, got decimal.Decimal, msgAndArgs ...interface{}) {
	t.Helper()
	assert.Truef(t, d(want).Equal(got), "want %s, got %s %v", want, got.String(), msgAndArgs)
}

func trade(id string, pnl string, exit time.Time) models.Trade {
	return models.Trade{
		ID:            id,
		Symbol:        "INFY",
		Direction:     models.DirectionLong,
		EntryPrice:    d("100"),
		ExitPrice:     d("100"),
		Quantity:      d("1"),
		EntryTime:     exit.Add(-10 * time.Minute),
		ExitTime:      exit,
		PnL:           d(pnl),
		Fee:           decimal.Zero,
		PlanAdherence: models.PlanNotRated,
	}
}

func bar(ts time.Time, high, low string) models.PriceBar {
	return models.PriceBar{
		Timestamp: ts,
		Open:      d(low),
		High:      d(high),
		Low:       d(low),
		Close:     d(high),
	}
}
