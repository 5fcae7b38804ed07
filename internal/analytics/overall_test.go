package analytics

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"trade-analytics/internal/models"
)

func TestAnalyzeOverallPerformance_EquityAndDrawdown(t *testing.T) {
	trades := []models.Trade{
		trade("T3", "200", t0.Add(2*time.Hour)),
		trade("T1", "100", t0),
		trade("T2", "-50", t0.Add(time.Hour)),
	}

	stats := AnalyzeOverallPerformance(trades, d("1000"))

	require.Len(t, stats.EquityCurve, 4)
	wantBalances := []string{"1000", "1100", "1050", "1250"}
	for i, want := range wantBalances {
		assertDec(t, want, stats.EquityCurve[i].Balance, "point %d", i)
	}
	assert.Equal(t, t0.Add(-10*time.Minute-time.Second), stats.EquityCurve[0].Timestamp)
	assert.Equal(t, t0.Add(2*time.Hour), stats.EquityCurve[3].Timestamp)

	assertDec(t, "-50", stats.MaxDrawdown)
	assertDec(t, "200", stats.MaxRunup)

	assert.Equal(t, 3, stats.TotalTrades)
	assert.Equal(t, 2, stats.WinningTrades)
	assert.Equal(t, 1, stats.LosingTrades)
	assertDec(t, "250", stats.TotalPnL)
	assertDec(t, "1250", stats.EndBalance)
	assertDec(t, "300", stats.GrossProfit)
	assertDec(t, "50", stats.GrossLoss)
	assertDec(t, "0.6667", stats.WinRate)
	assertDec(t, "150", stats.AvgWinPnL)
	assertDec(t, "50", stats.AvgLossPnL)
	assertDec(t, "3", stats.AvgRiskReward)
	assertDec(t, "6", stats.ProfitFactor)
	// 150*0.6667 - 50*0.3333 = 100.005 - 16.665
	assertDec(t, "83.34", stats.Expectancy)
	assertDec(t, "200", stats.LargestWin)
	assertDec(t, "-50", stats.LargestLoss)
	assert.Equal(t, int64(600), stats.AvgTradeDurationSeconds)
	assert.Equal(t, 10*time.Minute, stats.AvgTradeDuration())
	assert.Equal(t, 1, stats.LongestWinStreak)
	assert.Equal(t, 1, stats.LongestLossStreak)
}

func TestAnalyzeOverallPerformance_Empty(t *testing.T) {
	for _, trades := range [][]models.Trade{nil, {}} {
		stats := AnalyzeOverallPerformance(trades, d("5000"))
		assert.Equal(t, 0, stats.TotalTrades)
		assertDec(t, "5000", stats.StartingBalance)
		assertDec(t, "5000", stats.EndBalance)
		assertDec(t, "0", stats.TotalPnL)
		assertDec(t, "0", stats.WinRate)
		assertDec(t, "0", stats.ProfitFactor)
		assertDec(t, "0", stats.Expectancy)
		assertDec(t, "0", stats.MaxDrawdown)
		assertDec(t, "0", stats.MaxRunup)
		assert.NotNil(t, stats.EquityCurve)
		assert.Empty(t, stats.EquityCurve)
		assert.Equal(t, int64(0), stats.AvgTradeDurationSeconds)
	}
}

func TestAnalyzeOverallPerformance_ProfitFactorSentinel(t *testing.T) {
	stats := AnalyzeOverallPerformance([]models.Trade{
		trade("A", "10", t0),
		trade("B", "20", t0.Add(time.Minute)),
	}, decimal.Zero)

	assertDec(t, "999.00", stats.ProfitFactor)
	assertDec(t, "0", stats.AvgLossPnL)
	assertDec(t, "0", stats.AvgRiskReward)
	assertDec(t, "15", stats.Expectancy)
	assert.Equal(t, 2, stats.LongestWinStreak)

	onlyLosses := AnalyzeOverallPerformance([]models.Trade{trade("C", "-10", t0)}, decimal.Zero)
	assertDec(t, "0", onlyLosses.ProfitFactor)
	assertDec(t, "-10", onlyLosses.Expectancy)

	flat := AnalyzeOverallPerformance([]models.Trade{trade("D", "0", t0)}, decimal.Zero)
	assertDec(t, "0", flat.ProfitFactor)
	assert.Equal(t, 1, flat.BreakevenTrades)
}

func TestAnalyzeOverallPerformance_StableSort(t *testing.T) {
	same := t0.Add(time.Hour)
	trades := []models.Trade{
		trade("first", "-30", same),
		trade("second", "50", same),
		trade("early", "10", t0),
	}

	stats := AnalyzeOverallPerformance(trades, d("100"))
	require.Len(t, stats.EquityCurve, 4)
	// early (+10) then first (-30) then second (+50), input order kept on ties.
	assertDec(t, "110", stats.EquityCurve[1].Balance)
	assertDec(t, "80", stats.EquityCurve[2].Balance)
	assertDec(t, "130", stats.EquityCurve[3].Balance)
	assertDec(t, "-30", stats.MaxDrawdown)
	assertDec(t, "50", stats.MaxRunup)

	// Input slice is not reordered.
	assert.Equal(t, "first", trades[0].ID)
}

func TestAnalyzeOverallPerformance_DurationFloorAndFees(t *testing.T) {
	a := trade("A", "1", t0)
	a.EntryTime = t0.Add(-90*time.Second - 900*time.Millisecond) // 90.9s -> 90
	a.Fee = d("1.25")
	b := trade("B", "1", t0.Add(time.Hour))
	b.EntryTime = b.ExitTime.Add(-61 * time.Second)
	b.Fee = d("0.75")

	stats := AnalyzeOverallPerformance([]models.Trade{a, b}, decimal.Zero)
	// (90 + 61) / 2 = 75.5 -> 75
	assert.Equal(t, int64(75), stats.AvgTradeDurationSeconds)
	assertDec(t, "2", stats.TotalFees)
}

func TestDrawdownRecoversAfterNewPeak(t *testing.T) {
	trades := []models.Trade{
		trade("1", "500", t0),
		trade("2", "-300", t0.Add(time.Minute)),
		trade("3", "-100", t0.Add(2*time.Minute)),
		trade("4", "600", t0.Add(3*time.Minute)),
		trade("5", "-50", t0.Add(4*time.Minute)),
	}
	stats := AnalyzeOverallPerformance(trades, d("1000"))
	// Peak 1500 -> trough 1100 is the deepest decline; 1100 -> 1700 the largest rise.
	assertDec(t, "-400", stats.MaxDrawdown)
	assertDec(t, "600", stats.MaxRunup)
	assert.Equal(t, 2, stats.LongestLossStreak)
}
