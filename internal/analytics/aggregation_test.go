package analytics

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"trade-analytics/internal/models"
)

func rated(tr models.Trade, p models.PlanAdherence) models.Trade {
	tr.PlanAdherence = p
	return tr
}

func tagged(tr models.Trade, tags ...string) models.Trade {
	tr.Tags = tags
	return tr
}

func TestEngineEmptyInput(t *testing.T) {
	e := Engine{}
	for _, trades := range [][]models.Trade{nil, {}} {
		assert.NotNil(t, e.ByDay(trades))
		assert.Empty(t, e.ByDay(trades))
		assert.Empty(t, e.ByWeek(trades))
		assert.Empty(t, e.ByHour(trades))
		assert.Empty(t, e.ByTradesPerDay(trades))
		assert.Empty(t, AnalyzeTagPerformance(trades))
	}
}

func TestEngineByDay(t *testing.T) {
	day2 := t0.Add(24 * time.Hour)
	trades := []models.Trade{
		rated(trade("1", "100", t0), models.PlanPerfectExecution),
		rated(trade("2", "-40", t0.Add(time.Hour)), models.PlanMajorDeviation),
		rated(trade("3", "10", t0.Add(2*time.Hour)), models.PlanMinorDeviation),
		trade("4", "5", t0.Add(3*time.Hour)), // not rated
		trade("5", "-20", day2),
	}

	days := Engine{}.ByDay(trades)
	require.Len(t, days, 2)

	first := days["2024-03-04"]
	assert.Equal(t, "2024-03-04", first.Date)
	assert.Equal(t, 4, first.TradeCount)
	assertDec(t, "75", first.TotalPnL)
	assertDec(t, "0.75", first.WinRate)
	// 2 of 3 rated trades followed the plan.
	assertDec(t, "66.67", first.PlanFollowedPct)

	second := days["2024-03-05"]
	assert.Equal(t, 1, second.TradeCount)
	assertDec(t, "0", second.WinRate)
	assertDec(t, "0", second.PlanFollowedPct)

	sorted := SortedDays(days)
	assert.Equal(t, "2024-03-04", sorted[0].Date)
	assert.Equal(t, "2024-03-05", sorted[1].Date)
}

func TestEngineByDayUsesLocation(t *testing.T) {
	late := time.Date(2024, 3, 4, 22, 30, 0, 0, time.UTC)
	trades := []models.Trade{trade("1", "1", late)}

	assert.Contains(t, Engine{}.ByDay(trades), "2024-03-04")

	ist := time.FixedZone("IST", 5*3600+1800)
	assert.Contains(t, NewEngine(ist).ByDay(trades), "2024-03-05")
}

func TestUSWeek(t *testing.T) {
	tests := []struct {
		date     time.Time
		wantYear int
		wantWeek int
	}{
		// 2024-01-01 is a Monday; Sunday 2024-01-07 starts week 2.
		{time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC), 2024, 1},
		{time.Date(2024, 1, 6, 0, 0, 0, 0, time.UTC), 2024, 1},
		{time.Date(2024, 1, 7, 0, 0, 0, 0, time.UTC), 2024, 2},
		{time.Date(2024, 3, 4, 0, 0, 0, 0, time.UTC), 2024, 10},
		// Sunday 2024-12-29 starts the week containing 2025-01-01.
		{time.Date(2024, 12, 28, 0, 0, 0, 0, time.UTC), 2024, 52},
		{time.Date(2024, 12, 29, 0, 0, 0, 0, time.UTC), 2025, 1},
		{time.Date(2024, 12, 31, 0, 0, 0, 0, time.UTC), 2025, 1},
		{time.Date(2025, 1, 4, 0, 0, 0, 0, time.UTC), 2025, 1},
		{time.Date(2025, 1, 5, 0, 0, 0, 0, time.UTC), 2025, 2},
		// 2023-01-01 is a Sunday.
		{time.Date(2023, 1, 1, 0, 0, 0, 0, time.UTC), 2023, 1},
		{time.Date(2023, 1, 8, 0, 0, 0, 0, time.UTC), 2023, 2},
	}
	for _, tt := range tests {
		year, week := USWeek(tt.date)
		assert.Equal(t, tt.wantYear, year, tt.date.Format("2006-01-02"))
		assert.Equal(t, tt.wantWeek, week, tt.date.Format("2006-01-02"))
	}
}

func TestEngineByWeek(t *testing.T) {
	trades := []models.Trade{
		rated(trade("1", "10", time.Date(2024, 3, 3, 12, 0, 0, 0, time.UTC)), models.PlanNoPlan), // Sunday, week 10
		trade("2", "20", time.Date(2024, 3, 9, 12, 0, 0, 0, time.UTC)),                           // Saturday, week 10
		trade("3", "-5", time.Date(2024, 3, 10, 12, 0, 0, 0, time.UTC)),                          // Sunday, week 11
	}
	weeks := Engine{}.ByWeek(trades)
	require.Len(t, weeks, 2)

	w10 := weeks["2024-W10"]
	assert.Equal(t, 2024, w10.Year)
	assert.Equal(t, 10, w10.Week)
	assert.Equal(t, 2, w10.TradeCount)
	assertDec(t, "30", w10.TotalPnL)
	assertDec(t, "1", w10.WinRate)
	assertDec(t, "0", w10.PlanFollowedPct)

	sorted := SortedWeeks(weeks)
	assert.Equal(t, "2024-W10", sorted[0].Key)
	assert.Equal(t, "2024-W11", sorted[1].Key)
}

func TestEngineByWeekAcrossNewYear(t *testing.T) {
	trades := []models.Trade{
		trade("1", "10", time.Date(2024, 12, 27, 12, 0, 0, 0, time.UTC)), // Friday, week 52
		trade("2", "20", time.Date(2024, 12, 30, 12, 0, 0, 0, time.UTC)), // Monday, week of Jan 1
		trade("3", "-5", time.Date(2025, 1, 2, 12, 0, 0, 0, time.UTC)),
	}
	weeks := Engine{}.ByWeek(trades)
	require.Len(t, weeks, 2)

	w1 := weeks["2025-W01"]
	assert.Equal(t, 2025, w1.Year)
	assert.Equal(t, 2, w1.TradeCount)
	assertDec(t, "15", w1.TotalPnL)

	sorted := SortedWeeks(weeks)
	assert.Equal(t, "2024-W52", sorted[0].Key)
	assert.Equal(t, "2025-W01", sorted[1].Key)
}

func TestEngineByHour(t *testing.T) {
	base := time.Date(2024, 3, 4, 9, 15, 0, 0, time.UTC)
	trades := []models.Trade{
		trade("1", "100", base),
		trade("2", "-50", base.Add(30*time.Minute)),
		trade("3", "30", base.Add(24*time.Hour)),
		trade("4", "-10", base.Add(5*time.Hour)),
	}
	hours := Engine{}.ByHour(trades)
	require.Len(t, hours, 2)

	h9 := hours[9]
	assert.Equal(t, 3, h9.TradeCount)
	assertDec(t, "80", h9.TotalPnL)
	assertDec(t, "0.6667", h9.WinRate)
	// avgWin 65, avgLoss 50: 65*0.6667 - 50*0.3333 = 43.3355 - 16.665
	assertDec(t, "26.67", h9.Expectancy)

	h14 := hours[14]
	assertDec(t, "-10", h14.Expectancy)

	sorted := SortedHours(hours)
	assert.Equal(t, []int{9, 14}, []int{sorted[0].Hour, sorted[1].Hour})
}

func TestEngineByTradesPerDay(t *testing.T) {
	d1 := time.Date(2024, 3, 4, 10, 0, 0, 0, time.UTC)
	d2 := d1.Add(24 * time.Hour)
	d3 := d1.Add(48 * time.Hour)
	trades := []models.Trade{
		trade("a", "100", d1),
		trade("b", "-20", d1.Add(time.Hour)),
		trade("c", "50", d2),
		trade("d", "-30", d2.Add(time.Hour)),
		trade("e", "15", d3),
	}
	cohorts := Engine{}.ByTradesPerDay(trades)
	require.Len(t, cohorts, 2)

	two := cohorts[2]
	assert.Equal(t, 2, two.TradesPerDay)
	assert.Equal(t, 2, two.DayCount)
	assert.Equal(t, 4, two.TradeCount)
	assertDec(t, "100", two.TotalPnL)
	assertDec(t, "0.5", two.WinRate)
	assertDec(t, "50", two.AvgPnLPerDay)
	// avgWin 75, avgLoss 25
	assertDec(t, "25", two.Expectancy)

	one := cohorts[1]
	assert.Equal(t, 1, one.DayCount)
	assertDec(t, "15", one.AvgPnLPerDay)

	sorted := SortedCohorts(cohorts)
	assert.Equal(t, 1, sorted[0].TradesPerDay)
}

func TestAvgPnLPerDayRoundsHalfUp(t *testing.T) {
	d1 := time.Date(2024, 3, 4, 10, 0, 0, 0, time.UTC)
	trades := []models.Trade{
		trade("a", "0.01", d1),
		trade("b", "0.02", d1.Add(24*time.Hour)),
		trade("c", "0.02", d1.Add(48*time.Hour)),
		trade("d", "0.01", d1.Add(72*time.Hour)),
	}
	// 0.06 / 4 = 0.015 -> 0.02
	assertDec(t, "0.02", Engine{}.ByTradesPerDay(trades)[1].AvgPnLPerDay)
}

func TestAnalyzeTagPerformance(t *testing.T) {
	trades := []models.Trade{
		tagged(trade("1", "100", t0), "breakout", "morning"),
		tagged(trade("2", "-50", t0.Add(time.Minute)), "breakout"),
		tagged(trade("3", "30", t0.Add(2*time.Minute)), "morning", "morning", " "),
		trade("4", "999", t0.Add(3*time.Minute)),
	}
	tags := AnalyzeTagPerformance(trades)
	require.Len(t, tags, 2)

	breakout := tags["breakout"]
	assert.Equal(t, 2, breakout.TradeCount)
	assertDec(t, "50", breakout.TotalPnL)
	assertDec(t, "0.5", breakout.WinRate)
	assertDec(t, "2", breakout.ProfitFactor)
	assertDec(t, "25", breakout.Expectancy)

	morning := tags["morning"]
	assert.Equal(t, 2, morning.TradeCount)
	assertDec(t, "999.00", morning.ProfitFactor)
	assertDec(t, "65", morning.Expectancy)

	sorted := SortedTags(tags)
	assert.Equal(t, "breakout", sorted[0].Tag)
	assert.Equal(t, "morning", sorted[1].Tag)
}
