package analytics

import (
	"fmt"
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"trade-analytics/internal/models"
)

// DailyStats aggregates trades closed on one calendar date.
type DailyStats struct {
	Date            string          `json:"date"` // YYYY-MM-DD
	TradeCount      int             `json:"trade_count"`
	TotalPnL        decimal.Decimal `json:"total_pnl"`
	WinRate         decimal.Decimal `json:"win_rate"`          // 4 dp fraction
	PlanFollowedPct decimal.Decimal `json:"plan_followed_pct"` // 2 dp percentage of rated trades
}

// WeeklyStats aggregates trades closed in one week of the year.
type WeeklyStats struct {
	Key             string          `json:"key"` // YYYY-Www
	Year            int             `json:"year"`
	Week            int             `json:"week"`
	TradeCount      int             `json:"trade_count"`
	TotalPnL        decimal.Decimal `json:"total_pnl"`
	WinRate         decimal.Decimal `json:"win_rate"`
	PlanFollowedPct decimal.Decimal `json:"plan_followed_pct"`
}

// HourlyStats aggregates trades by the hour of day they closed.
type HourlyStats struct {
	Hour       int             `json:"hour"`
	TradeCount int             `json:"trade_count"`
	TotalPnL   decimal.Decimal `json:"total_pnl"`
	WinRate    decimal.Decimal `json:"win_rate"`
	Expectancy decimal.Decimal `json:"expectancy"`
}

// CohortStats aggregates every trade from the days that had the same number of trades.
type CohortStats struct {
	TradesPerDay int             `json:"trades_per_day"`
	DayCount     int             `json:"day_count"`
	TradeCount   int             `json:"trade_count"`
	TotalPnL     decimal.Decimal `json:"total_pnl"`
	WinRate      decimal.Decimal `json:"win_rate"`
	Expectancy   decimal.Decimal `json:"expectancy"`
	AvgPnLPerDay decimal.Decimal `json:"avg_pnl_per_day"`
}

// Engine groups trades into calendar and cohort buckets. Buckets use the
// trade's exit time in Location (UTC when nil).
type Engine struct {
	Location *time.Location
}

// NewEngine creates an engine bucketing in loc.
func NewEngine(loc *time.Location) Engine {
	return Engine{Location: loc}
}

func (e Engine) loc() *time.Location {
	if e.Location == nil {
		return time.UTC
	}
	return e.Location
}

// dayKey formats the exit date in the engine's location.
func (e Engine) dayKey(t models.Trade) string {
	return t.ExitTime.In(e.loc()).Format("2006-01-02")
}

// ByDay buckets trades by exit calendar date.
func (e Engine) ByDay(trades []models.Trade) map[string]DailyStats {
	out := make(map[string]DailyStats)
	for key, group := range e.groupByDay(trades) {
		s := summarize(group)
		out[key] = DailyStats{
			Date:            key,
			TradeCount:      s.Count,
			TotalPnL:        s.TotalPnL,
			WinRate:         s.WinRate,
			PlanFollowedPct: planFollowedPct(group),
		}
	}
	return out
}

// ByWeek buckets trades by US week-of-year of the exit date: weeks start on
// Sunday and week 1 is the week containing January 1.
func (e Engine) ByWeek(trades []models.Trade) map[string]WeeklyStats {
	type bucket struct {
		year, week int
		trades     []models.Trade
	}
	buckets := make(map[string]*bucket)
	for _, t := range trades {
		year, week := USWeek(t.ExitTime.In(e.loc()))
		key := WeekKey(year, week)
		b, ok := buckets[key]
		if !ok {
			b = &bucket{year: year, week: week}
			buckets[key] = b
		}
		b.trades = append(b.trades, t)
	}

	out := make(map[string]WeeklyStats, len(buckets))
	for key, b := range buckets {
		s := summarize(b.trades)
		out[key] = WeeklyStats{
			Key:             key,
			Year:            b.year,
			Week:            b.week,
			TradeCount:      s.Count,
			TotalPnL:        s.TotalPnL,
			WinRate:         s.WinRate,
			PlanFollowedPct: planFollowedPct(b.trades),
		}
	}
	return out
}

// ByHour buckets trades by exit hour of day (0-23).
func (e Engine) ByHour(trades []models.Trade) map[int]HourlyStats {
	groups := make(map[int][]models.Trade)
	for _, t := range trades {
		h := t.ExitTime.In(e.loc()).Hour()
		groups[h] = append(groups[h], t)
	}

	out := make(map[int]HourlyStats, len(groups))
	for h, group := range groups {
		s := summarize(group)
		out[h] = HourlyStats{
			Hour:       h,
			TradeCount: s.Count,
			TotalPnL:   s.TotalPnL,
			WinRate:    s.WinRate,
			Expectancy: s.Expectancy,
		}
	}
	return out
}

// ByTradesPerDay buckets days by how many trades closed that day and
// aggregates all trades of the days sharing a count.
func (e Engine) ByTradesPerDay(trades []models.Trade) map[int]CohortStats {
	type cohort struct {
		days   int
		trades []models.Trade
	}
	cohorts := make(map[int]*cohort)
	for _, group := range e.groupByDay(trades) {
		n := len(group)
		c, ok := cohorts[n]
		if !ok {
			c = &cohort{}
			cohorts[n] = c
		}
		c.days++
		c.trades = append(c.trades, group...)
	}

	out := make(map[int]CohortStats, len(cohorts))
	for n, c := range cohorts {
		s := summarize(c.trades)
		out[n] = CohortStats{
			TradesPerDay: n,
			DayCount:     c.days,
			TradeCount:   s.Count,
			TotalPnL:     s.TotalPnL,
			WinRate:      s.WinRate,
			Expectancy:   s.Expectancy,
			AvgPnLPerDay: divRound(s.TotalPnL, decimal.NewFromInt(int64(c.days)), MoneyScale),
		}
	}
	return out
}

func (e Engine) groupByDay(trades []models.Trade) map[string][]models.Trade {
	groups := make(map[string][]models.Trade)
	for _, t := range trades {
		key := e.dayKey(t)
		groups[key] = append(groups[key], t)
	}
	return groups
}

// planFollowedPct is the percentage of rated trades rated PERFECT_EXECUTION or
// MINOR_DEVIATION. NOT_RATED trades are excluded from the denominator.
func planFollowedPct(trades []models.Trade) decimal.Decimal {
	var rated, followed int
	for _, t := range trades {
		if !t.PlanAdherence.IsRated() {
			continue
		}
		rated++
		if t.PlanAdherence.Followed() {
			followed++
		}
	}
	if rated == 0 {
		return decimal.Zero
	}
	return decimal.NewFromInt(int64(followed)).Mul(hundred).
		DivRound(decimal.NewFromInt(int64(rated)), MoneyScale)
}

// USWeek returns the week-based year and US week-of-year of t. A week that
// contains January 1 is week 1 of the new year, even for the days before it.
func USWeek(t time.Time) (year, week int) {
	saturday := time.Date(t.Year(), t.Month(), t.Day()+6-int(t.Weekday()), 0, 0, 0, 0, t.Location())
	if saturday.Year() > t.Year() {
		return saturday.Year(), 1
	}
	jan1 := time.Date(t.Year(), time.January, 1, 0, 0, 0, 0, t.Location())
	offset := int(jan1.Weekday()) // Sunday == 0
	return t.Year(), (t.YearDay()-1+offset)/7 + 1
}

// WeekKey formats a week bucket key.
func WeekKey(year, week int) string {
	return fmt.Sprintf("%04d-W%02d", year, week)
}

// SortedDays returns daily buckets in date order.
func SortedDays(m map[string]DailyStats) []DailyStats {
	out := make([]DailyStats, 0, len(m))
	for _, v := range m {
		out = append(out, v)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Date < out[j].Date })
	return out
}

// SortedWeeks returns weekly buckets in chronological order.
func SortedWeeks(m map[string]WeeklyStats) []WeeklyStats {
	out := make([]WeeklyStats, 0, len(m))
	for _, v := range m {
		out = append(out, v)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Year != out[j].Year {
			return out[i].Year < out[j].Year
		}
		return out[i].Week < out[j].Week
	})
	return out
}

// SortedHours returns hourly buckets from 0 to 23.
func SortedHours(m map[int]HourlyStats) []HourlyStats {
	out := make([]HourlyStats, 0, len(m))
	for _, v := range m {
		out = append(out, v)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Hour < out[j].Hour })
	return out
}

// SortedCohorts returns cohorts by ascending trades per day.
func SortedCohorts(m map[int]CohortStats) []CohortStats {
	out := make([]CohortStats, 0, len(m))
	for _, v := range m {
		out = append(out, v)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].TradesPerDay < out[j].TradesPerDay })
	return out
}
