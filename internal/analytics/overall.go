package analytics

import (
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"trade-analytics/internal/models"
)

// EquityPoint is the account balance after a trade closed.
type EquityPoint struct {
	Timestamp time.Time       `json:"timestamp"`
	Balance   decimal.Decimal `json:"balance"`
}

// OverallStats summarises the whole trade history.
type OverallStats struct {
	TotalTrades     int `json:"total_trades"`
	WinningTrades   int `json:"winning_trades"`
	LosingTrades    int `json:"losing_trades"`
	BreakevenTrades int `json:"breakeven_trades"`

	StartingBalance decimal.Decimal `json:"starting_balance"`
	EndBalance      decimal.Decimal `json:"end_balance"`
	TotalPnL        decimal.Decimal `json:"total_pnl"`
	TotalFees       decimal.Decimal `json:"total_fees"`
	GrossProfit     decimal.Decimal `json:"gross_profit"`
	GrossLoss       decimal.Decimal `json:"gross_loss"`

	WinRate       decimal.Decimal `json:"win_rate"`
	AvgWinPnL     decimal.Decimal `json:"avg_win_pnl"`
	AvgLossPnL    decimal.Decimal `json:"avg_loss_pnl"`
	AvgRiskReward decimal.Decimal `json:"avg_risk_reward"`
	ProfitFactor  decimal.Decimal `json:"profit_factor"`
	Expectancy    decimal.Decimal `json:"expectancy"`
	LargestWin    decimal.Decimal `json:"largest_win"`
	LargestLoss   decimal.Decimal `json:"largest_loss"`

	// AvgTradeDurationSeconds is the floor of the mean whole-second holding time.
	AvgTradeDurationSeconds int64 `json:"avg_trade_duration_seconds"`
	LongestWinStreak        int   `json:"longest_win_streak"`
	LongestLossStreak       int   `json:"longest_loss_streak"`

	EquityCurve []EquityPoint   `json:"equity_curve"`
	MaxDrawdown decimal.Decimal `json:"max_drawdown"` // negative magnitude
	MaxRunup    decimal.Decimal `json:"max_runup"`
}

// AvgTradeDuration returns the mean holding time as a duration.
func (s OverallStats) AvgTradeDuration() time.Duration {
	return time.Duration(s.AvgTradeDurationSeconds) * time.Second
}

// AnalyzeOverallPerformance computes whole-history statistics. Trades are
// stably sorted by exit time, so trades sharing an exit timestamp keep their
// input order on the equity curve. An empty history yields zero values with
// the end balance equal to the starting balance.
func AnalyzeOverallPerformance(trades []models.Trade, startingBalance decimal.Decimal) OverallStats {
	stats := OverallStats{
		StartingBalance: startingBalance,
		EndBalance:      startingBalance,
		TotalPnL:        decimal.Zero,
		TotalFees:       decimal.Zero,
		GrossProfit:     decimal.Zero,
		GrossLoss:       decimal.Zero,
		WinRate:         decimal.Zero,
		AvgWinPnL:       decimal.Zero,
		AvgLossPnL:      decimal.Zero,
		AvgRiskReward:   decimal.Zero,
		ProfitFactor:    decimal.Zero,
		Expectancy:      decimal.Zero,
		LargestWin:      decimal.Zero,
		LargestLoss:     decimal.Zero,
		EquityCurve:     []EquityPoint{},
		MaxDrawdown:     decimal.Zero,
		MaxRunup:        decimal.Zero,
	}
	if len(trades) == 0 {
		return stats
	}

	sorted := make([]models.Trade, len(trades))
	copy(sorted, trades)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].ExitTime.Before(sorted[j].ExitTime)
	})

	s := summarize(sorted)
	stats.TotalTrades = s.Count
	stats.WinningTrades = s.Winners
	stats.LosingTrades = s.Losers
	stats.BreakevenTrades = s.Breakeven
	stats.TotalPnL = s.TotalPnL
	stats.EndBalance = startingBalance.Add(s.TotalPnL)
	stats.GrossProfit = s.GrossProfit
	stats.GrossLoss = s.GrossLoss
	stats.WinRate = s.WinRate
	stats.AvgWinPnL = s.AvgWinPnL
	stats.AvgLossPnL = s.AvgLossPnL
	stats.AvgRiskReward = s.AvgRiskReward
	stats.ProfitFactor = s.ProfitFactor
	stats.Expectancy = s.Expectancy

	var totalSeconds int64
	var winStreak, lossStreak int
	for _, t := range sorted {
		stats.TotalFees = stats.TotalFees.Add(t.Fee)
		totalSeconds += int64(t.Duration() / time.Second)

		switch {
		case t.IsWin():
			winStreak++
			lossStreak = 0
			if t.PnL.GreaterThan(stats.LargestWin) {
				stats.LargestWin = t.PnL
			}
		case t.IsLoss():
			lossStreak++
			winStreak = 0
			if t.PnL.LessThan(stats.LargestLoss) {
				stats.LargestLoss = t.PnL
			}
		default:
			winStreak, lossStreak = 0, 0
		}
		if winStreak > stats.LongestWinStreak {
			stats.LongestWinStreak = winStreak
		}
		if lossStreak > stats.LongestLossStreak {
			stats.LongestLossStreak = lossStreak
		}
	}
	stats.AvgTradeDurationSeconds = floorDiv(totalSeconds, int64(len(sorted)))

	stats.EquityCurve = buildEquityCurve(sorted, startingBalance)
	drawdown, runup := drawdownAndRunup(stats.EquityCurve)
	stats.MaxDrawdown = drawdown.Neg()
	stats.MaxRunup = runup
	return stats
}

// buildEquityCurve seeds the curve one second before the first entry and
// appends exactly one point per trade at its exit time.
func buildEquityCurve(sorted []models.Trade, start decimal.Decimal) []EquityPoint {
	curve := make([]EquityPoint, 0, len(sorted)+1)
	curve = append(curve, EquityPoint{
		Timestamp: sorted[0].EntryTime.Add(-time.Second),
		Balance:   start,
	})
	cumulative := decimal.Zero
	for _, t := range sorted {
		cumulative = cumulative.Add(t.PnL)
		curve = append(curve, EquityPoint{
			Timestamp: t.ExitTime,
			Balance:   start.Add(cumulative),
		})
	}
	return curve
}

// drawdownAndRunup walks the curve keeping a running peak and trough. A new
// peak resets the trough to the peak, after the run-up into it was measured.
// Both results are non-negative magnitudes.
func drawdownAndRunup(curve []EquityPoint) (maxDrawdown, maxRunup decimal.Decimal) {
	maxDrawdown, maxRunup = decimal.Zero, decimal.Zero
	if len(curve) == 0 {
		return
	}
	peak := curve[0].Balance
	trough := curve[0].Balance
	for _, p := range curve {
		equity := p.Balance
		if equity.LessThan(trough) {
			trough = equity
		}
		if runup := equity.Sub(trough); runup.GreaterThan(maxRunup) {
			maxRunup = runup
		}
		if equity.GreaterThan(peak) {
			peak = equity
			trough = equity
		}
		if drawdown := peak.Sub(equity); drawdown.GreaterThan(maxDrawdown) {
			maxDrawdown = drawdown
		}
	}
	return
}

func floorDiv(a, b int64) int64 {
	if b == 0 {
		return 0
	}
	q := a / b
	if (a%b != 0) && ((a < 0) != (b < 0)) {
		q--
	}
	return q
}
