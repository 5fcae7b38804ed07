package analytics

import (
	"github.com/shopspring/decimal"

	"trade-analytics/internal/models"
)

// tradeSummary holds the profit statistics shared by the overall report and
// the hour, cohort and tag buckets.
type tradeSummary struct {
	Count     int
	Winners   int
	Losers    int
	Breakeven int

	TotalPnL    decimal.Decimal
	GrossProfit decimal.Decimal // sum of winning pnl
	GrossLoss   decimal.Decimal // absolute sum of losing pnl

	WinRate       decimal.Decimal // 4 dp
	AvgWinPnL     decimal.Decimal // 2 dp
	AvgLossPnL    decimal.Decimal // 2 dp, positive magnitude
	AvgRiskReward decimal.Decimal // 2 dp
	ProfitFactor  decimal.Decimal // 2 dp, sentinel when no losses
	Expectancy    decimal.Decimal // 2 dp
}

func summarize(trades []models.Trade) tradeSummary {
	s := tradeSummary{
		TotalPnL:    decimal.Zero,
		GrossProfit: decimal.Zero,
		GrossLoss:   decimal.Zero,
	}
	lossSum := decimal.Zero
	for _, t := range trades {
		s.Count++
		s.TotalPnL = s.TotalPnL.Add(t.PnL)
		switch {
		case t.IsWin():
			s.Winners++
			s.GrossProfit = s.GrossProfit.Add(t.PnL)
		case t.IsLoss():
			s.Losers++
			lossSum = lossSum.Add(t.PnL)
		default:
			s.Breakeven++
		}
	}
	s.GrossLoss = lossSum.Abs()

	s.WinRate = ratio(s.Winners, s.Count, RatioScale)
	s.AvgWinPnL = divRound(s.GrossProfit, decimal.NewFromInt(int64(s.Winners)), MoneyScale)
	s.AvgLossPnL = divRound(s.GrossLoss, decimal.NewFromInt(int64(s.Losers)), MoneyScale)
	s.AvgRiskReward = divRound(s.AvgWinPnL, s.AvgLossPnL, MoneyScale)
	s.ProfitFactor = profitFactor(s.GrossProfit, s.GrossLoss)
	s.Expectancy = expectancy(s.AvgWinPnL, s.AvgLossPnL, s.WinRate)
	return s
}

// profitFactor is grossProfit/grossLoss, the sentinel when only profit exists,
// and zero when there is neither.
func profitFactor(grossProfit, grossLoss decimal.Decimal) decimal.Decimal {
	if !grossLoss.IsZero() {
		return grossProfit.DivRound(grossLoss, MoneyScale)
	}
	if grossProfit.IsPositive() {
		return ProfitFactorSentinel
	}
	return decimal.Zero
}

// expectancy = avgWin*winRate - avgLoss*(1-winRate).
func expectancy(avgWin, avgLoss, winRate decimal.Decimal) decimal.Decimal {
	return Round2(avgWin.Mul(winRate).Sub(avgLoss.Mul(one.Sub(winRate))))
}
