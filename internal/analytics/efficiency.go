package analytics

import (
	"github.com/shopspring/decimal"

	"trade-analytics/internal/models"
)

// TradeEfficiency is the excursion analysis of one trade.
type TradeEfficiency struct {
	TradeID        string          `json:"trade_id"`
	Symbol         string          `json:"symbol"`
	PnL            decimal.Decimal `json:"pnl"`
	Excursion      Excursion       `json:"excursion"`
	ExitEfficiency decimal.Decimal `json:"exit_efficiency"` // pnl/mfe, 4 dp, winners only
	PainRatio      decimal.Decimal `json:"pain_ratio"`      // mae/|pnl|, 4 dp, losers only
	Tags           []string        `json:"tags,omitempty"`
}

// EfficiencyStats aggregates excursion efficiency over the trades that had bars.
type EfficiencyStats struct {
	AnalyzedTrades    int               `json:"analyzed_trades"`
	SkippedTrades     int               `json:"skipped_trades"`
	WinnersMeasured   int               `json:"winners_measured"`
	LosersMeasured    int               `json:"losers_measured"`
	AvgExitEfficiency decimal.Decimal   `json:"avg_exit_efficiency"` // 4 dp
	AvgPainRatio      decimal.Decimal   `json:"avg_pain_ratio"`      // 4 dp
	TotalMFE          decimal.Decimal   `json:"total_mfe"`
	TotalMAE          decimal.Decimal   `json:"total_mae"`
	LeftOnTable       decimal.Decimal   `json:"left_on_table"` // sum of mfe-pnl over winners
	Trades            []TradeEfficiency `json:"trades"`
}

// EfficiencyAnalyzer measures how much of each trade's favourable excursion
// was captured and how much adverse excursion losers endured. It shares the
// excursion scan and tag rules with Tagger.
type EfficiencyAnalyzer struct {
	Tagger Tagger
}

// Analyze computes efficiency statistics. barsBySymbol holds one sorted
// series per symbol covering all trades; trades without bars are skipped.
func (a EfficiencyAnalyzer) Analyze(trades []models.Trade, barsBySymbol map[string]models.BarSeries) EfficiencyStats {
	stats := EfficiencyStats{
		AvgExitEfficiency: decimal.Zero,
		AvgPainRatio:      decimal.Zero,
		TotalMFE:          decimal.Zero,
		TotalMAE:          decimal.Zero,
		LeftOnTable:       decimal.Zero,
		Trades:            []TradeEfficiency{},
	}

	effSum, painSum := decimal.Zero, decimal.Zero
	for _, t := range trades {
		bars := barsBySymbol[t.Symbol].ForTrade(t)
		if len(bars) == 0 {
			stats.SkippedTrades++
			continue
		}
		exc := CalculateExcursion(t, bars)
		te := TradeEfficiency{
			TradeID:        t.ID,
			Symbol:         t.Symbol,
			PnL:            t.PnL,
			Excursion:      exc,
			ExitEfficiency: decimal.Zero,
			PainRatio:      decimal.Zero,
			Tags:           a.Tagger.Tags(t, bars),
		}

		stats.AnalyzedTrades++
		stats.TotalMFE = stats.TotalMFE.Add(exc.MFE)
		stats.TotalMAE = stats.TotalMAE.Add(exc.MAE)

		switch {
		case t.PnL.IsPositive() && exc.MFE.IsPositive():
			te.ExitEfficiency = t.PnL.DivRound(exc.MFE, RatioScale)
			effSum = effSum.Add(te.ExitEfficiency)
			stats.WinnersMeasured++
			stats.LeftOnTable = stats.LeftOnTable.Add(clampZero(exc.MFE.Sub(t.PnL)))
		case t.PnL.IsNegative():
			te.PainRatio = exc.MAE.DivRound(t.PnL.Abs(), RatioScale)
			painSum = painSum.Add(te.PainRatio)
			stats.LosersMeasured++
		}
		stats.Trades = append(stats.Trades, te)
	}

	stats.AvgExitEfficiency = divRound(effSum, decimal.NewFromInt(int64(stats.WinnersMeasured)), RatioScale)
	stats.AvgPainRatio = divRound(painSum, decimal.NewFromInt(int64(stats.LosersMeasured)), RatioScale)
	return stats
}
