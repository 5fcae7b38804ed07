package cli

import (
	"fmt"

	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"

	"trade-analytics/internal/analytics"
	"trade-analytics/internal/models"
)

func newStatsCmd(app *App) *cobra.Command {
	var f filterFlags

	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Performance statistics",
		Long: `Performance statistics over the stored trades.

Calendar buckets use the trade's exit time in the configured timezone.`,
	}
	f.register(cmd.PersistentFlags())

	engine := func() analytics.Engine { return analytics.NewEngine(app.Location) }

	cmd.AddCommand(&cobra.Command{
		Use:   "overall",
		Short: "Whole-history statistics, equity and drawdown",
		RunE: func(cmd *cobra.Command, args []string) error {
			trades, err := app.loadTrades(cmd, &f)
			if err != nil {
				return err
			}
			balance, err := app.Config.CurrentBalance()
			if err != nil {
				return err
			}
			stats := analytics.AnalyzeOverallPerformance(trades, startingBalance(trades, balance))

			output := NewOutput(cmd)
			if output.IsJSON() {
				return output.JSON(stats)
			}
			renderOverall(output, stats)
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "daily",
		Short: "Statistics per calendar day",
		RunE: func(cmd *cobra.Command, args []string) error {
			trades, err := app.loadTrades(cmd, &f)
			if err != nil {
				return err
			}
			days := analytics.SortedDays(engine().ByDay(trades))

			output := NewOutput(cmd)
			if output.IsJSON() {
				return output.JSON(days)
			}
			table := NewTable(output, "DATE", "TRADES", "P&L", "WIN RATE", "PLAN FOLLOWED")
			for _, d := range days {
				table.AddRow(d.Date, fmt.Sprint(d.TradeCount), output.FormatPnL(d.TotalPnL),
					output.FormatRate(d.WinRate), d.PlanFollowedPct.StringFixed(2)+"%")
			}
			table.Render()
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "weekly",
		Short: "Statistics per week of the year",
		RunE: func(cmd *cobra.Command, args []string) error {
			trades, err := app.loadTrades(cmd, &f)
			if err != nil {
				return err
			}
			weeks := analytics.SortedWeeks(engine().ByWeek(trades))

			output := NewOutput(cmd)
			if output.IsJSON() {
				return output.JSON(weeks)
			}
			table := NewTable(output, "WEEK", "TRADES", "P&L", "WIN RATE", "PLAN FOLLOWED")
			for _, w := range weeks {
				table.AddRow(w.Key, fmt.Sprint(w.TradeCount), output.FormatPnL(w.TotalPnL),
					output.FormatRate(w.WinRate), w.PlanFollowedPct.StringFixed(2)+"%")
			}
			table.Render()
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "hourly",
		Short: "Statistics per hour of day",
		RunE: func(cmd *cobra.Command, args []string) error {
			trades, err := app.loadTrades(cmd, &f)
			if err != nil {
				return err
			}
			hours := analytics.SortedHours(engine().ByHour(trades))

			output := NewOutput(cmd)
			if output.IsJSON() {
				return output.JSON(hours)
			}
			table := NewTable(output, "HOUR", "TRADES", "P&L", "WIN RATE", "EXPECTANCY")
			for _, h := range hours {
				table.AddRow(fmt.Sprintf("%02d:00", h.Hour), fmt.Sprint(h.TradeCount), output.FormatPnL(h.TotalPnL),
					output.FormatRate(h.WinRate), output.FormatPnL(h.Expectancy))
			}
			table.Render()
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "cohorts",
		Short: "Statistics by number of trades taken per day",
		RunE: func(cmd *cobra.Command, args []string) error {
			trades, err := app.loadTrades(cmd, &f)
			if err != nil {
				return err
			}
			cohorts := analytics.SortedCohorts(engine().ByTradesPerDay(trades))

			output := NewOutput(cmd)
			if output.IsJSON() {
				return output.JSON(cohorts)
			}
			table := NewTable(output, "TRADES/DAY", "DAYS", "TRADES", "P&L", "P&L/DAY", "WIN RATE", "EXPECTANCY")
			for _, c := range cohorts {
				table.AddRow(fmt.Sprint(c.TradesPerDay), fmt.Sprint(c.DayCount), fmt.Sprint(c.TradeCount),
					output.FormatPnL(c.TotalPnL), output.FormatPnL(c.AvgPnLPerDay),
					output.FormatRate(c.WinRate), output.FormatPnL(c.Expectancy))
			}
			table.Render()
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "tags",
		Short: "Statistics per tag",
		RunE: func(cmd *cobra.Command, args []string) error {
			trades, err := app.loadTrades(cmd, &f)
			if err != nil {
				return err
			}
			tags := analytics.SortedTags(analytics.AnalyzeTagPerformance(trades))

			output := NewOutput(cmd)
			if output.IsJSON() {
				return output.JSON(tags)
			}
			renderTags(output, tags)
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "efficiency",
		Short: "Exit efficiency and pain ratio from intrabar prices",
		RunE: func(cmd *cobra.Command, args []string) error {
			trades, err := app.loadTrades(cmd, &f)
			if err != nil {
				return err
			}
			fetcher, err := app.Fetcher()
			if err != nil {
				return err
			}
			preferred, err := app.Config.PreferredSessions()
			if err != nil {
				return err
			}
			analyzer := analytics.EfficiencyAnalyzer{Tagger: analytics.Tagger{Preferred: preferred}}
			stats := analyzer.Analyze(trades, fetcher.FetchForTrades(cmd.Context(), trades))

			output := NewOutput(cmd)
			if output.IsJSON() {
				return output.JSON(stats)
			}
			renderEfficiency(output, stats)
			return nil
		},
	})

	return cmd
}

// startingBalance backs the trades' total pnl out of the current balance.
func startingBalance(trades []models.Trade, current decimal.Decimal) decimal.Decimal {
	total := decimal.Zero
	for _, t := range trades {
		total = total.Add(t.PnL)
	}
	return current.Sub(total)
}

func renderOverall(output *Output, s analytics.OverallStats) {
	if s.TotalTrades == 0 {
		output.Warning("No trades found")
		return
	}

	output.Bold("Performance")
	output.Printf("  Trades:          %d (%s wins, %s losses, %d breakeven)\n",
		s.TotalTrades, output.Green(fmt.Sprint(s.WinningTrades)), output.Red(fmt.Sprint(s.LosingTrades)), s.BreakevenTrades)
	output.Printf("  Win Rate:        %s\n", output.FormatRate(s.WinRate))
	output.Printf("  Total P&L:       %s\n", output.FormatPnL(s.TotalPnL))
	output.Printf("  Fees:            %s\n", FormatIndianCurrency(s.TotalFees))
	output.Printf("  Profit Factor:   %s\n", FormatRatio(s.ProfitFactor))
	output.Printf("  Expectancy:      %s\n", output.FormatPnL(s.Expectancy))
	output.Printf("  Avg Win / Loss:  %s / %s (R:R %s)\n",
		FormatIndianCurrency(s.AvgWinPnL), FormatIndianCurrency(s.AvgLossPnL), FormatRatio(s.AvgRiskReward))
	output.Printf("  Largest Win:     %s\n", output.FormatPnL(s.LargestWin))
	output.Printf("  Largest Loss:    %s\n", output.FormatPnL(s.LargestLoss))
	output.Printf("  Avg Hold:        %s\n", FormatDuration(s.AvgTradeDuration()))
	output.Printf("  Streaks:         %d wins, %d losses\n", s.LongestWinStreak, s.LongestLossStreak)
	output.Println()

	output.Bold("Equity")
	output.Printf("  Balance:         %s → %s\n", FormatIndianCurrency(s.StartingBalance), FormatIndianCurrency(s.EndBalance))
	output.Printf("  Max Drawdown:    %s\n", output.FormatPnL(s.MaxDrawdown))
	output.Printf("  Max Run-up:      %s\n", output.FormatPnL(s.MaxRunup))
}

func renderTags(output *Output, tags []analytics.TagStats) {
	if len(tags) == 0 {
		output.Warning("No tagged trades")
		return
	}
	table := NewTable(output, "TAG", "TRADES", "P&L", "WIN RATE", "PROFIT FACTOR", "EXPECTANCY")
	for _, t := range tags {
		table.AddRow(t.Tag, fmt.Sprint(t.TradeCount), output.FormatPnL(t.TotalPnL),
			output.FormatRate(t.WinRate), FormatRatio(t.ProfitFactor), output.FormatPnL(t.Expectancy))
	}
	table.Render()
}

func renderEfficiency(output *Output, s analytics.EfficiencyStats) {
	if s.AnalyzedTrades == 0 {
		output.Warning("No intrabar prices available for these trades (%d skipped)", s.SkippedTrades)
		return
	}
	output.Bold("Excursion Efficiency")
	output.Printf("  Analyzed:        %d trades (%d without bars)\n", s.AnalyzedTrades, s.SkippedTrades)
	output.Printf("  Exit Efficiency: %s over %d winners\n", FormatRate(s.AvgExitEfficiency), s.WinnersMeasured)
	output.Printf("  Pain Ratio:      %s over %d losers\n", s.AvgPainRatio.StringFixed(2), s.LosersMeasured)
	output.Printf("  Left on Table:   %s\n", FormatIndianCurrency(s.LeftOnTable))
	output.Printf("  Total MFE / MAE: %s / %s\n", FormatIndianCurrency(s.TotalMFE), FormatIndianCurrency(s.TotalMAE))
}
