package cli

import (
	"fmt"
	"io"
	"strings"

	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"

	"trade-analytics/internal/analytics"
	"trade-analytics/internal/models"
	"trade-analytics/internal/report"
)

// Report formats.
const (
	FormatText    = "text"
	FormatJSON    = "json"
	FormatMsgpack = "msgpack"
)

func newReportCmd(app *App) *cobra.Command {
	var (
		f          filterFlags
		format     string
		out        string
		balance    string
		noInsights bool
		noBars     bool
	)

	cmd := &cobra.Command{
		Use:   "report",
		Short: "Build the full performance report",
		Long: `Build the full performance report: overall statistics, calendar, hour,
cohort and tag breakdowns, the pnl distribution, recurring mistakes, excursion
efficiency when intrabar prices are available, and coaching insights when a
coach is configured.

A failing coach never blocks the report; its insights are replaced by a
placeholder.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if NewOutput(cmd).IsJSON() && format == FormatText {
				format = FormatJSON
			}
			switch format {
			case FormatText, FormatJSON, FormatMsgpack:
			default:
				return fmt.Errorf("unknown format %q, use text, json or msgpack", format)
			}
			if format == FormatMsgpack && out == "" {
				return fmt.Errorf("--out is required for msgpack")
			}

			trades, err := app.loadTrades(cmd, &f)
			if err != nil {
				return err
			}

			current, err := app.Config.CurrentBalance()
			if err != nil {
				return err
			}
			if balance != "" {
				if current, err = decimal.NewFromString(balance); err != nil {
					return fmt.Errorf("invalid --balance %q: %w", balance, err)
				}
			}

			preferred, err := app.Config.PreferredSessions()
			if err != nil {
				return err
			}

			var insights report.InsightGenerator
			if !noInsights {
				insights = app.InsightGenerator()
			}

			in := report.Input{
				TradesBySymbol: models.GroupBySymbol(trades),
				CurrentBalance: current,
			}
			if !noBars && len(trades) > 0 {
				fetcher, err := app.Fetcher()
				if err != nil {
					return err
				}
				in.Bars = fetcher.FetchForTrades(cmd.Context(), trades)
			}

			agg := report.NewAggregator(report.Config{
				Location:       app.Location,
				HistogramBins:  app.Config.Analytics.HistogramBins,
				MistakeTags:    app.Config.Analytics.MistakeTags,
				Preferred:      preferred,
				InsightTimeout: app.Config.Coach.Timeout,
			}, insights, app.Logger)
			data := agg.Build(cmd.Context(), in)

			write := func(w io.Writer) error {
				switch format {
				case FormatMsgpack:
					return report.EncodeMsgpack(w, data)
				case FormatJSON:
					return (&Output{writer: w}).JSON(data)
				default:
					renderReport(&Output{writer: w, colorEnabled: out == "" && NewOutput(cmd).colorEnabled}, data)
					return nil
				}
			}
			if out == "" {
				return write(cmd.OutOrStdout())
			}
			if err := writeFile(out, write); err != nil {
				return err
			}
			NewOutput(cmd).Success("✓ Report %s written to %s", data.ID, out)
			return nil
		},
	}
	f.register(cmd.Flags())
	cmd.Flags().StringVar(&format, "format", FormatText, "output format: text, json or msgpack")
	cmd.Flags().StringVarP(&out, "out", "o", "", "write to file instead of stdout")
	cmd.Flags().StringVar(&balance, "balance", "", "current account balance (overrides config)")
	cmd.Flags().BoolVar(&noInsights, "no-insights", false, "skip coaching insights")
	cmd.Flags().BoolVar(&noBars, "no-bars", false, "skip intrabar price retrieval")
	return cmd
}

func renderReport(output *Output, data *report.ReportData) {
	output.Bold("Report %s", data.ID)
	output.Dim("Generated %s · %d trades · %s · timezone %s",
		data.GeneratedAt.Format("2006-01-02 15:04 MST"), data.TradeCount, strings.Join(data.Symbols, ", "), data.Timezone)
	output.Println()

	renderOverall(output, data.Overall)
	if data.TradeCount == 0 {
		return
	}
	output.Println()

	if len(data.Weekly) > 0 {
		output.Bold("Weekly")
		table := NewTable(output, "WEEK", "TRADES", "P&L", "WIN RATE")
		for _, w := range data.Weekly {
			table.AddRow(w.Key, fmt.Sprint(w.TradeCount), output.FormatPnL(w.TotalPnL), output.FormatRate(w.WinRate))
		}
		table.Render()
		output.Println()
	}

	if len(data.Cohorts) > 0 {
		output.Bold("Trades per Day")
		table := NewTable(output, "TRADES/DAY", "DAYS", "P&L/DAY", "EXPECTANCY")
		for _, c := range data.Cohorts {
			table.AddRow(fmt.Sprint(c.TradesPerDay), fmt.Sprint(c.DayCount), output.FormatPnL(c.AvgPnLPerDay), output.FormatPnL(c.Expectancy))
		}
		table.Render()
		output.Println()
	}

	if len(data.Tags) > 0 {
		output.Bold("Tags")
		renderTags(output, data.Tags)
		output.Println()
	}

	renderHistogram(output, data.Histogram)

	if len(data.Mistakes) > 0 {
		output.Bold("Recurring Mistakes")
		table := NewTable(output, "MISTAKE", "SOURCE", "COUNT", "P&L IMPACT")
		for _, m := range data.Mistakes {
			table.AddRow(m.Name, m.Source, fmt.Sprint(m.Count), output.FormatPnL(m.PnLImpact))
		}
		table.Render()
		output.Println()
	}

	if data.Efficiency != nil {
		renderEfficiency(output, *data.Efficiency)
		output.Println()
	}

	if len(data.Insights) > 0 {
		output.Bold("Coaching")
		for _, in := range data.Insights {
			title := in.Title
			switch in.Category {
			case report.CategoryStrength:
				title = output.Green(title)
			case report.CategoryWeakness:
				title = output.Red(title)
			case report.CategorySystem:
				title = output.Yellow(title)
			}
			output.Printf("  • %s\n", title)
			if in.Detail != "" {
				output.Printf("    %s\n", in.Detail)
			}
		}
	}
}

const histogramWidth = 30

func renderHistogram(output *Output, h report.Histogram) {
	if h.Count == 0 {
		return
	}
	output.Bold("P&L Distribution")
	peak := 0
	for _, b := range h.Bins {
		if b.Count > peak {
			peak = b.Count
		}
	}
	for _, b := range h.Bins {
		bar := 0
		if peak > 0 {
			bar = b.Count * histogramWidth / peak
		}
		label := fmt.Sprintf("%12s … %-12s", b.Lower.StringFixed(2), b.Upper.StringFixed(2))
		output.Printf("  %s %s %d\n", label, strings.Repeat("█", bar), b.Count)
	}
	output.Dim("  mean %.2f · std dev %.2f · skew %.2f", h.Mean, h.StdDev, h.Skewness)
	output.Println()
}

func newAutoTagCmd(app *App) *cobra.Command {
	var (
		f      filterFlags
		dryRun bool
	)

	cmd := &cobra.Command{
		Use:   "autotag",
		Short: "Derive objective tags for stored trades",
		Long: `Derive objective tags for stored trades: market sessions, holding-time
class, preferred hours, and exit efficiency from intrabar prices.

Previously applied automated tags are replaced; tags you added yourself are
kept. Bars are fetched once per symbol for the whole selection.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			trades, err := app.loadTrades(cmd, &f)
			if err != nil {
				return err
			}
			preferred, err := app.Config.PreferredSessions()
			if err != nil {
				return err
			}
			fetcher, err := app.Fetcher()
			if err != nil {
				return err
			}
			ds, err := app.Store()
			if err != nil {
				return err
			}

			tagger := analytics.Tagger{Preferred: preferred}
			var changes []report.TagChange
			if dryRun {
				_, changes = report.ApplyAutoTags(tagger, trades, fetcher.FetchForTrades(cmd.Context(), trades))
			} else if changes, err = report.AutoTag(cmd.Context(), tagger, trades, fetcher, ds); err != nil {
				return err
			}

			changed := 0
			for _, c := range changes {
				if c.Changed {
					changed++
				}
			}
			app.Logger.Info().Int("trades", len(changes)).Int("changed", changed).Bool("dry_run", dryRun).Msg("Auto-tagging complete")

			if output.IsJSON() {
				return output.JSON(changes)
			}
			table := NewTable(output, "TRADE", "SYMBOL", "AUTOMATED TAGS")
			for _, c := range changes {
				if c.Changed {
					table.AddRow(TruncateString(c.TradeID, 12), c.Symbol, strings.Join(c.Auto, ", "))
				}
			}
			if changed > 0 {
				table.Render()
			}
			verb := "Updated"
			if dryRun {
				verb = "Would update"
			}
			output.Success("✓ %s %d of %d trades", verb, changed, len(changes))
			return nil
		},
	}
	f.register(cmd.Flags())
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "show the tags without saving them")
	return cmd
}
