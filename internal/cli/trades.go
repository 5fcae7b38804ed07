package cli

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"trade-analytics/internal/models"
	"trade-analytics/internal/store"
)

const dateLayout = "2006-01-02"

// filterFlags are the trade selection flags shared by the analysis commands.
type filterFlags struct {
	symbol string
	tag    string
	from   string
	to     string
	limit  int
}

func (f *filterFlags) register(fs *pflag.FlagSet) {
	fs.StringVarP(&f.symbol, "symbol", "s", "", "only trades in this symbol")
	fs.StringVar(&f.tag, "tag", "", "only trades carrying this tag")
	fs.StringVar(&f.from, "from", "", "first exit date, YYYY-MM-DD")
	fs.StringVar(&f.to, "to", "", "last exit date, YYYY-MM-DD (inclusive)")
	fs.IntVar(&f.limit, "limit", 0, "maximum number of trades")
}

// filter converts the flags to a store filter, reading dates in loc.
func (f *filterFlags) filter(loc *time.Location) (store.TradeFilter, error) {
	if loc == nil {
		loc = time.UTC
	}
	filter := store.TradeFilter{
		Symbol: strings.ToUpper(f.symbol),
		Tag:    f.tag,
		Limit:  f.limit,
	}
	if f.from != "" {
		t, err := time.ParseInLocation(dateLayout, f.from, loc)
		if err != nil {
			return filter, fmt.Errorf("invalid --from date %q: %w", f.from, err)
		}
		filter.StartDate = t
	}
	if f.to != "" {
		t, err := time.ParseInLocation(dateLayout, f.to, loc)
		if err != nil {
			return filter, fmt.Errorf("invalid --to date %q: %w", f.to, err)
		}
		filter.EndDate = t.AddDate(0, 0, 1).Add(-time.Nanosecond)
	}
	if !filter.StartDate.IsZero() && !filter.EndDate.IsZero() && filter.EndDate.Before(filter.StartDate) {
		return filter, fmt.Errorf("--to is before --from")
	}
	return filter, nil
}

// loadTrades returns the trades selected by f.
func (a *App) loadTrades(cmd *cobra.Command, f *filterFlags) ([]models.Trade, error) {
	filter, err := f.filter(a.Location)
	if err != nil {
		return nil, err
	}
	ds, err := a.Store()
	if err != nil {
		return nil, err
	}
	return ds.GetTrades(cmd.Context(), filter)
}

func newTradesCmd(app *App) *cobra.Command {
	var f filterFlags

	cmd := &cobra.Command{
		Use:   "trades",
		Short: "List stored trades",
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			trades, err := app.loadTrades(cmd, &f)
			if err != nil {
				return err
			}
			if output.IsJSON() {
				return output.JSON(trades)
			}
			if len(trades) == 0 {
				output.Warning("No trades found")
				return nil
			}

			table := NewTable(output, "EXIT", "SYMBOL", "SIDE", "QTY", "ENTRY", "EXIT PX", "P&L", "HELD", "TAGS")
			for _, t := range trades {
				table.AddRow(
					FormatDateTime(t.ExitTime, app.Location, app.Config.UI.DateFormat),
					t.Symbol,
					string(t.Direction),
					t.Quantity.String(),
					t.EntryPrice.StringFixed(2),
					t.ExitPrice.StringFixed(2),
					output.FormatPnL(t.PnL),
					FormatDuration(t.Duration()),
					TruncateString(strings.Join(t.Tags, ", "), 40),
				)
			}
			table.Render()
			output.Dim("%d trades", len(trades))
			if ds, err := app.Store(); err == nil {
				if last := ds.GetLastSync(store.SyncTypeTrades); !last.IsZero() {
					output.Dim("Last import %s", FormatDateTime(last, app.Location, app.Config.UI.DateFormat))
				}
			}
			return nil
		},
	}
	f.register(cmd.Flags())
	return cmd
}

func newImportCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "import <file.csv>",
		Short: "Import closed trades from a CSV journal",
		Long: `Import closed trades from a CSV journal.

Columns: id, symbol, direction, entry_price, exit_price, quantity, entry_time,
exit_time, pnl, fee, tags, plan_adherence, notes. Times without a zone are read
in the configured timezone. A blank pnl is computed from prices, quantity and
fee. Rows without an id get a stable one, so importing the same file twice
does not duplicate trades.`,
		Args: requireArgs(1, "<file.csv>"),
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)

			f, err := os.Open(args[0])
			if err != nil {
				return err
			}
			defer f.Close()

			ds, err := app.Store()
			if err != nil {
				return err
			}
			result, err := store.ImportTradesCSV(cmd.Context(), ds, f, app.Location)
			if err != nil {
				return err
			}
			for _, s := range result.Skipped {
				app.Logger.Warn().Int("line", s.Line).Err(s.Err).Msg("Skipped trade row")
			}

			if output.IsJSON() {
				skipped := make([]string, len(result.Skipped))
				for i, s := range result.Skipped {
					skipped[i] = s.Error()
				}
				return output.JSON(map[string]interface{}{
					"imported": len(result.Trades),
					"skipped":  skipped,
				})
			}
			output.Success("✓ Imported %d trades", len(result.Trades))
			for _, s := range result.Skipped {
				output.Warning("  skipped %s", s.Error())
			}
			return nil
		},
	}
}

func newExportCmd(app *App) *cobra.Command {
	var (
		f   filterFlags
		out string
	)

	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export stored trades as CSV",
		RunE: func(cmd *cobra.Command, args []string) error {
			trades, err := app.loadTrades(cmd, &f)
			if err != nil {
				return err
			}

			if out == "" {
				return store.WriteTradesCSV(cmd.OutOrStdout(), trades)
			}
			err = writeFile(out, func(w io.Writer) error {
				return store.WriteTradesCSV(w, trades)
			})
			if err != nil {
				return err
			}
			NewOutput(cmd).Success("✓ Exported %d trades to %s", len(trades), out)
			return nil
		},
	}
	f.register(cmd.Flags())
	cmd.Flags().StringVarP(&out, "out", "o", "", "write to file instead of stdout")
	return cmd
}

func newBarsCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "bars",
		Short: "Manage cached intrabar prices",
	}

	var symbol string
	importCmd := &cobra.Command{
		Use:   "import <file.csv>",
		Short: "Import OHLC bars for one symbol",
		Long: `Import OHLC bars (timestamp, open, high, low, close) for one symbol into
the local store at the configured granularity. These bars serve excursion
analysis when bars.source is "store".`,
		Args: requireArgs(1, "<file.csv> --symbol SYMBOL"),
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			if symbol == "" {
				return fmt.Errorf("--symbol is required")
			}

			f, err := os.Open(args[0])
			if err != nil {
				return err
			}
			defer f.Close()

			ds, err := app.Store()
			if err != nil {
				return err
			}
			n, skipped, err := store.ImportBarsCSV(cmd.Context(), ds, f, symbol, app.Config.Bars.Granularity, app.Location)
			if err != nil {
				return err
			}
			for _, s := range skipped {
				app.Logger.Warn().Int("line", s.Line).Err(s.Err).Msg("Skipped bar row")
			}

			if output.IsJSON() {
				return output.JSON(map[string]interface{}{"symbol": strings.ToUpper(symbol), "imported": n, "skipped": len(skipped)})
			}
			output.Success("✓ Imported %d bars for %s", n, strings.ToUpper(symbol))
			if len(skipped) > 0 {
				output.Warning("  %d rows skipped", len(skipped))
			}
			return nil
		},
	}
	importCmd.Flags().StringVarP(&symbol, "symbol", "s", "", "symbol the bars belong to")
	cmd.AddCommand(importCmd)

	var f filterFlags
	fetchCmd := &cobra.Command{
		Use:   "fetch",
		Short: "Fetch and cache bars covering the selected trades",
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			trades, err := app.loadTrades(cmd, &f)
			if err != nil {
				return err
			}
			fetcher, err := app.Fetcher()
			if err != nil {
				return err
			}

			series := fetcher.FetchForTrades(cmd.Context(), trades)
			counts := make(map[string]int, len(series))
			for symbol, s := range series {
				counts[symbol] = len(s)
			}
			if output.IsJSON() {
				return output.JSON(map[string]interface{}{"bars": counts, "breaker": fetcher.BreakerState()})
			}

			table := NewTable(output, "SYMBOL", "BARS")
			for _, symbol := range models.Symbols(models.GroupBySymbol(trades)) {
				table.AddRow(symbol, fmt.Sprintf("%d", counts[symbol]))
			}
			table.Render()
			return nil
		},
	}
	f.register(fetchCmd.Flags())
	cmd.AddCommand(fetchCmd)

	return cmd
}
