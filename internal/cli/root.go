// Package cli provides the command-line interface for the analytics tool.
package cli

import (
	"fmt"
	"time"

	"github.com/fatih/color"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"trade-analytics/internal/bars"
	"trade-analytics/internal/coach"
	"trade-analytics/internal/config"
	"trade-analytics/internal/logging"
	"trade-analytics/internal/report"
	"trade-analytics/internal/resilience"
	"trade-analytics/internal/store"
)

// Version information
const (
	Version   = "0.3.0"
	BuildDate = "2024-06-01"
)

const skipConfig = "skip-config"

// App holds the application dependencies. The store and bar fetcher are
// opened on first use so commands that only read configuration never touch
// the database.
type App struct {
	Config   *config.Config
	Logger   zerolog.Logger
	Location *time.Location

	store   store.DataStore
	fetcher *bars.Fetcher
}

// NewRootCmd creates the root command for the CLI.
func NewRootCmd() *cobra.Command {
	app := &App{Logger: zerolog.Nop(), Location: time.UTC}

	rootCmd := &cobra.Command{
		Use:   "tradestats",
		Short: "Trade journal performance analytics",
		Long: `tradestats turns a journal of closed trades into performance statistics.

Import trades from CSV, then inspect daily, weekly, hourly, cohort and tag
breakdowns, tag trades automatically from intrabar prices, and export a full
report bundle as JSON or MessagePack.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if cmd.Annotations[skipConfig] == "true" || cmd.Name() == "help" {
				return nil
			}
			return app.setup(cmd)
		},
		PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
			return app.Close()
		},
	}

	rootCmd.PersistentFlags().String("config", "", "config directory (default: ~/.config/trade-analytics)")
	rootCmd.PersistentFlags().Bool("json", false, "output in JSON format")
	rootCmd.PersistentFlags().Bool("debug", false, "enable debug logging")

	rootCmd.AddCommand(newVersionCmd())
	rootCmd.AddCommand(newConfigCmd(app))
	rootCmd.AddCommand(newImportCmd(app))
	rootCmd.AddCommand(newExportCmd(app))
	rootCmd.AddCommand(newTradesCmd(app))
	rootCmd.AddCommand(newBarsCmd(app))
	rootCmd.AddCommand(newStatsCmd(app))
	rootCmd.AddCommand(newAutoTagCmd(app))
	rootCmd.AddCommand(newReportCmd(app))

	return rootCmd
}

func (a *App) setup(cmd *cobra.Command) error {
	dir, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(dir)
	if err != nil {
		return err
	}
	a.Config = cfg

	a.Logger = logging.NewLoggerWithConfig(cfg.Logging)
	if debug, _ := cmd.Flags().GetBool("debug"); debug {
		a.Logger = a.Logger.Level(zerolog.DebugLevel)
	}
	if !cfg.UI.ColorEnabled {
		color.NoColor = true
	}
	cmd.SetContext(logging.WithLogger(cmd.Context(), a.Logger))

	a.Location, err = cfg.Location()
	return err
}

// Store opens the SQLite store on first use.
func (a *App) Store() (store.DataStore, error) {
	if a.store != nil {
		return a.store, nil
	}
	ds, err := store.NewSQLiteStore(a.Config.Store.Path)
	if err != nil {
		return nil, err
	}
	a.Logger.Debug().Str("path", a.Config.Store.Path).Msg("SQLite store initialized")
	a.store = ds
	return ds, nil
}

// Fetcher builds the bar retrieval boundary for the configured source.
func (a *App) Fetcher() (*bars.Fetcher, error) {
	if a.fetcher != nil {
		return a.fetcher, nil
	}
	cfg := a.Config.Bars

	var provider bars.Provider = bars.NoopProvider{}
	switch cfg.Source {
	case config.BarSourceStore, config.BarSourceKite:
		ds, err := a.Store()
		if err != nil {
			return nil, err
		}
		provider = bars.StoreProvider{Reader: ds}

		creds := a.Config.Credentials.Kite
		if cfg.Source == config.BarSourceKite {
			if creds.APIKey == "" || creds.AccessToken == "" {
				a.Logger.Warn().Msg("Kite credentials missing, serving bars from the local store only")
				break
			}
			kite := bars.NewKiteProvider(bars.KiteConfig{
				APIKey:            creds.APIKey,
				AccessToken:       creds.AccessToken,
				Exchange:          cfg.Exchange,
				Instruments:       cfg.Instruments,
				RequestsPerSecond: cfg.RequestsPerSecond,
			})
			provider = bars.NewCachedProvider(ds, kite, a.Logger)
			a.Logger.Debug().Str("exchange", cfg.Exchange).Msg("Kite bar provider initialized")
		}
	}

	a.fetcher = bars.NewFetcher(provider, bars.FetcherConfig{
		Timeout:     cfg.FetchTimeout,
		Granularity: cfg.Granularity,
		Breaker: resilience.CircuitBreakerConfig{
			FailureThreshold: cfg.BreakerFailures,
			Cooldown:         cfg.BreakerCooldown,
		},
	}, a.Logger)
	return a.fetcher, nil
}

// InsightGenerator returns the configured coach, or nil when coaching is off.
func (a *App) InsightGenerator() report.InsightGenerator {
	if !a.Config.CoachEnabled() {
		return nil
	}
	a.Logger.Debug().Str("model", a.Config.Coach.Model).Msg("OpenAI coach initialized")
	return coach.NewOpenAIGenerator(a.Config.Credentials.OpenAI.APIKey, a.Config.Coach.Model)
}

// Close releases the store.
func (a *App) Close() error {
	if a.store == nil {
		return nil
	}
	err := a.store.Close()
	a.store = nil
	a.fetcher = nil
	return err
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:         "version",
		Short:       "Print version information",
		Annotations: map[string]string{skipConfig: "true"},
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			if output.IsJSON() {
				return output.JSON(map[string]string{
					"version":    Version,
					"build_date": BuildDate,
				})
			}
			output.Printf("tradestats v%s\n", Version)
			output.Dim("Build date: %s", BuildDate)
			return nil
		},
	}
}

func newConfigCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Configuration management",
		Long:  "View and validate application configuration.",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "show",
		Short: "Show current configuration",
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			if output.IsJSON() {
				return output.JSON(app.Config)
			}
			showConfig(output, app.Config)
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:         "path",
		Short:       "Show configuration directory path",
		Annotations: map[string]string{skipConfig: "true"},
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			dir, _ := cmd.Flags().GetString("config")
			if dir == "" {
				dir = config.DefaultConfigDir()
			}
			if output.IsJSON() {
				return output.JSON(map[string]string{"path": dir})
			}
			output.Println(dir)
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "validate",
		Short: "Validate configuration files",
		RunE: func(cmd *cobra.Command, args []string) error {
			// Load already validated; reaching here means the files are good.
			output := NewOutput(cmd)
			if output.IsJSON() {
				return output.JSON(map[string]bool{"valid": true})
			}
			output.Success("✓ Configuration is valid")
			return nil
		},
	})

	return cmd
}

func showConfig(output *Output, cfg *config.Config) {
	output.Bold("Analytics")
	output.Printf("  Timezone:        %s\n", cfg.Analytics.Timezone)
	output.Printf("  Current Balance: %s\n", cfg.Analytics.CurrentBalance)
	output.Printf("  Histogram Bins:  %d\n", cfg.Analytics.HistogramBins)
	output.Println()

	output.Bold("Preferred Sessions")
	if len(cfg.Sessions) == 0 {
		output.Dim("  none (out-of-hours tagging disabled)")
	}
	for _, s := range cfg.Sessions {
		output.Printf("  %-16s %s - %s\n", s.Name, s.Start, s.End)
	}
	output.Println()

	output.Bold("Bars")
	output.Printf("  Source:          %s\n", cfg.Bars.Source)
	output.Printf("  Granularity:     %s\n", cfg.Bars.Granularity)
	output.Printf("  Fetch Timeout:   %s\n", cfg.Bars.FetchTimeout)
	output.Printf("  Breaker:         %d failures, %s cooldown\n", cfg.Bars.BreakerFailures, cfg.Bars.BreakerCooldown)
	output.Println()

	output.Bold("Store")
	output.Printf("  Path:            %s\n", cfg.Store.Path)
	output.Println()

	output.Bold("Coach")
	output.Printf("  Enabled:         %v\n", cfg.CoachEnabled())
	output.Printf("  Model:           %s\n", cfg.Coach.Model)
	output.Println()

	output.Bold("Credentials")
	output.Printf("  Kite API Key:    %s\n", orNotSet(logging.MaskCredential(cfg.Credentials.Kite.APIKey)))
	output.Printf("  Kite Token:      %s\n", orNotSet(logging.MaskCredential(cfg.Credentials.Kite.AccessToken)))
	output.Printf("  OpenAI API Key:  %s\n", orNotSet(logging.MaskCredential(cfg.Credentials.OpenAI.APIKey)))
}

func orNotSet(s string) string {
	if s == "" {
		return "not set"
	}
	return s
}

func requireArgs(n int, usage string) cobra.PositionalArgs {
	return func(cmd *cobra.Command, args []string) error {
		if len(args) != n {
			return fmt.Errorf("usage: %s %s", cmd.CommandPath(), usage)
		}
		return nil
	}
}
