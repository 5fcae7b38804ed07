// Package config provides configuration management for the analytics tool.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/spf13/viper"

	"trade-analytics/internal/analytics"
	apperrors "trade-analytics/internal/errors"
	"trade-analytics/internal/logging"
)

// Config holds all application configuration.
type Config struct {
	Analytics   AnalyticsConfig   `mapstructure:"analytics"`
	Sessions    []SessionConfig   `mapstructure:"sessions"`
	Bars        BarsConfig        `mapstructure:"bars"`
	Store       StoreConfig       `mapstructure:"store"`
	Coach       CoachConfig       `mapstructure:"coach"`
	Logging     logging.LogConfig `mapstructure:"logging"`
	UI          UIConfig          `mapstructure:"ui"`
	Credentials Credentials       `mapstructure:"-" json:"-"` // Loaded separately
}

// AnalyticsConfig holds analysis settings.
type AnalyticsConfig struct {
	Timezone       string   `mapstructure:"timezone"`        // IANA name used for day/week/hour buckets
	CurrentBalance string   `mapstructure:"current_balance"` // decimal; starting balance is derived from it
	HistogramBins  int      `mapstructure:"histogram_bins"`
	MistakeTags    []string `mapstructure:"mistake_tags"`
}

// SessionConfig is one preferred trading window in local time.
type SessionConfig struct {
	Name  string `mapstructure:"name"`
	Start string `mapstructure:"start"` // HH:MM
	End   string `mapstructure:"end"`   // HH:MM, may be earlier than Start to wrap midnight
}

// BarsConfig controls intrabar price retrieval.
type BarsConfig struct {
	Source            string         `mapstructure:"source"` // store, kite, none
	Granularity       time.Duration  `mapstructure:"granularity"`
	FetchTimeout      time.Duration  `mapstructure:"fetch_timeout"`
	BreakerFailures   int            `mapstructure:"breaker_failures"`
	BreakerCooldown   time.Duration  `mapstructure:"breaker_cooldown"`
	RequestsPerSecond float64        `mapstructure:"requests_per_second"`
	Exchange          string         `mapstructure:"exchange"`
	Instruments       map[string]int `mapstructure:"instruments"` // symbol -> Kite instrument token
}

// StoreConfig holds database settings.
type StoreConfig struct {
	Path string `mapstructure:"path"`
}

// CoachConfig controls LLM coaching insights.
type CoachConfig struct {
	Enabled bool          `mapstructure:"enabled"`
	Model   string        `mapstructure:"model"`
	Timeout time.Duration `mapstructure:"timeout"`
}

// UIConfig holds UI-related configuration.
type UIConfig struct {
	ColorEnabled bool   `mapstructure:"color_enabled"`
	DateFormat   string `mapstructure:"date_format"`
}

// Credentials holds API credentials.
type Credentials struct {
	Kite   KiteCredentials   `mapstructure:"kite"`
	OpenAI OpenAICredentials `mapstructure:"openai"`
}

// KiteCredentials holds Kite Connect credentials.
type KiteCredentials struct {
	APIKey      string `mapstructure:"api_key"`
	AccessToken string `mapstructure:"access_token"`
}

// OpenAICredentials holds OpenAI API credentials.
type OpenAICredentials struct {
	APIKey string `mapstructure:"api_key"`
}

// Bar sources.
const (
	BarSourceStore = "store"
	BarSourceKite  = "kite"
	BarSourceNone  = "none"
)

// DefaultConfigDir returns the default configuration directory.
func DefaultConfigDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".config/trade-analytics"
	}
	return filepath.Join(home, ".config", "trade-analytics")
}

// Load loads configuration from the specified directory.
// If configDir is empty, uses the default config directory.
func Load(configDir string) (*Config, error) {
	if configDir == "" {
		configDir = DefaultConfigDir()
	}

	cfg := &Config{}

	if err := loadConfigFile(configDir, cfg); err != nil {
		return nil, fmt.Errorf("loading config.toml: %w", err)
	}

	if err := loadCredentials(configDir, &cfg.Credentials); err != nil {
		return nil, fmt.Errorf("loading credentials.toml: %w", err)
	}

	applyEnvOverrides(cfg)
	cfg.Bars.Instruments = upperKeys(cfg.Bars.Instruments)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return cfg, nil
}

// upperKeys restores symbol case; viper lower-cases map keys.
func upperKeys(m map[string]int) map[string]int {
	out := make(map[string]int, len(m))
	for k, v := range m {
		out[strings.ToUpper(k)] = v
	}
	return out
}

func setDefaults(v *viper.Viper, configDir string) {
	logDefaults := logging.DefaultLogConfig()

	v.SetDefault("analytics.timezone", "UTC")
	v.SetDefault("analytics.current_balance", "0")
	v.SetDefault("analytics.histogram_bins", 10)

	v.SetDefault("bars.source", BarSourceStore)
	v.SetDefault("bars.granularity", "1m")
	v.SetDefault("bars.fetch_timeout", "15s")
	v.SetDefault("bars.breaker_failures", 3)
	v.SetDefault("bars.breaker_cooldown", "1m")
	v.SetDefault("bars.requests_per_second", 3.0)
	v.SetDefault("bars.exchange", "NSE")

	v.SetDefault("store.path", filepath.Join(configDir, "trades.db"))

	v.SetDefault("coach.enabled", false)
	v.SetDefault("coach.model", "gpt-4o-mini")
	v.SetDefault("coach.timeout", "30s")

	v.SetDefault("logging.level", logDefaults.Level)
	v.SetDefault("logging.console", logDefaults.Console)
	v.SetDefault("logging.file", logDefaults.File)
	v.SetDefault("logging.file_path", filepath.Join(configDir, "logs", "tradestats.log"))
	v.SetDefault("logging.max_size", logDefaults.MaxSize)
	v.SetDefault("logging.max_backups", logDefaults.MaxBackups)
	v.SetDefault("logging.max_age", logDefaults.MaxAge)

	v.SetDefault("ui.color_enabled", true)
	v.SetDefault("ui.date_format", "02-Jan-2006")
}

func loadConfigFile(configDir string, cfg *Config) error {
	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("toml")
	v.AddConfigPath(configDir)
	setDefaults(v, configDir)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			return createTemplateConfig(configDir)
		}
		return err
	}

	return v.Unmarshal(cfg)
}

func loadCredentials(configDir string, creds *Credentials) error {
	v := viper.New()
	v.SetConfigName("credentials")
	v.SetConfigType("toml")
	v.AddConfigPath(configDir)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			return createTemplateCredentials(configDir)
		}
		return err
	}

	return v.Unmarshal(creds)
}

func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("KITE_API_KEY"); v != "" {
		cfg.Credentials.Kite.APIKey = v
	}
	if v := os.Getenv("KITE_ACCESS_TOKEN"); v != "" {
		cfg.Credentials.Kite.AccessToken = v
	}
	if v := os.Getenv("OPENAI_API_KEY"); v != "" {
		cfg.Credentials.OpenAI.APIKey = v
	}
	if v := os.Getenv("TRADESTATS_TIMEZONE"); v != "" {
		cfg.Analytics.Timezone = v
	}
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if _, err := c.Location(); err != nil {
		return apperrors.NewValidationError("analytics.timezone", c.Analytics.Timezone, err.Error())
	}
	if _, err := c.CurrentBalance(); err != nil {
		return apperrors.NewValidationError("analytics.current_balance", c.Analytics.CurrentBalance, "must be a decimal number")
	}
	if c.Analytics.HistogramBins <= 0 {
		return apperrors.NewValidationError("analytics.histogram_bins", c.Analytics.HistogramBins, "must be positive")
	}

	for i, s := range c.Sessions {
		if _, err := analytics.ParseSessionWindow(s.Name, s.Start, s.End); err != nil {
			return apperrors.NewValidationError(fmt.Sprintf("sessions[%d]", i), s.Name, err.Error())
		}
	}

	switch c.Bars.Source {
	case BarSourceStore, BarSourceKite, BarSourceNone:
	default:
		return apperrors.NewValidationError("bars.source", c.Bars.Source, "must be 'store', 'kite' or 'none'")
	}
	if c.Bars.Granularity <= 0 {
		return apperrors.NewValidationError("bars.granularity", c.Bars.Granularity, "must be positive")
	}
	if c.Bars.FetchTimeout < 0 {
		return apperrors.NewValidationError("bars.fetch_timeout", c.Bars.FetchTimeout, "must be non-negative")
	}
	if c.Bars.BreakerCooldown < 0 {
		return apperrors.NewValidationError("bars.breaker_cooldown", c.Bars.BreakerCooldown, "must be non-negative")
	}
	if c.Bars.RequestsPerSecond < 0 {
		return apperrors.NewValidationError("bars.requests_per_second", c.Bars.RequestsPerSecond, "must be non-negative")
	}
	if c.Coach.Timeout < 0 {
		return apperrors.NewValidationError("coach.timeout", c.Coach.Timeout, "must be non-negative")
	}

	return nil
}

// Location returns the configured analysis timezone.
func (c *Config) Location() (*time.Location, error) {
	if c.Analytics.Timezone == "" {
		return time.UTC, nil
	}
	return time.LoadLocation(c.Analytics.Timezone)
}

// CurrentBalance returns the configured account balance.
func (c *Config) CurrentBalance() (decimal.Decimal, error) {
	s := strings.TrimSpace(c.Analytics.CurrentBalance)
	if s == "" {
		return decimal.Zero, nil
	}
	return decimal.NewFromString(s)
}

// PreferredSessions converts the configured windows for the tagger. It
// returns nil when no windows are configured, which disables the
// out-of-hours rule.
func (c *Config) PreferredSessions() (*analytics.PreferredSessions, error) {
	if len(c.Sessions) == 0 {
		return nil, nil
	}
	loc, err := c.Location()
	if err != nil {
		return nil, err
	}
	windows := make([]analytics.SessionWindow, 0, len(c.Sessions))
	for _, s := range c.Sessions {
		w, err := analytics.ParseSessionWindow(s.Name, s.Start, s.End)
		if err != nil {
			return nil, err
		}
		windows = append(windows, w)
	}
	return &analytics.PreferredSessions{Location: loc, Windows: windows}, nil
}

// CoachEnabled reports whether coaching insights can be generated.
func (c *Config) CoachEnabled() bool {
	return c.Coach.Enabled && c.Credentials.OpenAI.APIKey != ""
}
