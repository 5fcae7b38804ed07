package config

import (
	"fmt"
	"os"
	"path/filepath"
)

const configTemplate = `# Trade Analytics Configuration

[analytics]
# Timezone used to bucket trades by day, week and hour
timezone = "UTC"
# Current account balance; the starting balance is derived by subtracting total pnl
current_balance = "0"
# Number of bins in the pnl histogram
histogram_bins = 10
# User tags counted as mistakes in reports
mistake_tags = ["FOMO", "Revenge", "Overtrading", "Chased", "Moved Stop"]

# Preferred trading windows in local time. Trades entered outside every
# window are tagged "Out-of-hours". Remove all entries to disable the rule.
# [[sessions]]
# name = "Morning"
# start = "09:15"
# end = "11:30"

[bars]
# Intrabar price source: "store" (local cache), "kite" (Kite Connect), "none"
source = "store"
granularity = "1m"
# Timeout for one price-history request
fetch_timeout = "15s"
# Consecutive failures before price fetches are paused
breaker_failures = 3
breaker_cooldown = "1m"
# Kite historical API pacing
requests_per_second = 3.0
exchange = "NSE"

# Optional symbol -> instrument token overrides
[bars.instruments]
# INFY = 408065

[store]
# path = "~/.config/trade-analytics/trades.db"

[coach]
# Generate coaching insights with OpenAI (requires [openai] api_key)
enabled = false
model = "gpt-4o-mini"
timeout = "30s"

[logging]
level = "info"
console = true
file = true
max_size = 50
max_backups = 5
max_age = 30

[ui]
# Enable colored output
color_enabled = true
# Date format
date_format = "02-Jan-2006"
`

const credentialsTemplate = `# Trade Analytics Credentials
# WARNING: Keep this file secure! Do not commit to version control.

[kite]
api_key = ""
access_token = ""

[openai]
api_key = ""
`

func createTemplateConfig(configDir string) error {
	if err := os.MkdirAll(configDir, 0755); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}

	path := filepath.Join(configDir, "config.toml")
	if err := os.WriteFile(path, []byte(configTemplate), 0644); err != nil {
		return fmt.Errorf("writing config template: %w", err)
	}

	return fmt.Errorf("config file not found, created template at %s", path)
}

func createTemplateCredentials(configDir string) error {
	if err := os.MkdirAll(configDir, 0755); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}

	path := filepath.Join(configDir, "credentials.toml")
	if err := os.WriteFile(path, []byte(credentialsTemplate), 0600); err != nil {
		return fmt.Errorf("writing credentials template: %w", err)
	}

	return fmt.Errorf("credentials file not found, created template at %s", path)
}
