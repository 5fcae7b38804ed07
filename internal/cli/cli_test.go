package cli

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"trade-analytics/internal/analytics"
	"trade-analytics/internal/report"
)

const testJournal = `id,symbol,direction,entry_price,exit_price,quantity,entry_time,exit_time,pnl,fee,tags,plan_adherence,notes
T1,INFY,LONG,1500,1510,10,2024-03-04T09:20:00Z,2024-03-04T09:30:00Z,100,,Breakout,PERFECT_EXECUTION,
T2,INFY,LONG,1510,1505,10,2024-03-04T10:00:00Z,2024-03-04T10:20:00Z,-50,,FOMO,MAJOR_DEVIATION,
T3,TCS,SHORT,3800,3790,20,2024-03-05T14:00:00Z,2024-03-05T16:00:00Z,200,,,,
`

const testBars = `timestamp,open,high,low,close
2024-03-04T09:20:00Z,1500,1502,1499,1501
2024-03-04T09:25:00Z,1501,1520,1500,1510
2024-03-04T09:30:00Z,1510,1511,1508,1510
`

func setupWorkspace(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	cfg := `
[analytics]
current_balance = "10250"

[store]
path = "` + filepath.ToSlash(filepath.Join(dir, "trades.db")) + `"

[logging]
console = false
file = false
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.toml"), []byte(cfg), 0600))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "credentials.toml"), nil, 0600))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "journal.csv"), []byte(testJournal), 0600))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "infy.csv"), []byte(testBars), 0600))
	return dir
}

func run(t *testing.T, dir string, args ...string) string {
	t.Helper()
	var out bytes.Buffer
	cmd := NewRootCmd()
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(append([]string{"--config", dir}, args...))
	require.NoError(t, cmd.Execute(), out.String())
	return out.String()
}

func TestImportAndStats(t *testing.T) {
	dir := setupWorkspace(t)

	out := run(t, dir, "import", filepath.Join(dir, "journal.csv"))
	assert.Contains(t, out, "Imported 3 trades")

	var overall analytics.OverallStats
	require.NoError(t, json.Unmarshal([]byte(run(t, dir, "stats", "overall", "--json")), &overall))
	assert.Equal(t, 3, overall.TotalTrades)
	assert.True(t, overall.TotalPnL.Equal(decimal.NewFromInt(250)))
	assert.True(t, overall.StartingBalance.Equal(decimal.NewFromInt(10000)))
	assert.Len(t, overall.EquityCurve, 4)

	var days []analytics.DailyStats
	require.NoError(t, json.Unmarshal([]byte(run(t, dir, "stats", "daily", "--json", "--symbol", "infy")), &days))
	require.Len(t, days, 1)
	assert.Equal(t, "2024-03-04", days[0].Date)
	assert.True(t, days[0].PlanFollowedPct.Equal(decimal.NewFromInt(50)))

	text := run(t, dir, "stats", "tags")
	assert.Contains(t, text, "Breakout")
	assert.Contains(t, text, "FOMO")
}

func TestAutoTagAndReport(t *testing.T) {
	dir := setupWorkspace(t)
	run(t, dir, "import", filepath.Join(dir, "journal.csv"))
	run(t, dir, "bars", "import", filepath.Join(dir, "infy.csv"), "--symbol", "infy")

	var changes []report.TagChange
	require.NoError(t, json.Unmarshal([]byte(run(t, dir, "autotag", "--json")), &changes))
	require.Len(t, changes, 3)
	for _, c := range changes {
		assert.True(t, c.Changed)
	}
	// T1 captured 100 of a 200 favourable excursion.
	assert.Contains(t, changes[0].Auto, analytics.TagLeftMoney)
	assert.Contains(t, changes[0].Tags, "Breakout")

	reportPath := filepath.Join(dir, "report.msgpack")
	run(t, dir, "report", "--format", "msgpack", "--out", reportPath)

	f, err := os.Open(reportPath)
	require.NoError(t, err)
	defer f.Close()
	data, err := report.DecodeMsgpack(f)
	require.NoError(t, err)

	assert.Equal(t, 3, data.TradeCount)
	assert.Equal(t, []string{"INFY", "TCS"}, data.Symbols)
	assert.True(t, data.InsightsComplete)
	assert.Empty(t, data.Insights)
	require.NotNil(t, data.Efficiency)
	assert.Equal(t, 1, data.Efficiency.AnalyzedTrades)

	text := run(t, dir, "report", "--no-bars")
	assert.Contains(t, text, "P&L Distribution")
	assert.Contains(t, text, "Recurring Mistakes")
}

func TestExportRoundTrip(t *testing.T) {
	dir := setupWorkspace(t)
	run(t, dir, "import", filepath.Join(dir, "journal.csv"))

	out := filepath.Join(dir, "export.csv")
	run(t, dir, "export", "--out", out, "--from", "2024-03-05")

	other := t.TempDir()
	cfg, err := os.ReadFile(filepath.Join(dir, "config.toml"))
	require.NoError(t, err)
	cfg = bytes.ReplaceAll(cfg, []byte(filepath.ToSlash(dir)), []byte(filepath.ToSlash(other)))
	require.NoError(t, os.WriteFile(filepath.Join(other, "config.toml"), cfg, 0600))
	require.NoError(t, os.WriteFile(filepath.Join(other, "credentials.toml"), nil, 0600))

	assert.Contains(t, run(t, other, "import", out), "Imported 1 trades")
}

func TestVersionSkipsConfig(t *testing.T) {
	out := run(t, filepath.Join(t.TempDir(), "missing"), "version")
	assert.Contains(t, out, Version)
}

func TestFilterFlags(t *testing.T) {
	f := filterFlags{from: "2024-03-05", to: "2024-03-04"}
	_, err := f.filter(nil)
	assert.Error(t, err)

	f = filterFlags{symbol: "infy", to: "2024-03-04"}
	filter, err := f.filter(nil)
	require.NoError(t, err)
	assert.Equal(t, "INFY", filter.Symbol)
	assert.Equal(t, 23, filter.EndDate.Hour())
}

type failingCloser struct {
	bytes.Buffer
}

func (*failingCloser) Close() error { return errors.New("disk full") }

func TestReportSurfacesCloseError(t *testing.T) {
	dir := setupWorkspace(t)
	run(t, dir, "import", filepath.Join(dir, "journal.csv"))

	orig := createFile
	t.Cleanup(func() { createFile = orig })
	var written *failingCloser
	createFile = func(string) (io.WriteCloser, error) {
		written = &failingCloser{}
		return written, nil
	}

	cmd := NewRootCmd()
	cmd.SetOut(io.Discard)
	cmd.SetArgs([]string{"--config", dir, "report", "--format", "json", "--no-bars", "--out", "report.json"})
	err := cmd.Execute()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "disk full")
	assert.Contains(t, written.String(), `"trade_count"`)
}
