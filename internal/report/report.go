// Package report assembles the analytics into one immutable bundle that
// renderers consume without re-deriving any metric.
package report

import (
	"context"
	"io"
	"time"

	"github.com/shopspring/decimal"
	"github.com/vmihailenco/msgpack/v5"

	"trade-analytics/internal/analytics"
)

// Insight is one coaching observation about the trader's performance.
type Insight struct {
	Title    string `json:"title"`
	Detail   string `json:"detail"`
	Category string `json:"category"` // strength, weakness, action
	Severity string `json:"severity"` // info, warning, critical
}

// Insight categories and severities.
const (
	CategoryStrength = "strength"
	CategoryWeakness = "weakness"
	CategoryAction   = "action"
	CategorySystem   = "system"

	SeverityInfo     = "info"
	SeverityWarning  = "warning"
	SeverityCritical = "critical"
)

// PlaceholderInsight stands in for coaching output that could not be produced.
func PlaceholderInsight() Insight {
	return Insight{
		Title:    "Analysis incomplete",
		Detail:   "Coaching insights could not be generated for this report. The statistics above are complete.",
		Category: CategorySystem,
		Severity: SeverityInfo,
	}
}

// InsightGenerator produces coaching insights from the numeric report.
// Implementations must treat data as read-only.
type InsightGenerator interface {
	Name() string
	Generate(ctx context.Context, data ReportData) ([]Insight, error)
}

// ReportData is the complete result of one analysis run.
type ReportData struct {
	ID          string    `json:"id"`
	GeneratedAt time.Time `json:"generated_at"`
	Timezone    string    `json:"timezone"`

	TradeCount      int             `json:"trade_count"`
	Symbols         []string        `json:"symbols"`
	StartingBalance decimal.Decimal `json:"starting_balance"`
	CurrentBalance  decimal.Decimal `json:"current_balance"`

	Overall    analytics.OverallStats     `json:"overall"`
	Daily      []analytics.DailyStats     `json:"daily"`
	Weekly     []analytics.WeeklyStats    `json:"weekly"`
	Hourly     []analytics.HourlyStats    `json:"hourly"`
	Cohorts    []analytics.CohortStats    `json:"cohorts"`
	Tags       []analytics.TagStats       `json:"tags"`
	Histogram  Histogram                  `json:"histogram"`
	Mistakes   []Mistake                  `json:"mistakes"`
	Efficiency *analytics.EfficiencyStats `json:"efficiency,omitempty"` // nil without bars

	Insights         []Insight `json:"insights"`
	InsightsComplete bool      `json:"insights_complete"`
}

// EncodeMsgpack writes the report as MessagePack using the JSON field names.
func EncodeMsgpack(w io.Writer, data *ReportData) error {
	enc := msgpack.NewEncoder(w)
	enc.SetCustomStructTag("json")
	return enc.Encode(data)
}

// DecodeMsgpack reads a report written by EncodeMsgpack.
func DecodeMsgpack(r io.Reader) (*ReportData, error) {
	dec := msgpack.NewDecoder(r)
	dec.SetCustomStructTag("json")
	var data ReportData
	if err := dec.Decode(&data); err != nil {
		return nil, err
	}
	return &data, nil
}
