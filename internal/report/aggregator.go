package report

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"trade-analytics/internal/analytics"
	apperrors "trade-analytics/internal/errors"
	"trade-analytics/internal/logging"
	"trade-analytics/internal/models"
)

// Config controls report assembly.
type Config struct {
	Location       *time.Location
	HistogramBins  int
	MistakeTags    []string
	Preferred      *analytics.PreferredSessions
	InsightTimeout time.Duration // zero means no timeout
}

// Input is one analysis request.
type Input struct {
	TradesBySymbol map[string][]models.Trade
	CurrentBalance decimal.Decimal
	// Bars is optional; when present, efficiency statistics are included.
	Bars map[string]models.BarSeries
}

// Aggregator builds ReportData. It holds configuration only, so one
// Aggregator may serve concurrent Build calls.
type Aggregator struct {
	cfg      Config
	engine   analytics.Engine
	insights InsightGenerator
	logger   zerolog.Logger
	now      func() time.Time
}

// NewAggregator creates an aggregator. insights may be nil, in which case
// reports carry no insights.
func NewAggregator(cfg Config, insights InsightGenerator, logger zerolog.Logger) *Aggregator {
	if cfg.Location == nil {
		cfg.Location = time.UTC
	}
	if cfg.HistogramBins <= 0 {
		cfg.HistogramBins = DefaultHistogramBins
	}
	if cfg.MistakeTags == nil {
		cfg.MistakeTags = DefaultMistakeTags
	}
	return &Aggregator{
		cfg:      cfg,
		engine:   analytics.NewEngine(cfg.Location),
		insights: insights,
		logger:   logging.WithOperation(logger, "report"),
		now:      time.Now,
	}
}

// Flatten merges per-symbol histories into one list, symbols in sorted order.
func Flatten(bySymbol map[string][]models.Trade) []models.Trade {
	var out []models.Trade
	for _, symbol := range models.Symbols(bySymbol) {
		out = append(out, bySymbol[symbol]...)
	}
	return out
}

// Build computes the report. It never fails: a failing insight generator is
// replaced by a placeholder insight.
func (a *Aggregator) Build(ctx context.Context, in Input) *ReportData {
	started := time.Now()
	trades := Flatten(in.TradesBySymbol)

	totalPnL := decimal.Zero
	for _, t := range trades {
		totalPnL = totalPnL.Add(t.PnL)
	}
	starting := in.CurrentBalance.Sub(totalPnL)

	data := ReportData{
		ID:              uuid.NewString(),
		GeneratedAt:     a.now().UTC(),
		Timezone:        a.cfg.Location.String(),
		TradeCount:      len(trades),
		Symbols:         models.Symbols(in.TradesBySymbol),
		StartingBalance: starting,
		CurrentBalance:  in.CurrentBalance,
		Overall:         analytics.AnalyzeOverallPerformance(trades, starting),
		Daily:           analytics.SortedDays(a.engine.ByDay(trades)),
		Weekly:          analytics.SortedWeeks(a.engine.ByWeek(trades)),
		Hourly:          analytics.SortedHours(a.engine.ByHour(trades)),
		Cohorts:         analytics.SortedCohorts(a.engine.ByTradesPerDay(trades)),
		Tags:            analytics.SortedTags(analytics.AnalyzeTagPerformance(trades)),
		Histogram:       PnLHistogram(trades, a.cfg.HistogramBins),
		Mistakes:        MistakeAnalyzer{Tags: a.cfg.MistakeTags}.Analyze(trades),
		Insights:        []Insight{},
	}

	if len(in.Bars) > 0 {
		eff := analytics.EfficiencyAnalyzer{Tagger: analytics.Tagger{Preferred: a.cfg.Preferred}}.Analyze(trades, in.Bars)
		data.Efficiency = &eff
	}

	data.Insights, data.InsightsComplete = a.generateInsights(ctx, data)

	logging.LogReport(a.logger, data.ID, data.TradeCount, time.Since(started))
	return &data
}

func (a *Aggregator) generateInsights(ctx context.Context, data ReportData) (insights []Insight, complete bool) {
	if a.insights == nil {
		return []Insight{}, true
	}
	name := a.insights.Name()

	defer func() {
		if r := recover(); r != nil {
			err := apperrors.NewInsightError(name, fmt.Errorf("panic: %v", r))
			a.logger.Error().Err(err).Str("report_id", data.ID).Msg("Insight generator panicked")
			insights, complete = []Insight{PlaceholderInsight()}, false
		}
	}()

	if a.cfg.InsightTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, a.cfg.InsightTimeout)
		defer cancel()
	}

	out, err := a.insights.Generate(ctx, data)
	if err != nil {
		err = apperrors.NewInsightError(name, err)
		a.logger.Error().Str("error", logging.Redact(err.Error())).Str("report_id", data.ID).Msg("Insight generation failed")
		return []Insight{PlaceholderInsight()}, false
	}
	if out == nil {
		out = []Insight{}
	}
	return out, true
}
