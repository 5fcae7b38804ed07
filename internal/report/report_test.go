package report

import (
	"bytes"
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"trade-analytics/internal/analytics"
	apperrors "trade-analytics/internal/errors"
	"trade-analytics/internal/models"
)

var t0 = time.Date(2024, 3, 4, 10, 0, 0, 0, time.UTC)

func d(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func mkTrade(id, symbol, pnl string, exit time.Time, tags ...string) models.Trade {
	return models.Trade{
		ID:            id,
		Symbol:        symbol,
		Direction:     models.DirectionLong,
		EntryPrice:    d("100"),
		ExitPrice:     d("100"),
		Quantity:      d("1"),
		EntryTime:     exit.Add(-10 * time.Minute),
		ExitTime:      exit,
		PnL:           d(pnl),
		Tags:          tags,
		PlanAdherence: models.PlanNotRated,
	}
}

type stubGenerator struct {
	insights []Insight
	err      error
	panicMsg string
	seen     ReportData
}

func (s *stubGenerator) Name() string { return "stub" }

func (s *stubGenerator) Generate(_ context.Context, data ReportData) ([]Insight, error) {
	s.seen = data
	if s.panicMsg != "" {
		panic(s.panicMsg)
	}
	return s.insights, s.err
}

func sampleInput() Input {
	return Input{
		TradesBySymbol: map[string][]models.Trade{
			"TCS":  {mkTrade("2", "TCS", "-50", t0.Add(time.Hour))},
			"INFY": {mkTrade("1", "INFY", "100", t0), mkTrade("3", "INFY", "200", t0.Add(2*time.Hour))},
		},
		CurrentBalance: d("1250"),
	}
}

func TestBuildDerivesStartingBalanceAndEquityCurve(t *testing.T) {
	gen := &stubGenerator{insights: []Insight{{Title: "Cut losers sooner"}}}
	agg := NewAggregator(Config{}, gen, zerolog.Nop())

	data := agg.Build(context.Background(), sampleInput())

	require.NotEmpty(t, data.ID)
	assert.True(t, data.StartingBalance.Equal(d("1000")))
	assert.Equal(t, 3, data.TradeCount)
	assert.Equal(t, []string{"INFY", "TCS"}, data.Symbols)

	var balances []string
	for _, p := range data.Overall.EquityCurve {
		balances = append(balances, p.Balance.String())
	}
	assert.Equal(t, []string{"1000", "1100", "1050", "1250"}, balances)
	assert.True(t, data.Overall.MaxDrawdown.Equal(d("-50")))
	assert.True(t, data.Overall.MaxRunup.Equal(d("200")))

	assert.Len(t, data.Daily, 1)
	assert.Len(t, data.Hourly, 3)
	assert.Nil(t, data.Efficiency)

	assert.True(t, data.InsightsComplete)
	assert.Equal(t, "Cut losers sooner", data.Insights[0].Title)
	assert.True(t, gen.seen.Overall.TotalPnL.Equal(d("250")), "generator sees the numeric report")
}

func TestBuildIsolatesInsightFailure(t *testing.T) {
	tests := []struct {
		name string
		gen  *stubGenerator
	}{
		{"error", &stubGenerator{err: errors.New("rate limited")}},
		{"panic", &stubGenerator{panicMsg: "nil map"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			agg := NewAggregator(Config{}, tt.gen, zerolog.Nop())
			data := agg.Build(context.Background(), sampleInput())

			assert.False(t, data.InsightsComplete)
			require.Len(t, data.Insights, 1)
			assert.Equal(t, PlaceholderInsight(), data.Insights[0])
			assert.True(t, data.Overall.TotalPnL.Equal(d("250")))
			assert.Len(t, data.Overall.EquityCurve, 4)
		})
	}
}

type slowGenerator struct{}

func (slowGenerator) Name() string { return "slow" }

func (slowGenerator) Generate(ctx context.Context, _ ReportData) ([]Insight, error) {
	<-ctx.Done()
	return nil, ctx.Err()
}

func TestBuildInsightTimeout(t *testing.T) {
	agg := NewAggregator(Config{InsightTimeout: 10 * time.Millisecond}, slowGenerator{}, zerolog.Nop())
	data := agg.Build(context.Background(), sampleInput())
	assert.False(t, data.InsightsComplete)
	assert.Equal(t, "Analysis incomplete", data.Insights[0].Title)
}

func TestInsightErrorMatchesSentinel(t *testing.T) {
	err := apperrors.NewInsightError("stub", errors.New("x"))
	assert.ErrorIs(t, err, apperrors.ErrInsightGeneration)
}

func TestBuildEmptyInput(t *testing.T) {
	agg := NewAggregator(Config{}, nil, zerolog.Nop())
	data := agg.Build(context.Background(), Input{CurrentBalance: d("5000")})

	assert.Equal(t, 0, data.TradeCount)
	assert.True(t, data.StartingBalance.Equal(d("5000")))
	assert.True(t, data.Overall.EndBalance.Equal(d("5000")))
	assert.Empty(t, data.Overall.EquityCurve)
	assert.Empty(t, data.Daily)
	assert.Empty(t, data.Histogram.Bins)
	assert.Empty(t, data.Mistakes)
	assert.NotNil(t, data.Insights)
	assert.True(t, data.InsightsComplete)
}

func TestBuildWithBarsIncludesEfficiency(t *testing.T) {
	in := sampleInput()
	in.Bars = map[string]models.BarSeries{
		"INFY": {
			{Timestamp: t0.Add(-5 * time.Minute), High: d("400"), Low: d("99")},
		},
	}
	agg := NewAggregator(Config{}, nil, zerolog.Nop())
	data := agg.Build(context.Background(), in)

	require.NotNil(t, data.Efficiency)
	assert.Equal(t, 1, data.Efficiency.AnalyzedTrades)
	assert.Equal(t, 2, data.Efficiency.SkippedTrades)
}

func TestPnLHistogram(t *testing.T) {
	trades := []models.Trade{
		mkTrade("a", "X", "-50", t0),
		mkTrade("b", "X", "0", t0),
		mkTrade("c", "X", "50", t0),
		mkTrade("d", "X", "100", t0),
	}
	h := PnLHistogram(trades, 3)

	require.Len(t, h.Bins, 3)
	assert.Equal(t, []int{1, 1, 2}, []int{h.Bins[0].Count, h.Bins[1].Count, h.Bins[2].Count})
	assert.True(t, h.Bins[0].Lower.Equal(d("-50")))
	assert.True(t, h.Bins[2].Upper.Equal(d("100")))
	assert.True(t, h.Bins[2].TotalPnL.Equal(d("150")))
	assert.InDelta(t, 25.0, h.Mean, 1e-9)
	assert.Greater(t, h.StdDev, 0.0)
	assert.Equal(t, 4, h.Count)
}

func TestPnLHistogramSingleValue(t *testing.T) {
	h := PnLHistogram([]models.Trade{mkTrade("a", "X", "10", t0), mkTrade("b", "X", "10", t0)}, 5)
	require.Len(t, h.Bins, 1)
	assert.Equal(t, 2, h.Bins[0].Count)
	assert.Equal(t, 0.0, h.StdDev)
	assert.Equal(t, 0.0, h.Skewness)
}

func TestMistakeAnalyzer(t *testing.T) {
	major := mkTrade("c", "X", "-30", t0, "fomo")
	major.PlanAdherence = models.PlanMajorDeviation
	trades := []models.Trade{
		mkTrade("a", "X", "-20", t0, analytics.TagLetLoserRun, "FOMO"),
		mkTrade("b", "X", "40", t0, analytics.TagLeftMoney),
		major,
		mkTrade("d", "X", "10", t0, "Breakout"),
	}

	got := MistakeAnalyzer{Tags: []string{"FOMO"}}.Analyze(trades)
	require.Len(t, got, 4)
	assert.Equal(t, "FOMO", got[0].Name)
	assert.Equal(t, 2, got[0].Count)
	assert.True(t, got[0].PnLImpact.Equal(d("-50")))
	assert.Equal(t, SourceUserTag, got[0].Source)

	names := []string{got[1].Name, got[2].Name, got[3].Name}
	assert.Equal(t, []string{analytics.TagLeftMoney, analytics.TagLetLoserRun, string(models.PlanMajorDeviation)}, names)
}

func TestMsgpackRoundTrip(t *testing.T) {
	agg := NewAggregator(Config{}, nil, zerolog.Nop())
	data := agg.Build(context.Background(), sampleInput())

	var buf bytes.Buffer
	require.NoError(t, EncodeMsgpack(&buf, data))
	back, err := DecodeMsgpack(&buf)
	require.NoError(t, err)

	assert.Equal(t, data.ID, back.ID)
	assert.True(t, data.Overall.TotalPnL.Equal(back.Overall.TotalPnL))
	assert.Len(t, back.Overall.EquityCurve, 4)
	assert.True(t, data.GeneratedAt.Equal(back.GeneratedAt))
}
