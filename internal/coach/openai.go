// Package coach generates coaching insights for a report using an LLM.
package coach

import (
	"context"
	"fmt"
	"strings"

	"github.com/sashabaranov/go-openai"

	"trade-analytics/internal/report"
)

// DefaultModel is used when no model is configured.
const DefaultModel = openai.GPT4oMini

const maxInsights = 6

const systemPrompt = `You are a trading performance coach. You receive statistics computed from a trader's closed trades.
Reply with between 3 and 6 insights, one per line, in exactly this format:
INSIGHT: <strength|weakness|action> | <info|warning|critical> | <short title> | <one or two sentence detail>
Refer to the numbers you were given. Do not invent statistics. Do not add any other text.`

// ChatClient is the part of the OpenAI client used by the generator.
type ChatClient interface {
	CreateChatCompletion(ctx context.Context, req openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error)
}

// OpenAIGenerator implements report.InsightGenerator with a chat completion.
type OpenAIGenerator struct {
	client ChatClient
	model  string
}

// NewOpenAIGenerator creates a generator backed by the OpenAI API.
func NewOpenAIGenerator(apiKey, model string) *OpenAIGenerator {
	return NewGenerator(openai.NewClient(apiKey), model)
}

// NewGenerator creates a generator around any chat client.
func NewGenerator(client ChatClient, model string) *OpenAIGenerator {
	if model == "" {
		model = DefaultModel
	}
	return &OpenAIGenerator{client: client, model: model}
}

// Name identifies the generator in logs.
func (g *OpenAIGenerator) Name() string {
	return "openai:" + g.model
}

// Generate asks the model for insights about data.
func (g *OpenAIGenerator) Generate(ctx context.Context, data report.ReportData) ([]report.Insight, error) {
	resp, err := g.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       g.model,
		Temperature: 0.2,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: systemPrompt},
			{Role: openai.ChatMessageRoleUser, Content: BuildPrompt(data)},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("openai completion failed: %w", err)
	}
	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("no response from openai")
	}
	return ParseInsights(resp.Choices[0].Message.Content)
}

// BuildPrompt renders the numeric report as compact text for the model.
func BuildPrompt(data report.ReportData) string {
	var b strings.Builder
	o := data.Overall

	fmt.Fprintf(&b, "Trades: %d (%d wins, %d losses, %d breakeven)\n", o.TotalTrades, o.WinningTrades, o.LosingTrades, o.BreakevenTrades)
	fmt.Fprintf(&b, "Balance: %s -> %s, total pnl %s, fees %s\n", o.StartingBalance.StringFixed(2), o.EndBalance.StringFixed(2), o.TotalPnL.StringFixed(2), o.TotalFees.StringFixed(2))
	fmt.Fprintf(&b, "Win rate: %s%%, profit factor %s, expectancy %s\n", o.WinRate.Shift(2).StringFixed(2), o.ProfitFactor.StringFixed(2), o.Expectancy.StringFixed(2))
	fmt.Fprintf(&b, "Avg win %s, avg loss %s, risk/reward %s\n", o.AvgWinPnL.StringFixed(2), o.AvgLossPnL.StringFixed(2), o.AvgRiskReward.StringFixed(2))
	fmt.Fprintf(&b, "Max drawdown %s, max run-up %s\n", o.MaxDrawdown.StringFixed(2), o.MaxRunup.StringFixed(2))
	fmt.Fprintf(&b, "Streaks: longest win %d, longest loss %d; avg hold %s\n", o.LongestWinStreak, o.LongestLossStreak, o.AvgTradeDuration())

	if len(data.Hourly) > 0 {
		b.WriteString("By exit hour (hour: trades, pnl, expectancy):\n")
		for _, h := range data.Hourly {
			fmt.Fprintf(&b, "  %02d: %d, %s, %s\n", h.Hour, h.TradeCount, h.TotalPnL.StringFixed(2), h.Expectancy.StringFixed(2))
		}
	}
	if len(data.Cohorts) > 0 {
		b.WriteString("By trades per day (n: days, pnl per day, expectancy):\n")
		for _, c := range data.Cohorts {
			fmt.Fprintf(&b, "  %d: %d, %s, %s\n", c.TradesPerDay, c.DayCount, c.AvgPnLPerDay.StringFixed(2), c.Expectancy.StringFixed(2))
		}
	}
	if len(data.Tags) > 0 {
		b.WriteString("By tag (tag: trades, win rate, profit factor, expectancy):\n")
		for i, t := range data.Tags {
			if i == 10 {
				break
			}
			fmt.Fprintf(&b, "  %s: %d, %s%%, %s, %s\n", t.Tag, t.TradeCount, t.WinRate.Shift(2).StringFixed(1), t.ProfitFactor.StringFixed(2), t.Expectancy.StringFixed(2))
		}
	}
	if len(data.Mistakes) > 0 {
		b.WriteString("Recurring mistakes (name: count, pnl impact):\n")
		for _, m := range data.Mistakes {
			fmt.Fprintf(&b, "  %s: %d, %s\n", m.Name, m.Count, m.PnLImpact.StringFixed(2))
		}
	}
	if e := data.Efficiency; e != nil && e.AnalyzedTrades > 0 {
		fmt.Fprintf(&b, "Exit efficiency %s (winners captured this share of their best price), pain ratio %s, left on table %s\n",
			e.AvgExitEfficiency.StringFixed(2), e.AvgPainRatio.StringFixed(2), e.LeftOnTable.StringFixed(2))
	}
	return b.String()
}

// ParseInsights reads INSIGHT lines from a model response.
func ParseInsights(response string) ([]report.Insight, error) {
	var out []report.Insight
	for _, line := range strings.Split(response, "\n") {
		line = strings.TrimSpace(strings.TrimLeft(strings.TrimSpace(line), "-*"))
		if !strings.HasPrefix(strings.ToUpper(line), "INSIGHT:") {
			continue
		}
		parts := strings.SplitN(strings.TrimSpace(line[len("INSIGHT:"):]), "|", 4)
		if len(parts) < 4 {
			continue
		}
		for i := range parts {
			parts[i] = strings.TrimSpace(parts[i])
		}
		if parts[2] == "" {
			continue
		}
		out = append(out, report.Insight{
			Category: normalize(parts[0], report.CategoryAction, report.CategoryStrength, report.CategoryWeakness, report.CategoryAction),
			Severity: normalize(parts[1], report.SeverityInfo, report.SeverityInfo, report.SeverityWarning, report.SeverityCritical),
			Title:    parts[2],
			Detail:   parts[3],
		})
		if len(out) == maxInsights {
			break
		}
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("no insights in model response")
	}
	return out, nil
}

func normalize(v, fallback string, allowed ...string) string {
	v = strings.ToLower(v)
	for _, a := range allowed {
		if v == a {
			return v
		}
	}
	return fallback
}
