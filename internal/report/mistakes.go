package report

import (
	"sort"
	"strings"

	"github.com/shopspring/decimal"

	"trade-analytics/internal/analytics"
	"trade-analytics/internal/models"
)

// Mistake sources.
const (
	SourceAutoTag = "auto_tag"
	SourcePlan    = "plan"
	SourceUserTag = "user_tag"
)

// Mistake is how often one recurring error occurred and what it cost.
type Mistake struct {
	Name      string          `json:"name"`
	Source    string          `json:"source"`
	Count     int             `json:"count"`
	PnLImpact decimal.Decimal `json:"pnl_impact"` // summed pnl of the affected trades
}

// negativeAutoTags are the automated tags that describe an execution error.
var negativeAutoTags = []string{
	analytics.TagLeftMoney,
	analytics.TagLetLoserRun,
	analytics.TagOutOfHours,
}

// DefaultMistakeTags are user tags counted as mistakes when none are configured.
var DefaultMistakeTags = []string{"FOMO", "Revenge", "Overtrading", "Chased", "Moved Stop"}

// MistakeAnalyzer counts recurring mistakes: negative automated tags, plan
// deviations and user tags from a configured set (matched case-insensitively).
type MistakeAnalyzer struct {
	Tags []string
}

// Analyze returns one entry per mistake seen, most frequent first.
func (m MistakeAnalyzer) Analyze(trades []models.Trade) []Mistake {
	counts := make(map[string]*Mistake)
	add := func(name, source string, pnl decimal.Decimal) {
		mk, ok := counts[name]
		if !ok {
			mk = &Mistake{Name: name, Source: source, PnLImpact: decimal.Zero}
			counts[name] = mk
		}
		mk.Count++
		mk.PnLImpact = mk.PnLImpact.Add(pnl)
	}

	for _, t := range trades {
		for _, tag := range negativeAutoTags {
			if t.HasTag(tag) {
				add(tag, SourceAutoTag, t.PnL)
			}
		}
		if t.PlanAdherence == models.PlanMajorDeviation || t.PlanAdherence == models.PlanNoPlan {
			add(string(t.PlanAdherence), SourcePlan, t.PnL)
		}
		for _, tag := range m.Tags {
			tag = strings.TrimSpace(tag)
			if tag != "" && t.HasTag(tag) {
				add(tag, SourceUserTag, t.PnL)
			}
		}
	}

	out := make([]Mistake, 0, len(counts))
	for _, mk := range counts {
		out = append(out, *mk)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Count != out[j].Count {
			return out[i].Count > out[j].Count
		}
		return out[i].Name < out[j].Name
	})
	return out
}
