package analytics

import (
	"sort"

	"github.com/shopspring/decimal"

	"trade-analytics/internal/models"
)

// TagStats is the performance of every trade carrying one tag.
type TagStats struct {
	Tag          string          `json:"tag"`
	TradeCount   int             `json:"trade_count"`
	TotalPnL     decimal.Decimal `json:"total_pnl"`
	WinRate      decimal.Decimal `json:"win_rate"`
	ProfitFactor decimal.Decimal `json:"profit_factor"`
	Expectancy   decimal.Decimal `json:"expectancy"`
}

// AnalyzeTagPerformance groups trades by tag. The grouping is many-to-many:
// a trade with N distinct tags contributes to N groups. Untagged trades are
// not counted anywhere.
func AnalyzeTagPerformance(trades []models.Trade) map[string]TagStats {
	groups := make(map[string][]models.Trade)
	for _, t := range trades {
		for _, tag := range t.UniqueTags() {
			groups[tag] = append(groups[tag], t)
		}
	}

	out := make(map[string]TagStats, len(groups))
	for tag, group := range groups {
		s := summarize(group)
		out[tag] = TagStats{
			Tag:          tag,
			TradeCount:   s.Count,
			TotalPnL:     s.TotalPnL,
			WinRate:      s.WinRate,
			ProfitFactor: s.ProfitFactor,
			Expectancy:   s.Expectancy,
		}
	}
	return out
}

// SortedTags orders tag stats by trade count, most used first, then by name.
func SortedTags(m map[string]TagStats) []TagStats {
	out := make([]TagStats, 0, len(m))
	for _, v := range m {
		out = append(out, v)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].TradeCount != out[j].TradeCount {
			return out[i].TradeCount > out[j].TradeCount
		}
		return out[i].Tag < out[j].Tag
	})
	return out
}
