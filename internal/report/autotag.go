package report

import (
	"context"
	"fmt"

	"trade-analytics/internal/analytics"
	"trade-analytics/internal/logging"
	"trade-analytics/internal/models"
)

// BarSource fetches bars for a batch of trades in one pass.
type BarSource interface {
	FetchForTrades(ctx context.Context, trades []models.Trade) map[string]models.BarSeries
}

// TagWriter persists a trade's tag list.
type TagWriter interface {
	UpdateTradeTags(ctx context.Context, tradeID string, tags []string) error
}

// TagChange describes the automated tags applied to one trade.
type TagChange struct {
	TradeID string   `json:"trade_id"`
	Symbol  string   `json:"symbol"`
	Auto    []string `json:"auto"`
	Tags    []string `json:"tags"`
	Changed bool     `json:"changed"`
}

// ApplyAutoTags returns copies of trades whose automated tags are replaced by
// freshly derived ones. User tags are kept in their original order.
func ApplyAutoTags(tagger analytics.Tagger, trades []models.Trade, bars map[string]models.BarSeries) ([]models.Trade, []TagChange) {
	out := make([]models.Trade, len(trades))
	changes := make([]TagChange, len(trades))

	for i, t := range trades {
		auto := tagger.Tags(t, bars[t.Symbol].ForTrade(t))

		var tags []string
		for _, tag := range t.UniqueTags() {
			if !analytics.IsAutomatedTag(tag) {
				tags = append(tags, tag)
			}
		}
		tags = append(tags, auto...)

		t.Tags = tags
		out[i] = t
		changes[i] = TagChange{
			TradeID: t.ID,
			Symbol:  t.Symbol,
			Auto:    auto,
			Tags:    tags,
			Changed: !sameTags(trades[i].Tags, tags),
		}
	}
	return out, changes
}

// AutoTag derives automated tags for every trade using one bar fetch per
// symbol and persists the trades whose tags changed.
func AutoTag(ctx context.Context, tagger analytics.Tagger, trades []models.Trade, src BarSource, w TagWriter) ([]TagChange, error) {
	var bars map[string]models.BarSeries
	if src != nil {
		bars = src.FetchForTrades(ctx, trades)
	}

	logger := logging.FromContext(ctx)
	_, changes := ApplyAutoTags(tagger, trades, bars)
	for _, c := range changes {
		if !c.Changed {
			continue
		}
		if err := w.UpdateTradeTags(ctx, c.TradeID, c.Tags); err != nil {
			return changes, fmt.Errorf("failed to tag trade %s: %w", c.TradeID, err)
		}
		tradeLogger := logging.WithTradeID(logger, c.TradeID)
		tradeLogger.Debug().Strs("auto", c.Auto).Msg("Trade retagged")
	}
	return changes, nil
}

func sameTags(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
