package models

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Trade represents a closed trade. Trades are immutable once closed and are
// only read by the analytics packages.
type Trade struct {
	ID            string          `json:"id"`
	Symbol        string          `json:"symbol"`
	Direction     Direction       `json:"direction"`
	EntryPrice    decimal.Decimal `json:"entry_price"`
	ExitPrice     decimal.Decimal `json:"exit_price"`
	Quantity      decimal.Decimal `json:"quantity"`
	EntryTime     time.Time       `json:"entry_time"`
	ExitTime      time.Time       `json:"exit_time"`
	PnL           decimal.Decimal `json:"pnl"`
	Fee           decimal.Decimal `json:"fee"`
	Tags          []string        `json:"tags,omitempty"`
	PlanAdherence PlanAdherence   `json:"plan_adherence"`
	Notes         string          `json:"notes,omitempty"`
}

// Duration returns the holding time of the trade.
func (t Trade) Duration() time.Duration {
	return t.ExitTime.Sub(t.EntryTime)
}

// IsWin reports whether the trade closed with positive pnl.
func (t Trade) IsWin() bool {
	return t.PnL.IsPositive()
}

// IsLoss reports whether the trade closed with negative pnl.
func (t Trade) IsLoss() bool {
	return t.PnL.IsNegative()
}

// HasTag reports whether the trade carries the tag (case-insensitive).
func (t Trade) HasTag(tag string) bool {
	for _, existing := range t.Tags {
		if strings.EqualFold(strings.TrimSpace(existing), tag) {
			return true
		}
	}
	return false
}

// UniqueTags returns the trimmed, de-duplicated tags in their original order.
func (t Trade) UniqueTags() []string {
	if len(t.Tags) == 0 {
		return nil
	}
	seen := make(map[string]struct{}, len(t.Tags))
	out := make([]string, 0, len(t.Tags))
	for _, tag := range t.Tags {
		tag = strings.TrimSpace(tag)
		if tag == "" {
			continue
		}
		if _, ok := seen[tag]; ok {
			continue
		}
		seen[tag] = struct{}{}
		out = append(out, tag)
	}
	return out
}

// Validate checks the invariants the trading subsystem guarantees for closed trades.
func (t Trade) Validate() error {
	if strings.TrimSpace(t.Symbol) == "" {
		return fmt.Errorf("trade %s: symbol is required", t.ID)
	}
	if t.Direction != DirectionLong && t.Direction != DirectionShort {
		return fmt.Errorf("trade %s: invalid direction %q", t.ID, t.Direction)
	}
	if !t.Quantity.IsPositive() {
		return fmt.Errorf("trade %s: quantity must be positive", t.ID)
	}
	if t.ExitTime.Before(t.EntryTime) {
		return fmt.Errorf("trade %s: exit time before entry time", t.ID)
	}
	return nil
}

// GroupBySymbol partitions trades by symbol, preserving input order.
func GroupBySymbol(trades []Trade) map[string][]Trade {
	out := make(map[string][]Trade)
	for _, t := range trades {
		out[t.Symbol] = append(out[t.Symbol], t)
	}
	return out
}

// Symbols returns the sorted keys of a grouped trade map.
func Symbols(bySymbol map[string][]Trade) []string {
	keys := make([]string, 0, len(bySymbol))
	for k := range bySymbol {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
