package models

import (
	"sort"
	"time"

	"github.com/shopspring/decimal"
)

// DefaultGranularity is the bar size assumed by the excursion analytics.
const DefaultGranularity = time.Minute

// PriceBar represents one intrabar OHLC sample.
type PriceBar struct {
	Timestamp time.Time       `json:"timestamp"`
	Open      decimal.Decimal `json:"open"`
	High      decimal.Decimal `json:"high"`
	Low       decimal.Decimal `json:"low"`
	Close     decimal.Decimal `json:"close"`
}

// BarSeries is a time-ordered sequence of bars for one symbol.
type BarSeries []PriceBar

// SortBars returns the bars ordered by timestamp.
func SortBars(bars []PriceBar) BarSeries {
	out := make(BarSeries, len(bars))
	copy(out, bars)
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Timestamp.Before(out[j].Timestamp)
	})
	return out
}

// Window returns the sub-slice of bars with from <= timestamp <= to.
// The series must be sorted. The result shares the underlying array.
func (s BarSeries) Window(from, to time.Time) BarSeries {
	if len(s) == 0 || to.Before(from) {
		return nil
	}
	lo := sort.Search(len(s), func(i int) bool {
		return !s[i].Timestamp.Before(from)
	})
	hi := sort.Search(len(s), func(i int) bool {
		return s[i].Timestamp.After(to)
	})
	if lo >= hi {
		return nil
	}
	return s[lo:hi]
}

// ForTrade returns the bars covering the trade's holding period.
func (s BarSeries) ForTrade(t Trade) BarSeries {
	return s.Window(t.EntryTime, t.ExitTime)
}
