package report

import (
	"math"

	"github.com/shopspring/decimal"
	"gonum.org/v1/gonum/stat"

	"trade-analytics/internal/models"
)

// DefaultHistogramBins is used when a non-positive bin count is requested.
const DefaultHistogramBins = 10

// HistogramBin counts trades whose pnl falls in [Lower, Upper). The last bin
// is closed at Upper.
type HistogramBin struct {
	Lower    decimal.Decimal `json:"lower"`
	Upper    decimal.Decimal `json:"upper"`
	Count    int             `json:"count"`
	TotalPnL decimal.Decimal `json:"total_pnl"`
}

// Histogram is the distribution of per-trade pnl. The moments are floats
// for display only.
type Histogram struct {
	Bins     []HistogramBin `json:"bins"`
	Count    int            `json:"count"`
	Mean     float64        `json:"mean"`
	StdDev   float64        `json:"std_dev"`
	Skewness float64        `json:"skewness"`
}

// PnLHistogram buckets trade pnl into equal-width bins between the smallest
// and largest value. A history with a single distinct pnl gets one bin.
func PnLHistogram(trades []models.Trade, bins int) Histogram {
	h := Histogram{Bins: []HistogramBin{}}
	if len(trades) == 0 {
		return h
	}
	if bins <= 0 {
		bins = DefaultHistogramBins
	}

	lo, hi := trades[0].PnL, trades[0].PnL
	values := make([]float64, len(trades))
	for i, t := range trades {
		if t.PnL.LessThan(lo) {
			lo = t.PnL
		}
		if t.PnL.GreaterThan(hi) {
			hi = t.PnL
		}
		values[i] = t.PnL.InexactFloat64()
	}

	h.Count = len(trades)
	h.Mean = stat.Mean(values, nil)
	if len(values) > 1 {
		h.StdDev = finite(stat.StdDev(values, nil))
		if h.StdDev > 0 {
			h.Skewness = finite(stat.Skew(values, nil))
		}
	}

	if lo.Equal(hi) {
		h.Bins = append(h.Bins, HistogramBin{Lower: lo, Upper: hi, Count: len(trades), TotalPnL: sumPnL(trades)})
		return h
	}

	width := hi.Sub(lo).Div(decimal.NewFromInt(int64(bins)))
	h.Bins = make([]HistogramBin, bins)
	for i := range h.Bins {
		h.Bins[i] = HistogramBin{
			Lower:    lo.Add(width.Mul(decimal.NewFromInt(int64(i)))),
			Upper:    lo.Add(width.Mul(decimal.NewFromInt(int64(i + 1)))),
			TotalPnL: decimal.Zero,
		}
	}
	h.Bins[bins-1].Upper = hi

	for _, t := range trades {
		idx := int(t.PnL.Sub(lo).Div(width).Floor().IntPart())
		if idx >= bins {
			idx = bins - 1
		}
		if idx < 0 {
			idx = 0
		}
		h.Bins[idx].Count++
		h.Bins[idx].TotalPnL = h.Bins[idx].TotalPnL.Add(t.PnL)
	}
	return h
}

func sumPnL(trades []models.Trade) decimal.Decimal {
	total := decimal.Zero
	for _, t := range trades {
		total = total.Add(t.PnL)
	}
	return total
}

func finite(f float64) float64 {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0
	}
	return f
}
