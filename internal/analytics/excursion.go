package analytics

import (
	"github.com/shopspring/decimal"

	"trade-analytics/internal/models"
)

// Excursion is the maximum favourable and adverse move reached while a trade
// was open, in account currency (price move times quantity). Both are >= 0.
type Excursion struct {
	MFE decimal.Decimal `json:"mfe"`
	MAE decimal.Decimal `json:"mae"`
}

// CalculateExcursion computes MFE/MAE for one trade from the bars covering
// its holding period. The extremes start at the entry price, so a trade with
// no bars has zero excursion in both directions.
func CalculateExcursion(trade models.Trade, bars []models.PriceBar) Excursion {
	if len(bars) == 0 {
		return Excursion{MFE: decimal.Zero, MAE: decimal.Zero}
	}

	highest := trade.EntryPrice
	lowest := trade.EntryPrice
	for _, b := range bars {
		if b.High.GreaterThan(highest) {
			highest = b.High
		}
		if b.Low.LessThan(lowest) {
			lowest = b.Low
		}
	}

	var mfe, mae decimal.Decimal
	if trade.Direction == models.DirectionShort {
		mfe = trade.EntryPrice.Sub(lowest).Mul(trade.Quantity)
		mae = highest.Sub(trade.EntryPrice).Mul(trade.Quantity)
	} else {
		mfe = highest.Sub(trade.EntryPrice).Mul(trade.Quantity)
		mae = trade.EntryPrice.Sub(lowest).Mul(trade.Quantity)
	}

	return Excursion{
		MFE: clampZero(mfe),
		MAE: clampZero(mae),
	}
}

func clampZero(d decimal.Decimal) decimal.Decimal {
	if d.IsNegative() {
		return decimal.Zero
	}
	return d
}
