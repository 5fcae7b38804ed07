package bars

import (
	"context"
	"time"

	"trade-analytics/internal/models"
)

// BarReader is the slice of the data store that serves cached bars.
type BarReader interface {
	GetBars(ctx context.Context, symbol string, granularity time.Duration, from, to time.Time) ([]models.PriceBar, error)
}

// StoreProvider serves bars previously saved to the local database.
type StoreProvider struct {
	Reader BarReader
}

// Bars reads bars from the store.
func (p StoreProvider) Bars(ctx context.Context, symbol string, from, to time.Time, granularity time.Duration) ([]models.PriceBar, error) {
	return p.Reader.GetBars(ctx, symbol, granularity, from, to)
}
