package bars

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"trade-analytics/internal/models"
)

// BarStore reads and writes cached bars.
type BarStore interface {
	BarReader
	SaveBars(ctx context.Context, symbol string, granularity time.Duration, bars []models.PriceBar) error
}

// CachedProvider serves bars from the local store when they cover the
// requested range and otherwise fetches from the upstream provider and saves
// the result. A failed upstream fetch falls back to whatever is cached.
type CachedProvider struct {
	store    BarStore
	upstream Provider
	logger   zerolog.Logger
}

// NewCachedProvider creates a read-through cache in front of upstream.
func NewCachedProvider(store BarStore, upstream Provider, logger zerolog.Logger) *CachedProvider {
	return &CachedProvider{store: store, upstream: upstream, logger: logger}
}

// Bars implements Provider.
func (c *CachedProvider) Bars(ctx context.Context, symbol string, from, to time.Time, granularity time.Duration) ([]models.PriceBar, error) {
	cached, err := c.store.GetBars(ctx, symbol, granularity, from, to)
	if err != nil {
		c.logger.Warn().Err(err).Str("symbol", symbol).Msg("failed to read cached bars")
		cached = nil
	}
	if covers(cached, from, to, granularity) {
		return cached, nil
	}

	bars, err := c.upstream.Bars(ctx, symbol, from, to, granularity)
	if err != nil {
		if len(cached) > 0 {
			c.logger.Warn().Err(err).Str("symbol", symbol).Int("cached", len(cached)).Msg("using cached bars after fetch failure")
			return cached, nil
		}
		return nil, err
	}

	if err := c.store.SaveBars(ctx, symbol, granularity, bars); err != nil {
		c.logger.Warn().Err(err).Str("symbol", symbol).Msg("failed to cache bars")
	}
	return bars, nil
}

// covers reports whether sorted bars span [from, to] to within one bar at each end.
func covers(bars []models.PriceBar, from, to time.Time, granularity time.Duration) bool {
	if len(bars) == 0 {
		return false
	}
	first, last := bars[0].Timestamp, bars[len(bars)-1].Timestamp
	return !first.After(from.Add(granularity)) && !last.Before(to.Add(-granularity))
}
