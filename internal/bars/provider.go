// Package bars retrieves intrabar price history for excursion analysis.
//
// Retrieval is the only slow, fallible step feeding the analytics. The
// Fetcher wraps any Provider with a timeout and a circuit breaker, batches
// requests to one union range per symbol, and turns every failure into an
// empty series so downstream metrics fall back to zero excursion.
package bars

import (
	"context"
	"sort"
	"time"

	"github.com/rs/zerolog"

	apperrors "trade-analytics/internal/errors"
	"trade-analytics/internal/logging"
	"trade-analytics/internal/models"
	"trade-analytics/internal/resilience"
)

// Provider supplies ordered price bars for a symbol over [from, to].
type Provider interface {
	Bars(ctx context.Context, symbol string, from, to time.Time, granularity time.Duration) ([]models.PriceBar, error)
}

// ProviderFunc adapts a function to Provider.
type ProviderFunc func(ctx context.Context, symbol string, from, to time.Time, granularity time.Duration) ([]models.PriceBar, error)

// Bars calls f.
func (f ProviderFunc) Bars(ctx context.Context, symbol string, from, to time.Time, granularity time.Duration) ([]models.PriceBar, error) {
	return f(ctx, symbol, from, to, granularity)
}

// NoopProvider never returns bars. It is used when no price source is configured.
type NoopProvider struct{}

// Bars returns nothing.
func (NoopProvider) Bars(context.Context, string, time.Time, time.Time, time.Duration) ([]models.PriceBar, error) {
	return nil, nil
}

// Range is a closed time interval.
type Range struct {
	From time.Time
	To   time.Time
}

// UnionRanges returns, per symbol, the smallest range covering every trade's
// holding period.
func UnionRanges(trades []models.Trade) map[string]Range {
	out := make(map[string]Range)
	for _, t := range trades {
		r, ok := out[t.Symbol]
		if !ok {
			out[t.Symbol] = Range{From: t.EntryTime, To: t.ExitTime}
			continue
		}
		if t.EntryTime.Before(r.From) {
			r.From = t.EntryTime
		}
		if t.ExitTime.After(r.To) {
			r.To = t.ExitTime
		}
		out[t.Symbol] = r
	}
	return out
}

// FetcherConfig configures the retrieval boundary.
type FetcherConfig struct {
	Timeout     time.Duration // per provider call; zero disables the timeout
	Granularity time.Duration
	Breaker     resilience.CircuitBreakerConfig
}

// DefaultFetcherConfig returns the default retrieval settings.
func DefaultFetcherConfig() FetcherConfig {
	return FetcherConfig{
		Timeout:     15 * time.Second,
		Granularity: models.DefaultGranularity,
		Breaker:     resilience.DefaultCircuitBreakerConfig(),
	}
}

// Fetcher retrieves bars without ever failing the caller.
type Fetcher struct {
	provider    Provider
	timeout     time.Duration
	granularity time.Duration
	breaker     *resilience.CircuitBreaker
	logger      zerolog.Logger
}

// NewFetcher creates a fetcher around provider.
func NewFetcher(provider Provider, cfg FetcherConfig, logger zerolog.Logger) *Fetcher {
	if provider == nil {
		provider = NoopProvider{}
	}
	if cfg.Granularity <= 0 {
		cfg.Granularity = models.DefaultGranularity
	}
	return &Fetcher{
		provider:    provider,
		timeout:     cfg.Timeout,
		granularity: cfg.Granularity,
		breaker:     resilience.NewCircuitBreaker("bars", cfg.Breaker),
		logger:      logging.WithOperation(logger, "bar_fetch"),
	}
}

// Fetch returns the sorted bars for symbol over [from, to]. Errors, timeouts
// and an open circuit are logged and yield an empty series.
func (f *Fetcher) Fetch(ctx context.Context, symbol string, from, to time.Time) models.BarSeries {
	if to.Before(from) {
		return nil
	}
	if f.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, f.timeout)
		defer cancel()
	}

	started := time.Now()
	bars, err := resilience.Execute(ctx, f.breaker, func() ([]models.PriceBar, error) {
		return f.provider.Bars(ctx, symbol, from, to, f.granularity)
	})
	if err != nil {
		if apperrors.Is(err, context.DeadlineExceeded) {
			err = apperrors.Wrap(apperrors.ErrTimeout, err.Error())
		}
		logging.LogBarFetch(f.logger, symbol, from, to, 0, time.Since(started),
			apperrors.NewDataError("bars", symbol, apperrors.ErrBarFetch.Error(), err))
		return nil
	}

	series := models.SortBars(bars)
	logging.LogBarFetch(f.logger, symbol, from, to, len(series), time.Since(started), nil)
	return series
}

// FetchForTrades issues one request per symbol covering all of that symbol's
// trades. Symbols whose fetch failed map to an empty series.
func (f *Fetcher) FetchForTrades(ctx context.Context, trades []models.Trade) map[string]models.BarSeries {
	ranges := UnionRanges(trades)

	symbols := make([]string, 0, len(ranges))
	for s := range ranges {
		symbols = append(symbols, s)
	}
	sort.Strings(symbols)

	out := make(map[string]models.BarSeries, len(symbols))
	for _, symbol := range symbols {
		r := ranges[symbol]
		out[symbol] = f.Fetch(ctx, symbol, r.From, r.To)
	}
	return out
}

// BreakerState reports the state of the provider circuit.
func (f *Fetcher) BreakerState() resilience.CircuitState {
	return f.breaker.State()
}
