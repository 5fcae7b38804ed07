// Package store provides data persistence interfaces and implementations.
package store

import (
	"context"
	"time"

	"trade-analytics/internal/models"
)

// DataStore defines the interface for data persistence.
type DataStore interface {
	// Trades
	SaveTrades(ctx context.Context, trades []models.Trade) error
	GetTrades(ctx context.Context, filter TradeFilter) ([]models.Trade, error)
	UpdateTradeTags(ctx context.Context, tradeID string, tags []string) error

	// Bars
	SaveBars(ctx context.Context, symbol string, granularity time.Duration, bars []models.PriceBar) error
	GetBars(ctx context.Context, symbol string, granularity time.Duration, from, to time.Time) ([]models.PriceBar, error)

	// Sync
	GetLastSync(dataType string) time.Time
	SetLastSync(dataType string, t time.Time) error

	// Lifecycle
	Close() error
}

// Sync data types recorded by SetLastSync.
const (
	SyncTypeTrades = "trades"
	SyncTypeBars   = "bars"
)

// TradeFilter represents filters for querying trades.
type TradeFilter struct {
	Symbol    string
	StartDate time.Time // inclusive, on exit time
	EndDate   time.Time // inclusive, on exit time
	Tag       string
	Limit     int
}
