package bars

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/shopspring/decimal"
	kiteconnect "github.com/zerodha/gokiteconnect/v4"
	"golang.org/x/time/rate"

	apperrors "trade-analytics/internal/errors"
	"trade-analytics/internal/models"
)

// Kite caps a single intraday historical request at this span.
const kiteMaxSpan = 60 * 24 * time.Hour

// kiteClient is the part of the Kite Connect client used for history.
type kiteClient interface {
	GetHistoricalData(instrumentToken int, interval string, fromDate, toDate time.Time, continuous, oi bool) ([]kiteconnect.HistoricalData, error)
	GetInstruments() (kiteconnect.Instruments, error)
}

// KiteConfig holds configuration for the Kite Connect bar provider.
type KiteConfig struct {
	APIKey            string
	AccessToken       string
	Exchange          string
	Instruments       map[string]int // symbol -> instrument token overrides
	RequestsPerSecond float64
}

// KiteProvider fetches minute candles from Zerodha Kite Connect.
type KiteProvider struct {
	client   kiteClient
	exchange string
	limiter  *rate.Limiter

	mu     sync.RWMutex
	tokens map[string]int
	loaded bool
}

// NewKiteProvider creates a provider backed by the Kite Connect REST API.
func NewKiteProvider(cfg KiteConfig) *KiteProvider {
	client := kiteconnect.New(cfg.APIKey)
	if cfg.AccessToken != "" {
		client.SetAccessToken(cfg.AccessToken)
	}
	return newKiteProvider(client, cfg)
}

func newKiteProvider(client kiteClient, cfg KiteConfig) *KiteProvider {
	exchange := cfg.Exchange
	if exchange == "" {
		exchange = "NSE"
	}
	rps := cfg.RequestsPerSecond
	if rps <= 0 {
		rps = 3
	}
	tokens := make(map[string]int, len(cfg.Instruments))
	for symbol, token := range cfg.Instruments {
		tokens[strings.ToUpper(symbol)] = token
	}
	return &KiteProvider{
		client:   client,
		exchange: exchange,
		limiter:  rate.NewLimiter(rate.Limit(rps), 1),
		tokens:   tokens,
	}
}

// Bars fetches candles for symbol, splitting the range into spans Kite accepts.
func (k *KiteProvider) Bars(ctx context.Context, symbol string, from, to time.Time, granularity time.Duration) ([]models.PriceBar, error) {
	token, err := k.instrumentToken(ctx, symbol)
	if err != nil {
		return nil, err
	}
	interval := kiteInterval(granularity)

	var out []models.PriceBar
	for start := from; !start.After(to); {
		end := start.Add(kiteMaxSpan)
		if end.After(to) {
			end = to
		}

		if err := k.limiter.Wait(ctx); err != nil {
			return nil, err
		}
		data, err := k.client.GetHistoricalData(token, interval, start, end, false, false)
		if err != nil {
			return nil, fmt.Errorf("failed to get historical data for %s: %w", symbol, err)
		}
		for _, d := range data {
			out = append(out, models.PriceBar{
				Timestamp: d.Date.Time,
				Open:      decimal.NewFromFloat(d.Open),
				High:      decimal.NewFromFloat(d.High),
				Low:       decimal.NewFromFloat(d.Low),
				Close:     decimal.NewFromFloat(d.Close),
			})
		}

		if !end.Before(to) {
			break
		}
		start = end.Add(time.Second)
	}
	return out, nil
}

func (k *KiteProvider) instrumentToken(ctx context.Context, symbol string) (int, error) {
	key := strings.ToUpper(symbol)

	k.mu.RLock()
	token, ok := k.tokens[key]
	loaded := k.loaded
	k.mu.RUnlock()
	if ok {
		return token, nil
	}
	if loaded {
		return 0, fmt.Errorf("%w: %s", apperrors.ErrInstrumentNotFound, symbol)
	}

	if err := k.limiter.Wait(ctx); err != nil {
		return 0, err
	}
	instruments, err := k.client.GetInstruments()
	if err != nil {
		return 0, fmt.Errorf("failed to get instruments: %w", err)
	}

	k.mu.Lock()
	for _, inst := range instruments {
		if inst.Exchange != k.exchange {
			continue
		}
		sym := strings.ToUpper(inst.Tradingsymbol)
		if _, exists := k.tokens[sym]; !exists {
			k.tokens[sym] = inst.InstrumentToken
		}
	}
	k.loaded = true
	token, ok = k.tokens[key]
	k.mu.Unlock()

	if !ok {
		return 0, fmt.Errorf("%w: %s", apperrors.ErrInstrumentNotFound, symbol)
	}
	return token, nil
}

func kiteInterval(granularity time.Duration) string {
	switch {
	case granularity >= 24*time.Hour:
		return "day"
	case granularity >= time.Hour:
		return "60minute"
	case granularity >= 30*time.Minute:
		return "30minute"
	case granularity >= 15*time.Minute:
		return "15minute"
	case granularity >= 10*time.Minute:
		return "10minute"
	case granularity >= 5*time.Minute:
		return "5minute"
	case granularity >= 3*time.Minute:
		return "3minute"
	default:
		return "minute"
	}
}
