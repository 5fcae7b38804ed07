package store

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/gocarina/gocsv"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	apperrors "trade-analytics/internal/errors"
	"trade-analytics/internal/models"
)

// csvTrade is one row of a trade journal export.
type csvTrade struct {
	ID            string `csv:"id"`
	Symbol        string `csv:"symbol"`
	Direction     string `csv:"direction"`
	EntryPrice    string `csv:"entry_price"`
	ExitPrice     string `csv:"exit_price"`
	Quantity      string `csv:"quantity"`
	EntryTime     string `csv:"entry_time"`
	ExitTime      string `csv:"exit_time"`
	PnL           string `csv:"pnl"`
	Fee           string `csv:"fee"`
	Tags          string `csv:"tags"`
	PlanAdherence string `csv:"plan_adherence"`
	Notes         string `csv:"notes"`
}

// RowError describes a CSV row that could not be imported.
type RowError struct {
	Line int
	Err  error
}

func (e RowError) Error() string {
	return fmt.Sprintf("line %d: %v", e.Line, e.Err)
}

// ImportResult holds the trades parsed from a CSV file and the rows skipped.
type ImportResult struct {
	Trades  []models.Trade
	Skipped []RowError
}

var timeLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
	"2006-01-02 15:04",
	"02-01-2006 15:04:05",
}

// ParseTradesCSV reads a trade journal. Times without a zone are read in loc.
// A missing pnl is computed from prices, quantity and fee; a missing id is
// derived from the trade's identity so re-imports replace rather than duplicate.
func ParseTradesCSV(r io.Reader, loc *time.Location) (ImportResult, error) {
	if loc == nil {
		loc = time.UTC
	}

	var rows []csvTrade
	if err := gocsv.Unmarshal(r, &rows); err != nil {
		return ImportResult{}, fmt.Errorf("failed to parse trades csv: %w", err)
	}

	var result ImportResult
	for i, row := range rows {
		t, err := row.toTrade(loc)
		if err != nil {
			// header is line 1
			result.Skipped = append(result.Skipped, RowError{Line: i + 2, Err: err})
			continue
		}
		result.Trades = append(result.Trades, t)
	}
	return result, nil
}

func (row csvTrade) toTrade(loc *time.Location) (models.Trade, error) {
	var (
		t   models.Trade
		err error
	)

	t.Symbol = strings.ToUpper(strings.TrimSpace(row.Symbol))
	if t.Direction, err = models.ParseDirection(row.Direction); err != nil {
		return t, invalid(err)
	}
	if t.PlanAdherence, err = models.ParsePlanAdherence(row.PlanAdherence); err != nil {
		return t, invalid(err)
	}
	if t.EntryPrice, err = parseDecimal("entry_price", row.EntryPrice, false); err != nil {
		return t, err
	}
	if t.ExitPrice, err = parseDecimal("exit_price", row.ExitPrice, false); err != nil {
		return t, err
	}
	if t.Quantity, err = parseDecimal("quantity", row.Quantity, false); err != nil {
		return t, err
	}
	if t.Fee, err = parseDecimal("fee", row.Fee, true); err != nil {
		return t, err
	}
	if t.EntryTime, err = parseTime("entry_time", row.EntryTime, loc); err != nil {
		return t, err
	}
	if t.ExitTime, err = parseTime("exit_time", row.ExitTime, loc); err != nil {
		return t, err
	}

	if strings.TrimSpace(row.PnL) == "" {
		t.PnL = GrossPnL(t.Direction, t.EntryPrice, t.ExitPrice, t.Quantity).Sub(t.Fee)
	} else if t.PnL, err = parseDecimal("pnl", row.PnL, false); err != nil {
		return t, err
	}

	t.Tags = splitTags(row.Tags)
	t.Notes = strings.TrimSpace(row.Notes)

	t.ID = strings.TrimSpace(row.ID)
	if t.ID == "" {
		t.ID = deriveTradeID(t)
	}

	if err := t.Validate(); err != nil {
		return t, invalid(err)
	}
	return t, nil
}

// GrossPnL is the price move times quantity in the trade's favour.
func GrossPnL(direction models.Direction, entry, exit, qty decimal.Decimal) decimal.Decimal {
	move := exit.Sub(entry)
	if direction == models.DirectionShort {
		move = move.Neg()
	}
	return move.Mul(qty)
}

func deriveTradeID(t models.Trade) string {
	key := strings.Join([]string{
		t.Symbol, string(t.Direction),
		t.EntryTime.UTC().Format(time.RFC3339Nano), t.ExitTime.UTC().Format(time.RFC3339Nano),
		t.Quantity.String(), t.EntryPrice.String(),
	}, "|")
	return uuid.NewSHA1(uuid.NameSpaceOID, []byte(key)).String()
}

func splitTags(s string) []string {
	fields := strings.FieldsFunc(s, func(r rune) bool { return r == ';' || r == '|' })
	t := models.Trade{Tags: fields}
	return t.UniqueTags()
}

func parseDecimal(field, s string, optional bool) (decimal.Decimal, error) {
	s = strings.TrimSpace(strings.ReplaceAll(s, ",", ""))
	if s == "" {
		if optional {
			return decimal.Zero, nil
		}
		return decimal.Zero, invalid(fmt.Errorf("%s is required", field))
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, invalid(fmt.Errorf("%s: %w", field, err))
	}
	return d, nil
}

func parseTime(field, s string, loc *time.Location) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, invalid(fmt.Errorf("%s is required", field))
	}
	for _, layout := range timeLayouts {
		if t, err := time.ParseInLocation(layout, s, loc); err == nil {
			return t, nil
		}
	}
	return time.Time{}, invalid(fmt.Errorf("%s: unrecognised time %q", field, s))
}

func invalid(err error) error {
	return fmt.Errorf("%w: %v", apperrors.ErrInvalidTrade, err)
}

// WriteTradesCSV writes trades in the same layout ParseTradesCSV reads.
func WriteTradesCSV(w io.Writer, trades []models.Trade) error {
	rows := make([]csvTrade, len(trades))
	for i, t := range trades {
		rows[i] = csvTrade{
			ID:            t.ID,
			Symbol:        t.Symbol,
			Direction:     string(t.Direction),
			EntryPrice:    t.EntryPrice.String(),
			ExitPrice:     t.ExitPrice.String(),
			Quantity:      t.Quantity.String(),
			EntryTime:     t.EntryTime.Format(time.RFC3339Nano),
			ExitTime:      t.ExitTime.Format(time.RFC3339Nano),
			PnL:           t.PnL.String(),
			Fee:           t.Fee.String(),
			Tags:          strings.Join(t.Tags, ";"),
			PlanAdherence: string(t.PlanAdherence),
			Notes:         t.Notes,
		}
	}
	if err := gocsv.Marshal(&rows, w); err != nil {
		return fmt.Errorf("failed to write trades csv: %w", err)
	}
	return nil
}

// ImportTradesCSV parses a trade journal and saves every valid row.
func ImportTradesCSV(ctx context.Context, ds DataStore, r io.Reader, loc *time.Location) (ImportResult, error) {
	result, err := ParseTradesCSV(r, loc)
	if err != nil {
		return result, err
	}
	if err := ds.SaveTrades(ctx, result.Trades); err != nil {
		return result, err
	}
	if err := ds.SetLastSync(SyncTypeTrades, time.Now()); err != nil {
		return result, err
	}
	return result, nil
}

// csvBar is one row of an OHLC export.
type csvBar struct {
	Timestamp string `csv:"timestamp"`
	Open      string `csv:"open"`
	High      string `csv:"high"`
	Low       string `csv:"low"`
	Close     string `csv:"close"`
}

// ParseBarsCSV reads timestamp,open,high,low,close rows. Times without a
// zone are read in loc. Rows that do not parse, or whose high is below their
// low, are skipped and reported.
func ParseBarsCSV(r io.Reader, loc *time.Location) ([]models.PriceBar, []RowError, error) {
	if loc == nil {
		loc = time.UTC
	}

	var rows []csvBar
	if err := gocsv.Unmarshal(r, &rows); err != nil {
		return nil, nil, fmt.Errorf("failed to parse bars csv: %w", err)
	}

	var (
		bars    []models.PriceBar
		skipped []RowError
	)
	for i, row := range rows {
		b, err := row.toBar(loc)
		if err != nil {
			skipped = append(skipped, RowError{Line: i + 2, Err: err})
			continue
		}
		bars = append(bars, b)
	}
	return bars, skipped, nil
}

func (row csvBar) toBar(loc *time.Location) (models.PriceBar, error) {
	var b models.PriceBar
	ts := strings.TrimSpace(row.Timestamp)
	for _, layout := range timeLayouts {
		if t, err := time.ParseInLocation(layout, ts, loc); err == nil {
			b.Timestamp = t
			break
		}
	}
	if b.Timestamp.IsZero() {
		return b, fmt.Errorf("unrecognised timestamp %q", row.Timestamp)
	}

	fields := []struct {
		name string
		raw  string
		dst  *decimal.Decimal
	}{
		{"open", row.Open, &b.Open},
		{"high", row.High, &b.High},
		{"low", row.Low, &b.Low},
		{"close", row.Close, &b.Close},
	}
	for _, f := range fields {
		d, err := decimal.NewFromString(strings.TrimSpace(f.raw))
		if err != nil {
			return b, fmt.Errorf("%s: %w", f.name, err)
		}
		*f.dst = d
	}
	if b.High.LessThan(b.Low) {
		return b, fmt.Errorf("high %s below low %s", b.High, b.Low)
	}
	return b, nil
}

// ImportBarsCSV parses an OHLC export for symbol and saves it at granularity.
func ImportBarsCSV(ctx context.Context, ds DataStore, r io.Reader, symbol string, granularity time.Duration, loc *time.Location) (int, []RowError, error) {
	bars, skipped, err := ParseBarsCSV(r, loc)
	if err != nil {
		return 0, skipped, err
	}
	if err := ds.SaveBars(ctx, strings.ToUpper(symbol), granularity, bars); err != nil {
		return 0, skipped, err
	}
	if err := ds.SetLastSync(SyncTypeBars, time.Now()); err != nil {
		return len(bars), skipped, err
	}
	return len(bars), skipped, nil
}
