package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/shopspring/decimal"

	apperrors "trade-analytics/internal/errors"
	"trade-analytics/internal/models"
)

// SQLiteStore implements DataStore using SQLite.
//
// Times are stored as UTC unix nanoseconds so range queries compare numerically.
// Prices and pnl are stored as decimal text.
type SQLiteStore struct {
	db        *sql.DB
	mu        sync.RWMutex
	syncTimes map[string]time.Time
}

// NewSQLiteStore creates a new SQLite-based data store.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(time.Hour)

	store := &SQLiteStore{
		db:        db,
		syncTimes: make(map[string]time.Time),
	}

	if err := store.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return store, nil
}

func (s *SQLiteStore) initSchema() error {
	schema := `
	-- Closed trades
	CREATE TABLE IF NOT EXISTS trades (
		id TEXT PRIMARY KEY,
		symbol TEXT NOT NULL,
		direction TEXT NOT NULL,
		entry_price TEXT NOT NULL,
		exit_price TEXT NOT NULL,
		quantity TEXT NOT NULL,
		entry_time INTEGER NOT NULL,
		exit_time INTEGER NOT NULL,
		pnl TEXT NOT NULL,
		fee TEXT NOT NULL DEFAULT '0',
		tags TEXT NOT NULL DEFAULT '[]',
		plan_adherence TEXT NOT NULL DEFAULT 'NOT_RATED',
		notes TEXT NOT NULL DEFAULT '',
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
		updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);

	-- Cached intrabar prices
	CREATE TABLE IF NOT EXISTS bars (
		symbol TEXT NOT NULL,
		granularity INTEGER NOT NULL,
		timestamp INTEGER NOT NULL,
		open TEXT NOT NULL,
		high TEXT NOT NULL,
		low TEXT NOT NULL,
		close TEXT NOT NULL,
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
		PRIMARY KEY (symbol, granularity, timestamp)
	);

	CREATE TABLE IF NOT EXISTS sync_status (
		data_type TEXT PRIMARY KEY,
		last_sync DATETIME NOT NULL,
		updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);

	CREATE INDEX IF NOT EXISTS idx_trades_symbol ON trades(symbol);
	CREATE INDEX IF NOT EXISTS idx_trades_exit_time ON trades(exit_time);
	`

	_, err := s.db.Exec(schema)
	return err
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// ============================================================================
// Trade Methods
// ============================================================================

// SaveTrades inserts or replaces trades in one transaction.
func (s *SQLiteStore) SaveTrades(ctx context.Context, trades []models.Trade) error {
	if len(trades) == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT OR REPLACE INTO trades (id, symbol, direction, entry_price, exit_price, quantity, entry_time, exit_time, pnl, fee, tags, plan_adherence, notes, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, CURRENT_TIMESTAMP)
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare statement: %w", err)
	}
	defer stmt.Close()

	for _, t := range trades {
		if err := t.Validate(); err != nil {
			return fmt.Errorf("%w: %v", apperrors.ErrInvalidTrade, err)
		}
		tagsJSON, err := json.Marshal(nonNilTags(t.Tags))
		if err != nil {
			return fmt.Errorf("failed to encode tags for %s: %w", t.ID, err)
		}
		plan := t.PlanAdherence
		if plan == "" {
			plan = models.PlanNotRated
		}
		_, err = stmt.ExecContext(ctx,
			t.ID, t.Symbol, string(t.Direction),
			t.EntryPrice.String(), t.ExitPrice.String(), t.Quantity.String(),
			t.EntryTime.UTC().UnixNano(), t.ExitTime.UTC().UnixNano(),
			t.PnL.String(), t.Fee.String(), string(tagsJSON), string(plan), t.Notes,
		)
		if err != nil {
			return fmt.Errorf("%w: failed to insert trade %s: %v", apperrors.ErrDatabaseError, t.ID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// GetTrades retrieves trades ordered by exit time.
func (s *SQLiteStore) GetTrades(ctx context.Context, filter TradeFilter) ([]models.Trade, error) {
	query := "SELECT id, symbol, direction, entry_price, exit_price, quantity, entry_time, exit_time, pnl, fee, tags, plan_adherence, notes FROM trades WHERE 1=1"
	args := []interface{}{}

	if filter.Symbol != "" {
		query += " AND symbol = ?"
		args = append(args, filter.Symbol)
	}
	if !filter.StartDate.IsZero() {
		query += " AND exit_time >= ?"
		args = append(args, filter.StartDate.UTC().UnixNano())
	}
	if !filter.EndDate.IsZero() {
		query += " AND exit_time <= ?"
		args = append(args, filter.EndDate.UTC().UnixNano())
	}

	query += " ORDER BY exit_time ASC, id ASC"
	if filter.Limit > 0 && filter.Tag == "" {
		query += " LIMIT ?"
		args = append(args, filter.Limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query trades: %w", err)
	}
	defer rows.Close()

	var trades []models.Trade
	for rows.Next() {
		t, err := scanTrade(rows)
		if err != nil {
			return nil, err
		}
		if filter.Tag != "" && !t.HasTag(filter.Tag) {
			continue
		}
		trades = append(trades, t)
		if filter.Tag != "" && filter.Limit > 0 && len(trades) == filter.Limit {
			break
		}
	}

	return trades, rows.Err()
}

func scanTrade(rows *sql.Rows) (models.Trade, error) {
	var (
		t                          models.Trade
		direction, plan, tagsJSON  string
		entryPrice, exitPrice, qty string
		pnl, fee                   string
		entryNs, exitNs            int64
	)
	if err := rows.Scan(&t.ID, &t.Symbol, &direction, &entryPrice, &exitPrice, &qty, &entryNs, &exitNs, &pnl, &fee, &tagsJSON, &plan, &t.Notes); err != nil {
		return t, fmt.Errorf("failed to scan trade: %w", err)
	}

	t.Direction = models.Direction(direction)
	t.PlanAdherence = models.PlanAdherence(plan)
	t.EntryTime = time.Unix(0, entryNs).UTC()
	t.ExitTime = time.Unix(0, exitNs).UTC()

	var err error
	for _, f := range []struct {
		dst *decimal.Decimal
		src string
	}{
		{&t.EntryPrice, entryPrice}, {&t.ExitPrice, exitPrice}, {&t.Quantity, qty}, {&t.PnL, pnl}, {&t.Fee, fee},
	} {
		if *f.dst, err = decimal.NewFromString(f.src); err != nil {
			return t, fmt.Errorf("trade %s: bad decimal %q: %w", t.ID, f.src, err)
		}
	}

	if err := json.Unmarshal([]byte(tagsJSON), &t.Tags); err != nil {
		return t, fmt.Errorf("trade %s: bad tags: %w", t.ID, err)
	}
	if len(t.Tags) == 0 {
		t.Tags = nil
	}
	return t, nil
}

// UpdateTradeTags replaces the tag list of a trade.
func (s *SQLiteStore) UpdateTradeTags(ctx context.Context, tradeID string, tags []string) error {
	tagsJSON, err := json.Marshal(nonNilTags(tags))
	if err != nil {
		return fmt.Errorf("failed to encode tags: %w", err)
	}

	result, err := s.db.ExecContext(ctx, `
		UPDATE trades SET tags = ?, updated_at = CURRENT_TIMESTAMP WHERE id = ?
	`, string(tagsJSON), tradeID)
	if err != nil {
		return fmt.Errorf("failed to update trade tags: %w", err)
	}

	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("%w: trade %s", apperrors.ErrDataNotFound, tradeID)
	}
	return nil
}

func nonNilTags(tags []string) []string {
	if tags == nil {
		return []string{}
	}
	return tags
}

// ============================================================================
// Bar Methods
// ============================================================================

// SaveBars saves price bars to the database.
func (s *SQLiteStore) SaveBars(ctx context.Context, symbol string, granularity time.Duration, bars []models.PriceBar) error {
	if len(bars) == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT OR REPLACE INTO bars (symbol, granularity, timestamp, open, high, low, close)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare statement: %w", err)
	}
	defer stmt.Close()

	for _, b := range bars {
		_, err := stmt.ExecContext(ctx, symbol, int64(granularity/time.Second), b.Timestamp.UTC().UnixNano(),
			b.Open.String(), b.High.String(), b.Low.String(), b.Close.String())
		if err != nil {
			return fmt.Errorf("failed to insert bar: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// GetBars retrieves bars within [from, to] ordered by timestamp.
func (s *SQLiteStore) GetBars(ctx context.Context, symbol string, granularity time.Duration, from, to time.Time) ([]models.PriceBar, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT timestamp, open, high, low, close
		FROM bars
		WHERE symbol = ? AND granularity = ? AND timestamp >= ? AND timestamp <= ?
		ORDER BY timestamp ASC
	`, symbol, int64(granularity/time.Second), from.UTC().UnixNano(), to.UTC().UnixNano())
	if err != nil {
		return nil, fmt.Errorf("failed to query bars: %w", err)
	}
	defer rows.Close()

	var bars []models.PriceBar
	for rows.Next() {
		var (
			b                   models.PriceBar
			ts                  int64
			open, high, low, cl string
		)
		if err := rows.Scan(&ts, &open, &high, &low, &cl); err != nil {
			return nil, fmt.Errorf("failed to scan bar: %w", err)
		}
		b.Timestamp = time.Unix(0, ts).UTC()
		b.Open, _ = decimal.NewFromString(open)
		b.High, _ = decimal.NewFromString(high)
		b.Low, _ = decimal.NewFromString(low)
		b.Close, _ = decimal.NewFromString(cl)
		bars = append(bars, b)
	}

	return bars, rows.Err()
}

// ============================================================================
// Sync Methods
// ============================================================================

// GetLastSync returns the last sync time for a data type.
func (s *SQLiteStore) GetLastSync(dataType string) time.Time {
	s.mu.RLock()
	if t, ok := s.syncTimes[dataType]; ok {
		s.mu.RUnlock()
		return t
	}
	s.mu.RUnlock()

	var lastSync time.Time
	err := s.db.QueryRow(`
		SELECT last_sync FROM sync_status WHERE data_type = ?
	`, dataType).Scan(&lastSync)
	if err != nil {
		return time.Time{}
	}

	s.mu.Lock()
	s.syncTimes[dataType] = lastSync
	s.mu.Unlock()

	return lastSync
}

// SetLastSync sets the last sync time for a data type.
func (s *SQLiteStore) SetLastSync(dataType string, t time.Time) error {
	_, err := s.db.Exec(`
		INSERT OR REPLACE INTO sync_status (data_type, last_sync, updated_at)
		VALUES (?, ?, ?)
	`, dataType, t.UTC(), time.Now().UTC())
	if err != nil {
		return fmt.Errorf("failed to set last sync: %w", err)
	}

	s.mu.Lock()
	s.syncTimes[dataType] = t.UTC()
	s.mu.Unlock()

	return nil
}
