package database

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/stockpipe/stock-etl/internal/models"
)

const dailyBarColumns = `id, symbol, trade_date, open, high, low, close, adjusted_close,
		volume, daily_return, price_change, price_change_pct, created_at`

// UpsertDailyBarsTx writes one symbol's bars inside the caller's
// transaction with insert-or-update semantics keyed by
// (symbol, trade_date). The xmax system column distinguishes fresh
// inserts from overwrites so reloads can be counted separately.
func (db *DB) UpsertDailyBarsTx(tx *sql.Tx, bars []models.DailyBar) (inserted, updated int, err error) {
	stmt, err := tx.Prepare(`
		INSERT INTO daily_prices (symbol, trade_date, open, high, low, close, adjusted_close,
			volume, daily_return, price_change, price_change_pct, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		ON CONFLICT (symbol, trade_date) DO UPDATE SET
			open = EXCLUDED.open,
			high = EXCLUDED.high,
			low = EXCLUDED.low,
			close = EXCLUDED.close,
			adjusted_close = EXCLUDED.adjusted_close,
			volume = EXCLUDED.volume,
			daily_return = EXCLUDED.daily_return,
			price_change = EXCLUDED.price_change,
			price_change_pct = EXCLUDED.price_change_pct
		RETURNING (xmax = 0)
	`)
	if err != nil {
		return 0, 0, fmt.Errorf("failed to prepare daily price upsert: %w", err)
	}
	defer stmt.Close()

	now := time.Now()
	for _, b := range bars {
		var fresh bool
		err := stmt.QueryRow(
			b.Symbol, b.TradeDate, b.Open, b.High, b.Low, b.Close, b.AdjustedClose,
			volumeArg(b.Volume), b.DailyReturn, b.PriceChange, b.PriceChangePct, now,
		).Scan(&fresh)
		if err != nil {
			return inserted, updated, fmt.Errorf("failed to upsert bar %s@%s: %w",
				b.Symbol, b.TradeDate.Format("2006-01-02"), err)
		}
		if fresh {
			inserted++
		} else {
			updated++
		}
	}
	return inserted, updated, nil
}

// RecomputeDailyReturnsTx recalculates daily_return for a symbol's
// bars on or after the given date from the stored history. Used when
// corrective reloads should cascade into already-loaded later dates.
func (db *DB) RecomputeDailyReturnsTx(tx *sql.Tx, symbol string, from time.Time) error {
	query := `
		UPDATE daily_prices d
		SET daily_return = sub.ret
		FROM (
			SELECT id,
				(close - lag(close) OVER w) / NULLIF(lag(close) OVER w, 0) AS ret
			FROM daily_prices
			WHERE symbol = $1
			WINDOW w AS (ORDER BY trade_date)
		) sub
		WHERE d.id = sub.id AND d.trade_date >= $2
	`
	if _, err := tx.Exec(query, symbol, from); err != nil {
		return fmt.Errorf("failed to recompute daily returns for %s: %w", symbol, err)
	}
	return nil
}

// GetTrailingDailyBarsTx retrieves the newest limit bars for a symbol
// inside the caller's transaction, ordered by trade date ascending.
// Reading through the transaction sees rows the current load wrote.
func (db *DB) GetTrailingDailyBarsTx(tx *sql.Tx, symbol string, limit int) ([]*models.DailyBar, error) {
	query := `
		SELECT ` + dailyBarColumns + `
		FROM daily_prices
		WHERE symbol = $1
		ORDER BY trade_date DESC
		LIMIT $2
	`
	rows, err := tx.Query(query, symbol, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to get trailing daily bars: %w", err)
	}
	defer rows.Close()

	bars, err := scanDailyBars(rows)
	if err != nil {
		return nil, err
	}
	for i, j := 0, len(bars)-1; i < j; i, j = i+1, j-1 {
		bars[i], bars[j] = bars[j], bars[i]
	}
	return bars, nil
}

// GetDailyBarRange retrieves a symbol's bars within a date range,
// ordered by trade date ascending
func (db *DB) GetDailyBarRange(symbol string, startDate, endDate time.Time) ([]*models.DailyBar, error) {
	query := `
		SELECT ` + dailyBarColumns + `
		FROM daily_prices
		WHERE symbol = $1 AND trade_date >= $2 AND trade_date <= $3
		ORDER BY trade_date ASC
	`
	rows, err := db.conn.Query(query, symbol, startDate, endDate)
	if err != nil {
		return nil, fmt.Errorf("failed to get daily bar range: %w", err)
	}
	defer rows.Close()

	return scanDailyBars(rows)
}

// GetLatestDailyBar retrieves the most recent bar for a symbol
func (db *DB) GetLatestDailyBar(symbol string) (*models.DailyBar, error) {
	query := `
		SELECT ` + dailyBarColumns + `
		FROM daily_prices
		WHERE symbol = $1
		ORDER BY trade_date DESC
		LIMIT 1
	`
	row := db.conn.QueryRow(query, symbol)

	bar, err := scanDailyBar(row.Scan)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("no price data found for %s", symbol)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get latest daily bar: %w", err)
	}
	return bar, nil
}

// CountDailyBars returns the number of stored bars for a symbol
func (db *DB) CountDailyBars(symbol string) (int, error) {
	var count int
	err := db.conn.QueryRow(`SELECT count(*) FROM daily_prices WHERE symbol = $1`, symbol).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count daily bars: %w", err)
	}
	return count, nil
}

func scanDailyBars(rows *sql.Rows) ([]*models.DailyBar, error) {
	var bars []*models.DailyBar
	for rows.Next() {
		bar, err := scanDailyBar(rows.Scan)
		if err != nil {
			return nil, fmt.Errorf("failed to scan daily bar: %w", err)
		}
		bars = append(bars, bar)
	}
	return bars, rows.Err()
}

func scanDailyBar(scan func(...any) error) (*models.DailyBar, error) {
	var b models.DailyBar
	var volume sql.NullInt64

	err := scan(
		&b.ID, &b.Symbol, &b.TradeDate, &b.Open, &b.High, &b.Low, &b.Close, &b.AdjustedClose,
		&volume, &b.DailyReturn, &b.PriceChange, &b.PriceChangePct, &b.CreatedAt,
	)
	if err != nil {
		return nil, err
	}

	if volume.Valid {
		b.Volume = &volume.Int64
	}
	return &b, nil
}

func volumeArg(v *int64) sql.NullInt64 {
	if v == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: *v, Valid: true}
}
