package database

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/stockpipe/stock-etl/internal/models"
)

// UpsertIndicatorPointsTx writes one symbol's indicator points inside
// the caller's transaction, keyed by the full
// (symbol, trade_date, indicator_kind, period) tuple. Reloads
// overwrite the stored value.
func (db *DB) UpsertIndicatorPointsTx(tx *sql.Tx, points []models.IndicatorPoint) (inserted, updated int, err error) {
	stmt, err := tx.Prepare(`
		INSERT INTO technical_indicators (symbol, trade_date, indicator_kind, period, value, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (symbol, trade_date, indicator_kind, period) DO UPDATE SET
			value = EXCLUDED.value
		RETURNING (xmax = 0)
	`)
	if err != nil {
		return 0, 0, fmt.Errorf("failed to prepare indicator upsert: %w", err)
	}
	defer stmt.Close()

	now := time.Now()
	for _, p := range points {
		var fresh bool
		err := stmt.QueryRow(
			p.Symbol, p.TradeDate, p.Kind, periodArg(p.Period), p.Value, now,
		).Scan(&fresh)
		if err != nil {
			return inserted, updated, fmt.Errorf("failed to upsert indicator %s %s@%s: %w",
				p.Kind, p.Symbol, p.TradeDate.Format("2006-01-02"), err)
		}
		if fresh {
			inserted++
		} else {
			updated++
		}
	}
	return inserted, updated, nil
}

// GetIndicatorHistory retrieves historical values for one indicator
// kind and period, most recent first
func (db *DB) GetIndicatorHistory(symbol, kind string, period *int, limit int) ([]*models.IndicatorPoint, error) {
	query := `
		SELECT id, symbol, trade_date, indicator_kind, period, value, created_at
		FROM technical_indicators
		WHERE symbol = $1 AND indicator_kind = $2 AND period IS NOT DISTINCT FROM $3
		ORDER BY trade_date DESC
		LIMIT $4
	`
	rows, err := db.conn.Query(query, symbol, kind, periodArg(period), limit)
	if err != nil {
		return nil, fmt.Errorf("failed to get indicator history: %w", err)
	}
	defer rows.Close()

	return scanIndicatorPoints(rows)
}

// GetIndicatorsByDate retrieves all indicators for a symbol on a date
func (db *DB) GetIndicatorsByDate(symbol string, date time.Time) ([]*models.IndicatorPoint, error) {
	query := `
		SELECT id, symbol, trade_date, indicator_kind, period, value, created_at
		FROM technical_indicators
		WHERE symbol = $1 AND trade_date = $2
		ORDER BY indicator_kind, period
	`
	rows, err := db.conn.Query(query, symbol, date)
	if err != nil {
		return nil, fmt.Errorf("failed to get indicators: %w", err)
	}
	defer rows.Close()

	return scanIndicatorPoints(rows)
}

// CountIndicatorPoints returns the number of stored points for a symbol
func (db *DB) CountIndicatorPoints(symbol string) (int, error) {
	var count int
	err := db.conn.QueryRow(`SELECT count(*) FROM technical_indicators WHERE symbol = $1`, symbol).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count indicator points: %w", err)
	}
	return count, nil
}

func scanIndicatorPoints(rows *sql.Rows) ([]*models.IndicatorPoint, error) {
	var points []*models.IndicatorPoint
	for rows.Next() {
		var p models.IndicatorPoint
		var period sql.NullInt64

		err := rows.Scan(&p.ID, &p.Symbol, &p.TradeDate, &p.Kind, &period, &p.Value, &p.CreatedAt)
		if err != nil {
			return nil, fmt.Errorf("failed to scan indicator point: %w", err)
		}
		if period.Valid {
			n := int(period.Int64)
			p.Period = &n
		}
		points = append(points, &p)
	}
	return points, rows.Err()
}

func periodArg(p *int) sql.NullInt64 {
	if p == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: int64(*p), Valid: true}
}
