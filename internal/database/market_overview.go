package database

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/stockpipe/stock-etl/internal/models"
)

// UpsertMarketOverviewTx refreshes a symbol's derived fundamentals
// snapshot inside the caller's transaction
func (db *DB) UpsertMarketOverviewTx(tx *sql.Tx, o *models.MarketOverview) error {
	query := `
		INSERT INTO market_overview (symbol, latest_date, latest_close, previous_close,
			change_percent, high_52w, low_52w, avg_volume, bar_count, run_id, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		ON CONFLICT (symbol) DO UPDATE SET
			latest_date = EXCLUDED.latest_date,
			latest_close = EXCLUDED.latest_close,
			previous_close = EXCLUDED.previous_close,
			change_percent = EXCLUDED.change_percent,
			high_52w = EXCLUDED.high_52w,
			low_52w = EXCLUDED.low_52w,
			avg_volume = EXCLUDED.avg_volume,
			bar_count = EXCLUDED.bar_count,
			run_id = EXCLUDED.run_id,
			updated_at = EXCLUDED.updated_at
	`
	_, err := tx.Exec(query,
		o.Symbol, o.LatestDate, o.LatestClose, o.PreviousClose, o.ChangePercent,
		o.High52w, o.Low52w, o.AvgVolume, o.BarCount, o.RunID, time.Now(),
	)
	if err != nil {
		return fmt.Errorf("failed to upsert market overview for %s: %w", o.Symbol, err)
	}
	return nil
}

// GetMarketOverview retrieves a symbol's fundamentals snapshot
func (db *DB) GetMarketOverview(symbol string) (*models.MarketOverview, error) {
	query := `
		SELECT symbol, latest_date, latest_close, previous_close, change_percent,
			high_52w, low_52w, avg_volume, bar_count, run_id, updated_at
		FROM market_overview
		WHERE symbol = $1
	`
	var o models.MarketOverview
	err := db.conn.QueryRow(query, symbol).Scan(
		&o.Symbol, &o.LatestDate, &o.LatestClose, &o.PreviousClose, &o.ChangePercent,
		&o.High52w, &o.Low52w, &o.AvgVolume, &o.BarCount, &o.RunID, &o.UpdatedAt,
	)

	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("market overview not found: %s", symbol)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get market overview: %w", err)
	}
	return &o, nil
}
