package database

import (
	"database/sql"
	"fmt"

	"github.com/stockpipe/stock-etl/internal/models"
)

// GetLatestPrices reads the latest_prices view: the most recent bar
// per symbol. Consumed by the dashboard collaborator, read-only.
func (db *DB) GetLatestPrices() ([]*models.LatestPrice, error) {
	query := `
		SELECT symbol, trade_date, close, volume, daily_return, price_change_pct
		FROM latest_prices
		ORDER BY symbol
	`
	rows, err := db.conn.Query(query)
	if err != nil {
		return nil, fmt.Errorf("failed to get latest prices: %w", err)
	}
	defer rows.Close()

	var prices []*models.LatestPrice
	for rows.Next() {
		var p models.LatestPrice
		var volume sql.NullInt64
		err := rows.Scan(&p.Symbol, &p.TradeDate, &p.Close, &volume, &p.DailyReturn, &p.PriceChangePct)
		if err != nil {
			return nil, fmt.Errorf("failed to scan latest price: %w", err)
		}
		if volume.Valid {
			p.Volume = &volume.Int64
		}
		prices = append(prices, &p)
	}
	return prices, rows.Err()
}

// GetPerformanceSummary reads the stock_performance_summary view
func (db *DB) GetPerformanceSummary() ([]*models.PerformanceSummary, error) {
	query := `
		SELECT symbol, name, bar_count, first_date, last_date,
			min_close, max_close, last_close, avg_volume, total_gain_pct
		FROM stock_performance_summary
		ORDER BY symbol
	`
	rows, err := db.conn.Query(query)
	if err != nil {
		return nil, fmt.Errorf("failed to get performance summary: %w", err)
	}
	defer rows.Close()

	var summaries []*models.PerformanceSummary
	for rows.Next() {
		var s models.PerformanceSummary
		err := rows.Scan(&s.Symbol, &s.Name, &s.BarCount, &s.FirstDate, &s.LastDate,
			&s.MinClose, &s.MaxClose, &s.LastClose, &s.AvgVolume, &s.TotalGain)
		if err != nil {
			return nil, fmt.Errorf("failed to scan performance summary: %w", err)
		}
		summaries = append(summaries, &s)
	}
	return summaries, rows.Err()
}

// GetExecutionSummary reads the execution_summary view, most recent
// runs first
func (db *DB) GetExecutionSummary(limit int) ([]*models.ExecutionSummary, error) {
	query := `
		SELECT run_id, started_at, finished_at, status, symbols_total,
			records_read, records_processed, records_inserted, records_updated, records_rejected,
			checks_failed, checks_blocked
		FROM execution_summary
		ORDER BY started_at DESC
		LIMIT $1
	`
	rows, err := db.conn.Query(query, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to get execution summary: %w", err)
	}
	defer rows.Close()

	var summaries []*models.ExecutionSummary
	for rows.Next() {
		var s models.ExecutionSummary
		var finishedAt sql.NullTime
		err := rows.Scan(&s.RunID, &s.StartedAt, &finishedAt, &s.Status, &s.SymbolsTotal,
			&s.Counts.Read, &s.Counts.Processed, &s.Counts.Inserted,
			&s.Counts.Updated, &s.Counts.Rejected, &s.ChecksFailed, &s.ChecksBlocked)
		if err != nil {
			return nil, fmt.Errorf("failed to scan execution summary: %w", err)
		}
		if finishedAt.Valid {
			s.FinishedAt = &finishedAt.Time
		}
		summaries = append(summaries, &s)
	}
	return summaries, rows.Err()
}
