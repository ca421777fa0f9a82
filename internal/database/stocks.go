package database

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/stockpipe/stock-etl/internal/models"
)

// SaveStock inserts or updates a stock's company metadata keyed by symbol
func (db *DB) SaveStock(s *models.Stock) error {
	query := `
		INSERT INTO stocks (symbol, name, exchange, sector, industry, active, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $7)
		ON CONFLICT (symbol) DO UPDATE SET
			name = EXCLUDED.name,
			exchange = EXCLUDED.exchange,
			sector = EXCLUDED.sector,
			industry = EXCLUDED.industry,
			active = EXCLUDED.active,
			updated_at = EXCLUDED.updated_at
		RETURNING id
	`
	err := db.conn.QueryRow(query,
		s.Symbol, s.Name, s.Exchange, s.Sector, s.Industry, s.Active, time.Now(),
	).Scan(&s.ID)

	if err != nil {
		return fmt.Errorf("failed to save stock %s: %w", s.Symbol, err)
	}
	return nil
}

// GetStock retrieves a stock by symbol
func (db *DB) GetStock(symbol string) (*models.Stock, error) {
	query := `
		SELECT id, symbol, name, exchange, sector, industry, active, created_at, updated_at
		FROM stocks
		WHERE symbol = $1
	`
	var s models.Stock
	err := db.conn.QueryRow(query, symbol).Scan(
		&s.ID, &s.Symbol, &s.Name, &s.Exchange, &s.Sector, &s.Industry, &s.Active, &s.CreatedAt, &s.UpdatedAt,
	)

	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("stock not found: %s", symbol)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get stock: %w", err)
	}
	return &s, nil
}

// GetActiveSymbols retrieves the active symbol universe, ordered by symbol
func (db *DB) GetActiveSymbols() ([]string, error) {
	rows, err := db.conn.Query(`SELECT symbol FROM stocks WHERE active ORDER BY symbol`)
	if err != nil {
		return nil, fmt.Errorf("failed to get active symbols: %w", err)
	}
	defer rows.Close()

	var symbols []string
	for rows.Next() {
		var s string
		if err := rows.Scan(&s); err != nil {
			return nil, fmt.Errorf("failed to scan symbol: %w", err)
		}
		symbols = append(symbols, s)
	}
	return symbols, rows.Err()
}

// DeactivateStock soft-deactivates a symbol. Stocks are never hard-deleted.
func (db *DB) DeactivateStock(symbol string) error {
	result, err := db.conn.Exec(
		`UPDATE stocks SET active = false, updated_at = $2 WHERE symbol = $1`,
		symbol, time.Now(),
	)
	if err != nil {
		return fmt.Errorf("failed to deactivate stock %s: %w", symbol, err)
	}

	rowsAffected, _ := result.RowsAffected()
	if rowsAffected == 0 {
		return fmt.Errorf("stock not found: %s", symbol)
	}
	return nil
}
