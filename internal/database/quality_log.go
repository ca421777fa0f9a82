package database

import (
	"fmt"
	"time"

	"github.com/stockpipe/stock-etl/internal/models"
)

// InsertQualityResults appends one run's quality check rows. The log
// is append-only: one row per check per target per symbol per run.
func (db *DB) InsertQualityResults(runID string, results []models.QualityCheckResult) error {
	stmt, err := db.conn.Prepare(`
		INSERT INTO data_quality_log (run_id, symbol, target_table, check_kind,
			records_checked, records_failed, failure_ratio, blocking, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare quality log insert: %w", err)
	}
	defer stmt.Close()

	now := time.Now()
	for _, r := range results {
		_, err := stmt.Exec(runID, r.Symbol, r.TargetTable, r.CheckKind,
			r.RecordsChecked, r.RecordsFailed, r.FailureRatio, r.Blocking, now)
		if err != nil {
			return fmt.Errorf("failed to insert quality result %s/%s: %w", r.Symbol, r.CheckKind, err)
		}
	}
	return nil
}

// GetQualityResults retrieves all quality check rows for a run
func (db *DB) GetQualityResults(runID string) ([]*models.QualityCheckResult, error) {
	query := `
		SELECT id, run_id, symbol, target_table, check_kind,
			records_checked, records_failed, failure_ratio, blocking, created_at
		FROM data_quality_log
		WHERE run_id = $1
		ORDER BY symbol, target_table, check_kind
	`
	rows, err := db.conn.Query(query, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to get quality results: %w", err)
	}
	defer rows.Close()

	var results []*models.QualityCheckResult
	for rows.Next() {
		var r models.QualityCheckResult
		err := rows.Scan(&r.ID, &r.RunID, &r.Symbol, &r.TargetTable, &r.CheckKind,
			&r.RecordsChecked, &r.RecordsFailed, &r.FailureRatio, &r.Blocking, &r.CreatedAt)
		if err != nil {
			return nil, fmt.Errorf("failed to scan quality result: %w", err)
		}
		results = append(results, &r)
	}
	return results, rows.Err()
}
