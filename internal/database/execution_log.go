package database

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/stockpipe/stock-etl/internal/models"
)

// CreateExecutionRun records the start of a pipeline run
func (db *DB) CreateExecutionRun(run *models.ExecutionRun) error {
	query := `
		INSERT INTO etl_execution_log (run_id, started_at, status, symbols_total,
			records_read, records_processed, records_inserted, records_updated, records_rejected)
		VALUES ($1, $2, $3, $4, 0, 0, 0, 0, 0)
	`
	_, err := db.conn.Exec(query, run.RunID, run.StartedAt, run.Status, run.SymbolsTotal)
	if err != nil {
		return fmt.Errorf("failed to create execution run: %w", err)
	}
	return nil
}

// UpdateExecutionRunCounts refreshes the aggregate counters of a run
// that is still RUNNING. Terminal rows are never touched.
func (db *DB) UpdateExecutionRunCounts(runID string, counts models.RunCounts) error {
	query := `
		UPDATE etl_execution_log
		SET records_read = $2,
			records_processed = $3,
			records_inserted = $4,
			records_updated = $5,
			records_rejected = $6
		WHERE run_id = $1 AND status = 'RUNNING'
	`
	_, err := db.conn.Exec(query, runID,
		counts.Read, counts.Processed, counts.Inserted, counts.Updated, counts.Rejected)
	if err != nil {
		return fmt.Errorf("failed to update run counts: %w", err)
	}
	return nil
}

// FinishExecutionRun transitions a RUNNING run to its terminal status.
// A run already in a terminal status is left untouched and reported.
func (db *DB) FinishExecutionRun(run *models.ExecutionRun) error {
	query := `
		UPDATE etl_execution_log
		SET finished_at = $2,
			status = $3,
			records_read = $4,
			records_processed = $5,
			records_inserted = $6,
			records_updated = $7,
			records_rejected = $8,
			error_detail = NULLIF($9, '')
		WHERE run_id = $1 AND status = 'RUNNING'
	`
	finishedAt := time.Now()
	result, err := db.conn.Exec(query, run.RunID, finishedAt, run.Status,
		run.Counts.Read, run.Counts.Processed, run.Counts.Inserted,
		run.Counts.Updated, run.Counts.Rejected, run.ErrorDetail)
	if err != nil {
		return fmt.Errorf("failed to finish execution run: %w", err)
	}

	rowsAffected, _ := result.RowsAffected()
	if rowsAffected == 0 {
		return fmt.Errorf("execution run %s is not RUNNING", run.RunID)
	}
	run.FinishedAt = &finishedAt
	return nil
}

// GetExecutionRun retrieves one run record
func (db *DB) GetExecutionRun(runID string) (*models.ExecutionRun, error) {
	query := `
		SELECT run_id, started_at, finished_at, status, symbols_total,
			records_read, records_processed, records_inserted, records_updated, records_rejected,
			coalesce(error_detail, '')
		FROM etl_execution_log
		WHERE run_id = $1
	`
	var run models.ExecutionRun
	var finishedAt sql.NullTime

	err := db.conn.QueryRow(query, runID).Scan(
		&run.RunID, &run.StartedAt, &finishedAt, &run.Status, &run.SymbolsTotal,
		&run.Counts.Read, &run.Counts.Processed, &run.Counts.Inserted,
		&run.Counts.Updated, &run.Counts.Rejected, &run.ErrorDetail,
	)

	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("execution run not found: %s", runID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get execution run: %w", err)
	}

	if finishedAt.Valid {
		run.FinishedAt = &finishedAt.Time
	}
	return &run, nil
}
