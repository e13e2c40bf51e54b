package models

import (
	"database/sql"
	"fmt"
	"time"
)

// RunLogRepository persists one row per ingestion run so that reruns and
// partial failures stay visible after the fact.
type RunLogRepository interface {
	// CreateEntry registers a run as in_progress.
	CreateEntry(runID string, startTime time.Time, periodsRequested int) error

	// FinishSuccess finalises the run row from the summary.
	FinishSuccess(summary *IngestionSummary) error

	// FinishFailure marks the run failed, keeping whatever counts were
	// reached before the fatal error.
	FinishFailure(summary *IngestionSummary, errorMessage string) error

	// LastSuccessfulRun returns the most recent successful run, or nil
	// when none exists.
	LastSuccessfulRun() (*RunLog, error)
}

// RunLog mirrors one etl_runs row.
type RunLog struct {
	ID               string
	StartTime        time.Time
	EndTime          time.Time
	Status           string // "in_progress", "success", "failed"
	PeriodsRequested int
	PeriodsSucceeded int
	RowsLoaded       int
	RowsFlagged      int
	KeyConflicts     int
	ErrorMessage     string
}

// MySQLRunLogRepository implements RunLogRepository on the main store.
type MySQLRunLogRepository struct {
	db *sql.DB
}

func NewMySQLRunLogRepository(db *sql.DB) *MySQLRunLogRepository {
	return &MySQLRunLogRepository{db: db}
}

func (r *MySQLRunLogRepository) CreateEntry(runID string, startTime time.Time, periodsRequested int) error {
	_, err := r.db.Exec(`
		INSERT INTO etl_runs (id, start_time, status, periods_requested)
		VALUES (?, ?, 'in_progress', ?)
	`, runID, startTime, periodsRequested)
	if err != nil {
		return fmt.Errorf("creating run log entry: %w", err)
	}
	return nil
}

func (r *MySQLRunLogRepository) FinishSuccess(summary *IngestionSummary) error {
	_, err := r.db.Exec(`
		UPDATE etl_runs
		SET end_time = ?,
			status = 'success',
			periods_succeeded = ?,
			rows_loaded = ?,
			rows_flagged = ?,
			key_conflicts = ?
		WHERE id = ?
	`, summary.EndTime, summary.PeriodsSucceeded, summary.RowsLoaded,
		summary.RowsFlagged, summary.KeyConflicts, summary.RunID)
	if err != nil {
		return fmt.Errorf("finalising run log entry: %w", err)
	}
	return nil
}

func (r *MySQLRunLogRepository) FinishFailure(summary *IngestionSummary, errorMessage string) error {
	_, err := r.db.Exec(`
		UPDATE etl_runs
		SET end_time = ?,
			status = 'failed',
			periods_succeeded = ?,
			rows_loaded = ?,
			rows_flagged = ?,
			key_conflicts = ?,
			error_message = ?
		WHERE id = ?
	`, summary.EndTime, summary.PeriodsSucceeded, summary.RowsLoaded,
		summary.RowsFlagged, summary.KeyConflicts, errorMessage, summary.RunID)
	if err != nil {
		return fmt.Errorf("marking run log entry failed: %w", err)
	}
	return nil
}

func (r *MySQLRunLogRepository) LastSuccessfulRun() (*RunLog, error) {
	row := r.db.QueryRow(`
		SELECT id, start_time, end_time, status, periods_requested,
		       periods_succeeded, rows_loaded, rows_flagged, key_conflicts
		FROM etl_runs
		WHERE status = 'success'
		ORDER BY end_time DESC
		LIMIT 1
	`)

	var log RunLog
	err := row.Scan(
		&log.ID,
		&log.StartTime,
		&log.EndTime,
		&log.Status,
		&log.PeriodsRequested,
		&log.PeriodsSucceeded,
		&log.RowsLoaded,
		&log.RowsFlagged,
		&log.KeyConflicts,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("querying last successful run: %w", err)
	}
	return &log, nil
}
