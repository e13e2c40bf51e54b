package models

import "time"

// PeriodResult records the outcome of one reporting period inside a run.
type PeriodResult struct {
	Periodo Periodo `json:"periodo"`
	Success bool    `json:"success"`
	Error   string  `json:"error,omitempty"`
}

// IngestionSummary is what a pipeline run always returns, even on partial
// failure. A failed period shows up in Periods with its error; it never
// aborts the other periods.
type IngestionSummary struct {
	RunID            string         `json:"run_id"`
	StartTime        time.Time      `json:"start_time"`
	EndTime          time.Time      `json:"end_time"`
	PeriodsAttempted int            `json:"periods_attempted"`
	PeriodsSucceeded int            `json:"periods_succeeded"`
	OperadorasLoaded int            `json:"operadoras_loaded"`
	RowsLoaded       int            `json:"rows_loaded"`
	RowsFlagged      int            `json:"rows_flagged"`
	KeyConflicts     int            `json:"key_conflicts"`
	FailedBatches    int            `json:"failed_batches"`
	RegistrySkipped  int            `json:"registry_skipped"`
	Periods          []PeriodResult `json:"periods"`
}

// Duration returns the wall-clock time of the run.
func (s *IngestionSummary) Duration() time.Duration {
	return s.EndTime.Sub(s.StartTime)
}
