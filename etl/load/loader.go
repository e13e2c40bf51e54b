package load

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/rmacedo-dev/ans-despesas/etl/models"
)

// Loader is the write side of the pipeline. Both methods use
// upsert-by-natural-key semantics, so reingesting already-loaded data
// changes no row counts.
type Loader interface {
	// LoadOperadoras upserts registry entries keyed by CNPJ.
	LoadOperadoras(operadoras []models.Operadora) (Result, error)

	// LoadDespesas upserts expense rows keyed by the natural key.
	LoadDespesas(despesas []*models.Despesa) (Result, error)
}

// BatchError identifies which batch failed after retries were exhausted.
// Previously committed batches stay committed.
type BatchError struct {
	Index int
	Err   error
}

func (e BatchError) Error() string {
	return fmt.Sprintf("batch %d: %v", e.Index, e.Err)
}

// Result reports what one load call achieved.
type Result struct {
	RowsWritten   int
	FailedBatches []BatchError
}

// retryPolicy is shared by the per-entity loaders: each batch is one
// transaction, retried with a linear backoff before being declared failed.
type retryPolicy struct {
	attempts int
	backoff  time.Duration
}

// runBatch executes fn inside its own transaction, retrying per the
// policy. The transaction is the atomic unit: a cancelled or failed
// attempt leaves nothing partially written.
func (p retryPolicy) runBatch(db *sql.DB, fn func(tx *sql.Tx) error) error {
	var lastErr error
	for attempt := 1; attempt <= p.attempts; attempt++ {
		tx, err := db.Begin()
		if err != nil {
			lastErr = fmt.Errorf("beginning transaction: %w", err)
		} else {
			if err := fn(tx); err != nil {
				tx.Rollback()
				lastErr = err
			} else if err := tx.Commit(); err != nil {
				lastErr = fmt.Errorf("committing transaction: %w", err)
			} else {
				return nil
			}
		}
		if attempt < p.attempts {
			time.Sleep(time.Duration(attempt) * p.backoff)
		}
	}
	return lastErr
}

// batchRanges splits n items into [start, end) ranges of at most size.
func batchRanges(n, size int) [][2]int {
	if size < 1 {
		size = 1
	}
	var ranges [][2]int
	for start := 0; start < n; start += size {
		end := start + size
		if end > n {
			end = n
		}
		ranges = append(ranges, [2]int{start, end})
	}
	return ranges
}

// nullable maps empty strings onto SQL NULL for the optional registry
// columns.
func nullable(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}
