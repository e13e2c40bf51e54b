package load

import (
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/rmacedo-dev/ans-despesas/etl/models"
	"github.com/rmacedo-dev/ans-despesas/etl/utils"
)

// DespesaLoader upserts expense rows in fixed-size batches sized for
// multi-million-row ingestions.
type DespesaLoader struct {
	db        *sql.DB
	logger    *utils.ETLLogger
	batchSize int
	retry     retryPolicy
}

func NewDespesaLoader(db *sql.DB, logger *utils.ETLLogger, batchSize, retries int, backoff time.Duration) *DespesaLoader {
	return &DespesaLoader{
		db:        db,
		logger:    logger,
		batchSize: batchSize,
		retry:     retryPolicy{attempts: retries, backoff: backoff},
	}
}

// Load writes all expense rows. The natural-key unique constraint plus
// ON DUPLICATE KEY UPDATE makes the call idempotent: reingesting the same
// source file adds no rows and only refreshes valor and status.
func (l *DespesaLoader) Load(despesas []*models.Despesa) (Result, error) {
	if len(despesas) == 0 {
		l.logger.Debug("No expense rows to load")
		return Result{}, nil
	}

	startTime := time.Now()
	l.logger.Info("Loading expense rows (total: %d)", len(despesas))

	var result Result
	for batchIdx, r := range batchRanges(len(despesas), l.batchSize) {
		batch := despesas[r[0]:r[1]]
		err := l.retry.runBatch(l.db, func(tx *sql.Tx) error {
			return upsertDespesas(tx, batch)
		})
		if err != nil {
			l.logger.Error("Expense batch %d failed after retries: %v", batchIdx, err)
			result.FailedBatches = append(result.FailedBatches, BatchError{Index: batchIdx, Err: err})
			continue
		}
		result.RowsWritten += len(batch)

		if (batchIdx+1)%10 == 0 {
			l.logger.Debug("Loaded %d of %d expense rows...", result.RowsWritten, len(despesas))
		}
	}

	l.logger.Info("Expense load finished: %d rows, %d failed batches, %v",
		result.RowsWritten, len(result.FailedBatches), time.Since(startTime))
	return result, nil
}

func upsertDespesas(tx *sql.Tx, batch []*models.Despesa) error {
	placeholders := make([]string, 0, len(batch))
	args := make([]interface{}, 0, len(batch)*6)
	for _, d := range batch {
		placeholders = append(placeholders, "(?, ?, ?, ?, ?, ?)")
		args = append(args, d.CNPJ, d.Ano, d.Trimestre, d.Descricao,
			d.Valor.StringFixed(2), d.StatusQualidade)
	}

	query := fmt.Sprintf(`
		INSERT INTO despesas (cnpj, ano, trimestre, descricao, valor, status_qualidade)
		VALUES %s
		ON DUPLICATE KEY UPDATE
		valor = VALUES(valor),
		status_qualidade = VALUES(status_qualidade)
	`, strings.Join(placeholders, ", "))

	if _, err := tx.Exec(query, args...); err != nil {
		return fmt.Errorf("upserting expense batch: %w", err)
	}
	return nil
}
