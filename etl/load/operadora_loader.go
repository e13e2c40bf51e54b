package load

import (
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/rmacedo-dev/ans-despesas/etl/models"
	"github.com/rmacedo-dev/ans-despesas/etl/utils"
)

// OperadoraLoader upserts operator registry entries in fixed-size batches.
type OperadoraLoader struct {
	db        *sql.DB
	logger    *utils.ETLLogger
	batchSize int
	retry     retryPolicy
}

func NewOperadoraLoader(db *sql.DB, logger *utils.ETLLogger, batchSize, retries int, backoff time.Duration) *OperadoraLoader {
	return &OperadoraLoader{
		db:        db,
		logger:    logger,
		batchSize: batchSize,
		retry:     retryPolicy{attempts: retries, backoff: backoff},
	}
}

// Load writes all operator entries. Each batch is one transaction; a
// batch that keeps failing is recorded with its index and the remaining
// batches still run.
func (l *OperadoraLoader) Load(operadoras []models.Operadora) (Result, error) {
	if len(operadoras) == 0 {
		l.logger.Debug("No operator rows to load")
		return Result{}, nil
	}

	startTime := time.Now()
	l.logger.Info("Loading operator registry (total: %d)", len(operadoras))

	var result Result
	for batchIdx, r := range batchRanges(len(operadoras), l.batchSize) {
		batch := operadoras[r[0]:r[1]]
		err := l.retry.runBatch(l.db, func(tx *sql.Tx) error {
			return upsertOperadoras(tx, batch)
		})
		if err != nil {
			l.logger.Error("Operator batch %d failed after retries: %v", batchIdx, err)
			result.FailedBatches = append(result.FailedBatches, BatchError{Index: batchIdx, Err: err})
			continue
		}
		result.RowsWritten += len(batch)
	}

	l.logger.Info("Operator load finished: %d rows, %d failed batches, %v",
		result.RowsWritten, len(result.FailedBatches), time.Since(startTime))
	return result, nil
}

func upsertOperadoras(tx *sql.Tx, batch []models.Operadora) error {
	placeholders := make([]string, 0, len(batch))
	args := make([]interface{}, 0, len(batch)*5)
	for _, op := range batch {
		placeholders = append(placeholders, "(?, ?, ?, ?, ?)")
		args = append(args, op.CNPJ, op.RazaoSocial,
			nullable(op.RegistroANS), nullable(op.Modalidade), nullable(op.UF))
	}

	query := fmt.Sprintf(`
		INSERT INTO operadoras (cnpj, razao_social, registro_ans, modalidade, uf)
		VALUES %s
		ON DUPLICATE KEY UPDATE
		razao_social = VALUES(razao_social),
		registro_ans = VALUES(registro_ans),
		modalidade = VALUES(modalidade),
		uf = VALUES(uf)
	`, strings.Join(placeholders, ", "))

	if _, err := tx.Exec(query, args...); err != nil {
		return fmt.Errorf("upserting operator batch: %w", err)
	}
	return nil
}
