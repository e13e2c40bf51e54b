package load

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/rmacedo-dev/ans-despesas/etl/models"
	"github.com/rmacedo-dev/ans-despesas/etl/utils"
)

// LoadManager drives the load phase. Operator batches always commit
// before expense batches so the foreign key from despesas to operadoras
// is satisfied.
type LoadManager struct {
	logger        *utils.ETLLogger
	operadoraLoad *OperadoraLoader
	despesaLoad   *DespesaLoader
}

// LoadResult aggregates both entity loads.
type LoadResult struct {
	Operadoras Result
	Despesas   Result
}

func NewLoadManager(db *sql.DB, logger *utils.ETLLogger, batchSize, retries int, backoff time.Duration) *LoadManager {
	return &LoadManager{
		logger:        logger,
		operadoraLoad: NewOperadoraLoader(db, logger, batchSize, retries, backoff),
		despesaLoad:   NewDespesaLoader(db, logger, batchSize, retries, backoff),
	}
}

// Load persists the consolidated output. A failed operator batch is not
// fatal for the rest of the load, but expense rows belonging to an
// operator whose batch failed would violate the foreign key, so the
// expense load proceeds only when every operator batch committed.
func (m *LoadManager) Load(operadoras []models.Operadora, despesas []*models.Despesa) (LoadResult, error) {
	startTime := time.Now()
	m.logger.LogStageStart("Load")

	var result LoadResult
	var err error

	result.Operadoras, err = m.operadoraLoad.Load(operadoras)
	if err != nil {
		return result, fmt.Errorf("loading operators: %w", err)
	}
	if len(result.Operadoras.FailedBatches) > 0 {
		return result, fmt.Errorf("operator load left %d failed batches, skipping expense load",
			len(result.Operadoras.FailedBatches))
	}

	result.Despesas, err = m.despesaLoad.Load(despesas)
	if err != nil {
		return result, fmt.Errorf("loading expenses: %w", err)
	}

	m.logger.LogStageComplete("Load", time.Since(startTime))
	return result, nil
}
