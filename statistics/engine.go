package statistics

import (
	"context"

	"github.com/rmacedo-dev/ans-despesas/etl/utils"
)

// Engine is the read path of the system: three analytical views plus the
// general summary, each computed from the ok-status row set and cached
// for the configured TTL. All operations are safe to call concurrently
// with each other and with a running ingestion; they read whatever is
// committed at that moment.
type Engine struct {
	svc    DataService
	cache  *ResultCache
	logger *utils.ETLLogger
}

func NewEngine(svc DataService, cache *ResultCache, logger *utils.ETLLogger) *Engine {
	return &Engine{svc: svc, cache: cache, logger: logger}
}

// TopOperadoras returns the top-limit operators by total expense.
func (e *Engine) TopOperadoras(ctx context.Context, limit int) ([]TopOperadora, error) {
	if limit < 1 {
		limit = 10
	}
	key := Key("top-operadoras", limit)
	if cached, ok := e.cache.Get(key); ok {
		e.logger.Debug("Cache hit: %s", key)
		return cached.([]TopOperadora), nil
	}

	rows, err := e.svc.ExpenseRows(ctx)
	if err != nil {
		return nil, err
	}
	result := TopOperadoras(rows, limit)
	e.cache.Set(key, result)
	return result, nil
}

// DistribuicaoUF returns the per-region distribution.
func (e *Engine) DistribuicaoUF(ctx context.Context) ([]DistribuicaoUF, error) {
	key := Key("distribuicao-uf")
	if cached, ok := e.cache.Get(key); ok {
		e.logger.Debug("Cache hit: %s", key)
		return cached.([]DistribuicaoUF), nil
	}

	rows, err := e.svc.ExpenseRows(ctx)
	if err != nil {
		return nil, err
	}
	result := CalcularDistribuicaoUF(rows)
	e.cache.Set(key, result)
	return result, nil
}

// AcimaMedia returns operators above the per-quarter market average in at
// least minTrimestres quarters.
func (e *Engine) AcimaMedia(ctx context.Context, minTrimestres, limit int) ([]OperadoraAcimaMedia, error) {
	if minTrimestres < 1 {
		minTrimestres = 2
	}
	if limit < 1 {
		limit = 20
	}
	key := Key("acima-media", minTrimestres, limit)
	if cached, ok := e.cache.Get(key); ok {
		e.logger.Debug("Cache hit: %s", key)
		return cached.([]OperadoraAcimaMedia), nil
	}

	rows, err := e.svc.ExpenseRows(ctx)
	if err != nil {
		return nil, err
	}
	result := OperadorasAcimaMedia(rows, minTrimestres, limit)
	e.cache.Set(key, result)
	return result, nil
}

// Resumo returns the general statistics block with the top-5 embedded.
func (e *Engine) Resumo(ctx context.Context) (Resumo, error) {
	key := Key("resumo")
	if cached, ok := e.cache.Get(key); ok {
		e.logger.Debug("Cache hit: %s", key)
		return cached.(Resumo), nil
	}

	rows, err := e.svc.ExpenseRows(ctx)
	if err != nil {
		return Resumo{}, err
	}
	result := CalcularResumo(rows, 5)
	e.cache.Set(key, result)
	return result, nil
}
