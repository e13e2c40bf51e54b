package pipeline

import (
	"context"
	"database/sql"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/rmacedo-dev/ans-despesas/etl/config"
	"github.com/rmacedo-dev/ans-despesas/etl/consolidator"
	"github.com/rmacedo-dev/ans-despesas/etl/downloader"
	"github.com/rmacedo-dev/ans-despesas/etl/load"
	"github.com/rmacedo-dev/ans-despesas/etl/models"
	"github.com/rmacedo-dev/ans-despesas/etl/parser"
	"github.com/rmacedo-dev/ans-despesas/etl/utils"
)

// Runner wires the four ingestion stages together:
// Fetch -> Parse/Validate -> Consolidate -> Load.
type Runner struct {
	cfg         config.Config
	logger      *utils.ETLLogger
	downloader  *downloader.Downloader
	loadManager *load.LoadManager
	runLogRepo  models.RunLogRepository
}

func NewRunner(cfg config.Config, db *sql.DB, logger *utils.ETLLogger) *Runner {
	return &Runner{
		cfg:         cfg,
		logger:      logger,
		downloader:  downloader.NewDownloader(cfg.SourceBaseURL, cfg.DataDir, cfg.FetchConcurrency, logger),
		loadManager: load.NewLoadManager(db, logger, cfg.BatchSize, cfg.LoadRetries, cfg.LoadRetryBackoff),
		runLogRepo:  models.NewMySQLRunLogRepository(db),
	}
}

// RunIngestion executes one full pipeline run over the most recent
// periodCount quarters. It always returns a summary; the error is non-nil
// only for fatal conditions (store unreachable, registry unavailable).
// Individual period failures are reported inside the summary and never
// abort the other periods.
func (r *Runner) RunIngestion(ctx context.Context, periodCount int, force bool) (*models.IngestionSummary, error) {
	if periodCount < 1 {
		periodCount = r.cfg.PeriodCount
	}

	summary := &models.IngestionSummary{
		RunID:     uuid.NewString(),
		StartTime: time.Now(),
	}
	r.logger.Info("Starting ingestion run %s (%d periods, force=%v)", summary.RunID, periodCount, force)

	if err := r.runLogRepo.CreateEntry(summary.RunID, summary.StartTime, periodCount); err != nil {
		// the run log lives in the destination store; failing to write it
		// means the store itself is unusable for this run
		return r.finishFailure(summary, fmt.Errorf("registering run: %w", err))
	}

	// the registry snapshot is a precondition for identity resolution,
	// so unlike period files its absence is fatal
	snapshot, skipped, err := r.fetchRegistry(ctx, force)
	if err != nil {
		return r.finishFailure(summary, fmt.Errorf("fetching registry: %w", err))
	}
	summary.RegistrySkipped = skipped
	r.logger.Info("Registry snapshot loaded: %d operators (%d rows skipped)", len(snapshot), skipped)

	cons := consolidator.NewConsolidator(snapshot, r.logger)

	periods := r.downloader.LastQuarters(periodCount)
	fetched := r.downloader.FetchPeriods(ctx, periods, force)
	summary.PeriodsAttempted = len(fetched)

	r.parsePeriods(ctx, fetched, cons, summary)

	operadoras := cons.Operadoras()
	despesas := cons.Despesas()
	okRows, flagged, conflicts := cons.Counts()
	summary.RowsFlagged = flagged
	summary.KeyConflicts = conflicts
	r.logger.Info("Consolidated %d unique rows (%d ok, %d flagged, %d key conflicts) across %d operator summaries",
		len(despesas), okRows, flagged, conflicts, len(cons.Summaries()))

	loadResult, err := r.loadManager.Load(operadoras, despesas)
	r.applyLoadResult(summary, loadResult)
	if err != nil {
		return r.finishFailure(summary, fmt.Errorf("load phase: %w", err))
	}

	summary.EndTime = time.Now()
	if err := r.runLogRepo.FinishSuccess(summary); err != nil {
		r.logger.Error("Could not finalise run log: %v", err)
	}
	r.logger.Info("Ingestion run %s finished in %v: %d/%d periods, %d rows loaded, %d flagged",
		summary.RunID, summary.Duration(), summary.PeriodsSucceeded, summary.PeriodsAttempted,
		summary.RowsLoaded, summary.RowsFlagged)
	return summary, nil
}

// parsePeriods parses successfully fetched files with a bounded worker
// pool. Each file is parsed fully into a local batch before being handed
// to the consolidator, so a mid-file failure leaves that period undone
// instead of half-ingested.
func (r *Runner) parsePeriods(ctx context.Context, fetched []downloader.PeriodFile,
	cons *consolidator.Consolidator, summary *models.IngestionSummary) {

	results := make([]models.PeriodResult, len(fetched))

	g, _ := errgroup.WithContext(ctx)
	g.SetLimit(r.cfg.ParseConcurrency)

	for i, pf := range fetched {
		i, pf := i, pf
		if pf.Err != nil {
			results[i] = models.PeriodResult{Periodo: pf.Periodo, Error: pf.Err.Error()}
			continue
		}
		g.Go(func() error {
			batch, err := r.parseFile(pf)
			if err != nil {
				r.logger.Error("Parse failed for %s: %v", pf.Periodo, err)
				results[i] = models.PeriodResult{Periodo: pf.Periodo, Error: err.Error()}
				return nil
			}
			for _, d := range batch {
				cons.Add(d)
			}
			r.logger.Info("Parsed %s: %d records", pf.Periodo, len(batch))
			results[i] = models.PeriodResult{Periodo: pf.Periodo, Success: true}
			return nil
		})
	}
	g.Wait()

	for _, res := range results {
		if res.Success {
			summary.PeriodsSucceeded++
		}
		summary.Periods = append(summary.Periods, res)
	}
}

func (r *Runner) parseFile(pf downloader.PeriodFile) ([]*models.Despesa, error) {
	reader, err := downloader.Open(pf.Path)
	if err != nil {
		return nil, err
	}

	var batch []*models.Despesa
	p := parser.NewReader(reader, pf.Periodo)
	for {
		d, err := p.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}
		batch = append(batch, d)
	}
	return batch, nil
}

func (r *Runner) fetchRegistry(ctx context.Context, force bool) ([]models.Operadora, int, error) {
	path, err := r.downloader.FetchRegistry(ctx, force)
	if err != nil {
		return nil, 0, err
	}
	reader, err := downloader.Open(path)
	if err != nil {
		return nil, 0, err
	}
	result, err := parser.ParseRegistry(reader)
	if err != nil {
		return nil, 0, err
	}
	return result.Operadoras, result.Skipped, nil
}

// applyLoadResult folds the load outcome into the summary. Expense
// batches that exhausted their retries are reported here, not escalated:
// the committed batches stay committed and the run still finishes.
func (r *Runner) applyLoadResult(summary *models.IngestionSummary, res load.LoadResult) {
	summary.OperadorasLoaded = res.Operadoras.RowsWritten
	summary.RowsLoaded = res.Despesas.RowsWritten
	if n := len(res.Despesas.FailedBatches); n > 0 {
		summary.FailedBatches = n
		r.logger.Error("%d expense batches failed after retries: %s",
			n, describeBatches(res.Despesas.FailedBatches))
	}
}

func (r *Runner) finishFailure(summary *models.IngestionSummary, cause error) (*models.IngestionSummary, error) {
	summary.EndTime = time.Now()
	r.logger.Error("Ingestion run %s failed: %v", summary.RunID, cause)
	if err := r.runLogRepo.FinishFailure(summary, cause.Error()); err != nil {
		r.logger.Error("Could not record run failure: %v", err)
	}
	return summary, cause
}

func describeBatches(failed []load.BatchError) string {
	parts := make([]string, 0, len(failed))
	for _, b := range failed {
		parts = append(parts, b.Error())
	}
	return strings.Join(parts, "; ")
}
