package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-co-op/gocron"

	"github.com/rmacedo-dev/ans-despesas/database"
	"github.com/rmacedo-dev/ans-despesas/etl/config"
	"github.com/rmacedo-dev/ans-despesas/etl/models"
	"github.com/rmacedo-dev/ans-despesas/etl/pipeline"
	"github.com/rmacedo-dev/ans-despesas/etl/utils"
)

func main() {
	modePtr := flag.String("mode", "once", "run mode: once or scheduled")
	trimestresPtr := flag.Int("trimestres", 0, "number of quarters to ingest (0 = configured default)")
	forcePtr := flag.Bool("force", false, "re-download source files even when cached")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("configuration error: %v", err)
	}

	logger := utils.NewETLLogger(cfg.EnableDetailedLogging)

	db, err := config.ConnectDatabase(cfg)
	if err != nil {
		log.Fatalf("could not connect to the database: %v", err)
	}
	defer db.Close()

	if err := database.EnsureSchema(db); err != nil {
		log.Fatalf("could not prepare the schema: %v", err)
	}

	if last, err := models.NewMySQLRunLogRepository(db).LastSuccessfulRun(); err != nil {
		logger.Error("Could not read the run history: %v", err)
	} else if last != nil {
		logger.Info("Last successful run: %s at %v (%d rows loaded, %d flagged)",
			last.ID, last.EndTime.Format(time.RFC3339), last.RowsLoaded, last.RowsFlagged)
	}

	runner := pipeline.NewRunner(cfg, db, logger)

	switch *modePtr {
	case "once":
		runOnce(runner, logger, *trimestresPtr, *forcePtr)
	case "scheduled":
		runScheduled(runner, logger, cfg.RunInterval, *trimestresPtr, *forcePtr)
	default:
		log.Printf("unknown mode %q (expected once or scheduled)", *modePtr)
		os.Exit(1)
	}
}

func runOnce(runner *pipeline.Runner, logger *utils.ETLLogger, trimestres int, force bool) {
	summary, err := runner.RunIngestion(context.Background(), trimestres, force)
	logSummary(logger, summary)
	if err != nil {
		log.Fatalf("ingestion failed: %v", err)
	}
}

func runScheduled(runner *pipeline.Runner, logger *utils.ETLLogger, interval time.Duration, trimestres int, force bool) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	signalCh := make(chan os.Signal, 1)
	signal.Notify(signalCh, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-signalCh
		logger.Info("Shutdown signal received, stopping scheduler")
		cancel()
	}()

	scheduler := gocron.NewScheduler(time.UTC)
	logger.Info("Starting ingestion scheduler with interval %v", interval)

	_, err := scheduler.Every(interval).Do(func() {
		summary, err := runner.RunIngestion(ctx, trimestres, force)
		logSummary(logger, summary)
		if err != nil {
			logger.Error("Scheduled ingestion failed: %v", err)
		}
	})
	if err != nil {
		log.Fatalf("could not configure the scheduler: %v", err)
	}

	scheduler.StartAsync()
	<-ctx.Done()
	scheduler.Stop()
	logger.Info("Ingestion scheduler stopped")
}

func logSummary(logger *utils.ETLLogger, summary *models.IngestionSummary) {
	if summary == nil {
		return
	}
	logger.Info("Run %s: %d/%d periods succeeded, %d operators, %d rows loaded, %d flagged, %d key conflicts, %d failed batches",
		summary.RunID, summary.PeriodsSucceeded, summary.PeriodsAttempted,
		summary.OperadorasLoaded, summary.RowsLoaded, summary.RowsFlagged,
		summary.KeyConflicts, summary.FailedBatches)
	for _, p := range summary.Periods {
		if !p.Success {
			logger.Error("Period %s failed: %s", p.Periodo, p.Error)
		}
	}
}
