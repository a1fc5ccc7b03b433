package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"

	"github.com/joseph-ayodele/rfv-segments/internal/async"
	"github.com/joseph-ayodele/rfv-segments/internal/common"
	"github.com/joseph-ayodele/rfv-segments/internal/ingest"
	"github.com/joseph-ayodele/rfv-segments/internal/rfv"
)

// printError prints an error message to stderr, falling back to stdout if stderr fails
func printError(format string, args ...interface{}) {
	if _, err := fmt.Fprintf(os.Stderr, format, args...); err != nil {
		fmt.Printf(format, args...)
	}
}

// validateConfig applies the flag overrides to cfg and validates the result.
func validateConfig(cfg *common.Config, workers, queueSize int) error {
	cfg.Batch.Workers = workers
	cfg.Batch.QueueSize = queueSize
	return cfg.Validate()
}

func main() {
	cfg, err := common.LoadConfig()
	if err != nil {
		printError("Error: %v\n", err)
		os.Exit(1)
	}

	var (
		dir        = flag.String("dir", "", "directory to scan for ledgers (required)")
		out        = flag.String("out", "", "output directory (optional, defaults to next to each ledger)")
		actions    = flag.String("actions", cfg.RFV.ActionsFile, "YAML or JSON action table replacing the default")
		sheet      = flag.String("sheet", cfg.RFV.Sheet, "XLSX sheet to read (default: first sheet)")
		workers    = flag.Int("workers", cfg.Batch.Workers, "number of workers")
		queueSize  = flag.Int("queue", cfg.Batch.QueueSize, "job queue size")
		timeout    = flag.Duration("timeout", cfg.Batch.ProcessTimeout, "per-ledger timeout")
		showHidden = flag.Bool("hidden", false, "include hidden files and directories")
	)
	flag.Parse()

	if *dir == "" {
		printError("Error: --dir is required\n")
		os.Exit(1)
	}
	if err := validateConfig(cfg, *workers, *queueSize); err != nil {
		printError("Error: %v\n", err)
		os.Exit(2)
	}

	// Setup logger
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	table := rfv.DefaultActions()
	if *actions != "" {
		if table, err = rfv.LoadActionTable(*actions); err != nil {
			logger.Error("failed to load action table", "path", *actions, "error", err)
			os.Exit(2)
		}
	}

	paths, stats, err := ingest.DiscoverLedgers(*dir, !*showHidden)
	if err != nil {
		logger.Error("failed to scan directory", "dir", *dir, "error", err)
		os.Exit(1)
	}
	logger.Info("scan complete",
		"dir", *dir,
		"scanned", stats.Scanned,
		"matched", stats.Matched,
		"failed", stats.Failed)

	proc := async.NewLedgerProcessor(ingest.NewLedgerReader(ingest.Options{Sheet: *sheet}, logger), rfv.NewPipeline(logger, table), logger)
	q := async.NewProcessorQueue(proc, logger,
		async.WithWorkers(*workers),
		async.WithQueueSize(*queueSize),
		async.WithProcessTimeout(*timeout),
	)

	start := time.Now()
	for _, p := range paths {
		if err := q.Enqueue(ctx, async.Job{RunID: uuid.New(), Path: p, Root: *dir, OutDir: *out}); err != nil {
			logger.Warn("stopped queueing ledgers", "error", err)
			break
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), *timeout+30*time.Second)
	defer cancel()
	q.Shutdown(shutdownCtx)

	processed, failed := q.Stats()
	logger.Info("batch processing complete",
		"ledgers", len(paths),
		"processed", processed,
		"failures", failed,
		"elapsed_ms", time.Since(start).Milliseconds())
	if failed > 0 {
		os.Exit(1)
	}
}
