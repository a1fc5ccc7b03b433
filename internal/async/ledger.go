package async

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/joseph-ayodele/rfv-segments/internal/common"
	"github.com/joseph-ayodele/rfv-segments/internal/export"
	"github.com/joseph-ayodele/rfv-segments/internal/ingest"
	"github.com/joseph-ayodele/rfv-segments/internal/rfv"
)

// LedgerProcessor segments one ledger file and writes its result workbook.
type LedgerProcessor struct {
	reader   *ingest.LedgerReader
	pipeline *rfv.Pipeline
	logger   *slog.Logger
}

func NewLedgerProcessor(reader *ingest.LedgerReader, pipeline *rfv.Pipeline, logger *slog.Logger) *LedgerProcessor {
	if logger == nil {
		logger = slog.Default()
	}
	return &LedgerProcessor{reader: reader, pipeline: pipeline, logger: logger}
}

func (p *LedgerProcessor) Process(ctx context.Context, job Job) error {
	ctx = common.WithRunID(ctx, job.RunID.String())
	purchases, err := p.reader.ReadFile(ctx, job.Path)
	if err != nil {
		return err
	}
	res, err := p.pipeline.Run(common.WithSource(ctx, filepath.Base(job.Path)), purchases)
	if err != nil {
		return err
	}
	b, err := export.WriteXLSX(res.Customers)
	if err != nil {
		return err
	}

	out := ingest.ResultPath(job.Path, job.Root, job.OutDir)
	if err := os.MkdirAll(filepath.Dir(out), 0o755); err != nil {
		return fmt.Errorf("create output dir: %w", err)
	}
	if err := os.WriteFile(out, b, 0o644); err != nil {
		return fmt.Errorf("write result: %w", err)
	}
	common.LoggerWith(ctx, p.logger).Info("batch.result.written",
		"path", out,
		"customers", len(res.Customers),
	)
	return nil
}
