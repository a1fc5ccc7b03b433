package ingest

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/joseph-ayodele/rfv-segments/constants"
	"github.com/joseph-ayodele/rfv-segments/internal/common"
	"github.com/joseph-ayodele/rfv-segments/internal/entity"
)

// Options tune ledger decoding.
type Options struct {
	// Sheet selects the XLSX sheet; empty means the first sheet.
	Sheet string
	// Delimiter forces the CSV separator; 0 sniffs it from the header line.
	Delimiter rune
}

// LedgerReader decodes purchase ledgers from files or upload streams.
type LedgerReader struct {
	opts   Options
	logger *slog.Logger
}

func NewLedgerReader(opts Options, logger *slog.Logger) *LedgerReader {
	if logger == nil {
		logger = slog.Default()
	}
	return &LedgerReader{opts: opts, logger: logger}
}

// ReadFile decodes the ledger at path, picking the decoder by extension.
func (r *LedgerReader) ReadFile(ctx context.Context, path string) ([]entity.Purchase, error) {
	format := constants.FormatFromExt(filepath.Ext(path))
	if format == "" {
		return nil, common.NewAppError("UNSUPPORTED_FILE", fmt.Sprintf("unsupported ledger file %q (use .csv or .xlsx)", filepath.Base(path)), common.ErrInvalidInput)
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open ledger: %w", err)
	}
	defer func(f *os.File) {
		if cerr := f.Close(); cerr != nil {
			r.logger.Warn("ingest.close.failed", "path", path, "error", cerr)
		}
	}(f)
	return r.Read(common.WithSource(ctx, filepath.Base(path)), f, format)
}

// Read decodes a ledger stream in the given format.
func (r *LedgerReader) Read(ctx context.Context, in io.Reader, format constants.FileFormat) ([]entity.Purchase, error) {
	start := time.Now()
	logger := common.LoggerWith(ctx, r.logger)

	var (
		t   table
		err error
	)
	switch format {
	case constants.CSV:
		t, err = readCSV(in, r.opts.Delimiter)
	case constants.XLSX:
		t, err = readXLSX(in, r.opts.Sheet)
	default:
		return nil, common.NewAppError("UNSUPPORTED_FILE", fmt.Sprintf("unsupported ledger format %q", format), common.ErrInvalidInput)
	}
	if err != nil {
		logger.Warn("ingest.read.failed", "format", string(format), "error", err)
		return nil, err
	}

	purchases, err := t.purchases()
	if err != nil {
		logger.Warn("ingest.parse.failed", "format", string(format), "error", err)
		return nil, err
	}

	logger.Info("ingest.read.ok",
		"format", string(format),
		"records", len(purchases),
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return purchases, nil
}
