package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/joseph-ayodele/rfv-segments/constants"
	"github.com/joseph-ayodele/rfv-segments/internal/common"
	"github.com/joseph-ayodele/rfv-segments/internal/entity"
	"github.com/joseph-ayodele/rfv-segments/internal/export"
	"github.com/joseph-ayodele/rfv-segments/internal/ingest"
	repo "github.com/joseph-ayodele/rfv-segments/internal/repository"
	"github.com/joseph-ayodele/rfv-segments/internal/rfv"
)

// printError prints an error message to stderr, falling back to stdout if stderr fails
func printError(format string, args ...interface{}) {
	if _, err := fmt.Fprintf(os.Stderr, format, args...); err != nil {
		fmt.Printf(format, args...)
	}
}

// exitCode maps a failure to the process exit status.
func exitCode(err error) int {
	switch {
	case errors.Is(err, common.ErrEmptyInput):
		return 3
	case errors.Is(err, common.ErrMalformedInput), errors.Is(err, common.ErrInvalidInput):
		return 2
	default:
		return 1
	}
}

// ledgerSource is where the CLI reads its ledger from: a file or a table.
type ledgerSource struct {
	file  string
	table string
}

// selectSource picks the ledger source. -in wins when given; otherwise the
// ledger is read from table, which defaults to DB_LEDGER_TABLE. tableSet
// reports whether -db-table was passed explicitly.
func selectSource(in, table string, tableSet bool, dsn string) (ledgerSource, error) {
	switch {
	case in != "" && tableSet:
		return ledgerSource{}, common.NewAppError("USAGE", "use either -in or -db-table, not both", common.ErrInvalidInput)
	case in != "":
		return ledgerSource{file: in}, nil
	case dsn == "":
		return ledgerSource{}, common.NewAppError("USAGE", "-in is required unless DB_URL is set", common.ErrInvalidInput)
	case table == "":
		return ledgerSource{}, common.NewAppError("USAGE", "-db-table is empty and DB_LEDGER_TABLE is not set", common.ErrInvalidInput)
	}
	return ledgerSource{table: table}, nil
}

// validateConfig applies the flag overrides to cfg and validates the result.
func validateConfig(cfg *common.Config, top, rows int) error {
	cfg.Server.TopCustomers = top
	cfg.Server.PreviewRows = rows
	return cfg.Validate()
}

func main() {
	cfg, err := common.LoadConfig()
	if err != nil {
		printError("Error: %v\n", err)
		os.Exit(1)
	}

	var (
		in      = flag.String("in", "", "ledger file (.csv or .xlsx)")
		out     = flag.String("out", constants.DefaultResultName+".xlsx", "result file path")
		format  = flag.String("format", "", "result format: xlsx or csv (default: from -out extension)")
		actions = flag.String("actions", cfg.RFV.ActionsFile, "YAML or JSON action table replacing the default")
		sheet   = flag.String("sheet", cfg.RFV.Sheet, "XLSX sheet to read (default: first sheet)")
		dbTable = flag.String("db-table", cfg.Database.Table, "Postgres table read using DB_URL when -in is not given")
		top     = flag.Int("top", cfg.Server.TopCustomers, "number of top customers to print")
		rows    = flag.Int("rows", cfg.Server.PreviewRows, "rows shown per preview table")
		quiet   = flag.Bool("quiet", false, "write the result without printing the views")
	)
	flag.Parse()

	tableSet := false
	flag.Visit(func(f *flag.Flag) {
		if f.Name == "db-table" {
			tableSet = true
		}
	})
	src, err := selectSource(*in, *dbTable, tableSet, cfg.Database.DSN)
	if err != nil {
		printError("Error: %v\n", err)
		flag.Usage()
		os.Exit(2)
	}
	if err := validateConfig(cfg, *top, *rows); err != nil {
		printError("Error: %v\n", err)
		os.Exit(2)
	}
	outFormat := constants.FileFormat(constants.NormalizeExt(*format))
	if outFormat == "" {
		outFormat = constants.FormatFromExt(filepath.Ext(*out))
	}
	if outFormat != constants.XLSX && outFormat != constants.CSV {
		printError("Error: unsupported result format for %q (use xlsx or csv)\n", *out)
		os.Exit(2)
	}

	// Setup logger
	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.LevelWarn,
	}))
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	table := rfv.DefaultActions()
	if *actions != "" {
		if table, err = rfv.LoadActionTable(*actions); err != nil {
			printError("Error: %v\n", err)
			os.Exit(exitCode(err))
		}
	}

	var purchases []entity.Purchase
	if src.table != "" {
		purchases, err = readFromDB(ctx, cfg, src.table, logger)
	} else {
		purchases, err = ingest.NewLedgerReader(ingest.Options{Sheet: *sheet}, logger).ReadFile(ctx, src.file)
	}
	if err != nil {
		printError("Error: %v\n", err)
		os.Exit(exitCode(err))
	}

	source := src.table
	if source == "" {
		source = filepath.Base(src.file)
	}
	res, err := rfv.NewPipeline(logger, table).Run(common.WithSource(ctx, source), purchases)
	if err != nil {
		printError("Error: %v\n", err)
		os.Exit(exitCode(err))
	}

	if !*quiet {
		printViews(os.Stdout, res, cfg.Server.PreviewRows, cfg.RFV.TopScore, cfg.Server.TopCustomers)
	}

	b, err := export.NewService(logger).Export(ctx, res, outFormat)
	if err != nil {
		printError("Error: %v\n", err)
		os.Exit(1)
	}
	if err := os.WriteFile(*out, b, 0o644); err != nil {
		printError("Error: writing %s: %v\n", *out, err)
		os.Exit(1)
	}
	fmt.Printf("\nwrote %d customers to %s\n", len(res.Customers), *out)
}

func readFromDB(ctx context.Context, cfg *common.Config, table string, logger *slog.Logger) ([]entity.Purchase, error) {
	if err := cfg.ValidateDatabase(); err != nil {
		return nil, err
	}
	pool, err := repo.Open(ctx, repo.Config{
		DSN:              cfg.Database.DSN,
		MaxConns:         cfg.Database.MaxConns,
		MinConns:         cfg.Database.MinConns,
		MaxConnLifetime:  cfg.Database.MaxConnLifetime,
		MaxConnIdleTime:  cfg.Database.MaxConnIdleTime,
		DialTimeout:      cfg.Database.DialTimeout,
		StatementTimeout: cfg.Database.StatementTimeout,
	}, logger)
	if err != nil {
		return nil, fmt.Errorf("opening DB: %w", err)
	}
	defer repo.Close(pool, logger)

	return repo.NewLedgerRepository(pool, logger).ListPurchases(common.WithSource(ctx, table), table)
}
