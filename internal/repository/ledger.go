package repository

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/joseph-ayodele/rfv-segments/constants"
	"github.com/joseph-ayodele/rfv-segments/internal/common"
	"github.com/joseph-ayodele/rfv-segments/internal/entity"
)

// Querier is the part of a pgx pool or connection the ledger reads need.
type Querier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

type LedgerRepository interface {
	ListPurchases(ctx context.Context, table string) ([]entity.Purchase, error)
	CountPurchases(ctx context.Context, table string) (int64, error)
}

type ledgerRepository struct {
	db     Querier
	logger *slog.Logger
}

func NewLedgerRepository(db Querier, logger *slog.Logger) LedgerRepository {
	if logger == nil {
		logger = slog.Default()
	}
	return &ledgerRepository{
		db:     db,
		logger: logger,
	}
}

// ledgerRow is one scanned row; every column is nullable until checked.
type ledgerRow struct {
	CustomerID   *string
	PurchaseCode *string
	PurchaseDate *time.Time
	TotalValue   *float64
}

// tableIdent quotes a possibly schema-qualified table name.
func tableIdent(table string) (string, error) {
	table = strings.TrimSpace(table)
	if table == "" {
		return "", common.NewAppError("LEDGER_TABLE", "ledger table name is required", common.ErrInvalidInput)
	}
	parts := strings.Split(table, ".")
	for _, p := range parts {
		if p == "" {
			return "", common.NewAppError("LEDGER_TABLE", fmt.Sprintf("invalid ledger table name %q", table), common.ErrInvalidInput)
		}
	}
	return pgx.Identifier(parts).Sanitize(), nil
}

func listPurchasesSQL(table string) (string, error) {
	ident, err := tableIdent(table)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf(
		"SELECT %s::text, %s::text, %s::timestamptz, %s::float8 FROM %s",
		pgx.Identifier{constants.ColCustomerID}.Sanitize(),
		pgx.Identifier{constants.ColPurchaseCode}.Sanitize(),
		pgx.Identifier{constants.ColPurchaseDate}.Sanitize(),
		pgx.Identifier{constants.ColTotalValue}.Sanitize(),
		ident,
	), nil
}

// toPurchase checks a scanned row. Row numbers count data rows from 1.
func (r ledgerRow) toPurchase(rowNum int) (entity.Purchase, error) {
	missing := func(col string) error {
		return &common.MalformedInputError{Row: rowNum, Column: col, Reason: "value is required"}
	}
	switch {
	case r.CustomerID == nil || strings.TrimSpace(*r.CustomerID) == "":
		return entity.Purchase{}, missing(constants.ColCustomerID)
	case r.PurchaseCode == nil || strings.TrimSpace(*r.PurchaseCode) == "":
		return entity.Purchase{}, missing(constants.ColPurchaseCode)
	case r.PurchaseDate == nil:
		return entity.Purchase{}, missing(constants.ColPurchaseDate)
	case r.TotalValue == nil:
		return entity.Purchase{}, missing(constants.ColTotalValue)
	}
	return entity.Purchase{
		CustomerID:   strings.TrimSpace(*r.CustomerID),
		PurchaseCode: strings.TrimSpace(*r.PurchaseCode),
		PurchaseDate: r.PurchaseDate.UTC(),
		TotalValue:   *r.TotalValue,
	}, nil
}

func (r *ledgerRepository) ListPurchases(ctx context.Context, table string) ([]entity.Purchase, error) {
	query, err := listPurchasesSQL(table)
	if err != nil {
		return nil, err
	}

	start := time.Now()
	rows, err := r.db.Query(ctx, query)
	if err != nil {
		r.logger.Error("ledger.query.failed", "table", table, "error", err)
		return nil, fmt.Errorf("%w: query ledger %s: %v", common.ErrDatabase, table, err)
	}
	scanned, err := pgx.CollectRows(rows, pgx.RowToStructByPos[ledgerRow])
	if err != nil {
		r.logger.Error("ledger.scan.failed", "table", table, "error", err)
		return nil, fmt.Errorf("%w: scan ledger %s: %v", common.ErrDatabase, table, err)
	}

	out := make([]entity.Purchase, 0, len(scanned))
	for i, row := range scanned {
		p, err := row.toPurchase(i + 1)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}

	r.logger.Info("ledger.query.ok",
		"table", table,
		"records", len(out),
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return out, nil
}

func (r *ledgerRepository) CountPurchases(ctx context.Context, table string) (int64, error) {
	ident, err := tableIdent(table)
	if err != nil {
		return 0, err
	}
	var n int64
	if err := r.db.QueryRow(ctx, "SELECT count(*) FROM "+ident).Scan(&n); err != nil {
		return 0, fmt.Errorf("%w: count ledger %s: %v", common.ErrDatabase, table, err)
	}
	return n, nil
}
