package session

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/joseph-ayodele/rfv-segments/constants"
	"github.com/joseph-ayodele/rfv-segments/internal/common"
	"github.com/joseph-ayodele/rfv-segments/internal/entity"
	"github.com/joseph-ayodele/rfv-segments/internal/rfv"
)

// Run is one stored segmentation run. Result is nil unless Status is OK.
type Run struct {
	ID        uuid.UUID           `json:"id"`
	Source    string              `json:"source"`
	Status    constants.RunStatus `json:"status"`
	Error     string              `json:"error,omitempty"`
	CreatedAt time.Time           `json:"created_at"`
	Result    *rfv.Result         `json:"-"`
}

// aggregates holds the intermediate per-metric tables of a run.
type aggregates struct {
	Recency   []rfv.RecencyRow   `json:"recency"`
	Frequency []rfv.FrequencyRow `json:"frequency"`
	Value     []rfv.ValueRow     `json:"value"`
}

// Store keeps computed runs in a process-lifetime in-memory SQLite database.
type Store struct {
	db     *sql.DB
	logger *slog.Logger
	now    func() time.Time
}

// Open creates the in-memory database. It lives until Close.
func Open(ctx context.Context, logger *slog.Logger) (*Store, error) {
	if logger == nil {
		logger = slog.Default()
	}
	db, err := sql.Open("sqlite", "file::memory:?_pragma=foreign_keys(1)")
	if err != nil {
		return nil, fmt.Errorf("open session store: %w", err)
	}
	// every connection to :memory: is a separate database
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)
	db.SetConnMaxIdleTime(0)

	if _, err := db.ExecContext(ctx, schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create session schema: %w", err)
	}
	logger.Info("session.store.ready")
	return &Store{db: db, logger: logger, now: time.Now}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

// Save stores a successful run and its customer rows.
func (s *Store) Save(ctx context.Context, res *rfv.Result, source string) error {
	if res == nil {
		return common.NewAppError("SESSION", "nil result", common.ErrInvalidInput)
	}
	quartiles, err := json.Marshal(res.Quartiles)
	if err != nil {
		return fmt.Errorf("encode quartiles: %w", err)
	}
	aggs, err := json.Marshal(aggregates{Recency: res.Recency, Frequency: res.Frequency, Value: res.Value})
	if err != nil {
		return fmt.Errorf("encode aggregates: %w", err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("%w: begin: %v", common.ErrDatabase, err)
	}
	defer func() { _ = tx.Rollback() }()

	_, err = tx.ExecContext(ctx,
		`INSERT INTO runs (id, source, status, reference_date, record_count, quartiles, aggregates, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		res.RunID.String(), source, string(constants.RunStatusOK),
		res.ReferenceDate.Format(time.RFC3339Nano), res.RecordCount,
		string(quartiles), string(aggs), s.now().UnixNano(),
	)
	if err != nil {
		return fmt.Errorf("%w: insert run: %v", common.ErrDatabase, err)
	}

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO customers (run_id, ord, customer_id, recency, frequency, value, r_grade, f_grade, v_grade, rfv_score, suggested_action)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("%w: prepare: %v", common.ErrDatabase, err)
	}
	defer func() { _ = stmt.Close() }()

	for i, c := range res.Customers {
		var action sql.NullString
		if c.SuggestedAction != nil {
			action = sql.NullString{String: *c.SuggestedAction, Valid: true}
		}
		if _, err := stmt.ExecContext(ctx,
			res.RunID.String(), i, c.CustomerID, c.Recency, c.Frequency, c.Value,
			string(c.RGrade), string(c.FGrade), string(c.VGrade), c.RFVScore, action,
		); err != nil {
			return fmt.Errorf("%w: insert customer %s: %v", common.ErrDatabase, c.CustomerID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("%w: commit: %v", common.ErrDatabase, err)
	}
	s.logger.Debug("session.save.ok", "run_id", res.RunID.String(), "customers", len(res.Customers))
	return nil
}

// SaveFailure records a run that produced no result.
func (s *Store) SaveFailure(ctx context.Context, id uuid.UUID, source string, cause error) error {
	msg := ""
	if cause != nil {
		msg = cause.Error()
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO runs (id, source, status, error, created_at) VALUES (?, ?, ?, ?, ?)`,
		id.String(), source, string(constants.RunStatusFailed), msg, s.now().UnixNano(),
	)
	if err != nil {
		return fmt.Errorf("%w: insert failed run: %v", common.ErrDatabase, err)
	}
	return nil
}

// Get loads a run. An unknown id is common.ErrNotFound.
func (s *Store) Get(ctx context.Context, id uuid.UUID) (*Run, error) {
	var (
		run                       Run
		status                    string
		errMsg, refDate           sql.NullString
		quartiles, aggregatesBlob sql.NullString
		recordCount               int
		createdAt                 int64
	)
	err := s.db.QueryRowContext(ctx,
		`SELECT source, status, error, reference_date, record_count, quartiles, aggregates, created_at
		 FROM runs WHERE id = ?`, id.String(),
	).Scan(&run.Source, &status, &errMsg, &refDate, &recordCount, &quartiles, &aggregatesBlob, &createdAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, common.NewAppError("RUN_NOT_FOUND", fmt.Sprintf("run %s not found", id), common.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: get run: %v", common.ErrDatabase, err)
	}

	run.ID = id
	run.Status = constants.RunStatus(status)
	run.Error = errMsg.String
	run.CreatedAt = time.Unix(0, createdAt).UTC()
	if run.Status != constants.RunStatusOK {
		return &run, nil
	}

	res := &rfv.Result{RunID: id, RecordCount: recordCount}
	if res.ReferenceDate, err = time.Parse(time.RFC3339Nano, refDate.String); err != nil {
		return nil, fmt.Errorf("decode reference date: %w", err)
	}
	if err := json.Unmarshal([]byte(quartiles.String), &res.Quartiles); err != nil {
		return nil, fmt.Errorf("decode quartiles: %w", err)
	}
	var aggs aggregates
	if err := json.Unmarshal([]byte(aggregatesBlob.String), &aggs); err != nil {
		return nil, fmt.Errorf("decode aggregates: %w", err)
	}
	res.Recency, res.Frequency, res.Value = aggs.Recency, aggs.Frequency, aggs.Value

	if res.Customers, err = s.customers(ctx, id); err != nil {
		return nil, err
	}
	run.Result = res
	return &run, nil
}

func (s *Store) customers(ctx context.Context, id uuid.UUID) ([]entity.CustomerRFV, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT customer_id, recency, frequency, value, r_grade, f_grade, v_grade, rfv_score, suggested_action
		 FROM customers WHERE run_id = ? ORDER BY ord`, id.String())
	if err != nil {
		return nil, fmt.Errorf("%w: list customers: %v", common.ErrDatabase, err)
	}
	defer func() { _ = rows.Close() }()

	var out []entity.CustomerRFV
	for rows.Next() {
		var (
			c       entity.CustomerRFV
			r, f, v string
			action  sql.NullString
		)
		if err := rows.Scan(&c.CustomerID, &c.Recency, &c.Frequency, &c.Value, &r, &f, &v, &c.RFVScore, &action); err != nil {
			return nil, fmt.Errorf("%w: scan customer: %v", common.ErrDatabase, err)
		}
		c.RGrade, c.FGrade, c.VGrade = constants.Grade(r), constants.Grade(f), constants.Grade(v)
		if action.Valid {
			a := action.String
			c.SuggestedAction = &a
		}
		out = append(out, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: iterate customers: %v", common.ErrDatabase, err)
	}
	return out, nil
}

// List returns all runs, newest first, without their results.
func (s *Store) List(ctx context.Context) ([]Run, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, source, status, error, created_at FROM runs ORDER BY created_at DESC, id`)
	if err != nil {
		return nil, fmt.Errorf("%w: list runs: %v", common.ErrDatabase, err)
	}
	defer func() { _ = rows.Close() }()

	var out []Run
	for rows.Next() {
		var (
			run        Run
			id, status string
			errMsg     sql.NullString
			createdAt  int64
		)
		if err := rows.Scan(&id, &run.Source, &status, &errMsg, &createdAt); err != nil {
			return nil, fmt.Errorf("%w: scan run: %v", common.ErrDatabase, err)
		}
		run.ID, _ = uuid.Parse(id)
		run.Status = constants.RunStatus(status)
		run.Error = errMsg.String
		run.CreatedAt = time.Unix(0, createdAt).UTC()
		out = append(out, run)
	}
	return out, rows.Err()
}
