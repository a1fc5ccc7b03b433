package rfv

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/joseph-ayodele/rfv-segments/internal/common"
	"github.com/joseph-ayodele/rfv-segments/internal/entity"
)

// Result is everything one segmentation run produces, including the
// intermediate tables the front ends show.
type Result struct {
	RunID         uuid.UUID            `json:"run_id"`
	ReferenceDate time.Time            `json:"reference_date"`
	RecordCount   int                  `json:"record_count"`
	Recency       []RecencyRow         `json:"recency"`
	Frequency     []FrequencyRow       `json:"frequency"`
	Value         []ValueRow           `json:"value"`
	Quartiles     entity.Quartiles     `json:"quartiles"`
	Customers     []entity.CustomerRFV `json:"customers"`
}

// Pipeline turns a purchase ledger into per-customer RFV records.
type Pipeline struct {
	logger  *slog.Logger
	actions ActionTable
}

func NewPipeline(logger *slog.Logger, actions ActionTable) *Pipeline {
	if logger == nil {
		logger = slog.Default()
	}
	if actions == nil {
		actions = DefaultActions()
	}
	return &Pipeline{logger: logger, actions: actions}
}

// Actions returns the action table the pipeline scores against.
func (p *Pipeline) Actions() ActionTable {
	return p.actions
}

// Run computes the segmentation. The only user-facing failure is an empty
// ledger; a key mismatch between the aggregates is an InternalConsistencyFault.
func (p *Pipeline) Run(ctx context.Context, purchases []entity.Purchase) (*Result, error) {
	start := time.Now()
	runID := uuid.New()
	if id := common.RunIDFromContext(ctx); id != "" {
		if parsed, err := uuid.Parse(id); err == nil {
			runID = parsed
		}
	}
	ctx = common.WithRunID(ctx, runID.String())
	logger := common.LoggerWith(ctx, p.logger)

	ref, err := ReferenceDate(purchases)
	if err != nil {
		var empty *common.EmptyInputError
		if errors.As(err, &empty) {
			empty.Source = common.SourceFromContext(ctx)
		}
		logger.Warn("rfv.run.empty")
		return nil, err
	}

	agg, err := aggregate(ctx, purchases, ref)
	if err != nil {
		return nil, common.WrapError(err, "aggregate")
	}

	customers, err := Join(agg.recency, agg.frequency, agg.value)
	if err != nil {
		logger.Error("rfv.run.join.failed", "err", err)
		return nil, err
	}

	q := ComputeQuartiles(customers)
	grade(customers, q, p.actions)

	logger.Info("rfv.run.ok",
		"records", len(purchases),
		"customers", len(customers),
		"reference_date", ref.Format(time.RFC3339),
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return &Result{
		RunID:         runID,
		ReferenceDate: ref,
		RecordCount:   len(purchases),
		Recency:       agg.recency,
		Frequency:     agg.frequency,
		Value:         agg.value,
		Quartiles:     q,
		Customers:     customers,
	}, nil
}
