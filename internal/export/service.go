package export

import (
	"bytes"
	"context"
	"encoding/csv"
	"fmt"
	"log/slog"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/xuri/excelize/v2"

	"github.com/joseph-ayodele/rfv-segments/constants"
	"github.com/joseph-ayodele/rfv-segments/internal/common"
	"github.com/joseph-ayodele/rfv-segments/internal/entity"
	"github.com/joseph-ayodele/rfv-segments/internal/rfv"
)

// Sheet is the worksheet the result table is written to.
const Sheet = "Sheet1"

type cacheKey struct {
	runID  uuid.UUID
	format constants.FileFormat
}

// DefaultMaxCached is how many rendered files a Service keeps by default.
const DefaultMaxCached = 32

// Service renders result tables as downloadable files. Rendered bytes are
// kept per run and format, so a repeated download reuses them. At most
// maxCached files are held; the oldest rendering is evicted first.
type Service struct {
	logger    *slog.Logger
	maxCached int

	mu    sync.Mutex
	cache map[cacheKey][]byte
	order []cacheKey
}

type ServiceOption func(*Service)

// WithMaxCached bounds the number of rendered files kept. n <= 0 disables
// caching.
func WithMaxCached(n int) ServiceOption {
	return func(s *Service) { s.maxCached = n }
}

func NewService(logger *slog.Logger, opts ...ServiceOption) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Service{logger: logger, maxCached: DefaultMaxCached, cache: make(map[cacheKey][]byte)}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Export returns the result table of res encoded as format.
func (s *Service) Export(ctx context.Context, res *rfv.Result, format constants.FileFormat) ([]byte, error) {
	if res == nil {
		return nil, common.NewAppError("EXPORT", "no result to export", common.ErrInvalidInput)
	}
	key := cacheKey{runID: res.RunID, format: format}

	s.mu.Lock()
	defer s.mu.Unlock()
	if b, ok := s.cache[key]; ok {
		return b, nil
	}

	start := time.Now()
	var (
		b   []byte
		err error
	)
	switch format {
	case constants.XLSX:
		b, err = WriteXLSX(res.Customers)
	case constants.CSV:
		b, err = WriteCSV(res.Customers)
	default:
		return nil, common.NewAppError("UNSUPPORTED_FORMAT", fmt.Sprintf("unsupported export format %q", format), common.ErrInvalidInput)
	}
	if err != nil {
		common.LoggerWith(ctx, s.logger).Error("export.failed", "format", string(format), "error", err)
		return nil, err
	}
	s.remember(key, b)

	common.LoggerWith(ctx, s.logger).Info("export."+string(format)+".ok",
		"run_id", res.RunID.String(),
		"rows", len(res.Customers),
		"bytes", len(b),
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return b, nil
}

// remember stores b under key, evicting the oldest entries past maxCached.
// Callers hold s.mu.
func (s *Service) remember(key cacheKey, b []byte) {
	if s.maxCached <= 0 {
		return
	}
	for len(s.order) >= s.maxCached {
		delete(s.cache, s.order[0])
		s.order = s.order[1:]
	}
	s.cache[key] = b
	s.order = append(s.order, key)
}

// Cached reports how many rendered files are held.
func (s *Service) Cached() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.cache)
}

// FileName is the download name offered for a result file.
func FileName(format constants.FileFormat) string {
	return constants.DefaultResultName + "." + string(format)
}

func row(c entity.CustomerRFV) []any {
	var action any = ""
	if c.SuggestedAction != nil {
		action = *c.SuggestedAction
	}
	return []any{
		c.CustomerID,
		c.Recency,
		c.Frequency,
		c.Value,
		string(c.RGrade),
		string(c.FGrade),
		string(c.VGrade),
		c.RFVScore,
		action,
	}
}

// WriteXLSX writes the result table to a single-sheet workbook.
func WriteXLSX(customers []entity.CustomerRFV) ([]byte, error) {
	f := excelize.NewFile()
	defer func() { _ = f.Close() }()

	header := make([]any, len(constants.ResultColumns))
	for i, h := range constants.ResultColumns {
		header[i] = h
	}
	if err := f.SetSheetRow(Sheet, "A1", &header); err != nil {
		return nil, fmt.Errorf("xlsx header: %w", err)
	}

	for i, c := range customers {
		cell, _ := excelize.CoordinatesToCellName(1, i+2)
		values := row(c)
		if err := f.SetSheetRow(Sheet, cell, &values); err != nil {
			return nil, fmt.Errorf("xlsx row %d: %w", i+2, err)
		}
	}

	// Widen a few columns
	_ = f.SetColWidth(Sheet, "A", "A", 16) // customer
	_ = f.SetColWidth(Sheet, "B", "H", 11) // metrics and grades
	_ = f.SetColWidth(Sheet, "I", "I", 52) // action

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("xlsx write: %w", err)
	}
	return buf.Bytes(), nil
}

// WriteCSV writes the result table as comma separated text with a header.
func WriteCSV(customers []entity.CustomerRFV) ([]byte, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	if err := w.Write(constants.ResultColumns); err != nil {
		return nil, fmt.Errorf("csv header: %w", err)
	}
	for _, c := range customers {
		rec := []string{
			c.CustomerID,
			strconv.Itoa(c.Recency),
			strconv.Itoa(c.Frequency),
			strconv.FormatFloat(c.Value, 'f', -1, 64),
			string(c.RGrade),
			string(c.FGrade),
			string(c.VGrade),
			c.RFVScore,
			c.Action(),
		}
		if err := w.Write(rec); err != nil {
			return nil, fmt.Errorf("csv row: %w", err)
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return nil, fmt.Errorf("csv flush: %w", err)
	}
	return buf.Bytes(), nil
}
