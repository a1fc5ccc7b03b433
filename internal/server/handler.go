package server

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"path/filepath"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/joseph-ayodele/rfv-segments/constants"
	"github.com/joseph-ayodele/rfv-segments/internal/common"
	"github.com/joseph-ayodele/rfv-segments/internal/export"
	"github.com/joseph-ayodele/rfv-segments/internal/ingest"
	"github.com/joseph-ayodele/rfv-segments/internal/rfv"
	"github.com/joseph-ayodele/rfv-segments/internal/session"
)

// HandlerConfig bounds uploads and shapes the preview views.
type HandlerConfig struct {
	MaxUploadBytes int64
	PreviewRows    int
	TopScore       string
	TopCustomers   int
	Sheet          string
}

type RFVHandler struct {
	cfg      HandlerConfig
	pipeline *rfv.Pipeline
	store    *session.Store
	exporter *export.Service
	logger   *slog.Logger
}

func NewRFVHandler(cfg HandlerConfig, pipeline *rfv.Pipeline, store *session.Store, exporter *export.Service, logger *slog.Logger) *RFVHandler {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.PreviewRows <= 0 {
		cfg.PreviewRows = 5
	}
	if cfg.TopCustomers <= 0 {
		cfg.TopCustomers = 10
	}
	if cfg.TopScore == "" {
		cfg.TopScore = "AAA"
	}
	return &RFVHandler{
		cfg:      cfg,
		pipeline: pipeline,
		store:    store,
		exporter: exporter,
		logger:   logger.With("handler", "RFVHandler"),
	}
}

// POST /v1/rfv
// Multipart field "file" holds a .csv or .xlsx ledger; ?sheet= picks an XLSX sheet.
func (h *RFVHandler) Upload(c *gin.Context) {
	if h.cfg.MaxUploadBytes > 0 {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, h.cfg.MaxUploadBytes)
	}
	fh, err := c.FormFile("file")
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			c.AbortWithStatusJSON(http.StatusRequestEntityTooLarge, ErrorEnvelope{Error: APIError{
				Message: fmt.Sprintf("upload exceeds %d bytes", tooLarge.Limit),
				Code:    "UPLOAD_TOO_LARGE",
			}})
			return
		}
		RespondError(c, common.NewAppError("MISSING_FILE", `multipart field "file" is required`, common.ErrInvalidInput))
		return
	}

	source := filepath.Base(fh.Filename)
	format := constants.FormatFromExt(filepath.Ext(source))
	if format == "" {
		RespondError(c, common.NewAppError("UNSUPPORTED_FILE", fmt.Sprintf("unsupported ledger file %q (use .csv or .xlsx)", source), common.ErrInvalidInput))
		return
	}

	runID := uuid.New()
	ctx := common.WithSource(common.WithRunID(c.Request.Context(), runID.String()), source)

	f, err := fh.Open()
	if err != nil {
		RespondError(c, fmt.Errorf("open upload: %w", err))
		return
	}
	defer func() { _ = f.Close() }()

	sheet := h.cfg.Sheet
	if q := strings.TrimSpace(c.Query("sheet")); q != "" {
		sheet = q
	}
	purchases, err := ingest.NewLedgerReader(ingest.Options{Sheet: sheet}, h.logger).Read(ctx, f, format)
	if err != nil {
		h.fail(c, runID, source, err)
		return
	}
	res, err := h.pipeline.Run(ctx, purchases)
	if err != nil {
		h.fail(c, runID, source, err)
		return
	}
	if err := h.store.Save(ctx, res, source); err != nil {
		h.logger.Error("session.save.failed", "run_id", runID.String(), "error", err)
		RespondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, h.preview(res, source))
}

// fail records the failed run and answers with the mapped error.
func (h *RFVHandler) fail(c *gin.Context, runID uuid.UUID, source string, err error) {
	if serr := h.store.SaveFailure(c.Request.Context(), runID, source, err); serr != nil {
		h.logger.Warn("session.save_failure.failed", "run_id", runID.String(), "error", serr)
	}
	RespondError(c, err)
}

type previewResponse struct {
	rfv.Preview
	Source string `json:"source"`
	Links  struct {
		XLSX string `json:"xlsx"`
		CSV  string `json:"csv"`
	} `json:"links"`
}

func (h *RFVHandler) preview(res *rfv.Result, source string) previewResponse {
	out := previewResponse{
		Preview: res.BuildPreview(h.cfg.PreviewRows, h.cfg.TopScore, h.cfg.TopCustomers),
		Source:  source,
	}
	base := "/v1/rfv/" + res.RunID.String() + "/download?format="
	out.Links.XLSX = base + string(constants.XLSX)
	out.Links.CSV = base + string(constants.CSV)
	return out
}

func (h *RFVHandler) loadRun(c *gin.Context) (*session.Run, bool) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		RespondError(c, common.NewAppError("RUN_NOT_FOUND", "run id must be a UUID", common.ErrNotFound))
		return nil, false
	}
	run, err := h.store.Get(c.Request.Context(), id)
	if err != nil {
		RespondError(c, err)
		return nil, false
	}
	return run, true
}

// GET /v1/rfv/:id
func (h *RFVHandler) GetRun(c *gin.Context) {
	run, ok := h.loadRun(c)
	if !ok {
		return
	}
	if run.Result == nil {
		RespondOK(c, run)
		return
	}
	RespondOK(c, h.preview(run.Result, run.Source))
}

// GET /v1/rfv
func (h *RFVHandler) ListRuns(c *gin.Context) {
	runs, err := h.store.List(c.Request.Context())
	if err != nil {
		RespondError(c, err)
		return
	}
	if runs == nil {
		runs = []session.Run{}
	}
	RespondOK(c, gin.H{"runs": runs})
}

// GET /v1/rfv/:id/download?format=xlsx|csv
func (h *RFVHandler) Download(c *gin.Context) {
	format := constants.FileFormat(constants.NormalizeExt(c.DefaultQuery("format", string(constants.XLSX))))
	if format != constants.XLSX && format != constants.CSV {
		RespondError(c, common.NewAppError("UNSUPPORTED_FORMAT", fmt.Sprintf("unsupported format %q (use xlsx or csv)", format), common.ErrInvalidInput))
		return
	}
	run, ok := h.loadRun(c)
	if !ok {
		return
	}
	if run.Result == nil {
		RespondError(c, common.NewAppError("NO_RESULT", fmt.Sprintf("run %s has no result (%s)", run.ID, run.Status), common.ErrNotFound))
		return
	}

	ctx := common.WithRunID(c.Request.Context(), run.ID.String())
	b, err := h.exporter.Export(ctx, run.Result, format)
	if err != nil {
		RespondError(c, err)
		return
	}
	c.Header("Content-Disposition", "attachment; filename="+export.FileName(format))
	c.Data(http.StatusOK, format.ContentType(), b)
}

// GET /healthz
func HealthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}
