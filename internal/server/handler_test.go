package server

import (
	"bytes"
	"context"
	"encoding/csv"
	"encoding/json"
	"mime/multipart"
	"net"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/test/bufconn"

	"github.com/joseph-ayodele/rfv-segments/constants"
	"github.com/joseph-ayodele/rfv-segments/internal/export"
	"github.com/joseph-ayodele/rfv-segments/internal/rfv"
	"github.com/joseph-ayodele/rfv-segments/internal/session"
)

const ledgerCSV = "customer_id,purchase_code,purchase_date,total_value\n" +
	"X,1,2024-01-01,50\n" +
	"Y,2,2024-01-05,100\n" +
	"Y,3,2024-01-08,100\n" +
	"Y,4,2024-01-10,100\n" +
	"Z,5,2024-01-10,75\n"

func newTestRouter(t *testing.T, cfg HandlerConfig) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)
	store, err := session.Open(context.Background(), nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	h := NewRFVHandler(cfg, rfv.NewPipeline(nil, nil), store, export.NewService(nil), nil)
	return NewRouter(RouterConfig{RFVHandler: h, AllowOrigins: []string{"http://localhost:3000"}})
}

func upload(t *testing.T, r http.Handler, filename, content string) *httptest.ResponseRecorder {
	t.Helper()
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	fw, err := mw.CreateFormFile("file", filename)
	require.NoError(t, err)
	_, err = fw.Write([]byte(content))
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/v1/rfv", &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func get(r http.Handler, path string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, path, nil))
	return w
}

type uploadResponse struct {
	RunID         string `json:"run_id"`
	ReferenceDate string `json:"reference_date"`
	Source        string `json:"source"`
	CustomerCount int    `json:"customer_count"`
	Customers     []struct {
		CustomerID      string  `json:"customer_id"`
		RFVScore        string  `json:"rfv_score"`
		SuggestedAction *string `json:"suggested_action"`
	} `json:"customers"`
	TopCustomers []struct {
		CustomerID string `json:"customer_id"`
	} `json:"top_customers"`
	Links struct {
		XLSX string `json:"xlsx"`
		CSV  string `json:"csv"`
	} `json:"links"`
}

func decodeError(t *testing.T, w *httptest.ResponseRecorder) APIError {
	t.Helper()
	var env ErrorEnvelope
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &env))
	return env.Error
}

func TestUpload_OK(t *testing.T) {
	r := newTestRouter(t, HandlerConfig{})
	w := upload(t, r, "march.csv", ledgerCSV)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	var resp uploadResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	_, err := uuid.Parse(resp.RunID)
	require.NoError(t, err)
	assert.Equal(t, "2024-01-10 00:00:00", resp.ReferenceDate)
	assert.Equal(t, "march.csv", resp.Source)
	assert.Equal(t, 3, resp.CustomerCount)

	scores := map[string]string{}
	for _, c := range resp.Customers {
		scores[c.CustomerID] = c.RFVScore
	}
	assert.Equal(t, map[string]string{"X": "DDC", "Y": "AAA", "Z": "ADD"}, scores)
	require.Len(t, resp.TopCustomers, 1)
	assert.Equal(t, "Y", resp.TopCustomers[0].CustomerID)

	// the stored run is readable again
	w = get(r, "/v1/rfv/"+resp.RunID)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestUpload_Errors(t *testing.T) {
	r := newTestRouter(t, HandlerConfig{})

	tests := []struct {
		name     string
		filename string
		content  string
		status   int
		code     string
	}{
		{"malformed", "bad.csv", "customer_id,purchase_code,purchase_date,total_value\n1,A,soon,1\n", http.StatusBadRequest, "MALFORMED_INPUT"},
		{"missing column", "bad.csv", "customer_id,purchase_date,total_value\n1,2024-01-01,1\n", http.StatusBadRequest, "MALFORMED_INPUT"},
		{"empty", "empty.csv", "customer_id,purchase_code,purchase_date,total_value\n", http.StatusUnprocessableEntity, "EMPTY_INPUT"},
		{"unsupported", "ledger.json", "{}", http.StatusBadRequest, "UNSUPPORTED_FILE"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := upload(t, r, tt.filename, tt.content)
			assert.Equal(t, tt.status, w.Code, w.Body.String())
			assert.Equal(t, tt.code, decodeError(t, w).Code)
		})
	}
}

func TestUpload_MissingFile(t *testing.T) {
	r := newTestRouter(t, HandlerConfig{})
	req := httptest.NewRequest(http.MethodPost, "/v1/rfv", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "MISSING_FILE", decodeError(t, w).Code)
}

func TestUpload_TooLarge(t *testing.T) {
	r := newTestRouter(t, HandlerConfig{MaxUploadBytes: 64})
	w := upload(t, r, "march.csv", ledgerCSV)
	assert.Equal(t, http.StatusRequestEntityTooLarge, w.Code)
}

func TestDownload(t *testing.T) {
	r := newTestRouter(t, HandlerConfig{})
	w := upload(t, r, "march.csv", ledgerCSV)
	require.Equal(t, http.StatusCreated, w.Code)
	var resp uploadResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))

	w = get(r, resp.Links.CSV)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "attachment; filename=RFV_Result.csv", w.Header().Get("Content-Disposition"))
	recs, err := csv.NewReader(bytes.NewReader(w.Body.Bytes())).ReadAll()
	require.NoError(t, err)
	require.Len(t, recs, 4)
	assert.Equal(t, constants.ResultColumns, recs[0])

	w = get(r, resp.Links.XLSX)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, constants.XLSX.ContentType(), w.Header().Get("Content-Type"))
	f, err := excelize.OpenReader(bytes.NewReader(w.Body.Bytes()))
	require.NoError(t, err)
	defer func() { _ = f.Close() }()
	rows, err := f.GetRows(export.Sheet)
	require.NoError(t, err)
	assert.Len(t, rows, 4)

	w = get(r, "/v1/rfv/"+resp.RunID+"/download?format=pdf")
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestDownload_Unknown(t *testing.T) {
	r := newTestRouter(t, HandlerConfig{})

	w := get(r, "/v1/rfv/"+uuid.NewString()+"/download")
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "NOT_FOUND", decodeError(t, w).Code)

	w = get(r, "/v1/rfv/not-a-uuid/download")
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestDownload_FailedRun(t *testing.T) {
	r := newTestRouter(t, HandlerConfig{})
	w := upload(t, r, "empty.csv", "customer_id,purchase_code,purchase_date,total_value\n")
	require.Equal(t, http.StatusUnprocessableEntity, w.Code)

	w = get(r, "/v1/rfv")
	require.Equal(t, http.StatusOK, w.Code)
	var list struct {
		Runs []session.Run `json:"runs"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &list))
	require.Len(t, list.Runs, 1)
	assert.Equal(t, constants.RunStatusFailed, list.Runs[0].Status)

	w = get(r, "/v1/rfv/"+list.Runs[0].ID.String()+"/download")
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestHealthz(t *testing.T) {
	r := newTestRouter(t, HandlerConfig{})
	w := get(r, "/healthz")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"status":"ok"}`, w.Body.String())
}

func TestGRPCHealth(t *testing.T) {
	lis := bufconn.Listen(1 << 20)
	srv, hs := NewGRPCServer(nil)
	go func() { _ = srv.Serve(lis) }()
	t.Cleanup(srv.Stop)

	conn, err := grpc.NewClient("passthrough:///bufnet",
		grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) { return lis.DialContext(ctx) }),
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	client := healthpb.NewHealthClient(conn)

	resp, err := client.Check(context.Background(), &healthpb.HealthCheckRequest{Service: RFVServiceName})
	require.NoError(t, err)
	assert.Equal(t, healthpb.HealthCheckResponse_NOT_SERVING, resp.GetStatus())

	SetServing(hs, true)
	resp, err = client.Check(context.Background(), &healthpb.HealthCheckRequest{})
	require.NoError(t, err)
	assert.Equal(t, healthpb.HealthCheckResponse_SERVING, resp.GetStatus())
}
